package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/paperstack/backend/internal/domain"
	"github.com/paperstack/backend/internal/middleware"
	"github.com/paperstack/backend/internal/usecase"
	"github.com/paperstack/backend/pkg/claude"
)

type Handler struct {
	ingestUsecase  *usecase.IngestUsecase
	libraryUsecase *usecase.LibraryUsecase
	searchUsecase  *usecase.SearchUsecase
	chatUsecase    *usecase.ChatUsecase
	usageUsecase   *usecase.UsageUsecase
	maxUploadBytes int64
}

func NewHandler(
	ingest *usecase.IngestUsecase,
	library *usecase.LibraryUsecase,
	search *usecase.SearchUsecase,
	chat *usecase.ChatUsecase,
	usage *usecase.UsageUsecase,
	maxUploadBytes int64,
) *Handler {
	return &Handler{
		ingestUsecase:  ingest,
		libraryUsecase: library,
		searchUsecase:  search,
		chatUsecase:    chat,
		usageUsecase:   usage,
		maxUploadBytes: maxUploadBytes,
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// Ingestion handlers

type addPaperRequest struct {
	URL string `json:"url"`
}

func (h *Handler) AddPaper(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := middleware.GetOwnerID(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	var req addPaperRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.URL == "" {
		writeError(w, http.StatusBadRequest, "URL is required")
		return
	}

	paper, created, err := h.ingestUsecase.AddByURL(r.Context(), ownerID, req.URL)
	if err != nil {
		h.writeIngestError(w, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, paper)
}

func (h *Handler) UploadPaper(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := middleware.GetOwnerID(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid multipart upload")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "A 'file' field is required")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Failed to read uploaded file")
		return
	}

	paper, err := h.ingestUsecase.AddByUpload(r.Context(), ownerID, header.Filename, r.FormValue("title"), data)
	if err != nil {
		h.writeIngestError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, paper)
}

func (h *Handler) writeIngestError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, usecase.ErrBadIdentifier):
		writeError(w, http.StatusBadRequest, "Could not resolve a paper from that URL")
	case errors.Is(err, usecase.ErrBadUpload):
		writeError(w, http.StatusBadRequest, "Uploaded file is not a valid PDF")
	case errors.Is(err, usecase.ErrNoPDFFound):
		writeError(w, http.StatusUnprocessableEntity, "No PDF could be found for that paper")
	case errors.Is(err, usecase.ErrAcquisitionFailed):
		writeError(w, http.StatusBadGateway, "The PDF could not be downloaded")
	case errors.Is(err, usecase.ErrExtractionFailed):
		writeError(w, http.StatusUnprocessableEntity, "The PDF could not be read")
	case errors.Is(err, usecase.ErrInsufficientText):
		writeError(w, http.StatusUnprocessableEntity, "The PDF contains too little extractable text")
	default:
		writeError(w, http.StatusInternalServerError, "Failed to ingest paper")
	}
}

// Search handler

func (h *Handler) SearchPapers(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	result, err := h.searchUsecase.Search(r.Context(), query, limit, offset)
	if errors.Is(err, usecase.ErrEmptyQuery) {
		writeError(w, http.StatusBadRequest, "Query parameter 'q' is required")
		return
	}
	if errors.Is(err, usecase.ErrSearchUnavailable) {
		writeError(w, http.StatusBadGateway, "Search providers are unavailable")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Search failed")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// Library handlers

func (h *Handler) ListPapers(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := middleware.GetOwnerID(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	result, err := h.libraryUsecase.List(ownerID, limit, offset)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list papers")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) GetPaper(w http.ResponseWriter, r *http.Request) {
	ownerID, paperID, ok := h.paperRequest(w, r)
	if !ok {
		return
	}

	renderParam := r.URL.Query().Get("render")
	render := renderParam == "1" || renderParam == "true"
	paper, err := h.libraryUsecase.Get(ownerID, paperID, render)
	if errors.Is(err, usecase.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Paper not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get paper")
		return
	}
	writeJSON(w, http.StatusOK, paper)
}

type updatePaperRequest struct {
	IsRead *bool `json:"is_read"`
}

func (h *Handler) UpdatePaper(w http.ResponseWriter, r *http.Request) {
	ownerID, paperID, ok := h.paperRequest(w, r)
	if !ok {
		return
	}

	var req updatePaperRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.IsRead == nil {
		writeError(w, http.StatusBadRequest, "is_read is required")
		return
	}

	paper, err := h.libraryUsecase.SetRead(ownerID, paperID, *req.IsRead)
	if errors.Is(err, usecase.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Paper not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to update paper")
		return
	}
	writeJSON(w, http.StatusOK, paper)
}

func (h *Handler) DeletePaper(w http.ResponseWriter, r *http.Request) {
	ownerID, paperID, ok := h.paperRequest(w, r)
	if !ok {
		return
	}

	err := h.libraryUsecase.Delete(ownerID, paperID)
	if errors.Is(err, usecase.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Paper not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to delete paper")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Chat and annotation handlers

type chatRequest struct {
	Messages []claude.Message `json:"messages"`
}

type chatResponse struct {
	Reply string `json:"reply"`
}

func (h *Handler) ChatWithPaper(w http.ResponseWriter, r *http.Request) {
	ownerID, paperID, ok := h.paperRequest(w, r)
	if !ok {
		return
	}

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	reply, err := h.chatUsecase.Chat(r.Context(), ownerID, paperID, req.Messages)
	switch {
	case errors.Is(err, usecase.ErrEmptyMessages):
		writeError(w, http.StatusBadRequest, "At least one message is required")
	case errors.Is(err, usecase.ErrNotFound):
		writeError(w, http.StatusNotFound, "Paper not found")
	case errors.Is(err, usecase.ErrNoContent):
		writeError(w, http.StatusUnprocessableEntity, "Paper has no extracted text to chat about")
	case errors.Is(err, usecase.ErrAIUnavailable):
		writeError(w, http.StatusServiceUnavailable, "AI features are not configured")
	case err != nil:
		writeError(w, http.StatusBadGateway, "AI service is unavailable")
	default:
		writeJSON(w, http.StatusOK, chatResponse{Reply: reply})
	}
}

func (h *Handler) CreateAnnotation(w http.ResponseWriter, r *http.Request) {
	ownerID, paperID, ok := h.paperRequest(w, r)
	if !ok {
		return
	}

	var input usecase.AnnotationInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	annotation, err := h.chatUsecase.CreateAnnotation(r.Context(), ownerID, paperID, &input)
	switch {
	case errors.Is(err, usecase.ErrBadAnnotation):
		writeError(w, http.StatusBadRequest, "Annotation needs selected text or a note")
	case errors.Is(err, usecase.ErrNotFound):
		writeError(w, http.StatusNotFound, "Paper not found")
	case err != nil:
		writeError(w, http.StatusInternalServerError, "Failed to create annotation")
	default:
		writeJSON(w, http.StatusCreated, annotation)
	}
}

func (h *Handler) ListAnnotations(w http.ResponseWriter, r *http.Request) {
	ownerID, paperID, ok := h.paperRequest(w, r)
	if !ok {
		return
	}

	annotations, err := h.chatUsecase.ListAnnotations(ownerID, paperID)
	if errors.Is(err, usecase.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Paper not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list annotations")
		return
	}
	if annotations == nil {
		annotations = []*domain.Annotation{}
	}
	writeJSON(w, http.StatusOK, annotations)
}

// Usage handler

func (h *Handler) GetUsage(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := middleware.GetOwnerID(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	totals, err := h.usageUsecase.GetUsage(ownerID, r.URL.Query().Get("period"))
	if errors.Is(err, usecase.ErrBadPeriod) {
		writeError(w, http.StatusBadRequest, "Period must look like YYYY-MM")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to compute usage")
		return
	}
	writeJSON(w, http.StatusOK, totals)
}

// paperRequest pulls the authenticated owner and the {id} path parameter.
func (h *Handler) paperRequest(w http.ResponseWriter, r *http.Request) (uuid.UUID, uuid.UUID, bool) {
	ownerID, ok := middleware.GetOwnerID(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return uuid.Nil, uuid.Nil, false
	}

	paperID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid paper id")
		return uuid.Nil, uuid.Nil, false
	}
	return ownerID, paperID, true
}
