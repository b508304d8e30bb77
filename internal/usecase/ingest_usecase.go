package usecase

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/paperstack/backend/internal/domain"
	"github.com/paperstack/backend/internal/markdown"
	"github.com/paperstack/backend/internal/resolver"
)

var (
	ErrBadIdentifier     = errors.New("could not resolve paper identifier")
	ErrNoPDFFound        = errors.New("no pdf found for paper")
	ErrAcquisitionFailed = errors.New("pdf download failed")
	ErrExtractionFailed  = errors.New("pdf text extraction failed")
	ErrInsufficientText  = errors.New("extracted text too short to be useful")
	ErrBadUpload         = errors.New("uploaded file is not a valid pdf")
)

// MetadataProvider fetches bibliographic metadata for a provider-native id.
type MetadataProvider interface {
	Name() string
	Fetch(ctx context.Context, id string) (*domain.PaperMeta, error)
}

// PDFLocator scans a landing page for a PDF link. An empty URL with a nil
// error means the page simply has no PDF, which is a normal outcome.
type PDFLocator interface {
	Locate(ctx context.Context, pageURL string) (string, error)
}

type PDFDownloader interface {
	Download(ctx context.Context, pdfURL string) ([]byte, error)
}

type TextExtractor interface {
	Extract(ctx context.Context, data []byte) (string, error)
}

type IngestConfig struct {
	MinTextChars   int
	MaxUploadBytes int64
	PDFDir         string
}

// IngestUsecase runs the pipeline that turns a URL or an uploaded file into
// a stored paper: resolve, fetch metadata, acquire the PDF, extract text,
// enrich, save.
type IngestUsecase struct {
	paperRepo  domain.PaperRepository
	providers  map[string]MetadataProvider
	locator    PDFLocator
	downloader PDFDownloader
	extractor  TextExtractor
	analysis   *AnalysisEngine
	cfg        IngestConfig
}

func NewIngestUsecase(
	paperRepo domain.PaperRepository,
	providers []MetadataProvider,
	locator PDFLocator,
	downloader PDFDownloader,
	extractor TextExtractor,
	analysis *AnalysisEngine,
	cfg IngestConfig,
) *IngestUsecase {
	if cfg.MinTextChars <= 0 {
		cfg.MinTextChars = 100
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 100 << 20
	}

	byName := make(map[string]MetadataProvider, len(providers))
	for _, p := range providers {
		byName[p.Name()] = p
	}

	return &IngestUsecase{
		paperRepo:  paperRepo,
		providers:  byName,
		locator:    locator,
		downloader: downloader,
		extractor:  extractor,
		analysis:   analysis,
		cfg:        cfg,
	}
}

// AddByURL ingests the paper behind rawURL for the owner. It returns the
// stored paper and whether this call created it; re-submitting a URL the
// owner already ingested returns the existing paper untouched.
func (u *IngestUsecase) AddByURL(ctx context.Context, ownerID uuid.UUID, rawURL string) (*domain.Paper, bool, error) {
	sourceURL := strings.TrimSpace(rawURL)
	if parsed, parseErr := url.Parse(sourceURL); parseErr != nil || parsed.Host == "" ||
		(parsed.Scheme != "http" && parsed.Scheme != "https") {
		return nil, false, fmt.Errorf("%w: %q", ErrBadIdentifier, sourceURL)
	}

	kind, providerID, err := resolver.Resolve(sourceURL)
	if err != nil {
		// A provider URL without a recognizable identifier is fatal for
		// arXiv; other hosts can still be scanned for a PDF link.
		if kind == domain.SourceArxiv {
			return nil, false, fmt.Errorf("%w: %q", ErrBadIdentifier, sourceURL)
		}
		providerID = ""
	}

	// Cheap dedup before any network work. The insert below re-checks
	// atomically, so a concurrent duplicate still collapses to one row.
	if existing, err := u.paperRepo.FindByOwnerAndURL(ownerID, sourceURL); err != nil {
		return nil, false, err
	} else if existing != nil {
		return existing, false, nil
	}

	meta, err := u.fetchMetadata(ctx, kind, providerID)
	if err != nil {
		return nil, false, err
	}

	pdfURL := ""
	if meta != nil {
		pdfURL = meta.PDFURL
	}
	if pdfURL == "" {
		pdfURL, err = u.locator.Locate(ctx, sourceURL)
		if err != nil {
			return nil, false, fmt.Errorf("%w: %v", ErrNoPDFFound, err)
		}
		if pdfURL == "" {
			return nil, false, ErrNoPDFFound
		}
	}

	data, err := u.downloader.Download(ctx, pdfURL)
	if err != nil {
		return nil, false, fmt.Errorf("%w: %v", ErrAcquisitionFailed, err)
	}

	text, err := u.extractor.Extract(ctx, data)
	if err != nil {
		return nil, false, fmt.Errorf("%w: %v", ErrExtractionFailed, err)
	}

	formatted := markdown.Format(text)
	if utf8.RuneCountInString(formatted) < u.cfg.MinTextChars {
		return nil, false, ErrInsufficientText
	}

	paper := &domain.Paper{
		OwnerID:    ownerID,
		SourceURL:  sourceURL,
		SourceKind: kind,
		ProviderID: providerID,
		PDFURL:     pdfURL,
		Category:   domain.DefaultCategory,
		Authors:    []string{},
		Tags:       []string{},
		AddedDate:  time.Now().UTC(),
	}
	if meta != nil {
		paper.Title = meta.Title
		paper.Authors = meta.Authors
		paper.Abstract = meta.Abstract
		paper.PublishedDate = meta.PublishedDate
	}
	paper.ExtractedMarkdown = &formatted
	if paper.Title == "" {
		paper.Title = markdown.TitleFromText(formatted, defaultTitle)
	}

	applyAnalysis(paper, u.analysis.Analyze(ctx, ownerID, formatted))

	created, existing, err := u.paperRepo.Insert(paper)
	if err != nil {
		return nil, false, err
	}
	if !created {
		return existing, false, nil
	}
	return paper, true, nil
}

// AddByUpload ingests a user-supplied PDF. Uploads skip metadata lookup and
// AI enrichment; the caller annotates later if they want analysis. A
// non-empty title overrides the one derived from the extracted text.
func (u *IngestUsecase) AddByUpload(ctx context.Context, ownerID uuid.UUID, filename, title string, data []byte) (*domain.Paper, error) {
	if len(data) == 0 || int64(len(data)) > u.cfg.MaxUploadBytes {
		return nil, ErrBadUpload
	}
	if !bytes.HasPrefix(data, []byte("%PDF-")) {
		return nil, ErrBadUpload
	}

	text, err := u.extractor.Extract(ctx, data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExtractionFailed, err)
	}

	formatted := markdown.Format(text)
	if utf8.RuneCountInString(formatted) < u.cfg.MinTextChars {
		return nil, ErrInsufficientText
	}

	id := uuid.New()
	if u.cfg.PDFDir != "" {
		if err := u.storePDF(id, data); err != nil {
			log.Printf("failed to store uploaded pdf %s: %v", id, err)
		}
	}

	if title == "" {
		fallback := strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))
		if fallback == "" || fallback == "." {
			fallback = defaultTitle
		}
		title = markdown.TitleFromText(formatted, fallback)
	}
	paper := &domain.Paper{
		ID:         id,
		OwnerID:    ownerID,
		SourceURL:  "upload://" + id.String(),
		SourceKind: domain.SourceUpload,
		Title:      title,
		Authors:    []string{},
		Category:   domain.DefaultCategory,
		Tags:       []string{},
		AddedDate:  time.Now().UTC(),
	}
	paper.ExtractedMarkdown = &formatted

	created, existing, err := u.paperRepo.Insert(paper)
	if err != nil {
		return nil, err
	}
	if !created {
		// Unreachable in practice: the upload URL embeds a fresh UUID.
		return existing, nil
	}
	return paper, nil
}

// fetchMetadata runs the provider for the resolved kind. Providers are
// advisory for everything except arXiv: an arXiv id that the API rejects is
// a bad identifier, while a failed PubMed or bioRxiv lookup falls back to
// scanning the landing page.
func (u *IngestUsecase) fetchMetadata(ctx context.Context, kind, providerID string) (*domain.PaperMeta, error) {
	provider, ok := u.providers[kind]
	if !ok || providerID == "" {
		return nil, nil
	}

	meta, err := provider.Fetch(ctx, providerID)
	if err != nil {
		if kind == domain.SourceArxiv {
			return nil, fmt.Errorf("%w: %v", ErrBadIdentifier, err)
		}
		log.Printf("%s metadata lookup failed for %q, falling back to page scan: %v", kind, providerID, err)
		return nil, nil
	}
	return meta, nil
}

func (u *IngestUsecase) storePDF(id uuid.UUID, data []byte) error {
	if err := os.MkdirAll(u.cfg.PDFDir, 0o755); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(u.cfg.PDFDir, id.String()+".pdf"), data, 0o644)
}

// applyAnalysis folds AI enrichment into the paper. A null analysis leaves
// the paper with its default category and no summary or rating.
func applyAnalysis(paper *domain.Paper, analysis *domain.Analysis) {
	if analysis == nil {
		return
	}

	if analysis.Summary != "" {
		summary := analysis.Summary
		if len(analysis.KeyFindings) > 0 {
			var b strings.Builder
			b.WriteString(summary)
			b.WriteString("\n\nKey findings:\n")
			for _, finding := range analysis.KeyFindings {
				b.WriteString("- ")
				b.WriteString(finding)
				b.WriteString("\n")
			}
			summary = strings.TrimRight(b.String(), "\n")
		}
		paper.Summary = &summary
	}
	if analysis.Rating >= 1 && analysis.Rating <= 10 {
		rating := analysis.Rating
		paper.Rating = &rating
	}
	if analysis.Category != "" {
		paper.Category = analysis.Category
	}
	if len(analysis.Tags) > 0 {
		paper.Tags = analysis.Tags
	}
}

const defaultTitle = "Untitled Paper"
