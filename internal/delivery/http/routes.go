package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/paperstack/backend/internal/middleware"
)

func NewRouter(handler *Handler, authMiddleware *middleware.AuthMiddleware, allowedOrigins []string) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("OK"))
	})

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/papers", func(r chi.Router) {
			// Federated search is public; everything else is per-owner.
			r.Get("/search", handler.SearchPapers)

			r.Group(func(r chi.Router) {
				r.Use(authMiddleware.Authenticate)

				r.Post("/", handler.AddPaper)
				r.Post("/upload", handler.UploadPaper)
				r.Get("/", handler.ListPapers)

				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", handler.GetPaper)
					r.Patch("/", handler.UpdatePaper)
					r.Delete("/", handler.DeletePaper)
					r.Post("/chat", handler.ChatWithPaper)
					r.Post("/annotations", handler.CreateAnnotation)
					r.Get("/annotations", handler.ListAnnotations)
				})
			})
		})

		r.Group(func(r chi.Router) {
			r.Use(authMiddleware.Authenticate)
			r.Get("/usage", handler.GetUsage)
		})
	})

	return r
}
