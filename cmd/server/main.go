package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/paperstack/backend/internal/config"
	delivery "github.com/paperstack/backend/internal/delivery/http"
	"github.com/paperstack/backend/internal/middleware"
	"github.com/paperstack/backend/internal/pdftext"
	"github.com/paperstack/backend/internal/repository/postgres"
	"github.com/paperstack/backend/internal/usecase"
	"github.com/paperstack/backend/pkg/arxiv"
	"github.com/paperstack/backend/pkg/biorxiv"
	"github.com/paperstack/backend/pkg/claude"
	"github.com/paperstack/backend/pkg/pdffetch"
	"github.com/paperstack/backend/pkg/pubmed"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("Paperstack Backend Starting...")

	// Load configuration
	cfg := config.Load()
	log.Printf("Server configured on port %s", cfg.Server.Port)

	// Connect to PostgreSQL with retry
	var pool *pgxpool.Pool
	for attempt := 1; attempt <= 5; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		var err error
		pool, err = pgxpool.New(ctx, cfg.Database.URL)
		if err == nil {
			if pingErr := pool.Ping(ctx); pingErr == nil {
				cancel()
				log.Println("Connected to PostgreSQL")
				break
			} else {
				pool.Close()
				log.Printf("Attempt %d: Failed to ping database: %v", attempt, pingErr)
			}
		} else {
			log.Printf("Attempt %d: Failed to connect to database: %v", attempt, err)
		}
		cancel()
		if attempt == 5 {
			log.Fatalf("Could not connect to database after 5 attempts")
		}
		time.Sleep(time.Duration(attempt) * 2 * time.Second)
	}
	defer pool.Close()

	// Initialize repositories
	paperRepo := postgres.NewPaperRepository(pool)
	annotationRepo := postgres.NewAnnotationRepository(pool)
	usageRepo := postgres.NewUsageRepository(pool)

	// Initialize external API clients
	arxivClient := arxiv.NewClient(cfg.Ingest.ProviderTimeout)
	pubmedClient := pubmed.NewClient(cfg.Ingest.ProviderTimeout)
	biorxivClient := biorxiv.NewClient(biorxiv.ServerBiorxiv, cfg.Ingest.ProviderTimeout)
	medrxivClient := biorxiv.NewClient(biorxiv.ServerMedrxiv, cfg.Ingest.ProviderTimeout)
	fetcher := pdffetch.NewClient(cfg.Ingest.DownloadTimeout, cfg.Ingest.UserAgent, cfg.Ingest.MaxPDFBytes)
	extractor := pdftext.NewExtractor()

	var analyzer usecase.Analyzer
	var chatter usecase.Chatter
	if cfg.Anthropic.APIKey != "" {
		claudeClient := claude.NewClient(claude.Config{
			APIKey:             cfg.Anthropic.APIKey,
			Model:              cfg.Anthropic.Model,
			MaxTokens:          cfg.Anthropic.MaxTokens,
			Timeout:            cfg.Anthropic.Timeout,
			InputPricePerMTok:  cfg.Anthropic.InputPricePerMTok,
			OutputPricePerMTok: cfg.Anthropic.OutputPricePerMTok,
		})
		analyzer = claudeClient
		chatter = claudeClient
	} else {
		log.Println("ANTHROPIC_API_KEY not set; AI analysis and chat are disabled")
	}

	// Initialize usecases
	analysisEngine := usecase.NewAnalysisEngine(analyzer, usageRepo)
	ingestUsecase := usecase.NewIngestUsecase(
		paperRepo,
		[]usecase.MetadataProvider{arxivClient, pubmedClient, biorxivClient, medrxivClient},
		fetcher,
		fetcher,
		extractor,
		analysisEngine,
		usecase.IngestConfig{
			MinTextChars:   cfg.Ingest.MinTextChars,
			MaxUploadBytes: cfg.Ingest.MaxPDFBytes,
			PDFDir:         cfg.Ingest.PDFDir,
		},
	)
	libraryUsecase := usecase.NewLibraryUsecase(paperRepo)
	searchUsecase := usecase.NewSearchUsecase(
		[]usecase.SearchBackend{arxivClient, pubmedClient},
		usecase.SearchConfig{DefaultLimit: cfg.Search.DefaultLimit, MaxLimit: cfg.Search.MaxLimit},
	)
	chatUsecase := usecase.NewChatUsecase(paperRepo, annotationRepo, usageRepo, chatter)
	usageUsecase := usecase.NewUsageUsecase(paperRepo, usageRepo)

	// Initialize HTTP handler and middleware
	handler := delivery.NewHandler(ingestUsecase, libraryUsecase, searchUsecase, chatUsecase, usageUsecase, cfg.Ingest.MaxPDFBytes)
	authMiddleware := middleware.NewAuthMiddleware(cfg.JWT.Secret)

	// Create router
	router := delivery.NewRouter(handler, authMiddleware, cfg.CORS.AllowedOrigins)

	// Create HTTP server
	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start server in goroutine
	go func() {
		log.Printf("Server starting on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	fmt.Println()
	log.Println("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server stopped gracefully")
}
