// CLI for ingesting a single paper from the command line, mostly useful for
// smoke-testing the pipeline against real providers without running the API.
//
// Usage:
//
//	go run cmd/ingest/main.go \
//	  --url   https://arxiv.org/abs/1706.03762 \
//	  --owner 6f1c8f1a-0b0e-4f5a-9a3f-000000000000
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/paperstack/backend/internal/config"
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
	rawURL := flag.String("url", "", "paper URL to ingest")
	owner := flag.String("owner", "", "owner UUID")
	noAI := flag.Bool("no-ai", false, "skip AI analysis even when a key is configured")
	flag.Parse()

	if *rawURL == "" || *owner == "" {
		flag.Usage()
		os.Exit(2)
	}
	ownerID, err := uuid.Parse(*owner)
	if err != nil {
		log.Fatalf("invalid owner id: %v", err)
	}

	cfg := config.Load()

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, cfg.Database.URL)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	defer pool.Close()

	paperRepo := postgres.NewPaperRepository(pool)
	usageRepo := postgres.NewUsageRepository(pool)
	fetcher := pdffetch.NewClient(cfg.Ingest.DownloadTimeout, cfg.Ingest.UserAgent, cfg.Ingest.MaxPDFBytes)

	var analyzer usecase.Analyzer
	if cfg.Anthropic.APIKey != "" && !*noAI {
		analyzer = claude.NewClient(claude.Config{
			APIKey:             cfg.Anthropic.APIKey,
			Model:              cfg.Anthropic.Model,
			MaxTokens:          cfg.Anthropic.MaxTokens,
			Timeout:            cfg.Anthropic.Timeout,
			InputPricePerMTok:  cfg.Anthropic.InputPricePerMTok,
			OutputPricePerMTok: cfg.Anthropic.OutputPricePerMTok,
		})
	}

	ingest := usecase.NewIngestUsecase(
		paperRepo,
		[]usecase.MetadataProvider{
			arxiv.NewClient(cfg.Ingest.ProviderTimeout),
			pubmed.NewClient(cfg.Ingest.ProviderTimeout),
			biorxiv.NewClient(biorxiv.ServerBiorxiv, cfg.Ingest.ProviderTimeout),
			biorxiv.NewClient(biorxiv.ServerMedrxiv, cfg.Ingest.ProviderTimeout),
		},
		fetcher,
		fetcher,
		pdftext.NewExtractor(),
		usecase.NewAnalysisEngine(analyzer, usageRepo),
		usecase.IngestConfig{
			MinTextChars:   cfg.Ingest.MinTextChars,
			MaxUploadBytes: cfg.Ingest.MaxPDFBytes,
			PDFDir:         cfg.Ingest.PDFDir,
		},
	)

	paper, created, err := ingest.AddByURL(ctx, ownerID, *rawURL)
	if err != nil {
		log.Fatalf("ingestion failed: %v", err)
	}

	verb := "already stored as"
	if created {
		verb = "stored as"
	}
	fmt.Printf("%s %s: %q [%s]\n", verb, paper.ID, paper.Title, paper.Category)
}
