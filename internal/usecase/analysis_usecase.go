package usecase

import (
	"context"
	"log"

	"github.com/google/uuid"

	"github.com/paperstack/backend/internal/domain"
)

// Analyzer produces a structured analysis of extracted paper text.
type Analyzer interface {
	Analyze(ctx context.Context, text string) (*domain.Analysis, error)
}

// AnalysisEngine wraps an Analyzer with the degradation policy: enrichment
// must never block ingestion, so any failure yields a null analysis instead
// of an error. Successful calls are accounted in the usage ledger.
type AnalysisEngine struct {
	analyzer  Analyzer
	usageRepo domain.UsageRepository
}

func NewAnalysisEngine(analyzer Analyzer, usageRepo domain.UsageRepository) *AnalysisEngine {
	return &AnalysisEngine{
		analyzer:  analyzer,
		usageRepo: usageRepo,
	}
}

func (e *AnalysisEngine) Analyze(ctx context.Context, ownerID uuid.UUID, text string) *domain.Analysis {
	if e.analyzer == nil {
		return nullAnalysis()
	}

	analysis, err := e.analyzer.Analyze(ctx, text)
	if err != nil {
		log.Printf("analysis degraded for owner %s: %v", ownerID, err)
		return nullAnalysis()
	}
	if analysis == nil {
		return nullAnalysis()
	}

	if e.usageRepo != nil {
		record := &domain.UsageRecord{
			OwnerID:      ownerID,
			Action:       domain.ActionIngestionAnalysis,
			CostEstimate: analysis.CostEstimate,
		}
		if err := e.usageRepo.Append(record); err != nil {
			log.Printf("failed to record analysis usage for owner %s: %v", ownerID, err)
		}
	}

	return analysis
}

func nullAnalysis() *domain.Analysis {
	return &domain.Analysis{Category: domain.DefaultCategory}
}
