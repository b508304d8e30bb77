package usecase

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/paperstack/backend/internal/domain"
)

var ErrBadPeriod = errors.New("period must look like YYYY-MM")

// UsageUsecase aggregates per-owner activity for one calendar month.
type UsageUsecase struct {
	paperRepo domain.PaperRepository
	usageRepo domain.UsageRepository
}

func NewUsageUsecase(paperRepo domain.PaperRepository, usageRepo domain.UsageRepository) *UsageUsecase {
	return &UsageUsecase{
		paperRepo: paperRepo,
		usageRepo: usageRepo,
	}
}

// GetUsage returns totals for the given "YYYY-MM" period, defaulting to the
// current month when period is empty. The window is [start, nextMonth) UTC.
func (u *UsageUsecase) GetUsage(ownerID uuid.UUID, period string) (*domain.UsageTotals, error) {
	var start time.Time
	if period == "" {
		now := time.Now().UTC()
		start = time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	} else {
		parsed, err := time.Parse("2006-01", period)
		if err != nil {
			return nil, ErrBadPeriod
		}
		start = parsed
	}
	end := start.AddDate(0, 1, 0)

	papers, err := u.paperRepo.CountAddedBetween(ownerID, start, end)
	if err != nil {
		return nil, err
	}
	queries, cost, err := u.usageRepo.TotalsBetween(ownerID, start, end)
	if err != nil {
		return nil, err
	}

	return &domain.UsageTotals{
		TotalPapers:  papers,
		TotalQueries: queries,
		CostEstimate: cost,
		PeriodStart:  start,
		PeriodEnd:    end,
	}, nil
}
