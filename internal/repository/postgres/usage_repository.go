package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/paperstack/backend/internal/domain"
)

type UsageRepository struct {
	db *pgxpool.Pool
}

func NewUsageRepository(db *pgxpool.Pool) *UsageRepository {
	return &UsageRepository{db: db}
}

func (r *UsageRepository) Append(record *domain.UsageRecord) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	query := `
		INSERT INTO usage_records (id, owner_id, action, cost_estimate, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`

	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}

	_, err := r.db.Exec(ctx, query,
		record.ID,
		record.OwnerID,
		record.Action,
		record.CostEstimate,
		record.CreatedAt,
	)
	return err
}

// TotalsBetween counts conversational calls and sums the cost of every AI
// call in [from, to). Ingestion analyses contribute cost but not queries.
func (r *UsageRepository) TotalsBetween(ownerID uuid.UUID, from, to time.Time) (int, float64, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	query := `
		SELECT
			COUNT(*) FILTER (WHERE action IN ($4, $5)),
			COALESCE(SUM(cost_estimate), 0)
		FROM usage_records
		WHERE owner_id = $1 AND created_at >= $2 AND created_at < $3
	`

	var queries int
	var cost float64
	err := r.db.QueryRow(ctx, query, ownerID, from, to,
		domain.ActionChat, domain.ActionAnnotationAnswer,
	).Scan(&queries, &cost)
	if err != nil {
		return 0, 0, err
	}
	return queries, cost, nil
}
