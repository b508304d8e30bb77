package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/paperstack/backend/internal/domain"
)

type AnnotationRepository struct {
	db *pgxpool.Pool
}

func NewAnnotationRepository(db *pgxpool.Pool) *AnnotationRepository {
	return &AnnotationRepository{db: db}
}

func (r *AnnotationRepository) Insert(annotation *domain.Annotation) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	query := `
		INSERT INTO annotations (id, paper_id, owner_id, selected_text, note, ai_response, page_number, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	if annotation.ID == uuid.Nil {
		annotation.ID = uuid.New()
	}
	if annotation.CreatedAt.IsZero() {
		annotation.CreatedAt = time.Now().UTC()
	}

	_, err := r.db.Exec(ctx, query,
		annotation.ID,
		annotation.PaperID,
		annotation.OwnerID,
		annotation.SelectedText,
		annotation.Note,
		annotation.AIResponse,
		annotation.PageNumber,
		annotation.CreatedAt,
	)
	return err
}

func (r *AnnotationRepository) ListByPaper(ownerID, paperID uuid.UUID) ([]*domain.Annotation, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	query := `
		SELECT id, paper_id, owner_id, selected_text, note, ai_response, page_number, created_at
		FROM annotations
		WHERE owner_id = $1 AND paper_id = $2
		ORDER BY created_at, id
	`

	rows, err := r.db.Query(ctx, query, ownerID, paperID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var annotations []*domain.Annotation
	for rows.Next() {
		a := &domain.Annotation{}
		err := rows.Scan(
			&a.ID,
			&a.PaperID,
			&a.OwnerID,
			&a.SelectedText,
			&a.Note,
			&a.AIResponse,
			&a.PageNumber,
			&a.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		annotations = append(annotations, a)
	}
	return annotations, rows.Err()
}
