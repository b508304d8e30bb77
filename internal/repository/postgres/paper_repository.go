package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/paperstack/backend/internal/domain"
)

const paperColumns = `
	id, owner_id, source_url, source_kind, provider_id, pdf_url,
	title, authors, abstract, extracted_markdown, summary, rating,
	category, tags, published_date, added_date, is_read
`

type PaperRepository struct {
	db *pgxpool.Pool
}

func NewPaperRepository(db *pgxpool.Pool) *PaperRepository {
	return &PaperRepository{db: db}
}

// Insert persists the paper unless the owner already holds the same
// source_url. The unique index makes the check-and-insert atomic: on
// conflict no row is written and the existing one is returned instead.
func (r *PaperRepository) Insert(paper *domain.Paper) (bool, *domain.Paper, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	query := `
		INSERT INTO papers (id, owner_id, source_url, source_kind, provider_id, pdf_url,
			title, authors, abstract, extracted_markdown, summary, rating,
			category, tags, published_date, added_date, is_read)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		ON CONFLICT (owner_id, source_url) DO NOTHING
		RETURNING id
	`

	if paper.ID == uuid.Nil {
		paper.ID = uuid.New()
	}
	if paper.AddedDate.IsZero() {
		paper.AddedDate = time.Now().UTC()
	}
	if paper.Authors == nil {
		paper.Authors = []string{}
	}
	if paper.Tags == nil {
		paper.Tags = []string{}
	}

	err := r.db.QueryRow(ctx, query,
		paper.ID,
		paper.OwnerID,
		paper.SourceURL,
		paper.SourceKind,
		paper.ProviderID,
		paper.PDFURL,
		paper.Title,
		paper.Authors,
		paper.Abstract,
		paper.ExtractedMarkdown,
		paper.Summary,
		paper.Rating,
		paper.Category,
		paper.Tags,
		paper.PublishedDate,
		paper.AddedDate,
		paper.IsRead,
	).Scan(&paper.ID)
	if errors.Is(err, pgx.ErrNoRows) {
		existing, ferr := r.FindByOwnerAndURL(paper.OwnerID, paper.SourceURL)
		if ferr != nil {
			return false, nil, ferr
		}
		if existing == nil {
			// The conflicting row vanished between statements; surface the
			// conflict rather than retrying forever.
			return false, nil, errors.New("paper insert conflicted with a concurrently deleted row")
		}
		return false, existing, nil
	}
	if err != nil {
		return false, nil, err
	}
	return true, nil, nil
}

func (r *PaperRepository) FindByOwnerAndURL(ownerID uuid.UUID, sourceURL string) (*domain.Paper, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	query := `SELECT ` + paperColumns + ` FROM papers WHERE owner_id = $1 AND source_url = $2`
	return r.scanOne(r.db.QueryRow(ctx, query, ownerID, sourceURL))
}

func (r *PaperRepository) GetByID(ownerID, id uuid.UUID) (*domain.Paper, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	query := `SELECT ` + paperColumns + ` FROM papers WHERE owner_id = $1 AND id = $2`
	return r.scanOne(r.db.QueryRow(ctx, query, ownerID, id))
}

func (r *PaperRepository) ListByOwner(ownerID uuid.UUID, limit, offset int) ([]*domain.Paper, int, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM papers WHERE owner_id = $1`, ownerID).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `
		SELECT ` + paperColumns + `
		FROM papers
		WHERE owner_id = $1
		ORDER BY added_date DESC, id
		LIMIT $2 OFFSET $3
	`
	rows, err := r.db.Query(ctx, query, ownerID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var papers []*domain.Paper
	for rows.Next() {
		paper, err := scanPaper(rows)
		if err != nil {
			return nil, 0, err
		}
		papers = append(papers, paper)
	}
	return papers, total, rows.Err()
}

func (r *PaperRepository) SetRead(ownerID, id uuid.UUID, isRead bool) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	query := `UPDATE papers SET is_read = $3 WHERE owner_id = $1 AND id = $2`
	_, err := r.db.Exec(ctx, query, ownerID, id, isRead)
	return err
}

// Delete removes the paper; annotations go with it via ON DELETE CASCADE.
func (r *PaperRepository) Delete(ownerID, id uuid.UUID) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	query := `DELETE FROM papers WHERE owner_id = $1 AND id = $2`
	_, err := r.db.Exec(ctx, query, ownerID, id)
	return err
}

func (r *PaperRepository) CountAddedBetween(ownerID uuid.UUID, from, to time.Time) (int, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	query := `SELECT COUNT(*) FROM papers WHERE owner_id = $1 AND added_date >= $2 AND added_date < $3`
	var count int
	err := r.db.QueryRow(ctx, query, ownerID, from, to).Scan(&count)
	return count, err
}

func (r *PaperRepository) scanOne(row pgx.Row) (*domain.Paper, error) {
	paper, err := scanPaper(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return paper, nil
}

func scanPaper(row pgx.Row) (*domain.Paper, error) {
	paper := &domain.Paper{}
	err := row.Scan(
		&paper.ID,
		&paper.OwnerID,
		&paper.SourceURL,
		&paper.SourceKind,
		&paper.ProviderID,
		&paper.PDFURL,
		&paper.Title,
		&paper.Authors,
		&paper.Abstract,
		&paper.ExtractedMarkdown,
		&paper.Summary,
		&paper.Rating,
		&paper.Category,
		&paper.Tags,
		&paper.PublishedDate,
		&paper.AddedDate,
		&paper.IsRead,
	)
	if err != nil {
		return nil, err
	}
	return paper, nil
}
