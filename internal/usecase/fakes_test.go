package usecase

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/paperstack/backend/internal/domain"
	"github.com/paperstack/backend/pkg/claude"
)

// In-memory repositories backing the usecase tests. Insert mirrors the
// postgres implementation's contract: one atomic check-and-insert keyed on
// (owner_id, source_url).

type memPaperRepo struct {
	mu     sync.Mutex
	papers []*domain.Paper
}

func (r *memPaperRepo) Insert(paper *domain.Paper) (bool, *domain.Paper, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.papers {
		if p.OwnerID == paper.OwnerID && p.SourceURL == paper.SourceURL {
			return false, p, nil
		}
	}
	if paper.ID == uuid.Nil {
		paper.ID = uuid.New()
	}
	r.papers = append(r.papers, paper)
	return true, nil, nil
}

func (r *memPaperRepo) FindByOwnerAndURL(ownerID uuid.UUID, sourceURL string) (*domain.Paper, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.papers {
		if p.OwnerID == ownerID && p.SourceURL == sourceURL {
			return p, nil
		}
	}
	return nil, nil
}

func (r *memPaperRepo) GetByID(ownerID, id uuid.UUID) (*domain.Paper, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.papers {
		if p.OwnerID == ownerID && p.ID == id {
			return p, nil
		}
	}
	return nil, nil
}

func (r *memPaperRepo) ListByOwner(ownerID uuid.UUID, limit, offset int) ([]*domain.Paper, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var owned []*domain.Paper
	for _, p := range r.papers {
		if p.OwnerID == ownerID {
			owned = append(owned, p)
		}
	}
	total := len(owned)
	if offset >= total {
		return nil, total, nil
	}
	owned = owned[offset:]
	if len(owned) > limit {
		owned = owned[:limit]
	}
	return owned, total, nil
}

func (r *memPaperRepo) SetRead(ownerID, id uuid.UUID, isRead bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.papers {
		if p.OwnerID == ownerID && p.ID == id {
			p.IsRead = isRead
		}
	}
	return nil
}

func (r *memPaperRepo) Delete(ownerID, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, p := range r.papers {
		if p.OwnerID == ownerID && p.ID == id {
			r.papers = append(r.papers[:i], r.papers[i+1:]...)
			return nil
		}
	}
	return nil
}

func (r *memPaperRepo) CountAddedBetween(ownerID uuid.UUID, from, to time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	count := 0
	for _, p := range r.papers {
		if p.OwnerID == ownerID && !p.AddedDate.Before(from) && p.AddedDate.Before(to) {
			count++
		}
	}
	return count, nil
}

type memAnnotationRepo struct {
	mu          sync.Mutex
	annotations []*domain.Annotation
}

func (r *memAnnotationRepo) Insert(a *domain.Annotation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.annotations = append(r.annotations, a)
	return nil
}

func (r *memAnnotationRepo) ListByPaper(ownerID, paperID uuid.UUID) ([]*domain.Annotation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Annotation
	for _, a := range r.annotations {
		if a.OwnerID == ownerID && a.PaperID == paperID {
			out = append(out, a)
		}
	}
	return out, nil
}

type memUsageRepo struct {
	mu      sync.Mutex
	records []*domain.UsageRecord
}

func (r *memUsageRepo) Append(record *domain.UsageRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}
	r.records = append(r.records, record)
	return nil
}

func (r *memUsageRepo) TotalsBetween(ownerID uuid.UUID, from, to time.Time) (int, float64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	queries := 0
	cost := 0.0
	for _, rec := range r.records {
		if rec.OwnerID != ownerID || rec.CreatedAt.Before(from) || !rec.CreatedAt.Before(to) {
			continue
		}
		cost += rec.CostEstimate
		if rec.Action == domain.ActionChat || rec.Action == domain.ActionAnnotationAnswer {
			queries++
		}
	}
	return queries, cost, nil
}

func (r *memUsageRepo) actions() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, rec := range r.records {
		out = append(out, rec.Action)
	}
	return out
}

// Pipeline stage fakes.

type fakeProvider struct {
	name string
	meta *domain.PaperMeta
	err  error
}

func (p *fakeProvider) Name() string { return p.name }

func (p *fakeProvider) Fetch(ctx context.Context, id string) (*domain.PaperMeta, error) {
	return p.meta, p.err
}

type fakeLocator struct {
	pdfURL string
	err    error
	calls  int
}

func (l *fakeLocator) Locate(ctx context.Context, pageURL string) (string, error) {
	l.calls++
	return l.pdfURL, l.err
}

type fakeDownloader struct {
	data []byte
	err  error
}

func (d *fakeDownloader) Download(ctx context.Context, pdfURL string) ([]byte, error) {
	return d.data, d.err
}

type fakeExtractor struct {
	text string
	err  error
}

func (e *fakeExtractor) Extract(ctx context.Context, data []byte) (string, error) {
	return e.text, e.err
}

type fakeAnalyzer struct {
	mu       sync.Mutex
	analysis *domain.Analysis
	err      error
	calls    int
}

func (a *fakeAnalyzer) Analyze(ctx context.Context, text string) (*domain.Analysis, error) {
	a.mu.Lock()
	a.calls++
	a.mu.Unlock()
	return a.analysis, a.err
}

type fakeChatter struct {
	reply string
	cost  float64
	err   error
}

func (c *fakeChatter) Chat(ctx context.Context, system string, messages []claude.Message) (string, float64, error) {
	return c.reply, c.cost, c.err
}

func strPtr(s string) *string { return &s }
