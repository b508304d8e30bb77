package usecase

import (
	"context"
	"errors"
	"log"
	"sort"
	"strings"
	"sync"

	"github.com/paperstack/backend/internal/domain"
)

var (
	ErrEmptyQuery        = errors.New("search query cannot be empty")
	ErrSearchUnavailable = errors.New("all search providers failed")
)

// SearchBackend is one upstream paper index queried during federated search.
type SearchBackend interface {
	Name() string
	Search(ctx context.Context, query string, limit, offset int) ([]*domain.PaperMeta, int, error)
}

type SearchConfig struct {
	DefaultLimit int
	MaxLimit     int
}

// SearchUsecase fans a query out to every backend concurrently and merges
// whatever comes back. A failing backend loses its slice of the results but
// never fails the request as long as some backend answered.
type SearchUsecase struct {
	backends []SearchBackend
	cfg      SearchConfig
}

func NewSearchUsecase(backends []SearchBackend, cfg SearchConfig) *SearchUsecase {
	if cfg.DefaultLimit <= 0 {
		cfg.DefaultLimit = 10
	}
	if cfg.MaxLimit <= 0 {
		cfg.MaxLimit = 20
	}
	return &SearchUsecase{backends: backends, cfg: cfg}
}

type SearchResult struct {
	Papers []*domain.PaperMeta `json:"papers"`
	Total  int                 `json:"total"`
	Offset int                 `json:"offset"`
	Limit  int                 `json:"limit"`
}

func (u *SearchUsecase) Search(ctx context.Context, query string, limit, offset int) (*SearchResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}
	if limit <= 0 {
		limit = u.cfg.DefaultLimit
	}
	if limit > u.cfg.MaxLimit {
		limit = u.cfg.MaxLimit
	}
	if offset < 0 {
		offset = 0
	}

	type backendResult struct {
		papers []*domain.PaperMeta
		total  int
		err    error
	}

	// Indexed slots keep merge order deterministic regardless of which
	// backend finishes first.
	results := make([]backendResult, len(u.backends))
	var wg sync.WaitGroup
	for i, backend := range u.backends {
		wg.Add(1)
		go func(i int, backend SearchBackend) {
			defer wg.Done()
			papers, total, err := backend.Search(ctx, query, limit, offset)
			results[i] = backendResult{papers: papers, total: total, err: err}
		}(i, backend)
	}
	wg.Wait()

	merged := make([]*domain.PaperMeta, 0, limit*len(u.backends))
	total := 0
	failures := 0
	for i, res := range results {
		if res.err != nil {
			failures++
			log.Printf("search backend %s failed: %v", u.backends[i].Name(), res.err)
			continue
		}
		merged = append(merged, res.papers...)
		total += res.total
	}
	if len(u.backends) > 0 && failures == len(u.backends) {
		return nil, ErrSearchUnavailable
	}

	// Newest first; undated entries sink to the bottom.
	sort.SliceStable(merged, func(a, b int) bool {
		da, db := merged[a].PublishedDate, merged[b].PublishedDate
		if da == nil {
			return false
		}
		if db == nil {
			return true
		}
		return da.After(*db)
	})
	if len(merged) > limit {
		merged = merged[:limit]
	}

	return &SearchResult{
		Papers: merged,
		Total:  total,
		Offset: offset,
		Limit:  limit,
	}, nil
}
