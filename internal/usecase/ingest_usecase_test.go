package usecase

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paperstack/backend/internal/domain"
)

const sampleText = `Attention Is All You Need

The dominant sequence transduction models are based on complex recurrent or
convolutional neural networks. We propose a new simple network architecture,
the Transformer, based solely on attention mechanisms.`

func newIngestFixture(repo *memPaperRepo, provider *fakeProvider, locator *fakeLocator, analyzer *fakeAnalyzer) (*IngestUsecase, *memUsageRepo) {
	usage := &memUsageRepo{}
	providers := []MetadataProvider{}
	if provider != nil {
		providers = append(providers, provider)
	}
	u := NewIngestUsecase(
		repo,
		providers,
		locator,
		&fakeDownloader{data: []byte("%PDF-1.5 fake")},
		&fakeExtractor{text: sampleText},
		NewAnalysisEngine(analyzer, usage),
		IngestConfig{MinTextChars: 50},
	)
	return u, usage
}

func TestAddByURLWithProviderMetadata(t *testing.T) {
	owner := uuid.New()
	repo := &memPaperRepo{}
	provider := &fakeProvider{
		name: domain.SourceArxiv,
		meta: &domain.PaperMeta{
			Source:   domain.SourceArxiv,
			Title:    "Attention Is All You Need",
			Authors:  []string{"Vaswani, A."},
			Abstract: "We propose the Transformer.",
			PDFURL:   "https://arxiv.org/pdf/1706.03762.pdf",
		},
	}
	analyzer := &fakeAnalyzer{analysis: &domain.Analysis{
		Summary:      "Introduces the Transformer.",
		Rating:       9,
		Category:     "Machine Learning",
		Tags:         []string{"attention"},
		KeyFindings:  []string{"Attention suffices."},
		CostEstimate: 0.02,
	}}
	locator := &fakeLocator{}
	u, usage := newIngestFixture(repo, provider, locator, analyzer)

	paper, created, err := u.AddByURL(context.Background(), owner, "https://arxiv.org/abs/1706.03762")
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "Attention Is All You Need", paper.Title)
	assert.Equal(t, domain.SourceArxiv, paper.SourceKind)
	assert.Equal(t, "1706.03762", paper.ProviderID)
	assert.Equal(t, "https://arxiv.org/pdf/1706.03762.pdf", paper.PDFURL)
	assert.Equal(t, "Machine Learning", paper.Category)
	require.NotNil(t, paper.Rating)
	assert.Equal(t, 9, *paper.Rating)
	require.NotNil(t, paper.Summary)
	assert.Contains(t, *paper.Summary, "Key findings:")
	assert.Equal(t, 0, locator.calls, "provider metadata skips the page scan")
	assert.Equal(t, []string{domain.ActionIngestionAnalysis}, usage.actions())
}

func TestAddByURLIdempotent(t *testing.T) {
	owner := uuid.New()
	repo := &memPaperRepo{}
	analyzer := &fakeAnalyzer{analysis: &domain.Analysis{Summary: "s", Rating: 5, Category: "X"}}
	provider := &fakeProvider{name: domain.SourceArxiv, meta: &domain.PaperMeta{Title: "T", PDFURL: "https://arxiv.org/pdf/1.pdf"}}
	u, _ := newIngestFixture(repo, provider, &fakeLocator{}, analyzer)

	first, created, err := u.AddByURL(context.Background(), owner, "https://arxiv.org/abs/1706.03762")
	require.NoError(t, err)
	require.True(t, created)

	second, created, err := u.AddByURL(context.Background(), owner, "https://arxiv.org/abs/1706.03762")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 1, analyzer.calls, "duplicate submit must not re-run analysis")
}

func TestAddByURLConcurrentDuplicates(t *testing.T) {
	owner := uuid.New()
	repo := &memPaperRepo{}
	provider := &fakeProvider{name: domain.SourceArxiv, meta: &domain.PaperMeta{Title: "T", PDFURL: "https://arxiv.org/pdf/1.pdf"}}
	u, _ := newIngestFixture(repo, provider, &fakeLocator{}, &fakeAnalyzer{analysis: &domain.Analysis{Category: "X"}})

	const n = 8
	var wg sync.WaitGroup
	createdCount := make(chan bool, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, created, err := u.AddByURL(context.Background(), owner, "https://arxiv.org/abs/1706.03762")
			assert.NoError(t, err)
			createdCount <- created
		}()
	}
	wg.Wait()
	close(createdCount)

	creations := 0
	for created := range createdCount {
		if created {
			creations++
		}
	}
	assert.Equal(t, 1, creations, "exactly one call wins the insert")
	assert.Len(t, repo.papers, 1)
}

func TestAddByURLBadIdentifier(t *testing.T) {
	u, _ := newIngestFixture(&memPaperRepo{}, nil, &fakeLocator{}, &fakeAnalyzer{})

	_, _, err := u.AddByURL(context.Background(), uuid.New(), "not a url at all")
	assert.ErrorIs(t, err, ErrBadIdentifier)
}

func TestAddByURLArxivFetchFailureIsBadIdentifier(t *testing.T) {
	provider := &fakeProvider{name: domain.SourceArxiv, err: assert.AnError}
	locator := &fakeLocator{pdfURL: "https://example.org/x.pdf"}
	u, _ := newIngestFixture(&memPaperRepo{}, provider, locator, &fakeAnalyzer{})

	_, _, err := u.AddByURL(context.Background(), uuid.New(), "https://arxiv.org/abs/1706.03762")
	assert.ErrorIs(t, err, ErrBadIdentifier)
	assert.Equal(t, 0, locator.calls, "arxiv never falls back to page scan")
}

func TestAddByURLPubmedFetchFailureFallsBack(t *testing.T) {
	provider := &fakeProvider{name: domain.SourcePubmed, err: assert.AnError}
	locator := &fakeLocator{pdfURL: "https://example.org/paper.pdf"}
	u, _ := newIngestFixture(&memPaperRepo{}, provider, locator, &fakeAnalyzer{analysis: &domain.Analysis{Category: "X"}})

	paper, created, err := u.AddByURL(context.Background(), uuid.New(), "https://pubmed.ncbi.nlm.nih.gov/31452104/")
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, 1, locator.calls)
	assert.Equal(t, "https://example.org/paper.pdf", paper.PDFURL)
	assert.Equal(t, "Attention Is All You Need", paper.Title, "title falls back to the first text line")
}

func TestAddByURLNoPDFFound(t *testing.T) {
	u, _ := newIngestFixture(&memPaperRepo{}, nil, &fakeLocator{}, &fakeAnalyzer{})

	_, _, err := u.AddByURL(context.Background(), uuid.New(), "https://www.semanticscholar.org/paper/abc123")
	assert.ErrorIs(t, err, ErrNoPDFFound)
}

func TestAddByURLInsufficientText(t *testing.T) {
	usage := &memUsageRepo{}
	analyzer := &fakeAnalyzer{analysis: &domain.Analysis{Category: "X"}}
	u := NewIngestUsecase(
		&memPaperRepo{},
		nil,
		&fakeLocator{pdfURL: "https://example.org/x.pdf"},
		&fakeDownloader{data: []byte("%PDF-")},
		&fakeExtractor{text: "scanned garbage"},
		NewAnalysisEngine(analyzer, usage),
		IngestConfig{MinTextChars: 100},
	)

	_, _, err := u.AddByURL(context.Background(), uuid.New(), "https://scholar.google.com/scholar?q=x")
	assert.ErrorIs(t, err, ErrInsufficientText)
	assert.Equal(t, 0, analyzer.calls, "analysis never runs on rejected text")
}

func TestAddByUploadInsufficientText(t *testing.T) {
	repo := &memPaperRepo{}
	analyzer := &fakeAnalyzer{analysis: &domain.Analysis{Category: "X"}}
	u := NewIngestUsecase(
		repo,
		nil,
		&fakeLocator{},
		&fakeDownloader{},
		&fakeExtractor{text: "too short"},
		NewAnalysisEngine(analyzer, &memUsageRepo{}),
		IngestConfig{MinTextChars: 100},
	)

	_, err := u.AddByUpload(context.Background(), uuid.New(), "scan.pdf", "", []byte("%PDF-1.4"))
	assert.ErrorIs(t, err, ErrInsufficientText)
	assert.Empty(t, repo.papers, "rejected uploads must not persist a row")
}

func TestAddByURLDegradedAnalysisStillSaves(t *testing.T) {
	owner := uuid.New()
	repo := &memPaperRepo{}
	provider := &fakeProvider{name: domain.SourceArxiv, meta: &domain.PaperMeta{Title: "T", PDFURL: "https://arxiv.org/pdf/1.pdf"}}
	analyzer := &fakeAnalyzer{err: assert.AnError}
	u, usage := newIngestFixture(repo, provider, &fakeLocator{}, analyzer)

	paper, created, err := u.AddByURL(context.Background(), owner, "https://arxiv.org/abs/1706.03762")
	require.NoError(t, err)
	assert.True(t, created)
	assert.Nil(t, paper.Summary)
	assert.Nil(t, paper.Rating)
	assert.Equal(t, domain.DefaultCategory, paper.Category)
	assert.Empty(t, usage.actions(), "degraded analysis is not billed")
}

func TestAddByUpload(t *testing.T) {
	owner := uuid.New()
	repo := &memPaperRepo{}
	analyzer := &fakeAnalyzer{analysis: &domain.Analysis{Summary: "s"}}
	usage := &memUsageRepo{}
	u := NewIngestUsecase(
		repo,
		nil,
		&fakeLocator{},
		&fakeDownloader{},
		&fakeExtractor{text: sampleText},
		NewAnalysisEngine(analyzer, usage),
		IngestConfig{MinTextChars: 50, PDFDir: t.TempDir()},
	)

	paper, err := u.AddByUpload(context.Background(), owner, "attention.pdf", "", []byte("%PDF-1.4 content"))
	require.NoError(t, err)
	assert.Equal(t, domain.SourceUpload, paper.SourceKind)
	assert.True(t, strings.HasPrefix(paper.SourceURL, "upload://"))
	assert.Equal(t, "Attention Is All You Need", paper.Title)
	assert.Nil(t, paper.Summary)
	assert.Equal(t, 0, analyzer.calls, "uploads skip analysis")
}

func TestAddByUploadExplicitTitleWins(t *testing.T) {
	u, _ := newIngestFixture(&memPaperRepo{}, nil, &fakeLocator{}, &fakeAnalyzer{})

	paper, err := u.AddByUpload(context.Background(), uuid.New(), "scan0001.pdf", "My Reading Copy", []byte("%PDF-1.4"))
	require.NoError(t, err)
	assert.Equal(t, "My Reading Copy", paper.Title)
}

func TestAddByUploadRejectsNonPDF(t *testing.T) {
	u, _ := newIngestFixture(&memPaperRepo{}, nil, &fakeLocator{}, &fakeAnalyzer{})

	_, err := u.AddByUpload(context.Background(), uuid.New(), "notes.txt", "", []byte("plain text"))
	assert.ErrorIs(t, err, ErrBadUpload)

	_, err = u.AddByUpload(context.Background(), uuid.New(), "empty.pdf", "", nil)
	assert.ErrorIs(t, err, ErrBadUpload)
}

func TestAddByUploadRejectsOversize(t *testing.T) {
	u := NewIngestUsecase(
		&memPaperRepo{}, nil, &fakeLocator{}, &fakeDownloader{},
		&fakeExtractor{text: sampleText},
		NewAnalysisEngine(nil, nil),
		IngestConfig{MinTextChars: 10, MaxUploadBytes: 8},
	)

	_, err := u.AddByUpload(context.Background(), uuid.New(), "big.pdf", "", []byte("%PDF-1.4 too large"))
	assert.ErrorIs(t, err, ErrBadUpload)
}
