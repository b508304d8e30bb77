package domain

import (
	"time"

	"github.com/google/uuid"
)

// Source kinds recognized by the resolver.
const (
	SourceArxiv   = "arxiv"
	SourcePubmed  = "pubmed"
	SourceBiorxiv = "biorxiv"
	SourceMedrxiv = "medrxiv"
	SourceArchive = "archive"
	SourceScholar = "scholar"
	SourceUpload  = "upload"
	SourceOther   = "other"
)

// DefaultCategory is applied when AI enrichment is absent or degraded.
const DefaultCategory = "Other"

type Paper struct {
	ID                uuid.UUID  `json:"id"`
	OwnerID           uuid.UUID  `json:"owner_id"`
	SourceURL         string     `json:"source_url"`
	SourceKind        string     `json:"source_kind"`
	ProviderID        string     `json:"provider_id,omitempty"`
	PDFURL            string     `json:"pdf_url,omitempty"`
	Title             string     `json:"title"`
	Authors           []string   `json:"authors"`
	Abstract          string     `json:"abstract,omitempty"`
	ExtractedMarkdown *string    `json:"extracted_markdown,omitempty"`
	Summary           *string    `json:"summary,omitempty"`
	Rating            *int       `json:"rating,omitempty"`
	Category          string     `json:"category"`
	Tags              []string   `json:"tags"`
	PublishedDate     *time.Time `json:"published_date,omitempty"`
	AddedDate         time.Time  `json:"added_date"`
	IsRead            bool       `json:"is_read"`
}

// PaperMeta is provider-supplied metadata for a paper that has not been
// ingested yet. Search results and the metadata-fetch stage both use it.
type PaperMeta struct {
	Source        string     `json:"source"`
	ExternalID    string     `json:"external_id"`
	Title         string     `json:"title"`
	Authors       []string   `json:"authors"`
	Abstract      string     `json:"abstract,omitempty"`
	PDFURL        string     `json:"pdf_url,omitempty"`
	PublishedDate *time.Time `json:"published_date,omitempty"`
}

// Analysis is the transient result of AI enrichment. It is folded into the
// Paper at save time and never persisted on its own.
type Analysis struct {
	Summary      string
	Rating       int
	Category     string
	Tags         []string
	KeyFindings  []string
	CostEstimate float64
}

type Annotation struct {
	ID           uuid.UUID `json:"id"`
	PaperID      uuid.UUID `json:"paper_id"`
	OwnerID      uuid.UUID `json:"owner_id"`
	SelectedText *string   `json:"selected_text,omitempty"`
	Note         *string   `json:"note,omitempty"`
	AIResponse   *string   `json:"ai_response,omitempty"`
	PageNumber   *int      `json:"page_number,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// Accounted AI actions.
const (
	ActionIngestionAnalysis = "ingestion-analysis"
	ActionChat              = "chat"
	ActionAnnotationAnswer  = "annotation-answer"
)

// UsageRecord accounts one AI call. Append-only.
type UsageRecord struct {
	ID           uuid.UUID `json:"id"`
	OwnerID      uuid.UUID `json:"owner_id"`
	Action       string    `json:"action"`
	CostEstimate float64   `json:"cost_estimate"`
	CreatedAt    time.Time `json:"created_at"`
}

// UsageTotals aggregates a billing period for one owner.
type UsageTotals struct {
	TotalPapers  int       `json:"total_papers"`
	TotalQueries int       `json:"total_queries"`
	CostEstimate float64   `json:"cost_estimate"`
	PeriodStart  time.Time `json:"period_start"`
	PeriodEnd    time.Time `json:"period_end"`
}

type PaperRepository interface {
	// Insert persists a new paper. When another paper already holds the
	// (owner_id, source_url) pair, it returns created=false and the
	// existing row instead; the check-and-insert is a single statement.
	Insert(paper *Paper) (created bool, existing *Paper, err error)
	FindByOwnerAndURL(ownerID uuid.UUID, sourceURL string) (*Paper, error)
	GetByID(ownerID, id uuid.UUID) (*Paper, error)
	ListByOwner(ownerID uuid.UUID, limit, offset int) ([]*Paper, int, error)
	SetRead(ownerID, id uuid.UUID, isRead bool) error
	// Delete cascades to annotations and collection memberships.
	Delete(ownerID, id uuid.UUID) error
	CountAddedBetween(ownerID uuid.UUID, from, to time.Time) (int, error)
}

type AnnotationRepository interface {
	Insert(annotation *Annotation) error
	ListByPaper(ownerID, paperID uuid.UUID) ([]*Annotation, error)
}

type UsageRepository interface {
	Append(record *UsageRecord) error
	// TotalsBetween returns the number of chat-type calls and the summed
	// cost estimate of all AI calls within [from, to).
	TotalsBetween(ownerID uuid.UUID, from, to time.Time) (queries int, cost float64, err error)
}
