package usecase

import (
	"context"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paperstack/backend/internal/domain"
	"github.com/paperstack/backend/pkg/claude"
)

func seedPaper(repo *memPaperRepo, owner uuid.UUID, text *string) *domain.Paper {
	paper := &domain.Paper{
		ID:                uuid.New(),
		OwnerID:           owner,
		SourceURL:         "https://arxiv.org/abs/1706.03762",
		SourceKind:        domain.SourceArxiv,
		Title:             "Attention Is All You Need",
		ExtractedMarkdown: text,
		AddedDate:         time.Now().UTC(),
	}
	repo.papers = append(repo.papers, paper)
	return paper
}

func TestChatRecordsUsage(t *testing.T) {
	owner := uuid.New()
	repo := &memPaperRepo{}
	paper := seedPaper(repo, owner, strPtr("The Transformer architecture."))
	usage := &memUsageRepo{}
	u := NewChatUsecase(repo, &memAnnotationRepo{}, usage, &fakeChatter{reply: "It introduces attention.", cost: 0.01})

	reply, err := u.Chat(context.Background(), owner, paper.ID, []claude.Message{{Role: "user", Content: "What is this about?"}})
	require.NoError(t, err)
	assert.Equal(t, "It introduces attention.", reply)
	assert.Equal(t, []string{domain.ActionChat}, usage.actions())
}

func TestChatUnknownPaper(t *testing.T) {
	u := NewChatUsecase(&memPaperRepo{}, &memAnnotationRepo{}, &memUsageRepo{}, &fakeChatter{})

	_, err := u.Chat(context.Background(), uuid.New(), uuid.New(), []claude.Message{{Role: "user", Content: "hi"}})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestChatWithoutExtractedText(t *testing.T) {
	owner := uuid.New()
	repo := &memPaperRepo{}
	paper := seedPaper(repo, owner, nil)
	u := NewChatUsecase(repo, &memAnnotationRepo{}, &memUsageRepo{}, &fakeChatter{})

	_, err := u.Chat(context.Background(), owner, paper.ID, []claude.Message{{Role: "user", Content: "hi"}})
	assert.ErrorIs(t, err, ErrNoContent)
}

func TestChatIsScopedToOwner(t *testing.T) {
	repo := &memPaperRepo{}
	paper := seedPaper(repo, uuid.New(), strPtr("text"))
	u := NewChatUsecase(repo, &memAnnotationRepo{}, &memUsageRepo{}, &fakeChatter{})

	_, err := u.Chat(context.Background(), uuid.New(), paper.ID, []claude.Message{{Role: "user", Content: "hi"}})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCreateAnnotationWithAnswer(t *testing.T) {
	owner := uuid.New()
	repo := &memPaperRepo{}
	paper := seedPaper(repo, owner, strPtr("The Transformer architecture."))
	annotations := &memAnnotationRepo{}
	usage := &memUsageRepo{}
	u := NewChatUsecase(repo, annotations, usage, &fakeChatter{reply: "Eight heads.", cost: 0.005})

	annotation, err := u.CreateAnnotation(context.Background(), owner, paper.ID, &AnnotationInput{
		SelectedText: strPtr("multi-head attention"),
		Note:         strPtr("How many heads does the base model use?"),
	})
	require.NoError(t, err)
	require.NotNil(t, annotation.AIResponse)
	assert.Equal(t, "Eight heads.", *annotation.AIResponse)
	assert.Equal(t, []string{domain.ActionAnnotationAnswer}, usage.actions())
	assert.Len(t, annotations.annotations, 1)
}

func TestCreateAnnotationSurvivesAIFailure(t *testing.T) {
	owner := uuid.New()
	repo := &memPaperRepo{}
	paper := seedPaper(repo, owner, strPtr("text"))
	annotations := &memAnnotationRepo{}
	u := NewChatUsecase(repo, annotations, &memUsageRepo{}, &fakeChatter{err: assert.AnError})

	annotation, err := u.CreateAnnotation(context.Background(), owner, paper.ID, &AnnotationInput{Note: strPtr("why?")})
	require.NoError(t, err)
	assert.Nil(t, annotation.AIResponse)
	assert.Len(t, annotations.annotations, 1)
}

func TestCreateAnnotationHighlightOnlySkipsAI(t *testing.T) {
	owner := uuid.New()
	repo := &memPaperRepo{}
	paper := seedPaper(repo, owner, strPtr("text"))
	usage := &memUsageRepo{}
	u := NewChatUsecase(repo, &memAnnotationRepo{}, usage, &fakeChatter{reply: "should not be called"})

	annotation, err := u.CreateAnnotation(context.Background(), owner, paper.ID, &AnnotationInput{SelectedText: strPtr("a passage")})
	require.NoError(t, err)
	assert.Nil(t, annotation.AIResponse)
	assert.Empty(t, usage.actions())
}

func TestCreateAnnotationRequiresContent(t *testing.T) {
	owner := uuid.New()
	repo := &memPaperRepo{}
	paper := seedPaper(repo, owner, strPtr("text"))
	u := NewChatUsecase(repo, &memAnnotationRepo{}, &memUsageRepo{}, &fakeChatter{})

	_, err := u.CreateAnnotation(context.Background(), owner, paper.ID, &AnnotationInput{})
	assert.ErrorIs(t, err, ErrBadAnnotation)
}

func TestGroundingPromptKeepsRuneBoundary(t *testing.T) {
	// Multibyte text longer than the grounding cap; the cut must not split
	// a rune and leave invalid UTF-8 at the tail.
	text := strings.Repeat("世", chatGroundingChars/3+10)
	paper := &domain.Paper{Title: "T", ExtractedMarkdown: &text}

	prompt := groundingPrompt(paper)
	assert.True(t, utf8.ValidString(prompt))
	assert.NotContains(t, prompt, text, "text beyond the cap must be dropped")
}

func TestListAnnotations(t *testing.T) {
	owner := uuid.New()
	repo := &memPaperRepo{}
	paper := seedPaper(repo, owner, strPtr("text"))
	annotations := &memAnnotationRepo{}
	u := NewChatUsecase(repo, annotations, &memUsageRepo{}, &fakeChatter{})

	_, err := u.CreateAnnotation(context.Background(), owner, paper.ID, &AnnotationInput{SelectedText: strPtr("x")})
	require.NoError(t, err)

	list, err := u.ListAnnotations(owner, paper.ID)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	_, err = u.ListAnnotations(uuid.New(), paper.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}
