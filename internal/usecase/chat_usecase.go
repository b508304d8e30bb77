package usecase

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/paperstack/backend/internal/domain"
	"github.com/paperstack/backend/pkg/claude"
)

var (
	ErrNoContent     = errors.New("paper has no extracted text to chat about")
	ErrEmptyMessages = errors.New("chat requires at least one message")
	ErrBadAnnotation = errors.New("annotation needs selected text or a note")
	ErrAIUnavailable = errors.New("ai service is not configured")
)

// chatGroundingChars bounds how much of the paper is put in front of the
// model per conversation turn.
const chatGroundingChars = 100_000

// Chatter is the conversational AI capability behind chat and annotation
// answers.
type Chatter interface {
	Chat(ctx context.Context, system string, messages []claude.Message) (string, float64, error)
}

// ChatUsecase grounds conversations and annotations in a stored paper's
// extracted text.
type ChatUsecase struct {
	paperRepo      domain.PaperRepository
	annotationRepo domain.AnnotationRepository
	usageRepo      domain.UsageRepository
	chatter        Chatter
}

func NewChatUsecase(
	paperRepo domain.PaperRepository,
	annotationRepo domain.AnnotationRepository,
	usageRepo domain.UsageRepository,
	chatter Chatter,
) *ChatUsecase {
	return &ChatUsecase{
		paperRepo:      paperRepo,
		annotationRepo: annotationRepo,
		usageRepo:      usageRepo,
		chatter:        chatter,
	}
}

// Chat answers the latest user message in the context of the paper. The
// full message history travels with every call; no conversation state is
// kept server-side.
func (u *ChatUsecase) Chat(ctx context.Context, ownerID, paperID uuid.UUID, messages []claude.Message) (string, error) {
	if len(messages) == 0 {
		return "", ErrEmptyMessages
	}
	if u.chatter == nil {
		return "", ErrAIUnavailable
	}

	paper, err := u.paperRepo.GetByID(ownerID, paperID)
	if err != nil {
		return "", err
	}
	if paper == nil {
		return "", ErrNotFound
	}
	if paper.ExtractedMarkdown == nil || strings.TrimSpace(*paper.ExtractedMarkdown) == "" {
		return "", ErrNoContent
	}

	system := groundingPrompt(paper)
	reply, cost, err := u.chatter.Chat(ctx, system, messages)
	if err != nil {
		return "", err
	}

	u.recordUsage(ownerID, domain.ActionChat, cost)
	return reply, nil
}

type AnnotationInput struct {
	SelectedText *string `json:"selected_text,omitempty"`
	Note         *string `json:"note,omitempty"`
	PageNumber   *int    `json:"page_number,omitempty"`
}

// CreateAnnotation stores a highlight or note. When the note reads like a
// question and the paper has extracted text, an AI answer is attempted;
// a failed answer never fails the annotation itself.
func (u *ChatUsecase) CreateAnnotation(ctx context.Context, ownerID, paperID uuid.UUID, input *AnnotationInput) (*domain.Annotation, error) {
	if input == nil || (emptyPtr(input.SelectedText) && emptyPtr(input.Note)) {
		return nil, ErrBadAnnotation
	}

	paper, err := u.paperRepo.GetByID(ownerID, paperID)
	if err != nil {
		return nil, err
	}
	if paper == nil {
		return nil, ErrNotFound
	}

	annotation := &domain.Annotation{
		ID:           uuid.New(),
		PaperID:      paperID,
		OwnerID:      ownerID,
		SelectedText: input.SelectedText,
		Note:         input.Note,
		PageNumber:   input.PageNumber,
		CreatedAt:    time.Now().UTC(),
	}

	if !emptyPtr(input.Note) && u.chatter != nil &&
		paper.ExtractedMarkdown != nil && strings.TrimSpace(*paper.ExtractedMarkdown) != "" {
		if answer := u.answerAnnotation(ctx, ownerID, paper, annotation); answer != "" {
			annotation.AIResponse = &answer
		}
	}

	if err := u.annotationRepo.Insert(annotation); err != nil {
		return nil, err
	}
	return annotation, nil
}

func (u *ChatUsecase) ListAnnotations(ownerID, paperID uuid.UUID) ([]*domain.Annotation, error) {
	paper, err := u.paperRepo.GetByID(ownerID, paperID)
	if err != nil {
		return nil, err
	}
	if paper == nil {
		return nil, ErrNotFound
	}
	return u.annotationRepo.ListByPaper(ownerID, paperID)
}

func (u *ChatUsecase) answerAnnotation(ctx context.Context, ownerID uuid.UUID, paper *domain.Paper, annotation *domain.Annotation) string {
	var prompt strings.Builder
	if annotation.SelectedText != nil && *annotation.SelectedText != "" {
		fmt.Fprintf(&prompt, "Regarding this passage from the paper:\n%q\n\n", *annotation.SelectedText)
	}
	prompt.WriteString(*annotation.Note)

	reply, cost, err := u.chatter.Chat(ctx, groundingPrompt(paper), []claude.Message{
		{Role: "user", Content: prompt.String()},
	})
	if err != nil {
		log.Printf("annotation answer failed for paper %s: %v", paper.ID, err)
		return ""
	}

	u.recordUsage(ownerID, domain.ActionAnnotationAnswer, cost)
	return reply
}

func (u *ChatUsecase) recordUsage(ownerID uuid.UUID, action string, cost float64) {
	if u.usageRepo == nil {
		return
	}
	record := &domain.UsageRecord{
		OwnerID:      ownerID,
		Action:       action,
		CostEstimate: cost,
	}
	if err := u.usageRepo.Append(record); err != nil {
		log.Printf("failed to record %s usage for owner %s: %v", action, ownerID, err)
	}
}

func groundingPrompt(paper *domain.Paper) string {
	text := ""
	if paper.ExtractedMarkdown != nil {
		text = *paper.ExtractedMarkdown
	}
	if len(text) > chatGroundingChars {
		// Back off to a rune boundary so the tail stays valid UTF-8.
		cut := chatGroundingChars
		for cut > 0 && !utf8.RuneStart(text[cut]) {
			cut--
		}
		text = text[:cut]
	}
	return fmt.Sprintf(
		"You answer questions about the academic paper %q. Ground every answer in the paper text below. If the paper does not address something, say so.\n\n---\n%s",
		paper.Title, text,
	)
}

func emptyPtr(s *string) bool {
	return s == nil || strings.TrimSpace(*s) == ""
}
