package usecase

import (
	"errors"

	"github.com/google/uuid"

	"github.com/paperstack/backend/internal/domain"
	"github.com/paperstack/backend/internal/markdown"
)

var ErrNotFound = errors.New("paper not found")

// LibraryUsecase covers retrieval and bookkeeping of an owner's papers.
type LibraryUsecase struct {
	paperRepo domain.PaperRepository
}

func NewLibraryUsecase(paperRepo domain.PaperRepository) *LibraryUsecase {
	return &LibraryUsecase{paperRepo: paperRepo}
}

type LibraryResult struct {
	Papers []*domain.Paper `json:"papers"`
	Total  int             `json:"total"`
	Offset int             `json:"offset"`
	Limit  int             `json:"limit"`
}

func (u *LibraryUsecase) List(ownerID uuid.UUID, limit, offset int) (*LibraryResult, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}

	papers, total, err := u.paperRepo.ListByOwner(ownerID, limit, offset)
	if err != nil {
		return nil, err
	}

	// Listings stay light: the extracted text is only returned by Get.
	for _, p := range papers {
		p.ExtractedMarkdown = nil
	}

	return &LibraryResult{
		Papers: papers,
		Total:  total,
		Offset: offset,
		Limit:  limit,
	}, nil
}

// Get returns one paper. When render is set, the stored extracted text is
// returned with heading promotion applied for reader display.
func (u *LibraryUsecase) Get(ownerID, id uuid.UUID, render bool) (*domain.Paper, error) {
	paper, err := u.paperRepo.GetByID(ownerID, id)
	if err != nil {
		return nil, err
	}
	if paper == nil {
		return nil, ErrNotFound
	}

	if render && paper.ExtractedMarkdown != nil {
		rendered := markdown.Render(*paper.ExtractedMarkdown)
		paper.ExtractedMarkdown = &rendered
	}
	return paper, nil
}

func (u *LibraryUsecase) SetRead(ownerID, id uuid.UUID, isRead bool) (*domain.Paper, error) {
	paper, err := u.paperRepo.GetByID(ownerID, id)
	if err != nil {
		return nil, err
	}
	if paper == nil {
		return nil, ErrNotFound
	}

	if err := u.paperRepo.SetRead(ownerID, id, isRead); err != nil {
		return nil, err
	}
	paper.IsRead = isRead
	return paper, nil
}

func (u *LibraryUsecase) Delete(ownerID, id uuid.UUID) error {
	paper, err := u.paperRepo.GetByID(ownerID, id)
	if err != nil {
		return err
	}
	if paper == nil {
		return ErrNotFound
	}
	return u.paperRepo.Delete(ownerID, id)
}
