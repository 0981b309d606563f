package businessflow

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog"
	"github.com/treebio/treebio/app/dto"
	"github.com/treebio/treebio/models"
	"github.com/treebio/treebio/repository"
	"github.com/treebio/treebio/utils"
	"gorm.io/gorm"
)

// LinkFlow manages a user's outbound links. Click counters are never written here.
type LinkFlow interface {
	CreateLink(ctx context.Context, userID uint, req *dto.CreateLinkRequest) (*dto.LinkResponse, error)
	ListLinks(ctx context.Context, userID uint) ([]dto.LinkResponse, error)
	UpdateLink(ctx context.Context, userID, linkID uint, req *dto.UpdateLinkRequest) (*dto.LinkResponse, error)
	DeleteLink(ctx context.Context, userID, linkID uint) error
}

type LinkFlowImpl struct {
	linkRepo repository.LinkRepository
	cache    SummaryInvalidator
	logger   zerolog.Logger
}

func NewLinkFlow(linkRepo repository.LinkRepository, cache SummaryInvalidator, logger zerolog.Logger) LinkFlow {
	return &LinkFlowImpl{
		linkRepo: linkRepo,
		cache:    cache,
		logger:   logger.With().Str("flow", "link").Logger(),
	}
}

func (f *LinkFlowImpl) CreateLink(ctx context.Context, userID uint, req *dto.CreateLinkRequest) (*dto.LinkResponse, error) {
	now := utils.UTCNow()
	link := &models.Link{
		UserID:      userID,
		Title:       strings.TrimSpace(req.Title),
		URL:         strings.TrimSpace(req.URL),
		Description: req.Description,
		ClickCount:  0,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := f.linkRepo.Save(ctx, link); err != nil {
		return nil, NewBusinessError("LINK_CREATE_FAILED", "Failed to create link", err)
	}

	f.invalidate(ctx, userID)
	resp := ToLinkResponse(*link)
	return &resp, nil
}

func (f *LinkFlowImpl) ListLinks(ctx context.Context, userID uint) ([]dto.LinkResponse, error) {
	links, err := f.linkRepo.ByFilter(ctx, models.LinkFilter{UserID: &userID}, "created_at DESC, id DESC", 0, 0)
	if err != nil {
		return nil, NewBusinessError("LINK_LIST_FAILED", "Failed to list links", err)
	}
	out := make([]dto.LinkResponse, 0, len(links))
	for _, l := range links {
		out = append(out, ToLinkResponse(*l))
	}
	return out, nil
}

func (f *LinkFlowImpl) UpdateLink(ctx context.Context, userID, linkID uint, req *dto.UpdateLinkRequest) (*dto.LinkResponse, error) {
	link, err := f.ownedLink(ctx, userID, linkID)
	if err != nil {
		return nil, err
	}

	link.Title = strings.TrimSpace(req.Title)
	link.URL = strings.TrimSpace(req.URL)
	link.Description = req.Description
	if err := f.linkRepo.Update(ctx, link); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, NewBusinessError("LINK_NOT_FOUND", "Link not found", ErrLinkNotFound)
		}
		return nil, NewBusinessError("LINK_UPDATE_FAILED", "Failed to update link", err)
	}

	f.invalidate(ctx, userID)
	resp := ToLinkResponse(*link)
	return &resp, nil
}

func (f *LinkFlowImpl) DeleteLink(ctx context.Context, userID, linkID uint) error {
	if _, err := f.ownedLink(ctx, userID, linkID); err != nil {
		return err
	}
	deleted, err := f.linkRepo.DeleteByOwner(ctx, linkID, userID)
	if err != nil {
		return NewBusinessError("LINK_DELETE_FAILED", "Failed to delete link", err)
	}
	if !deleted {
		return NewBusinessError("LINK_NOT_FOUND", "Link not found", ErrLinkNotFound)
	}

	f.logger.Info().Uint("user_id", userID).Uint("link_id", linkID).Msg("link deleted")
	f.invalidate(ctx, userID)
	return nil
}

func (f *LinkFlowImpl) ownedLink(ctx context.Context, userID, linkID uint) (*models.Link, error) {
	link, err := f.linkRepo.ByID(ctx, linkID)
	if err != nil {
		return nil, NewBusinessError("LINK_FETCH_FAILED", "Failed to fetch link", err)
	}
	if link == nil {
		return nil, NewBusinessError("LINK_NOT_FOUND", "Link not found", ErrLinkNotFound)
	}
	if link.UserID != userID {
		return nil, NewBusinessError("LINK_ACCESS_DENIED", "Link belongs to another user", ErrLinkAccessDenied)
	}
	return link, nil
}

func (f *LinkFlowImpl) invalidate(ctx context.Context, userID uint) {
	if f.cache != nil {
		f.cache.InvalidateSummary(ctx, userID)
	}
}
