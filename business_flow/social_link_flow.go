package businessflow

import (
	"context"
	"errors"
	"strings"

	"github.com/treebio/treebio/app/dto"
	"github.com/treebio/treebio/models"
	"github.com/treebio/treebio/repository"
	"github.com/treebio/treebio/utils"
	"gorm.io/gorm"
)

type SocialLinkFlow interface {
	AddSocialLink(ctx context.Context, userID uint, req *dto.SocialLinkRequest) (*dto.SocialLinkResponse, error)
	ListSocialLinks(ctx context.Context, userID uint) ([]dto.SocialLinkResponse, error)
	UpdateSocialLink(ctx context.Context, userID, id uint, req *dto.SocialLinkRequest) (*dto.SocialLinkResponse, error)
	DeleteSocialLink(ctx context.Context, userID, id uint) error
}

type SocialLinkFlowImpl struct {
	socialLinkRepo repository.SocialLinkRepository
}

func NewSocialLinkFlow(socialLinkRepo repository.SocialLinkRepository) SocialLinkFlow {
	return &SocialLinkFlowImpl{socialLinkRepo: socialLinkRepo}
}

func (f *SocialLinkFlowImpl) AddSocialLink(ctx context.Context, userID uint, req *dto.SocialLinkRequest) (*dto.SocialLinkResponse, error) {
	now := utils.UTCNow()
	link := &models.SocialLink{
		UserID:    userID,
		Platform:  strings.ToLower(strings.TrimSpace(req.Platform)),
		URL:       strings.TrimSpace(req.URL),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := f.socialLinkRepo.Save(ctx, link); err != nil {
		return nil, NewBusinessError("SOCIAL_LINK_CREATE_FAILED", "Failed to add social link", err)
	}
	resp := ToSocialLinkResponse(*link)
	return &resp, nil
}

func (f *SocialLinkFlowImpl) ListSocialLinks(ctx context.Context, userID uint) ([]dto.SocialLinkResponse, error) {
	links, err := f.socialLinkRepo.ByFilter(ctx, models.SocialLinkFilter{UserID: &userID}, "id ASC", 0, 0)
	if err != nil {
		return nil, NewBusinessError("SOCIAL_LINK_LIST_FAILED", "Failed to list social links", err)
	}
	out := make([]dto.SocialLinkResponse, 0, len(links))
	for _, l := range links {
		out = append(out, ToSocialLinkResponse(*l))
	}
	return out, nil
}

func (f *SocialLinkFlowImpl) UpdateSocialLink(ctx context.Context, userID, id uint, req *dto.SocialLinkRequest) (*dto.SocialLinkResponse, error) {
	link, err := f.socialLinkRepo.ByID(ctx, id)
	if err != nil {
		return nil, NewBusinessError("SOCIAL_LINK_FETCH_FAILED", "Failed to fetch social link", err)
	}
	if link == nil || link.UserID != userID {
		return nil, NewBusinessError("SOCIAL_LINK_NOT_FOUND", "Social link not found", ErrSocialLinkNotFound)
	}

	link.Platform = strings.ToLower(strings.TrimSpace(req.Platform))
	link.URL = strings.TrimSpace(req.URL)
	if err := f.socialLinkRepo.Update(ctx, link); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, NewBusinessError("SOCIAL_LINK_NOT_FOUND", "Social link not found", ErrSocialLinkNotFound)
		}
		return nil, NewBusinessError("SOCIAL_LINK_UPDATE_FAILED", "Failed to update social link", err)
	}
	resp := ToSocialLinkResponse(*link)
	return &resp, nil
}

func (f *SocialLinkFlowImpl) DeleteSocialLink(ctx context.Context, userID, id uint) error {
	deleted, err := f.socialLinkRepo.DeleteByOwner(ctx, id, userID)
	if err != nil {
		return NewBusinessError("SOCIAL_LINK_DELETE_FAILED", "Failed to delete social link", err)
	}
	if !deleted {
		return NewBusinessError("SOCIAL_LINK_NOT_FOUND", "Social link not found", ErrSocialLinkNotFound)
	}
	return nil
}
