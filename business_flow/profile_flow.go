package businessflow

import (
	"context"
	"errors"
	"regexp"
	"strings"

	"github.com/rs/zerolog"
	"github.com/treebio/treebio/app/dto"
	"github.com/treebio/treebio/models"
	"github.com/treebio/treebio/repository"
	"gorm.io/gorm"
)

// ProfileFlow handles onboarding from identity claims, profile edits and public profile lookup
type ProfileFlow interface {
	Onboard(ctx context.Context, claims *dto.IdentityClaims) (*dto.UserResponse, error)
	Me(ctx context.Context, userID uint) (*dto.UserResponse, error)
	UpdateProfile(ctx context.Context, userID uint, req *dto.UpdateProfileRequest) (*dto.UserResponse, error)
	PublicProfile(ctx context.Context, username string) (*dto.PublicProfileResponse, error)
}

var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9._-]+$`)

type ProfileFlowImpl struct {
	userRepo       repository.UserRepository
	linkRepo       repository.LinkRepository
	socialLinkRepo repository.SocialLinkRepository
	logger         zerolog.Logger
}

func NewProfileFlow(
	userRepo repository.UserRepository,
	linkRepo repository.LinkRepository,
	socialLinkRepo repository.SocialLinkRepository,
	logger zerolog.Logger,
) ProfileFlow {
	return &ProfileFlowImpl{
		userRepo:       userRepo,
		linkRepo:       linkRepo,
		socialLinkRepo: socialLinkRepo,
		logger:         logger.With().Str("flow", "profile").Logger(),
	}
}

func (f *ProfileFlowImpl) Onboard(ctx context.Context, claims *dto.IdentityClaims) (*dto.UserResponse, error) {
	if claims == nil {
		return nil, NewBusinessError("IDENTITY_CLAIMS_REQUIRED", "Identity claims are required", ErrIdentityClaimsNil)
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return nil, NewBusinessError("EXTERNAL_ID_REQUIRED", "Identity subject is required", ErrExternalIDRequired)
	}

	user := &models.User{
		ExternalID: claims.Subject,
		Email:      claims.Email,
		FirstName:  claims.FirstName,
		LastName:   claims.LastName,
	}
	if claims.ImageURL != "" {
		img := claims.ImageURL
		user.ImageURL = &img
	}

	if err := f.userRepo.UpsertByExternalID(ctx, user); err != nil {
		return nil, NewBusinessError("USER_UPSERT_FAILED", "Failed to onboard user", err)
	}

	// the upsert does not report the stored row on conflict; reload it
	stored, err := f.userRepo.ByExternalID(ctx, claims.Subject)
	if err != nil {
		return nil, NewBusinessError("USER_FETCH_FAILED", "Failed to fetch user", err)
	}
	if stored == nil {
		return nil, NewBusinessError("USER_NOT_FOUND", "User not found after onboarding", ErrUserNotFound)
	}

	f.logger.Info().Uint("user_id", stored.ID).Msg("user onboarded")
	resp := ToUserResponse(*stored)
	return &resp, nil
}

func (f *ProfileFlowImpl) Me(ctx context.Context, userID uint) (*dto.UserResponse, error) {
	user, err := f.userRepo.ByID(ctx, userID)
	if err != nil {
		return nil, NewBusinessError("USER_FETCH_FAILED", "Failed to fetch user", err)
	}
	if user == nil {
		return nil, NewBusinessError("USER_NOT_FOUND", "User not found", ErrUserNotFound)
	}
	resp := ToUserResponse(*user)
	return &resp, nil
}

func (f *ProfileFlowImpl) UpdateProfile(ctx context.Context, userID uint, req *dto.UpdateProfileRequest) (*dto.UserResponse, error) {
	if req == nil || (req.Username == nil && req.Bio == nil) {
		return nil, NewBusinessError("PROFILE_UPDATE_EMPTY", "Nothing to update", ErrProfileUpdateEmpty)
	}

	var username *string
	if req.Username != nil {
		u := strings.TrimSpace(*req.Username)
		if !usernamePattern.MatchString(u) {
			return nil, NewBusinessError("INVALID_USERNAME", "Username contains invalid characters", ErrInvalidUsernameChars)
		}
		taken, err := f.userRepo.ByUsername(ctx, u)
		if err != nil {
			return nil, NewBusinessError("USER_FETCH_FAILED", "Failed to check username", err)
		}
		if taken != nil && taken.ID != userID {
			return nil, NewBusinessError("USERNAME_TAKEN", "Username is already taken", ErrUsernameTaken)
		}
		username = &u
	}

	if err := f.userRepo.UpdateProfile(ctx, userID, username, req.Bio); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, NewBusinessError("USER_NOT_FOUND", "User not found", ErrUserNotFound)
		}
		return nil, NewBusinessError("PROFILE_UPDATE_FAILED", "Failed to update profile", err)
	}

	return f.Me(ctx, userID)
}

func (f *ProfileFlowImpl) PublicProfile(ctx context.Context, username string) (*dto.PublicProfileResponse, error) {
	user, err := f.userRepo.ByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		return nil, NewBusinessError("PROFILE_FETCH_FAILED", "Failed to fetch profile", err)
	}
	if user == nil || user.Username == nil {
		return nil, NewBusinessError("PROFILE_NOT_FOUND", "Profile not found", ErrProfileNotFound)
	}

	links, err := f.linkRepo.ByFilter(ctx, models.LinkFilter{UserID: &user.ID}, "created_at DESC, id DESC", 0, 0)
	if err != nil {
		return nil, NewBusinessError("PROFILE_FETCH_FAILED", "Failed to fetch profile links", err)
	}
	socials, err := f.socialLinkRepo.ByFilter(ctx, models.SocialLinkFilter{UserID: &user.ID}, "id ASC", 0, 0)
	if err != nil {
		return nil, NewBusinessError("PROFILE_FETCH_FAILED", "Failed to fetch profile social links", err)
	}

	resp := &dto.PublicProfileResponse{
		ID:          user.ID,
		Username:    *user.Username,
		FirstName:   user.FirstName,
		LastName:    user.LastName,
		Bio:         user.Bio,
		ImageURL:    user.ImageURL,
		Links:       make([]dto.PublicLink, 0, len(links)),
		SocialLinks: make([]dto.SocialLinkResponse, 0, len(socials)),
	}
	for _, l := range links {
		resp.Links = append(resp.Links, dto.PublicLink{
			ID:          l.ID,
			Title:       l.Title,
			URL:         l.URL,
			Description: l.Description,
			ClickCount:  l.ClickCount,
		})
	}
	for _, s := range socials {
		resp.SocialLinks = append(resp.SocialLinks, ToSocialLinkResponse(*s))
	}
	return resp, nil
}
