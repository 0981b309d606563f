// Package businessflow contains the business logic for the application.
package businessflow

import (
	"time"

	"github.com/treebio/treebio/app/dto"
	"github.com/treebio/treebio/models"
	"github.com/treebio/treebio/utils"
)

// Clock returns the reference time of a flow; tests pin it
type Clock func() time.Time

func ToLinkResponse(link models.Link) dto.LinkResponse {
	return dto.LinkResponse{
		ID:          link.ID,
		Title:       link.Title,
		URL:         link.URL,
		Description: link.Description,
		ClickCount:  link.ClickCount,
		CreatedAt:   link.CreatedAt,
	}
}

func ToTopLink(link models.Link) dto.TopLink {
	return dto.TopLink{
		ID:         link.ID,
		Title:      link.Title,
		URL:        link.URL,
		ClickCount: link.ClickCount,
		CreatedAt:  link.CreatedAt,
	}
}

func ToSocialLinkResponse(link models.SocialLink) dto.SocialLinkResponse {
	return dto.SocialLinkResponse{
		ID:        link.ID,
		Platform:  link.Platform,
		URL:       link.URL,
		CreatedAt: link.CreatedAt,
	}
}

func ToUserResponse(user models.User) dto.UserResponse {
	return dto.UserResponse{
		ID:        user.ID,
		Email:     user.Email,
		FirstName: user.FirstName,
		LastName:  user.LastName,
		Username:  user.Username,
		Bio:       user.Bio,
		ImageURL:  user.ImageURL,
		CreatedAt: user.CreatedAt,
	}
}

func defaultClock(c Clock) Clock {
	if c == nil {
		return utils.UTCNow
	}
	return c
}
