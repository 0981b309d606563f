package dto

import "time"

// IdentityClaims are the verified claims of an identity provider token
type IdentityClaims struct {
	Subject   string
	Email     string
	FirstName string
	LastName  string
	ImageURL  string
}

type UpdateProfileRequest struct {
	Username *string `json:"username,omitempty" validate:"omitempty,min=3,max=64"`
	Bio      *string `json:"bio,omitempty" validate:"omitempty,max=500"`
}

type UserResponse struct {
	ID        uint      `json:"id"`
	Email     string    `json:"email"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	Username  *string   `json:"username,omitempty"`
	Bio       *string   `json:"bio,omitempty"`
	ImageURL  *string   `json:"image_url,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type PublicLink struct {
	ID          uint    `json:"id"`
	Title       string  `json:"title"`
	URL         string  `json:"url"`
	Description *string `json:"description,omitempty"`
	ClickCount  int64   `json:"click_count"`
}

type PublicProfileResponse struct {
	ID          uint                 `json:"id"`
	Username    string               `json:"username"`
	FirstName   string               `json:"first_name"`
	LastName    string               `json:"last_name"`
	Bio         *string              `json:"bio,omitempty"`
	ImageURL    *string              `json:"image_url,omitempty"`
	Links       []PublicLink         `json:"links"`
	SocialLinks []SocialLinkResponse `json:"social_links"`
}
