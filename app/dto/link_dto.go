package dto

import "time"

type CreateLinkRequest struct {
	Title       string  `json:"title" validate:"required,min=1,max=255"`
	URL         string  `json:"url" validate:"required,url,max=2048"`
	Description *string `json:"description,omitempty" validate:"omitempty,max=1000"`
}

type UpdateLinkRequest struct {
	Title       string  `json:"title" validate:"required,min=1,max=255"`
	URL         string  `json:"url" validate:"required,url,max=2048"`
	Description *string `json:"description,omitempty" validate:"omitempty,max=1000"`
}

type LinkResponse struct {
	ID          uint      `json:"id"`
	Title       string    `json:"title"`
	URL         string    `json:"url"`
	Description *string   `json:"description,omitempty"`
	ClickCount  int64     `json:"click_count"`
	CreatedAt   time.Time `json:"created_at"`
}

type SocialLinkRequest struct {
	Platform string `json:"platform" validate:"required,min=1,max=64"`
	URL      string `json:"url" validate:"required,url,max=2048"`
}

type SocialLinkResponse struct {
	ID        uint      `json:"id"`
	Platform  string    `json:"platform"`
	URL       string    `json:"url"`
	CreatedAt time.Time `json:"created_at"`
}
