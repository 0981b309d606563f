package models

import "time"

// SocialLink is a platform handle shown on a profile
type SocialLink struct {
	ID       uint   `gorm:"primaryKey" json:"id"`
	UserID   uint   `gorm:"not null;index:idx_social_links_user_id" json:"user_id"`
	Platform string `gorm:"size:64;not null" json:"platform"`
	URL      string `gorm:"type:text;not null" json:"url"`

	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (SocialLink) TableName() string {
	return "social_links"
}

// SocialLinkFilter provides filter fields for repository queries
type SocialLinkFilter struct {
	ID     *uint
	UserID *uint
}
