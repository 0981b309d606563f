package models

import "time"

// Link is an outbound link on a profile. ClickCount is the denormalized
// running total of LinkClick rows; only the click path increments it.
type Link struct {
	ID          uint    `gorm:"primaryKey" json:"id"`
	UserID      uint    `gorm:"not null;index:idx_links_user_id" json:"user_id"`
	Title       string  `gorm:"size:255;not null" json:"title"`
	URL         string  `gorm:"type:text;not null" json:"url"`
	Description *string `gorm:"type:text" json:"description,omitempty"`
	ClickCount  int64   `gorm:"not null;default:0;check:chk_links_click_count_non_negative,click_count >= 0" json:"click_count"`

	CreatedAt time.Time `gorm:"not null;index:idx_links_created_at" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`

	Clicks []LinkClick `gorm:"foreignKey:LinkID;constraint:OnDelete:CASCADE" json:"-"`
}

func (Link) TableName() string {
	return "links"
}

// LinkFilter provides filter fields for repository queries
type LinkFilter struct {
	ID     *uint
	UserID *uint
}
