package models

import "time"

// LinkClick is an immutable click-through event on a link
type LinkClick struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	LinkID    uint      `gorm:"not null;index:idx_link_clicks_link_time,priority:1" json:"link_id"`
	ClickerIP string    `gorm:"size:45;not null" json:"clicker_ip"`
	ClickedAt time.Time `gorm:"not null;index:idx_link_clicks_link_time,priority:2" json:"clicked_at"`
}

func (LinkClick) TableName() string {
	return "link_clicks"
}

// LinkClickFilter provides filter fields for repository queries.
// ClickedAfter is inclusive.
type LinkClickFilter struct {
	LinkID       *uint
	ClickedAfter *time.Time
}
