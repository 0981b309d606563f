package models

import "time"

// ProfileVisit is an immutable profile view event.
// VisitorIP holds the normalized identity key, never a raw address.
type ProfileVisit struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"not null;index:idx_profile_visits_user_ip_time,priority:1;index:idx_profile_visits_user_time,priority:1" json:"user_id"`
	VisitorIP string    `gorm:"size:45;not null;index:idx_profile_visits_user_ip_time,priority:2" json:"visitor_ip"`
	VisitedAt time.Time `gorm:"not null;index:idx_profile_visits_user_ip_time,priority:3;index:idx_profile_visits_user_time,priority:2" json:"visited_at"`
}

func (ProfileVisit) TableName() string {
	return "profile_visits"
}

// ProfileVisitFilter provides filter fields for repository queries.
// VisitedAfter is inclusive.
type ProfileVisitFilter struct {
	UserID       *uint
	VisitorIP    *string
	VisitedAfter *time.Time
}
