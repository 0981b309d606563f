// Package models contains domain entities for profiles, links and analytics events
package models

import "time"

// User is a profile owner. ExternalID is the identity provider subject.
type User struct {
	ID         uint    `gorm:"primaryKey" json:"id"`
	ExternalID string  `gorm:"size:191;not null;uniqueIndex:uk_users_external_id" json:"external_id"`
	Email      string  `gorm:"size:255;not null;index:idx_users_email" json:"email"`
	FirstName  string  `gorm:"size:255" json:"first_name"`
	LastName   string  `gorm:"size:255" json:"last_name"`
	Username   *string `gorm:"size:64;uniqueIndex:uk_users_username" json:"username,omitempty"`
	Bio        *string `gorm:"type:text" json:"bio,omitempty"`
	ImageURL   *string `gorm:"type:text" json:"image_url,omitempty"`

	CreatedAt time.Time `gorm:"not null;index:idx_users_created_at" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`

	Links         []Link         `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
	SocialLinks   []SocialLink   `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
	ProfileVisits []ProfileVisit `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
}

func (User) TableName() string {
	return "users"
}

// UserFilter provides filter fields for repository queries
type UserFilter struct {
	ID         *uint
	ExternalID *string
	Username   *string
}
