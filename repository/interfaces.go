// Package repository provides data access layer implementations and interfaces for database operations
package repository

import (
	"context"
	"time"

	"github.com/treebio/treebio/models"
)

// RepositoryContext key for transaction in context
type contextKey string

const TxContextKey contextKey = "tx"

type Repository[T any, F any] interface {
	ByID(ctx context.Context, id uint) (*T, error)
	ByFilter(ctx context.Context, filter F, orderBy string, limit, offset int) ([]*T, error)
	Save(ctx context.Context, entity *T) error
	Count(ctx context.Context, filter F) (int64, error)
	Exists(ctx context.Context, filter F) (bool, error)
}

// DailyCount is one UTC calendar day of an event series
type DailyCount struct {
	Day   string `gorm:"column:day"`
	Count int64  `gorm:"column:count"`
}

// UserRepository defines operations for profile owners
type UserRepository interface {
	Repository[models.User, models.UserFilter]
	ByExternalID(ctx context.Context, externalID string) (*models.User, error)
	ByUsername(ctx context.Context, username string) (*models.User, error)
	// UpsertByExternalID inserts the user or refreshes identity fields of the existing row
	UpsertByExternalID(ctx context.Context, user *models.User) error
	UpdateProfile(ctx context.Context, userID uint, username, bio *string) error
}

// LinkRepository defines operations for links and their click counters
type LinkRepository interface {
	Repository[models.Link, models.LinkFilter]
	Update(ctx context.Context, link *models.Link) error
	DeleteByOwner(ctx context.Context, id, userID uint) (bool, error)
	// IncrementClickCount adds exactly one to click_count; a missing link is an error
	IncrementClickCount(ctx context.Context, id uint) error
	// RaiseClickCount lifts click_count to count when it is currently lower and
	// reports whether the row changed. It never lowers a counter.
	RaiseClickCount(ctx context.Context, id uint, count int64) (bool, error)
	SumClickCount(ctx context.Context, userID uint) (int64, error)
}

// SocialLinkRepository defines operations for social links
type SocialLinkRepository interface {
	Repository[models.SocialLink, models.SocialLinkFilter]
	Update(ctx context.Context, link *models.SocialLink) error
	DeleteByOwner(ctx context.Context, id, userID uint) (bool, error)
}

// ProfileVisitRepository is the append-only store of profile visit events
type ProfileVisitRepository interface {
	Repository[models.ProfileVisit, models.ProfileVisitFilter]
	CountDistinctVisitors(ctx context.Context, userID uint) (int64, error)
	DailyCounts(ctx context.Context, userID uint, since time.Time) ([]*DailyCount, error)
}

// LinkClickRepository is the append-only store of link click events
type LinkClickRepository interface {
	Repository[models.LinkClick, models.LinkClickFilter]
	CountDistinctClickers(ctx context.Context, linkID uint) (int64, error)
	DailyCounts(ctx context.Context, linkID uint, since time.Time) ([]*DailyCount, error)
	// CountByLinks returns event counts keyed by link ID; links without events are absent
	CountByLinks(ctx context.Context, linkIDs []uint) (map[uint]int64, error)
}
