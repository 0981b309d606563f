package testing

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/treebio/treebio/models"
)

// TestFixtures provides helper methods for creating test data
type TestFixtures struct {
	db *TestDB
}

func NewTestFixtures(db *TestDB) *TestFixtures {
	return &TestFixtures{db: db}
}

// CreateTestUser inserts an onboarded user with the given username
func (tf *TestFixtures) CreateTestUser(username string) (*models.User, error) {
	now := time.Now().UTC()
	user := &models.User{
		ExternalID: "sub_" + uuid.NewString(),
		Email:      fmt.Sprintf("%s@example.com", username),
		FirstName:  "Test",
		LastName:   "User",
		Username:   &username,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := tf.db.DB.Create(user).Error; err != nil {
		return nil, fmt.Errorf("failed to create test user: %w", err)
	}
	return user, nil
}

// CreateTestLink inserts a link with a preset click counter
func (tf *TestFixtures) CreateTestLink(userID uint, title string, clickCount int64) (*models.Link, error) {
	now := time.Now().UTC()
	link := &models.Link{
		UserID:     userID,
		Title:      title,
		URL:        "https://example.com/" + uuid.NewString(),
		ClickCount: clickCount,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := tf.db.DB.Create(link).Error; err != nil {
		return nil, fmt.Errorf("failed to create test link: %w", err)
	}
	return link, nil
}

// CreateTestVisit inserts a visit event at the given time
func (tf *TestFixtures) CreateTestVisit(userID uint, key string, at time.Time) (*models.ProfileVisit, error) {
	visit := &models.ProfileVisit{UserID: userID, VisitorIP: key, VisitedAt: at.UTC()}
	if err := tf.db.DB.Create(visit).Error; err != nil {
		return nil, fmt.Errorf("failed to create test visit: %w", err)
	}
	return visit, nil
}

// CreateTestClick inserts a click event without touching the link counter
func (tf *TestFixtures) CreateTestClick(linkID uint, key string, at time.Time) (*models.LinkClick, error) {
	click := &models.LinkClick{LinkID: linkID, ClickerIP: key, ClickedAt: at.UTC()}
	if err := tf.db.DB.Create(click).Error; err != nil {
		return nil, fmt.Errorf("failed to create test click: %w", err)
	}
	return click, nil
}
