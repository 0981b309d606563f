package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/treebio/treebio/models"
	"gorm.io/gorm"
)

// ProfileVisitRepositoryImpl implements ProfileVisitRepository.
// Rows are only ever inserted and read.
type ProfileVisitRepositoryImpl struct {
	*BaseRepository[models.ProfileVisit, models.ProfileVisitFilter]
}

func NewProfileVisitRepository(db *gorm.DB) ProfileVisitRepository {
	return &ProfileVisitRepositoryImpl{BaseRepository: NewBaseRepository[models.ProfileVisit, models.ProfileVisitFilter](db)}
}

func (r *ProfileVisitRepositoryImpl) CountDistinctVisitors(ctx context.Context, userID uint) (int64, error) {
	db := r.getDB(ctx)
	var count int64
	err := db.Model(&models.ProfileVisit{}).
		Where("user_id = ?", userID).
		Distinct("visitor_ip").
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count distinct visitors of user %d: %w", userID, err)
	}
	return count, nil
}

func (r *ProfileVisitRepositoryImpl) DailyCounts(ctx context.Context, userID uint, since time.Time) ([]*DailyCount, error) {
	db := r.getDB(ctx)
	var rows []*DailyCount
	err := db.Model(&models.ProfileVisit{}).
		Select("to_char(visited_at AT TIME ZONE 'UTC', 'YYYY-MM-DD') AS day, COUNT(*) AS count").
		Where("user_id = ? AND visited_at >= ?", userID, since).
		Group("day").
		Order("day ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate daily visits of user %d: %w", userID, err)
	}
	return rows, nil
}

func (r *ProfileVisitRepositoryImpl) applyFilter(db *gorm.DB, f models.ProfileVisitFilter) *gorm.DB {
	if f.UserID != nil {
		db = db.Where("user_id = ?", *f.UserID)
	}
	if f.VisitorIP != nil {
		db = db.Where("visitor_ip = ?", *f.VisitorIP)
	}
	if f.VisitedAfter != nil {
		db = db.Where("visited_at >= ?", *f.VisitedAfter)
	}
	return db
}

func (r *ProfileVisitRepositoryImpl) ByFilter(ctx context.Context, filter models.ProfileVisitFilter, orderBy string, limit, offset int) ([]*models.ProfileVisit, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.ProfileVisit{}), filter)
	if orderBy != "" {
		query = query.Order(orderBy)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}
	var rows []*models.ProfileVisit
	if err := query.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to find profile visits by filter: %w", err)
	}
	return rows, nil
}

func (r *ProfileVisitRepositoryImpl) Count(ctx context.Context, filter models.ProfileVisitFilter) (int64, error) {
	db := r.getDB(ctx)
	var count int64
	if err := r.applyFilter(db.Model(&models.ProfileVisit{}), filter).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count profile visits: %w", err)
	}
	return count, nil
}

func (r *ProfileVisitRepositoryImpl) Exists(ctx context.Context, filter models.ProfileVisitFilter) (bool, error) {
	db := r.getDB(ctx)
	var found []uint
	err := r.applyFilter(db.Model(&models.ProfileVisit{}), filter).
		Limit(1).
		Pluck("id", &found).Error
	if err != nil {
		return false, fmt.Errorf("failed to check profile visit existence: %w", err)
	}
	return len(found) > 0, nil
}
