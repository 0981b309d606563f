package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/treebio/treebio/models"
	"gorm.io/gorm"
)

// LinkClickRepositoryImpl implements LinkClickRepository
type LinkClickRepositoryImpl struct {
	*BaseRepository[models.LinkClick, models.LinkClickFilter]
}

func NewLinkClickRepository(db *gorm.DB) LinkClickRepository {
	return &LinkClickRepositoryImpl{BaseRepository: NewBaseRepository[models.LinkClick, models.LinkClickFilter](db)}
}

func (r *LinkClickRepositoryImpl) CountDistinctClickers(ctx context.Context, linkID uint) (int64, error) {
	db := r.getDB(ctx)
	var count int64
	err := db.Model(&models.LinkClick{}).
		Where("link_id = ?", linkID).
		Distinct("clicker_ip").
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count distinct clickers of link %d: %w", linkID, err)
	}
	return count, nil
}

func (r *LinkClickRepositoryImpl) DailyCounts(ctx context.Context, linkID uint, since time.Time) ([]*DailyCount, error) {
	db := r.getDB(ctx)
	var rows []*DailyCount
	err := db.Model(&models.LinkClick{}).
		Select("to_char(clicked_at AT TIME ZONE 'UTC', 'YYYY-MM-DD') AS day, COUNT(*) AS count").
		Where("link_id = ? AND clicked_at >= ?", linkID, since).
		Group("day").
		Order("day ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate daily clicks of link %d: %w", linkID, err)
	}
	return rows, nil
}

type linkClickCount struct {
	LinkID uint  `gorm:"column:link_id"`
	Count  int64 `gorm:"column:count"`
}

func (r *LinkClickRepositoryImpl) CountByLinks(ctx context.Context, linkIDs []uint) (map[uint]int64, error) {
	out := make(map[uint]int64, len(linkIDs))
	if len(linkIDs) == 0 {
		return out, nil
	}

	ids := make([]int64, len(linkIDs))
	for i, id := range linkIDs {
		ids[i] = int64(id)
	}

	db := r.getDB(ctx)
	var rows []linkClickCount
	err := db.Model(&models.LinkClick{}).
		Select("link_id, COUNT(*) AS count").
		Where("link_id = ANY(?)", pq.Array(ids)).
		Group("link_id").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to count clicks by link: %w", err)
	}
	for _, row := range rows {
		out[row.LinkID] = row.Count
	}
	return out, nil
}

func (r *LinkClickRepositoryImpl) applyFilter(db *gorm.DB, f models.LinkClickFilter) *gorm.DB {
	if f.LinkID != nil {
		db = db.Where("link_id = ?", *f.LinkID)
	}
	if f.ClickedAfter != nil {
		db = db.Where("clicked_at >= ?", *f.ClickedAfter)
	}
	return db
}

func (r *LinkClickRepositoryImpl) ByFilter(ctx context.Context, filter models.LinkClickFilter, orderBy string, limit, offset int) ([]*models.LinkClick, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.LinkClick{}), filter)
	if orderBy != "" {
		query = query.Order(orderBy)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}
	var rows []*models.LinkClick
	if err := query.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to find link clicks by filter: %w", err)
	}
	return rows, nil
}

func (r *LinkClickRepositoryImpl) Count(ctx context.Context, filter models.LinkClickFilter) (int64, error) {
	db := r.getDB(ctx)
	var count int64
	if err := r.applyFilter(db.Model(&models.LinkClick{}), filter).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count link clicks: %w", err)
	}
	return count, nil
}

func (r *LinkClickRepositoryImpl) Exists(ctx context.Context, filter models.LinkClickFilter) (bool, error) {
	c, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return c > 0, nil
}
