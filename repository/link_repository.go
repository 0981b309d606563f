package repository

import (
	"context"
	"fmt"

	"github.com/treebio/treebio/models"
	"github.com/treebio/treebio/utils"
	"gorm.io/gorm"
)

// LinkRepositoryImpl implements LinkRepository
type LinkRepositoryImpl struct {
	*BaseRepository[models.Link, models.LinkFilter]
}

func NewLinkRepository(db *gorm.DB) LinkRepository {
	return &LinkRepositoryImpl{BaseRepository: NewBaseRepository[models.Link, models.LinkFilter](db)}
}

func (r *LinkRepositoryImpl) Update(ctx context.Context, link *models.Link) error {
	link.UpdatedAt = utils.UTCNow()

	db := r.getDB(ctx)
	// click_count is owned by the click path and never written here
	res := db.Model(&models.Link{}).
		Where("id = ? AND user_id = ?", link.ID, link.UserID).
		Updates(map[string]any{
			"title":       link.Title,
			"url":         link.URL,
			"description": link.Description,
			"updated_at":  link.UpdatedAt,
		})
	if res.Error != nil {
		return fmt.Errorf("failed to update link %d: %w", link.ID, res.Error)
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *LinkRepositoryImpl) DeleteByOwner(ctx context.Context, id, userID uint) (bool, error) {
	db := r.getDB(ctx)
	res := db.Where("id = ? AND user_id = ?", id, userID).Delete(&models.Link{})
	if res.Error != nil {
		return false, fmt.Errorf("failed to delete link %d: %w", id, res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (r *LinkRepositoryImpl) IncrementClickCount(ctx context.Context, id uint) error {
	db := r.getDB(ctx)
	res := db.Model(&models.Link{}).
		Where("id = ?", id).
		UpdateColumn("click_count", gorm.Expr("click_count + ?", 1))
	if res.Error != nil {
		return fmt.Errorf("failed to increment click count of link %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("failed to increment click count of link %d: %w", id, gorm.ErrRecordNotFound)
	}
	return nil
}

func (r *LinkRepositoryImpl) RaiseClickCount(ctx context.Context, id uint, count int64) (bool, error) {
	db := r.getDB(ctx)
	// the guard runs against the row at write time, so clicks committed after the caller's read are kept
	res := db.Model(&models.Link{}).
		Where("id = ? AND click_count < ?", id, count).
		UpdateColumn("click_count", count)
	if res.Error != nil {
		return false, fmt.Errorf("failed to raise click count of link %d: %w", id, res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (r *LinkRepositoryImpl) SumClickCount(ctx context.Context, userID uint) (int64, error) {
	db := r.getDB(ctx)
	var total int64
	err := db.Model(&models.Link{}).
		Where("user_id = ?", userID).
		Select("COALESCE(SUM(click_count), 0)").
		Scan(&total).Error
	if err != nil {
		return 0, fmt.Errorf("failed to sum click counts of user %d: %w", userID, err)
	}
	return total, nil
}

func (r *LinkRepositoryImpl) applyFilter(db *gorm.DB, f models.LinkFilter) *gorm.DB {
	if f.ID != nil {
		db = db.Where("id = ?", *f.ID)
	}
	if f.UserID != nil {
		db = db.Where("user_id = ?", *f.UserID)
	}
	return db
}

func (r *LinkRepositoryImpl) ByFilter(ctx context.Context, filter models.LinkFilter, orderBy string, limit, offset int) ([]*models.Link, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.Link{}), filter)
	if orderBy != "" {
		query = query.Order(orderBy)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}
	var rows []*models.Link
	if err := query.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to find links by filter: %w", err)
	}
	return rows, nil
}

func (r *LinkRepositoryImpl) Count(ctx context.Context, filter models.LinkFilter) (int64, error) {
	db := r.getDB(ctx)
	var count int64
	if err := r.applyFilter(db.Model(&models.Link{}), filter).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count links: %w", err)
	}
	return count, nil
}

func (r *LinkRepositoryImpl) Exists(ctx context.Context, filter models.LinkFilter) (bool, error) {
	c, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return c > 0, nil
}
