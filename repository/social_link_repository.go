package repository

import (
	"context"
	"fmt"

	"github.com/treebio/treebio/models"
	"github.com/treebio/treebio/utils"
	"gorm.io/gorm"
)

// SocialLinkRepositoryImpl implements SocialLinkRepository
type SocialLinkRepositoryImpl struct {
	*BaseRepository[models.SocialLink, models.SocialLinkFilter]
}

func NewSocialLinkRepository(db *gorm.DB) SocialLinkRepository {
	return &SocialLinkRepositoryImpl{BaseRepository: NewBaseRepository[models.SocialLink, models.SocialLinkFilter](db)}
}

func (r *SocialLinkRepositoryImpl) Update(ctx context.Context, link *models.SocialLink) error {
	link.UpdatedAt = utils.UTCNow()

	db := r.getDB(ctx)
	res := db.Model(&models.SocialLink{}).
		Where("id = ? AND user_id = ?", link.ID, link.UserID).
		Updates(map[string]any{
			"platform":   link.Platform,
			"url":        link.URL,
			"updated_at": link.UpdatedAt,
		})
	if res.Error != nil {
		return fmt.Errorf("failed to update social link %d: %w", link.ID, res.Error)
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *SocialLinkRepositoryImpl) DeleteByOwner(ctx context.Context, id, userID uint) (bool, error) {
	db := r.getDB(ctx)
	res := db.Where("id = ? AND user_id = ?", id, userID).Delete(&models.SocialLink{})
	if res.Error != nil {
		return false, fmt.Errorf("failed to delete social link %d: %w", id, res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (r *SocialLinkRepositoryImpl) applyFilter(db *gorm.DB, f models.SocialLinkFilter) *gorm.DB {
	if f.ID != nil {
		db = db.Where("id = ?", *f.ID)
	}
	if f.UserID != nil {
		db = db.Where("user_id = ?", *f.UserID)
	}
	return db
}

func (r *SocialLinkRepositoryImpl) ByFilter(ctx context.Context, filter models.SocialLinkFilter, orderBy string, limit, offset int) ([]*models.SocialLink, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.SocialLink{}), filter)
	if orderBy != "" {
		query = query.Order(orderBy)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}
	var rows []*models.SocialLink
	if err := query.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to find social links by filter: %w", err)
	}
	return rows, nil
}

func (r *SocialLinkRepositoryImpl) Count(ctx context.Context, filter models.SocialLinkFilter) (int64, error) {
	db := r.getDB(ctx)
	var count int64
	if err := r.applyFilter(db.Model(&models.SocialLink{}), filter).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count social links: %w", err)
	}
	return count, nil
}

func (r *SocialLinkRepositoryImpl) Exists(ctx context.Context, filter models.SocialLinkFilter) (bool, error) {
	c, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return c > 0, nil
}
