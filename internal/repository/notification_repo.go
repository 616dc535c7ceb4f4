package repository

import (
	"context"
	"time"

	"leave-bot/internal/apperr"
	"leave-bot/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type NotificationRepository interface {
	// Create stores n unless the user already has one with the same dedupe
	// key. It reports whether a row was inserted.
	Create(ctx context.Context, n *models.Notification) (bool, error)
	MarkDelivered(ctx context.Context, id uint) error
	ListForUser(ctx context.Context, userID uint, unreadOnly bool, limit int) ([]models.Notification, error)
	MarkRead(ctx context.Context, userID, id uint, at time.Time) error
	MarkAllRead(ctx context.Context, userID uint, at time.Time) (int64, error)
	CountByUser(ctx context.Context, userID uint) (int64, error)
}

type GormNotificationRepository struct {
	db *gorm.DB
}

func (r *GormNotificationRepository) Create(ctx context.Context, n *models.Notification) (bool, error) {
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "dedupe_key"}},
			DoNothing: true,
		}).
		Create(n)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *GormNotificationRepository) MarkDelivered(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Model(&models.Notification{}).
		Where("id = ?", id).
		Update("delivered", true).Error
}

func (r *GormNotificationRepository) ListForUser(ctx context.Context, userID uint, unreadOnly bool, limit int) ([]models.Notification, error) {
	query := r.db.WithContext(ctx).Where("user_id = ?", userID)
	if unreadOnly {
		query = query.Where("read_at IS NULL")
	}
	if limit > 0 {
		query = query.Limit(limit)
	}

	var notifications []models.Notification
	err := query.Order("id DESC").Find(&notifications).Error
	return notifications, err
}

func (r *GormNotificationRepository) MarkRead(ctx context.Context, userID, id uint, at time.Time) error {
	result := r.db.WithContext(ctx).Model(&models.Notification{}).
		Where("id = ? AND user_id = ?", id, userID).
		Update("read_at", at)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return apperr.NotFound("notification not found")
	}
	return nil
}

func (r *GormNotificationRepository) MarkAllRead(ctx context.Context, userID uint, at time.Time) (int64, error) {
	result := r.db.WithContext(ctx).Model(&models.Notification{}).
		Where("user_id = ? AND read_at IS NULL", userID).
		Update("read_at", at)
	return result.RowsAffected, result.Error
}

func (r *GormNotificationRepository) CountByUser(ctx context.Context, userID uint) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Notification{}).
		Where("user_id = ?", userID).
		Count(&count).Error
	return count, err
}
