package repository

import (
	"context"
	"errors"

	"leave-bot/internal/apperr"
	"leave-bot/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type BalanceRepository interface {
	// Get returns nil without error when no override exists.
	Get(ctx context.Context, userID uint, year int) (*models.LeaveBalance, error)
	Upsert(ctx context.Context, balance *models.LeaveBalance) error
	Delete(ctx context.Context, userID uint, year int) error
	ListByUser(ctx context.Context, userID uint) ([]models.LeaveBalance, error)
	CountByUser(ctx context.Context, userID uint) (int64, error)
}

type GormBalanceRepository struct {
	db *gorm.DB
}

func (r *GormBalanceRepository) Get(ctx context.Context, userID uint, year int) (*models.LeaveBalance, error) {
	var balance models.LeaveBalance
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND year = ?", userID, year).
		First(&balance).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &balance, nil
}

func (r *GormBalanceRepository) Upsert(ctx context.Context, balance *models.LeaveBalance) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "year"}},
			DoUpdates: clause.AssignmentColumns([]string{"allowance_hours", "used_hours", "updated_at"}),
		}).
		Create(balance).Error
}

func (r *GormBalanceRepository) Delete(ctx context.Context, userID uint, year int) error {
	result := r.db.WithContext(ctx).
		Where("user_id = ? AND year = ?", userID, year).
		Delete(&models.LeaveBalance{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return apperr.NotFound("no balance override for %d", year)
	}
	return nil
}

func (r *GormBalanceRepository) ListByUser(ctx context.Context, userID uint) ([]models.LeaveBalance, error) {
	var balances []models.LeaveBalance
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("year").
		Find(&balances).Error
	return balances, err
}

func (r *GormBalanceRepository) CountByUser(ctx context.Context, userID uint) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.LeaveBalance{}).
		Where("user_id = ?", userID).
		Count(&count).Error
	return count, err
}
