package repository

import (
	"context"
	"fmt"

	"leave-bot/internal/apperr"
	"leave-bot/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type HolidayRepository interface {
	Create(ctx context.Context, holiday *models.Holiday) error
	GetByID(ctx context.Context, id uint) (*models.Holiday, error)
	GetByDate(ctx context.Context, date string) (*models.Holiday, error)
	Update(ctx context.Context, holiday *models.Holiday) error
	Delete(ctx context.Context, id uint) error
	// List returns holidays of year, or all when year is 0.
	List(ctx context.Context, year int, activeOnly bool) ([]models.Holiday, error)
	// ActiveBetween returns active holidays inside [from, to].
	ActiveBetween(ctx context.Context, from, to string) ([]models.Holiday, error)
	// BulkCreate inserts holidays, skipping dates already present.
	BulkCreate(ctx context.Context, holidays []models.Holiday) (int64, error)
}

type GormHolidayRepository struct {
	db *gorm.DB
}

func (r *GormHolidayRepository) Create(ctx context.Context, holiday *models.Holiday) error {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Holiday{}).
		Where("date = ?", holiday.Date).
		Count(&count).Error
	if err != nil {
		return err
	}
	if count > 0 {
		return apperr.AlreadyExists("holiday on %s already exists", holiday.Date)
	}
	return translate(r.db.WithContext(ctx).Create(holiday).Error, "holiday")
}

func (r *GormHolidayRepository) GetByID(ctx context.Context, id uint) (*models.Holiday, error) {
	var holiday models.Holiday
	if err := r.db.WithContext(ctx).First(&holiday, id).Error; err != nil {
		return nil, translate(err, "holiday")
	}
	return &holiday, nil
}

func (r *GormHolidayRepository) GetByDate(ctx context.Context, date string) (*models.Holiday, error) {
	var holiday models.Holiday
	if err := r.db.WithContext(ctx).Where("date = ?", date).First(&holiday).Error; err != nil {
		return nil, translate(err, "holiday")
	}
	return &holiday, nil
}

func (r *GormHolidayRepository) Update(ctx context.Context, holiday *models.Holiday) error {
	return translate(r.db.WithContext(ctx).Save(holiday).Error, "holiday")
}

func (r *GormHolidayRepository) Delete(ctx context.Context, id uint) error {
	result := r.db.WithContext(ctx).Delete(&models.Holiday{}, id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return apperr.NotFound("holiday not found")
	}
	return nil
}

func (r *GormHolidayRepository) List(ctx context.Context, year int, activeOnly bool) ([]models.Holiday, error) {
	query := r.db.WithContext(ctx).Model(&models.Holiday{})
	if year > 0 {
		query = query.Where("date >= ? AND date <= ?", fmt.Sprintf("%04d-01-01", year), fmt.Sprintf("%04d-12-31", year))
	}
	if activeOnly {
		query = query.Where("is_active = ?", true)
	}

	var holidays []models.Holiday
	err := query.Order("date").Find(&holidays).Error
	return holidays, err
}

func (r *GormHolidayRepository) ActiveBetween(ctx context.Context, from, to string) ([]models.Holiday, error) {
	var holidays []models.Holiday
	err := r.db.WithContext(ctx).
		Where("is_active = ?", true).
		Where("date >= ? AND date <= ?", from, to).
		Order("date").
		Find(&holidays).Error
	return holidays, err
}

func (r *GormHolidayRepository) BulkCreate(ctx context.Context, holidays []models.Holiday) (int64, error) {
	if len(holidays) == 0 {
		return 0, nil
	}
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "date"}}, DoNothing: true}).
		Create(&holidays)
	return result.RowsAffected, result.Error
}
