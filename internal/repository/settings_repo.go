package repository

import (
	"context"

	"leave-bot/internal/models"

	"gorm.io/gorm"
)

type SettingsRepository interface {
	Get(ctx context.Context) (*models.Settings, error)
	// EnsureDefaults inserts defaults unless the settings row exists.
	EnsureDefaults(ctx context.Context, defaults models.Settings) (*models.Settings, error)
	Save(ctx context.Context, settings *models.Settings) error
}

type GormSettingsRepository struct {
	db *gorm.DB
}

func (r *GormSettingsRepository) Get(ctx context.Context) (*models.Settings, error) {
	var settings models.Settings
	if err := r.db.WithContext(ctx).First(&settings, models.SettingsID).Error; err != nil {
		return nil, translate(err, "settings")
	}
	return &settings, nil
}

func (r *GormSettingsRepository) EnsureDefaults(ctx context.Context, defaults models.Settings) (*models.Settings, error) {
	defaults.ID = models.SettingsID

	var settings models.Settings
	err := r.db.WithContext(ctx).
		Where("id = ?", models.SettingsID).
		Attrs(defaults).
		FirstOrCreate(&settings).Error
	if err != nil {
		return nil, err
	}
	return &settings, nil
}

func (r *GormSettingsRepository) Save(ctx context.Context, settings *models.Settings) error {
	settings.ID = models.SettingsID
	return r.db.WithContext(ctx).Save(settings).Error
}
