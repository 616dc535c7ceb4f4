package repository

import (
	"context"

	"leave-bot/internal/apperr"
	"leave-bot/internal/models"

	"gorm.io/gorm"
)

type TeamRepository interface {
	Create(ctx context.Context, team *models.Team) error
	GetByID(ctx context.Context, id uint) (*models.Team, error)
	Update(ctx context.Context, team *models.Team) error
	Delete(ctx context.Context, id uint) error
	List(ctx context.Context) ([]models.Team, error)
	NameTaken(ctx context.Context, name string, excludeID uint) (bool, error)
}

type GormTeamRepository struct {
	db *gorm.DB
}

func (r *GormTeamRepository) Create(ctx context.Context, team *models.Team) error {
	return translate(r.db.WithContext(ctx).Create(team).Error, "team")
}

func (r *GormTeamRepository) GetByID(ctx context.Context, id uint) (*models.Team, error) {
	var team models.Team
	if err := r.db.WithContext(ctx).First(&team, id).Error; err != nil {
		return nil, translate(err, "team")
	}
	return &team, nil
}

func (r *GormTeamRepository) Update(ctx context.Context, team *models.Team) error {
	return translate(r.db.WithContext(ctx).Save(team).Error, "team")
}

func (r *GormTeamRepository) Delete(ctx context.Context, id uint) error {
	result := r.db.WithContext(ctx).Delete(&models.Team{}, id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return apperr.NotFound("team not found")
	}
	return nil
}

func (r *GormTeamRepository) List(ctx context.Context) ([]models.Team, error) {
	var teams []models.Team
	err := r.db.WithContext(ctx).Order("name").Find(&teams).Error
	return teams, err
}

func (r *GormTeamRepository) NameTaken(ctx context.Context, name string, excludeID uint) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Team{}).
		Where("name = ? AND id <> ?", name, excludeID).
		Count(&count).Error
	return count > 0, err
}
