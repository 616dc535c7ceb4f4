package repository

import (
	"context"
	"errors"

	"leave-bot/internal/apperr"
	"leave-bot/internal/models"

	"gorm.io/gorm"
)

type UserFilter struct {
	TeamID     *uint
	Roles      []models.Role
	ActiveOnly bool
}

type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id uint) (*models.User, error)
	GetByChatID(ctx context.Context, chatID int64) (*models.User, error)
	GetByIDs(ctx context.Context, ids []uint) (map[uint]models.User, error)
	Update(ctx context.Context, user *models.User) error
	Delete(ctx context.Context, id uint) error
	List(ctx context.Context, filter UserFilter) ([]models.User, error)
	CountByTeam(ctx context.Context, teamID uint) (int64, error)
	EmailTaken(ctx context.Context, email string, excludeID uint) (bool, error)
}

type GormUserRepository struct {
	db *gorm.DB
}

func (r *GormUserRepository) Create(ctx context.Context, user *models.User) error {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.User{}).
		Where("chat_id = ?", user.ChatID).
		Count(&count).Error
	if err != nil {
		return err
	}
	if count > 0 {
		return apperr.AlreadyExists("user already exists")
	}

	if user.Email != nil {
		taken, err := r.EmailTaken(ctx, *user.Email, 0)
		if err != nil {
			return err
		}
		if taken {
			return apperr.AlreadyExists("email %s is already in use", *user.Email)
		}
	}

	return translate(r.db.WithContext(ctx).Create(user).Error, "user")
}

func (r *GormUserRepository) GetByID(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).First(&user, id).Error; err != nil {
		return nil, translate(err, "user")
	}
	return &user, nil
}

// GetByChatID returns nil without error when nobody is registered for chatID.
func (r *GormUserRepository) GetByChatID(ctx context.Context, chatID int64) (*models.User, error) {
	var user models.User
	result := r.db.WithContext(ctx).Where("chat_id = ?", chatID).First(&user)

	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, nil
	}

	if result.Error != nil {
		return nil, result.Error
	}

	return &user, nil
}

func (r *GormUserRepository) GetByIDs(ctx context.Context, ids []uint) (map[uint]models.User, error) {
	users := make(map[uint]models.User, len(ids))
	if len(ids) == 0 {
		return users, nil
	}

	var rows []models.User
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, err
	}
	for _, u := range rows {
		users[u.ID] = u
	}
	return users, nil
}

func (r *GormUserRepository) Update(ctx context.Context, user *models.User) error {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", user.ID).
		Count(&count).Error
	if err != nil {
		return err
	}
	if count == 0 {
		return apperr.NotFound("user not found")
	}

	return translate(r.db.WithContext(ctx).Save(user).Error, "user")
}

func (r *GormUserRepository) Delete(ctx context.Context, id uint) error {
	result := r.db.WithContext(ctx).Delete(&models.User{}, id)

	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected == 0 {
		return apperr.NotFound("user not found")
	}

	return nil
}

func (r *GormUserRepository) List(ctx context.Context, filter UserFilter) ([]models.User, error) {
	query := r.db.WithContext(ctx).Model(&models.User{})
	if filter.TeamID != nil {
		query = query.Where("team_id = ?", *filter.TeamID)
	}
	if len(filter.Roles) > 0 {
		query = query.Where("role IN ?", filter.Roles)
	}
	if filter.ActiveOnly {
		query = query.Where("is_active = ?", true)
	}

	var users []models.User
	if err := query.Order("id").Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}

func (r *GormUserRepository) CountByTeam(ctx context.Context, teamID uint) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.User{}).
		Where("team_id = ?", teamID).
		Count(&count).Error
	return count, err
}

func (r *GormUserRepository) EmailTaken(ctx context.Context, email string, excludeID uint) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.User{}).
		Where("email = ? AND id <> ?", email, excludeID).
		Count(&count).Error
	return count > 0, err
}
