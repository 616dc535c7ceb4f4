package repository

import (
	"context"

	"leave-bot/internal/models"

	"gorm.io/gorm"
)

type AuditFilter struct {
	EntityType    string
	EntityID      *uint
	SubjectUserID *uint
	// TeamID keeps entries whose subject user belongs to the team.
	TeamID *uint
	Limit  int
}

type AuditRepository interface {
	Create(ctx context.Context, entry *models.AuditLog) error
	List(ctx context.Context, filter AuditFilter) ([]models.AuditLog, error)
}

type GormAuditRepository struct {
	db *gorm.DB
}

func (r *GormAuditRepository) Create(ctx context.Context, entry *models.AuditLog) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *GormAuditRepository) List(ctx context.Context, filter AuditFilter) ([]models.AuditLog, error) {
	query := r.db.WithContext(ctx).Model(&models.AuditLog{})
	if filter.EntityType != "" {
		query = query.Where("audit_logs.entity_type = ?", filter.EntityType)
	}
	if filter.EntityID != nil {
		query = query.Where("audit_logs.entity_id = ?", *filter.EntityID)
	}
	if filter.SubjectUserID != nil {
		query = query.Where("audit_logs.subject_user_id = ?", *filter.SubjectUserID)
	}
	if filter.TeamID != nil {
		query = query.Joins("JOIN users ON users.id = audit_logs.subject_user_id").
			Where("users.team_id = ?", *filter.TeamID)
	}
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}

	var entries []models.AuditLog
	err := query.Order("audit_logs.id DESC").Find(&entries).Error
	return entries, err
}
