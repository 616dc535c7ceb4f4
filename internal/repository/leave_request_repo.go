package repository

import (
	"context"
	"fmt"

	"leave-bot/internal/apperr"
	"leave-bot/internal/models"

	"gorm.io/gorm"
)

// LeaveFilter narrows List. Zero fields are ignored; From/To select requests
// overlapping the inclusive range.
type LeaveFilter struct {
	UserID   *uint
	TeamID   *uint
	Statuses []models.LeaveStatus
	Types    []models.LeaveType
	From     string
	To       string
	Limit    int
}

type LeaveRequestRepository interface {
	Create(ctx context.Context, req *models.LeaveRequest) error
	GetByID(ctx context.Context, id uint) (*models.LeaveRequest, error)
	Update(ctx context.Context, req *models.LeaveRequest) error
	Delete(ctx context.Context, id uint) error
	List(ctx context.Context, filter LeaveFilter) ([]models.LeaveRequest, error)
	// FindOverlapping returns the user's booked requests intersecting
	// [startDate, endDate], skipping excludeID.
	FindOverlapping(ctx context.Context, userID uint, startDate, endDate string, excludeID uint) ([]models.LeaveRequest, error)
	// CountApprovedInTeam counts approved requests of teamID's members that
	// intersect [startDate, endDate], skipping excludeID.
	CountApprovedInTeam(ctx context.Context, teamID uint, startDate, endDate string, excludeID uint) (int64, error)
	BookedHours(ctx context.Context, userID uint, year int, excludeID uint) (float64, error)
	CountByUser(ctx context.Context, userID uint) (int64, error)
}

type GormLeaveRequestRepository struct {
	db *gorm.DB
}

func (r *GormLeaveRequestRepository) Create(ctx context.Context, req *models.LeaveRequest) error {
	return r.db.WithContext(ctx).Create(req).Error
}

func (r *GormLeaveRequestRepository) GetByID(ctx context.Context, id uint) (*models.LeaveRequest, error) {
	var req models.LeaveRequest
	if err := r.db.WithContext(ctx).First(&req, id).Error; err != nil {
		return nil, translate(err, "leave request")
	}
	return &req, nil
}

func (r *GormLeaveRequestRepository) Update(ctx context.Context, req *models.LeaveRequest) error {
	return r.db.WithContext(ctx).Save(req).Error
}

func (r *GormLeaveRequestRepository) Delete(ctx context.Context, id uint) error {
	result := r.db.WithContext(ctx).Delete(&models.LeaveRequest{}, id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return apperr.NotFound("leave request not found")
	}
	return nil
}

func (r *GormLeaveRequestRepository) List(ctx context.Context, filter LeaveFilter) ([]models.LeaveRequest, error) {
	query := r.db.WithContext(ctx).Model(&models.LeaveRequest{})

	if filter.UserID != nil {
		query = query.Where("leave_requests.user_id = ?", *filter.UserID)
	}
	if filter.TeamID != nil {
		query = query.Joins("JOIN users ON users.id = leave_requests.user_id").
			Where("users.team_id = ?", *filter.TeamID)
	}
	if len(filter.Statuses) > 0 {
		query = query.Where("leave_requests.status IN ?", filter.Statuses)
	}
	if len(filter.Types) > 0 {
		query = query.Where("leave_requests.type IN ?", filter.Types)
	}
	if filter.To != "" {
		query = query.Where("leave_requests.start_date <= ?", filter.To)
	}
	if filter.From != "" {
		query = query.Where("leave_requests.end_date >= ?", filter.From)
	}
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}

	var reqs []models.LeaveRequest
	err := query.Order("leave_requests.start_date, leave_requests.id").Find(&reqs).Error
	return reqs, err
}

func (r *GormLeaveRequestRepository) FindOverlapping(ctx context.Context, userID uint, startDate, endDate string, excludeID uint) ([]models.LeaveRequest, error) {
	var reqs []models.LeaveRequest
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND id <> ?", userID, excludeID).
		Where("status IN ?", models.BookedStatuses).
		Where("start_date <= ? AND end_date >= ?", endDate, startDate).
		Order("start_date").
		Find(&reqs).Error
	return reqs, err
}

func (r *GormLeaveRequestRepository) CountApprovedInTeam(ctx context.Context, teamID uint, startDate, endDate string, excludeID uint) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.LeaveRequest{}).
		Joins("JOIN users ON users.id = leave_requests.user_id").
		Where("users.team_id = ?", teamID).
		Where("leave_requests.id <> ?", excludeID).
		Where("leave_requests.status = ?", models.StatusApproved).
		Where("leave_requests.start_date <= ? AND leave_requests.end_date >= ?", endDate, startDate).
		Count(&count).Error
	return count, err
}

// BookedHours sums booked annual-leave hours whose start date falls in year.
func (r *GormLeaveRequestRepository) BookedHours(ctx context.Context, userID uint, year int, excludeID uint) (float64, error) {
	var total float64
	err := r.db.WithContext(ctx).Model(&models.LeaveRequest{}).
		Select("COALESCE(SUM(computed_hours), 0)").
		Where("user_id = ? AND id <> ?", userID, excludeID).
		Where("type = ?", models.LeaveAnnual).
		Where("status IN ?", models.BookedStatuses).
		Where("start_date >= ? AND start_date <= ?", fmt.Sprintf("%04d-01-01", year), fmt.Sprintf("%04d-12-31", year)).
		Scan(&total).Error
	return total, err
}

func (r *GormLeaveRequestRepository) CountByUser(ctx context.Context, userID uint) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.LeaveRequest{}).
		Where("user_id = ?", userID).
		Count(&count).Error
	return count, err
}
