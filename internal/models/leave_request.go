package models

import (
	"strconv"
	"time"
)

type LeaveType string

const (
	LeaveAnnual     LeaveType = "ANNUAL_LEAVE"
	LeaveSick       LeaveType = "SICK_LEAVE"
	LeaveHomeOffice LeaveType = "HOME_OFFICE"
	LeaveUnpaid     LeaveType = "UNPAID_LEAVE"
	LeaveOther      LeaveType = "OTHER"
)

type LeaveStatus string

const (
	StatusDraft     LeaveStatus = "DRAFT"
	StatusPending   LeaveStatus = "PENDING"
	StatusApproved  LeaveStatus = "APPROVED"
	StatusRejected  LeaveStatus = "REJECTED"
	StatusCancelled LeaveStatus = "CANCELLED"
)

// IsTerminal reports whether no further transition is possible.
func (s LeaveStatus) IsTerminal() bool {
	return s == StatusRejected || s == StatusCancelled
}

// Booked statuses count against balance, overlap and capacity.
var BookedStatuses = []LeaveStatus{StatusPending, StatusApproved}

type LeaveRequest struct {
	ID     uint      `gorm:"primaryKey" json:"id"`
	UserID uint      `gorm:"not null;index:idx_leave_user_dates" json:"user_id"`
	Type   LeaveType `gorm:"type:varchar(20);not null" json:"type"`

	// Calendar dates as YYYY-MM-DD; optional HH:MM times for same-day requests.
	StartDate    string  `gorm:"type:varchar(10);not null;index:idx_leave_user_dates" json:"start_date"`
	EndDate      string  `gorm:"type:varchar(10);not null;index:idx_leave_user_dates" json:"end_date"`
	StartTime    *string `gorm:"type:varchar(5)" json:"start_time"`
	EndTime      *string `gorm:"type:varchar(5)" json:"end_time"`
	HalfDayStart bool    `gorm:"not null;default:false" json:"is_half_day_start"`
	HalfDayEnd   bool    `gorm:"not null;default:false" json:"is_half_day_end"`

	Status         LeaveStatus `gorm:"type:varchar(16);not null;default:'DRAFT';index" json:"status"`
	Reason         *string     `json:"reason"`
	ManagerComment *string     `json:"manager_comment"`
	ApprovedBy     *uint       `json:"approved_by"`
	ApprovedAt     *time.Time  `json:"approved_at"`
	ComputedHours  float64     `gorm:"not null;default:0" json:"computed_hours"`
	AttachmentURL  *string     `json:"attachment_url"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (LeaveRequest) TableName() string {
	return "leave_requests"
}

// Year is the calendar year the request is booked against.
func (r *LeaveRequest) Year() int {
	if len(r.StartDate) < 4 {
		return 0
	}
	year, _ := strconv.Atoi(r.StartDate[:4])
	return year
}

func (r *LeaveRequest) IsAnnual() bool {
	return r.Type == LeaveAnnual
}
