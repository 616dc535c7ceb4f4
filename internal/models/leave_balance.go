package models

import "time"

// LeaveBalance is an optional per-user per-year allowance override.
type LeaveBalance struct {
	ID             uint      `gorm:"primarykey" json:"id"`
	UserID         uint      `gorm:"not null;uniqueIndex:idx_balance_user_year" json:"user_id"`
	Year           int       `gorm:"not null;uniqueIndex:idx_balance_user_year" json:"year"`
	AllowanceHours float64   `gorm:"not null" json:"allowance_hours"`
	UsedHours      float64   `gorm:"not null;default:0" json:"used_hours"`
	CreatedAt      time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (LeaveBalance) TableName() string {
	return "leave_balances"
}
