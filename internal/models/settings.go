package models

import "time"

type AccrualPolicy string

const (
	AccrualYearStart AccrualPolicy = "YEAR_START"
	AccrualProRata   AccrualPolicy = "PRO_RATA"
)

func (p AccrualPolicy) Valid() bool {
	return p == AccrualYearStart || p == AccrualProRata
}

// SettingsID is the primary key of the single settings row.
const SettingsID uint = 1

type Settings struct {
	ID                           uint          `gorm:"primarykey" json:"id"`
	AnnualLeaveAccrualPolicy     AccrualPolicy `gorm:"type:varchar(16);not null;default:'YEAR_START'" json:"annual_leave_accrual_policy"`
	CarryOverEnabled             bool          `gorm:"not null;default:false" json:"carry_over_enabled"`
	CarryOverLimitHours          float64       `gorm:"not null;default:0" json:"carry_over_limit_hours"`
	ShowTeamCalendarForEmployees bool          `gorm:"not null;default:false" json:"show_team_calendar_for_employees"`
	UpdatedAt                    time.Time     `json:"updated_at"`
}

func (Settings) TableName() string {
	return "settings"
}
