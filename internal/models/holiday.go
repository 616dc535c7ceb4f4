package models

import "time"

type Holiday struct {
	ID               uint      `gorm:"primaryKey" json:"id"`
	Date             string    `gorm:"type:varchar(10);uniqueIndex;not null" json:"date"`
	Name             string    `gorm:"not null" json:"name"`
	IsCompanyHoliday bool      `gorm:"not null;default:false" json:"is_company_holiday"`
	IsActive         bool      `gorm:"not null;default:true;index" json:"is_active"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

func (Holiday) TableName() string {
	return "holidays"
}
