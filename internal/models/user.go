package models

import "time"

type Role string

const (
	RoleEmployee Role = "EMPLOYEE"
	RoleManager  Role = "MANAGER"
	RoleAdmin    Role = "ADMIN"
)

func (r Role) Valid() bool {
	switch r {
	case RoleEmployee, RoleManager, RoleAdmin:
		return true
	}
	return false
}

type User struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	ChatID    int64     `gorm:"uniqueIndex;not null" json:"chat_id"`
	Username  string    `json:"username"`
	FirstName string    `gorm:"not null" json:"first_name"`
	LastName  string    `json:"last_name"`
	Email     *string   `gorm:"uniqueIndex" json:"email"`
	Role      Role      `gorm:"type:varchar(16);default:'EMPLOYEE';index" json:"role"`
	TeamID    *uint     `gorm:"index" json:"team_id"`

	// Entitlement facts, dates as YYYY-MM-DD.
	BirthDate                 *string  `gorm:"type:varchar(10)" json:"birth_date"`
	HasChild                  bool     `gorm:"not null;default:false" json:"has_child"`
	EmploymentStartDate       *string  `gorm:"type:varchar(10)" json:"employment_start_date"`
	ManualLeaveAllowanceHours *float64 `json:"manual_leave_allowance_hours"`

	IsActive bool `gorm:"not null;default:true" json:"is_active"`
}

func (User) TableName() string {
	return "users"
}

func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

func (u *User) FullName() string {
	if u.LastName == "" {
		return u.FirstName
	}
	return u.FirstName + " " + u.LastName
}
