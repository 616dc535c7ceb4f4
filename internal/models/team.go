package models

import "time"

type Team struct {
	ID                  uint      `gorm:"primarykey" json:"id"`
	Name                string    `gorm:"uniqueIndex;not null" json:"name"`
	MaxConcurrentLeaves *int      `json:"max_concurrent_leaves"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
}

func (Team) TableName() string {
	return "teams"
}
