package models

import (
	"time"

	"gorm.io/datatypes"
)

const (
	EntityLeaveRequest = "leave_request"
	EntityUser         = "user"
	EntityTeam         = "team"
	EntityHoliday      = "holiday"
	EntitySettings     = "settings"
	EntityLeaveBalance = "leave_balance"
)

type AuditLog struct {
	ID            uint           `gorm:"primarykey" json:"id"`
	EventID       string         `gorm:"type:varchar(36);uniqueIndex;not null" json:"event_id"`
	ActorID       uint           `gorm:"not null;index" json:"actor_id"`
	EntityType    string         `gorm:"type:varchar(32);not null;index:idx_audit_entity" json:"entity_type"`
	EntityID      uint           `gorm:"not null;index:idx_audit_entity" json:"entity_id"`
	SubjectUserID *uint          `gorm:"index" json:"subject_user_id"`
	Action        string         `gorm:"type:varchar(32);not null" json:"action"`
	Before        datatypes.JSON `json:"before"`
	After         datatypes.JSON `json:"after"`
	CreatedAt     time.Time      `gorm:"autoCreateTime;index" json:"created_at"`
}

func (AuditLog) TableName() string {
	return "audit_logs"
}
