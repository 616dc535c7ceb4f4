package models

import (
	"time"

	"gorm.io/datatypes"
)

const (
	NotifyLeaveSubmitted       = "LEAVE_SUBMITTED"
	NotifyLeaveApproved        = "LEAVE_APPROVED"
	NotifyLeaveRejected        = "LEAVE_REJECTED"
	NotifyLeaveCancelled       = "LEAVE_CANCELLED"
	NotifyLeaveUpdatedByOther  = "LEAVE_UPDATED"
	NotifyLeaveCreatedOnBehalf = "LEAVE_CREATED"
)

type Notification struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	UserID    uint           `gorm:"not null;index;uniqueIndex:idx_notification_dedupe" json:"user_id"`
	Type      string         `gorm:"type:varchar(32);not null" json:"type"`
	Payload   datatypes.JSON `json:"payload"`
	DedupeKey *string        `gorm:"type:varchar(128);uniqueIndex:idx_notification_dedupe" json:"dedupe_key"`
	Delivered bool           `gorm:"not null;default:false" json:"delivered"`
	ReadAt    *time.Time     `json:"read_at"`
	CreatedAt time.Time      `gorm:"autoCreateTime;index" json:"created_at"`
}

func (Notification) TableName() string {
	return "notifications"
}
