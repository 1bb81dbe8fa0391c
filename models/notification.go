package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// NotificationType defines the type of notification
type NotificationType string

const (
	NotificationTypeJobReported     NotificationType = "job_reported"
	NotificationTypeJobAssigned     NotificationType = "job_assigned"
	NotificationTypeStatusChanged   NotificationType = "status_changed"
	NotificationTypeQuoteSubmitted  NotificationType = "quote_submitted"
	NotificationTypeQuoteResponded  NotificationType = "quote_responded"
	NotificationTypeJobDuplicated   NotificationType = "job_duplicated"
	NotificationTypeQuotaNearLimit  NotificationType = "quota_near_limit"
)

// NotificationStatus defines the status of a notification
type NotificationStatus string

const (
	NotificationStatusPending NotificationStatus = "pending"
	NotificationStatusSent    NotificationStatus = "sent"
	NotificationStatusRead    NotificationStatus = "read"
)

// Notification is an in-app notification produced by the outbox dispatcher
type Notification struct {
	ID          uuid.UUID          `gorm:"type:uuid;primaryKey" json:"id"`
	RecipientID uuid.UUID          `gorm:"type:uuid;not null;index" json:"recipient_id"`
	Type        NotificationType   `gorm:"size:40;not null" json:"type"`
	Title       string             `gorm:"size:255;not null" json:"title"`
	Body        string             `gorm:"type:text" json:"body"`
	JobID       *uuid.UUID         `gorm:"type:uuid;index" json:"job_id,omitempty"`
	Status      NotificationStatus `gorm:"size:20;not null;default:'pending'" json:"status"`
	ReadAt      *time.Time         `json:"read_at,omitempty"`
	CreatedAt   time.Time          `json:"created_at"`
}

func (n *Notification) BeforeCreate(tx *gorm.DB) (err error) {
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	return
}
