package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// EventType identifies a domain event recorded in the outbox
type EventType string

const (
	EventJobCreated         EventType = "job.created"
	EventJobAssigned        EventType = "job.assigned"
	EventJobStatusChanged   EventType = "job.status_changed"
	EventQuotationSubmitted EventType = "quotation.submitted"
	EventQuotationAccepted  EventType = "quotation.accepted"
	EventQuotationRejected  EventType = "quotation.rejected"
	EventJobDuplicated      EventType = "job.duplicated"
	EventQuotaNearLimit     EventType = "quota.near_limit"
)

// DomainEvent is an outbox row. Core operations append one inside their
// transaction; the notification dispatcher publishes it after commit, so
// delivery never widens the core's transaction boundary.
type DomainEvent struct {
	ID            uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	EventType     EventType       `gorm:"size:50;not null;index" json:"event_type"`
	AggregateType string          `gorm:"size:30;not null" json:"aggregate_type"`
	AggregateID   uuid.UUID       `gorm:"type:uuid;not null;index" json:"aggregate_id"`
	ActorID       uuid.UUID       `gorm:"type:uuid" json:"actor_id"`
	Payload       json.RawMessage `gorm:"type:jsonb;default:'{}'" json:"payload"`
	CreatedAt     time.Time       `json:"created_at"`
	DispatchedAt  *time.Time      `gorm:"index" json:"dispatched_at,omitempty"`
}

func (e *DomainEvent) BeforeCreate(tx *gorm.DB) (err error) {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return
}
