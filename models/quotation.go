// models/quotation.go
package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// QuotationStatus is the lifecycle status of a quotation
type QuotationStatus string

const (
	QuotationStatusDraft     QuotationStatus = "draft"
	QuotationStatusSubmitted QuotationStatus = "submitted"
	QuotationStatusAccepted  QuotationStatus = "accepted"
	QuotationStatusRejected  QuotationStatus = "rejected"
)

// Quotation is a priced proposal submitted by a provider against a job.
// At most one open (draft or submitted) quotation may exist per
// (job, provider) pair; a partial unique index enforces this.
type Quotation struct {
	ID            uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	JobID         uuid.UUID       `gorm:"type:uuid;not null;index" json:"job_id"`
	ProviderID    uuid.UUID       `gorm:"type:uuid;not null;index" json:"provider_id"`
	Amount        float64         `gorm:"not null" json:"amount"`
	Description   string          `gorm:"type:text" json:"description"`
	DocumentURL   *string         `gorm:"size:500" json:"document_url,omitempty"`
	ValidUntil    *time.Time      `json:"valid_until,omitempty"`
	Status        QuotationStatus `gorm:"size:20;not null;index" json:"status"`
	SubmittedAt   time.Time       `json:"submitted_at"`
	RespondedAt   *time.Time      `json:"responded_at,omitempty"`
	ResponseNotes string          `gorm:"type:text" json:"response_notes,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

func (q *Quotation) BeforeCreate(tx *gorm.DB) (err error) {
	if q.ID == uuid.Nil {
		q.ID = uuid.New()
	}
	return
}

// QuotationAction identifies an entry in the quotation audit trail
type QuotationAction string

const (
	QuotationActionSubmitted        QuotationAction = "submitted"
	QuotationActionUpdated          QuotationAction = "updated"
	QuotationActionAccepted         QuotationAction = "accepted"
	QuotationActionRejected         QuotationAction = "rejected"
	QuotationActionDocumentUploaded QuotationAction = "document_uploaded"
)

// QuotationHistory is the append-only audit trail of quotation actions
type QuotationHistory struct {
	ID          uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	QuotationID uuid.UUID       `gorm:"type:uuid;not null;index" json:"quotation_id"`
	Action      QuotationAction `gorm:"size:30;not null" json:"action"`
	ActorID     uuid.UUID       `gorm:"type:uuid;not null" json:"actor_id"`
	Notes       string          `gorm:"type:text" json:"notes,omitempty"`
	OccurredAt  time.Time       `gorm:"not null;index" json:"occurred_at"`
	CreatedAt   time.Time       `json:"created_at"`
}

func (h *QuotationHistory) BeforeCreate(tx *gorm.DB) (err error) {
	if h.ID == uuid.Nil {
		h.ID = uuid.New()
	}
	return
}

func (QuotationHistory) TableName() string {
	return "quotation_history"
}
