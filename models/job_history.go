package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// JobStatusHistory is the append-only audit trail of job status changes.
// Rows are inserted exactly once per accepted transition and never mutated;
// ordering by ChangedAt ascending reconstructs the full lifecycle.
type JobStatusHistory struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	JobID       uuid.UUID `gorm:"type:uuid;not null;index" json:"job_id"`
	Status      JobStatus `gorm:"size:30;not null" json:"status"`
	ChangedByID uuid.UUID `gorm:"type:uuid;not null" json:"changed_by_id"`
	Notes       string    `gorm:"type:text" json:"notes,omitempty"`
	ChangedAt   time.Time `gorm:"not null;index" json:"changed_at"`
	CreatedAt   time.Time `json:"created_at"`
}

func (h *JobStatusHistory) BeforeCreate(tx *gorm.DB) (err error) {
	if h.ID == uuid.Nil {
		h.ID = uuid.New()
	}
	return
}

func (JobStatusHistory) TableName() string {
	return "job_status_history"
}
