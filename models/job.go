// models/job.go
package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// JobStatus is the lifecycle status of a service job
type JobStatus string

const (
	JobStatusReported       JobStatus = "reported"
	JobStatusAssigned       JobStatus = "assigned"
	JobStatusQuoteRequested JobStatus = "quote_requested"
	JobStatusQuoteProvided  JobStatus = "quote_provided"
	JobStatusInProgress     JobStatus = "in_progress"
	JobStatusCompleted      JobStatus = "completed"
	JobStatusConfirmed      JobStatus = "confirmed"
	JobStatusIncomplete     JobStatus = "incomplete"
	JobStatusRejected       JobStatus = "rejected"
	JobStatusDeclined       JobStatus = "declined"
	JobStatusCannotRepair   JobStatus = "cannot_repair"
)

// jobTransitions is the fixed state graph. Reported is initial; Confirmed,
// Rejected, Declined and CannotRepair have no outgoing edges.
var jobTransitions = map[JobStatus][]JobStatus{
	JobStatusReported:       {JobStatusAssigned, JobStatusRejected},
	JobStatusAssigned:       {JobStatusQuoteRequested, JobStatusInProgress, JobStatusDeclined, JobStatusCannotRepair},
	JobStatusQuoteRequested: {JobStatusQuoteProvided, JobStatusDeclined},
	JobStatusQuoteProvided:  {JobStatusAssigned, JobStatusRejected},
	JobStatusInProgress:     {JobStatusCompleted, JobStatusCannotRepair},
	JobStatusCompleted:      {JobStatusConfirmed, JobStatusIncomplete},
	JobStatusIncomplete:     {JobStatusInProgress, JobStatusCompleted},
}

// CanTransitionTo reports whether the state graph has an edge from s to next.
func (s JobStatus) CanTransitionTo(next JobStatus) bool {
	for _, t := range jobTransitions[s] {
		if t == next {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transition leaves s.
func (s JobStatus) IsTerminal() bool {
	return len(jobTransitions[s]) == 0
}

// IsValid reports whether s is a known status.
func (s JobStatus) IsValid() bool {
	if s == JobStatusConfirmed || s == JobStatusRejected || s == JobStatusDeclined || s == JobStatusCannotRepair {
		return true
	}
	_, ok := jobTransitions[s]
	return ok
}

// LocationKind distinguishes jobs raised against a catalogued location from
// jobs raised against the reporter's default location.
type LocationKind int

const (
	LocationDefault LocationKind = iota
	LocationSpecific
)

// LocationRef is the explicit form of the nullable location column.
type LocationRef struct {
	Kind LocationKind
	ID   uuid.UUID
}

// Job is a single service/repair request
type Job struct {
	ID                 uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	Status             JobStatus  `gorm:"size:30;not null;index" json:"status"`
	ClientID           uuid.UUID  `gorm:"type:uuid;not null;index" json:"client_id"`
	LocationID         *uuid.UUID `gorm:"type:uuid;index" json:"location_id,omitempty"`
	FaultDescription   string     `gorm:"type:text;not null" json:"fault_description"`
	ItemIdentifier     string     `gorm:"size:100" json:"item_identifier"`
	ContactPerson      string     `gorm:"size:100" json:"contact_person"`
	ReportedByID       uuid.UUID  `gorm:"type:uuid;not null;index" json:"reported_by_id"`
	ProviderID         *uuid.UUID `gorm:"type:uuid;index" json:"provider_id,omitempty"`
	TechnicianID       *uuid.UUID `gorm:"type:uuid;index" json:"technician_id,omitempty"`
	CurrentQuotationID *uuid.UUID `gorm:"type:uuid" json:"current_quotation_id,omitempty"`
	QuotationDeadline  *time.Time `json:"quotation_deadline,omitempty"`
	ArchivedByClient   bool       `gorm:"default:false" json:"archived_by_client"`
	ArchivedByProvider bool       `gorm:"default:false" json:"archived_by_provider"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`

	Location *Location    `gorm:"foreignKey:LocationID" json:"location,omitempty"`
	Provider *Participant `gorm:"foreignKey:ProviderID" json:"provider,omitempty"`
	Images   []JobImage   `gorm:"foreignKey:JobID" json:"images,omitempty"`
}

func (j *Job) BeforeCreate(tx *gorm.DB) (err error) {
	if j.ID == uuid.Nil {
		j.ID = uuid.New()
	}
	return
}

// LocationRef returns the tagged form of the nullable location column.
func (j *Job) LocationRef() LocationRef {
	if j.LocationID == nil {
		return LocationRef{Kind: LocationDefault}
	}
	return LocationRef{Kind: LocationSpecific, ID: *j.LocationID}
}

// JobImage is an ordered attachment on a job
type JobImage struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	JobID        uuid.UUID `gorm:"type:uuid;not null;index" json:"job_id"`
	FileName     string    `gorm:"size:255;not null" json:"file_name"`
	URL          string    `gorm:"size:500;not null" json:"url"`
	DisplayOrder int       `gorm:"not null;default:0" json:"display_order"`
	UploadedByID uuid.UUID `gorm:"type:uuid" json:"uploaded_by_id"`
	CreatedAt    time.Time `json:"created_at"`
}

func (i *JobImage) BeforeCreate(tx *gorm.DB) (err error) {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	return
}
