package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"p9e.in/fixflow/models"
	"p9e.in/fixflow/pkg/authz"
)

// JobLifecycle is the authoritative state machine for job statuses. Every
// transition runs the same rule sequence: actor scoping, state-graph check,
// role permission, technician and notes preconditions, the acceptance quota
// gate, then one atomic persist of the status column plus one history row.
type JobLifecycle struct {
	db     *gorm.DB
	ledger *UsageLedger
}

// NewJobLifecycle creates a lifecycle engine backed by db.
func NewJobLifecycle(db *gorm.DB) *JobLifecycle {
	return &JobLifecycle{
		db:     db,
		ledger: NewUsageLedger(db),
	}
}

// TransitionInput carries the caller-supplied parts of a status change
type TransitionInput struct {
	Status       models.JobStatus
	Notes        string
	TechnicianID *uuid.UUID
}

// loadScopedJob fetches the job and applies actor scoping. A job outside the
// actor's scope is reported as not found.
func (e *JobLifecycle) loadScopedJob(actor authz.Actor, jobID uuid.UUID) (*models.Job, error) {
	var job models.Job
	if err := e.db.First(&job, "id = ?", jobID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrJobNotFound
		}
		return nil, err
	}
	if !authz.CanActOnJob(actor, &job) {
		return nil, ErrJobNotFound
	}
	return &job, nil
}

// ValidateTransition runs every rule short of persistence and the quota
// charge. The quota gate is only probed here; Transition re-checks it
// atomically inside its transaction.
func (e *JobLifecycle) ValidateTransition(actor authz.Actor, job *models.Job, in TransitionInput) error {
	if !in.Status.IsValid() || !job.Status.CanTransitionTo(in.Status) {
		return ErrInvalidTransition
	}
	if !authz.CanSetStatus(actor, in.Status) {
		return ErrUnauthorized
	}

	if in.Status == models.JobStatusInProgress {
		if err := e.checkTechnician(actor, job, in.TechnicianID); err != nil {
			return err
		}
	}

	if authz.RequiresNotes(actor, in.Status) && strings.TrimSpace(in.Notes) == "" {
		return ErrMissingReason
	}

	if authz.IsAcceptance(job.Status, in.Status) {
		ok, status, err := e.ledger.CanPerformAction(actor.ParticipantID, models.UsageJobsAccepted)
		if err != nil {
			return err
		}
		if !ok {
			limit := 0
			if status.Limit != nil {
				limit = *status.Limit
			}
			return &QuotaError{UsageType: models.UsageJobsAccepted, Usage: status.Used, Limit: limit}
		}
	}
	return nil
}

// checkTechnician enforces the InProgress precondition: a technician id must
// be supplied and must belong to the same provider participant as the actor.
func (e *JobLifecycle) checkTechnician(actor authz.Actor, job *models.Job, technicianID *uuid.UUID) error {
	if technicianID == nil {
		return ErrMissingTechnician
	}
	var tech models.User
	err := e.db.First(&tech, "id = ?", *technicianID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrMissingTechnician
	}
	if err != nil {
		return err
	}
	if authz.RoleFromID(tech.RoleID) != authz.RoleTechnician {
		return ErrMissingTechnician
	}
	if tech.ParticipantID != actor.ParticipantID {
		return ErrMissingTechnician
	}
	if job.ProviderID == nil || tech.ParticipantID != *job.ProviderID {
		return ErrMissingTechnician
	}
	return nil
}

// Transition validates and applies a status change. The status update, the
// history append, the acceptance quota charge and the outbox event commit or
// roll back together; a concurrent change to the same job surfaces as
// ErrStaleState instead of being overwritten.
func (e *JobLifecycle) Transition(actor authz.Actor, jobID uuid.UUID, in TransitionInput) (*models.Job, error) {
	job, err := e.loadScopedJob(actor, jobID)
	if err != nil {
		return nil, err
	}
	if err := e.ValidateTransition(actor, job, in); err != nil {
		return nil, err
	}

	previous := job.Status
	now := time.Now()

	tx := e.db.Begin()
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
		}
	}()

	if authz.IsAcceptance(previous, in.Status) {
		if err := e.ledger.ChargeAction(tx, actor.ParticipantID, models.UsageJobsAccepted); err != nil {
			tx.Rollback()
			return nil, err
		}
	}

	updates := map[string]interface{}{
		"status":     in.Status,
		"updated_at": now,
	}
	if in.Status == models.JobStatusInProgress {
		updates["technician_id"] = *in.TechnicianID
	}

	res := tx.Model(&models.Job{}).
		Where("id = ? AND status = ?", job.ID, previous).
		Updates(updates)
	if res.Error != nil {
		tx.Rollback()
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		tx.Rollback()
		return nil, ErrStaleState
	}

	entry := models.JobStatusHistory{
		JobID:       job.ID,
		Status:      in.Status,
		ChangedByID: actor.UserID,
		Notes:       in.Notes,
		ChangedAt:   now,
	}
	if err := tx.Create(&entry).Error; err != nil {
		tx.Rollback()
		return nil, err
	}

	if err := appendEvent(tx, models.EventJobStatusChanged, "job", job.ID, actor.UserID, map[string]interface{}{
		"from":  previous,
		"to":    in.Status,
		"notes": in.Notes,
	}); err != nil {
		tx.Rollback()
		return nil, err
	}

	if err := tx.Commit().Error; err != nil {
		return nil, err
	}

	job.Status = in.Status
	job.UpdatedAt = now
	if in.Status == models.JobStatusInProgress {
		job.TechnicianID = in.TechnicianID
	}

	log.Printf("✅ Job %s: %s -> %s (by %s %s)", job.ID, previous, in.Status, actor.Role, actor.UserID)
	return job, nil
}

// appendEvent writes one outbox row inside the caller's transaction.
func appendEvent(tx *gorm.DB, eventType models.EventType, aggregateType string, aggregateID, actorID uuid.UUID, payload map[string]interface{}) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	event := models.DomainEvent{
		EventType:     eventType,
		AggregateType: aggregateType,
		AggregateID:   aggregateID,
		ActorID:       actorID,
		Payload:       raw,
	}
	return tx.Create(&event).Error
}

// History returns the job's full status history, oldest first.
func (e *JobLifecycle) History(actor authz.Actor, jobID uuid.UUID) ([]models.JobStatusHistory, error) {
	if _, err := e.loadScopedJob(actor, jobID); err != nil {
		return nil, err
	}
	var entries []models.JobStatusHistory
	if err := e.db.Where("job_id = ?", jobID).Order("changed_at ASC").Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}
