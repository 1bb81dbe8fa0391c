package handlers

import (
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"p9e.in/fixflow/models"
	"p9e.in/fixflow/pkg/authz"
)

// QuotationWorkflow manages the optional quotation sub-process attached to a
// job: submission by the assigned provider, the client's accept/reject
// response, and the accept-and-duplicate path for recurring requests.
type QuotationWorkflow struct {
	db *gorm.DB
}

// NewQuotationWorkflow creates a quotation workflow backed by db.
func NewQuotationWorkflow(db *gorm.DB) *QuotationWorkflow {
	return &QuotationWorkflow{db: db}
}

// openQuotationStatuses are the statuses that block a new quotation for the
// same (job, provider) pair.
var openQuotationStatuses = []models.QuotationStatus{
	models.QuotationStatusDraft,
	models.QuotationStatusSubmitted,
}

// SubmitInput carries a provider's priced proposal
type SubmitInput struct {
	JobID       uuid.UUID
	Amount      float64
	Description string
	DocumentURL *string
	ValidUntil  *time.Time
}

// Submit records a new quotation. Allowed only while the job is in
// QuoteRequested or Assigned and assigned to the actor's provider. When the
// job was QuoteRequested the job advances to QuoteProvided and points at the
// new quotation, with the same history-append discipline as any transition.
func (w *QuotationWorkflow) Submit(actor authz.Actor, in SubmitInput) (*models.Quotation, error) {
	if actor.Role != authz.RoleProviderAdmin || !actor.IsProviderSide() {
		return nil, ErrJobNotFound
	}

	var job models.Job
	if err := w.db.First(&job, "id = ?", in.JobID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrJobNotFound
		}
		return nil, err
	}
	if job.ProviderID == nil || *job.ProviderID != actor.ParticipantID {
		return nil, ErrJobNotFound
	}
	if job.Status != models.JobStatusQuoteRequested && job.Status != models.JobStatusAssigned {
		return nil, ErrJobNotQuotable
	}

	now := time.Now()
	quote := models.Quotation{
		JobID:       job.ID,
		ProviderID:  actor.ParticipantID,
		Amount:      in.Amount,
		Description: in.Description,
		DocumentURL: in.DocumentURL,
		ValidUntil:  in.ValidUntil,
		Status:      models.QuotationStatusSubmitted,
		SubmittedAt: now,
	}

	tx := w.db.Begin()
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
		}
	}()

	// At most one open (draft or submitted) quotation per (job, provider).
	// Accepted and rejected quotes are closed and never block a new cycle.
	var open int64
	if err := tx.Model(&models.Quotation{}).
		Where("job_id = ? AND provider_id = ? AND status IN ?",
			job.ID, actor.ParticipantID, openQuotationStatuses).
		Count(&open).Error; err != nil {
		tx.Rollback()
		return nil, err
	}
	if open > 0 {
		tx.Rollback()
		return nil, ErrDuplicateQuote
	}

	// The partial unique index on (job_id, provider_id) catches a racing
	// submit that the count above could not see yet.
	if err := tx.Create(&quote).Error; err != nil {
		tx.Rollback()
		if isUniqueViolation(err) {
			return nil, ErrDuplicateQuote
		}
		return nil, err
	}

	if err := tx.Create(&models.QuotationHistory{
		QuotationID: quote.ID,
		Action:      models.QuotationActionSubmitted,
		ActorID:     actor.UserID,
		OccurredAt:  now,
	}).Error; err != nil {
		tx.Rollback()
		return nil, err
	}

	if job.Status == models.JobStatusQuoteRequested {
		res := tx.Model(&models.Job{}).
			Where("id = ? AND status = ?", job.ID, models.JobStatusQuoteRequested).
			Updates(map[string]interface{}{
				"status":               models.JobStatusQuoteProvided,
				"current_quotation_id": quote.ID,
				"updated_at":           now,
			})
		if res.Error != nil {
			tx.Rollback()
			return nil, res.Error
		}
		if res.RowsAffected == 0 {
			tx.Rollback()
			return nil, ErrStaleState
		}
		if err := tx.Create(&models.JobStatusHistory{
			JobID:       job.ID,
			Status:      models.JobStatusQuoteProvided,
			ChangedByID: actor.UserID,
			ChangedAt:   now,
		}).Error; err != nil {
			tx.Rollback()
			return nil, err
		}
	}

	if err := appendEvent(tx, models.EventQuotationSubmitted, "quotation", quote.ID, actor.UserID, map[string]interface{}{
		"job_id": job.ID,
		"amount": in.Amount,
	}); err != nil {
		tx.Rollback()
		return nil, err
	}

	if err := tx.Commit().Error; err != nil {
		return nil, err
	}

	log.Printf("✅ Quotation %s submitted on job %s (%.2f)", quote.ID, job.ID, in.Amount)
	return &quote, nil
}

// loadScopedQuote fetches a quotation together with its job, restricted to
// the client that owns the job. Misses and out-of-scope quotes are
// indistinguishable.
func (w *QuotationWorkflow) loadScopedQuote(actor authz.Actor, quotationID uuid.UUID) (*models.Quotation, *models.Job, error) {
	var quote models.Quotation
	if err := w.db.First(&quote, "id = ?", quotationID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, ErrQuoteNotFound
		}
		return nil, nil, err
	}
	var job models.Job
	if err := w.db.First(&job, "id = ?", quote.JobID).Error; err != nil {
		return nil, nil, err
	}
	if !authz.OwnsQuotationJob(actor, &job) {
		return nil, nil, ErrQuoteNotFound
	}
	return &quote, &job, nil
}

// Respond applies the owning client's accept/reject decision to a submitted
// quotation. Accepting returns the job to Assigned; rejecting moves the job
// to Rejected and clears its current quotation so a fresh cycle can start.
func (w *QuotationWorkflow) Respond(actor authz.Actor, quotationID uuid.UUID, accept bool, notes string) (*models.Quotation, error) {
	quote, job, err := w.loadScopedQuote(actor, quotationID)
	if err != nil {
		return nil, err
	}
	if quote.Status != models.QuotationStatusSubmitted {
		return nil, ErrWrongQuoteStatus
	}

	now := time.Now()
	quoteStatus := models.QuotationStatusRejected
	jobStatus := models.JobStatusRejected
	action := models.QuotationActionRejected
	eventType := models.EventQuotationRejected
	if accept {
		quoteStatus = models.QuotationStatusAccepted
		jobStatus = models.JobStatusAssigned
		action = models.QuotationActionAccepted
		eventType = models.EventQuotationAccepted
	}

	tx := w.db.Begin()
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
		}
	}()

	res := tx.Model(&models.Quotation{}).
		Where("id = ? AND status = ?", quote.ID, models.QuotationStatusSubmitted).
		Updates(map[string]interface{}{
			"status":         quoteStatus,
			"responded_at":   now,
			"response_notes": notes,
			"updated_at":     now,
		})
	if res.Error != nil {
		tx.Rollback()
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		tx.Rollback()
		return nil, ErrStaleState
	}

	jobUpdates := map[string]interface{}{
		"status":     jobStatus,
		"updated_at": now,
	}
	if !accept {
		jobUpdates["current_quotation_id"] = nil
	}
	res = tx.Model(&models.Job{}).
		Where("id = ? AND status = ?", job.ID, job.Status).
		Updates(jobUpdates)
	if res.Error != nil {
		tx.Rollback()
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		tx.Rollback()
		return nil, ErrStaleState
	}

	if err := tx.Create(&models.QuotationHistory{
		QuotationID: quote.ID,
		Action:      action,
		ActorID:     actor.UserID,
		Notes:       notes,
		OccurredAt:  now,
	}).Error; err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.Create(&models.JobStatusHistory{
		JobID:       job.ID,
		Status:      jobStatus,
		ChangedByID: actor.UserID,
		Notes:       notes,
		ChangedAt:   now,
	}).Error; err != nil {
		tx.Rollback()
		return nil, err
	}

	if err := appendEvent(tx, eventType, "quotation", quote.ID, actor.UserID, map[string]interface{}{
		"job_id":   job.ID,
		"accepted": accept,
	}); err != nil {
		tx.Rollback()
		return nil, err
	}

	if err := tx.Commit().Error; err != nil {
		return nil, err
	}

	quote.Status = quoteStatus
	quote.RespondedAt = &now
	quote.ResponseNotes = notes
	log.Printf("✅ Quotation %s %s on job %s", quote.ID, action, job.ID)
	return quote, nil
}

// AcceptAndDuplicate is the stronger acceptance path for recurring requests:
// the quote is accepted and a new job is spawned carrying over the original
// job's details, images and full status history so the new job reads as a
// continuation. The original job stays untouched apart from its quotation.
func (w *QuotationWorkflow) AcceptAndDuplicate(actor authz.Actor, quotationID uuid.UUID) (*models.Job, error) {
	quote, job, err := w.loadScopedQuote(actor, quotationID)
	if err != nil {
		return nil, err
	}
	if quote.Status != models.QuotationStatusSubmitted {
		return nil, ErrWrongQuoteStatus
	}

	now := time.Now()

	tx := w.db.Begin()
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
		}
	}()

	res := tx.Model(&models.Quotation{}).
		Where("id = ? AND status = ?", quote.ID, models.QuotationStatusSubmitted).
		Updates(map[string]interface{}{
			"status":       models.QuotationStatusAccepted,
			"responded_at": now,
			"updated_at":   now,
		})
	if res.Error != nil {
		tx.Rollback()
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		tx.Rollback()
		return nil, ErrStaleState
	}

	newJob := models.Job{
		Status:           models.JobStatusAssigned,
		ClientID:         job.ClientID,
		LocationID:       job.LocationID,
		FaultDescription: fmt.Sprintf("%s (Quote Q%s Accepted)", job.FaultDescription, quote.ID),
		ItemIdentifier:   job.ItemIdentifier,
		ContactPerson:    job.ContactPerson,
		ReportedByID:     job.ReportedByID,
		ProviderID:       job.ProviderID,
		TechnicianID:     job.TechnicianID,
	}
	if err := tx.Create(&newJob).Error; err != nil {
		tx.Rollback()
		return nil, err
	}

	// The new job id only exists now; patch it into the accepted quote's
	// response note within the same transaction.
	note := fmt.Sprintf("Accepted; continued as job %s", newJob.ID)
	if err := tx.Model(&models.Quotation{}).Where("id = ?", quote.ID).
		UpdateColumn("response_notes", note).Error; err != nil {
		tx.Rollback()
		return nil, err
	}

	// Copy image attachments, preserving display order.
	var images []models.JobImage
	if err := tx.Where("job_id = ?", job.ID).Order("display_order ASC").Find(&images).Error; err != nil {
		tx.Rollback()
		return nil, err
	}
	for _, img := range images {
		copied := models.JobImage{
			JobID:        newJob.ID,
			FileName:     img.FileName,
			URL:          img.URL,
			DisplayOrder: img.DisplayOrder,
			UploadedByID: img.UploadedByID,
		}
		if err := tx.Create(&copied).Error; err != nil {
			tx.Rollback()
			return nil, err
		}
	}

	// Copy the original job's entire history in order, then append the
	// Assigned entry attributed to the accepting actor.
	var history []models.JobStatusHistory
	if err := tx.Where("job_id = ?", job.ID).Order("changed_at ASC").Find(&history).Error; err != nil {
		tx.Rollback()
		return nil, err
	}
	for _, h := range history {
		copied := models.JobStatusHistory{
			JobID:       newJob.ID,
			Status:      h.Status,
			ChangedByID: h.ChangedByID,
			Notes:       h.Notes,
			ChangedAt:   h.ChangedAt,
		}
		if err := tx.Create(&copied).Error; err != nil {
			tx.Rollback()
			return nil, err
		}
	}
	if err := tx.Create(&models.JobStatusHistory{
		JobID:       newJob.ID,
		Status:      models.JobStatusAssigned,
		ChangedByID: actor.UserID,
		ChangedAt:   now,
	}).Error; err != nil {
		tx.Rollback()
		return nil, err
	}

	if err := tx.Create(&models.QuotationHistory{
		QuotationID: quote.ID,
		Action:      models.QuotationActionAccepted,
		ActorID:     actor.UserID,
		Notes:       note,
		OccurredAt:  now,
	}).Error; err != nil {
		tx.Rollback()
		return nil, err
	}

	if err := appendEvent(tx, models.EventJobDuplicated, "job", newJob.ID, actor.UserID, map[string]interface{}{
		"source_job_id": job.ID,
		"quotation_id":  quote.ID,
	}); err != nil {
		tx.Rollback()
		return nil, err
	}

	if err := tx.Commit().Error; err != nil {
		return nil, err
	}

	log.Printf("✅ Quotation %s accepted, job %s continued as %s", quote.ID, job.ID, newJob.ID)
	return &newJob, nil
}

// RecordDocumentUpload stores a freshly uploaded quote document URL and
// appends the matching audit entry. Only the submitting provider may attach
// documents, and only while the quote is still open.
func (w *QuotationWorkflow) RecordDocumentUpload(actor authz.Actor, quotationID uuid.UUID, url string) (*models.Quotation, error) {
	var quote models.Quotation
	if err := w.db.First(&quote, "id = ?", quotationID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrQuoteNotFound
		}
		return nil, err
	}
	if actor.Role != authz.RoleProviderAdmin || quote.ProviderID != actor.ParticipantID {
		return nil, ErrQuoteNotFound
	}
	if quote.Status == models.QuotationStatusAccepted || quote.Status == models.QuotationStatusRejected {
		return nil, ErrWrongQuoteStatus
	}

	now := time.Now()
	tx := w.db.Begin()
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
		}
	}()

	if err := tx.Model(&models.Quotation{}).Where("id = ?", quote.ID).
		Updates(map[string]interface{}{"document_url": url, "updated_at": now}).Error; err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.Create(&models.QuotationHistory{
		QuotationID: quote.ID,
		Action:      models.QuotationActionDocumentUploaded,
		ActorID:     actor.UserID,
		Notes:       url,
		OccurredAt:  now,
	}).Error; err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.Commit().Error; err != nil {
		return nil, err
	}

	quote.DocumentURL = &url
	return &quote, nil
}
