// handlers/quotation_handlers.go
package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"p9e.in/fixflow/config"
	"p9e.in/fixflow/models"
	"p9e.in/fixflow/pkg/authz"
)

type submitQuotationReq struct {
	JobID       string           `json:"job_id"`
	Amount      float64          `json:"amount"`
	Description string           `json:"description"`
	ValidUntil  *models.JSONTime `json:"valid_until,omitempty"`
}

// SubmitQuotation records a provider's priced proposal against a job
func SubmitQuotation(w http.ResponseWriter, r *http.Request) {
	actor, ok := requestActor(w, r)
	if !ok {
		return
	}
	var req submitQuotationReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}
	jobID, err := uuid.Parse(req.JobID)
	if err != nil {
		http.Error(w, "invalid job_id", http.StatusBadRequest)
		return
	}
	if req.Amount <= 0 {
		http.Error(w, "amount must be positive", http.StatusBadRequest)
		return
	}

	in := SubmitInput{
		JobID:       jobID,
		Amount:      req.Amount,
		Description: req.Description,
	}
	if req.ValidUntil != nil {
		t := req.ValidUntil.Time()
		in.ValidUntil = &t
	}

	workflow := NewQuotationWorkflow(config.DB)
	quote, err := workflow.Submit(actor, in)
	if err != nil {
		writeCoreError(w, err)
		return
	}

	go NewNotificationDispatcher().DispatchPending()

	writeJSON(w, http.StatusCreated, quote)
}

// GetQuotation returns one quotation, visible to the owning client and the
// submitting provider only.
func GetQuotation(w http.ResponseWriter, r *http.Request) {
	actor, ok := requestActor(w, r)
	if !ok {
		return
	}
	quoteID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	var quote models.Quotation
	if err := config.DB.First(&quote, "id = ?", quoteID).Error; err != nil {
		writeCoreError(w, ErrQuoteNotFound)
		return
	}

	visible := false
	switch actor.Role {
	case authz.RoleProviderAdmin:
		visible = quote.ProviderID == actor.ParticipantID
	case authz.RoleClientController:
		var job models.Job
		if err := config.DB.First(&job, "id = ?", quote.JobID).Error; err == nil {
			visible = authz.OwnsQuotationJob(actor, &job)
		}
	}
	if !visible {
		writeCoreError(w, ErrQuoteNotFound)
		return
	}
	writeJSON(w, http.StatusOK, quote)
}

// ListJobQuotations returns all quotations raised against one job
func ListJobQuotations(w http.ResponseWriter, r *http.Request) {
	actor, ok := requestActor(w, r)
	if !ok {
		return
	}
	jobID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	var job models.Job
	if err := config.DB.First(&job, "id = ?", jobID).Error; err != nil {
		writeCoreError(w, ErrJobNotFound)
		return
	}
	if !authz.CanActOnJob(actor, &job) {
		writeCoreError(w, ErrJobNotFound)
		return
	}

	q := config.DB.Where("job_id = ?", job.ID)
	// a provider only ever sees its own quotes
	if actor.IsProviderSide() {
		q = q.Where("provider_id = ?", actor.ParticipantID)
	}

	var quotes []models.Quotation
	if err := q.Order("submitted_at DESC").Find(&quotes).Error; err != nil {
		http.Error(w, "db error: "+err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, quotes)
}

type respondQuotationReq struct {
	Accept    bool   `json:"accept"`
	Notes     string `json:"notes"`
	Duplicate bool   `json:"duplicate"`
}

// RespondToQuotation applies the client's accept/reject decision. With
// accept and duplicate both set, the accepted quote spawns a continuation
// job carrying the original's details, images and history.
func RespondToQuotation(w http.ResponseWriter, r *http.Request) {
	actor, ok := requestActor(w, r)
	if !ok {
		return
	}
	quoteID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	var req respondQuotationReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}

	workflow := NewQuotationWorkflow(config.DB)

	if req.Accept && req.Duplicate {
		newJob, err := workflow.AcceptAndDuplicate(actor, quoteID)
		if err != nil {
			writeCoreError(w, err)
			return
		}
		go NewNotificationDispatcher().DispatchPending()
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"job": newJob,
		})
		return
	}

	quote, err := workflow.Respond(actor, quoteID, req.Accept, req.Notes)
	if err != nil {
		writeCoreError(w, err)
		return
	}
	go NewNotificationDispatcher().DispatchPending()
	writeJSON(w, http.StatusOK, quote)
}

// GetQuotationHistory returns the audit trail of one quotation
func GetQuotationHistory(w http.ResponseWriter, r *http.Request) {
	actor, ok := requestActor(w, r)
	if !ok {
		return
	}
	quoteID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	var quote models.Quotation
	if err := config.DB.First(&quote, "id = ?", quoteID).Error; err != nil {
		writeCoreError(w, ErrQuoteNotFound)
		return
	}
	visible := actor.Role == authz.RoleProviderAdmin && quote.ProviderID == actor.ParticipantID
	if !visible {
		var job models.Job
		if err := config.DB.First(&job, "id = ?", quote.JobID).Error; err == nil {
			visible = authz.OwnsQuotationJob(actor, &job)
		}
	}
	if !visible {
		writeCoreError(w, ErrQuoteNotFound)
		return
	}

	var entries []models.QuotationHistory
	if err := config.DB.Where("quotation_id = ?", quote.ID).
		Order("occurred_at ASC").Find(&entries).Error; err != nil {
		http.Error(w, "db error: "+err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

// UploadQuotationDocument stores the quote PDF and records the upload in the
// quotation's audit trail. The multipart field name is "file".
func UploadQuotationDocument(w http.ResponseWriter, r *http.Request) {
	actor, ok := requestActor(w, r)
	if !ok {
		return
	}
	quoteID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	url, _, err := saveUploadedFile(r, "quotes")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	workflow := NewQuotationWorkflow(config.DB)
	quote, err := workflow.RecordDocumentUpload(actor, quoteID, url)
	if err != nil {
		writeCoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, quote)
}
