// handlers/job_management.go
package handlers

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"p9e.in/fixflow/config"
	"p9e.in/fixflow/middleware"
	"p9e.in/fixflow/models"
	"p9e.in/fixflow/pkg/authz"
	"p9e.in/fixflow/utils"
)

func requestActor(w http.ResponseWriter, r *http.Request) (authz.Actor, bool) {
	actor, ok := middleware.ActorFromRequest(r)
	if !ok {
		http.Error(w, "not authenticated", http.StatusUnauthorized)
		return authz.Actor{}, false
	}
	return actor, true
}

func pathUUID(w http.ResponseWriter, r *http.Request, key string) (uuid.UUID, bool) {
	id, err := uuid.Parse(mux.Vars(r)[key])
	if err != nil {
		http.Error(w, "invalid "+key, http.StatusBadRequest)
		return uuid.Nil, false
	}
	return id, true
}

type createJobReq struct {
	FaultDescription string  `json:"fault_description"`
	ItemIdentifier   string  `json:"item_identifier"`
	ContactPerson    string  `json:"contact_person"`
	LocationID       *string `json:"location_id,omitempty"`
}

// CreateJob opens a new job in Reported status. The creating organization's
// jobs_created quota is charged in the same transaction as the insert.
func CreateJob(w http.ResponseWriter, r *http.Request) {
	actor, ok := requestActor(w, r)
	if !ok {
		return
	}
	if !actor.IsClientSide() ||
		(actor.Role != authz.RoleReportingEmployee && actor.Role != authz.RoleClientController) {
		http.Error(w, "only client-side users may report jobs", http.StatusForbidden)
		return
	}

	var req createJobReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.FaultDescription) == "" {
		http.Error(w, "fault_description is required", http.StatusBadRequest)
		return
	}

	var locationID *uuid.UUID
	if req.LocationID != nil && *req.LocationID != "" {
		id, err := uuid.Parse(*req.LocationID)
		if err != nil {
			http.Error(w, "invalid location_id", http.StatusBadRequest)
			return
		}
		var loc models.Location
		if err := config.DB.First(&loc, "id = ? AND participant_id = ?", id, actor.ParticipantID).Error; err != nil {
			http.Error(w, "location not found", http.StatusBadRequest)
			return
		}
		locationID = &id
	}

	ledger := NewUsageLedger(config.DB)
	now := time.Now()
	job := models.Job{
		Status:           models.JobStatusReported,
		ClientID:         actor.ParticipantID,
		LocationID:       locationID,
		FaultDescription: req.FaultDescription,
		ItemIdentifier:   req.ItemIdentifier,
		ContactPerson:    req.ContactPerson,
		ReportedByID:     actor.UserID,
	}

	tx := config.DB.Begin()
	defer func() {
		if rec := recover(); rec != nil {
			tx.Rollback()
		}
	}()

	if err := ledger.ChargeAction(tx, actor.ParticipantID, models.UsageJobsCreated); err != nil {
		tx.Rollback()
		writeCoreError(w, err)
		return
	}
	if err := tx.Create(&job).Error; err != nil {
		tx.Rollback()
		http.Error(w, "db error: "+err.Error(), http.StatusInternalServerError)
		return
	}
	if err := tx.Create(&models.JobStatusHistory{
		JobID:       job.ID,
		Status:      models.JobStatusReported,
		ChangedByID: actor.UserID,
		ChangedAt:   now,
	}).Error; err != nil {
		tx.Rollback()
		http.Error(w, "db error: "+err.Error(), http.StatusInternalServerError)
		return
	}
	if err := appendEvent(tx, models.EventJobCreated, "job", job.ID, actor.UserID, map[string]interface{}{
		"client_id": actor.ParticipantID,
	}); err != nil {
		tx.Rollback()
		http.Error(w, "db error: "+err.Error(), http.StatusInternalServerError)
		return
	}
	if err := tx.Commit().Error; err != nil {
		http.Error(w, "db error: "+err.Error(), http.StatusInternalServerError)
		return
	}

	go NewNotificationDispatcher().DispatchPending()

	writeJSON(w, http.StatusCreated, job)
}

// GetJob returns one job, scoped to the actor
func GetJob(w http.ResponseWriter, r *http.Request) {
	actor, ok := requestActor(w, r)
	if !ok {
		return
	}
	jobID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	var job models.Job
	if err := config.DB.Preload("Location").Preload("Provider").Preload("Images").
		First(&job, "id = ?", jobID).Error; err != nil {
		writeCoreError(w, ErrJobNotFound)
		return
	}
	if !authz.CanActOnJob(actor, &job) {
		writeCoreError(w, ErrJobNotFound)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

// ListJobs returns the jobs visible to the actor. Archive flags hide rows per
// side without deleting anything; pass include_archived=true to see them.
func ListJobs(w http.ResponseWriter, r *http.Request) {
	actor, ok := requestActor(w, r)
	if !ok {
		return
	}

	q := config.DB.Model(&models.Job{})
	switch actor.Role {
	case authz.RoleClientController:
		q = q.Where("client_id = ?", actor.ParticipantID)
		if r.URL.Query().Get("include_archived") != "true" {
			q = q.Where("archived_by_client = ?", false)
		}
	case authz.RoleReportingEmployee:
		q = q.Where("reported_by_id = ?", actor.UserID)
	case authz.RoleProviderAdmin:
		q = q.Where("provider_id = ?", actor.ParticipantID)
		if r.URL.Query().Get("include_archived") != "true" {
			q = q.Where("archived_by_provider = ?", false)
		}
	case authz.RoleTechnician:
		q = q.Where("technician_id = ?", actor.UserID)
	default:
		http.Error(w, "role may not list jobs", http.StatusForbidden)
		return
	}

	if status := r.URL.Query().Get("status"); status != "" {
		q = q.Where("status = ?", status)
	}

	var jobs []models.Job
	if err := q.Order("created_at DESC").Find(&jobs).Error; err != nil {
		http.Error(w, "db error: "+err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, jobs)
}

type transitionReq struct {
	Status       string  `json:"status"`
	Notes        string  `json:"notes"`
	TechnicianID *string `json:"technician_id,omitempty"`
}

func (req *transitionReq) toInput(w http.ResponseWriter) (TransitionInput, bool) {
	in := TransitionInput{
		Status: models.JobStatus(req.Status),
		Notes:  req.Notes,
	}
	if req.TechnicianID != nil && *req.TechnicianID != "" {
		id, err := uuid.Parse(*req.TechnicianID)
		if err != nil {
			http.Error(w, "invalid technician_id", http.StatusBadRequest)
			return in, false
		}
		in.TechnicianID = &id
	}
	return in, true
}

// UpdateJobStatus drives a job through the lifecycle state machine. Initial
// provider assignment goes through AssignProvider instead, since it also
// records who the provider is.
func UpdateJobStatus(w http.ResponseWriter, r *http.Request) {
	actor, ok := requestActor(w, r)
	if !ok {
		return
	}
	jobID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	var req transitionReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}
	in, ok := req.toInput(w)
	if !ok {
		return
	}

	engine := NewJobLifecycle(config.DB)

	if in.Status == models.JobStatusAssigned {
		var job models.Job
		if err := config.DB.First(&job, "id = ?", jobID).Error; err == nil && job.ProviderID == nil {
			http.Error(w, "assignment requires a provider; use the assign endpoint", http.StatusBadRequest)
			return
		}
	}

	job, err := engine.Transition(actor, jobID, in)
	if err != nil {
		writeCoreError(w, err)
		return
	}

	go NewNotificationDispatcher().DispatchPending()

	writeJSON(w, http.StatusOK, job)
}

// ValidateJobTransition is the dry-run form of UpdateJobStatus: every rule is
// checked, nothing is persisted and no quota is charged.
func ValidateJobTransition(w http.ResponseWriter, r *http.Request) {
	actor, ok := requestActor(w, r)
	if !ok {
		return
	}
	jobID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	var req transitionReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}
	in, ok := req.toInput(w)
	if !ok {
		return
	}

	engine := NewJobLifecycle(config.DB)
	job, err := engine.loadScopedJob(actor, jobID)
	if err != nil {
		writeCoreError(w, err)
		return
	}
	if err := engine.ValidateTransition(actor, job, in); err != nil {
		writeCoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"valid": true,
		"from":  job.Status,
		"to":    in.Status,
	})
}

// GetJobHistory returns the audit trail for one job
func GetJobHistory(w http.ResponseWriter, r *http.Request) {
	actor, ok := requestActor(w, r)
	if !ok {
		return
	}
	jobID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	engine := NewJobLifecycle(config.DB)
	entries, err := engine.History(actor, jobID)
	if err != nil {
		writeCoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

type patchJobReq struct {
	FaultDescription  *string `json:"fault_description,omitempty"`
	ItemIdentifier    *string `json:"item_identifier,omitempty"`
	ContactPerson     *string `json:"contact_person,omitempty"`
	LocationID        *string `json:"location_id,omitempty"`
	QuotationDeadline *string `json:"quotation_deadline,omitempty"`
}

// PatchJob edits job details within role-specific limits. The reporter may
// amend the report while the job is still in Reported; the budget controller
// may adjust the contact person and the quotation deadline at any point
// before a terminal status.
func PatchJob(w http.ResponseWriter, r *http.Request) {
	actor, ok := requestActor(w, r)
	if !ok {
		return
	}
	jobID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	var req patchJobReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
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

	updates := map[string]interface{}{}
	switch actor.Role {
	case authz.RoleReportingEmployee:
		if job.Status != models.JobStatusReported {
			http.Error(w, "report can only be edited before assignment", http.StatusConflict)
			return
		}
		if req.FaultDescription != nil {
			if strings.TrimSpace(*req.FaultDescription) == "" {
				http.Error(w, "fault_description cannot be empty", http.StatusBadRequest)
				return
			}
			updates["fault_description"] = *req.FaultDescription
		}
		if req.ItemIdentifier != nil {
			updates["item_identifier"] = *req.ItemIdentifier
		}
		if req.ContactPerson != nil {
			updates["contact_person"] = *req.ContactPerson
		}
		if req.LocationID != nil {
			if *req.LocationID == "" {
				updates["location_id"] = nil
			} else {
				id, err := uuid.Parse(*req.LocationID)
				if err != nil {
					http.Error(w, "invalid location_id", http.StatusBadRequest)
					return
				}
				var loc models.Location
				if err := config.DB.First(&loc, "id = ? AND participant_id = ?", id, actor.ParticipantID).Error; err != nil {
					http.Error(w, "location not found", http.StatusBadRequest)
					return
				}
				updates["location_id"] = id
			}
		}
	case authz.RoleClientController:
		if job.Status.IsTerminal() {
			http.Error(w, "job is closed", http.StatusConflict)
			return
		}
		if req.ContactPerson != nil {
			updates["contact_person"] = *req.ContactPerson
		}
		if req.QuotationDeadline != nil {
			if *req.QuotationDeadline == "" {
				updates["quotation_deadline"] = nil
			} else {
				var jt models.JSONTime
				if err := jt.UnmarshalJSON([]byte(`"` + *req.QuotationDeadline + `"`)); err != nil {
					http.Error(w, "invalid quotation_deadline", http.StatusBadRequest)
					return
				}
				updates["quotation_deadline"] = jt.Time()
			}
		}
	default:
		http.Error(w, "role may not edit jobs", http.StatusForbidden)
		return
	}

	if len(updates) == 0 {
		writeJSON(w, http.StatusOK, job)
		return
	}
	updates["updated_at"] = time.Now()
	if err := config.DB.Model(&job).Updates(updates).Error; err != nil {
		http.Error(w, "db error: "+err.Error(), http.StatusInternalServerError)
		return
	}
	config.DB.First(&job, "id = ?", job.ID)
	writeJSON(w, http.StatusOK, job)
}

// ArchiveJob hides a closed job from the caller's side of the ledger
func ArchiveJob(w http.ResponseWriter, r *http.Request) {
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
	if !job.Status.IsTerminal() {
		http.Error(w, "only closed jobs can be archived", http.StatusConflict)
		return
	}

	column := "archived_by_client"
	if actor.IsProviderSide() {
		column = "archived_by_provider"
	}
	if err := config.DB.Model(&job).UpdateColumn(column, true).Error; err != nil {
		http.Error(w, "db error: "+err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type assignProviderReq struct {
	ProviderID        string  `json:"provider_id"`
	QuotationDeadline *string `json:"quotation_deadline,omitempty"`
	Notes             string  `json:"notes"`
}

// AssignProvider moves a Reported job to Assigned and records the chosen
// provider. If the job has a located site, the provider's service area must
// cover it.
func AssignProvider(w http.ResponseWriter, r *http.Request) {
	actor, ok := requestActor(w, r)
	if !ok {
		return
	}
	jobID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	var req assignProviderReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}
	providerID, err := uuid.Parse(req.ProviderID)
	if err != nil {
		http.Error(w, "invalid provider_id", http.StatusBadRequest)
		return
	}

	if actor.Role != authz.RoleClientController {
		writeCoreError(w, ErrUnauthorized)
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
	if job.Status != models.JobStatusReported {
		writeCoreError(w, ErrInvalidTransition)
		return
	}

	var provider models.Participant
	if err := config.DB.First(&provider, "id = ? AND type = ? AND is_active = ?",
		providerID, models.EntityServiceProvider, true).Error; err != nil {
		http.Error(w, "provider not found", http.StatusBadRequest)
		return
	}

	if job.LocationID != nil {
		var loc models.Location
		if err := config.DB.First(&loc, "id = ?", *job.LocationID).Error; err == nil {
			covered, err := utils.CoversPoint(&provider, loc.Lat, loc.Lng)
			if err != nil {
				http.Error(w, "invalid provider service area: "+err.Error(), http.StatusInternalServerError)
				return
			}
			if !covered {
				http.Error(w, "provider does not serve the job location", http.StatusConflict)
				return
			}
		}
	}

	var deadline *time.Time
	if req.QuotationDeadline != nil && *req.QuotationDeadline != "" {
		var jt models.JSONTime
		if err := jt.UnmarshalJSON([]byte(`"` + *req.QuotationDeadline + `"`)); err != nil {
			http.Error(w, "invalid quotation_deadline", http.StatusBadRequest)
			return
		}
		t := jt.Time()
		deadline = &t
	}

	now := time.Now()
	tx := config.DB.Begin()
	defer func() {
		if rec := recover(); rec != nil {
			tx.Rollback()
		}
	}()

	res := tx.Model(&models.Job{}).
		Where("id = ? AND status = ?", job.ID, models.JobStatusReported).
		Updates(map[string]interface{}{
			"status":             models.JobStatusAssigned,
			"provider_id":        provider.ID,
			"quotation_deadline": deadline,
			"updated_at":         now,
		})
	if res.Error != nil {
		tx.Rollback()
		http.Error(w, "db error: "+res.Error.Error(), http.StatusInternalServerError)
		return
	}
	if res.RowsAffected == 0 {
		tx.Rollback()
		writeCoreError(w, ErrStaleState)
		return
	}
	if err := tx.Create(&models.JobStatusHistory{
		JobID:       job.ID,
		Status:      models.JobStatusAssigned,
		ChangedByID: actor.UserID,
		Notes:       req.Notes,
		ChangedAt:   now,
	}).Error; err != nil {
		tx.Rollback()
		http.Error(w, "db error: "+err.Error(), http.StatusInternalServerError)
		return
	}
	if err := appendEvent(tx, models.EventJobAssigned, "job", job.ID, actor.UserID, map[string]interface{}{
		"from":          models.JobStatusReported,
		"to":            models.JobStatusAssigned,
		"provider_id":   provider.ID,
		"provider_name": provider.Name,
	}); err != nil {
		tx.Rollback()
		http.Error(w, "db error: "+err.Error(), http.StatusInternalServerError)
		return
	}
	if err := tx.Commit().Error; err != nil {
		http.Error(w, "db error: "+err.Error(), http.StatusInternalServerError)
		return
	}

	go NewNotificationDispatcher().DispatchPending()

	config.DB.First(&job, "id = ?", job.ID)
	writeJSON(w, http.StatusOK, job)
}

type attachImageReq struct {
	FileName     string `json:"file_name"`
	URL          string `json:"url"`
	DisplayOrder int    `json:"display_order"`
}

// AttachJobImage records an uploaded image against a job. The binary itself
// goes through the file upload endpoint first.
func AttachJobImage(w http.ResponseWriter, r *http.Request) {
	actor, ok := requestActor(w, r)
	if !ok {
		return
	}
	jobID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	var req attachImageReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}
	if req.FileName == "" || req.URL == "" {
		http.Error(w, "file_name and url are required", http.StatusBadRequest)
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
	if job.Status.IsTerminal() {
		http.Error(w, "job is closed", http.StatusConflict)
		return
	}

	img := models.JobImage{
		JobID:        job.ID,
		FileName:     req.FileName,
		URL:          req.URL,
		DisplayOrder: req.DisplayOrder,
		UploadedByID: actor.UserID,
	}
	if err := config.DB.Create(&img).Error; err != nil {
		http.Error(w, "db error: "+err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, img)
}
