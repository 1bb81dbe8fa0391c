package handlers

import (
	"bytes"
	"encoding/json"
	"log"
	"text/template"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"p9e.in/fixflow/config"
	"p9e.in/fixflow/models"
	"p9e.in/fixflow/pkg/authz"
)

// NotificationDispatcher drains the domain event outbox into in-app
// notifications. Core operations only append outbox rows inside their own
// transactions; delivery happens here, after commit, so a failed render or a
// slow recipient query can never roll back a job transition.
type NotificationDispatcher struct {
	db *gorm.DB
}

// NewNotificationDispatcher creates a dispatcher on the shared connection.
func NewNotificationDispatcher() *NotificationDispatcher {
	return &NotificationDispatcher{db: config.DB}
}

// notificationContext holds data for template rendering
type notificationContext struct {
	JobID        string
	QuotationID  string
	From         string
	To           string
	Notes        string
	Amount       float64
	SourceJobID  string
	ProviderName string
	UsageType    string
	Used         int
	Limit        int
}

var notificationTemplates = map[models.EventType]struct {
	notifType models.NotificationType
	title     string
	body      string
}{
	models.EventJobCreated: {
		notifType: models.NotificationTypeJobReported,
		title:     "New job reported",
		body:      "Job {{.JobID}} was reported and is awaiting assignment.",
	},
	models.EventJobAssigned: {
		notifType: models.NotificationTypeJobAssigned,
		title:     "Job assigned",
		body:      "Job {{.JobID}} was assigned to {{.ProviderName}}.",
	},
	models.EventJobStatusChanged: {
		notifType: models.NotificationTypeStatusChanged,
		title:     "Job status changed to {{.To}}",
		body:      "Job {{.JobID}} moved from {{.From}} to {{.To}}.{{if .Notes}} Notes: {{.Notes}}{{end}}",
	},
	models.EventQuotationSubmitted: {
		notifType: models.NotificationTypeQuoteSubmitted,
		title:     "Quotation received",
		body:      "A quotation of {{printf \"%.2f\" .Amount}} was submitted on job {{.JobID}}.",
	},
	models.EventQuotationAccepted: {
		notifType: models.NotificationTypeQuoteResponded,
		title:     "Quotation accepted",
		body:      "Your quotation {{.QuotationID}} on job {{.JobID}} was accepted.",
	},
	models.EventQuotationRejected: {
		notifType: models.NotificationTypeQuoteResponded,
		title:     "Quotation rejected",
		body:      "Your quotation {{.QuotationID}} on job {{.JobID}} was rejected.{{if .Notes}} Notes: {{.Notes}}{{end}}",
	},
	models.EventJobDuplicated: {
		notifType: models.NotificationTypeJobDuplicated,
		title:     "Job continued",
		body:      "Job {{.SourceJobID}} was continued as job {{.JobID}} after quote acceptance.",
	},
	models.EventQuotaNearLimit: {
		notifType: models.NotificationTypeQuotaNearLimit,
		title:     "Monthly quota almost spent",
		body:      "{{.Used}} of {{.Limit}} {{.UsageType}} actions used this month.",
	},
}

// DispatchPending publishes all undispatched outbox rows, oldest first.
// Safe to call concurrently; a row claimed by another dispatcher is skipped.
func (d *NotificationDispatcher) DispatchPending() {
	var events []models.DomainEvent
	if err := d.db.Where("dispatched_at IS NULL").
		Order("created_at ASC").Limit(100).Find(&events).Error; err != nil {
		log.Printf("❌ Failed to load pending events: %v", err)
		return
	}

	for _, event := range events {
		// Claim the row first; RowsAffected 0 means someone else took it.
		res := d.db.Model(&models.DomainEvent{}).
			Where("id = ? AND dispatched_at IS NULL", event.ID).
			UpdateColumn("dispatched_at", gorm.Expr("CURRENT_TIMESTAMP"))
		if res.Error != nil || res.RowsAffected == 0 {
			continue
		}

		if err := d.dispatchEvent(&event); err != nil {
			log.Printf("❌ Error dispatching event %s (%s): %v", event.ID, event.EventType, err)
		}
	}
}

// dispatchEvent fans one outbox row out to its recipients
func (d *NotificationDispatcher) dispatchEvent(event *models.DomainEvent) error {
	tpl, ok := notificationTemplates[event.EventType]
	if !ok {
		log.Printf("⚠️  No notification template for event type %s", event.EventType)
		return nil
	}

	ctx, jobID, err := d.buildContext(event)
	if err != nil {
		return err
	}

	var recipientIDs []uuid.UUID
	if jobID != nil {
		recipientIDs, err = d.resolveRecipients(event, jobID)
	} else {
		recipientIDs, err = d.resolveParticipantRecipients(event)
	}
	if err != nil {
		return err
	}
	if len(recipientIDs) == 0 {
		return nil
	}

	title, err := renderTemplate(tpl.title, ctx)
	if err != nil {
		return err
	}
	body, err := renderTemplate(tpl.body, ctx)
	if err != nil {
		return err
	}

	for _, recipientID := range recipientIDs {
		notification := models.Notification{
			RecipientID: recipientID,
			Type:        tpl.notifType,
			Title:       title,
			Body:        body,
			JobID:       jobID,
			Status:      models.NotificationStatusSent,
		}
		if err := d.db.Create(&notification).Error; err != nil {
			log.Printf("❌ Failed to create notification for user %s: %v", recipientID, err)
			continue
		}
	}
	log.Printf("✅ Dispatched %s to %d recipients", event.EventType, len(recipientIDs))
	return nil
}

// buildContext extracts template fields from the event payload and resolves
// the job the event belongs to.
func (d *NotificationDispatcher) buildContext(event *models.DomainEvent) (notificationContext, *uuid.UUID, error) {
	var payload map[string]interface{}
	if len(event.Payload) > 0 {
		if err := json.Unmarshal(event.Payload, &payload); err != nil {
			return notificationContext{}, nil, err
		}
	}

	ctx := notificationContext{}
	if v, ok := payload["from"].(string); ok {
		ctx.From = v
	}
	if v, ok := payload["to"].(string); ok {
		ctx.To = v
	}
	if v, ok := payload["notes"].(string); ok {
		ctx.Notes = v
	}
	if v, ok := payload["amount"].(float64); ok {
		ctx.Amount = v
	}
	if v, ok := payload["source_job_id"].(string); ok {
		ctx.SourceJobID = v
	}
	if v, ok := payload["provider_name"].(string); ok {
		ctx.ProviderName = v
	}

	// Quota events hang off a subscription, not a job.
	if event.AggregateType == "subscription" {
		if v, ok := payload["usage_type"].(string); ok {
			ctx.UsageType = v
		}
		if v, ok := payload["used"].(float64); ok {
			ctx.Used = int(v)
		}
		if v, ok := payload["limit"].(float64); ok {
			ctx.Limit = int(v)
		}
		return ctx, nil, nil
	}

	jobID := event.AggregateID
	if event.AggregateType == "quotation" {
		ctx.QuotationID = event.AggregateID.String()
		if raw, ok := payload["job_id"].(string); ok {
			if id, err := uuid.Parse(raw); err == nil {
				jobID = id
			}
		}
	}
	ctx.JobID = jobID.String()
	return ctx, &jobID, nil
}

// resolveRecipients collects everyone attached to the event's job except the
// actor who caused it: the reporter, the client's budget controllers, the
// provider's admins and the assigned technician.
func (d *NotificationDispatcher) resolveRecipients(event *models.DomainEvent, jobID *uuid.UUID) ([]uuid.UUID, error) {
	var job models.Job
	if err := d.db.First(&job, "id = ?", *jobID).Error; err != nil {
		return nil, err
	}

	seen := map[uuid.UUID]bool{event.ActorID: true}
	var out []uuid.UUID
	add := func(id uuid.UUID) {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}

	add(job.ReportedByID)
	if job.TechnicianID != nil {
		add(*job.TechnicianID)
	}

	var controllers []models.User
	if err := d.db.Where("participant_id = ? AND role_id = ? AND is_active = ?",
		job.ClientID, int(authz.RoleClientController), true).Find(&controllers).Error; err != nil {
		return nil, err
	}
	for _, u := range controllers {
		add(u.ID)
	}

	if job.ProviderID != nil {
		var admins []models.User
		if err := d.db.Where("participant_id = ? AND role_id = ? AND is_active = ?",
			*job.ProviderID, int(authz.RoleProviderAdmin), true).Find(&admins).Error; err != nil {
			return nil, err
		}
		for _, u := range admins {
			add(u.ID)
		}
	}
	return out, nil
}

// resolveParticipantRecipients targets subscription-level events at the
// participant's decision makers: budget controllers on the client side,
// provider admins on the provider side.
func (d *NotificationDispatcher) resolveParticipantRecipients(event *models.DomainEvent) ([]uuid.UUID, error) {
	var payload map[string]interface{}
	if err := json.Unmarshal(event.Payload, &payload); err != nil {
		return nil, err
	}
	raw, _ := payload["participant_id"].(string)
	participantID, err := uuid.Parse(raw)
	if err != nil {
		return nil, err
	}

	var users []models.User
	if err := d.db.Where("participant_id = ? AND role_id IN ? AND is_active = ?",
		participantID, []int{int(authz.RoleClientController), int(authz.RoleProviderAdmin)}, true).
		Find(&users).Error; err != nil {
		return nil, err
	}
	var out []uuid.UUID
	for _, u := range users {
		if u.ID != event.ActorID {
			out = append(out, u.ID)
		}
	}
	return out, nil
}

func renderTemplate(templateStr string, ctx notificationContext) (string, error) {
	tmpl, err := template.New("notification").Parse(templateStr)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, ctx); err != nil {
		return "", err
	}
	return buf.String(), nil
}
