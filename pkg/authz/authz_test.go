package authz

import (
	"testing"

	"github.com/google/uuid"
	"p9e.in/fixflow/models"
)

func TestCanActOnJob(t *testing.T) {
	clientOrg := uuid.New()
	providerOrg := uuid.New()
	reporter := uuid.New()
	technician := uuid.New()

	job := &models.Job{
		Status:       models.JobStatusAssigned,
		ClientID:     clientOrg,
		ReportedByID: reporter,
		ProviderID:   &providerOrg,
		TechnicianID: &technician,
	}
	reportedJob := &models.Job{
		Status:       models.JobStatusReported,
		ClientID:     clientOrg,
		ReportedByID: reporter,
	}

	tests := []struct {
		name     string
		actor    Actor
		job      *models.Job
		expected bool
	}{
		{"assigned technician", Actor{UserID: technician, Role: RoleTechnician,
			EntityType: models.EntityServiceProvider, ParticipantID: providerOrg}, job, true},
		{"other technician", Actor{UserID: uuid.New(), Role: RoleTechnician,
			EntityType: models.EntityServiceProvider, ParticipantID: providerOrg}, job, false},
		{"provider admin of assigned org", Actor{UserID: uuid.New(), Role: RoleProviderAdmin,
			EntityType: models.EntityServiceProvider, ParticipantID: providerOrg}, job, true},
		{"provider admin of other org", Actor{UserID: uuid.New(), Role: RoleProviderAdmin,
			EntityType: models.EntityServiceProvider, ParticipantID: uuid.New()}, job, false},
		{"controller of owning client", Actor{UserID: uuid.New(), Role: RoleClientController,
			EntityType: models.EntityClient, ParticipantID: clientOrg}, job, true},
		{"controller of other client", Actor{UserID: uuid.New(), Role: RoleClientController,
			EntityType: models.EntityClient, ParticipantID: uuid.New()}, job, false},
		{"reporter while reported", Actor{UserID: reporter, Role: RoleReportingEmployee,
			EntityType: models.EntityClient, ParticipantID: clientOrg}, reportedJob, true},
		{"reporter after assignment", Actor{UserID: reporter, Role: RoleReportingEmployee,
			EntityType: models.EntityClient, ParticipantID: clientOrg}, job, false},
		{"unknown role", Actor{UserID: uuid.New(), Role: RoleUnknown,
			EntityType: models.EntityClient, ParticipantID: clientOrg}, job, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CanActOnJob(tt.actor, tt.job); got != tt.expected {
				t.Errorf("CanActOnJob = %v, expected %v", got, tt.expected)
			}
		})
	}
}

func TestCanSetStatus(t *testing.T) {
	controller := Actor{Role: RoleClientController, EntityType: models.EntityClient}
	admin := Actor{Role: RoleProviderAdmin, EntityType: models.EntityServiceProvider}
	tech := Actor{Role: RoleTechnician, EntityType: models.EntityServiceProvider}
	reporter := Actor{Role: RoleReportingEmployee, EntityType: models.EntityClient}

	tests := []struct {
		name     string
		actor    Actor
		target   models.JobStatus
		expected bool
	}{
		{"controller assigns", controller, models.JobStatusAssigned, true},
		{"controller requests quote", controller, models.JobStatusQuoteRequested, true},
		{"controller confirms", controller, models.JobStatusConfirmed, true},
		{"controller rejects", controller, models.JobStatusRejected, true},
		{"controller cannot decline", controller, models.JobStatusDeclined, false},
		{"admin declines", admin, models.JobStatusDeclined, true},
		{"admin starts work", admin, models.JobStatusInProgress, true},
		{"admin cannot confirm", admin, models.JobStatusConfirmed, false},
		{"tech completes", tech, models.JobStatusCompleted, true},
		{"tech cannot reject", tech, models.JobStatusRejected, false},
		{"reporter sets nothing", reporter, models.JobStatusAssigned, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CanSetStatus(tt.actor, tt.target); got != tt.expected {
				t.Errorf("CanSetStatus(%s, %s) = %v, expected %v",
					tt.actor.Role, tt.target, got, tt.expected)
			}
		})
	}
}

func TestRequiresNotes(t *testing.T) {
	admin := Actor{Role: RoleProviderAdmin, EntityType: models.EntityServiceProvider}
	controller := Actor{Role: RoleClientController, EntityType: models.EntityClient}

	if !RequiresNotes(admin, models.JobStatusCannotRepair) {
		t.Errorf("cannot_repair should always need notes")
	}
	if !RequiresNotes(controller, models.JobStatusCannotRepair) {
		t.Errorf("cannot_repair should always need notes")
	}
	if !RequiresNotes(admin, models.JobStatusIncomplete) {
		t.Errorf("provider-side incomplete should need notes")
	}
	if RequiresNotes(controller, models.JobStatusIncomplete) {
		t.Errorf("client-side incomplete should not need notes")
	}
	if RequiresNotes(admin, models.JobStatusCompleted) {
		t.Errorf("completed should not need notes")
	}
}

func TestIsAcceptance(t *testing.T) {
	if !IsAcceptance(models.JobStatusAssigned, models.JobStatusInProgress) {
		t.Errorf("assigned -> in_progress should count as acceptance")
	}
	if !IsAcceptance(models.JobStatusIncomplete, models.JobStatusInProgress) {
		t.Errorf("incomplete -> in_progress should count as acceptance")
	}
	if IsAcceptance(models.JobStatusInProgress, models.JobStatusCompleted) {
		t.Errorf("leaving in_progress is not an acceptance")
	}
}

func TestRoleFromID(t *testing.T) {
	for id := 1; id <= 5; id++ {
		if RoleFromID(id) == RoleUnknown {
			t.Errorf("RoleFromID(%d) = unknown", id)
		}
	}
	for _, id := range []int{0, -1, 6, 42} {
		if RoleFromID(id) != RoleUnknown {
			t.Errorf("RoleFromID(%d) should be unknown", id)
		}
	}
}
