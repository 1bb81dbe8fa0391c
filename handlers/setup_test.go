package handlers

import (
	"fmt"
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"p9e.in/fixflow/models"
	"p9e.in/fixflow/pkg/authz"
)

// openTestDB opens an isolated in-memory database migrated with the full
// schema.
func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(
		&models.Participant{}, &models.Location{}, &models.User{},
		&models.Job{}, &models.JobImage{}, &models.JobStatusHistory{},
		&models.Quotation{}, &models.QuotationHistory{},
		&models.Subscription{}, &models.UsageCounter{},
		&models.DomainEvent{}, &models.Notification{},
	); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	// AutoMigrate cannot express the partial index the migrations add.
	if err := db.Exec("CREATE UNIQUE INDEX IF NOT EXISTS idx_quotations_open_pair ON quotations(job_id, provider_id) WHERE status IN ('draft','submitted')").Error; err != nil {
		t.Fatalf("create quotation index: %v", err)
	}
	return db
}

// fixture is the standard two-organization world used by most tests: a
// client with a reporter and a budget controller, a provider with an admin
// and a technician, and active subscriptions on both sides.
type fixture struct {
	db *gorm.DB

	client   models.Participant
	provider models.Participant

	clientSub   models.Subscription
	providerSub models.Subscription

	reporter   models.User
	controller models.User
	admin      models.User
	tech       models.User
}

func newFixture(t *testing.T, clientLimit, providerLimit *int) *fixture {
	t.Helper()
	f := &fixture{db: openTestDB(t)}

	f.client = models.Participant{Name: "Acme Facilities", Type: models.EntityClient, IsActive: true}
	f.provider = models.Participant{Name: "RapidFix Services", Type: models.EntityServiceProvider, IsActive: true}
	for _, p := range []*models.Participant{&f.client, &f.provider} {
		if err := f.db.Create(p).Error; err != nil {
			t.Fatalf("seed participant: %v", err)
		}
	}

	f.clientSub = models.Subscription{
		ParticipantID: f.client.ID, Tier: models.TierBasic,
		MonthlyJobLimit: clientLimit, Status: models.SubscriptionStatusActive,
	}
	f.providerSub = models.Subscription{
		ParticipantID: f.provider.ID, Tier: models.TierBasic,
		MonthlyJobLimit: providerLimit, Status: models.SubscriptionStatusActive,
	}
	for _, s := range []*models.Subscription{&f.clientSub, &f.providerSub} {
		if err := f.db.Create(s).Error; err != nil {
			t.Fatalf("seed subscription: %v", err)
		}
	}

	f.reporter = f.seedUser(t, "reporter@acme.test", 1, f.client)
	f.controller = f.seedUser(t, "controller@acme.test", 2, f.client)
	f.admin = f.seedUser(t, "admin@rapidfix.test", 3, f.provider)
	f.tech = f.seedUser(t, "tech@rapidfix.test", 4, f.provider)
	return f
}

func (f *fixture) seedUser(t *testing.T, email string, roleID int, org models.Participant) models.User {
	t.Helper()
	u := models.User{
		Name: email, Email: email, PasswordHash: "x",
		RoleID: roleID, ParticipantID: org.ID, EntityType: org.Type, IsActive: true,
	}
	if err := f.db.Create(&u).Error; err != nil {
		t.Fatalf("seed user %s: %v", email, err)
	}
	return u
}

func (f *fixture) actorFor(u models.User) authz.Actor {
	return authz.Actor{
		UserID:        u.ID,
		Role:          authz.RoleFromID(u.RoleID),
		EntityType:    u.EntityType,
		ParticipantID: u.ParticipantID,
	}
}

// seedJob inserts a job in the given status, assigned to the fixture's
// provider unless the status is Reported.
func (f *fixture) seedJob(t *testing.T, status models.JobStatus) *models.Job {
	t.Helper()
	job := models.Job{
		Status:           status,
		ClientID:         f.client.ID,
		FaultDescription: "Compressor rattles on startup",
		ItemIdentifier:   "HVAC-12",
		ContactPerson:    "R. Reporter",
		ReportedByID:     f.reporter.ID,
	}
	if status != models.JobStatusReported {
		job.ProviderID = &f.provider.ID
	}
	if status == models.JobStatusInProgress || status == models.JobStatusCompleted ||
		status == models.JobStatusIncomplete {
		job.TechnicianID = &f.tech.ID
	}
	if err := f.db.Create(&job).Error; err != nil {
		t.Fatalf("seed job: %v", err)
	}
	if err := f.db.Create(&models.JobStatusHistory{
		JobID: job.ID, Status: models.JobStatusReported, ChangedByID: f.reporter.ID,
		ChangedAt: job.CreatedAt,
	}).Error; err != nil {
		t.Fatalf("seed history: %v", err)
	}
	return &job
}

func intPtr(n int) *int { return &n }

func historyStatuses(t *testing.T, db *gorm.DB, jobID uuid.UUID) []models.JobStatus {
	t.Helper()
	var entries []models.JobStatusHistory
	if err := db.Where("job_id = ?", jobID).Order("changed_at ASC").Find(&entries).Error; err != nil {
		t.Fatalf("load history: %v", err)
	}
	out := make([]models.JobStatus, len(entries))
	for i, e := range entries {
		out[i] = e.Status
	}
	return out
}
