package handlers

import (
	"errors"
	"testing"

	"p9e.in/fixflow/models"
)

func TestTransitionHappyPath(t *testing.T) {
	f := newFixture(t, nil, nil)
	engine := NewJobLifecycle(f.db)
	job := f.seedJob(t, models.JobStatusAssigned)

	got, err := engine.Transition(f.actorFor(f.admin), job.ID, TransitionInput{
		Status:       models.JobStatusInProgress,
		TechnicianID: &f.tech.ID,
	})
	if err != nil {
		t.Fatalf("Transition: %v", err)
	}
	if got.Status != models.JobStatusInProgress {
		t.Errorf("status = %s, want in_progress", got.Status)
	}
	if got.TechnicianID == nil || *got.TechnicianID != f.tech.ID {
		t.Errorf("technician not recorded on job")
	}

	statuses := historyStatuses(t, f.db, job.ID)
	if len(statuses) != 2 || statuses[1] != models.JobStatusInProgress {
		t.Errorf("history = %v, want [reported in_progress]", statuses)
	}

	// acceptance is quota-charged against the provider
	var counter models.UsageCounter
	if err := f.db.Where("subscription_id = ? AND usage_type = ?",
		f.providerSub.ID, models.UsageJobsAccepted).First(&counter).Error; err != nil {
		t.Fatalf("expected a usage counter row: %v", err)
	}
	if counter.Count != 1 {
		t.Errorf("counter = %d, want 1", counter.Count)
	}
}

func TestTransitionGraphViolation(t *testing.T) {
	f := newFixture(t, nil, nil)
	engine := NewJobLifecycle(f.db)
	job := f.seedJob(t, models.JobStatusReported)

	_, err := engine.Transition(f.actorFor(f.controller), job.ID, TransitionInput{
		Status: models.JobStatusCompleted,
	})
	if !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("err = %v, want ErrInvalidTransition", err)
	}
	if statuses := historyStatuses(t, f.db, job.ID); len(statuses) != 1 {
		t.Errorf("rejected transition appended history: %v", statuses)
	}
}

// The graph is checked before the role, so an edge that fails both reports
// the graph violation.
func TestTransitionRuleOrder(t *testing.T) {
	f := newFixture(t, nil, nil)
	engine := NewJobLifecycle(f.db)
	job := f.seedJob(t, models.JobStatusInProgress)

	actor := f.actorFor(f.tech)
	_, err := engine.Transition(actor, job.ID, TransitionInput{Status: models.JobStatusConfirmed})
	if !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("err = %v, want ErrInvalidTransition", err)
	}

	// reachable edge, wrong role
	job2 := f.seedJob(t, models.JobStatusCompleted)
	_, err = engine.Transition(f.actorFor(f.tech), job2.ID, TransitionInput{Status: models.JobStatusConfirmed})
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("err = %v, want ErrUnauthorized", err)
	}
}

func TestTransitionTechnicianPrecondition(t *testing.T) {
	f := newFixture(t, nil, nil)
	engine := NewJobLifecycle(f.db)
	actor := f.actorFor(f.admin)

	job := f.seedJob(t, models.JobStatusAssigned)
	_, err := engine.Transition(actor, job.ID, TransitionInput{Status: models.JobStatusInProgress})
	if !errors.Is(err, ErrMissingTechnician) {
		t.Fatalf("no technician: err = %v, want ErrMissingTechnician", err)
	}

	// a client-side user is not a valid technician
	_, err = engine.Transition(actor, job.ID, TransitionInput{
		Status:       models.JobStatusInProgress,
		TechnicianID: &f.reporter.ID,
	})
	if !errors.Is(err, ErrMissingTechnician) {
		t.Fatalf("foreign technician: err = %v, want ErrMissingTechnician", err)
	}
}

func TestTransitionNotesPrecondition(t *testing.T) {
	f := newFixture(t, nil, nil)
	engine := NewJobLifecycle(f.db)

	job := f.seedJob(t, models.JobStatusInProgress)
	_, err := engine.Transition(f.actorFor(f.tech), job.ID, TransitionInput{
		Status: models.JobStatusCannotRepair,
		Notes:  "   ",
	})
	if !errors.Is(err, ErrMissingReason) {
		t.Fatalf("cannot_repair without reason: err = %v, want ErrMissingReason", err)
	}

	if _, err := engine.Transition(f.actorFor(f.tech), job.ID, TransitionInput{
		Status: models.JobStatusCannotRepair,
		Notes:  "Spare part discontinued",
	}); err != nil {
		t.Fatalf("cannot_repair with reason: %v", err)
	}

	// provider marking incomplete needs a reason, the client does not
	job2 := f.seedJob(t, models.JobStatusCompleted)
	_, err = engine.Transition(f.actorFor(f.admin), job2.ID, TransitionInput{
		Status: models.JobStatusIncomplete,
	})
	if !errors.Is(err, ErrMissingReason) {
		t.Fatalf("provider incomplete without reason: err = %v, want ErrMissingReason", err)
	}
	if _, err := engine.Transition(f.actorFor(f.controller), job2.ID, TransitionInput{
		Status: models.JobStatusIncomplete,
	}); err != nil {
		t.Fatalf("client incomplete without reason: %v", err)
	}
}

func TestTransitionScoping(t *testing.T) {
	f := newFixture(t, nil, nil)
	engine := NewJobLifecycle(f.db)

	// the reporter loses access once the job leaves Reported
	job := f.seedJob(t, models.JobStatusAssigned)
	_, err := engine.Transition(f.actorFor(f.reporter), job.ID, TransitionInput{
		Status: models.JobStatusDeclined,
	})
	if !errors.Is(err, ErrJobNotFound) {
		t.Fatalf("out-of-scope job: err = %v, want ErrJobNotFound", err)
	}

	// a technician not assigned to the job cannot see it
	other := f.seedUser(t, "tech2@rapidfix.test", 4, f.provider)
	job2 := f.seedJob(t, models.JobStatusInProgress)
	_, err = engine.Transition(f.actorFor(other), job2.ID, TransitionInput{
		Status: models.JobStatusCompleted,
	})
	if !errors.Is(err, ErrJobNotFound) {
		t.Fatalf("unassigned technician: err = %v, want ErrJobNotFound", err)
	}
}

func TestTransitionQuotaGate(t *testing.T) {
	f := newFixture(t, nil, intPtr(1))
	engine := NewJobLifecycle(f.db)
	actor := f.actorFor(f.admin)

	job1 := f.seedJob(t, models.JobStatusAssigned)
	if _, err := engine.Transition(actor, job1.ID, TransitionInput{
		Status: models.JobStatusInProgress, TechnicianID: &f.tech.ID,
	}); err != nil {
		t.Fatalf("first acceptance: %v", err)
	}

	job2 := f.seedJob(t, models.JobStatusAssigned)
	_, err := engine.Transition(actor, job2.ID, TransitionInput{
		Status: models.JobStatusInProgress, TechnicianID: &f.tech.ID,
	})
	if !IsQuotaExceeded(err) {
		t.Fatalf("second acceptance: err = %v, want QuotaError", err)
	}
	var qe *QuotaError
	errors.As(err, &qe)
	if qe.Usage != 1 || qe.Limit != 1 {
		t.Errorf("quota error = %d of %d, want 1 of 1", qe.Usage, qe.Limit)
	}

	// the rejected job is untouched
	var reloaded models.Job
	f.db.First(&reloaded, "id = ?", job2.ID)
	if reloaded.Status != models.JobStatusAssigned {
		t.Errorf("job2 status = %s, want assigned", reloaded.Status)
	}

	// any re-entry into in_progress counts as an acceptance, so resuming an
	// incomplete job is also gated
	f.db.Model(&models.Job{}).Where("id = ?", job1.ID).
		UpdateColumn("status", models.JobStatusIncomplete)
	if _, err := engine.Transition(actor, job1.ID, TransitionInput{
		Status: models.JobStatusInProgress, TechnicianID: &f.tech.ID,
	}); !IsQuotaExceeded(err) {
		t.Fatalf("resume from incomplete: err = %v, want QuotaError", err)
	}
}

func TestTransitionUnlimitedTier(t *testing.T) {
	f := newFixture(t, nil, nil)
	engine := NewJobLifecycle(f.db)
	actor := f.actorFor(f.admin)

	for i := 0; i < 5; i++ {
		job := f.seedJob(t, models.JobStatusAssigned)
		if _, err := engine.Transition(actor, job.ID, TransitionInput{
			Status: models.JobStatusInProgress, TechnicianID: &f.tech.ID,
		}); err != nil {
			t.Fatalf("acceptance %d on unlimited tier: %v", i+1, err)
		}
	}
}

func TestTransitionNoActiveSubscription(t *testing.T) {
	f := newFixture(t, nil, intPtr(5))
	f.db.Model(&models.Subscription{}).Where("id = ?", f.providerSub.ID).
		UpdateColumn("status", models.SubscriptionStatusSuspended)

	engine := NewJobLifecycle(f.db)
	job := f.seedJob(t, models.JobStatusAssigned)
	_, err := engine.Transition(f.actorFor(f.admin), job.ID, TransitionInput{
		Status: models.JobStatusInProgress, TechnicianID: &f.tech.ID,
	})
	if !errors.Is(err, ErrNoActiveSubscription) {
		t.Fatalf("err = %v, want ErrNoActiveSubscription", err)
	}
}

func TestHistoryOrdering(t *testing.T) {
	f := newFixture(t, nil, nil)
	engine := NewJobLifecycle(f.db)
	job := f.seedJob(t, models.JobStatusAssigned)

	steps := []struct {
		actor models.User
		in    TransitionInput
	}{
		{f.admin, TransitionInput{Status: models.JobStatusInProgress, TechnicianID: &f.tech.ID}},
		{f.tech, TransitionInput{Status: models.JobStatusCompleted}},
		{f.controller, TransitionInput{Status: models.JobStatusConfirmed}},
	}
	for _, s := range steps {
		if _, err := engine.Transition(f.actorFor(s.actor), job.ID, s.in); err != nil {
			t.Fatalf("transition to %s: %v", s.in.Status, err)
		}
	}

	entries, err := engine.History(f.actorFor(f.controller), job.ID)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	want := []models.JobStatus{
		models.JobStatusReported, models.JobStatusInProgress,
		models.JobStatusCompleted, models.JobStatusConfirmed,
	}
	if len(entries) != len(want) {
		t.Fatalf("history length = %d, want %d", len(entries), len(want))
	}
	for i, e := range entries {
		if e.Status != want[i] {
			t.Errorf("history[%d] = %s, want %s", i, e.Status, want[i])
		}
	}
}

func TestTerminalStatusesHaveNoExits(t *testing.T) {
	terminals := []models.JobStatus{
		models.JobStatusConfirmed, models.JobStatusRejected,
		models.JobStatusDeclined, models.JobStatusCannotRepair,
	}
	all := []models.JobStatus{
		models.JobStatusReported, models.JobStatusAssigned, models.JobStatusQuoteRequested,
		models.JobStatusQuoteProvided, models.JobStatusInProgress, models.JobStatusCompleted,
		models.JobStatusConfirmed, models.JobStatusIncomplete, models.JobStatusRejected,
		models.JobStatusDeclined, models.JobStatusCannotRepair,
	}
	for _, terminal := range terminals {
		if !terminal.IsTerminal() {
			t.Errorf("%s should be terminal", terminal)
		}
		for _, next := range all {
			if terminal.CanTransitionTo(next) {
				t.Errorf("%s -> %s should not be reachable", terminal, next)
			}
		}
	}
}
