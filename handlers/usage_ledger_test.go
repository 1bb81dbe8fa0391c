package handlers

import (
	"errors"
	"testing"
	"time"

	"p9e.in/fixflow/models"
)

func TestChargeActionFreeTier(t *testing.T) {
	f := newFixture(t, intPtr(3), nil)
	ledger := NewUsageLedger(f.db)

	for i := 0; i < 3; i++ {
		if err := ledger.ChargeAction(f.db, f.client.ID, models.UsageJobsCreated); err != nil {
			t.Fatalf("charge %d: %v", i+1, err)
		}
	}

	err := ledger.ChargeAction(f.db, f.client.ID, models.UsageJobsCreated)
	if !IsQuotaExceeded(err) {
		t.Fatalf("fourth charge: err = %v, want QuotaError", err)
	}
	var qe *QuotaError
	errors.As(err, &qe)
	if qe.Usage != 3 || qe.Limit != 3 {
		t.Errorf("quota error = %d of %d, want 3 of 3", qe.Usage, qe.Limit)
	}

	// counter never exceeds the limit
	var counter models.UsageCounter
	f.db.Where("subscription_id = ? AND usage_type = ?",
		f.clientSub.ID, models.UsageJobsCreated).First(&counter)
	if counter.Count != 3 {
		t.Errorf("counter = %d, want 3", counter.Count)
	}
}

func TestChargeActionCreatesCounterLazily(t *testing.T) {
	f := newFixture(t, intPtr(5), nil)
	ledger := NewUsageLedger(f.db)

	var count int64
	f.db.Model(&models.UsageCounter{}).Count(&count)
	if count != 0 {
		t.Fatalf("expected no counters before first charge, got %d", count)
	}

	if err := ledger.ChargeAction(f.db, f.client.ID, models.UsageJobsCreated); err != nil {
		t.Fatalf("ChargeAction: %v", err)
	}

	var counter models.UsageCounter
	if err := f.db.Where("subscription_id = ?", f.clientSub.ID).First(&counter).Error; err != nil {
		t.Fatalf("counter row missing: %v", err)
	}
	if counter.Count != 1 || counter.UsageMonth != models.MonthKey(time.Now()) {
		t.Errorf("counter = %+v", counter)
	}
}

func TestChargeActionTracksTypesSeparately(t *testing.T) {
	f := newFixture(t, intPtr(1), nil)
	ledger := NewUsageLedger(f.db)

	if err := ledger.ChargeAction(f.db, f.client.ID, models.UsageJobsCreated); err != nil {
		t.Fatalf("charge jobs_created: %v", err)
	}
	// jobs_accepted has its own counter, unaffected by jobs_created
	if err := ledger.ChargeAction(f.db, f.client.ID, models.UsageJobsAccepted); err != nil {
		t.Fatalf("charge jobs_accepted: %v", err)
	}
	if err := ledger.ChargeAction(f.db, f.client.ID, models.UsageJobsCreated); !IsQuotaExceeded(err) {
		t.Fatalf("second jobs_created: err = %v, want QuotaError", err)
	}
}

// A limit fully spent in one month does not carry into the next; the new
// month starts with a fresh counter.
func TestChargeActionMonthRollover(t *testing.T) {
	f := newFixture(t, intPtr(1), nil)
	ledger := NewUsageLedger(f.db)

	now := time.Now().UTC()
	firstOfMonth := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	lastMonth := models.MonthKey(firstOfMonth.AddDate(0, 0, -1))
	if err := f.db.Create(&models.UsageCounter{
		SubscriptionID: f.clientSub.ID,
		UsageType:      models.UsageJobsCreated,
		UsageMonth:     lastMonth,
		Count:          1,
	}).Error; err != nil {
		t.Fatalf("seed last month: %v", err)
	}

	if err := ledger.ChargeAction(f.db, f.client.ID, models.UsageJobsCreated); err != nil {
		t.Fatalf("charge in fresh month: %v", err)
	}

	var current models.UsageCounter
	if err := f.db.Where("subscription_id = ? AND usage_type = ? AND usage_month = ?",
		f.clientSub.ID, models.UsageJobsCreated, models.MonthKey(now)).First(&current).Error; err != nil {
		t.Fatalf("current month counter: %v", err)
	}
	if current.Count != 1 {
		t.Errorf("current month count = %d, want 1", current.Count)
	}

	var previous models.UsageCounter
	if err := f.db.Where("subscription_id = ? AND usage_month = ?",
		f.clientSub.ID, lastMonth).First(&previous).Error; err != nil {
		t.Fatalf("last month counter: %v", err)
	}
	if previous.Count != 1 {
		t.Errorf("last month count = %d, want untouched 1", previous.Count)
	}

	// the fresh month enforces its own limit
	if err := ledger.ChargeAction(f.db, f.client.ID, models.UsageJobsCreated); !IsQuotaExceeded(err) {
		t.Errorf("second charge: err = %v, want QuotaError", err)
	}
}

func TestCanPerformAction(t *testing.T) {
	f := newFixture(t, intPtr(2), nil)
	ledger := NewUsageLedger(f.db)

	ok, status, err := ledger.CanPerformAction(f.client.ID, models.UsageJobsCreated)
	if err != nil || !ok {
		t.Fatalf("fresh month: ok=%v err=%v", ok, err)
	}
	if status.Used != 0 || status.Limit == nil || *status.Limit != 2 {
		t.Errorf("status = %+v", status)
	}

	for i := 0; i < 2; i++ {
		if err := ledger.ChargeAction(f.db, f.client.ID, models.UsageJobsCreated); err != nil {
			t.Fatalf("charge: %v", err)
		}
	}

	ok, status, err = ledger.CanPerformAction(f.client.ID, models.UsageJobsCreated)
	if err != nil {
		t.Fatalf("CanPerformAction: %v", err)
	}
	if ok {
		t.Errorf("expected limit to be spent")
	}
	if status.Used != 2 {
		t.Errorf("used = %d, want 2", status.Used)
	}
}

func TestUnlimitedTierNeverBlocks(t *testing.T) {
	f := newFixture(t, nil, nil)
	ledger := NewUsageLedger(f.db)

	for i := 0; i < 10; i++ {
		if err := ledger.ChargeAction(f.db, f.client.ID, models.UsageJobsCreated); err != nil {
			t.Fatalf("charge %d: %v", i+1, err)
		}
	}
	ok, status, err := ledger.CanPerformAction(f.client.ID, models.UsageJobsCreated)
	if err != nil || !ok {
		t.Fatalf("ok=%v err=%v", ok, err)
	}
	if status.Used != 10 || status.Limit != nil {
		t.Errorf("status = %+v", status)
	}
}

func TestNoActiveSubscription(t *testing.T) {
	f := newFixture(t, intPtr(3), nil)
	f.db.Model(&models.Subscription{}).Where("id = ?", f.clientSub.ID).
		UpdateColumn("status", models.SubscriptionStatusCancelled)

	ledger := NewUsageLedger(f.db)
	if _, _, err := ledger.CanPerformAction(f.client.ID, models.UsageJobsCreated); !errors.Is(err, ErrNoActiveSubscription) {
		t.Errorf("CanPerformAction: err = %v, want ErrNoActiveSubscription", err)
	}
	if err := ledger.ChargeAction(f.db, f.client.ID, models.UsageJobsCreated); !errors.Is(err, ErrNoActiveSubscription) {
		t.Errorf("ChargeAction: err = %v, want ErrNoActiveSubscription", err)
	}
}

func TestMonthlyUsage(t *testing.T) {
	f := newFixture(t, intPtr(3), nil)
	ledger := NewUsageLedger(f.db)

	if err := ledger.ChargeAction(f.db, f.client.ID, models.UsageJobsCreated); err != nil {
		t.Fatalf("charge: %v", err)
	}

	month := models.MonthKey(time.Now())
	statuses, err := ledger.MonthlyUsage(f.client.ID, month)
	if err != nil {
		t.Fatalf("MonthlyUsage: %v", err)
	}
	if len(statuses) != 2 {
		t.Fatalf("got %d statuses, want 2", len(statuses))
	}
	byType := map[models.UsageType]UsageStatus{}
	for _, s := range statuses {
		byType[s.UsageType] = s
	}
	if byType[models.UsageJobsCreated].Used != 1 {
		t.Errorf("jobs_created used = %d, want 1", byType[models.UsageJobsCreated].Used)
	}
	if byType[models.UsageJobsAccepted].Used != 0 {
		t.Errorf("jobs_accepted used = %d, want 0", byType[models.UsageJobsAccepted].Used)
	}
}

func TestMonthKey(t *testing.T) {
	// month boundaries are computed in UTC
	ts := time.Date(2026, 9, 1, 0, 30, 0, 0, time.UTC)
	if got := models.MonthKey(ts); got != "2026-09" {
		t.Errorf("MonthKey = %q, want 2026-09", got)
	}
	east := time.FixedZone("UTC+10", 10*3600)
	if got := models.MonthKey(time.Date(2026, 9, 1, 5, 0, 0, 0, east)); got != "2026-08" {
		t.Errorf("MonthKey across zones = %q, want 2026-08", got)
	}
}
