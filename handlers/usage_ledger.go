package handlers

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"p9e.in/fixflow/models"
)

// UsageLedger tracks and enforces the monthly per-participant action quotas.
type UsageLedger struct {
	db *gorm.DB
}

// NewUsageLedger creates a new usage ledger backed by db.
func NewUsageLedger(db *gorm.DB) *UsageLedger {
	return &UsageLedger{db: db}
}

// UsageStatus is the current standing of one quota for one month
type UsageStatus struct {
	UsageType models.UsageType `json:"usage_type"`
	Month     string           `json:"month"`
	Used      int              `json:"used"`
	Limit     *int             `json:"limit,omitempty"`
}

// activeSubscription loads the participant's active subscription.
func (l *UsageLedger) activeSubscription(db *gorm.DB, participantID uuid.UUID) (*models.Subscription, error) {
	var sub models.Subscription
	err := db.Where("participant_id = ? AND status = ?", participantID, models.SubscriptionStatusActive).
		First(&sub).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNoActiveSubscription
	}
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

// CanPerformAction reports whether the participant is still under its monthly
// limit for usageType. A nil tier limit means unlimited.
func (l *UsageLedger) CanPerformAction(participantID uuid.UUID, usageType models.UsageType) (bool, *UsageStatus, error) {
	sub, err := l.activeSubscription(l.db, participantID)
	if err != nil {
		return false, nil, err
	}

	month := models.MonthKey(time.Now())
	status := &UsageStatus{UsageType: usageType, Month: month, Limit: sub.MonthlyJobLimit}

	var counter models.UsageCounter
	err = l.db.Where("subscription_id = ? AND usage_type = ? AND usage_month = ?",
		sub.ID, usageType, month).First(&counter).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil, err
	}
	status.Used = counter.Count

	if sub.MonthlyJobLimit == nil {
		return true, status, nil
	}
	return counter.Count < *sub.MonthlyJobLimit, status, nil
}

// ChargeAction atomically increments the participant's counter for the
// current month, failing with a QuotaError when the tier limit is already
// spent. The check and the charge are a single conditional UPDATE, so two
// concurrent callers cannot both take the last slot. Must run inside the
// transaction of the action being gated, so a rolled-back action is never
// charged.
func (l *UsageLedger) ChargeAction(tx *gorm.DB, participantID uuid.UUID, usageType models.UsageType) error {
	sub, err := l.activeSubscription(tx, participantID)
	if err != nil {
		return err
	}

	month := models.MonthKey(time.Now())

	// Lazily create this month's row. The composite unique index makes the
	// insert a no-op when the row already exists.
	counter := models.UsageCounter{
		SubscriptionID: sub.ID,
		UsageType:      usageType,
		UsageMonth:     month,
		Count:          0,
	}
	if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&counter).Error; err != nil {
		return err
	}

	q := tx.Model(&models.UsageCounter{}).
		Where("subscription_id = ? AND usage_type = ? AND usage_month = ?", sub.ID, usageType, month)
	if sub.MonthlyJobLimit != nil {
		q = q.Where("count < ?", *sub.MonthlyJobLimit)
	}
	res := q.UpdateColumn("count", gorm.Expr("count + 1"))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		var current models.UsageCounter
		if err := tx.Where("subscription_id = ? AND usage_type = ? AND usage_month = ?",
			sub.ID, usageType, month).First(&current).Error; err != nil {
			return err
		}
		limit := 0
		if sub.MonthlyJobLimit != nil {
			limit = *sub.MonthlyJobLimit
		}
		return &QuotaError{UsageType: usageType, Usage: current.Count, Limit: limit}
	}

	if sub.MonthlyJobLimit != nil {
		var current models.UsageCounter
		if err := tx.Where("subscription_id = ? AND usage_type = ? AND usage_month = ?",
			sub.ID, usageType, month).First(&current).Error; err != nil {
			return err
		}
		// One warning event as the counter crosses 80% of the limit.
		warnAt := *sub.MonthlyJobLimit * 4 / 5
		if warnAt < 1 {
			warnAt = *sub.MonthlyJobLimit
		}
		if current.Count >= warnAt && current.Count-1 < warnAt {
			if err := appendEvent(tx, models.EventQuotaNearLimit, "subscription", sub.ID, uuid.Nil, map[string]interface{}{
				"participant_id": participantID,
				"usage_type":     usageType,
				"used":           current.Count,
				"limit":          *sub.MonthlyJobLimit,
			}); err != nil {
				return err
			}
		}
	}
	return nil
}

// MonthlyUsage returns the participant's counters for a given month.
func (l *UsageLedger) MonthlyUsage(participantID uuid.UUID, month string) ([]UsageStatus, error) {
	sub, err := l.activeSubscription(l.db, participantID)
	if err != nil {
		return nil, err
	}

	statuses := make([]UsageStatus, 0, 2)
	for _, ut := range []models.UsageType{models.UsageJobsCreated, models.UsageJobsAccepted} {
		var counter models.UsageCounter
		err := l.db.Where("subscription_id = ? AND usage_type = ? AND usage_month = ?",
			sub.ID, ut, month).First(&counter).Error
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
		statuses = append(statuses, UsageStatus{
			UsageType: ut,
			Month:     month,
			Used:      counter.Count,
			Limit:     sub.MonthlyJobLimit,
		})
	}
	return statuses, nil
}
