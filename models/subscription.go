package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// SubscriptionTier is the billing tier of a participant
type SubscriptionTier string

const (
	TierFree     SubscriptionTier = "free"
	TierBasic    SubscriptionTier = "basic"
	TierAdvanced SubscriptionTier = "advanced"
)

// SubscriptionStatus is the state of a subscription
type SubscriptionStatus string

const (
	SubscriptionStatusActive    SubscriptionStatus = "active"
	SubscriptionStatusSuspended SubscriptionStatus = "suspended"
	SubscriptionStatusCancelled SubscriptionStatus = "cancelled"
)

// Subscription ties a participant to a tier and its monthly job limit.
// A nil MonthlyJobLimit means unlimited.
type Subscription struct {
	ID              uuid.UUID          `gorm:"type:uuid;primaryKey" json:"id"`
	ParticipantID   uuid.UUID          `gorm:"type:uuid;not null;uniqueIndex" json:"participant_id"`
	Tier            SubscriptionTier   `gorm:"size:20;not null" json:"tier"`
	MonthlyJobLimit *int               `json:"monthly_job_limit,omitempty"`
	Status          SubscriptionStatus `gorm:"size:20;not null;default:'active'" json:"status"`
	CreatedAt       time.Time          `json:"created_at"`
	UpdatedAt       time.Time          `json:"updated_at"`
}

func (s *Subscription) BeforeCreate(tx *gorm.DB) (err error) {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return
}

// DefaultLimitForTier returns the monthly job limit seeded for a tier.
func DefaultLimitForTier(tier SubscriptionTier) *int {
	var n int
	switch tier {
	case TierFree:
		n = 3
	case TierBasic:
		n = 25
	default:
		return nil // advanced is unlimited
	}
	return &n
}
