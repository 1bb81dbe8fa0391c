package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// UsageType identifies a quota-gated action
type UsageType string

const (
	UsageJobsCreated  UsageType = "jobs_created"
	UsageJobsAccepted UsageType = "jobs_accepted"
)

// UsageCounter is the per-subscription, per-month tally of a quota-gated
// action. Count only ever increases within a month; a fresh row appears
// implicitly on first use each month.
type UsageCounter struct {
	ID             uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	SubscriptionID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_usage_period" json:"subscription_id"`
	UsageType      UsageType `gorm:"size:30;not null;uniqueIndex:idx_usage_period" json:"usage_type"`
	UsageMonth     string    `gorm:"size:7;not null;uniqueIndex:idx_usage_period" json:"usage_month"`
	Count          int       `gorm:"not null;default:0" json:"count"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func (c *UsageCounter) BeforeCreate(tx *gorm.DB) (err error) {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return
}

// MonthKey formats t as the usage-month key, e.g. "2026-08".
func MonthKey(t time.Time) string {
	return t.UTC().Format("2006-01")
}
