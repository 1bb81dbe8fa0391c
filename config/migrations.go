package config

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"
	"p9e.in/fixflow/models"
)

func Migrations(db *gorm.DB) error {
	m := gormigrate.New(db, gormigrate.DefaultOptions, []*gormigrate.Migration{
		{
			ID: "20260115_create_core_tables",
			Migrate: func(tx *gorm.DB) error {
				return tx.AutoMigrate(&models.Participant{}, &models.Location{}, &models.User{},
					&models.Job{}, &models.JobImage{}, &models.JobStatusHistory{})
			},
		},
		{
			ID: "20260115_create_quotation_tables",
			Migrate: func(tx *gorm.DB) error {
				return tx.AutoMigrate(&models.Quotation{}, &models.QuotationHistory{})
			},
		},
		{
			ID: "20260115_create_subscription_tables",
			Migrate: func(tx *gorm.DB) error {
				return tx.AutoMigrate(&models.Subscription{}, &models.UsageCounter{})
			},
		},
		{
			ID: "20260122_create_outbox_and_notifications",
			Migrate: func(tx *gorm.DB) error {
				return tx.AutoMigrate(&models.DomainEvent{}, &models.Notification{})
			},
		},
		{
			ID: "20260210_index_jobs_by_status_and_client",
			Migrate: func(tx *gorm.DB) error {
				return tx.Exec("CREATE INDEX IF NOT EXISTS idx_jobs_client_status ON jobs(client_id, status)").Error
			},
		},
		{
			// One open quotation per (job, provider); closed quotes stay out
			// of the index so a new cycle can start after accept or reject.
			ID: "20260901_unique_open_quotation_per_pair",
			Migrate: func(tx *gorm.DB) error {
				return tx.Exec("CREATE UNIQUE INDEX IF NOT EXISTS idx_quotations_open_pair ON quotations(job_id, provider_id) WHERE status IN ('draft','submitted')").Error
			},
		},
	})
	return m.Migrate()
}
