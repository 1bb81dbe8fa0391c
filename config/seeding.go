package config

import (
	"log"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
	"p9e.in/fixflow/models"
)

// Seed creates a demo client, a demo provider and one account per role so a
// fresh install is usable immediately. Skips everything once any participant
// exists.
func Seed(db *gorm.DB) error {
	var count int64
	if err := db.Model(&models.Participant{}).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	log.Println("=== Seeding demo organizations ===")

	client := models.Participant{
		Name:     "Acme Facilities",
		Type:     models.EntityClient,
		IsActive: true,
	}
	if err := db.Create(&client).Error; err != nil {
		return err
	}

	provider := models.Participant{
		Name:            "RapidFix Services",
		Type:            models.EntityServiceProvider,
		IsActive:        true,
		BaseLat:         52.52,
		BaseLng:         13.405,
		ServiceRadiusKm: 50,
	}
	if err := db.Create(&provider).Error; err != nil {
		return err
	}

	location := models.Location{
		ParticipantID: client.ID,
		Name:          "Head Office",
		Address:       "Invalidenstr. 1",
		Lat:           52.53,
		Lng:           13.39,
	}
	if err := db.Create(&location).Error; err != nil {
		return err
	}

	// Client starts on the free tier, provider on basic.
	subs := []models.Subscription{
		{ParticipantID: client.ID, Tier: models.TierFree,
			MonthlyJobLimit: models.DefaultLimitForTier(models.TierFree),
			Status:          models.SubscriptionStatusActive},
		{ParticipantID: provider.ID, Tier: models.TierBasic,
			MonthlyJobLimit: models.DefaultLimitForTier(models.TierBasic),
			Status:          models.SubscriptionStatusActive},
	}
	for i := range subs {
		if err := db.Create(&subs[i]).Error; err != nil {
			return err
		}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte("changeme123"), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	users := []models.User{
		{Name: "Rita Reporter", Email: "reporter@acme.example", RoleID: 1,
			ParticipantID: client.ID, EntityType: client.Type},
		{Name: "Carl Controller", Email: "controller@acme.example", RoleID: 2,
			ParticipantID: client.ID, EntityType: client.Type},
		{Name: "Petra Provider", Email: "admin@rapidfix.example", RoleID: 3,
			ParticipantID: provider.ID, EntityType: provider.Type},
		{Name: "Theo Technician", Email: "tech@rapidfix.example", RoleID: 4,
			ParticipantID: provider.ID, EntityType: provider.Type},
	}
	for i := range users {
		users[i].PasswordHash = string(hash)
		users[i].IsActive = true
		if err := db.Create(&users[i]).Error; err != nil {
			return err
		}
		log.Printf("✅ Seeded user %s (%s)", users[i].Email, users[i].Name)
	}

	log.Println("=== Seeding complete ===")
	return nil
}
