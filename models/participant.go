// models/participant.go
package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// EntityType distinguishes the two kinds of participant organizations
type EntityType string

const (
	EntityClient          EntityType = "client"
	EntityServiceProvider EntityType = "service_provider"
)

// Participant is a client or service-provider organization; the ownership
// unit for jobs and usage quotas.
type Participant struct {
	ID        uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	Name      string     `gorm:"size:150;not null" json:"name"`
	Type      EntityType `gorm:"size:20;not null;index" json:"type"`
	IsActive  bool       `gorm:"default:true" json:"is_active"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`

	// Provider-side service area: a geojson polygon (optional) plus a base
	// point and radius fallback used when no polygon is configured.
	ServiceArea     string  `gorm:"type:text" json:"service_area,omitempty"`
	BaseLat         float64 `json:"base_lat,omitempty"`
	BaseLng         float64 `json:"base_lng,omitempty"`
	ServiceRadiusKm float64 `json:"service_radius_km,omitempty"`
}

func (p *Participant) BeforeCreate(tx *gorm.DB) (err error) {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return
}

// Location is a client-owned place a job can be raised against
type Location struct {
	ID            uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	ParticipantID uuid.UUID `gorm:"type:uuid;not null;index" json:"participant_id"`
	Name          string    `gorm:"size:150;not null" json:"name"`
	Address       string    `gorm:"size:255" json:"address"`
	Lat           float64   `json:"lat"`
	Lng           float64   `json:"lng"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func (l *Location) BeforeCreate(tx *gorm.DB) (err error) {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	return
}
