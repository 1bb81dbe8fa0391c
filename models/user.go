// models/user.go
package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// User is an account belonging to a participant organization. RoleID uses
// the fixed system enumeration (1 reporting employee, 2 client budget
// controller, 3 provider admin, 4 technician, 5 site administrator); the
// core converts it to a typed role at its boundary.
type User struct {
	ID            uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	Name          string     `gorm:"size:100;not null" json:"name"`
	Email         string     `gorm:"size:100;uniqueIndex;not null" json:"email"`
	Phone         string     `gorm:"size:15" json:"phone"`
	PasswordHash  string     `gorm:"size:255;not null" json:"-"`
	RoleID        int        `gorm:"not null" json:"role_id"`
	ParticipantID uuid.UUID  `gorm:"type:uuid;not null;index" json:"participant_id"`
	EntityType    EntityType `gorm:"size:20;not null" json:"entity_type"`
	IsActive      bool       `gorm:"default:true" json:"is_active"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`

	Participant *Participant `gorm:"foreignKey:ParticipantID" json:"participant,omitempty"`
}

func (u *User) BeforeCreate(tx *gorm.DB) (err error) {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return
}
