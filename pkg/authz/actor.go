// Package authz holds the consolidated authorization predicates for the job
// and quotation workflows. Roles arrive from the surrounding system as raw
// integers; they are converted to the closed enumeration here, once, at the
// core's boundary.
package authz

import (
	"github.com/google/uuid"
	"p9e.in/fixflow/models"
)

// Role is the closed set of roles the core understands
type Role int

const (
	RoleUnknown           Role = 0
	RoleReportingEmployee Role = 1
	RoleClientController  Role = 2
	RoleProviderAdmin     Role = 3
	RoleTechnician        Role = 4
	RoleSiteAdmin         Role = 5
)

// RoleFromID converts the system's integer role identifier to a Role.
// Unmapped values come back as RoleUnknown, which no predicate accepts.
func RoleFromID(id int) Role {
	switch id {
	case 1, 2, 3, 4, 5:
		return Role(id)
	default:
		return RoleUnknown
	}
}

func (r Role) String() string {
	switch r {
	case RoleReportingEmployee:
		return "reporting_employee"
	case RoleClientController:
		return "client_controller"
	case RoleProviderAdmin:
		return "provider_admin"
	case RoleTechnician:
		return "technician"
	case RoleSiteAdmin:
		return "site_admin"
	default:
		return "unknown"
	}
}

// Actor is the trusted caller context supplied by the HTTP layer
type Actor struct {
	UserID        uuid.UUID
	Role          Role
	EntityType    models.EntityType
	ParticipantID uuid.UUID
}

// IsClientSide reports whether the actor belongs to a client organization.
func (a Actor) IsClientSide() bool {
	return a.EntityType == models.EntityClient
}

// IsProviderSide reports whether the actor belongs to a service provider.
func (a Actor) IsProviderSide() bool {
	return a.EntityType == models.EntityServiceProvider
}
