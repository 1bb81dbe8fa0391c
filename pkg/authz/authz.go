package authz

import "p9e.in/fixflow/models"

// CanActOnJob is the single actor-scoping predicate: it decides whether the
// actor has any business touching the job at all. Callers treat a false
// answer the same as the job not existing, so probing cannot reveal which
// jobs are real.
func CanActOnJob(a Actor, job *models.Job) bool {
	switch a.Role {
	case RoleTechnician:
		return job.TechnicianID != nil && *job.TechnicianID == a.UserID
	case RoleProviderAdmin:
		return a.IsProviderSide() && job.ProviderID != nil && *job.ProviderID == a.ParticipantID
	case RoleClientController:
		return a.IsClientSide() && job.ClientID == a.ParticipantID
	case RoleReportingEmployee:
		return job.ReportedByID == a.UserID && job.Status == models.JobStatusReported
	default:
		return false
	}
}

// statusSetters maps each target status to the roles allowed to drive a job
// into it. Edges absent here can only be reached through dedicated workflows
// (quote_provided is set by quotation submission).
var statusSetters = map[models.JobStatus][]Role{
	models.JobStatusAssigned:       {RoleClientController},
	models.JobStatusQuoteRequested: {RoleClientController},
	models.JobStatusQuoteProvided:  {RoleProviderAdmin},
	models.JobStatusInProgress:     {RoleProviderAdmin, RoleTechnician},
	models.JobStatusCompleted:      {RoleProviderAdmin, RoleTechnician},
	models.JobStatusConfirmed:      {RoleClientController},
	models.JobStatusIncomplete:     {RoleClientController, RoleProviderAdmin, RoleTechnician},
	models.JobStatusRejected:       {RoleClientController},
	models.JobStatusDeclined:       {RoleProviderAdmin},
	models.JobStatusCannotRepair:   {RoleProviderAdmin, RoleTechnician},
}

// CanSetStatus reports whether the actor's role may drive a job into the
// target status.
func CanSetStatus(a Actor, target models.JobStatus) bool {
	for _, r := range statusSetters[target] {
		if r == a.Role {
			return true
		}
	}
	return false
}

// RequiresNotes reports whether the transition into target needs a non-empty
// reason from this actor. CannotRepair always needs one; Incomplete needs one
// only when a provider-side actor initiates it (the client confirms
// incompleteness without a mandatory reason).
func RequiresNotes(a Actor, target models.JobStatus) bool {
	switch target {
	case models.JobStatusCannotRepair:
		return true
	case models.JobStatusIncomplete:
		return a.IsProviderSide()
	default:
		return false
	}
}

// IsAcceptance reports whether a transition counts as accepting the job for
// quota purposes: any move into InProgress from another status.
func IsAcceptance(from, to models.JobStatus) bool {
	return to == models.JobStatusInProgress && from != models.JobStatusInProgress
}

// OwnsQuotationJob reports whether the actor's client organization owns the
// job a quotation was raised against.
func OwnsQuotationJob(a Actor, job *models.Job) bool {
	return a.Role == RoleClientController && a.IsClientSide() && job.ClientID == a.ParticipantID
}
