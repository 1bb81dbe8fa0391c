package handlers

import (
	"errors"
	"fmt"
	"strings"

	"p9e.in/fixflow/models"
)

// Core error taxonomy. Every rejected operation names the invariant that
// blocked it; callers map these onto HTTP statuses at the routing layer.
var (
	// ErrJobNotFound covers both missing jobs and jobs outside the actor's
	// scope, so callers cannot probe for existence.
	ErrJobNotFound = errors.New("job not found")

	ErrUnauthorized      = errors.New("actor role may not perform this transition")
	ErrInvalidTransition = errors.New("status not reachable from current status")
	ErrMissingTechnician = errors.New("technician assignment required")
	ErrMissingReason     = errors.New("a reason is required for this status change")
	ErrStaleState        = errors.New("job was modified concurrently, refetch and retry")

	ErrQuoteNotFound    = errors.New("quotation not found")
	ErrNotOwner         = errors.New("quotation does not belong to a job owned by this client")
	ErrWrongQuoteStatus = errors.New("quotation is not in the expected status")
	ErrJobNotQuotable   = errors.New("job is not in a status that accepts quotations")
	ErrDuplicateQuote   = errors.New("an open quotation already exists for this job and provider")

	ErrNoActiveSubscription = errors.New("participant has no active subscription")
)

// QuotaError reports a monthly limit hit, carrying the numbers the caller
// needs for an actionable message.
type QuotaError struct {
	UsageType models.UsageType
	Usage     int
	Limit     int
}

func (e *QuotaError) Error() string {
	return fmt.Sprintf("%s limit reached for this month (%d of %d used)", e.UsageType, e.Usage, e.Limit)
}

// IsQuotaExceeded reports whether err is a quota gate failure.
func IsQuotaExceeded(err error) bool {
	var qe *QuotaError
	return errors.As(err, &qe)
}

// isUniqueViolation reports whether err is a unique-constraint violation.
// The postgres and sqlite drivers phrase it differently.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "duplicate key") ||
		strings.Contains(err.Error(), "UNIQUE constraint")
}
