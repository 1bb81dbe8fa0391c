package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeCoreError maps the core error taxonomy onto HTTP statuses. Quota hits
// get 429 with the usage numbers so clients can render an actionable message.
func writeCoreError(w http.ResponseWriter, err error) {
	var qe *QuotaError
	if errors.As(err, &qe) {
		writeJSON(w, http.StatusTooManyRequests, map[string]interface{}{
			"error":      qe.Error(),
			"usage_type": qe.UsageType,
			"used":       qe.Usage,
			"limit":      qe.Limit,
		})
		return
	}

	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, ErrJobNotFound), errors.Is(err, ErrQuoteNotFound):
		status = http.StatusNotFound
	case errors.Is(err, ErrUnauthorized), errors.Is(err, ErrNotOwner):
		status = http.StatusForbidden
	case errors.Is(err, ErrMissingTechnician), errors.Is(err, ErrMissingReason):
		status = http.StatusBadRequest
	case errors.Is(err, ErrInvalidTransition), errors.Is(err, ErrStaleState),
		errors.Is(err, ErrWrongQuoteStatus), errors.Is(err, ErrJobNotQuotable),
		errors.Is(err, ErrDuplicateQuote):
		status = http.StatusConflict
	case errors.Is(err, ErrNoActiveSubscription):
		status = http.StatusPaymentRequired
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
