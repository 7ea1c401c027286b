package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/wolfman30/chairbook/internal/availability"
	"github.com/wolfman30/chairbook/internal/bookings"
	"github.com/wolfman30/chairbook/internal/noshow"
	"github.com/wolfman30/chairbook/internal/tenancy"
	"github.com/wolfman30/chairbook/internal/tenant"
	"github.com/wolfman30/chairbook/pkg/logging"
)

// errorResponse is the body of every non-2xx API response.
type errorResponse struct {
	ErrorKind string `json:"error_kind"`
	Message   string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func jsonError(w http.ResponseWriter, kind, message string, status int) {
	writeJSON(w, status, errorResponse{ErrorKind: kind, Message: message})
}

// kindStatus is the HTTP status for each booking error kind.
var kindStatus = map[string]int{
	bookings.KindSlotConflict:            http.StatusConflict,
	bookings.KindOutsideAvailability:     http.StatusUnprocessableEntity,
	bookings.KindInvalidStatusTransition: http.StatusConflict,
	bookings.KindInvalidInterval:         http.StatusUnprocessableEntity,
	bookings.KindBusy:                    http.StatusServiceUnavailable,
	bookings.KindNotFound:                http.StatusNotFound,
	bookings.KindStaffNotEligible:        http.StatusUnprocessableEntity,
	bookings.KindUnknownStatus:           http.StatusBadRequest,
	bookings.KindInvalidTimezone:         http.StatusUnprocessableEntity,
	bookings.KindInvalidLocalTime:        http.StatusUnprocessableEntity,
}

// classify maps domain errors onto an error kind and HTTP status. Booking
// kinds come from bookings.ErrorKind so API bodies and metric labels agree.
func classify(err error) (string, int) {
	if kind := bookings.ErrorKind(err); kind != bookings.KindError {
		if status, ok := kindStatus[kind]; ok {
			return kind, status
		}
	}
	switch {
	case errors.Is(err, noshow.ErrInvalidPolicyValue):
		return "invalid_policy_value", http.StatusBadRequest
	case errors.Is(err, noshow.ErrInvalidPrice):
		return "invalid_price", http.StatusBadRequest
	case errors.Is(err, availability.ErrInvalidQuery):
		return "invalid_query", http.StatusBadRequest
	case errors.Is(err, tenant.ErrInvalidConfig):
		return "invalid_config", http.StatusBadRequest
	case errors.Is(err, tenant.ErrTenantNotFound):
		return bookings.KindNotFound, http.StatusNotFound
	}
	return "internal", http.StatusInternalServerError
}

// writeDomainError renders err. Unclassified errors are logged and hidden.
func writeDomainError(w http.ResponseWriter, logger *logging.Logger, msg string, err error) {
	kind, status := classify(err)
	if status == http.StatusInternalServerError {
		logger.Error(msg, "error", err)
		jsonError(w, kind, "internal server error", status)
		return
	}
	if status == http.StatusServiceUnavailable {
		w.Header().Set("Retry-After", "1")
	}
	jsonError(w, kind, err.Error(), status)
}

// decodeJSON decodes a single JSON object and rejects unknown fields.
func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	if dec.More() {
		return errors.New("invalid request body: trailing data")
	}
	return nil
}

// tenantFromRequest prefers the admin {tenantID} route param over the
// X-Tenant-Id scoped context.
func tenantFromRequest(r *http.Request) (string, bool) {
	if id := strings.TrimSpace(chi.URLParam(r, "tenantID")); id != "" {
		return id, true
	}
	return tenancy.TenantIDFromContext(r.Context())
}

func requireTenant(w http.ResponseWriter, r *http.Request) (string, bool) {
	tenantID, ok := tenantFromRequest(r)
	if !ok {
		jsonError(w, "bad_request", "missing tenant id", http.StatusBadRequest)
	}
	return tenantID, ok
}
