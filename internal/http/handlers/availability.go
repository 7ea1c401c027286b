package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/wolfman30/chairbook/internal/availability"
	"github.com/wolfman30/chairbook/internal/timewindow"
	"github.com/wolfman30/chairbook/pkg/logging"
)

// AvailabilityQuerier answers slot queries.
type AvailabilityQuerier interface {
	Query(ctx context.Context, q availability.Query) (*availability.Result, error)
}

// AvailabilityHandler serves slot queries for the widget and the admin panel.
type AvailabilityHandler struct {
	service AvailabilityQuerier
	logger  *logging.Logger
}

// NewAvailabilityHandler creates the availability HTTP handler.
func NewAvailabilityHandler(service AvailabilityQuerier, logger *logging.Logger) *AvailabilityHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &AvailabilityHandler{service: service, logger: logger}
}

// GetAvailability handles GET /v1/availability.
// Query params:
//   - service_id: required
//   - date: local date YYYY-MM-DD, required
//   - days_ahead: number of days starting at date (optional, default 1)
//   - staff_id: restrict to one staff member (optional)
func (h *AvailabilityHandler) GetAvailability(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := requireTenant(w, r)
	if !ok {
		return
	}
	params := r.URL.Query()

	serviceID := params.Get("service_id")
	if serviceID == "" {
		jsonError(w, "bad_request", "service_id is required", http.StatusBadRequest)
		return
	}
	date, err := timewindow.ParseDate(params.Get("date"))
	if err != nil {
		jsonError(w, "bad_request", "date must be YYYY-MM-DD", http.StatusBadRequest)
		return
	}
	days := 1
	if raw := params.Get("days_ahead"); raw != "" {
		days, err = strconv.Atoi(raw)
		if err != nil || days < 1 {
			jsonError(w, "bad_request", "days_ahead must be a positive integer", http.StatusBadRequest)
			return
		}
	}

	res, err := h.service.Query(r.Context(), availability.Query{
		TenantID:  tenantID,
		ServiceID: serviceID,
		Date:      date,
		DaysAhead: days,
		StaffID:   params.Get("staff_id"),
	})
	if err != nil {
		writeDomainError(w, h.logger.WithTenant(tenantID), "failed to query availability", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
