package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/wolfman30/chairbook/internal/bookings"
	"github.com/wolfman30/chairbook/pkg/logging"
)

// StatsSource aggregates booking KPIs.
type StatsSource interface {
	GetStats(ctx context.Context, tenantID string, start, end *time.Time) (*bookings.Stats, error)
}

// StatsHandler provides booking KPI endpoints.
type StatsHandler struct {
	repo   StatsSource
	logger *logging.Logger
}

// NewStatsHandler creates a new stats HTTP handler.
func NewStatsHandler(repo StatsSource, logger *logging.Logger) *StatsHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &StatsHandler{repo: repo, logger: logger}
}

// GetStats returns booking counts by status and the no-show rate.
// GET /admin/tenants/{tenantID}/stats
// Query params:
//   - start: RFC3339 timestamp for period start (optional)
//   - end: RFC3339 timestamp for period end (optional)
func (h *StatsHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := requireTenant(w, r)
	if !ok {
		return
	}

	var start, end *time.Time
	if s := r.URL.Query().Get("start"); s != "" {
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			jsonError(w, "bad_request", "invalid start time, use RFC3339 format", http.StatusBadRequest)
			return
		}
		start = &t
	}
	if e := r.URL.Query().Get("end"); e != "" {
		t, err := time.Parse(time.RFC3339, e)
		if err != nil {
			jsonError(w, "bad_request", "invalid end time, use RFC3339 format", http.StatusBadRequest)
			return
		}
		end = &t
	}
	if (start == nil) != (end == nil) {
		jsonError(w, "bad_request", "both start and end must be provided, or neither", http.StatusBadRequest)
		return
	}

	stats, err := h.repo.GetStats(r.Context(), tenantID, start, end)
	if err != nil {
		writeDomainError(w, h.logger.WithTenant(tenantID), "failed to get booking stats", err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}
