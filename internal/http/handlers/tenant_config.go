package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/wolfman30/chairbook/internal/noshow"
	"github.com/wolfman30/chairbook/internal/tenant"
	"github.com/wolfman30/chairbook/pkg/logging"
)

// TenantConfigStore reads and writes tenant calendar configuration.
type TenantConfigStore interface {
	Get(ctx context.Context, tenantID string) (*tenant.Config, error)
	Set(ctx context.Context, cfg *tenant.Config) error
	NoShowPolicy(ctx context.Context, tenantID string) (noshow.Policy, error)
}

// TenantHandler serves tenant configuration and the no-show policy.
type TenantHandler struct {
	store    TenantConfigStore
	services ServiceSource
	logger   *logging.Logger
	now      func() time.Time
}

// NewTenantHandler creates the tenant configuration handler.
func NewTenantHandler(store TenantConfigStore, services ServiceSource, logger *logging.Logger) *TenantHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &TenantHandler{store: store, services: services, logger: logger, now: time.Now}
}

// GetConfig handles GET /admin/tenants/{tenantID}/config.
func (h *TenantHandler) GetConfig(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := requireTenant(w, r)
	if !ok {
		return
	}
	cfg, err := h.store.Get(r.Context(), tenantID)
	if err != nil {
		writeDomainError(w, h.logger.WithTenant(tenantID), "failed to load tenant config", err)
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

// PutConfig handles PUT /admin/tenants/{tenantID}/config. Admin role only.
func (h *TenantHandler) PutConfig(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := requireTenant(w, r)
	if !ok {
		return
	}
	if !allowOverride(r) {
		jsonError(w, "forbidden", "updating tenant config requires the admin role", http.StatusForbidden)
		return
	}
	var cfg tenant.Config
	if err := decodeJSON(r, &cfg); err != nil {
		jsonError(w, "bad_request", err.Error(), http.StatusBadRequest)
		return
	}
	cfg.TenantID = tenantID

	logger := h.logger.WithTenant(tenantID)
	if err := h.store.Set(r.Context(), &cfg); err != nil {
		writeDomainError(w, logger, "failed to save tenant config", err)
		return
	}
	logger.Info("tenant config updated", "timezone", cfg.Timezone, "no_show_enabled", cfg.NoShowPolicy.Enabled)
	writeJSON(w, http.StatusOK, cfg)
}

// GetNoShowPolicy handles GET /v1/no-show-policy.
func (h *TenantHandler) GetNoShowPolicy(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := requireTenant(w, r)
	if !ok {
		return
	}
	policy, err := h.store.NoShowPolicy(r.Context(), tenantID)
	if err != nil {
		writeDomainError(w, h.logger.WithTenant(tenantID), "failed to load no-show policy", err)
		return
	}
	writeJSON(w, http.StatusOK, policy)
}

type evaluateRequest struct {
	ServiceID  string     `json:"service_id,omitempty"`
	PriceCents *int64     `json:"price_cents,omitempty"`
	StartsAt   *time.Time `json:"starts_at,omitempty"`
	HoursUntil *float64   `json:"hours_until_appointment,omitempty"`
}

// EvaluateNoShow handles POST /v1/no-show-policy/evaluate. The price comes from
// price_cents or the catalog service; the lead time from hours_until_appointment
// or starts_at relative to now.
func (h *TenantHandler) EvaluateNoShow(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := requireTenant(w, r)
	if !ok {
		return
	}
	var req evaluateRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, "bad_request", err.Error(), http.StatusBadRequest)
		return
	}
	if (req.PriceCents == nil) == (req.ServiceID == "") {
		jsonError(w, "bad_request", "exactly one of price_cents or service_id is required", http.StatusBadRequest)
		return
	}
	if (req.HoursUntil == nil) == (req.StartsAt == nil) {
		jsonError(w, "bad_request", "exactly one of hours_until_appointment or starts_at is required", http.StatusBadRequest)
		return
	}

	logger := h.logger.WithTenant(tenantID)
	var price int64
	if req.PriceCents != nil {
		price = *req.PriceCents
	} else {
		svc, err := h.services.GetService(r.Context(), tenantID, req.ServiceID)
		if err != nil {
			writeDomainError(w, logger, "failed to load service", err)
			return
		}
		price = svc.PriceCents
	}
	var hours float64
	if req.HoursUntil != nil {
		hours = *req.HoursUntil
	} else {
		hours = noshow.HoursUntil(*req.StartsAt, h.now())
	}

	policy, err := h.store.NoShowPolicy(r.Context(), tenantID)
	if err != nil {
		writeDomainError(w, logger, "failed to load no-show policy", err)
		return
	}
	res, err := noshow.Evaluate(policy, price, hours)
	if err != nil {
		writeDomainError(w, logger, "failed to evaluate no-show policy", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
