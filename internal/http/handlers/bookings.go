package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/wolfman30/chairbook/internal/bookings"
	"github.com/wolfman30/chairbook/internal/catalog"
	"github.com/wolfman30/chairbook/internal/http/middleware"
	"github.com/wolfman30/chairbook/internal/noshow"
	"github.com/wolfman30/chairbook/pkg/logging"
)

// BookingGuard is the admission surface used by the handlers.
type BookingGuard interface {
	Create(ctx context.Context, in bookings.CreateIntent) (*bookings.Booking, error)
	Move(ctx context.Context, in bookings.MoveIntent) (*bookings.Booking, error)
	Resize(ctx context.Context, in bookings.ResizeIntent) (*bookings.Booking, error)
	Transition(ctx context.Context, tenantID, id string, to bookings.Status) (*bookings.Booking, error)
	Get(ctx context.Context, tenantID, id string) (*bookings.Booking, error)
}

// PolicySource returns a tenant's no-show policy.
type PolicySource interface {
	NoShowPolicy(ctx context.Context, tenantID string) (noshow.Policy, error)
}

// ServiceSource returns catalog services for pricing.
type ServiceSource interface {
	GetService(ctx context.Context, tenantID, serviceID string) (*catalog.Service, error)
}

// BookingsHandler serves booking admission for the widget and the admin panel.
type BookingsHandler struct {
	guard    BookingGuard
	policies PolicySource
	services ServiceSource
	logger   *logging.Logger
	now      func() time.Time
}

// NewBookingsHandler creates the bookings HTTP handler.
func NewBookingsHandler(guard BookingGuard, policies PolicySource, services ServiceSource, logger *logging.Logger) *BookingsHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &BookingsHandler{
		guard:    guard,
		policies: policies,
		services: services,
		logger:   logger,
		now:      time.Now,
	}
}

// PublicRoutes are mounted under /v1/bookings behind tenancy.RequireTenant.
// Resize decouples a booking from its service length, so it is admin-only.
func (h *BookingsHandler) PublicRoutes() chi.Router {
	r := chi.NewRouter()
	r.Post("/", h.Create)
	r.Get("/{bookingID}", h.Get)
	r.Post("/{bookingID}/move", h.Move)
	r.Post("/{bookingID}/status", h.Cancel)
	return r
}

// AdminRoutes are mounted under /admin/tenants/{tenantID}/bookings.
func (h *BookingsHandler) AdminRoutes() chi.Router {
	r := chi.NewRouter()
	r.Post("/", h.Create)
	r.Get("/{bookingID}", h.Get)
	r.Post("/{bookingID}/move", h.Move)
	r.Post("/{bookingID}/resize", h.Resize)
	r.Post("/{bookingID}/status", h.Transition)
	return r
}

type createBookingRequest struct {
	StaffID    string    `json:"staff_id"`
	ServiceID  string    `json:"service_id"`
	CustomerID string    `json:"customer_id"`
	StartsAt   time.Time `json:"starts_at"`
	Status     string    `json:"status,omitempty"`
}

type moveBookingRequest struct {
	NewStartsAt        time.Time `json:"new_starts_at"`
	NewStaffID         string    `json:"new_staff_id,omitempty"`
	IgnoreAvailability bool      `json:"ignore_availability,omitempty"`
}

type resizeBookingRequest struct {
	NewEndsAt          time.Time `json:"new_ends_at"`
	IgnoreAvailability bool      `json:"ignore_availability,omitempty"`
}

type statusRequest struct {
	Status string `json:"status"`
}

type statusResponse struct {
	Booking *bookings.Booking `json:"booking"`
	Fee     *noshow.Result    `json:"fee,omitempty"`
}

// Create handles POST /v1/bookings and POST /admin/tenants/{tenantID}/bookings.
// The availability override is never accepted here.
func (h *BookingsHandler) Create(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := requireTenant(w, r)
	if !ok {
		return
	}
	var req createBookingRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, "bad_request", err.Error(), http.StatusBadRequest)
		return
	}
	if req.StaffID == "" || req.ServiceID == "" || req.CustomerID == "" || req.StartsAt.IsZero() {
		jsonError(w, "bad_request", "staff_id, service_id, customer_id and starts_at are required", http.StatusBadRequest)
		return
	}
	var status bookings.Status
	if req.Status != "" {
		st, err := bookings.ParseStatus(req.Status)
		if err != nil {
			writeDomainError(w, h.logger, "failed to parse status", err)
			return
		}
		status = st
	}

	b, err := h.guard.Create(r.Context(), bookings.CreateIntent{
		TenantID:   tenantID,
		StaffID:    req.StaffID,
		ServiceID:  req.ServiceID,
		CustomerID: req.CustomerID,
		StartsAt:   req.StartsAt,
		Status:     status,
	})
	if err != nil {
		writeDomainError(w, h.logger.WithTenant(tenantID), "failed to create booking", err)
		return
	}
	writeJSON(w, http.StatusCreated, b)
}

// Get handles GET .../bookings/{bookingID}.
func (h *BookingsHandler) Get(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := requireTenant(w, r)
	if !ok {
		return
	}
	b, err := h.guard.Get(r.Context(), tenantID, chi.URLParam(r, "bookingID"))
	if err != nil {
		writeDomainError(w, h.logger.WithTenant(tenantID), "failed to load booking", err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

// Move handles POST .../bookings/{bookingID}/move.
func (h *BookingsHandler) Move(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := requireTenant(w, r)
	if !ok {
		return
	}
	var req moveBookingRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, "bad_request", err.Error(), http.StatusBadRequest)
		return
	}
	if req.NewStartsAt.IsZero() {
		jsonError(w, "bad_request", "new_starts_at is required", http.StatusBadRequest)
		return
	}
	if req.IgnoreAvailability && !allowOverride(r) {
		jsonError(w, "forbidden", "ignore_availability requires the admin role", http.StatusForbidden)
		return
	}

	b, err := h.guard.Move(r.Context(), bookings.MoveIntent{
		TenantID:           tenantID,
		BookingID:          chi.URLParam(r, "bookingID"),
		NewStartsAt:        req.NewStartsAt,
		NewStaffID:         req.NewStaffID,
		IgnoreAvailability: req.IgnoreAvailability,
	})
	if err != nil {
		writeDomainError(w, h.logger.WithTenant(tenantID), "failed to move booking", err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

// Resize handles POST .../bookings/{bookingID}/resize.
func (h *BookingsHandler) Resize(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := requireTenant(w, r)
	if !ok {
		return
	}
	var req resizeBookingRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, "bad_request", err.Error(), http.StatusBadRequest)
		return
	}
	if req.NewEndsAt.IsZero() {
		jsonError(w, "bad_request", "new_ends_at is required", http.StatusBadRequest)
		return
	}
	if req.IgnoreAvailability && !allowOverride(r) {
		jsonError(w, "forbidden", "ignore_availability requires the admin role", http.StatusForbidden)
		return
	}

	b, err := h.guard.Resize(r.Context(), bookings.ResizeIntent{
		TenantID:           tenantID,
		BookingID:          chi.URLParam(r, "bookingID"),
		NewEndsAt:          req.NewEndsAt,
		IgnoreAvailability: req.IgnoreAvailability,
	})
	if err != nil {
		writeDomainError(w, h.logger.WithTenant(tenantID), "failed to resize booking", err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

// Cancel handles the public POST /v1/bookings/{bookingID}/status; customers
// may only cancel.
func (h *BookingsHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, func(to bookings.Status) bool { return to == bookings.StatusCancelled })
}

// Transition handles the admin POST .../bookings/{bookingID}/status.
func (h *BookingsHandler) Transition(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, func(bookings.Status) bool { return true })
}

func (h *BookingsHandler) transition(w http.ResponseWriter, r *http.Request, permitted func(bookings.Status) bool) {
	tenantID, ok := requireTenant(w, r)
	if !ok {
		return
	}
	var req statusRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, "bad_request", err.Error(), http.StatusBadRequest)
		return
	}
	to, err := bookings.ParseStatus(req.Status)
	if err != nil {
		writeDomainError(w, h.logger, "failed to parse status", err)
		return
	}
	if !permitted(to) {
		jsonError(w, "forbidden", "status change not permitted", http.StatusForbidden)
		return
	}

	logger := h.logger.WithTenant(tenantID)
	b, err := h.guard.Transition(r.Context(), tenantID, chi.URLParam(r, "bookingID"), to)
	if err != nil {
		writeDomainError(w, logger, "failed to transition booking", err)
		return
	}

	resp := statusResponse{Booking: b}
	if to == bookings.StatusCancelled || to == bookings.StatusNoShow {
		fee, err := h.fee(r.Context(), b)
		if err != nil {
			logger.Warn("failed to evaluate no-show fee", "booking_id", b.ID, "error", err)
		} else {
			resp.Fee = fee
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// fee evaluates the tenant's policy for a booking cancelled or missed now.
func (h *BookingsHandler) fee(ctx context.Context, b *bookings.Booking) (*noshow.Result, error) {
	if h.policies == nil || h.services == nil {
		return nil, nil
	}
	policy, err := h.policies.NoShowPolicy(ctx, b.TenantID)
	if err != nil {
		return nil, err
	}
	svc, err := h.services.GetService(ctx, b.TenantID, b.ServiceID)
	if err != nil {
		return nil, err
	}
	res, err := noshow.Evaluate(policy, svc.PriceCents, noshow.HoursUntil(b.StartsAt, h.now()))
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// allowOverride reports whether the caller holds an admin token.
func allowOverride(r *http.Request) bool {
	claims, ok := middleware.AdminClaimsFromContext(r.Context())
	return ok && claims.IsAdmin()
}
