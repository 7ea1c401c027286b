package bookings

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/wolfman30/chairbook/internal/catalog"
	"github.com/wolfman30/chairbook/internal/observability/metrics"
	"github.com/wolfman30/chairbook/internal/timewindow"
	"github.com/wolfman30/chairbook/pkg/logging"
)

var bookingsTracer = otel.Tracer("chairbook.internal.bookings")

// ServiceCatalog resolves services and staff eligibility.
type ServiceCatalog interface {
	GetService(ctx context.Context, tenantID, serviceID string) (*catalog.Service, error)
	StaffOffersService(ctx context.Context, tenantID, staffID, serviceID string) (bool, error)
}

// AvailabilityChecker resolves the tenant zone and a staff member's windows for a local date.
type AvailabilityChecker interface {
	Location(ctx context.Context, tenantID string) (*time.Location, error)
	Windows(ctx context.Context, tenantID, staffID string, date timewindow.Date, loc *time.Location) ([]timewindow.Window, error)
}

// Guard admits, moves, resizes and transitions bookings. Every write re-validates
// against the persisted calendar inside the store's serialized section.
type Guard struct {
	store        Store
	services     ServiceCatalog
	availability AvailabilityChecker
	logger       *logging.Logger
	metrics      *metrics.BookingMetrics
	now          func() time.Time
}

// NewGuard constructs the admission guard.
func NewGuard(store Store, services ServiceCatalog, availability AvailabilityChecker, logger *logging.Logger, m *metrics.BookingMetrics) *Guard {
	if store == nil {
		panic("bookings: store required")
	}
	if services == nil {
		panic("bookings: service catalog required")
	}
	if availability == nil {
		panic("bookings: availability checker required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Guard{
		store:        store,
		services:     services,
		availability: availability,
		logger:       logger,
		metrics:      m,
		now:          time.Now,
	}
}

// WithClock overrides the clock used for the past-start check.
func (g *Guard) WithClock(now func() time.Time) *Guard {
	if now != nil {
		g.now = now
	}
	return g
}

// Get returns a booking scoped to the tenant.
func (g *Guard) Get(ctx context.Context, tenantID, id string) (*Booking, error) {
	return g.store.Get(ctx, tenantID, id)
}

// Create admits a new booking for the service's nominal duration.
func (g *Guard) Create(ctx context.Context, in CreateIntent) (*Booking, error) {
	ctx, span := bookingsTracer.Start(ctx, "bookings.create")
	defer span.End()
	span.SetAttributes(
		attribute.String("chairbook.tenant_id", in.TenantID),
		attribute.String("chairbook.staff_id", in.StaffID),
		attribute.String("chairbook.service_id", in.ServiceID),
	)

	started := time.Now()
	b, err := g.create(ctx, in)
	g.finish(span, "create", in.TenantID, b, started, err)
	return b, err
}

func (g *Guard) create(ctx context.Context, in CreateIntent) (*Booking, error) {
	status := in.Status
	if status == "" {
		status = StatusPending
	}
	if status != StatusHold && status != StatusPending {
		return nil, fmt.Errorf("%w: bookings start as hold or pending, not %s", ErrInvalidStatusTransition, status)
	}

	svc, err := g.services.GetService(ctx, in.TenantID, in.ServiceID)
	if err != nil {
		return nil, err
	}
	if err := g.requireEligible(ctx, in.TenantID, in.StaffID, in.ServiceID); err != nil {
		return nil, err
	}

	start := in.StartsAt.UTC()
	b := &Booking{
		ID:         uuid.New().String(),
		TenantID:   in.TenantID,
		StaffID:    in.StaffID,
		ServiceID:  in.ServiceID,
		CustomerID: in.CustomerID,
		StartsAt:   start,
		EndsAt:     start.Add(time.Duration(svc.DurationMin) * time.Minute),
		BufferMin:  svc.BufferMin,
		Status:     status,
	}
	if err := g.checkAvailability(ctx, b, true); err != nil {
		return nil, err
	}

	err = g.store.Serialize(ctx, in.TenantID, in.StaffID, func(tx Tx) error {
		if err := checkConflicts(ctx, tx, b); err != nil {
			return err
		}
		return tx.Insert(ctx, b)
	})
	if err != nil {
		return nil, err
	}
	return b, nil
}

// Move places a booking at a new start, optionally on another staff member. The
// booked length is preserved; the buffer is taken from the current service.
func (g *Guard) Move(ctx context.Context, in MoveIntent) (*Booking, error) {
	ctx, span := bookingsTracer.Start(ctx, "bookings.move")
	defer span.End()
	span.SetAttributes(
		attribute.String("chairbook.tenant_id", in.TenantID),
		attribute.String("chairbook.booking_id", in.BookingID),
		attribute.Bool("chairbook.ignore_availability", in.IgnoreAvailability),
	)

	started := time.Now()
	b, err := g.move(ctx, in)
	g.finish(span, "move", in.TenantID, b, started, err)
	return b, err
}

func (g *Guard) move(ctx context.Context, in MoveIntent) (*Booking, error) {
	current, err := g.store.Get(ctx, in.TenantID, in.BookingID)
	if err != nil {
		return nil, err
	}
	if err := requireMutable(current); err != nil {
		return nil, err
	}

	staffID := in.NewStaffID
	if staffID == "" {
		staffID = current.StaffID
	}
	svc, err := g.services.GetService(ctx, in.TenantID, current.ServiceID)
	if err != nil {
		return nil, err
	}
	if staffID != current.StaffID {
		if err := g.requireEligible(ctx, in.TenantID, staffID, current.ServiceID); err != nil {
			return nil, err
		}
	}

	length := current.EndsAt.Sub(current.StartsAt)
	proposed := *current
	proposed.StaffID = staffID
	proposed.StartsAt = in.NewStartsAt.UTC()
	proposed.EndsAt = proposed.StartsAt.Add(length)
	proposed.BufferMin = svc.BufferMin
	if !in.IgnoreAvailability {
		if err := g.checkAvailability(ctx, &proposed, true); err != nil {
			return nil, err
		}
	}

	return g.rewrite(ctx, &proposed)
}

// Resize changes the end of a booking. The new length is a manual override and
// is not checked against the service duration.
func (g *Guard) Resize(ctx context.Context, in ResizeIntent) (*Booking, error) {
	ctx, span := bookingsTracer.Start(ctx, "bookings.resize")
	defer span.End()
	span.SetAttributes(
		attribute.String("chairbook.tenant_id", in.TenantID),
		attribute.String("chairbook.booking_id", in.BookingID),
		attribute.Bool("chairbook.ignore_availability", in.IgnoreAvailability),
	)

	started := time.Now()
	b, err := g.resize(ctx, in)
	g.finish(span, "resize", in.TenantID, b, started, err)
	return b, err
}

func (g *Guard) resize(ctx context.Context, in ResizeIntent) (*Booking, error) {
	current, err := g.store.Get(ctx, in.TenantID, in.BookingID)
	if err != nil {
		return nil, err
	}
	if err := requireMutable(current); err != nil {
		return nil, err
	}
	newEnd := in.NewEndsAt.UTC()
	if !newEnd.After(current.StartsAt) {
		return nil, fmt.Errorf("%w: ends_at %s is not after starts_at %s", ErrInvalidInterval,
			newEnd.Format(time.RFC3339), current.StartsAt.Format(time.RFC3339))
	}
	svc, err := g.services.GetService(ctx, in.TenantID, current.ServiceID)
	if err != nil {
		return nil, err
	}

	proposed := *current
	proposed.EndsAt = newEnd
	proposed.BufferMin = svc.BufferMin
	if !in.IgnoreAvailability {
		if err := g.checkAvailability(ctx, &proposed, false); err != nil {
			return nil, err
		}
	}

	return g.rewrite(ctx, &proposed)
}

// rewrite re-reads the booking under the target staff lock and persists the new interval.
func (g *Guard) rewrite(ctx context.Context, proposed *Booking) (*Booking, error) {
	err := g.store.Serialize(ctx, proposed.TenantID, proposed.StaffID, func(tx Tx) error {
		fresh, err := tx.Get(ctx, proposed.TenantID, proposed.ID)
		if err != nil {
			return err
		}
		if err := requireMutable(fresh); err != nil {
			return err
		}
		proposed.Status = fresh.Status
		if err := checkConflicts(ctx, tx, proposed); err != nil {
			return err
		}
		return tx.UpdateInterval(ctx, proposed)
	})
	if err != nil {
		return nil, err
	}
	return proposed, nil
}

// Transition applies a status change allowed by the lifecycle.
func (g *Guard) Transition(ctx context.Context, tenantID, id string, to Status) (*Booking, error) {
	ctx, span := bookingsTracer.Start(ctx, "bookings.transition")
	defer span.End()
	span.SetAttributes(
		attribute.String("chairbook.tenant_id", tenantID),
		attribute.String("chairbook.booking_id", id),
		attribute.String("chairbook.status", string(to)),
	)

	started := time.Now()
	b, err := g.transition(ctx, tenantID, id, to)
	g.finish(span, "transition", tenantID, b, started, err)
	return b, err
}

func (g *Guard) transition(ctx context.Context, tenantID, id string, to Status) (*Booking, error) {
	current, err := g.store.Get(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if !CanTransition(current.Status, to) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidStatusTransition, current.Status, to)
	}
	return g.store.UpdateStatus(ctx, tenantID, id, current.Status, to)
}

func (g *Guard) requireEligible(ctx context.Context, tenantID, staffID, serviceID string) error {
	ok, err := g.services.StaffOffersService(ctx, tenantID, staffID, serviceID)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: staff %s, service %s", ErrStaffNotEligible, staffID, serviceID)
	}
	return nil
}

// checkAvailability requires [StartsAt, OccupiedUntil) to sit inside one resolved
// window of the local start date.
func (g *Guard) checkAvailability(ctx context.Context, b *Booking, requireFuture bool) error {
	if requireFuture && !b.StartsAt.After(g.now()) {
		return fmt.Errorf("%w: start %s is not in the future", ErrOutsideAvailability, b.StartsAt.Format(time.RFC3339))
	}
	loc, err := g.availability.Location(ctx, b.TenantID)
	if err != nil {
		return err
	}
	date, _ := timewindow.ToLocal(b.StartsAt, loc)
	until := b.OccupiedUntil()
	if _, dayEnd := timewindow.DayBounds(date, loc); until.After(dayEnd) {
		return fmt.Errorf("%w: occupancy crosses local midnight", ErrOutsideAvailability)
	}
	occupied, ok := timewindow.ClipToDay(b.StartsAt, until, date, loc)
	if !ok {
		return fmt.Errorf("%w: empty occupancy", ErrOutsideAvailability)
	}

	windows, err := g.availability.Windows(ctx, b.TenantID, b.StaffID, date, loc)
	if err != nil {
		return err
	}
	for _, w := range windows {
		if w.Start <= occupied.Start && occupied.End <= w.End {
			return nil
		}
	}
	return fmt.Errorf("%w: staff %s on %s %s", ErrOutsideAvailability, b.StaffID, date, occupied)
}

func checkConflicts(ctx context.Context, tx Tx, b *Booking) error {
	others, err := tx.Overlapping(ctx, b.TenantID, b.StaffID, b.StartsAt, b.OccupiedUntil(), b.ID)
	if err != nil {
		return err
	}
	if len(others) > 0 {
		return fmt.Errorf("%w: overlaps booking %s", ErrSlotConflict, others[0].ID)
	}
	return nil
}

func requireMutable(b *Booking) error {
	if !b.Status.IsActive() || b.Status.IsFinal() {
		return fmt.Errorf("%w: booking is %s", ErrInvalidStatusTransition, b.Status)
	}
	return nil
}

func (g *Guard) finish(span trace.Span, op, tenantID string, b *Booking, started time.Time, err error) {
	kind := ErrorKind(err)
	g.metrics.ObserveAdmission(op, kind, time.Since(started).Seconds())
	logger := g.logger.WithTenant(tenantID)

	switch {
	case err == nil:
		logger.Info("booking "+op+" admitted", "booking_id", b.ID, "staff_id", b.StaffID,
			"starts_at", b.StartsAt, "status", b.Status)
	case errors.Is(err, ErrBusy):
		span.RecordError(err)
		logger.Warn("booking "+op+" busy", "error", err)
	case kind != KindError:
		// Expected outcomes of racing or mistaken clients.
		logger.Info("booking "+op+" rejected", "reason", kind, "error", err)
	default:
		span.RecordError(err)
		logger.Error("booking "+op+" failed", "error", err)
	}
}
