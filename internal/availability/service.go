package availability

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/wolfman30/chairbook/internal/bookings"
	"github.com/wolfman30/chairbook/internal/catalog"
	"github.com/wolfman30/chairbook/internal/observability/metrics"
	"github.com/wolfman30/chairbook/internal/schedule"
	"github.com/wolfman30/chairbook/internal/slots"
	"github.com/wolfman30/chairbook/internal/tenant"
	"github.com/wolfman30/chairbook/internal/timewindow"
	"github.com/wolfman30/chairbook/pkg/logging"
)

var availabilityTracer = otel.Tracer("chairbook.internal.availability")

// ErrInvalidQuery is returned for malformed availability queries.
var ErrInvalidQuery = errors.New("invalid availability query")

// TenantDirectory supplies the tenant calendar context.
type TenantDirectory interface {
	Get(ctx context.Context, tenantID string) (*tenant.Config, error)
}

// Catalog supplies services and the staff offering them.
type Catalog interface {
	GetService(ctx context.Context, tenantID, serviceID string) (*catalog.Service, error)
	ListStaffForService(ctx context.Context, tenantID, serviceID string) ([]string, error)
	StaffOffersService(ctx context.Context, tenantID, staffID, serviceID string) (bool, error)
}

// ScheduleSource supplies weekly schedules and blockings.
type ScheduleSource interface {
	ListSchedulesForStaff(ctx context.Context, tenantID string, staffIDs []string) ([]schedule.WeeklySchedule, error)
	ListBlockingsForStaff(ctx context.Context, tenantID string, staffIDs []string, from, to time.Time) ([]schedule.Blocking, error)
}

// BookingSource supplies active bookings.
type BookingSource interface {
	ListActive(ctx context.Context, tenantID string, staffIDs []string, from, to time.Time) ([]bookings.Booking, error)
}

// Options tune slot generation.
type Options struct {
	Granularity  int
	MaxDaysAhead int
}

// Service answers availability queries and resolves windows for the booking guard.
type Service struct {
	tenants   TenantDirectory
	catalog   Catalog
	schedules ScheduleSource
	bookings  BookingSource
	opts      Options
	logger    *logging.Logger
	metrics   *metrics.BookingMetrics
	now       func() time.Time
}

// NewService wires the availability service.
func NewService(tenants TenantDirectory, cat Catalog, schedules ScheduleSource, booked BookingSource, opts Options, logger *logging.Logger, m *metrics.BookingMetrics) *Service {
	if tenants == nil || cat == nil || schedules == nil || booked == nil {
		panic("availability: tenants, catalog, schedules and bookings required")
	}
	if opts.Granularity <= 0 {
		opts.Granularity = slots.DefaultGranularity
	}
	if opts.MaxDaysAhead <= 0 {
		opts.MaxDaysAhead = 31
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{
		tenants:   tenants,
		catalog:   cat,
		schedules: schedules,
		bookings:  booked,
		opts:      opts,
		logger:    logger,
		metrics:   m,
		now:       time.Now,
	}
}

// WithClock overrides the clock used to drop past slots.
func (s *Service) WithClock(now func() time.Time) *Service {
	if now != nil {
		s.now = now
	}
	return s
}

// Query asks for bookable slots of one service.
type Query struct {
	TenantID  string
	ServiceID string
	Date      timewindow.Date
	// DaysAhead is the number of local days starting at Date; zero means one.
	DaysAhead int
	// StaffID restricts the query to one staff member when set.
	StaffID string
}

// Result is the slot union for a query.
type Result struct {
	Timezone string       `json:"timezone"`
	Slots    []slots.Slot `json:"slots"`
}

// Query resolves availability for every eligible staff member and day.
func (s *Service) Query(ctx context.Context, q Query) (*Result, error) {
	ctx, span := availabilityTracer.Start(ctx, "availability.query")
	defer span.End()
	span.SetAttributes(
		attribute.String("chairbook.tenant_id", q.TenantID),
		attribute.String("chairbook.service_id", q.ServiceID),
		attribute.Int("chairbook.days_ahead", q.DaysAhead),
	)

	started := time.Now()
	res, err := s.query(ctx, q)
	outcome := "ok"
	count := 0
	if err != nil {
		outcome = "error"
		span.RecordError(err)
		s.logger.WithTenant(q.TenantID).Warn("availability query failed", "service_id", q.ServiceID, "error", err)
	} else {
		count = len(res.Slots)
	}
	s.metrics.ObserveAvailability(q.TenantID, outcome, count, time.Since(started).Seconds())
	return res, err
}

func (s *Service) query(ctx context.Context, q Query) (*Result, error) {
	days := q.DaysAhead
	if days <= 0 {
		days = 1
	}
	if days > s.opts.MaxDaysAhead {
		return nil, fmt.Errorf("%w: days_ahead %d exceeds %d", ErrInvalidQuery, days, s.opts.MaxDaysAhead)
	}

	cfg, err := s.tenants.Get(ctx, q.TenantID)
	if err != nil {
		return nil, err
	}
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	svc, err := s.catalog.GetService(ctx, q.TenantID, q.ServiceID)
	if err != nil {
		return nil, err
	}
	staff, err := s.eligibleStaff(ctx, q)
	if err != nil {
		return nil, err
	}

	res := &Result{Timezone: cfg.Timezone, Slots: []slots.Slot{}}
	if len(staff) == 0 {
		return res, nil
	}

	from, _ := timewindow.DayBounds(q.Date, loc)
	_, to := timewindow.DayBounds(q.Date.AddDays(days-1), loc)

	rows, err := s.schedules.ListSchedulesForStaff(ctx, q.TenantID, staff)
	if err != nil {
		return nil, err
	}
	blockings, err := s.schedules.ListBlockingsForStaff(ctx, q.TenantID, staff, from, to)
	if err != nil {
		return nil, err
	}
	active, err := s.bookings.ListActive(ctx, q.TenantID, staff, from, to)
	if err != nil {
		return nil, err
	}
	booked := make(map[string][]slots.Occupancy, len(staff))
	for _, b := range active {
		booked[b.StaffID] = append(booked[b.StaffID], b.Occupancy())
	}

	now := s.now()
	granularity := cfg.Granularity(s.opts.Granularity)
	var perStaff [][]slots.Slot
	for d := 0; d < days; d++ {
		date := q.Date.AddDays(d)
		for _, staffID := range staff {
			windows, err := schedule.ResolveIn(staffID, date, loc, rows, blockings)
			if err != nil {
				return nil, err
			}
			if len(windows) == 0 {
				continue
			}
			generated, err := slots.Generate(slots.Request{
				StaffID:      staffID,
				Date:         date,
				Location:     loc,
				Availability: windows,
				Duration:     svc.DurationMin,
				Buffer:       svc.BufferMin,
				Granularity:  granularity,
				Booked:       booked[staffID],
				Now:          now,
			})
			if err != nil {
				return nil, err
			}
			perStaff = append(perStaff, generated)
		}
	}
	res.Slots = append(res.Slots, slots.Union(perStaff...)...)
	return res, nil
}

func (s *Service) eligibleStaff(ctx context.Context, q Query) ([]string, error) {
	if q.StaffID == "" {
		return s.catalog.ListStaffForService(ctx, q.TenantID, q.ServiceID)
	}
	ok, err := s.catalog.StaffOffersService(ctx, q.TenantID, q.StaffID, q.ServiceID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: staff %s, service %s", bookings.ErrStaffNotEligible, q.StaffID, q.ServiceID)
	}
	return []string{q.StaffID}, nil
}

// Location returns the tenant's zone.
func (s *Service) Location(ctx context.Context, tenantID string) (*time.Location, error) {
	cfg, err := s.tenants.Get(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	return cfg.Location()
}

// Windows resolves one staff member's availability on a local date.
func (s *Service) Windows(ctx context.Context, tenantID, staffID string, date timewindow.Date, loc *time.Location) ([]timewindow.Window, error) {
	from, to := timewindow.DayBounds(date, loc)
	rows, err := s.schedules.ListSchedulesForStaff(ctx, tenantID, []string{staffID})
	if err != nil {
		return nil, err
	}
	blockings, err := s.schedules.ListBlockingsForStaff(ctx, tenantID, []string{staffID}, from, to)
	if err != nil {
		return nil, err
	}
	return schedule.ResolveIn(staffID, date, loc, rows, blockings)
}

var _ bookings.AvailabilityChecker = (*Service)(nil)
