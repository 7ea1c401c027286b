package bookings

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/chairbook/internal/catalog"
	"github.com/wolfman30/chairbook/internal/timewindow"
)

type fakeCatalog struct {
	services map[string]*catalog.Service
	offers   map[string]bool // staff|service
}

func (f *fakeCatalog) GetService(ctx context.Context, tenantID, serviceID string) (*catalog.Service, error) {
	svc, ok := f.services[serviceID]
	if !ok || svc.TenantID != tenantID {
		return nil, catalog.ErrServiceNotFound
	}
	cp := *svc
	return &cp, nil
}

func (f *fakeCatalog) StaffOffersService(ctx context.Context, tenantID, staffID, serviceID string) (bool, error) {
	return f.offers[staffID+"|"+serviceID], nil
}

type fakeAvailability struct {
	loc     *time.Location
	windows map[string][]timewindow.Window
}

func (f *fakeAvailability) Location(ctx context.Context, tenantID string) (*time.Location, error) {
	return f.loc, nil
}

func (f *fakeAvailability) Windows(ctx context.Context, tenantID, staffID string, date timewindow.Date, loc *time.Location) ([]timewindow.Window, error) {
	return f.windows[staffID], nil
}

type guardFixture struct {
	guard *Guard
	store *MemoryStore
	loc   *time.Location
}

func newGuardFixture(t *testing.T) *guardFixture {
	t.Helper()
	loc, err := time.LoadLocation("Europe/Madrid")
	require.NoError(t, err)

	split := []timewindow.Window{{Start: 9 * 60, End: 13 * 60}, {Start: 15 * 60, End: 19 * 60}}
	cat := &fakeCatalog{
		services: map[string]*catalog.Service{
			"cut":   {ID: "cut", TenantID: "tenant-1", DurationMin: 30, BufferMin: 10, PriceCents: 2000},
			"shave": {ID: "shave", TenantID: "tenant-1", DurationMin: 20, BufferMin: 0, PriceCents: 1200},
		},
		offers: map[string]bool{
			"barber-1|cut": true, "barber-1|shave": true,
			"barber-2|cut": true,
		},
	}
	avail := &fakeAvailability{loc: loc, windows: map[string][]timewindow.Window{
		"barber-1": split,
		"barber-2": split,
	}}
	store := NewMemoryStore(time.Second)
	guard := NewGuard(store, cat, avail, nil, nil).WithClock(func() time.Time {
		return time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	})
	return &guardFixture{guard: guard, store: store, loc: loc}
}

func (f *guardFixture) at(hour, minute int) time.Time {
	return time.Date(2024, 6, 10, hour, minute, 0, 0, f.loc)
}

func (f *guardFixture) create(t *testing.T, staffID, serviceID string, start time.Time) (*Booking, error) {
	t.Helper()
	return f.guard.Create(context.Background(), CreateIntent{
		TenantID:   "tenant-1",
		StaffID:    staffID,
		ServiceID:  serviceID,
		CustomerID: "cust-1",
		StartsAt:   start,
	})
}

func TestGuardCreate_Admits(t *testing.T) {
	f := newGuardFixture(t)
	b, err := f.create(t, "barber-1", "cut", f.at(10, 0))
	require.NoError(t, err)

	assert.NotEmpty(t, b.ID)
	assert.Equal(t, StatusPending, b.Status)
	assert.Equal(t, 30*time.Minute, b.EndsAt.Sub(b.StartsAt))
	assert.Equal(t, 10, b.BufferMin)
	assert.Equal(t, f.at(10, 40).UTC(), b.OccupiedUntil())

	stored, err := f.store.Get(context.Background(), "tenant-1", b.ID)
	require.NoError(t, err)
	assert.Equal(t, b.StartsAt, stored.StartsAt)
}

func TestGuardCreate_ConflictUsesBookedBuffer(t *testing.T) {
	f := newGuardFixture(t)
	_, err := f.create(t, "barber-1", "cut", f.at(10, 0))
	require.NoError(t, err)

	// 10:30 falls inside the 10 minute buffer of the 10:00 booking.
	_, err = f.create(t, "barber-1", "shave", f.at(10, 30))
	assert.ErrorIs(t, err, ErrSlotConflict)

	// 09:30 + 40 reaches into 10:00.
	_, err = f.create(t, "barber-1", "cut", f.at(9, 30))
	assert.ErrorIs(t, err, ErrSlotConflict)

	_, err = f.create(t, "barber-1", "shave", f.at(10, 40))
	assert.NoError(t, err)

	_, err = f.create(t, "barber-2", "cut", f.at(10, 0))
	assert.NoError(t, err, "other staff is independent")
}

func TestGuardCreate_OutsideAvailability(t *testing.T) {
	f := newGuardFixture(t)

	tests := []struct {
		name  string
		start time.Time
	}{
		{"before opening", f.at(8, 45)},
		{"runs past window end", f.at(12, 30)},
		{"lunch gap", f.at(14, 0)},
		{"past start", time.Date(2024, 5, 1, 10, 0, 0, 0, f.loc)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.create(t, "barber-1", "cut", tt.start)
			assert.ErrorIs(t, err, ErrOutsideAvailability)
		})
	}

	_, err := f.create(t, "barber-1", "cut", f.at(12, 20))
	assert.NoError(t, err, "12:20 + 40 ends exactly at 13:00")
}

func TestGuardCreate_RejectsIneligibleStaffAndBadStatus(t *testing.T) {
	f := newGuardFixture(t)
	_, err := f.create(t, "barber-2", "shave", f.at(10, 0))
	assert.ErrorIs(t, err, ErrStaffNotEligible)

	_, err = f.create(t, "barber-1", "missing", f.at(10, 0))
	assert.ErrorIs(t, err, catalog.ErrServiceNotFound)

	_, err = f.guard.Create(context.Background(), CreateIntent{
		TenantID: "tenant-1", StaffID: "barber-1", ServiceID: "cut", StartsAt: f.at(10, 0), Status: StatusPaid,
	})
	assert.ErrorIs(t, err, ErrInvalidStatusTransition)

	hold, err := f.guard.Create(context.Background(), CreateIntent{
		TenantID: "tenant-1", StaffID: "barber-1", ServiceID: "cut", StartsAt: f.at(11, 0), Status: StatusHold,
	})
	require.NoError(t, err)
	assert.Equal(t, StatusHold, hold.Status)
}

func TestGuardCreate_ConcurrentSameSlotExactlyOneWins(t *testing.T) {
	f := newGuardFixture(t)

	const clients = 16
	var wg sync.WaitGroup
	errs := make([]error, clients)
	start := make(chan struct{})
	for i := 0; i < clients; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			_, errs[i] = f.create(t, "barber-1", "cut", f.at(11, 0))
		}(i)
	}
	close(start)
	wg.Wait()

	var ok, conflicts int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, ErrSlotConflict):
			conflicts++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, clients-1, conflicts)
}

func TestGuardTransition_CancelFreesInterval(t *testing.T) {
	f := newGuardFixture(t)
	ctx := context.Background()

	b, err := f.create(t, "barber-1", "cut", f.at(10, 0))
	require.NoError(t, err)

	cancelled, err := f.guard.Transition(ctx, "tenant-1", b.ID, StatusCancelled)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, cancelled.Status)

	_, err = f.create(t, "barber-1", "cut", f.at(10, 0))
	assert.NoError(t, err)

	_, err = f.guard.Transition(ctx, "tenant-1", b.ID, StatusPending)
	assert.ErrorIs(t, err, ErrInvalidStatusTransition)

	_, err = f.guard.Transition(ctx, "tenant-1", "nope", StatusPaid)
	assert.ErrorIs(t, err, ErrBookingNotFound)
}

func TestGuardMove(t *testing.T) {
	f := newGuardFixture(t)
	ctx := context.Background()

	first, err := f.create(t, "barber-1", "cut", f.at(10, 0))
	require.NoError(t, err)
	second, err := f.create(t, "barber-1", "cut", f.at(11, 0))
	require.NoError(t, err)

	moved, err := f.guard.Move(ctx, MoveIntent{TenantID: "tenant-1", BookingID: first.ID, NewStartsAt: f.at(9, 0)})
	require.NoError(t, err)
	assert.Equal(t, f.at(9, 0).UTC(), moved.StartsAt)
	assert.Equal(t, f.at(9, 30).UTC(), moved.EndsAt)

	// moving onto itself never conflicts with its own old interval
	_, err = f.guard.Move(ctx, MoveIntent{TenantID: "tenant-1", BookingID: first.ID, NewStartsAt: f.at(9, 15)})
	require.NoError(t, err)

	_, err = f.guard.Move(ctx, MoveIntent{TenantID: "tenant-1", BookingID: first.ID, NewStartsAt: f.at(10, 45)})
	assert.ErrorIs(t, err, ErrSlotConflict)

	_, err = f.guard.Move(ctx, MoveIntent{TenantID: "tenant-1", BookingID: first.ID, NewStartsAt: f.at(11, 0), NewStaffID: "barber-2"})
	require.NoError(t, err)

	_, err = f.guard.Move(ctx, MoveIntent{TenantID: "tenant-1", BookingID: second.ID, NewStartsAt: f.at(20, 0)})
	assert.ErrorIs(t, err, ErrOutsideAvailability)

	late, err := f.guard.Move(ctx, MoveIntent{TenantID: "tenant-1", BookingID: second.ID, NewStartsAt: f.at(20, 0), IgnoreAvailability: true})
	require.NoError(t, err)
	assert.Equal(t, f.at(20, 0).UTC(), late.StartsAt)
}

func TestGuardMove_TerminalBookingRejected(t *testing.T) {
	f := newGuardFixture(t)
	ctx := context.Background()

	b, err := f.create(t, "barber-1", "cut", f.at(10, 0))
	require.NoError(t, err)
	for _, st := range []Status{StatusPaid, StatusCompleted} {
		_, err = f.guard.Transition(ctx, "tenant-1", b.ID, st)
		require.NoError(t, err)
	}

	_, err = f.guard.Move(ctx, MoveIntent{TenantID: "tenant-1", BookingID: b.ID, NewStartsAt: f.at(11, 0)})
	assert.ErrorIs(t, err, ErrInvalidStatusTransition)
}

func TestGuardResize(t *testing.T) {
	f := newGuardFixture(t)
	ctx := context.Background()

	b, err := f.create(t, "barber-1", "cut", f.at(10, 0))
	require.NoError(t, err)
	_, err = f.create(t, "barber-1", "cut", f.at(11, 0))
	require.NoError(t, err)
	_, err = f.guard.Transition(ctx, "tenant-1", b.ID, StatusPaid)
	require.NoError(t, err)

	_, err = f.guard.Resize(ctx, ResizeIntent{TenantID: "tenant-1", BookingID: b.ID, NewEndsAt: f.at(10, 0)})
	assert.ErrorIs(t, err, ErrInvalidInterval)

	// 10:00-10:55 + 10 buffer reaches 11:05
	_, err = f.guard.Resize(ctx, ResizeIntent{TenantID: "tenant-1", BookingID: b.ID, NewEndsAt: f.at(10, 55)})
	assert.ErrorIs(t, err, ErrSlotConflict)

	resized, err := f.guard.Resize(ctx, ResizeIntent{TenantID: "tenant-1", BookingID: b.ID, NewEndsAt: f.at(10, 50)})
	require.NoError(t, err)
	assert.Equal(t, f.at(10, 50).UTC(), resized.EndsAt)
	assert.Equal(t, StatusPaid, resized.Status)

	stored, err := f.store.Get(ctx, "tenant-1", b.ID)
	require.NoError(t, err)
	assert.Equal(t, f.at(10, 50).UTC(), stored.EndsAt)
	assert.Equal(t, StatusPaid, stored.Status)
}

func TestGuardResize_PastWindowNeedsOverride(t *testing.T) {
	f := newGuardFixture(t)
	ctx := context.Background()

	b, err := f.create(t, "barber-1", "cut", f.at(12, 0))
	require.NoError(t, err)

	_, err = f.guard.Resize(ctx, ResizeIntent{TenantID: "tenant-1", BookingID: b.ID, NewEndsAt: f.at(13, 30)})
	assert.ErrorIs(t, err, ErrOutsideAvailability)

	_, err = f.guard.Resize(ctx, ResizeIntent{TenantID: "tenant-1", BookingID: b.ID, NewEndsAt: f.at(13, 30), IgnoreAvailability: true})
	assert.NoError(t, err)
}

func TestErrorKind(t *testing.T) {
	assert.Equal(t, "ok", ErrorKind(nil))
	assert.Equal(t, "slot_conflict", ErrorKind(ErrSlotConflict))
	assert.Equal(t, "busy", ErrorKind(errors.Join(errors.New("ctx"), ErrBusy)))
	assert.Equal(t, "not_found", ErrorKind(catalog.ErrServiceNotFound))
	assert.Equal(t, "invalid_local_time", ErrorKind(timewindow.ErrInvalidLocalTime))
	assert.Equal(t, "error", ErrorKind(errors.New("boom")))
}
