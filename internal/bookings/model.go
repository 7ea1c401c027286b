package bookings

import (
	"fmt"
	"strings"
	"time"

	"github.com/wolfman30/chairbook/internal/slots"
)

// Status is the booking lifecycle state.
type Status string

const (
	StatusHold      Status = "hold"
	StatusPending   Status = "pending"
	StatusPaid      Status = "paid"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
	StatusNoShow    Status = "no_show"
)

var transitions = map[Status][]Status{
	StatusHold:    {StatusPending, StatusCancelled},
	StatusPending: {StatusPaid, StatusCancelled, StatusNoShow},
	StatusPaid:    {StatusCompleted, StatusCancelled, StatusNoShow},
}

// ParseStatus validates a status string.
func ParseStatus(s string) (Status, error) {
	st := Status(strings.ToLower(strings.TrimSpace(s)))
	switch st {
	case StatusHold, StatusPending, StatusPaid, StatusCompleted, StatusCancelled, StatusNoShow:
		return st, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownStatus, s)
}

// CanTransition reports whether from -> to is allowed.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// IsActive reports whether a booking in this status still occupies its interval.
func (s Status) IsActive() bool {
	return s != StatusCancelled && s != StatusNoShow
}

// IsFinal reports whether no further transition is possible.
func (s Status) IsFinal() bool {
	return len(transitions[s]) == 0
}

// Booking is a persisted reservation of a staff member. EndsAt is the displayed
// end; the calendar stays reserved until EndsAt + BufferMin.
type Booking struct {
	ID         string    `json:"id"`
	TenantID   string    `json:"tenant_id"`
	StaffID    string    `json:"staff_id"`
	ServiceID  string    `json:"service_id"`
	CustomerID string    `json:"customer_id"`
	StartsAt   time.Time `json:"starts_at"`
	EndsAt     time.Time `json:"ends_at"`
	BufferMin  int       `json:"buffer_min"`
	Status     Status    `json:"status"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Occupancy returns the reserved interval of the booking.
func (b Booking) Occupancy() slots.Occupancy {
	return slots.Occupancy{StartsAt: b.StartsAt, EndsAt: b.EndsAt, BufferMin: b.BufferMin}
}

// OccupiedUntil is EndsAt plus the buffer snapshot.
func (b Booking) OccupiedUntil() time.Time {
	return b.Occupancy().Until()
}

// CreateIntent asks to admit a new booking.
type CreateIntent struct {
	TenantID   string
	StaffID    string
	ServiceID  string
	CustomerID string
	StartsAt   time.Time
	// Status is hold or pending; empty means pending.
	Status Status
}

// MoveIntent asks to move a booking to a new start and optionally a new staff member.
type MoveIntent struct {
	TenantID           string
	BookingID          string
	NewStartsAt        time.Time
	NewStaffID         string
	IgnoreAvailability bool
}

// ResizeIntent asks to change a booking's end.
type ResizeIntent struct {
	TenantID           string
	BookingID          string
	NewEndsAt          time.Time
	IgnoreAvailability bool
}
