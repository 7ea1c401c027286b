package bookings

import (
	"errors"

	"github.com/wolfman30/chairbook/internal/catalog"
	"github.com/wolfman30/chairbook/internal/timewindow"
)

var (
	// ErrSlotConflict is returned when the requested interval overlaps another active booking.
	ErrSlotConflict = errors.New("slot conflict")

	// ErrOutsideAvailability is returned when the interval is not inside the staff availability.
	ErrOutsideAvailability = errors.New("outside availability")

	// ErrInvalidStatusTransition is returned for transitions the status machine forbids.
	ErrInvalidStatusTransition = errors.New("invalid status transition")

	// ErrInvalidInterval is returned when a resize would end at or before the start.
	ErrInvalidInterval = errors.New("invalid interval")

	// ErrBusy is returned when the per-staff serialization point could not be acquired in time.
	ErrBusy = errors.New("booking store busy")

	// ErrBookingNotFound is returned when a booking is not found for the tenant
	ErrBookingNotFound = errors.New("booking not found")

	// ErrStaffNotEligible is returned when the staff member does not offer the service.
	ErrStaffNotEligible = errors.New("staff does not offer service")

	// ErrUnknownStatus is returned when a status string is not recognised.
	ErrUnknownStatus = errors.New("unknown booking status")
)

// Stable machine-readable error kinds, shared by metrics labels and API bodies.
const (
	KindOK                      = "ok"
	KindSlotConflict            = "slot_conflict"
	KindOutsideAvailability     = "outside_availability"
	KindInvalidStatusTransition = "invalid_status_transition"
	KindInvalidInterval         = "invalid_interval"
	KindBusy                    = "busy"
	KindNotFound                = "not_found"
	KindStaffNotEligible        = "staff_not_eligible"
	KindUnknownStatus           = "unknown_status"
	KindInvalidTimezone         = "invalid_timezone"
	KindInvalidLocalTime        = "invalid_local_time"

	// KindError labels failures outside the admission taxonomy.
	KindError = "error"
)

// ErrorKind maps an admission error to its stable machine-readable kind.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return KindOK
	case errors.Is(err, ErrSlotConflict):
		return KindSlotConflict
	case errors.Is(err, ErrOutsideAvailability):
		return KindOutsideAvailability
	case errors.Is(err, ErrInvalidStatusTransition):
		return KindInvalidStatusTransition
	case errors.Is(err, ErrInvalidInterval):
		return KindInvalidInterval
	case errors.Is(err, ErrBusy):
		return KindBusy
	case errors.Is(err, ErrBookingNotFound), errors.Is(err, catalog.ErrServiceNotFound):
		return KindNotFound
	case errors.Is(err, ErrStaffNotEligible):
		return KindStaffNotEligible
	case errors.Is(err, ErrUnknownStatus):
		return KindUnknownStatus
	case errors.Is(err, timewindow.ErrInvalidTimezone):
		return KindInvalidTimezone
	case errors.Is(err, timewindow.ErrInvalidLocalTime):
		return KindInvalidLocalTime
	}
	return KindError
}
