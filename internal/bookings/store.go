package bookings

import (
	"context"
	"time"
)

// Store persists bookings. Serialize runs fn while holding the serialization
// point of one (tenant, staff) calendar; every conflict check and write that
// must be atomic happens inside fn.
type Store interface {
	Get(ctx context.Context, tenantID, id string) (*Booking, error)
	// ListActive returns active bookings whose reserved interval intersects [from, to).
	ListActive(ctx context.Context, tenantID string, staffIDs []string, from, to time.Time) ([]Booking, error)
	// UpdateStatus moves id from one status to another only if it is still in from.
	UpdateStatus(ctx context.Context, tenantID, id string, from, to Status) (*Booking, error)
	Serialize(ctx context.Context, tenantID, staffID string, fn func(Tx) error) error
}

// Tx is the view of the store inside a serialized section.
type Tx interface {
	Get(ctx context.Context, tenantID, id string) (*Booking, error)
	// Overlapping returns active bookings of staffID whose reserved interval
	// intersects [from, to), excluding excludeID.
	Overlapping(ctx context.Context, tenantID, staffID string, from, to time.Time, excludeID string) ([]Booking, error)
	Insert(ctx context.Context, b *Booking) error
	// UpdateInterval persists StaffID, StartsAt, EndsAt and BufferMin of b.
	UpdateInterval(ctx context.Context, b *Booking) error
}
