package bookings

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_BusyWhenLockHeld(t *testing.T) {
	store := NewMemoryStore(20 * time.Millisecond)
	ctx := context.Background()

	held := make(chan struct{})
	release := make(chan struct{})
	go func() {
		_ = store.Serialize(ctx, "tenant-1", "barber-1", func(Tx) error {
			close(held)
			<-release
			return nil
		})
	}()
	<-held
	defer close(release)

	err := store.Serialize(ctx, "tenant-1", "barber-1", func(Tx) error { return nil })
	assert.ErrorIs(t, err, ErrBusy)

	// another staff member is not blocked
	err = store.Serialize(ctx, "tenant-1", "barber-2", func(Tx) error { return nil })
	assert.NoError(t, err)

	// same staff id under another tenant is a different calendar
	err = store.Serialize(ctx, "tenant-2", "barber-1", func(Tx) error { return nil })
	assert.NoError(t, err)
}

func TestMemoryStore_FailedSectionWritesNothing(t *testing.T) {
	store := NewMemoryStore(time.Second)
	ctx := context.Background()
	start := time.Date(2024, 6, 10, 8, 0, 0, 0, time.UTC)

	boom := errors.New("boom")
	err := store.Serialize(ctx, "tenant-1", "barber-1", func(tx Tx) error {
		require.NoError(t, tx.Insert(ctx, &Booking{
			ID: "b-1", TenantID: "tenant-1", StaffID: "barber-1",
			StartsAt: start, EndsAt: start.Add(30 * time.Minute), Status: StatusPending,
		}))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	_, err = store.Get(ctx, "tenant-1", "b-1")
	assert.ErrorIs(t, err, ErrBookingNotFound)
}

func TestMemoryStore_ListActiveUsesBufferAndStatus(t *testing.T) {
	store := NewMemoryStore(time.Second)
	ctx := context.Background()
	start := time.Date(2024, 6, 10, 8, 0, 0, 0, time.UTC)

	err := store.Serialize(ctx, "tenant-1", "barber-1", func(tx Tx) error {
		for _, b := range []*Booking{
			{ID: "a", TenantID: "tenant-1", StaffID: "barber-1", StartsAt: start, EndsAt: start.Add(30 * time.Minute), BufferMin: 10, Status: StatusPending},
			{ID: "b", TenantID: "tenant-1", StaffID: "barber-1", StartsAt: start.Add(time.Hour), EndsAt: start.Add(90 * time.Minute), Status: StatusPending},
		} {
			if err := tx.Insert(ctx, b); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)

	got, err := store.ListActive(ctx, "tenant-1", []string{"barber-1"}, start.Add(35*time.Minute), start.Add(50*time.Minute))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "a", got[0].ID)

	_, err = store.UpdateStatus(ctx, "tenant-1", "a", StatusPending, StatusCancelled)
	require.NoError(t, err)
	got, err = store.ListActive(ctx, "tenant-1", []string{"barber-1"}, start, start.Add(2*time.Hour))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "b", got[0].ID)

	_, err = store.UpdateStatus(ctx, "tenant-1", "a", StatusPending, StatusPaid)
	assert.ErrorIs(t, err, ErrInvalidStatusTransition)

	_, err = store.Get(ctx, "tenant-2", "b")
	assert.ErrorIs(t, err, ErrBookingNotFound)
}
