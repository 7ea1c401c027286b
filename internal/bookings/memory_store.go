package bookings

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// MemoryStore keeps bookings in process. Each (tenant, staff) calendar has a
// one-slot semaphore; waiting longer than the lock timeout yields ErrBusy.
type MemoryStore struct {
	mu          sync.RWMutex
	bookings    map[string]*Booking
	locks       map[string]chan struct{}
	lockTimeout time.Duration
	now         func() time.Time
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore(lockTimeout time.Duration) *MemoryStore {
	if lockTimeout <= 0 {
		lockTimeout = 2 * time.Second
	}
	return &MemoryStore{
		bookings:    make(map[string]*Booking),
		locks:       make(map[string]chan struct{}),
		lockTimeout: lockTimeout,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

func (s *MemoryStore) Get(ctx context.Context, tenantID, id string) (*Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.get(tenantID, id)
}

func (s *MemoryStore) get(tenantID, id string) (*Booking, error) {
	b, ok := s.bookings[id]
	if !ok || b.TenantID != tenantID {
		return nil, ErrBookingNotFound
	}
	cp := *b
	return &cp, nil
}

func (s *MemoryStore) ListActive(ctx context.Context, tenantID string, staffIDs []string, from, to time.Time) ([]Booking, error) {
	wanted := make(map[string]bool, len(staffIDs))
	for _, id := range staffIDs {
		wanted[id] = true
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Booking
	for _, b := range s.bookings {
		if b.TenantID != tenantID || !wanted[b.StaffID] || !b.Status.IsActive() {
			continue
		}
		if b.StartsAt.Before(to) && b.OccupiedUntil().After(from) {
			out = append(out, *b)
		}
	}
	sortByStart(out)
	return out, nil
}

func (s *MemoryStore) UpdateStatus(ctx context.Context, tenantID, id string, from, to Status) (*Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bookings[id]
	if !ok || b.TenantID != tenantID {
		return nil, ErrBookingNotFound
	}
	if b.Status != from {
		return nil, fmt.Errorf("%w: booking is %s, not %s", ErrInvalidStatusTransition, b.Status, from)
	}
	b.Status = to
	b.UpdatedAt = s.now()
	cp := *b
	return &cp, nil
}

func (s *MemoryStore) Serialize(ctx context.Context, tenantID, staffID string, fn func(Tx) error) error {
	sem := s.semaphore(tenantID + "/" + staffID)
	timer := time.NewTimer(s.lockTimeout)
	defer timer.Stop()

	select {
	case sem <- struct{}{}:
	case <-timer.C:
		return fmt.Errorf("%w: staff %s", ErrBusy, staffID)
	case <-ctx.Done():
		return fmt.Errorf("%w: %v", ErrBusy, ctx.Err())
	}
	defer func() { <-sem }()

	tx := &memoryTx{store: s}
	if err := fn(tx); err != nil {
		return err
	}
	tx.commit()
	return nil
}

// semaphore returns the lock for key. Entries are never evicted, so the map grows
// with every (tenant, staff) pair seen; MemoryStore is for development and tests,
// not long-lived processes.
func (s *MemoryStore) semaphore(key string) chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	sem, ok := s.locks[key]
	if !ok {
		sem = make(chan struct{}, 1)
		s.locks[key] = sem
	}
	return sem
}

// memoryTx buffers writes until fn returns without error.
type memoryTx struct {
	store   *MemoryStore
	pending []*Booking
}

func (t *memoryTx) Get(ctx context.Context, tenantID, id string) (*Booking, error) {
	t.store.mu.RLock()
	defer t.store.mu.RUnlock()
	return t.store.get(tenantID, id)
}

func (t *memoryTx) Overlapping(ctx context.Context, tenantID, staffID string, from, to time.Time, excludeID string) ([]Booking, error) {
	active, err := t.store.ListActive(ctx, tenantID, []string{staffID}, from, to)
	if err != nil {
		return nil, err
	}
	out := active[:0]
	for _, b := range active {
		if b.ID != excludeID {
			out = append(out, b)
		}
	}
	return out, nil
}

func (t *memoryTx) Insert(ctx context.Context, b *Booking) error {
	now := t.store.now()
	b.CreatedAt = now
	b.UpdatedAt = now
	cp := *b
	t.pending = append(t.pending, &cp)
	return nil
}

func (t *memoryTx) UpdateInterval(ctx context.Context, b *Booking) error {
	t.store.mu.RLock()
	_, ok := t.store.bookings[b.ID]
	t.store.mu.RUnlock()
	if !ok {
		return ErrBookingNotFound
	}
	b.UpdatedAt = t.store.now()
	cp := *b
	t.pending = append(t.pending, &cp)
	return nil
}

func (t *memoryTx) commit() {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	for _, b := range t.pending {
		if existing, ok := t.store.bookings[b.ID]; ok {
			// status is owned by UpdateStatus
			b.Status = existing.Status
			b.CreatedAt = existing.CreatedAt
		}
		t.store.bookings[b.ID] = b
	}
}

func sortByStart(bs []Booking) {
	sort.Slice(bs, func(i, j int) bool {
		if !bs[i].StartsAt.Equal(bs[j].StartsAt) {
			return bs[i].StartsAt.Before(bs[j].StartsAt)
		}
		return bs[i].ID < bs[j].ID
	})
}
