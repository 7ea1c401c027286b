package bookings

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	pgLockNotAvailable   = "55P03"
	pgExclusionViolation = "23P01"
)

// pgxDB is the subset of pgxpool.Pool the store needs.
type pgxDB interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Begin(ctx context.Context) (pgx.Tx, error)
}

// PostgresStore persists bookings in Postgres. Serialize takes a transaction
// scoped advisory lock on hash(tenant, staff) under a bounded lock_timeout.
type PostgresStore struct {
	db          pgxDB
	lockTimeout time.Duration
}

// NewPostgresStore creates a store backed by pgx pool.
func NewPostgresStore(pool *pgxpool.Pool, lockTimeout time.Duration) *PostgresStore {
	if pool == nil {
		panic("bookings: pgx pool required")
	}
	return NewPostgresStoreWithDB(pool, lockTimeout)
}

// NewPostgresStoreWithDB allows injecting a mock database for testing.
func NewPostgresStoreWithDB(db pgxDB, lockTimeout time.Duration) *PostgresStore {
	if lockTimeout <= 0 {
		lockTimeout = 2 * time.Second
	}
	return &PostgresStore{db: db, lockTimeout: lockTimeout}
}

const bookingColumns = `id, tenant_id, staff_id, service_id, customer_id, starts_at, ends_at, buffer_min, status, created_at, updated_at`

// activeOverlap filters active bookings whose reserved range meets [$3, $4).
const activeOverlap = `
	status NOT IN ('cancelled', 'no_show')
	AND starts_at < $4
	AND ends_at + make_interval(mins => buffer_min) > $3`

func (s *PostgresStore) Get(ctx context.Context, tenantID, id string) (*Booking, error) {
	return getBooking(ctx, s.db, tenantID, id)
}

func (s *PostgresStore) ListActive(ctx context.Context, tenantID string, staffIDs []string, from, to time.Time) ([]Booking, error) {
	if len(staffIDs) == 0 {
		return nil, nil
	}
	query := `
		SELECT ` + bookingColumns + `
		FROM bookings
		WHERE tenant_id = $1 AND staff_id = ANY($2) AND` + activeOverlap + `
		ORDER BY starts_at, id
	`
	rows, err := s.db.Query(ctx, query, tenantID, staffIDs, from.UTC(), to.UTC())
	if err != nil {
		return nil, fmt.Errorf("bookings: list active: %w", err)
	}
	return collectBookings(rows)
}

func (s *PostgresStore) UpdateStatus(ctx context.Context, tenantID, id string, from, to Status) (*Booking, error) {
	query := `
		UPDATE bookings
		SET status = $4, updated_at = now()
		WHERE tenant_id = $1 AND id = $2 AND status = $3
		RETURNING ` + bookingColumns
	b, err := scanBooking(s.db.QueryRow(ctx, query, tenantID, id, string(from), string(to)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: booking is no longer %s", ErrInvalidStatusTransition, from)
		}
		return nil, fmt.Errorf("bookings: update status: %w", err)
	}
	return b, nil
}

func (s *PostgresStore) Serialize(ctx context.Context, tenantID, staffID string, fn func(Tx) error) (err error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return waitError(fmt.Errorf("bookings: begin: %w", err))
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	if _, err = tx.Exec(ctx, fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", s.lockTimeout.Milliseconds())); err != nil {
		return fmt.Errorf("bookings: set lock timeout: %w", err)
	}
	if _, err = tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, lockKey(tenantID, staffID)); err != nil {
		return waitError(fmt.Errorf("bookings: lock staff %s: %w", staffID, err))
	}
	if err = fn(&pgTx{tx: tx}); err != nil {
		return mapPgError(err)
	}
	if err = tx.Commit(ctx); err != nil {
		return mapPgError(fmt.Errorf("bookings: commit: %w", err))
	}
	return nil
}

func lockKey(tenantID, staffID string) string {
	return "bookings:" + tenantID + ":" + staffID
}

// waitError reports a caller deadline hit while waiting for a connection or the
// staff lock as ErrBusy, like a server-side lock timeout.
func waitError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrBusy, err)
	}
	return mapPgError(err)
}

// mapPgError turns lock timeouts into ErrBusy and exclusion violations into ErrSlotConflict.
func mapPgError(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case pgLockNotAvailable:
		return fmt.Errorf("%w: %v", ErrBusy, err)
	case pgExclusionViolation:
		return fmt.Errorf("%w: %v", ErrSlotConflict, err)
	}
	return err
}

type pgTx struct {
	tx pgx.Tx
}

func (t *pgTx) Get(ctx context.Context, tenantID, id string) (*Booking, error) {
	return getBooking(ctx, t.tx, tenantID, id)
}

func (t *pgTx) Overlapping(ctx context.Context, tenantID, staffID string, from, to time.Time, excludeID string) ([]Booking, error) {
	query := `
		SELECT ` + bookingColumns + `
		FROM bookings
		WHERE tenant_id = $1 AND staff_id = $2 AND id <> $5 AND` + activeOverlap + `
		ORDER BY starts_at, id
	`
	rows, err := t.tx.Query(ctx, query, tenantID, staffID, from.UTC(), to.UTC(), excludeID)
	if err != nil {
		return nil, fmt.Errorf("bookings: overlapping: %w", err)
	}
	return collectBookings(rows)
}

func (t *pgTx) Insert(ctx context.Context, b *Booking) error {
	query := `
		INSERT INTO bookings (id, tenant_id, staff_id, service_id, customer_id, starts_at, ends_at, buffer_min, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at, updated_at
	`
	if err := t.tx.QueryRow(ctx, query,
		b.ID,
		b.TenantID,
		b.StaffID,
		b.ServiceID,
		b.CustomerID,
		b.StartsAt,
		b.EndsAt,
		b.BufferMin,
		string(b.Status),
	).Scan(&b.CreatedAt, &b.UpdatedAt); err != nil {
		return fmt.Errorf("bookings: insert: %w", err)
	}
	return nil
}

func (t *pgTx) UpdateInterval(ctx context.Context, b *Booking) error {
	query := `
		UPDATE bookings
		SET staff_id = $3, starts_at = $4, ends_at = $5, buffer_min = $6, updated_at = now()
		WHERE tenant_id = $1 AND id = $2
		RETURNING updated_at
	`
	if err := t.tx.QueryRow(ctx, query, b.TenantID, b.ID, b.StaffID, b.StartsAt, b.EndsAt, b.BufferMin).Scan(&b.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrBookingNotFound
		}
		return fmt.Errorf("bookings: update interval: %w", err)
	}
	return nil
}

type rowQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func getBooking(ctx context.Context, db rowQuerier, tenantID, id string) (*Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE tenant_id = $1 AND id = $2`
	b, err := scanBooking(db.QueryRow(ctx, query, tenantID, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrBookingNotFound
		}
		return nil, fmt.Errorf("bookings: get: %w", err)
	}
	return b, nil
}

func scanBooking(row pgx.Row) (*Booking, error) {
	var b Booking
	var status string
	if err := row.Scan(
		&b.ID,
		&b.TenantID,
		&b.StaffID,
		&b.ServiceID,
		&b.CustomerID,
		&b.StartsAt,
		&b.EndsAt,
		&b.BufferMin,
		&status,
		&b.CreatedAt,
		&b.UpdatedAt,
	); err != nil {
		return nil, err
	}
	b.Status = Status(status)
	return &b, nil
}

func collectBookings(rows pgx.Rows) ([]Booking, error) {
	defer rows.Close()
	var out []Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("bookings: scan: %w", err)
		}
		out = append(out, *b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("bookings: rows: %w", err)
	}
	return out, nil
}
