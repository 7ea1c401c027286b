package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrServiceNotFound is returned when the service does not exist for the tenant.
	ErrServiceNotFound = errors.New("service not found")

	// ErrInvalidService is returned for rows that break the duration/buffer/price rules.
	ErrInvalidService = errors.New("invalid service")
)

// Service is a bookable offering of a tenant.
type Service struct {
	ID          string `json:"id"`
	TenantID    string `json:"tenant_id"`
	Name        string `json:"name"`
	DurationMin int    `json:"duration_min"`
	BufferMin   int    `json:"buffer_min"`
	PriceCents  int64  `json:"price_cents"`
}

// Occupancy is the calendar length reserved by one booking of the service.
func (s Service) Occupancy() int {
	return s.DurationMin + s.BufferMin
}

// Validate checks duration > 0, buffer >= 0 and price >= 0.
func (s Service) Validate() error {
	switch {
	case s.DurationMin <= 0:
		return fmt.Errorf("%w: duration_min must be positive", ErrInvalidService)
	case s.BufferMin < 0:
		return fmt.Errorf("%w: buffer_min must not be negative", ErrInvalidService)
	case s.PriceCents < 0:
		return fmt.Errorf("%w: price_cents must not be negative", ErrInvalidService)
	}
	return nil
}

type catalogDB interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Repository reads services and staff eligibility.
type Repository struct {
	db catalogDB
}

// NewRepository creates a catalog repository backed by pgx pool.
func NewRepository(pool *pgxpool.Pool) *Repository {
	if pool == nil {
		panic("catalog: pgx pool required")
	}
	return &Repository{db: pool}
}

// NewRepositoryWithDB allows injecting a mock database for testing.
func NewRepositoryWithDB(db catalogDB) *Repository {
	return &Repository{db: db}
}

// GetService loads one service scoped to the tenant.
func (r *Repository) GetService(ctx context.Context, tenantID, serviceID string) (*Service, error) {
	query := `
		SELECT id, tenant_id, name, duration_min, buffer_min, price_cents
		FROM services
		WHERE tenant_id = $1 AND id = $2
	`
	var svc Service
	if err := r.db.QueryRow(ctx, query, tenantID, serviceID).Scan(
		&svc.ID,
		&svc.TenantID,
		&svc.Name,
		&svc.DurationMin,
		&svc.BufferMin,
		&svc.PriceCents,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrServiceNotFound
		}
		return nil, fmt.Errorf("catalog: get service: %w", err)
	}
	if err := svc.Validate(); err != nil {
		return nil, fmt.Errorf("catalog: service %s: %w", serviceID, err)
	}
	return &svc, nil
}

// ListStaffForService returns the active staff ids offering the service, ascending.
func (r *Repository) ListStaffForService(ctx context.Context, tenantID, serviceID string) ([]string, error) {
	query := `
		SELECT ss.staff_id
		FROM staff_services ss
		JOIN staff s ON s.id = ss.staff_id AND s.tenant_id = ss.tenant_id
		WHERE ss.tenant_id = $1 AND ss.service_id = $2 AND s.active
		ORDER BY ss.staff_id
	`
	rows, err := r.db.Query(ctx, query, tenantID, serviceID)
	if err != nil {
		return nil, fmt.Errorf("catalog: list staff: %w", err)
	}
	defer rows.Close()

	var staff []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("catalog: scan staff: %w", err)
		}
		staff = append(staff, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("catalog: list staff: %w", err)
	}
	return staff, nil
}

// StaffOffersService reports whether an active staff member offers the service.
func (r *Repository) StaffOffersService(ctx context.Context, tenantID, staffID, serviceID string) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1
			FROM staff_services ss
			JOIN staff s ON s.id = ss.staff_id AND s.tenant_id = ss.tenant_id
			WHERE ss.tenant_id = $1 AND ss.staff_id = $2 AND ss.service_id = $3 AND s.active
		)
	`
	var ok bool
	if err := r.db.QueryRow(ctx, query, tenantID, staffID, serviceID).Scan(&ok); err != nil {
		return false, fmt.Errorf("catalog: staff eligibility: %w", err)
	}
	return ok, nil
}
