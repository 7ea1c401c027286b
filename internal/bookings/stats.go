package bookings

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Stats aggregates booking outcomes for one tenant.
type Stats struct {
	TenantID    string           `json:"tenant_id"`
	Total       int64            `json:"total"`
	ByStatus    map[Status]int64 `json:"by_status"`
	NoShowRate  float64          `json:"no_show_rate"`
	PeriodStart string           `json:"period_start"`
	PeriodEnd   string           `json:"period_end"`
}

// statsDB defines the database interface needed by StatsRepository
type statsDB interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// StatsRepository queries booking KPIs.
type StatsRepository struct {
	db statsDB
}

// NewStatsRepository creates a new stats repository.
func NewStatsRepository(pool *pgxpool.Pool) *StatsRepository {
	if pool == nil {
		panic("bookings: pgx pool required for stats")
	}
	return &StatsRepository{db: pool}
}

// NewStatsRepositoryWithDB allows injecting a mock database for testing.
func NewStatsRepositoryWithDB(db statsDB) *StatsRepository {
	return &StatsRepository{db: db}
}

// GetStats counts bookings by status. With start and end set only bookings
// starting in [start, end) are counted.
func (r *StatsRepository) GetStats(ctx context.Context, tenantID string, start, end *time.Time) (*Stats, error) {
	stats := &Stats{TenantID: tenantID, ByStatus: map[Status]int64{}}

	var timeFilter string
	args := []any{tenantID}
	if start != nil && end != nil {
		timeFilter = ` AND starts_at >= $2 AND starts_at < $3`
		args = append(args, *start, *end)
		stats.PeriodStart = start.Format(time.RFC3339)
		stats.PeriodEnd = end.Format(time.RFC3339)
	} else {
		stats.PeriodStart = "all-time"
		stats.PeriodEnd = "now"
	}

	query := `SELECT status, COUNT(*) FROM bookings WHERE tenant_id = $1` + timeFilter + ` GROUP BY status`
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("bookings stats: count by status: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var status string
		var count int64
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("bookings stats: scan: %w", err)
		}
		stats.ByStatus[Status(status)] = count
		stats.Total += count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("bookings stats: rows: %w", err)
	}

	// no-show rate over appointments that reached their time
	if settled := stats.ByStatus[StatusCompleted] + stats.ByStatus[StatusNoShow]; settled > 0 {
		stats.NoShowRate = float64(stats.ByStatus[StatusNoShow]) / float64(settled)
	}
	return stats, nil
}
