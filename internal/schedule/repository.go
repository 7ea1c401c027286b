package schedule

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"
)

// Repository reads tenant-authored schedules and blockings.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repository backed by database/sql.
func NewRepository(db *sql.DB) *Repository {
	if db == nil {
		panic("schedule: sql db required")
	}
	return &Repository{db: db}
}

const scheduleColumns = `id, tenant_id, staff_id, weekday, to_char(start_time, 'HH24:MI'), to_char(end_time, 'HH24:MI')`

// ListSchedules returns the weekly schedule rows of one staff member.
func (r *Repository) ListSchedules(ctx context.Context, tenantID, staffID string) ([]WeeklySchedule, error) {
	return r.ListSchedulesForStaff(ctx, tenantID, []string{staffID})
}

// ListSchedulesForStaff returns weekly schedule rows for several staff members at once.
func (r *Repository) ListSchedulesForStaff(ctx context.Context, tenantID string, staffIDs []string) ([]WeeklySchedule, error) {
	if len(staffIDs) == 0 {
		return nil, nil
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+scheduleColumns+`
		FROM weekly_schedules
		WHERE tenant_id = $1 AND staff_id = ANY($2)
		ORDER BY staff_id, weekday, start_time`,
		tenantID, pq.Array(staffIDs))
	if err != nil {
		return nil, fmt.Errorf("schedule: list schedules: %w", err)
	}
	defer rows.Close()

	var out []WeeklySchedule
	for rows.Next() {
		var s WeeklySchedule
		var weekday int
		if err := rows.Scan(&s.ID, &s.TenantID, &s.StaffID, &weekday, &s.StartTime, &s.EndTime); err != nil {
			return nil, fmt.Errorf("schedule: scan schedule: %w", err)
		}
		s.Weekday = time.Weekday(weekday)
		out = append(out, s)
	}
	return out, rows.Err()
}

// ListBlockings returns the blockings of one staff member overlapping [from, to).
func (r *Repository) ListBlockings(ctx context.Context, tenantID, staffID string, from, to time.Time) ([]Blocking, error) {
	return r.ListBlockingsForStaff(ctx, tenantID, []string{staffID}, from, to)
}

// ListBlockingsForStaff returns blockings overlapping [from, to) for several staff members.
func (r *Repository) ListBlockingsForStaff(ctx context.Context, tenantID string, staffIDs []string, from, to time.Time) ([]Blocking, error) {
	if len(staffIDs) == 0 {
		return nil, nil
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, tenant_id, staff_id, starts_at, ends_at, type, COALESCE(reason, '')
		FROM blockings
		WHERE tenant_id = $1 AND staff_id = ANY($2) AND starts_at < $4 AND ends_at > $3
		ORDER BY starts_at`,
		tenantID, pq.Array(staffIDs), from.UTC(), to.UTC())
	if err != nil {
		return nil, fmt.Errorf("schedule: list blockings: %w", err)
	}
	defer rows.Close()

	var out []Blocking
	for rows.Next() {
		var b Blocking
		var kind string
		if err := rows.Scan(&b.ID, &b.TenantID, &b.StaffID, &b.StartsAt, &b.EndsAt, &kind, &b.Reason); err != nil {
			return nil, fmt.Errorf("schedule: scan blocking: %w", err)
		}
		b.Type = BlockingType(kind)
		out = append(out, b)
	}
	return out, rows.Err()
}
