// Package schedule derives per-staff availability windows from recurring weekly
// schedules and blocking exceptions.
package schedule

import (
	"errors"
	"time"
)

// ErrInvalidSchedule is returned when a weekly schedule row cannot be turned into a window.
var ErrInvalidSchedule = errors.New("invalid weekly schedule")

// WeeklySchedule is one recurring working interval for a staff member.
// Several rows per weekday are allowed (split shifts) and may overlap.
type WeeklySchedule struct {
	ID        int64        `json:"id,omitempty"`
	TenantID  string       `json:"tenant_id,omitempty"`
	StaffID   string       `json:"staff_id"`
	Weekday   time.Weekday `json:"weekday"`    // 0 = Sunday
	StartTime string       `json:"start_time"` // "09:00" local
	EndTime   string       `json:"end_time"`   // "13:00" local
}

// BlockingType distinguishes absences from manual blocks; both remove availability.
type BlockingType string

const (
	BlockingAbsence BlockingType = "absence"
	BlockingBlock   BlockingType = "block"
)

// Blocking removes [StartsAt, EndsAt) from a staff member's availability.
type Blocking struct {
	ID       int64        `json:"id,omitempty"`
	TenantID string       `json:"tenant_id,omitempty"`
	StaffID  string       `json:"staff_id"`
	StartsAt time.Time    `json:"starts_at"`
	EndsAt   time.Time    `json:"ends_at"`
	Type     BlockingType `json:"type"`
	Reason   string       `json:"reason,omitempty"`
}
