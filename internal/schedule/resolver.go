package schedule

import (
	"fmt"
	"time"

	"github.com/wolfman30/chairbook/internal/timewindow"
)

// Resolve returns the disjoint, ascending availability windows for staffID on the
// local date in timezone. An empty result is a day off.
func Resolve(staffID string, date timewindow.Date, timezone string, schedules []WeeklySchedule, blockings []Blocking) ([]timewindow.Window, error) {
	loc, err := timewindow.LoadZone(timezone)
	if err != nil {
		return nil, err
	}
	return ResolveIn(staffID, date, loc, schedules, blockings)
}

// ResolveIn is Resolve for an already loaded location.
func ResolveIn(staffID string, date timewindow.Date, loc *time.Location, schedules []WeeklySchedule, blockings []Blocking) ([]timewindow.Window, error) {
	weekday := date.Weekday()

	var raw []timewindow.Window
	for _, row := range schedules {
		if row.StaffID != staffID || row.Weekday != weekday {
			continue
		}
		win, err := row.Window()
		if err != nil {
			return nil, err
		}
		raw = append(raw, win)
	}
	available := timewindow.Merge(raw)
	if len(available) == 0 {
		return nil, nil
	}

	for _, b := range blockings {
		if b.StaffID != staffID {
			continue
		}
		cut, ok := timewindow.ClipToDay(b.StartsAt, b.EndsAt, date, loc)
		if !ok {
			continue
		}
		available = timewindow.SubtractAll(available, cut)
		if len(available) == 0 {
			return nil, nil
		}
	}
	return available, nil
}

// Window converts the row's local start/end times into a day window.
func (s WeeklySchedule) Window() (timewindow.Window, error) {
	start, err := timewindow.ParseClock(s.StartTime)
	if err != nil {
		return timewindow.Window{}, fmt.Errorf("%w: staff %s: %v", ErrInvalidSchedule, s.StaffID, err)
	}
	end, err := timewindow.ParseClock(s.EndTime)
	if err != nil {
		return timewindow.Window{}, fmt.Errorf("%w: staff %s: %v", ErrInvalidSchedule, s.StaffID, err)
	}
	win, err := timewindow.New(start, end)
	if err != nil {
		return timewindow.Window{}, fmt.Errorf("%w: staff %s: %s-%s", ErrInvalidSchedule, s.StaffID, s.StartTime, s.EndTime)
	}
	return win, nil
}
