package slots

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/wolfman30/chairbook/internal/timewindow"
)

// DefaultGranularity is the candidate step in minutes when none is configured.
const DefaultGranularity = 15

// ErrInvalidDuration is returned when the requested service length is not positive.
var ErrInvalidDuration = errors.New("slots: duration must be positive")

// Occupancy is an interval already reserved on a staff calendar. The reserved
// range is [StartsAt, EndsAt + BufferMin).
type Occupancy struct {
	StartsAt  time.Time
	EndsAt    time.Time
	BufferMin int
}

// Until returns the end of the reserved range including the buffer.
func (o Occupancy) Until() time.Time {
	return o.EndsAt.Add(time.Duration(o.BufferMin) * time.Minute)
}

// Request describes one staff member's slot generation for one local date.
type Request struct {
	StaffID      string
	Date         timewindow.Date
	Location     *time.Location
	Availability []timewindow.Window
	Duration     int // minutes
	Buffer       int // minutes
	Granularity  int // minutes
	Booked       []Occupancy
	Now          time.Time
}

// Slot is a bookable start time. End is Start plus the service duration.
type Slot struct {
	Start   time.Time `json:"slot_start"`
	End     time.Time `json:"slot_end"`
	StaffID string    `json:"staff_id"`
}

// Generate emits candidate slots for req, ascending by start.
func Generate(req Request) ([]Slot, error) {
	if req.Duration <= 0 {
		return nil, ErrInvalidDuration
	}
	if req.Buffer < 0 {
		return nil, fmt.Errorf("slots: negative buffer %d", req.Buffer)
	}
	if req.Location == nil {
		return nil, fmt.Errorf("%w: nil location", timewindow.ErrInvalidTimezone)
	}
	step := req.Granularity
	if step <= 0 {
		step = DefaultGranularity
	}
	occupancy := req.Duration + req.Buffer

	free := timewindow.Merge(req.Availability)
	for _, b := range req.Booked {
		cut, ok := timewindow.ClipToDay(b.StartsAt, b.Until(), req.Date, req.Location)
		if !ok {
			continue
		}
		free = timewindow.SubtractAll(free, cut)
	}

	var out []Slot
	for _, w := range free {
		for offset := w.Start; offset+occupancy <= w.End; offset += step {
			start, err := timewindow.FromLocal(req.Date, offset, req.Location)
			if errors.Is(err, timewindow.ErrInvalidLocalTime) {
				// No such wall-clock time: inside a spring-forward gap.
				continue
			}
			if err != nil {
				return nil, err
			}
			if !start.After(req.Now) || overlapsAny(req.Booked, start, occupancy) {
				continue
			}
			out = append(out, Slot{
				Start:   start.UTC(),
				End:     start.Add(time.Duration(req.Duration) * time.Minute).UTC(),
				StaffID: req.StaffID,
			})
		}
	}
	return out, nil
}

// overlapsAny re-checks a candidate against bookings in real time. Wall-minute
// subtraction alone undercounts elapsed minutes across an offset change.
func overlapsAny(booked []Occupancy, start time.Time, minutes int) bool {
	for _, b := range booked {
		if b.Overlaps(start, minutes) {
			return true
		}
	}
	return false
}

// Union merges per-staff slot lists ordered by start, then staff id.
func Union(perStaff ...[]Slot) []Slot {
	var total int
	for _, s := range perStaff {
		total += len(s)
	}
	out := make([]Slot, 0, total)
	for _, s := range perStaff {
		out = append(out, s...)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].Start.Equal(out[j].Start) {
			return out[i].Start.Before(out[j].Start)
		}
		return out[i].StaffID < out[j].StaffID
	})
	return out
}

// Overlaps reports whether the occupancy [start, start+minutes) intersects o.
func (o Occupancy) Overlaps(start time.Time, minutes int) bool {
	end := start.Add(time.Duration(minutes) * time.Minute)
	return start.Before(o.Until()) && o.StartsAt.Before(end)
}
