// Package timewindow provides minute-offset intervals within a local calendar day
// and the conversions between stored UTC instants and tenant wall-clock time.
package timewindow

import (
	"fmt"
	"sort"
)

// MinutesPerDay is the nominal wall-clock length of a day. Windows are expressed in
// wall-clock minutes, so DST days still span [0, MinutesPerDay].
const MinutesPerDay = 24 * 60

// Window is a half-open [Start, End) interval of minutes since local midnight.
type Window struct {
	Start int `json:"start_minutes"`
	End   int `json:"end_minutes"`
}

// New builds a window, rejecting empty or out-of-day intervals.
func New(start, end int) (Window, error) {
	w := Window{Start: start, End: end}
	if !w.Valid() {
		return Window{}, fmt.Errorf("timewindow: invalid window [%d, %d)", start, end)
	}
	return w, nil
}

// Valid reports whether 0 <= Start < End <= MinutesPerDay.
func (w Window) Valid() bool {
	return w.Start >= 0 && w.Start < w.End && w.End <= MinutesPerDay
}

// Len returns the window length in minutes.
func (w Window) Len() int {
	return w.End - w.Start
}

// Contains reports whether other lies entirely inside w.
func (w Window) Contains(other Window) bool {
	return other.Start >= w.Start && other.End <= w.End
}

// Overlaps reports whether the two windows share at least one minute.
func (w Window) Overlaps(other Window) bool {
	return w.Start < other.End && other.Start < w.End
}

func (w Window) String() string {
	return fmt.Sprintf("%s-%s", FormatClock(w.Start), FormatClock(w.End))
}

// Intersect returns the overlapping sub-window, or false when a and b are disjoint.
func Intersect(a, b Window) (Window, bool) {
	start := max(a.Start, b.Start)
	end := min(a.End, b.End)
	if start >= end {
		return Window{}, false
	}
	return Window{Start: start, End: end}, true
}

// Subtract removes cut from w. A cut strictly inside w splits it in two.
func Subtract(w, cut Window) []Window {
	if !w.Overlaps(cut) {
		return []Window{w}
	}
	var out []Window
	if cut.Start > w.Start {
		out = append(out, Window{Start: w.Start, End: cut.Start})
	}
	if cut.End < w.End {
		out = append(out, Window{Start: cut.End, End: w.End})
	}
	return out
}

// SubtractAll removes cut from every window in ws, preserving order.
func SubtractAll(ws []Window, cut Window) []Window {
	out := make([]Window, 0, len(ws))
	for _, w := range ws {
		out = append(out, Subtract(w, cut)...)
	}
	return out
}

// Merge returns the minimal ascending list of disjoint windows covering ws.
// Touching windows ([9:00,10:00) and [10:00,11:00)) are merged.
func Merge(ws []Window) []Window {
	if len(ws) == 0 {
		return nil
	}
	sorted := make([]Window, len(ws))
	copy(sorted, ws)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Start == sorted[j].Start {
			return sorted[i].End > sorted[j].End
		}
		return sorted[i].Start < sorted[j].Start
	})

	merged := []Window{sorted[0]}
	for _, w := range sorted[1:] {
		last := &merged[len(merged)-1]
		if w.Start <= last.End {
			if w.End > last.End {
				last.End = w.End
			}
			continue
		}
		merged = append(merged, w)
	}
	return merged
}
