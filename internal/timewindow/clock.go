package timewindow

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var (
	// ErrInvalidTimezone is returned for empty or unknown IANA zone names.
	ErrInvalidTimezone = errors.New("invalid timezone")

	// ErrInvalidLocalTime is returned when a wall-clock time does not exist in the
	// zone, e.g. inside a spring-forward gap.
	ErrInvalidLocalTime = errors.New("invalid local time")
)

// Date is a civil calendar date without a zone.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// ParseDate parses an ISO "2006-01-02" date.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(time.DateOnly, strings.TrimSpace(s))
	if err != nil {
		return Date{}, fmt.Errorf("timewindow: parse date %q: %w", s, err)
	}
	return DateOf(t), nil
}

// DateOf returns the calendar date of t in t's own location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

// AddDays returns the date n days later (or earlier for negative n).
func (d Date) AddDays(n int) Date {
	return DateOf(time.Date(d.Year, d.Month, d.Day+n, 12, 0, 0, 0, time.UTC))
}

// Weekday returns the day of week, Sunday = 0.
func (d Date) Weekday() time.Weekday {
	return time.Date(d.Year, d.Month, d.Day, 12, 0, 0, 0, time.UTC).Weekday()
}

// Before reports whether d is strictly earlier than other.
func (d Date) Before(other Date) bool {
	if d.Year != other.Year {
		return d.Year < other.Year
	}
	if d.Month != other.Month {
		return d.Month < other.Month
	}
	return d.Day < other.Day
}

func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

// LoadZone resolves an IANA zone name. It never falls back to UTC.
func LoadZone(name string) (*time.Location, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: empty zone name", ErrInvalidTimezone)
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidTimezone, name)
	}
	return loc, nil
}

// ToLocal converts an instant into the local date and minutes since local midnight.
func ToLocal(instant time.Time, loc *time.Location) (Date, int) {
	local := instant.In(loc)
	return DateOf(local), local.Hour()*60 + local.Minute()
}

// FromLocal converts a local date and minutes since midnight into an instant.
// Minutes equal to MinutesPerDay denote the following local midnight. Times inside a
// DST gap fail with ErrInvalidLocalTime; ambiguous fall-back times resolve to the
// first occurrence.
func FromLocal(date Date, minutes int, loc *time.Location) (time.Time, error) {
	if minutes < 0 || minutes > MinutesPerDay {
		return time.Time{}, fmt.Errorf("%w: minute offset %d out of range", ErrInvalidLocalTime, minutes)
	}
	if minutes == MinutesPerDay {
		return FromLocal(date.AddDays(1), 0, loc)
	}
	hour, minute := minutes/60, minutes%60
	t := time.Date(date.Year, date.Month, date.Day, hour, minute, 0, 0, loc)
	if t.Hour() != hour || t.Minute() != minute || DateOf(t) != date {
		return time.Time{}, fmt.Errorf("%w: %s %s in %s", ErrInvalidLocalTime, date, FormatClock(minutes), loc)
	}
	// time.Date may pick the second occurrence of a repeated wall-clock time.
	_, offset := t.Zone()
	if _, earlier := t.Add(-3 * time.Hour).Zone(); earlier > offset {
		first := t.Add(-time.Duration(earlier-offset) * time.Second)
		if local := first.In(loc); local.Hour() == hour && local.Minute() == minute && DateOf(local) == date {
			return first, nil
		}
	}
	return t, nil
}

// DayBounds returns the instants of local midnight on date and on the following day.
// The span is 23 or 25 hours on DST transition days.
func DayBounds(date Date, loc *time.Location) (time.Time, time.Time) {
	start := time.Date(date.Year, date.Month, date.Day, 0, 0, 0, 0, loc)
	next := date.AddDays(1)
	end := time.Date(next.Year, next.Month, next.Day, 0, 0, 0, 0, loc)
	return start, end
}

// ClipToDay maps the instant range [from, to) onto date's wall-clock minutes,
// clipped to [0, MinutesPerDay]. It returns false when the range misses the day.
// A range spanning a UTC offset change maps to the smallest window covering the
// wall-clock minutes on both sides of it, so on fall-back days a range through
// the repeated hour blocks the whole repeated hour.
func ClipToDay(from, to time.Time, date Date, loc *time.Location) (Window, bool) {
	dayStart, dayEnd := DayBounds(date, loc)
	if !from.Before(dayEnd) || !to.After(dayStart) || !from.Before(to) {
		return Window{}, false
	}
	start := 0
	if from.After(dayStart) {
		_, start = ToLocal(from, loc)
	}
	end := MinutesPerDay
	if to.Before(dayEnd) {
		_, end = ToLocal(to, loc)
		// Sub-minute instants still occupy the minute they fall in.
		if to.In(loc).Second() > 0 || to.In(loc).Nanosecond() > 0 {
			end++
		}
	}
	for at := from; ; {
		_, change := at.In(loc).ZoneBounds()
		if change.IsZero() || !change.Before(to) || !change.Before(dayEnd) {
			break
		}
		if change.After(dayStart) {
			after, before := wallAround(change, loc)
			start = min(start, after)
			end = max(end, before)
		}
		at = change
	}
	if start >= end {
		return Window{}, false
	}
	return Window{Start: max(start, 0), End: min(end, MinutesPerDay)}, true
}

// wallAround returns the wall-clock minute an offset change lands on and the
// minute the clock would have shown had the previous offset continued.
func wallAround(change time.Time, loc *time.Location) (after, before int) {
	_, newOffset := change.In(loc).Zone()
	_, oldOffset := change.Add(-time.Second).In(loc).Zone()
	_, after = ToLocal(change, loc)
	return after, after + (oldOffset-newOffset)/60
}

// ParseClock parses "HH:MM" into minutes since midnight; "24:00" is accepted as end of day.
func ParseClock(s string) (int, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) < 2 {
		return 0, fmt.Errorf("timewindow: invalid clock %q", s)
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, fmt.Errorf("timewindow: invalid hour in %q: %w", s, err)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, fmt.Errorf("timewindow: invalid minute in %q: %w", s, err)
	}
	total := hour*60 + minute
	if hour < 0 || minute < 0 || minute > 59 || total > MinutesPerDay {
		return 0, fmt.Errorf("timewindow: clock %q out of range", s)
	}
	return total, nil
}

// FormatClock renders minutes since midnight as "HH:MM".
func FormatClock(minutes int) string {
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}
