package core

import (
	"errors"
	"time"
)

// RangePreset names a dashboard date range selection.
type RangePreset string

const (
	RangeAll    RangePreset = "all"
	RangeToday  RangePreset = "today"
	RangeWeek   RangePreset = "week"
	RangeMonth  RangePreset = "month"
	RangeYear   RangePreset = "year"
	RangeCustom RangePreset = "custom"
)

// DateLayout is the wire and form format of range bounds.
const DateLayout = "2006-01-02"

var (
	ErrInvalidRange   = errors.New("end date must not be before start date")
	ErrUnknownPreset  = errors.New("unknown date range")
	ErrIncompleteDate = errors.New("custom range needs both start and end dates")
)

// DateRange is an inclusive day range. A zero Start and End means unbounded.
type DateRange struct {
	Preset RangePreset
	Start  time.Time
	End    time.Time
}

// Presets lists the selectable ranges in display order.
func Presets() []RangePreset {
	return []RangePreset{RangeAll, RangeToday, RangeWeek, RangeMonth, RangeYear, RangeCustom}
}

// ParsePreset validates a preset name; empty means RangeAll.
func ParsePreset(s string) (RangePreset, error) {
	if s == "" {
		return RangeAll, nil
	}
	for _, p := range Presets() {
		if string(p) == s {
			return p, nil
		}
	}
	return "", ErrUnknownPreset
}

// Label is the human readable preset name.
func (p RangePreset) Label() string {
	switch p {
	case RangeAll:
		return "All time"
	case RangeToday:
		return "Today"
	case RangeWeek:
		return "This Week"
	case RangeMonth:
		return "This Month"
	case RangeYear:
		return "This Year"
	case RangeCustom:
		return "Custom"
	}
	return string(p)
}

// ResolvePreset computes the bounds of a non-custom preset relative to now.
// Weeks start on Monday.
func ResolvePreset(p RangePreset, now time.Time) (DateRange, error) {
	day := truncateDay(now)
	switch p {
	case RangeAll:
		return DateRange{Preset: RangeAll}, nil
	case RangeToday:
		return DateRange{Preset: p, Start: day, End: day}, nil
	case RangeWeek:
		offset := (int(day.Weekday()) + 6) % 7
		start := day.AddDate(0, 0, -offset)
		return DateRange{Preset: p, Start: start, End: start.AddDate(0, 0, 6)}, nil
	case RangeMonth:
		start := time.Date(day.Year(), day.Month(), 1, 0, 0, 0, 0, day.Location())
		return DateRange{Preset: p, Start: start, End: start.AddDate(0, 1, -1)}, nil
	case RangeYear:
		start := time.Date(day.Year(), time.January, 1, 0, 0, 0, 0, day.Location())
		return DateRange{Preset: p, Start: start, End: time.Date(day.Year(), time.December, 31, 0, 0, 0, 0, day.Location())}, nil
	case RangeCustom:
		return DateRange{}, ErrIncompleteDate
	}
	return DateRange{}, ErrUnknownPreset
}

// CustomRange builds a validated custom range. An end before start is rejected.
func CustomRange(start, end time.Time) (DateRange, error) {
	if start.IsZero() || end.IsZero() {
		return DateRange{}, ErrIncompleteDate
	}
	r := DateRange{Preset: RangeCustom, Start: truncateDay(start), End: truncateDay(end)}
	if err := r.Validate(); err != nil {
		return DateRange{}, err
	}
	return r, nil
}

// ParseDay parses a YYYY-MM-DD form value; empty input yields the zero time.
func ParseDay(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(DateLayout, s)
}

func (r DateRange) Validate() error {
	if r.Bounded() && r.End.Before(r.Start) {
		return ErrInvalidRange
	}
	return nil
}

// Bounded reports whether the range carries both dates.
func (r DateRange) Bounded() bool {
	return !r.Start.IsZero() && !r.End.IsZero()
}

// StartParam and EndParam format the bounds for the query string; "" when unbounded.
func (r DateRange) StartParam() string { return formatDay(r.Start) }
func (r DateRange) EndParam() string   { return formatDay(r.End) }

func formatDay(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(DateLayout)
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
