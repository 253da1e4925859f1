// Package period turns period selections such as "week:previous" or a
// custom from/to pair into concrete half-open time intervals.
package period

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/Tiliavir/work-hours/internal/timecalc"
)

var (
	// ErrInvalidSelection is returned for unknown tokens and for a custom
	// selection without both bounds.
	ErrInvalidSelection = errors.New("invalid period selection")
	// ErrInvalidRange is returned when the resolved interval is empty or
	// inverted.
	ErrInvalidRange = errors.New("invalid period range")
)

// Selection tokens.
const (
	Custom        = "custom"
	MonthCurrent  = "month:current"
	MonthPrevious = "month:previous"
	WeekCurrent   = "week:current"
	WeekPrevious  = "week:previous"
	WeekTwoAgo    = "week:two-ago"

	monthPrefix = "month:"
	weekPrefix  = "week:"
)

// Period is the half-open interval [Since, Until).
type Period struct {
	Since time.Time `json:"since"`
	Until time.Time `json:"until"`
}

// Contains reports whether t lies inside the period.
func (p Period) Contains(t time.Time) bool {
	return !t.Before(p.Since) && t.Before(p.Until)
}

// LastDay returns the last calendar day covered by the period, for APIs
// that take inclusive date bounds.
func (p Period) LastDay() time.Time {
	return timecalc.StartOfDay(p.Until.Add(-time.Nanosecond))
}

// String renders the period as inclusive calendar dates.
func (p Period) String() string {
	return fmt.Sprintf("%s .. %s", timecalc.DateKey(p.Since), timecalc.DateKey(p.LastDay()))
}

// Resolve turns a selection token into a Period. from and to are inclusive
// YYYY-MM-DD dates and are only consulted for the custom token. All
// relative selections are computed from now, in now's location.
func Resolve(selection, from, to string, now time.Time) (Period, error) {
	loc := now.Location()
	sel := strings.ToLower(strings.TrimSpace(selection))

	var p Period
	switch {
	case sel == Custom:
		if from == "" || to == "" {
			return Period{}, fmt.Errorf("%w: custom period requires both a from and a to date", ErrInvalidSelection)
		}
		since, err := timecalc.ParseDate(from, loc)
		if err != nil {
			return Period{}, fmt.Errorf("%w: %v", ErrInvalidSelection, err)
		}
		last, err := timecalc.ParseDate(to, loc)
		if err != nil {
			return Period{}, fmt.Errorf("%w: %v", ErrInvalidSelection, err)
		}
		p = Period{Since: since, Until: last.AddDate(0, 0, 1)}

	case strings.HasPrefix(sel, monthPrefix):
		start, err := monthStart(strings.TrimPrefix(sel, monthPrefix), now)
		if err != nil {
			return Period{}, err
		}
		p = Period{Since: start, Until: start.AddDate(0, 1, 0)}

	case strings.HasPrefix(sel, weekPrefix):
		start, err := weekStart(strings.TrimPrefix(sel, weekPrefix), now)
		if err != nil {
			return Period{}, err
		}
		p = Period{Since: start, Until: start.AddDate(0, 0, 7)}

	default:
		return Period{}, fmt.Errorf("%w: unknown selection %q", ErrInvalidSelection, selection)
	}

	if !p.Until.After(p.Since) {
		return Period{}, fmt.Errorf("%w: %s is not before %s", ErrInvalidRange,
			timecalc.DateKey(p.Since), timecalc.DateKey(p.Until))
	}
	return p, nil
}

func monthStart(v string, now time.Time) (time.Time, error) {
	first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	switch v {
	case "current":
		return first, nil
	case "previous":
		return first.AddDate(0, -1, 0), nil
	}
	t, err := time.ParseInLocation("2006-01", v, now.Location())
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: month must be current, previous or YYYY-MM, got %q", ErrInvalidSelection, v)
	}
	return t, nil
}

func weekStart(v string, now time.Time) (time.Time, error) {
	switch v {
	case "current":
		return Monday(now), nil
	case "previous":
		return Monday(now.AddDate(0, 0, -7)), nil
	case "two-ago":
		return Monday(now.AddDate(0, 0, -14)), nil
	}
	t, err := timecalc.ParseDate(v, now.Location())
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: week must be current, previous, two-ago or YYYY-MM-DD, got %q", ErrInvalidSelection, v)
	}
	return Monday(t), nil
}

// Monday returns 00:00 of the Monday of t's week.
func Monday(t time.Time) time.Time {
	// Go's weekday: Sunday=0, Monday=1, …, Saturday=6
	wd := int(t.Weekday())
	if wd == 0 {
		wd = 7 // treat Sunday as 7 (ISO)
	}
	return timecalc.StartOfDay(t).AddDate(0, 0, -(wd - 1))
}

// ISOWeek returns the ISO 8601 week-numbering year and week of t's calendar
// date: shift to the Thursday of the week, then count weeks from January 1
// of that Thursday's year.
func ISOWeek(t time.Time) (year, week int) {
	d := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	dayNum := int(d.Weekday())
	if dayNum == 0 {
		dayNum = 7
	}
	d = d.AddDate(0, 0, 4-dayNum)
	yearStart := time.Date(d.Year(), 1, 1, 0, 0, 0, 0, time.UTC)
	days := d.Sub(yearStart).Hours() / 24
	return d.Year(), int(math.Ceil((days + 1) / 7))
}

// ISOWeekLabel returns a label like "2026-W09".
func ISOWeekLabel(t time.Time) string {
	year, week := ISOWeek(t)
	return fmt.Sprintf("%d-W%02d", year, week)
}
