package timecalc

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DateLayout is the calendar-date key format used throughout wh.
const DateLayout = "2006-01-02"

// ClockLayout is the wall-clock format used by the interaction ledger.
const ClockLayout = "15:04"

// FormatHours renders fractional hours with two decimals.
func FormatHours(h float64) string {
	return strconv.FormatFloat(h, 'f', 2, 64)
}

// Hours converts a duration to fractional hours.
func Hours(d time.Duration) float64 {
	return d.Hours()
}

// ParseClock parses "HH:MM" (or "H:MM") into hours and minutes.
func ParseClock(s string) (int, int, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid clock time %q: expected HH:MM", s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return 0, 0, fmt.Errorf("invalid clock time %q: bad hour", s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 || len(parts[1]) != 2 {
		return 0, 0, fmt.Errorf("invalid clock time %q: bad minute", s)
	}
	return h, m, nil
}

// FormatClock returns t as local "HH:MM".
func FormatClock(t time.Time) string {
	return t.Format(ClockLayout)
}

// At returns the instant on day's calendar date at the given clock time,
// in day's location.
func At(day time.Time, hour, minute int) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(), hour, minute, 0, 0, day.Location())
}

// ParseDate parses a YYYY-MM-DD key in loc.
func ParseDate(s string, loc *time.Location) (time.Time, error) {
	t, err := time.ParseInLocation(DateLayout, s, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: expected YYYY-MM-DD", s)
	}
	return t, nil
}

// DateKey returns the local calendar date of t as YYYY-MM-DD.
func DateKey(t time.Time) string {
	return t.Format(DateLayout)
}

// StartOfDay returns 00:00:00 of the same day.
func StartOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// toMinutes converts "HH:MM" into minutes after midnight. Unparsable input
// counts as zero.
func toMinutes(s string) int {
	h, m, err := ParseClock(s)
	if err != nil {
		return 0
	}
	return h*60 + m
}

// WorkdayMinutes returns end - start - pause in minutes, clamped at zero.
// Pause is a duration written as "HH:MM".
func WorkdayMinutes(start, end, pause string) int {
	diff := toMinutes(end) - toMinutes(start) - toMinutes(pause)
	if diff < 0 {
		return 0
	}
	return diff
}

// FormatMinutesHHMM formats minutes as HH:MM.
func FormatMinutesHHMM(minutes int) string {
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}
