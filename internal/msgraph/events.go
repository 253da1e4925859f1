package msgraph

import (
	"fmt"
	"time"

	"github.com/Tiliavir/work-hours/internal/model"
)

// parseGraphTime parses a Graph API dateTime string in the given timezone.
// Graph returns times like "2026-02-27T09:00:00.0000000" without a zone
// suffix; the zone is reported separately.
func parseGraphTime(dt, tz string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339Nano, dt); err == nil {
		return t, nil
	}

	loc := time.UTC
	if tz != "" {
		if l, err := time.LoadLocation(tz); err == nil {
			loc = l
		}
	}

	for _, layout := range []string{
		"2006-01-02T15:04:05.0000000",
		"2006-01-02T15:04:05",
	} {
		if t, err := time.ParseInLocation(layout, dt, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("cannot parse graph time %q", dt)
}

// Skip reports whether a calendar event does not count as time spent:
// cancelled, all-day, private or free events and events without times.
func Skip(event CalendarEvent) bool {
	switch {
	case event.IsCancelled, event.IsAllDay:
		return true
	case event.Sensitivity == "private":
		return true
	case event.ShowAs == "free":
		return true
	case event.Start.DateTime == "" || event.End.DateTime == "":
		return true
	}
	return false
}

// ToRawEvent converts a calendar event into a meeting with its scheduled
// length as declared duration. category, when set, is its only label.
// On error the returned event carries no timestamp.
func ToRawEvent(event CalendarEvent, category string) (model.RawEvent, error) {
	raw := model.RawEvent{
		Kind: model.KindMeeting,
		Text: event.Subject,
		URL:  event.WebLink,
	}
	if event.ID != "" {
		raw.Key = "outlook:" + event.ID
	}
	if category != "" {
		raw.Labels = []string{category}
	}

	start, err := parseGraphTime(event.Start.DateTime, event.Start.TimeZone)
	if err != nil {
		return raw, fmt.Errorf("parsing start time: %w", err)
	}
	end, err := parseGraphTime(event.End.DateTime, event.End.TimeZone)
	if err != nil {
		return raw, fmt.Errorf("parsing end time: %w", err)
	}

	secs := int64(end.Sub(start).Seconds())
	raw.Timestamp = start.Format(time.RFC3339)
	raw.DeclaredSeconds = &secs
	return raw, nil
}
