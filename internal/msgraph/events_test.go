package msgraph_test

import (
	"testing"

	"github.com/Tiliavir/work-hours/internal/model"
	"github.com/Tiliavir/work-hours/internal/msgraph"
)

func makeEvent(id, subject, start, end string) msgraph.CalendarEvent {
	var ev msgraph.CalendarEvent
	ev.ID = id
	ev.Subject = subject
	ev.Sensitivity = "normal"
	ev.ShowAs = "busy"
	ev.Start.DateTime, ev.Start.TimeZone = start, "UTC"
	ev.End.DateTime, ev.End.TimeZone = end, "UTC"
	return ev
}

func TestToRawEvent(t *testing.T) {
	event := makeEvent("ext-id-1", "Sprint Planning", "2026-02-27T09:00:00.0000000", "2026-02-27T10:30:00.0000000")
	event.WebLink = "https://outlook.office.com/calendar/item/1"

	raw, err := msgraph.ToRawEvent(event, "Meetings")
	if err != nil {
		t.Fatalf("ToRawEvent: %v", err)
	}
	if raw.Kind != model.KindMeeting {
		t.Errorf("Kind = %q, want meeting", raw.Kind)
	}
	if raw.Key != "outlook:ext-id-1" {
		t.Errorf("Key = %q", raw.Key)
	}
	if raw.Timestamp != "2026-02-27T09:00:00Z" {
		t.Errorf("Timestamp = %q", raw.Timestamp)
	}
	if raw.DeclaredSeconds == nil || *raw.DeclaredSeconds != 5400 {
		t.Errorf("DeclaredSeconds = %v, want 5400", raw.DeclaredSeconds)
	}
	if len(raw.Labels) != 1 || raw.Labels[0] != "Meetings" {
		t.Errorf("Labels = %v", raw.Labels)
	}
	if raw.Text != "Sprint Planning" || raw.URL != event.WebLink {
		t.Errorf("Text/URL = %q %q", raw.Text, raw.URL)
	}
}

func TestToRawEvent_TimeZone(t *testing.T) {
	event := makeEvent("x", "Standup", "2026-02-27T10:00:00.0000000", "2026-02-27T10:15:00.0000000")
	event.Start.TimeZone = "Europe/Berlin"
	event.End.TimeZone = "Europe/Berlin"

	raw, err := msgraph.ToRawEvent(event, "")
	if err != nil {
		t.Fatalf("ToRawEvent: %v", err)
	}
	if raw.Timestamp != "2026-02-27T10:00:00+01:00" {
		t.Errorf("Timestamp = %q, want Berlin offset", raw.Timestamp)
	}
	if len(raw.Labels) != 0 {
		t.Errorf("Labels = %v, want none without category", raw.Labels)
	}
	if *raw.DeclaredSeconds != 900 {
		t.Errorf("DeclaredSeconds = %d, want 900", *raw.DeclaredSeconds)
	}
}

func TestToRawEvent_BadTime(t *testing.T) {
	event := makeEvent("x", "Broken", "tomorrow", "2026-02-27T10:15:00")
	raw, err := msgraph.ToRawEvent(event, "Meetings")
	if err == nil {
		t.Fatal("expected error for unparsable start")
	}
	if raw.Timestamp != "" {
		t.Errorf("Timestamp = %q, want empty on error", raw.Timestamp)
	}
}

func TestSkip(t *testing.T) {
	base := makeEvent("id", "Review", "2026-02-27T09:00:00", "2026-02-27T10:00:00")
	tests := []struct {
		name   string
		mutate func(*msgraph.CalendarEvent)
		want   bool
	}{
		{"busy", func(*msgraph.CalendarEvent) {}, false},
		{"cancelled", func(e *msgraph.CalendarEvent) { e.IsCancelled = true }, true},
		{"all day", func(e *msgraph.CalendarEvent) { e.IsAllDay = true }, true},
		{"private", func(e *msgraph.CalendarEvent) { e.Sensitivity = "private" }, true},
		{"free", func(e *msgraph.CalendarEvent) { e.ShowAs = "free" }, true},
		{"tentative", func(e *msgraph.CalendarEvent) { e.ShowAs = "tentative" }, false},
		{"no end", func(e *msgraph.CalendarEvent) { e.End.DateTime = "" }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev := base
			tt.mutate(&ev)
			if got := msgraph.Skip(ev); got != tt.want {
				t.Errorf("Skip = %v, want %v", got, tt.want)
			}
		})
	}
}
