package model

import "time"

// Kind tags what an event represents. Worklogs and meetings carry a
// declared duration; everything else is credited by gap.
type Kind string

const (
	KindCommit  Kind = "commit"
	KindWorklog Kind = "worklog"
	KindComment Kind = "comment"
	KindUpdate  Kind = "update"
	KindMeeting Kind = "meeting"
)

// StartSource records where a day's start time came from.
type StartSource string

const (
	StartFromLedger  StartSource = "ledger"
	StartFromDefault StartSource = "default-fallback"
)

// UnknownCategory is the last-resort bucket label.
const UnknownCategory = "unknown"

// RawEvent is a source-specific activity as delivered by a fetcher, before
// normalization.
type RawEvent struct {
	// Timestamp is an ISO-8601 instant in the source's clock.
	Timestamp string `json:"timestamp"`
	Kind      Kind   `json:"kind"`
	// Labels are category hints such as branch names or issue keys. The
	// first non-empty one wins.
	Labels []string `json:"labels,omitempty"`
	// Text is the free-text description (commit message, summary).
	Text string `json:"text"`
	// Key identifies the activity across retrieval paths (commit SHA,
	// worklog id, ...).
	Key             string `json:"key"`
	DeclaredSeconds *int64 `json:"declared_seconds,omitempty"`
	// Ref is a short display reference (abbreviated SHA, issue key).
	Ref string `json:"ref,omitempty"`
	URL string `json:"url,omitempty"`
}

// Event is a normalized unit of observed activity.
type Event struct {
	Timestamp time.Time      `json:"timestamp"`
	Category  string         `json:"category"`
	Kind      Kind           `json:"kind"`
	Key       string         `json:"key"`
	Declared  *time.Duration `json:"declared,omitempty"`
	Text      string         `json:"text"`
	Ref       string         `json:"ref,omitempty"`
	URL       string         `json:"url,omitempty"`
}

// Attribution pairs an event with the hours the engine assigned to it.
type Attribution struct {
	Event Event   `json:"event"`
	Hours float64 `json:"hours"`
}

// DailyRecord holds one calendar day of a reconstruction run.
type DailyRecord struct {
	Date          string             `json:"date"`
	Entries       []Attribution      `json:"entries"`
	DayStart      string             `json:"day_start"`
	StartSource   StartSource        `json:"start_source"`
	CategoryHours map[string]float64 `json:"category_hours"`
}

// Total returns the sum of the day's category hours.
func (d *DailyRecord) Total() float64 {
	var sum float64
	for _, h := range d.CategoryHours {
		sum += h
	}
	return sum
}
