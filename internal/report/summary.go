// Package report aggregates reconstruction results into ranked totals and
// a newest-first daily breakdown, and renders them for display.
package report

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/Tiliavir/work-hours/internal/engine"
	"github.com/Tiliavir/work-hours/internal/model"
	"github.com/Tiliavir/work-hours/internal/timecalc"
)

// CategoryTotal is a category and its accumulated hours.
type CategoryTotal struct {
	Category string  `json:"category" yaml:"category"`
	Hours    float64 `json:"hours" yaml:"hours"`
}

// Counts tallies activity by kind.
type Counts struct {
	Commits    int     `json:"commits" yaml:"commits"`
	Worklogs   int     `json:"worklogs" yaml:"worklogs"`
	Comments   int     `json:"comments" yaml:"comments"`
	Updates    int     `json:"updates" yaml:"updates"`
	Meetings   int     `json:"meetings" yaml:"meetings"`
	Categories int     `json:"categories" yaml:"categories"`
	Logged     float64 `json:"logged_hours" yaml:"logged_hours"`
}

func (c *Counts) add(e model.Event) {
	switch e.Kind {
	case model.KindCommit:
		c.Commits++
	case model.KindWorklog:
		c.Worklogs++
		if e.Declared != nil {
			c.Logged += e.Declared.Hours()
		}
	case model.KindComment:
		c.Comments++
	case model.KindUpdate:
		c.Updates++
	case model.KindMeeting:
		c.Meetings++
	}
}

// String lists the non-zero activity counts, e.g.
// "3 commits, 1 worklog (1.50 h logged), 2 comments".
func (c Counts) String() string {
	var parts []string
	plural := func(n int, word string) {
		switch {
		case n == 1:
			parts = append(parts, "1 "+word)
		case n > 1:
			parts = append(parts, fmt.Sprintf("%d %ss", n, word))
		}
	}
	plural(c.Commits, "commit")
	plural(c.Worklogs, "worklog")
	if c.Worklogs > 0 {
		parts[len(parts)-1] += fmt.Sprintf(" (%s h logged)", timecalc.FormatHours(c.Logged))
	}
	plural(c.Comments, "comment")
	plural(c.Updates, "update")
	plural(c.Meetings, "meeting")
	return strings.Join(parts, ", ")
}

// Line is one event of a day as shown in the chronological breakdown.
type Line struct {
	Time     string     `json:"time" yaml:"time"`
	Kind     model.Kind `json:"kind" yaml:"kind"`
	Category string     `json:"category" yaml:"category"`
	Ref      string     `json:"ref,omitempty" yaml:"ref,omitempty"`
	Text     string     `json:"text" yaml:"text"`
	URL      string     `json:"url,omitempty" yaml:"url,omitempty"`
	Hours    float64    `json:"hours" yaml:"hours"`
}

// Day is the presentation form of one DailyRecord.
type Day struct {
	Date        string            `json:"date" yaml:"date"`
	Weekday     string            `json:"weekday" yaml:"weekday"`
	Total       float64           `json:"total_hours" yaml:"total_hours"`
	DayStart    string            `json:"day_start" yaml:"day_start"`
	StartSource model.StartSource `json:"start_source" yaml:"start_source"`
	Categories  []CategoryTotal   `json:"categories" yaml:"categories"`
	Lines       []Line            `json:"events" yaml:"events"`
	Counts      Counts            `json:"counts" yaml:"counts"`
}

// Summary is the aggregated view of a reconstruction run.
type Summary struct {
	Totals map[string]float64 `json:"-" yaml:"-"`
	Ranked []CategoryTotal    `json:"categories" yaml:"categories"`
	// Days are ordered most recent first.
	Days   []Day   `json:"days" yaml:"days"`
	Total  float64 `json:"total_hours" yaml:"total_hours"`
	Counts Counts  `json:"counts" yaml:"counts"`
}

// Summarize totals hours per category across all days, ranks categories
// and orders days newest first. res is not modified.
func Summarize(res engine.Result) Summary {
	s := Summary{Totals: make(map[string]float64)}

	dates := res.Dates()
	for i := len(dates) - 1; i >= 0; i-- {
		rec := res.Days[dates[i]]
		day := Day{
			Date:        rec.Date,
			Total:       rec.Total(),
			DayStart:    rec.DayStart,
			StartSource: rec.StartSource,
			Categories:  rank(rec.CategoryHours),
			Lines:       make([]Line, 0, len(rec.Entries)),
		}
		if d, err := timecalc.ParseDate(rec.Date, time.UTC); err == nil {
			day.Weekday = d.Weekday().String()
		}
		for _, a := range rec.Entries {
			day.Counts.add(a.Event)
			s.Counts.add(a.Event)
			day.Lines = append(day.Lines, Line{
				Time:     timecalc.FormatClock(a.Event.Timestamp),
				Kind:     a.Event.Kind,
				Category: a.Event.Category,
				Ref:      a.Event.Ref,
				Text:     a.Event.Text,
				URL:      a.Event.URL,
				Hours:    a.Hours,
			})
		}
		day.Counts.Categories = len(rec.CategoryHours)

		for cat, h := range rec.CategoryHours {
			s.Totals[cat] += h
		}
		s.Total += day.Total
		s.Days = append(s.Days, day)
	}

	s.Ranked = rank(s.Totals)
	s.Counts.Categories = len(s.Totals)
	return s
}

// Top returns at most n ranked categories. n <= 0 returns all of them.
func (s Summary) Top(n int) []CategoryTotal {
	if n <= 0 || n >= len(s.Ranked) {
		return s.Ranked
	}
	return s.Ranked[:n]
}

// rank sorts categories by hours descending, then label ascending.
func rank(hours map[string]float64) []CategoryTotal {
	out := make([]CategoryTotal, 0, len(hours))
	for c, h := range hours {
		out = append(out, CategoryTotal{Category: c, Hours: h})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Hours != out[j].Hours {
			return out[i].Hours > out[j].Hours
		}
		return out[i].Category < out[j].Category
	})
	return out
}

// Defaulted reports whether the day's start time was assumed rather than
// taken from the ledger.
func (d Day) Defaulted() bool {
	return d.StartSource == model.StartFromDefault
}
