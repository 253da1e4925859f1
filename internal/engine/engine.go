// Package engine reconstructs estimated work hours from a day's ordered
// activity events using gap attribution: the time between two observed
// events is credited to the category of the later one.
package engine

import (
	"sort"
	"time"

	"github.com/Tiliavir/work-hours/internal/model"
	"github.com/Tiliavir/work-hours/internal/timecalc"
)

// DefaultStart is the assumed start of a working day when the ledger has
// no entry for it.
const DefaultStart = "09:00"

// StartLookup resolves a date (YYYY-MM-DD) to the first observed
// interaction time ("HH:MM") on that date.
type StartLookup interface {
	FirstInteraction(date string) (string, bool)
}

// MapLookup is a StartLookup backed by a plain map.
type MapLookup map[string]string

// FirstInteraction implements StartLookup.
func (m MapLookup) FirstInteraction(date string) (string, bool) {
	v, ok := m[date]
	return v, ok && v != ""
}

// Options configures a reconstruction.
type Options struct {
	// DefaultStart is used when the lookup has no usable entry. Empty means 09:00.
	DefaultStart string
	// Location is the zone calendar days and day starts are computed in.
	// Nil means time.Local.
	Location *time.Location
}

func (o Options) location() *time.Location {
	if o.Location == nil {
		return time.Local
	}
	return o.Location
}

// Result holds one DailyRecord per date that had events.
type Result struct {
	Days map[string]*model.DailyRecord `json:"days"`
}

// Dates returns the dates of the result in ascending order.
func (r Result) Dates() []string {
	dates := make([]string, 0, len(r.Days))
	for d := range r.Days {
		dates = append(dates, d)
	}
	sort.Strings(dates)
	return dates
}

// GroupByDay buckets events by their calendar date in loc, preserving
// their relative order.
func GroupByDay(events []model.Event, loc *time.Location) map[string][]model.Event {
	if loc == nil {
		loc = time.Local
	}
	byDay := make(map[string][]model.Event)
	for _, e := range events {
		date := timecalc.DateKey(e.Timestamp.In(loc))
		byDay[date] = append(byDay[date], e)
	}
	return byDay
}

// Reconstruct estimates hours for every day in byDay. Days are processed
// independently; lookup may be nil.
func Reconstruct(byDay map[string][]model.Event, lookup StartLookup, opts Options) Result {
	res := Result{Days: make(map[string]*model.DailyRecord, len(byDay))}
	for date, events := range byDay {
		if len(events) == 0 {
			continue
		}
		res.Days[date] = ReconstructDay(date, events, lookup, opts)
	}
	return res
}

// ReconstructDay estimates hours for a single day.
//
// The first event is credited with the time since the day start (never
// negative). Every later event is credited with the time since the previous
// event. Events with a declared duration are credited exactly that
// duration and do not shift the gap of the event after them.
func ReconstructDay(date string, events []model.Event, lookup StartLookup, opts Options) *model.DailyRecord {
	loc := opts.location()

	sorted := make([]model.Event, len(events))
	copy(sorted, events)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.Before(sorted[j].Timestamp)
	})

	rec := &model.DailyRecord{
		Date:          date,
		Entries:       make([]model.Attribution, 0, len(sorted)),
		CategoryHours: make(map[string]float64),
	}
	if len(sorted) == 0 {
		return rec
	}

	startClock, source := dayStart(date, lookup, opts.DefaultStart)
	rec.DayStart = startClock
	rec.StartSource = source
	h, m, _ := timecalc.ParseClock(startClock)
	start := timecalc.At(sorted[0].Timestamp.In(loc), h, m)

	prev := start
	for _, e := range sorted {
		ts := e.Timestamp.In(loc)
		elapsed := ts.Sub(prev)
		if e.Declared != nil {
			elapsed = *e.Declared
		}
		prev = ts
		if elapsed < 0 {
			elapsed = 0
		}

		hours := timecalc.Hours(elapsed)
		rec.CategoryHours[e.Category] += hours
		rec.Entries = append(rec.Entries, model.Attribution{Event: e, Hours: hours})
	}
	return rec
}

// dayStart returns the clock time a day starts at and where it came from.
// Ledger values that do not parse as HH:MM are ignored.
func dayStart(date string, lookup StartLookup, fallback string) (string, model.StartSource) {
	if lookup != nil {
		if v, ok := lookup.FirstInteraction(date); ok {
			if _, _, err := timecalc.ParseClock(v); err == nil {
				return v, model.StartFromLedger
			}
		}
	}
	if _, _, err := timecalc.ParseClock(fallback); err != nil {
		fallback = DefaultStart
	}
	return fallback, model.StartFromDefault
}
