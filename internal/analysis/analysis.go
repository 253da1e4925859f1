// Package analysis runs the estimation pipeline: fetch raw events for a
// period, normalize them, reconstruct hours per day and summarize.
package analysis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Tiliavir/work-hours/internal/engine"
	"github.com/Tiliavir/work-hours/internal/model"
	"github.com/Tiliavir/work-hours/internal/normalize"
	"github.com/Tiliavir/work-hours/internal/period"
	"github.com/Tiliavir/work-hours/internal/report"
)

// ErrEmptyResultSet is returned when a period yields no usable events.
var ErrEmptyResultSet = errors.New("no activity found in the selected period")

// Source produces raw events for a period. Implementations may return
// events outside the period; they are filtered during normalization.
type Source interface {
	Fetch(ctx context.Context, p period.Period) ([]model.RawEvent, error)
}

// Options tunes a pipeline run.
type Options struct {
	Location       *time.Location
	DefaultStart   string
	TicketPrefixes []string
	Logger         *slog.Logger
}

// Result carries every stage's output of a run.
type Result struct {
	Period     period.Period
	Normalized normalize.Result
	Days       engine.Result
	Summary    report.Summary
}

// Run executes the pipeline for p. lookup supplies ledger day starts and may
// be nil. When no events survive normalization, Run returns the partial
// result together with ErrEmptyResultSet.
func Run(ctx context.Context, src Source, p period.Period, lookup engine.StartLookup, opts Options) (Result, error) {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	res := Result{Period: p}

	raw, err := src.Fetch(ctx, p)
	if err != nil {
		return res, fmt.Errorf("fetching events: %w", err)
	}
	log.Debug("fetched raw events", "period", p.String(), "count", len(raw))

	res.Normalized = normalize.Normalize(raw, normalize.Options{
		Location:       opts.Location,
		Period:         &p,
		TicketPrefixes: opts.TicketPrefixes,
	})
	if err := res.Normalized.Err(); err != nil {
		log.Warn("dropped malformed events", "err", err)
	}
	log.Debug("normalized events",
		"kept", len(res.Normalized.Events),
		"merges", res.Normalized.Merges,
		"duplicates", res.Normalized.Duplicates,
		"out_of_range", res.Normalized.OutOfRange,
	)
	if len(res.Normalized.Events) == 0 {
		return res, ErrEmptyResultSet
	}

	byDay := engine.GroupByDay(res.Normalized.Events, opts.Location)
	res.Days = engine.Reconstruct(byDay, lookup, engine.Options{
		DefaultStart: opts.DefaultStart,
		Location:     opts.Location,
	})
	res.Summary = report.Summarize(res.Days)
	log.Debug("reconstructed days", "days", len(res.Days.Days), "hours", res.Summary.Total)
	return res, nil
}
