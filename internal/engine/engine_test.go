package engine_test

import (
	"math"
	"testing"
	"time"

	"github.com/Tiliavir/work-hours/internal/engine"
	"github.com/Tiliavir/work-hours/internal/model"
)

const tolerance = 1e-9

var opts = engine.Options{Location: time.UTC}

func at(hour, min int) time.Time {
	return time.Date(2026, 10, 20, hour, min, 0, 0, time.UTC)
}

func ev(key, category string, ts time.Time) model.Event {
	return model.Event{Timestamp: ts, Category: category, Kind: model.KindCommit, Key: key}
}

func worklog(key, category string, ts time.Time, d time.Duration) model.Event {
	return model.Event{Timestamp: ts, Category: category, Kind: model.KindWorklog, Key: key, Declared: &d}
}

func approx(a, b float64) bool {
	return math.Abs(a-b) < tolerance
}

func TestLedgerStart(t *testing.T) {
	ledger := engine.MapLookup{"2026-10-20": "08:15"}
	rec := engine.ReconstructDay("2026-10-20", []model.Event{ev("a", "main", at(9, 0))}, ledger, opts)

	if !approx(rec.CategoryHours["main"], 0.75) {
		t.Errorf("main = %v, want 0.75", rec.CategoryHours["main"])
	}
	if rec.StartSource != model.StartFromLedger {
		t.Errorf("StartSource = %q, want %q", rec.StartSource, model.StartFromLedger)
	}
	if rec.DayStart != "08:15" {
		t.Errorf("DayStart = %q, want 08:15", rec.DayStart)
	}
}

func TestDefaultStart(t *testing.T) {
	rec := engine.ReconstructDay("2026-10-20", []model.Event{ev("a", "main", at(10, 30))}, nil, opts)

	if !approx(rec.CategoryHours["main"], 1.5) {
		t.Errorf("main = %v, want 1.5", rec.CategoryHours["main"])
	}
	if rec.StartSource != model.StartFromDefault {
		t.Errorf("StartSource = %q, want %q", rec.StartSource, model.StartFromDefault)
	}
	if rec.DayStart != engine.DefaultStart {
		t.Errorf("DayStart = %q, want %q", rec.DayStart, engine.DefaultStart)
	}
}

func TestConfiguredDefaultStart(t *testing.T) {
	o := engine.Options{Location: time.UTC, DefaultStart: "08:00"}
	rec := engine.ReconstructDay("2026-10-20", []model.Event{ev("a", "main", at(10, 30))}, nil, o)
	if !approx(rec.CategoryHours["main"], 2.5) {
		t.Errorf("main = %v, want 2.5", rec.CategoryHours["main"])
	}
}

func TestMalformedLedgerValueFallsBack(t *testing.T) {
	ledger := engine.MapLookup{"2026-10-20": "early"}
	rec := engine.ReconstructDay("2026-10-20", []model.Event{ev("a", "main", at(10, 0))}, ledger, opts)
	if rec.StartSource != model.StartFromDefault {
		t.Errorf("StartSource = %q, want default-fallback", rec.StartSource)
	}
	if !approx(rec.CategoryHours["main"], 1) {
		t.Errorf("main = %v, want 1", rec.CategoryHours["main"])
	}
}

func TestDeclaredDuration(t *testing.T) {
	ledger := engine.MapLookup{"2026-10-20": "06:00"}
	rec := engine.ReconstructDay("2026-10-20",
		[]model.Event{worklog("w", "PROJ-12", at(13, 0), 150*time.Minute)}, ledger, opts)

	if rec.CategoryHours["PROJ-12"] != 2.5 {
		t.Errorf("PROJ-12 = %v, want exactly 2.5", rec.CategoryHours["PROJ-12"])
	}
}

func TestTwoCommits(t *testing.T) {
	ledger := engine.MapLookup{"2026-10-20": "08:00"}
	rec := engine.ReconstructDay("2026-10-20", []model.Event{
		ev("a", "A", at(9, 0)),
		ev("b", "B", at(9, 40)),
	}, ledger, opts)

	if !approx(rec.CategoryHours["A"], 1.0) {
		t.Errorf("A = %v, want 1.0", rec.CategoryHours["A"])
	}
	if math.Abs(rec.CategoryHours["B"]-0.667) > 0.001 {
		t.Errorf("B = %v, want ~0.667", rec.CategoryHours["B"])
	}
}

func TestEventBeforeStartContributesZero(t *testing.T) {
	rec := engine.ReconstructDay("2026-10-20", []model.Event{
		ev("a", "early", at(7, 0)),
		ev("b", "late", at(8, 0)),
	}, nil, opts)

	if rec.CategoryHours["early"] != 0 {
		t.Errorf("early = %v, want 0", rec.CategoryHours["early"])
	}
	if !approx(rec.CategoryHours["late"], 1) {
		t.Errorf("late = %v, want 1", rec.CategoryHours["late"])
	}
}

func TestIdenticalTimestamps(t *testing.T) {
	rec := engine.ReconstructDay("2026-10-20", []model.Event{
		ev("a", "A", at(10, 0)),
		ev("b", "B", at(10, 0)),
	}, nil, opts)

	if len(rec.CategoryHours) != 2 {
		t.Fatalf("buckets = %v, want A and B", rec.CategoryHours)
	}
	if rec.CategoryHours["B"] != 0 {
		t.Errorf("B = %v, want 0", rec.CategoryHours["B"])
	}
}

func TestUnorderedInputIsSorted(t *testing.T) {
	rec := engine.ReconstructDay("2026-10-20", []model.Event{
		ev("b", "B", at(11, 0)),
		ev("a", "A", at(10, 0)),
	}, nil, opts)
	if rec.Entries[0].Event.Key != "a" {
		t.Errorf("first entry = %q, want a", rec.Entries[0].Event.Key)
	}
	if !approx(rec.CategoryHours["A"], 1) || !approx(rec.CategoryHours["B"], 1) {
		t.Errorf("hours = %v, want A=1 B=1", rec.CategoryHours)
	}
}

func TestGapAfterDeclaredIsMeasuredFromItsTimestamp(t *testing.T) {
	ledger := engine.MapLookup{"2026-10-20": "08:00"}
	rec := engine.ReconstructDay("2026-10-20", []model.Event{
		worklog("w1", "PROJ-1", at(10, 0), 2*time.Hour),
		ev("b", "B", at(11, 0)),
		worklog("w2", "PROJ-2", at(13, 0), 30*time.Minute),
		ev("c", "C", at(15, 0)),
	}, ledger, opts)

	want := map[string]float64{"PROJ-1": 2, "B": 1, "PROJ-2": 0.5, "C": 2}
	for cat, h := range want {
		if !approx(rec.CategoryHours[cat], h) {
			t.Errorf("%s = %v, want %v", cat, rec.CategoryHours[cat], h)
		}
	}
}

func TestGapAttributionTelescopes(t *testing.T) {
	cases := [][]model.Event{
		{ev("a", "x", at(9, 30))},
		{ev("a", "x", at(9, 10)), ev("b", "y", at(11, 45)), ev("c", "x", at(17, 5))},
		{ev("a", "x", at(12, 0)), ev("b", "x", at(12, 0)), ev("c", "z", at(12, 1)), ev("d", "y", at(23, 59))},
	}
	ledger := engine.MapLookup{"2026-10-20": "08:20"}
	start := at(8, 20)
	for i, events := range cases {
		rec := engine.ReconstructDay("2026-10-20", events, ledger, opts)
		want := events[len(events)-1].Timestamp.Sub(start).Hours()
		if !approx(rec.Total(), want) {
			t.Errorf("case %d: total = %v, want %v", i, rec.Total(), want)
		}
		for _, a := range rec.Entries {
			if a.Hours < 0 {
				t.Errorf("case %d: negative attribution %v for %q", i, a.Hours, a.Event.Key)
			}
		}
	}
}

func TestReconstructGroupsByLocalDay(t *testing.T) {
	loc := time.FixedZone("UTC+2", 2*3600)
	events := []model.Event{
		ev("late", "A", time.Date(2026, 10, 20, 22, 30, 0, 0, time.UTC)), // 00:30 on the 21st locally
		ev("day", "B", time.Date(2026, 10, 20, 8, 0, 0, 0, time.UTC)),    // 10:00 on the 20th locally
	}
	byDay := engine.GroupByDay(events, loc)
	if len(byDay["2026-10-20"]) != 1 || len(byDay["2026-10-21"]) != 1 {
		t.Fatalf("GroupByDay = %v", byDay)
	}

	res := engine.Reconstruct(byDay, nil, engine.Options{Location: loc})
	dates := res.Dates()
	if len(dates) != 2 || dates[0] != "2026-10-20" || dates[1] != "2026-10-21" {
		t.Fatalf("Dates = %v", dates)
	}
	if !approx(res.Days["2026-10-20"].CategoryHours["B"], 1) {
		t.Errorf("B = %v, want 1", res.Days["2026-10-20"].CategoryHours["B"])
	}
	if res.Days["2026-10-21"].CategoryHours["A"] != 0 {
		t.Errorf("A = %v, want 0 (before 09:00)", res.Days["2026-10-21"].CategoryHours["A"])
	}
}
