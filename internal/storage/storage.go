package storage

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Tiliavir/work-hours/internal/model"
	"github.com/Tiliavir/work-hours/internal/timecalc"
)

// Backend names accepted by Open.
const (
	BackendJSON   = "json"
	BackendSQLite = "sqlite"
)

// Ledger is the interaction ledger: one record per calendar date holding
// the first and last observed activity time.
type Ledger interface {
	// Get returns the record for date (YYYY-MM-DD), if any.
	Get(date string) (model.Interaction, bool, error)
	// Touch records activity at t: it creates the day's record on first
	// use and otherwise widens the first/last span to include t.
	Touch(t time.Time) (model.Interaction, error)
	// Put replaces the record for rec.Date.
	Put(rec model.Interaction) error
	// List returns all records, newest first.
	List() ([]model.Interaction, error)
	// PruneUntil deletes every record dated on or before date and returns
	// how many were removed.
	PruneUntil(date string) (int, error)
	Close() error
}

// Open opens the ledger for the given backend. path is a directory for the
// json backend and a database file for sqlite.
func Open(backend, path string) (Ledger, error) {
	switch strings.ToLower(backend) {
	case "", BackendJSON:
		return NewFileLedger(path), nil
	case BackendSQLite:
		return OpenSQLite(path)
	default:
		return nil, fmt.Errorf("unknown ledger backend %q (want json or sqlite)", backend)
	}
}

// widen merges an activity clock time into rec.
func widen(rec model.Interaction, clock string) model.Interaction {
	if rec.First == "" || clock < rec.First {
		rec.First = clock
	}
	if rec.Last == "" || clock > rec.Last {
		rec.Last = clock
	}
	return rec
}

// ValidateInteraction checks the date and clock formats of rec.
func ValidateInteraction(rec model.Interaction) error {
	if _, err := timecalc.ParseDate(rec.Date, time.UTC); err != nil {
		return err
	}
	for _, c := range []string{rec.First, rec.Last} {
		if c == "" {
			continue
		}
		if _, _, err := timecalc.ParseClock(c); err != nil {
			return err
		}
		if len(c) != len(timecalc.ClockLayout) {
			return fmt.Errorf("invalid clock time %q: expected HH:MM", c)
		}
	}
	return nil
}

// FileLedger stores one JSON file per date under base/YYYY/MM/DD.json.
type FileLedger struct {
	base string
	mu   sync.Mutex
}

// NewFileLedger returns a FileLedger rooted at base.
func NewFileLedger(base string) *FileLedger {
	return &FileLedger{base: base}
}

var dayFilePattern = regexp.MustCompile(`^(\d{4})/(\d{2})/(\d{2})\.json$`)

// dayFilePath returns the path for the given date's JSON file.
func dayFilePath(base, date string) string {
	return filepath.Join(base, date[0:4], date[5:7], date[8:10]+".json")
}

// loadDay loads the record for the given date. With backup set, a corrupt
// file is moved aside to path.corrupt so the next write starts fresh.
func (l *FileLedger) loadDay(date string, backup bool) (model.Interaction, bool, error) {
	path := dayFilePath(l.base, date)
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return model.Interaction{Date: date}, false, nil
	}
	if err != nil {
		return model.Interaction{}, false, fmt.Errorf("storage error reading %s: %w", path, err)
	}

	var rec model.Interaction
	if err := json.Unmarshal(data, &rec); err != nil {
		if !backup {
			return model.Interaction{}, false, fmt.Errorf("corrupt JSON in %s: %w", path, err)
		}
		backupPath := path + ".corrupt"
		_ = os.Rename(path, backupPath)
		return model.Interaction{}, false, fmt.Errorf("corrupt JSON in %s (backed up to %s): %w", path, backupPath, err)
	}
	rec.Date = date
	return rec, true, nil
}

// saveDay atomically writes the record for rec.Date.
func (l *FileLedger) saveDay(rec model.Interaction) error {
	path := dayFilePath(l.base, rec.Date)
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("storage error creating directories: %w", err)
	}

	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("storage error marshalling JSON: %w", err)
	}

	// Atomic write: write to temp file then rename.
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o600); err != nil {
		return fmt.Errorf("storage error writing temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("storage error renaming temp file: %w", err)
	}
	return nil
}

// Get implements Ledger.
func (l *FileLedger) Get(date string) (model.Interaction, bool, error) {
	if _, err := timecalc.ParseDate(date, time.UTC); err != nil {
		return model.Interaction{}, false, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.loadDay(date, false)
}

// Touch implements Ledger.
func (l *FileLedger) Touch(t time.Time) (model.Interaction, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	rec, _, err := l.loadDay(timecalc.DateKey(t), true)
	if err != nil {
		return model.Interaction{}, err
	}
	rec = widen(rec, timecalc.FormatClock(t))
	if err := l.saveDay(rec); err != nil {
		return model.Interaction{}, err
	}
	return rec, nil
}

// Put implements Ledger.
func (l *FileLedger) Put(rec model.Interaction) error {
	if err := ValidateInteraction(rec); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	// Keep a corrupt file around as .corrupt instead of overwriting it.
	_, _, _ = l.loadDay(rec.Date, true)
	return l.saveDay(rec)
}

// List implements Ledger.
func (l *FileLedger) List() ([]model.Interaction, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	dates, err := l.dates()
	if err != nil {
		return nil, err
	}
	recs := make([]model.Interaction, 0, len(dates))
	for i := len(dates) - 1; i >= 0; i-- {
		rec, ok, err := l.loadDay(dates[i], false)
		if err != nil {
			return nil, err
		}
		if ok {
			recs = append(recs, rec)
		}
	}
	return recs, nil
}

// PruneUntil implements Ledger.
func (l *FileLedger) PruneUntil(date string) (int, error) {
	if _, err := timecalc.ParseDate(date, time.UTC); err != nil {
		return 0, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	dates, err := l.dates()
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, d := range dates {
		// YYYY-MM-DD keys compare correctly as strings.
		if d > date {
			break
		}
		if err := os.Remove(dayFilePath(l.base, d)); err != nil {
			return removed, fmt.Errorf("storage error removing %s: %w", d, err)
		}
		removed++
	}
	return removed, nil
}

// Close implements Ledger.
func (l *FileLedger) Close() error { return nil }

// dates returns every stored date in ascending order.
func (l *FileLedger) dates() ([]string, error) {
	var dates []string
	err := filepath.WalkDir(l.base, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) && path == l.base {
				return fs.SkipDir
			}
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(l.base, path)
		if err != nil {
			return err
		}
		if m := dayFilePattern.FindStringSubmatch(filepath.ToSlash(rel)); m != nil {
			dates = append(dates, m[1]+"-"+m[2]+"-"+m[3])
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("storage error listing %s: %w", l.base, err)
	}
	sort.Strings(dates)
	return dates, nil
}
