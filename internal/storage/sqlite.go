package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/Tiliavir/work-hours/internal/model"
	"github.com/Tiliavir/work-hours/internal/timecalc"
)

const schema = `
CREATE TABLE IF NOT EXISTS interactions (
	date              TEXT PRIMARY KEY,
	first_interaction TEXT NOT NULL DEFAULT '',
	last_interaction  TEXT NOT NULL DEFAULT ''
)`

// SQLiteLedger stores the interaction ledger in a single SQLite table.
type SQLiteLedger struct {
	db *sql.DB
}

// OpenSQLite opens (and if needed creates) the ledger database at path.
func OpenSQLite(path string) (*SQLiteLedger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("storage error creating directories: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("storage error opening %s: %w", path, err)
	}
	// A single connection serializes writers.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage error creating schema: %w", err)
	}
	return &SQLiteLedger{db: db}, nil
}

// Get implements Ledger.
func (l *SQLiteLedger) Get(date string) (model.Interaction, bool, error) {
	if _, err := timecalc.ParseDate(date, time.UTC); err != nil {
		return model.Interaction{}, false, err
	}
	rec := model.Interaction{Date: date}
	err := l.db.QueryRow(
		`SELECT first_interaction, last_interaction FROM interactions WHERE date = ?`, date,
	).Scan(&rec.First, &rec.Last)
	if errors.Is(err, sql.ErrNoRows) {
		return rec, false, nil
	}
	if err != nil {
		return model.Interaction{}, false, fmt.Errorf("storage error reading %s: %w", date, err)
	}
	return rec, true, nil
}

// Touch implements Ledger.
func (l *SQLiteLedger) Touch(t time.Time) (model.Interaction, error) {
	date := timecalc.DateKey(t)
	clock := timecalc.FormatClock(t)
	_, err := l.db.Exec(`
		INSERT INTO interactions (date, first_interaction, last_interaction)
		VALUES (?, ?, ?)
		ON CONFLICT(date) DO UPDATE SET
			first_interaction = CASE
				WHEN first_interaction = '' OR excluded.first_interaction < first_interaction
				THEN excluded.first_interaction ELSE first_interaction END,
			last_interaction = CASE
				WHEN excluded.last_interaction > last_interaction
				THEN excluded.last_interaction ELSE last_interaction END`,
		date, clock, clock)
	if err != nil {
		return model.Interaction{}, fmt.Errorf("storage error recording %s: %w", date, err)
	}
	rec, _, err := l.Get(date)
	return rec, err
}

// Put implements Ledger.
func (l *SQLiteLedger) Put(rec model.Interaction) error {
	if err := ValidateInteraction(rec); err != nil {
		return err
	}
	_, err := l.db.Exec(`
		INSERT INTO interactions (date, first_interaction, last_interaction)
		VALUES (?, ?, ?)
		ON CONFLICT(date) DO UPDATE SET
			first_interaction = excluded.first_interaction,
			last_interaction = excluded.last_interaction`,
		rec.Date, rec.First, rec.Last)
	if err != nil {
		return fmt.Errorf("storage error writing %s: %w", rec.Date, err)
	}
	return nil
}

// List implements Ledger.
func (l *SQLiteLedger) List() ([]model.Interaction, error) {
	rows, err := l.db.Query(
		`SELECT date, first_interaction, last_interaction FROM interactions ORDER BY date DESC`)
	if err != nil {
		return nil, fmt.Errorf("storage error listing interactions: %w", err)
	}
	defer rows.Close()

	var recs []model.Interaction
	for rows.Next() {
		var rec model.Interaction
		if err := rows.Scan(&rec.Date, &rec.First, &rec.Last); err != nil {
			return nil, fmt.Errorf("storage error scanning interaction: %w", err)
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

// PruneUntil implements Ledger.
func (l *SQLiteLedger) PruneUntil(date string) (int, error) {
	if _, err := timecalc.ParseDate(date, time.UTC); err != nil {
		return 0, err
	}
	res, err := l.db.Exec(`DELETE FROM interactions WHERE date <= ?`, date)
	if err != nil {
		return 0, fmt.Errorf("storage error pruning until %s: %w", date, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

// Close implements Ledger.
func (l *SQLiteLedger) Close() error {
	return l.db.Close()
}
