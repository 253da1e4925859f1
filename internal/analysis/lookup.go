package analysis

import (
	"log/slog"

	"github.com/Tiliavir/work-hours/internal/storage"
)

// LedgerLookup adapts a storage.Ledger to engine.StartLookup. Read errors
// are logged and treated as a missing entry.
type LedgerLookup struct {
	Ledger storage.Ledger
	Logger *slog.Logger
}

// FirstInteraction implements engine.StartLookup.
func (l LedgerLookup) FirstInteraction(date string) (string, bool) {
	rec, ok, err := l.Ledger.Get(date)
	if err != nil {
		log := l.Logger
		if log == nil {
			log = slog.Default()
		}
		log.Warn("ledger read failed", "date", date, "err", err)
		return "", false
	}
	return rec.First, ok && rec.First != ""
}
