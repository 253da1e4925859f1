package cmd

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/Tiliavir/work-hours/internal/model"
	"github.com/Tiliavir/work-hours/internal/timecalc"
)

var (
	touchDate  string
	touchAt    string
	listLimit  int
	pruneUntil string
	setFirst   string
	setLast    string
)

var ledgerCmd = &cobra.Command{
	Use:   "ledger",
	Short: "Inspect and maintain the first/last interaction ledger",
}

var ledgerTouchCmd = &cobra.Command{
	Use:   "touch",
	Short: "Record activity now (or at --at) in the ledger",
	Long: `Record activity in the ledger. The first touch of a day sets both its
first and last interaction; later touches widen the span. Hook this into a
shell prompt, editor or login script.`,
	Args: cobra.NoArgs,
	RunE: runLedgerTouch,
}

var ledgerListCmd = &cobra.Command{
	Use:   "list",
	Short: "Show recorded days, newest first",
	Args:  cobra.NoArgs,
	RunE:  runLedgerList,
}

var ledgerPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete every record up to and including --until",
	Args:  cobra.NoArgs,
	RunE:  runLedgerPrune,
}

var ledgerSetCmd = &cobra.Command{
	Use:   "set <YYYY-MM-DD>",
	Short: "Correct the first and/or last interaction of a day",
	Args:  cobra.ExactArgs(1),
	RunE:  runLedgerSet,
}

func init() {
	ledgerTouchCmd.Flags().StringVar(&touchDate, "date", "", "Day to record (YYYY-MM-DD, default today)")
	ledgerTouchCmd.Flags().StringVar(&touchAt, "at", "", "Clock time to record (HH:MM, default now)")
	ledgerListCmd.Flags().IntVarP(&listLimit, "limit", "n", 0, "Show at most n days")
	ledgerPruneCmd.Flags().StringVar(&pruneUntil, "until", "", "Last day to delete (YYYY-MM-DD)")
	_ = ledgerPruneCmd.MarkFlagRequired("until")
	ledgerSetCmd.Flags().StringVar(&setFirst, "first", "", "First interaction (HH:MM)")
	ledgerSetCmd.Flags().StringVar(&setLast, "last", "", "Last interaction (HH:MM)")

	ledgerCmd.AddCommand(ledgerTouchCmd)
	ledgerCmd.AddCommand(ledgerListCmd)
	ledgerCmd.AddCommand(ledgerPruneCmd)
	ledgerCmd.AddCommand(ledgerSetCmd)
}

func runLedgerTouch(cmd *cobra.Command, args []string) error {
	e, err := loadEnv()
	if err != nil {
		return err
	}
	at, err := touchTime(e.now(), touchDate, touchAt)
	if err != nil {
		return err
	}

	l := e.openLedger()
	defer l.Close()
	rec, err := l.Touch(at)
	if err != nil {
		fatal(err)
	}
	fmt.Printf("%s  %s\n", rec.Date, formatSpan(rec))
	return nil
}

// touchTime combines an optional date and clock override with now.
func touchTime(now time.Time, date, clock string) (time.Time, error) {
	day := now
	if date != "" {
		d, err := timecalc.ParseDate(date, now.Location())
		if err != nil {
			return time.Time{}, err
		}
		day = d
	}
	if clock == "" {
		if date == "" {
			return now, nil
		}
		return timecalc.At(day, now.Hour(), now.Minute()), nil
	}
	h, m, err := timecalc.ParseClock(clock)
	if err != nil {
		return time.Time{}, err
	}
	return timecalc.At(day, h, m), nil
}

func runLedgerList(cmd *cobra.Command, args []string) error {
	e, err := loadEnv()
	if err != nil {
		return err
	}
	l := e.openLedger()
	defer l.Close()

	recs, err := l.List()
	if err != nil {
		fatal(err)
	}
	if listLimit > 0 && len(recs) > listLimit {
		recs = recs[:listLimit]
	}
	printLedger(recs, e.loc)
	return nil
}

// printLedger prints one line per recorded day.
func printLedger(recs []model.Interaction, loc *time.Location) {
	if len(recs) == 0 {
		fmt.Println("No interactions recorded.")
		return
	}
	for _, r := range recs {
		weekday := ""
		if d, err := timecalc.ParseDate(r.Date, loc); err == nil {
			weekday = d.Format("Mon")
		}
		fmt.Printf("%s %s  %s\n", r.Date, weekday, formatSpan(r))
	}
}

// formatSpan renders "08:15–17:30 (09:15)"; the duration is omitted when the
// span is empty.
func formatSpan(r model.Interaction) string {
	first, last := r.First, r.Last
	if first == "" {
		first = "--:--"
	}
	if last == "" {
		last = "--:--"
	}
	span := fmt.Sprintf("%s–%s", first, last)
	if mins := timecalc.WorkdayMinutes(r.First, r.Last, "00:00"); mins > 0 {
		span += fmt.Sprintf(" (%s)", timecalc.FormatMinutesHHMM(mins))
	}
	return span
}

func runLedgerPrune(cmd *cobra.Command, args []string) error {
	e, err := loadEnv()
	if err != nil {
		return err
	}
	if _, err := timecalc.ParseDate(pruneUntil, e.loc); err != nil {
		return err
	}
	l := e.openLedger()
	defer l.Close()

	n, err := l.PruneUntil(pruneUntil)
	if err != nil {
		fatal(err)
	}
	fmt.Printf("Removed %d record(s) up to and including %s.\n", n, pruneUntil)
	return nil
}

func runLedgerSet(cmd *cobra.Command, args []string) error {
	if setFirst == "" && setLast == "" {
		return errors.New("nothing to set: pass --first and/or --last")
	}
	e, err := loadEnv()
	if err != nil {
		return err
	}
	date := args[0]
	if _, err := timecalc.ParseDate(date, e.loc); err != nil {
		return err
	}
	first, err := canonicalClock(setFirst)
	if err != nil {
		return err
	}
	last, err := canonicalClock(setLast)
	if err != nil {
		return err
	}

	l := e.openLedger()
	defer l.Close()

	rec, _, err := l.Get(date)
	if err != nil {
		fatal(err)
	}
	rec.Date = date
	if first != "" {
		rec.First = first
	}
	if last != "" {
		rec.Last = last
	}
	if err := l.Put(rec); err != nil {
		fatal(err)
	}
	fmt.Printf("%s  %s\n", rec.Date, formatSpan(rec))
	return nil
}

// canonicalClock rewrites "8:05" as "08:05" so stored values compare
// correctly as strings. Empty input stays empty.
func canonicalClock(v string) (string, error) {
	if v == "" {
		return "", nil
	}
	h, m, err := timecalc.ParseClock(v)
	if err != nil {
		return "", err
	}
	return timecalc.FormatMinutesHHMM(h*60 + m), nil
}
