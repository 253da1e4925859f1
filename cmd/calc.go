package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Tiliavir/work-hours/internal/timecalc"
)

var (
	calcStart string
	calcEnd   string
	calcPause string
	calcDate  string
)

var calcCmd = &cobra.Command{
	Use:   "calc",
	Short: "Compute a workday length: end - start - pause",
	Long: `Compute the length of a workday as end - start - pause (never negative).
With --date, start and end default to that day's first and last interaction
from the ledger; explicit --start/--end still win.`,
	Args: cobra.NoArgs,
	RunE: runCalc,
}

func init() {
	calcCmd.Flags().StringVar(&calcStart, "start", "08:00", "Start of the workday (HH:MM)")
	calcCmd.Flags().StringVar(&calcEnd, "end", "17:00", "End of the workday (HH:MM)")
	calcCmd.Flags().StringVar(&calcPause, "pause", "00:30", "Total break time (HH:MM)")
	calcCmd.Flags().StringVar(&calcDate, "date", "", "Seed start/end from the ledger entry of this day (YYYY-MM-DD)")
}

func runCalc(cmd *cobra.Command, args []string) error {
	start, end := calcStart, calcEnd

	if calcDate != "" {
		e, err := loadEnv()
		if err != nil {
			return err
		}
		if _, err := timecalc.ParseDate(calcDate, e.loc); err != nil {
			return err
		}
		l := e.openLedger()
		defer l.Close()

		rec, ok, err := l.Get(calcDate)
		if err != nil {
			fatal(err)
		}
		if !ok {
			return fmt.Errorf("no ledger entry for %s", calcDate)
		}
		if !cmd.Flags().Changed("start") && rec.First != "" {
			start = rec.First
		}
		if !cmd.Flags().Changed("end") && rec.Last != "" {
			end = rec.Last
		}
	}

	for _, v := range []string{start, end, calcPause} {
		if _, _, err := timecalc.ParseClock(v); err != nil {
			return err
		}
	}
	fmt.Println(workdaySummary(start, end, calcPause))
	return nil
}

// workdaySummary renders the calculator result line.
func workdaySummary(start, end, pause string) string {
	mins := timecalc.WorkdayMinutes(start, end, pause)
	return fmt.Sprintf("Workday: %s (%s–%s, pause %s)", timecalc.FormatMinutesHHMM(mins), start, end, pause)
}
