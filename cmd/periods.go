package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Tiliavir/work-hours/internal/period"
)

var periodsCmd = &cobra.Command{
	Use:   "periods",
	Short: "List selectable periods for --period",
	Args:  cobra.NoArgs,
	RunE:  runPeriods,
}

func runPeriods(cmd *cobra.Command, args []string) error {
	e, err := loadEnv()
	if err != nil {
		return err
	}
	now := e.now()
	for _, opt := range period.Options(now) {
		span, week := "--from YYYY-MM-DD --to YYYY-MM-DD", ""
		if opt.Token != period.Custom {
			p, err := period.Resolve(opt.Token, "", "", now)
			if err != nil {
				return err
			}
			span, week = p.String(), weekLabel(opt.Token, p)
		}
		fmt.Printf("%-18s %-30s %-8s %s\n", opt.Token, opt.Label, week, span)
	}
	return nil
}

// weekLabel returns the ISO week label for week tokens and "" otherwise.
func weekLabel(token string, p period.Period) string {
	if !strings.HasPrefix(token, "week:") {
		return ""
	}
	return period.ISOWeekLabel(p.Since)
}
