package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/Tiliavir/work-hours/internal/config"
	"github.com/Tiliavir/work-hours/internal/storage"
)

var verbose bool

var rootCmd = &cobra.Command{
	Use:   "wh",
	Short: "Work Hours – estimate time spent from commits, Jira activity and a local ledger",
	Long: `wh reconstructs per-day, per-category work hours from sparse signals:
GitHub commits, Jira worklogs/comments/updates and the first interaction of
each day recorded in the local ledger (~/.wh/). Estimates are best effort,
not audited timekeeping.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := slog.LevelWarn
		if verbose {
			level = slog.LevelDebug
		}
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
	},
}

// Execute is the entry point called from main.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log diagnostics to stderr")

	rootCmd.AddCommand(gitCmd)
	rootCmd.AddCommand(jiraCmd)
	rootCmd.AddCommand(outlookCmd)
	rootCmd.AddCommand(periodsCmd)
	rootCmd.AddCommand(ledgerCmd)
	rootCmd.AddCommand(calcCmd)
	rootCmd.AddCommand(serveCmd)
}

// fatal reports a storage or network failure and exits with status 2.
func fatal(err error) {
	fmt.Fprintln(os.Stderr, err)
	os.Exit(2)
}

// env bundles what most commands need: the loaded config, its timezone and
// the data directory.
type env struct {
	cfg config.Config
	loc *time.Location
	dir string
}

// loadEnv loads ~/.wh/config.json. Configuration problems are user errors.
func loadEnv() (env, error) {
	dir, err := config.Dir()
	if err != nil {
		fatal(err)
	}
	cfg, err := config.LoadFrom(dir)
	if err != nil {
		return env{}, err
	}
	loc, err := cfg.Location()
	if err != nil {
		return env{}, err
	}
	return env{cfg: cfg, loc: loc, dir: dir}, nil
}

// openLedger opens the configured ledger or exits with status 2.
func (e env) openLedger() storage.Ledger {
	l, err := storage.Open(e.cfg.Ledger.Backend, e.cfg.LedgerPath(e.dir))
	if err != nil {
		fatal(err)
	}
	return l
}

// now returns the current time in the configured zone.
func (e env) now() time.Time {
	return time.Now().In(e.loc)
}
