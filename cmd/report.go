package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/Tiliavir/work-hours/internal/analysis"
	"github.com/Tiliavir/work-hours/internal/period"
	"github.com/Tiliavir/work-hours/internal/report"
	"github.com/Tiliavir/work-hours/internal/storage"
	"github.com/Tiliavir/work-hours/internal/timecalc"
)

// reportFlags are shared by the analysis commands (git, jira, outlook).
type reportFlags struct {
	period string
	from   string
	to     string
	format string
	top    int
	events bool
	out    string
	start  string
}

func (f *reportFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.period, "period", "p", period.WeekCurrent,
		"Period: month:current|previous|YYYY-MM, week:current|previous|two-ago|YYYY-MM-DD, custom")
	cmd.Flags().StringVar(&f.from, "from", "", "First day (YYYY-MM-DD) for --period custom")
	cmd.Flags().StringVar(&f.to, "to", "", "Last day, inclusive (YYYY-MM-DD) for --period custom")
	cmd.Flags().StringVar(&f.format, "format", "md", "Output format: md, csv, json, yaml, html")
	cmd.Flags().IntVar(&f.top, "top", 0, "Number of highlighted categories (default from config)")
	cmd.Flags().BoolVar(&f.events, "events", false, "List every event in the daily breakdown")
	cmd.Flags().StringVarP(&f.out, "out", "o", "", "Write the report to a file instead of stdout")
	cmd.Flags().StringVar(&f.start, "default-start", "", "Assumed day start (HH:MM) without ledger entry")
}

// runReport resolves the period, runs the pipeline against src and renders
// the summary.
func runReport(cmd *cobra.Command, e env, src analysis.Source, title string, f reportFlags) error {
	format, err := report.ParseFormat(f.format)
	if err != nil {
		return err
	}
	p, err := period.Resolve(f.period, f.from, f.to, e.now())
	if err != nil {
		return err
	}
	top := f.top
	if top <= 0 {
		top = e.cfg.Analysis.TopN
	}
	if top <= 0 {
		top = report.DefaultTop
	}
	start := e.cfg.Analysis.DefaultStart
	if f.start != "" {
		start = f.start
	}
	if _, _, err := timecalc.ParseClock(start); err != nil {
		return fmt.Errorf("invalid default start: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	ledger := e.openLedger()
	err = writeReport(ctx, ledger, os.Stdout, reportJob{
		src:    src,
		period: p,
		title:  title,
		out:    f.out,
		analysis: analysis.Options{
			Location:       e.loc,
			DefaultStart:   start,
			TicketPrefixes: e.cfg.Analysis.TicketPrefixes,
		},
		render: report.Options{
			Format: format,
			Title:  fmt.Sprintf("%s – %s", title, p),
			Top:    top,
			Events: f.events,
		},
	})
	if cerr := ledger.Close(); cerr != nil && err == nil {
		err = &failure{cerr}
	}
	var fail *failure
	if errors.As(err, &fail) {
		fatal(fail.err)
	}
	return err
}

// failure marks storage, network and output errors that exit with status 2.
type failure struct{ err error }

func (f *failure) Error() string { return f.err.Error() }
func (f *failure) Unwrap() error { return f.err }

type reportJob struct {
	src      analysis.Source
	period   period.Period
	title    string
	out      string
	analysis analysis.Options
	render   report.Options
}

// writeReport runs the pipeline and renders to job.out, or to stdout when
// out is empty. Files it opens are closed before it returns.
func writeReport(ctx context.Context, ledger storage.Ledger, stdout io.Writer, job reportJob) error {
	fmt.Fprintf(os.Stderr, "Analysing %s (%s)...\n", job.title, job.period)
	res, err := analysis.Run(ctx, job.src, job.period, analysis.LedgerLookup{Ledger: ledger}, job.analysis)
	if errors.Is(err, analysis.ErrEmptyResultSet) {
		fmt.Fprintf(stdout, "No activity found for %s.\n", job.period)
		return nil
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	if err != nil {
		return &failure{err}
	}
	if n := res.Normalized.Dropped(); n > 0 {
		fmt.Fprintf(os.Stderr, "Skipped %d events (%d merges, %d duplicates, %d outside period, %d malformed).\n",
			n, res.Normalized.Merges, res.Normalized.Duplicates, res.Normalized.OutOfRange, res.Normalized.Malformed)
	}

	if job.out == "" {
		if err := report.Render(stdout, res.Summary, job.render); err != nil {
			return &failure{fmt.Errorf("rendering report: %w", err)}
		}
		return nil
	}

	file, err := os.Create(job.out)
	if err != nil {
		return &failure{fmt.Errorf("creating %s: %w", job.out, err)}
	}
	if err := report.Render(file, res.Summary, job.render); err != nil {
		file.Close()
		return &failure{fmt.Errorf("rendering report: %w", err)}
	}
	if err := file.Close(); err != nil {
		return &failure{fmt.Errorf("writing %s: %w", job.out, err)}
	}
	fmt.Fprintf(os.Stderr, "Report written to %s\n", job.out)
	return nil
}
