package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Tiliavir/work-hours/internal/server"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the interaction ledger over HTTP",
	Long: `Serve the interaction ledger over HTTP so that editors, browser extensions
or shell hooks can report activity:

  POST   /interactions             record activity now (or {"at": RFC3339})
  GET    /interactions             list recorded days, newest first
  GET    /interactions/{date}      one day
  DELETE /interactions?until=DATE  delete records up to and including DATE`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (default from config)")
}

func runServe(cmd *cobra.Command, args []string) error {
	e, err := loadEnv()
	if err != nil {
		return err
	}
	addr := e.cfg.Server.Addr
	if serveAddr != "" {
		addr = serveAddr
	}

	l := e.openLedger()
	defer l.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Fprintf(os.Stderr, "Listening on http://%s ...\n", addr)
	srv := server.New(l, server.Options{Location: e.loc})
	if err := srv.ListenAndServe(ctx, addr); err != nil {
		fatal(err)
	}
	return nil
}
