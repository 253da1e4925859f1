package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/Tiliavir/work-hours/internal/msgraph"
)

var (
	outlookBySubject bool
	outlookReport    reportFlags
)

var outlookCmd = &cobra.Command{
	Use:   "outlook",
	Short: "Estimate hours including Outlook calendar meetings",
	Long: `Estimate hours from Outlook calendar meetings via Microsoft Graph. Each
meeting counts with its scheduled length; cancelled, all-day, private and
free entries are ignored. The first run signs in with the device code flow.`,
	Args: cobra.NoArgs,
	RunE: runOutlook,
}

var outlookLoginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in to Microsoft Graph (device code flow)",
	Args:  cobra.NoArgs,
	RunE:  runOutlookLogin,
}

func init() {
	outlookCmd.Flags().BoolVar(&outlookBySubject, "by-subject", false, "Group meetings by ticket id or subject instead of one category")
	outlookReport.register(outlookCmd)
	outlookCmd.AddCommand(outlookLoginCmd)
}

func authenticator(e env) *msgraph.Authenticator {
	a := msgraph.NewAuthenticator(e.cfg.Outlook.TenantID, e.cfg.Outlook.ClientID, e.dir)
	a.Logger = slog.Default().With("source", "msgraph")
	return a
}

func runOutlook(cmd *cobra.Command, args []string) error {
	e, err := loadEnv()
	if err != nil {
		return err
	}
	httpClient, err := authenticator(e).HTTPClient(cmd.Context())
	if err != nil {
		fatal(err)
	}

	category := e.cfg.Outlook.Category
	if outlookBySubject {
		category = ""
	}
	client := msgraph.NewClient(msgraph.Options{
		HTTPClient: httpClient,
		Timezone:   e.cfg.Analysis.Timezone,
		Category:   category,
		Logger:     slog.Default().With("source", "msgraph"),
	})
	return runReport(cmd, e, client, "Outlook calendar", outlookReport)
}

func runOutlookLogin(cmd *cobra.Command, args []string) error {
	e, err := loadEnv()
	if err != nil {
		return err
	}
	a := authenticator(e)
	if _, err := a.Login(cmd.Context()); err != nil {
		fatal(err)
	}
	fmt.Fprintf(os.Stderr, "Signed in. Token stored in %s\n", a.TokenPath)
	return nil
}
