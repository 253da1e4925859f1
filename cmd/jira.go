package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/Tiliavir/work-hours/internal/jira"
)

var (
	jiraURL    string
	jiraEmail  string
	jiraReport reportFlags
)

var jiraCmd = &cobra.Command{
	Use:   "jira",
	Short: "Estimate hours from Jira worklogs, comments and updates",
	Long: `Estimate hours from a user's Jira activity. Worklogs count with their
logged time; comments and field changes are credited with the gap since the
previous activity. Activities are grouped by issue key.

The API token is read from WH_JIRA_TOKEN (environment or ~/.wh/.env).`,
	Args: cobra.NoArgs,
	RunE: runJira,
}

func init() {
	jiraCmd.Flags().StringVar(&jiraURL, "url", "", "Jira site, e.g. https://acme.atlassian.net (default from config)")
	jiraCmd.Flags().StringVar(&jiraEmail, "email", "", "Account e-mail (default from config)")
	jiraReport.register(jiraCmd)
}

func runJira(cmd *cobra.Command, args []string) error {
	e, err := loadEnv()
	if err != nil {
		return err
	}
	jc := e.cfg.Jira
	if jiraURL != "" {
		jc.URL = jiraURL
	}
	if jiraEmail != "" {
		jc.Email = jiraEmail
	}

	client, err := jira.NewClient(jira.Options{
		BaseURL: jc.URL,
		Email:   jc.Email,
		Token:   jc.Token,
		Logger:  slog.Default().With("source", "jira"),
	})
	if err != nil {
		return fmt.Errorf("%w (set them in ~/.wh/config.json, ~/.wh/.env or via flags)", err)
	}
	return runReport(cmd, e, client, "Jira activity of "+jc.Email, jiraReport)
}
