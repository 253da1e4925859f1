package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/Tiliavir/work-hours/internal/github"
)

var (
	gitOwner    string
	gitRepo     string
	gitAuthor   string
	gitBranches int
	gitReport   reportFlags
)

var gitCmd = &cobra.Command{
	Use:   "git",
	Short: "Estimate hours from GitHub commits",
	Long: `Estimate hours from one author's GitHub commits across the most recently
active branches. Commits are grouped by branch, then ticket id, then the
first words of the message.`,
	Args: cobra.NoArgs,
	RunE: runGit,
}

func init() {
	gitCmd.Flags().StringVar(&gitOwner, "owner", "", "Repository owner (default from config)")
	gitCmd.Flags().StringVar(&gitRepo, "repo", "", "Repository name (default from config)")
	gitCmd.Flags().StringVar(&gitAuthor, "author", "", "Commit author login or e-mail (default from config)")
	gitCmd.Flags().IntVar(&gitBranches, "branches", 0, "Number of active branches to scan (default from config)")
	gitReport.register(gitCmd)
}

func runGit(cmd *cobra.Command, args []string) error {
	e, err := loadEnv()
	if err != nil {
		return err
	}
	gh := e.cfg.GitHub
	if gitOwner != "" {
		gh.Owner = gitOwner
	}
	if gitRepo != "" {
		gh.Repo = gitRepo
	}
	if gitAuthor != "" {
		gh.Author = gitAuthor
	}
	if gitBranches > 0 {
		gh.BranchLimit = gitBranches
	}

	client, err := github.NewClient(cmd.Context(), github.Options{
		Owner:       gh.Owner,
		Repo:        gh.Repo,
		Author:      gh.Author,
		Token:       gh.Token,
		BranchLimit: gh.BranchLimit,
		BaseURL:     gh.APIURL,
		Logger:      slog.Default().With("source", "github"),
	})
	if err != nil {
		return fmt.Errorf("%w (set it in ~/.wh/config.json or via flags)", err)
	}
	return runReport(cmd, e, client, fmt.Sprintf("%s/%s by %s", gh.Owner, gh.Repo, gh.Author), gitReport)
}
