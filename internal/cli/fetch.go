package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/saiakki/jiradash/internal/jira"
	"github.com/saiakki/jiradash/internal/logger"
	"github.com/saiakki/jiradash/internal/model"
	"github.com/saiakki/jiradash/internal/store"
)

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Fetch Jira data once and exit",
	Long: `Fetch the project and full issue set from Jira, persist the snapshot and
exit. Unlike the background refresh loop, a remote failure here is fatal.`,
	RunE: runFetch,
}

func runFetch(cmd *cobra.Command, args []string) error {
	if err := cfg.ValidateRemote(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	st, err := store.Open(cfg)
	if err != nil {
		return fmt.Errorf("failed to open storage: %w", err)
	}
	defer st.Close()

	client := jira.New(cfg.JiraBaseURL, cfg.JiraEmail, cfg.JiraAPIToken, cfg.MaxResults)
	ctx := context.Background()

	fmt.Printf("Fetching project %s (%s)...\n", cfg.ProjectKey, cfg.ProjectID)
	project, err := client.FetchProject(ctx, cfg.ProjectID)
	if err != nil {
		logger.Warn("Project fetch failed, using fallback record", logger.F("error", err))
		project = model.FallbackProject(cfg.ProjectID, cfg.ProjectKey)
	}

	issues, err := client.FetchIssues(ctx, cfg.ProjectKey)
	if err != nil {
		return fmt.Errorf("failed to fetch issues: %w", err)
	}

	if err := st.SaveSnapshot(project, issues); err != nil {
		return fmt.Errorf("failed to save snapshot: %w", err)
	}

	snap := model.Snapshot{Issues: issues}
	b := snap.Breakdown()
	fmt.Printf("Saved %d issues for %s\n", len(issues), project.Key)
	fmt.Printf("  To Do: %d  In Progress: %d  In Review: %d  Done: %d\n",
		b.ToDo, b.InProgress, b.InReview, b.Done)
	return nil
}
