package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/saiakki/jiradash/internal/store"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show statistics for the stored snapshot",
	RunE:  runStats,
}

func runStats(cmd *cobra.Command, args []string) error {
	st, err := store.Open(cfg)
	if err != nil {
		return fmt.Errorf("failed to open storage: %w", err)
	}
	defer st.Close()

	snap, err := st.LoadIssues()
	if err != nil {
		if err == store.ErrNotFound {
			fmt.Println("No snapshot available. Run 'jiradash fetch' first.")
			return nil
		}
		return err
	}

	b := snap.Breakdown()
	fmt.Printf("Project:      %s\n", snap.ProjectKey)
	fmt.Printf("Total issues: %d\n", snap.TotalIssues)
	fmt.Printf("  To Do:       %d\n", b.ToDo)
	fmt.Printf("  In Progress: %d\n", b.InProgress)
	fmt.Printf("  In Review:   %d\n", b.InReview)
	fmt.Printf("  Done:        %d\n", b.Done)
	fmt.Printf("Last updated: %s\n", snap.LastUpdated.Local().Format(time.RFC1123))
	return nil
}
