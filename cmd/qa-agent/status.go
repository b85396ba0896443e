package main

import (
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show recent sync cycles",
	Long:  `Display the most recent completed fetch cycles from the sync log.`,
	Run: func(cmd *cobra.Command, args []string) {
		limit, _ := cmd.Flags().GetInt("limit")

		syncs, err := store.RecentSyncs(cmd.Context(), limit)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: failed to read sync log: %v\n", err)
			os.Exit(1)
		}

		cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
		green := color.New(color.FgGreen).SprintFunc()
		gray := color.New(color.FgHiBlack).SprintFunc()

		fmt.Printf("\n%s\n", cyan("=== QA Agent Status ==="))
		fmt.Printf("Project:  %s (status %q)\n", cfg.Jira.ProjectKey, cfg.Jira.Status)
		fmt.Printf("Database: %s\n\n", cfg.Storage.Path)

		if len(syncs) == 0 {
			fmt.Printf("  %s\n", gray("No completed cycles yet"))
			return
		}

		for _, s := range syncs {
			fmt.Printf("  %s %s  %3d stories  %s\n",
				green("●"),
				s.CompletedAt.Local().Format("2006-01-02 15:04:05"),
				s.StoriesFound,
				gray(s.RunID))
		}
		fmt.Printf("\nLast cycle %v ago\n", time.Since(syncs[0].CompletedAt).Round(time.Second))
	},
}

func init() {
	statusCmd.Flags().Int("limit", 10, "Number of cycles to show")
	rootCmd.AddCommand(statusCmd)
}
