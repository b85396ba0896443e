package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/steveyegge/qa-agent/internal/scenario"
	"github.com/steveyegge/qa-agent/internal/types"
)

const timeLayout = "2006-01-02 15:04"

var storiesCmd = &cobra.Command{
	Use:   "stories",
	Short: "List stored stories",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()

		stories, err := store.ListStories(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: failed to list stories: %v\n", err)
			os.Exit(1)
		}

		gray := color.New(color.FgHiBlack).SprintFunc()
		cyan := color.New(color.FgCyan).SprintFunc()
		green := color.New(color.FgGreen).SprintFunc()

		if len(stories) == 0 {
			fmt.Printf("%s\n", gray("No stories stored yet"))
			return
		}

		fmt.Printf("%-6s %-12s %-12s %-17s %s\n", "ID", "KEY", "STATUS", "CREATED", "TITLE")
		for _, s := range stories {
			latest, err := store.LatestTestCase(ctx, s.ID)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: failed to load test cases for %s: %v\n", s.Key, err)
				os.Exit(1)
			}
			mark := gray("○")
			if latest != nil {
				mark = green("●")
			}
			fmt.Printf("%-6d %s %-12s %-12s %-17s %s\n",
				s.ID, mark, cyan(s.Key), s.Status, s.CreatedAt.Local().Format(timeLayout), s.Title)
		}
		fmt.Printf("\n%d stories (%s has test cases)\n", len(stories), green("●"))
	},
}

var showCmd = &cobra.Command{
	Use:   "show <key|id>",
	Short: "Show a story with its latest test cases",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()

		story, err := lookupStory(cmd, args[0])
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		if story == nil {
			fmt.Fprintf(os.Stderr, "Error: story %s not found\n", args[0])
			os.Exit(1)
		}

		cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
		yellow := color.New(color.FgYellow).SprintFunc()
		gray := color.New(color.FgHiBlack).SprintFunc()

		fmt.Printf("\n%s %s\n", cyan(story.Key), story.Title)
		fmt.Printf("%s\n", gray(fmt.Sprintf("id %d · %s · created %s",
			story.ID, story.Status, story.CreatedAt.Local().Format(timeLayout))))
		if story.Description != "" {
			fmt.Printf("\n%s\n", story.Description)
		}

		doc, err := store.LatestTestCase(ctx, story.ID)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: failed to load test cases: %v\n", err)
			os.Exit(1)
		}
		if doc == nil {
			fmt.Printf("\n%s\n", gray("No test cases generated yet"))
			return
		}

		fmt.Printf("\n%s %s\n", yellow("Test cases generated"), doc.GeneratedAt.Local().Format(timeLayout))
		n := 0
		for sc := range splitter().Split(doc.Content) {
			n++
			fmt.Printf("\n%s %s\n%s\n", yellow(fmt.Sprintf("%d.", sc.Ordinal)), sc.Summary, sc.Body)
		}
		if n == 0 {
			fmt.Printf("\n%s\n", doc.Content)
		}
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a stored story",
	Long: `Delete a story row. Its generated test cases are kept; a story fetched
again later gets a new id.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: invalid story id %q\n", args[0])
			os.Exit(1)
		}

		story, err := store.GetStory(cmd.Context(), id)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		if story == nil {
			fmt.Fprintf(os.Stderr, "Error: story %d not found\n", id)
			os.Exit(1)
		}

		if err := store.DeleteStory(cmd.Context(), id); err != nil {
			fmt.Fprintf(os.Stderr, "Error: failed to delete story: %v\n", err)
			os.Exit(1)
		}

		green := color.New(color.FgGreen).SprintFunc()
		fmt.Printf("%s Deleted story %d (%s)\n", green("✓"), id, story.Key)
	},
}

// splitter returns a scenario splitter for the configured markers
func splitter() *scenario.Splitter {
	return scenario.NewSplitter(cfg.Pipeline.ScenarioMarkers...)
}

// lookupStory resolves a numeric id or a tracker key
func lookupStory(cmd *cobra.Command, arg string) (*types.UserStory, error) {
	if id, err := strconv.ParseInt(arg, 10, 64); err == nil {
		return store.GetStory(cmd.Context(), id)
	}
	return store.GetStoryByKey(cmd.Context(), arg)
}

func init() {
	rootCmd.AddCommand(storiesCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(deleteCmd)
}
