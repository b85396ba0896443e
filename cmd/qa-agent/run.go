package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/steveyegge/qa-agent/internal/ai"
	"github.com/steveyegge/qa-agent/internal/pipeline"
	"github.com/steveyegge/qa-agent/internal/tracker"
	"github.com/steveyegge/qa-agent/internal/types"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Fetch stories and generate test cases",
	Long: `Run the story pipeline.

Each cycle:
1. Fetch stories in the configured project and status from Jira
2. Store each story, skipping stories that already have test cases
3. Generate test cases with the configured model
4. File every scenario as a sub-task of its story

With --once a single cycle runs and the command exits. Otherwise cycles repeat
on the poll interval until stopped with Ctrl+C.`,
	Run: func(cmd *cobra.Command, args []string) {
		once, _ := cmd.Flags().GetBool("once")

		ctx, cancel := signalContext()
		defer cancel()

		release := acquireRunLock("qa-agent run")
		defer release()

		orch, err := newOrchestrator(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		if once {
			report := orch.RunOnce(ctx)
			printReport(report)
			if report.FetchErr != nil {
				release()
				os.Exit(1)
			}
			return
		}

		green := color.New(color.FgGreen).SprintFunc()
		fmt.Printf("%s Watching %s every %v (Ctrl+C to stop)\n",
			green("✓"), cfg.Jira.ProjectKey, cfg.PollInterval())

		if err := orch.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	},
}

// newOrchestrator wires the tracker, generator and store from cfg
func newOrchestrator(ctx context.Context) (*pipeline.Orchestrator, error) {
	if err := cfg.RequireCredentials(); err != nil {
		return nil, fmt.Errorf("missing credentials:\n%w", err)
	}

	jira, err := tracker.NewJiraTracker(tracker.JiraConfig{
		Server:      cfg.Jira.Server,
		Username:    cfg.Jira.Username,
		APIToken:    cfg.Jira.APIToken,
		SubtaskType: cfg.Jira.SubtaskType,
		FilingRate:  cfg.Jira.FilingRate,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create Jira client: %w", err)
	}

	gen, err := ai.NewGenerator(ctx, ai.Config{
		Provider:    ai.Provider(cfg.Generator.Provider),
		APIKey:      cfg.GeneratorAPIKey(),
		Model:       cfg.Generator.Model,
		MaxTokens:   cfg.Generator.MaxTokens,
		Temperature: cfg.Generator.Temperature,
		Timeout:     cfg.GeneratorTimeout(),
		Logger:      logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create generator: %w", err)
	}

	return pipeline.New(pipeline.Config{
		Store:           store,
		Tracker:         jira,
		Generator:       gen,
		Splitter:        splitter(),
		Logger:          logger,
		ProjectKey:      cfg.Jira.ProjectKey,
		Status:          cfg.Jira.Status,
		IssueType:       cfg.Jira.IssueType,
		LookbackDays:    cfg.Pipeline.LookbackDays,
		Interval:        cfg.PollInterval(),
		FileScenarios:   cfg.Pipeline.FileScenarios,
		CommentOnParent: cfg.Pipeline.CommentOnParent,
	})
}

func printReport(report *types.CycleReport) {
	green := color.New(color.FgGreen).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()
	gray := color.New(color.FgHiBlack).SprintFunc()

	if report.FetchErr != nil {
		fmt.Printf("%s Cycle aborted: %v\n", red("✗"), report.FetchErr)
		return
	}

	fmt.Printf("\nRun %s: %d stories found\n", gray(report.RunID), report.StoriesFound)
	for _, res := range report.Results {
		switch res.Outcome {
		case types.OutcomeSucceeded:
			line := fmt.Sprintf("  %s %s: %d scenarios filed", green("✓"), res.Key, res.ScenariosFiled)
			if res.ScenariosFailed > 0 {
				line += yellow(fmt.Sprintf(", %d failed", res.ScenariosFailed))
			}
			fmt.Println(line)
		case types.OutcomeSkipped:
			fmt.Printf("  %s %s: %s\n", gray("-"), res.Key, gray(res.Reason))
		case types.OutcomeFailed:
			fmt.Printf("  %s %s: %s\n", red("✗"), res.Key, res.Reason)
		}
	}

	c := report.Counts()
	fmt.Printf("\n%s succeeded, %s skipped, %s failed in %v\n",
		green(c.Succeeded), gray(c.Skipped), red(c.Failed), report.Duration().Round(time.Millisecond))
}

func init() {
	runCmd.Flags().Bool("once", false, "Run a single cycle and exit")
	rootCmd.AddCommand(runCmd)
}
