package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/steveyegge/qa-agent/internal/config"
	"github.com/steveyegge/qa-agent/internal/logging"
	"github.com/steveyegge/qa-agent/internal/storage"
)

var (
	configPath string
	dbPath     string
	verbose    bool

	cfg    *config.Config
	logger *zap.Logger
	store  storage.Storage
)

var rootCmd = &cobra.Command{
	Use:   "qa-agent",
	Short: "Generate test cases for Jira user stories",
	Long: `qa-agent polls Jira for new user stories, asks a language model for
test cases, stores them in a local SQLite database and files each scenario
back to Jira as a sub-task.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
		if dbPath != "" {
			cfg.Storage.Path = dbPath
		}

		logger, err = logging.New(cfg.Logging, verbose)
		if err != nil {
			return err
		}

		cfg.Storage.Path, err = storage.ResolvePath(cfg.Storage.Path)
		if err != nil {
			return err
		}

		store, err = storage.NewStorage(cmd.Context(), &storage.Config{Path: cfg.Storage.Path})
		if err != nil {
			return fmt.Errorf("failed to open database %s: %w", cfg.Storage.Path, err)
		}
		logger.Debug("configuration loaded", zap.Stringer("config", cfg))
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if store != nil {
			_ = store.Close()
		}
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to YAML config file")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "Database path (overrides QA_DB_PATH)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
}

// acquireRunLock claims the database for a pipeline loop and returns the
// release func
func acquireRunLock(holder string) func() {
	lockPath, err := storage.AcquireRunLock(cfg.Storage.Path, holder)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	return func() {
		if err := storage.ReleaseRunLock(lockPath); err != nil {
			fmt.Fprintf(os.Stderr, "warning: %v\n", err)
		}
	}
}

// signalContext returns a context cancelled on Ctrl+C or SIGTERM
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		select {
		case <-sigCh:
			fmt.Fprintf(os.Stderr, "\nShutting down...\n")
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigCh)
	}()

	return ctx, cancel
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
