package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/steveyegge/qa-agent/internal/web"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the web viewer",
	Long: `Serve an HTML view of stored stories and their test cases.

With --monitor the story pipeline runs in the same process on the configured
poll interval.`,
	Run: func(cmd *cobra.Command, args []string) {
		addr, _ := cmd.Flags().GetString("addr")
		monitor, _ := cmd.Flags().GetBool("monitor")
		if addr == "" {
			addr = cfg.Web.Addr
		}

		ctx, cancel := signalContext()
		defer cancel()

		g, gctx := errgroup.WithContext(ctx)

		srv := web.NewServer(store, logger)
		g.Go(func() error {
			return srv.ListenAndServe(gctx, addr)
		})

		if monitor {
			release := acquireRunLock("qa-agent serve --monitor")
			defer release()

			orch, err := newOrchestrator(ctx)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
			g.Go(func() error {
				if err := orch.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
					return err
				}
				return nil
			})
		}

		fmt.Printf("Viewer at http://%s\n", displayAddr(addr))
		if err := g.Wait(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	},
}

func displayAddr(addr string) string {
	if len(addr) > 0 && addr[0] == ':' {
		return "localhost" + addr
	}
	return addr
}

func init() {
	serveCmd.Flags().String("addr", "", "Listen address (default from config, :5003)")
	serveCmd.Flags().Bool("monitor", false, "Also run the story pipeline")
	rootCmd.AddCommand(serveCmd)
}
