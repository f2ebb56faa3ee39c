package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/glefebvre/streamhub/internal/api"
	"github.com/glefebvre/streamhub/internal/shutdown"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the scheduled catalog pipeline and the admin API",
	Long: `Start the long-running process: the scheduler fires the sync, merge and
cache-purge jobs on their configured intervals, and the admin API exposes
health, job history and manual triggers.`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()

		a, err := buildApp(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to start: %v\n", err)
			os.Exit(1)
		}

		grace := a.cfg.Jobs.ShutdownGrace
		if grace <= 0 {
			grace = 30 * time.Second
		}

		// Shutdown runs LIFO: API stops taking requests, the scheduler
		// drains its runs, the store connection closes last.
		handler := shutdown.New(grace)
		handler.Register(func(ctx context.Context) error {
			a.log.Debug("Closing document store connection")
			return a.store.Close(ctx)
		})

		if err := a.sched.Start(); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to start scheduler: %v\n", err)
			os.Exit(1)
		}
		handler.Register(func(ctx context.Context) error {
			a.log.Debug("Stopping scheduler")
			return a.sched.Stop(ctx)
		})

		server := api.NewServer(a.store, a.history, a.sched)
		handler.Register(func(ctx context.Context) error {
			a.log.Debug("Stopping API server")
			return server.Shutdown(ctx)
		})

		go func() {
			if err := server.Run(a.cfg.API.Port); err != nil {
				a.log.Error("API server stopped", err)
			}
		}()

		a.log.WithFields(map[string]interface{}{
			"port": a.cfg.API.Port,
			"jobs": a.sched.JobNames(),
		}).Info("Streamhub started")

		handler.Wait()
	},
}
