package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/glefebvre/streamhub/internal/jobs"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Run one provider sync now",
	Long: `Fetch every active provider's catalog, upsert the provider titles, and
TMDB-match the new or changed ones. Uses the same watermark as scheduled runs,
so only entries changed since the last successful sync are matched.`,
	Run: func(cmd *cobra.Command, args []string) {
		if err := runOneShot(jobs.JobNameSync); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	},
}

func runOneShot(jobName string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := buildApp(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.store.Close(context.Background()); err != nil {
			a.log.Error("Failed to close document store", err)
		}
	}()

	return runJobOnce(ctx, a, jobName)
}
