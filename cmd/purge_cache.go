package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/glefebvre/streamhub/internal/jobs"
)

var purgeCacheCmd = &cobra.Command{
	Use:   "purge-cache",
	Short: "Purge cache trees and streams of deleted providers now",
	Long: `Remove the on-disk response cache of every provider flagged deleted and
drop their stream records from the merged catalog.`,
	Run: func(cmd *cobra.Command, args []string) {
		if err := runOneShot(jobs.JobNameCachePurge); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	},
}
