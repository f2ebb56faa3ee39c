package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/glefebvre/streamhub/internal/jobs"
)

var mergeCmd = &cobra.Command{
	Use:   "merge",
	Short: "Run one catalog merge now",
	Long: `Regenerate the merged titles affected by provider entries that changed
since the last successful merge, including their per-episode stream records.`,
	Run: func(cmd *cobra.Command, args []string) {
		if err := runOneShot(jobs.JobNameMerge); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	},
}
