package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/glefebvre/streamhub/internal/config"
)

var rootCmd = &cobra.Command{
	Use:   "streamhub",
	Short: "Streamhub aggregates IPTV provider catalogs into a merged title catalog",
	Long: `Streamhub pulls movie and series catalogs from configured IPTV providers,
matches every entry against TMDB, and maintains a merged catalog in which one
title records every provider able to stream it, per episode for series.

Run "streamhub serve" for the scheduled pipeline with the admin API, or one of
the one-shot commands (sync, merge, purge-cache) for a single job run.`,
	Run: func(cmd *cobra.Command, args []string) {
		_ = cmd.Help()
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of Streamhub",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("Streamhub v0.1.0")
	},
}

var configFile string

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file (default is ./config.yml)")
	cobra.OnInitialize(initConfig)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(mergeCmd)
	rootCmd.AddCommand(purgeCacheCmd)
}

func initConfig() {
	// Skip config loading for version command
	if len(os.Args) > 1 && os.Args[1] == "version" {
		return
	}

	if err := config.Load(); err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
