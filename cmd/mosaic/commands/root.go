// Package commands implements the mosaic CLI: queueing pixel placements,
// rendering snapshots, following the live delta feed and inspecting board
// state, all against the Redis instance named by the environment.
package commands

import (
	"fmt"
	"os"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"github.com/tilegrid/mosaic/internal/printer"
	"github.com/tilegrid/mosaic/pkg/board"
)

var (
	version string
	commit  string
	date    string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "mosaic",
	Short: "Mosaic - collaborative pixel canvas",
	Long: `Mosaic is a collaborative pixel canvas: actors place one pixel at a
time onto a shared grid, rate-limited by a per-actor cooldown, and every
committed change fans out to live viewers as a delta event.

The CLI talks to the same Redis instance as mosaicd. Set REDIS_URL and
MOSAIC_INSTANCE_NAME to select the deployment.`,
	Version: version,
	RunE: func(cmd *cobra.Command, args []string) error {
		// If no subcommand is specified, show help
		return cmd.Help()
	},
	FParseErrWhitelist: cobra.FParseErrWhitelist{},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	// Silence Cobra's default error and usage printing
	// We print formatted colored errors directly in the printer package
	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true
	return rootCmd.Execute()
}

// SetVersionInfo sets the version information for the CLI
func SetVersionInfo(v, c, d string) {
	version = v
	commit = c
	date = d
	rootCmd.Version = fmt.Sprintf("%s (commit: %s, built: %s)", v, c, d)
}

// boardFromEnv connects to the board named by REDIS_URL and
// MOSAIC_INSTANCE_NAME. Every subcommand goes through here.
func boardFromEnv(cmd *cobra.Command) (*board.Client, error) {
	redisURL := os.Getenv("REDIS_URL")
	instance := os.Getenv("MOSAIC_INSTANCE_NAME")
	if redisURL == "" || instance == "" {
		return nil, printer.Error(
			"Missing connection settings",
			"The CLI needs to know which deployment to talk to.",
			[]string{
				"Set REDIS_URL (e.g. redis://localhost:6379)",
				"Set MOSAIC_INSTANCE_NAME (e.g. main)",
			})
	}

	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, printer.ErrorWithContext(
			"Invalid REDIS_URL",
			err.Error(),
			map[string]string{"REDIS_URL": redisURL},
			nil)
	}

	client, err := board.NewClient(opts, instance)
	if err != nil {
		return nil, printer.Error("Failed to create board client", err.Error(), nil)
	}

	if err := client.Ping(cmd.Context()); err != nil {
		client.Close()
		return nil, printer.ErrorWithContext(
			"Redis not reachable",
			err.Error(),
			map[string]string{"REDIS_URL": redisURL},
			[]string{"Check that Redis is running and REDIS_URL points at it"})
	}

	return client, nil
}
