// Package cmd implements the jobqueued command-line surface with cobra:
// a package-level rootCmd with subcommands registering themselves from
// init() (`version` in this file, `serve` in serve.go).
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/3leaps/jobqueue/internal/observability"
)

// buildInfo carries version metadata injected by main via SetVersionInfo.
type buildInfo struct {
	Version   string
	Commit    string
	BuildDate string
}

var versionInfo = buildInfo{Version: "dev", Commit: "HEAD", BuildDate: "unknown"}

// SetVersionInfo records the binary's build metadata for the `version`
// subcommand and the version reported by the /health endpoints. The HTTP
// /version endpoint does not use it; it reports the API version.
func SetVersionInfo(version, commit, buildDate string) {
	versionInfo.Version = version
	versionInfo.Commit = commit
	versionInfo.BuildDate = buildDate
}

var rootCmd = &cobra.Command{
	Use:   "jobqueued",
	Short: "A durable job queue service",
	Long: `jobqueued is the HTTP front end for a durable job queue: producers
submit work items, workers claim, heartbeat, and complete them, and every
transition is persisted so the queue survives a process restart.`,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("jobqueued %s (commit %s, built %s)\n", versionInfo.Version, versionInfo.Commit, versionInfo.BuildDate)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

// Execute runs the root command, exiting the process with a non-zero code
// on failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		observability.CLILogger.Sugar().Errorf("command failed: %v", err)
		os.Exit(1)
	}
}
