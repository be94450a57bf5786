package cmd

import (
	"errors"
	"os"

	"github.com/spf13/cobra"

	"github.com/Jezza/healthkube/pkg/logging"
)

// Exit codes for CLI commands. Scripts schedule healthkube and branch on
// these, so they are part of the interface.
const (
	// ExitCodeSuccess indicates every pair reconciled cleanly.
	ExitCodeSuccess = 0
	// ExitCodeError indicates a fatal error: bad flags, malformed
	// targets, an identity collision, or an enumeration failure.
	ExitCodeError = 1
	// ExitCodePartial indicates some pairs failed while others
	// completed; a re-run converges the stragglers.
	ExitCodePartial = 2
)

var rootVerbose bool

// rootCmd is the base command for the healthkube application.
var rootCmd = &cobra.Command{
	Use:   "healthkube",
	Short: "Keep Healthchecks monitors in sync with Kubernetes CronJobs",
	Long: `healthkube reconciles the CronJobs of one or more Kubernetes contexts
against checks in a Healthchecks instance: it creates missing checks,
updates drifted ones, and writes each check's ping ID back into the
CronJob's environment so the job can report liveness.`,
	// SilenceUsage prevents Cobra from printing the usage message on
	// errors the application handles itself.
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := logging.LevelInfo
		if rootVerbose {
			level = logging.LevelDebug
		}
		logging.Init(level, os.Stderr)
	},
}

// SetVersion sets the version for the root command, injected from the
// main package at build time.
func SetVersion(v string) {
	rootCmd.Version = v
}

// Execute is the main entry point for the CLI application.
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "healthkube version %s\n" .Version}}`)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(getExitCode(err))
	}
}

// getExitCode maps error types to semantic exit codes for scripting.
// Fatal configuration-class errors (target.ParseError,
// reconcile.IdentityCollisionError, exhausted fetch retries) all share
// the general error code; only partial reconciliation gets its own.
func getExitCode(err error) int {
	var partial *partialFailureError
	if errors.As(err, &partial) {
		return ExitCodePartial
	}
	return ExitCodeError
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&rootVerbose, "verbose", "v", false, "Enable debug logging")

	rootCmd.AddCommand(newSyncCmd())
	rootCmd.AddCommand(newChannelsCmd())
	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newSelfUpdateCmd())
}
