// Command campctl scores companies and checks model manifests offline,
// without running the HTTP server.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/AnirudhBhanot/flashnew-sub008/internal/config"
	"github.com/AnirudhBhanot/flashnew-sub008/internal/monitoring"
)

const defaultManifest = "models/manifest.yaml"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var logLevel string

	root := &cobra.Command{
		Use:           "campctl",
		Short:         "Offline tooling for the CAMP prediction ensemble",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			logger := monitoring.NewLoggerTo(cmd.ErrOrStderr(), config.ParseLevel(logLevel))
			slog.SetDefault(logger.Logger)
		},
	}
	root.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "log level (debug, info, warn, error)")

	root.AddCommand(newPredictCmd(), newValidateCmd(), newFeaturesCmd())
	return root
}
