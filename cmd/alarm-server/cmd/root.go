package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oshokin/alarm-controller/internal/config"
	"github.com/oshokin/alarm-controller/internal/service/server"
	"github.com/oshokin/alarm-controller/internal/version"
)

var (
	// configPath to the configuration YAML file.
	configPath string
	// stateFile overrides the speaker state path from config.
	stateFile string
	// database overrides the SQLite path from config.
	database string

	// rootCmd represents the base command for running the controller.
	rootCmd = &cobra.Command{
		Use:   "alarm-server [listen-address]",
		Short: "Run the alarm controller.",
		Long: `Starts the alarm controller: evaluates sensor reports stored in SQLite,
drives the speaker through the sound control script, records alarm history
and publishes notifications.

Only the port from server_addr is used for listening (e.g., :8080).
Listen address can be provided as argument to override config (e.g., :9090, 0.0.0.0:8080).
A speaker left sounding by a previous run is silenced on startup.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			var listenAddress string
			if len(args) > 0 {
				listenAddress = args[0]
			}

			return server.Run(ctx, &server.Options{
				ConfigPath:    configPath,
				ListenAddress: listenAddress,
				StateFile:     stateFile,
				Database:      database,
			})
		},
	}
)

// Execute runs the alarm-server CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	rootCmd.Flags().StringVarP(&configPath, "config", "c", config.DefaultConfigFilename, "path to configuration file")
	rootCmd.Flags().StringVarP(&stateFile, "state-file", "s", "", "override path to the speaker state file")
	rootCmd.Flags().StringVarP(&database, "database", "d", "", "override path to the SQLite database")
}
