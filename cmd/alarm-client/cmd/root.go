package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oshokin/alarm-controller/internal/config"
	"github.com/oshokin/alarm-controller/internal/service/client"
	"github.com/oshokin/alarm-controller/internal/version"
)

var (
	// options are shared by every subcommand.
	options client.Options

	// rootCmd groups the client subcommands.
	rootCmd = &cobra.Command{
		Use:   "alarm-client",
		Short: "Talk to the alarm controller.",
		Long: `Sends requests to a running alarm controller: manual help, leaving mode,
sensor reports, on-demand evaluation, speaker status and alarm history.

The controller address is read from the configuration file and can be
overridden with --server.`,
		SilenceUsage: true,
	}
)

// Execute runs the alarm-client CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// signalContext cancels on SIGTERM or SIGINT.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	rootCmd.PersistentFlags().
		StringVarP(&options.ConfigPath, "config", "c", config.DefaultConfigFilename, "path to configuration file")
	rootCmd.PersistentFlags().
		StringVar(&options.ServerAddress, "server", "", "controller address, overrides server_addr")
}
