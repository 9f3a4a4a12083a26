package cmd

import (
	"github.com/spf13/cobra"

	domain "github.com/oshokin/alarm-controller/internal/domain/alarm"
	"github.com/oshokin/alarm-controller/internal/service/client"
)

// defaultEventLimit is how many events are listed without --limit.
const defaultEventLimit = 20

var (
	// helpCmd sounds the speaker immediately.
	helpCmd = &cobra.Command{
		Use:   "help-me",
		Short: "Request immediate help.",
		Long: `Sounds the speaker immediately, regardless of sensor state.

The request is retried every second until the controller accepts it.`,
		Args: cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			ctx, stop := signalContext()
			defer stop()

			return client.Help(ctx, &options)
		},
	}

	// leavingCmd opens the leaving window.
	leavingCmd = &cobra.Command{
		Use:   "leaving",
		Short: "Start leaving mode.",
		Long: `Opens the leaving window. While it is open, an alarm raised only by
the door sensor starts the speaker with a delay and is not logged.`,
		Args: cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			ctx, stop := signalContext()
			defer stop()

			return client.Leaving(ctx, &options)
		},
	}

	// reading is filled by the report flags.
	reading domain.SensorReading

	// reportCmd sends one sensor report.
	reportCmd = &cobra.Command{
		Use:   "report <name> <type> <status>",
		Short: "Report a sensor reading.",
		Long: `Stores the reading for the named sensor and evaluates the new snapshot.

Type is one of door, wndw, smco or any other sensor type. A non-zero status
means the sensor is triggered.`,
		Args: cobra.ExactArgs(3), //nolint:mnd // name, type, status.
		RunE: func(_ *cobra.Command, args []string) error {
			ctx, stop := signalContext()
			defer stop()

			status, err := parseStatus(args[2])
			if err != nil {
				return err
			}

			reading.Name = args[0]
			reading.Type = args[1]
			reading.Status = status

			return client.Report(ctx, &options, &reading)
		},
	}

	// checkConnectivity asks evaluate for a connectivity check.
	checkConnectivity bool

	// evaluateCmd runs one cycle.
	evaluateCmd = &cobra.Command{
		Use:   "evaluate",
		Short: "Evaluate the stored sensor snapshot.",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			ctx, stop := signalContext()
			defer stop()

			return client.Evaluate(ctx, &options, checkConnectivity)
		},
	}

	// statusCmd prints the speaker state.
	statusCmd = &cobra.Command{
		Use:   "status",
		Short: "Show the speaker state.",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			ctx, stop := signalContext()
			defer stop()

			return client.Status(ctx, &options)
		},
	}

	// eventLimit caps the events listing.
	eventLimit int

	// eventsCmd lists alarm history.
	eventsCmd = &cobra.Command{
		Use:   "events",
		Short: "List recent alarm history.",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			ctx, stop := signalContext()
			defer stop()

			return client.Events(ctx, &options, eventLimit)
		},
	}
)

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	reportCmd.Flags().BoolVar(&reading.Enabled, "enabled", true, "sensor is armed")
	reportCmd.Flags().BoolVar(&reading.Dismiss, "dismiss", false, "sensor alarm was dismissed")
	reportCmd.Flags().StringVar(&reading.Verbose, "verbose", "", `connectivity tag, "disconnected" marks a lost sensor`)

	evaluateCmd.Flags().BoolVar(&checkConnectivity, "connectivity", false, "also check for disconnected sensors")

	eventsCmd.Flags().IntVarP(&eventLimit, "limit", "n", defaultEventLimit, "number of events to show")

	rootCmd.AddCommand(helpCmd, leavingCmd, reportCmd, evaluateCmd, statusCmd, eventsCmd)
}
