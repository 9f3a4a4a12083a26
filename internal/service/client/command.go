package client

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/oshokin/alarm-controller/internal/config"
	domain "github.com/oshokin/alarm-controller/internal/domain/alarm"
	"github.com/oshokin/alarm-controller/internal/logger"
	"github.com/oshokin/alarm-controller/internal/service/common"
)

// Options configures how the client reaches the controller.
type Options struct {
	// ConfigPath to YAML settings file, defaults to standard filename if empty.
	ConfigPath string

	// ServerAddress overrides server address from config when specified.
	ServerAddress string
}

// defaultPushInterval defines retry delay when pushing a help request to the server.
const defaultPushInterval = 1 * time.Second

// connect loads settings and dials the controller.
func connect(ctx context.Context, opts *Options) (*common.Client, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, err
	}

	serverAddress := cfg.ServerAddress
	if opts.ServerAddress != "" {
		serverAddress = opts.ServerAddress
	}

	client, err := common.Dial(ctx, serverAddress, common.WithCallTimeout(cfg.Timeout))
	if err != nil {
		return nil, err
	}

	logger.DebugKV(ctx, "Connected to alarm controller", "server_address", serverAddress)

	return client, nil
}

// withClient runs fn with a connected client and closes it afterwards.
func withClient(ctx context.Context, opts *Options, fn func(*common.Client) error) error {
	client, err := connect(ctx, opts)
	if err != nil {
		return err
	}

	defer func() {
		_ = client.Close()
	}()

	return fn(client)
}

// Help pushes a help request, retrying until the controller accepts it or ctx is canceled.
func Help(ctx context.Context, opts *Options) error {
	ctx = logger.WithName(ctx, "alarm-client/help")

	actor, err := common.DetectActor()
	if err != nil {
		return err
	}

	return withClient(ctx, opts, func(client *common.Client) error {
		attempt := func() bool {
			result, err := client.TriggerHelp(ctx, actor)
			if err != nil {
				// Log error but continue retrying for transient failures.
				logger.ErrorKV(ctx, "TriggerHelp failed", "error", err)

				return false
			}

			if result.Faults != "" && !sounding(ctx, client) {
				logger.WarnKV(ctx, "Help accepted but the speaker is silent, retrying", "faults", result.Faults)

				return false
			}

			logger.Infof(ctx, "Help requested by %s: %s", actor, formatResult(result))

			return true
		}

		if attempt() {
			return nil
		}

		ticker := time.NewTicker(defaultPushInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
				if attempt() {
					return nil
				}
			}
		}
	})
}

// sounding confirms the speaker state with the controller.
func sounding(ctx context.Context, client *common.Client) bool {
	state, err := client.GetSpeakerState(ctx)
	if err != nil {
		logger.ErrorKV(ctx, "GetSpeakerState failed", "error", err)

		return false
	}

	return state.IsSounding
}

// Leaving opens the leaving window.
func Leaving(ctx context.Context, opts *Options) error {
	ctx = logger.WithName(ctx, "alarm-client/leaving")

	return withClient(ctx, opts, func(client *common.Client) error {
		if err := client.BeginLeaving(ctx); err != nil {
			return err
		}

		logger.Info(ctx, "Leaving mode started, door alarms are delayed without being logged")

		return nil
	})
}

// Report sends one sensor report.
func Report(ctx context.Context, opts *Options, reading *domain.SensorReading) error {
	ctx = logger.WithName(ctx, "alarm-client/report")

	if err := reading.Validate(); err != nil {
		return err
	}

	return withClient(ctx, opts, func(client *common.Client) error {
		result, err := client.ReportSensor(ctx, reading)
		if err != nil {
			return err
		}

		logger.Infof(ctx, "Reported %s: %s", reading.Name, formatResult(result))

		return nil
	})
}

// Evaluate asks the controller to run one cycle.
func Evaluate(ctx context.Context, opts *Options, checkConnectivity bool) error {
	ctx = logger.WithName(ctx, "alarm-client/evaluate")

	return withClient(ctx, opts, func(client *common.Client) error {
		result, err := client.Evaluate(ctx, checkConnectivity)
		if err != nil {
			return err
		}

		logger.Infof(ctx, "Evaluated: %s", formatResult(result))

		return nil
	})
}

// Status logs the speaker state.
func Status(ctx context.Context, opts *Options) error {
	ctx = logger.WithName(ctx, "alarm-client/status")

	return withClient(ctx, opts, func(client *common.Client) error {
		state, err := client.GetSpeakerState(ctx)
		if err != nil {
			return err
		}

		logger.Infof(ctx, "Speaker: %s", formatState(state))

		return nil
	})
}

// Events logs the newest history rows.
func Events(ctx context.Context, opts *Options, limit int) error {
	ctx = logger.WithName(ctx, "alarm-client/events")

	return withClient(ctx, opts, func(client *common.Client) error {
		events, err := client.ListEvents(ctx, limit)
		if err != nil {
			return err
		}

		if len(events) == 0 {
			logger.Info(ctx, "No events recorded")

			return nil
		}

		for i := range events {
			logger.Info(ctx, formatEvent(&events[i]))
		}

		return nil
	})
}

// formatResult converts a cycle result to a readable log message.
func formatResult(result *common.Result) string {
	if result == nil {
		return "<nil result>"
	}

	if len(result.Triggered) == 0 {
		return fmt.Sprintf("quiet, speaker %s", result.Speaker)
	}

	var b strings.Builder

	fmt.Fprintf(&b, "alarm [%s], speaker %s", strings.Join(result.Triggered, ", "), result.Speaker)

	if result.Delayed {
		b.WriteString(", delayed")
	}

	if result.Suppressed {
		b.WriteString(", leaving")
	}

	if len(result.Disconnected) > 0 {
		fmt.Fprintf(&b, ", disconnected [%s]", strings.Join(result.Disconnected, ", "))
	}

	if result.Faults != "" {
		fmt.Fprintf(&b, ", faults: %s", result.Faults)
	}

	return b.String()
}

// formatState converts speaker state to a readable log message.
func formatState(state *domain.State) string {
	if state == nil {
		return "<nil state>"
	}

	// Extract timestamp with fallback for missing data.
	timestamp := "<unknown>"
	if !state.Timestamp.IsZero() {
		timestamp = state.Timestamp.Format(time.RFC3339)
	}

	status := "silent"
	if state.IsSounding {
		status = "sounding"
	}

	return fmt.Sprintf("%s by %s (%s)", status, state.LastActor, timestamp)
}

// formatEvent renders one history row.
func formatEvent(event *domain.Event) string {
	return fmt.Sprintf("%s %-12s %-11s %s",
		event.OccurredAt.Local().Format(time.DateTime), event.Type, event.Kind, event.Description)
}
