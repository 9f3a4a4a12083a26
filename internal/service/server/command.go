package server

import (
	"context"
	"errors"
	"fmt"
	"net"

	"google.golang.org/grpc"

	api "github.com/oshokin/alarm-controller/internal/api/grpc/alarm"
	"github.com/oshokin/alarm-controller/internal/config"
	"github.com/oshokin/alarm-controller/internal/logger"
	"github.com/oshokin/alarm-controller/internal/metrics"
	pb "github.com/oshokin/alarm-controller/internal/pb/v1"
	"github.com/oshokin/alarm-controller/internal/repository/sqlite"
	"github.com/oshokin/alarm-controller/internal/repository/state"
	"github.com/oshokin/alarm-controller/internal/service/actuator"
	"github.com/oshokin/alarm-controller/internal/service/engine"
	"github.com/oshokin/alarm-controller/internal/service/notify"
	"github.com/oshokin/alarm-controller/internal/service/recorder"
	"github.com/oshokin/alarm-controller/internal/service/speaker"
)

// Options controls the alarm-server process and configuration.
type Options struct {
	// ConfigPath specifies the path to settings YAML file.
	ConfigPath string
	// ListenAddress provides an optional listen address override for the gRPC server.
	ListenAddress string
	// StateFile overrides the speaker state JSON path.
	StateFile string
	// Database overrides the SQLite database path.
	Database string
}

// ErrNoServerAddress indicates missing server configuration.
var ErrNoServerAddress = errors.New("no server address configured")

// Run starts the controller and blocks until context is canceled or the server stops.
//
//nolint:funlen // Startup is a linear sequence of wiring steps.
func Run(ctx context.Context, opts *Options) error {
	ctx = logger.WithName(ctx, "alarm-server")

	settings, err := config.Load(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}

	if level, ok := logger.ParseLogLevel(settings.LogLevel); ok {
		logger.SetLevel(level)
	}

	applyOverrides(settings, opts)

	listenAddress, err := resolveListenAddress(settings.ServerAddress, opts.ListenAddress)
	if err != nil {
		return fmt.Errorf("resolve listen address: %w", err)
	}

	db, err := sqlite.Open(ctx, settings.Database)
	if err != nil {
		return err
	}

	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			logger.WarnKV(ctx, "Failed to close database", "error", closeErr)
		}
	}()

	m, err := metrics.New()
	if err != nil {
		return fmt.Errorf("create metrics: %w", err)
	}

	stateRepo := state.NewFileRepository(settings.StateFile)
	sound := speaker.New(settings.Speaker)

	switch err = speaker.Reconcile(ctx, stateRepo, sound); {
	case err == nil, errors.Is(err, state.ErrNotFound):
	default:
		logger.WarnKV(ctx, "Speaker reconciliation failed", "error", err)
	}

	act := actuator.New(sound,
		actuator.WithCommandTimeout(settings.Speaker.Timeout),
		actuator.WithStateSaver(stateRepo),
		actuator.WithMetrics(m),
	)

	// The controller always starts silent; overwrite whatever the last run left.
	if err = stateRepo.Save(ctx, act.State()); err != nil {
		logger.WarnKV(ctx, "Failed to save initial speaker state", "error", err)
	}

	notifier, closeNotifier, err := newNotifier(ctx, settings, m)
	if err != nil {
		return err
	}

	defer closeNotifier()

	cycles := engine.New(
		sqlite.NewSensorRepository(db),
		sqlite.NewLeavingRepository(db),
		recorder.New(sqlite.NewEventRepository(db), m),
		act,
		notifier,
		engine.WithLeavingWindow(settings.LeavingWindow),
		engine.WithMetrics(m),
	)

	svc := &service{
		cycles:  cycles,
		sensors: sqlite.NewSensorRepository(db),
		leaving: sqlite.NewLeavingRepository(db),
		events:  sqlite.NewEventRepository(db),
		speaker: act,
	}

	lc := net.ListenConfig{}

	lis, err := lc.Listen(ctx, "tcp", listenAddress)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", listenAddress, err)
	}

	grpcServer := grpc.NewServer()
	pb.RegisterAlarmControllerServer(grpcServer, api.NewServer(svc))

	if settings.MetricsAddress != "" {
		go serveMetrics(ctx, m, settings.MetricsAddress)
	}

	go svc.runSweeps(ctx, settings.SensorCheckInterval)

	logger.InfoKV(ctx, "Alarm server listening",
		"listen_address", listenAddress,
		"database", settings.Database,
		"state_file", settings.StateFile,
	)

	// Done channel is closed after GracefulStop finishes to ensure we block
	// until the server fully stops before returning.
	done := make(chan struct{})

	go func() {
		<-ctx.Done()
		logger.Info(ctx, "Shutting down gRPC server")
		grpcServer.GracefulStop()
		close(done)
	}()

	if err := grpcServer.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return fmt.Errorf("serve gRPC: %w", err)
	}

	<-done
	logger.Info(ctx, "GRPC server stopped")

	return nil
}

// applyOverrides replaces configured paths with command line values.
func applyOverrides(settings *config.Config, opts *Options) {
	if opts.StateFile != "" {
		settings.StateFile = opts.StateFile
	}

	if opts.Database != "" {
		settings.Database = opts.Database
	}
}

// newNotifier connects to the broker when one is configured; otherwise
// notifications are only logged.
func newNotifier(ctx context.Context, settings *config.Config, m *metrics.Metrics) (*notify.Notifier, func(), error) {
	if settings.MQTT.Broker == "" {
		logger.Info(ctx, "No MQTT broker configured, notifications will only be logged")

		return notify.New(nil, "", settings.Breaker, notify.WithMetrics(m)), func() {}, nil
	}

	publisher, err := notify.Connect(ctx, settings.MQTT)
	if err != nil {
		return nil, nil, err
	}

	notifier := notify.New(publisher, settings.MQTT.Topic, settings.Breaker,
		notify.WithMetrics(m),
		notify.WithPublishTimeout(settings.MQTT.PublishTimeout),
	)

	return notifier, publisher.Close, nil
}

// serveMetrics exposes /metrics until ctx is done.
func serveMetrics(ctx context.Context, m *metrics.Metrics, address string) {
	srv := m.Server(address)

	go func() {
		<-ctx.Done()

		if err := srv.Close(); err != nil {
			logger.WarnKV(ctx, "Failed to close metrics server", "error", err)
		}
	}()

	logger.InfoKV(ctx, "Metrics listening", "address", address)

	if err := srv.ListenAndServe(); err != nil && !metrics.IsServerClosed(err) {
		logger.ErrorKV(ctx, "Metrics server failed", "error", err)
	}
}

// resolveListenAddress determines the listen address for the gRPC server.
// If override is provided, uses it directly. Otherwise extracts port from configAddr.
func resolveListenAddress(configAddr, override string) (string, error) {
	if override != "" {
		return override, nil
	}

	if configAddr == "" {
		return "", ErrNoServerAddress
	}

	_, port, err := net.SplitHostPort(configAddr)
	if err != nil {
		return "", fmt.Errorf("invalid server address format %q: %w", configAddr, err)
	}

	// Bind on all interfaces.
	return ":" + port, nil
}
