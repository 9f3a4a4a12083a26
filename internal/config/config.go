package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/oshokin/alarm-controller/internal/logger"
)

// Config holds the settings shared by the alarm binaries.
type Config struct {
	// ServerAddress is the gRPC address of the controller.
	ServerAddress string `yaml:"server_addr"`
	// Database is the path to the SQLite database with sensors, leaving mode and history.
	Database string `yaml:"database"`
	// StateFile is the path to the JSON file with the last speaker state.
	StateFile string `yaml:"state_file"`
	// Timeout is the duration for RPC calls.
	Timeout time.Duration `yaml:"timeout"`
	// LogLevel is the minimum level written to the log.
	LogLevel string `yaml:"log_level"`
	// MetricsAddress enables the Prometheus endpoint when set.
	MetricsAddress string `yaml:"metrics_addr"`
	// LeavingWindow is how long a "leaving" request suppresses door-only alarms.
	LeavingWindow time.Duration `yaml:"leaving_window"`
	// SensorCheckInterval is the period of connectivity sweeps.
	SensorCheckInterval time.Duration `yaml:"sensor_check_interval"`
	// Speaker configures the external sound process.
	Speaker Speaker `yaml:"speaker"`
	// MQTT configures notification delivery; notifications are only logged when Broker is empty.
	MQTT MQTT `yaml:"mqtt"`
	// Breaker guards notification delivery.
	Breaker Breaker `yaml:"breaker"`
}

// Speaker describes how to drive the sound process.
type Speaker struct {
	// Command is the sound control executable; "start" or "stop" is appended.
	Command string `yaml:"command"`
	// Args are passed before the start/stop verb.
	Args []string `yaml:"args,omitempty"`
	// Process is the executable name of the player, used to find orphans.
	Process string `yaml:"process"`
	// Timeout bounds each start/stop invocation.
	Timeout time.Duration `yaml:"timeout"`
}

// MQTT describes the notification broker.
type MQTT struct {
	Broker   string `yaml:"broker"`
	ClientID string `yaml:"client_id"`
	Topic    string `yaml:"topic"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	// ConnectRetries is how many times the initial connection is attempted.
	ConnectRetries int `yaml:"connect_retries"`
	// PublishTimeout bounds waiting for the broker to acknowledge one notification.
	PublishTimeout time.Duration `yaml:"publish_timeout"`
}

// Breaker configures the notification circuit breaker.
type Breaker struct {
	// Failures is the number of consecutive failures that opens the breaker.
	Failures int `yaml:"failures"`
	// OpenFor is how long the breaker stays open.
	OpenFor time.Duration `yaml:"open_for"`
}

const (
	// DefaultConfigFilename is the default filename for settings.
	DefaultConfigFilename = "alarm-controller.yaml"

	// DefaultStateFilename is the default filename for the speaker state JSON.
	DefaultStateFilename = "alarm-speaker-state.json"

	// DefaultDatabaseFilename is the default SQLite database path.
	DefaultDatabaseFilename = "alarm.db"

	// DefaultTimeout is the default duration for RPC calls.
	DefaultTimeout = 5 * time.Second

	// DefaultSpeakerTimeout bounds sound process invocations.
	DefaultSpeakerTimeout = 10 * time.Second

	// DefaultSpeakerCommand is the sound control script.
	DefaultSpeakerCommand = "sound_control"

	// DefaultSensorCheckInterval is the period of connectivity sweeps.
	DefaultSensorCheckInterval = 15 * time.Minute

	// DefaultMQTTTopic is where alarm notifications are published.
	DefaultMQTTTopic = "home/alarm/notify"

	// DefaultMQTTClientID identifies the controller at the broker.
	DefaultMQTTClientID = "alarm-controller"

	// DefaultConnectRetries is how many broker connection attempts are made.
	DefaultConnectRetries = 5

	// DefaultPublishTimeout bounds one notification delivery.
	DefaultPublishTimeout = 3 * time.Second

	// DefaultBreakerFailures opens the notify breaker after this many failures in a row.
	DefaultBreakerFailures = 3

	// DefaultBreakerOpenFor keeps the notify breaker open this long.
	DefaultBreakerOpenFor = 30 * time.Second

	// DefaultLogLevel is used when log_level is empty.
	DefaultLogLevel = "info"

	// DefaultFilePermissions is the default file permission for config and state files.
	DefaultFilePermissions = 0o600

	// defaultLeavingWindow mirrors alarm.DefaultLeavingWindow without importing the domain.
	defaultLeavingWindow = 60 * time.Second
)

var (
	// errConfigIsNotSet is returned when a nil configuration is provided.
	errConfigIsNotSet = errors.New("configuration is not set")
	// errServerSocketRequired is returned when server address is missing.
	errServerSocketRequired = errors.New("server address must be provided")
	// errUnknownLogLevel is returned for an unparsable log_level.
	errUnknownLogLevel = errors.New("unknown log level")
	// errNegativeDuration is returned when a duration setting is below zero.
	errNegativeDuration = errors.New("duration must not be negative")
)

// Load reads configuration from the provided path and validates essential fields.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultConfigFilename
	}

	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read settings: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(contents, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal settings: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Save writes the configuration to the provided path.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if path == "" {
		path = DefaultConfigFilename
	}

	if err := Validate(cfg); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	// Restrict permissions, the file may hold broker credentials.
	if err := os.WriteFile(filepath.Clean(path), data, DefaultFilePermissions); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}

	return nil
}

// Validate checks the provided settings and fills defaults.
//
//nolint:cyclop // A flat list of defaults reads better than helpers.
func Validate(settings *Config) error {
	if settings.ServerAddress == "" {
		return errServerSocketRequired
	}

	if _, err := net.ResolveTCPAddr("tcp", settings.ServerAddress); err != nil {
		return fmt.Errorf("invalid server socket: %w", err)
	}

	if settings.LogLevel == "" {
		settings.LogLevel = DefaultLogLevel
	}

	if _, ok := logger.ParseLogLevel(settings.LogLevel); !ok {
		return fmt.Errorf("%w: %q", errUnknownLogLevel, settings.LogLevel)
	}

	for name, d := range map[string]time.Duration{
		"timeout":               settings.Timeout,
		"leaving_window":        settings.LeavingWindow,
		"sensor_check_interval": settings.SensorCheckInterval,
		"speaker.timeout":       settings.Speaker.Timeout,
		"mqtt.publish_timeout":  settings.MQTT.PublishTimeout,
		"breaker.open_for":      settings.Breaker.OpenFor,
	} {
		if d < 0 {
			return fmt.Errorf("%s: %w", name, errNegativeDuration)
		}
	}

	if settings.Timeout == 0 {
		settings.Timeout = DefaultTimeout
	}

	if settings.StateFile == "" {
		settings.StateFile = DefaultStateFilename
	}

	if settings.Database == "" {
		settings.Database = DefaultDatabaseFilename
	}

	if settings.LeavingWindow == 0 {
		settings.LeavingWindow = defaultLeavingWindow
	}

	if settings.SensorCheckInterval == 0 {
		settings.SensorCheckInterval = DefaultSensorCheckInterval
	}

	if settings.Speaker.Command == "" {
		settings.Speaker.Command = DefaultSpeakerCommand
	}

	if settings.Speaker.Timeout == 0 {
		settings.Speaker.Timeout = DefaultSpeakerTimeout
	}

	if settings.MQTT.Topic == "" {
		settings.MQTT.Topic = DefaultMQTTTopic
	}

	if settings.MQTT.ClientID == "" {
		settings.MQTT.ClientID = DefaultMQTTClientID
	}

	if settings.MQTT.ConnectRetries <= 0 {
		settings.MQTT.ConnectRetries = DefaultConnectRetries
	}

	if settings.MQTT.PublishTimeout == 0 {
		settings.MQTT.PublishTimeout = DefaultPublishTimeout
	}

	if settings.Breaker.Failures <= 0 {
		settings.Breaker.Failures = DefaultBreakerFailures
	}

	if settings.Breaker.OpenFor == 0 {
		settings.Breaker.OpenFor = DefaultBreakerOpenFor
	}

	return nil
}
