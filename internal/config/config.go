// Package config loads and validates the service configuration from an
// optional YAML file plus environment variable overrides.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// KafkaConfig holds the broker connection and topic layout for the event bus.
type KafkaConfig struct {
	Brokers                 []string `mapstructure:"brokers" validate:"required,min=1"`
	BatchTopic              string   `mapstructure:"batch_topic" validate:"required"`
	ProgressTopic           string   `mapstructure:"progress_topic" validate:"required"`
	ResultTopic             string   `mapstructure:"result_topic" validate:"required"`
	ProcessingFinishedTopic string   `mapstructure:"processing_finished_topic" validate:"required"`
	FailedTopic             string   `mapstructure:"failed_topic" validate:"required"`
	GroupID                 string   `mapstructure:"group_id" validate:"required"`
	ClientID                string   `mapstructure:"client_id" validate:"required"`
}

// DiscordConfig holds the bot credentials and target community.
type DiscordConfig struct {
	Token   string `mapstructure:"token" validate:"required"`
	GuildID string `mapstructure:"guild_id" validate:"required"`

	// RequestsPerSecond caps outbound REST calls to the Discord API.
	RequestsPerSecond float64 `mapstructure:"requests_per_second" validate:"gt=0"`
	Burst             int     `mapstructure:"burst" validate:"gt=0"`
}

// ScanConfig holds the parameters of the one-shot scan run.
type ScanConfig struct {
	InitiatorID   string `mapstructure:"initiator_id" validate:"required"`
	DaysRequested int    `mapstructure:"days_requested" validate:"gt=0"`
	BatchSize     int    `mapstructure:"batch_size" validate:"gt=0"`

	// WaitStrategy selects how the run waits for backend results:
	// "events" subscribes to the result topics, "poll" polls the status
	// endpoint.
	WaitStrategy string `mapstructure:"wait_strategy" validate:"oneof=events poll"`
}

// PollerConfig holds the backoff schedule for status polling.
type PollerConfig struct {
	InitialDelay      time.Duration `mapstructure:"initial_delay" validate:"gt=0"`
	BackoffMultiplier float64       `mapstructure:"backoff_multiplier" validate:"gt=1"`
	MaxDelay          time.Duration `mapstructure:"max_delay" validate:"gt=0"`
	PollTimeout       time.Duration `mapstructure:"poll_timeout" validate:"gt=0"`
}

// WaiterConfig holds the timer thresholds for event-driven waiting.
type WaiterConfig struct {
	StallWarning   time.Duration `mapstructure:"stall_warning" validate:"gt=0"`
	SilenceTimeout time.Duration `mapstructure:"silence_timeout" validate:"gt=0"`
	MaxWait        time.Duration `mapstructure:"max_wait" validate:"gt=0"`
}

// TelemetryConfig holds the OTLP exporter settings.
type TelemetryConfig struct {
	Enabled      bool    `mapstructure:"enabled"`
	ExporterAddr string  `mapstructure:"exporter_addr"`
	SampleRate   float64 `mapstructure:"sample_rate" validate:"gte=0,lte=1"`
}

// Config is the top-level service configuration.
type Config struct {
	Kafka     KafkaConfig     `mapstructure:"kafka"`
	Discord   DiscordConfig   `mapstructure:"discord"`
	Scan      ScanConfig      `mapstructure:"scan"`
	Poller    PollerConfig    `mapstructure:"poller"`
	Waiter    WaiterConfig    `mapstructure:"waiter"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`

	// StatusBaseURL is the analysis backend's status endpoint base URL. The
	// poll strategy reads it on every attempt; the events strategy reads it
	// once when a processing-finished signal arrives without a result
	// payload.
	StatusBaseURL string `mapstructure:"status_base_url" validate:"required,url"`
}

// Load reads the configuration from config.yaml (if present) in the current
// directory, applies SENTRY_-prefixed environment overrides, fills defaults
// and validates the result.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.SetEnvPrefix("SENTRY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("kafka.batch_topic", "scan-batches")
	v.SetDefault("kafka.progress_topic", "scan-progress")
	v.SetDefault("kafka.result_topic", "scan-results")
	v.SetDefault("kafka.processing_finished_topic", "scan-processing-finished")
	v.SetDefault("kafka.failed_topic", "scan-failures")
	v.SetDefault("kafka.group_id", "sentry")
	v.SetDefault("kafka.client_id", "sentry")

	// Register the env-only keys so AutomaticEnv can surface them during
	// unmarshal; viper only consults the environment for keys it knows.
	v.SetDefault("discord.token", "")
	v.SetDefault("discord.guild_id", "")
	v.SetDefault("scan.initiator_id", "")
	v.SetDefault("status_base_url", "")

	v.SetDefault("discord.requests_per_second", 5.0)
	v.SetDefault("discord.burst", 5)

	v.SetDefault("scan.days_requested", 7)
	v.SetDefault("scan.batch_size", 100)
	v.SetDefault("scan.wait_strategy", "events")

	v.SetDefault("poller.initial_delay", time.Second)
	v.SetDefault("poller.backoff_multiplier", 2.0)
	v.SetDefault("poller.max_delay", 30*time.Second)
	v.SetDefault("poller.poll_timeout", 60*time.Second)

	v.SetDefault("waiter.stall_warning", 30*time.Second)
	v.SetDefault("waiter.silence_timeout", 60*time.Second)
	v.SetDefault("waiter.max_wait", 300*time.Second)

	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.exporter_addr", "localhost:4317")
	v.SetDefault("telemetry.sample_rate", 1.0)
}

func validate(cfg *Config) error {
	vd := validator.New(validator.WithRequiredStructEnabled())
	if err := vd.Struct(cfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}
