package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// setRequiredEnv sets the minimum environment a valid config needs.
func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("SENTRY_DISCORD_TOKEN", "bot-token")
	t.Setenv("SENTRY_DISCORD_GUILD_ID", "guild-1")
	t.Setenv("SENTRY_SCAN_INITIATOR_ID", "mod-1")
	t.Setenv("SENTRY_STATUS_BASE_URL", "http://backend:8080")
}

func TestLoad_DefaultsApplied(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	require.Equal(t, []string{"localhost:9092"}, cfg.Kafka.Brokers)
	require.Equal(t, "scan-batches", cfg.Kafka.BatchTopic)
	require.Equal(t, "scan-results", cfg.Kafka.ResultTopic)
	require.Equal(t, "sentry", cfg.Kafka.GroupID)

	require.Equal(t, 100, cfg.Scan.BatchSize)
	require.Equal(t, 7, cfg.Scan.DaysRequested)
	require.Equal(t, "events", cfg.Scan.WaitStrategy)

	require.Equal(t, time.Second, cfg.Poller.InitialDelay)
	require.Equal(t, 2.0, cfg.Poller.BackoffMultiplier)
	require.Equal(t, 30*time.Second, cfg.Poller.MaxDelay)
	require.Equal(t, 60*time.Second, cfg.Poller.PollTimeout)

	require.Equal(t, 30*time.Second, cfg.Waiter.StallWarning)
	require.Equal(t, 60*time.Second, cfg.Waiter.SilenceTimeout)
	require.Equal(t, 300*time.Second, cfg.Waiter.MaxWait)

	require.Equal(t, "bot-token", cfg.Discord.Token)
	require.Equal(t, "guild-1", cfg.Discord.GuildID)
	require.Equal(t, "http://backend:8080", cfg.StatusBaseURL)
}

func TestLoad_EnvOverrides(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("SENTRY_SCAN_WAIT_STRATEGY", "poll")
	t.Setenv("SENTRY_SCAN_DAYS_REQUESTED", "30")
	t.Setenv("SENTRY_WAITER_MAX_WAIT", "10m")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "poll", cfg.Scan.WaitStrategy)
	require.Equal(t, 30, cfg.Scan.DaysRequested)
	require.Equal(t, 10*time.Minute, cfg.Waiter.MaxWait)
}

func TestLoad_MissingRequiredFields(t *testing.T) {
	t.Setenv("SENTRY_DISCORD_TOKEN", "")
	t.Setenv("SENTRY_DISCORD_GUILD_ID", "")
	t.Setenv("SENTRY_SCAN_INITIATOR_ID", "")
	t.Setenv("SENTRY_STATUS_BASE_URL", "")

	_, err := Load()
	require.Error(t, err)
	require.Contains(t, err.Error(), "invalid config")
}

func TestLoad_RejectsUnknownWaitStrategy(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("SENTRY_SCAN_WAIT_STRATEGY", "carrier-pigeon")

	_, err := Load()
	require.Error(t, err)
	require.Contains(t, err.Error(), "invalid config")
}

func TestLoad_RejectsNonPositiveDays(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("SENTRY_SCAN_DAYS_REQUESTED", "0")

	_, err := Load()
	require.Error(t, err)
}
