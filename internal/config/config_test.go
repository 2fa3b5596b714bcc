package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	require.Equal(t, ":8080", cfg.HTTPAddress)
	require.Equal(t, ":9090", cfg.MetricsAddress)
	require.Equal(t, []string{"kafka:9092"}, cfg.KafkaBrokers)
	require.Equal(t, 2*time.Second, cfg.OutboxPollInterval)
	require.Equal(t, 25, cfg.OutboxBatchSize)
	require.Equal(t, "wattsup-leaderboard", cfg.ConsumerGroupID)
	require.Equal(t, []string{"session_events"}, cfg.ConsumerTopics)
	require.Equal(t, "STRAVA", cfg.StravaVerifyToken)
	require.Empty(t, cfg.AppBaseURL)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("HTTP_ADDRESS", ":8181")
	t.Setenv("KAFKA_BROKERS", "broker-1:9092, broker-2:9092")
	t.Setenv("OUTBOX_POLL_INTERVAL", "500ms")
	t.Setenv("OUTBOX_BATCH_SIZE", "100")
	t.Setenv("CONSUMER_TOPICS", "session_events,audit_events")
	t.Setenv("STRAVA_WEBHOOK_VERIFY_TOKEN", "super-secret")
	t.Setenv("APP_BASE_URL", "https://app.example.com")

	cfg := Load()

	require.Equal(t, ":8181", cfg.HTTPAddress)
	require.Equal(t, []string{"broker-1:9092", "broker-2:9092"}, cfg.KafkaBrokers)
	require.Equal(t, 500*time.Millisecond, cfg.OutboxPollInterval)
	require.Equal(t, 100, cfg.OutboxBatchSize)
	require.Equal(t, []string{"session_events", "audit_events"}, cfg.ConsumerTopics)
	require.Equal(t, "super-secret", cfg.StravaVerifyToken)
	require.Equal(t, "https://app.example.com", cfg.AppBaseURL)
}

func TestLoadIgnoresMalformedValues(t *testing.T) {
	t.Setenv("OUTBOX_POLL_INTERVAL", "soon")
	t.Setenv("OUTBOX_BATCH_SIZE", "many")

	cfg := Load()

	require.Equal(t, 2*time.Second, cfg.OutboxPollInterval)
	require.Equal(t, 25, cfg.OutboxBatchSize)
}
