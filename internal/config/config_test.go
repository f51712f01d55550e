package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/disaster-response-coordinator/internal/domain"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)

	assert.Equal(t, "San Francisco Bay Area", cfg.RegionName)
	assert.InDelta(t, 37.7749, cfg.RegionLat, 1e-9)
	assert.InDelta(t, -122.4194, cfg.RegionLon, 1e-9)
	assert.InDelta(t, 100.0, cfg.RegionRadiusKm, 1e-9)
	assert.Equal(t, 2000, cfg.PopulationDensity)

	assert.Equal(t, 60*time.Second, cfg.PollInterval)
	assert.Equal(t, 3, cfg.MaxSourceRetries)
	assert.Equal(t, 30*time.Second, cfg.SourceTimeout)
	assert.Equal(t, 0, cfg.MaxCycles)

	assert.InDelta(t, 0.7, cfg.ConfirmationThreshold, 1e-9)
	assert.InDelta(t, 0.3, cfg.LowConfidenceFloor, 1e-9)
	assert.InDelta(t, 0.6, cfg.EscalationThreshold, 1e-9)

	assert.False(t, cfg.AgentEnabled)
	assert.Empty(t, cfg.OpenAIKey)
	assert.Equal(t, "gpt-4o-mini", cfg.OpenAIModel)

	assert.Equal(t, "data", cfg.PlanningDataDir)
	assert.Equal(t, 4, cfg.EvacuationWindowHours)

	assert.False(t, cfg.KafkaEnabled)
	assert.Equal(t, []string{"localhost:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, "disaster-run-results", cfg.KafkaResultTopic)
	assert.Empty(t, cfg.CheckpointDir)
}

func TestLoad_CustomEnv(t *testing.T) {
	t.Setenv("HTTP_ADDR", ":9090")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_FORMAT", "text")
	t.Setenv("SHUTDOWN_TIMEOUT", "30s")
	t.Setenv("REGION_NAME", "Los Angeles County")
	t.Setenv("REGION_LAT", "34.0522")
	t.Setenv("REGION_LON", "-118.2437")
	t.Setenv("REGION_RADIUS_KM", "80")
	t.Setenv("REGION_POPULATION_DENSITY", "3200")
	t.Setenv("SITUATION_DESCRIPTION", "wildfire ongoing near the northern ridge")
	t.Setenv("POLL_INTERVAL", "2m")
	t.Setenv("MAX_SOURCE_RETRIES", "5")
	t.Setenv("MAX_CYCLES", "3")
	t.Setenv("CONFIRMATION_THRESHOLD", "0.8")
	t.Setenv("ESCALATION_THRESHOLD", "0.5")
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("OPENAI_MODEL", "gpt-4o")
	t.Setenv("PLANNING_DATA_DIR", "/var/lib/coord/data")
	t.Setenv("KAFKA_ENABLED", "true")
	t.Setenv("KAFKA_BROKERS", "broker1:9092,broker2:9092")
	t.Setenv("CHECKPOINT_DIR", "/tmp/checkpoints")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.HTTPAddr)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, 30*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, "Los Angeles County", cfg.RegionName)
	assert.InDelta(t, 34.0522, cfg.RegionLat, 1e-9)
	assert.InDelta(t, -118.2437, cfg.RegionLon, 1e-9)
	assert.InDelta(t, 80.0, cfg.RegionRadiusKm, 1e-9)
	assert.Equal(t, 3200, cfg.PopulationDensity)
	assert.Equal(t, "wildfire ongoing near the northern ridge", cfg.Situation)
	assert.Equal(t, 2*time.Minute, cfg.PollInterval)
	assert.Equal(t, 5, cfg.MaxSourceRetries)
	assert.Equal(t, 3, cfg.MaxCycles)
	assert.InDelta(t, 0.8, cfg.ConfirmationThreshold, 1e-9)
	assert.InDelta(t, 0.5, cfg.EscalationThreshold, 1e-9)
	assert.True(t, cfg.AgentEnabled)
	assert.Equal(t, "sk-test", cfg.OpenAIKey)
	assert.Equal(t, "gpt-4o", cfg.OpenAIModel)
	assert.Equal(t, "/var/lib/coord/data", cfg.PlanningDataDir)
	assert.True(t, cfg.KafkaEnabled)
	assert.Equal(t, []string{"broker1:9092", "broker2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, "/tmp/checkpoints", cfg.CheckpointDir)
}

func TestLoad_AgentEnabledFollowsKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test")
	cfg, err := Load()
	require.NoError(t, err)
	assert.True(t, cfg.AgentEnabled)

	t.Setenv("AGENT_ENABLED", "false")
	cfg, err = Load()
	require.NoError(t, err)
	assert.False(t, cfg.AgentEnabled)
}

func TestLoad_AgentEnabledWithoutKey(t *testing.T) {
	t.Setenv("AGENT_ENABLED", "true")
	_, err := Load()
	require.ErrorIs(t, err, domain.ErrConfig)
	assert.Contains(t, err.Error(), "OPENAI_API_KEY")
}

func TestLoad_InvalidPollInterval(t *testing.T) {
	t.Setenv("POLL_INTERVAL", "not-a-duration")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "POLL_INTERVAL")
}

func TestLoad_NegativeShutdownTimeout(t *testing.T) {
	t.Setenv("SHUTDOWN_TIMEOUT", "-1s")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SHUTDOWN_TIMEOUT")
}

func TestLoad_ThresholdOutOfRange(t *testing.T) {
	t.Setenv("ESCALATION_THRESHOLD", "1.5")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ESCALATION_THRESHOLD")
}

func TestLoad_InvalidRadius(t *testing.T) {
	t.Setenv("REGION_RADIUS_KM", "0")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "REGION_RADIUS_KM")
}
