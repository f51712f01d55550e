package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/couchcryptid/disaster-response-coordinator/internal/domain"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// Monitored region.
	RegionName        string
	RegionLat         float64
	RegionLon         float64
	RegionRadiusKm    float64
	PopulationDensity int

	// Free-text situation description fed into classification, e.g. from an
	// operator ("wildfire ongoing near the northern ridge").
	Situation string

	// Detection loop.
	PollInterval     time.Duration
	MaxSourceRetries int
	SourceTimeout    time.Duration
	MaxCycles        int // 0 = run until stopped

	// Escalation thresholds. Tunable: higher values mean more conservative
	// escalation.
	ConfirmationThreshold float64 // confidence needed to skip search confirmation
	LowConfidenceFloor    float64 // below this, any classification is no-threat
	EscalationThreshold   float64 // severity score that triggers planning

	// Language-model agent.
	AgentEnabled bool
	OpenAIKey    string
	OpenAIModel  string
	AgentTimeout time.Duration

	// Search confirmation endpoint. Empty disables confirmation and routes
	// "needs confirmation" classifications straight to severity assessment.
	SearchURL     string
	SearchTimeout time.Duration

	// Planning.
	PlanningDataDir       string
	EvacuationWindowHours int

	// Notification webhook. Empty leaves notifications drafted but unsent.
	NotifyWebhookURL string
	NotifyTimeout    time.Duration

	// Kafka result publishing (feature-flagged).
	KafkaEnabled     bool
	KafkaBrokers     []string
	KafkaResultTopic string

	// Checkpoint directory for resumable runs. Empty disables checkpointing.
	CheckpointDir string
}

// Load reads configuration from the environment, applying defaults where
// unset. A .env file in the working directory is honored when present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	shutdownTimeout, err := durationOrDefault("SHUTDOWN_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, err
	}
	pollInterval, err := durationOrDefault("POLL_INTERVAL", 60*time.Second)
	if err != nil {
		return nil, err
	}
	sourceTimeout, err := durationOrDefault("SOURCE_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, err
	}
	agentTimeout, err := durationOrDefault("AGENT_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, err
	}
	searchTimeout, err := durationOrDefault("SEARCH_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, err
	}
	notifyTimeout, err := durationOrDefault("NOTIFY_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, err
	}

	regionLat, err := floatOrDefault("REGION_LAT", 37.7749)
	if err != nil {
		return nil, err
	}
	regionLon, err := floatOrDefault("REGION_LON", -122.4194)
	if err != nil {
		return nil, err
	}
	regionRadius, err := floatOrDefault("REGION_RADIUS_KM", 100)
	if err != nil {
		return nil, err
	}
	confirmThreshold, err := floatOrDefault("CONFIRMATION_THRESHOLD", 0.7)
	if err != nil {
		return nil, err
	}
	lowFloor, err := floatOrDefault("LOW_CONFIDENCE_FLOOR", 0.3)
	if err != nil {
		return nil, err
	}
	escalation, err := floatOrDefault("ESCALATION_THRESHOLD", 0.6)
	if err != nil {
		return nil, err
	}

	openAIKey := os.Getenv("OPENAI_API_KEY")
	agentEnabled := openAIKey != ""
	if v := os.Getenv("AGENT_ENABLED"); v != "" {
		agentEnabled = v == "true"
	}

	cfg := &Config{
		HTTPAddr:        envOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        envOrDefault("LOG_LEVEL", "info"),
		LogFormat:       envOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		RegionName:        envOrDefault("REGION_NAME", "San Francisco Bay Area"),
		RegionLat:         regionLat,
		RegionLon:         regionLon,
		RegionRadiusKm:    regionRadius,
		PopulationDensity: intOrDefault("REGION_POPULATION_DENSITY", 2000),
		Situation:         os.Getenv("SITUATION_DESCRIPTION"),

		PollInterval:     pollInterval,
		MaxSourceRetries: intOrDefault("MAX_SOURCE_RETRIES", 3),
		SourceTimeout:    sourceTimeout,
		MaxCycles:        intOrDefault("MAX_CYCLES", 0),

		ConfirmationThreshold: confirmThreshold,
		LowConfidenceFloor:    lowFloor,
		EscalationThreshold:   escalation,

		AgentEnabled: agentEnabled,
		OpenAIKey:    openAIKey,
		OpenAIModel:  envOrDefault("OPENAI_MODEL", "gpt-4o-mini"),
		AgentTimeout: agentTimeout,

		SearchURL:     os.Getenv("SEARCH_CONFIRM_URL"),
		SearchTimeout: searchTimeout,

		PlanningDataDir:       envOrDefault("PLANNING_DATA_DIR", "data"),
		EvacuationWindowHours: intOrDefault("EVACUATION_WINDOW_HOURS", 4),

		NotifyWebhookURL: os.Getenv("NOTIFY_WEBHOOK_URL"),
		NotifyTimeout:    notifyTimeout,

		KafkaEnabled:     os.Getenv("KAFKA_ENABLED") == "true",
		KafkaBrokers:     splitList(envOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaResultTopic: envOrDefault("KAFKA_RESULT_TOPIC", "disaster-run-results"),

		CheckpointDir: os.Getenv("CHECKPOINT_DIR"),
	}

	if cfg.AgentEnabled && cfg.OpenAIKey == "" {
		return nil, fmt.Errorf("%w: AGENT_ENABLED is true but OPENAI_API_KEY is not set", domain.ErrConfig)
	}
	if cfg.RegionRadiusKm <= 0 {
		return nil, fmt.Errorf("%w: REGION_RADIUS_KM must be positive", domain.ErrConfig)
	}
	for _, t := range []struct {
		name  string
		value float64
	}{
		{"CONFIRMATION_THRESHOLD", cfg.ConfirmationThreshold},
		{"LOW_CONFIDENCE_FLOOR", cfg.LowConfidenceFloor},
		{"ESCALATION_THRESHOLD", cfg.EscalationThreshold},
	} {
		if t.value < 0 || t.value > 1 {
			return nil, fmt.Errorf("%w: %s must be in [0,1], got %v", domain.ErrConfig, t.name, t.value)
		}
	}
	if cfg.MaxSourceRetries < 0 {
		return nil, fmt.Errorf("%w: MAX_SOURCE_RETRIES must not be negative", domain.ErrConfig)
	}
	if cfg.EvacuationWindowHours <= 0 {
		return nil, fmt.Errorf("%w: EVACUATION_WINDOW_HOURS must be positive", domain.ErrConfig)
	}
	if cfg.KafkaEnabled && len(cfg.KafkaBrokers) == 0 {
		return nil, fmt.Errorf("%w: KAFKA_ENABLED is true but KAFKA_BROKERS is empty", domain.ErrConfig)
	}

	return cfg, nil
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func intOrDefault(key string, def int) int {
	if s := os.Getenv(key); s != "" {
		if n, err := strconv.Atoi(s); err == nil {
			return n
		}
	}
	return def
}

func floatOrDefault(key string, def float64) (float64, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %q", key, s)
	}
	return v, nil
}

func durationOrDefault(key string, def time.Duration) (time.Duration, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s: %q", key, s)
	}
	return d, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
