package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jonboulle/clockwork"

	httpadapter "github.com/couchcryptid/disaster-response-coordinator/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/disaster-response-coordinator/internal/adapter/kafka"
	"github.com/couchcryptid/disaster-response-coordinator/internal/agent"
	"github.com/couchcryptid/disaster-response-coordinator/internal/config"
	"github.com/couchcryptid/disaster-response-coordinator/internal/detect"
	"github.com/couchcryptid/disaster-response-coordinator/internal/domain"
	"github.com/couchcryptid/disaster-response-coordinator/internal/gateway"
	"github.com/couchcryptid/disaster-response-coordinator/internal/notify"
	"github.com/couchcryptid/disaster-response-coordinator/internal/observability"
	"github.com/couchcryptid/disaster-response-coordinator/internal/orchestrator"
	"github.com/couchcryptid/disaster-response-coordinator/internal/plan"
)

// readiness reports ready once the planning data directory loads cleanly, so
// the service never accepts traffic it cannot plan for.
type readiness struct {
	loader *plan.ContextLoader
	region domain.Region
}

func (r *readiness) CheckReadiness(ctx context.Context) error {
	_, err := r.loader.Load(ctx, r.region)
	return err
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics()
	clock := clockwork.NewRealClock()

	region := domain.Region{
		Name:              cfg.RegionName,
		CenterLat:         cfg.RegionLat,
		CenterLon:         cfg.RegionLon,
		RadiusKm:          cfg.RegionRadiusKm,
		PopulationDensity: cfg.PopulationDensity,
	}

	// Hazard feeds.
	sources := []gateway.Source{
		gateway.NewUSGSClient(cfg.SourceTimeout, clock, logger),
		gateway.NewNOAAClient(cfg.SourceTimeout, logger),
	}
	fetcher := gateway.NewMultiSource(sources, cfg.MaxSourceRetries, clock, logger, metrics)

	// Classification (feature-flagged via AGENT_ENABLED / OPENAI_API_KEY).
	var primary detect.Classifier
	if cfg.AgentEnabled {
		primary = agent.NewClassifier(cfg.OpenAIKey, cfg.OpenAIModel, cfg.AgentTimeout, logger)
		logger.Info("model classification enabled", "model", cfg.OpenAIModel)
	} else {
		logger.Info("model classification disabled, using rule-based fallback")
	}
	fallback := agent.NewFallbackClassifier()

	var confirmer detect.Confirmer
	if cfg.SearchURL != "" {
		confirmer = agent.NewSearchConfirmer(cfg.SearchURL, cfg.SearchTimeout, logger)
	}

	// Planning.
	loader := plan.NewContextLoader(cfg.PlanningDataDir, logger)

	var sender plan.Sender
	if cfg.NotifyWebhookURL != "" {
		sender = notify.NewWebhookSender(cfg.NotifyWebhookURL, cfg.NotifyTimeout, logger)
	} else {
		logger.Info("notification webhook disabled, notifications stay drafted")
	}

	planner, err := plan.NewEngine(loader, sender, plan.Config{
		EvacuationWindowHours: cfg.EvacuationWindowHours,
	}, logger, metrics)
	if err != nil {
		logger.Error("failed to build planning engine", "error", err)
		os.Exit(1)
	}

	// Detection, escalating into the planning engine.
	detector, err := detect.NewEngine(fetcher, primary, fallback, confirmer, loader, planner,
		detect.Config{
			ConfirmationThreshold: cfg.ConfirmationThreshold,
			LowConfidenceFloor:    cfg.LowConfidenceFloor,
			EscalationThreshold:   cfg.EscalationThreshold,
		}, clock, logger, metrics)
	if err != nil {
		logger.Error("failed to build detection engine", "error", err)
		os.Exit(1)
	}

	// Orchestration: checkpointing and result publishing are both optional.
	var store *orchestrator.Store
	if cfg.CheckpointDir != "" {
		store, err = orchestrator.NewStore(cfg.CheckpointDir, logger)
		if err != nil {
			logger.Error("failed to open checkpoint store", "error", err)
			os.Exit(1)
		}
	}

	var publisher orchestrator.Publisher
	var kafkaPublisher *kafkaadapter.Publisher
	if cfg.KafkaEnabled {
		kafkaPublisher = kafkaadapter.NewPublisher(cfg.KafkaBrokers, cfg.KafkaResultTopic, logger)
		publisher = kafkaPublisher
		logger.Info("kafka result publishing enabled", "topic", cfg.KafkaResultTopic)
	}

	driver := orchestrator.NewDriver(detector, store, publisher, orchestrator.Config{
		PollInterval: cfg.PollInterval,
		MaxCycles:    cfg.MaxCycles,
	}, clock, logger, metrics)

	var sessions httpadapter.SessionLister
	if store != nil {
		sessions = store
	}
	srv := httpadapter.NewServer(cfg.HTTPAddr, &readiness{loader: loader, region: region}, driver, sessions, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	// Start the monitoring loop.
	go func() {
		if err := driver.RunContinuous(ctx, region, cfg.Situation); err != nil {
			logger.Error("monitoring loop error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if kafkaPublisher != nil {
		if err := kafkaPublisher.Close(); err != nil {
			logger.Error("kafka publisher close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
}
