// Package detect drives the hazard detection workflow: polling external
// feeds, classifying signals, confirming low-confidence threats, assessing
// severity, and escalating to the planning engine.
package detect

import (
	"context"
	"log/slog"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/disaster-response-coordinator/internal/domain"
	"github.com/couchcryptid/disaster-response-coordinator/internal/observability"
	"github.com/couchcryptid/disaster-response-coordinator/internal/workflow"
)

// Fetcher polls the configured hazard sources for one region.
type Fetcher interface {
	Fetch(ctx context.Context, region domain.Region) ([]domain.HazardRecord, error)
}

// Classifier turns one cycle's records into a threat classification.
type Classifier interface {
	Classify(ctx context.Context, records []domain.HazardRecord, region domain.Region, situation string) (domain.Classification, error)
}

// Confirmer cross-checks a low-confidence classification externally.
type Confirmer interface {
	Confirm(ctx context.Context, cls domain.Classification, region domain.Region) (bool, error)
}

// ZoneLocator finds shelter-capable infrastructure for an escalated event.
type ZoneLocator interface {
	Locate(ctx context.Context, region domain.Region, disasterType domain.DisasterType) ([]domain.SafeZone, error)
}

// PlanningTrigger hands an escalated run state to the planning engine. The
// orchestrator wires this; the detection engine never imports planning.
type PlanningTrigger interface {
	TriggerPlanning(ctx context.Context, state *domain.RunState) error
}

// Config carries the detection engine's tunable thresholds. Higher values
// mean more conservative escalation. Cycle pacing (poll interval, cycle
// bounds) belongs to the orchestration driver, not the engine.
type Config struct {
	ConfirmationThreshold float64
	LowConfidenceFloor    float64
	EscalationThreshold   float64
}

// Engine executes the detection workflow graph. Classifier, Confirmer,
// ZoneLocator, and PlanningTrigger are optional; a nil collaborator routes
// its phase along the degraded path (fallback classification, no-threat for
// classifications that would need confirmation, empty zones, trigger flag
// only).
type Engine struct {
	graph    workflow.Graph
	fetcher  Fetcher
	primary  Classifier
	fallback Classifier
	confirm  Confirmer
	zones    ZoneLocator
	trigger  PlanningTrigger

	cfg     Config
	clock   clockwork.Clock
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewEngine builds the detection graph. fallback must not be nil; it is the
// classifier of last resort.
func NewEngine(
	fetcher Fetcher,
	primary Classifier,
	fallback Classifier,
	confirm Confirmer,
	zones ZoneLocator,
	trigger PlanningTrigger,
	cfg Config,
	clock clockwork.Clock,
	logger *slog.Logger,
	metrics *observability.Metrics,
) (*Engine, error) {
	e := &Engine{
		fetcher:  fetcher,
		primary:  primary,
		fallback: fallback,
		confirm:  confirm,
		zones:    zones,
		trigger:  trigger,
		cfg:      cfg,
		clock:    clock,
		logger:   logger,
		metrics:  metrics,
	}

	graph, err := workflow.New(domain.PhasePolling, map[domain.Phase]workflow.Transition{
		domain.PhasePolling: {
			Node: workflow.NodeFunc(e.poll),
			Next: map[workflow.Outcome]domain.Phase{
				workflow.OutcomeSignal:   domain.PhaseAnalyzing,
				workflow.OutcomeNoSignal: domain.PhaseWaiting,
			},
		},
		domain.PhaseAnalyzing: {
			Node: workflow.NodeFunc(e.analyze),
			Next: map[workflow.Outcome]domain.Phase{
				workflow.OutcomeThreat:   domain.PhaseClassifying,
				workflow.OutcomeNoThreat: domain.PhaseWaiting,
			},
		},
		domain.PhaseClassifying: {
			Node: workflow.NodeFunc(e.classify),
			Next: map[workflow.Outcome]domain.Phase{
				workflow.OutcomeThreat:            domain.PhaseAssessingSeverity,
				workflow.OutcomeNeedsConfirmation: domain.PhaseConfirming,
				workflow.OutcomeNoThreat:          domain.PhaseWaiting,
			},
		},
		domain.PhaseConfirming: {
			Node: workflow.NodeFunc(e.confirmViaSearch),
			Next: map[workflow.Outcome]domain.Phase{
				workflow.OutcomeConfirmed: domain.PhaseAssessingSeverity,
				workflow.OutcomeRejected:  domain.PhaseLoggingFalsePositive,
			},
		},
		domain.PhaseLoggingFalsePositive: {
			Node: workflow.NodeFunc(e.logFalsePositive),
			Next: map[workflow.Outcome]domain.Phase{
				workflow.OutcomeProceed: domain.PhaseWaiting,
			},
		},
		domain.PhaseAssessingSeverity: {
			Node: workflow.NodeFunc(e.assessSeverity),
			Next: map[workflow.Outcome]domain.Phase{
				workflow.OutcomeEscalate: domain.PhaseSafeZoneAnalysis,
				workflow.OutcomeModerate: domain.PhaseCreatingEvent,
			},
		},
		domain.PhaseSafeZoneAnalysis: {
			Node: workflow.NodeFunc(e.analyzeSafeZones),
			Next: map[workflow.Outcome]domain.Phase{
				workflow.OutcomeProceed: domain.PhaseCreatingEvent,
			},
		},
		domain.PhaseCreatingEvent: {
			Node: workflow.NodeFunc(e.createEvent),
			Next: map[workflow.Outcome]domain.Phase{
				workflow.OutcomeEscalate: domain.PhaseTriggeringPlanning,
				workflow.OutcomeWait:     domain.PhaseWaiting,
			},
		},
		domain.PhaseTriggeringPlanning: {
			Node: workflow.NodeFunc(e.triggerPlanning),
			Next: map[workflow.Outcome]domain.Phase{
				workflow.OutcomeProceed: domain.PhaseWaiting,
			},
		},
	}, domain.PhaseWaiting)
	if err != nil {
		return nil, err
	}
	e.graph = graph
	return e, nil
}

// RunCycle executes exactly one detection cycle: from polling through to the
// waiting boundary. The state is left at waiting (or wherever the context
// cancelled it).
func (e *Engine) RunCycle(ctx context.Context, state *domain.RunState) error {
	e.metrics.MonitoringCycles.Inc()
	start := e.clock.Now()
	defer func() {
		e.metrics.CycleDuration.Observe(e.clock.Since(start).Seconds())
	}()

	if state.Phase == domain.PhaseWaiting {
		// A prior cycle parked the run at waiting; re-enter at polling.
		if err := state.Apply(domain.StateUpdate{Phase: domain.PhasePolling}); err != nil {
			return err
		}
	}

	return e.graph.Run(ctx, state, workflow.Options{
		PauseAt: []domain.Phase{domain.PhaseWaiting},
		Logger:  e.logger,
	})
}
