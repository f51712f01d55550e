package plan

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/couchcryptid/disaster-response-coordinator/internal/domain"
	"github.com/couchcryptid/disaster-response-coordinator/internal/observability"
	"github.com/couchcryptid/disaster-response-coordinator/internal/workflow"
)

// ContextProvider loads the planning context for a region.
type ContextProvider interface {
	Load(ctx context.Context, region domain.Region) (domain.PlanningContext, error)
}

// Sender delivers one notification. Best-effort: the returned status is
// recorded per recipient and a failure never aborts the planning run.
type Sender interface {
	Send(ctx context.Context, n domain.Notification) (domain.DeliveryStatus, error)
}

// Config carries the planning engine's tunables.
type Config struct {
	// EvacuationWindowHours is the time budget for moving a zone's
	// population; it converts shelter capacity into per-hour route capacity.
	EvacuationWindowHours int
}

// Engine executes the planning workflow graph. Sender is optional; without
// one, drafted notifications stay pending.
type Engine struct {
	graph    workflow.Graph
	provider ContextProvider
	sender   Sender

	cfg     Config
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewEngine builds the planning graph.
func NewEngine(provider ContextProvider, sender Sender, cfg Config, logger *slog.Logger, metrics *observability.Metrics) (*Engine, error) {
	if cfg.EvacuationWindowHours <= 0 {
		cfg.EvacuationWindowHours = 4
	}
	e := &Engine{
		provider: provider,
		sender:   sender,
		cfg:      cfg,
		logger:   logger,
		metrics:  metrics,
	}

	graph, err := workflow.New(domain.PhaseLoadingContext, map[domain.Phase]workflow.Transition{
		domain.PhaseLoadingContext: {
			Node: workflow.NodeFunc(e.loadContext),
			Next: map[workflow.Outcome]domain.Phase{
				workflow.OutcomeProceed: domain.PhaseAssessingRequirements,
				workflow.OutcomeFail:    domain.PhaseErrorHandling,
			},
		},
		domain.PhaseAssessingRequirements: {
			Node: workflow.NodeFunc(e.assessRequirements),
			Next: map[workflow.Outcome]domain.Phase{
				workflow.OutcomeProceed: domain.PhaseCreatingDeploymentPlan,
			},
		},
		domain.PhaseCreatingDeploymentPlan: {
			Node: workflow.NodeFunc(e.createDeploymentPlan),
			Next: map[workflow.Outcome]domain.Phase{
				workflow.OutcomeProceed: domain.PhaseCreatingEvacuationPlan,
			},
		},
		domain.PhaseCreatingEvacuationPlan: {
			Node: workflow.NodeFunc(e.createEvacuationPlan),
			Next: map[workflow.Outcome]domain.Phase{
				workflow.OutcomeProceed: domain.PhaseCoordinatingResources,
			},
		},
		domain.PhaseCoordinatingResources: {
			Node: workflow.NodeFunc(e.coordinateResources),
			Next: map[workflow.Outcome]domain.Phase{
				workflow.OutcomeProceed: domain.PhaseGeneratingNotifications,
			},
		},
		domain.PhaseGeneratingNotifications: {
			Node: workflow.NodeFunc(e.generateNotifications),
			Next: map[workflow.Outcome]domain.Phase{
				workflow.OutcomeProceed: domain.PhaseSendingNotifications,
			},
		},
		domain.PhaseSendingNotifications: {
			Node: workflow.NodeFunc(e.sendNotifications),
			Next: map[workflow.Outcome]domain.Phase{
				workflow.OutcomeProceed: domain.PhasePlanningComplete,
			},
		},
	}, domain.PhasePlanningComplete, domain.PhaseErrorHandling)
	if err != nil {
		return nil, err
	}
	e.graph = graph
	return e, nil
}

// Run executes the planning workflow against an escalated run state. The
// run terminates in exactly one of the planning-complete or error-handling
// phases.
func (e *Engine) Run(ctx context.Context, state *domain.RunState) error {
	if state.Event == nil {
		return fmt.Errorf("%w: planning invoked without event record", domain.ErrLogic)
	}

	if err := state.Apply(domain.StateUpdate{Phase: domain.PhaseLoadingContext}); err != nil {
		return err
	}
	if err := e.graph.Run(ctx, state, workflow.Options{Logger: e.logger}); err != nil {
		e.metrics.PlanningRuns.WithLabelValues("error").Inc()
		return err
	}

	if state.Phase == domain.PhaseErrorHandling {
		e.metrics.PlanningRuns.WithLabelValues("error").Inc()
		e.logger.Error("planning run failed", "error", state.GlobalError)
		return nil
	}

	e.metrics.PlanningRuns.WithLabelValues("complete").Inc()
	e.logger.Info("planning complete",
		"deployments", len(state.Deployments),
		"routes", len(state.Routes),
		"notifications", len(state.Notifications))
	return nil
}

// TriggerPlanning lets the detection engine hand off directly; the
// orchestrator wires the planning engine in as the trigger collaborator.
func (e *Engine) TriggerPlanning(ctx context.Context, state *domain.RunState) error {
	return e.Run(ctx, state)
}

func (e *Engine) loadContext(ctx context.Context, state *domain.RunState) (domain.StateUpdate, workflow.Outcome, error) {
	pctx, err := e.provider.Load(ctx, state.Region)
	if err != nil {
		if ctx.Err() != nil {
			return domain.StateUpdate{}, 0, ctx.Err()
		}
		e.logger.Error("planning context load failed", "error", err)
		return domain.StateUpdate{
			GlobalError: fmt.Sprintf("context load: %v", err),
		}, workflow.OutcomeFail, nil
	}
	return domain.StateUpdate{Context: &pctx}, workflow.OutcomeProceed, nil
}

// assessRequirements summarizes what the plans must cover. Later nodes run
// best-effort; a failure in one is recorded and the run still proceeds so a
// broken evacuation computation cannot block deployment output.
func (e *Engine) assessRequirements(ctx context.Context, state *domain.RunState) (domain.StateUpdate, workflow.Outcome, error) {
	severity := state.Event.Severity
	notes := []string{
		fmt.Sprintf("requirements: %s %s event, %d people at risk across %d zones, %d teams available",
			severity.SeverityLevel,
			state.Event.Classification.DisasterType,
			severity.PopulationAtRisk,
			len(state.Context.PopulationZones),
			countAvailable(state.Context.Teams)),
	}
	if severity.ImpactAssessment[domain.ImpactEvacuationNeeded] {
		notes = append(notes, "requirements: evacuation planning required")
	}
	return domain.StateUpdate{Notes: notes}, workflow.OutcomeProceed, nil
}

func (e *Engine) createDeploymentPlan(ctx context.Context, state *domain.RunState) (domain.StateUpdate, workflow.Outcome, error) {
	deployments := buildDeploymentPlan(*state.Context, state.Event.Severity)
	if len(deployments) == 0 {
		e.logger.Warn("no teams available for deployment")
		return domain.StateUpdate{
			ProcessingError: "deployment: no available teams",
		}, workflow.OutcomeProceed, nil
	}
	e.logger.Info("deployment plan created", "assignments", len(deployments))
	return domain.StateUpdate{Deployments: deployments}, workflow.OutcomeProceed, nil
}

func (e *Engine) createEvacuationPlan(ctx context.Context, state *domain.RunState) (domain.StateUpdate, workflow.Outcome, error) {
	if !state.Event.Severity.ImpactAssessment[domain.ImpactEvacuationNeeded] {
		return domain.StateUpdate{
			Notes: []string{"evacuation: not required for this event"},
		}, workflow.OutcomeProceed, nil
	}

	routes := buildEvacuationPlan(*state.Context, e.cfg.EvacuationWindowHours)
	if len(routes) == 0 {
		e.logger.Warn("no evacuation routes could be planned")
		return domain.StateUpdate{
			ProcessingError: "evacuation: no feasible routes",
		}, workflow.OutcomeProceed, nil
	}
	e.logger.Info("evacuation plan created", "routes", len(routes))
	return domain.StateUpdate{Routes: routes}, workflow.OutcomeProceed, nil
}

// coordinateResources reconciles the plans: a team referenced more than
// once keeps only its highest-priority assignment, the rest are dropped and
// logged.
func (e *Engine) coordinateResources(ctx context.Context, state *domain.RunState) (domain.StateUpdate, workflow.Outcome, error) {
	seen := make(map[string]bool, len(state.Deployments))
	kept := make([]domain.Deployment, 0, len(state.Deployments))
	var notes []string

	for _, d := range state.Deployments {
		if seen[d.TeamID] {
			notes = append(notes, fmt.Sprintf("coordination: dropped duplicate assignment of team %s to zone %s", d.TeamID, d.ZoneID))
			e.logger.Warn("dropping duplicate team assignment", "team", d.TeamID, "zone", d.ZoneID)
			continue
		}
		seen[d.TeamID] = true
		kept = append(kept, d)
	}

	if notes == nil {
		notes = []string{"coordination: no resource conflicts"}
	}
	return domain.StateUpdate{Deployments: kept, Notes: notes}, workflow.OutcomeProceed, nil
}

func (e *Engine) generateNotifications(ctx context.Context, state *domain.RunState) (domain.StateUpdate, workflow.Outcome, error) {
	notifications, err := draftNotifications(state)
	if err != nil {
		if ctx.Err() != nil {
			return domain.StateUpdate{}, 0, ctx.Err()
		}
		e.logger.Error("notification drafting failed", "error", err)
		return domain.StateUpdate{
			GlobalError: fmt.Sprintf("notifications: %v", err),
		}, workflow.OutcomeProceed, nil
	}
	return domain.StateUpdate{Notifications: notifications}, workflow.OutcomeProceed, nil
}

func (e *Engine) sendNotifications(ctx context.Context, state *domain.RunState) (domain.StateUpdate, workflow.Outcome, error) {
	if e.sender == nil || len(state.Notifications) == 0 {
		return domain.StateUpdate{}, workflow.OutcomeProceed, nil
	}

	updated := make([]domain.Notification, len(state.Notifications))
	copy(updated, state.Notifications)

	for i := range updated {
		status, err := e.sender.Send(ctx, updated[i])
		if err != nil {
			if ctx.Err() != nil {
				return domain.StateUpdate{}, 0, ctx.Err()
			}
			updated[i].Status = domain.DeliveryFailed
			updated[i].Error = err.Error()
			e.metrics.NotificationSends.WithLabelValues("failed").Inc()
			e.logger.Warn("notification delivery failed",
				"notification_id", updated[i].ID, "recipient", updated[i].RecipientType, "error", err)
			continue
		}
		updated[i].Status = status
		e.metrics.NotificationSends.WithLabelValues(string(status)).Inc()
	}

	return domain.StateUpdate{Notifications: updated}, workflow.OutcomeProceed, nil
}

func countAvailable(teams []domain.ResponseTeam) int {
	n := 0
	for _, t := range teams {
		if t.Available {
			n++
		}
	}
	return n
}
