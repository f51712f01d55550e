// Package orchestrator drives complete monitoring runs: it paces detection
// cycles, checkpoints run state between cycles, summarizes each cycle into a
// result, and publishes results to the configured sink.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/disaster-response-coordinator/internal/domain"
	"github.com/couchcryptid/disaster-response-coordinator/internal/observability"
)

// Detector runs one detection cycle over a run state. Planning is reached
// through the detector's own escalation wiring, never called here directly.
type Detector interface {
	RunCycle(ctx context.Context, state *domain.RunState) error
}

// Publisher delivers one cycle result to an external sink.
type Publisher interface {
	PublishResult(ctx context.Context, res Result) error
}

// DetectionSummary condenses the detection half of a run state.
type DetectionSummary struct {
	RecordsObserved int                  `json:"records_observed"`
	ThreatDetected  bool                 `json:"threat_detected"`
	DisasterType    domain.DisasterType  `json:"disaster_type,omitempty"`
	ConfidenceScore float64              `json:"confidence_score,omitempty"`
	SeverityLevel   domain.SeverityLevel `json:"severity_level,omitempty"`
	SeverityScore   float64              `json:"severity_score,omitempty"`
	EventID         string               `json:"event_id,omitempty"`
	Escalated       bool                 `json:"escalated"`
	SafeZones       int                  `json:"safe_zones"`
}

// PlanningSummary condenses the planning half of a run state. It is present
// only when detection escalated into planning.
type PlanningSummary struct {
	Deployments         int      `json:"deployments"`
	EvacuationRoutes    int      `json:"evacuation_routes"`
	NotificationsSent   int      `json:"notifications_sent"`
	NotificationsFailed int      `json:"notifications_failed"`
	CoordinationNotes   []string `json:"coordination_notes,omitempty"`
}

// Result is the external record of one completed cycle. The session ID is
// the resumption token: a driver with the same checkpoint directory can pick
// the run back up with Resume.
type Result struct {
	SessionID         string           `json:"session_id"`
	Timestamp         time.Time        `json:"timestamp"`
	Region            string           `json:"region"`
	Phase             domain.Phase     `json:"management_phase"`
	PlanningTriggered bool             `json:"planning_triggered"`
	Detection         DetectionSummary `json:"detection_summary"`
	Planning          *PlanningSummary `json:"planning_summary,omitempty"`
	ProcessingErrors  []string         `json:"processing_errors,omitempty"`
	GlobalError       string           `json:"global_error_message,omitempty"`
}

// Config paces the continuous run loop.
type Config struct {
	PollInterval time.Duration
	MaxCycles    int // 0 = unbounded
}

// Driver owns the run lifecycle. Store and publisher are optional; without a
// store runs are not resumable, without a publisher results stay local.
type Driver struct {
	detector  Detector
	store     *Store
	publisher Publisher

	cfg     Config
	clock   clockwork.Clock
	logger  *slog.Logger
	metrics *observability.Metrics

	mu     sync.RWMutex
	latest *Result
}

// NewDriver wires the orchestration driver.
func NewDriver(
	detector Detector,
	store *Store,
	publisher Publisher,
	cfg Config,
	clock clockwork.Clock,
	logger *slog.Logger,
	metrics *observability.Metrics,
) *Driver {
	return &Driver{
		detector:  detector,
		store:     store,
		publisher: publisher,
		cfg:       cfg,
		clock:     clock,
		logger:    logger,
		metrics:   metrics,
	}
}

// RunOnce executes a single detection cycle over a fresh run state and
// returns its result. An escalated cycle carries planning output too.
func (d *Driver) RunOnce(ctx context.Context, region domain.Region, situation string) (Result, error) {
	state := domain.NewRunState(region, situation)
	return d.cycle(ctx, state)
}

// RunContinuous executes cycles until the context is cancelled or the
// configured cycle bound is reached. Cancellation takes effect at the
// waiting boundary between cycles, never mid-node.
func (d *Driver) RunContinuous(ctx context.Context, region domain.Region, situation string) error {
	state := domain.NewRunState(region, situation)

	d.logger.Info("orchestration loop started",
		"session_id", state.SessionID, "region", region.Name,
		"poll_interval", d.cfg.PollInterval, "max_cycles", d.cfg.MaxCycles)
	d.metrics.EngineRunning.Set(1)
	defer d.metrics.EngineRunning.Set(0)

	return d.loop(ctx, state)
}

// Resume rehydrates a checkpointed session and continues its cycle loop from
// the recorded phase.
func (d *Driver) Resume(ctx context.Context, sessionID string) error {
	if d.store == nil {
		return fmt.Errorf("resume %s: no checkpoint store configured", sessionID)
	}
	state, err := d.store.Load(sessionID)
	if err != nil {
		return err
	}

	d.logger.Info("resuming session",
		"session_id", state.SessionID, "phase", state.Phase, "region", state.Region.Name)
	d.metrics.EngineRunning.Set(1)
	defer d.metrics.EngineRunning.Set(0)

	return d.loop(ctx, state)
}

// Latest returns the most recent cycle result, if any cycle has completed.
func (d *Driver) Latest() (Result, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.latest == nil {
		return Result{}, false
	}
	return *d.latest, true
}

func (d *Driver) loop(ctx context.Context, state *domain.RunState) error {
	for cycle := 0; d.cfg.MaxCycles == 0 || cycle < d.cfg.MaxCycles; cycle++ {
		if _, err := d.cycle(ctx, state); err != nil {
			if ctx.Err() != nil {
				d.logger.Info("orchestration loop stopping", "reason", ctx.Err())
				return nil
			}
			return fmt.Errorf("cycle %d: %w", cycle+1, err)
		}

		select {
		case <-ctx.Done():
			d.logger.Info("orchestration loop stopping", "reason", ctx.Err())
			return nil
		case <-d.clock.After(d.cfg.PollInterval):
		}
	}

	d.logger.Info("orchestration loop reached cycle bound", "cycles", d.cfg.MaxCycles)
	return nil
}

// cycle runs one detection cycle, then checkpoints and publishes. Checkpoint
// and publish failures are logged, not fatal; the cycle's detection result
// stands on its own.
func (d *Driver) cycle(ctx context.Context, state *domain.RunState) (Result, error) {
	if err := d.detector.RunCycle(ctx, state); err != nil {
		return Result{}, err
	}

	res := Summarize(state, d.clock.Now().UTC())
	d.mu.Lock()
	d.latest = &res
	d.mu.Unlock()

	if d.store != nil {
		if err := d.store.Save(state); err != nil {
			d.logger.Warn("checkpoint save failed", "session_id", state.SessionID, "error", err)
		}
	}
	if d.publisher != nil {
		if err := d.publisher.PublishResult(ctx, res); err != nil {
			d.logger.Warn("result publish failed", "session_id", state.SessionID, "error", err)
		}
	}
	return res, nil
}

// Summarize condenses a run state into its external result record.
func Summarize(state *domain.RunState, now time.Time) Result {
	res := Result{
		SessionID:         state.SessionID,
		Timestamp:         now,
		Region:            state.Region.Name,
		Phase:             state.Phase,
		PlanningTriggered: state.PlanningTriggered,
		Detection: DetectionSummary{
			RecordsObserved: len(state.MonitoringData),
			SafeZones:       len(state.SafeZones),
		},
		ProcessingErrors: state.ProcessingErrors,
		GlobalError:      state.GlobalError,
	}

	if cls := state.Classification; cls != nil {
		res.Detection.ThreatDetected = cls.ThreatDetected
		res.Detection.DisasterType = cls.DisasterType
		res.Detection.ConfidenceScore = cls.ConfidenceScore
		res.Detection.SeverityLevel = cls.SeverityLevel
	}
	if sev := state.Severity; sev != nil {
		res.Detection.SeverityScore = sev.SeverityScore
		res.Detection.SeverityLevel = sev.SeverityLevel
	}
	if event := state.Event; event != nil {
		res.Detection.EventID = event.ID
		res.Detection.Escalated = event.Escalated
	}

	if state.PlanningTriggered {
		planning := &PlanningSummary{
			Deployments:       len(state.Deployments),
			EvacuationRoutes:  len(state.Routes),
			CoordinationNotes: state.CoordinationNotes,
		}
		for _, n := range state.Notifications {
			switch n.Status {
			case domain.DeliverySent:
				planning.NotificationsSent++
			case domain.DeliveryFailed:
				planning.NotificationsFailed++
			}
		}
		res.Planning = planning
	}
	return res
}
