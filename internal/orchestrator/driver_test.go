package orchestrator

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/disaster-response-coordinator/internal/domain"
	"github.com/couchcryptid/disaster-response-coordinator/internal/observability"
)

// scriptedDetector applies a per-cycle state update, simulating what the
// detection graph would leave behind at the waiting boundary.
type scriptedDetector struct {
	updates []domain.StateUpdate
	err     error
	calls   int
	seen    []*domain.RunState
}

func (s *scriptedDetector) RunCycle(ctx context.Context, state *domain.RunState) error {
	i := s.calls
	s.calls++
	s.seen = append(s.seen, state)
	if s.err != nil {
		return s.err
	}
	if i < len(s.updates) {
		if err := state.Apply(s.updates[i]); err != nil {
			return err
		}
	}
	return state.Apply(domain.StateUpdate{Phase: domain.PhaseWaiting})
}

type recordingPublisher struct {
	results []Result
	err     error
}

func (p *recordingPublisher) PublishResult(ctx context.Context, res Result) error {
	if p.err != nil {
		return p.err
	}
	p.results = append(p.results, res)
	return nil
}

func escalatedUpdate() domain.StateUpdate {
	cls := domain.Classification{
		ThreatDetected:  true,
		DisasterType:    domain.DisasterEarthquake,
		ConfidenceScore: 0.92,
		SeverityLevel:   domain.SeverityCritical,
		Source:          "model",
	}
	severity := domain.SeverityAssessment{
		SeverityScore:      0.85,
		SeverityLevel:      domain.SeverityCritical,
		PopulationAtRisk:   50000,
		EscalationRequired: true,
		ImpactAssessment: map[domain.ImpactCategory]bool{
			domain.ImpactEvacuationNeeded: true,
		},
	}
	triggered := true
	return domain.StateUpdate{
		MonitoringData: []domain.HazardRecord{
			{ID: "eq-1", Source: "usgs_earthquake", EventType: domain.DisasterEarthquake, Magnitude: 6.8, Severity: domain.SeverityCritical},
		},
		Classification: &cls,
		Severity:       &severity,
		Event: &domain.EventRecord{
			ID: "event-1", Classification: cls, Severity: severity, Escalated: true,
		},
		PlanningTriggered: &triggered,
		Deployments: []domain.Deployment{
			{TeamID: "team-001", ZoneID: "zone-001", Priority: domain.SeverityCritical},
		},
		Routes: []domain.EvacuationRoute{
			{ID: "route-1", FromZoneID: "zone-001", ToCenterID: "center-001", CapacityPerHour: 1000},
		},
		Notifications: []domain.Notification{
			{ID: "n1", RecipientType: "emergency_management", Status: domain.DeliverySent},
			{ID: "n2", RecipientType: "response_team", Status: domain.DeliverySent},
			{ID: "n3", RecipientType: "public", Status: domain.DeliveryFailed, Error: "webhook unreachable"},
		},
	}
}

func newTestDriver(detector Detector, store *Store, publisher Publisher, cfg Config, clock clockwork.Clock) *Driver {
	return NewDriver(detector, store, publisher, cfg, clock,
		testLogger(), observability.NewMetricsForTesting())
}

func TestRunOnce_SummarizesEscalatedCycle(t *testing.T) {
	detector := &scriptedDetector{updates: []domain.StateUpdate{escalatedUpdate()}}
	publisher := &recordingPublisher{}
	d := newTestDriver(detector, nil, publisher, Config{}, clockwork.NewRealClock())

	res, err := d.RunOnce(context.Background(), testRegion(), "")
	require.NoError(t, err)

	assert.Equal(t, domain.PhaseWaiting, res.Phase)
	assert.Equal(t, "San Francisco Bay Area", res.Region)
	assert.True(t, res.PlanningTriggered)
	assert.True(t, res.Detection.ThreatDetected)
	assert.Equal(t, domain.DisasterEarthquake, res.Detection.DisasterType)
	assert.Equal(t, "event-1", res.Detection.EventID)
	assert.True(t, res.Detection.Escalated)
	assert.InDelta(t, 0.85, res.Detection.SeverityScore, 1e-9)

	require.NotNil(t, res.Planning)
	assert.Equal(t, 1, res.Planning.Deployments)
	assert.Equal(t, 1, res.Planning.EvacuationRoutes)
	assert.Equal(t, 2, res.Planning.NotificationsSent)
	assert.Equal(t, 1, res.Planning.NotificationsFailed)

	require.Len(t, publisher.results, 1)
	assert.Equal(t, res.SessionID, publisher.results[0].SessionID)

	latest, ok := d.Latest()
	require.True(t, ok)
	assert.Equal(t, res, latest)
}

func TestRunOnce_QuietCycleHasNoPlanningSummary(t *testing.T) {
	detector := &scriptedDetector{}
	d := newTestDriver(detector, nil, nil, Config{}, clockwork.NewRealClock())

	res, err := d.RunOnce(context.Background(), testRegion(), "")
	require.NoError(t, err)

	assert.False(t, res.Detection.ThreatDetected)
	assert.Empty(t, res.Detection.EventID)
	assert.Nil(t, res.Planning)
}

func TestLatest_EmptyBeforeFirstCycle(t *testing.T) {
	d := newTestDriver(&scriptedDetector{}, nil, nil, Config{}, clockwork.NewRealClock())
	_, ok := d.Latest()
	assert.False(t, ok)
}

func TestRunContinuous_MaxCyclesBound(t *testing.T) {
	detector := &scriptedDetector{}
	cfg := Config{PollInterval: time.Millisecond, MaxCycles: 3}
	d := newTestDriver(detector, nil, nil, cfg, clockwork.NewRealClock())

	require.NoError(t, d.RunContinuous(context.Background(), testRegion(), ""))
	assert.Equal(t, 3, detector.calls)
}

func TestRunContinuous_CancellationAtWaitingBoundary(t *testing.T) {
	detector := &scriptedDetector{}
	clock := clockwork.NewFakeClock()
	cfg := Config{PollInterval: time.Minute}
	d := newTestDriver(detector, nil, nil, cfg, clock)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- d.RunContinuous(ctx, testRegion(), "")
	}()

	// First cycle completes, then the driver waits on the fake clock.
	clock.BlockUntilContext(context.Background(), 1)
	cancel()

	require.NoError(t, <-done)
	assert.Equal(t, 1, detector.calls)
}

func TestRunContinuous_DetectorErrorAbortsWithCycleNumber(t *testing.T) {
	detector := &scriptedDetector{err: errors.New("graph wiring broken")}
	cfg := Config{PollInterval: time.Millisecond, MaxCycles: 5}
	d := newTestDriver(detector, nil, nil, cfg, clockwork.NewRealClock())

	err := d.RunContinuous(context.Background(), testRegion(), "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cycle 1")
	assert.Equal(t, 1, detector.calls)
}

func TestRunContinuous_CheckpointsEveryCycle(t *testing.T) {
	store, err := NewStore(t.TempDir(), testLogger())
	require.NoError(t, err)

	detector := &scriptedDetector{updates: []domain.StateUpdate{escalatedUpdate()}}
	cfg := Config{PollInterval: time.Millisecond, MaxCycles: 2}
	d := newTestDriver(detector, store, nil, cfg, clockwork.NewRealClock())

	require.NoError(t, d.RunContinuous(context.Background(), testRegion(), ""))

	ids, err := store.Sessions()
	require.NoError(t, err)
	require.Len(t, ids, 1, "one session checkpointed across cycles")

	state, err := store.Load(ids[0])
	require.NoError(t, err)
	assert.Equal(t, domain.PhaseWaiting, state.Phase)
	assert.True(t, state.PlanningTriggered)
}

func TestResume_ContinuesCheckpointedSession(t *testing.T) {
	store, err := NewStore(t.TempDir(), testLogger())
	require.NoError(t, err)

	// First driver runs one cycle and checkpoints at the waiting boundary.
	first := &scriptedDetector{updates: []domain.StateUpdate{escalatedUpdate()}}
	d1 := newTestDriver(first, store, nil, Config{PollInterval: time.Millisecond, MaxCycles: 1}, clockwork.NewRealClock())
	require.NoError(t, d1.RunContinuous(context.Background(), testRegion(), "aftershocks ongoing"))

	ids, err := store.Sessions()
	require.NoError(t, err)
	require.Len(t, ids, 1)

	// Second driver resumes the same session with its accumulated state.
	second := &scriptedDetector{}
	d2 := newTestDriver(second, store, nil, Config{PollInterval: time.Millisecond, MaxCycles: 1}, clockwork.NewRealClock())
	require.NoError(t, d2.Resume(context.Background(), ids[0]))

	require.Len(t, second.seen, 1)
	resumed := second.seen[0]
	assert.Equal(t, ids[0], resumed.SessionID)
	assert.Equal(t, "aftershocks ongoing", resumed.Situation)
	assert.True(t, resumed.PlanningTriggered)
	require.NotNil(t, resumed.Event)
	assert.Equal(t, "event-1", resumed.Event.ID)
}

func TestResume_UnknownSession(t *testing.T) {
	store, err := NewStore(t.TempDir(), testLogger())
	require.NoError(t, err)

	d := newTestDriver(&scriptedDetector{}, store, nil, Config{}, clockwork.NewRealClock())
	assert.ErrorIs(t, d.Resume(context.Background(), "missing"), ErrCheckpointNotFound)
}

func TestResume_WithoutStore(t *testing.T) {
	d := newTestDriver(&scriptedDetector{}, nil, nil, Config{}, clockwork.NewRealClock())
	err := d.Resume(context.Background(), "any")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no checkpoint store")
}

func TestRunOnce_PublishFailureDoesNotFailCycle(t *testing.T) {
	detector := &scriptedDetector{}
	publisher := &recordingPublisher{err: errors.New("broker unreachable")}
	d := newTestDriver(detector, nil, publisher, Config{}, clockwork.NewRealClock())

	_, err := d.RunOnce(context.Background(), testRegion(), "")
	assert.NoError(t, err, "publish is best-effort")
}
