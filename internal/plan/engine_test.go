package plan

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/disaster-response-coordinator/internal/domain"
	"github.com/couchcryptid/disaster-response-coordinator/internal/observability"
)

type stubProvider struct {
	pctx domain.PlanningContext
	err  error
}

func (s *stubProvider) Load(ctx context.Context, region domain.Region) (domain.PlanningContext, error) {
	if s.err != nil {
		return domain.PlanningContext{}, s.err
	}
	return s.pctx, nil
}

type stubSender struct {
	sent   []domain.Notification
	failOn string // recipient type that fails
}

func (s *stubSender) Send(ctx context.Context, n domain.Notification) (domain.DeliveryStatus, error) {
	if s.failOn != "" && n.RecipientType == s.failOn {
		return domain.DeliveryFailed, errors.New("webhook unreachable")
	}
	s.sent = append(s.sent, n)
	return domain.DeliverySent, nil
}

func escalatedState(t *testing.T) *domain.RunState {
	t.Helper()
	state := domain.NewRunState(testRegion(), "")
	cls := domain.Classification{
		ThreatDetected:  true,
		DisasterType:    domain.DisasterEarthquake,
		ConfidenceScore: 0.92,
		SeverityLevel:   domain.SeverityCritical,
		Source:          "model",
	}
	severity := criticalSeverity()
	require.NoError(t, state.Apply(domain.StateUpdate{
		Classification: &cls,
		Severity:       &severity,
		Event: &domain.EventRecord{
			ID:             "event-1",
			CreatedAt:      time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC),
			Classification: cls,
			Severity:       severity,
			Escalated:      true,
		},
	}))
	return state
}

func newPlanEngine(t *testing.T, provider ContextProvider, sender Sender) *Engine {
	t.Helper()
	e, err := NewEngine(provider, sender, Config{EvacuationWindowHours: 4},
		testLogger(), observability.NewMetricsForTesting())
	require.NoError(t, err)
	return e
}

func TestEngineRun_CriticalEarthquakeScenario(t *testing.T) {
	provider := &stubProvider{pctx: fixtureContext()}
	sender := &stubSender{}
	e := newPlanEngine(t, provider, sender)
	state := escalatedState(t)

	require.NoError(t, e.Run(context.Background(), state))

	assert.Equal(t, domain.PhasePlanningComplete, state.Phase)
	assert.Empty(t, state.GlobalError)
	assert.NotEmpty(t, state.Deployments)
	assert.NotEmpty(t, state.Routes)
	require.NotEmpty(t, state.Notifications)

	// One ops alert, one order per deployment, one public advisory.
	assert.Len(t, state.Notifications, len(state.Deployments)+2)
	for _, n := range state.Notifications {
		assert.Equal(t, domain.DeliverySent, n.Status)
	}
	assert.Len(t, sender.sent, len(state.Notifications))
}

func TestEngineRun_ContextLoadFailure(t *testing.T) {
	provider := &stubProvider{err: fmt.Errorf("%w: response_teams.csv missing", domain.ErrContextLoad)}
	e := newPlanEngine(t, provider, nil)
	state := escalatedState(t)

	require.NoError(t, e.Run(context.Background(), state))

	assert.Equal(t, domain.PhaseErrorHandling, state.Phase)
	assert.Contains(t, state.GlobalError, "context load")
	assert.Empty(t, state.Deployments)
	assert.Empty(t, state.Routes)
}

func TestEngineRun_WithoutEventIsLogicError(t *testing.T) {
	e := newPlanEngine(t, &stubProvider{pctx: fixtureContext()}, nil)
	state := domain.NewRunState(testRegion(), "")

	err := e.Run(context.Background(), state)
	assert.ErrorIs(t, err, domain.ErrLogic)
}

func TestEngineRun_SendFailureIsRecordedPerRecipient(t *testing.T) {
	provider := &stubProvider{pctx: fixtureContext()}
	sender := &stubSender{failOn: "public"}
	e := newPlanEngine(t, provider, sender)
	state := escalatedState(t)

	require.NoError(t, e.Run(context.Background(), state))

	assert.Equal(t, domain.PhasePlanningComplete, state.Phase, "delivery failure never fails the run")

	var failed, sent int
	for _, n := range state.Notifications {
		switch n.Status {
		case domain.DeliveryFailed:
			failed++
			assert.Equal(t, "public", n.RecipientType)
			assert.Contains(t, n.Error, "webhook unreachable")
		case domain.DeliverySent:
			sent++
		}
	}
	assert.Equal(t, 1, failed)
	assert.Equal(t, len(state.Notifications)-1, sent)
}

func TestEngineRun_NoSenderLeavesNotificationsPending(t *testing.T) {
	e := newPlanEngine(t, &stubProvider{pctx: fixtureContext()}, nil)
	state := escalatedState(t)

	require.NoError(t, e.Run(context.Background(), state))

	require.NotEmpty(t, state.Notifications)
	for _, n := range state.Notifications {
		assert.Equal(t, domain.DeliveryPending, n.Status)
	}
}

func TestEngineRun_NoEvacuationForModerateEvent(t *testing.T) {
	e := newPlanEngine(t, &stubProvider{pctx: fixtureContext()}, nil)

	state := domain.NewRunState(testRegion(), "")
	cls := domain.Classification{
		ThreatDetected:  true,
		DisasterType:    domain.DisasterSevereWeather,
		ConfidenceScore: 0.8,
		SeverityLevel:   domain.SeverityModerate,
		Source:          "model",
	}
	severity := domain.SeverityAssessment{
		SeverityScore: 0.3,
		SeverityLevel: domain.SeverityModerate,
		ImpactAssessment: map[domain.ImpactCategory]bool{
			domain.ImpactEvacuationNeeded:  false,
			domain.ImpactEmergencyResponse: true,
		},
	}
	require.NoError(t, state.Apply(domain.StateUpdate{
		Classification: &cls,
		Severity:       &severity,
		Event: &domain.EventRecord{
			ID: "event-2", Classification: cls, Severity: severity,
		},
	}))

	require.NoError(t, e.Run(context.Background(), state))

	assert.Equal(t, domain.PhasePlanningComplete, state.Phase)
	assert.NotEmpty(t, state.Deployments)
	assert.Empty(t, state.Routes, "no evacuation planning without the evacuation flag")
}

func TestEngineRun_NotificationContents(t *testing.T) {
	e := newPlanEngine(t, &stubProvider{pctx: fixtureContext()}, nil)
	state := escalatedState(t)

	require.NoError(t, e.Run(context.Background(), state))

	byRecipient := make(map[string]domain.Notification)
	for _, n := range state.Notifications {
		byRecipient[n.RecipientType] = n
	}

	ops := byRecipient["emergency_management"]
	assert.Contains(t, ops.Body, "earthquake")
	assert.Contains(t, ops.Body, "critical")
	assert.Contains(t, ops.Body, "50000")
	assert.Equal(t, domain.SeverityCritical, ops.Priority)

	team := byRecipient["response_team"]
	assert.Contains(t, team.Body, "Deployment order")
	assert.Contains(t, team.Body, "zone-")

	public := byRecipient["public"]
	assert.Contains(t, public.Body, "San Francisco Bay Area")
	assert.Contains(t, public.Body, "Evacuation routes are active")
}
