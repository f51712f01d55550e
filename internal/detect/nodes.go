package detect

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/google/uuid"

	"github.com/couchcryptid/disaster-response-coordinator/internal/domain"
	"github.com/couchcryptid/disaster-response-coordinator/internal/workflow"
)

// poll fetches the cycle's hazard records. Source and region failures are
// data-level: they are logged into the state and degrade to "no signal",
// never abort the loop. Retries with backoff happen inside the fetcher.
func (e *Engine) poll(ctx context.Context, state *domain.RunState) (domain.StateUpdate, workflow.Outcome, error) {
	records, err := e.fetcher.Fetch(ctx, state.Region)
	if err != nil {
		if ctx.Err() != nil {
			return domain.StateUpdate{}, 0, ctx.Err()
		}
		e.logger.Warn("hazard fetch failed, treating as no signal", "error", err)
		return domain.StateUpdate{
			ProcessingError: fmt.Sprintf("poll: %v", err),
			IncrementRetry:  true,
		}, workflow.OutcomeNoSignal, nil
	}

	if len(records) == 0 {
		e.logger.Debug("no hazard signals this cycle", "region", state.Region.Name)
		return domain.StateUpdate{ResetRetries: true}, workflow.OutcomeNoSignal, nil
	}

	e.logger.Info("hazard signals detected", "region", state.Region.Name, "records", len(records))
	return domain.StateUpdate{
		MonitoringData: records,
		ResetRetries:   true,
	}, workflow.OutcomeSignal, nil
}

// analyze runs cheap heuristics before any model call. Only suspicious
// cycles reach the classifier.
func (e *Engine) analyze(ctx context.Context, state *domain.RunState) (domain.StateUpdate, workflow.Outcome, error) {
	strongest, ok := domain.ReduceToStrongest(state.MonitoringData)
	if !ok {
		return domain.StateUpdate{}, workflow.OutcomeNoThreat, nil
	}

	suspicious := strongest.Severity.AtLeast(domain.SeverityModerate) ||
		len(state.MonitoringData) > 2 ||
		domain.OngoingSituation(state.Situation)
	if !suspicious {
		e.logger.Debug("heuristic found no credible threat",
			"strongest", strongest.ID, "severity", strongest.Severity)
		return domain.StateUpdate{}, workflow.OutcomeNoThreat, nil
	}

	return domain.StateUpdate{}, workflow.OutcomeThreat, nil
}

// classify invokes the model classifier, falling back to rules when the
// model is unavailable or keeps returning malformed replies. The model's
// verdict wins over the heuristic, but risk factors from both are unioned.
func (e *Engine) classify(ctx context.Context, state *domain.RunState) (domain.StateUpdate, workflow.Outcome, error) {
	cls, err := e.runClassifier(ctx, state)
	if err != nil {
		return domain.StateUpdate{}, 0, err
	}

	cls.RiskFactors = unionFactors(cls.RiskFactors, heuristicFactors(state.MonitoringData))

	verdict := "threat"
	if !cls.ThreatDetected {
		verdict = "no_threat"
	}
	e.metrics.Classifications.WithLabelValues(cls.Source, verdict).Inc()

	update := domain.StateUpdate{Classification: &cls}

	if !cls.ThreatDetected {
		return update, workflow.OutcomeNoThreat, nil
	}
	if cls.ConfidenceScore < e.cfg.LowConfidenceFloor {
		// Below the low-water mark the raw label does not matter.
		e.logger.Info("classification below confidence floor, treating as no threat",
			"confidence", cls.ConfidenceScore, "floor", e.cfg.LowConfidenceFloor)
		return update, workflow.OutcomeNoThreat, nil
	}
	if cls.ConfidenceScore >= e.cfg.ConfirmationThreshold || cls.Ongoing {
		return update, workflow.OutcomeThreat, nil
	}
	if cls.RequiresConfirmation {
		if e.confirm == nil {
			// No confirmer means a mid-confidence classification can never be
			// corroborated; an event record needs threshold confidence or a
			// confirmation, so this is no threat.
			e.logger.Info("confirmation required but no confirmer configured, treating as no threat",
				"disaster_type", cls.DisasterType, "confidence", cls.ConfidenceScore)
			return update, workflow.OutcomeNoThreat, nil
		}
		return update, workflow.OutcomeNeedsConfirmation, nil
	}
	return update, workflow.OutcomeThreat, nil
}

func (e *Engine) runClassifier(ctx context.Context, state *domain.RunState) (domain.Classification, error) {
	if e.primary != nil {
		cls, err := e.primary.Classify(ctx, state.MonitoringData, state.Region, state.Situation)
		if err == nil {
			return cls, nil
		}
		if ctx.Err() != nil {
			return domain.Classification{}, ctx.Err()
		}
		if !errors.Is(err, domain.ErrModelUnavailable) && !errors.Is(err, domain.ErrMalformedResponse) {
			return domain.Classification{}, err
		}
		e.logger.Warn("model classification failed, using fallback", "error", err)
		e.metrics.FallbackActivations.Inc()
	}
	return e.fallback.Classify(ctx, state.MonitoringData, state.Region, state.Situation)
}

// confirmViaSearch corroborates a low-confidence classification. A failed
// confirmation call proceeds without confirmation rather than discarding a
// possible threat.
func (e *Engine) confirmViaSearch(ctx context.Context, state *domain.RunState) (domain.StateUpdate, workflow.Outcome, error) {
	confirmed, err := e.confirm.Confirm(ctx, *state.Classification, state.Region)
	if err != nil {
		if ctx.Err() != nil {
			return domain.StateUpdate{}, 0, ctx.Err()
		}
		e.logger.Warn("search confirmation unavailable, proceeding unconfirmed", "error", err)
		return domain.StateUpdate{
			ProcessingError: fmt.Sprintf("confirmation: %v", err),
		}, workflow.OutcomeConfirmed, nil
	}

	if !confirmed {
		e.metrics.Confirmations.WithLabelValues("rejected").Inc()
		return domain.StateUpdate{}, workflow.OutcomeRejected, nil
	}
	e.metrics.Confirmations.WithLabelValues("confirmed").Inc()
	return domain.StateUpdate{}, workflow.OutcomeConfirmed, nil
}

func (e *Engine) logFalsePositive(ctx context.Context, state *domain.RunState) (domain.StateUpdate, workflow.Outcome, error) {
	e.logger.Info("classification not corroborated, logging false positive",
		"disaster_type", state.Classification.DisasterType,
		"confidence", state.Classification.ConfidenceScore)
	return domain.StateUpdate{
		Notes: []string{fmt.Sprintf("false positive: %s classification not corroborated by search",
			state.Classification.DisasterType)},
	}, workflow.OutcomeProceed, nil
}

// assessSeverity scores the event's expected impact and decides escalation.
func (e *Engine) assessSeverity(ctx context.Context, state *domain.RunState) (domain.StateUpdate, workflow.Outcome, error) {
	strongest, _ := domain.ReduceToStrongest(state.MonitoringData)
	assessment := scoreSeverity(*state.Classification, strongest, state.Region, e.cfg.EscalationThreshold, state.Situation)

	update := domain.StateUpdate{Severity: &assessment}
	if assessment.EscalationRequired {
		return update, workflow.OutcomeEscalate, nil
	}
	return update, workflow.OutcomeModerate, nil
}

// scoreSeverity computes the additive severity score. Factors: earthquake
// magnitude (or classified level for other types), population at risk,
// critical infrastructure, and affected area. Escalation fires when the
// score reaches the threshold, the level is high or worse, or the situation
// is ongoing.
func scoreSeverity(cls domain.Classification, strongest domain.HazardRecord, region domain.Region, threshold float64, situation string) domain.SeverityAssessment {
	score := 0.0
	factors := make(map[string]string)

	if cls.DisasterType == domain.DisasterEarthquake {
		switch {
		case strongest.Magnitude >= 6.0:
			score += 0.4
			factors["magnitude"] = fmt.Sprintf("high magnitude: %.1f", strongest.Magnitude)
		case strongest.Magnitude >= 4.0:
			score += 0.2
			factors["magnitude"] = fmt.Sprintf("moderate magnitude: %.1f", strongest.Magnitude)
		}
	} else {
		switch {
		case cls.SeverityLevel == domain.SeverityCritical:
			score += 0.4
			factors["classification"] = "critical severity classification"
		case cls.SeverityLevel.AtLeast(domain.SeverityHigh):
			score += 0.2
			factors["classification"] = "high severity classification"
		}
	}

	area := affectedAreaKm2(cls, strongest, region)
	population := int(area * float64(region.PopulationDensity))
	infrastructure := population / 10000

	switch {
	case population > 10000:
		score += 0.3
		factors["population"] = fmt.Sprintf("high population at risk: %d", population)
	case population > 1000:
		score += 0.15
		factors["population"] = fmt.Sprintf("moderate population at risk: %d", population)
	}

	switch {
	case infrastructure > 10:
		score += 0.2
		factors["infrastructure"] = fmt.Sprintf("many critical facilities: %d", infrastructure)
	case infrastructure > 0:
		score += 0.1
		factors["infrastructure"] = fmt.Sprintf("some critical facilities: %d", infrastructure)
	}

	if area > 100 {
		score += 0.1
		factors["area"] = fmt.Sprintf("large affected area: %.1f km2", area)
	}

	if score > 1.0 {
		score = 1.0
	}

	level := domain.SeverityFromScore(score)
	ongoing := cls.Ongoing || domain.OngoingSituation(situation)
	escalate := score >= threshold || level.AtLeast(domain.SeverityHigh) || ongoing
	if ongoing && score < threshold {
		factors["ongoing"] = "situation reported as in progress, escalating below threshold"
	}

	return domain.SeverityAssessment{
		SeverityScore:               score,
		SeverityLevel:               level,
		PopulationAtRisk:            population,
		AffectedAreaKm2:             area,
		CriticalInfrastructureCount: infrastructure,
		ImpactAssessment: map[domain.ImpactCategory]bool{
			domain.ImpactImmediateRisk:     level.AtLeast(domain.SeverityHigh),
			domain.ImpactEvacuationNeeded:  escalate,
			domain.ImpactEmergencyResponse: cls.ThreatDetected,
		},
		Factors:            factors,
		EscalationRequired: escalate,
	}
}

// affectedAreaKm2 estimates the impacted footprint from the classified
// severity, clipped to the monitored region.
func affectedAreaKm2(cls domain.Classification, strongest domain.HazardRecord, region domain.Region) float64 {
	var radius float64
	switch {
	case cls.DisasterType == domain.DisasterEarthquake && strongest.Magnitude > 0:
		// Rough felt-radius estimate growing with magnitude.
		radius = strongest.Magnitude * 8
	case cls.SeverityLevel == domain.SeverityCritical:
		radius = 50
	case cls.SeverityLevel == domain.SeverityHigh:
		radius = 25
	case cls.SeverityLevel == domain.SeverityModerate:
		radius = 10
	default:
		radius = 5
	}
	if radius > region.RadiusKm {
		radius = region.RadiusKm
	}
	return math.Pi * radius * radius
}

// analyzeSafeZones looks up shelter-capable infrastructure. A locator
// failure leaves the zone list empty and the run proceeding.
func (e *Engine) analyzeSafeZones(ctx context.Context, state *domain.RunState) (domain.StateUpdate, workflow.Outcome, error) {
	if e.zones == nil {
		return domain.StateUpdate{}, workflow.OutcomeProceed, nil
	}

	zones, err := e.zones.Locate(ctx, state.Region, state.Classification.DisasterType)
	if err != nil {
		if ctx.Err() != nil {
			return domain.StateUpdate{}, 0, ctx.Err()
		}
		e.logger.Warn("safe zone lookup failed", "error", err)
		return domain.StateUpdate{
			ProcessingError: fmt.Sprintf("safe zones: %v", err),
		}, workflow.OutcomeProceed, nil
	}

	e.logger.Info("safe zones identified", "count", len(zones))
	return domain.StateUpdate{SafeZones: zones}, workflow.OutcomeProceed, nil
}

// createEvent records the confirmed threat. The event embeds the severity
// snapshot taken during assessment.
func (e *Engine) createEvent(ctx context.Context, state *domain.RunState) (domain.StateUpdate, workflow.Outcome, error) {
	if state.Classification == nil || state.Severity == nil {
		return domain.StateUpdate{}, 0, fmt.Errorf("%w: event creation without classification and severity", domain.ErrLogic)
	}

	event := domain.EventRecord{
		ID:             uuid.NewString(),
		CreatedAt:      e.clock.Now().UTC(),
		Classification: *state.Classification,
		Severity:       *state.Severity,
		Escalated:      state.Severity.EscalationRequired,
	}
	e.metrics.EventsCreated.Inc()
	e.logger.Info("event record created",
		"event_id", event.ID,
		"disaster_type", event.Classification.DisasterType,
		"severity", event.Severity.SeverityLevel,
		"escalated", event.Escalated)

	update := domain.StateUpdate{Event: &event}
	if event.Escalated {
		return update, workflow.OutcomeEscalate, nil
	}
	return update, workflow.OutcomeWait, nil
}

// triggerPlanning sets the escalation flag and hands off to the planning
// engine when one is wired. A planning failure is recorded, not fatal to
// the monitoring loop.
func (e *Engine) triggerPlanning(ctx context.Context, state *domain.RunState) (domain.StateUpdate, workflow.Outcome, error) {
	e.metrics.Escalations.Inc()
	triggered := true
	update := domain.StateUpdate{PlanningTriggered: &triggered}

	if e.trigger == nil {
		return update, workflow.OutcomeProceed, nil
	}

	// The trigger mutates the state through its own workflow; apply the flag
	// first so the planning engine sees it.
	if err := state.Apply(domain.StateUpdate{PlanningTriggered: &triggered}); err != nil {
		return domain.StateUpdate{}, 0, err
	}
	if err := e.trigger.TriggerPlanning(ctx, state); err != nil {
		if ctx.Err() != nil {
			return domain.StateUpdate{}, 0, ctx.Err()
		}
		e.logger.Error("planning trigger failed", "error", err)
		return domain.StateUpdate{
			ProcessingError: fmt.Sprintf("planning trigger: %v", err),
		}, workflow.OutcomeProceed, nil
	}
	return domain.StateUpdate{}, workflow.OutcomeProceed, nil
}

// heuristicFactors derives the analysis heuristic's risk factors so they can
// be unioned with the classifier's.
func heuristicFactors(records []domain.HazardRecord) []string {
	strongest, ok := domain.ReduceToStrongest(records)
	if !ok {
		return nil
	}
	factors := []string{
		fmt.Sprintf("%d hazard records in monitoring window", len(records)),
	}
	if strongest.Severity.AtLeast(domain.SeverityModerate) {
		factors = append(factors, fmt.Sprintf("%s severity %s signal from %s", strongest.Severity, strongest.EventType, strongest.Source))
	}
	return factors
}

// unionFactors merges two factor lists preserving order and dropping
// duplicates.
func unionFactors(a, b []string) []string {
	seen := make(map[string]bool, len(a)+len(b))
	var out []string
	for _, f := range append(append([]string{}, a...), b...) {
		if f == "" || seen[f] {
			continue
		}
		seen[f] = true
		out = append(out, f)
	}
	return out
}
