package agent

import (
	"context"
	"fmt"

	"github.com/couchcryptid/disaster-response-coordinator/internal/domain"
)

// FallbackClassifier is the rule-based classifier used when no model is
// configured or the model is unavailable. It is deliberately conservative:
// confidence never exceeds 0.8 and any detected threat requires confirmation.
type FallbackClassifier struct{}

// NewFallbackClassifier creates the rule-based classifier.
func NewFallbackClassifier() *FallbackClassifier {
	return &FallbackClassifier{}
}

// Classify derives a classification from alert counts and record severity
// alone. The strongest record decides the disaster type; confidence grows
// with the alert count, capped at 0.8.
func (f *FallbackClassifier) Classify(ctx context.Context, records []domain.HazardRecord, region domain.Region, situation string) (domain.Classification, error) {
	if len(records) == 0 {
		return domain.Classification{
			ThreatDetected: false,
			DisasterType:   domain.DisasterUnknown,
			SeverityLevel:  domain.SeverityLow,
			Reasoning:      "no alerts in monitoring window",
			Source:         "fallback",
		}, nil
	}

	strongest, _ := domain.ReduceToStrongest(records)
	confidence := min(float64(len(records))*0.2, 0.8)

	level := domain.SeverityLow
	if len(records) > 2 {
		level = domain.SeverityModerate
	}
	if strongest.Severity.AtLeast(level) {
		level = strongest.Severity
	}

	return domain.Classification{
		ThreatDetected:  true,
		DisasterType:    strongest.EventType,
		ConfidenceScore: confidence,
		SeverityLevel:   level,
		RiskFactors: []string{
			fmt.Sprintf("rule-based analysis: %d alerts in window", len(records)),
			fmt.Sprintf("strongest signal: %s from %s", strongest.EventType, strongest.Source),
		},
		RequiresConfirmation: true,
		Ongoing:              domain.OngoingSituation(situation),
		Reasoning:            "rule-based classification without model assistance",
		Source:               "fallback",
	}, nil
}
