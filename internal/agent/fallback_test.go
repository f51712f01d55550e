package agent

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/disaster-response-coordinator/internal/domain"
)

func TestFallbackClassifier_NoRecords(t *testing.T) {
	cls, err := NewFallbackClassifier().Classify(context.Background(), nil, testRegion(), "")
	require.NoError(t, err)

	assert.False(t, cls.ThreatDetected)
	assert.Equal(t, domain.DisasterUnknown, cls.DisasterType)
	assert.Equal(t, "fallback", cls.Source)
}

func TestFallbackClassifier_ThreatFromRecords(t *testing.T) {
	records := []domain.HazardRecord{
		{ID: "a", Source: "noaa_weather", EventType: domain.DisasterSevereWeather, Severity: domain.SeverityModerate},
		{ID: "b", Source: "usgs_earthquake", EventType: domain.DisasterEarthquake, Severity: domain.SeverityHigh, Magnitude: 5.0},
	}

	cls, err := NewFallbackClassifier().Classify(context.Background(), records, testRegion(), "")
	require.NoError(t, err)

	assert.True(t, cls.ThreatDetected)
	// The strongest record wins the type.
	assert.Equal(t, domain.DisasterEarthquake, cls.DisasterType)
	assert.Equal(t, domain.SeverityHigh, cls.SeverityLevel)
	assert.InDelta(t, 0.4, cls.ConfidenceScore, 1e-9)
	assert.True(t, cls.RequiresConfirmation, "fallback always requires confirmation")
}

func TestFallbackClassifier_ConfidenceCap(t *testing.T) {
	var records []domain.HazardRecord
	for i := 0; i < 10; i++ {
		records = append(records, domain.HazardRecord{
			ID: string(rune('a' + i)), EventType: domain.DisasterFlood, Severity: domain.SeverityLow,
		})
	}

	cls, err := NewFallbackClassifier().Classify(context.Background(), records, testRegion(), "")
	require.NoError(t, err)
	assert.InDelta(t, 0.8, cls.ConfidenceScore, 1e-9)
	assert.Equal(t, domain.SeverityModerate, cls.SeverityLevel)
}

func TestFallbackClassifier_OngoingSituation(t *testing.T) {
	records := []domain.HazardRecord{
		{ID: "a", EventType: domain.DisasterWildfire, Severity: domain.SeverityModerate},
	}
	cls, err := NewFallbackClassifier().Classify(context.Background(), records, testRegion(), "Wildfire ONGOING near the ridge")
	require.NoError(t, err)
	assert.True(t, cls.Ongoing)
}
