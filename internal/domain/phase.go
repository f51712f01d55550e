package domain

// Phase identifies one node of the detection or planning workflow graph.
// The zero value is not a valid phase.
type Phase string

// Detection workflow phases.
const (
	PhasePolling              Phase = "polling"
	PhaseAnalyzing            Phase = "analyzing"
	PhaseClassifying          Phase = "classifying"
	PhaseConfirming           Phase = "confirming_via_search"
	PhaseAssessingSeverity    Phase = "assessing_severity"
	PhaseSafeZoneAnalysis     Phase = "safe_zone_analysis"
	PhaseCreatingEvent        Phase = "creating_event_record"
	PhaseTriggeringPlanning   Phase = "triggering_planning"
	PhaseLoggingFalsePositive Phase = "logging_false_positive"
	PhaseWaiting              Phase = "waiting"
)

// Planning workflow phases. PlanningComplete and ErrorHandling are the two
// terminal phases; exactly one is reached per planning run.
const (
	PhaseLoadingContext          Phase = "loading_context"
	PhaseAssessingRequirements   Phase = "assessing_requirements"
	PhaseCreatingDeploymentPlan  Phase = "creating_deployment_plan"
	PhaseCreatingEvacuationPlan  Phase = "creating_evacuation_plan"
	PhaseCoordinatingResources   Phase = "coordinating_resources"
	PhaseGeneratingNotifications Phase = "generating_notifications"
	PhaseSendingNotifications    Phase = "sending_notifications"
	PhasePlanningComplete        Phase = "planning_complete"
	PhaseErrorHandling           Phase = "error_handling"
)

// SeverityLevel is the ordinal four-level severity scale.
type SeverityLevel string

const (
	SeverityLow      SeverityLevel = "low"
	SeverityModerate SeverityLevel = "moderate"
	SeverityHigh     SeverityLevel = "high"
	SeverityCritical SeverityLevel = "critical"
)

var severityRank = map[SeverityLevel]int{
	SeverityLow:      0,
	SeverityModerate: 1,
	SeverityHigh:     2,
	SeverityCritical: 3,
}

// Rank returns the ordinal position of the level; unknown levels rank as low.
func (s SeverityLevel) Rank() int {
	return severityRank[s]
}

// AtLeast reports whether s is equal to or more severe than other.
func (s SeverityLevel) AtLeast(other SeverityLevel) bool {
	return s.Rank() >= other.Rank()
}

// ParseSeverity normalizes a severity string; unrecognized values map to low.
func ParseSeverity(v string) SeverityLevel {
	s := SeverityLevel(v)
	if _, ok := severityRank[s]; ok {
		return s
	}
	return SeverityLow
}

// SeverityFromScore maps an additive severity score in [0,1] to a level.
func SeverityFromScore(score float64) SeverityLevel {
	switch {
	case score >= 0.6:
		return SeverityCritical
	case score >= 0.4:
		return SeverityHigh
	case score >= 0.2:
		return SeverityModerate
	default:
		return SeverityLow
	}
}

// DisasterType classifies the kind of hazard a record or event describes.
type DisasterType string

const (
	DisasterEarthquake    DisasterType = "earthquake"
	DisasterWildfire      DisasterType = "wildfire"
	DisasterFlood         DisasterType = "flood"
	DisasterHurricane     DisasterType = "hurricane"
	DisasterTornado       DisasterType = "tornado"
	DisasterSevereWeather DisasterType = "severe_weather"
	DisasterVolcanic      DisasterType = "volcanic"
	DisasterLandslide     DisasterType = "landslide"
	DisasterUnknown       DisasterType = "unknown"
)

var validDisasterTypes = map[DisasterType]bool{
	DisasterEarthquake:    true,
	DisasterWildfire:      true,
	DisasterFlood:         true,
	DisasterHurricane:     true,
	DisasterTornado:       true,
	DisasterSevereWeather: true,
	DisasterVolcanic:      true,
	DisasterLandslide:     true,
	DisasterUnknown:       true,
}

// ParseDisasterType normalizes a disaster type string; unrecognized values
// map to unknown.
func ParseDisasterType(v string) DisasterType {
	t := DisasterType(v)
	if validDisasterTypes[t] {
		return t
	}
	return DisasterUnknown
}
