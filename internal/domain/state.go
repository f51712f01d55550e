package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Classification is the structured result of threat classification, whether
// produced by the language model or the rule-based fallback.
type Classification struct {
	ThreatDetected       bool          `json:"threat_detected"`
	DisasterType         DisasterType  `json:"disaster_type"`
	ConfidenceScore      float64       `json:"confidence_score"` // 0.0 to 1.0
	SeverityLevel        SeverityLevel `json:"severity_level"`
	RiskFactors          []string      `json:"risk_factors,omitempty"`
	RequiresConfirmation bool          `json:"requires_confirmation"`
	Ongoing              bool          `json:"ongoing"`
	Reasoning            string        `json:"reasoning,omitempty"`
	Source               string        `json:"source"` // "model" or "fallback"
}

// ImpactCategory names one recognized dimension of an impact assessment.
// Unknown categories are dropped on merge, never silently kept.
type ImpactCategory string

const (
	ImpactImmediateRisk     ImpactCategory = "immediate_risk"
	ImpactEvacuationNeeded  ImpactCategory = "evacuation_needed"
	ImpactEmergencyResponse ImpactCategory = "emergency_response_required"
)

var validImpactCategories = map[ImpactCategory]bool{
	ImpactImmediateRisk:     true,
	ImpactEvacuationNeeded:  true,
	ImpactEmergencyResponse: true,
}

// SeverityAssessment quantifies the expected impact of a detected event.
type SeverityAssessment struct {
	SeverityScore               float64                 `json:"severity_score"` // 0.0 to 1.0
	SeverityLevel               SeverityLevel           `json:"severity_level"`
	PopulationAtRisk            int                     `json:"population_at_risk"`
	AffectedAreaKm2             float64                 `json:"affected_area_km2"`
	CriticalInfrastructureCount int                     `json:"critical_infrastructure_count"`
	ImpactAssessment            map[ImpactCategory]bool `json:"impact_assessment"`
	Factors                     map[string]string       `json:"factors,omitempty"`
	EscalationRequired          bool                    `json:"escalation_required"`
}

// EventRecord is created only once a classification confirms a threat.
type EventRecord struct {
	ID             string             `json:"id"`
	CreatedAt      time.Time          `json:"created_at"`
	Classification Classification     `json:"classification"`
	Severity       SeverityAssessment `json:"severity"`
	Escalated      bool               `json:"escalated"`
}

// SafeZone is shelter-capable infrastructure identified during zone analysis.
type SafeZone struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Kind     string  `json:"kind"` // hospital, school, fire_station, police
	Lat      float64 `json:"lat"`
	Lon      float64 `json:"lon"`
	Capacity int     `json:"capacity"`
}

// ResponseTeam is an emergency response unit available for deployment.
type ResponseTeam struct {
	ID                  string  `json:"team_id"`
	Name                string  `json:"team_name"`
	Kind                string  `json:"team_type"` // fire_rescue, medical, police
	Specialization      string  `json:"specialization"`
	Capacity            int     `json:"capacity"`
	ResponseTimeMinutes int     `json:"response_time_minutes"`
	BaseLat             float64 `json:"base_lat"`
	BaseLon             float64 `json:"base_lon"`
	Available           bool    `json:"available"`
}

// PopulationZone is an inhabited area that may need protection or evacuation.
type PopulationZone struct {
	ID                     string  `json:"zone_id"`
	Name                   string  `json:"zone_name"`
	CenterLat              float64 `json:"center_lat"`
	CenterLon              float64 `json:"center_lon"`
	RadiusKm               float64 `json:"radius_km"`
	Population             int     `json:"population"`
	VulnerabilityScore     string  `json:"vulnerability_score"` // low, medium, high, very_high
	SpecialNeedsPopulation int     `json:"special_needs_population"`
}

// EvacuationCenter is a destination with shelter capacity.
type EvacuationCenter struct {
	ID       string  `json:"center_id"`
	Name     string  `json:"center_name"`
	Lat      float64 `json:"lat"`
	Lon      float64 `json:"lon"`
	Capacity int     `json:"capacity"`
}

// PlanningContext is the external data a planning run consumes. It is
// supplied by the context collaborator, never computed by the engines.
type PlanningContext struct {
	Region            Region             `json:"region"`
	Teams             []ResponseTeam     `json:"teams"`
	PopulationZones   []PopulationZone   `json:"population_zones"`
	EvacuationCenters []EvacuationCenter `json:"evacuation_centers"`
}

// Deployment assigns one response team to one population zone.
type Deployment struct {
	TeamID                  string        `json:"team_id"`
	ZoneID                  string        `json:"zone_id"`
	Priority                SeverityLevel `json:"priority"`
	EstimatedArrivalMinutes int           `json:"estimated_arrival_minutes"`
	Reason                  string        `json:"reason,omitempty"`
}

// EvacuationRoute moves people from a population zone to an evacuation center.
type EvacuationRoute struct {
	ID                   string  `json:"route_id"`
	FromZoneID           string  `json:"from_zone_id"`
	ToCenterID           string  `json:"to_center_id"`
	DistanceKm           float64 `json:"distance_km"`
	CapacityPerHour      int     `json:"capacity_per_hour"`
	EstimatedTimeMinutes int     `json:"estimated_time_minutes"`
}

// DeliveryStatus tracks the best-effort delivery of one notification.
type DeliveryStatus string

const (
	DeliveryPending DeliveryStatus = "pending"
	DeliverySent    DeliveryStatus = "sent"
	DeliveryFailed  DeliveryStatus = "failed"
)

// Notification is a drafted message queued for the delivery collaborator.
type Notification struct {
	ID            string         `json:"notification_id"`
	RecipientType string         `json:"recipient_type"` // emergency_management, response_team, public
	Priority      SeverityLevel  `json:"priority"`
	Subject       string         `json:"subject"`
	Body          string         `json:"body"`
	Status        DeliveryStatus `json:"status"`
	Error         string         `json:"error,omitempty"`
}

// RunState is the complete record for one monitoring/planning run. One
// instance exists per invocation; it is threaded through every workflow node
// and mutated only via Apply.
type RunState struct {
	SessionID string    `json:"session_id"`
	StartedAt time.Time `json:"started_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Region    Region `json:"region"`
	Situation string `json:"situation,omitempty"` // free-text situation description

	Phase Phase `json:"management_phase"`

	MonitoringData []HazardRecord      `json:"monitoring_data,omitempty"`
	Classification *Classification     `json:"classification,omitempty"`
	Severity       *SeverityAssessment `json:"severity_assessment,omitempty"`
	Event          *EventRecord        `json:"event_record,omitempty"`
	SafeZones      []SafeZone          `json:"safe_zones,omitempty"`

	PlanningTriggered bool              `json:"planning_triggered"`
	Context           *PlanningContext  `json:"planning_context,omitempty"`
	Deployments       []Deployment      `json:"deployment_plan,omitempty"`
	Routes            []EvacuationRoute `json:"evacuation_plan,omitempty"`
	Notifications     []Notification    `json:"notifications,omitempty"`
	CoordinationNotes []string          `json:"coordination_notes,omitempty"`

	ProcessingErrors []string `json:"processing_errors,omitempty"`
	GlobalError      string   `json:"global_error_message,omitempty"`
	RetryCount       int      `json:"retry_count"`
}

// ongoingMarkers are phrases in a situation report that mark an event as in
// progress. Matching is case-insensitive.
var ongoingMarkers = []string{"ongoing", "happening now", "in progress"}

// OngoingSituation reports whether the free-text situation report describes
// an event in progress. An ongoing situation forces escalation regardless of
// the computed severity score.
func OngoingSituation(situation string) bool {
	s := strings.ToLower(situation)
	for _, marker := range ongoingMarkers {
		if strings.Contains(s, marker) {
			return true
		}
	}
	return false
}

// NewRunState creates the initial state for one run over the given region.
func NewRunState(region Region, situation string) *RunState {
	now := clock.Now().UTC()
	return &RunState{
		SessionID: uuid.NewString(),
		StartedAt: now,
		UpdatedAt: now,
		Region:    region,
		Situation: situation,
		Phase:     PhasePolling,
	}
}
