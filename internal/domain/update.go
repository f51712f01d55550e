package domain

import "fmt"

// StateUpdate is the structurally-typed partial update a workflow node
// returns. Pointer and slice fields are merged only when set; Notes and
// ProcessingError append. A node can only touch fields declared here, so an
// update carrying unknown data is a compile error rather than a silent merge.
type StateUpdate struct {
	Phase Phase // empty = unchanged; set by the engine after routing

	MonitoringData []HazardRecord // non-nil replaces the cycle's records
	Classification *Classification
	Severity       *SeverityAssessment
	Event          *EventRecord
	SafeZones      []SafeZone

	PlanningTriggered *bool
	Context           *PlanningContext
	Deployments       []Deployment
	Routes            []EvacuationRoute
	Notifications     []Notification // non-nil replaces (carries delivery statuses)

	Notes           []string // appended to CoordinationNotes
	ProcessingError string   // appended to ProcessingErrors
	GlobalError     string   // sets GlobalError when non-empty

	IncrementRetry bool
	ResetRetries   bool
}

// Apply validates the update against the full state schema and merges it.
// Unknown impact-assessment categories are dropped. A severity assessment or
// event record without a detected threat violates the workflow invariant and
// is rejected as a logic error.
func (s *RunState) Apply(u StateUpdate) error {
	if u.Severity != nil {
		threat := s.Classification != nil && s.Classification.ThreatDetected
		if u.Classification != nil {
			threat = u.Classification.ThreatDetected
		}
		if !threat {
			return fmt.Errorf("%w: severity assessment without detected threat", ErrLogic)
		}
	}
	if u.Event != nil && !u.Event.Classification.ThreatDetected {
		return fmt.Errorf("%w: event record without detected threat", ErrLogic)
	}

	if u.MonitoringData != nil {
		s.MonitoringData = u.MonitoringData
	}
	if u.Classification != nil {
		s.Classification = u.Classification
	}
	if u.Severity != nil {
		sev := *u.Severity
		sev.ImpactAssessment = filterImpactCategories(sev.ImpactAssessment)
		s.Severity = &sev
	}
	if u.Event != nil {
		ev := *u.Event
		ev.Severity.ImpactAssessment = filterImpactCategories(ev.Severity.ImpactAssessment)
		s.Event = &ev
	}
	if u.SafeZones != nil {
		s.SafeZones = u.SafeZones
	}
	if u.PlanningTriggered != nil {
		s.PlanningTriggered = *u.PlanningTriggered
	}
	if u.Context != nil {
		s.Context = u.Context
	}
	if u.Deployments != nil {
		s.Deployments = u.Deployments
	}
	if u.Routes != nil {
		s.Routes = u.Routes
	}
	if u.Notifications != nil {
		s.Notifications = u.Notifications
	}
	s.CoordinationNotes = append(s.CoordinationNotes, u.Notes...)
	if u.ProcessingError != "" {
		s.ProcessingErrors = append(s.ProcessingErrors, u.ProcessingError)
	}
	if u.GlobalError != "" {
		s.GlobalError = u.GlobalError
	}
	if u.IncrementRetry {
		s.RetryCount++
	}
	if u.ResetRetries {
		s.RetryCount = 0
	}
	if u.Phase != "" {
		s.Phase = u.Phase
	}
	s.UpdatedAt = clock.Now().UTC()
	return nil
}

func filterImpactCategories(m map[ImpactCategory]bool) map[ImpactCategory]bool {
	if m == nil {
		return nil
	}
	out := make(map[ImpactCategory]bool, len(m))
	for k, v := range m {
		if validImpactCategories[k] {
			out[k] = v
		}
	}
	return out
}
