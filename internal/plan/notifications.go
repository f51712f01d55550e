package plan

import (
	"fmt"
	"strings"
	"text/template"

	"github.com/google/uuid"

	"github.com/couchcryptid/disaster-response-coordinator/internal/domain"
)

var opsAlertTmpl = template.Must(template.New("ops").Parse(
	`DISASTER EVENT: {{.DisasterType}} ({{.Severity}} severity, score {{printf "%.2f" .Score}})
Region: {{.Region}}
Population at risk: {{.Population}}
Teams deployed: {{.Deployments}}
Evacuation routes: {{.Routes}}
{{- if .Ongoing}}
Situation reported as ongoing.
{{- end}}`))

var teamOrderTmpl = template.Must(template.New("team").Parse(
	`Deployment order for team {{.TeamID}}: respond to zone {{.ZoneID}}.
Priority: {{.Priority}}. Estimated arrival: {{.ETA}} minutes.
{{.Reason}}`))

var publicAdvisoryTmpl = template.Must(template.New("public").Parse(
	`Emergency advisory for {{.Region}}: a {{.DisasterType}} event is being managed by emergency services.
{{- if .Routes}}
Evacuation routes are active to the following shelters: {{.Shelters}}.
Follow official guidance and evacuate if instructed.
{{- else}}
No evacuation is currently ordered. Stay alert for updates.
{{- end}}`))

// draftNotifications renders the three notification classes from the plan:
// an operations alert, one order per deployed team, and a public advisory.
// All start in pending status; the send node resolves delivery.
func draftNotifications(state *domain.RunState) ([]domain.Notification, error) {
	if state.Event == nil {
		return nil, fmt.Errorf("%w: notification drafting without event record", domain.ErrLogic)
	}
	severity := state.Event.Severity

	var out []domain.Notification

	var ops strings.Builder
	err := opsAlertTmpl.Execute(&ops, map[string]any{
		"DisasterType": state.Event.Classification.DisasterType,
		"Severity":     severity.SeverityLevel,
		"Score":        severity.SeverityScore,
		"Region":       state.Region.Name,
		"Population":   severity.PopulationAtRisk,
		"Deployments":  len(state.Deployments),
		"Routes":       len(state.Routes),
		"Ongoing":      state.Event.Classification.Ongoing,
	})
	if err != nil {
		return nil, fmt.Errorf("render operations alert: %w", err)
	}
	out = append(out, domain.Notification{
		ID:            uuid.NewString(),
		RecipientType: "emergency_management",
		Priority:      severity.SeverityLevel,
		Subject:       fmt.Sprintf("Disaster event: %s in %s", state.Event.Classification.DisasterType, state.Region.Name),
		Body:          ops.String(),
		Status:        domain.DeliveryPending,
	})

	for _, d := range state.Deployments {
		var body strings.Builder
		err := teamOrderTmpl.Execute(&body, map[string]any{
			"TeamID":   d.TeamID,
			"ZoneID":   d.ZoneID,
			"Priority": d.Priority,
			"ETA":      d.EstimatedArrivalMinutes,
			"Reason":   d.Reason,
		})
		if err != nil {
			return nil, fmt.Errorf("render team order: %w", err)
		}
		out = append(out, domain.Notification{
			ID:            uuid.NewString(),
			RecipientType: "response_team",
			Priority:      d.Priority,
			Subject:       fmt.Sprintf("Deployment order: %s to %s", d.TeamID, d.ZoneID),
			Body:          body.String(),
			Status:        domain.DeliveryPending,
		})
	}

	var advisory strings.Builder
	err = publicAdvisoryTmpl.Execute(&advisory, map[string]any{
		"Region":       state.Region.Name,
		"DisasterType": state.Event.Classification.DisasterType,
		"Routes":       len(state.Routes),
		"Shelters":     shelterList(state),
	})
	if err != nil {
		return nil, fmt.Errorf("render public advisory: %w", err)
	}
	out = append(out, domain.Notification{
		ID:            uuid.NewString(),
		RecipientType: "public",
		Priority:      severity.SeverityLevel,
		Subject:       fmt.Sprintf("Emergency advisory for %s", state.Region.Name),
		Body:          advisory.String(),
		Status:        domain.DeliveryPending,
	})

	return out, nil
}

func shelterList(state *domain.RunState) string {
	seen := make(map[string]bool)
	var names []string
	for _, r := range state.Routes {
		if seen[r.ToCenterID] {
			continue
		}
		seen[r.ToCenterID] = true
		name := r.ToCenterID
		if state.Context != nil {
			for _, c := range state.Context.EvacuationCenters {
				if c.ID == r.ToCenterID {
					name = c.Name
					break
				}
			}
		}
		names = append(names, name)
	}
	return strings.Join(names, ", ")
}
