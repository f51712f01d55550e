package plan

import (
	"fmt"
	"sort"

	"github.com/couchcryptid/disaster-response-coordinator/internal/domain"
)

// travelSpeedKmh is the assumed ground speed for team travel estimates.
const travelSpeedKmh = 60.0

// buildDeploymentPlan assigns available teams to population zones. Zones are
// ranked by population x severity score descending; for each zone the
// unassigned team with the shortest estimated arrival wins, ties broken by
// team id ascending. Each team is assigned at most once. The ordering is
// fully deterministic so identical inputs produce identical plans.
func buildDeploymentPlan(pctx domain.PlanningContext, severity domain.SeverityAssessment) []domain.Deployment {
	zones := append([]domain.PopulationZone(nil), pctx.PopulationZones...)
	sort.SliceStable(zones, func(i, j int) bool {
		pi := float64(zones[i].Population) * severity.SeverityScore
		pj := float64(zones[j].Population) * severity.SeverityScore
		if pi != pj {
			return pi > pj
		}
		return zones[i].ID < zones[j].ID
	})

	assigned := make(map[string]bool, len(pctx.Teams))
	var deployments []domain.Deployment

	for rank, zone := range zones {
		team, eta, ok := closestFreeTeam(pctx.Teams, assigned, zone)
		if !ok {
			break
		}
		assigned[team.ID] = true

		deployments = append(deployments, domain.Deployment{
			TeamID:                  team.ID,
			ZoneID:                  zone.ID,
			Priority:                priorityForRank(rank, severity.SeverityLevel),
			EstimatedArrivalMinutes: eta,
			Reason: fmt.Sprintf("%s deployed to %s (population %d, rank %d)",
				team.Name, zone.Name, zone.Population, rank+1),
		})
	}
	return deployments
}

// closestFreeTeam picks the unassigned available team with the lowest
// estimated arrival for the zone; ties break on team id ascending.
func closestFreeTeam(teams []domain.ResponseTeam, assigned map[string]bool, zone domain.PopulationZone) (domain.ResponseTeam, int, bool) {
	var best domain.ResponseTeam
	bestETA := -1

	for _, team := range teams {
		if !team.Available || assigned[team.ID] {
			continue
		}
		eta := arrivalMinutes(team, zone)
		if bestETA < 0 || eta < bestETA || (eta == bestETA && team.ID < best.ID) {
			best = team
			bestETA = eta
		}
	}
	return best, bestETA, bestETA >= 0
}

// arrivalMinutes is the team's mobilization time plus travel at the assumed
// ground speed.
func arrivalMinutes(team domain.ResponseTeam, zone domain.PopulationZone) int {
	distance := domain.DistanceKm(team.BaseLat, team.BaseLon, zone.CenterLat, zone.CenterLon)
	travel := distance / travelSpeedKmh * 60
	return team.ResponseTimeMinutes + int(travel+0.5)
}

// priorityForRank degrades the assignment priority as the zone ranking
// drops: the two highest-ranked zones carry the event severity, the next
// two one level below, the rest two levels below (floored at low).
func priorityForRank(rank int, level domain.SeverityLevel) domain.SeverityLevel {
	drop := 0
	switch {
	case rank >= 4:
		drop = 2
	case rank >= 2:
		drop = 1
	}
	target := level.Rank() - drop
	if target < 0 {
		target = 0
	}
	for _, l := range []domain.SeverityLevel{domain.SeverityLow, domain.SeverityModerate, domain.SeverityHigh, domain.SeverityCritical} {
		if l.Rank() == target {
			return l
		}
	}
	return domain.SeverityLow
}
