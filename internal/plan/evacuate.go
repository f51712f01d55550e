package plan

import (
	"fmt"
	"math"
	"sort"

	"github.com/couchcryptid/disaster-response-coordinator/internal/domain"
)

// evacuationSpeedKmh is the assumed convoy speed for route time estimates.
const evacuationSpeedKmh = 40.0

// exactSearchBound caps exhaustive subset enumeration. Above this many
// candidate routes per zone the planner falls back to a greedy selection.
const exactSearchBound = 16

// buildEvacuationPlan selects, per population zone, the route set that
// minimizes total distance while moving the whole zone population within
// the evacuation window. Selection is exact for realistic candidate counts.
func buildEvacuationPlan(pctx domain.PlanningContext, windowHours int) []domain.EvacuationRoute {
	var plan []domain.EvacuationRoute

	zones := append([]domain.PopulationZone(nil), pctx.PopulationZones...)
	sort.Slice(zones, func(i, j int) bool { return zones[i].ID < zones[j].ID })

	for _, zone := range zones {
		candidates := candidateRoutes(zone, pctx.EvacuationCenters, windowHours)
		selected := selectRoutes(candidates, zone.Population, windowHours)
		plan = append(plan, selected...)
	}
	return plan
}

// candidateRoutes builds one candidate route from the zone to every center,
// sorted by distance then center id for deterministic enumeration.
func candidateRoutes(zone domain.PopulationZone, centers []domain.EvacuationCenter, windowHours int) []domain.EvacuationRoute {
	routes := make([]domain.EvacuationRoute, 0, len(centers))
	for _, c := range centers {
		distance := domain.DistanceKm(zone.CenterLat, zone.CenterLon, c.Lat, c.Lon)
		routes = append(routes, domain.EvacuationRoute{
			ID:                   fmt.Sprintf("route_%s_%s", zone.ID, c.ID),
			FromZoneID:           zone.ID,
			ToCenterID:           c.ID,
			DistanceKm:           distance,
			CapacityPerHour:      c.Capacity / windowHours,
			EstimatedTimeMinutes: int(distance/evacuationSpeedKmh*60 + 0.5),
		})
	}
	sort.Slice(routes, func(i, j int) bool {
		if routes[i].DistanceKm != routes[j].DistanceKm {
			return routes[i].DistanceKm < routes[j].DistanceKm
		}
		return routes[i].ToCenterID < routes[j].ToCenterID
	})
	return routes
}

// selectRoutes picks the feasible subset with minimal total distance. A
// subset is feasible when its summed per-hour capacity over the window
// covers the zone population. Infeasible inputs return the whole candidate
// list as a best effort.
func selectRoutes(candidates []domain.EvacuationRoute, population, windowHours int) []domain.EvacuationRoute {
	if len(candidates) == 0 {
		return nil
	}

	capacityOf := func(r domain.EvacuationRoute) int {
		return r.CapacityPerHour * windowHours
	}

	total := 0
	for _, r := range candidates {
		total += capacityOf(r)
	}
	if total < population {
		return append([]domain.EvacuationRoute(nil), candidates...)
	}

	if len(candidates) > exactSearchBound {
		return greedySelect(candidates, population, capacityOf)
	}

	bestMask := -1
	bestDistance := math.MaxFloat64
	bestCount := len(candidates) + 1
	for mask := 1; mask < 1<<len(candidates); mask++ {
		capacity := 0
		distance := 0.0
		count := 0
		for i, r := range candidates {
			if mask&(1<<i) == 0 {
				continue
			}
			capacity += capacityOf(r)
			distance += r.DistanceKm
			count++
		}
		if capacity < population {
			continue
		}
		if distance < bestDistance || (distance == bestDistance && count < bestCount) {
			bestMask = mask
			bestDistance = distance
			bestCount = count
		}
	}

	var selected []domain.EvacuationRoute
	for i, r := range candidates {
		if bestMask&(1<<i) != 0 {
			selected = append(selected, r)
		}
	}
	return selected
}

// greedySelect adds routes nearest-first until the population is covered.
// Used only beyond the exact enumeration bound.
func greedySelect(candidates []domain.EvacuationRoute, population int, capacityOf func(domain.EvacuationRoute) int) []domain.EvacuationRoute {
	var selected []domain.EvacuationRoute
	covered := 0
	for _, r := range candidates {
		if covered >= population {
			break
		}
		selected = append(selected, r)
		covered += capacityOf(r)
	}
	return selected
}
