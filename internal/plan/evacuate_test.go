package plan

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/disaster-response-coordinator/internal/domain"
)

func TestBuildEvacuationPlan_CoversEveryZone(t *testing.T) {
	plan := buildEvacuationPlan(fixtureContext(), 4)
	require.NotEmpty(t, plan)

	byZone := make(map[string][]domain.EvacuationRoute)
	for _, r := range plan {
		byZone[r.FromZoneID] = append(byZone[r.FromZoneID], r)
	}
	require.Contains(t, byZone, "zone-001")
	require.Contains(t, byZone, "zone-002")

	// Selected routes must cover each zone's population within the window.
	zones := map[string]int{"zone-001": 60000, "zone-002": 15000}
	for zoneID, routes := range byZone {
		covered := 0
		for _, r := range routes {
			covered += r.CapacityPerHour * 4
		}
		assert.GreaterOrEqual(t, covered, zones[zoneID], "zone %s under-covered", zoneID)
	}
}

func TestSelectRoutes_MatchesBruteForce(t *testing.T) {
	zone := domain.PopulationZone{ID: "z", CenterLat: 37.76, CenterLon: -122.41, Population: 9000}
	centers := []domain.EvacuationCenter{
		{ID: "c1", Lat: 37.78, Lon: -122.40, Capacity: 4000},
		{ID: "c2", Lat: 37.70, Lon: -122.42, Capacity: 6000},
		{ID: "c3", Lat: 37.75, Lon: -122.20, Capacity: 12000},
		{ID: "c4", Lat: 37.80, Lon: -122.27, Capacity: 5000},
		{ID: "c5", Lat: 37.74, Lon: -122.44, Capacity: 3000},
	}
	const window = 4

	candidates := candidateRoutes(zone, centers, window)
	selected := selectRoutes(candidates, zone.Population, window)

	// Brute force over every subset.
	bestDistance := math.MaxFloat64
	for mask := 1; mask < 1<<len(candidates); mask++ {
		capacity := 0
		distance := 0.0
		for i, r := range candidates {
			if mask&(1<<i) != 0 {
				capacity += r.CapacityPerHour * window
				distance += r.DistanceKm
			}
		}
		if capacity >= zone.Population && distance < bestDistance {
			bestDistance = distance
		}
	}

	total := 0.0
	capacity := 0
	for _, r := range selected {
		total += r.DistanceKm
		capacity += r.CapacityPerHour * window
	}
	assert.GreaterOrEqual(t, capacity, zone.Population)
	assert.InDelta(t, bestDistance, total, 1e-9, "selection must match the minimal feasible subset")
}

func TestSelectRoutes_InfeasibleReturnsAllCandidates(t *testing.T) {
	zone := domain.PopulationZone{ID: "z", CenterLat: 37.76, CenterLon: -122.41, Population: 1000000}
	centers := []domain.EvacuationCenter{
		{ID: "c1", Lat: 37.78, Lon: -122.40, Capacity: 4000},
		{ID: "c2", Lat: 37.70, Lon: -122.42, Capacity: 6000},
	}

	candidates := candidateRoutes(zone, centers, 4)
	selected := selectRoutes(candidates, zone.Population, 4)
	assert.Len(t, selected, 2, "infeasible demand keeps every route as best effort")
}

func TestSelectRoutes_GreedyBeyondBound(t *testing.T) {
	zone := domain.PopulationZone{ID: "z", CenterLat: 37.76, CenterLon: -122.41, Population: 50000}
	var centers []domain.EvacuationCenter
	for i := 0; i < 20; i++ {
		centers = append(centers, domain.EvacuationCenter{
			ID:       string(rune('a' + i)),
			Lat:      37.70 + float64(i)*0.01,
			Lon:      -122.40,
			Capacity: 8000,
		})
	}

	candidates := candidateRoutes(zone, centers, 4)
	selected := selectRoutes(candidates, zone.Population, 4)

	capacity := 0
	for _, r := range selected {
		capacity += r.CapacityPerHour * 4
	}
	assert.GreaterOrEqual(t, capacity, zone.Population)
	assert.Less(t, len(selected), len(candidates), "greedy should stop once covered")
}

func TestCandidateRoutes_Deterministic(t *testing.T) {
	zone := domain.PopulationZone{ID: "z", CenterLat: 37.76, CenterLon: -122.41, Population: 5000}
	centers := fixtureContext().EvacuationCenters

	first := candidateRoutes(zone, centers, 4)
	second := candidateRoutes(zone, centers, 4)
	require.Equal(t, first, second)

	for i := 1; i < len(first); i++ {
		assert.LessOrEqual(t, first[i-1].DistanceKm, first[i].DistanceKm, "candidates sorted by distance")
	}
}
