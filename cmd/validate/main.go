// Command validate performs integrity checks on a planning data directory:
// response teams, population zones, and evacuation centers. It verifies that
// the files load, that identifiers are unique, that coordinates and
// capacities are sane, and that the evacuation centers can plausibly cover
// the zone populations within the evacuation window.
//
// Usage:
//
//	go run ./cmd/validate -data-dir data -window-hours 4
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/couchcryptid/disaster-response-coordinator/internal/domain"
	"github.com/couchcryptid/disaster-response-coordinator/internal/plan"
)

// phase tracks pass/fail for one validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	dataDir := flag.String("data-dir", "data", "planning data directory with CSV files")
	windowHours := flag.Int("window-hours", 4, "evacuation window used for capacity coverage checks")
	flag.Parse()

	if *windowHours <= 0 {
		fmt.Fprintln(os.Stderr, "-window-hours must be positive")
		os.Exit(2)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	loader := plan.NewContextLoader(*dataDir, logger)

	pctx, err := loader.Load(context.Background(), domain.Region{Name: "validation"})
	if err != nil {
		fmt.Fprintf(os.Stderr, "FAIL loading %s: %v\n", *dataDir, err)
		os.Exit(1)
	}

	phases := []*phase{
		validateTeams(pctx.Teams),
		validateZones(pctx.PopulationZones),
		validateCenters(pctx.EvacuationCenters),
		validateCoverage(pctx, *windowHours),
	}

	failed := 0
	for _, p := range phases {
		if p.passed() {
			fmt.Printf("PASS %s\n", p.name)
			continue
		}
		failed++
		fmt.Printf("FAIL %s\n", p.name)
		for _, e := range p.errors {
			fmt.Printf("  - %s\n", e)
		}
	}

	fmt.Printf("\n%d teams, %d zones, %d centers\n",
		len(pctx.Teams), len(pctx.PopulationZones), len(pctx.EvacuationCenters))
	if failed > 0 {
		os.Exit(1)
	}
}

func validateTeams(teams []domain.ResponseTeam) *phase {
	p := &phase{name: "response teams"}
	if len(teams) == 0 {
		p.errorf("no teams defined")
		return p
	}

	seen := map[string]bool{}
	available := 0
	for _, t := range teams {
		if t.ID == "" {
			p.errorf("team with empty id (%q)", t.Name)
			continue
		}
		if seen[t.ID] {
			p.errorf("duplicate team id %s", t.ID)
		}
		seen[t.ID] = true
		if t.Capacity <= 0 {
			p.errorf("team %s: capacity must be positive, got %d", t.ID, t.Capacity)
		}
		if t.ResponseTimeMinutes < 0 {
			p.errorf("team %s: negative response time", t.ID)
		}
		if !validCoords(t.BaseLat, t.BaseLon) {
			p.errorf("team %s: coordinates out of range (%.4f, %.4f)", t.ID, t.BaseLat, t.BaseLon)
		}
		if t.Available {
			available++
		}
	}
	if available == 0 {
		p.errorf("no team is available, deployment planning would produce nothing")
	}
	return p
}

func validateZones(zones []domain.PopulationZone) *phase {
	p := &phase{name: "population zones"}
	if len(zones) == 0 {
		p.errorf("no population zones defined")
		return p
	}

	seen := map[string]bool{}
	for _, z := range zones {
		if z.ID == "" {
			p.errorf("zone with empty id (%q)", z.Name)
			continue
		}
		if seen[z.ID] {
			p.errorf("duplicate zone id %s", z.ID)
		}
		seen[z.ID] = true
		if z.Population <= 0 {
			p.errorf("zone %s: population must be positive, got %d", z.ID, z.Population)
		}
		if z.RadiusKm <= 0 {
			p.errorf("zone %s: radius must be positive, got %g", z.ID, z.RadiusKm)
		}
		if z.SpecialNeedsPopulation > z.Population {
			p.errorf("zone %s: special needs population %d exceeds population %d",
				z.ID, z.SpecialNeedsPopulation, z.Population)
		}
		if !validCoords(z.CenterLat, z.CenterLon) {
			p.errorf("zone %s: coordinates out of range (%.4f, %.4f)", z.ID, z.CenterLat, z.CenterLon)
		}
	}
	return p
}

func validateCenters(centers []domain.EvacuationCenter) *phase {
	p := &phase{name: "evacuation centers"}
	if len(centers) == 0 {
		p.errorf("no evacuation centers defined")
		return p
	}

	seen := map[string]bool{}
	for _, c := range centers {
		if c.ID == "" {
			p.errorf("center with empty id (%q)", c.Name)
			continue
		}
		if seen[c.ID] {
			p.errorf("duplicate center id %s", c.ID)
		}
		seen[c.ID] = true
		if c.Capacity <= 0 {
			p.errorf("center %s: capacity must be positive, got %d", c.ID, c.Capacity)
		}
		if !validCoords(c.Lat, c.Lon) {
			p.errorf("center %s: coordinates out of range (%.4f, %.4f)", c.ID, c.Lat, c.Lon)
		}
	}
	return p
}

// validateCoverage mirrors the evacuation planner's capacity model: each
// center moves capacity/window people per hour, and every zone must be
// coverable by the combined centers within the window.
func validateCoverage(pctx domain.PlanningContext, windowHours int) *phase {
	p := &phase{name: "evacuation coverage"}

	combined := 0
	for _, c := range pctx.EvacuationCenters {
		combined += (c.Capacity / windowHours) * windowHours
	}

	for _, z := range pctx.PopulationZones {
		if z.Population > combined {
			p.errorf("zone %s: population %d exceeds combined center throughput %d over %dh window",
				z.ID, z.Population, combined, windowHours)
		}
	}
	return p
}

func validCoords(lat, lon float64) bool {
	return lat >= -90 && lat <= 90 && lon >= -180 && lon <= 180
}
