// Command simulate runs one complete detection and planning cycle against a
// canned disaster scenario, with no external feeds, language model, or
// webhook. It uses the actual workflow engines so the output matches real
// service behavior.
//
// Usage:
//
//	go run ./cmd/simulate \
//	  -scenario san_francisco_earthquake \
//	  -data-dir data \
//	  -out /tmp/run_state.json
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/disaster-response-coordinator/internal/agent"
	"github.com/couchcryptid/disaster-response-coordinator/internal/detect"
	"github.com/couchcryptid/disaster-response-coordinator/internal/domain"
	"github.com/couchcryptid/disaster-response-coordinator/internal/observability"
	"github.com/couchcryptid/disaster-response-coordinator/internal/orchestrator"
	"github.com/couchcryptid/disaster-response-coordinator/internal/plan"
)

var baseTime = time.Date(2026, time.August, 28, 12, 0, 0, 0, time.UTC)

// scenario is one canned disaster situation.
type scenario struct {
	region    domain.Region
	situation string
	records   []domain.HazardRecord
}

var scenarios = map[string]scenario{
	"san_francisco_earthquake": {
		region: domain.Region{
			Name: "San Francisco Bay Area", CenterLat: 37.7749, CenterLon: -122.4194,
			RadiusKm: 100, PopulationDensity: 2000,
		},
		situation: "major earthquake ongoing, aftershocks expected",
		records: []domain.HazardRecord{
			{
				ID: "sim-eq-1", Source: "usgs_earthquake", EventType: domain.DisasterEarthquake,
				Lat: 37.77, Lon: -122.42, Time: baseTime.Add(-10 * time.Minute),
				Magnitude: 6.8, Severity: domain.SeverityCritical, Confidence: 1.0,
				Headline: "M 6.8 - 3km SSW of San Francisco, CA",
			},
			{
				ID: "sim-eq-2", Source: "usgs_earthquake", EventType: domain.DisasterEarthquake,
				Lat: 37.75, Lon: -122.44, Time: baseTime.Add(-4 * time.Minute),
				Magnitude: 4.2, Severity: domain.SeverityHigh, Confidence: 1.0,
				Headline: "M 4.2 - aftershock near San Francisco, CA",
			},
		},
	},
	"los_angeles_wildfire": {
		region: domain.Region{
			Name: "Los Angeles County", CenterLat: 34.0522, CenterLon: -118.2437,
			RadiusKm: 120, PopulationDensity: 1500,
		},
		situation: "wind-driven wildfire spreading, evacuations in progress",
		records: []domain.HazardRecord{
			{
				ID: "sim-fire-1", Source: "noaa_weather", EventType: domain.DisasterWildfire,
				Lat: 34.10, Lon: -118.30, Time: baseTime.Add(-30 * time.Minute),
				Severity: domain.SeverityCritical, Confidence: 1.0,
				Headline: "Red Flag Warning with extreme fire behavior",
			},
			{
				ID: "sim-fire-2", Source: "noaa_weather", EventType: domain.DisasterWildfire,
				Lat: 34.15, Lon: -118.25, Time: baseTime.Add(-12 * time.Minute),
				Severity: domain.SeverityHigh, Confidence: 0.7,
				Headline: "Fire Weather Watch for the foothill communities",
			},
		},
	},
	"miami_hurricane": {
		region: domain.Region{
			Name: "Miami-Dade County", CenterLat: 25.7617, CenterLon: -80.1918,
			RadiusKm: 80, PopulationDensity: 1800,
		},
		situation: "hurricane landfall happening now",
		records: []domain.HazardRecord{
			{
				ID: "sim-hur-1", Source: "noaa_weather", EventType: domain.DisasterHurricane,
				Lat: 25.76, Lon: -80.19, Time: baseTime.Add(-60 * time.Minute),
				Severity: domain.SeverityCritical, Confidence: 1.0,
				Headline: "Hurricane Warning for the Florida east coast",
			},
		},
	},
}

// stubFetcher feeds one scenario's records into the detection engine.
type stubFetcher struct {
	records []domain.HazardRecord
}

func (s *stubFetcher) Fetch(ctx context.Context, region domain.Region) ([]domain.HazardRecord, error) {
	return s.records, nil
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	name := flag.String("scenario", "san_francisco_earthquake", "scenario name (see -list)")
	dataDir := flag.String("data-dir", "data", "planning data directory with CSV files")
	out := flag.String("out", "", "output path for the run state JSON (default stdout)")
	list := flag.Bool("list", false, "list scenarios and exit")
	flag.Parse()

	if *list {
		for _, n := range scenarioNames() {
			fmt.Println(n)
		}
		return nil
	}

	sc, ok := scenarios[*name]
	if !ok {
		return fmt.Errorf("unknown scenario %q, try: %s", *name, strings.Join(scenarioNames(), ", "))
	}

	// Freeze time for reproducible timestamps and session output.
	clock := clockwork.NewFakeClockAt(baseTime)
	domain.SetClock(clock)
	defer domain.SetClock(nil)

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	metrics := observability.NewMetricsForTesting()

	loader := plan.NewContextLoader(*dataDir, logger)
	planner, err := plan.NewEngine(loader, nil, plan.Config{EvacuationWindowHours: 4}, logger, metrics)
	if err != nil {
		return fmt.Errorf("building planning engine: %w", err)
	}

	detector, err := detect.NewEngine(
		&stubFetcher{records: sc.records},
		nil, // no model, classification falls through to the rules
		agent.NewFallbackClassifier(),
		nil,
		loader,
		planner,
		detect.Config{ConfirmationThreshold: 0.7, LowConfidenceFloor: 0.3, EscalationThreshold: 0.6},
		clock, logger, metrics)
	if err != nil {
		return fmt.Errorf("building detection engine: %w", err)
	}

	state := domain.NewRunState(sc.region, sc.situation)
	if err := detector.RunCycle(context.Background(), state); err != nil {
		return fmt.Errorf("running cycle: %w", err)
	}

	if err := writeState(*out, state); err != nil {
		return fmt.Errorf("writing run state: %w", err)
	}

	printSummary(orchestrator.Summarize(state, clock.Now()), state)
	return nil
}

func scenarioNames() []string {
	names := make([]string, 0, len(scenarios))
	for n := range scenarios {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func writeState(path string, state *domain.RunState) error {
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')

	if path == "" {
		_, err = os.Stdout.Write(data)
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

func printSummary(res orchestrator.Result, state *domain.RunState) {
	fmt.Fprintln(os.Stderr, "\n=== Cycle summary ===")
	fmt.Fprintf(os.Stderr, "Session: %s\n", res.SessionID)
	fmt.Fprintf(os.Stderr, "Region: %s\n", res.Region)
	fmt.Fprintf(os.Stderr, "Phase: %s\n", res.Phase)
	fmt.Fprintf(os.Stderr, "Threat: %v (%s, confidence %.2f, source %s)\n",
		res.Detection.ThreatDetected, res.Detection.DisasterType,
		res.Detection.ConfidenceScore, classificationSource(state))
	fmt.Fprintf(os.Stderr, "Severity: %s (score %.2f), population at risk %d\n",
		res.Detection.SeverityLevel, res.Detection.SeverityScore, populationAtRisk(state))
	fmt.Fprintf(os.Stderr, "Escalated: %v, planning triggered: %v\n",
		res.Detection.Escalated, res.PlanningTriggered)

	if res.Planning != nil {
		fmt.Fprintf(os.Stderr, "Deployments: %d\n", res.Planning.Deployments)
		for _, d := range state.Deployments {
			fmt.Fprintf(os.Stderr, "  %s -> %s (priority %s, ETA %d min)\n",
				d.TeamID, d.ZoneID, d.Priority, d.EstimatedArrivalMinutes)
		}
		fmt.Fprintf(os.Stderr, "Evacuation routes: %d\n", res.Planning.EvacuationRoutes)
		for _, r := range state.Routes {
			fmt.Fprintf(os.Stderr, "  %s -> %s (%.1f km, %d people/hour)\n",
				r.FromZoneID, r.ToCenterID, r.DistanceKm, r.CapacityPerHour)
		}
		fmt.Fprintf(os.Stderr, "Notifications drafted: %d\n", len(state.Notifications))
	}
	if res.GlobalError != "" {
		fmt.Fprintf(os.Stderr, "Global error: %s\n", res.GlobalError)
	}
	for _, e := range res.ProcessingErrors {
		fmt.Fprintf(os.Stderr, "Processing error: %s\n", e)
	}
}

func classificationSource(state *domain.RunState) string {
	if state.Classification == nil {
		return "none"
	}
	return state.Classification.Source
}

func populationAtRisk(state *domain.RunState) int {
	if state.Severity == nil {
		return 0
	}
	return state.Severity.PopulationAtRisk
}
