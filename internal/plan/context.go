// Package plan turns an escalated event plus region context into team
// deployments, evacuation routes, and notification drafts.
package plan

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"github.com/couchcryptid/disaster-response-coordinator/internal/domain"
)

// ContextLoader reads the planning context from CSV files in a data
// directory: response_teams.csv, population_zones.csv, and
// evacuation_centers.csv.
type ContextLoader struct {
	dataDir string
	logger  *slog.Logger
}

// NewContextLoader creates a loader over the given data directory.
func NewContextLoader(dataDir string, logger *slog.Logger) *ContextLoader {
	return &ContextLoader{dataDir: dataDir, logger: logger}
}

// Load reads all three CSV files. A missing or malformed file is fatal to
// the planning run and reported as ErrContextLoad.
func (l *ContextLoader) Load(ctx context.Context, region domain.Region) (domain.PlanningContext, error) {
	teams, err := l.loadTeams()
	if err != nil {
		return domain.PlanningContext{}, fmt.Errorf("%w: %v", domain.ErrContextLoad, err)
	}
	zones, err := l.loadZones()
	if err != nil {
		return domain.PlanningContext{}, fmt.Errorf("%w: %v", domain.ErrContextLoad, err)
	}
	centers, err := l.loadCenters()
	if err != nil {
		return domain.PlanningContext{}, fmt.Errorf("%w: %v", domain.ErrContextLoad, err)
	}

	l.logger.Info("planning context loaded",
		"teams", len(teams), "population_zones", len(zones), "evacuation_centers", len(centers))

	return domain.PlanningContext{
		Region:            region,
		Teams:             teams,
		PopulationZones:   zones,
		EvacuationCenters: centers,
	}, nil
}

// Locate derives safe zones from the evacuation center inventory, so the
// detection engine's zone analysis works off the same data planning uses.
func (l *ContextLoader) Locate(ctx context.Context, region domain.Region, disasterType domain.DisasterType) ([]domain.SafeZone, error) {
	centers, err := l.loadCenters()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrContextLoad, err)
	}

	zones := make([]domain.SafeZone, 0, len(centers))
	for _, c := range centers {
		zones = append(zones, domain.SafeZone{
			ID:       "safe_zone_" + c.ID,
			Name:     c.Name,
			Kind:     "shelter",
			Lat:      c.Lat,
			Lon:      c.Lon,
			Capacity: c.Capacity,
		})
	}
	return zones, nil
}

func (l *ContextLoader) loadTeams() ([]domain.ResponseTeam, error) {
	rows, err := readCSV(filepath.Join(l.dataDir, "response_teams.csv"))
	if err != nil {
		return nil, err
	}

	teams := make([]domain.ResponseTeam, 0, len(rows))
	for i, row := range rows {
		capacity, err := row.intField("capacity")
		if err != nil {
			return nil, fmt.Errorf("response_teams.csv row %d: %w", i+2, err)
		}
		responseTime, err := row.intField("response_time_minutes")
		if err != nil {
			return nil, fmt.Errorf("response_teams.csv row %d: %w", i+2, err)
		}
		lat, err := row.floatField("base_lat")
		if err != nil {
			return nil, fmt.Errorf("response_teams.csv row %d: %w", i+2, err)
		}
		lon, err := row.floatField("base_lon")
		if err != nil {
			return nil, fmt.Errorf("response_teams.csv row %d: %w", i+2, err)
		}

		teams = append(teams, domain.ResponseTeam{
			ID:                  row.field("team_id"),
			Name:                row.field("team_name"),
			Kind:                row.field("team_type"),
			Specialization:      row.field("specialization"),
			Capacity:            capacity,
			ResponseTimeMinutes: responseTime,
			BaseLat:             lat,
			BaseLon:             lon,
			Available:           row.field("availability_status") == "available",
		})
	}
	return teams, nil
}

func (l *ContextLoader) loadZones() ([]domain.PopulationZone, error) {
	rows, err := readCSV(filepath.Join(l.dataDir, "population_zones.csv"))
	if err != nil {
		return nil, err
	}

	zones := make([]domain.PopulationZone, 0, len(rows))
	for i, row := range rows {
		population, err := row.intField("population")
		if err != nil {
			return nil, fmt.Errorf("population_zones.csv row %d: %w", i+2, err)
		}
		specialNeeds, err := row.intField("special_needs_population")
		if err != nil {
			return nil, fmt.Errorf("population_zones.csv row %d: %w", i+2, err)
		}
		lat, err := row.floatField("center_lat")
		if err != nil {
			return nil, fmt.Errorf("population_zones.csv row %d: %w", i+2, err)
		}
		lon, err := row.floatField("center_lon")
		if err != nil {
			return nil, fmt.Errorf("population_zones.csv row %d: %w", i+2, err)
		}
		radius, err := row.floatField("radius_km")
		if err != nil {
			return nil, fmt.Errorf("population_zones.csv row %d: %w", i+2, err)
		}

		zones = append(zones, domain.PopulationZone{
			ID:                     row.field("zone_id"),
			Name:                   row.field("zone_name"),
			CenterLat:              lat,
			CenterLon:              lon,
			RadiusKm:               radius,
			Population:             population,
			VulnerabilityScore:     row.field("vulnerability_score"),
			SpecialNeedsPopulation: specialNeeds,
		})
	}
	return zones, nil
}

func (l *ContextLoader) loadCenters() ([]domain.EvacuationCenter, error) {
	rows, err := readCSV(filepath.Join(l.dataDir, "evacuation_centers.csv"))
	if err != nil {
		return nil, err
	}

	centers := make([]domain.EvacuationCenter, 0, len(rows))
	for i, row := range rows {
		capacity, err := row.intField("capacity")
		if err != nil {
			return nil, fmt.Errorf("evacuation_centers.csv row %d: %w", i+2, err)
		}
		lat, err := row.floatField("lat")
		if err != nil {
			return nil, fmt.Errorf("evacuation_centers.csv row %d: %w", i+2, err)
		}
		lon, err := row.floatField("lon")
		if err != nil {
			return nil, fmt.Errorf("evacuation_centers.csv row %d: %w", i+2, err)
		}

		centers = append(centers, domain.EvacuationCenter{
			ID:       row.field("center_id"),
			Name:     row.field("center_name"),
			Lat:      lat,
			Lon:      lon,
			Capacity: capacity,
		})
	}
	return centers, nil
}

// csvRow pairs one record with its header for name-based field access.
type csvRow struct {
	header map[string]int
	record []string
}

func (r csvRow) field(name string) string {
	if i, ok := r.header[name]; ok && i < len(r.record) {
		return r.record[i]
	}
	return ""
}

func (r csvRow) intField(name string) (int, error) {
	v, err := strconv.Atoi(r.field(name))
	if err != nil {
		return 0, fmt.Errorf("column %q: %v", name, err)
	}
	return v, nil
}

func (r csvRow) floatField(name string) (float64, error) {
	v, err := strconv.ParseFloat(r.field(name), 64)
	if err != nil {
		return 0, fmt.Errorf("column %q: %v", name, err)
	}
	return v, nil
}

func readCSV(path string) ([]csvRow, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	reader := csv.NewReader(f)
	headerRec, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("%s: read header: %v", filepath.Base(path), err)
	}
	header := make(map[string]int, len(headerRec))
	for i, name := range headerRec {
		header[name] = i
	}

	var rows []csvRow
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%s: %v", filepath.Base(path), err)
		}
		rows = append(rows, csvRow{header: header, record: record})
	}
	return rows, nil
}
