package plan

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/disaster-response-coordinator/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testRegion() domain.Region {
	return domain.Region{
		Name:              "San Francisco Bay Area",
		CenterLat:         37.7749,
		CenterLon:         -122.4194,
		RadiusKm:          100,
		PopulationDensity: 2000,
	}
}

const teamsCSV = `team_id,team_name,team_type,specialization,capacity,response_time_minutes,base_lat,base_lon,availability_status,equipment_level
team-001,SF Fire Rescue 1,fire_rescue,urban_search_rescue,50,15,37.7749,-122.4194,available,heavy
team-002,Oakland Medical 3,medical,mass_casualty,30,20,37.8044,-122.2712,available,standard
team-003,San Jose HazMat,hazmat,chemical_response,25,35,37.3382,-121.8863,deployed,heavy
`

const zonesCSV = `zone_id,zone_name,center_lat,center_lon,radius_km,population,population_density_per_km2,vulnerability_score,demographics,special_needs_population
zone-001,Mission District,37.7599,-122.4148,2.5,60000,12000,high,mixed,4000
zone-002,Financial District,37.7946,-122.3999,1.5,15000,18000,medium,commuter,500
`

const centersCSV = `center_id,center_name,lat,lon,capacity
center-001,Moscone Center,37.7842,-122.4016,8000
center-002,Cow Palace,37.7068,-122.4194,5000
center-003,Oakland Arena,37.7503,-122.2030,12000
`

func writeDataDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "response_teams.csv"), []byte(teamsCSV), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "population_zones.csv"), []byte(zonesCSV), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "evacuation_centers.csv"), []byte(centersCSV), 0o644))
	return dir
}

func TestContextLoader_Load(t *testing.T) {
	loader := NewContextLoader(writeDataDir(t), testLogger())

	pctx, err := loader.Load(context.Background(), testRegion())
	require.NoError(t, err)

	require.Len(t, pctx.Teams, 3)
	first := pctx.Teams[0]
	assert.Equal(t, "team-001", first.ID)
	assert.Equal(t, "SF Fire Rescue 1", first.Name)
	assert.Equal(t, "fire_rescue", first.Kind)
	assert.Equal(t, 50, first.Capacity)
	assert.Equal(t, 15, first.ResponseTimeMinutes)
	assert.True(t, first.Available)
	assert.False(t, pctx.Teams[2].Available, "deployed teams are unavailable")

	require.Len(t, pctx.PopulationZones, 2)
	assert.Equal(t, 60000, pctx.PopulationZones[0].Population)
	assert.Equal(t, "high", pctx.PopulationZones[0].VulnerabilityScore)

	require.Len(t, pctx.EvacuationCenters, 3)
	assert.Equal(t, 8000, pctx.EvacuationCenters[0].Capacity)

	assert.Equal(t, testRegion(), pctx.Region)
}

func TestContextLoader_MissingFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "response_teams.csv"), []byte(teamsCSV), 0o644))

	loader := NewContextLoader(dir, testLogger())
	_, err := loader.Load(context.Background(), testRegion())
	assert.ErrorIs(t, err, domain.ErrContextLoad)
}

func TestContextLoader_MalformedRow(t *testing.T) {
	dir := writeDataDir(t)
	bad := "team_id,team_name,team_type,specialization,capacity,response_time_minutes,base_lat,base_lon,availability_status,equipment_level\n" +
		"team-001,Broken,fire_rescue,rescue,not-a-number,15,37.7,-122.4,available,heavy\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "response_teams.csv"), []byte(bad), 0o644))

	loader := NewContextLoader(dir, testLogger())
	_, err := loader.Load(context.Background(), testRegion())
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrContextLoad)
	assert.Contains(t, err.Error(), "capacity")
}

func TestContextLoader_Locate(t *testing.T) {
	loader := NewContextLoader(writeDataDir(t), testLogger())

	zones, err := loader.Locate(context.Background(), testRegion(), domain.DisasterEarthquake)
	require.NoError(t, err)
	require.Len(t, zones, 3)
	assert.Equal(t, "safe_zone_center-001", zones[0].ID)
	assert.Equal(t, "Moscone Center", zones[0].Name)
	assert.Equal(t, 8000, zones[0].Capacity)
}
