package domain

import (
	"math"
	"time"
)

// HazardRecord is the normalized form of one observation from an external
// hazard feed.
type HazardRecord struct {
	ID         string        `json:"id"`
	Source     string        `json:"source"` // e.g. "usgs_earthquake", "noaa_weather"
	EventType  DisasterType  `json:"event_type"`
	Lat        float64       `json:"lat"`
	Lon        float64       `json:"lon"`
	Time       time.Time     `json:"time"`
	Magnitude  float64       `json:"magnitude"`
	Severity   SeverityLevel `json:"severity"`
	Confidence float64       `json:"confidence"` // provider confidence, 0.0 to 1.0
	Headline   string        `json:"headline,omitempty"`
}

// Region describes one monitored geographic area.
type Region struct {
	Name              string  `json:"name"`
	CenterLat         float64 `json:"center_lat"`
	CenterLon         float64 `json:"center_lon"`
	RadiusKm          float64 `json:"radius_km"`
	PopulationDensity int     `json:"population_density_per_km2"`
}

// Validate reports ErrInvalidRegion for coordinates or radii no hazard
// source can serve.
func (r Region) Validate() error {
	if r.CenterLat < -90 || r.CenterLat > 90 || r.CenterLon < -180 || r.CenterLon > 180 {
		return ErrInvalidRegion
	}
	if r.RadiusKm <= 0 {
		return ErrInvalidRegion
	}
	return nil
}

// ReduceToStrongest collapses one poll cycle's records to the single
// highest-severity signal. Ties break on magnitude descending, then record
// ID ascending so reduction is deterministic. Lower-severity concurrent
// records stay in the run state for audit but do not trigger classification
// on their own.
func ReduceToStrongest(records []HazardRecord) (HazardRecord, bool) {
	if len(records) == 0 {
		return HazardRecord{}, false
	}
	best := records[0]
	for _, r := range records[1:] {
		switch {
		case r.Severity.Rank() > best.Severity.Rank():
			best = r
		case r.Severity.Rank() == best.Severity.Rank() && r.Magnitude > best.Magnitude:
			best = r
		case r.Severity.Rank() == best.Severity.Rank() && r.Magnitude == best.Magnitude && r.ID < best.ID:
			best = r
		}
	}
	return best, true
}

// SeverityFromMagnitude maps an earthquake magnitude to a severity level.
func SeverityFromMagnitude(mag float64) SeverityLevel {
	switch {
	case mag >= 6.0:
		return SeverityCritical
	case mag >= 4.5:
		return SeverityHigh
	case mag >= 3.0:
		return SeverityModerate
	default:
		return SeverityLow
	}
}

const earthRadiusKm = 6371.0

// DistanceKm returns the haversine great-circle distance between two
// WGS-84 coordinate pairs.
func DistanceKm(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := (lat2 - lat1) * math.Pi / 180
	dLon := (lon2 - lon1) * math.Pi / 180
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1*math.Pi/180)*math.Cos(lat2*math.Pi/180)*
			math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusKm * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}
