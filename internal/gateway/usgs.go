// Package gateway implements the hazard feed clients. Each client normalizes
// one upstream source into domain.HazardRecord values; MultiSource fans out
// across all of them per cycle.
package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/disaster-response-coordinator/internal/domain"
)

// USGSClient fetches recent earthquakes from the USGS FDSN event catalog.
type USGSClient struct {
	httpClient *http.Client
	baseURL    string
	clock      clockwork.Clock
	logger     *slog.Logger

	minMagnitude float64
	lookback     time.Duration
}

// NewUSGSClient creates a USGS earthquake catalog client. The clock anchors
// the lookback window of each query.
func NewUSGSClient(timeout time.Duration, clock clockwork.Clock, logger *slog.Logger) *USGSClient {
	return &USGSClient{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL:      "https://earthquake.usgs.gov/fdsnws/event/1",
		clock:        clock,
		logger:       logger,
		minMagnitude: 2.0,
		lookback:     24 * time.Hour,
	}
}

// Name identifies the source in logs, metrics, and record provenance.
func (c *USGSClient) Name() string { return "usgs_earthquake" }

// Fetch returns earthquakes within the region's radius over the lookback
// window, newest last.
func (c *USGSClient) Fetch(ctx context.Context, region domain.Region) ([]domain.HazardRecord, error) {
	end := c.clock.Now().UTC()
	start := end.Add(-c.lookback)

	params := url.Values{
		"format":       {"geojson"},
		"latitude":     {fmt.Sprintf("%.4f", region.CenterLat)},
		"longitude":    {fmt.Sprintf("%.4f", region.CenterLon)},
		"maxradiuskm":  {fmt.Sprintf("%.1f", region.RadiusKm)},
		"minmagnitude": {fmt.Sprintf("%.1f", c.minMagnitude)},
		"starttime":    {start.Format("2006-01-02T15:04:05")},
		"endtime":      {end.Format("2006-01-02T15:04:05")},
		"orderby":      {"time-asc"},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/query?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: usgs: %v", domain.ErrSourceUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%w: usgs: status %d: %s", domain.ErrSourceUnavailable, resp.StatusCode, body)
	}

	var feed usgsFeed
	if err := json.NewDecoder(resp.Body).Decode(&feed); err != nil {
		return nil, fmt.Errorf("%w: usgs: decode: %v", domain.ErrSourceUnavailable, err)
	}

	records := make([]domain.HazardRecord, 0, len(feed.Features))
	for _, f := range feed.Features {
		if len(f.Geometry.Coordinates) < 2 {
			c.logger.Warn("skipping earthquake without coordinates", "id", f.ID)
			continue
		}
		records = append(records, domain.HazardRecord{
			ID:        f.ID,
			Source:    c.Name(),
			EventType: domain.DisasterEarthquake,
			Lon:       f.Geometry.Coordinates[0],
			Lat:       f.Geometry.Coordinates[1],
			Time:      time.UnixMilli(f.Properties.Time).UTC(),
			Magnitude: f.Properties.Mag,
			Severity:  domain.SeverityFromMagnitude(f.Properties.Mag),
			// The catalog reports observed events, not forecasts.
			Confidence: 1.0,
			Headline:   f.Properties.Title,
		})
	}
	return records, nil
}

const userAgent = "disaster-response-coordinator/1.0"

// USGS GeoJSON feed types.

type usgsFeed struct {
	Features []usgsFeature `json:"features"`
}

type usgsFeature struct {
	ID         string `json:"id"`
	Properties struct {
		Mag   float64 `json:"mag"`
		Title string  `json:"title"`
		Time  int64   `json:"time"` // epoch milliseconds
	} `json:"properties"`
	Geometry struct {
		Coordinates []float64 `json:"coordinates"` // [lon, lat, depth]
	} `json:"geometry"`
}
