package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/couchcryptid/disaster-response-coordinator/internal/domain"
)

// NOAAClient fetches active weather alerts from the National Weather Service.
type NOAAClient struct {
	httpClient *http.Client
	baseURL    string
	logger     *slog.Logger
}

// NewNOAAClient creates an NWS active-alerts client.
func NewNOAAClient(timeout time.Duration, logger *slog.Logger) *NOAAClient {
	return &NOAAClient{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL: "https://api.weather.gov",
		logger:  logger,
	}
}

// Name identifies the source in logs, metrics, and record provenance.
func (c *NOAAClient) Name() string { return "noaa_weather" }

// Fetch returns active alerts covering the region's center point.
func (c *NOAAClient) Fetch(ctx context.Context, region domain.Region) ([]domain.HazardRecord, error) {
	params := url.Values{
		"point":        {fmt.Sprintf("%.4f,%.4f", region.CenterLat, region.CenterLon)},
		"status":       {"actual"},
		"message_type": {"alert"},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/alerts/active?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/geo+json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: noaa: %v", domain.ErrSourceUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%w: noaa: status %d: %s", domain.ErrSourceUnavailable, resp.StatusCode, body)
	}

	var feed noaaFeed
	if err := json.NewDecoder(resp.Body).Decode(&feed); err != nil {
		return nil, fmt.Errorf("%w: noaa: decode: %v", domain.ErrSourceUnavailable, err)
	}

	records := make([]domain.HazardRecord, 0, len(feed.Features))
	for _, f := range feed.Features {
		sent, err := time.Parse(time.RFC3339, f.Properties.Sent)
		if err != nil {
			c.logger.Warn("skipping alert with unparseable timestamp", "id", f.Properties.ID, "sent", f.Properties.Sent)
			continue
		}
		records = append(records, domain.HazardRecord{
			ID:         f.Properties.ID,
			Source:     c.Name(),
			EventType:  eventTypeFromAlert(f.Properties.Event),
			Lat:        region.CenterLat,
			Lon:        region.CenterLon,
			Time:       sent.UTC(),
			Severity:   severityFromAlert(f.Properties.Severity),
			Confidence: confidenceFromCertainty(f.Properties.Certainty),
			Headline:   f.Properties.Headline,
		})
	}
	return records, nil
}

// severityFromAlert maps NWS alert severity vocabulary to the four-level
// scale. The NWS scale has five values; Extreme and Severe collapse onto the
// top two levels.
func severityFromAlert(v string) domain.SeverityLevel {
	switch strings.ToLower(v) {
	case "extreme":
		return domain.SeverityCritical
	case "severe":
		return domain.SeverityHigh
	case "moderate":
		return domain.SeverityModerate
	default: // Minor, Unknown
		return domain.SeverityLow
	}
}

// confidenceFromCertainty maps NWS certainty vocabulary to a confidence score.
func confidenceFromCertainty(v string) float64 {
	switch strings.ToLower(v) {
	case "observed":
		return 1.0
	case "likely":
		return 0.7
	case "possible":
		return 0.4
	default:
		return 0.5
	}
}

// eventTypeFromAlert classifies an NWS event name into a disaster type.
func eventTypeFromAlert(event string) domain.DisasterType {
	e := strings.ToLower(event)
	switch {
	case strings.Contains(e, "hurricane"), strings.Contains(e, "tropical"):
		return domain.DisasterHurricane
	case strings.Contains(e, "tornado"):
		return domain.DisasterTornado
	case strings.Contains(e, "flood"):
		return domain.DisasterFlood
	case strings.Contains(e, "fire"), strings.Contains(e, "red flag"):
		return domain.DisasterWildfire
	case strings.Contains(e, "storm"), strings.Contains(e, "wind"), strings.Contains(e, "winter"):
		return domain.DisasterSevereWeather
	default:
		return domain.DisasterSevereWeather
	}
}

// NWS GeoJSON alert types.

type noaaFeed struct {
	Features []noaaFeature `json:"features"`
}

type noaaFeature struct {
	Properties struct {
		ID        string `json:"id"`
		Event     string `json:"event"`
		Severity  string `json:"severity"`
		Certainty string `json:"certainty"`
		Headline  string `json:"headline"`
		Sent      string `json:"sent"`
	} `json:"properties"`
}
