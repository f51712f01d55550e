package agent

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

// SearchConfirmer cross-checks a low-confidence classification against a
// news/web search endpoint. It is a corroboration signal, not an oracle:
// failures are reported to the caller, which decides whether to proceed
// without confirmation.
type SearchConfirmer struct {
	httpClient *http.Client
	baseURL    string
	logger     *slog.Logger
}

// NewSearchConfirmer creates a confirmer against the given search endpoint.
func NewSearchConfirmer(baseURL string, timeout time.Duration, logger *slog.Logger) *SearchConfirmer {
	return &SearchConfirmer{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL: baseURL,
		logger:  logger,
	}
}

// Confirm searches for recent reports matching the classified disaster type
// near the region and reports whether any corroborate the classification.
func (c *SearchConfirmer) Confirm(ctx context.Context, cls domain.Classification, region domain.Region) (bool, error) {
	query := fmt.Sprintf("%s %s", strings.ReplaceAll(string(cls.DisasterType), "_", " "), region.Name)
	params := url.Values{
		"q":   {query},
		"max": {"5"},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return false, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("search request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return false, fmt.Errorf("search API error: status %d: %s", resp.StatusCode, body)
	}

	var sr searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		return false, fmt.Errorf("decode search response: %w", err)
	}

	matches := 0
	needle := strings.ToLower(strings.ReplaceAll(string(cls.DisasterType), "_", " "))
	for _, r := range sr.Results {
		text := strings.ToLower(r.Title + " " + r.Snippet)
		if strings.Contains(text, needle) {
			matches++
		}
	}

	confirmed := matches > 0
	c.logger.Info("search confirmation completed",
		"query", query, "results", len(sr.Results), "matches", matches, "confirmed", confirmed)
	return confirmed, nil
}

type searchResponse struct {
	Results []searchResult `json:"results"`
}

type searchResult struct {
	Title   string `json:"title"`
	Snippet string `json:"snippet"`
}
