// Package agent wraps the language-model classifier, its rule-based
// fallback, and the search-based confirmation client.
package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/couchcryptid/disaster-response-coordinator/internal/domain"
)

// chatCompleter is the slice of the OpenAI client the classifier needs.
type chatCompleter interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Classifier asks a chat model whether the monitoring data describes a
// disaster threat. Responses are strict JSON; one retry is allowed for a
// malformed reply before the caller falls back to rules.
type Classifier struct {
	client chatCompleter
	model  string
	logger *slog.Logger
}

// NewClassifier creates a model-backed classifier. The timeout bounds each
// completion request, including the malformed-reply retry.
func NewClassifier(apiKey, model string, timeout time.Duration, logger *slog.Logger) *Classifier {
	clientCfg := openai.DefaultConfig(apiKey)
	clientCfg.HTTPClient = &http.Client{Timeout: timeout}
	return &Classifier{
		client: openai.NewClientWithConfig(clientCfg),
		model:  model,
		logger: logger,
	}
}

const classifierSystemPrompt = "You are an expert disaster detection and classification system. " +
	"You analyze hazard monitoring data and respond with valid JSON only."

const classifierPromptTemplate = `Analyze the provided monitoring data and determine if there are signs of a disaster.

MONITORING DATA:
%s

LOCATION: %s

SITUATION REPORT: %s

Respond with a JSON object of this exact structure:
{
    "threat_detected": true/false,
    "disaster_type": "earthquake|wildfire|flood|hurricane|tornado|severe_weather|volcanic|landslide|unknown",
    "confidence_score": 0.0-1.0,
    "severity_level": "low|moderate|high|critical",
    "risk_factors": ["list", "of", "specific", "factors"],
    "requires_confirmation": true/false,
    "ongoing": true/false,
    "reasoning": "short explanation of the analysis"
}

ANALYSIS GUIDELINES:
1. EARTHQUAKE: magnitude 3.0 or higher, depth patterns, swarm activity
2. SEVERE WEATHER: tornado, hurricane, or storm warnings, wind speeds
3. FLOOD: precipitation rates, river levels, flash flood warnings
4. WILDFIRE: fire weather warnings, drought conditions, hotspot detections
5. Consider data recency, spatial clustering, and escalating patterns
6. Set requires_confirmation=true for moderate or higher severity events
7. Set ongoing=true when the data or situation report describes an event in progress

RESPOND WITH VALID JSON ONLY:`

// Classify summarizes the records into a prompt, calls the model, and parses
// the reply. A malformed reply is retried once; a second failure returns
// ErrMalformedResponse. Transport failures return ErrModelUnavailable.
func (c *Classifier) Classify(ctx context.Context, records []domain.HazardRecord, region domain.Region, situation string) (domain.Classification, error) {
	prompt := fmt.Sprintf(classifierPromptTemplate,
		summarizeRecords(records),
		fmt.Sprintf("%s (lat %.4f, lon %.4f, radius %.0f km)", region.Name, region.CenterLat, region.CenterLon, region.RadiusKm),
		orDefault(situation, "none provided"),
	)

	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model: c.model,
			Messages: []openai.ChatCompletionMessage{
				{Role: openai.ChatMessageRoleSystem, Content: classifierSystemPrompt},
				{Role: openai.ChatMessageRoleUser, Content: prompt},
			},
			MaxTokens:   500,
			Temperature: 0.2,
			ResponseFormat: &openai.ChatCompletionResponseFormat{
				Type: openai.ChatCompletionResponseFormatTypeJSONObject,
			},
		})
		if err != nil {
			return domain.Classification{}, fmt.Errorf("%w: %v", domain.ErrModelUnavailable, err)
		}
		if len(resp.Choices) == 0 {
			return domain.Classification{}, fmt.Errorf("%w: empty choices", domain.ErrModelUnavailable)
		}

		cls, err := parseClassification(resp.Choices[0].Message.Content)
		if err == nil {
			return cls, nil
		}
		lastErr = err
		c.logger.Warn("model returned malformed classification, retrying", "attempt", attempt+1, "error", err)
	}
	return domain.Classification{}, lastErr
}

// rawClassification mirrors the model's JSON reply before normalization.
type rawClassification struct {
	ThreatDetected       bool     `json:"threat_detected"`
	DisasterType         string   `json:"disaster_type"`
	ConfidenceScore      float64  `json:"confidence_score"`
	SeverityLevel        string   `json:"severity_level"`
	RiskFactors          []string `json:"risk_factors"`
	RequiresConfirmation bool     `json:"requires_confirmation"`
	Ongoing              bool     `json:"ongoing"`
	Reasoning            string   `json:"reasoning"`
}

// parseClassification decodes and normalizes one model reply. Out-of-range
// confidence values are clamped rather than rejected; unknown enum values
// map to their safe defaults.
func parseClassification(content string) (domain.Classification, error) {
	content = strings.TrimSpace(content)
	// Some models wrap JSON in a code fence despite instructions.
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")

	var raw rawClassification
	if err := json.Unmarshal([]byte(content), &raw); err != nil {
		return domain.Classification{}, fmt.Errorf("%w: %v", domain.ErrMalformedResponse, err)
	}

	return domain.Classification{
		ThreatDetected:       raw.ThreatDetected,
		DisasterType:         domain.ParseDisasterType(strings.ToLower(raw.DisasterType)),
		ConfidenceScore:      clamp01(raw.ConfidenceScore),
		SeverityLevel:        domain.ParseSeverity(strings.ToLower(raw.SeverityLevel)),
		RiskFactors:          raw.RiskFactors,
		RequiresConfirmation: raw.RequiresConfirmation,
		Ongoing:              raw.Ongoing,
		Reasoning:            raw.Reasoning,
		Source:               "model",
	}, nil
}

// summarizeRecords renders the cycle's records as a compact text block for
// the prompt.
func summarizeRecords(records []domain.HazardRecord) string {
	if len(records) == 0 {
		return "No significant alerts detected across monitored sources"
	}
	var b strings.Builder
	for _, r := range records {
		fmt.Fprintf(&b, "- [%s] %s severity=%s confidence=%.1f", r.Source, r.EventType, r.Severity, r.Confidence)
		if r.Magnitude > 0 {
			fmt.Fprintf(&b, " magnitude=%.1f", r.Magnitude)
		}
		if r.Headline != "" {
			fmt.Fprintf(&b, " %q", r.Headline)
		}
		b.WriteByte('\n')
	}
	return strings.TrimRight(b.String(), "\n")
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
