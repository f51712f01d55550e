package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/disaster-response-coordinator/internal/domain"
	"github.com/couchcryptid/disaster-response-coordinator/internal/observability"
)

// Source is one external hazard feed.
type Source interface {
	Name() string
	Fetch(ctx context.Context, region domain.Region) ([]domain.HazardRecord, error)
}

// MultiSource polls every configured source each cycle and merges results.
// Individual source failures are tolerated and retried with backoff; the
// fetch only fails as a whole when every source is down.
type MultiSource struct {
	sources    []Source
	maxRetries int
	clock      clockwork.Clock
	logger     *slog.Logger
	metrics    *observability.Metrics
}

// NewMultiSource creates the aggregate fetcher. maxRetries bounds attempts
// per source per cycle; retries back off exponentially from 500ms with
// jitter, capped at 10s.
func NewMultiSource(sources []Source, maxRetries int, clock clockwork.Clock, logger *slog.Logger, metrics *observability.Metrics) *MultiSource {
	return &MultiSource{
		sources:    sources,
		maxRetries: maxRetries,
		clock:      clock,
		logger:     logger,
		metrics:    metrics,
	}
}

// Fetch validates the region, polls all sources, and merges their records.
// Returns ErrInvalidRegion without touching any source for a region no feed
// can serve, and ErrSourceUnavailable only when every source failed.
func (m *MultiSource) Fetch(ctx context.Context, region domain.Region) ([]domain.HazardRecord, error) {
	if err := region.Validate(); err != nil {
		return nil, fmt.Errorf("region %q: %w", region.Name, err)
	}

	var merged []domain.HazardRecord
	failures := 0
	for _, src := range m.sources {
		records, err := m.fetchWithRetry(ctx, src, region)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			failures++
			m.metrics.SourceErrors.WithLabelValues(src.Name()).Inc()
			m.logger.Warn("hazard source unavailable", "source", src.Name(), "error", err)
			continue
		}
		merged = append(merged, records...)
	}

	if len(m.sources) > 0 && failures == len(m.sources) {
		return nil, fmt.Errorf("%w: all %d sources failed", domain.ErrSourceUnavailable, failures)
	}

	m.metrics.RecordsFetched.Add(float64(len(merged)))
	return merged, nil
}

func (m *MultiSource) fetchWithRetry(ctx context.Context, src Source, region domain.Region) ([]domain.HazardRecord, error) {
	// Exponential backoff: start at 500ms, double each retry, cap at 10s.
	// Jitter spreads concurrent retries so sources recover without a stampede.
	backoff := 500 * time.Millisecond
	maxBackoff := 10 * time.Second

	var lastErr error
	for attempt := 0; attempt <= m.maxRetries; attempt++ {
		if attempt > 0 {
			wait := backoff + time.Duration(rand.Int63n(int64(backoff/2)+1))
			if !m.sleep(ctx, wait) {
				return nil, ctx.Err()
			}
			backoff = min(backoff*2, maxBackoff)
		}

		records, err := src.Fetch(ctx, region)
		if err == nil {
			return records, nil
		}
		lastErr = err
		m.logger.Debug("source fetch failed", "source", src.Name(), "attempt", attempt+1, "error", err)
	}
	return nil, lastErr
}

// sleep waits for d or until the context is cancelled. Returns false on
// cancellation.
func (m *MultiSource) sleep(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-m.clock.After(d):
		return true
	}
}
