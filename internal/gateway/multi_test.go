package gateway

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/disaster-response-coordinator/internal/domain"
	"github.com/couchcryptid/disaster-response-coordinator/internal/observability"
)

// mockSource scripts a sequence of Fetch results.
type mockSource struct {
	name    string
	records []domain.HazardRecord
	errs    []error // consumed one per call; nil entry means success
	calls   int
}

func (m *mockSource) Name() string { return m.name }

func (m *mockSource) Fetch(ctx context.Context, region domain.Region) ([]domain.HazardRecord, error) {
	m.calls++
	if len(m.errs) > 0 {
		err := m.errs[0]
		m.errs = m.errs[1:]
		if err != nil {
			return nil, err
		}
	}
	return m.records, nil
}

func newMulti(t *testing.T, maxRetries int, sources ...Source) *MultiSource {
	t.Helper()
	return NewMultiSource(sources, maxRetries, clockwork.NewRealClock(), testLogger(), observability.NewMetricsForTesting())
}

func TestMultiSource_MergesAllSources(t *testing.T) {
	a := &mockSource{name: "usgs_earthquake", records: []domain.HazardRecord{{ID: "eq-1"}}}
	b := &mockSource{name: "noaa_weather", records: []domain.HazardRecord{{ID: "alert-1"}, {ID: "alert-2"}}}

	records, err := newMulti(t, 0, a, b).Fetch(context.Background(), testRegion())
	require.NoError(t, err)
	assert.Len(t, records, 3)
}

func TestMultiSource_ToleratesPartialFailure(t *testing.T) {
	down := &mockSource{name: "usgs_earthquake", errs: []error{
		fmt.Errorf("%w: usgs: status 503", domain.ErrSourceUnavailable),
	}}
	up := &mockSource{name: "noaa_weather", records: []domain.HazardRecord{{ID: "alert-1"}}}

	records, err := newMulti(t, 0, down, up).Fetch(context.Background(), testRegion())
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "alert-1", records[0].ID)
}

func TestMultiSource_AllSourcesDown(t *testing.T) {
	a := &mockSource{name: "usgs_earthquake", errs: []error{errors.New("timeout")}}
	b := &mockSource{name: "noaa_weather", errs: []error{errors.New("timeout")}}

	_, err := newMulti(t, 0, a, b).Fetch(context.Background(), testRegion())
	assert.ErrorIs(t, err, domain.ErrSourceUnavailable)
}

func TestMultiSource_RetriesTransientFailure(t *testing.T) {
	flaky := &mockSource{
		name:    "usgs_earthquake",
		errs:    []error{errors.New("connection reset"), nil},
		records: []domain.HazardRecord{{ID: "eq-1"}},
	}

	clock := clockwork.NewFakeClock()
	m := NewMultiSource([]Source{flaky}, 2, clock, testLogger(), observability.NewMetricsForTesting())

	type result struct {
		records []domain.HazardRecord
		err     error
	}
	done := make(chan result, 1)
	go func() {
		records, err := m.Fetch(context.Background(), testRegion())
		done <- result{records, err}
	}()

	// The first attempt fails, so the fetcher waits on the fake clock before
	// retrying. Unblock it.
	clock.BlockUntilContext(context.Background(), 1)
	clock.Advance(time.Minute)

	res := <-done
	require.NoError(t, res.err)
	require.Len(t, res.records, 1)
	assert.Equal(t, 2, flaky.calls)
}

func TestMultiSource_InvalidRegion(t *testing.T) {
	src := &mockSource{name: "usgs_earthquake"}
	_, err := newMulti(t, 0, src).Fetch(context.Background(), domain.Region{Name: "bad", CenterLat: 200})
	assert.ErrorIs(t, err, domain.ErrInvalidRegion)
	assert.Zero(t, src.calls, "sources must not be polled for an invalid region")
}

func TestMultiSource_ContextCancelledDuringBackoff(t *testing.T) {
	down := &mockSource{name: "usgs_earthquake", errs: []error{errors.New("timeout"), errors.New("timeout")}}

	clock := clockwork.NewFakeClock()
	m := NewMultiSource([]Source{down}, 3, clock, testLogger(), observability.NewMetricsForTesting())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := m.Fetch(ctx, testRegion())
		done <- err
	}()

	clock.BlockUntilContext(context.Background(), 1)
	cancel()

	err := <-done
	assert.ErrorIs(t, err, context.Canceled)
}
