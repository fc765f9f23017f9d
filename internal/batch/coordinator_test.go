package batch

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sf-events-map/venuegeo/internal/model"
	"github.com/sf-events-map/venuegeo/internal/resilience"
	"github.com/sf-events-map/venuegeo/internal/resolver"
	"github.com/sf-events-map/venuegeo/internal/store"
	"github.com/sf-events-map/venuegeo/internal/venue"
	"github.com/sf-events-map/venuegeo/pkg/geocode"
)

// memStore is an in-memory Store for coordinator tests.
type memStore struct {
	mu       sync.Mutex
	venues   map[model.VenueKey]model.GeocodeEntry
	batches  []model.BatchReport
	writeErr error
}

func newMemStore() *memStore {
	return &memStore{venues: make(map[model.VenueKey]model.GeocodeEntry)}
}

func (m *memStore) GetVenue(ctx context.Context, key model.VenueKey) (*model.GeocodeEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.venues[key]; ok {
		out := e
		return &out, nil
	}
	return nil, nil
}

func (m *memStore) UpsertVenue(ctx context.Context, entry *model.GeocodeEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.writeErr != nil {
		return m.writeErr
	}
	m.venues[entry.Key] = *entry
	return nil
}

func (m *memStore) ListVenues(ctx context.Context, filter store.VenueFilter) ([]model.GeocodeEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.GeocodeEntry
	for _, e := range m.venues {
		if filter.Status == "" || e.Status == filter.Status {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *memStore) CountByStatus(ctx context.Context) (map[model.Status]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	counts := make(map[model.Status]int)
	for _, e := range m.venues {
		counts[e.Status]++
	}
	return counts, nil
}

func (m *memStore) MarkForRetry(ctx context.Context, key model.VenueKey) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.venues[key]
	if !ok {
		return eris.Errorf("venue not found: %s", key)
	}
	e.Status = model.StatusUnresolved
	e.LastAttempt = time.Time{}
	m.venues[key] = e
	return nil
}

func (m *memStore) RecordBatch(ctx context.Context, report *model.BatchReport) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.batches = append(m.batches, *report)
	return nil
}

func (m *memStore) ListBatches(ctx context.Context, limit int) ([]model.BatchReport, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.BatchReport(nil), m.batches...), nil
}

func (m *memStore) Migrate(ctx context.Context) error { return nil }
func (m *memStore) Close() error                      { return nil }

// countingClient resolves every query to a fixed point and counts calls.
type countingClient struct {
	mu    sync.Mutex
	calls []string
	miss  map[string]bool
}

func (c *countingClient) Search(ctx context.Context, query string) (*geocode.Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, query)
	if c.miss[query] {
		return &geocode.Result{Matched: false}, nil
	}
	return &geocode.Result{Latitude: 37.77, Longitude: -122.42, DisplayName: "somewhere in SF", Matched: true}, nil
}

func (c *countingClient) callCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.calls)
}

func newTestCoordinator(t *testing.T, st store.Store, client geocode.Client) *Coordinator {
	t.Helper()
	n := venue.NewNormalizer(nil, nil)
	r := resolver.New(client, resolver.Config{
		Retry: resilience.RetryConfig{
			MaxAttempts:    2,
			InitialBackoff: time.Millisecond,
			Sleep:          func(ctx context.Context, d time.Duration) error { return nil },
		},
		Region: "CA",
	})
	return NewCoordinator(n, r, st, model.FreshnessPolicy{UnresolvedRetryAfter: 24 * time.Hour})
}

func TestRunDedupesAndSkipsTBA(t *testing.T) {
	st := newMemStore()
	client := &countingClient{}
	coord := newTestCoordinator(t, st, client)

	events := []model.Event{
		{Title: "a", Venue: "The Independent", City: "San Francisco"},
		{Title: "b", Venue: "the independent", City: "San Francisco"},
		{Title: "c", Venue: "TBA", City: "Oakland"},
	}

	report, err := coord.Run(context.Background(), events)
	require.NoError(t, err)

	// Two raw spellings collapse into one key, plus one TBA key.
	assert.Equal(t, 3, report.Events)
	assert.Equal(t, 2, report.DistinctVenues)
	assert.Equal(t, 1, report.Resolved)
	assert.Equal(t, 1, report.TBA)
	assert.Equal(t, 1, client.callCount())

	tba, err := st.GetVenue(context.Background(), "tba|oakland")
	require.NoError(t, err)
	require.NotNil(t, tba)
	assert.Equal(t, model.StatusTBA, tba.Status)
}

func TestRunSecondPassIsAllHits(t *testing.T) {
	st := newMemStore()
	client := &countingClient{}
	coord := newTestCoordinator(t, st, client)

	events := []model.Event{
		{Venue: "The Independent", City: "San Francisco"},
		{Venue: "Great American Music Hall", City: "San Francisco"},
	}

	_, err := coord.Run(context.Background(), events)
	require.NoError(t, err)
	firstCalls := client.callCount()

	report, err := coord.Run(context.Background(), events)
	require.NoError(t, err)

	assert.Equal(t, 2, report.Hits)
	assert.Zero(t, report.Resolved)
	assert.Equal(t, firstCalls, client.callCount(), "rerun must not touch the external service")
}

func TestRunSkipsHiddenEvents(t *testing.T) {
	st := newMemStore()
	client := &countingClient{}
	coord := newTestCoordinator(t, st, client)

	events := []model.Event{
		{Venue: "The Independent", City: "San Francisco", Hidden: true},
	}

	report, err := coord.Run(context.Background(), events)
	require.NoError(t, err)
	assert.Zero(t, report.DistinctVenues)
	assert.Zero(t, client.callCount())
}

func TestRunUnresolvedVenueRecorded(t *testing.T) {
	st := newMemStore()
	client := &countingClient{miss: map[string]bool{
		"Nowhere Bar, Oakland, CA": true,
	}}
	coord := newTestCoordinator(t, st, client)

	report, err := coord.Run(context.Background(), []model.Event{
		{Venue: "Nowhere Bar", City: "Oakland"},
	})
	require.NoError(t, err)

	assert.Equal(t, 1, report.Unresolved)
	assert.Equal(t, []model.VenueKey{"nowhere bar|oakland"}, report.UnresolvedKeys)

	entry, err := st.GetVenue(context.Background(), "nowhere bar|oakland")
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, model.StatusUnresolved, entry.Status)
	assert.Equal(t, 1, entry.Attempts)
}

func TestRunAttemptsAccumulate(t *testing.T) {
	st := newMemStore()
	client := &countingClient{miss: map[string]bool{
		"Nowhere Bar, Oakland, CA": true,
	}}
	coord := newTestCoordinator(t, st, client)
	// Stale immediately so the second run re-attempts.
	coord.freshness = model.FreshnessPolicy{UnresolvedRetryAfter: time.Nanosecond}

	events := []model.Event{{Venue: "Nowhere Bar", City: "Oakland"}}

	_, err := coord.Run(context.Background(), events)
	require.NoError(t, err)
	time.Sleep(time.Millisecond)
	_, err = coord.Run(context.Background(), events)
	require.NoError(t, err)

	entry, err := st.GetVenue(context.Background(), "nowhere bar|oakland")
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, 2, entry.Attempts)
}

func TestRunCacheWriteFailureAborts(t *testing.T) {
	st := newMemStore()
	st.writeErr = eris.New("disk full")
	client := &countingClient{}
	coord := newTestCoordinator(t, st, client)

	_, err := coord.Run(context.Background(), []model.Event{
		{Venue: "The Independent", City: "San Francisco"},
	})
	assert.Error(t, err)
	assert.Empty(t, st.batches)
}

func TestRunRefusesConcurrentRuns(t *testing.T) {
	st := newMemStore()
	client := &countingClient{}
	coord := newTestCoordinator(t, st, client)

	coord.mu.Lock()
	_, err := coord.Run(context.Background(), nil)
	coord.mu.Unlock()

	assert.ErrorIs(t, err, ErrRunInProgress)
}

func TestRunRecordsReport(t *testing.T) {
	st := newMemStore()
	client := &countingClient{}
	coord := newTestCoordinator(t, st, client)
	coord.newID = func() string { return "batch-1" }

	report, err := coord.Run(context.Background(), []model.Event{
		{Venue: "The Independent", City: "San Francisco"},
	})
	require.NoError(t, err)
	assert.Equal(t, "batch-1", report.ID)

	require.Len(t, st.batches, 1)
	assert.Equal(t, "batch-1", st.batches[0].ID)
	assert.False(t, st.batches[0].FinishedAt.IsZero())
}

func TestRunMarkForRetryReattemptsTBA(t *testing.T) {
	st := newMemStore()
	client := &countingClient{}
	coord := newTestCoordinator(t, st, client)

	// First run caches the venue as TBA without a lookup. The raw text later
	// changes to a real name, but the cached TBA entry still short-circuits.
	events := []model.Event{{Venue: "TBA", City: "Oakland"}}
	_, err := coord.Run(context.Background(), events)
	require.NoError(t, err)
	require.Zero(t, client.callCount())

	require.NoError(t, st.MarkForRetry(context.Background(), "tba|oakland"))

	_, err = coord.Run(context.Background(), events)
	require.NoError(t, err)
	// Still TBA text, so the lookup stays skipped, but the entry was
	// re-evaluated rather than served from cache.
	report, err := coord.Run(context.Background(), events)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Hits)
}
