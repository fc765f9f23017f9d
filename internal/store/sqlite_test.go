package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sf-events-map/venuegeo/internal/model"
)

func newTestSQLite(t *testing.T) *SQLiteStore {
	t.Helper()
	st, err := NewSQLite(filepath.Join(t.TempDir(), "venues.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func testEntry(key model.VenueKey) *model.GeocodeEntry {
	lat, lon := 37.7757, -122.4376
	return &model.GeocodeEntry{
		Key:         key,
		Name:        "The Independent",
		City:        "San Francisco",
		Status:      model.StatusResolved,
		Latitude:    &lat,
		Longitude:   &lon,
		DisplayName: "The Independent, Divisadero Street",
		Source:      "nominatim",
		Query:       "The Independent, San Francisco, CA",
		Attempts:    1,
		LastAttempt: time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC),
	}
}

func TestSQLiteGetVenueAbsent(t *testing.T) {
	st := newTestSQLite(t)

	entry, err := st.GetVenue(context.Background(), "nope|nowhere")
	require.NoError(t, err)
	assert.Nil(t, entry)
}

func TestSQLiteUpsertAndGet(t *testing.T) {
	st := newTestSQLite(t)
	ctx := context.Background()

	in := testEntry("the independent|san francisco")
	require.NoError(t, st.UpsertVenue(ctx, in))

	got, err := st.GetVenue(ctx, in.Key)
	require.NoError(t, err)
	require.NotNil(t, got)

	assert.Equal(t, in.Key, got.Key)
	assert.Equal(t, in.Name, got.Name)
	assert.Equal(t, in.City, got.City)
	assert.Equal(t, model.StatusResolved, got.Status)
	require.True(t, got.HasCoordinates())
	assert.InDelta(t, *in.Latitude, *got.Latitude, 1e-9)
	assert.InDelta(t, *in.Longitude, *got.Longitude, 1e-9)
	assert.Equal(t, in.DisplayName, got.DisplayName)
	assert.Equal(t, 1, got.Attempts)
	assert.False(t, got.CreatedAt.IsZero())
}

func TestSQLiteUpsertLastWriteWins(t *testing.T) {
	st := newTestSQLite(t)
	ctx := context.Background()

	key := model.VenueKey("nowhere bar|oakland")
	first := &model.GeocodeEntry{Key: key, Name: "Nowhere Bar", Status: model.StatusUnresolved, Attempts: 1}
	require.NoError(t, st.UpsertVenue(ctx, first))

	second := testEntry(key)
	second.Attempts = 2
	require.NoError(t, st.UpsertVenue(ctx, second))

	got, err := st.GetVenue(ctx, key)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, model.StatusResolved, got.Status)
	assert.Equal(t, 2, got.Attempts)
	assert.True(t, got.HasCoordinates())
}

func TestSQLiteNullCoordinates(t *testing.T) {
	st := newTestSQLite(t)
	ctx := context.Background()

	entry := &model.GeocodeEntry{
		Key:    "nowhere bar|oakland",
		Name:   "Nowhere Bar",
		Status: model.StatusUnresolved,
	}
	require.NoError(t, st.UpsertVenue(ctx, entry))

	got, err := st.GetVenue(ctx, entry.Key)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.False(t, got.HasCoordinates())
	assert.True(t, got.LastAttempt.IsZero())
}

func TestSQLiteListVenuesByStatus(t *testing.T) {
	st := newTestSQLite(t)
	ctx := context.Background()

	require.NoError(t, st.UpsertVenue(ctx, testEntry("a|sf")))
	require.NoError(t, st.UpsertVenue(ctx, &model.GeocodeEntry{Key: "b|sf", Name: "b", Status: model.StatusUnresolved}))
	require.NoError(t, st.UpsertVenue(ctx, &model.GeocodeEntry{Key: "c|sf", Name: "c", Status: model.StatusUnresolved}))

	unresolved, err := st.ListVenues(ctx, VenueFilter{Status: model.StatusUnresolved})
	require.NoError(t, err)
	assert.Len(t, unresolved, 2)

	all, err := st.ListVenues(ctx, VenueFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	limited, err := st.ListVenues(ctx, VenueFilter{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestSQLiteCountByStatus(t *testing.T) {
	st := newTestSQLite(t)
	ctx := context.Background()

	require.NoError(t, st.UpsertVenue(ctx, testEntry("a|sf")))
	require.NoError(t, st.UpsertVenue(ctx, &model.GeocodeEntry{Key: "b|sf", Name: "b", Status: model.StatusUnresolved}))
	require.NoError(t, st.UpsertVenue(ctx, &model.GeocodeEntry{Key: "c|sf", Name: "c", Status: model.StatusTBA}))

	counts, err := st.CountByStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, counts[model.StatusResolved])
	assert.Equal(t, 1, counts[model.StatusUnresolved])
	assert.Equal(t, 1, counts[model.StatusTBA])
}

func TestSQLiteMarkForRetry(t *testing.T) {
	st := newTestSQLite(t)
	ctx := context.Background()

	entry := &model.GeocodeEntry{
		Key:         "tba venue|oakland",
		Name:        "TBA Venue",
		Status:      model.StatusTBA,
		LastAttempt: time.Now().UTC(),
	}
	require.NoError(t, st.UpsertVenue(ctx, entry))

	require.NoError(t, st.MarkForRetry(ctx, entry.Key))

	got, err := st.GetVenue(ctx, entry.Key)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, model.StatusUnresolved, got.Status)
	assert.True(t, got.LastAttempt.IsZero())
}

func TestSQLiteMarkForRetryUnknownKey(t *testing.T) {
	st := newTestSQLite(t)
	err := st.MarkForRetry(context.Background(), "missing|key")
	assert.Error(t, err)
}

func TestSQLiteBatchHistory(t *testing.T) {
	st := newTestSQLite(t)
	ctx := context.Background()

	report := &model.BatchReport{
		ID:             "batch-1",
		StartedAt:      time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC),
		FinishedAt:     time.Date(2026, 8, 25, 12, 5, 0, 0, time.UTC),
		Events:         10,
		DistinctVenues: 4,
		Hits:           2,
		Resolved:       1,
		Unresolved:     1,
		UnresolvedKeys: []model.VenueKey{"nowhere bar|oakland"},
	}
	require.NoError(t, st.RecordBatch(ctx, report))

	batches, err := st.ListBatches(ctx, 10)
	require.NoError(t, err)
	require.Len(t, batches, 1)

	got := batches[0]
	assert.Equal(t, "batch-1", got.ID)
	assert.Equal(t, 10, got.Events)
	assert.Equal(t, 4, got.DistinctVenues)
	assert.Equal(t, []model.VenueKey{"nowhere bar|oakland"}, got.UnresolvedKeys)
}
