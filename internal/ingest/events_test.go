package ingest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadEvents(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.json")
	require.NoError(t, os.WriteFile(path, []byte(`[
		{"title": "DJ Night", "venue": "The Independent", "city": "San Francisco", "genres": ["house"]},
		{"title": "Warehouse Party", "venue": "TBA", "city": "Oakland", "hidden": true}
	]`), 0o644))

	events, err := LoadEvents(path)
	require.NoError(t, err)
	require.Len(t, events, 2)

	assert.Equal(t, "DJ Night", events[0].Title)
	assert.Equal(t, "The Independent", events[0].Venue)
	assert.Equal(t, "San Francisco", events[0].City)
	assert.Equal(t, []string{"house"}, events[0].Genres)
	assert.True(t, events[1].Hidden)
}

func TestLoadEventsMissingFile(t *testing.T) {
	_, err := LoadEvents("/nonexistent/events.json")
	assert.Error(t, err)
}

func TestLoadEventsMalformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"not": "an array"}`), 0o644))

	_, err := LoadEvents(path)
	assert.Error(t, err)
}
