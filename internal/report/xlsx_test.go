package report

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"

	"github.com/sf-events-map/venuegeo/internal/model"
)

func TestWriteUnresolved(t *testing.T) {
	path := filepath.Join(t.TempDir(), "unresolved.xlsx")

	entries := []model.GeocodeEntry{
		{
			Key:         "nowhere bar|oakland",
			Name:        "Nowhere Bar",
			City:        "Oakland",
			Status:      model.StatusUnresolved,
			Query:       "Nowhere Bar, Oakland, CA",
			Attempts:    3,
			LastAttempt: time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC),
		},
		{
			Key:    "mystery spot|",
			Name:   "Mystery Spot",
			Status: model.StatusUnresolved,
		},
	}

	require.NoError(t, WriteUnresolved(path, entries))

	file, err := xlsx.OpenFile(path)
	require.NoError(t, err)
	require.Len(t, file.Sheets, 1)

	sheet := file.Sheets[0]
	assert.Equal(t, "Unresolved Venues", sheet.Name)
	require.Len(t, sheet.Rows, 3)

	assert.Equal(t, "Key", sheet.Rows[0].Cells[0].String())
	assert.Equal(t, "nowhere bar|oakland", sheet.Rows[1].Cells[0].String())
	assert.Equal(t, "3", sheet.Rows[1].Cells[5].String())
	assert.Equal(t, "2026-08-25 12:00:00", sheet.Rows[1].Cells[6].String())
	assert.Equal(t, "", sheet.Rows[2].Cells[6].String())
}

func TestWriteUnresolvedEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.xlsx")
	require.NoError(t, WriteUnresolved(path, nil))

	file, err := xlsx.OpenFile(path)
	require.NoError(t, err)
	require.Len(t, file.Sheets[0].Rows, 1)
}
