// Package store persists the geocode cache and batch history.
package store

import (
	"context"

	"github.com/sf-events-map/venuegeo/internal/model"
)

// VenueFilter specifies criteria for listing cached venues.
type VenueFilter struct {
	Status model.Status `json:"status,omitempty"`
	Limit  int          `json:"limit,omitempty"`
	Offset int          `json:"offset,omitempty"`
}

// Store is the persistence interface for the venue-resolution pipeline.
// Lookups never perform network I/O; UpsertVenue is replace-or-insert with
// last-write-wins per key, so exactly one entry exists per VenueKey.
type Store interface {
	// Venues
	GetVenue(ctx context.Context, key model.VenueKey) (*model.GeocodeEntry, error) // nil, nil when absent
	UpsertVenue(ctx context.Context, entry *model.GeocodeEntry) error
	ListVenues(ctx context.Context, filter VenueFilter) ([]model.GeocodeEntry, error)
	CountByStatus(ctx context.Context) (map[model.Status]int, error)

	// MarkForRetry flags an entry stale so the next batch re-attempts it.
	// This is the only path that re-attempts a TBA entry.
	MarkForRetry(ctx context.Context, key model.VenueKey) error

	// Batch history
	RecordBatch(ctx context.Context, report *model.BatchReport) error
	ListBatches(ctx context.Context, limit int) ([]model.BatchReport, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
