// Package batch runs venue resolution over a full set of ingested events.
package batch

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sf-events-map/venuegeo/internal/model"
	"github.com/sf-events-map/venuegeo/internal/resolver"
	"github.com/sf-events-map/venuegeo/internal/store"
	"github.com/sf-events-map/venuegeo/internal/venue"
)

// ErrRunInProgress is returned when a batch run is requested while another
// run holds the coordinator.
var ErrRunInProgress = eris.New("batch: run already in progress")

// Coordinator drives one resolution pass: dedupe venues across events, serve
// fresh entries from the cache, resolve the rest, and record a report.
// At most one run executes at a time.
type Coordinator struct {
	normalizer *venue.Normalizer
	resolver   *resolver.Resolver
	store      store.Store
	freshness  model.FreshnessPolicy

	mu sync.Mutex

	// now and newID are swapped out by tests.
	now   func() time.Time
	newID func() string
}

// NewCoordinator wires a Coordinator.
func NewCoordinator(n *venue.Normalizer, r *resolver.Resolver, st store.Store, freshness model.FreshnessPolicy) *Coordinator {
	return &Coordinator{
		normalizer: n,
		resolver:   r,
		store:      st,
		freshness:  freshness,
		now:        time.Now,
		newID:      uuid.NewString,
	}
}

// Run resolves every distinct venue among events and returns the batch
// report. Hidden events are skipped. Per-venue lookup failures degrade to
// unresolved entries; a cache write failure aborts the run, since a cache
// that cannot be written invalidates every result after it.
func (c *Coordinator) Run(ctx context.Context, events []model.Event) (*model.BatchReport, error) {
	if !c.mu.TryLock() {
		return nil, ErrRunInProgress
	}
	defer c.mu.Unlock()

	report := &model.BatchReport{
		ID:        c.newID(),
		StartedAt: c.now().UTC(),
		Events:    len(events),
	}

	keys, venues := c.dedupe(events)
	report.DistinctVenues = len(keys)

	zap.L().Info("batch started",
		zap.String("batch_id", report.ID),
		zap.Int("events", report.Events),
		zap.Int("distinct_venues", report.DistinctVenues),
	)

	for _, key := range keys {
		if err := ctx.Err(); err != nil {
			return nil, eris.Wrap(err, "batch: canceled")
		}
		if err := c.process(ctx, key, venues[key], report); err != nil {
			return nil, err
		}
	}

	report.FinishedAt = c.now().UTC()
	if err := c.store.RecordBatch(ctx, report); err != nil {
		return nil, eris.Wrap(err, "batch: record report")
	}

	zap.L().Info("batch finished",
		zap.String("batch_id", report.ID),
		zap.Int("hits", report.Hits),
		zap.Int("resolved", report.Resolved),
		zap.Int("unresolved", report.Unresolved),
		zap.Int("tba", report.TBA),
	)
	return report, nil
}

// dedupe maps events to distinct venue keys, keeping first-seen order and
// the first raw text observed per key. Hidden events do not contribute.
func (c *Coordinator) dedupe(events []model.Event) ([]model.VenueKey, map[model.VenueKey]model.RawVenue) {
	var keys []model.VenueKey
	venues := make(map[model.VenueKey]model.RawVenue)

	for _, ev := range events {
		if ev.Hidden {
			continue
		}
		raw := ev.RawVenue()
		key := c.normalizer.Key(raw)
		if _, seen := venues[key]; seen {
			continue
		}
		venues[key] = raw
		keys = append(keys, key)
	}
	return keys, venues
}

func (c *Coordinator) process(ctx context.Context, key model.VenueKey, raw model.RawVenue, report *model.BatchReport) error {
	cached, err := c.store.GetVenue(ctx, key)
	if err != nil {
		return eris.Wrapf(err, "batch: cache lookup %s", key)
	}
	if c.freshness.IsFresh(cached, c.now()) {
		report.Count(key, model.OutcomeHit)
		return nil
	}

	if c.normalizer.IsTBA(raw) {
		entry := &model.GeocodeEntry{
			Key:    key,
			Name:   raw.Name,
			City:   raw.City,
			Status: model.StatusTBA,
		}
		if cached != nil {
			entry.Attempts = cached.Attempts
		}
		if err := c.store.UpsertVenue(ctx, entry); err != nil {
			return eris.Wrapf(err, "batch: cache write %s", key)
		}
		report.Count(key, model.OutcomeTBA)
		return nil
	}

	entry, err := c.resolver.Resolve(ctx, key, raw)
	if err != nil {
		return eris.Wrapf(err, "batch: resolve %s", key)
	}
	if cached != nil {
		entry.Attempts += cached.Attempts
	}
	if err := c.store.UpsertVenue(ctx, entry); err != nil {
		return eris.Wrapf(err, "batch: cache write %s", key)
	}

	switch entry.Status {
	case model.StatusResolved:
		report.Count(key, model.OutcomeResolved)
	default:
		report.Count(key, model.OutcomeUnresolved)
	}
	return nil
}
