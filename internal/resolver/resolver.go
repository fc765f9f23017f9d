// Package resolver turns an unresolved venue into a cache entry by querying
// the external geocoder.
package resolver

import (
	"context"
	"strings"
	"time"

	"github.com/twpayne/go-geom"
	"go.uber.org/zap"

	"github.com/sf-events-map/venuegeo/internal/model"
	"github.com/sf-events-map/venuegeo/internal/resilience"
	"github.com/sf-events-map/venuegeo/pkg/geocode"
)

// Config tunes a Resolver.
type Config struct {
	// Retry bounds attempts against the external service.
	Retry resilience.RetryConfig

	// Region is appended to every query ("CA") so free-text searches stay
	// anchored to the service area.
	Region string

	// CityFallback enables the city-center approximation when the full
	// venue query finds nothing but a city is known.
	CityFallback bool

	// Bounds, when set, rejects matches outside the service area. A match
	// outside the box is treated as a non-match.
	Bounds *geom.Bounds

	// Source labels entries with the backing service ("nominatim").
	Source string
}

// Resolver performs one external lookup per venue and shapes the outcome
// into a GeocodeEntry. Every call produces an entry; resolution failures
// degrade to an unresolved entry rather than an error, so a batch can keep
// going. The returned error is non-nil only when the context is done, which
// aborts the batch cleanly.
type Resolver struct {
	client geocode.Client
	cfg    Config

	// now is swapped out by tests.
	now func() time.Time
}

// New creates a Resolver on top of a geocode client.
func New(client geocode.Client, cfg Config) *Resolver {
	if cfg.Source == "" {
		cfg.Source = "nominatim"
	}
	return &Resolver{
		client: client,
		cfg:    cfg,
		now:    time.Now,
	}
}

// Resolve looks up one venue and returns its new cache entry. The entry's
// Attempts field starts at 1; callers carrying over a prior entry add its
// count on top.
func (r *Resolver) Resolve(ctx context.Context, key model.VenueKey, raw model.RawVenue) (*model.GeocodeEntry, error) {
	entry := &model.GeocodeEntry{
		Key:         key,
		Name:        raw.Name,
		City:        raw.City,
		Status:      model.StatusUnresolved,
		Source:      r.cfg.Source,
		Attempts:    1,
		LastAttempt: r.now().UTC(),
	}

	query := r.buildQuery(raw.Name, raw.City)
	entry.Query = query

	result, err := r.search(ctx, query)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		zap.L().Warn("venue lookup failed",
			zap.String("key", string(key)),
			zap.String("query", query),
			zap.Error(err),
		)
		return entry, nil
	}

	if r.accept(result) {
		entry.Status = model.StatusResolved
		entry.Latitude = &result.Latitude
		entry.Longitude = &result.Longitude
		entry.DisplayName = result.DisplayName
		return entry, nil
	}

	if r.cfg.CityFallback && strings.TrimSpace(raw.City) != "" {
		if fallback, err := r.resolveCityCenter(ctx, entry, raw.City); err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			zap.L().Warn("city fallback failed",
				zap.String("key", string(key)),
				zap.String("city", raw.City),
				zap.Error(err),
			)
		} else if fallback != nil {
			return fallback, nil
		}
	}

	return entry, nil
}

func (r *Resolver) buildQuery(name, city string) string {
	parts := []string{strings.TrimSpace(name)}
	if c := strings.TrimSpace(city); c != "" {
		parts = append(parts, c)
	}
	if r.cfg.Region != "" {
		parts = append(parts, r.cfg.Region)
	}
	return strings.Join(parts, ", ")
}

func (r *Resolver) search(ctx context.Context, query string) (*geocode.Result, error) {
	return resilience.Do(ctx, r.cfg.Retry, "geocode search", func(ctx context.Context) (*geocode.Result, error) {
		return r.client.Search(ctx, query)
	})
}

// resolveCityCenter tries the bare city name when the venue itself found
// nothing. The entry is marked approximate so the map can render it
// differently. Returns nil, nil when the city lookup also misses.
func (r *Resolver) resolveCityCenter(ctx context.Context, entry *model.GeocodeEntry, city string) (*model.GeocodeEntry, error) {
	query := r.buildQuery(city, "")
	result, err := r.search(ctx, query)
	if err != nil {
		return nil, err
	}
	if !r.accept(result) {
		return nil, nil
	}

	fallback := *entry
	fallback.Status = model.StatusResolved
	fallback.Latitude = &result.Latitude
	fallback.Longitude = &result.Longitude
	fallback.DisplayName = result.DisplayName + " (approximate - city center)"
	fallback.Approximate = true
	fallback.Query = query
	return &fallback, nil
}

// accept reports whether a search result is a usable match inside the
// service area.
func (r *Resolver) accept(result *geocode.Result) bool {
	if result == nil || !result.Matched {
		return false
	}
	if r.cfg.Bounds == nil {
		return true
	}
	if r.cfg.Bounds.OverlapsPoint(geom.XY, geom.Coord{result.Longitude, result.Latitude}) {
		return true
	}
	zap.L().Debug("match outside service area",
		zap.Float64("lat", result.Latitude),
		zap.Float64("lon", result.Longitude),
		zap.String("display_name", result.DisplayName),
	)
	return false
}
