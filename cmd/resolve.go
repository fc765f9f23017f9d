package main

import (
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"

	"github.com/sf-events-map/venuegeo/internal/batch"
	"github.com/sf-events-map/venuegeo/internal/config"
	"github.com/sf-events-map/venuegeo/internal/ingest"
	"github.com/sf-events-map/venuegeo/internal/model"
	"github.com/sf-events-map/venuegeo/internal/resilience"
	"github.com/sf-events-map/venuegeo/internal/resolver"
	"github.com/sf-events-map/venuegeo/internal/store"
	"github.com/sf-events-map/venuegeo/internal/venue"
	"github.com/sf-events-map/venuegeo/pkg/geocode"
)

var resolveEventsPath string

var resolveCmd = &cobra.Command{
	Use:   "resolve",
	Short: "Resolve venues from a scraped events file",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		events, err := ingest.LoadEvents(resolveEventsPath)
		if err != nil {
			return err
		}

		st, err := initStore(ctx, cfg.Store)
		if err != nil {
			return err
		}
		defer st.Close()

		coord, err := buildCoordinator(cfg, st)
		if err != nil {
			return err
		}

		report, err := coord.Run(ctx, events)
		if err != nil {
			return err
		}

		fmt.Printf("Batch %s\n", report.ID)
		fmt.Printf("  events:          %d\n", report.Events)
		fmt.Printf("  distinct venues: %d\n", report.DistinctVenues)
		fmt.Printf("  cache hits:      %d\n", report.Hits)
		fmt.Printf("  resolved:        %d\n", report.Resolved)
		fmt.Printf("  unresolved:      %d\n", report.Unresolved)
		fmt.Printf("  tba:             %d\n", report.TBA)
		for _, key := range report.UnresolvedKeys {
			fmt.Printf("  ? %s\n", key)
		}

		return nil
	},
}

// buildCoordinator wires the normalizer, geocode client, resolver, and
// freshness policy from config.
func buildCoordinator(cfg *config.Config, st store.Store) (*batch.Coordinator, error) {
	normalizer, err := venue.NewNormalizerFromFile(cfg.Venues.AliasFile, cfg.Venues.TBAPatterns)
	if err != nil {
		return nil, err
	}

	client := geocode.NewClient(
		geocode.WithBaseURL(cfg.Geocoder.BaseURL),
		geocode.WithUserAgent(cfg.Geocoder.UserAgent),
		geocode.WithCountryCodes(cfg.Geocoder.CountryCodes),
		geocode.WithMinInterval(cfg.Geocoder.MinInterval()),
	)

	res := resolver.New(client, resolver.Config{
		Retry: resilience.RetryConfig{
			MaxAttempts:    cfg.Retry.MaxAttempts,
			InitialBackoff: time.Duration(cfg.Retry.InitialBackoffMS) * time.Millisecond,
			MaxBackoff:     time.Duration(cfg.Retry.MaxBackoffMS) * time.Millisecond,
		},
		Region:       cfg.Geocoder.Region,
		CityFallback: cfg.Geocoder.CityFallback,
		Bounds:       serviceAreaBounds(cfg.Area),
	})

	freshness := model.FreshnessPolicy{UnresolvedRetryAfter: cfg.Cache.RetryInterval()}

	zap.L().Info("coordinator ready",
		zap.String("geocoder", cfg.Geocoder.BaseURL),
		zap.Bool("city_fallback", cfg.Geocoder.CityFallback),
		zap.Bool("area_guard", cfg.Area.Enabled),
	)
	return batch.NewCoordinator(normalizer, res, st, freshness), nil
}

func serviceAreaBounds(area config.AreaConfig) *geom.Bounds {
	if !area.Enabled {
		return nil
	}
	return geom.NewBounds(geom.XY).Set(area.MinLon, area.MinLat, area.MaxLon, area.MaxLat)
}

func init() {
	resolveCmd.Flags().StringVar(&resolveEventsPath, "events", "events.json", "path to scraped events JSON")
	rootCmd.AddCommand(resolveCmd)
}
