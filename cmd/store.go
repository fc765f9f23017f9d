package main

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sf-events-map/venuegeo/internal/config"
	"github.com/sf-events-map/venuegeo/internal/store"
)

// initStore opens the cache backend named by the config and runs migrations.
func initStore(ctx context.Context, cfg config.StoreConfig) (store.Store, error) {
	var (
		st  store.Store
		err error
	)
	switch cfg.Driver {
	case "sqlite", "":
		dsn := cfg.DatabaseURL
		if dsn == "" {
			dsn = "venues.db"
		}
		st, err = store.NewSQLite(dsn)
	case "postgres":
		if cfg.DatabaseURL == "" {
			return nil, eris.New("store: postgres driver requires database_url")
		}
		st, err = store.NewPostgres(ctx, cfg.DatabaseURL)
	default:
		return nil, eris.Errorf("store: unknown driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, err
	}

	if err := st.Migrate(ctx); err != nil {
		st.Close()
		return nil, err
	}
	return st, nil
}
