package store

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sf-events-map/venuegeo/internal/model"
)

// Pool is the subset of pgxpool.Pool the store uses. Tests substitute a
// pgxmock pool.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
	Close()
}

// PostgresStore implements Store on top of a pgx connection pool.
type PostgresStore struct {
	pool Pool
}

// NewPostgres connects to the given database URL and verifies the connection.
func NewPostgres(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: connect")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool}, nil
}

// NewPostgresFromPool wraps an existing pool. Used by tests.
func NewPostgresFromPool(pool Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS venues (
	key             TEXT PRIMARY KEY,
	name            TEXT NOT NULL,
	city            TEXT,
	status          TEXT NOT NULL,
	latitude        DOUBLE PRECISION,
	longitude       DOUBLE PRECISION,
	display_name    TEXT,
	approximate     BOOLEAN NOT NULL DEFAULT FALSE,
	source          TEXT,
	query           TEXT,
	attempts        INTEGER NOT NULL DEFAULT 0,
	last_attempt_at TIMESTAMPTZ,
	created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS batches (
	id              TEXT PRIMARY KEY,
	started_at      TIMESTAMPTZ NOT NULL,
	finished_at     TIMESTAMPTZ NOT NULL,
	events          INTEGER NOT NULL,
	distinct_venues INTEGER NOT NULL,
	hits            INTEGER NOT NULL,
	resolved        INTEGER NOT NULL,
	unresolved      INTEGER NOT NULL,
	tba             INTEGER NOT NULL,
	unresolved_keys JSONB
);

CREATE INDEX IF NOT EXISTS idx_venues_status ON venues(status);
CREATE INDEX IF NOT EXISTS idx_batches_started_at ON batches(started_at);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

const venueColumns = `key, name, city, status, latitude, longitude, display_name, approximate,
	source, query, attempts, last_attempt_at, created_at, updated_at`

func (s *PostgresStore) GetVenue(ctx context.Context, key model.VenueKey) (*model.GeocodeEntry, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+venueColumns+` FROM venues WHERE key = $1`,
		string(key),
	)
	entry, err := scanVenue(row)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get venue %s", key)
	}
	return entry, nil
}

func (s *PostgresStore) UpsertVenue(ctx context.Context, entry *model.GeocodeEntry) error {
	now := time.Now().UTC()
	_, err := s.pool.Exec(ctx, `
		INSERT INTO venues (key, name, city, status, latitude, longitude, display_name,
		                    approximate, source, query, attempts, last_attempt_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (key) DO UPDATE SET
			name            = EXCLUDED.name,
			city            = EXCLUDED.city,
			status          = EXCLUDED.status,
			latitude        = EXCLUDED.latitude,
			longitude       = EXCLUDED.longitude,
			display_name    = EXCLUDED.display_name,
			approximate     = EXCLUDED.approximate,
			source          = EXCLUDED.source,
			query           = EXCLUDED.query,
			attempts        = EXCLUDED.attempts,
			last_attempt_at = EXCLUDED.last_attempt_at,
			updated_at      = EXCLUDED.updated_at`,
		string(entry.Key), entry.Name, entry.City, string(entry.Status),
		entry.Latitude, entry.Longitude, entry.DisplayName, entry.Approximate,
		entry.Source, entry.Query, entry.Attempts, nullTime(entry.LastAttempt), now, now,
	)
	return eris.Wrapf(err, "postgres: upsert venue %s", entry.Key)
}

func (s *PostgresStore) ListVenues(ctx context.Context, filter VenueFilter) ([]model.GeocodeEntry, error) {
	query := `SELECT ` + venueColumns + ` FROM venues WHERE 1=1`
	var args []any

	if filter.Status != "" {
		args = append(args, string(filter.Status))
		query += ` AND status = $1`
	}
	query += ` ORDER BY key`

	limit := filter.Limit
	if limit <= 0 {
		limit = 500
	}
	args = append(args, limit)
	query += ` LIMIT $` + strconv.Itoa(len(args))

	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += ` OFFSET $` + strconv.Itoa(len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list venues")
	}
	defer rows.Close()

	var entries []model.GeocodeEntry
	for rows.Next() {
		e, err := scanVenue(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan venue")
		}
		entries = append(entries, *e)
	}
	return entries, eris.Wrap(rows.Err(), "postgres: list venues iterate")
}

func (s *PostgresStore) CountByStatus(ctx context.Context) (map[model.Status]int, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT status, COUNT(*) FROM venues GROUP BY status`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: count by status")
	}
	defer rows.Close()

	counts := make(map[model.Status]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, eris.Wrap(err, "postgres: scan count")
		}
		counts[model.Status(status)] = n
	}
	return counts, eris.Wrap(rows.Err(), "postgres: count iterate")
}

func (s *PostgresStore) MarkForRetry(ctx context.Context, key model.VenueKey) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE venues SET status = $1, last_attempt_at = NULL, updated_at = $2 WHERE key = $3`,
		string(model.StatusUnresolved), time.Now().UTC(), string(key),
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: mark for retry %s", key)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("venue not found: %s", key)
	}
	return nil
}

func (s *PostgresStore) RecordBatch(ctx context.Context, report *model.BatchReport) error {
	keysJSON, err := json.Marshal(report.UnresolvedKeys)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal unresolved keys")
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO batches (id, started_at, finished_at, events, distinct_venues,
		                     hits, resolved, unresolved, tba, unresolved_keys)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		report.ID, report.StartedAt.UTC(), report.FinishedAt.UTC(),
		report.Events, report.DistinctVenues,
		report.Hits, report.Resolved, report.Unresolved, report.TBA, keysJSON,
	)
	return eris.Wrapf(err, "postgres: record batch %s", report.ID)
}

func (s *PostgresStore) ListBatches(ctx context.Context, limit int) ([]model.BatchReport, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id, started_at, finished_at, events, distinct_venues,
		       hits, resolved, unresolved, tba, unresolved_keys
		FROM batches ORDER BY started_at DESC LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list batches")
	}
	defer rows.Close()

	var reports []model.BatchReport
	for rows.Next() {
		var r model.BatchReport
		var keysJSON []byte
		if err := rows.Scan(&r.ID, &r.StartedAt, &r.FinishedAt, &r.Events, &r.DistinctVenues,
			&r.Hits, &r.Resolved, &r.Unresolved, &r.TBA, &keysJSON); err != nil {
			return nil, eris.Wrap(err, "postgres: scan batch")
		}
		if len(keysJSON) > 0 {
			if err := json.Unmarshal(keysJSON, &r.UnresolvedKeys); err != nil {
				return nil, eris.Wrap(err, "postgres: unmarshal unresolved keys")
			}
		}
		reports = append(reports, r)
	}
	return reports, eris.Wrap(rows.Err(), "postgres: list batches iterate")
}
