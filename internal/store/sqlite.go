package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sf-events-map/venuegeo/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS venues (
	key             TEXT PRIMARY KEY,
	name            TEXT NOT NULL,
	city            TEXT,
	status          TEXT NOT NULL,
	latitude        REAL,
	longitude       REAL,
	display_name    TEXT,
	approximate     INTEGER NOT NULL DEFAULT 0,
	source          TEXT,
	query           TEXT,
	attempts        INTEGER NOT NULL DEFAULT 0,
	last_attempt_at DATETIME,
	created_at      DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at      DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS batches (
	id              TEXT PRIMARY KEY,
	started_at      DATETIME NOT NULL,
	finished_at     DATETIME NOT NULL,
	events          INTEGER NOT NULL,
	distinct_venues INTEGER NOT NULL,
	hits            INTEGER NOT NULL,
	resolved        INTEGER NOT NULL,
	unresolved      INTEGER NOT NULL,
	tba             INTEGER NOT NULL,
	unresolved_keys TEXT
);

CREATE INDEX IF NOT EXISTS idx_venues_status ON venues(status);
CREATE INDEX IF NOT EXISTS idx_batches_started_at ON batches(started_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) GetVenue(ctx context.Context, key model.VenueKey) (*model.GeocodeEntry, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT key, name, city, status, latitude, longitude, display_name, approximate,
		        source, query, attempts, last_attempt_at, created_at, updated_at
		 FROM venues WHERE key = ?`,
		string(key),
	)
	entry, err := scanVenue(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get venue %s", key)
	}
	return entry, nil
}

func (s *SQLiteStore) UpsertVenue(ctx context.Context, entry *model.GeocodeEntry) error {
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO venues (key, name, city, status, latitude, longitude, display_name,
		                    approximate, source, query, attempts, last_attempt_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			name            = excluded.name,
			city            = excluded.city,
			status          = excluded.status,
			latitude        = excluded.latitude,
			longitude       = excluded.longitude,
			display_name    = excluded.display_name,
			approximate     = excluded.approximate,
			source          = excluded.source,
			query           = excluded.query,
			attempts        = excluded.attempts,
			last_attempt_at = excluded.last_attempt_at,
			updated_at      = excluded.updated_at`,
		string(entry.Key), entry.Name, entry.City, string(entry.Status),
		entry.Latitude, entry.Longitude, entry.DisplayName, entry.Approximate,
		entry.Source, entry.Query, entry.Attempts, nullTime(entry.LastAttempt), now, now,
	)
	return eris.Wrapf(err, "sqlite: upsert venue %s", entry.Key)
}

func (s *SQLiteStore) ListVenues(ctx context.Context, filter VenueFilter) ([]model.GeocodeEntry, error) {
	query := `SELECT key, name, city, status, latitude, longitude, display_name, approximate,
	                 source, query, attempts, last_attempt_at, created_at, updated_at
	          FROM venues WHERE 1=1`
	var args []any

	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	query += ` ORDER BY key`

	limit := filter.Limit
	if limit <= 0 {
		limit = 500
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list venues")
	}
	defer rows.Close()

	var entries []model.GeocodeEntry
	for rows.Next() {
		e, err := scanVenue(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan venue")
		}
		entries = append(entries, *e)
	}
	return entries, eris.Wrap(rows.Err(), "sqlite: list venues iterate")
}

func (s *SQLiteStore) CountByStatus(ctx context.Context) (map[model.Status]int, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT status, COUNT(*) FROM venues GROUP BY status`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: count by status")
	}
	defer rows.Close()

	counts := make(map[model.Status]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan count")
		}
		counts[model.Status(status)] = n
	}
	return counts, eris.Wrap(rows.Err(), "sqlite: count iterate")
}

func (s *SQLiteStore) MarkForRetry(ctx context.Context, key model.VenueKey) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE venues SET status = ?, last_attempt_at = NULL, updated_at = ? WHERE key = ?`,
		string(model.StatusUnresolved), time.Now().UTC(), string(key),
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: mark for retry %s", key)
	}
	return checkRowsAffected(res, "venue", string(key))
}

func (s *SQLiteStore) RecordBatch(ctx context.Context, report *model.BatchReport) error {
	keysJSON, err := json.Marshal(report.UnresolvedKeys)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal unresolved keys")
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO batches (id, started_at, finished_at, events, distinct_venues,
		                     hits, resolved, unresolved, tba, unresolved_keys)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		report.ID, report.StartedAt.UTC(), report.FinishedAt.UTC(),
		report.Events, report.DistinctVenues,
		report.Hits, report.Resolved, report.Unresolved, report.TBA, string(keysJSON),
	)
	return eris.Wrapf(err, "sqlite: record batch %s", report.ID)
}

func (s *SQLiteStore) ListBatches(ctx context.Context, limit int) ([]model.BatchReport, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, started_at, finished_at, events, distinct_venues,
		       hits, resolved, unresolved, tba, unresolved_keys
		FROM batches ORDER BY started_at DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list batches")
	}
	defer rows.Close()

	var reports []model.BatchReport
	for rows.Next() {
		var r model.BatchReport
		var keysJSON sql.NullString
		if err := rows.Scan(&r.ID, &r.StartedAt, &r.FinishedAt, &r.Events, &r.DistinctVenues,
			&r.Hits, &r.Resolved, &r.Unresolved, &r.TBA, &keysJSON); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan batch")
		}
		if keysJSON.Valid && keysJSON.String != "" {
			if err := json.Unmarshal([]byte(keysJSON.String), &r.UnresolvedKeys); err != nil {
				return nil, eris.Wrap(err, "sqlite: unmarshal unresolved keys")
			}
		}
		reports = append(reports, r)
	}
	return reports, eris.Wrap(rows.Err(), "sqlite: list batches iterate")
}

// helpers

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Errorf("%s not found: %s", entity, id)
	}
	return nil
}

func nullTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.UTC()
}

type scannable interface {
	Scan(dest ...any) error
}

func scanVenue(row scannable) (*model.GeocodeEntry, error) {
	var e model.GeocodeEntry
	var key, status string
	var city, displayName, source, query sql.NullString
	var lat, lon sql.NullFloat64
	var lastAttempt sql.NullTime

	err := row.Scan(&key, &e.Name, &city, &status, &lat, &lon, &displayName,
		&e.Approximate, &source, &query, &e.Attempts, &lastAttempt, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return nil, err
	}

	e.Key = model.VenueKey(key)
	e.Status = model.Status(status)
	e.City = city.String
	e.DisplayName = displayName.String
	e.Source = source.String
	e.Query = query.String
	if lat.Valid && lon.Valid {
		e.Latitude = &lat.Float64
		e.Longitude = &lon.Float64
	}
	if lastAttempt.Valid {
		e.LastAttempt = lastAttempt.Time
	}
	return &e, nil
}
