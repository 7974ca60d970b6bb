// Package store persists geocoding results between runs.
package store

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/trilemmafoundation/canada-tech/pkg/geocode"
)

// SQLiteStore implements geocode.Store using modernc.org/sqlite.
type SQLiteStore struct {
	db  *sql.DB
	ttl time.Duration
	now func() time.Time
}

var _ geocode.Store = (*SQLiteStore)(nil)

// NewSQLite opens the cache database at dsn, creating its directory when dsn
// is a plain path. Entries older than ttl are ignored; ttl <= 0 keeps them
// forever.
func NewSQLite(dsn string, ttl time.Duration) (*SQLiteStore, error) {
	if isFilePath(dsn) {
		if dir := filepath.Dir(dsn); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, eris.Wrapf(err, "sqlite: create dir %s", dir)
			}
		}
	}

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
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db, ttl: ttl, now: time.Now}, nil
}

func isFilePath(dsn string) bool {
	return dsn != "" && dsn != ":memory:" && !strings.HasPrefix(dsn, "file:")
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS geocode_cache (
	query_hash   TEXT PRIMARY KEY,
	query        TEXT NOT NULL,
	latitude     REAL NOT NULL,
	longitude    REAL NOT NULL,
	source       TEXT NOT NULL DEFAULT '',
	display_name TEXT NOT NULL DEFAULT '',
	cached_at    INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_geocode_cache_cached_at ON geocode_cache(cached_at);
`

// Migrate creates the cache table.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// GetGeocode implements geocode.Store.
func (s *SQLiteStore) GetGeocode(ctx context.Context, key string) (*geocode.Result, bool, error) {
	var cutoff int64
	if s.ttl > 0 {
		cutoff = s.now().Add(-s.ttl).Unix()
	}

	var r geocode.Result
	err := s.db.QueryRowContext(ctx,
		`SELECT query, latitude, longitude, source, display_name
		FROM geocode_cache WHERE query_hash = ? AND cached_at >= ?`,
		key, cutoff,
	).Scan(&r.Query, &r.Latitude, &r.Longitude, &r.Source, &r.DisplayName)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, eris.Wrap(err, "sqlite: get geocode")
	}
	r.Matched = true
	return &r, true, nil
}

// PutGeocode implements geocode.Store. Only matched results are stored.
func (s *SQLiteStore) PutGeocode(ctx context.Context, key string, r *geocode.Result) error {
	if r == nil || !r.Matched {
		return nil
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO geocode_cache (query_hash, query, latitude, longitude, source, display_name, cached_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (query_hash) DO UPDATE SET
			query = excluded.query,
			latitude = excluded.latitude,
			longitude = excluded.longitude,
			source = excluded.source,
			display_name = excluded.display_name,
			cached_at = excluded.cached_at`,
		key, r.Query, r.Latitude, r.Longitude, r.Source, r.DisplayName, s.now().Unix(),
	)
	return eris.Wrap(err, "sqlite: put geocode")
}

// Prune deletes entries older than the store's TTL and returns how many were
// removed. It is a no-op without a TTL.
func (s *SQLiteStore) Prune(ctx context.Context) (int64, error) {
	if s.ttl <= 0 {
		return 0, nil
	}
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM geocode_cache WHERE cached_at < ?`,
		s.now().Add(-s.ttl).Unix(),
	)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: prune geocode cache")
	}
	n, err := res.RowsAffected()
	return n, eris.Wrap(err, "sqlite: prune rows affected")
}

// Count returns the number of cached entries.
func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM geocode_cache`).Scan(&n)
	return n, eris.Wrap(err, "sqlite: count geocode cache")
}
