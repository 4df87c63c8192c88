package persist

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"comic-edge/internal/store"

	_ "modernc.org/sqlite"
)

const schemaVersion = 1

// schema is applied on every open; each statement is a no-op when the table
// and index already exist.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS cache (
		key       TEXT PRIMARY KEY,
		data      BLOB    NOT NULL,
		timestamp INTEGER NOT NULL,
		ttl       INTEGER NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS cache_timestamp ON cache (timestamp)`,
	fmt.Sprintf(`PRAGMA user_version = %d`, schemaVersion),
}

// SQLite keeps cache entries in a single table. Timestamps and TTLs are
// stored in milliseconds.
type SQLite struct {
	db *sql.DB
}

// OpenSQLite opens (creating if needed) the database at path. ":memory:"
// gives a private in-memory database.
func OpenSQLite(ctx context.Context, path string) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %q: %w", path, err)
	}
	// one writer at a time; also keeps ":memory:" on a single connection
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite %q: %w", path, err)
	}

	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("migrate sqlite: %w", err)
		}
	}
	return &SQLite{db: db}, nil
}

func (s *SQLite) Load(ctx context.Context, key string) (store.Entry, bool, error) {
	var (
		data     []byte
		storedMs int64
		ttlMs    int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT data, timestamp, ttl FROM cache WHERE key = ?`, key,
	).Scan(&data, &storedMs, &ttlMs)
	if errors.Is(err, sql.ErrNoRows) {
		return store.Entry{}, false, nil
	}
	if err != nil {
		return store.Entry{}, false, fmt.Errorf("sqlite load %q: %w", key, err)
	}

	return store.Entry{
		Key:      key,
		Value:    data,
		StoredAt: time.UnixMilli(storedMs),
		TTL:      time.Duration(ttlMs) * time.Millisecond,
	}, true, nil
}

func (s *SQLite) Save(ctx context.Context, e store.Entry) error {
	if e.Value == nil {
		e.Value = []byte{}
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO cache (key, data, timestamp, ttl) VALUES (?, ?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET
		   data = excluded.data,
		   timestamp = excluded.timestamp,
		   ttl = excluded.ttl`,
		e.Key, e.Value, e.StoredAt.UnixMilli(), e.TTL.Milliseconds(),
	)
	if err != nil {
		return fmt.Errorf("sqlite save %q: %w", e.Key, err)
	}
	return nil
}

func (s *SQLite) Remove(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM cache WHERE key = ?`, key); err != nil {
		return fmt.Errorf("sqlite remove %q: %w", key, err)
	}
	return nil
}

// RemoveExpired deletes rows whose age reached their TTL.
func (s *SQLite) RemoveExpired(ctx context.Context, now time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM cache WHERE timestamp + ttl <= ?`, now.UnixMilli(),
	)
	if err != nil {
		return 0, fmt.Errorf("sqlite remove expired: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("sqlite remove expired: %w", err)
	}
	return int(n), nil
}

// Version reports the schema version stamped in the database.
func (s *SQLite) Version(ctx context.Context) (int, error) {
	var v int
	if err := s.db.QueryRowContext(ctx, `PRAGMA user_version`).Scan(&v); err != nil {
		return 0, fmt.Errorf("sqlite user_version: %w", err)
	}
	return v, nil
}

func (s *SQLite) Close() error {
	return s.db.Close()
}
