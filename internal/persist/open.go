package persist

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"comic-edge/internal/backoff"
	"comic-edge/internal/logs"
	"comic-edge/internal/store"
)

const (
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
	BackendNone   = "none"
)

var ErrUnknownBackend = errors.New("unknown cache backend")

type Config struct {
	Backend    string
	SQLitePath string
	Redis      RedisConfig
	Retry      backoff.Policy
}

// Backend is a persistent tier that owns a connection.
type Backend interface {
	store.Persistent
	io.Closer
}

// Open connects the configured backend. Connecting is retried with backoff
// because the backend may come up after the service. BackendNone returns a
// nil Backend: the cache then runs memory only.
func Open(ctx context.Context, cfg Config, logger *logs.Logger) (Backend, error) {
	switch cfg.Backend {
	case BackendNone, "":
		logger.Info("persist: no persistent backend, cache is memory only")
		return nil, nil

	case BackendSQLite:
		if dir := filepath.Dir(cfg.SQLitePath); cfg.SQLitePath != ":memory:" && dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create sqlite dir: %w", err)
			}
		}

		var db *SQLite
		err := backoff.Retry(ctx, cfg.Retry, func() error {
			var err error
			db, err = OpenSQLite(ctx, cfg.SQLitePath)
			if err != nil {
				logger.Warnf("persist: %v", err)
			}
			return err
		})
		if err != nil {
			return nil, err
		}
		logger.Infof("persist: sqlite ready at %s", cfg.SQLitePath)
		return db, nil

	case BackendRedis:
		r := NewRedis(cfg.Redis)
		err := backoff.Retry(ctx, cfg.Retry, func() error {
			err := r.Ping(ctx)
			if err != nil {
				logger.Warnf("persist: %v", err)
			}
			return err
		})
		if err != nil {
			r.Close()
			return nil, err
		}
		logger.Infof("persist: redis ready at %s", cfg.Redis.Addr)
		return r, nil
	}

	return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, cfg.Backend)
}
