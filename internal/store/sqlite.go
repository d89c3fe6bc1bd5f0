package store

import (
	"context"
	"database/sql"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/gofrs/flock"
	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)

	"github.com/commonplacehq/commonplace/internal/errors"
)

// SQLiteIndex implements Index on SQLite FTS5.
//
// It is the single serialized access boundary to the database: a mutex
// plus a one-connection pool ensure statements execute to completion
// before the next is accepted, so migrations, trigger-driven mirror
// updates, and queries never interleave. A cross-process file lock
// guards the database directory against a second engine instance.
type SQLiteIndex struct {
	mu          sync.Mutex
	db          *sql.DB
	path        string
	lock        *flock.Flock
	logger      *slog.Logger
	initialized bool
}

// NewSQLiteIndex creates an engine for the database at path.
// An empty path selects an in-memory database for testing.
// Initialize must be called before any other operation.
func NewSQLiteIndex(path string, logger *slog.Logger) *SQLiteIndex {
	if logger == nil {
		logger = slog.Default()
	}
	return &SQLiteIndex{path: path, logger: logger}
}

// Initialize opens the database, acquires the directory lock, enables
// consistency pragmas (foreign keys, WAL), and runs pending migrations.
// Migration failure closes the engine: it must not serve a partially
// migrated index.
func (s *SQLiteIndex) Initialize(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.initialized {
		return nil
	}

	dsn := ":memory:"
	if s.path != "" {
		dir := filepath.Dir(s.path)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.Wrap(errors.ErrCodeConnectionFailed, "create database directory", err)
		}

		s.lock = flock.New(filepath.Join(dir, ".index.lock"))
		locked, err := s.lock.TryLock()
		if err != nil {
			return errors.Wrap(errors.ErrCodeConnectionFailed, "acquire index lock", err)
		}
		if !locked {
			return errors.Newf(errors.ErrCodeConnectionFailed, "index at %s is locked by another process", s.path)
		}

		dsn = s.path
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		s.releaseLock()
		return errors.Wrap(errors.ErrCodeConnectionFailed, "open database", err)
	}

	// Single writer: the serialized boundary is this one connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	// WAL must be set via PRAGMA for modernc.org/sqlite; DSN params
	// are not honored by the driver.
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA temp_store = MEMORY",
	}
	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			s.releaseLock()
			return errors.Wrap(errors.ErrCodeConnectionFailed, "set pragma", err)
		}
	}

	if err := migrate(ctx, db, s.logger); err != nil {
		_ = db.Close()
		s.releaseLock()
		return err
	}

	s.db = db
	s.initialized = true
	s.logger.Info("search_index_opened", slog.String("path", s.path))
	return nil
}

// Close checkpoints and closes the database and releases the lock.
// Close is idempotent.
func (s *SQLiteIndex) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return nil
	}
	s.initialized = false

	_, _ = s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
	err := s.db.Close()
	s.releaseLock()
	if err != nil {
		return errors.Wrap(errors.ErrCodeConnectionFailed, "close database", err)
	}
	return nil
}

func (s *SQLiteIndex) releaseLock() {
	if s.lock != nil {
		_ = s.lock.Unlock()
		s.lock = nil
	}
}

// requireInit must be called with the mutex held.
func (s *SQLiteIndex) requireInit() error {
	if !s.initialized {
		return errors.ErrNotInitialized
	}
	return nil
}
