package storage

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"sync"

	_ "modernc.org/sqlite" // Pure Go SQLite driver

	lcerrors "livecheck/internal/errors"
	"livecheck/internal/paths"
)

// SQLStore is the file-backed Store over SQLite.
type SQLStore struct {
	conn   *sql.DB
	logger *slog.Logger
	dbPath string
	opts   Options
	notify *notifier

	// writeMu serializes every mutating operation
	writeMu sync.Mutex
}

// Open opens or creates <dir>/livecheck.db and creates the schema.
// Any failure is a StoreUnavailable error; callers fall back to NewMemoryStore.
func Open(dir string, opts Options) (*SQLStore, error) {
	opts = opts.withDefaults()

	if _, err := paths.EnsureDir(dir); err != nil {
		return nil, lcerrors.New(lcerrors.StoreUnavailable, "failed to create storage directory", err)
	}
	dbPath := paths.DatabasePath(dir)
	dbExists := fileExists(dbPath)

	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, lcerrors.New(lcerrors.StoreUnavailable, "failed to open database", err)
	}
	// one connection keeps pragmas in effect for every statement
	conn.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=FULL", // every commit is on disk before it returns
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	}
	for _, pragma := range pragmas {
		if _, err := conn.Exec(pragma); err != nil {
			_ = conn.Close()
			return nil, lcerrors.New(lcerrors.StoreUnavailable, "failed to set pragma", err).
				WithDetails(map[string]interface{}{"pragma": pragma})
		}
	}

	s := &SQLStore{
		conn:   conn,
		logger: opts.Logger,
		dbPath: dbPath,
		opts:   opts,
		notify: newNotifier(),
	}

	if !dbExists {
		s.logger.Info("Creating new database", "path", dbPath)
	}
	if err := s.initializeSchema(); err != nil {
		_ = conn.Close()
		return nil, lcerrors.New(lcerrors.StoreUnavailable, "failed to initialize schema", err)
	}

	return s, nil
}

// Path returns the database file path.
func (s *SQLStore) Path() string {
	return s.dbPath
}

// Close closes the database connection
func (s *SQLStore) Close() error {
	if s.conn != nil {
		return s.conn.Close()
	}
	return nil
}

// withTx executes fn within a transaction, rolling back on error or panic.
func (s *SQLStore) withTx(fn func(*sql.Tx) error) error {
	tx, err := s.conn.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			s.logger.Error("failed to rollback transaction",
				"error", err.Error(),
				"rollback_error", rbErr.Error(),
			)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// write runs a mutating transaction under the single-writer lock.
func (s *SQLStore) write(fn func(*sql.Tx) error) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.withTx(fn)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
