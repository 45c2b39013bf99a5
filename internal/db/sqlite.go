// Package db implements the SQLite connection journal: a record of every
// session's connects, disconnects, failures and character confirmations.
package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"
)

var pragmas = []string{
	"PRAGMA journal_mode=WAL",
	"PRAGMA synchronous=NORMAL",
	"PRAGMA busy_timeout=5000",
}

// store is the SQLite file behind the journal. The driver allows a single
// writer, so writes are serialized here; reads go straight to the pool.
type store struct {
	mu sync.Mutex
	db *sql.DB
}

func openStore(path string) (*store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create journal directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)

	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			log.Warn().Err(err).Str("pragma", p).Msg("journal pragma rejected")
		}
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("journal ping failed: %w", err)
	}

	log.Info().Str("path", path).Msg("journal opened")
	return &store{db: db}, nil
}

func (s *store) exec(query string, args ...interface{}) (sql.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Exec(query, args...)
}

func (s *store) query(query string, args ...interface{}) (*sql.Rows, error) {
	return s.db.Query(query, args...)
}

func (s *store) close() error {
	return s.db.Close()
}

// migrate applies steps[v:] where v is the schema version recorded in the
// file, each in its own transaction, and returns the resulting version.
func (s *store) migrate(steps []string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var version int
	if err := s.db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return 0, fmt.Errorf("failed to read schema version: %w", err)
	}
	if version > len(steps) {
		return version, fmt.Errorf("journal schema version %d is newer than this build (%d)", version, len(steps))
	}

	for v := version; v < len(steps); v++ {
		tx, err := s.db.Begin()
		if err != nil {
			return v, err
		}
		if _, err := tx.Exec(steps[v]); err != nil {
			tx.Rollback()
			return v, fmt.Errorf("migration %d: %w", v+1, err)
		}
		// PRAGMA does not take bind parameters.
		if _, err := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", v+1)); err != nil {
			tx.Rollback()
			return v, fmt.Errorf("migration %d: %w", v+1, err)
		}
		if err := tx.Commit(); err != nil {
			return v, fmt.Errorf("migration %d: %w", v+1, err)
		}
		log.Debug().Int("version", v+1).Msg("journal schema migrated")
	}
	return len(steps), nil
}
