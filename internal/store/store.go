package store

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/rs/zerolog"
)

// Store wraps the single shared *sql.DB connection to observer.db. The
// connection pool is capped at one open connection (§5: "a single
// connection serialized by the lifecycle lock") — SQLite does not allow
// concurrent writers, and the spec wants write-serialization to flow
// through the lifecycle lock, not through driver-level contention.
type Store struct {
	DB  *sql.DB
	log zerolog.Logger
}

// Open opens (creating if absent) the SQLite file at path and applies
// pending migrations.
func Open(ctx context.Context, path string, log zerolog.Logger) (*Store, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("failed to open observer store: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping observer store: %w", err)
	}

	if err := NewMigrator(db, log).Migrate(ctx); err != nil {
		return nil, fmt.Errorf("failed to migrate observer store: %w", err)
	}

	return &Store{DB: db, log: log.With().Str("component", "store").Logger()}, nil
}

func (s *Store) Close() error {
	return s.DB.Close()
}
