// database/db.go
package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/LilVoxy/ministry_analytics/ETL/config"
)

// Store is the embedded analytical store. Reads go through its query methods,
// writes go through ETL/load on the same *sql.DB.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens the DuckDB file at path and applies pending migrations
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := config.OpenDuckDB(path)
	if err != nil {
		return nil, err
	}
	store, err := NewStore(ctx, db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

// NewStore wraps an open connection and applies pending migrations
func NewStore(ctx context.Context, db *sql.DB) (*Store, error) {
	if err := Migrate(ctx, db); err != nil {
		return nil, fmt.Errorf("schema migration failed: %w", err)
	}
	return &Store{db: db, now: time.Now}, nil
}

// NewStoreWithoutMigrations wraps a connection as-is, used with mocked drivers
func NewStoreWithoutMigrations(db *sql.DB) *Store {
	return &Store{db: db, now: time.Now}
}

// DB returns the underlying connection
func (s *Store) DB() *sql.DB {
	return s.db
}

// SetClock overrides "today" for the as-of cutoff
func (s *Store) SetClock(now func() time.Time) {
	s.now = now
}

// Today returns the as-of date; facts dated after it are not reported
func (s *Store) Today() time.Time {
	t := s.now()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// Close closes the connection
func (s *Store) Close() error {
	return s.db.Close()
}
