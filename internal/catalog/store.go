// Package catalog owns the relational record store handle. The store is
// constructed explicitly and injected into repositories; nothing here is
// process-global.
package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"  // postgres driver
	_ "modernc.org/sqlite" // sqlite driver (pure Go)
)

// Config holds relational store connection settings.
type Config struct {
	Driver string // "sqlite" or "postgres"
	DSN    string
}

// Store wraps the relational database handle.
type Store struct {
	DB     *sql.DB
	driver string
}

// Open connects to the catalog store. Supported drivers: sqlite, postgres.
func Open(cfg Config) (*Store, error) {
	var driverName string
	switch cfg.Driver {
	case "sqlite", "":
		driverName = "sqlite"
	case "postgres":
		driverName = "postgres"
	default:
		return nil, fmt.Errorf("unknown catalog driver %q", cfg.Driver)
	}

	dbh, err := sql.Open(driverName, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open catalog store: %w", err)
	}

	return &Store{DB: dbh, driver: driverName}, nil
}

// Driver returns the active driver name.
func (s *Store) Driver() string { return s.driver }

// Close releases the connection pool.
func (s *Store) Close() error {
	return s.DB.Close()
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.DB.PingContext(ctx); err != nil {
		return fmt.Errorf("ping catalog store: %w", err)
	}
	return nil
}

// WaitForReady polls Ping until the store responds or the timeout expires.
func (s *Store) WaitForReady(ctx context.Context, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("timeout waiting for catalog store: %w", ctx.Err())
		case <-ticker.C:
			if err := s.Ping(ctx); err == nil {
				return nil
			}
		}
	}
}

// Rebind converts '?' placeholders to the driver's placeholder style.
// Repositories write sqlite-style queries; postgres needs $1..$n.
func (s *Store) Rebind(query string) string {
	if s.driver != "postgres" {
		return query
	}
	var out []byte
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			out = append(out, fmt.Sprintf("$%d", n)...)
			continue
		}
		out = append(out, query[i])
	}
	return string(out)
}
