package catalog

import (
	"context"
	"fmt"
)

// Bootstrap creates the catalog tables when they do not exist yet. Used by
// the sqlite driver (dev, tests, seed tool); postgres deployments run
// migrations out of band.
func (s *Store) Bootstrap(ctx context.Context) error {
	for _, stmt := range schemaStatements {
		if _, err := s.DB.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("bootstrap schema: %w", err)
		}
	}
	return nil
}

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS data_sources (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		type TEXT NOT NULL DEFAULT '',
		category TEXT NOT NULL DEFAULT '',
		domain TEXT NOT NULL DEFAULT '',
		sector TEXT NOT NULL DEFAULT '',
		data_owner TEXT NOT NULL DEFAULT '',
		steward TEXT NOT NULL DEFAULT '',
		trust_score INTEGER NOT NULL DEFAULT 0 CHECK (trust_score BETWEEN 0 AND 100),
		status TEXT NOT NULL DEFAULT 'pending',
		access_level TEXT NOT NULL DEFAULT '',
		sla_percentage REAL NOT NULL DEFAULT 0,
		platform TEXT NOT NULL DEFAULT '',
		tags TEXT NOT NULL DEFAULT '',
		tech_stack TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS people (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		title TEXT NOT NULL DEFAULT '',
		department TEXT NOT NULL DEFAULT '',
		expertise_areas TEXT NOT NULL DEFAULT '',
		bio TEXT NOT NULL DEFAULT '',
		email TEXT NOT NULL DEFAULT '',
		slack_handle TEXT NOT NULL DEFAULT '',
		years_experience INTEGER NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE IF NOT EXISTS teams (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		department TEXT NOT NULL DEFAULT '',
		description TEXT NOT NULL DEFAULT '',
		lead_name TEXT NOT NULL DEFAULT '',
		headcount INTEGER NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE IF NOT EXISTS tools (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		category TEXT NOT NULL DEFAULT '',
		owner_team TEXT NOT NULL DEFAULT '',
		docs_url TEXT NOT NULL DEFAULT '',
		trust_score INTEGER NOT NULL DEFAULT 0,
		tags TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE TABLE IF NOT EXISTS policies (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		category TEXT NOT NULL DEFAULT '',
		owner_team TEXT NOT NULL DEFAULT '',
		effective_date TIMESTAMP NOT NULL,
		review_cycle TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE TABLE IF NOT EXISTS collections (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		curator TEXT NOT NULL DEFAULT '',
		item_count INTEGER NOT NULL DEFAULT 0,
		updated_at TIMESTAMP NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_data_sources_trust ON data_sources (trust_score DESC, updated_at DESC)`,
	`CREATE INDEX IF NOT EXISTS idx_people_name ON people (name)`,
}
