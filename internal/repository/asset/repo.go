// Package asset implements relational queries over tools, policies, teams,
// and curated collections. These entities share the filter-and-rank shape of
// the data source adapter minus the fuzzy fallback.
package asset

import (
	"context"
	"fmt"
	"strings"

	"github.com/meridian-data/datamart/internal/catalog"
	"github.com/meridian-data/datamart/internal/domain"
)

// Repo queries tool, policy, team, and collection records.
type Repo struct {
	store *catalog.Store
}

// New creates an asset repository.
func New(store *catalog.Store) *Repo {
	return &Repo{store: store}
}

// Tools returns tools whose name or description contains search, highest
// trust first.
func (r *Repo) Tools(ctx context.Context, search, category string, limit int) ([]domain.ToolRecord, error) {
	query := `SELECT id, name, description, category, owner_team, docs_url, trust_score, tags FROM tools`
	conds, args := substringConds(search, "name", "description", "tags")
	if c := strings.TrimSpace(category); c != "" {
		conds = append(conds, `LOWER(category) = ?`)
		args = append(args, strings.ToLower(c))
	}
	query = appendWhere(query, conds) + ` ORDER BY trust_score DESC, name ASC` + limitClause(limit)

	rows, err := r.store.DB.QueryContext(ctx, r.store.Rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("query tools: %w", err)
	}
	defer rows.Close()

	var records []domain.ToolRecord
	for rows.Next() {
		var rec domain.ToolRecord
		var tags string
		if err := rows.Scan(&rec.ID, &rec.Name, &rec.Description, &rec.Category,
			&rec.OwnerTeam, &rec.DocsURL, &rec.TrustScore, &tags); err != nil {
			return nil, fmt.Errorf("scan tool: %w", err)
		}
		if tags != "" {
			rec.Tags = strings.Split(tags, ",")
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Policies returns policies whose name or description contains search, most
// recently effective first.
func (r *Repo) Policies(ctx context.Context, search, category string, limit int) ([]domain.PolicyRecord, error) {
	query := `SELECT id, name, description, category, owner_team, effective_date, review_cycle FROM policies`
	conds, args := substringConds(search, "name", "description")
	if c := strings.TrimSpace(category); c != "" {
		conds = append(conds, `LOWER(category) = ?`)
		args = append(args, strings.ToLower(c))
	}
	query = appendWhere(query, conds) + ` ORDER BY effective_date DESC, name ASC` + limitClause(limit)

	rows, err := r.store.DB.QueryContext(ctx, r.store.Rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("query policies: %w", err)
	}
	defer rows.Close()

	var records []domain.PolicyRecord
	for rows.Next() {
		var rec domain.PolicyRecord
		if err := rows.Scan(&rec.ID, &rec.Name, &rec.Description, &rec.Category,
			&rec.OwnerTeam, &rec.EffectiveDate, &rec.ReviewCycle); err != nil {
			return nil, fmt.Errorf("scan policy: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Collections returns curated collections whose name or description contains
// search, most recently updated first.
func (r *Repo) Collections(ctx context.Context, search string, limit int) ([]domain.CollectionRecord, error) {
	query := `SELECT id, name, description, curator, item_count, updated_at FROM collections`
	conds, args := substringConds(search, "name", "description")
	query = appendWhere(query, conds) + ` ORDER BY updated_at DESC, name ASC` + limitClause(limit)

	rows, err := r.store.DB.QueryContext(ctx, r.store.Rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("query collections: %w", err)
	}
	defer rows.Close()

	var records []domain.CollectionRecord
	for rows.Next() {
		var rec domain.CollectionRecord
		if err := rows.Scan(&rec.ID, &rec.Name, &rec.Description, &rec.Curator,
			&rec.ItemCount, &rec.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan collection: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Teams returns teams whose name or description contains search, largest
// first.
func (r *Repo) Teams(ctx context.Context, search string, limit int) ([]domain.TeamRecord, error) {
	query := `SELECT id, name, department, description, lead_name, headcount FROM teams`
	conds, args := substringConds(search, "name", "description", "department")
	query = appendWhere(query, conds) + ` ORDER BY headcount DESC, name ASC` + limitClause(limit)

	rows, err := r.store.DB.QueryContext(ctx, r.store.Rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("query teams: %w", err)
	}
	defer rows.Close()

	var records []domain.TeamRecord
	for rows.Next() {
		var rec domain.TeamRecord
		if err := rows.Scan(&rec.ID, &rec.Name, &rec.Department, &rec.Description,
			&rec.LeadName, &rec.Headcount); err != nil {
			return nil, fmt.Errorf("scan team: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// UpsertTool, UpsertPolicy, UpsertCollection, and UpsertTeam back the seed
// tool and repository tests.

func (r *Repo) UpsertTool(ctx context.Context, rec domain.ToolRecord) error {
	query := r.store.Rebind(`INSERT INTO tools (id, name, description, category, owner_team, docs_url, trust_score, tags)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			name = excluded.name, description = excluded.description,
			category = excluded.category, owner_team = excluded.owner_team,
			docs_url = excluded.docs_url, trust_score = excluded.trust_score,
			tags = excluded.tags`)
	_, err := r.store.DB.ExecContext(ctx, query, rec.ID, rec.Name, rec.Description,
		rec.Category, rec.OwnerTeam, rec.DocsURL, rec.TrustScore, strings.Join(rec.Tags, ","))
	if err != nil {
		return fmt.Errorf("upsert tool %s: %w", rec.ID, err)
	}
	return nil
}

func (r *Repo) UpsertPolicy(ctx context.Context, rec domain.PolicyRecord) error {
	query := r.store.Rebind(`INSERT INTO policies (id, name, description, category, owner_team, effective_date, review_cycle)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			name = excluded.name, description = excluded.description,
			category = excluded.category, owner_team = excluded.owner_team,
			effective_date = excluded.effective_date, review_cycle = excluded.review_cycle`)
	_, err := r.store.DB.ExecContext(ctx, query, rec.ID, rec.Name, rec.Description,
		rec.Category, rec.OwnerTeam, rec.EffectiveDate, rec.ReviewCycle)
	if err != nil {
		return fmt.Errorf("upsert policy %s: %w", rec.ID, err)
	}
	return nil
}

func (r *Repo) UpsertCollection(ctx context.Context, rec domain.CollectionRecord) error {
	query := r.store.Rebind(`INSERT INTO collections (id, name, description, curator, item_count, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			name = excluded.name, description = excluded.description,
			curator = excluded.curator, item_count = excluded.item_count,
			updated_at = excluded.updated_at`)
	_, err := r.store.DB.ExecContext(ctx, query, rec.ID, rec.Name, rec.Description,
		rec.Curator, rec.ItemCount, rec.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert collection %s: %w", rec.ID, err)
	}
	return nil
}

func (r *Repo) UpsertTeam(ctx context.Context, rec domain.TeamRecord) error {
	query := r.store.Rebind(`INSERT INTO teams (id, name, department, description, lead_name, headcount)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			name = excluded.name, department = excluded.department,
			description = excluded.description, lead_name = excluded.lead_name,
			headcount = excluded.headcount`)
	_, err := r.store.DB.ExecContext(ctx, query, rec.ID, rec.Name, rec.Department,
		rec.Description, rec.LeadName, rec.Headcount)
	if err != nil {
		return fmt.Errorf("upsert team %s: %w", rec.ID, err)
	}
	return nil
}

// --- shared query helpers ---

func substringConds(search string, columns ...string) ([]string, []any) {
	term := strings.TrimSpace(search)
	if term == "" {
		return nil, nil
	}
	needle := "%" + strings.ToLower(term) + "%"
	parts := make([]string, len(columns))
	args := make([]any, len(columns))
	for i, col := range columns {
		parts[i] = `LOWER(` + col + `) LIKE ?`
		args[i] = needle
	}
	return []string{`(` + strings.Join(parts, ` OR `) + `)`}, args
}

func appendWhere(query string, conds []string) string {
	if len(conds) == 0 {
		return query
	}
	return query + ` WHERE ` + strings.Join(conds, ` AND `)
}

func limitClause(limit int) string {
	if limit <= 0 {
		return ""
	}
	return fmt.Sprintf(` LIMIT %d`, limit)
}
