// Package datasource implements relational queries over the data_sources table.
package datasource

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/meridian-data/datamart/internal/catalog"
	"github.com/meridian-data/datamart/internal/domain"
)

// Params are the adapter's filter inputs. Empty strings and the UI sentinel
// values ("All Types", ...) mean "no filter".
type Params struct {
	Search   string
	Type     string
	Category string
	Status   string
	Limit    int
}

// Repo queries data source records.
type Repo struct {
	store *catalog.Store
}

// New creates a data source repository.
func New(store *catalog.Store) *Repo {
	return &Repo{store: store}
}

const selectColumns = `id, title, description, type, category, domain, sector,
	data_owner, steward, trust_score, status, access_level, sla_percentage,
	platform, tags, tech_stack, created_at, updated_at`

// Query returns records matching the AND of all supplied filters, ordered by
// trust score descending with updated_at as the tie-break. The search term is
// a case-insensitive substring match over title, description, domain, and
// category.
func (r *Repo) Query(ctx context.Context, p Params) ([]domain.DataSourceRecord, error) {
	var conds []string
	var args []any

	if term := strings.TrimSpace(p.Search); term != "" {
		needle := "%" + strings.ToLower(term) + "%"
		conds = append(conds,
			`(LOWER(title) LIKE ? OR LOWER(description) LIKE ? OR LOWER(domain) LIKE ? OR LOWER(category) LIKE ?)`)
		args = append(args, needle, needle, needle, needle)
	}
	if v := realFilter(p.Type, domain.AllTypes); v != "" {
		conds = append(conds, `type = ?`)
		args = append(args, v)
	}
	if v := realFilter(p.Category, domain.AllCategories); v != "" {
		conds = append(conds, `category = ?`)
		args = append(args, v)
	}
	if v := realFilter(p.Status, domain.AllStatus); v != "" {
		conds = append(conds, `status = ?`)
		args = append(args, v)
	}

	query := `SELECT ` + selectColumns + ` FROM data_sources`
	if len(conds) > 0 {
		query += ` WHERE ` + strings.Join(conds, ` AND `)
	}
	query += ` ORDER BY trust_score DESC, updated_at DESC`
	if p.Limit > 0 {
		query += fmt.Sprintf(` LIMIT %d`, p.Limit)
	}

	return r.queryRecords(ctx, query, args...)
}

// ListAll returns the entire unfiltered record set, bounded by the table's
// total row count. The fuzzy fallback scores every record, so no pagination.
func (r *Repo) ListAll(ctx context.Context) ([]domain.DataSourceRecord, error) {
	query := `SELECT ` + selectColumns + ` FROM data_sources ORDER BY trust_score DESC, updated_at DESC`
	return r.queryRecords(ctx, query)
}

// Get returns a single record by id.
func (r *Repo) Get(ctx context.Context, id string) (domain.DataSourceRecord, error) {
	query := r.store.Rebind(`SELECT ` + selectColumns + ` FROM data_sources WHERE id = ?`)
	row := r.store.DB.QueryRowContext(ctx, query, id)
	rec, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return domain.DataSourceRecord{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.DataSourceRecord{}, fmt.Errorf("get data source %s: %w", id, err)
	}
	return rec, nil
}

// Upsert inserts or replaces a record (seed tool and tests).
func (r *Repo) Upsert(ctx context.Context, rec domain.DataSourceRecord) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = rec.CreatedAt
	}

	query := r.store.Rebind(`INSERT INTO data_sources (` + strings.ReplaceAll(selectColumns, "\n\t", " ") + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			title = excluded.title, description = excluded.description,
			type = excluded.type, category = excluded.category,
			domain = excluded.domain, sector = excluded.sector,
			data_owner = excluded.data_owner, steward = excluded.steward,
			trust_score = excluded.trust_score, status = excluded.status,
			access_level = excluded.access_level, sla_percentage = excluded.sla_percentage,
			platform = excluded.platform, tags = excluded.tags,
			tech_stack = excluded.tech_stack, updated_at = excluded.updated_at`)

	_, err := r.store.DB.ExecContext(ctx, query,
		rec.ID, rec.Title, rec.Description, rec.Type, rec.Category, rec.Domain, rec.Sector,
		rec.DataOwner, rec.Steward, rec.TrustScore, string(rec.Status), rec.AccessLevel,
		rec.SLAPercentage, rec.Platform, joinList(rec.Tags), joinList(rec.TechStack),
		rec.CreatedAt, rec.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert data source %s: %w", rec.ID, err)
	}
	return nil
}

func (r *Repo) queryRecords(ctx context.Context, query string, args ...any) ([]domain.DataSourceRecord, error) {
	rows, err := r.store.DB.QueryContext(ctx, r.store.Rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("query data sources: %w", err)
	}
	defer rows.Close()

	var records []domain.DataSourceRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan data source: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate data sources: %w", err)
	}
	return records, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(s scanner) (domain.DataSourceRecord, error) {
	var rec domain.DataSourceRecord
	var status, tags, techStack string
	err := s.Scan(
		&rec.ID, &rec.Title, &rec.Description, &rec.Type, &rec.Category,
		&rec.Domain, &rec.Sector, &rec.DataOwner, &rec.Steward, &rec.TrustScore,
		&status, &rec.AccessLevel, &rec.SLAPercentage, &rec.Platform,
		&tags, &techStack, &rec.CreatedAt, &rec.UpdatedAt,
	)
	if err != nil {
		return domain.DataSourceRecord{}, err
	}
	rec.Status = domain.DataSourceStatus(status)
	rec.Tags = splitList(tags)
	rec.TechStack = splitList(techStack)
	return rec, nil
}

// realFilter strips empty values and UI sentinels.
func realFilter(value, sentinel string) string {
	value = strings.TrimSpace(value)
	if value == "" || value == sentinel {
		return ""
	}
	return value
}

func joinList(items []string) string {
	return strings.Join(items, ",")
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}
