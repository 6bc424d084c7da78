// Package people implements relational queries over the people table.
package people

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/meridian-data/datamart/internal/catalog"
	"github.com/meridian-data/datamart/internal/domain"
)

// Params filter the people query. All filters are exact-substring only; no
// fuzzy fallback on this path.
type Params struct {
	Search     string
	Department string
	Expertise  string
	Limit      int
}

// Repo queries person records.
type Repo struct {
	store *catalog.Store
}

// New creates a people repository.
func New(store *catalog.Store) *Repo {
	return &Repo{store: store}
}

const selectColumns = `id, name, title, department, expertise_areas, bio, email, slack_handle, years_experience`

// Query returns people matching the AND of all supplied filters, most
// experienced first.
func (r *Repo) Query(ctx context.Context, p Params) ([]domain.PersonRecord, error) {
	var conds []string
	var args []any

	if term := strings.TrimSpace(p.Search); term != "" {
		needle := "%" + strings.ToLower(term) + "%"
		conds = append(conds,
			`(LOWER(name) LIKE ? OR LOWER(title) LIKE ? OR LOWER(bio) LIKE ? OR LOWER(expertise_areas) LIKE ?)`)
		args = append(args, needle, needle, needle, needle)
	}
	if dep := strings.TrimSpace(p.Department); dep != "" {
		conds = append(conds, `LOWER(department) = ?`)
		args = append(args, strings.ToLower(dep))
	}
	if exp := strings.TrimSpace(p.Expertise); exp != "" {
		conds = append(conds, `LOWER(expertise_areas) LIKE ?`)
		args = append(args, "%"+strings.ToLower(exp)+"%")
	}

	query := `SELECT ` + selectColumns + ` FROM people`
	if len(conds) > 0 {
		query += ` WHERE ` + strings.Join(conds, ` AND `)
	}
	query += ` ORDER BY years_experience DESC, name ASC`
	if p.Limit > 0 {
		query += fmt.Sprintf(` LIMIT %d`, p.Limit)
	}

	rows, err := r.store.DB.QueryContext(ctx, r.store.Rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("query people: %w", err)
	}
	defer rows.Close()
	return scanPeople(rows)
}

// FindByName returns people whose name contains the given string,
// case-insensitively. Used by the chat orchestrator's owner fan-out, which
// must not match on bio or expertise text.
func (r *Repo) FindByName(ctx context.Context, name string) ([]domain.PersonRecord, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, nil
	}

	query := r.store.Rebind(`SELECT ` + selectColumns + ` FROM people
		WHERE LOWER(name) LIKE ? ORDER BY years_experience DESC, name ASC`)

	rows, err := r.store.DB.QueryContext(ctx, query, "%"+strings.ToLower(name)+"%")
	if err != nil {
		return nil, fmt.Errorf("find person by name: %w", err)
	}
	defer rows.Close()
	return scanPeople(rows)
}

func scanPeople(rows *sql.Rows) ([]domain.PersonRecord, error) {
	var records []domain.PersonRecord
	for rows.Next() {
		var rec domain.PersonRecord
		var expertise string
		if err := rows.Scan(
			&rec.ID, &rec.Name, &rec.Title, &rec.Department, &expertise,
			&rec.Bio, &rec.Email, &rec.SlackHandle, &rec.YearsExperience,
		); err != nil {
			return nil, fmt.Errorf("scan person: %w", err)
		}
		if expertise != "" {
			rec.ExpertiseAreas = strings.Split(expertise, ",")
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate people: %w", err)
	}
	return records, nil
}

// Upsert inserts or replaces a person record (seed tool and tests).
func (r *Repo) Upsert(ctx context.Context, rec domain.PersonRecord) error {
	query := r.store.Rebind(`INSERT INTO people (` + selectColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			name = excluded.name, title = excluded.title,
			department = excluded.department, expertise_areas = excluded.expertise_areas,
			bio = excluded.bio, email = excluded.email,
			slack_handle = excluded.slack_handle, years_experience = excluded.years_experience`)

	_, err := r.store.DB.ExecContext(ctx, query,
		rec.ID, rec.Name, rec.Title, rec.Department,
		strings.Join(rec.ExpertiseAreas, ","), rec.Bio, rec.Email,
		rec.SlackHandle, rec.YearsExperience,
	)
	if err != nil {
		return fmt.Errorf("upsert person %s: %w", rec.ID, err)
	}
	return nil
}
