package jurisdiction

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/openlgu/badyet/internal/db"
)

// Directory is the lookup interface the scope resolver depends on.
type Directory interface {
	// LookupByNameAndType returns active jurisdictions whose name matches one
	// of the given names case-insensitively and exactly.
	LookupByNameAndType(ctx context.Context, names []string, typ Type) ([]Jurisdiction, error)

	// GetByID returns the jurisdiction with the given id, or nil if absent.
	GetByID(ctx context.Context, id string) (*Jurisdiction, error)

	// PublishedChildren returns active published jurisdictions whose parent is
	// the given id.
	PublishedChildren(ctx context.Context, parentID string) ([]Jurisdiction, error)
}

// Store is the SQLite-backed jurisdiction directory.
type Store struct {
	db *db.DB
}

// NewStore creates a jurisdiction store.
func NewStore(database *db.DB) *Store {
	return &Store{db: database}
}

func (s *Store) LookupByNameAndType(ctx context.Context, names []string, typ Type) ([]Jurisdiction, error) {
	if len(names) == 0 {
		return nil, nil
	}

	placeholders := make([]string, len(names))
	args := make([]interface{}, 0, len(names)+1)
	for i, n := range names {
		placeholders[i] = "?"
		args = append(args, strings.ToLower(strings.TrimSpace(n)))
	}
	args = append(args, string(typ))

	query := fmt.Sprintf(
		`SELECT id, name, type, parent_id, published FROM jurisdictions
		 WHERE LOWER(name) IN (%s) AND type = ? AND status = 'active'
		 ORDER BY name`,
		strings.Join(placeholders, ","),
	)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying jurisdictions: %w", err)
	}
	defer rows.Close()

	return scanAll(rows)
}

func (s *Store) GetByID(ctx context.Context, id string) (*Jurisdiction, error) {
	var j Jurisdiction
	var parent sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, type, parent_id, published FROM jurisdictions WHERE id = ? AND status = 'active'`, id,
	).Scan(&j.ID, &j.Name, &j.Type, &parent, &j.Published)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting jurisdiction %s: %w", id, err)
	}
	j.ParentID = parent.String
	return &j, nil
}

func (s *Store) PublishedChildren(ctx context.Context, parentID string) ([]Jurisdiction, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, type, parent_id, published FROM jurisdictions
		 WHERE parent_id = ? AND status = 'active' AND published = 1
		 ORDER BY name`, parentID,
	)
	if err != nil {
		return nil, fmt.Errorf("querying children of %s: %w", parentID, err)
	}
	defer rows.Close()

	return scanAll(rows)
}

// Upsert inserts or replaces a jurisdiction record. Used by the CSV importer.
func (s *Store) Upsert(ctx context.Context, j Jurisdiction) (*Jurisdiction, error) {
	if j.ID == "" {
		j.ID = uuid.New().String()
	}
	if !j.Type.Valid() {
		return nil, fmt.Errorf("invalid jurisdiction type %q", j.Type)
	}

	var parent interface{}
	if j.ParentID != "" {
		parent = j.ParentID
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO jurisdictions (id, name, type, parent_id, status, published)
		 VALUES (?, ?, ?, ?, 'active', ?)
		 ON CONFLICT(id) DO UPDATE SET name = excluded.name, type = excluded.type,
		   parent_id = excluded.parent_id, published = excluded.published`,
		j.ID, j.Name, string(j.Type), parent, j.Published,
	)
	if err != nil {
		return nil, fmt.Errorf("upserting jurisdiction %s: %w", j.Name, err)
	}
	return &j, nil
}

func scanAll(rows *sql.Rows) ([]Jurisdiction, error) {
	var out []Jurisdiction
	for rows.Next() {
		var j Jurisdiction
		var parent sql.NullString
		if err := rows.Scan(&j.ID, &j.Name, &j.Type, &parent, &j.Published); err != nil {
			return nil, fmt.Errorf("scanning jurisdiction: %w", err)
		}
		j.ParentID = parent.String
		out = append(out, j)
	}
	return out, rows.Err()
}
