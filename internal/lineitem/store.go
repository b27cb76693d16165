package lineitem

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/openlgu/badyet/internal/db"
	"github.com/openlgu/badyet/internal/scope"
)

// Store is the SQLite-backed structured line-item store.
type Store struct {
	db *db.DB
}

// NewStore creates a line-item store.
func NewStore(database *db.DB) *Store {
	return &Store{db: database}
}

const selectColumns = `li.id, li.jurisdiction_id, li.aip_ref_code, li.program_title, li.description,
	li.fiscal_year, li.sector, li.amount_ps, li.amount_mooe, li.amount_co, li.amount_total,
	li.schedule_start, li.schedule_end, li.published, j.name`

// GetByID returns one line item with its jurisdiction name joined, or nil.
func (s *Store) GetByID(ctx context.Context, id string) (*LineItem, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+selectColumns+` FROM line_items li
		 JOIN jurisdictions j ON j.id = li.jurisdiction_id
		 WHERE li.id = ?`, id)

	li, err := scanLineItem(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting line item %s: %w", id, err)
	}
	return li, nil
}

// ListPublished returns all published line items, jurisdiction names joined.
// Used by the vector indexing command.
func (s *Store) ListPublished(ctx context.Context) ([]LineItem, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+selectColumns+` FROM line_items li
		 JOIN jurisdictions j ON j.id = li.jurisdiction_id
		 WHERE li.published = 1 AND j.status = 'active'
		 ORDER BY j.name, li.fiscal_year, li.aip_ref_code`)
	if err != nil {
		return nil, fmt.Errorf("listing published line items: %w", err)
	}
	defer rows.Close()

	var items []LineItem
	for rows.Next() {
		li, err := scanLineItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning line item: %w", err)
		}
		items = append(items, *li)
	}
	return items, rows.Err()
}

// CountByJurisdiction returns how many published line items a jurisdiction
// has. The engine uses a zero count on a city scope to offer the barangay
// rollup fallback.
func (s *Store) CountByJurisdiction(ctx context.Context, jurisdictionID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM line_items WHERE jurisdiction_id = ? AND published = 1`,
		jurisdictionID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting line items for %s: %w", jurisdictionID, err)
	}
	return n, nil
}

// TotalInvestment computes the deterministic total-investment aggregate for a
// fiscal year, optionally restricted to the given scope targets. It bypasses
// the retrieval pipeline entirely.
func (s *Store) TotalInvestment(ctx context.Context, fiscalYear int, targets []scope.Target) (total float64, itemCount int, err error) {
	query := `SELECT COALESCE(SUM(amount_total), 0), COUNT(*) FROM line_items
		 WHERE published = 1 AND fiscal_year = ?`
	args := []interface{}{fiscalYear}

	if len(targets) > 0 {
		placeholders := make([]string, len(targets))
		for i, tgt := range targets {
			placeholders[i] = "?"
			args = append(args, tgt.ID)
		}
		query += fmt.Sprintf(" AND jurisdiction_id IN (%s)", strings.Join(placeholders, ","))
	}

	err = s.db.QueryRowContext(ctx, query, args...).Scan(&total, &itemCount)
	if err != nil {
		return 0, 0, fmt.Errorf("computing total investment for FY %d: %w", fiscalYear, err)
	}
	return total, itemCount, nil
}

// Upsert inserts or replaces a line item keyed by
// (jurisdiction, ref code, fiscal year). Used by the CSV importer.
func (s *Store) Upsert(ctx context.Context, li LineItem) (*LineItem, error) {
	if li.ID == "" {
		li.ID = uuid.New().String()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO line_items (id, jurisdiction_id, aip_ref_code, program_title, description,
		   fiscal_year, sector, amount_ps, amount_mooe, amount_co, amount_total,
		   schedule_start, schedule_end, published)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(jurisdiction_id, aip_ref_code, fiscal_year) DO UPDATE SET
		   program_title = excluded.program_title, description = excluded.description,
		   sector = excluded.sector, amount_ps = excluded.amount_ps,
		   amount_mooe = excluded.amount_mooe, amount_co = excluded.amount_co,
		   amount_total = excluded.amount_total, schedule_start = excluded.schedule_start,
		   schedule_end = excluded.schedule_end, published = excluded.published`,
		li.ID, li.JurisdictionID, li.AIPRefCode, li.ProgramTitle, li.Description,
		li.FiscalYear, li.Sector, li.AmountPS, li.AmountMOOE, li.AmountCO, li.AmountTotal,
		li.ScheduleStart, li.ScheduleEnd, li.Published,
	)
	if err != nil {
		return nil, fmt.Errorf("upserting line item %s: %w", li.AIPRefCode, err)
	}
	return &li, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanLineItem(row rowScanner) (*LineItem, error) {
	var li LineItem
	err := row.Scan(&li.ID, &li.JurisdictionID, &li.AIPRefCode, &li.ProgramTitle, &li.Description,
		&li.FiscalYear, &li.Sector, &li.AmountPS, &li.AmountMOOE, &li.AmountCO, &li.AmountTotal,
		&li.ScheduleStart, &li.ScheduleEnd, &li.Published, &li.BarangayName)
	if err != nil {
		return nil, err
	}
	return &li, nil
}
