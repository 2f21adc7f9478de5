package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/rmpcap/screener-be/internal/api/model"
	"github.com/rmpcap/screener-be/internal/screener"
	"github.com/rmpcap/screener-be/shared/postgresql"
)

const propertyColumns = `
	id, name, address, city, state, zip,
	lat, lon, needs_manual_fix, created_at, updated_at
`

type Storage struct {
	db *sqlx.DB
}

func NewStorage(pg *postgresql.Client) *Storage {
	return &Storage{
		db: pg.GetDB(),
	}
}

// GetProperty loads one property. Satisfies the engine's property reader.
func (s *Storage) GetProperty(ctx context.Context, id int64) (*screener.Property, error) {
	var row model.Property
	query := `SELECT ` + propertyColumns + ` FROM properties WHERE id = $1`

	err := s.db.GetContext(ctx, &row, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, screener.ErrPropertyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get property: %w", err)
	}

	return row.ToScreener(), nil
}

// UpdateGeocode persists resolved coordinates back onto the property row.
func (s *Storage) UpdateGeocode(ctx context.Context, id int64, lat, lon float64) error {
	query := `
		UPDATE properties
		SET lat = $2, lon = $3, updated_at = NOW()
		WHERE id = $1
	`

	res, err := s.db.ExecContext(ctx, query, id, lat, lon)
	if err != nil {
		return fmt.Errorf("failed to update geocode: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return screener.ErrPropertyNotFound
	}

	return nil
}

// SetManualFixRequested flips the operator's manual-correction flag.
func (s *Storage) SetManualFixRequested(ctx context.Context, id int64, requested bool) error {
	query := `
		UPDATE properties
		SET needs_manual_fix = $2, updated_at = NOW()
		WHERE id = $1
	`

	res, err := s.db.ExecContext(ctx, query, id, requested)
	if err != nil {
		return fmt.Errorf("failed to set manual fix flag: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return screener.ErrPropertyNotFound
	}

	return nil
}

type PropertyFilter struct {
	State          string
	NeedsManualFix *bool
	PageSize       int
	Cursor         *PropertyCursor
}

type PropertyCursor struct {
	CreatedAt time.Time
	ID        int64
}

// ListProperties pages through properties newest-first using a keyset
// cursor on (created_at, id). Returns up to PageSize+1 rows so the caller
// can detect whether more results exist.
func (s *Storage) ListProperties(ctx context.Context, filter PropertyFilter) ([]model.Property, error) {
	query := `SELECT ` + propertyColumns + ` FROM properties WHERE 1=1`
	args := []interface{}{}
	argIdx := 1

	// Filters
	if filter.State != "" {
		query += fmt.Sprintf(" AND state = $%d", argIdx)
		args = append(args, filter.State)
		argIdx++
	}

	if filter.NeedsManualFix != nil {
		query += fmt.Sprintf(" AND needs_manual_fix = $%d", argIdx)
		args = append(args, *filter.NeedsManualFix)
		argIdx++
	}

	if filter.Cursor != nil {
		query += fmt.Sprintf(" AND (created_at, id) < ($%d, $%d)", argIdx, argIdx+1)
		args = append(args, filter.Cursor.CreatedAt, filter.Cursor.ID)
		argIdx += 2
	}

	// Order by created_at DESC, id DESC for consistent pagination
	query += " ORDER BY created_at DESC, id DESC"

	// Fetch one extra to determine if there are more results
	query += fmt.Sprintf(" LIMIT $%d", argIdx)
	args = append(args, filter.PageSize+1)

	var properties []model.Property
	err := s.db.SelectContext(ctx, &properties, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list properties: %w", err)
	}

	return properties, nil
}
