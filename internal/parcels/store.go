package parcels

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"
)

// Store persists parcel records keyed by property. A record lives as long
// as its property row and is deleted with it (foreign key cascade).
type Store struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// NewStore creates a parcel store over an existing database handle.
func NewStore(db *sqlx.DB, logger *slog.Logger) *Store {
	return &Store{
		db:     db,
		logger: logger,
	}
}

type recordRow struct {
	PropertyID int64          `db:"property_id"`
	Lat        float64        `db:"lat"`
	Lon        float64        `db:"lon"`
	Zoom       int            `db:"zoom"`
	Polygon    sql.NullString `db:"polygon"`
	Provenance string         `db:"provenance"`
}

// Get returns the stored record for a property, or ErrNoRecord.
func (s *Store) Get(ctx context.Context, propertyID int64) (*Record, error) {
	query := `
		SELECT property_id, lat, lon, zoom, polygon, provenance
		FROM parcel_records
		WHERE property_id = $1
	`

	var row recordRow
	err := s.db.GetContext(ctx, &row, query, propertyID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNoRecord
		}
		return nil, fmt.Errorf("failed to get parcel record: %w", err)
	}

	record := &Record{
		PropertyID: row.PropertyID,
		Lat:        row.Lat,
		Lon:        row.Lon,
		Zoom:       row.Zoom,
		Provenance: row.Provenance,
	}

	if row.Polygon.Valid && row.Polygon.String != "" {
		if err := json.Unmarshal([]byte(row.Polygon.String), &record.Polygon); err != nil {
			return nil, fmt.Errorf("failed to decode parcel polygon: %w", err)
		}
	}

	return record, nil
}

// Put stores a record, replacing any existing one wholesale.
func (s *Store) Put(ctx context.Context, record *Record) error {
	var polygon interface{}
	if record.HasBoundary() {
		encoded, err := json.Marshal(record.Polygon)
		if err != nil {
			return fmt.Errorf("failed to encode parcel polygon: %w", err)
		}
		polygon = string(encoded)
	}

	query := `
		INSERT INTO parcel_records (property_id, lat, lon, zoom, polygon, provenance, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
		ON CONFLICT (property_id) DO UPDATE SET
			lat = EXCLUDED.lat,
			lon = EXCLUDED.lon,
			zoom = EXCLUDED.zoom,
			polygon = EXCLUDED.polygon,
			provenance = EXCLUDED.provenance,
			updated_at = NOW()
	`

	_, err := s.db.ExecContext(ctx, query,
		record.PropertyID,
		record.Lat,
		record.Lon,
		record.Zoom,
		polygon,
		record.Provenance,
	)
	if err != nil {
		return fmt.Errorf("failed to put parcel record: %w", err)
	}

	s.logger.Info("Parcel record stored",
		slog.Int64("property_id", record.PropertyID),
		slog.String("provenance", record.Provenance),
		slog.Bool("has_boundary", record.HasBoundary()),
	)

	return nil
}
