package model

import (
	"database/sql"
	"time"

	"github.com/rmpcap/screener-be/internal/screener"
)

type Property struct {
	ID             int64           `db:"id"`
	Name           string          `db:"name"`
	Address        string          `db:"address"`
	City           string          `db:"city"`
	State          string          `db:"state"`
	Zip            string          `db:"zip"`
	Lat            sql.NullFloat64 `db:"lat"`
	Lon            sql.NullFloat64 `db:"lon"`
	NeedsManualFix bool            `db:"needs_manual_fix"`
	CreatedAt      time.Time       `db:"created_at"`
	UpdatedAt      time.Time       `db:"updated_at"`
}

// ToScreener converts the row into the engine's property view.
func (p *Property) ToScreener() *screener.Property {
	sp := &screener.Property{
		ID:                 p.ID,
		Name:               p.Name,
		Address:            p.Address,
		City:               p.City,
		State:              p.State,
		Zip:                p.Zip,
		ManualFixRequested: p.NeedsManualFix,
	}
	if p.Lat.Valid && p.Lon.Valid {
		lat, lon := p.Lat.Float64, p.Lon.Float64
		sp.Lat = &lat
		sp.Lon = &lon
	}
	return sp
}
