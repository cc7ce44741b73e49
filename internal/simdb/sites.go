package simdb

import (
	"context"
	"database/sql"
	"fmt"
	"math"

	"github.com/banshee-data/rotvar/internal/rotation"
)

// InsertSite creates or replaces a site.
func (db *DB) InsertSite(ctx context.Context, s rotation.SiteInfo) error {
	if s.Name == "" {
		return fmt.Errorf("site has no name")
	}
	_, err := db.ExecContext(ctx, `
		INSERT INTO sites (name, latitude, longitude, vs30, z1p0, z2p5)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			latitude = excluded.latitude,
			longitude = excluded.longitude,
			vs30 = excluded.vs30,
			z1p0 = excluded.z1p0,
			z2p5 = excluded.z2p5`,
		s.Name, s.Latitude, s.Longitude, s.Vs30, nanAsNull(s.Z1p0), nanAsNull(s.Z2p5))
	if err != nil {
		return fmt.Errorf("failed to insert site %s: %w", s.Name, err)
	}
	return nil
}

// Sites returns every site ordered by name.
func (db *DB) Sites(ctx context.Context) ([]rotation.SiteInfo, error) {
	return db.querySites(ctx, `SELECT name, latitude, longitude, vs30, z1p0, z2p5 FROM sites ORDER BY name`)
}

func (db *DB) querySites(ctx context.Context, query string, args ...any) ([]rotation.SiteInfo, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query sites: %w", err)
	}
	defer rows.Close()

	var out []rotation.SiteInfo
	for rows.Next() {
		var s rotation.SiteInfo
		var z1, z25 sql.NullFloat64
		if err := rows.Scan(&s.Name, &s.Latitude, &s.Longitude, &s.Vs30, &z1, &z25); err != nil {
			return nil, fmt.Errorf("failed to scan site: %w", err)
		}
		s.Z1p0 = nullAsNaN(z1)
		s.Z2p5 = nullAsNaN(z25)
		out = append(out, s)
	}
	return out, rows.Err()
}

func nanAsNull(v float64) sql.NullFloat64 {
	if math.IsNaN(v) {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: v, Valid: true}
}

func nullAsNaN(v sql.NullFloat64) float64 {
	if !v.Valid {
		return math.NaN()
	}
	return v.Float64
}
