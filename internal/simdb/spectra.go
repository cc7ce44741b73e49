package simdb

import (
	"context"
	"errors"
	"fmt"

	"github.com/banshee-data/rotvar/internal/rotation"
	"github.com/banshee-data/rotvar/internal/spectrum"
)

// ErrNoSpectrum is returned when a rotation has no stored spectrum.
var ErrNoSpectrum = errors.New("no spectrum stored")

// SpectrumRow is one (period, SA) sample of a rotation's spectrum.
type SpectrumRow struct {
	Magnitude float64
	Rotation  rotation.RotationSpec
	Component int
	Period    float64
	SA        float64 // g
}

// InsertSpectra stores spectrum samples in one transaction.
func (db *DB) InsertSpectra(ctx context.Context, rows []SpectrumRow) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO spectra
			(magnitude, site, event_id, distance, source_az, site_source_az, component, period, sa)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare spectrum insert: %w", err)
	}
	defer stmt.Close()

	for _, r := range rows {
		if r.SA <= 0 {
			return fmt.Errorf("non-positive SA %v for %s event %d at %vs", r.SA, r.Rotation.Site, r.Rotation.EventID, r.Period)
		}
		rot := r.Rotation
		if _, err := stmt.ExecContext(ctx, r.Magnitude, rot.Site, rot.EventID, rot.Distance,
			rot.SourceAz, rot.SiteToSourceAz, r.Component, r.Period, r.SA); err != nil {
			return fmt.Errorf("failed to insert spectrum sample: %w", err)
		}
	}
	return tx.Commit()
}

// Magnitudes returns the distinct magnitudes with stored spectra.
func (db *DB) Magnitudes(ctx context.Context) ([]float64, error) {
	return queryColumn[float64](ctx, db, `SELECT DISTINCT magnitude FROM spectra ORDER BY magnitude`)
}

// Configs builds the rotation configuration of every stored magnitude from
// the distinct values recorded for it.
func (db *DB) Configs(ctx context.Context) (map[float64]*rotation.Config, error) {
	mags, err := db.Magnitudes(ctx)
	if err != nil {
		return nil, err
	}
	if len(mags) == 0 {
		return nil, fmt.Errorf("no spectra stored")
	}
	out := make(map[float64]*rotation.Config, len(mags))
	for _, mag := range mags {
		var v rotation.Values
		if v.Sites, err = db.querySites(ctx, `
			SELECT name, latitude, longitude, vs30, z1p0, z2p5 FROM sites
			WHERE name IN (SELECT DISTINCT site FROM spectra WHERE magnitude = ?)
			ORDER BY name`, mag); err != nil {
			return nil, err
		}
		if v.EventIDs, err = queryColumn[int](ctx, db,
			`SELECT DISTINCT event_id FROM spectra WHERE magnitude = ? ORDER BY event_id`, mag); err != nil {
			return nil, err
		}
		if v.Distances, err = queryColumn[float64](ctx, db,
			`SELECT DISTINCT distance FROM spectra WHERE magnitude = ? ORDER BY distance`, mag); err != nil {
			return nil, err
		}
		if v.SourceAzimuths, err = queryColumn[float64](ctx, db,
			`SELECT DISTINCT source_az FROM spectra WHERE magnitude = ? ORDER BY source_az`, mag); err != nil {
			return nil, err
		}
		if v.SiteToSourceAzimuths, err = queryColumn[float64](ctx, db,
			`SELECT DISTINCT site_source_az FROM spectra WHERE magnitude = ? ORDER BY site_source_az`, mag); err != nil {
			return nil, err
		}
		cfg, err := rotation.NewConfig(v)
		if err != nil {
			return nil, fmt.Errorf("M%v: %w", mag, err)
		}
		out[mag] = cfg
	}
	return out, nil
}

func queryColumn[T any](ctx context.Context, db *DB, query string, args ...any) ([]T, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()
	var out []T
	for rows.Next() {
		var v T
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// Provider serves the stored spectra of one magnitude.
type Provider struct {
	db        *DB
	magnitude float64
}

// Provider returns the spectrum provider of a magnitude.
func (db *DB) Provider(mag float64) *Provider {
	return &Provider{db: db, magnitude: mag}
}

// Spectrum loads the spectrum of a rotation.
func (p *Provider) Spectrum(ctx context.Context, rot rotation.RotationSpec, component int) (*spectrum.Func, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT period, sa FROM spectra
		WHERE magnitude = ? AND site = ? AND event_id = ? AND distance = ?
			AND source_az = ? AND site_source_az = ? AND component = ?
		ORDER BY period`,
		p.magnitude, rot.Site, rot.EventID, rot.Distance, rot.SourceAz, rot.SiteToSourceAz, component)
	if err != nil {
		return nil, fmt.Errorf("failed to query spectrum: %w", err)
	}
	defer rows.Close()

	var pts []spectrum.Point
	for rows.Next() {
		var pt spectrum.Point
		if err := rows.Scan(&pt.Period, &pt.SA); err != nil {
			return nil, fmt.Errorf("failed to scan spectrum: %w", err)
		}
		pts = append(pts, pt)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	name := fmt.Sprintf("M%v %s event %d, %vkm, az %v/%v", p.magnitude, rot.Site, rot.EventID,
		rot.Distance, rot.SourceAz, rot.SiteToSourceAz)
	if len(pts) == 0 {
		return nil, fmt.Errorf("%w: %s component %d", ErrNoSpectrum, name, component)
	}
	return spectrum.New(name, pts)
}
