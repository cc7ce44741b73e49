package simdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/banshee-data/rotvar/internal/event"
	"github.com/banshee-data/rotvar/internal/gmpe"
)

// EventRow is the stored summary of a simulated event.
type EventRow struct {
	ID        int
	Magnitude float64
	Rake      float64
	Dip       float64
	TopDepth  float64
}

// ElementRow is one fault element of an event record. FirstSlipTime is nil
// when the catalog has no timing output.
type ElementRow struct {
	EventID       int
	RecordIndex   int
	ElementID     int
	Center        event.Location
	FirstSlipTime *float64
}

// InsertEvent creates or replaces an event summary.
func (db *DB) InsertEvent(ctx context.Context, e EventRow) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO events (event_id, magnitude, rake, dip, ztor) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(event_id) DO UPDATE SET
			magnitude = excluded.magnitude,
			rake = excluded.rake,
			dip = excluded.dip,
			ztor = excluded.ztor`,
		e.ID, e.Magnitude, e.Rake, e.Dip, e.TopDepth)
	if err != nil {
		return fmt.Errorf("failed to insert event %d: %w", e.ID, err)
	}
	return nil
}

// InsertElements stores event elements in one transaction.
func (db *DB) InsertElements(ctx context.Context, elems []ElementRow) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO event_elements
			(event_id, record_idx, element_id, latitude, longitude, depth, first_slip_time)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare element insert: %w", err)
	}
	defer stmt.Close()

	for _, e := range elems {
		var slip sql.NullFloat64
		if e.FirstSlipTime != nil {
			slip = sql.NullFloat64{Float64: *e.FirstSlipTime, Valid: true}
		}
		if _, err := stmt.ExecContext(ctx, e.EventID, e.RecordIndex, e.ElementID,
			e.Center.Latitude, e.Center.Longitude, e.Center.Depth, slip); err != nil {
			return fmt.Errorf("failed to insert element %d of event %d: %w", e.ElementID, e.EventID, err)
		}
	}
	return tx.Commit()
}

// LoadEvents implements event.Store. Missing IDs are skipped, so callers
// can compare the returned count with the request.
func (db *DB) LoadEvents(ctx context.Context, ids []int) ([]event.Event, error) {
	var out []event.Event
	for _, id := range ids {
		var e event.Event
		err := db.QueryRowContext(ctx, `SELECT event_id, magnitude FROM events WHERE event_id = ?`, id).
			Scan(&e.ID, &e.Magnitude)
		if errors.Is(err, sql.ErrNoRows) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to load event %d: %w", id, err)
		}
		if e.Records, err = db.loadRecords(ctx, id); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

func (db *DB) loadRecords(ctx context.Context, id int) ([]event.Record, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT record_idx, element_id, latitude, longitude, depth, first_slip_time
		FROM event_elements WHERE event_id = ?
		ORDER BY record_idx, element_id`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query elements of event %d: %w", id, err)
	}
	defer rows.Close()

	var records []event.Record
	lastIdx := -1
	timed := true
	finish := func() {
		if len(records) > 0 && !timed {
			records[len(records)-1].FirstSlipTimes = nil
		}
	}
	for rows.Next() {
		var idx int
		var el event.Element
		var slip sql.NullFloat64
		if err := rows.Scan(&idx, &el.ID, &el.Center.Latitude, &el.Center.Longitude, &el.Center.Depth, &slip); err != nil {
			return nil, fmt.Errorf("failed to scan element: %w", err)
		}
		if idx != lastIdx {
			finish()
			records = append(records, event.Record{})
			lastIdx = idx
			timed = true
		}
		r := &records[len(records)-1]
		r.Elements = append(r.Elements, el)
		r.FirstSlipTimes = append(r.FirstSlipTimes, slip.Float64)
		timed = timed && slip.Valid
	}
	finish()
	return records, rows.Err()
}

// Rupture implements gmpe.RuptureSource.
func (db *DB) Rupture(ctx context.Context, eventID int) (gmpe.Rupture, error) {
	var r gmpe.Rupture
	err := db.QueryRowContext(ctx, `SELECT magnitude, rake, dip, ztor FROM events WHERE event_id = ?`, eventID).
		Scan(&r.Magnitude, &r.Rake, &r.Dip, &r.TopDepth)
	if errors.Is(err, sql.ErrNoRows) {
		return r, fmt.Errorf("event %d not found", eventID)
	}
	if err != nil {
		return r, fmt.Errorf("failed to load rupture of event %d: %w", eventID, err)
	}
	return r, nil
}
