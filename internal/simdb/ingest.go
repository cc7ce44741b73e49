package simdb

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/banshee-data/rotvar/internal/event"
	"github.com/banshee-data/rotvar/internal/monitoring"
	"github.com/banshee-data/rotvar/internal/rotation"
)

// Ingest kinds accepted by Ingest.
const (
	KindSites    = "sites"
	KindEvents   = "events"
	KindElements = "elements"
	KindSpectra  = "spectra"
)

// ingestBatch is how many rows are inserted per transaction.
const ingestBatch = 5000

// csvRow gives named access to one CSV record.
type csvRow struct {
	line   int
	cols   map[string]int
	record []string
}

func (r csvRow) str(name string) (string, error) {
	i, ok := r.cols[name]
	if !ok || i >= len(r.record) {
		return "", fmt.Errorf("line %d: missing column %q", r.line, name)
	}
	return strings.TrimSpace(r.record[i]), nil
}

func (r csvRow) float(name string) (float64, error) {
	s, err := r.str(name)
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("line %d: failed to parse %s: %v", r.line, name, err)
	}
	return v, nil
}

// optFloat returns NaN for an empty or absent column.
func (r csvRow) optFloat(name string) (float64, error) {
	if _, ok := r.cols[name]; !ok {
		return math.NaN(), nil
	}
	if s, _ := r.str(name); s == "" {
		return math.NaN(), nil
	}
	return r.float(name)
}

func (r csvRow) integer(name string) (int, error) {
	s, err := r.str(name)
	if err != nil {
		return 0, err
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("line %d: failed to parse %s: %v", r.line, name, err)
	}
	return v, nil
}

// readCSV calls fn for every data row of a headed CSV stream.
func readCSV(r io.Reader, fn func(row csvRow) error) (int, error) {
	cr := csv.NewReader(r)
	cr.Comment = '#'
	cr.TrimLeadingSpace = true
	header, err := cr.Read()
	if err != nil {
		return 0, fmt.Errorf("failed to read CSV header: %w", err)
	}
	cols := make(map[string]int, len(header))
	for i, h := range header {
		cols[strings.ToLower(strings.TrimSpace(h))] = i
	}
	n := 0
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return n, nil
		}
		if err != nil {
			return n, fmt.Errorf("failed to read CSV: %w", err)
		}
		n++
		if err := fn(csvRow{line: n + 1, cols: cols, record: rec}); err != nil {
			return n, err
		}
	}
}

// Ingest loads one kind of CSV data and returns the number of rows read.
//
//	sites:    name,latitude,longitude,vs30[,z1p0,z2p5]
//	events:   event_id,magnitude[,rake,dip,ztor]
//	elements: event_id,record_idx,element_id,latitude,longitude,depth[,first_slip_time]
//	spectra:  magnitude,site,event_id,distance,source_az,site_source_az[,component],period,sa
func (db *DB) Ingest(ctx context.Context, kind string, r io.Reader) (int, error) {
	var (
		n   int
		err error
	)
	switch kind {
	case KindSites:
		n, err = db.ingestSites(ctx, r)
	case KindEvents:
		n, err = db.ingestEvents(ctx, r)
	case KindElements:
		n, err = db.ingestElements(ctx, r)
	case KindSpectra:
		n, err = db.ingestSpectra(ctx, r)
	default:
		return 0, fmt.Errorf("unknown ingest kind %q", kind)
	}
	if err != nil {
		return n, fmt.Errorf("ingest %s: %w", kind, err)
	}
	monitoring.Logf("Ingested %d %s rows", n, kind)
	return n, nil
}

func (db *DB) ingestSites(ctx context.Context, r io.Reader) (int, error) {
	return readCSV(r, func(row csvRow) error {
		var s rotation.SiteInfo
		var err error
		if s.Name, err = row.str("name"); err != nil {
			return err
		}
		if s.Latitude, err = row.float("latitude"); err != nil {
			return err
		}
		if s.Longitude, err = row.float("longitude"); err != nil {
			return err
		}
		if s.Vs30, err = row.float("vs30"); err != nil {
			return err
		}
		if s.Z1p0, err = row.optFloat("z1p0"); err != nil {
			return err
		}
		if s.Z2p5, err = row.optFloat("z2p5"); err != nil {
			return err
		}
		return db.InsertSite(ctx, s)
	})
}

func (db *DB) ingestEvents(ctx context.Context, r io.Reader) (int, error) {
	return readCSV(r, func(row csvRow) error {
		e := EventRow{Dip: 90}
		var err error
		if e.ID, err = row.integer("event_id"); err != nil {
			return err
		}
		if e.Magnitude, err = row.float("magnitude"); err != nil {
			return err
		}
		for name, dst := range map[string]*float64{"rake": &e.Rake, "dip": &e.Dip, "ztor": &e.TopDepth} {
			v, err := row.optFloat(name)
			if err != nil {
				return err
			}
			if !math.IsNaN(v) {
				*dst = v
			}
		}
		return db.InsertEvent(ctx, e)
	})
}

func (db *DB) ingestElements(ctx context.Context, r io.Reader) (int, error) {
	var batch []ElementRow
	n, err := readCSV(r, func(row csvRow) error {
		var e ElementRow
		var err error
		if e.EventID, err = row.integer("event_id"); err != nil {
			return err
		}
		if e.RecordIndex, err = row.integer("record_idx"); err != nil {
			return err
		}
		if e.ElementID, err = row.integer("element_id"); err != nil {
			return err
		}
		if e.Center, err = rowLocation(row); err != nil {
			return err
		}
		slip, err := row.optFloat("first_slip_time")
		if err != nil {
			return err
		}
		if !math.IsNaN(slip) {
			e.FirstSlipTime = &slip
		}
		batch = append(batch, e)
		if len(batch) >= ingestBatch {
			err = db.InsertElements(ctx, batch)
			batch = batch[:0]
		}
		return err
	})
	if err != nil {
		return n, err
	}
	if len(batch) > 0 {
		return n, db.InsertElements(ctx, batch)
	}
	return n, nil
}

func rowLocation(row csvRow) (event.Location, error) {
	var loc event.Location
	var err error
	if loc.Latitude, err = row.float("latitude"); err != nil {
		return loc, err
	}
	if loc.Longitude, err = row.float("longitude"); err != nil {
		return loc, err
	}
	loc.Depth, err = row.float("depth")
	return loc, err
}

func (db *DB) ingestSpectra(ctx context.Context, r io.Reader) (int, error) {
	var batch []SpectrumRow
	n, err := readCSV(r, func(row csvRow) error {
		var s SpectrumRow
		var err error
		if s.Magnitude, err = row.float("magnitude"); err != nil {
			return err
		}
		if s.Rotation.Site, err = row.str("site"); err != nil {
			return err
		}
		if s.Rotation.EventID, err = row.integer("event_id"); err != nil {
			return err
		}
		if s.Rotation.Distance, err = row.float("distance"); err != nil {
			return err
		}
		if s.Rotation.SourceAz, err = row.float("source_az"); err != nil {
			return err
		}
		if s.Rotation.SiteToSourceAz, err = row.float("site_source_az"); err != nil {
			return err
		}
		if _, ok := row.cols["component"]; ok {
			if s.Component, err = row.integer("component"); err != nil {
				return err
			}
		}
		if s.Period, err = row.float("period"); err != nil {
			return err
		}
		if s.SA, err = row.float("sa"); err != nil {
			return err
		}
		batch = append(batch, s)
		if len(batch) >= ingestBatch {
			err = db.InsertSpectra(ctx, batch)
			batch = batch[:0]
		}
		return err
	})
	if err != nil {
		return n, err
	}
	if len(batch) > 0 {
		return n, db.InsertSpectra(ctx, batch)
	}
	return n, nil
}
