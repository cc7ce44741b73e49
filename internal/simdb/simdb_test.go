package simdb

import (
	"context"
	"errors"
	"math"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/banshee-data/rotvar/internal/event"
	"github.com/banshee-data/rotvar/internal/rotation"
	"github.com/banshee-data/rotvar/internal/timeutil"
)

func setupTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := OpenDB(filepath.Join(t.TempDir(), "rotvar.db"))
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestPragmasApplied(t *testing.T) {
	db := setupTestDB(t)

	var journalMode string
	if err := db.QueryRow("PRAGMA journal_mode").Scan(&journalMode); err != nil {
		t.Fatalf("Failed to query journal_mode: %v", err)
	}
	if journalMode != "wal" {
		t.Errorf("Expected journal_mode=wal, got %s", journalMode)
	}

	var busyTimeout int
	if err := db.QueryRow("PRAGMA busy_timeout").Scan(&busyTimeout); err != nil {
		t.Fatalf("Failed to query busy_timeout: %v", err)
	}
	if busyTimeout != 5000 {
		t.Errorf("Expected busy_timeout=5000, got %d", busyTimeout)
	}
}

func TestMigrateVersionAndDown(t *testing.T) {
	db := setupTestDB(t)

	version, dirty, err := db.MigrateVersion()
	if err != nil {
		t.Fatalf("MigrateVersion failed: %v", err)
	}
	if version != 1 || dirty {
		t.Errorf("Expected version 1 clean, got %d dirty=%v", version, dirty)
	}

	if err := db.MigrateUp(); err != nil {
		t.Errorf("Second MigrateUp should be a no-op, got %v", err)
	}

	if err := db.MigrateDown(); err != nil {
		t.Fatalf("MigrateDown failed: %v", err)
	}
	var n int
	err = db.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='spectra'`).Scan(&n)
	if err != nil {
		t.Fatalf("Failed to query sqlite_master: %v", err)
	}
	if n != 0 {
		t.Errorf("Expected spectra table to be dropped")
	}
}

func TestSitesRoundTrip(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	usc := rotation.SiteInfo{Name: "USC", Latitude: 34.0192, Longitude: -118.286, Vs30: 280, Z1p0: 450, Z2p5: 2.2}
	sbsm := rotation.NewSite("SBSM", 34.0645, -117.292, 280)
	for _, s := range []rotation.SiteInfo{usc, sbsm} {
		if err := db.InsertSite(ctx, s); err != nil {
			t.Fatalf("InsertSite failed: %v", err)
		}
	}

	got, err := db.Sites(ctx)
	if err != nil {
		t.Fatalf("Sites failed: %v", err)
	}
	want := []rotation.SiteInfo{sbsm, usc}
	if diff := cmp.Diff(want, got, cmpopts.EquateNaNs()); diff != "" {
		t.Errorf("Sites mismatch (-want +got):\n%s", diff)
	}

	if err := db.InsertSite(ctx, rotation.SiteInfo{}); err == nil {
		t.Error("Expected error for unnamed site")
	}
}

const spectraCSV = `magnitude,site,event_id,distance,source_az,site_source_az,period,sa
# two events, two source azimuths, two periods
6.5,A,1,10,0,0,1,0.10
6.5,A,1,10,0,0,3,0.02
6.5,A,1,10,90,0,1,0.12
6.5,A,1,10,90,0,3,0.03
6.5,A,2,10,0,0,1,0.20
6.5,A,2,10,0,0,3,0.04
6.5,A,2,10,90,0,1,0.22
6.5,A,2,10,90,0,3,0.05
7,A,3,10,0,0,1,0.3
7,A,3,10,0,0,3,0.1
`

func ingestTestData(t *testing.T, db *DB) {
	t.Helper()
	ctx := context.Background()
	inputs := []struct {
		kind, data string
		rows       int
	}{
		{KindSites, "name,latitude,longitude,vs30,z1p0,z2p5\nA,34,-118,760,,\n", 1},
		{KindEvents, "event_id,magnitude,rake,dip,ztor\n1,6.5,180,90,0\n2,6.5,180,90,2\n3,7.0,90,45,1\n", 3},
		{KindElements, "event_id,record_idx,element_id,latitude,longitude,depth,first_slip_time\n" +
			"1,0,10,34.00,-118,5,0\n1,0,11,34.01,-118,5,1\n1,1,12,34.02,-118,5,2\n" +
			"2,0,20,34.00,-118,5,\n", 4},
		{KindSpectra, spectraCSV, 10},
	}
	for _, in := range inputs {
		n, err := db.Ingest(ctx, in.kind, strings.NewReader(in.data))
		if err != nil {
			t.Fatalf("Ingest %s failed: %v", in.kind, err)
		}
		if n != in.rows {
			t.Errorf("Ingest %s: expected %d rows, got %d", in.kind, in.rows, n)
		}
	}
}

func TestConfigsFromSpectra(t *testing.T) {
	db := setupTestDB(t)
	ingestTestData(t, db)

	configs, err := db.Configs(context.Background())
	if err != nil {
		t.Fatalf("Configs failed: %v", err)
	}
	if len(configs) != 2 {
		t.Fatalf("Expected 2 magnitudes, got %d", len(configs))
	}
	cfg := configs[6.5]
	if cfg == nil {
		t.Fatal("Missing M6.5 config")
	}
	if diff := cmp.Diff([]int{1, 2}, cfg.EventIDs()); diff != "" {
		t.Errorf("EventIDs mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]float64{0, 90}, cfg.SourceAzimuths()); diff != "" {
		t.Errorf("SourceAzimuths mismatch (-want +got):\n%s", diff)
	}
	if len(cfg.Rotations()) != 4 {
		t.Errorf("Expected 4 rotations, got %d", len(cfg.Rotations()))
	}
	if sites := cfg.Sites(); len(sites) != 1 || !math.IsNaN(sites[0].Z1p0) {
		t.Errorf("Expected one site with unknown Z1.0, got %+v", sites)
	}
	if diff := cmp.Diff([]int{3}, configs[7].EventIDs()); diff != "" {
		t.Errorf("M7 EventIDs mismatch (-want +got):\n%s", diff)
	}
}

func TestProviderSpectrum(t *testing.T) {
	db := setupTestDB(t)
	ingestTestData(t, db)
	ctx := context.Background()

	p := db.Provider(6.5)
	rot := rotation.RotationSpec{Site: "A", EventID: 2, Distance: 10, SourceAz: 90}
	spec, err := p.Spectrum(ctx, rot, 0)
	if err != nil {
		t.Fatalf("Spectrum failed: %v", err)
	}
	sa, err := spec.InterpolatedSA(2)
	if err != nil {
		t.Fatalf("InterpolatedSA failed: %v", err)
	}
	if math.Abs(sa-0.135) > 1e-12 {
		t.Errorf("Expected interpolated SA 0.135, got %v", sa)
	}

	_, err = p.Spectrum(ctx, rot, 1)
	if !errors.Is(err, ErrNoSpectrum) {
		t.Errorf("Expected ErrNoSpectrum for missing component, got %v", err)
	}
}

func TestLoadEventsAndRupture(t *testing.T) {
	db := setupTestDB(t)
	ingestTestData(t, db)
	ctx := context.Background()

	events, err := db.LoadEvents(ctx, []int{1, 2, 99})
	if err != nil {
		t.Fatalf("LoadEvents failed: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("Expected 2 events (99 is missing), got %d", len(events))
	}

	e1 := events[0]
	if len(e1.Records) != 2 || len(e1.Records[0].Elements) != 2 {
		t.Fatalf("Unexpected records for event 1: %+v", e1.Records)
	}
	if diff := cmp.Diff([]float64{0, 1}, e1.Records[0].FirstSlipTimes); diff != "" {
		t.Errorf("Slip times mismatch (-want +got):\n%s", diff)
	}
	if events[1].Records[0].FirstSlipTimes != nil {
		t.Errorf("Expected untimed record for event 2")
	}

	m := event.NewMap(db, []int{1})
	if _, err := m.Get(ctx, 1); err != nil {
		t.Errorf("event.Map over DB failed: %v", err)
	}

	rup, err := db.Rupture(ctx, 3)
	if err != nil {
		t.Fatalf("Rupture failed: %v", err)
	}
	if rup.Magnitude != 7 || rup.Dip != 45 || rup.TopDepth != 1 {
		t.Errorf("Unexpected rupture %+v", rup)
	}
	if _, err := db.Rupture(ctx, 99); err == nil {
		t.Error("Expected error for missing event")
	}
}

func TestIngestErrors(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	testCases := []struct {
		name, kind, data string
	}{
		{"unknown kind", "widgets", "a\n1\n"},
		{"missing column", KindSites, "name,latitude\nA,34\n"},
		{"bad float", KindSites, "name,latitude,longitude,vs30\nA,north,-118,760\n"},
		{"empty", KindEvents, ""},
		{"non-positive sa", KindSpectra, "magnitude,site,event_id,distance,source_az,site_source_az,period,sa\n6.5,A,1,10,0,0,1,0\n"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := db.Ingest(ctx, tc.kind, strings.NewReader(tc.data)); err == nil {
				t.Error("Expected error")
			}
		})
	}
}

func TestReportRuns(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	start := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := timeutil.NewMockClock(start)
	db.SetClock(clock)

	id, err := db.StartRun(ctx, "/tmp/out", `{"periods":[3]}`)
	if err != nil {
		t.Fatalf("StartRun failed: %v", err)
	}
	clock.Advance(3 * time.Second)
	if err := db.FinishRun(ctx, id, errors.New("boom")); err != nil {
		t.Fatalf("FinishRun failed: %v", err)
	}

	runs, err := db.Runs(ctx, 10)
	if err != nil {
		t.Fatalf("Runs failed: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("Expected 1 run, got %d", len(runs))
	}
	r := runs[0]
	if r.ID != id || r.Finished == nil || r.Error != "boom" || r.OutputDir != "/tmp/out" {
		t.Errorf("Unexpected run %+v", r)
	}
	if !r.Started.Equal(start) || r.Finished.Sub(r.Started) != 3*time.Second {
		t.Errorf("Unexpected run times %v to %v", r.Started, r.Finished)
	}
}
