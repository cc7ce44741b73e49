package report

import (
	"context"
	"errors"
	"math"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/rotvar/internal/config"
	"github.com/banshee-data/rotvar/internal/event"
	"github.com/banshee-data/rotvar/internal/fsutil"
	"github.com/banshee-data/rotvar/internal/gmpe"
	"github.com/banshee-data/rotvar/internal/monitoring"
	"github.com/banshee-data/rotvar/internal/rotation"
	"github.com/banshee-data/rotvar/internal/spectrum"
	"github.com/banshee-data/rotvar/internal/variability"
)

var testPeriods = []float64{1, 3}

// synthProvider returns smooth spectra that vary with every quantity so
// that no std dev collapses to zero.
type synthProvider struct{ mag float64 }

func (s synthProvider) Spectrum(_ context.Context, rot rotation.RotationSpec, _ int) (*spectrum.Func, error) {
	base := -2 + 0.5*(s.mag-6) - rot.Distance/50 +
		0.3*math.Sin(rot.SourceAz*math.Pi/180) + 0.2*math.Cos(rot.SiteToSourceAz*math.Pi/180) +
		0.1*float64(rot.EventID)
	if rot.Site == "B" {
		base += 0.05
	}
	pts := make([]spectrum.Point, len(testPeriods))
	for i, p := range testPeriods {
		pts[i] = spectrum.Point{Period: p, SA: math.Exp(base - 0.2*p)}
	}
	return spectrum.New("synthetic", pts)
}

type fixedRupture struct{}

func (fixedRupture) Rupture(_ context.Context, _ int) (gmpe.Rupture, error) {
	return gmpe.Rupture{Magnitude: 6.5, Dip: 90, TopDepth: 1}, nil
}

func testEvents() *event.Map {
	rec := func(dt float64) event.Record {
		return event.Record{
			Elements: []event.Element{
				{ID: 1, Center: event.Location{Latitude: 34, Longitude: -118, Depth: 5}},
				{ID: 2, Center: event.Location{Latitude: 34.05, Longitude: -118, Depth: 5}},
				{ID: 3, Center: event.Location{Latitude: 34.1, Longitude: -118, Depth: 5}},
			},
			FirstSlipTimes: []float64{0, dt, 2 * dt},
		}
	}
	return event.NewMapFrom([]event.Event{
		{ID: 1, Magnitude: 6.5, Records: []event.Record{rec(2)}},
		{ID: 2, Magnitude: 6.5, Records: []event.Record{rec(3)}},
	})
}

func newEngine(t *testing.T, mags []float64, sites []rotation.SiteInfo, dists []float64) *variability.Engine {
	t.Helper()
	configs := make(map[float64]*rotation.Config, len(mags))
	providers := make(map[float64]variability.SpectrumProvider, len(mags))
	for _, m := range mags {
		cfg, err := rotation.NewConfig(rotation.Values{
			Sites:                sites,
			EventIDs:             []int{1, 2},
			Distances:            dists,
			SourceAzimuths:       rotation.EvenAzimuths(2),
			SiteToSourceAzimuths: rotation.EvenAzimuths(2),
		})
		require.NoError(t, err)
		configs[m] = cfg
		providers[m] = synthProvider{mag: m}
	}
	e, err := variability.NewEngine(configs, providers)
	require.NoError(t, err)
	return e
}

func testConfig() *config.ReportConfig {
	catalog, short := "Test Catalog", "T1"
	workers := 3
	return &config.ReportConfig{
		CatalogName:       &catalog,
		ScenarioShortName: &short,
		MatchCriteria:     []string{"Magnitude 6.5", "Vertical strike-slip"},
		Periods:           testPeriods,
		Workers:           &workers,
	}
}

func muteLogs(t *testing.T) {
	original := monitoring.Logf
	monitoring.SetLogger(nil)
	t.Cleanup(func() { monitoring.Logf = original })
}

func twoSites() []rotation.SiteInfo {
	return []rotation.SiteInfo{
		rotation.NewSite("A", 34, -118, 760),
		{Name: "B", Latitude: 34.2, Longitude: -118.1, Vs30: 400, Z1p0: 300, Z2p5: 1.2},
	}
}

func TestPageGen_Generate(t *testing.T) {
	muteLogs(t)
	engine := newEngine(t, []float64{6.5}, twoSites(), []float64{10, 20})
	fsys := fsutil.NewMemoryFileSystem()
	g, err := NewPageGen(testConfig(), engine, nil, testEvents(), fsys)
	require.NoError(t, err)

	require.NoError(t, g.Generate(context.Background(), "out"))

	data, err := fsys.ReadFile(filepath.Join("out", ReadmeName))
	require.NoError(t, err)
	readme := string(data)

	assert.True(t, strings.HasPrefix(readme, "# Test Catalog Rotated Rupture Variability, T1\n"))
	for _, want := range []string{
		"## Table Of Contents",
		"* [Rupture Rotation Parameters](#rupture-rotation-parameters)",
		"| Event ID | 2 | Individual events that match the selection criteria. |",
		"| Distance | 10, 20 km | Source-site distance. |",
		"| **Total # Simulations** | **32** | Total number of combinations of the above. |",
		"## T1 Rupture Match Criteria",
		"* Vertical strike-slip",
		"| B | *34.2, -118.1* | 400 | 0.3 | 1.2 |",
		"| A | *34, -118* | 760 | N/A | N/A |",
		"### M6.5 Result Summary Table",
		"## Path-to-path Variability",
		"### 10 km M6.5 Path-to-path Results",
		"### 20 km M6.5 Between-events Results",
		"| **ALL SITES** |",
		"![Path-to-path Variability](resources/path_m6.5_10km_std_dev.png)",
		"![1s](resources/path_m6.5_10km_1s_hist.png)",
		"![Scatter](resources/source_strike_m6.5_20km_scatter_v_prop_3s_median.png)",
		"Mean &delta;B<sub>e</sub>",
	} {
		assert.Contains(t, readme, want)
	}
	assert.NotContains(t, readme, "Mag-Dist", "mag-dist plots need more than 3 magnitudes and distances")

	toc := strings.Index(readme, "## Table Of Contents")
	params := strings.Index(readme, "## Rupture Rotation Parameters")
	summary := strings.Index(readme, "### M6.5 Result Summary Table")
	firstType := strings.Index(readme, "## Path-to-path Variability")
	assert.Less(t, toc, params)
	assert.Less(t, summary, firstType, "summary table is inserted ahead of the type sections")

	files := fsys.Files(filepath.Join("out", ResourcesName))
	for _, want := range []string{
		"path_m6.5_20km_std_dev.png",
		"within_event_ss_m6.5_10km_3s_hist.png",
		"within_event_ss_m6.5_10km_scatter_v_prop_1s_std_dev.png",
		"between_events_m6.5_10km_std_dev.png",
	} {
		assert.Contains(t, files, filepath.Join("out", ResourcesName, want))
	}
	assert.NotContains(t, files, filepath.Join("out", ResourcesName, "between_events_m6.5_10km_1s_hist.png"),
		"std-dev-of-medians types have no residual histograms")

	html, err := fsys.ReadFile(filepath.Join("out", HTMLName))
	require.NoError(t, err)
	assert.Contains(t, string(html), "echarts")
}

func TestPageGen_SummaryMatchesEngine(t *testing.T) {
	muteLogs(t)
	engine := newEngine(t, []float64{6.5}, twoSites(), []float64{10})
	fsys := fsutil.NewMemoryFileSystem()
	cfg := testConfig()
	html := false
	cfg.HTMLPage = &html
	g, err := NewPageGen(cfg, engine, nil, testEvents(), fsys)
	require.NoError(t, err)
	require.NoError(t, g.Generate(context.Background(), "out"))

	d := 10.0
	sum, err := engine.Summary(context.Background(), variability.BetweenEvents, 6.5, &d, "", testPeriods)
	require.NoError(t, err)
	row := "| Between-events | &tau; | 10 km | " + num(sum.Periods[0].StdDev) + " | " + num(sum.Periods[1].StdDev) + " |"

	data, err := fsys.ReadFile(filepath.Join("out", ReadmeName))
	require.NoError(t, err)
	assert.Contains(t, string(data), row)
	assert.Contains(t, string(data), "### M6.5 Path-to-path Results", "a single distance gets a per-magnitude heading")
	assert.False(t, fsys.Exists(filepath.Join("out", HTMLName)))
}

func TestPageGen_MagDist(t *testing.T) {
	muteLogs(t)
	mags := []float64{6, 6.5, 7, 7.5}
	sites := []rotation.SiteInfo{rotation.NewSite("A", 34, -118, 760)}
	engine := newEngine(t, mags, sites, []float64{10, 20, 30, 40})
	comparator, err := gmpe.NewComparator(engine, fixedRupture{}, true, gmpe.DefaultTableModel())
	require.NoError(t, err)

	cfg := testConfig()
	cfg.HighlightMagnitudes = []float64{6.5, 8}
	cfg.HighlightDistances = []float64{20}
	fsys := fsutil.NewMemoryFileSystem()
	g, err := NewPageGen(cfg, engine, comparator, testEvents(), fsys)
	require.NoError(t, err)
	require.NoError(t, g.Generate(context.Background(), "out"))

	data, err := fsys.ReadFile(filepath.Join("out", ReadmeName))
	require.NoError(t, err)
	readme := string(data)
	assert.Contains(t, readme, "### Mag-Dist Plots")
	assert.Contains(t, readme, "[Path-to-path](#path-to-path-variability)")
	assert.Contains(t, readme, "| **GMPE** |")
	assert.Contains(t, readme, "### 20 km M6.5 Source-strike Results")
	assert.NotContains(t, readme, "### 10 km M6.5 Source-strike Results", "only highlighted distances get result sections")
	assert.NotContains(t, readme, "### M7 Result Summary Table", "only highlighted magnitudes get summary tables")

	dir := filepath.Join("out", ResourcesName)
	for _, want := range []string{
		"path_mag_dist_std_dev_1s_sim.png",
		"path_mag_dist_std_dev_3s_sim_median.png",
		"source_strike_mag_dist_std_dev_1s_gmpe.png",
		"between_events_mag_dist_std_dev_3s_sim_gmpe_diff.png",
	} {
		assert.True(t, fsys.Exists(filepath.Join(dir, want)), want)
	}
	assert.False(t, fsys.Exists(filepath.Join(dir, "path_mag_dist_std_dev_1s_gmpe.png")),
		"types without a GMPE component have no GMPE plots")
}

func TestNewPageGen_Highlights(t *testing.T) {
	engine := newEngine(t, []float64{6.5}, twoSites(), []float64{10, 20})

	cfg := testConfig()
	cfg.HighlightDistances = []float64{15}
	_, err := NewPageGen(cfg, engine, nil, nil, fsutil.NewMemoryFileSystem())
	assert.True(t, errors.Is(err, variability.ErrConfig), "got %v", err)

	cfg = testConfig()
	cfg.HighlightMagnitudes = []float64{7}
	_, err = NewPageGen(cfg, engine, nil, nil, fsutil.NewMemoryFileSystem())
	assert.True(t, errors.Is(err, variability.ErrConfig), "got %v", err)

	cfg = testConfig()
	cfg.Periods = []float64{1, 1}
	_, err = NewPageGen(cfg, engine, nil, nil, fsutil.NewMemoryFileSystem())
	assert.True(t, errors.Is(err, variability.ErrConfig), "got %v", err)
}

func TestPageGen_VpropNeedsEvents(t *testing.T) {
	muteLogs(t)
	engine := newEngine(t, []float64{6.5}, twoSites(), []float64{10})
	g, err := NewPageGen(testConfig(), engine, nil, nil, fsutil.NewMemoryFileSystem())
	require.NoError(t, err)

	err = g.Generate(context.Background(), "out")
	assert.True(t, errors.Is(err, variability.ErrMissingData), "got %v", err)
}

func TestPageGen_ComputedTypesSkipsSingleRotation(t *testing.T) {
	cfg, err := rotation.NewConfig(rotation.Values{
		Sites:                []rotation.SiteInfo{rotation.NewSite("A", 34, -118, 760)},
		EventIDs:             []int{1, 2},
		Distances:            []float64{10},
		SourceAzimuths:       []float64{0, 90},
		SiteToSourceAzimuths: []float64{0},
	})
	require.NoError(t, err)
	engine, err := variability.NewEngine(map[float64]*rotation.Config{6.5: cfg},
		map[float64]variability.SpectrumProvider{6.5: synthProvider{mag: 6.5}})
	require.NoError(t, err)
	g, err := NewPageGen(testConfig(), engine, nil, nil, fsutil.NewMemoryFileSystem())
	require.NoError(t, err)

	var names []string
	for _, typ := range g.ComputedTypes() {
		names = append(names, typ.Prefix)
	}
	assert.Equal(t, []string{"source_strike", "within_event_ss", "between_events"}, names)
}
