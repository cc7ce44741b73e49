package gmpe

import (
	"context"
	"errors"
	"math"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/rotvar/internal/rotation"
)

const testTable = `{
  "name": "Test GMPE",
  "coefficients": [
    {"period": 3, "c0": 1, "c1": 0.5, "c2": -1, "c3": -0.5, "h": 0, "phi": 0.3, "tau": 0.4},
    {"period": 1, "c0": 2, "c1": 0.2, "c2": -1, "c3": 0, "h": 6, "phi": 0.5, "tau": 0.2}
  ]
}`

func loadTestTable(t *testing.T) *TableModel {
	t.Helper()
	m, err := LoadTableModel(strings.NewReader(testTable))
	require.NoError(t, err)
	return m
}

func TestLoadTableModel(t *testing.T) {
	m := loadTestTable(t)
	assert.Equal(t, "Test GMPE", m.Name())
	assert.Equal(t, []float64{1, 3}, m.Periods())

	testCases := []struct {
		name string
		json string
	}{
		{"no name", `{"coefficients": [{"period": 1}]}`},
		{"no coefficients", `{"name": "x"}`},
		{"bad period", `{"name": "x", "coefficients": [{"period": 0}]}`},
		{"duplicate", `{"name": "x", "coefficients": [{"period": 1}, {"period": 1}]}`},
		{"negative phi", `{"name": "x", "coefficients": [{"period": 1, "phi": -1}]}`},
		{"unknown field", `{"name": "x", "coefficients": [{"period": 1, "c9": 1}]}`},
		{"not json", `name: x`},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := LoadTableModel(strings.NewReader(tc.json))
			assert.Error(t, err)
		})
	}
}

func TestDefaultTableModel(t *testing.T) {
	m := DefaultTableModel()
	assert.NotEmpty(t, m.Name())
	assert.Contains(t, m.Periods(), 3.0)
}

func TestTableModel_GroundMotion(t *testing.T) {
	m := loadTestTable(t)
	site := rotation.NewSite("A", 34, -118, 380)

	gm, err := m.GroundMotion(Params{Site: site, Rupture: Rupture{Magnitude: 7}, DistanceRup: 20, Period: 3})
	require.NoError(t, err)
	want := 1 + 0.5*(7-6) - math.Log(20) - 0.5*math.Log(380.0/760)
	assert.InDelta(t, want, gm.Mean, 1e-12)
	assert.Equal(t, 0.3, gm.Phi)
	assert.Equal(t, 0.4, gm.Tau)
	assert.InDelta(t, 0.5, gm.StdDev, 1e-12)

	_, err = m.GroundMotion(Params{Site: site, DistanceRup: 20, Period: 2})
	assert.ErrorIs(t, err, ErrPeriodNotTabulated)

	_, err = m.GroundMotion(Params{Site: site, DistanceRup: -1, Period: 1})
	assert.Error(t, err)
}

func TestDistances(t *testing.T) {
	testCases := []struct {
		name           string
		distance, zTOR float64
		jb             bool
		wantJB, wantRp float64
	}{
		{"jb surface", 10, 0, true, 10, 10},
		{"jb buried", 4, 3, true, 4, 5},
		{"rup surface", 10, 0, false, 10, 10},
		{"rup buried", 5, 3, false, 4, 5},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			rJB, rRup := Distances(tc.distance, tc.zTOR, tc.jb)
			assert.InDelta(t, tc.wantJB, rJB, 1e-12)
			assert.InDelta(t, tc.wantRp, rRup, 1e-12)
		})
	}
}

func TestDistanceX(t *testing.T) {
	assert.InDelta(t, 0, DistanceX(10, 0), 1e-12)
	assert.InDelta(t, 10, DistanceX(10, 90), 1e-12)
	assert.InDelta(t, 0, DistanceX(10, 180), 1e-9)
	// sin(270) is -1; past 180 the sign is flipped
	assert.InDelta(t, 10, DistanceX(10, 270), 1e-12)
}

type testScenario struct {
	sites    []rotation.SiteInfo
	events   map[float64][]int
	azimuths []float64
}

func (s testScenario) Sites() []rotation.SiteInfo { return s.sites }
func (s testScenario) EventIDs(mag float64) []int { return s.events[mag] }
func (s testScenario) SourceAzimuths() []float64  { return s.azimuths }

type countingSource struct {
	calls atomic.Int64
	err   error
}

func (c *countingSource) Rupture(_ context.Context, id int) (Rupture, error) {
	c.calls.Add(1)
	if c.err != nil {
		return Rupture{}, c.err
	}
	return Rupture{Magnitude: 6 + float64(id)/10, Rake: 180, Dip: 90}, nil
}

func TestComparator_SingleSite(t *testing.T) {
	m := loadTestTable(t)
	src := &countingSource{}
	sc := testScenario{
		sites:    []rotation.SiteInfo{rotation.NewSite("A", 34, -118, 760)},
		events:   map[float64][]int{6.5: {1, 2, 3}},
		azimuths: []float64{0, 90},
	}
	c, err := NewComparator(sc, src, true, m)
	require.NoError(t, err)

	r, err := c.Result(context.Background(), m, "", 6.5, 20, []float64{1, 3})
	require.NoError(t, err)
	require.Len(t, r.GroundMotions, 2)
	assert.Len(t, r.GroundMotions[0], 6)
	assert.Equal(t, 0.5, r.MedianPhi[0])
	assert.Equal(t, 0.4, r.MedianTau[1])
	assert.InDelta(t, 0.5, r.MedianTotal[1], 1e-12)
	// median event is 2 (M6.2); distance terms are azimuth independent
	assert.InDelta(t, 1+0.5*0.2-math.Log(20), r.LogMedian[1], 1e-9)

	again, err := c.Result(context.Background(), m, "A", 6.5, 20, []float64{1, 3})
	require.NoError(t, err)
	assert.Same(t, r, again, "sole site and all sites share a key")
	assert.Equal(t, "A", c.Key(m, "", 6.5, 20, []float64{1, 3}).Site)
	assert.Equal(t, int64(3), src.calls.Load(), "ruptures are memoised")
}

func TestComparator_AllSitesPacks(t *testing.T) {
	m := loadTestTable(t)
	sc := testScenario{
		sites:    []rotation.SiteInfo{rotation.NewSite("A", 34, -118, 760), rotation.NewSite("B", 34, -117, 380)},
		events:   map[float64][]int{6.5: {1}},
		azimuths: []float64{0, 120, 240},
	}
	c, err := NewComparator(sc, &countingSource{}, false, m)
	require.NoError(t, err)
	ctx := context.Background()

	all, err := c.Result(ctx, m, "", 6.5, 20, []float64{3})
	require.NoError(t, err)
	a, err := c.Result(ctx, m, "A", 6.5, 20, []float64{3})
	require.NoError(t, err)
	b, err := c.Result(ctx, m, "B", 6.5, 20, []float64{3})
	require.NoError(t, err)

	require.Len(t, all.GroundMotions[0], 6)
	assert.Equal(t, a.GroundMotions[0], all.GroundMotions[0][:3])
	assert.Equal(t, b.GroundMotions[0], all.GroundMotions[0][3:])
	assert.Greater(t, b.LogMedian[0], a.LogMedian[0], "softer site amplifies")
}

func TestComparator_Errors(t *testing.T) {
	m := loadTestTable(t)
	sc := testScenario{
		sites:    []rotation.SiteInfo{rotation.NewSite("A", 34, -118, 760)},
		events:   map[float64][]int{6.5: {1}},
		azimuths: []float64{0},
	}
	src := &countingSource{err: errors.New("catalog offline")}
	c, err := NewComparator(sc, src, true, m)
	require.NoError(t, err)
	ctx := context.Background()

	_, err = c.Result(ctx, m, "", 6.5, 20, []float64{1})
	assert.ErrorContains(t, err, "catalog offline")

	_, err = c.Result(ctx, m, "Z", 6.5, 20, []float64{1})
	assert.ErrorContains(t, err, "unknown site")

	_, err = c.Result(ctx, m, "", 7.5, 20, []float64{1})
	assert.ErrorContains(t, err, "no events")

	src.err = nil
	_, err = c.Result(ctx, m, "", 6.5, 20, []float64{2})
	assert.ErrorIs(t, err, ErrPeriodNotTabulated)

	other := DefaultTableModel()
	_, err = c.Result(ctx, other, "", 6.5, 20, []float64{1})
	assert.ErrorContains(t, err, "not configured")

	_, err = NewComparator(sc, src, true, m, loadTestTable(t))
	assert.ErrorContains(t, err, "duplicate")
}

func TestGroupingKey_CacheKey(t *testing.T) {
	a := GroupingKey{Model: "m", Site: "A", Magnitude: 6.5, Distance: 20, Periods: []float64{1, 3}}
	b := a
	b.Periods = []float64{1, 3}
	assert.Equal(t, a.CacheKey(), b.CacheKey())
	b.Site = ""
	assert.NotEqual(t, a.CacheKey(), b.CacheKey())
}
