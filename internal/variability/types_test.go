package variability

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/banshee-data/rotvar/internal/rotation"
)

func testCounts() map[rotation.Quantity]int {
	return map[rotation.Quantity]int{
		rotation.Site:                3,
		rotation.EventID:             10,
		rotation.Distance:            4,
		rotation.SourceAzimuth:       36,
		rotation.SiteToSourceAzimuth: 6,
	}
}

func TestType_RotationsPerStdDev(t *testing.T) {
	testCases := []struct {
		typ  Type
		want int
	}{
		{Path, 6},
		{SourceStrike, 36},
		{WithinEventSingleSite, 216},
		{BetweenEvents, 10},
	}
	for _, tc := range testCases {
		t.Run(tc.typ.Prefix, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.typ.RotationsPerStdDev(testCounts()))
		})
	}
}

func TestType_Validate(t *testing.T) {
	for _, typ := range Types() {
		assert.NoError(t, typ.Validate(), typ.Name)
		assert.True(t, typ.SeparateSites())
		assert.True(t, typ.SeparateDistances())
	}
	assert.ErrorIs(t, Type{Name: "none"}.Validate(), ErrConfig)
	assert.ErrorIs(t, Type{
		Name:            "medians",
		Varied:          []rotation.Quantity{rotation.SourceAzimuth},
		StdDevOfMedians: true,
	}.Validate(), ErrConfig)
}

func TestTypeByPrefix(t *testing.T) {
	typ, ok := TypeByPrefix("between_events")
	assert.True(t, ok)
	assert.Equal(t, "τ", typ.Symbol)
	assert.Equal(t, GMPETau, typ.GMPEStdDev)

	_, ok = TypeByPrefix("nope")
	assert.False(t, ok)
}

func TestType_MethodologyLines(t *testing.T) {
	lines := Path.MethodologyLines(testCounts(), 3)
	text := strings.Join(lines, "\n")

	assert.Equal(t, "Path-to-path variability, denoted &phi;<sub>P2P</sub> in Al Atik (2010), is computed separately for each:", lines[0])
	assert.Contains(t, text, "* Site *[3 unique]*")
	assert.Contains(t, text, "* Distance *[4 unique]*")
	assert.Contains(t, text, "computed across all 6 combinations of:")
	assert.Contains(t, text, "across each combination of Event ID, Source Azimuth.")
	assert.Contains(t, text, "**ALL SITES**")

	single := strings.Join(Path.MethodologyLines(testCounts(), 1), "\n")
	assert.NotContains(t, single, "**ALL SITES**")

	medians := strings.Join(BetweenEvents.MethodologyLines(testCounts(), 3), "\n")
	assert.Contains(t, medians, "We first compute the median natural-log ground motion, &delta;B<sub>e</sub>, for each combination of:")
	assert.Contains(t, medians, "That median, &delta;B<sub>e</sub>, is computed across all 216 combinations of:")
	assert.Contains(t, medians, "standard deviation of all &delta;B<sub>e</sub>.")
	assert.Contains(t, medians, "median standard deviation across all sites")
}

func TestScatterQuantity(t *testing.T) {
	assert.Equal(t, "v_prop", ScatterVprop.Prefix())
	assert.Equal(t, "Site-to-Source Az", ScatterSiteToSourceAz.Name())
	assert.Equal(t, "φ", GMPEPhi.Symbol())
	assert.Empty(t, GMPENone.Symbol())
}
