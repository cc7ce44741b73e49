package report

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTableBuilder_Build(t *testing.T) {
	lines := NewTable().
		AddLine("Quantity", "Variations", "Description").
		AddLine("Site", 2, "Site locations.").
		InitNewLine().AddColumn("**Total**").FinalizeLine().
		Build()

	assert.Equal(t, []string{
		"| Quantity | Variations | Description |",
		"| --- | --- | --- |",
		"| Site | 2 | Site locations. |",
		"| **Total** |  |  |",
	}, lines)
}

func TestTableBuilder_BuildFinalizesOpenLine(t *testing.T) {
	lines := NewTable().InitNewLine().AddColumn("a").AddColumn("b").Build()
	assert.Equal(t, []string{"| a | b |", "| --- | --- |"}, lines)
	assert.Nil(t, NewTable().Build())
}

func TestTableBuilder_Wrap(t *testing.T) {
	lines := NewTable().
		AddLine("1s", "3s", "5s").
		AddLine("a", "b", "c").
		Wrap(2, 0).
		Build()

	assert.Equal(t, []string{
		"| 1s | 3s |",
		"| --- | --- |",
		"| a | b |",
		"| 5s |  |",
		"| c |  |",
	}, lines)
}

func TestTableBuilder_WrapKeepsLeadingColumns(t *testing.T) {
	lines := NewTable().
		AddLine("Site", "1s", "3s", "5s").
		AddLine("A", "x", "y", "z").
		Wrap(2, 1).
		Build()

	require.Len(t, lines, 5)
	assert.Equal(t, "| Site | 5s |  |", lines[3])
	assert.Equal(t, "| A | z |  |", lines[4])
}

func TestTableBuilder_WrapNarrowTableUnchanged(t *testing.T) {
	lines := NewTable().AddLine("1s", "3s").AddLine("a", "b").Wrap(2, 0).Build()
	assert.Len(t, lines, 3)
}

func TestAnchorName(t *testing.T) {
	tests := []struct{ heading, want string }{
		{"Path-to-path Variability", "path-to-path-variability"},
		{"M6.6 Within-event, single-site Results", "m66-within-event-single-site-results"},
		{"10 km M6.5 Between-events Results", "10-km-m65-between-events-results"},
		{"  Sites ", "sites"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, AnchorName(tt.heading), tt.heading)
	}
}

func TestBuildTOC(t *testing.T) {
	lines := []string{
		"# Title",
		"",
		"## Sites",
		"### M6.5 Results",
		"#### Plots",
		"##### Too Deep",
		"## Sites",
		"not a heading",
	}
	assert.Equal(t, []string{
		"* [Sites](#sites)",
		"  * [M6.5 Results](#m65-results)",
		"    * [Plots](#plots)",
		"* [Sites](#sites-1)",
	}, BuildTOC(lines, 2, 4))
}

func TestNum(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{1, "1"},
		{7.5, "7.5"},
		{0.123, "0.12"},
		{0.126, "0.13"},
		{-0.001, "0"},
		{-1.5, "-1.5"},
		{100, "100"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, num(tt.in), "num(%v)", tt.in)
	}
	assert.Equal(t, "0.5s", periodLabel(0.5))
}

func TestFileSafe(t *testing.T) {
	assert.Equal(t, "LA_Downtown_1", fileSafe("LA Downtown #1"))
	assert.Equal(t, "USC", fileSafe("USC"))
}

func TestStdDevHistogram(t *testing.T) {
	bins := stdDevHistogram([]float64{0.5, 0.51, 0.49, 1.7, -0.2})
	require.Len(t, bins, 21)
	assert.InDelta(t, -0.025, bins[0].Min, 1e-12)
	assert.InDelta(t, 1.025, bins[20].Max, 1e-12)

	var sum float64
	for _, b := range bins {
		sum += b.Weight
	}
	assert.InDelta(t, 1, sum, 1e-12)
	assert.InDelta(t, 0.6, bins[10].Weight, 1e-12)
	assert.InDelta(t, 0.2, bins[20].Weight, 1e-12, "out of range values clamp to the last bin")
	assert.InDelta(t, 0.2, bins[0].Weight, 1e-12)
}

func TestGenerateColors(t *testing.T) {
	assert.Nil(t, generateColors(0))
	colors := generateColors(3)
	require.Len(t, colors, 3)
	assert.NotEqual(t, colors[0], colors[1])
}
