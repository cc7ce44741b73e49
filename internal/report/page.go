// Package report renders variability results as a markdown page with PNG
// plots and an interactive HTML summary.
package report

import (
	"context"
	"fmt"
	"math"
	"path/filepath"
	"slices"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/plot/palette"
	"gonum.org/v1/plot/palette/moreland"

	"github.com/banshee-data/rotvar/internal/cache"
	"github.com/banshee-data/rotvar/internal/config"
	"github.com/banshee-data/rotvar/internal/event"
	"github.com/banshee-data/rotvar/internal/fsutil"
	"github.com/banshee-data/rotvar/internal/gmpe"
	"github.com/banshee-data/rotvar/internal/monitoring"
	"github.com/banshee-data/rotvar/internal/rotation"
	"github.com/banshee-data/rotvar/internal/variability"
)

const (
	ReadmeName    = "README.md"
	HTMLName      = "index.html"
	ResourcesName = "resources"

	topLink = "*[(top)](#table-of-contents)*"
)

type eventKey int

func (k eventKey) CacheKey() string { return strconv.Itoa(int(k)) }

// PageGen writes the variability report of one scenario.
type PageGen struct {
	cfg        *config.ReportConfig
	engine     *variability.Engine
	comparator *gmpe.Comparator
	events     *event.Map
	fsys       fsutil.FileSystem

	vprop  *event.VpropCalculator
	vprops *cache.Loading[eventKey, float64]

	periods   []float64
	plotMags  []float64
	plotDists []float64
}

// NewPageGen validates cfg against the engine's dataset. comparator may be
// nil to skip GMPE comparisons and events may be nil when no rupture
// velocity scatters are wanted.
func NewPageGen(cfg *config.ReportConfig, engine *variability.Engine, comparator *gmpe.Comparator,
	events *event.Map, fsys fsutil.FileSystem) (*PageGen, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", variability.ErrConfig, err)
	}
	g := &PageGen{
		cfg:        cfg,
		engine:     engine,
		comparator: comparator,
		events:     events,
		fsys:       fsys,
		vprop:      event.NewVpropCalculator(),
		periods:    cfg.GetPeriods(),
	}
	g.vprops = cache.NewLoading(g.loadVprop)

	mags := engine.Magnitudes()
	if len(cfg.HighlightMagnitudes) == 0 {
		g.plotMags = mags
	} else {
		for _, m := range cfg.HighlightMagnitudes {
			if slices.Contains(mags, m) {
				g.plotMags = append(g.plotMags, m)
			}
		}
		if len(g.plotMags) == 0 {
			return nil, fmt.Errorf("%w: none of the highlight magnitudes %v are in the dataset", variability.ErrConfig, cfg.HighlightMagnitudes)
		}
		sort.Float64s(g.plotMags)
	}

	dists := engine.Distances()
	if len(cfg.HighlightDistances) == 0 {
		g.plotDists = dists
	} else {
		for _, d := range cfg.HighlightDistances {
			if !slices.Contains(dists, d) {
				return nil, fmt.Errorf("%w: highlight distance %v km not in dataset", variability.ErrConfig, d)
			}
		}
		g.plotDists = slices.Clone(cfg.HighlightDistances)
	}
	return g, nil
}

func (g *PageGen) loadVprop(ctx context.Context, id eventKey) (float64, error) {
	if g.events == nil {
		return 0, fmt.Errorf("%w: no events loaded for rupture velocity of event %d", variability.ErrMissingData, id)
	}
	e, err := g.events.Get(ctx, int(id))
	if err != nil {
		return 0, err
	}
	v, err := g.vprop.Vprop(e)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", variability.ErrMissingData, err)
	}
	return v, nil
}

// ComputedTypes returns the variability types the report covers: those
// computed from more than one value per std dev.
func (g *PageGen) ComputedTypes() []variability.Type {
	counts := g.engine.Counts()
	var out []variability.Type
	for _, t := range variability.Types() {
		if t.RotationsPerStdDev(counts) == 1 {
			monitoring.Logf("Skipping %s: only one rotation per std dev", t.Name)
			continue
		}
		out = append(out, t)
	}
	return out
}

func (g *PageGen) hasMagDist() bool {
	return len(g.engine.Magnitudes()) > 3 && len(g.engine.Distances()) > 3
}

func (g *PageGen) multiSite(t variability.Type) bool {
	return t.SeparateSites() && len(g.engine.Sites()) > 1
}

// distancesFor returns one entry per distance for types that separate
// distances, otherwise a single nil.
func distancesFor(t variability.Type, dists []float64) []*float64 {
	if !t.SeparateDistances() {
		return []*float64{nil}
	}
	out := make([]*float64, len(dists))
	for i := range dists {
		out[i] = &dists[i]
	}
	return out
}

func (g *PageGen) distanceLabel(d *float64) string {
	dists := g.engine.Distances()
	switch {
	case d != nil:
		return num(*d) + " km"
	case len(dists) == 1:
		return num(dists[0]) + " km"
	}
	return "(all)"
}

// Warm computes every all-sites result the report needs, at most
// cfg.Workers at a time. Rendering afterwards only reads the caches.
func (g *PageGen) Warm(ctx context.Context) error {
	mags := g.plotMags
	if g.hasMagDist() {
		mags = g.engine.Magnitudes()
	}
	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(g.cfg.GetWorkers())
	for _, t := range g.ComputedTypes() {
		for _, mag := range mags {
			for _, d := range distancesFor(t, g.engine.Distances()) {
				key := g.engine.Key(t, mag, d, "", g.periods)
				eg.Go(func() error {
					_, err := g.engine.Result(ctx, key)
					return err
				})
			}
		}
	}
	if g.comparator != nil && g.hasMagDist() {
		for _, mag := range mags {
			for _, d := range g.engine.Distances() {
				eg.Go(func() error {
					_, err := g.gmpeResult(ctx, "", mag, d)
					return err
				})
			}
		}
	}
	return eg.Wait()
}

// gmpeResult packs the predictions of every configured GMPE.
func (g *PageGen) gmpeResult(ctx context.Context, site string, mag, distance float64) (*gmpe.Result, error) {
	models := g.comparator.Models()
	results := make([]*gmpe.Result, len(models))
	for i, m := range models {
		r, err := g.comparator.Result(ctx, m, site, mag, distance, g.periods)
		if err != nil {
			return nil, fmt.Errorf("GMPE %s: %w", m.Name(), err)
		}
		results[i] = r
	}
	return gmpe.Pack(results)
}

// page accumulates README lines while plots are written.
type page struct {
	lines        []string
	resourcesDir string
	charts       []magnitudeChart
}

func (pg *page) add(lines ...string) { pg.lines = append(pg.lines, lines...) }

func (pg *page) resource(name string) string { return filepath.Join(pg.resourcesDir, name) }

// Generate writes README.md, its PNG resources and optionally index.html
// into outputDir.
func (g *PageGen) Generate(ctx context.Context, outputDir string) error {
	pg := &page{resourcesDir: filepath.Join(outputDir, ResourcesName)}
	if err := g.fsys.MkdirAll(pg.resourcesDir, 0755); err != nil {
		return fmt.Errorf("create %s: %w", pg.resourcesDir, err)
	}
	monitoring.Stagef("Computing variability results")
	if err := g.Warm(ctx); err != nil {
		return fmt.Errorf("compute variability: %w", err)
	}
	if err := g.buildPage(ctx, pg); err != nil {
		return err
	}

	readme := filepath.Join(outputDir, ReadmeName)
	if err := g.fsys.WriteFile(readme, []byte(strings.Join(pg.lines, "\n")+"\n"), 0644); err != nil {
		return fmt.Errorf("write %s: %w", readme, err)
	}
	if g.cfg.GetHTMLPage() {
		if err := writeHTMLPage(g.fsys, filepath.Join(outputDir, HTMLName), g.title(), g.periods, pg.charts); err != nil {
			return err
		}
	}
	monitoring.Logf("Wrote report to %s", outputDir)
	return nil
}

func (g *PageGen) title() string {
	return g.cfg.GetCatalogName() + " Rotated Rupture Variability, " + g.cfg.GetScenarioShortName()
}

func (g *PageGen) buildPage(ctx context.Context, pg *page) error {
	distName, distSymbol := "3-dimensional distance", "Rrup"
	if g.cfg.GetDistanceJB() {
		distName, distSymbol = "Joyner-Boore distance", "Rjb"
	}
	dists := g.engine.Distances()
	sites := g.engine.Sites()

	pg.add("# "+g.title(), "")
	pg.add("This exercise uses translations and rotations to estimate ground motion variability from different "+
		"sources. We begin by selecting a subset of similar ruptures which match a set of criteria (in this case, "+
		g.cfg.GetScenarioName()+"). Each rupture is then reoriented such that its strike (following the Aki & Richards "+
		"1980 convention) is 0 degrees (due North, dipping to the right for normal or reverse ruptures). For each site, "+
		"ruptures are translated such that their scalar seismic moment centroid is directly North of the site, and their "+
		fmt.Sprintf("%s (%s) is as specified (we consider %d distance[s] here).", distName, distSymbol, len(dists)), "")
	pg.add(fmt.Sprintf("We then perform various rotations. We rotate the rupture in place around its centroid, holding the "+
		"site-to-source centroid path and %[1]s constant (henceforth '%[2]s'). We also rotate ruptures around the site, "+
		"holding %[1]s and source orientation relative to the site constant but sampling different paths "+
		"(henceforth '%[3]s'). We do this for each unique combination of %[2]s, %[3]s, %[4]s, %[5]s, and %[6]s.",
		distSymbol, rotation.SourceAzimuth.Name(), rotation.SiteToSourceAzimuth.Name(),
		rotation.Distance.Name(), rotation.Site.Name(), rotation.EventID.Name()), "")
	if len(g.cfg.MethodLines) > 0 {
		pg.add(g.cfg.MethodLines...)
		if pg.lines[len(pg.lines)-1] != "" {
			pg.add("")
		}
	}
	tocIndex := len(pg.lines)

	counts := g.engine.Counts()
	lo, hi := g.engine.EventCountRange()
	events := strconv.Itoa(hi)
	if lo != hi {
		events = fmt.Sprintf("%d - %d", lo, hi)
	}
	distStrs := make([]string, len(dists))
	for i, d := range dists {
		distStrs[i] = num(d)
	}
	first, _ := g.engine.Config(g.engine.Magnitudes()[0])
	pg.add("## Rupture Rotation Parameters", "")
	table := NewTable().AddLine("Quantity", "Variations", "Description").
		AddLine(rotation.EventID.Name(), events, rotation.EventID.Description()).
		AddLine(rotation.Site.Name(), counts[rotation.Site], rotation.Site.Description()).
		AddLine(rotation.SourceAzimuth.Name(), counts[rotation.SourceAzimuth], rotation.SourceAzimuth.Description()).
		AddLine(rotation.SiteToSourceAzimuth.Name(), counts[rotation.SiteToSourceAzimuth], rotation.SiteToSourceAzimuth.Description()).
		AddLine(rotation.Distance.Name(), strings.Join(distStrs, ", ")+" km", rotation.Distance.Description()).
		AddLine("**Total # Simulations**", fmt.Sprintf("**%d**", len(first.Rotations())), "Total number of combinations of the above.")
	pg.add(table.Build()...)
	pg.add("")

	pg.add("## "+g.cfg.GetScenarioShortName()+" Rupture Match Criteria", topLink, "")
	pg.add(fmt.Sprintf("We consider %d events in the catalog which match the following criteria:", hi), "")
	criteria := g.cfg.MatchCriteria
	if len(criteria) == 0 {
		criteria = []string{g.cfg.GetScenarioName()}
	}
	for _, c := range criteria {
		pg.add("* " + c)
	}
	pg.add("")

	pg.add("## Sites", "")
	table = NewTable().AddLine("Name", "Location", "Vs30 (m/s)", "Z1.0 (km)", "Z2.5 (km)")
	for _, s := range sites {
		table.InitNewLine().
			AddColumn(s.Name).
			AddColumn(fmt.Sprintf("*%v, %v*", float32(s.Latitude), float32(s.Longitude))).
			AddColumn(num(s.Vs30))
		if math.IsNaN(s.Z1p0) {
			table.AddColumn("N/A")
		} else {
			table.AddColumn(num(s.Z1p0 / 1000))
		}
		if math.IsNaN(s.Z2p5) {
			table.AddColumn("N/A")
		} else {
			table.AddColumn(num(s.Z2p5))
		}
		table.FinalizeLine()
	}
	pg.add(table.Build()...)
	pg.add("", "## Result Summary Table", "")
	summaryIndex := len(pg.lines)
	pg.add("")

	types := g.ComputedTypes()
	magDistPlots := make(map[string][]string)
	for _, t := range types {
		monitoring.Stagef("Processing variability type: %s", t.Name)
		pg.add("## "+t.Name+" Variability", topLink, "")
		pg.add("### "+t.Name+" Variability Methodology", topLink, "")
		pg.add(t.MethodologyLines(counts, len(sites))...)
		pg.add("")

		if g.hasMagDist() {
			files, err := g.magDistSection(ctx, pg, t)
			if err != nil {
				return err
			}
			magDistPlots[t.Prefix] = files
		}

		for _, mag := range g.plotMags {
			if !t.SeparateDistances() || len(dists) == 1 {
				pg.add("### M"+num(mag)+" "+t.Name+" Results", topLink, "")
			}
			for _, d := range distancesFor(t, g.plotDists) {
				if err := g.variabilityLines(ctx, pg, t, mag, d); err != nil {
					return fmt.Errorf("%s M%v: %w", t.Name, mag, err)
				}
				pg.add("")
			}
		}
	}

	summary, err := g.summaryLines(ctx, pg, types, magDistPlots)
	if err != nil {
		return err
	}
	pg.lines = slices.Insert(pg.lines, summaryIndex, summary...)

	toc := append([]string{"## Table Of Contents", ""}, BuildTOC(pg.lines, 2, 4)...)
	pg.lines = slices.Insert(pg.lines, tocIndex, append(toc, "")...)
	return nil
}

func (g *PageGen) summaryLines(ctx context.Context, pg *page, types []variability.Type, magDistPlots map[string][]string) ([]string, error) {
	var lines []string
	if g.hasMagDist() {
		lines = append(lines, "### Mag-Dist Plots", topLink, "")
		table := NewTable().InitNewLine().AddColumn("Type").AddColumn("Notation")
		for _, p := range g.periods {
			table.AddColumn(periodLabel(p) + " Std. Dev.")
		}
		table.FinalizeLine()
		for _, t := range types {
			table.InitNewLine().
				AddColumn("[" + t.Name + "](#" + AnchorName(t.Name+" Variability") + ")").
				AddColumn(t.HTMLSymbol)
			for _, f := range magDistPlots[t.Prefix] {
				table.AddColumn(image("Mag-Dist Plot", f))
			}
			table.FinalizeLine()
		}
		lines = append(lines, table.Build()...)
	}

	for _, mag := range g.plotMags {
		if len(lines) > 0 {
			lines = append(lines, "")
		}
		lines = append(lines, "### M"+num(mag)+" Result Summary Table", topLink, "")
		table := NewTable().InitNewLine().AddColumn("Type").AddColumn("Notation").AddColumn("Distance")
		for _, p := range g.periods {
			table.AddColumn(periodLabel(p) + " Std. Dev.")
		}
		table.FinalizeLine()
		chart := magnitudeChart{Magnitude: mag}
		for _, t := range types {
			for _, d := range distancesFor(t, g.engine.Distances()) {
				sum, err := g.engine.Summary(ctx, t, mag, d, "", g.periods)
				if err != nil {
					return nil, fmt.Errorf("%s M%v summary: %w", t.Name, mag, err)
				}
				dist := g.distanceLabel(d)
				table.InitNewLine().AddColumn(t.Name).AddColumn(t.HTMLSymbol).AddColumn(dist)
				for _, sd := range sum.StdDevs() {
					table.AddColumn(num(sd))
				}
				table.FinalizeLine()
				chart.Series = append(chart.Series, series{Name: t.Symbol + ", " + dist, Values: sum.StdDevs()})
			}
		}
		lines = append(lines, table.Build()...)
		pg.charts = append(pg.charts, chart)
	}
	return lines, nil
}

func image(alt, path string) string {
	return "![" + alt + "](" + ResourcesName + "/" + filepath.Base(path) + ")"
}

func filePrefix(t variability.Type, mag float64, d *float64) string {
	prefix := t.Prefix + "_m" + num(mag)
	if d != nil {
		prefix += "_" + num(*d) + "km"
	}
	return prefix
}

// variabilityLines writes the result table and plots of one type,
// magnitude and distance.
func (g *PageGen) variabilityLines(ctx context.Context, pg *page, t variability.Type, mag float64, d *float64) error {
	multiSite := g.multiSite(t)
	if t.SeparateDistances() && len(g.engine.Distances()) > 1 {
		pg.add("### "+num(*d)+" km M"+num(mag)+" "+t.Name+" Results", topLink, "")
	}

	table := NewTable().InitNewLine()
	if multiSite {
		table.AddColumn("Site")
	}
	for _, p := range g.periods {
		table.AddColumn(periodLabel(p) + " " + t.HTMLSymbol)
		switch {
		case t.StdDevOfMedians && t.VariedSymbolHTML != "":
			table.AddColumn("Mean " + t.VariedSymbolHTML).AddColumn(t.VariedSymbolHTML + " Range")
		case t.StdDevOfMedians:
			table.AddColumn("Mean ln(Value)").AddColumn("ln(Value) Range")
		default:
			table.AddColumn("Total").AddColumn("Mean").AddColumn("Median").AddColumn("Range")
		}
	}
	table.FinalizeLine()

	var rowSites []string
	if multiSite {
		for _, s := range g.engine.Sites() {
			rowSites = append(rowSites, s.Name)
		}
	}
	rowSites = append(rowSites, "")

	var total *variability.Summary
	var siteSums []*variability.Summary
	var siteSeries []series
	for _, site := range rowSites {
		sum, err := g.engine.Summary(ctx, t, mag, d, site, g.periods)
		if err != nil {
			return err
		}
		table.InitNewLine()
		em := ""
		if multiSite {
			if site == "" {
				table.AddColumn("**ALL SITES**")
				em = "**"
			} else {
				table.AddColumn(site)
			}
		}
		for _, ps := range sum.Periods {
			if !t.StdDevOfMedians {
				table.AddColumn("")
			}
			table.AddColumn(em + num(ps.StdDev) + em).AddColumn(em + num(ps.Mean) + em)
			if !t.StdDevOfMedians {
				table.AddColumn(em + num(ps.Median) + em)
			}
			table.AddColumn(em + "[" + num(ps.Min) + " " + num(ps.Max) + "]" + em)
		}
		table.FinalizeLine()
		if site == "" {
			total = sum
		} else {
			siteSums = append(siteSums, sum)
			siteSeries = append(siteSeries, series{Name: site, Values: sum.StdDevs()})
		}
	}

	prefix := filePrefix(t, mag, d)
	stdDevPNG := pg.resource(prefix + "_std_dev.png")
	if err := plotStdDevs(g.fsys, stdDevPNG, t.Name+" ("+t.Symbol+")", g.periods, siteSeries,
		series{Name: "Total", Values: total.StdDevs()}); err != nil {
		return err
	}
	pg.add(image(t.Name+" Variability", stdDevPNG), "")
	pg.add(table.Build()...)
	pg.add("")

	if !t.StdDevOfMedians {
		table = NewTable().InitNewLine()
		for _, p := range g.periods {
			table.AddColumn(periodLabel(p))
		}
		table.FinalizeLine().InitNewLine()
		for p, period := range g.periods {
			png := pg.resource(prefix + "_" + periodLabel(period) + "_hist.png")
			siteNames := make([]string, len(siteSums))
			siteTotals := make([]float64, len(siteSums))
			for i, s := range siteSums {
				siteNames[i] = s.Site
				siteTotals[i] = s.Periods[p].StdDev
			}
			if err := plotStdDevHistogram(g.fsys, png, periodLabel(period)+" "+t.Name+" ("+t.Symbol+")",
				total.Periods[p].GroupStdDevs, total.Periods[p].StdDev, siteNames, siteTotals); err != nil {
				return err
			}
			table.AddColumn(image(periodLabel(period), png))
		}
		table.FinalizeLine()
		wrap := 2
		if len(g.periods) > 4 {
			wrap = 3
		}
		pg.add(table.Wrap(wrap, 0).Build()...)
		pg.add("")
	}

	if len(t.Scatters) > 0 {
		if err := g.scatterLines(ctx, pg, t, mag, d); err != nil {
			return err
		}
	}
	return nil
}

// scatterValue is the x value of a group in a disaggregation scatter.
// Azimuths that vary within the group count as zero.
func (g *PageGen) scatterValue(ctx context.Context, q variability.ScatterQuantity, c rotation.CommonSpec) (float64, error) {
	switch q {
	case variability.ScatterVprop:
		if c.EventID < 0 {
			return 0, fmt.Errorf("%w: rupture velocity needs groups with a single event", variability.ErrInconsistent)
		}
		return g.vprops.Get(ctx, eventKey(c.EventID))
	case variability.ScatterSourceAz:
		if c.SourceAz == nil {
			return 0, nil
		}
		return *c.SourceAz, nil
	case variability.ScatterSiteToSourceAz:
		if c.SiteToSourceAz == nil {
			return 0, nil
		}
		return *c.SiteToSourceAz, nil
	}
	return 0, fmt.Errorf("unknown scatter quantity %d", q)
}

func (g *PageGen) scatterLines(ctx context.Context, pg *page, t variability.Type, mag float64, d *float64) error {
	r, err := g.engine.Result(ctx, g.engine.Key(t, mag, d, "", g.periods))
	if err != nil {
		return err
	}
	prefix := filePrefix(t, mag, d) + "_scatter_"
	for _, q := range t.Scatters {
		monitoring.Logf("Plotting %s scatter of %d groups", q.Name(), len(r.Common))
		xs := make([]float64, len(r.Common))
		for i, c := range r.Common {
			if xs[i], err = g.scatterValue(ctx, q, c); err != nil {
				return fmt.Errorf("%s scatter: %w", q.Name(), err)
			}
		}

		table := NewTable().InitNewLine()
		for _, p := range g.periods {
			table.AddColumn(periodLabel(p))
		}
		table.FinalizeLine()

		if !t.StdDevOfMedians {
			table.InitNewLine()
			for p, period := range g.periods {
				png := pg.resource(prefix + q.Prefix() + "_" + periodLabel(period) + "_std_dev.png")
				if err := plotScatter(g.fsys, png, periodLabel(period)+" "+q.Name()+" Scatter", q.Name(),
					"Standard Deviation", xs, r.ResidualStdDevs[p].StdDevs, false); err != nil {
					return err
				}
				table.AddColumn(image("Scatter", png))
			}
			table.FinalizeLine()
		}

		table.InitNewLine()
		for p, period := range g.periods {
			medians := r.MedianStdDevs[p].Medians
			ys := make([]float64, len(medians))
			for i, m := range medians {
				ys[i] = math.Exp(m)
			}
			png := pg.resource(prefix + q.Prefix() + "_" + periodLabel(period) + "_median.png")
			if err := plotScatter(g.fsys, png, periodLabel(period)+" "+q.Name()+" Scatter", q.Name(),
				"Median SA", xs, ys, true); err != nil {
				return err
			}
			table.AddColumn(image("Scatter", png))
		}
		table.FinalizeLine()
		pg.add(table.Build()...)
		pg.add("")
	}
	return nil
}

type magDistKind int

const (
	simStdDev magDistKind = iota
	gmpeStdDev
	simGMPEDiff
	simMedian
)

func (k magDistKind) name() string {
	return [...]string{"Simulated", "GMPE", "Simulated - GMPE", "Sim Median SA"}[k]
}

func (k magDistKind) prefix() string {
	return [...]string{"sim", "gmpe", "sim_gmpe_diff", "sim_median"}[k]
}

// colorMap returns the palette, value range and colour bar label of a plot
// kind.
func (k magDistKind) colorMap(t variability.Type) (cm palette.ColorMap, lo, hi float64, label string) {
	switch k {
	case gmpeStdDev:
		return moreland.Kindlmann(), 0, 1, k.name() + " " + t.GMPEStdDev.Symbol()
	case simGMPEDiff:
		return moreland.SmoothBlueRed(), -0.5, 0.5, k.name() + " " + t.Symbol
	case simMedian:
		return moreland.Kindlmann(), -4, 0, "Log10 " + k.name()
	}
	return moreland.Kindlmann(), 0, 1, k.name() + " " + t.Symbol
}

func gmpeStdDevOf(t variability.Type, r *gmpe.Result, p int) float64 {
	switch t.GMPEStdDev {
	case variability.GMPEPhi:
		return r.MedianPhi[p]
	case variability.GMPETau:
		return r.MedianTau[p]
	case variability.GMPETotal:
		return r.MedianTotal[p]
	}
	return math.NaN()
}

// magDistSection writes the mag-distance checkerboards of a type and
// returns the simulated std dev plots of every period.
func (g *PageGen) magDistSection(ctx context.Context, pg *page, t variability.Type) ([]string, error) {
	monitoring.Stagef("Plotting Mag-Dist for %s", t.Name)
	pg.add("### "+t.Name+" Variability Mag-Distance Plots", topLink, "")
	if g.multiSite(t) {
		pg.add("#### "+t.Name+" Site-Specific Variability Mag-Distance Plots", topLink, "")
		table := NewTable().InitNewLine().AddColumn("Site")
		for _, p := range g.periods {
			table.AddColumn(periodLabel(p))
		}
		table.FinalizeLine()
		for _, s := range g.engine.Sites() {
			files, err := g.plotMagDistSet(ctx, pg, t.Prefix+"_"+fileSafe(s.Name)+"_mag_dist_std_dev", t, s.Name)
			if err != nil {
				return nil, err
			}
			table.InitNewLine().AddColumn("**" + s.Name + "**")
			for _, f := range files[simStdDev] {
				table.AddColumn(image("Mag-Dist Plot", f))
			}
			table.FinalizeLine()
		}
		pg.add(table.Build()...)
		pg.add("", "#### "+t.Name+" Total Variability Mag-Distance Plots", topLink, "")
	}

	files, err := g.plotMagDistSet(ctx, pg, t.Prefix+"_mag_dist_std_dev", t, "")
	if err != nil {
		return nil, err
	}
	table := NewTable().InitNewLine()
	multiKind := len(files) > 1
	if multiKind {
		table.AddColumn("Plot Type")
	}
	for _, p := range g.periods {
		table.AddColumn(periodLabel(p))
	}
	table.FinalizeLine()
	for _, k := range []magDistKind{simStdDev, gmpeStdDev, simGMPEDiff, simMedian} {
		if _, ok := files[k]; !ok {
			continue
		}
		table.InitNewLine()
		if multiKind {
			table.AddColumn("**" + k.name() + "**")
		}
		for _, f := range files[k] {
			table.AddColumn(image("Mag-Dist Plot", f))
		}
		table.FinalizeLine()
	}
	pg.add(table.Build()...)
	pg.add("")
	return files[simStdDev], nil
}

// plotMagDistSet plots every magnitude and distance of a type for one site
// ("" for all sites). Per-site sets only plot the simulated std dev.
func (g *PageGen) plotMagDistSet(ctx context.Context, pg *page, prefix string, t variability.Type, site string) (map[magDistKind][]string, error) {
	mags := g.engine.Magnitudes()
	dists := g.engine.Distances()

	kinds := []magDistKind{simStdDev}
	withGMPE := false
	if site == "" {
		if g.comparator != nil && len(g.comparator.Models()) > 0 && t.GMPEStdDev != variability.GMPENone {
			kinds = append(kinds, gmpeStdDev, simGMPEDiff)
			withGMPE = true
		}
		kinds = append(kinds, simMedian)
	}
	grids := make(map[magDistKind][]*magDistGrid, len(kinds))
	for _, k := range kinds {
		grids[k] = make([]*magDistGrid, len(g.periods))
		for p := range g.periods {
			grids[k][p] = newMagDistGrid(dists, mags)
		}
	}

	for di := range dists {
		d := dists[di]
		for mi, mag := range mags {
			r, err := g.engine.Result(ctx, g.engine.Key(t, mag, &d, site, g.periods))
			if err != nil {
				return nil, fmt.Errorf("%s M%v %vkm: %w", t.Name, mag, d, err)
			}
			var gm *gmpe.Result
			if withGMPE {
				if gm, err = g.gmpeResult(ctx, site, mag, d); err != nil {
					return nil, err
				}
			}
			for p := range g.periods {
				sim := r.StdDev(p, t.StdDevOfMedians)
				for _, k := range kinds {
					var v float64
					switch k {
					case simStdDev:
						v = sim
					case gmpeStdDev:
						v = gmpeStdDevOf(t, gm, p)
					case simGMPEDiff:
						v = sim - gmpeStdDevOf(t, gm, p)
					case simMedian:
						v = math.Log10(math.Exp(r.LogValues[p].Median))
					}
					grids[k][p].set(di, mi, v)
				}
			}
		}
	}

	xLabel := "Distance"
	if g.cfg.GetDistanceJB() {
		xLabel = "DistanceJB"
	}
	out := make(map[magDistKind][]string, len(kinds))
	for _, k := range kinds {
		for p, period := range g.periods {
			cm, lo, hi, zLabel := k.colorMap(t)
			png := pg.resource(prefix + "_" + periodLabel(period) + "_" + k.prefix() + ".png")
			title := periodLabel(period) + " " + t.Name + " (" + t.Symbol + "), " + k.name()
			if err := plotMagDist(g.fsys, png, title, xLabel, zLabel, grids[k][p], cm, lo, hi); err != nil {
				return nil, err
			}
			out[k] = append(out[k], png)
		}
	}
	return out, nil
}
