// Package variability computes ground-motion variability statistics from a
// population of simulated rupture rotations.
package variability

import (
	"context"
	"fmt"
	"math"
	"slices"
	"sort"

	"github.com/banshee-data/rotvar/internal/cache"
	"github.com/banshee-data/rotvar/internal/monitoring"
	"github.com/banshee-data/rotvar/internal/rotation"
	"github.com/banshee-data/rotvar/internal/spectrum"
)

// spectrumComponent is the horizontal component used for every residual.
const spectrumComponent = 0

// SpectrumProvider returns the simulated response spectrum of one rotation.
type SpectrumProvider interface {
	Spectrum(ctx context.Context, rot rotation.RotationSpec, component int) (*spectrum.Func, error)
}

// Engine computes and caches variability results for a set of magnitudes.
// It is safe for concurrent use.
type Engine struct {
	configs   map[float64]*rotation.Config
	providers map[float64]SpectrumProvider
	mags      []float64
	ref       *rotation.Config

	results *cache.Loading[GroupingKey, *Result]
}

// NewEngine checks that every magnitude shares the same sites and distances
// and the same number of source and site-to-source azimuths, and that each
// magnitude has a spectrum provider. Event IDs may differ by magnitude.
func NewEngine(configs map[float64]*rotation.Config, providers map[float64]SpectrumProvider) (*Engine, error) {
	if len(configs) == 0 {
		return nil, fmt.Errorf("%w: no magnitude configurations", ErrConfig)
	}
	e := &Engine{configs: configs, providers: providers}
	for mag := range configs {
		e.mags = append(e.mags, mag)
	}
	sort.Float64s(e.mags)
	e.ref = configs[e.mags[0]]

	refSites := siteNames(e.ref.Sites())
	for _, mag := range e.mags {
		cfg := configs[mag]
		if cfg == nil {
			return nil, fmt.Errorf("%w: nil configuration for M%v", ErrConfig, mag)
		}
		if providers[mag] == nil {
			return nil, fmt.Errorf("%w: no spectrum provider for M%v", ErrConfig, mag)
		}
		if !slices.Equal(siteNames(cfg.Sites()), refSites) {
			return nil, fmt.Errorf("%w: sites for M%v differ from M%v", ErrConfig, mag, e.mags[0])
		}
		if !slices.Equal(cfg.Distances(), e.ref.Distances()) {
			return nil, fmt.Errorf("%w: distances for M%v differ from M%v", ErrConfig, mag, e.mags[0])
		}
		if len(cfg.SourceAzimuths()) != len(e.ref.SourceAzimuths()) {
			return nil, fmt.Errorf("%w: source azimuth count for M%v differs from M%v", ErrConfig, mag, e.mags[0])
		}
		if len(cfg.SiteToSourceAzimuths()) != len(e.ref.SiteToSourceAzimuths()) {
			return nil, fmt.Errorf("%w: site-to-source azimuth count for M%v differs from M%v", ErrConfig, mag, e.mags[0])
		}
	}
	e.results = cache.NewLoading(e.calcResult)
	return e, nil
}

func siteNames(sites []rotation.SiteInfo) []string {
	out := make([]string, len(sites))
	for i, s := range sites {
		out[i] = s.Name
	}
	return out
}

// Magnitudes returns the configured magnitudes in ascending order.
func (e *Engine) Magnitudes() []float64 { return slices.Clone(e.mags) }

// Config returns the rotation configuration of a magnitude.
func (e *Engine) Config(mag float64) (*rotation.Config, bool) {
	cfg, ok := e.configs[mag]
	return cfg, ok
}

// Sites returns the sites shared by every magnitude.
func (e *Engine) Sites() []rotation.SiteInfo { return e.ref.Sites() }

// Distances returns the distances shared by every magnitude.
func (e *Engine) Distances() []float64 { return e.ref.Distances() }

// SourceAzimuths returns the source azimuths of the lowest magnitude.
func (e *Engine) SourceAzimuths() []float64 { return e.ref.SourceAzimuths() }

// SiteToSourceAzimuths returns the site-to-source azimuths of the lowest magnitude.
func (e *Engine) SiteToSourceAzimuths() []float64 { return e.ref.SiteToSourceAzimuths() }

// EventIDs returns the event IDs of a magnitude. With a single magnitude
// its events are returned for any requested magnitude.
func (e *Engine) EventIDs(mag float64) []int {
	if len(e.mags) == 1 {
		return e.ref.EventIDs()
	}
	if cfg, ok := e.configs[mag]; ok {
		return cfg.EventIDs()
	}
	return nil
}

// Counts returns the number of unique values of every quantity, taken from
// the lowest magnitude.
func (e *Engine) Counts() map[rotation.Quantity]int { return e.ref.Counts() }

// EventCountRange returns the fewest and most events of any magnitude.
func (e *Engine) EventCountRange() (lo, hi int) {
	lo = math.MaxInt
	for _, mag := range e.mags {
		n := len(e.configs[mag].EventIDs())
		lo = min(lo, n)
		hi = max(hi, n)
	}
	return lo, hi
}

// CachedResults returns how many results are cached, per-site entries
// included.
func (e *Engine) CachedResults() int { return e.results.Len() }

// Key builds the grouping key for a type. An empty site with exactly one
// configured site is normalised to that site, and distance is dropped when
// the type does not separate distances.
func (e *Engine) Key(t Type, mag float64, distance *float64, site string, periods []float64) GroupingKey {
	sites := e.ref.Sites()
	if site == "" && len(sites) == 1 {
		site = sites[0].Name
	}
	if !t.SeparateDistances() {
		distance = nil
	}
	return GroupingKey{
		Separate:  t.Separate,
		Group:     t.Group,
		Magnitude: mag,
		Distance:  distance,
		Site:      site,
		Periods:   periods,
	}
}

// Result returns the variability of a key, computing it at most once.
// Per-site keys of a multi-site family resolve through the all-sites key so
// that each family is computed once and every site result is cached as a
// side effect.
func (e *Engine) Result(ctx context.Context, key GroupingKey) (*Result, error) {
	if key.Site != "" {
		if _, ok := e.ref.Site(key.Site); !ok {
			return nil, fmt.Errorf("%w: unknown site %q", ErrConfig, key.Site)
		}
	}
	if key.SeparateSites() && len(e.ref.Sites()) > 1 && key.Site != "" {
		if r, ok := e.results.GetIfPresent(key); ok {
			return r, nil
		}
		if _, err := e.results.Get(ctx, key.WithSite("")); err != nil {
			return nil, err
		}
		r, ok := e.results.GetIfPresent(key)
		if !ok {
			return nil, fmt.Errorf("%w: all-sites computation did not cache site %q", ErrInconsistent, key.Site)
		}
		return r, nil
	}
	return e.results.Get(ctx, key)
}

func (e *Engine) calcResult(ctx context.Context, key GroupingKey) (*Result, error) {
	if key.SeparateSites() && len(e.ref.Sites()) > 1 {
		if key.Site != "" {
			return nil, fmt.Errorf("%w: site %q requested outside its all-sites family", ErrInconsistent, key.Site)
		}
		return e.combineSites(ctx, key)
	}
	residuals, err := e.loadResiduals(ctx, key)
	if err != nil {
		return nil, err
	}
	return newResult(residuals)
}

// combineSites computes every site of a multi-site family, caches each site
// result and returns the all-sites aggregate. Residual statistics pool all
// residuals; the std dev of medians is the median of the per-site values.
func (e *Engine) combineSites(ctx context.Context, key GroupingKey) (*Result, error) {
	numPeriods := len(key.Periods)
	pooled := make([][]*ResidualSet, numPeriods)
	siteMedians := make([][]MedianStdDevSet, numPeriods)

	for _, site := range e.ref.Sites() {
		siteKey := key.WithSite(site.Name)
		monitoring.Logf("Computing site %s for %s", site.Name, describeKey(key))
		residuals, err := e.loadResiduals(ctx, siteKey)
		if err != nil {
			return nil, fmt.Errorf("site %s: %w", site.Name, err)
		}
		r, err := newResult(residuals)
		if err != nil {
			return nil, fmt.Errorf("site %s: %w", site.Name, err)
		}
		e.results.Put(siteKey, r)
		for p := range numPeriods {
			pooled[p] = append(pooled[p], residuals[p]...)
			siteMedians[p] = append(siteMedians[p], r.MedianStdDevs[p])
		}
	}

	out := &Result{
		LogValues:       make([]LogValueSet, numPeriods),
		ResidualStdDevs: make([]ResidualStdDevSet, numPeriods),
		MedianStdDevs:   make([]MedianStdDevSet, numPeriods),
	}
	for p := range numPeriods {
		out.LogValues[p] = NewLogValueSet(pooled[p])
		var err error
		if out.ResidualStdDevs[p], err = NewResidualStdDevSet(pooled[p]); err != nil {
			return nil, err
		}
		if out.MedianStdDevs[p], err = CombineMedianStdDevs(siteMedians[p]); err != nil {
			return nil, err
		}
	}
	if numPeriods > 0 {
		out.Common = commonSpecs(pooled[0])
	}
	return out, nil
}

// loadResiduals turns a key's separate quantities into constant values and
// computes the grouped residuals.
func (e *Engine) loadResiduals(ctx context.Context, key GroupingKey) ([][]*ResidualSet, error) {
	constValues := make([]any, len(key.Separate))
	for i, q := range key.Separate {
		switch q {
		case rotation.Site:
			site := key.Site
			if site == "" {
				if sites := e.ref.Sites(); len(sites) == 1 {
					site = sites[0].Name
				} else {
					return nil, fmt.Errorf("%w: a site is required to hold %s constant", ErrConfig, q)
				}
			}
			constValues[i] = site
		case rotation.Distance:
			if key.Distance == nil {
				return nil, fmt.Errorf("%w: a distance is required to hold %s constant", ErrConfig, q)
			}
			constValues[i] = *key.Distance
		default:
			return nil, fmt.Errorf("%w: only site and distance can be held constant, not %s", ErrConfig, q)
		}
	}
	return e.calcResiduals(ctx, key.Magnitude, key.Periods, key.Separate, constValues, key.Group)
}

// calcResiduals filters the magnitude's rotations by the constant values,
// partitions the remainder by every group quantity and returns one residual
// set per partition for every period (ret[period][group]).
func (e *Engine) calcResiduals(ctx context.Context, mag float64, periods []float64,
	constQuantities []rotation.Quantity, constValues []any, groupQuantities []rotation.Quantity) ([][]*ResidualSet, error) {
	cfg, ok := e.configs[mag]
	if !ok {
		return nil, fmt.Errorf("%w: no configuration for M%v", ErrConfig, mag)
	}
	if len(periods) == 0 {
		return nil, fmt.Errorf("%w: no periods requested", ErrConfig)
	}
	rotations, err := cfg.RotationsFor(constQuantities, constValues)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfig, err)
	}
	if len(rotations) == 0 {
		return nil, fmt.Errorf("%w: no rotations for M%v with %s = %v", ErrInconsistent, mag,
			rotation.JoinNames(constQuantities), constValues)
	}
	groupQuantities = rotation.Without(groupQuantities, constQuantities)
	monitoring.Logf("Computing residuals for M%v with %d rotations, grouped by [%s]",
		mag, len(rotations), rotation.JoinNames(groupQuantities))

	ret := make([][]*ResidualSet, len(periods))
	g := grouper{cfg: cfg, provider: e.providers[mag], periods: periods, ret: ret}
	if err := g.group(ctx, rotations, groupQuantities, 0); err != nil {
		return nil, err
	}

	for p := range periods {
		var count int
		for _, s := range ret[p] {
			count += s.Size()
		}
		if count != len(rotations) {
			return nil, fmt.Errorf("%w: period %v has %d residuals for %d rotations",
				ErrInconsistent, periods[p], count, len(rotations))
		}
	}
	return ret, nil
}

type grouper struct {
	cfg      *rotation.Config
	provider SpectrumProvider
	periods  []float64
	ret      [][]*ResidualSet
}

func (g *grouper) group(ctx context.Context, rotations []rotation.RotationSpec, quantities []rotation.Quantity, depth int) error {
	if len(rotations) == 0 {
		return fmt.Errorf("%w: empty rotation group", ErrInconsistent)
	}
	if depth > len(rotation.AllQuantities) {
		return fmt.Errorf("%w: grouping recursed deeper than %d quantities", ErrInconsistent, len(rotation.AllQuantities))
	}
	if len(quantities) == 0 {
		return g.leaf(ctx, rotations)
	}
	q, rest := quantities[0], quantities[1:]
	for _, v := range g.cfg.Values(q) {
		sub := rotation.FilterRotations(rotations, []rotation.Quantity{q}, []any{v})
		if err := g.group(ctx, sub, rest, depth+1); err != nil {
			return err
		}
	}
	return nil
}

func (g *grouper) leaf(ctx context.Context, rotations []rotation.RotationSpec) error {
	values := make([][]float64, len(g.periods))
	for p := range values {
		values[p] = make([]float64, len(rotations))
	}
	for i, rot := range rotations {
		if err := ctx.Err(); err != nil {
			return err
		}
		spec, err := g.provider.Spectrum(ctx, rot, spectrumComponent)
		if err != nil {
			return fmt.Errorf("%w: spectrum for rotation %d: %v", ErrMissingData, rot.Index, err)
		}
		for p, period := range g.periods {
			sa, err := spec.InterpolatedSA(period)
			if err != nil {
				return fmt.Errorf("%w: rotation %d at %vs: %v", ErrMissingData, rot.Index, period, err)
			}
			values[p][i] = math.Log(sa)
		}
	}
	for p := range g.periods {
		set, err := NewResidualSet(rotations, values[p])
		if err != nil {
			return fmt.Errorf("period %v: %w", g.periods[p], err)
		}
		g.ret[p] = append(g.ret[p], set)
	}
	return nil
}

func describeKey(k GroupingKey) string {
	s := fmt.Sprintf("M%v", k.Magnitude)
	if k.Distance != nil {
		s += fmt.Sprintf(", %vkm", *k.Distance)
	}
	return s + ", grouped by [" + rotation.JoinNames(k.Group) + "]"
}
