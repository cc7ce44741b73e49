package gmpe

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/banshee-data/rotvar/internal/cache"
	"github.com/banshee-data/rotvar/internal/monitoring"
	"github.com/banshee-data/rotvar/internal/rotation"
	"github.com/banshee-data/rotvar/internal/stats"
)

// GroupingKey identifies one cached GMPE comparison. An empty Site means
// every site.
type GroupingKey struct {
	Model     string
	Site      string
	Magnitude float64
	Distance  float64
	Periods   []float64
}

// CacheKey renders the canonical form of the key.
func (k GroupingKey) CacheKey() string {
	var b strings.Builder
	b.WriteString(k.Model)
	b.WriteString("|site=")
	b.WriteString(strconv.Quote(k.Site))
	fmt.Fprintf(&b, "|m=%s|d=%s|p=", fmtFloat(k.Magnitude), fmtFloat(k.Distance))
	for i, p := range k.Periods {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(fmtFloat(p))
	}
	return b.String()
}

func fmtFloat(v float64) string { return strconv.FormatFloat(v, 'g', -1, 64) }

type eventKey int

func (k eventKey) CacheKey() string { return strconv.Itoa(int(k)) }

// Result holds GMPE predictions (GroundMotions[period][sample]) and their
// per-period medians. Samples are every event crossed with every source
// azimuth, site after site for an all-sites result.
type Result struct {
	GroundMotions [][]GroundMotion
	LogMedian     []float64
	MedianPhi     []float64
	MedianTau     []float64
	MedianTotal   []float64
}

func newResult(gms [][]GroundMotion) *Result {
	r := &Result{
		GroundMotions: gms,
		LogMedian:     make([]float64, len(gms)),
		MedianPhi:     make([]float64, len(gms)),
		MedianTau:     make([]float64, len(gms)),
		MedianTotal:   make([]float64, len(gms)),
	}
	for p, samples := range gms {
		means := make([]float64, len(samples))
		phis := make([]float64, len(samples))
		taus := make([]float64, len(samples))
		totals := make([]float64, len(samples))
		for i, gm := range samples {
			means[i] = gm.Mean
			phis[i] = gm.Phi
			taus[i] = gm.Tau
			totals[i] = gm.StdDev
		}
		r.LogMedian[p] = stats.MustMedian(means)
		r.MedianPhi[p] = stats.MustMedian(phis)
		r.MedianTau[p] = stats.MustMedian(taus)
		r.MedianTotal[p] = stats.MustMedian(totals)
	}
	return r
}

// Pack concatenates the samples of several results, period by period. It
// combines per-site results, or the predictions of several GMPEs.
func Pack(results []*Result) (*Result, error) {
	if len(results) == 0 {
		return nil, fmt.Errorf("no results to pack")
	}
	if len(results) == 1 {
		return results[0], nil
	}
	numPeriods := len(results[0].GroundMotions)
	gms := make([][]GroundMotion, numPeriods)
	for _, r := range results {
		if len(r.GroundMotions) != numPeriods {
			return nil, fmt.Errorf("cannot pack results with %d and %d periods", numPeriods, len(r.GroundMotions))
		}
		for p := range numPeriods {
			if len(r.GroundMotions[p]) != len(results[0].GroundMotions[p]) {
				return nil, fmt.Errorf("cannot pack results with %d and %d samples",
					len(results[0].GroundMotions[p]), len(r.GroundMotions[p]))
			}
			gms[p] = append(gms[p], r.GroundMotions[p]...)
		}
	}
	return newResult(gms), nil
}

// Comparator evaluates GMPEs over the same events, sites, distances and
// source azimuths as the simulations. It is safe for concurrent use.
type Comparator struct {
	scenario   Scenario
	distanceJB bool
	models     []Model
	byName     map[string]Model

	ruptures *cache.Loading[eventKey, Rupture]
	results  *cache.Loading[GroupingKey, *Result]
}

// NewComparator builds a comparator. With distanceJB set, simulation
// distances are Joyner-Boore distances; otherwise they are rupture distances.
func NewComparator(scenario Scenario, src RuptureSource, distanceJB bool, models ...Model) (*Comparator, error) {
	if len(scenario.Sites()) == 0 {
		return nil, fmt.Errorf("comparator needs at least one site")
	}
	c := &Comparator{
		scenario:   scenario,
		distanceJB: distanceJB,
		models:     models,
		byName:     make(map[string]Model, len(models)),
	}
	for _, m := range models {
		if _, dup := c.byName[m.Name()]; dup {
			return nil, fmt.Errorf("duplicate GMPE %q", m.Name())
		}
		c.byName[m.Name()] = m
	}
	c.ruptures = cache.NewLoading(func(ctx context.Context, id eventKey) (Rupture, error) {
		return src.Rupture(ctx, int(id))
	})
	c.results = cache.NewLoading(c.calc)
	return c, nil
}

// Models returns the configured GMPEs.
func (c *Comparator) Models() []Model { return c.models }

// Key builds the grouping key of a comparison. An empty site with exactly one
// configured site is normalised to that site.
func (c *Comparator) Key(model Model, site string, mag, distance float64, periods []float64) GroupingKey {
	if sites := c.scenario.Sites(); site == "" && len(sites) == 1 {
		site = sites[0].Name
	}
	return GroupingKey{Model: model.Name(), Site: site, Magnitude: mag, Distance: distance, Periods: periods}
}

// Result returns the GMPE comparison for a site ("" for all sites),
// magnitude and distance, computing it at most once.
func (c *Comparator) Result(ctx context.Context, model Model, site string, mag, distance float64, periods []float64) (*Result, error) {
	if _, ok := c.byName[model.Name()]; !ok {
		return nil, fmt.Errorf("GMPE %q is not configured", model.Name())
	}
	return c.results.Get(ctx, c.Key(model, site, mag, distance, periods))
}

func (c *Comparator) calc(ctx context.Context, key GroupingKey) (*Result, error) {
	sites := c.scenario.Sites()
	if key.Site == "" && len(sites) > 1 {
		results := make([]*Result, len(sites))
		for i, s := range sites {
			siteKey := key
			siteKey.Site = s.Name
			r, err := c.results.Get(ctx, siteKey)
			if err != nil {
				return nil, err
			}
			results[i] = r
		}
		return Pack(results)
	}

	var site rotation.SiteInfo
	if key.Site == "" {
		site = sites[0]
	} else {
		found := false
		for _, s := range sites {
			if s.Name == key.Site {
				site, found = s, true
				break
			}
		}
		if !found {
			return nil, fmt.Errorf("unknown site %q", key.Site)
		}
	}

	model := c.byName[key.Model]
	eventIDs := c.scenario.EventIDs(key.Magnitude)
	if len(eventIDs) == 0 {
		return nil, fmt.Errorf("no events for M%v", key.Magnitude)
	}
	azimuths := c.scenario.SourceAzimuths()
	monitoring.Logf("Computing %s for site %s, M%v, %vkm (%d events x %d azimuths)",
		key.Model, site.Name, key.Magnitude, key.Distance, len(eventIDs), len(azimuths))

	gms := make([][]GroundMotion, len(key.Periods))
	for p := range gms {
		gms[p] = make([]GroundMotion, 0, len(eventIDs)*len(azimuths))
	}
	for _, id := range eventIDs {
		rup, err := c.ruptures.Get(ctx, eventKey(id))
		if err != nil {
			return nil, fmt.Errorf("GMPE rupture for event %d: %w", id, err)
		}
		rJB, rRup := Distances(key.Distance, rup.TopDepth, c.distanceJB)
		for _, az := range azimuths {
			params := Params{
				Site:        site,
				Rupture:     rup,
				DistanceJB:  rJB,
				DistanceRup: rRup,
				DistanceX:   DistanceX(rJB, az),
			}
			for p, period := range key.Periods {
				params.Period = period
				gm, err := model.GroundMotion(params)
				if err != nil {
					return nil, fmt.Errorf("%s at %vs: %w", key.Model, period, err)
				}
				gms[p] = append(gms[p], gm)
			}
		}
	}
	return newResult(gms), nil
}

// Distances converts a simulation distance into Joyner-Boore and rupture
// distances for a rupture whose top is at depth zTOR.
func Distances(distance, zTOR float64, distanceJB bool) (rJB, rRup float64) {
	if distanceJB {
		rJB = distance
		if zTOR == 0 {
			return rJB, rJB
		}
		return rJB, math.Sqrt(zTOR*zTOR + rJB*rJB)
	}
	rRup = distance
	if zTOR == 0 {
		return rRup, rRup
	}
	return math.Sqrt(rRup*rRup - zTOR*zTOR), rRup
}

// DistanceX returns the horizontal distance from the rupture trace for a
// source azimuth in degrees. Azimuths past 180 are negated after the sine,
// so they keep the sign convention of existing comparisons.
func DistanceX(rJB, sourceAz float64) float64 {
	rX := rJB * math.Sin(sourceAz*math.Pi/180)
	if sourceAz > 180 {
		rX = -rX
	}
	return rX
}
