package event

import (
	"fmt"
	"math"
	"sync"

	"github.com/banshee-data/rotvar/internal/stats"
)

// EarthRadiusMean is the mean Earth radius in km.
const EarthRadiusMean = 6371.0072

// LinearDistance returns the approximate straight-line distance in km between
// two locations, using an equirectangular horizontal distance. It is accurate
// for the element spacings found within a single rupture.
func LinearDistance(a, b Location) float64 {
	lat1 := a.Latitude * math.Pi / 180
	lat2 := b.Latitude * math.Pi / 180
	dLat := lat1 - lat2
	dLon := (a.Longitude - b.Longitude) * math.Pi / 180 * math.Cos((lat1+lat2)*0.5)
	h := EarthRadiusMean * math.Sqrt(dLat*dLat+dLon*dLon)
	v := b.Depth - a.Depth
	return math.Sqrt(h*h + v*v)
}

type idPair struct{ lo, hi int }

func pairOf(a, b int) idPair {
	if a > b {
		a, b = b, a
	}
	return idPair{a, b}
}

// VpropCalculator computes rupture propagation velocities. Element-to-element
// distances are memoised by unordered element ID pair and shared across
// events; the calculator is safe for concurrent use.
type VpropCalculator struct {
	mu    sync.Mutex
	dists map[idPair]float64
}

// NewVpropCalculator returns a calculator with an empty distance cache.
func NewVpropCalculator() *VpropCalculator {
	return &VpropCalculator{dists: make(map[idPair]float64)}
}

func (c *VpropCalculator) distance(a, b Element) float64 {
	key := pairOf(a.ID, b.ID)
	c.mu.Lock()
	defer c.mu.Unlock()
	if d, ok := c.dists[key]; ok {
		return d
	}
	d := LinearDistance(a.Center, b.Center)
	c.dists[key] = d
	return d
}

// CachedPairs returns the number of memoised element distances.
func (c *VpropCalculator) CachedPairs() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.dists)
}

// Vprop returns the median apparent rupture velocity (km/s) of an event: for
// every element other than the hypocentre (the earliest slipping element),
// its distance from the hypocentre divided by its delay in first slip.
// Elements that slip at the same instant as the hypocentre are ignored.
func (c *VpropCalculator) Vprop(e *Event) (float64, error) {
	minTime := math.Inf(1)
	var hypo *Element
	for r := range e.Records {
		rec := &e.Records[r]
		if err := checkTiming(e.ID, rec); err != nil {
			return 0, err
		}
		for i := range rec.Elements {
			if rec.FirstSlipTimes[i] < minTime {
				minTime = rec.FirstSlipTimes[i]
				hypo = &rec.Elements[i]
			}
		}
	}
	if hypo == nil {
		return 0, fmt.Errorf("event %d has no elements", e.ID)
	}

	var vels []float64
	for _, rec := range e.Records {
		for i, elem := range rec.Elements {
			if elem.ID == hypo.ID {
				continue
			}
			dt := rec.FirstSlipTimes[i] - minTime
			if dt == 0 {
				continue
			}
			vels = append(vels, c.distance(*hypo, elem)/dt)
		}
	}
	if len(vels) == 0 {
		return 0, fmt.Errorf("event %d: no delayed elements to estimate rupture velocity", e.ID)
	}
	return stats.Median(vels)
}

func checkTiming(eventID int, rec *Record) error {
	if rec.FirstSlipTimes == nil {
		return fmt.Errorf("event %d: %w", eventID, ErrMissingTiming)
	}
	if len(rec.FirstSlipTimes) != len(rec.Elements) {
		return fmt.Errorf("event %d: %d slip times for %d elements", eventID, len(rec.FirstSlipTimes), len(rec.Elements))
	}
	return nil
}
