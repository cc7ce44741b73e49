// Package spectrum holds response spectra: spectral acceleration as a
// function of oscillator period.
package spectrum

import (
	"errors"
	"fmt"
	"sort"

	"gonum.org/v1/gonum/interp"
)

// ErrOutOfRange is returned when a period lies outside a spectrum's domain.
var ErrOutOfRange = errors.New("period outside spectrum range")

// Point is one (period, spectral acceleration) sample.
type Point struct {
	Period float64
	SA     float64
}

// Func is an arbitrarily discretized spectrum, sorted by period.
type Func struct {
	Name   string
	points []Point
	pl     *interp.PiecewiseLinear
}

// New builds a spectrum from unsorted points. Periods must be unique.
func New(name string, points []Point) (*Func, error) {
	if len(points) == 0 {
		return nil, errors.New("spectrum has no points")
	}
	sorted := make([]Point, len(points))
	copy(sorted, points)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Period < sorted[j].Period })
	for i := 1; i < len(sorted); i++ {
		if sorted[i].Period == sorted[i-1].Period {
			return nil, fmt.Errorf("duplicate period %g in spectrum %q", sorted[i].Period, name)
		}
	}

	f := &Func{Name: name, points: sorted}
	if len(sorted) > 1 {
		xs := make([]float64, len(sorted))
		ys := make([]float64, len(sorted))
		for i, p := range sorted {
			xs[i] = p.Period
			ys[i] = p.SA
		}
		f.pl = &interp.PiecewiseLinear{}
		if err := f.pl.Fit(xs, ys); err != nil {
			return nil, fmt.Errorf("fit spectrum %q: %w", name, err)
		}
	}
	return f, nil
}

// Len returns the number of tabulated periods.
func (f *Func) Len() int { return len(f.points) }

// Points returns a copy of the tabulated samples.
func (f *Func) Points() []Point {
	out := make([]Point, len(f.points))
	copy(out, f.points)
	return out
}

// MinPeriod returns the shortest tabulated period.
func (f *Func) MinPeriod() float64 { return f.points[0].Period }

// MaxPeriod returns the longest tabulated period.
func (f *Func) MaxPeriod() float64 { return f.points[len(f.points)-1].Period }

// InterpolatedSA returns the spectral acceleration at period, linearly
// interpolated between tabulated periods. Periods outside the tabulated range
// are an error rather than an extrapolation.
func (f *Func) InterpolatedSA(period float64) (float64, error) {
	if period < f.MinPeriod() || period > f.MaxPeriod() {
		return 0, fmt.Errorf("%w: %g not in [%g, %g]", ErrOutOfRange, period, f.MinPeriod(), f.MaxPeriod())
	}
	if f.pl == nil {
		return f.points[0].SA, nil
	}
	return f.pl.Predict(period), nil
}
