// Package stats provides the descriptive statistics used throughout the
// variability pipeline.
//
// All spreads are population (divide by n) statistics.
package stats

import (
	"errors"
	"math"

	mstats "github.com/montanaflynn/stats"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// VarianceTolerance is how far below zero a computed variance may fall
// (floating-point noise) before it is treated as an inconsistency.
const VarianceTolerance = 1e-10

// ErrEmpty is returned when a statistic is requested for no values.
var ErrEmpty = errors.New("stats: empty input")

// ErrNegativeVariance is returned when a variance is negative beyond
// VarianceTolerance.
var ErrNegativeVariance = errors.New("stats: negative variance")

// Median returns the median of xs. For an even count it is the midpoint of
// the two central values. xs is not modified.
func Median(xs []float64) (float64, error) {
	if len(xs) == 0 {
		return math.NaN(), ErrEmpty
	}
	m, err := mstats.Median(mstats.Float64Data(xs))
	if err != nil {
		return math.NaN(), err
	}
	return m, nil
}

// MustMedian is Median for inputs already known to be non-empty; it returns
// NaN for empty input.
func MustMedian(xs []float64) float64 {
	m, _ := Median(xs)
	return m
}

// Mean returns the arithmetic mean, NaN for empty input.
func Mean(xs []float64) float64 {
	if len(xs) == 0 {
		return math.NaN()
	}
	return stat.Mean(xs, nil)
}

// Min returns the smallest value, NaN for empty input.
func Min(xs []float64) float64 {
	if len(xs) == 0 {
		return math.NaN()
	}
	return floats.Min(xs)
}

// Max returns the largest value, NaN for empty input.
func Max(xs []float64) float64 {
	if len(xs) == 0 {
		return math.NaN()
	}
	return floats.Max(xs)
}

// PopStdDev returns the population standard deviation of xs about its mean.
// Slightly negative variances from rounding are clamped to zero; anything
// beyond VarianceTolerance is reported as ErrNegativeVariance.
func PopStdDev(xs []float64) (float64, error) {
	if len(xs) == 0 {
		return math.NaN(), ErrEmpty
	}
	return clampedSqrt(stat.PopVariance(xs, nil))
}

// PopStdDevAbout returns sqrt(sum((x-center)^2)/n), the population spread of
// xs about a fixed center rather than about their mean.
func PopStdDevAbout(xs []float64, center float64) (float64, error) {
	if len(xs) == 0 {
		return math.NaN(), ErrEmpty
	}
	return clampedSqrt(stat.MomentAbout(2, xs, center, nil))
}

func clampedSqrt(variance float64) (float64, error) {
	if variance < 0 {
		if variance <= -VarianceTolerance {
			return math.NaN(), ErrNegativeVariance
		}
		variance = 0
	}
	return math.Sqrt(variance), nil
}
