package variability

import (
	"context"

	"github.com/banshee-data/rotvar/internal/stats"
)

// PeriodSummary is the report-ready aggregate of one period.
type PeriodSummary struct {
	Period float64
	// StdDev is the headline value: the std dev of medians for
	// std-dev-of-medians types, otherwise the pooled residual std dev.
	StdDev float64
	// Mean, Median, Min and Max describe the per-group std devs, or the
	// group medians for std-dev-of-medians types.
	Mean   float64
	Median float64
	Min    float64
	Max    float64

	GroupStdDevs []float64 // nil for std-dev-of-medians types
	Medians      []float64
	Residuals    []float64
}

// Summary is the report row of one (type, magnitude, distance, site).
type Summary struct {
	Type      Type
	Magnitude float64
	Distance  *float64
	Site      string
	Periods   []PeriodSummary
}

// StdDevs returns the headline std dev of every period.
func (s *Summary) StdDevs() []float64 {
	out := make([]float64, len(s.Periods))
	for i, p := range s.Periods {
		out[i] = p.StdDev
	}
	return out
}

// Summary computes (or fetches) the result of a type and reduces it to
// report-ready values.
func (e *Engine) Summary(ctx context.Context, t Type, mag float64, distance *float64, site string, periods []float64) (*Summary, error) {
	key := e.Key(t, mag, distance, site, periods)
	r, err := e.Result(ctx, key)
	if err != nil {
		return nil, err
	}
	s := &Summary{Type: t, Magnitude: mag, Distance: key.Distance, Site: key.Site, Periods: make([]PeriodSummary, len(periods))}
	for p, period := range periods {
		ps := PeriodSummary{
			Period:    period,
			StdDev:    r.StdDev(p, t.StdDevOfMedians),
			Medians:   r.MedianStdDevs[p].Medians,
			Residuals: r.LogValues[p].Residuals,
		}
		if t.StdDevOfMedians {
			m := r.MedianStdDevs[p]
			ps.Mean = m.MeanMedian
			ps.Median = stats.MustMedian(m.Medians)
			ps.Min = m.MinMedian
			ps.Max = m.MaxMedian
		} else {
			rs := r.ResidualStdDevs[p]
			ps.Mean = rs.Mean
			ps.Median = rs.Median
			ps.Min = rs.Min
			ps.Max = rs.Max
			ps.GroupStdDevs = rs.StdDevs
		}
		s.Periods[p] = ps
	}
	return s, nil
}
