package variability

import (
	"fmt"
	"math"

	"github.com/banshee-data/rotvar/internal/rotation"
	"github.com/banshee-data/rotvar/internal/stats"
)

// ResidualSet holds the natural-log ground motions of one group of rotations
// expressed as residuals about the group median.
type ResidualSet struct {
	Residuals []float64
	Median    float64
	StdDev    float64 // population std dev of Residuals about the median
	Common    rotation.CommonSpec
}

// NewResidualSet centres values (ln ground motions, parallel to rotations)
// on their median. StdDev is the spread about that median, not about the
// residuals' mean. values is not modified.
func NewResidualSet(rotations []rotation.RotationSpec, values []float64) (*ResidualSet, error) {
	if len(values) == 0 {
		return nil, fmt.Errorf("%w: empty residual set", ErrInconsistent)
	}
	if len(rotations) != len(values) {
		return nil, fmt.Errorf("%w: %d rotations for %d values", ErrInconsistent, len(rotations), len(values))
	}
	median, err := stats.Median(values)
	if err != nil || math.IsNaN(median) || math.IsInf(median, 0) {
		return nil, fmt.Errorf("%w: non-finite median: %v", ErrInconsistent, median)
	}
	residuals := make([]float64, len(values))
	for i, v := range values {
		residuals[i] = v - median
	}
	sd, err := stats.PopStdDevAbout(residuals, 0)
	if err != nil {
		return nil, fmt.Errorf("%w: %v (median=%v, size=%d)", ErrInconsistent, err, median, len(values))
	}
	if math.IsNaN(sd) || math.IsInf(sd, 0) {
		return nil, fmt.Errorf("%w: non-finite std dev: %v, median=%v, size=%d", ErrInconsistent, sd, median, len(values))
	}
	return &ResidualSet{
		Residuals: residuals,
		Median:    median,
		StdDev:    sd,
		Common:    rotation.CommonOf(rotations),
	}, nil
}

// Size returns the number of rotations in the set.
func (s *ResidualSet) Size() int { return len(s.Residuals) }

// LogValues reconstructs the original ln ground motions.
func (s *ResidualSet) LogValues() []float64 {
	out := make([]float64, len(s.Residuals))
	for i, r := range s.Residuals {
		out[i] = r + s.Median
	}
	return out
}

// LogValueSet summarises the raw ln values of many residual sets.
type LogValueSet struct {
	Mean      float64
	Median    float64
	Min       float64
	Max       float64
	Residuals []float64
	RawValues []float64
}

// NewLogValueSet concatenates every set's values and residuals.
func NewLogValueSet(sets []*ResidualSet) LogValueSet {
	var total int
	for _, s := range sets {
		total += s.Size()
	}
	lv := LogValueSet{
		Residuals: make([]float64, 0, total),
		RawValues: make([]float64, 0, total),
	}
	for _, s := range sets {
		lv.RawValues = append(lv.RawValues, s.LogValues()...)
		lv.Residuals = append(lv.Residuals, s.Residuals...)
	}
	lv.Mean = stats.Mean(lv.RawValues)
	lv.Median = stats.MustMedian(lv.RawValues)
	lv.Min = stats.Min(lv.RawValues)
	lv.Max = stats.Max(lv.RawValues)
	return lv
}

// ResidualStdDevSet holds the per-group residual std devs of many sets along
// with Total, the population std dev of all their residuals pooled together.
type ResidualStdDevSet struct {
	Total   float64
	Mean    float64
	Median  float64
	Min     float64
	Max     float64
	StdDevs []float64
}

// NewResidualStdDevSet pools the residuals of sets.
func NewResidualStdDevSet(sets []*ResidualSet) (ResidualStdDevSet, error) {
	rs := ResidualStdDevSet{StdDevs: make([]float64, len(sets))}
	var pooled []float64
	for i, s := range sets {
		rs.StdDevs[i] = s.StdDev
		pooled = append(pooled, s.Residuals...)
	}
	total, err := stats.PopStdDev(pooled)
	if err != nil {
		return rs, fmt.Errorf("%w: pooled residual std dev: %v", ErrInconsistent, err)
	}
	rs.Total = total
	rs.Mean = stats.Mean(rs.StdDevs)
	rs.Median = stats.MustMedian(rs.StdDevs)
	rs.Min = stats.Min(rs.StdDevs)
	rs.Max = stats.Max(rs.StdDevs)
	return rs, nil
}

// MedianStdDevSet holds the medians of many groups and the std dev of those
// medians.
type MedianStdDevSet struct {
	StdDev     float64
	Medians    []float64
	MeanMedian float64
	MinMedian  float64
	MaxMedian  float64
}

// NewMedianStdDevSet takes the population std dev of the sets' medians.
func NewMedianStdDevSet(sets []*ResidualSet) (MedianStdDevSet, error) {
	ms := MedianStdDevSet{Medians: make([]float64, len(sets))}
	for i, s := range sets {
		ms.Medians[i] = s.Median
	}
	sd, err := stats.PopStdDev(ms.Medians)
	if err != nil {
		return ms, fmt.Errorf("%w: std dev of medians: %v", ErrInconsistent, err)
	}
	ms.StdDev = sd
	ms.fillRange()
	return ms, nil
}

// CombineMedianStdDevs merges per-site median sets. The combined StdDev is
// the median (not the mean) of the per-site std devs; medians are
// concatenated in site order.
func CombineMedianStdDevs(sites []MedianStdDevSet) (MedianStdDevSet, error) {
	if len(sites) == 0 {
		return MedianStdDevSet{}, fmt.Errorf("%w: no site median sets to combine", ErrInconsistent)
	}
	sds := make([]float64, len(sites))
	var ms MedianStdDevSet
	for i, s := range sites {
		sds[i] = s.StdDev
		ms.Medians = append(ms.Medians, s.Medians...)
	}
	ms.StdDev = stats.MustMedian(sds)
	ms.fillRange()
	return ms, nil
}

func (ms *MedianStdDevSet) fillRange() {
	ms.MeanMedian = stats.Mean(ms.Medians)
	ms.MinMedian = stats.Min(ms.Medians)
	ms.MaxMedian = stats.Max(ms.Medians)
}

// Result is the computed variability for one grouping key, indexed by period.
type Result struct {
	// Common holds the shared rotation fields of every group, in the same
	// order as the per-group arrays below.
	Common          []rotation.CommonSpec
	LogValues       []LogValueSet
	ResidualStdDevs []ResidualStdDevSet
	MedianStdDevs   []MedianStdDevSet
}

// newResult builds per-period statistics from grouped residuals
// (residuals[period][group]).
func newResult(residuals [][]*ResidualSet) (*Result, error) {
	r := &Result{
		LogValues:       make([]LogValueSet, len(residuals)),
		ResidualStdDevs: make([]ResidualStdDevSet, len(residuals)),
		MedianStdDevs:   make([]MedianStdDevSet, len(residuals)),
	}
	for p, sets := range residuals {
		r.LogValues[p] = NewLogValueSet(sets)
		var err error
		if r.ResidualStdDevs[p], err = NewResidualStdDevSet(sets); err != nil {
			return nil, err
		}
		if r.MedianStdDevs[p], err = NewMedianStdDevSet(sets); err != nil {
			return nil, err
		}
		if p == 0 {
			r.Common = commonSpecs(sets)
		}
	}
	return r, nil
}

func commonSpecs(sets []*ResidualSet) []rotation.CommonSpec {
	out := make([]rotation.CommonSpec, len(sets))
	for i, s := range sets {
		out[i] = s.Common
	}
	return out
}

// StdDev returns the headline std dev of period index p: the std dev of
// medians when medians is set, otherwise the pooled residual std dev.
func (r *Result) StdDev(p int, medians bool) float64 {
	if medians {
		return r.MedianStdDevs[p].StdDev
	}
	return r.ResidualStdDevs[p].Total
}
