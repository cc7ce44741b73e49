package gmpe

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"sort"
)

// ErrPeriodNotTabulated is returned for a period without coefficients.
var ErrPeriodNotTabulated = errors.New("period not tabulated")

// periodTolerance is how close a requested period must be to a tabulated one.
const periodTolerance = 1e-6

// Coefficients are the regression terms of one period.
type Coefficients struct {
	Period float64 `json:"period"`
	C0     float64 `json:"c0"`
	C1     float64 `json:"c1"`
	C2     float64 `json:"c2"`
	C3     float64 `json:"c3"`
	H      float64 `json:"h"`
	Phi    float64 `json:"phi"`
	Tau    float64 `json:"tau"`
}

type tableFile struct {
	Name         string         `json:"name"`
	Coefficients []Coefficients `json:"coefficients"`
}

// TableModel is a simple coefficient-table GMPE:
//
//	ln SA = c0 + c1(M-6) + c2 ln(sqrt(rRup^2 + h^2)) + c3 ln(Vs30/760)
//
// with period dependent Phi and Tau and total sigma sqrt(Phi^2 + Tau^2).
type TableModel struct {
	name   string
	coeffs []Coefficients
}

//go:embed default_table.json
var defaultTable []byte

// DefaultTableModel returns the built-in coefficient table.
func DefaultTableModel() *TableModel {
	m, err := LoadTableModel(bytes.NewReader(defaultTable))
	if err != nil {
		panic(fmt.Sprintf("built-in GMPE table: %v", err))
	}
	return m
}

// LoadTableModelFile reads a JSON coefficient table from disk.
func LoadTableModelFile(path string) (*TableModel, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open GMPE table: %w", err)
	}
	defer f.Close()
	return LoadTableModel(f)
}

// LoadTableModel parses a JSON coefficient table.
func LoadTableModel(r io.Reader) (*TableModel, error) {
	var tf tableFile
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&tf); err != nil {
		return nil, fmt.Errorf("failed to parse GMPE table: %w", err)
	}
	if tf.Name == "" {
		return nil, errors.New("GMPE table has no name")
	}
	if len(tf.Coefficients) == 0 {
		return nil, fmt.Errorf("GMPE table %q has no coefficients", tf.Name)
	}
	sort.Slice(tf.Coefficients, func(i, j int) bool { return tf.Coefficients[i].Period < tf.Coefficients[j].Period })
	for i, c := range tf.Coefficients {
		if c.Period <= 0 {
			return nil, fmt.Errorf("GMPE table %q: period must be positive, got %v", tf.Name, c.Period)
		}
		if c.Phi < 0 || c.Tau < 0 {
			return nil, fmt.Errorf("GMPE table %q: negative std dev at %vs", tf.Name, c.Period)
		}
		if i > 0 && c.Period-tf.Coefficients[i-1].Period < periodTolerance {
			return nil, fmt.Errorf("GMPE table %q: duplicate period %v", tf.Name, c.Period)
		}
	}
	return &TableModel{name: tf.Name, coeffs: tf.Coefficients}, nil
}

// Name implements Model.
func (m *TableModel) Name() string { return m.name }

// Periods returns the tabulated periods in ascending order.
func (m *TableModel) Periods() []float64 {
	out := make([]float64, len(m.coeffs))
	for i, c := range m.coeffs {
		out[i] = c.Period
	}
	return out
}

func (m *TableModel) lookup(period float64) (Coefficients, error) {
	i := sort.Search(len(m.coeffs), func(i int) bool { return m.coeffs[i].Period >= period-periodTolerance })
	if i < len(m.coeffs) && math.Abs(m.coeffs[i].Period-period) < periodTolerance {
		return m.coeffs[i], nil
	}
	return Coefficients{}, fmt.Errorf("%w: %s has no %vs coefficients", ErrPeriodNotTabulated, m.name, period)
}

// GroundMotion implements Model.
func (m *TableModel) GroundMotion(p Params) (GroundMotion, error) {
	c, err := m.lookup(p.Period)
	if err != nil {
		return GroundMotion{}, err
	}
	if p.DistanceRup < 0 {
		return GroundMotion{}, fmt.Errorf("negative rupture distance %v", p.DistanceRup)
	}
	mean := c.C0 + c.C1*(p.Rupture.Magnitude-6) + c.C2*math.Log(math.Hypot(p.DistanceRup, c.H))
	if p.Site.Vs30 > 0 {
		mean += c.C3 * math.Log(p.Site.Vs30/760)
	}
	return GroundMotion{
		Mean:   mean,
		Phi:    c.Phi,
		Tau:    c.Tau,
		StdDev: math.Hypot(c.Phi, c.Tau),
	}, nil
}
