package rotation

import (
	"fmt"
)

// Values lists the discrete values of every quantity for one scenario.
type Values struct {
	Sites                []SiteInfo
	EventIDs             []int
	Distances            []float64
	SourceAzimuths       []float64
	SiteToSourceAzimuths []float64
}

// Config enumerates the full cross product of rotations for one magnitude.
type Config struct {
	values    Values
	rotations []RotationSpec
	byQty     map[Quantity][]any
}

// EvenAzimuths returns n azimuths evenly spaced over [0, 360).
func EvenAzimuths(n int) []float64 {
	if n <= 0 {
		return nil
	}
	out := make([]float64, n)
	for i := range out {
		out[i] = float64(i) * 360 / float64(n)
	}
	return out
}

// NewConfig validates the quantity values and builds every rotation.
// Each quantity must have at least one value and no duplicates.
func NewConfig(v Values) (*Config, error) {
	c := &Config{values: v, byQty: make(map[Quantity][]any, len(AllQuantities))}

	sites := make([]any, len(v.Sites))
	for i, s := range v.Sites {
		if s.Name == "" {
			return nil, fmt.Errorf("site %d has no name", i)
		}
		sites[i] = s.Name
	}
	c.byQty[Site] = sites
	c.byQty[EventID] = toAny(v.EventIDs)
	c.byQty[Distance] = toAny(v.Distances)
	c.byQty[SourceAzimuth] = toAny(v.SourceAzimuths)
	c.byQty[SiteToSourceAzimuth] = toAny(v.SiteToSourceAzimuths)

	for _, q := range AllQuantities {
		vals := c.byQty[q]
		if len(vals) == 0 {
			return nil, fmt.Errorf("quantity %s has no values", q)
		}
		seen := make(map[any]bool, len(vals))
		for _, val := range vals {
			if seen[val] {
				return nil, fmt.Errorf("quantity %s has duplicate value %v", q, val)
			}
			seen[val] = true
		}
	}

	n := len(v.Sites) * len(v.Distances) * len(v.EventIDs) * len(v.SiteToSourceAzimuths) * len(v.SourceAzimuths)
	c.rotations = make([]RotationSpec, 0, n)
	for _, site := range v.Sites {
		for _, dist := range v.Distances {
			for _, id := range v.EventIDs {
				for _, siteSourceAz := range v.SiteToSourceAzimuths {
					for _, sourceAz := range v.SourceAzimuths {
						c.rotations = append(c.rotations, RotationSpec{
							Index:          len(c.rotations),
							Site:           site.Name,
							EventID:        id,
							Distance:       dist,
							SourceAz:       sourceAz,
							SiteToSourceAz: siteSourceAz,
						})
					}
				}
			}
		}
	}
	return c, nil
}

func toAny[T comparable](xs []T) []any {
	out := make([]any, len(xs))
	for i, x := range xs {
		out[i] = x
	}
	return out
}

// Rotations returns every rotation. The slice must not be modified.
func (c *Config) Rotations() []RotationSpec { return c.rotations }

// Sites returns the configured sites in order.
func (c *Config) Sites() []SiteInfo { return c.values.Sites }

// EventIDs returns the configured event IDs in order.
func (c *Config) EventIDs() []int { return c.values.EventIDs }

// Distances returns the configured distances in order.
func (c *Config) Distances() []float64 { return c.values.Distances }

// SourceAzimuths returns the configured source azimuths in order.
func (c *Config) SourceAzimuths() []float64 { return c.values.SourceAzimuths }

// SiteToSourceAzimuths returns the configured site-to-source azimuths in order.
func (c *Config) SiteToSourceAzimuths() []float64 { return c.values.SiteToSourceAzimuths }

// Values returns the declared values of a quantity, in order.
func (c *Config) Values(q Quantity) []any { return c.byQty[q] }

// Count returns how many distinct values a quantity has.
func (c *Config) Count(q Quantity) int { return len(c.byQty[q]) }

// Counts returns the number of values of every quantity.
func (c *Config) Counts() map[Quantity]int {
	out := make(map[Quantity]int, len(c.byQty))
	for q, vals := range c.byQty {
		out[q] = len(vals)
	}
	return out
}

// Site looks up a configured site by name.
func (c *Config) Site(name string) (SiteInfo, bool) {
	for _, s := range c.values.Sites {
		if s.Name == name {
			return s, true
		}
	}
	return SiteInfo{}, false
}

// RotationsFor returns the rotations whose quantities match the given values.
func (c *Config) RotationsFor(quantities []Quantity, values []any) ([]RotationSpec, error) {
	if len(quantities) != len(values) {
		return nil, fmt.Errorf("have %d quantities but %d values", len(quantities), len(values))
	}
	return FilterRotations(c.rotations, quantities, values), nil
}

// FilterRotations returns the subset of rotations matching every
// quantity/value pair. quantities and values must be the same length.
func FilterRotations(rotations []RotationSpec, quantities []Quantity, values []any) []RotationSpec {
	var out []RotationSpec
outer:
	for _, r := range rotations {
		for i, q := range quantities {
			if r.Value(q) != values[i] {
				continue outer
			}
		}
		out = append(out, r)
	}
	return out
}
