package rotation

import "math"

// SiteInfo is a ground-motion recording location.
type SiteInfo struct {
	Name      string
	Latitude  float64
	Longitude float64
	Vs30      float64 // m/s
	Z1p0      float64 // m, NaN when unknown
	Z2p5      float64 // km, NaN when unknown
}

// NewSite returns a site with unknown basin depths.
func NewSite(name string, lat, lon, vs30 float64) SiteInfo {
	return SiteInfo{Name: name, Latitude: lat, Longitude: lon, Vs30: vs30, Z1p0: math.NaN(), Z2p5: math.NaN()}
}

// RotationSpec identifies one simulated ground-motion sample.
type RotationSpec struct {
	Index          int
	Site           string
	EventID        int
	Distance       float64
	SourceAz       float64
	SiteToSourceAz float64
}

// Value returns the comparable value of the given quantity for this rotation.
// Sites are identified by name, event IDs are ints and every other quantity
// is a float64.
func (r RotationSpec) Value(q Quantity) any {
	switch q {
	case Site:
		return r.Site
	case EventID:
		return r.EventID
	case Distance:
		return r.Distance
	case SourceAzimuth:
		return r.SourceAz
	case SiteToSourceAzimuth:
		return r.SiteToSourceAz
	}
	return nil
}

// CommonSpec holds the fields shared by every rotation in a group. Fields
// that differ across the group are blank: an empty Site, an EventID of -1,
// or a nil pointer.
type CommonSpec struct {
	Site           string
	EventID        int
	Distance       *float64
	SourceAz       *float64
	SiteToSourceAz *float64
}

// CommonOf reduces rotations to their shared fields.
func CommonOf(rotations []RotationSpec) CommonSpec {
	if len(rotations) == 0 {
		return CommonSpec{EventID: -1}
	}
	first := rotations[0]
	c := CommonSpec{
		Site:           first.Site,
		EventID:        first.EventID,
		Distance:       ptr(first.Distance),
		SourceAz:       ptr(first.SourceAz),
		SiteToSourceAz: ptr(first.SiteToSourceAz),
	}
	for _, r := range rotations[1:] {
		if c.Site != r.Site {
			c.Site = ""
		}
		if c.EventID != r.EventID {
			c.EventID = -1
		}
		if c.Distance != nil && *c.Distance != r.Distance {
			c.Distance = nil
		}
		if c.SourceAz != nil && *c.SourceAz != r.SourceAz {
			c.SourceAz = nil
		}
		if c.SiteToSourceAz != nil && *c.SiteToSourceAz != r.SiteToSourceAz {
			c.SiteToSourceAz = nil
		}
	}
	return c
}

func ptr(v float64) *float64 { return &v }
