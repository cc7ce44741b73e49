// Package rotation describes the rupture rotations that make up a simulated
// ground-motion population: the axes that are varied (quantities), the
// individual rotation specifications, and the cross product that enumerates
// them.
package rotation

import (
	"fmt"
	"strings"
)

// Quantity is one axis of variation between simulated rotations.
type Quantity int

const (
	Site Quantity = iota
	EventID
	Distance
	SourceAzimuth
	SiteToSourceAzimuth
)

// AllQuantities lists every quantity in declaration order.
var AllQuantities = []Quantity{Site, EventID, Distance, SourceAzimuth, SiteToSourceAzimuth}

var quantityInfo = map[Quantity]struct {
	id, name, description string
}{
	Site:                {"SITE", "Site", "Site locations."},
	EventID:             {"EVENT_ID", "Event ID", "Individual events that match the selection criteria."},
	Distance:            {"DISTANCE", "Distance", "Source-site distance."},
	SourceAzimuth:       {"SOURCE_AZIMUTH", "Source Azimuth", "Rotation of the rupture about its centroid, holding the site-to-source path fixed."},
	SiteToSourceAzimuth: {"SITE_TO_SOURCE_AZIMUTH", "Site-to-Source Azimuth", "Rotation of the rupture about the site, sampling different paths at fixed distance."},
}

// ID returns the stable upper-case identifier used in cache keys and config files.
func (q Quantity) ID() string {
	if info, ok := quantityInfo[q]; ok {
		return info.id
	}
	return fmt.Sprintf("QUANTITY(%d)", int(q))
}

// Name returns the human readable name.
func (q Quantity) Name() string {
	if info, ok := quantityInfo[q]; ok {
		return info.name
	}
	return q.ID()
}

// Description returns a one-sentence description for report tables.
func (q Quantity) Description() string {
	return quantityInfo[q].description
}

func (q Quantity) String() string { return q.Name() }

// ParseQuantity accepts either the identifier ("SOURCE_AZIMUTH") or the
// human name ("Source Azimuth"), case-insensitively.
func ParseQuantity(s string) (Quantity, error) {
	s = strings.TrimSpace(s)
	for _, q := range AllQuantities {
		if strings.EqualFold(s, q.ID()) || strings.EqualFold(s, q.Name()) {
			return q, nil
		}
	}
	return 0, fmt.Errorf("unknown quantity %q", s)
}

// Contains reports whether q is in qs.
func Contains(qs []Quantity, q Quantity) bool {
	for _, o := range qs {
		if o == q {
			return true
		}
	}
	return false
}

// Without returns qs with every member of remove dropped, preserving order.
func Without(qs []Quantity, remove []Quantity) []Quantity {
	out := make([]Quantity, 0, len(qs))
	for _, q := range qs {
		if !Contains(remove, q) {
			out = append(out, q)
		}
	}
	return out
}

// JoinNames renders quantities as "Event ID, Source Azimuth".
func JoinNames(qs []Quantity) string {
	names := make([]string, len(qs))
	for i, q := range qs {
		names[i] = q.Name()
	}
	return strings.Join(names, ", ")
}
