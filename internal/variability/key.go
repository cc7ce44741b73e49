package variability

import (
	"strconv"
	"strings"

	"github.com/banshee-data/rotvar/internal/rotation"
)

// GroupingKey identifies one cached variability computation. Two keys are
// equal when their CacheKey strings are equal; slices compare element-wise.
type GroupingKey struct {
	Separate  []rotation.Quantity
	Group     []rotation.Quantity
	Magnitude float64
	Distance  *float64 // nil when distances are pooled
	Site      string   // "" for all sites
	Periods   []float64
}

// SeparateSites reports whether the key's computation is done per site.
func (k GroupingKey) SeparateSites() bool { return rotation.Contains(k.Separate, rotation.Site) }

// WithSite returns a copy of k for another site.
func (k GroupingKey) WithSite(site string) GroupingKey {
	k.Site = site
	return k
}

// CacheKey renders the canonical form of the key.
func (k GroupingKey) CacheKey() string {
	var b strings.Builder
	b.WriteString("sep=")
	writeQuantities(&b, k.Separate)
	b.WriteString("|grp=")
	writeQuantities(&b, k.Group)
	b.WriteString("|m=")
	b.WriteString(formatFloat(k.Magnitude))
	b.WriteString("|d=")
	if k.Distance != nil {
		b.WriteString(formatFloat(*k.Distance))
	} else {
		b.WriteString("*")
	}
	b.WriteString("|site=")
	b.WriteString(strconv.Quote(k.Site))
	b.WriteString("|p=")
	for i, p := range k.Periods {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(formatFloat(p))
	}
	return b.String()
}

func writeQuantities(b *strings.Builder, qs []rotation.Quantity) {
	for i, q := range qs {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(q.ID())
	}
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
