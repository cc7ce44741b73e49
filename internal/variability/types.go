package variability

import (
	"fmt"

	"github.com/banshee-data/rotvar/internal/rotation"
)

// GMPEVar selects which GMPE standard deviation a variability type is
// compared against.
type GMPEVar int

const (
	GMPENone GMPEVar = iota
	GMPETotal
	GMPEPhi
	GMPETau
)

// Symbol returns the Greek symbol of the component, or "" for GMPENone.
func (v GMPEVar) Symbol() string {
	switch v {
	case GMPETotal:
		return "σ"
	case GMPEPhi:
		return "φ"
	case GMPETau:
		return "τ"
	}
	return ""
}

// ScatterQuantity is an x-axis used to disaggregate per-group medians or
// std devs in scatter plots.
type ScatterQuantity int

const (
	ScatterVprop ScatterQuantity = iota
	ScatterSourceAz
	ScatterSiteToSourceAz
)

// Name returns the axis label.
func (s ScatterQuantity) Name() string {
	switch s {
	case ScatterVprop:
		return "Vprop"
	case ScatterSourceAz:
		return "Source Azimuth"
	case ScatterSiteToSourceAz:
		return "Site-to-Source Az"
	}
	return fmt.Sprintf("ScatterQuantity(%d)", int(s))
}

// Prefix returns the file name prefix used for plots.
func (s ScatterQuantity) Prefix() string {
	switch s {
	case ScatterVprop:
		return "v_prop"
	case ScatterSourceAz:
		return "src_az"
	case ScatterSiteToSourceAz:
		return "site_source_az"
	}
	return fmt.Sprintf("scatter_%d", int(s))
}

const (
	refAlAtik       = "Al Atik (2010)"
	refAkiRichards  = "Aki & Richards (1980)"
	withinEventSym  = "δw_es"
	withinEventHTML = "&delta;W<sub>es</sub>"
)

// Type is a named variability definition. Values are separated by
// Separate, grouped by Group and varied across Varied. When
// StdDevOfMedians is set the std dev is taken over group medians, otherwise
// over residuals about each group's median.
type Type struct {
	Name       string
	Prefix     string
	Symbol     string
	HTMLSymbol string
	Reference  string

	GMPEStdDev GMPEVar
	Scatters   []ScatterQuantity

	Separate []rotation.Quantity
	Group    []rotation.Quantity
	Varied   []rotation.Quantity

	StdDevOfMedians  bool
	VariedSymbol     string
	VariedSymbolHTML string
}

var (
	Path = mustType(Type{
		Name:       "Path-to-path",
		Prefix:     "path",
		Symbol:     "φ_p2p",
		HTMLSymbol: "&phi;<sub>P2P</sub>",
		Reference:  refAlAtik,
		Separate:   []rotation.Quantity{rotation.Site, rotation.Distance},
		Group:      []rotation.Quantity{rotation.EventID, rotation.SourceAzimuth},
		Varied:     []rotation.Quantity{rotation.SiteToSourceAzimuth},
	})
	SourceStrike = mustType(Type{
		Name:             "Source-strike",
		Prefix:           "source_strike",
		Symbol:           "φ_s",
		HTMLSymbol:       "&phi;<sub>s</sub>",
		Reference:        refAkiRichards,
		GMPEStdDev:       GMPEPhi,
		Scatters:         []ScatterQuantity{ScatterVprop},
		Separate:         []rotation.Quantity{rotation.Site, rotation.Distance},
		Group:            []rotation.Quantity{rotation.EventID, rotation.SiteToSourceAzimuth},
		Varied:           []rotation.Quantity{rotation.SourceAzimuth},
		VariedSymbol:     withinEventSym,
		VariedSymbolHTML: withinEventHTML,
	})
	WithinEventSingleSite = mustType(Type{
		Name:             "Within-event, single-site",
		Prefix:           "within_event_ss",
		Symbol:           "φ_ss",
		HTMLSymbol:       "&phi;<sub>SS</sub>",
		Reference:        refAlAtik,
		GMPEStdDev:       GMPEPhi,
		Scatters:         []ScatterQuantity{ScatterVprop},
		Separate:         []rotation.Quantity{rotation.Site, rotation.Distance},
		Group:            []rotation.Quantity{rotation.EventID},
		Varied:           []rotation.Quantity{rotation.SourceAzimuth, rotation.SiteToSourceAzimuth},
		VariedSymbol:     withinEventSym,
		VariedSymbolHTML: withinEventHTML,
	})
	BetweenEvents = mustType(Type{
		Name:             "Between-events",
		Prefix:           "between_events",
		Symbol:           "τ",
		HTMLSymbol:       "&tau;",
		Reference:        refAlAtik,
		GMPEStdDev:       GMPETau,
		Separate:         []rotation.Quantity{rotation.Site, rotation.Distance},
		Group:            []rotation.Quantity{rotation.EventID},
		Varied:           []rotation.Quantity{rotation.SourceAzimuth, rotation.SiteToSourceAzimuth},
		StdDevOfMedians:  true,
		VariedSymbol:     "δB_e",
		VariedSymbolHTML: "&delta;B<sub>e</sub>",
	})
)

// Types returns every variability type in report order.
func Types() []Type {
	return []Type{Path, SourceStrike, WithinEventSingleSite, BetweenEvents}
}

// TypeByPrefix looks up a type by its file prefix.
func TypeByPrefix(prefix string) (Type, bool) {
	for _, t := range Types() {
		if t.Prefix == prefix {
			return t, true
		}
	}
	return Type{}, false
}

func mustType(t Type) Type {
	if err := t.Validate(); err != nil {
		panic(err)
	}
	return t
}

// Validate checks that t can be computed.
func (t Type) Validate() error {
	if len(t.Varied) == 0 {
		return fmt.Errorf("%w: type %q must have varied quantities", ErrConfig, t.Name)
	}
	if t.StdDevOfMedians && len(t.Group) == 0 {
		return fmt.Errorf("%w: type %q must have group quantities to compute the std dev of medians", ErrConfig, t.Name)
	}
	return nil
}

// SeparateSites reports whether results are computed per site.
func (t Type) SeparateSites() bool { return rotation.Contains(t.Separate, rotation.Site) }

// SeparateDistances reports whether results are computed per distance.
func (t Type) SeparateDistances() bool { return rotation.Contains(t.Separate, rotation.Distance) }

// Combinations multiplies the number of unique values of each quantity.
func Combinations(counts map[rotation.Quantity]int, quantities []rotation.Quantity) int {
	n := 1
	for _, q := range quantities {
		n *= counts[q]
	}
	return n
}

// RotationsPerStdDev returns how many values each std dev is computed from:
// the number of groups for std-dev-of-medians types, otherwise the number of
// varied combinations within a group.
func (t Type) RotationsPerStdDev(counts map[rotation.Quantity]int) int {
	if t.StdDevOfMedians {
		return Combinations(counts, t.Group)
	}
	return Combinations(counts, t.Varied)
}

// MethodologyLines describes in markdown how t is computed for the given
// per-quantity value counts.
func (t Type) MethodologyLines(counts map[rotation.Quantity]int, numSites int) []string {
	var lines []string
	line := t.Name + " variability, denoted " + t.HTMLSymbol
	if t.Reference != "" {
		line += " in " + t.Reference
	}
	lines = append(lines, line+", is computed separately for each:", "")
	lines = append(lines, quantityBullets(counts, t.Separate)...)
	lines = append(lines, "")

	symbolAdd := ""
	if t.VariedSymbolHTML != "" {
		symbolAdd = ", " + t.VariedSymbolHTML + ","
	}
	allSites := t.SeparateSites() && numSites > 1
	variedCombos := Combinations(counts, t.Varied)

	if t.StdDevOfMedians {
		lines = append(lines, "We first compute the median natural-log ground motion"+symbolAdd+" for each combination of:", "")
		lines = append(lines, quantityBullets(counts, t.Group)...)
		lines = append(lines, "", fmt.Sprintf("That median%s is computed across all %d combinations of:", symbolAdd, variedCombos), "")
		lines = append(lines, quantityBullets(counts, t.Varied)...)
		lines = append(lines, "")
		if t.VariedSymbolHTML == "" {
			line = "We take " + t.HTMLSymbol + " to be the standard deviation of those medians."
		} else {
			line = "We take " + t.HTMLSymbol + " to be the standard deviation of all " + t.VariedSymbolHTML + "."
		}
		if allSites {
			line += " Finally, we compute the median standard deviation across all sites. This" +
				" total value is reported as **ALL SITES** and in summary plots/tables."
		}
		return append(lines, line, "")
	}

	lines = append(lines, "Then, for each unique combination of:", "")
	lines = append(lines, quantityBullets(counts, t.Group)...)
	lines = append(lines, "", fmt.Sprintf("we compute residuals%s of the natural-log ground motions "+
		"(relative to the median), computed across all %d combinations of:", symbolAdd, variedCombos), "")
	lines = append(lines, quantityBullets(counts, t.Varied)...)
	lines = append(lines, "")
	line = "We take " + t.HTMLSymbol + " to be the standard deviation of all residuals" + symbolAdd +
		" across each combination of " + rotation.JoinNames(t.Group) + "."
	if allSites {
		line += " We also compute the total standard deviation across all residuals from all sites. This" +
			" total value is reported as **ALL SITES** and in summary plots/tables."
	}
	return append(lines, line, "")
}

func quantityBullets(counts map[rotation.Quantity]int, qs []rotation.Quantity) []string {
	out := make([]string, len(qs))
	for i, q := range qs {
		out[i] = fmt.Sprintf("* %s *[%d unique]*", q.Name(), counts[q])
	}
	return out
}

func (t Type) String() string { return t.Name }
