// Package gmpe compares simulated variability with the ground motions and
// standard deviations predicted by empirical ground motion prediction
// equations.
package gmpe

import (
	"context"

	"github.com/banshee-data/rotvar/internal/rotation"
)

// Rupture holds the finite-fault properties a GMPE needs.
type Rupture struct {
	Magnitude float64
	Rake      float64 // degrees
	Dip       float64 // degrees
	TopDepth  float64 // km, average depth to top of rupture (zTOR)
}

// Params is one GMPE evaluation point.
type Params struct {
	Site        rotation.SiteInfo
	Rupture     Rupture
	DistanceJB  float64 // km
	DistanceRup float64 // km
	DistanceX   float64 // km, negative on the footwall
	Period      float64 // s
}

// GroundMotion is a GMPE prediction: the mean natural-log spectral
// acceleration and its within-event (Phi), between-event (Tau) and total
// standard deviations.
type GroundMotion struct {
	Mean   float64
	Phi    float64
	Tau    float64
	StdDev float64
}

// Model is a ground motion prediction equation.
type Model interface {
	Name() string
	GroundMotion(p Params) (GroundMotion, error)
}

// RuptureSource builds the GMPE rupture of a simulated event.
type RuptureSource interface {
	Rupture(ctx context.Context, eventID int) (Rupture, error)
}

// Scenario describes the simulated population a comparison must mirror.
type Scenario interface {
	Sites() []rotation.SiteInfo
	EventIDs(mag float64) []int
	SourceAzimuths() []float64
}
