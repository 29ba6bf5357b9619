package quadrature

import (
	"fmt"
	"math"
	"strings"
)

// Polar is a polar angle quadrature over one hemisphere. Sin holds the sine
// of each polar angle measured from the z axis and Weights the fraction of
// the hemisphere each angle represents; the weights sum to one. 2D tracks
// are integrated over both hemispheres by symmetry.
type Polar struct {
	Name    string
	Sin     []float64
	Weights []float64
}

// Len returns the number of polar angles.
func (p *Polar) Len() int { return len(p.Sin) }

// tyTables holds the Tabuchi-Yamamoto sets for one to three polar angles.
var tyTables = [][2][]float64{
	{{0.798184}, {1.0}},
	{{0.363900, 0.899900}, {0.212854, 0.787146}},
	{{0.166648, 0.537707, 0.932954}, {0.046233, 0.283619, 0.670148}},
}

// TabuchiYamamoto returns the Tabuchi-Yamamoto set with n angles, which is
// optimised for the integral of the Bickley functions. n must be 1, 2 or 3.
func TabuchiYamamoto(n int) (*Polar, error) {
	if n < 1 || n > len(tyTables) {
		return nil, fmt.Errorf(
			"Tabuchi-Yamamoto quadrature supports 1 to %d polar angles, "+
				"not %d.", len(tyTables), n,
		)
	}
	set := tyTables[n-1]
	return &Polar{
		Name:    "TY",
		Sin:     append([]float64{}, set[0]...),
		Weights: append([]float64{}, set[1]...),
	}, nil
}

// EqualWeight returns a set of n angles whose cosines are the midpoints of n
// equal bins in [0, 1], so every angle carries the same weight.
func EqualWeight(n int) (*Polar, error) {
	if n < 1 {
		return nil, fmt.Errorf("Need at least one polar angle, not %d.", n)
	}
	p := &Polar{"EqualWeight", make([]float64, n), make([]float64, n)}
	for i := 0; i < n; i++ {
		mu := (float64(i) + 0.5) / float64(n)
		p.Sin[i] = math.Sqrt(1 - mu*mu)
		p.Weights[i] = 1 / float64(n)
	}
	return p, nil
}

// EqualAngle returns a set of n angles at the centres of n equal angular
// bins in (0, pi/2), weighted by the solid angle of each bin.
func EqualAngle(n int) (*Polar, error) {
	if n < 1 {
		return nil, fmt.Errorf("Need at least one polar angle, not %d.", n)
	}
	p := &Polar{"EqualAngle", make([]float64, n), make([]float64, n)}
	dTheta := math.Pi / 2 / float64(n)
	for i := 0; i < n; i++ {
		lo, hi := float64(i)*dTheta, float64(i+1)*dTheta
		p.Sin[i] = math.Sin((lo + hi) / 2)
		p.Weights[i] = math.Cos(lo) - math.Cos(hi)
	}
	return p, nil
}

// New returns the quadrature with the given name ("TY", "EqualWeight" or
// "EqualAngle", case insensitive) and number of angles.
func New(name string, n int) (*Polar, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "ty", "tabuchiyamamoto", "tabuchi-yamamoto":
		return TabuchiYamamoto(n)
	case "equalweight", "equal-weight":
		return EqualWeight(n)
	case "equalangle", "equal-angle":
		return EqualAngle(n)
	}
	return nil, fmt.Errorf(
		"Unrecognized polar quadrature '%s'. Must be one of "+
			"[TY | EqualWeight | EqualAngle].", name,
	)
}

// Valid returns an error if the quadrature's angles are outside (0, 1] or
// its weights don't sum to one.
func (p *Polar) Valid() error {
	if len(p.Sin) == 0 || len(p.Sin) != len(p.Weights) {
		return fmt.Errorf(
			"Polar quadrature has %d sines and %d weights.",
			len(p.Sin), len(p.Weights),
		)
	}
	sum := 0.0
	for i := range p.Sin {
		if !(p.Sin[i] > 0 && p.Sin[i] <= 1) {
			return fmt.Errorf("Polar sine %d is %g.", i, p.Sin[i])
		} else if !(p.Weights[i] > 0) {
			return fmt.Errorf("Polar weight %d is %g.", i, p.Weights[i])
		}
		sum += p.Weights[i]
	}
	if math.Abs(sum-1) > 1e-5 {
		return fmt.Errorf("Polar weights sum to %g, not 1.", sum)
	}
	return nil
}
