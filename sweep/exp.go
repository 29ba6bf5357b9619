package sweep

import (
	"fmt"
	"math"
)

// ExpEvaluator computes 1 - exp(-tau) for tau >= 0, the attenuation factor
// of a segment with optical length tau.
type ExpEvaluator interface {
	OneMinusExp(tau float64) float64
}

// Exact evaluates the attenuation factor with math.Expm1, which doesn't
// lose precision as tau goes to zero.
type Exact struct{}

func (Exact) OneMinusExp(tau float64) float64 { return -math.Expm1(-tau) }

// ExpTable is a uniformly spaced linear interpolation table for the
// attenuation factor over [0, MaxTau]. Optical lengths past MaxTau fall back
// to Exact. Each bin stores a slope and intercept so a lookup is one
// multiply-add.
type ExpTable struct {
	MaxTau, Dx float64

	invDx      float64
	slopes     []float64
	intercepts []float64
}

// NewExpTable builds a table over [0, maxTau] whose interpolation error is
// at most tol.
func NewExpTable(maxTau, tol float64) (*ExpTable, error) {
	if !(maxTau > 0) || math.IsInf(maxTau, 0) {
		return nil, fmt.Errorf("Exponential table range must be positive, "+
			"but is %g.", maxTau)
	} else if !(tol > 0) || tol >= 1 {
		return nil, fmt.Errorf("Exponential table tolerance must be in "+
			"(0, 1), but is %g.", tol)
	}

	// The error of linear interpolation is bounded by dx^2 max|f''| / 8, and
	// |f''| <= 1 here.
	dx := math.Sqrt(8 * tol)
	n := int(math.Ceil(maxTau/dx)) + 1
	dx = maxTau / float64(n-1)

	tab := &ExpTable{
		MaxTau: maxTau, Dx: dx, invDx: 1 / dx,
		slopes:     make([]float64, n-1),
		intercepts: make([]float64, n-1),
	}
	for i := 0; i < n-1; i++ {
		x1, x2 := float64(i)*dx, float64(i+1)*dx
		v1, v2 := -math.Expm1(-x1), -math.Expm1(-x2)
		tab.slopes[i] = (v2 - v1) / (x2 - x1)
		tab.intercepts[i] = v1 - tab.slopes[i]*x1
	}
	return tab, nil
}

// Len returns the number of interpolation bins.
func (tab *ExpTable) Len() int { return len(tab.slopes) }

func (tab *ExpTable) OneMinusExp(tau float64) float64 {
	if tau >= tab.MaxTau {
		return -math.Expm1(-tau)
	}
	i := int(tau * tab.invDx)
	if i >= len(tab.slopes) {
		// tau*invDx rounds up to the last knot just below MaxTau.
		i = len(tab.slopes) - 1
	}
	return tab.slopes[i]*tau + tab.intercepts[i]
}
