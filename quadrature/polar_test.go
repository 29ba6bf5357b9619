package quadrature

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSets(t *testing.T) {
	table := []struct {
		name string
		n    int
	}{
		{"TY", 1}, {"TY", 2}, {"TY", 3},
		{"EqualWeight", 1}, {"EqualWeight", 4},
		{"EqualAngle", 1}, {"equalangle", 6},
	}

	for i, line := range table {
		p, err := New(line.name, line.n)
		if err != nil {
			t.Errorf("%d) Unexpected error: %s", i, err.Error())
			continue
		}
		if p.Len() != line.n {
			t.Errorf("%d) Expected %d angles, got %d.", i, line.n, p.Len())
		}
		if err := p.Valid(); err != nil {
			t.Errorf("%d) %s", i, err.Error())
		}
	}
}

func TestInvalidSets(t *testing.T) {
	_, err := New("TY", 4)
	assert.Error(t, err)
	_, err = New("GaussLegendre", 2)
	assert.Error(t, err)
	_, err = EqualWeight(0)
	assert.Error(t, err)

	p := &Polar{Sin: []float64{0.5}, Weights: []float64{0.5}}
	assert.Error(t, p.Valid())
}

// The average of sin(theta) over a hemisphere is pi/4, which any reasonable
// quadrature should integrate well.
func TestHemisphereMoment(t *testing.T) {
	for _, n := range []int{16, 32} {
		for _, name := range []string{"EqualWeight", "EqualAngle"} {
			p, err := New(name, n)
			require.NoError(t, err)
			sum := 0.0
			for i := range p.Sin {
				sum += p.Weights[i] * p.Sin[i]
			}
			assert.InDelta(t, math.Pi/4, sum, 5e-3, "%s %d", name, n)
		}
	}
}
