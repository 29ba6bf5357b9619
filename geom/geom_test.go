package geom

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
)

const testEps = 1e-6

func TestLatticeIdx(t *testing.T) {
	l, err := NewLattice(4, 2, 4, 2)
	assert.NoError(t, err)

	for idx := 0; idx < l.Cells(); idx++ {
		ix, iy := l.Coords(idx)
		if l.Idx(ix, iy) != idx {
			t.Errorf("%d) Coords gave (%d, %d), which maps to %d.",
				idx, ix, iy, l.Idx(ix, iy))
		}
	}

	_, ok := l.IdxCheck(4, 0)
	assert.False(t, ok)
	idx, ok := l.IdxCheck(3, 1)
	assert.True(t, ok)
	assert.Equal(t, 7, idx)

	x, y := l.Center(5)
	assert.InDelta(t, 1.5, x, testEps)
	assert.InDelta(t, 1.5, y, testEps)
}

func TestLatticeInit(t *testing.T) {
	table := []struct {
		w, h   float64
		nx, ny int
		ok     bool
	}{
		{1, 1, 1, 1, true},
		{0, 1, 1, 1, false},
		{1, -1, 1, 1, false},
		{1, 1, 0, 1, false},
		{math.Inf(1), 1, 1, 1, false},
		{math.NaN(), 1, 1, 1, false},
	}

	for i, line := range table {
		_, err := NewLattice(line.w, line.h, line.nx, line.ny)
		if (err == nil) != line.ok {
			t.Errorf("%d) Expected ok = %v, got err = %v.", i, line.ok, err)
		}
	}
}

func TestCellAt(t *testing.T) {
	l, _ := NewLattice(2, 2, 2, 2)

	table := []struct {
		x, y float64
		idx  int
		ok   bool
	}{
		{0.5, 0.5, 0, true},
		{1.5, 0.5, 1, true},
		{0.5, 1.5, 2, true},
		{2, 2, 3, true},
		{0, 0, 0, true},
		{-0.1, 0.5, -1, false},
		{0.5, 2.1, -1, false},
	}

	for i, line := range table {
		idx, ok := l.CellAt(line.x, line.y)
		if idx != line.idx || ok != line.ok {
			t.Errorf("%d) CellAt(%g, %g) = %d, %v. Expected %d, %v.",
				i, line.x, line.y, idx, ok, line.idx, line.ok)
		}
	}
}

func TestTrace(t *testing.T) {
	l, _ := NewLattice(3, 3, 3, 3)

	table := []struct {
		x0, y0, x1, y1 float64
		out            []Crossing
	}{
		{0, 0.5, 3, 0.5, []Crossing{{0, 1}, {1, 1}, {2, 1}}},
		{3, 0.5, 0, 0.5, []Crossing{{2, 1}, {1, 1}, {0, 1}}},
		{0.5, 0, 0.5, 3, []Crossing{{0, 1}, {3, 1}, {6, 1}}},
		{0, 0, 1.5, 1.5, []Crossing{{0, math.Sqrt2}, {4, math.Sqrt2 / 2}}},
		{0.2, 0.2, 0.8, 0.8, []Crossing{{0, 0.6 * math.Sqrt2}}},
	}

	for i, line := range table {
		out := l.Trace(line.x0, line.y0, line.x1, line.y1, nil)
		if len(out) != len(line.out) {
			t.Errorf("%d) Expected %v, got %v.", i, line.out, out)
			continue
		}
		for j := range out {
			if out[j].Cell != line.out[j].Cell ||
				math.Abs(out[j].Length-line.out[j].Length) > testEps {
				t.Errorf("%d) Expected %v, got %v.", i, line.out, out)
				break
			}
		}
	}
}

func TestTraceLengthSum(t *testing.T) {
	l, _ := NewLattice(5, 3, 17, 9)
	gen := rand.New(rand.NewSource(1))

	var buf []Crossing
	for i := 0; i < 1000; i++ {
		x0, y0 := gen.Float64()*5, gen.Float64()*3
		x1, y1 := gen.Float64()*5, gen.Float64()*3
		buf = l.Trace(x0, y0, x1, y1, buf[:0])

		sum := 0.0
		for _, c := range buf {
			sum += c.Length
			if !l.BoundsCheck(l.Coords(c.Cell)) {
				t.Fatalf("%d) Crossing in invalid cell %d.", i, c.Cell)
			}
		}
		chord := math.Hypot(x1-x0, y1-y0)
		if math.Abs(sum-chord) > 1e-9*chord {
			t.Errorf("%d) Crossings sum to %g, but chord is %g.", i, sum, chord)
		}
	}
}

func TestExit(t *testing.T) {
	l, _ := NewLattice(2, 1, 1, 1)

	table := []struct {
		x, y, phi, x1, y1 float64
		wall              Wall
	}{
		{0, 0.5, 0, 2, 0.5, XMax},
		{1, 0, math.Pi / 2, 1, 1, YMax},
		{0, 0, math.Pi / 4, 1, 1, YMax},
		{2, 0, 3 * math.Pi / 4, 1, 1, YMax},
		{1.5, 0, 3 * math.Pi / 4, 0.5, 1, YMax},
		{2, 0.5, math.Pi, 0, 0.5, XMin},
	}

	for i, line := range table {
		x1, y1 := l.Exit(line.x, line.y, line.phi)
		if math.Abs(x1-line.x1) > testEps || math.Abs(y1-line.y1) > testEps {
			t.Errorf("%d) Expected exit (%g, %g), got (%g, %g).",
				i, line.x1, line.y1, x1, y1)
		}
		if w := l.WallAt(x1, y1, 1e-9); w != line.wall {
			t.Errorf("%d) Expected wall %s, got %s.", i, line.wall, w)
		}
	}
}

func BenchmarkTrace(b *testing.B) {
	l, _ := NewLattice(10, 10, 100, 100)
	var buf []Crossing
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		buf = l.Trace(0, 0.1, 10, 9.9, buf[:0])
	}
}
