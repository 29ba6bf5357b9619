package geom

import (
	"math"
	"sort"
)

// MinCrossing is the shortest fractional chord piece Trace will report.
// Shorter pieces come from a ray passing within rounding error of a cell
// corner.
const MinCrossing = 1e-12

// Crossing is the part of a chord that lies inside a single cell.
type Crossing struct {
	Cell   int
	Length float64
}

// Trace splits the chord from (x0, y0) to (x1, y1) into the cells it passes
// through, in order, appending them to buf. Both endpoints must lie inside
// the lattice.
func (l *Lattice) Trace(x0, y0, x1, y1 float64, buf []Crossing) []Crossing {
	dx, dy := x1-x0, y1-y0
	length := math.Sqrt(dx*dx + dy*dy)
	if length == 0 {
		return buf
	}

	// Parametric positions of every grid line crossing in (0, 1).
	ts := []float64{0, 1}
	ts = gridCrossings(ts, x0, dx, l.dx, l.Nx)
	ts = gridCrossings(ts, y0, dy, l.dy, l.Ny)
	sort.Float64s(ts)

	for i := 0; i+1 < len(ts); i++ {
		ta, tb := ts[i], ts[i+1]
		if tb-ta < MinCrossing {
			continue
		}
		tm := (ta + tb) / 2
		cell, ok := l.CellAt(x0+tm*dx, y0+tm*dy)
		if !ok {
			cell, _ = l.CellAt(
				math.Min(math.Max(x0+tm*dx, 0), l.Width),
				math.Min(math.Max(y0+tm*dy, 0), l.Height),
			)
		}

		n := len(buf)
		if n > 0 && buf[n-1].Cell == cell {
			buf[n-1].Length += (tb - ta) * length
		} else {
			buf = append(buf, Crossing{cell, (tb - ta) * length})
		}
	}

	return buf
}

func gridCrossings(ts []float64, x0, dx, width float64, n int) []float64 {
	if dx == 0 {
		return ts
	}
	for k := 1; k < n; k++ {
		t := (float64(k)*width - x0) / dx
		if t > 0 && t < 1 {
			ts = append(ts, t)
		}
	}
	return ts
}

// Exit returns the point at which a ray starting at (x, y) inside the
// lattice and travelling at angle phi leaves it.
func (l *Lattice) Exit(x, y, phi float64) (x1, y1 float64) {
	ux, uy := math.Cos(phi), math.Sin(phi)

	s := math.Inf(1)
	if ux > 0 {
		s = math.Min(s, (l.Width-x)/ux)
	} else if ux < 0 {
		s = math.Min(s, -x/ux)
	}
	if uy > 0 {
		s = math.Min(s, (l.Height-y)/uy)
	} else if uy < 0 {
		s = math.Min(s, -y/uy)
	}

	x1, y1 = x+s*ux, y+s*uy
	// Snap onto the wall that was hit so linked tracks can be matched
	// exactly.
	x1 = snap(x1, 0, l.Width)
	y1 = snap(y1, 0, l.Height)
	return x1, y1
}

func snap(x, lo, hi float64) float64 {
	eps := 1e-12 * (hi - lo)
	if math.Abs(x-lo) < eps {
		return lo
	} else if math.Abs(x-hi) < eps {
		return hi
	}
	return x
}

// Wall identifies one side of the lattice.
type Wall int

const (
	XMin Wall = iota
	XMax
	YMin
	YMax
	NoWall
)

func (w Wall) String() string {
	switch w {
	case XMin:
		return "XMin"
	case XMax:
		return "XMax"
	case YMin:
		return "YMin"
	case YMax:
		return "YMax"
	}
	return "NoWall"
}

// WallAt returns the wall that (x, y) lies on, to within a relative
// tolerance of eps. Corners resolve to the x walls.
func (l *Lattice) WallAt(x, y, eps float64) Wall {
	ex, ey := eps*l.Width, eps*l.Height
	switch {
	case math.Abs(x) <= ex:
		return XMin
	case math.Abs(x-l.Width) <= ex:
		return XMax
	case math.Abs(y) <= ey:
		return YMin
	case math.Abs(y-l.Height) <= ey:
		return YMax
	}
	return NoWall
}
