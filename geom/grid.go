package geom

import (
	"fmt"
	"math"
)

// Lattice is a rectangular domain [0, Width] x [0, Height] split into a
// uniform Nx x Ny grid of cells. Cells are numbered row-major starting from
// the lower left corner, so a lattice can be reasoned over as a 1D slice.
type Lattice struct {
	Width, Height float64
	Nx, Ny        int

	dx, dy float64
}

// NewLattice returns a new Lattice instance.
func NewLattice(width, height float64, nx, ny int) (*Lattice, error) {
	l := &Lattice{}
	if err := l.Init(width, height, nx, ny); err != nil {
		return nil, err
	}
	return l, nil
}

// Init initializes a Lattice instance.
func (l *Lattice) Init(width, height float64, nx, ny int) error {
	if !(width > 0) || !(height > 0) ||
		math.IsInf(width, 0) || math.IsInf(height, 0) {
		return fmt.Errorf(
			"Lattice dimensions must be positive and finite, but are "+
				"%g x %g.", width, height,
		)
	} else if nx <= 0 || ny <= 0 {
		return fmt.Errorf(
			"Lattice needs a positive number of cells on each axis, but "+
				"has %d x %d.", nx, ny,
		)
	}

	l.Width, l.Height = width, height
	l.Nx, l.Ny = nx, ny
	l.dx, l.dy = width/float64(nx), height/float64(ny)
	return nil
}

// Cells returns the number of cells in the lattice.
func (l *Lattice) Cells() int { return l.Nx * l.Ny }

// CellWidth returns the x and y widths of a single cell.
func (l *Lattice) CellWidth() (dx, dy float64) { return l.dx, l.dy }

// Area returns the area of a single cell.
func (l *Lattice) Area() float64 { return l.dx * l.dy }

// Idx returns the cell index corresponding to a set of coordinates.
func (l *Lattice) Idx(ix, iy int) int { return ix + iy*l.Nx }

// IdxCheck returns an index and true if the given coordinates are valid and
// false otherwise.
func (l *Lattice) IdxCheck(ix, iy int) (idx int, ok bool) {
	if !l.BoundsCheck(ix, iy) {
		return -1, false
	}
	return l.Idx(ix, iy), true
}

// BoundsCheck returns true if the given coordinates are within the Lattice
// and false otherwise.
func (l *Lattice) BoundsCheck(ix, iy int) bool {
	return ix >= 0 && iy >= 0 && ix < l.Nx && iy < l.Ny
}

// Coords returns the ix, iy coordinates of a cell from its index.
func (l *Lattice) Coords(idx int) (ix, iy int) {
	return idx % l.Nx, idx / l.Nx
}

// Center returns the center point of cell idx.
func (l *Lattice) Center(idx int) (x, y float64) {
	ix, iy := l.Coords(idx)
	return (float64(ix) + 0.5) * l.dx, (float64(iy) + 0.5) * l.dy
}

// CellAt returns the index of the cell containing (x, y). Points on the
// outer boundary belong to the adjacent interior cell.
func (l *Lattice) CellAt(x, y float64) (idx int, ok bool) {
	if x < 0 || y < 0 || x > l.Width || y > l.Height {
		return -1, false
	}
	ix := clamp(int(x/l.dx), 0, l.Nx-1)
	iy := clamp(int(y/l.dy), 0, l.Ny-1)
	return l.Idx(ix, iy), true
}

// Contains returns true if (x, y) is inside the lattice or on its boundary,
// allowing for an absolute tolerance of eps.
func (l *Lattice) Contains(x, y, eps float64) bool {
	return x >= -eps && y >= -eps && x <= l.Width+eps && y <= l.Height+eps
}

func clamp(x, lo, hi int) int {
	if x < lo {
		return lo
	} else if x > hi {
		return hi
	}
	return x
}
