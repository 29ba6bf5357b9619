package track

import (
	"math"
	"sort"

	"github.com/phil-mansfield/gomoc/geom"
	"github.com/phil-mansfield/gomoc/status"
)

// linkEps is the tolerance, relative to the lattice's half perimeter, used
// to decide whether two track endpoints coincide.
const linkEps = 1e-8

// GenerateOptions controls cyclic track laying.
type GenerateOptions struct {
	// NumAzim is the number of azimuthal angles in [0, 2 pi). It must be a
	// positive multiple of four.
	NumAzim int
	// Spacing is the requested perpendicular distance between tracks. The
	// effective spacing of each angle is slightly smaller.
	Spacing float64
	// Boundaries holds the condition on each wall, indexed by geom.Wall.
	Boundaries [4]Boundary
}

// Generate lays cyclic tracks over lat and segments them through its cells,
// using cell indices as region ids. Angles are corrected so that every track
// ends exactly where another one starts, which lets reflective and periodic
// walls be linked track to track.
func Generate(lat *geom.Lattice, opts GenerateOptions) (*Table, error) {
	if opts.NumAzim <= 0 || opts.NumAzim%4 != 0 {
		return nil, status.Errorf(
			status.InvalidArgument,
			"NumAzim must be a positive multiple of 4, but is %d.",
			opts.NumAzim,
		)
	} else if !(opts.Spacing > 0) || math.IsInf(opts.Spacing, 0) {
		return nil, status.Errorf(
			status.InvalidArgument,
			"Track spacing must be positive and finite, but is %g.",
			opts.Spacing,
		)
	}
	bcs := opts.Boundaries
	if (bcs[geom.XMin] == Periodic) != (bcs[geom.XMax] == Periodic) ||
		(bcs[geom.YMin] == Periodic) != (bcs[geom.YMax] == Periodic) {
		return nil, status.Errorf(
			status.InvalidArgument,
			"Periodic boundaries must be set on opposite walls in pairs.",
		)
	}

	na := opts.NumAzim / 2
	phis, counts := correctedAngles(lat, opts)
	weights := azimWeights(phis[:na/2])

	tracks := []Track{}
	var buf []geom.Crossing
	for a := 0; a < na; a++ {
		nx, ny := counts[a][0], counts[a][1]
		dx, dy := lat.Width/float64(nx), lat.Height/float64(ny)
		phi := phis[a]
		spacing := dx * math.Sin(phi)

		var w float64
		if a < na/2 {
			w = weights[a]
		} else {
			w = weights[na-1-a]
		}

		starts := make([][2]float64, 0, nx+ny)
		for j := 0; j < nx; j++ {
			starts = append(starts, [2]float64{dx * (float64(j) + 0.5), 0})
		}
		for j := 0; j < ny; j++ {
			y := dy * (float64(j) + 0.5)
			if phi < math.Pi/2 {
				starts = append(starts, [2]float64{0, y})
			} else {
				starts = append(starts, [2]float64{lat.Width, y})
			}
		}

		for _, s := range starts {
			x1, y1 := lat.Exit(s[0], s[1], phi)
			tr := Track{
				X0: s[0], Y0: s[1], X1: x1, Y1: y1,
				Phi: phi, Azim: a,
				Weight: 4 * math.Pi * w * spacing,
			}
			buf = lat.Trace(tr.X0, tr.Y0, tr.X1, tr.Y1, buf[:0])
			tr.Segments = make([]Segment, len(buf))
			for k, c := range buf {
				tr.Segments[k] = Segment{c.Cell, c.Length}
			}
			tracks = append(tracks, tr)
		}
	}

	if err := link(lat, tracks, na, bcs); err != nil {
		return nil, err
	}

	return NewTable(tracks, na, lat.Cells())
}

// correctedAngles returns the azimuthal angle and the number of tracks
// starting on the x and y axes for every angle in (0, pi).
func correctedAngles(
	lat *geom.Lattice, opts GenerateOptions,
) (phis []float64, counts [][2]int) {
	na := opts.NumAzim / 2
	phis = make([]float64, na)
	counts = make([][2]int, na)

	for a := 0; a < na/2; a++ {
		phi := 2 * math.Pi / float64(opts.NumAzim) * (0.5 + float64(a))
		nx := int(math.Abs(lat.Width/opts.Spacing*math.Sin(phi))) + 1
		ny := int(math.Abs(lat.Height/opts.Spacing*math.Cos(phi))) + 1
		eff := math.Atan((lat.Height * float64(nx)) / (lat.Width * float64(ny)))

		phis[a], phis[na-1-a] = eff, math.Pi-eff
		counts[a], counts[na-1-a] = [2]int{nx, ny}, [2]int{nx, ny}
	}
	return phis, counts
}

// azimWeights returns the fraction of the full circle represented by each
// angle in (0, pi/2), splitting the gaps between corrected angles evenly.
func azimWeights(phis []float64) []float64 {
	n := len(phis)
	ws := make([]float64, n)
	for i := range phis {
		var lo, hi float64
		if i == 0 {
			lo = phis[0]
		} else {
			lo = (phis[i] - phis[i-1]) / 2
		}
		if i == n-1 {
			hi = math.Pi/2 - phis[i]
		} else {
			hi = (phis[i+1] - phis[i]) / 2
		}
		ws[i] = (lo + hi) / (2 * math.Pi)
	}
	return ws
}

// endpoint is a track end, located by its distance s along the lattice
// perimeter counter-clockwise from the origin.
type endpoint struct {
	s     float64
	track int
	start bool
}

func perimeter(lat *geom.Lattice, x, y float64) float64 {
	w, h := lat.Width, lat.Height
	switch lat.WallAt(x, y, linkEps) {
	case geom.YMin:
		return x
	case geom.XMax:
		return w + y
	case geom.YMax:
		return w + h + (w - x)
	case geom.XMin:
		return 2*w + h + (h - y)
	}
	return math.NaN()
}

func link(lat *geom.Lattice, tracks []Track, na int, bcs [4]Boundary) error {
	ends := make([][]endpoint, na)
	for i := range tracks {
		tr := &tracks[i]
		ends[tr.Azim] = append(ends[tr.Azim],
			endpoint{perimeter(lat, tr.X0, tr.Y0), i, true},
			endpoint{perimeter(lat, tr.X1, tr.Y1), i, false},
		)
	}
	for a := range ends {
		e := ends[a]
		sort.Slice(e, func(i, j int) bool { return e[i].s < e[j].s })
	}

	tol := linkEps * (lat.Width + lat.Height)
	find := func(a int, x, y float64) (endpoint, bool) {
		s := perimeter(lat, x, y)
		e := ends[a]
		i := sort.Search(len(e), func(i int) bool { return e[i].s >= s-tol })
		if i < len(e) && math.Abs(e[i].s-s) <= tol {
			return e[i], true
		}
		// s wraps around at the origin.
		if len(e) > 0 && math.Abs(e[len(e)-1].s-s-2*(lat.Width+lat.Height)) <= tol {
			return e[len(e)-1], true
		}
		return endpoint{}, false
	}

	for i := range tracks {
		tr := &tracks[i]
		for _, end := range []struct {
			l    *Link
			x, y float64
		}{{&tr.Out, tr.X1, tr.Y1}, {&tr.In, tr.X0, tr.Y0}} {
			wall := lat.WallAt(end.x, end.y, linkEps)
			if wall == geom.NoWall {
				return status.Errorf(
					status.InvalidArgument,
					"Track %d ends at (%g, %g), which is not on a wall.",
					i, end.x, end.y,
				)
			}

			bc := bcs[wall]
			a, x, y := tr.Azim, end.x, end.y
			switch bc {
			case Vacuum:
				*end.l = Link{Vacuum, -1, false}
				continue
			case Reflective:
				a = na - 1 - tr.Azim
			case Periodic:
				switch wall {
				case geom.XMin:
					x = lat.Width
				case geom.XMax:
					x = 0
				case geom.YMin:
					y = lat.Height
				case geom.YMax:
					y = 0
				}
			}

			p, ok := find(a, x, y)
			if !ok {
				return status.Errorf(
					status.InvalidArgument,
					"No %s partner for the end of track %d at (%g, %g).",
					bc, i, end.x, end.y,
				)
			}
			*end.l = Link{bc, p.track, p.start}
		}
	}

	return nil
}
