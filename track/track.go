package track

import (
	"fmt"
	"math"
	"strings"

	"github.com/phil-mansfield/gomoc/status"
)

// LengthEps is the relative tolerance between a track's chord and the sum
// of its segment lengths.
const LengthEps = 1e-6

// Boundary is the condition applied where a track leaves the geometry.
type Boundary int

const (
	Vacuum Boundary = iota
	Reflective
	Periodic
)

func (b Boundary) String() string {
	switch b {
	case Vacuum:
		return "Vacuum"
	case Reflective:
		return "Reflective"
	case Periodic:
		return "Periodic"
	}
	return "Boundary(?)"
}

// ParseBoundary converts a case insensitive boundary name into a Boundary.
func ParseBoundary(s string) (Boundary, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "vacuum":
		return Vacuum, nil
	case "reflective":
		return Reflective, nil
	case "periodic":
		return Periodic, nil
	}
	return Vacuum, fmt.Errorf(
		"Unrecognized boundary condition '%s'. Must be one of "+
			"[Vacuum | Reflective | Periodic].", s,
	)
}

// Link describes where the angular flux leaving one end of a track goes.
// Under Vacuum, Track is -1 and the flux is lost. Otherwise the flux enters
// track Track, travelling forward along it (from its (X0, Y0) end) if
// Forward is true and backward (from its (X1, Y1) end) otherwise.
type Link struct {
	BC      Boundary
	Track   int
	Forward bool
}

// Segment is the part of a track inside a single flat source region.
type Segment struct {
	Region int
	Length float64
}

// Track is a single characteristic. Travelling forward goes from (X0, Y0)
// to (X1, Y1) along the direction Phi.
type Track struct {
	X0, Y0, X1, Y1 float64
	// Phi is the azimuthal angle in (0, pi) and Azim its index.
	Phi  float64
	Azim int
	// Weight is the azimuthal quadrature weight times the track spacing
	// times 4 pi. The sweep multiplies it with polar weights and sines.
	Weight float64

	Segments []Segment

	// Out is followed when leaving (X1, Y1) while travelling forward, In
	// when leaving (X0, Y0) while travelling backward.
	Out, In Link
}

// Chord returns the distance between the track's endpoints.
func (t *Track) Chord() float64 {
	return math.Hypot(t.X1-t.X0, t.Y1-t.Y0)
}

// Table is an immutable set of tracks. Segments of every track live in a
// single arena and tracks refer to them by offset.
type Table struct {
	tracks  []Track
	offsets []int
	arena   []Segment

	numAzim    int
	numRegions int
	byAzim     [][]int
}

// NewTable validates tracks and copies them into a Table. numAzim is the
// number of azimuthal angles in (0, pi) and numRegions the size of the flat
// source region table the segments refer to.
func NewTable(tracks []Track, numAzim, numRegions int) (*Table, error) {
	if numAzim <= 0 {
		return nil, status.Errorf(
			status.InvalidArgument,
			"Track table needs a positive azimuthal angle count, not %d.",
			numAzim,
		)
	}

	t := &Table{
		tracks:     make([]Track, len(tracks)),
		offsets:    make([]int, len(tracks)+1),
		numAzim:    numAzim,
		numRegions: numRegions,
		byAzim:     make([][]int, numAzim),
	}

	n := 0
	for i := range tracks {
		n += len(tracks[i].Segments)
	}
	t.arena = make([]Segment, 0, n)

	for i := range tracks {
		if err := t.check(i, &tracks[i], len(tracks)); err != nil {
			return nil, err
		}
		t.offsets[i] = len(t.arena)
		t.arena = append(t.arena, tracks[i].Segments...)
		t.tracks[i] = tracks[i]
		t.byAzim[tracks[i].Azim] = append(t.byAzim[tracks[i].Azim], i)
	}
	t.offsets[len(tracks)] = len(t.arena)

	for i := range t.tracks {
		t.tracks[i].Segments = t.Segments(i)
	}

	if err := t.checkLinks(); err != nil {
		return nil, err
	}

	return t, nil
}

func finite(xs ...float64) bool {
	for _, x := range xs {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return false
		}
	}
	return true
}

func (t *Table) check(i int, tr *Track, n int) error {
	if !finite(tr.X0, tr.Y0, tr.X1, tr.Y1, tr.Phi, tr.Weight) {
		return status.Errorf(
			status.InvalidArgument, "Track %d has non-finite geometry.", i,
		)
	} else if !(tr.Weight > 0) {
		return status.Errorf(
			status.InvalidArgument,
			"Track %d has weight %g, but weights must be positive.",
			i, tr.Weight,
		)
	} else if tr.Azim < 0 || tr.Azim >= t.numAzim {
		return status.Errorf(
			status.InvalidArgument,
			"Track %d has azimuthal index %d, but there are %d angles.",
			i, tr.Azim, t.numAzim,
		)
	} else if len(tr.Segments) == 0 {
		return status.Errorf(
			status.InvalidArgument, "Track %d has no segments.", i,
		)
	}

	sum := 0.0
	for j, seg := range tr.Segments {
		if seg.Region < 0 || seg.Region >= t.numRegions {
			return status.Errorf(
				status.InvalidArgument,
				"Segment %d of track %d is in region %d, but there are %d "+
					"regions.", j, i, seg.Region, t.numRegions,
			)
		} else if !(seg.Length >= 0) || math.IsInf(seg.Length, 0) {
			return status.Errorf(
				status.InvalidArgument,
				"Segment %d of track %d has length %g.", j, i, seg.Length,
			)
		}
		sum += seg.Length
	}

	chord := tr.Chord()
	if math.Abs(sum-chord) > LengthEps*chord {
		return status.Errorf(
			status.InvalidArgument,
			"Segments of track %d sum to %.10g, but its chord is %.10g.",
			i, sum, chord,
		)
	}

	for _, l := range []Link{tr.Out, tr.In} {
		if l.BC == Vacuum {
			continue
		} else if l.BC != Reflective && l.BC != Periodic {
			return status.Errorf(
				status.InvalidArgument,
				"Track %d has unknown boundary condition %d.", i, int(l.BC),
			)
		} else if l.Track < 0 || l.Track >= n {
			return status.Errorf(
				status.InvalidArgument,
				"Track %d links to track %d, but there are %d tracks.",
				i, l.Track, n,
			)
		}
	}

	return nil
}

// checkLinks makes sure that no track entry is fed by more than one link,
// since that entry's flux would depend on which exit was written last.
func (t *Table) checkLinks() error {
	fed := make([]int, 2*len(t.tracks))
	for i := range fed {
		fed[i] = -1
	}
	for i := range t.tracks {
		for _, l := range []Link{t.tracks[i].Out, t.tracks[i].In} {
			if l.BC == Vacuum {
				continue
			}
			slot := EntrySlot(l.Track, l.Forward)
			if fed[slot] >= 0 {
				return status.Errorf(
					status.InvalidArgument,
					"Tracks %d and %d both link into the same end of "+
						"track %d.", fed[slot], i, l.Track,
				)
			}
			fed[slot] = i
		}
	}
	return nil
}

// EntrySlot returns the index of the boundary flux entering track id in the
// given direction, in [0, 2*Len()).
func EntrySlot(id int, forward bool) int {
	if forward {
		return 2 * id
	}
	return 2*id + 1
}

// Len returns the number of tracks.
func (t *Table) Len() int { return len(t.tracks) }

// NumAzim returns the number of azimuthal angles in (0, pi).
func (t *Table) NumAzim() int { return t.numAzim }

// NumRegions returns the number of regions the table was validated against.
func (t *Table) NumRegions() int { return t.numRegions }

// NumSegments returns the total number of segments.
func (t *Table) NumSegments() int { return len(t.arena) }

// Track returns track id. The returned value must not be modified.
func (t *Table) Track(id int) (*Track, error) {
	if id < 0 || id >= len(t.tracks) {
		return nil, status.Errorf(
			status.NotFound, "No track with id %d (table has %d).",
			id, len(t.tracks),
		)
	}
	return &t.tracks[id], nil
}

// At returns track id without checking that it exists. It is meant for
// inner loops over ids that came from the table itself.
func (t *Table) At(id int) *Track { return &t.tracks[id] }

// Segments returns the segments of track id in forward order. The slice
// aliases the table's arena.
func (t *Table) Segments(id int) []Segment {
	lo, hi := t.offsets[id], t.offsets[id+1]
	return t.arena[lo:hi:hi]
}

// Azim returns the ids of every track at azimuthal index i.
func (t *Table) Azim(i int) []int { return t.byAzim[i] }

// SegmentIter walks the segments of a single track in forward order.
type SegmentIter struct {
	segs []Segment
	i    int
}

// SegmentsOf returns an iterator over the segments of track id.
func (t *Table) SegmentsOf(id int) (*SegmentIter, error) {
	if id < 0 || id >= len(t.tracks) {
		return nil, status.Errorf(
			status.NotFound, "No track with id %d (table has %d).",
			id, len(t.tracks),
		)
	}
	return &SegmentIter{segs: t.Segments(id)}, nil
}

// Next returns the next segment and true, or false once the track has been
// exhausted.
func (it *SegmentIter) Next() (Segment, bool) {
	if it.i >= len(it.segs) {
		return Segment{}, false
	}
	it.i++
	return it.segs[it.i-1], true
}

// Reset rewinds the iterator to the first segment.
func (it *SegmentIter) Reset() { it.i = 0 }

// Coords returns the endpoints of every track as a flat array of
// x0, y0, x1, y1 quadruplets.
func (t *Table) Coords() []float64 {
	out := make([]float64, 4*len(t.tracks))
	for i := range t.tracks {
		tr := &t.tracks[i]
		out[4*i], out[4*i+1] = tr.X0, tr.Y0
		out[4*i+2], out[4*i+3] = tr.X1, tr.Y1
	}
	return out
}

// SegmentValues is the number of values SegmentCoords returns per segment.
const SegmentValues = 5

// SegmentCoords returns every segment as a flat array of
// region, x0, y0, x1, y1 values, in track order.
func (t *Table) SegmentCoords() []float64 {
	out := make([]float64, 0, SegmentValues*len(t.arena))
	for i := range t.tracks {
		tr := &t.tracks[i]
		ux, uy := tr.X1-tr.X0, tr.Y1-tr.Y0
		chord := tr.Chord()
		if chord > 0 {
			ux, uy = ux/chord, uy/chord
		}

		x, y := tr.X0, tr.Y0
		for _, seg := range t.Segments(i) {
			nx, ny := x+ux*seg.Length, y+uy*seg.Length
			out = append(out, float64(seg.Region), x, y, nx, ny)
			x, y = nx, ny
		}
	}
	return out
}

// Volumes estimates the volume (area, in 2D) of each region from the
// tracks passing through it.
func (t *Table) Volumes() []float64 {
	vols := make([]float64, t.numRegions)
	for i := range t.tracks {
		// Weight carries a factor of 4 pi and each track is swept in two
		// directions.
		w := 2 * t.tracks[i].Weight / (4 * math.Pi)
		for _, seg := range t.Segments(i) {
			vols[seg.Region] += w * seg.Length
		}
	}
	return vols
}
