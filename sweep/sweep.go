package sweep

import (
	"math"
	"runtime"

	"github.com/phil-mansfield/gomoc/fsr"
	"github.com/phil-mansfield/gomoc/material"
	"github.com/phil-mansfield/gomoc/quadrature"
	"github.com/phil-mansfield/gomoc/status"
	"github.com/phil-mansfield/gomoc/track"
)

// Options configures an Engine. Zero values select defaults.
type Options struct {
	// Workers is the number of goroutines a sweep is split across. Defaults
	// to runtime.NumCPU().
	Workers int
	// Exp evaluates segment attenuation. Defaults to Exact.
	Exp ExpEvaluator
}

// Engine performs transport sweeps over every track, in both directions,
// for every polar angle and energy group.
//
// Boundary angular fluxes are double buffered: a sweep reads the fluxes
// entering each track from the buffer written by the previous sweep and
// writes the fluxes leaving each track into the other one. No track ever sees
// a value written during the same sweep, so the result doesn't depend on the
// order tracks are processed in or how they are split between workers.
type Engine struct {
	mats   *material.Table
	fsrs   *fsr.Table
	tracks *track.Table
	polar  *quadrature.Polar

	groups, polars int
	exp            ExpEvaluator

	workers int
	order   []int
	parts   [][]int
	accs    []*fsr.Accumulator
	errs    []error

	// invSin[p] = 1/sin_p and polarW[p] = w_p * sin_p.
	invSin, polarW []float64
	// sigT and reduced are indexed by region*groups + group.
	sigT, reduced []float64

	// entry and exit are indexed by (slot*polars + p)*groups + g, where slot
	// comes from track.EntrySlot.
	entry, exit []float64

	sweeps int
}

// New creates an Engine over the given tables. The material table must be
// sealed and the region table must be fully populated: adding regions
// afterwards invalidates the engine.
func New(
	fsrs *fsr.Table, tracks *track.Table,
	polar *quadrature.Polar, opts Options,
) (*Engine, error) {
	if err := polar.Valid(); err != nil {
		return nil, status.Errorf(status.InvalidArgument, "%s", err.Error())
	} else if tracks.NumRegions() != fsrs.Len() {
		return nil, status.Errorf(
			status.InvalidArgument,
			"Tracks were built for %d regions, but the region table has %d.",
			tracks.NumRegions(), fsrs.Len(),
		)
	} else if opts.Workers < 0 {
		return nil, status.Errorf(
			status.InvalidArgument,
			"Worker count must be non-negative, but is %d.", opts.Workers,
		)
	}

	e := &Engine{
		mats:   fsrs.Materials(),
		fsrs:   fsrs,
		tracks: tracks,
		polar:  polar,
		groups: fsrs.Groups(),
		polars: polar.Len(),
		exp:    opts.Exp,
	}
	if e.exp == nil {
		e.exp = Exact{}
	}

	e.workers = opts.Workers
	if e.workers == 0 {
		e.workers = runtime.NumCPU()
	}

	e.invSin = make([]float64, e.polars)
	e.polarW = make([]float64, e.polars)
	for p := range e.invSin {
		e.invSin[p] = 1 / polar.Sin[p]
		e.polarW[p] = polar.Weights[p] * polar.Sin[p]
	}

	n := fsrs.Len() * e.groups
	e.sigT = make([]float64, n)
	e.reduced = make([]float64, n)
	for r := 0; r < fsrs.Len(); r++ {
		sigT := e.mats.SigmaT(fsrs.Material(r))
		for g := 0; g < e.groups; g++ {
			st := sigT[g]
			if st < fsr.MinSigmaT {
				st = fsr.MinSigmaT
			}
			e.sigT[r*e.groups+g] = st
		}
	}

	slots := 2 * tracks.Len() * e.polars * e.groups
	e.entry = make([]float64, slots)
	e.exit = make([]float64, slots)

	e.accs = make([]*fsr.Accumulator, e.workers)
	for i := range e.accs {
		e.accs[i] = fsrs.NewAccumulator()
	}
	e.errs = make([]error, e.workers)

	order := make([]int, tracks.Len())
	for i := range order {
		order[i] = i
	}
	e.setOrder(order)

	return e, nil
}

// Workers returns the number of goroutines each sweep uses.
func (e *Engine) Workers() int { return e.workers }

// Sweeps returns the number of sweeps completed so far.
func (e *Engine) Sweeps() int { return e.sweeps }

// Regions returns the region table the engine sweeps over.
func (e *Engine) Regions() *fsr.Table { return e.fsrs }

// Tracks returns the track table the engine sweeps over.
func (e *Engine) Tracks() *track.Table { return e.tracks }

// SetTrackOrder changes the order tracks are handed out to workers in. perm
// must be a permutation of [0, Tracks().Len()).
func (e *Engine) SetTrackOrder(perm []int) error {
	if len(perm) != e.tracks.Len() {
		return status.Errorf(
			status.InvalidArgument,
			"Track order has %d entries, but there are %d tracks.",
			len(perm), e.tracks.Len(),
		)
	}
	seen := make([]bool, len(perm))
	for i, t := range perm {
		if t < 0 || t >= len(perm) || seen[t] {
			return status.Errorf(
				status.InvalidArgument,
				"Entry %d of the track order, %d, is out of range or repeated.",
				i, t,
			)
		}
		seen[t] = true
	}
	e.setOrder(append([]int{}, perm...))
	return nil
}

// setOrder splits order into contiguous blocks, one per worker.
func (e *Engine) setOrder(order []int) {
	e.order = order
	e.parts = make([][]int, e.workers)
	n := len(order)
	for id := range e.parts {
		lo, hi := id*n/e.workers, (id+1)*n/e.workers
		e.parts[id] = order[lo:hi]
	}
}

func (e *Engine) slot(id int, forward bool) []float64 {
	size := e.polars * e.groups
	s := track.EntrySlot(id, forward) * size
	return e.entry[s : s+size]
}

// EntryFlux returns a copy of the angular flux that will enter track id in
// the given direction during the next sweep, indexed by p*groups + g.
func (e *Engine) EntryFlux(id int, forward bool) ([]float64, error) {
	if id < 0 || id >= e.tracks.Len() {
		return nil, status.Errorf(
			status.NotFound, "No track with id %d (table has %d).",
			id, e.tracks.Len(),
		)
	}
	return append([]float64{}, e.slot(id, forward)...), nil
}

// ScaleBoundaryFlux multiplies every stored boundary angular flux by f. It is
// used alongside fsr.Table.ScaleFlux when the solution is renormalized.
func (e *Engine) ScaleBoundaryFlux(f float64) {
	for i := range e.entry {
		e.entry[i] *= f
	}
}

// ResetBoundaryFlux sets every stored boundary angular flux to zero.
func (e *Engine) ResetBoundaryFlux() {
	for i := range e.entry {
		e.entry[i] = 0
	}
}

// Sweep transports the current region sources along every track and
// converts the result into new scalar fluxes with fsr.Table.FinalizeSweep.
// If any angular flux becomes NaN or infinite the sweep is abandoned with a
// NumericFailure and the boundary fluxes are left as they were.
func (e *Engine) Sweep() error {
	if e.fsrs.Len() != e.tracks.NumRegions() {
		return status.Errorf(
			status.InvalidState,
			"Region table has %d regions, but the engine was built for %d.",
			e.fsrs.Len(), e.tracks.NumRegions(),
		)
	}

	src := e.fsrs.Sources()
	for i, q := range src {
		e.reduced[i] = q / (4 * math.Pi * e.sigT[i])
	}
	for i := range e.exit {
		e.exit[i] = 0
	}
	e.fsrs.ResetAccumulators()

	out := make(chan int, e.workers)
	for id := 0; id < e.workers-1; id++ {
		go e.chanSweep(id, out)
	}
	e.chanSweep(e.workers-1, out)
	for i := 0; i < e.workers; i++ {
		<-out
	}

	// Workers are merged by id rather than completion order so that the
	// floating point sums are reproducible.
	for id := 0; id < e.workers; id++ {
		if e.errs[id] != nil {
			return e.errs[id]
		}
	}
	for id := 0; id < e.workers; id++ {
		if err := e.fsrs.Merge(e.accs[id]); err != nil {
			return err
		}
	}

	e.entry, e.exit = e.exit, e.entry
	e.sweeps++

	return e.fsrs.FinalizeSweep()
}

func (e *Engine) chanSweep(id int, out chan<- int) {
	acc := e.accs[id]
	acc.Reset()
	e.errs[id] = nil
	psi := make([]float64, e.polars*e.groups)

	for _, t := range e.parts[id] {
		tr := e.tracks.At(t)
		segs := tr.Segments

		copy(psi, e.slot(t, true))
		for k := range segs {
			e.segment(&segs[k], tr.Weight, psi, acc)
		}
		if !e.store(tr.Out, psi) {
			e.errs[id] = e.nonFinite(t, true)
			break
		}

		copy(psi, e.slot(t, false))
		for k := len(segs) - 1; k >= 0; k-- {
			e.segment(&segs[k], tr.Weight, psi, acc)
		}
		if !e.store(tr.In, psi) {
			e.errs[id] = e.nonFinite(t, false)
			break
		}
	}

	out <- id
}

// segment attenuates psi across seg and tallies the change into acc.
func (e *Engine) segment(
	seg *track.Segment, weight float64, psi []float64, acc *fsr.Accumulator,
) {
	g0 := seg.Region * e.groups
	sigT := e.sigT[g0 : g0+e.groups]
	q := e.reduced[g0 : g0+e.groups]
	a := acc.Region(seg.Region)

	for p := 0; p < e.polars; p++ {
		l := seg.Length * e.invSin[p]
		w := weight * e.polarW[p]
		ps := psi[p*e.groups : (p+1)*e.groups]
		for g := range ps {
			d := (ps[g] - q[g]) * e.exp.OneMinusExp(sigT[g]*l)
			ps[g] -= d
			a[g] += w * d
		}
	}
}

// store writes psi into the pending entry slot named by l. It returns false
// if psi isn't finite.
func (e *Engine) store(l track.Link, psi []float64) bool {
	for _, x := range psi {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return false
		}
	}
	if l.BC == track.Vacuum {
		return true
	}
	size := e.polars * e.groups
	s := track.EntrySlot(l.Track, l.Forward) * size
	copy(e.exit[s:s+size], psi)
	return true
}

func (e *Engine) nonFinite(t int, forward bool) error {
	dir := "backward"
	if forward {
		dir = "forward"
	}
	return status.Errorf(
		status.NumericFailure,
		"Angular flux leaving track %d (%s) is not finite.", t, dir,
	)
}
