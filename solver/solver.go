/*Package solver runs source iteration: repeated transport sweeps with the
scattering and fission sources rebuilt from the new scalar flux in between,
until the sources stop changing.

A Driver is a small state machine,

    Initializing -> Sweeping -> SourceUpdating -> (Sweeping | Converged | Diverged)

with two extra terminal states: Failed, entered when a sweep or source update
reports a numeric failure, and Aborted, entered when the context passed to
Step or Run is cancelled. Cancellation is only checked between states, so a
sweep is never interrupted.
*/
package solver

import (
	"context"
	"fmt"
	"log"
	"math"
	"strings"

	"github.com/phil-mansfield/gomoc/fsr"
	"github.com/phil-mansfield/gomoc/material"
	"github.com/phil-mansfield/gomoc/status"
	"github.com/phil-mansfield/gomoc/sweep"
)

// State is a state of the Driver.
type State int

const (
	Initializing State = iota
	Sweeping
	SourceUpdating
	Converged
	Diverged
	Failed
	Aborted
)

func (s State) String() string {
	switch s {
	case Initializing:
		return "Initializing"
	case Sweeping:
		return "Sweeping"
	case SourceUpdating:
		return "SourceUpdating"
	case Converged:
		return "Converged"
	case Diverged:
		return "Diverged"
	case Failed:
		return "Failed"
	case Aborted:
		return "Aborted"
	}
	return "State(?)"
}

// Terminal returns true for states the Driver never leaves.
func (s State) Terminal() bool { return s >= Converged }

// Mode selects the kind of problem being solved.
type Mode int

const (
	// FixedSource problems are driven by external sources. Fission, if any,
	// multiplies them with k fixed at one.
	FixedSource Mode = iota
	// Eigenvalue problems ignore external sources and search for the
	// multiplication factor k and its fundamental mode.
	Eigenvalue
)

func (m Mode) String() string {
	switch m {
	case FixedSource:
		return "FixedSource"
	case Eigenvalue:
		return "Eigenvalue"
	}
	return "Mode(?)"
}

// ParseMode converts a case insensitive mode name into a Mode.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "fixedsource", "fixed-source", "fixed":
		return FixedSource, nil
	case "eigenvalue", "eigen", "k":
		return Eigenvalue, nil
	}
	return 0, fmt.Errorf(
		"Unrecognized mode '%s'. Must be one of [FixedSource | Eigenvalue].", s,
	)
}

const (
	DefaultMaxIterations = 1000
	DefaultTolerance     = 1e-6
)

// Options configures a Driver. Zero values select defaults.
type Options struct {
	MaxIterations int
	Tolerance     float64
	Mode          Mode
	// InitialFlux is the uniform scalar flux guess. Defaults to 1.
	InitialFlux float64
	// InitialK is the starting multiplication factor in Eigenvalue mode.
	// Defaults to 1.
	InitialK float64
}

// Result is the outcome of a run.
type Result struct {
	State      State
	Iterations int
	// Flux is a copy of the scalar flux, indexed by region*groups + group.
	Flux []float64
	// K is the multiplication factor. It is always 1 in FixedSource mode.
	K float64
	// Residual is the last convergence metric and Residuals its history.
	Residual  float64
	Residuals []float64
}

// Driver iterates a sweep.Engine to convergence.
type Driver struct {
	engine *sweep.Engine
	fsrs   *fsr.Table
	mats   *material.Table
	opts   Options

	state    State
	err      error
	iter     int
	k        float64
	residual float64
	history  []float64

	fissile bool
	// fission holds the region fission sources of the last accepted flux
	// and fissionTotal their sum.
	fission      []float64
	fissionTotal float64

	log bool
}

// New returns a Driver in the Initializing state.
func New(engine *sweep.Engine, opts Options) (*Driver, error) {
	if opts.MaxIterations == 0 {
		opts.MaxIterations = DefaultMaxIterations
	}
	if opts.Tolerance == 0 {
		opts.Tolerance = DefaultTolerance
	}
	if opts.InitialFlux == 0 {
		opts.InitialFlux = 1
	}
	if opts.InitialK == 0 {
		opts.InitialK = 1
	}

	switch {
	case opts.MaxIterations < 0:
		return nil, status.Errorf(
			status.InvalidArgument,
			"MaxIterations must be positive, but is %d.", opts.MaxIterations,
		)
	case !(opts.Tolerance > 0) || math.IsInf(opts.Tolerance, 0):
		return nil, status.Errorf(
			status.InvalidArgument,
			"Tolerance must be positive and finite, but is %g.", opts.Tolerance,
		)
	case !(opts.InitialFlux > 0) || math.IsInf(opts.InitialFlux, 0):
		return nil, status.Errorf(
			status.InvalidArgument,
			"InitialFlux must be positive and finite, but is %g.",
			opts.InitialFlux,
		)
	case !(opts.InitialK > 0) || math.IsInf(opts.InitialK, 0):
		return nil, status.Errorf(
			status.InvalidArgument,
			"InitialK must be positive and finite, but is %g.", opts.InitialK,
		)
	case opts.Mode != FixedSource && opts.Mode != Eigenvalue:
		return nil, status.Errorf(
			status.InvalidArgument, "Unknown mode %d.", int(opts.Mode),
		)
	}

	fsrs := engine.Regions()
	d := &Driver{
		engine:  engine,
		fsrs:    fsrs,
		mats:    fsrs.Materials(),
		opts:    opts,
		state:   Initializing,
		k:       1,
		fission: make([]float64, fsrs.Len()),
	}

	for r := 0; r < fsrs.Len(); r++ {
		if d.mats.Fissile(fsrs.Material(r)) {
			d.fissile = true
			break
		}
	}
	if opts.Mode == Eigenvalue && !d.fissile {
		return nil, status.Errorf(
			status.InvalidArgument,
			"Eigenvalue mode needs at least one region with a fissile "+
				"material.",
		)
	}

	return d, nil
}

// Log turns per-iteration logging on or off.
func (d *Driver) Log(flag bool) { d.log = flag }

// State returns the current state.
func (d *Driver) State() State { return d.state }

// Iterations returns the number of completed sweeps.
func (d *Driver) Iterations() int { return d.iter }

// K returns the current multiplication factor.
func (d *Driver) K() float64 { return d.k }

// Residuals returns the convergence metric of every completed iteration.
func (d *Driver) Residuals() []float64 { return d.history }

// Err returns the error that ended the run, if any.
func (d *Driver) Err() error { return d.err }

// Step performs a single state transition and returns the new state. Once a
// terminal state is reached Step does nothing and returns the error that
// accompanied it, if any.
func (d *Driver) Step(ctx context.Context) (State, error) {
	if d.state.Terminal() {
		return d.state, d.err
	}
	if err := ctx.Err(); err != nil {
		return d.fail(Aborted, status.Errorf(
			status.Aborted, "Source iteration aborted after %d sweeps: %s",
			d.iter, err.Error(),
		))
	}

	switch d.state {
	case Initializing:
		d.initialize()
		if err := d.updateSources(); err != nil {
			return d.fail(Failed, err)
		}
		d.state = Sweeping

	case Sweeping:
		if err := d.engine.Sweep(); err != nil {
			return d.fail(Failed, err)
		}
		d.iter++
		d.state = SourceUpdating

	case SourceUpdating:
		d.residual = d.update()
		d.history = append(d.history, d.residual)
		if err := d.updateSources(); err != nil {
			return d.fail(Failed, err)
		}

		if d.log {
			log.Printf(
				"Iteration %4d: residual %.4e, k = %.6f",
				d.iter, d.residual, d.k,
			)
		}

		if math.IsNaN(d.residual) || math.IsInf(d.residual, 0) {
			return d.fail(Failed, status.Errorf(
				status.NumericFailure,
				"Convergence metric of iteration %d is %g.",
				d.iter, d.residual,
			))
		} else if d.residual < d.opts.Tolerance {
			d.state = Converged
		} else if d.iter >= d.opts.MaxIterations {
			return d.fail(Diverged, status.Errorf(
				status.ConvergenceFailure,
				"Source iteration did not converge in %d iterations. The "+
					"last residual was %g, but the tolerance is %g.",
				d.iter, d.residual, d.opts.Tolerance,
			))
		} else {
			d.state = Sweeping
		}
	}

	return d.state, nil
}

func (d *Driver) fail(s State, err error) (State, error) {
	d.state, d.err = s, err
	if d.log {
		log.Printf("Source iteration ended in state %s: %s", s, err.Error())
	}
	return s, err
}

// Run steps the Driver until it reaches a terminal state. The Result is
// returned whenever the iteration produced one, including alongside a
// ConvergenceFailure.
func (d *Driver) Run(ctx context.Context) (*Result, error) {
	for !d.state.Terminal() {
		d.Step(ctx)
	}
	return d.Result(), d.err
}

// Result returns a snapshot of the current solution.
func (d *Driver) Result() *Result {
	return &Result{
		State:      d.state,
		Iterations: d.iter,
		Flux:       append([]float64{}, d.fsrs.ScalarFlux()...),
		K:          d.k,
		Residual:   d.residual,
		Residuals:  append([]float64{}, d.history...),
	}
}

// FissionRates returns the volume-integrated fission rate of every region.
func (d *Driver) FissionRates() []float64 { return d.fsrs.FissionRates() }

func (d *Driver) initialize() {
	d.iter, d.residual, d.history = 0, 0, nil
	d.k = 1
	if d.opts.Mode == Eigenvalue {
		d.k = d.opts.InitialK
	}

	d.fsrs.SetFlux(d.opts.InitialFlux)
	d.engine.ResetBoundaryFlux()
	d.fissionTotal = d.fissionSources(d.fission)

	if d.log {
		log.Printf(
			"Starting %s source iteration over %d regions and %d groups.",
			d.opts.Mode, d.fsrs.Len(), d.fsrs.Groups(),
		)
	}
}

func (d *Driver) fissionSources(out []float64) float64 {
	flux := d.fsrs.ScalarFlux()
	sum := 0.0
	for r := range out {
		out[r] = d.fsrs.FissionSource(r, flux)
		sum += out[r]
	}
	return sum
}

// update accepts the flux of the last sweep, updating k and normalizing the
// flux in Eigenvalue mode, and returns the convergence metric. In Eigenvalue
// mode the metric is the larger of the fission shape change and the relative
// change in k.
func (d *Driver) update() float64 {
	if !d.fissile {
		return maxRelChange(d.fsrs.ScalarFlux(), flatOld(d.fsrs))
	}

	fission := make([]float64, len(d.fission))
	total := d.fissionSources(fission)
	kPrev := d.k

	if d.opts.Mode == Eigenvalue && total > 0 {
		if d.fissionTotal > 0 {
			d.k *= total / d.fissionTotal
		}
		norm := 1 / total
		d.fsrs.ScaleFlux(norm)
		d.engine.ScaleBoundaryFlux(norm)
		for r := range fission {
			fission[r] *= norm
		}
		total = 1
		if d.fissionTotal > 0 {
			// The previous sources were normalized the same way.
			prev := 1 / d.fissionTotal
			for r := range d.fission {
				d.fission[r] *= prev
			}
		}
	}

	metric := maxRelChange(fission, d.fission)
	if d.opts.Mode == Eigenvalue {
		// A flat fission shape can stop changing long before k does.
		if dk := math.Abs(d.k-kPrev) / d.k; dk > metric || math.IsNaN(dk) {
			metric = dk
		}
	}
	d.fission, d.fissionTotal = fission, total
	return metric
}

func flatOld(t *fsr.Table) []float64 {
	out := make([]float64, 0, t.Len()*t.Groups())
	for r := 0; r < t.Len(); r++ {
		out = append(out, t.OldFlux(r)...)
	}
	return out
}

// maxRelChange returns the largest relative difference between next and
// prev. Entries that are zero in next use the absolute difference instead.
func maxRelChange(next, prev []float64) float64 {
	max := 0.0
	for i := range next {
		diff := math.Abs(next[i] - prev[i])
		if next[i] != 0 {
			diff /= math.Abs(next[i])
		}
		if diff > max || math.IsNaN(diff) {
			max = diff
		}
	}
	return max
}

// updateSources rebuilds every region's total source from the current flux:
//
//     Q_g = ext_g + sum_g' SigmaS(g'->g) flux_g' + chi_g/k sum_g' NuSigmaF_g' flux_g'
//
// External sources are left out in Eigenvalue mode.
func (d *Driver) updateSources() error {
	groups := d.fsrs.Groups()
	q := make([]float64, groups)
	for r := 0; r < d.fsrs.Len(); r++ {
		id := d.fsrs.Material(r)
		sigS, chi, nuSigF := d.mats.SigmaS(id), d.mats.Chi(id), d.mats.NuSigmaF(id)
		flux := d.fsrs.Flux(r)

		fission := 0.0
		for g, f := range flux {
			fission += nuSigF[g] * f
		}
		fission /= d.k

		ext := d.fsrs.ExternalSource(r)
		for g := range q {
			q[g] = chi[g] * fission
			if d.opts.Mode == FixedSource {
				q[g] += ext[g]
			}
			for from, f := range flux {
				q[g] += sigS[from*groups+g] * f
			}
		}

		if err := d.fsrs.SetSource(r, q); err != nil {
			return status.Errorf(
				status.NumericFailure,
				"Could not update the source of region %d: %s", r, err.Error(),
			)
		}
	}
	return nil
}
