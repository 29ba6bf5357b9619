/*Package capi is a flat, buffer-oriented surface over the solver, shaped so
that a foreign-function binding can wrap it one call at a time. Every entry
point takes raw numeric buffers with explicit counts, checks the counts
against the buffers, and returns a Status instead of panicking. The most
recent Status of a Handle can also be fetched with LastStatus, which is the
convention C callers expect. There is no process-wide state: each Handle
carries its own.

A Handle is used in this order:

    NewHandle -> LoadMaterials -> LoadRegions -> [SetExternalSource]
              -> LoadTracks -> RunSourceIteration -> read-back calls

Calling an entry point out of order returns InvalidState.
*/
package capi

import (
	"context"
	"math"

	"github.com/phil-mansfield/gomoc/fsr"
	"github.com/phil-mansfield/gomoc/material"
	"github.com/phil-mansfield/gomoc/quadrature"
	"github.com/phil-mansfield/gomoc/solver"
	"github.com/phil-mansfield/gomoc/status"
	"github.com/phil-mansfield/gomoc/sweep"
	"github.com/phil-mansfield/gomoc/track"
)

// LinkValues is the number of values LoadTracks reads per track from its
// links buffer: out BC, out track, out forward, in BC, in track, in forward.
// Forward flags are 0 or 1 and BCs are track.Boundary values.
const LinkValues = 6

// Status is the result of an entry point.
type Status struct {
	Code    status.Code
	Message string
}

// OK returns true if the call succeeded.
func (s Status) OK() bool { return s.Code == status.OK }

func statusOf(err error) Status {
	if err == nil {
		return Status{status.OK, ""}
	}
	return Status{status.CodeOf(err), err.Error()}
}

// RunResult is returned by RunSourceIteration.
type RunResult struct {
	// Flux is indexed by region*groups + group.
	Flux       []float64
	Iterations int
	State      solver.State
	K          float64
}

// Converged returns true if the run ended in the Converged state.
func (r RunResult) Converged() bool { return r.State == solver.Converged }

// Handle owns one problem.
type Handle struct {
	groups, workers int

	mats   *material.Table
	fsrs   *fsr.Table
	tracks *track.Table
	polar  *quadrature.Polar
	mode   solver.Mode
	engine *sweep.Engine
	driver *solver.Driver

	last Status
}

// NewHandle creates a Handle for problems with the given number of energy
// groups, swept by the given number of workers (0 for one per CPU).
func NewHandle(groups, workers int) (*Handle, Status) {
	h := &Handle{workers: workers}
	if groups <= 0 {
		return nil, statusOf(status.Errorf(
			status.InvalidArgument,
			"Group count must be positive, but is %d.", groups,
		))
	} else if workers < 0 {
		return nil, statusOf(status.Errorf(
			status.InvalidArgument,
			"Worker count must be non-negative, but is %d.", workers,
		))
	}
	h.groups = groups

	var err error
	h.polar, err = quadrature.TabuchiYamamoto(3)
	if err != nil {
		return nil, statusOf(err)
	}
	return h, h.set(nil)
}

// LastStatus returns the Status of the most recent call on h.
func (h *Handle) LastStatus() Status { return h.last }

func (h *Handle) set(err error) Status {
	h.last = statusOf(err)
	return h.last
}

func checkLen(name string, xs int, n int) error {
	if xs != n {
		return status.Errorf(
			status.InvalidArgument,
			"Buffer %s has %d values, but %d were expected.", name, xs, n,
		)
	}
	return nil
}

func checkCount(name string, n int) error {
	if n < 0 {
		return status.Errorf(
			status.InvalidArgument, "%s must be non-negative, but is %d.",
			name, n,
		)
	}
	return nil
}

// SetPolarQuadrature selects the polar quadrature by name (see
// quadrature.New) and angle count. It must be called before the first run.
func (h *Handle) SetPolarQuadrature(name string, n int) Status {
	if h.engine != nil {
		return h.set(status.Errorf(
			status.InvalidState,
			"The polar quadrature cannot change after the first run.",
		))
	}
	polar, err := quadrature.New(name, n)
	if err != nil {
		return h.set(status.Errorf(status.InvalidArgument, "%s", err.Error()))
	}
	h.polar = polar
	return h.set(nil)
}

// SetMode selects fixed-source or eigenvalue iteration (see
// solver.ParseMode). It must be called before the first run.
func (h *Handle) SetMode(mode string) Status {
	if h.engine != nil {
		return h.set(status.Errorf(
			status.InvalidState,
			"The iteration mode cannot change after the first run.",
		))
	}
	m, err := solver.ParseMode(mode)
	if err != nil {
		return h.set(status.Errorf(status.InvalidArgument, "%s", err.Error()))
	}
	h.mode = m
	return h.set(nil)
}

// LoadMaterials adds count materials and seals the material table. Every
// per-group buffer holds count*groups values, material-major, and sigmaS
// holds count*groups*groups values with each material's matrix stored
// from-major.
func (h *Handle) LoadMaterials(
	count, groups int,
	sigmaT, sigmaA, sigmaS, sigmaF, nuSigmaF, chi []float64,
) Status {
	return h.set(h.loadMaterials(
		count, groups, sigmaT, sigmaA, sigmaS, sigmaF, nuSigmaF, chi,
	))
}

func (h *Handle) loadMaterials(
	count, groups int,
	sigmaT, sigmaA, sigmaS, sigmaF, nuSigmaF, chi []float64,
) error {
	if h.mats != nil {
		return status.Errorf(
			status.InvalidState, "Materials have already been loaded.",
		)
	} else if err := checkCount("Material count", count); err != nil {
		return err
	} else if groups != h.groups {
		return status.Errorf(
			status.InvalidArgument,
			"Materials have %d groups, but the handle was created with %d.",
			groups, h.groups,
		)
	}

	n := count * groups
	bufs := []struct {
		name string
		xs   []float64
		n    int
	}{
		{"sigmaT", sigmaT, n}, {"sigmaA", sigmaA, n},
		{"sigmaS", sigmaS, n * groups}, {"sigmaF", sigmaF, n},
		{"nuSigmaF", nuSigmaF, n}, {"chi", chi, n},
	}
	for _, buf := range bufs {
		if err := checkLen(buf.name, len(buf.xs), buf.n); err != nil {
			return err
		}
	}

	mats, err := material.NewTable(groups)
	if err != nil {
		return err
	}
	for i := 0; i < count; i++ {
		lo, hi := i*groups, (i+1)*groups
		_, err := mats.Add(&material.Definition{
			Groups:   groups,
			SigmaT:   sigmaT[lo:hi],
			SigmaA:   sigmaA[lo:hi],
			SigmaS:   sigmaS[lo*groups : hi*groups],
			SigmaF:   sigmaF[lo:hi],
			NuSigmaF: nuSigmaF[lo:hi],
			Chi:      chi[lo:hi],
		})
		if err != nil {
			return err
		}
	}
	mats.Seal()
	h.mats = mats
	return nil
}

// LoadRegions adds count flat source regions with the given volumes and
// material ids.
func (h *Handle) LoadRegions(
	count int, volumes []float64, materials []int,
) Status {
	return h.set(h.loadRegions(count, volumes, materials))
}

func (h *Handle) loadRegions(
	count int, volumes []float64, materials []int,
) error {
	if h.mats == nil {
		return status.Errorf(
			status.InvalidState, "Regions need materials to be loaded first.",
		)
	} else if h.fsrs != nil {
		return status.Errorf(
			status.InvalidState, "Regions have already been loaded.",
		)
	} else if err := checkCount("Region count", count); err != nil {
		return err
	} else if err := checkLen("volumes", len(volumes), count); err != nil {
		return err
	} else if err := checkLen("materials", len(materials), count); err != nil {
		return err
	}

	fsrs, err := fsr.NewTable(h.mats)
	if err != nil {
		return err
	}
	for i := 0; i < count; i++ {
		if _, err := fsrs.Add(volumes[i], materials[i]); err != nil {
			return err
		}
	}
	h.fsrs = fsrs
	return nil
}

// SetExternalSource sets the fixed source of every region. source holds
// count*groups values, region-major.
func (h *Handle) SetExternalSource(
	count, groups int, source []float64,
) Status {
	return h.set(h.setExternalSource(count, groups, source))
}

func (h *Handle) setExternalSource(
	count, groups int, source []float64,
) error {
	if h.fsrs == nil {
		return status.Errorf(
			status.InvalidState, "Sources need regions to be loaded first.",
		)
	} else if err := checkLen("region count", count, h.fsrs.Len()); err != nil {
		return err
	} else if err := checkLen("group count", groups, h.groups); err != nil {
		return err
	} else if err := checkLen("source", len(source), count*groups); err != nil {
		return err
	}

	for r := 0; r < count; r++ {
		err := h.fsrs.SetExternalSource(r, source[r*groups:(r+1)*groups])
		if err != nil {
			return err
		}
	}
	return nil
}

// LoadTracks builds the track table. For count tracks the buffers hold:
//
//     coords     4*count       x0, y0, x1, y1 per track
//     phi        count         azimuthal angle
//     weights    count         integration weight
//     azim       count         azimuthal index in [0, numAzim)
//     segOffsets count+1       track i owns segments [segOffsets[i], segOffsets[i+1])
//     segRegions numSegments   region of each segment
//     segLengths numSegments   length of each segment
//     links      6*count       see LinkValues
func (h *Handle) LoadTracks(
	count, numAzim int,
	coords, phi, weights []float64, azim []int,
	segOffsets, segRegions []int, segLengths []float64,
	links []int,
) Status {
	return h.set(h.loadTracks(
		count, numAzim, coords, phi, weights, azim,
		segOffsets, segRegions, segLengths, links,
	))
}

func (h *Handle) loadTracks(
	count, numAzim int,
	coords, phi, weights []float64, azim []int,
	segOffsets, segRegions []int, segLengths []float64,
	links []int,
) error {
	if h.fsrs == nil {
		return status.Errorf(
			status.InvalidState, "Tracks need regions to be loaded first.",
		)
	} else if h.tracks != nil {
		return status.Errorf(
			status.InvalidState, "Tracks have already been loaded.",
		)
	} else if err := checkCount("Track count", count); err != nil {
		return err
	}

	bufs := []struct {
		name        string
		n, expected int
	}{
		{"coords", len(coords), 4 * count},
		{"phi", len(phi), count},
		{"weights", len(weights), count},
		{"azim", len(azim), count},
		{"segOffsets", len(segOffsets), count + 1},
		{"segLengths", len(segLengths), len(segRegions)},
		{"links", len(links), LinkValues * count},
	}
	for _, buf := range bufs {
		if err := checkLen(buf.name, buf.n, buf.expected); err != nil {
			return err
		}
	}

	if segOffsets[0] != 0 || segOffsets[count] != len(segRegions) {
		return status.Errorf(
			status.InvalidArgument,
			"segOffsets must run from 0 to %d, but runs from %d to %d.",
			len(segRegions), segOffsets[0], segOffsets[count],
		)
	}

	segs := make([]track.Segment, len(segRegions))
	for i := range segs {
		segs[i] = track.Segment{Region: segRegions[i], Length: segLengths[i]}
	}

	tracks := make([]track.Track, count)
	for i := range tracks {
		lo, hi := segOffsets[i], segOffsets[i+1]
		if hi < lo || hi > len(segs) {
			return status.Errorf(
				status.InvalidArgument,
				"segOffsets of track %d run from %d to %d, but there are %d "+
					"segments.", i, lo, hi, len(segs),
			)
		}
		out, err := link(links[LinkValues*i:], i, "out")
		if err != nil {
			return err
		}
		in, err := link(links[LinkValues*i+3:], i, "in")
		if err != nil {
			return err
		}

		tracks[i] = track.Track{
			X0: coords[4*i], Y0: coords[4*i+1],
			X1: coords[4*i+2], Y1: coords[4*i+3],
			Phi: phi[i], Azim: azim[i], Weight: weights[i],
			Segments: segs[lo:hi],
			Out:      out, In: in,
		}
	}

	tab, err := track.NewTable(tracks, numAzim, h.fsrs.Len())
	if err != nil {
		return err
	}
	h.tracks = tab
	return nil
}

func link(vals []int, i int, end string) (track.Link, error) {
	bc, id, fwd := vals[0], vals[1], vals[2]
	if bc < int(track.Vacuum) || bc > int(track.Periodic) {
		return track.Link{}, status.Errorf(
			status.InvalidArgument,
			"Track %d has unknown %s boundary condition %d.", i, end, bc,
		)
	} else if fwd != 0 && fwd != 1 {
		return track.Link{}, status.Errorf(
			status.InvalidArgument,
			"Track %d has %s direction flag %d, but it must be 0 or 1.",
			i, end, fwd,
		)
	}
	if track.Boundary(bc) == track.Vacuum {
		id = -1
	}
	return track.Link{BC: track.Boundary(bc), Track: id, Forward: fwd == 1}, nil
}

// RunSourceIteration iterates until the scalar flux converges to within
// tolerance or maxIterations sweeps have been made. A run that hits the
// iteration limit returns its result with a ConvergenceFailure Status.
func (h *Handle) RunSourceIteration(
	maxIterations int, tolerance float64,
) (RunResult, Status) {
	res, err := h.run(maxIterations, tolerance)
	return res, h.set(err)
}

func (h *Handle) run(maxIterations int, tolerance float64) (RunResult, error) {
	if h.tracks == nil {
		return RunResult{}, status.Errorf(
			status.InvalidState, "Tracks must be loaded before running.",
		)
	} else if maxIterations <= 0 {
		return RunResult{}, status.Errorf(
			status.InvalidArgument,
			"maxIterations must be positive, but is %d.", maxIterations,
		)
	} else if !(tolerance > 0) || math.IsInf(tolerance, 0) {
		return RunResult{}, status.Errorf(
			status.InvalidArgument,
			"tolerance must be positive and finite, but is %g.", tolerance,
		)
	}

	if h.engine == nil {
		e, err := sweep.New(h.fsrs, h.tracks, h.polar, sweep.Options{
			Workers: h.workers,
		})
		if err != nil {
			return RunResult{}, err
		}
		h.engine = e
	}

	d, err := solver.New(h.engine, solver.Options{
		MaxIterations: maxIterations,
		Tolerance:     tolerance,
		Mode:          h.mode,
	})
	if err != nil {
		return RunResult{}, err
	}
	h.driver = d

	res, err := d.Run(context.Background())
	return RunResult{
		Flux:       res.Flux,
		Iterations: res.Iterations,
		State:      res.State,
		K:          res.K,
	}, err
}

// ScalarFlux returns the scalar flux of every region, region-major. The
// slice aliases the handle's storage and is overwritten by the next run.
func (h *Handle) ScalarFlux() ([]float64, Status) {
	if h.fsrs == nil {
		return nil, h.set(status.Errorf(
			status.InvalidState, "No regions have been loaded.",
		))
	}
	return h.fsrs.ScalarFlux(), h.set(nil)
}

// FissionRates returns the volume-integrated fission rate of every region.
func (h *Handle) FissionRates() ([]float64, Status) {
	if h.fsrs == nil {
		return nil, h.set(status.Errorf(
			status.InvalidState, "No regions have been loaded.",
		))
	}
	return h.fsrs.FissionRates(), h.set(nil)
}

// TrackCoords returns x0, y0, x1, y1 for every track.
func (h *Handle) TrackCoords() ([]float64, Status) {
	if h.tracks == nil {
		return nil, h.set(status.Errorf(
			status.InvalidState, "No tracks have been loaded.",
		))
	}
	return h.tracks.Coords(), h.set(nil)
}

// SegmentCoords returns region, x0, y0, x1, y1 for every segment of every
// track, in track order.
func (h *Handle) SegmentCoords() ([]float64, Status) {
	if h.tracks == nil {
		return nil, h.set(status.Errorf(
			status.InvalidState, "No tracks have been loaded.",
		))
	}
	return h.tracks.SegmentCoords(), h.set(nil)
}

// K returns the multiplication factor of the last run.
func (h *Handle) K() (float64, Status) {
	if h.driver == nil {
		return 0, h.set(status.Errorf(
			status.InvalidState, "Nothing has been run yet.",
		))
	}
	return h.driver.K(), h.set(nil)
}
