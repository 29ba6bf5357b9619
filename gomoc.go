/*Package gomoc assembles a lattice problem from a run configuration and
solves it with the method of characteristics.

The pieces live in their own packages: material holds cross sections, fsr
holds per-region sources and fluxes, track lays and segments tracks, sweep
transports angular flux along them and solver iterates sweeps to a
converged source. Problem wires those packages together the way the gomoc
binary uses them.
*/
package gomoc

import (
	"context"
	"fmt"
	"log"
	"path"
	"runtime"

	"github.com/phil-mansfield/gomoc/fsr"
	"github.com/phil-mansfield/gomoc/geom"
	"github.com/phil-mansfield/gomoc/io"
	"github.com/phil-mansfield/gomoc/material"
	"github.com/phil-mansfield/gomoc/plot"
	"github.com/phil-mansfield/gomoc/quadrature"
	"github.com/phil-mansfield/gomoc/solver"
	"github.com/phil-mansfield/gomoc/sweep"
	"github.com/phil-mansfield/gomoc/track"
)

// Problem is a fully assembled lattice problem.
type Problem struct {
	Config *io.RunWrapper

	Lattice   *geom.Lattice
	Materials *material.Table
	Regions   *fsr.Table
	Tracks    *track.Table
	Polar     *quadrature.Polar
	Engine    *sweep.Engine
	Driver    *solver.Driver

	// io related things
	log bool
	ms  runtime.MemStats
}

// ReadMaterials reads the cross section file of every material section.
func ReadMaterials(w *io.RunWrapper) (map[string]*material.Definition, error) {
	defs := map[string]*material.Definition{}
	for _, name := range w.MaterialOrder() {
		def, err := io.ReadCrossSections(
			w.Material[name].File, name, w.Run.Groups,
		)
		if err != nil {
			return nil, err
		}
		defs[name] = def
	}
	return defs, nil
}

// NewProblem builds every table of a problem and a Driver ready to run.
// defs must contain every material the lattice uses. A non-positive workers
// uses every core.
func NewProblem(
	w *io.RunWrapper, defs map[string]*material.Definition,
	workers int, logFlag bool,
) (*Problem, error) {
	p := &Problem{Config: w, log: logFlag}
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	var err error
	p.Lattice, err = geom.NewLattice(
		w.Lattice.Width, w.Lattice.Height, w.Lattice.Nx, w.Lattice.Ny,
	)
	if err != nil {
		return nil, err
	}

	ids, err := p.initMaterials(defs)
	if err != nil {
		return nil, err
	}

	bcs, err := w.Lattice.Boundaries()
	if err != nil {
		return nil, err
	}
	p.Tracks, err = track.Generate(p.Lattice, track.GenerateOptions{
		NumAzim: w.Tracks.NumAzim, Spacing: w.Tracks.Spacing, Boundaries: bcs,
	})
	if err != nil {
		return nil, err
	}

	if err = p.initRegions(ids); err != nil {
		return nil, err
	}

	p.Polar, err = quadrature.New(w.Tracks.Polar, w.Tracks.PolarAngles)
	if err != nil {
		return nil, err
	}

	opts := sweep.Options{Workers: workers}
	if w.Run.ExpTolerance > 0 {
		opts.Exp, err = sweep.NewExpTable(w.Run.ExpMaxTau, w.Run.ExpTolerance)
		if err != nil {
			return nil, err
		}
	}
	p.Engine, err = sweep.New(p.Regions, p.Tracks, p.Polar, opts)
	if err != nil {
		return nil, err
	}

	mode, err := solver.ParseMode(w.Run.Mode)
	if err != nil {
		return nil, err
	}
	p.Driver, err = solver.New(p.Engine, solver.Options{
		MaxIterations: w.Run.MaxIterations,
		Tolerance:     w.Run.Tolerance,
		Mode:          mode,
	})
	if err != nil {
		return nil, err
	}
	p.Driver.Log(logFlag)

	if p.log {
		log.Printf(
			"%d regions, %d tracks, %d segments. Number of workers: %d",
			p.Regions.Len(), p.Tracks.Len(), p.Tracks.NumSegments(),
			p.Engine.Workers(),
		)
		runtime.ReadMemStats(&p.ms)
		log.Printf(
			"Alloc: %5d MB, Sys: %5d MB",
			p.ms.Alloc>>20, p.ms.Sys>>20,
		)
	}

	return p, nil
}

func (p *Problem) initMaterials(
	defs map[string]*material.Definition,
) (map[string]int, error) {
	var err error
	p.Materials, err = material.NewTable(p.Config.Run.Groups)
	if err != nil {
		return nil, err
	}

	ids := map[string]int{}
	for _, name := range p.Config.MaterialOrder() {
		def, ok := defs[name]
		if !ok {
			return nil, fmt.Errorf("No cross sections for Material '%s'.", name)
		}
		if ids[name], err = p.Materials.Add(def); err != nil {
			return nil, err
		}
	}
	p.Materials.Seal()
	return ids, nil
}

// initRegions adds one region per lattice cell, with track-estimated volumes.
func (p *Problem) initRegions(ids map[string]int) error {
	var err error
	p.Regions, err = fsr.NewTable(p.Materials)
	if err != nil {
		return err
	}

	names := p.Config.Lattice.MaterialNames()
	vols := p.Tracks.Volumes()
	for cell, name := range names {
		r, err := p.Regions.Add(vols[cell], ids[name])
		if err != nil {
			return fmt.Errorf(
				"Cell %d is not crossed by any track. Decrease Spacing. (%s)",
				cell, err.Error(),
			)
		}

		src, err := p.Config.Material[name].Sources(p.Config.Run.Groups)
		if err != nil {
			return err
		}
		if err = p.Regions.SetExternalSource(r, src); err != nil {
			return err
		}
	}
	return nil
}

// Log sets whether progress is logged.
func (p *Problem) Log(flag bool) {
	p.log = flag
	p.Driver.Log(flag)
}

// Run iterates the problem until it converges, diverges, fails or ctx is
// cancelled. The returned Result is non-nil whenever iteration started.
func (p *Problem) Run(ctx context.Context) (*solver.Result, error) {
	res, err := p.Driver.Run(ctx)
	if p.log && res != nil {
		log.Printf(
			"Finished in state %s after %d iterations, k = %.6f",
			res.State, res.Iterations, res.K,
		)
		runtime.ReadMemStats(&p.ms)
		log.Printf(
			"Alloc: %5d MB, Sys: %5d MB",
			p.ms.Alloc>>20, p.ms.Sys>>20,
		)
	}
	return res, err
}

// Centers returns the center of each region's lattice cell.
func (p *Problem) Centers() (xs, ys []float64) {
	xs = make([]float64, p.Regions.Len())
	ys = make([]float64, p.Regions.Len())
	for r := range xs {
		xs[r], ys[r] = p.Lattice.Center(r)
	}
	return xs, ys
}

// WriteOutput writes res to Output.flux in binary and Output.txt as a text
// table.
func (p *Problem) WriteOutput(res *solver.Result) error {
	out := p.Config.Run.Output
	groups := p.Materials.Groups()

	hd := io.NewFluxHeader(
		groups, p.Regions.Len(), res.Iterations,
		p.mode() == solver.Eigenvalue,
	)
	hd.K, hd.Residual = res.K, res.Residual
	if err := io.WriteFluxFile(out+".flux", hd, res.Flux); err != nil {
		return err
	}

	xs, ys := p.Centers()
	return io.WriteFluxTable(out+".txt", groups, xs, ys, res.Flux)
}

func (p *Problem) mode() solver.Mode {
	mode, _ := solver.ParseMode(p.Config.Run.Mode)
	return mode
}

// Plot queues figures of the tracks, segments, fluxes and residual history
// of res in PlotDir, along with maps of the materials, cells, regions,
// fluxes and fission rates of the lattice. It does nothing if PlotDir is unset. The caller is
// responsible for calling plt.Execute().
func (p *Problem) Plot(res *solver.Result) error {
	dir := p.Config.Run.PlotDir
	if dir == "" {
		return nil
	}
	groups := p.Materials.Groups()

	plot.Tracks(path.Join(dir, "tracks.png"), p.Lattice, p.Tracks)
	plot.Segments(path.Join(dir, "segments.png"), p.Lattice, p.Tracks)
	err := plot.FluxProfile(
		path.Join(dir, "flux_profile.png"), p.Lattice, res.Flux, groups,
	)
	if err != nil {
		return err
	}

	// One spectrum per material, taken from its first region.
	regions := []int{}
	seen := map[int]bool{}
	for r := 0; r < p.Regions.Len(); r++ {
		if m := p.Regions.Material(r); !seen[m] {
			seen[m] = true
			regions = append(regions, r)
		}
	}
	err = plot.EnergyFluxes(
		path.Join(dir, "energy_flux.png"), res.Flux, groups, regions,
	)
	if err != nil {
		return err
	}

	if len(res.Residuals) > 0 {
		plot.Convergence(path.Join(dir, "convergence.png"), res.Residuals)
	}
	return p.plotMaps(res)
}

// plotMaps queues the per-cell maps. Region r is lattice cell r.
func (p *Problem) plotMaps(res *solver.Result) error {
	dir := p.Config.Run.PlotDir
	groups := p.Materials.Groups()

	ids, regions := make([]int, p.Regions.Len()), make([]int, p.Regions.Len())
	fissile := false
	for r := range ids {
		ids[r], regions[r] = p.Regions.Material(r), r
		fissile = fissile || p.Materials.Fissile(ids[r])
	}

	if err := plot.Materials(path.Join(dir, "materials.png"), p.Lattice, ids); err != nil {
		return err
	} else if err = plot.Cells(path.Join(dir, "cells.png"), p.Lattice); err != nil {
		return err
	}
	err := plot.Regions(path.Join(dir, "regions.png"), p.Lattice, regions)
	if err != nil {
		return err
	}

	for g := 0; g < groups; g++ {
		fname := path.Join(dir, fmt.Sprintf("flux_group%d.png", g))
		err := plot.SpatialFlux(fname, p.Lattice, res.Flux, groups, g)
		if err != nil {
			return err
		}
	}

	if fissile {
		return plot.FissionRates(
			path.Join(dir, "fission_rates.png"), p.Lattice,
			p.Regions.FissionRates(),
		)
	}
	return nil
}
