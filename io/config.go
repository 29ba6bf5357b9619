package io

import (
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/gcfg.v1"

	"github.com/phil-mansfield/gomoc/quadrature"
	"github.com/phil-mansfield/gomoc/solver"
	"github.com/phil-mansfield/gomoc/track"
)

const ExampleRunFile = `[Run]

#######################
# Required Parameters #
#######################

# Number of energy groups. Every cross section file must have this many rows.
Groups = 2

# Mode must be one of [ FixedSource | Eigenvalue ]. Eigenvalue runs ignore
# external sources and need at least one fissile material.
Mode = FixedSource

# Prefix of the output files. The binary flux is written to Output.flux and
# a text table to Output.txt.
Output = path/to/output/run

#######################
# Optional Parameters #
#######################

# Iteration stops once the largest relative change in the region fission
# sources (or the scalar flux, if nothing is fissile) drops below Tolerance.
# Defaults are 1000 and 1e-6.
# MaxIterations = 1000
# Tolerance = 1e-6

# Tabulate exp(-tau) to within ExpTolerance over [0, ExpMaxTau] instead of
# calling math.Expm1 for every segment. Zero, the default, means exact.
# ExpTolerance = 1e-7
# ExpMaxTau = 10

# If set, pyplot figures of the tracks, segments, fluxes and convergence
# history are written to this directory.
# PlotDir = path/to/plots

# Output files which are useful for profiling and debugging. Generally, there
# isn't a reason to use these unless something goes wrong.
# ProfileFile = prof.out
# LogFile = log.out

[Lattice]

# A Width x Height rectangle split into Nx x Ny cells. Every cell is one flat
# source region.
Width = 2.52
Height = 2.52
Nx = 2
Ny = 2

# Material of every cell, row by row starting from the bottom left.
Materials = fuel water water fuel

# Boundary conditions, each one of [ Vacuum | Reflective | Periodic ].
# Periodic walls must be set in opposite pairs. The default is Reflective.
# XMin = Reflective
# XMax = Reflective
# YMin = Reflective
# YMax = Reflective

[Tracks]

# Number of azimuthal angles in [0, 2 pi). Must be a multiple of 4.
NumAzim = 16
# Requested distance between parallel tracks.
Spacing = 0.05

# Polar quadrature, one of [ TY | EqualWeight | EqualAngle ], and its number
# of angles in (0, pi/2). Default is three Tabuchi-Yamamoto angles.
# Polar = TY
# PolarAngles = 3

[Material "fuel"]
# Cross section table with one row per group and the columns
#     SigmaT SigmaA SigmaF NuSigmaF Chi SigmaS(g -> 0) ... SigmaS(g -> G-1)
File = path/to/fuel.xs
# Optional external source density of every group.
Source = 1 0

[Material "water"]
File = path/to/water.xs`

// RunConfig is the [Run] section.
type RunConfig struct {
	// Required
	Groups int
	Mode   string
	Output string

	// Optional
	MaxIterations           int
	Tolerance               float64
	ExpTolerance, ExpMaxTau float64
	PlotDir                 string
	LogFile, ProfileFile    string
}

func (con *RunConfig) ValidGroups() bool { return con.Groups > 0 }
func (con *RunConfig) ValidMode() bool {
	_, err := solver.ParseMode(con.Mode)
	return err == nil
}
func (con *RunConfig) ValidOutput() bool        { return con.Output != "" }
func (con *RunConfig) ValidMaxIterations() bool { return con.MaxIterations > 0 }
func (con *RunConfig) ValidTolerance() bool     { return con.Tolerance > 0 }
func (con *RunConfig) ValidExpTolerance() bool {
	return con.ExpTolerance > 0 && con.ExpTolerance < 1
}
func (con *RunConfig) ValidExpMaxTau() bool   { return con.ExpMaxTau > 0 }
func (con *RunConfig) ValidPlotDir() bool     { return con.PlotDir != "" }
func (con *RunConfig) ValidLogFile() bool     { return con.LogFile != "" }
func (con *RunConfig) ValidProfileFile() bool { return con.ProfileFile != "" }

// LatticeConfig is the [Lattice] section.
type LatticeConfig struct {
	// Required
	Width, Height float64
	Nx, Ny        int
	Materials     string

	// Optional
	XMin, XMax, YMin, YMax string
}

func (con *LatticeConfig) ValidWidth() bool  { return con.Width > 0 }
func (con *LatticeConfig) ValidHeight() bool { return con.Height > 0 }
func (con *LatticeConfig) ValidNx() bool     { return con.Nx > 0 }
func (con *LatticeConfig) ValidNy() bool     { return con.Ny > 0 }
func (con *LatticeConfig) ValidMaterials() bool {
	return len(con.MaterialNames()) == con.Nx*con.Ny
}

// MaterialNames returns the material of every cell.
func (con *LatticeConfig) MaterialNames() []string {
	return strings.Fields(con.Materials)
}

// Boundaries returns the boundary conditions indexed by geom.Wall.
func (con *LatticeConfig) Boundaries() ([4]track.Boundary, error) {
	bcs := [4]track.Boundary{}
	for i, s := range []string{con.XMin, con.XMax, con.YMin, con.YMax} {
		bc, err := track.ParseBoundary(s)
		if err != nil {
			return bcs, err
		}
		bcs[i] = bc
	}
	return bcs, nil
}

// TracksConfig is the [Tracks] section.
type TracksConfig struct {
	// Required
	NumAzim int
	Spacing float64

	// Optional
	Polar       string
	PolarAngles int
}

func (con *TracksConfig) ValidNumAzim() bool {
	return con.NumAzim > 0 && con.NumAzim%4 == 0
}
func (con *TracksConfig) ValidSpacing() bool { return con.Spacing > 0 }
func (con *TracksConfig) ValidPolar() bool {
	_, err := quadrature.New(con.Polar, con.PolarAngles)
	return err == nil
}

// MaterialConfig is a [Material "name"] section.
type MaterialConfig struct {
	// Required
	File string

	// Optional
	Source string

	// Optional, "undocumented"
	Name string
}

// CheckInit validates the section and records its name.
func (con *MaterialConfig) CheckInit(name string, groups int) error {
	if con.File == "" {
		return fmt.Errorf(
			"Need to specify a cross section File for Material '%s'.", name,
		)
	}
	con.Name = name

	src, err := con.Sources(groups)
	if err != nil {
		return err
	}
	for g, q := range src {
		if q < 0 {
			return fmt.Errorf(
				"Source of Material '%s' is negative in group %d.", name, g,
			)
		}
	}
	return nil
}

// Sources parses Source into one value per group. An empty Source is zero in
// every group.
func (con *MaterialConfig) Sources(groups int) ([]float64, error) {
	src := make([]float64, groups)
	fields := strings.Fields(con.Source)
	if len(fields) == 0 {
		return src, nil
	} else if len(fields) != groups {
		return nil, fmt.Errorf(
			"Source of Material '%s' has %d values, but there are %d groups.",
			con.Name, len(fields), groups,
		)
	}
	for g, f := range fields {
		x, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return nil, fmt.Errorf(
				"Could not parse group %d of the Source of Material '%s': %s",
				g, con.Name, err.Error(),
			)
		}
		src[g] = x
	}
	return src, nil
}

// RunWrapper holds every section of a run configuration file.
type RunWrapper struct {
	Run      RunConfig
	Lattice  LatticeConfig
	Tracks   TracksConfig
	Material map[string]*MaterialConfig
}

// DefaultRunWrapper returns a RunWrapper filled with default values.
func DefaultRunWrapper() *RunWrapper {
	w := &RunWrapper{}
	w.Run.Mode = "FixedSource"
	w.Run.MaxIterations = solver.DefaultMaxIterations
	w.Run.Tolerance = solver.DefaultTolerance
	w.Lattice.XMin = "Reflective"
	w.Lattice.XMax = "Reflective"
	w.Lattice.YMin = "Reflective"
	w.Lattice.YMax = "Reflective"
	w.Tracks.Polar = "TY"
	w.Tracks.PolarAngles = 3
	w.Material = map[string]*MaterialConfig{}
	return w
}

// ReadRunConfig reads and validates a run configuration file.
func ReadRunConfig(fname string) (*RunWrapper, error) {
	w := DefaultRunWrapper()
	if err := gcfg.ReadFileInto(w, fname); err != nil {
		return nil, err
	}
	if err := w.CheckInit(); err != nil {
		return nil, err
	}
	return w, nil
}

// ReadRunConfigString is ReadRunConfig for a configuration held in memory.
func ReadRunConfigString(str string) (*RunWrapper, error) {
	w := DefaultRunWrapper()
	if err := gcfg.ReadStringInto(w, str); err != nil {
		return nil, err
	}
	if err := w.CheckInit(); err != nil {
		return nil, err
	}
	return w, nil
}

// CheckInit validates every section and returns a descriptive error for the
// first invalid value.
func (w *RunWrapper) CheckInit() error {
	run, lat, tr := &w.Run, &w.Lattice, &w.Tracks

	switch {
	case !run.ValidGroups():
		return fmt.Errorf("Invalid/non-existent 'Groups' value.")
	case !run.ValidMode():
		return fmt.Errorf("Invalid 'Mode' value, '%s'.", run.Mode)
	case !run.ValidOutput():
		return fmt.Errorf("Invalid/non-existent 'Output' value.")
	case !run.ValidMaxIterations():
		return fmt.Errorf("Invalid 'MaxIterations' value.")
	case !run.ValidTolerance():
		return fmt.Errorf("Invalid 'Tolerance' value.")
	case run.ExpTolerance != 0 && !run.ValidExpTolerance():
		return fmt.Errorf("Invalid 'ExpTolerance' value.")
	case run.ExpTolerance != 0 && !run.ValidExpMaxTau():
		return fmt.Errorf("'ExpTolerance' is set, but 'ExpMaxTau' is not.")

	case !lat.ValidWidth():
		return fmt.Errorf("Invalid/non-existent 'Width' value.")
	case !lat.ValidHeight():
		return fmt.Errorf("Invalid/non-existent 'Height' value.")
	case !lat.ValidNx():
		return fmt.Errorf("Invalid/non-existent 'Nx' value.")
	case !lat.ValidNy():
		return fmt.Errorf("Invalid/non-existent 'Ny' value.")
	case !lat.ValidMaterials():
		return fmt.Errorf(
			"'Materials' lists %d cells, but the lattice has %d.",
			len(lat.MaterialNames()), lat.Nx*lat.Ny,
		)

	case !tr.ValidNumAzim():
		return fmt.Errorf(
			"'NumAzim' must be a positive multiple of 4, but is %d.",
			tr.NumAzim,
		)
	case !tr.ValidSpacing():
		return fmt.Errorf("Invalid/non-existent 'Spacing' value.")
	case !tr.ValidPolar():
		return fmt.Errorf(
			"Invalid 'Polar' and 'PolarAngles' values, '%s' and %d.",
			tr.Polar, tr.PolarAngles,
		)
	}

	if _, err := lat.Boundaries(); err != nil {
		return err
	}

	if len(w.Material) == 0 {
		return fmt.Errorf("Must supply at least one [Material] section.")
	}
	for name, mat := range w.Material {
		if err := mat.CheckInit(name, run.Groups); err != nil {
			return err
		}
	}
	for i, name := range lat.MaterialNames() {
		if _, ok := w.Material[name]; !ok {
			return fmt.Errorf(
				"Cell %d uses Material '%s', which has no section.", i, name,
			)
		}
	}

	return nil
}

// MaterialOrder returns the material names sorted the way Problem assigns
// ids: in order of first use by the lattice.
func (w *RunWrapper) MaterialOrder() []string {
	seen := map[string]bool{}
	names := []string{}
	for _, name := range w.Lattice.MaterialNames() {
		if !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}
	return names
}
