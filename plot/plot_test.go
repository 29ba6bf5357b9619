package plot

import (
	"io/ioutil"
	"math"
	"os"
	"path"
	"testing"

	plt "github.com/phil-mansfield/pyplot"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phil-mansfield/gomoc/geom"
	"github.com/phil-mansfield/gomoc/track"
)

func TestRowProfile(t *testing.T) {
	lat, err := geom.NewLattice(3, 2, 3, 2)
	require.NoError(t, err)
	// Two groups. Group 0 is the cell index, group 1 is constant.
	flux := make([]float64, 2*lat.Cells())
	for r := 0; r < lat.Cells(); r++ {
		flux[2*r], flux[2*r+1] = float64(r), 1
	}

	xs, ys, err := RowProfile(lat, flux, 2, 0)
	require.NoError(t, err)
	assert.Equal(t, []float64{0.5, 1.5, 2.5}, xs)
	assert.Equal(t, []float64{1.5, 2.5, 3.5}, ys)

	_, ys, err = RowProfile(lat, flux, 2, 1)
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 1, 1}, ys)

	_, _, err = RowProfile(lat, flux, 2, 2)
	assert.Error(t, err)
	_, _, err = RowProfile(lat, flux[1:], 2, 0)
	assert.Error(t, err)
}

func TestSpectrum(t *testing.T) {
	flux := []float64{1, 2, 3, 4, 5, 6}
	gs, phis, err := Spectrum(flux, 3, 1)
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 1, 2}, gs)
	assert.Equal(t, []float64{4, 5, 6}, phis)

	for i, r := range []int{-1, 2} {
		if _, _, err := Spectrum(flux, 3, r); err == nil {
			t.Errorf("%d) Expected an error for region %d.", i, r)
		}
	}
}

func TestQueueFigures(t *testing.T) {
	defer plt.Reset()
	dir, err := ioutil.TempDir("", "gomoc_plot")
	require.NoError(t, err)
	defer os.RemoveAll(dir)

	lat, err := geom.NewLattice(1, 1, 2, 2)
	require.NoError(t, err)
	tab, err := track.Generate(lat, track.GenerateOptions{
		NumAzim: 4, Spacing: 0.25,
		Boundaries: [4]track.Boundary{
			track.Vacuum, track.Vacuum, track.Vacuum, track.Vacuum,
		},
	})
	require.NoError(t, err)
	flux := []float64{1, 2, 3, 4}

	Tracks(path.Join(dir, "tracks.png"), lat, tab)
	Segments(path.Join(dir, "segments.png"), lat, tab)
	assert.NoError(t, FluxProfile(path.Join(dir, "flux.png"), lat, flux, 1))
	assert.NoError(t, EnergyFluxes(path.Join(dir, "e.png"), flux, 2, []int{0, 1}))
	assert.Error(t, EnergyFluxes(path.Join(dir, "e.png"), flux, 2, []int{2}))
	Convergence(path.Join(dir, "res.png"), []float64{1, 0.1, 0.01})

	assert.NoError(t, Materials(path.Join(dir, "mats.png"), lat, []int{0, 1, 1, 0}))
	assert.NoError(t, Cells(path.Join(dir, "cells.png"), lat))
	assert.NoError(t, Regions(path.Join(dir, "fsrs.png"), lat, []int{0, 1, 2, 3}))
	assert.NoError(t, SpatialFlux(path.Join(dir, "phi.png"), lat, flux, 1, 0))
	assert.NoError(t, FissionRates(path.Join(dir, "fis.png"), lat, flux))

	assert.Error(t, Materials(path.Join(dir, "mats.png"), lat, []int{0, 1}))
	assert.Error(t, SpatialFlux(path.Join(dir, "phi.png"), lat, flux, 1, 1))
	assert.Error(t, SpatialFlux(path.Join(dir, "phi.png"), lat, flux, 2, 0))
	assert.Error(t, FissionRates(path.Join(dir, "fis.png"), lat, flux[1:]))
}

func TestLevels(t *testing.T) {
	levels, lo, hi, err := Levels([]float64{0, 1, 2.5, 10, 9.99}, 10)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 2, 9, 9}, levels)
	assert.Equal(t, 0.0, lo)
	assert.Equal(t, 10.0, hi)

	levels, _, _, err = Levels([]float64{3, 3, 3}, 4)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 0, 0}, levels)

	table := []struct {
		values []float64
		n      int
	}{
		{[]float64{1}, 0},
		{nil, 3},
		{[]float64{1, math.NaN()}, 3},
		{[]float64{math.Inf(1)}, 3},
	}
	for i, line := range table {
		if _, _, _, err := Levels(line.values, line.n); err == nil {
			t.Errorf("%d) Expected an error for %v in %d levels.",
				i, line.values, line.n)
		}
	}
}

func TestBins(t *testing.T) {
	lat, err := geom.NewLattice(2, 2, 2, 2)
	require.NoError(t, err)

	ks, xs, ys, err := Bins(lat, []int{7, 3, 3, 7})
	require.NoError(t, err)
	assert.Equal(t, []int{3, 7}, ks)
	assert.Equal(t, [][]float64{{1.5, 0.5}, {0.5, 1.5}}, xs)
	assert.Equal(t, [][]float64{{0.5, 1.5}, {0.5, 1.5}}, ys)

	_, _, _, err = Bins(lat, []int{0, 1, 2})
	assert.Error(t, err)
}

func TestHeat(t *testing.T) {
	assert.Equal(t, heatColors[0], Heat(0, 10))
	assert.Equal(t, heatColors[len(heatColors)-1], Heat(9, 10))
	assert.Equal(t, heatColors[len(heatColors)-1], Heat(0, 1))
	assert.Equal(t, heatColors[len(heatColors)-1], Heat(2, 3))
}

func TestColor(t *testing.T) {
	assert.Equal(t, Color(0), Color(len(colors)))
	assert.NotEqual(t, Color(0), Color(1))
}
