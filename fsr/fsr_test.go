package fsr

import (
	"errors"
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phil-mansfield/gomoc/material"
	"github.com/phil-mansfield/gomoc/status"
)

func oneGroupMaterials(t *testing.T, sigmaTs ...float64) *material.Table {
	mats, err := material.NewTable(1)
	require.NoError(t, err)
	for _, st := range sigmaTs {
		_, err := mats.Add(&material.Definition{
			Groups: 1, SigmaT: []float64{st}, SigmaA: []float64{st},
			SigmaS: []float64{0}, SigmaF: []float64{0},
			NuSigmaF: []float64{0}, Chi: []float64{0},
		})
		require.NoError(t, err)
	}
	mats.Seal()
	return mats
}

func TestNewTableUnsealed(t *testing.T) {
	mats, _ := material.NewTable(1)
	_, err := NewTable(mats)
	assert.True(t, errors.Is(err, status.ErrInvalidState))
}

func TestAdd(t *testing.T) {
	tab, err := NewTable(oneGroupMaterials(t, 1.0, 2.0))
	require.NoError(t, err)

	table := []struct {
		volume float64
		mat    int
		code   status.Code
	}{
		{1.0, 0, status.OK},
		{0.5, 1, status.OK},
		{0, 0, status.InvalidArgument},
		{-1, 0, status.InvalidArgument},
		{math.NaN(), 0, status.InvalidArgument},
		{math.Inf(1), 0, status.InvalidArgument},
		{1.0, 2, status.InvalidArgument},
		{1.0, -1, status.InvalidArgument},
	}

	for i, line := range table {
		_, err := tab.Add(line.volume, line.mat)
		if status.CodeOf(err) != line.code {
			t.Errorf("%d) Expected %s, got %v.", i, line.code, err)
		}
	}
	assert.Equal(t, 2, tab.Len())
	assert.Equal(t, 1, tab.Material(1))
	assert.Equal(t, 0.5, tab.Volume(1))
}

func TestSources(t *testing.T) {
	tab, _ := NewTable(oneGroupMaterials(t, 1.0))
	r, _ := tab.Add(1, 0)

	assert.NoError(t, tab.SetExternalSource(r, []float64{2}))
	assert.Equal(t, []float64{2}, tab.ExternalSource(r))

	err := tab.SetSource(r, []float64{1, 2})
	assert.Equal(t, status.InvalidArgument, status.CodeOf(err))
	err = tab.SetSource(r, []float64{-1})
	assert.Equal(t, status.InvalidArgument, status.CodeOf(err))
	err = tab.SetSource(3, []float64{1})
	assert.Equal(t, status.NotFound, status.CodeOf(err))
}

func TestFinalizeSweep(t *testing.T) {
	tab, _ := NewTable(oneGroupMaterials(t, 2.0, 0.0))
	a, _ := tab.Add(4.0, 0)
	b, _ := tab.Add(1.0, 1)

	require.NoError(t, tab.SetSource(a, []float64{3}))
	tab.SetFlux(7)
	tab.ResetAccumulators()
	tab.AccumulateFlux(a, 0, 8)
	tab.AccumulateFlux(b, 0, 0)

	require.NoError(t, tab.FinalizeSweep())
	// 3/2 + 8/(2*4)
	assert.InDelta(t, 2.5, tab.Flux(a)[0], 1e-14)
	assert.Equal(t, 0.0, tab.Flux(b)[0])
	assert.Equal(t, 7.0, tab.OldFlux(a)[0])
}

func TestFinalizeSweepNumericFailure(t *testing.T) {
	table := []float64{math.NaN(), math.Inf(1), -100}

	for i, delta := range table {
		tab, _ := NewTable(oneGroupMaterials(t, 1.0))
		r, _ := tab.Add(1.0, 0)
		require.NoError(t, tab.SetSource(r, []float64{1}))
		tab.AccumulateFlux(r, 0, delta)
		err := tab.FinalizeSweep()
		if !errors.Is(err, status.ErrNumericFailure) {
			t.Errorf("%d) Expected NumericFailure for delta = %g, got %v.",
				i, delta, err)
		}
	}
}

func TestFinalizeSweepFailureKeepsFlux(t *testing.T) {
	tab, _ := NewTable(oneGroupMaterials(t, 1.0))
	for i := 0; i < 3; i++ {
		r, _ := tab.Add(1.0, 0)
		require.NoError(t, tab.SetSource(r, []float64{1}))
	}
	tab.SetFlux(1)
	require.NoError(t, tab.FinalizeSweep())
	require.Equal(t, []float64{1, 1, 1}, tab.ScalarFlux())

	tab.SetFlux(2)
	tab.ResetAccumulators()
	tab.AccumulateFlux(0, 0, 1)
	tab.AccumulateFlux(2, 0, math.NaN())
	err := tab.FinalizeSweep()
	require.True(t, errors.Is(err, status.ErrNumericFailure))

	assert.Equal(t, []float64{2, 2, 2}, tab.ScalarFlux())
	for r := 0; r < tab.Len(); r++ {
		assert.Equal(t, []float64{1}, tab.OldFlux(r), "region %d", r)
	}
}

func TestConcurrentAccumulation(t *testing.T) {
	tab, _ := NewTable(oneGroupMaterials(t, 1.0))
	for i := 0; i < 4; i++ {
		tab.Add(1.0, 0)
	}

	workers, adds := 8, 1000
	wg := &sync.WaitGroup{}
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < adds; i++ {
				tab.AccumulateFlux(i%4, 0, 0.25)
			}
		}()
	}
	wg.Wait()

	for r := 0; r < 4; r++ {
		assert.InDelta(t, float64(workers*adds)/16, tab.Accumulator(r)[0], 1e-9)
	}
}

func TestMerge(t *testing.T) {
	tab, _ := NewTable(oneGroupMaterials(t, 1.0))
	tab.Add(1.0, 0)
	tab.Add(1.0, 0)

	accs := []*Accumulator{tab.NewAccumulator(), tab.NewAccumulator()}
	accs[0].Add(0, 0, 1)
	accs[1].Add(0, 0, 2)
	accs[1].Region(1)[0] += 5

	for _, acc := range accs {
		require.NoError(t, tab.Merge(acc))
	}
	assert.Equal(t, []float64{3}, tab.Accumulator(0))
	assert.Equal(t, []float64{5}, tab.Accumulator(1))

	stale := tab.NewAccumulator()
	tab.Add(1.0, 0)
	assert.Equal(t, status.InvalidArgument, status.CodeOf(tab.Merge(stale)))

	accs[0].Reset()
	assert.Equal(t, []float64{0}, accs[0].Region(0))
}

func TestFissionRates(t *testing.T) {
	mats, _ := material.NewTable(2)
	mats.Add(&material.Definition{
		Groups: 2, SigmaT: []float64{1, 1}, SigmaA: []float64{0.5, 0.5},
		SigmaS: []float64{0.5, 0, 0, 0.5}, SigmaF: []float64{0.1, 0.2},
		NuSigmaF: []float64{0.25, 0.5}, Chi: []float64{1, 0},
	})
	mats.Seal()
	tab, _ := NewTable(mats)
	r, _ := tab.Add(2.0, 0)
	copy(tab.Flux(r), []float64{1, 3})

	assert.InDelta(t, 2*(0.1+0.6), tab.FissionRates()[r], 1e-14)
	assert.InDelta(t, 2*(0.25+1.5), tab.FissionSource(r, tab.ScalarFlux()), 1e-14)
}
