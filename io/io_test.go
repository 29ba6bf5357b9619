package io

import (
	"bytes"
	"encoding/binary"
	"io/ioutil"
	"os"
	"path"
	"strings"
	"testing"

	"github.com/phil-mansfield/table"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phil-mansfield/gomoc/material"
	"github.com/phil-mansfield/gomoc/track"
)

func tempDir(t *testing.T) string {
	dir, err := ioutil.TempDir("", "gomoc_io")
	require.NoError(t, err)
	return dir
}

func TestExampleRunFile(t *testing.T) {
	w, err := ReadRunConfigString(ExampleRunFile)
	require.NoError(t, err)

	assert.Equal(t, 2, w.Run.Groups)
	assert.Equal(t, 1000, w.Run.MaxIterations)
	assert.Equal(t, 1e-6, w.Run.Tolerance)
	assert.Equal(t, []string{"fuel", "water", "water", "fuel"},
		w.Lattice.MaterialNames())
	assert.Equal(t, []string{"fuel", "water"}, w.MaterialOrder())
	assert.Equal(t, 16, w.Tracks.NumAzim)
	assert.Equal(t, "TY", w.Tracks.Polar)

	bcs, err := w.Lattice.Boundaries()
	require.NoError(t, err)
	for i, bc := range bcs {
		assert.Equal(t, track.Reflective, bc, "wall %d", i)
	}

	require.Len(t, w.Material, 2)
	fuel := w.Material["fuel"]
	require.NotNil(t, fuel)
	assert.Equal(t, "fuel", fuel.Name)
	src, err := fuel.Sources(2)
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 0}, src)
	src, err = w.Material["water"].Sources(2)
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 0}, src)
}

func TestReadRunConfigFile(t *testing.T) {
	dir := tempDir(t)
	defer os.RemoveAll(dir)

	fname := path.Join(dir, "run.config")
	cfg := strings.Replace(ExampleRunFile, "# XMin = Reflective",
		"XMin = Vacuum", 1)
	require.NoError(t, ioutil.WriteFile(fname, []byte(cfg), 0644))

	w, err := ReadRunConfig(fname)
	require.NoError(t, err)
	bcs, err := w.Lattice.Boundaries()
	require.NoError(t, err)
	assert.Equal(t, track.Vacuum, bcs[0])
	assert.Equal(t, track.Reflective, bcs[1])

	_, err = ReadRunConfig(path.Join(dir, "missing.config"))
	assert.Error(t, err)
}

func TestInvalidRunConfig(t *testing.T) {
	table := []struct{ from, to string }{
		{"Groups = 2", "Groups = 0"},
		{"Mode = FixedSource", "Mode = Adjoint"},
		{"Output = path/to/output/run", ""},
		{"# Tolerance = 1e-6", "Tolerance = -1"},
		{"# ExpTolerance = 1e-7", "ExpTolerance = 1e-7"},
		{"Nx = 2", "Nx = 3"},
		{"Width = 2.52", "Width = -1"},
		{"NumAzim = 16", "NumAzim = 6"},
		{"Spacing = 0.05", "Spacing = 0"},
		{"# Polar = TY", "Polar = Gauss"},
		{"# PolarAngles = 3", "PolarAngles = 4"},
		{"# YMax = Reflective", "YMax = Open"},
		{"Source = 1 0", "Source = 1"},
		{"Source = 1 0", "Source = 1 -1"},
		{"Source = 1 0", "Source = 1 x"},
		{"water water", "water steel"},
		{"File = path/to/water.xs", ""},
	}

	for i, line := range table {
		cfg := strings.Replace(ExampleRunFile, line.from, line.to, 1)
		if cfg == ExampleRunFile {
			t.Fatalf("%d) '%s' is not in the example file.", i, line.from)
		}
		if _, err := ReadRunConfigString(cfg); err == nil {
			t.Errorf("%d) Expected an error after replacing '%s' with '%s'.",
				i, line.from, line.to)
		}
	}
}

func TestCrossSections(t *testing.T) {
	dir := tempDir(t)
	defer os.RemoveAll(dir)

	def := &material.Definition{
		Name: "fuel", Groups: 2,
		SigmaT:   []float64{0.5, 1.25},
		SigmaA:   []float64{0.1, 0.75},
		SigmaS:   []float64{0.3, 0.1, 0.001, 0.499},
		SigmaF:   []float64{0.05, 0.3},
		NuSigmaF: []float64{0.125, 0.75},
		Chi:      []float64{1, 0},
	}
	fname := path.Join(dir, "fuel.xs")
	require.NoError(t, WriteCrossSections(fname, def))

	read, err := ReadCrossSections(fname, "fuel", 2)
	require.NoError(t, err)
	assert.Equal(t, def, read)

	mats, err := material.NewTable(2)
	require.NoError(t, err)
	_, err = mats.Add(read)
	assert.NoError(t, err)

	_, err = ReadCrossSections(fname, "fuel", 3)
	assert.Error(t, err)
	_, err = ReadCrossSections(fname, "fuel", 0)
	assert.Error(t, err)
	_, err = ReadCrossSections(path.Join(dir, "missing.xs"), "fuel", 2)
	assert.Error(t, err)

	assert.Error(t, WriteCrossSections(path.Join(dir, "missing", "fuel.xs"), def))
	again := path.Join(dir, "again.xs")
	require.NoError(t, WriteCrossSections(again, def))
	require.NoError(t, WriteCrossSections(again, def))
	read, err = ReadCrossSections(again, "fuel", 2)
	require.NoError(t, err)
	assert.Equal(t, def, read)
}

func TestFlux(t *testing.T) {
	flux := []float64{1, 2, 3, 4, 5, 6}
	hd := NewFluxHeader(2, 3, 17, true)
	hd.K, hd.Residual = 1.1, 1e-7

	buf := &bytes.Buffer{}
	require.NoError(t, WriteFlux(hd, flux, buf))
	assert.Equal(t, binary.Size(&hd)+8*len(flux), buf.Len())

	read, readFlux, err := ReadFlux(buf)
	require.NoError(t, err)
	assert.Equal(t, flux, readFlux)
	assert.Equal(t, int64(-1), read.Endianness)
	assert.Equal(t, int64(binary.Size(&hd)), read.HeaderSize)
	assert.Equal(t, int64(17), read.Iterations)
	assert.Equal(t, int64(1), read.Mode)
	assert.Equal(t, 1.1, read.K)
	assert.Equal(t, 1e-7, read.Residual)

	assert.Error(t, WriteFlux(hd, flux[1:], &bytes.Buffer{}))
}

func TestFluxBigEndian(t *testing.T) {
	hd := NewFluxHeader(1, 2, 3, false)
	hd.HeaderSize = int64(binary.Size(&hd))
	flux := []float64{0.5, 0.25}

	buf := &bytes.Buffer{}
	require.NoError(t, binary.Write(buf, binary.BigEndian, &hd))
	require.NoError(t, binary.Write(buf, binary.BigEndian, flux))

	read, readFlux, err := ReadFlux(buf)
	require.NoError(t, err)
	assert.Equal(t, flux, readFlux)
	assert.Equal(t, int64(2), read.Regions)
	assert.Equal(t, 1.0, read.K)

	hd.Endianness = 7
	buf.Reset()
	require.NoError(t, binary.Write(buf, binary.BigEndian, &hd))
	_, _, err = ReadFlux(buf)
	assert.Error(t, err)
}

func TestFluxFiles(t *testing.T) {
	dir := tempDir(t)
	defer os.RemoveAll(dir)

	flux := []float64{1, 0.5, 2, 0.25}
	fname := path.Join(dir, "run.flux")
	require.NoError(t, WriteFluxFile(fname, NewFluxHeader(2, 2, 4, false), flux))
	_, read, err := ReadFluxFile(fname)
	require.NoError(t, err)
	assert.Equal(t, flux, read)

	tname := path.Join(dir, "run.txt")
	xs, ys := []float64{0.25, 0.75}, []float64{0.5, 0.5}
	require.NoError(t, WriteFluxTable(tname, 2, xs, ys, flux))
	cols, err := table.ReadTable(tname, []int{0, 1, 2, 3, 4}, nil)
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 1}, cols[0])
	assert.Equal(t, xs, cols[1])
	assert.Equal(t, ys, cols[2])
	assert.Equal(t, []float64{1, 2}, cols[3])
	assert.Equal(t, []float64{0.5, 0.25}, cols[4])

	assert.Error(t, WriteFluxTable(tname, 3, xs, ys, flux))
}

func TestExampleCrossSectionFile(t *testing.T) {
	dir := tempDir(t)
	defer os.RemoveAll(dir)

	fname := path.Join(dir, "fuel.xs")
	require.NoError(t, ioutil.WriteFile(
		fname, []byte(ExampleCrossSectionFile), 0644,
	))
	def, err := ReadCrossSections(fname, "fuel", 2)
	require.NoError(t, err)
	assert.Equal(t, []float64{0.44, 0.05, 0, 1.15}, def.SigmaS)
	assert.Equal(t, []float64{1, 0}, def.Chi)

	mats, err := material.NewTable(2)
	require.NoError(t, err)
	id, err := mats.Add(def)
	require.NoError(t, err)
	assert.True(t, mats.Fissile(id))
}
