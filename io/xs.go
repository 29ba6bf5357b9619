package io

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/phil-mansfield/table"

	"github.com/phil-mansfield/gomoc/material"
)

const ExampleCrossSectionFile = `# Two group cross sections for a lightly enriched fuel.
# SigmaT SigmaA SigmaF NuSigmaF Chi SigmaS(g -> 0) SigmaS(g -> 1)
0.5  0.01 0.005 0.0125 1 0.44 0.05
1.25 0.1  0.05  0.125  0 0    1.15`

// Columns of a cross section file which come before the scattering matrix.
const (
	sigmaTCol = iota
	sigmaACol
	sigmaFCol
	nuSigmaFCol
	chiCol
	scatterCol
)

// ReadCrossSections reads a cross section table with one row per group. Row g
// holds
//
//     SigmaT SigmaA SigmaF NuSigmaF Chi SigmaS(g -> 0) ... SigmaS(g -> G-1)
//
// Lines starting with '#' are comments. The returned Definition has not been
// validated; material.Table.Add does that.
func ReadCrossSections(fname, name string, groups int) (*material.Definition, error) {
	if groups <= 0 {
		return nil, fmt.Errorf("Cannot read %d groups from %s.", groups, fname)
	}

	colIdxs := make([]int, scatterCol+groups)
	for i := range colIdxs {
		colIdxs[i] = i
	}
	cols, err := table.ReadTable(fname, colIdxs, nil)
	if err != nil {
		return nil, err
	}
	if rows := len(cols[0]); rows != groups {
		return nil, fmt.Errorf(
			"Cross section file %s has %d rows, but there are %d groups.",
			fname, rows, groups,
		)
	}

	def := &material.Definition{
		Name:     name,
		Groups:   groups,
		SigmaT:   cols[sigmaTCol],
		SigmaA:   cols[sigmaACol],
		SigmaF:   cols[sigmaFCol],
		NuSigmaF: cols[nuSigmaFCol],
		Chi:      cols[chiCol],
		SigmaS:   make([]float64, groups*groups),
	}
	for from := 0; from < groups; from++ {
		for to := 0; to < groups; to++ {
			def.SigmaS[from*groups+to] = cols[scatterCol+to][from]
		}
	}
	return def, nil
}

// WriteCrossSections writes def in the format read by ReadCrossSections.
func WriteCrossSections(fname string, def *material.Definition) error {
	f, err := os.Create(fname)
	if err != nil {
		return err
	}
	wr := bufio.NewWriter(f)

	G := def.Groups
	fmt.Fprintf(wr, "# %s: %d groups\n", def.Name, G)
	fmt.Fprintf(wr, "# SigmaT SigmaA SigmaF NuSigmaF Chi SigmaS(g -> g')\n")
	for g := 0; g < G; g++ {
		vals := []string{
			fmtFloat(def.SigmaT[g]), fmtFloat(def.SigmaA[g]),
			fmtFloat(def.SigmaF[g]), fmtFloat(def.NuSigmaF[g]),
			fmtFloat(def.Chi[g]),
		}
		for to := 0; to < G; to++ {
			vals = append(vals, fmtFloat(def.SigmaS[g*G+to]))
		}
		fmt.Fprintln(wr, strings.Join(vals, " "))
	}

	if err := wr.Flush(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func fmtFloat(x float64) string { return fmt.Sprintf("%.17g", x) }
