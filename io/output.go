package io

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"
)

var end = binary.LittleEndian

/*
The binary format used for flux files is as follows:
    |-- 1 --||-- 2 --||-- ... 3 ... --||-- ... 4 ... --|

    1 - (int64) Flag indicating the endianness of the file. 0 indicates a big
        endian byte ordering and -1 indicates a little endian byte order.
    2 - (int64) Size of the whole FluxHeader in bytes.
    3 - (FluxHeader) The rest of the header.
    4 - ([]float64) Scalar flux, Regions x Groups, region-major.
*/
type FluxHeader struct {
	Endianness int64
	HeaderSize int64

	Groups, Regions int64
	Iterations      int64
	// Mode is 0 for fixed source runs and 1 for eigenvalue runs.
	Mode     int64
	K        float64
	Residual float64
}

// NewFluxHeader fills in the bookkeeping fields of a header.
func NewFluxHeader(groups, regions, iterations int, eigen bool) FluxHeader {
	hd := FluxHeader{
		Groups: int64(groups), Regions: int64(regions),
		Iterations: int64(iterations), K: 1,
	}
	if eigen {
		hd.Mode = 1
	}
	return hd
}

func endianness(flag int64) (binary.ByteOrder, error) {
	switch flag {
	case -1:
		return binary.LittleEndian, nil
	case 0:
		return binary.BigEndian, nil
	}
	return nil, fmt.Errorf("Unrecognized endianness flag, %d.", flag)
}

// WriteFlux writes a header and the scalar flux it describes to wr.
func WriteFlux(hd FluxHeader, flux []float64, wr io.Writer) error {
	if int64(len(flux)) != hd.Groups*hd.Regions {
		return fmt.Errorf(
			"Flux has length %d, but header describes %d regions and %d groups.",
			len(flux), hd.Regions, hd.Groups,
		)
	}

	if end == binary.LittleEndian {
		hd.Endianness = -1
	} else {
		hd.Endianness = 0
	}
	hd.HeaderSize = int64(binary.Size(&hd))

	if err := binary.Write(wr, end, &hd); err != nil {
		return err
	}
	return binary.Write(wr, end, flux)
}

// WriteFluxFile is WriteFlux to a newly created file.
func WriteFluxFile(fname string, hd FluxHeader, flux []float64) error {
	f, err := os.Create(fname)
	if err != nil {
		return err
	}
	wr := bufio.NewWriter(f)
	if err := WriteFlux(hd, flux, wr); err != nil {
		f.Close()
		return err
	}
	if err := wr.Flush(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// ReadFlux reads a file written by WriteFlux. Files of either endianness can
// be read.
func ReadFlux(rd io.Reader) (*FluxHeader, []float64, error) {
	hd := &FluxHeader{}
	// The flag is symmetric under byte swaps, so any order reads it.
	if err := binary.Read(rd, binary.LittleEndian, &hd.Endianness); err != nil {
		return nil, nil, err
	}
	order, err := endianness(hd.Endianness)
	if err != nil {
		return nil, nil, err
	}

	rest := struct {
		HeaderSize       int64
		Groups, Regions  int64
		Iterations, Mode int64
		K, Residual      float64
	}{}
	if err := binary.Read(rd, order, &rest); err != nil {
		return nil, nil, err
	}
	hd.HeaderSize, hd.Groups, hd.Regions = rest.HeaderSize, rest.Groups, rest.Regions
	hd.Iterations, hd.Mode = rest.Iterations, rest.Mode
	hd.K, hd.Residual = rest.K, rest.Residual

	if size := int64(binary.Size(hd)); hd.HeaderSize != size {
		return nil, nil, fmt.Errorf(
			"Expected FluxHeader size of %d, found %d.", size, hd.HeaderSize,
		)
	} else if hd.Groups <= 0 || hd.Regions < 0 {
		return nil, nil, fmt.Errorf(
			"Header describes %d regions and %d groups.", hd.Regions, hd.Groups,
		)
	}

	flux := make([]float64, hd.Groups*hd.Regions)
	if err := binary.Read(rd, order, flux); err != nil {
		return nil, nil, err
	}
	return hd, flux, nil
}

// ReadFluxFile is ReadFlux on the named file.
func ReadFluxFile(fname string) (*FluxHeader, []float64, error) {
	f, err := os.Open(fname)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()
	return ReadFlux(bufio.NewReader(f))
}

// WriteFluxTable writes a text table with one line per region:
//
//     region x y flux(0) ... flux(G-1)
//
// where (x, y) is a representative point inside the region.
func WriteFluxTable(
	fname string, groups int, xs, ys, flux []float64,
) error {
	if len(xs) != len(ys) || len(flux) != groups*len(xs) {
		return fmt.Errorf(
			"Table of %d groups given %d x values, %d y values and %d fluxes.",
			groups, len(xs), len(ys), len(flux),
		)
	}

	f, err := os.Create(fname)
	if err != nil {
		return err
	}
	wr := bufio.NewWriter(f)

	fmt.Fprintf(wr, "# Column 0: region\n# Column 1-2: x y\n")
	fmt.Fprintf(wr, "# Column 3-%d: scalar flux by group\n", 2+groups)
	for r := range xs {
		fmt.Fprintf(wr, "%d %s %s", r, fmtFloat(xs[r]), fmtFloat(ys[r]))
		for g := 0; g < groups; g++ {
			fmt.Fprintf(wr, " %s", fmtFloat(flux[r*groups+g]))
		}
		fmt.Fprintln(wr)
	}

	if err := wr.Flush(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
