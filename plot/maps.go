package plot

import (
	"fmt"
	"math"
	"sort"

	plt "github.com/phil-mansfield/pyplot"

	"github.com/phil-mansfield/gomoc/geom"
)

// heatColors runs from low (blue) to high (red) values.
var heatColors = []string{
	"#313695", "#4575b4", "#74add1", "#abd9e9", "#e0f3f8",
	"#fee090", "#fdae61", "#f46d43", "#d73027", "#a50026",
}

// Heat returns the color of level i of n heat map levels.
func Heat(i, n int) string {
	if n <= 1 {
		return heatColors[len(heatColors)-1]
	}
	return heatColors[i*(len(heatColors)-1)/(n-1)]
}

// Levels splits values into n equal-width levels between their minimum and
// maximum. If every value is the same they all get level 0.
func Levels(values []float64, n int) (levels []int, lo, hi float64, err error) {
	if n <= 0 {
		return nil, 0, 0, fmt.Errorf("Cannot split values into %d levels.", n)
	} else if len(values) == 0 {
		return nil, 0, 0, fmt.Errorf("No values to split into levels.")
	}

	lo, hi = math.Inf(1), math.Inf(-1)
	for i, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, 0, 0, fmt.Errorf("Value %d is %g.", i, v)
		}
		lo, hi = math.Min(lo, v), math.Max(hi, v)
	}

	levels = make([]int, len(values))
	if hi == lo {
		return levels, lo, hi, nil
	}
	for i, v := range values {
		l := int((v - lo) / (hi - lo) * float64(n))
		if l >= n {
			l = n - 1
		}
		levels[i] = l
	}
	return levels, lo, hi, nil
}

// Bins groups the cells of lat by key. keys holds one value per cell. The
// returned slices hold the cell centers of each distinct key, in increasing
// key order.
func Bins(lat *geom.Lattice, keys []int) (ks []int, xs, ys [][]float64, err error) {
	if len(keys) != lat.Cells() {
		return nil, nil, nil, fmt.Errorf(
			"Lattice has %d cells, but %d keys were given.",
			lat.Cells(), len(keys),
		)
	}

	idx := map[int]int{}
	for _, k := range keys {
		if _, ok := idx[k]; !ok {
			idx[k] = 0
			ks = append(ks, k)
		}
	}
	sort.Ints(ks)
	for i, k := range ks {
		idx[k] = i
	}

	xs, ys = make([][]float64, len(ks)), make([][]float64, len(ks))
	for cell, k := range keys {
		x, y := lat.Center(cell)
		i := idx[k]
		xs[i], ys[i] = append(xs[i], x), append(ys[i], y)
	}
	return ks, xs, ys, nil
}

// grid draws the cell boundaries of lat.
func grid(lat *geom.Lattice) {
	dx, dy := lat.CellWidth()
	for ix := 1; ix < lat.Nx; ix++ {
		x := float64(ix) * dx
		plt.Plot([]float64{x, x}, []float64{0, lat.Height}, "k", plt.LW(1))
	}
	for iy := 1; iy < lat.Ny; iy++ {
		y := float64(iy) * dy
		plt.Plot([]float64{0, lat.Width}, []float64{y, y}, "k", plt.LW(1))
	}
	outline(lat)
}

// cellMap queues a figure with one square marker per cell, colored by key.
func cellMap(fname, title string, lat *geom.Lattice, keys []int, color func(int) string) error {
	ks, xs, ys, err := Bins(lat, keys)
	if err != nil {
		return err
	}

	plt.Figure(plt.FigSize(8, 8))
	for i, k := range ks {
		plt.Plot(xs[i], ys[i], "s", plt.C(color(k)))
	}
	grid(lat)

	plt.Title(title)
	plt.XLabel(`$x$`, plt.FontSize(16))
	plt.YLabel(`$y$`, plt.FontSize(16))
	plt.SaveFig(fname)
	return nil
}

// heatMap queues a figure of per-cell values split into heat map levels.
func heatMap(fname, title string, lat *geom.Lattice, values []float64) error {
	if len(values) != lat.Cells() {
		return fmt.Errorf(
			"Lattice has %d cells, but %d values were given.",
			lat.Cells(), len(values),
		)
	}
	levels, lo, hi, err := Levels(values, len(heatColors))
	if err != nil {
		return err
	}
	n := len(heatColors)
	return cellMap(
		fname, fmt.Sprintf("%s: %.4g to %.4g", title, lo, hi), lat, levels,
		func(l int) string { return Heat(l, n) },
	)
}

// Materials plots the material id of every cell.
func Materials(fname string, lat *geom.Lattice, ids []int) error {
	return cellMap(fname, "Materials", lat, ids, Color)
}

// Cells plots every lattice cell in its own color.
func Cells(fname string, lat *geom.Lattice) error {
	keys := make([]int, lat.Cells())
	for i := range keys {
		keys[i] = i
	}
	return cellMap(fname, fmt.Sprintf("%d x %d cells", lat.Nx, lat.Ny),
		lat, keys, Color)
}

// Regions plots the flat source region of every cell. regions holds one
// region id per cell.
func Regions(fname string, lat *geom.Lattice, regions []int) error {
	return cellMap(fname, "Flat source regions", lat, regions, Color)
}

// SpatialFlux plots the scalar flux of group g in every cell. flux is
// region-major with one region per lattice cell.
func SpatialFlux(
	fname string, lat *geom.Lattice, flux []float64, groups, g int,
) error {
	if len(flux) != lat.Cells()*groups {
		return fmt.Errorf(
			"Flux has length %d, but the lattice has %d cells and %d groups.",
			len(flux), lat.Cells(), groups,
		)
	} else if g < 0 || g >= groups {
		return fmt.Errorf("Group %d is out of range.", g)
	}

	values := make([]float64, lat.Cells())
	for r := range values {
		values[r] = flux[r*groups+g]
	}
	return heatMap(fname, fmt.Sprintf("Group %d flux", g), lat, values)
}

// FissionRates plots the fission rate of every cell.
func FissionRates(fname string, lat *geom.Lattice, rates []float64) error {
	return heatMap(fname, "Fission rates", lat, rates)
}
