/*Package plot writes pyplot figures of track layouts, segment maps, flux
profiles and convergence histories, and per-cell maps of lattice
quantities.

Figures are queued as pyplot commands. Nothing is drawn until the caller
runs plt.Execute().
*/
package plot

import (
	"fmt"

	plt "github.com/phil-mansfield/pyplot"

	"github.com/phil-mansfield/gomoc/geom"
	"github.com/phil-mansfield/gomoc/track"
)

var colors = []string{
	"#1f77b4", "#ff7f0e", "#2ca02c", "#d62728", "#9467bd",
	"#8c564b", "#e377c2", "#7f7f7f", "#bcbd22", "#17becf",
}

// Color returns the color used for region r.
func Color(r int) string { return colors[r%len(colors)] }

func outline(lat *geom.Lattice) {
	xs := []float64{0, lat.Width, lat.Width, 0, 0}
	ys := []float64{0, 0, lat.Height, lat.Height, 0}
	plt.Plot(xs, ys, "k", plt.LW(2))
	plt.XLim(0, lat.Width)
	plt.YLim(0, lat.Height)
}

// Tracks plots every track as a line through the lattice.
func Tracks(fname string, lat *geom.Lattice, tab *track.Table) {
	coords := tab.Coords()

	plt.Figure(plt.FigSize(8, 8))
	for i := 0; i < tab.Len(); i++ {
		c := coords[4*i : 4*i+4]
		plt.Plot([]float64{c[0], c[2]}, []float64{c[1], c[3]},
			"k", plt.LW(1))
	}
	outline(lat)

	plt.Title(fmt.Sprintf("%d tracks, %d azimuthal angles",
		tab.Len(), tab.NumAzim()))
	plt.XLabel(`$x$`, plt.FontSize(16))
	plt.YLabel(`$y$`, plt.FontSize(16))
	plt.SaveFig(fname)
}

// Segments plots every segment in the color of the region it crosses.
func Segments(fname string, lat *geom.Lattice, tab *track.Table) {
	segs := tab.SegmentCoords()
	n := track.SegmentValues

	plt.Figure(plt.FigSize(8, 8))
	for i := 0; i < len(segs)/n; i++ {
		s := segs[n*i : n*i+n]
		plt.Plot([]float64{s[1], s[3]}, []float64{s[2], s[4]},
			plt.LW(1), plt.C(Color(int(s[0]))))
	}
	outline(lat)

	plt.Title(fmt.Sprintf("%d segments, %d regions",
		tab.NumSegments(), tab.NumRegions()))
	plt.XLabel(`$x$`, plt.FontSize(16))
	plt.YLabel(`$y$`, plt.FontSize(16))
	plt.SaveFig(fname)
}

// RowProfile returns the cell centers along x and the flux of group g in
// each column, averaged over rows. flux is region-major with one region per
// lattice cell.
func RowProfile(
	lat *geom.Lattice, flux []float64, groups, g int,
) (xs, ys []float64, err error) {
	if len(flux) != lat.Cells()*groups {
		return nil, nil, fmt.Errorf(
			"Flux has length %d, but the lattice has %d cells and %d groups.",
			len(flux), lat.Cells(), groups,
		)
	} else if g < 0 || g >= groups {
		return nil, nil, fmt.Errorf("Group %d is out of range.", g)
	}

	xs, ys = make([]float64, lat.Nx), make([]float64, lat.Nx)
	for ix := 0; ix < lat.Nx; ix++ {
		xs[ix], _ = lat.Center(lat.Idx(ix, 0))
		for iy := 0; iy < lat.Ny; iy++ {
			ys[ix] += flux[lat.Idx(ix, iy)*groups+g]
		}
		ys[ix] /= float64(lat.Ny)
	}
	return xs, ys, nil
}

// FluxProfile plots the row-averaged flux of every group against x.
func FluxProfile(
	fname string, lat *geom.Lattice, flux []float64, groups int,
) error {
	xs, ys := make([][]float64, groups), make([][]float64, groups)
	for g := range xs {
		var err error
		xs[g], ys[g], err = RowProfile(lat, flux, groups, g)
		if err != nil {
			return err
		}
	}

	plt.Figure()
	for g := range xs {
		plt.Plot(xs[g], ys[g], "o-", plt.LW(2), plt.C(Color(g)))
	}

	plt.Title("Row-averaged scalar flux")
	plt.XLabel(`$x$`, plt.FontSize(16))
	plt.YLabel(`$\phi_g$`, plt.FontSize(16))
	plt.XLim(0, lat.Width)
	plt.Grid(plt.Axis("y"))
	plt.SaveFig(fname)
	return nil
}

// Spectrum returns group indices and the flux of region r in each group.
func Spectrum(flux []float64, groups, r int) (gs, phis []float64, err error) {
	if r < 0 || groups <= 0 || (r+1)*groups > len(flux) {
		return nil, nil, fmt.Errorf(
			"Region %d is out of range for %d groups.", r, groups,
		)
	}
	gs, phis = make([]float64, groups), make([]float64, groups)
	for g := range gs {
		gs[g] = float64(g)
		phis[g] = flux[r*groups+g]
	}
	return gs, phis, nil
}

// EnergyFluxes plots the group spectrum of each of the given regions.
func EnergyFluxes(fname string, flux []float64, groups int, regions []int) error {
	gs, phis := make([][]float64, len(regions)), make([][]float64, len(regions))
	for i, r := range regions {
		var err error
		gs[i], phis[i], err = Spectrum(flux, groups, r)
		if err != nil {
			return err
		}
	}

	plt.Figure()
	for i, r := range regions {
		plt.Plot(gs[i], phis[i], "o-", plt.LW(2), plt.C(Color(r)))
	}

	plt.Title("Scalar flux by group")
	plt.XLabel("group", plt.FontSize(16))
	plt.YLabel(`$\phi$`, plt.FontSize(16))
	plt.YScale("log")
	plt.Grid(plt.Axis("y"), plt.Which("both"))
	plt.SaveFig(fname)
	return nil
}

// Convergence plots the residual of each iteration.
func Convergence(fname string, residuals []float64) {
	its := make([]float64, len(residuals))
	for i := range its {
		its[i] = float64(i + 1)
	}

	plt.Figure()
	plt.Plot(its, residuals, "k", plt.LW(2))
	plt.Title(fmt.Sprintf("Source iteration: %d iterations", len(residuals)))
	plt.XLabel("iteration", plt.FontSize(16))
	plt.YLabel("residual", plt.FontSize(16))
	plt.YScale("log")
	plt.Grid(plt.Axis("y"), plt.Which("both"))
	plt.SaveFig(fname)
}
