package fsr

import (
	"math"
	"sync/atomic"
	"unsafe"

	"github.com/phil-mansfield/gomoc/material"
	"github.com/phil-mansfield/gomoc/status"
)

const (
	// MinSigmaT replaces total cross sections below it when converting
	// sources and accumulators into fluxes, so void regions don't divide by
	// zero.
	MinSigmaT = 1e-10
	// NegativeFluxEps is the relative size a negative flux must reach, in
	// units of the region's source-driven flux, before it is reported as a
	// numeric failure. Smaller negatives are floating point noise.
	NegativeFluxEps = 1e-8
)

// Table holds the state of every flat source region. All per-group
// quantities are flat arrays indexed by region*Groups + group.
type Table struct {
	mats   *material.Table
	groups int

	volumes []float64
	matIDs  []int

	external, source []float64
	flux, oldFlux    []float64
	acc              []float64
	// next holds fluxes computed by FinalizeSweep until all are valid.
	next []float64
}

// NewTable creates an empty region table over a sealed material table.
func NewTable(mats *material.Table) (*Table, error) {
	if !mats.Sealed() {
		return nil, status.Errorf(
			status.InvalidState,
			"Regions can only be created once the material table is sealed.",
		)
	}
	return &Table{mats: mats, groups: mats.Groups()}, nil
}

// Add appends a region with the given volume and material and returns its
// id. New regions have zero source and zero flux.
func (t *Table) Add(volume float64, materialID int) (int, error) {
	if !(volume > 0) || math.IsInf(volume, 0) {
		return -1, status.Errorf(
			status.InvalidArgument,
			"Region volume must be positive and finite, but is %g.", volume,
		)
	}
	if !t.mats.Valid(materialID) {
		return -1, status.Errorf(
			status.InvalidArgument,
			"Region refers to material %d, but there are only %d materials.",
			materialID, t.mats.Len(),
		)
	}

	id := len(t.volumes)
	t.volumes = append(t.volumes, volume)
	t.matIDs = append(t.matIDs, materialID)

	zeros := make([]float64, t.groups)
	t.external = append(t.external, zeros...)
	t.source = append(t.source, zeros...)
	t.flux = append(t.flux, zeros...)
	t.oldFlux = append(t.oldFlux, zeros...)
	t.acc = append(t.acc, zeros...)
	t.next = append(t.next, zeros...)

	return id, nil
}

func (t *Table) Len() int                   { return len(t.volumes) }
func (t *Table) Groups() int                { return t.groups }
func (t *Table) Materials() *material.Table { return t.mats }
func (t *Table) Volume(r int) float64       { return t.volumes[r] }
func (t *Table) Material(r int) int         { return t.matIDs[r] }

// Valid returns true if r is a region id.
func (t *Table) Valid(r int) bool { return r >= 0 && r < len(t.volumes) }

func (t *Table) group(xs []float64, r int) []float64 {
	return xs[r*t.groups : (r+1)*t.groups]
}

// Flux returns the current scalar flux of region r.
func (t *Table) Flux(r int) []float64 { return t.group(t.flux, r) }

// OldFlux returns the scalar flux of region r before the last sweep.
func (t *Table) OldFlux(r int) []float64 { return t.group(t.oldFlux, r) }

// Source returns the total isotropic source density of region r.
func (t *Table) Source(r int) []float64 { return t.group(t.source, r) }

// ExternalSource returns the fixed external source density of region r.
func (t *Table) ExternalSource(r int) []float64 { return t.group(t.external, r) }

// Accumulator returns the merged flux accumulator of region r.
func (t *Table) Accumulator(r int) []float64 { return t.group(t.acc, r) }

// ScalarFlux returns the flat region-major flux array. It aliases the
// table's storage.
func (t *Table) ScalarFlux() []float64 { return t.flux }

// Sources returns the flat region-major total source array. It aliases the
// table's storage.
func (t *Table) Sources() []float64 { return t.source }

// SetExternalSource sets the fixed source density of region r.
func (t *Table) SetExternalSource(r int, q []float64) error {
	if err := t.checkGroupArray(r, q, "External source"); err != nil {
		return err
	}
	copy(t.group(t.external, r), q)
	return nil
}

// SetSource sets the total source density of region r.
func (t *Table) SetSource(r int, q []float64) error {
	if err := t.checkGroupArray(r, q, "Source"); err != nil {
		return err
	}
	copy(t.group(t.source, r), q)
	return nil
}

// SetFlux overwrites the scalar flux of every region-group with x. It is
// used to seed iterations.
func (t *Table) SetFlux(x float64) {
	for i := range t.flux {
		t.flux[i] = x
	}
}

// ScaleFlux multiplies every current and previous scalar flux by f.
func (t *Table) ScaleFlux(f float64) {
	for i := range t.flux {
		t.flux[i] *= f
		t.oldFlux[i] *= f
	}
}

func (t *Table) checkGroupArray(r int, q []float64, name string) error {
	if !t.Valid(r) {
		return status.Errorf(
			status.NotFound, "No region with id %d (table has %d).", r, t.Len(),
		)
	}
	if len(q) != t.groups {
		return status.Errorf(
			status.InvalidArgument,
			"%s of region %d has length %d, but must have length %d.",
			name, r, len(q), t.groups,
		)
	}
	for g, x := range q {
		if math.IsNaN(x) || math.IsInf(x, 0) || x < 0 {
			return status.Errorf(
				status.InvalidArgument,
				"%s of region %d is %g in group %d, but must be finite and "+
					"non-negative.", name, r, x, g,
			)
		}
	}
	return nil
}

// ResetAccumulators zeroes the per-sweep flux accumulators.
func (t *Table) ResetAccumulators() {
	for i := range t.acc {
		t.acc[i] = 0
	}
}

// AccumulateFlux atomically adds delta to the accumulator of region r in
// group g. It may be called from any number of goroutines at once. Workers
// that own an Accumulator should use that instead, since this contends on
// shared cache lines.
func (t *Table) AccumulateFlux(r, g int, delta float64) {
	addFloat64(&t.acc[r*t.groups+g], delta)
}

func addFloat64(x *float64, delta float64) {
	p := (*uint64)(unsafe.Pointer(x))
	for {
		old := atomic.LoadUint64(p)
		next := math.Float64bits(math.Float64frombits(old) + delta)
		if atomic.CompareAndSwapUint64(p, old, next) {
			return
		}
	}
}

// Accumulator is a private per-worker copy of the table's accumulators.
// Workers add into their own Accumulator during a sweep and the results are
// merged with Table.Merge after the barrier.
type Accumulator struct {
	groups int
	vals   []float64
}

// NewAccumulator returns a zeroed Accumulator sized for t.
func (t *Table) NewAccumulator() *Accumulator {
	return &Accumulator{t.groups, make([]float64, len(t.acc))}
}

// Add adds delta to region r in group g.
func (a *Accumulator) Add(r, g int, delta float64) {
	a.vals[r*a.groups+g] += delta
}

// Region returns the accumulator values of region r, which the sweep writes
// to directly.
func (a *Accumulator) Region(r int) []float64 {
	return a.vals[r*a.groups : (r+1)*a.groups]
}

// Reset zeroes the accumulator.
func (a *Accumulator) Reset() {
	for i := range a.vals {
		a.vals[i] = 0
	}
}

// Merge adds the contents of a into the table's accumulators. It must only
// be called after every worker of the sweep has finished.
func (t *Table) Merge(a *Accumulator) error {
	if len(a.vals) != len(t.acc) {
		return status.Errorf(
			status.InvalidArgument,
			"Accumulator has %d values, but the table has %d. Were regions "+
				"added after it was created?", len(a.vals), len(t.acc),
		)
	}
	for i, x := range a.vals {
		t.acc[i] += x
	}
	return nil
}

// FinalizeSweep converts the merged accumulators into new scalar fluxes:
//
//     flux = source/SigmaT + acc/(SigmaT*volume)
//
// The previous flux is kept and can be read with OldFlux. On a numeric
// failure both fluxes are left as they were. FinalizeSweep must only run
// after every worker of the sweep has completed.
func (t *Table) FinalizeSweep() error {

	for r := range t.volumes {
		sigT := t.mats.SigmaT(t.matIDs[r])
		vol := t.volumes[r]
		lo := r * t.groups
		for g := 0; g < t.groups; g++ {
			st := sigT[g]
			if st < MinSigmaT {
				st = MinSigmaT
			}
			base := t.source[lo+g] / st
			phi := base + t.acc[lo+g]/(st*vol)

			if math.IsNaN(phi) || math.IsInf(phi, 0) {
				return status.Errorf(
					status.NumericFailure,
					"Flux of region %d in group %d is %g.", r, g, phi,
				)
			} else if phi < 0 {
				if phi < -NegativeFluxEps*base || base == 0 {
					return status.Errorf(
						status.NumericFailure,
						"Flux of region %d in group %d is negative (%g).",
						r, g, phi,
					)
				}
				phi = 0
			}
			t.next[lo+g] = phi
		}
	}

	copy(t.oldFlux, t.flux)
	copy(t.flux, t.next)
	return nil
}

// FissionRates returns the volume-integrated fission rate of every region,
// sum_g SigmaF_g * flux_g * volume.
func (t *Table) FissionRates() []float64 {
	out := make([]float64, t.Len())
	for r := range out {
		sigF := t.mats.SigmaF(t.matIDs[r])
		flux := t.Flux(r)
		sum := 0.0
		for g := range flux {
			sum += sigF[g] * flux[g]
		}
		out[r] = sum * t.volumes[r]
	}
	return out
}

// FissionSource returns nu-fission production, sum_g NuSigmaF_g * flux_g,
// of region r integrated over its volume, computed from the given flux array
// (either ScalarFlux or a saved copy).
func (t *Table) FissionSource(r int, flux []float64) float64 {
	nuSigF := t.mats.NuSigmaF(t.matIDs[r])
	sum := 0.0
	for g, f := range t.group(flux, r) {
		sum += nuSigF[g] * f
	}
	return sum * t.volumes[r]
}
