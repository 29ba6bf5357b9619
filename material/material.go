package material

import (
	"math"

	"github.com/phil-mansfield/gomoc/status"
)

// ChiEps is the tolerance on the sum of a fission spectrum.
const ChiEps = 1e-9

// Definition is the input to Table.Add. SigmaS is a Groups x Groups
// scattering matrix stored as SigmaS[from*Groups + to].
type Definition struct {
	// Optional
	Name string

	// Required
	Groups                         int
	SigmaT, SigmaA, SigmaS, SigmaF []float64
	NuSigmaF, Chi                  []float64
}

// Material is a read-only view into a sealed or building Table. The slices
// alias the table's storage and must not be written to.
type Material struct {
	ID, Groups                     int
	Name                           string
	SigmaT, SigmaA, SigmaS, SigmaF []float64
	NuSigmaF, Chi                  []float64
}

// Scatter returns the cross section for scattering from group from into
// group to.
func (m *Material) Scatter(from, to int) float64 {
	return m.SigmaS[from*m.Groups+to]
}

// Fissile returns true if any group has a non-zero nu-fission cross section.
func (m *Material) Fissile() bool {
	for _, x := range m.NuSigmaF {
		if x > 0 {
			return true
		}
	}
	return false
}

// Table holds every material of a problem in flat per-group arrays indexed
// by id*Groups + g. A Table starts out building and becomes immutable once
// Seal is called.
type Table struct {
	groups int
	sealed bool

	names                          []string
	sigmaT, sigmaA, sigmaF, nuSigF []float64
	chi, sigmaS                    []float64
	fissile                        []bool
}

// NewTable returns an empty, building Table for the given number of energy
// groups.
func NewTable(groups int) (*Table, error) {
	if groups <= 0 {
		return nil, status.Errorf(
			status.InvalidArgument,
			"Material table needs a positive group count, but got %d.", groups,
		)
	}
	return &Table{groups: groups}, nil
}

// Groups returns the number of energy groups.
func (t *Table) Groups() int { return t.groups }

// Len returns the number of materials.
func (t *Table) Len() int { return len(t.names) }

// Sealed returns true once Seal has been called.
func (t *Table) Sealed() bool { return t.sealed }

// Seal ends the building phase. Calling it more than once has no effect.
func (t *Table) Seal() { t.sealed = true }

// Add validates def and appends it to the table, returning its id.
func (t *Table) Add(def *Definition) (int, error) {
	if t.sealed {
		return -1, status.Errorf(
			status.InvalidState,
			"Cannot add material '%s' to a sealed material table.", def.Name,
		)
	}
	if err := t.check(def); err != nil {
		return -1, err
	}

	id := len(t.names)
	t.names = append(t.names, def.Name)
	t.sigmaT = append(t.sigmaT, def.SigmaT...)
	t.sigmaA = append(t.sigmaA, def.SigmaA...)
	t.sigmaF = append(t.sigmaF, def.SigmaF...)
	t.nuSigF = append(t.nuSigF, def.NuSigmaF...)
	t.chi = append(t.chi, def.Chi...)
	t.sigmaS = append(t.sigmaS, def.SigmaS...)
	t.fissile = append(t.fissile, anyPositive(def.NuSigmaF))

	return id, nil
}

func (t *Table) check(def *Definition) error {
	g := t.groups
	if def.Groups != g {
		return status.Errorf(
			status.InvalidArgument,
			"Material '%s' has %d groups, but the table has %d.",
			def.Name, def.Groups, g,
		)
	}

	arrays := []struct {
		name string
		xs   []float64
		n    int
	}{
		{"SigmaT", def.SigmaT, g},
		{"SigmaA", def.SigmaA, g},
		{"SigmaS", def.SigmaS, g * g},
		{"SigmaF", def.SigmaF, g},
		{"NuSigmaF", def.NuSigmaF, g},
		{"Chi", def.Chi, g},
	}

	for _, arr := range arrays {
		if len(arr.xs) != arr.n {
			return status.Errorf(
				status.InvalidArgument,
				"%s of material '%s' has length %d, but must have length %d.",
				arr.name, def.Name, len(arr.xs), arr.n,
			)
		}
		for i, x := range arr.xs {
			if math.IsNaN(x) || math.IsInf(x, 0) || x < 0 {
				return status.Errorf(
					status.InvalidArgument,
					"%s[%d] of material '%s' is %g, but must be a finite, "+
						"non-negative number.", arr.name, i, def.Name, x,
				)
			}
		}
	}

	sum := 0.0
	for _, x := range def.Chi {
		sum += x
	}
	if math.Abs(sum-1) > ChiEps {
		// Non-fissile materials may leave their spectrum empty.
		if !(sum == 0 && !anyPositive(def.NuSigmaF)) {
			return status.Errorf(
				status.InvalidArgument,
				"Chi of material '%s' sums to %.12g, not 1.", def.Name, sum,
			)
		}
	}

	return nil
}

func anyPositive(xs []float64) bool {
	for _, x := range xs {
		if x > 0 {
			return true
		}
	}
	return false
}

// Get returns a view of material id.
func (t *Table) Get(id int) (*Material, error) {
	if !t.Valid(id) {
		return nil, status.Errorf(
			status.NotFound, "No material with id %d (table has %d).",
			id, t.Len(),
		)
	}
	g := t.groups
	lo, hi := id*g, (id+1)*g
	return &Material{
		ID:       id,
		Groups:   g,
		Name:     t.names[id],
		SigmaT:   t.sigmaT[lo:hi:hi],
		SigmaA:   t.sigmaA[lo:hi:hi],
		SigmaF:   t.sigmaF[lo:hi:hi],
		NuSigmaF: t.nuSigF[lo:hi:hi],
		Chi:      t.chi[lo:hi:hi],
		SigmaS:   t.sigmaS[lo*g : hi*g : hi*g],
	}, nil
}

// Lookup returns the id of the first material with the given name.
func (t *Table) Lookup(name string) (int, error) {
	for i, n := range t.names {
		if n == name {
			return i, nil
		}
	}
	return -1, status.Errorf(status.NotFound, "No material named '%s'.", name)
}

// Valid returns true if id refers to a material in the table.
func (t *Table) Valid(id int) bool { return id >= 0 && id < len(t.names) }

// The accessors below skip bounds checks on id beyond what slicing does and
// are meant for the sweep's inner loops.

func (t *Table) SigmaT(id int) []float64   { return t.group(t.sigmaT, id) }
func (t *Table) SigmaA(id int) []float64   { return t.group(t.sigmaA, id) }
func (t *Table) SigmaF(id int) []float64   { return t.group(t.sigmaF, id) }
func (t *Table) NuSigmaF(id int) []float64 { return t.group(t.nuSigF, id) }
func (t *Table) Chi(id int) []float64      { return t.group(t.chi, id) }
func (t *Table) Fissile(id int) bool       { return t.fissile[id] }

// SigmaS returns the flattened scattering matrix of material id.
func (t *Table) SigmaS(id int) []float64 {
	n := t.groups * t.groups
	return t.sigmaS[id*n : (id+1)*n]
}

func (t *Table) group(xs []float64, id int) []float64 {
	return xs[id*t.groups : (id+1)*t.groups]
}
