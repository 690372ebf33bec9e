// Package atomdata holds the immutable atomic data table consumed by the plasma
// solver and the transport engine: elements, ionization stages, levels and a
// line list ordered by rest-frame frequency.
package atomdata

import (
	"cmp"
	"math"
	"slices"
	"sort"

	"github.com/banshee-data/ejecta.report/internal/simerr"
	"github.com/banshee-data/ejecta.report/internal/units"
)

// Element is a chemical element.
type Element struct {
	Z      int
	Symbol string
	Mass   float64 // amu
}

// Ion is one ionization stage of an element. IonizationEnergy (erg) is the
// energy needed to reach the next stage; it is zero for the highest stage in
// the table.
type Ion struct {
	Z                int
	Charge           int
	IonizationEnergy float64
}

// Level is a bound level of an ion. Energy is in erg above the ion ground
// state.
type Level struct {
	Z          int
	Charge     int
	Number     int
	Energy     float64
	G          float64
	Metastable bool
}

// LineSpec describes a transition by level numbers within one ion.
type LineSpec struct {
	Z          int
	Charge     int
	Lower      int
	Upper      int
	Wavelength float64 // Angstrom
	FLu        float64
}

// Line is a resolved transition. Lower and Upper index Table.Levels.
type Line struct {
	Index      int // position in Table.Lines
	Z          int
	Charge     int
	Lower      int
	Upper      int
	Nu         float64 // Hz
	Wavelength float64 // cm
	FLu        float64
	AUl        float64 // s^-1
}

type ionKey struct{ z, charge int }

type levelKey struct{ z, charge, number int }

// Table is read-only after construction and safe for concurrent use.
type Table struct {
	Elements []Element
	Ions     []Ion
	Levels   []Level
	Lines    []Line // ascending Nu

	elementByZ      map[int]int
	elementBySymbol map[string]int
	ionIndex        map[ionKey]int
	ionRange        map[int][2]int
	levelIndex      map[levelKey]int
	levelIon        []int
	ionLevels       [][]int
	downward        [][]int
	lineNu          []float64 // Nu of Lines, for binary search
}

var aulCoefficient = 8 * math.Pi * math.Pi * units.ElectronCharge * units.ElectronCharge /
	(units.ElectronMass * units.SpeedOfLight * units.SpeedOfLight * units.SpeedOfLight)

// EinsteinA returns the spontaneous emission coefficient of a transition with
// frequency nu, oscillator strength fLu and statistical weights gl, gu.
func EinsteinA(nu, fLu, gl, gu float64) float64 {
	return aulCoefficient * nu * nu * (gl / gu) * fLu
}

func atomicErr(format string, args ...interface{}) error {
	return simerr.New(simerr.KindAtomicData, "atomdata.NewTable", format, args...)
}

// NewTable validates the records and builds the lookup indices.
func NewTable(elements []Element, ions []Ion, levels []Level, lines []LineSpec) (*Table, error) {
	t := &Table{
		Elements:        slices.Clone(elements),
		Ions:            slices.Clone(ions),
		Levels:          slices.Clone(levels),
		elementByZ:      make(map[int]int),
		elementBySymbol: make(map[string]int),
		ionIndex:        make(map[ionKey]int),
		ionRange:        make(map[int][2]int),
		levelIndex:      make(map[levelKey]int),
	}
	if len(t.Elements) == 0 {
		return nil, atomicErr("no elements")
	}

	slices.SortFunc(t.Elements, func(a, b Element) int { return cmp.Compare(a.Z, b.Z) })
	for i, e := range t.Elements {
		if e.Z < 1 || e.Symbol == "" || !(e.Mass > 0) {
			return nil, atomicErr("invalid element record %+v", e)
		}
		if _, dup := t.elementByZ[e.Z]; dup {
			return nil, atomicErr("duplicate element Z=%d", e.Z)
		}
		t.elementByZ[e.Z] = i
		t.elementBySymbol[e.Symbol] = i
	}

	if err := t.indexIons(); err != nil {
		return nil, err
	}
	if err := t.indexLevels(); err != nil {
		return nil, err
	}
	if err := t.buildLines(lines); err != nil {
		return nil, err
	}
	return t, nil
}

func (t *Table) indexIons() error {
	slices.SortFunc(t.Ions, func(a, b Ion) int {
		if c := cmp.Compare(a.Z, b.Z); c != 0 {
			return c
		}
		return cmp.Compare(a.Charge, b.Charge)
	})
	for i, ion := range t.Ions {
		if _, ok := t.elementByZ[ion.Z]; !ok {
			return atomicErr("ion Z=%d charge=%d has no element", ion.Z, ion.Charge)
		}
		r, seen := t.ionRange[ion.Z]
		if !seen {
			if ion.Charge != 0 {
				return atomicErr("element Z=%d: ion stages must start at charge 0", ion.Z)
			}
			r = [2]int{i, i}
		} else if ion.Charge != t.Ions[i-1].Charge+1 {
			return atomicErr("element Z=%d: ion stages are not contiguous at charge %d", ion.Z, ion.Charge)
		}
		r[1] = i + 1
		t.ionRange[ion.Z] = r
		t.ionIndex[ionKey{ion.Z, ion.Charge}] = i
	}
	for _, e := range t.Elements {
		r, ok := t.ionRange[e.Z]
		if !ok || r[1]-r[0] < 2 {
			return atomicErr("element %s needs at least two ion stages", e.Symbol)
		}
		for i := r[0]; i < r[1]-1; i++ {
			if !(t.Ions[i].IonizationEnergy > 0) {
				return atomicErr("%s charge %d: ionization energy must be positive", e.Symbol, t.Ions[i].Charge)
			}
		}
		t.Ions[r[1]-1].IonizationEnergy = 0
	}
	return nil
}

func (t *Table) indexLevels() error {
	slices.SortFunc(t.Levels, func(a, b Level) int {
		if c := cmp.Compare(a.Z, b.Z); c != 0 {
			return c
		}
		if c := cmp.Compare(a.Charge, b.Charge); c != 0 {
			return c
		}
		return cmp.Compare(a.Number, b.Number)
	})
	t.ionLevels = make([][]int, len(t.Ions))
	t.levelIon = make([]int, len(t.Levels))
	for i, lvl := range t.Levels {
		ion, ok := t.ionIndex[ionKey{lvl.Z, lvl.Charge}]
		if !ok {
			return atomicErr("level %d of Z=%d charge=%d has no ion", lvl.Number, lvl.Z, lvl.Charge)
		}
		if lvl.Number != len(t.ionLevels[ion]) {
			return atomicErr("Z=%d charge=%d: level numbers must be contiguous from 0, got %d", lvl.Z, lvl.Charge, lvl.Number)
		}
		if !(lvl.G >= 1) || lvl.Energy < 0 || (lvl.Number == 0 && lvl.Energy != 0) {
			return atomicErr("invalid level record %+v", lvl)
		}
		t.ionLevels[ion] = append(t.ionLevels[ion], i)
		t.levelIon[i] = ion
		t.levelIndex[levelKey{lvl.Z, lvl.Charge, lvl.Number}] = i
	}
	for i, lv := range t.ionLevels {
		if len(lv) == 0 {
			return atomicErr("Z=%d charge=%d has no levels", t.Ions[i].Z, t.Ions[i].Charge)
		}
	}
	return nil
}

func (t *Table) buildLines(specs []LineSpec) error {
	t.Lines = make([]Line, 0, len(specs))
	for _, s := range specs {
		lower, okL := t.levelIndex[levelKey{s.Z, s.Charge, s.Lower}]
		upper, okU := t.levelIndex[levelKey{s.Z, s.Charge, s.Upper}]
		if !okL || !okU {
			return atomicErr("line %+v references unknown levels", s)
		}
		if t.Levels[upper].Energy <= t.Levels[lower].Energy {
			return atomicErr("line %+v: upper level is not above lower level", s)
		}
		if !(s.Wavelength > 0) || !(s.FLu > 0) {
			return atomicErr("line %+v: wavelength and oscillator strength must be positive", s)
		}
		nu := units.AngstromToHz(s.Wavelength)
		t.Lines = append(t.Lines, Line{
			Z:          s.Z,
			Charge:     s.Charge,
			Lower:      lower,
			Upper:      upper,
			Nu:         nu,
			Wavelength: s.Wavelength * units.Angstrom,
			FLu:        s.FLu,
			AUl:        EinsteinA(nu, s.FLu, t.Levels[lower].G, t.Levels[upper].G),
		})
	}
	slices.SortStableFunc(t.Lines, func(a, b Line) int { return cmp.Compare(a.Nu, b.Nu) })

	t.downward = make([][]int, len(t.Levels))
	t.lineNu = make([]float64, len(t.Lines))
	for i := range t.Lines {
		t.Lines[i].Index = i
		t.lineNu[i] = t.Lines[i].Nu
		up := t.Lines[i].Upper
		t.downward[up] = append(t.downward[up], i)
	}
	return nil
}

// ElementByZ returns the element with atomic number z.
func (t *Table) ElementByZ(z int) (Element, bool) {
	i, ok := t.elementByZ[z]
	if !ok {
		return Element{}, false
	}
	return t.Elements[i], true
}

// ElementBySymbol resolves a chemical symbol, returning an atomic data error
// when the table has no such species.
func (t *Table) ElementBySymbol(symbol string) (Element, error) {
	i, ok := t.elementBySymbol[symbol]
	if !ok {
		return Element{}, simerr.New(simerr.KindAtomicData, "atomdata.ElementBySymbol", "no atomic data for species %q", symbol)
	}
	return t.Elements[i], nil
}

// IonRange returns the half-open range of Ions indices for element z.
func (t *Table) IonRange(z int) (start, end int) {
	r := t.ionRange[z]
	return r[0], r[1]
}

// IonIndex returns the Ions index of the given stage.
func (t *Table) IonIndex(z, charge int) (int, bool) {
	i, ok := t.ionIndex[ionKey{z, charge}]
	return i, ok
}

// LevelsOf returns the Levels indices of an ion, ground level first.
func (t *Table) LevelsOf(ion int) []int {
	return t.ionLevels[ion]
}

// IonOfLevel returns the Ions index that owns a level.
func (t *Table) IonOfLevel(level int) int {
	return t.levelIon[level]
}

// DownwardLines returns the Lines indices whose upper level is level, in
// ascending frequency.
func (t *Table) DownwardLines(level int) []int {
	return t.downward[level]
}

// NumLines returns the length of the line list.
func (t *Table) NumLines() int { return len(t.Lines) }

// LinesInRange returns the lines with nuMin <= Nu <= nuMax. The result aliases
// the table and must not be modified.
func (t *Table) LinesInRange(nuMin, nuMax float64) []Line {
	lo := sort.SearchFloat64s(t.lineNu, nuMin)
	hi := sort.Search(len(t.lineNu), func(i int) bool { return t.lineNu[i] > nuMax })
	if lo >= hi {
		return nil
	}
	return t.Lines[lo:hi]
}

// LineFrequencies returns the ascending line frequencies. The result aliases
// the table and must not be modified.
func (t *Table) LineFrequencies() []float64 { return t.lineNu }
