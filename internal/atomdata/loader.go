package atomdata

import (
	"embed"
	"encoding/csv"
	"fmt"
	"io/fs"
	"os"
	"path"
	"strconv"
	"strings"

	"github.com/banshee-data/ejecta.report/internal/simerr"
	"github.com/banshee-data/ejecta.report/internal/units"
)

// BuiltinSample is the atom_data reference of the embedded sample table.
const BuiltinSample = "builtin:sample"

//go:embed sample/*.csv
var sampleFS embed.FS

// Load resolves an atom_data reference: BuiltinSample, or a directory holding
// elements.csv, ions.csv, levels.csv and lines.csv.
func Load(ref string) (*Table, error) {
	if ref == BuiltinSample {
		return SampleTable()
	}
	info, err := os.Stat(ref)
	if err != nil {
		return nil, simerr.Wrap(simerr.KindAtomicData, "atomdata.Load", fmt.Errorf("atomic data %q: %w", ref, err))
	}
	if !info.IsDir() {
		return nil, simerr.New(simerr.KindAtomicData, "atomdata.Load", "atomic data %q is not a directory", ref)
	}
	return LoadFS(os.DirFS(ref), ".")
}

// SampleTable loads the embedded sample table: H, He, O, Si and Ca with their
// strongest optical and near-UV lines.
func SampleTable() (*Table, error) {
	return LoadFS(sampleFS, "sample")
}

// MustSampleTable is SampleTable for test setup; it panics on error.
func MustSampleTable() *Table {
	t, err := SampleTable()
	if err != nil {
		panic(err)
	}
	return t
}

// LoadFS reads the four CSV files from dir within fsys.
func LoadFS(fsys fs.FS, dir string) (*Table, error) {
	var (
		elements []Element
		ions     []Ion
		levels   []Level
		lines    []LineSpec
	)
	steps := []struct {
		file   string
		header []string
		parse  func(row []string) error
	}{
		{"elements.csv", []string{"z", "symbol", "mass"}, func(row []string) error {
			e, err := parseElement(row)
			elements = append(elements, e)
			return err
		}},
		{"ions.csv", []string{"z", "charge", "ionizationenergy"}, func(row []string) error {
			ion, err := parseIon(row)
			ions = append(ions, ion)
			return err
		}},
		{"levels.csv", []string{"z", "charge", "level", "energy", "g", "metastable"}, func(row []string) error {
			lvl, err := parseLevel(row)
			levels = append(levels, lvl)
			return err
		}},
		{"lines.csv", []string{"z", "charge", "lower", "upper", "wavelength", "flu"}, func(row []string) error {
			l, err := parseLine(row)
			lines = append(lines, l)
			return err
		}},
	}

	for _, step := range steps {
		if err := readCSV(fsys, path.Join(dir, step.file), step.header, step.parse); err != nil {
			return nil, simerr.Wrap(simerr.KindAtomicData, "atomdata.LoadFS", err)
		}
	}
	return NewTable(elements, ions, levels, lines)
}

// readCSV validates the header row and feeds each data row to parse.
func readCSV(fsys fs.FS, name string, header []string, parse func([]string) error) error {
	file, err := fsys.Open(name)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", name, err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = len(header)
	records, err := reader.ReadAll()
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", name, err)
	}
	if len(records) < 2 {
		return fmt.Errorf("insufficient data in %s", name)
	}
	for i, h := range header {
		if strings.ToLower(strings.TrimSpace(records[0][i])) != h {
			return fmt.Errorf("invalid header in %s, expected: %s", name, strings.Join(header, ","))
		}
	}
	for i, record := range records[1:] {
		if err := parse(record); err != nil {
			return fmt.Errorf("%s line %d: %w", name, i+2, err)
		}
	}
	return nil
}

func parseElement(row []string) (Element, error) {
	z, err := strconv.Atoi(row[0])
	if err != nil {
		return Element{}, fmt.Errorf("invalid Z: %w", err)
	}
	mass, err := strconv.ParseFloat(row[2], 64)
	if err != nil {
		return Element{}, fmt.Errorf("invalid mass: %w", err)
	}
	return Element{Z: z, Symbol: strings.TrimSpace(row[1]), Mass: mass}, nil
}

func parseIon(row []string) (Ion, error) {
	z, charge, err := parseZCharge(row)
	if err != nil {
		return Ion{}, err
	}
	chi := 0.0
	if s := strings.TrimSpace(row[2]); s != "" {
		if chi, err = strconv.ParseFloat(s, 64); err != nil {
			return Ion{}, fmt.Errorf("invalid ionization energy: %w", err)
		}
	}
	return Ion{Z: z, Charge: charge, IonizationEnergy: units.EVToErg(chi)}, nil
}

func parseLevel(row []string) (Level, error) {
	z, charge, err := parseZCharge(row)
	if err != nil {
		return Level{}, err
	}
	number, err := strconv.Atoi(row[2])
	if err != nil {
		return Level{}, fmt.Errorf("invalid level number: %w", err)
	}
	energy, err := strconv.ParseFloat(row[3], 64)
	if err != nil {
		return Level{}, fmt.Errorf("invalid energy: %w", err)
	}
	g, err := strconv.ParseFloat(row[4], 64)
	if err != nil {
		return Level{}, fmt.Errorf("invalid statistical weight: %w", err)
	}
	metastable, err := strconv.ParseBool(row[5])
	if err != nil {
		return Level{}, fmt.Errorf("invalid metastable flag: %w", err)
	}
	return Level{Z: z, Charge: charge, Number: number, Energy: units.EVToErg(energy), G: g, Metastable: metastable}, nil
}

func parseLine(row []string) (LineSpec, error) {
	z, charge, err := parseZCharge(row)
	if err != nil {
		return LineSpec{}, err
	}
	lower, err := strconv.Atoi(row[2])
	if err != nil {
		return LineSpec{}, fmt.Errorf("invalid lower level: %w", err)
	}
	upper, err := strconv.Atoi(row[3])
	if err != nil {
		return LineSpec{}, fmt.Errorf("invalid upper level: %w", err)
	}
	wavelength, err := strconv.ParseFloat(row[4], 64)
	if err != nil {
		return LineSpec{}, fmt.Errorf("invalid wavelength: %w", err)
	}
	fLu, err := strconv.ParseFloat(row[5], 64)
	if err != nil {
		return LineSpec{}, fmt.Errorf("invalid oscillator strength: %w", err)
	}
	return LineSpec{Z: z, Charge: charge, Lower: lower, Upper: upper, Wavelength: wavelength, FLu: fLu}, nil
}

func parseZCharge(row []string) (int, int, error) {
	z, err := strconv.Atoi(row[0])
	if err != nil {
		return 0, 0, fmt.Errorf("invalid Z: %w", err)
	}
	charge, err := strconv.Atoi(row[1])
	if err != nil {
		return 0, 0, fmt.Errorf("invalid charge: %w", err)
	}
	return z, charge, nil
}
