package plasma

import (
	"math"

	"github.com/banshee-data/ejecta.report/internal/atomdata"
	"github.com/banshee-data/ejecta.report/internal/units"
)

// SobolevDepth is the Sobolev optical depth of a line at time tExp for the
// given lower and upper level populations, corrected for stimulated
// emission. Inverted populations give zero.
func SobolevDepth(line atomdata.Line, gLower, gUpper, nLower, nUpper, tExp float64) float64 {
	if !(nLower > 0) {
		return 0
	}
	stimulated := 1 - (gLower*nUpper)/(gUpper*nLower)
	tau := units.SobolevCoefficient * line.FLu * line.Wavelength * tExp * nLower * stimulated
	return math.Max(tau, 0)
}

// sobolevDepths fills dst, indexed like Table.Lines, from level populations.
func (s *Solver) sobolevDepths(levels, dst []float64) {
	t := s.table
	for i, line := range t.Lines {
		dst[i] = SobolevDepth(line, t.Levels[line.Lower].G, t.Levels[line.Upper].G,
			levels[line.Lower], levels[line.Upper], s.grid.TimeExplosion)
	}
}
