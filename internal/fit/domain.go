package fit

import (
	"errors"
	"math"

	"github.com/cwbudde/varmapfit/internal/grid"
	"github.com/cwbudde/varmapfit/internal/spectral"
)

// ErrInvalidStructureCount is returned when fewer than one structure is requested
var ErrInvalidStructureCount = errors.New("number of structures must be at least 1")

// Domain defines valid ranges for each kind of structure parameter
type Domain struct {
	Min VariogramStructure
	Max VariogramStructure
}

// Delta returns the width of the domain for parameter kind i
func (d Domain) Delta(i int) float64 {
	return d.Max.Parameter(i) - d.Min.Parameter(i)
}

// Init holds the starting point of a fitting session
type Init struct {
	Domain     Domain
	Params     []float64
	Lower      []float64
	Upper      []float64
	Structures []VariogramStructure
}

// Initialize builds the domain from the grid geometry and the experimental
// varmap and places m structures in the centre of it.
func Initialize(geom grid.Geometry, varmap *spectral.Array, m int) (*Init, error) {
	if m < 1 {
		return nil, ErrInvalidStructureCount
	}

	sill := varmap.Max()
	domain := Domain{
		Min: VariogramStructure{
			Range:        geom.MinCellSize(),
			RangeRatio:   0.001,
			Azimuth:      0,
			Contribution: sill / 100,
		},
		Max: VariogramStructure{
			Range:        geom.DiagonalLength() / 2,
			RangeRatio:   1,
			Azimuth:      math.Pi,
			Contribution: sill,
		},
	}

	start := VariogramStructure{
		Range:        (domain.Max.Range + domain.Min.Range) / 2,
		RangeRatio:   (domain.Max.RangeRatio + domain.Min.RangeRatio) / 2,
		Azimuth:      (domain.Max.Azimuth + domain.Min.Azimuth) / 2,
		Contribution: math.Max(domain.Min.Contribution, domain.Delta(ParamContribution)/float64(m)),
	}

	structures := make([]VariogramStructure, m)
	lowerS := make([]VariogramStructure, m)
	upperS := make([]VariogramStructure, m)
	for i := 0; i < m; i++ {
		structures[i] = start
		lowerS[i] = domain.Min
		upperS[i] = domain.Max
	}

	return &Init{
		Domain:     domain,
		Params:     Flatten(structures),
		Lower:      Flatten(lowerS),
		Upper:      Flatten(upperS),
		Structures: structures,
	}, nil
}

// ClampVector clamps all parameters in place
func ClampVector(data, lower, upper []float64) {
	for i := range data {
		data[i] = clamp(data[i], lower[i], upper[i])
	}
}
