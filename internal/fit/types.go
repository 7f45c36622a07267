package fit

import (
	"fmt"
	"math"
	"strings"
)

// VariogramStructure is one nested anisotropic spherical structure
type VariogramStructure struct {
	Range        float64 // Major axis length, > 0
	RangeRatio   float64 // Minor/major axis ratio in (0,1]
	Azimuth      float64 // Radians clockwise from north, in [0,π)
	Contribution float64 // Partial sill, > 0
}

// ParamsPerStructure is the number of scalars encoding one structure
const ParamsPerStructure = 4

// Parameter indexes within a structure
const (
	ParamRange = iota
	ParamRatio
	ParamAzimuth
	ParamContribution
)

// Parameter returns the i-th parameter (0: range, 1: ratio, 2: azimuth, 3: contribution)
func (s VariogramStructure) Parameter(i int) float64 {
	switch i {
	case ParamRange:
		return s.Range
	case ParamRatio:
		return s.RangeRatio
	case ParamAzimuth:
		return s.Azimuth
	case ParamContribution:
		return s.Contribution
	}
	panic(fmt.Sprintf("parameter index %d out of range", i))
}

// SetParameter writes the i-th parameter
func (s *VariogramStructure) SetParameter(i int, v float64) {
	switch i {
	case ParamRange:
		s.Range = v
	case ParamRatio:
		s.RangeRatio = v
	case ParamAzimuth:
		s.Azimuth = v
	case ParamContribution:
		s.Contribution = v
	default:
		panic(fmt.Sprintf("parameter index %d out of range", i))
	}
}

// Flatten encodes structures as a flat parameter vector
// [range0, ratio0, az0, cc0, range1, ...]
func Flatten(structures []VariogramStructure) []float64 {
	data := make([]float64, len(structures)*ParamsPerStructure)
	for i, s := range structures {
		offset := i * ParamsPerStructure
		for p := 0; p < ParamsPerStructure; p++ {
			data[offset+p] = s.Parameter(p)
		}
	}
	return data
}

// Decode reads m structures from a flat parameter vector
func Decode(params []float64) ([]VariogramStructure, error) {
	if len(params)%ParamsPerStructure != 0 {
		return nil, fmt.Errorf("parameter vector length %d is not a multiple of %d", len(params), ParamsPerStructure)
	}
	m := len(params) / ParamsPerStructure
	structures := make([]VariogramStructure, m)
	for i := range structures {
		offset := i * ParamsPerStructure
		for p := 0; p < ParamsPerStructure; p++ {
			structures[i].SetParameter(p, params[offset+p])
		}
	}
	return structures, nil
}

// FormatModel renders structures as a tab-separated table, azimuths in degrees
func FormatModel(structures []VariogramStructure) string {
	var b strings.Builder
	b.WriteString("structure\tcontribution\trange\tratio\tazimuth\n")
	for i, s := range structures {
		fmt.Fprintf(&b, "%d\t%g\t%g\t%g\t%g\n",
			i+1, s.Contribution, s.Range, s.RangeRatio, s.Azimuth*180/math.Pi)
	}
	return b.String()
}

func clamp(val, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, val))
}
