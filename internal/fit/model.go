package fit

import (
	"math"

	mat2d "github.com/flywave/go3d/float64/mat2"
	vec2d "github.com/flywave/go3d/float64/vec2"

	"github.com/cwbudde/varmapfit/internal/grid"
	"github.com/cwbudde/varmapfit/internal/spectral"
)

// rotation maps a (north, east) lag onto the structure's (major, minor) axes
func rotation(azimuth float64) (m mat2d.T) {
	c := math.Cos(azimuth)
	s := math.Sin(azimuth)

	m[0][0] = c
	m[0][1] = -s
	m[1][0] = s
	m[1][1] = c

	return m
}

// spherical is the normalized spherical covariance for a reduced lag h
func spherical(h float64) float64 {
	if h >= 1 {
		return 0
	}
	return 1 - (1.5*h - 0.5*h*h*h)
}

// AddStructure accumulates the covariance of s evaluated at every cell's lag
// from the grid centre into dst.
func AddStructure(dst *spectral.Array, geom grid.Geometry, s VariogramStructure) {
	ci, cj, _ := geom.CenterCell()
	rot := rotation(s.Azimuth)
	minor := s.Range * s.RangeRatio

	for k := 0; k < dst.NK; k++ {
		for j := 0; j < dst.NJ; j++ {
			dy := float64(j-cj) * geom.CellSizeJ
			for i := 0; i < dst.NI; i++ {
				dx := float64(i-ci) * geom.CellSizeI
				lag := vec2d.T{dy, dx}
				rot.TransformVec2(&lag)
				hMajor := lag[0] / s.Range
				hMinor := lag[1] / minor
				h := math.Sqrt(hMajor*hMajor + hMinor*hMinor)
				dst.Data[dst.Index(i, j, k)] += s.Contribution * spherical(h)
			}
		}
	}
}

// StructureSurface returns the covariance surface of a single structure
func StructureSurface(geom grid.Geometry, s VariogramStructure) *spectral.Array {
	out := spectral.New(geom.NI, geom.NJ, geom.NK)
	AddStructure(out, geom, s)
	return out
}

// ModelSurface returns the summed covariance surface of all nested structures
func ModelSurface(geom grid.Geometry, structures []VariogramStructure) *spectral.Array {
	out := spectral.New(geom.NI, geom.NJ, geom.NK)
	for _, s := range structures {
		AddStructure(out, geom, s)
	}
	return out
}
