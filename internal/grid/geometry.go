// Package grid describes regular Cartesian grid geometry and materializes grid
// variables as dense arrays.
package grid

import (
	"fmt"
	"math"
)

// Geometry describes a regular, unrotated Cartesian grid.
// Origin is the centre of cell (0,0,0), following the GSLib convention.
type Geometry struct {
	NI, NJ, NK                      int
	CellSizeI, CellSizeJ, CellSizeK float64
	OriginX, OriginY, OriginZ       float64
}

// Location is a point in grid coordinates
type Location struct {
	X, Y, Z float64
}

// DistanceTo returns the Euclidean distance between two locations
func (l Location) DistanceTo(x, y, z float64) float64 {
	dx, dy, dz := l.X-x, l.Y-y, l.Z-z
	return math.Sqrt(dx*dx + dy*dy + dz*dz)
}

// Validate checks dimensions and cell sizes
func (g Geometry) Validate() error {
	if g.NI <= 0 || g.NJ <= 0 || g.NK <= 0 {
		return fmt.Errorf("grid dimensions must be positive, got %dx%dx%d", g.NI, g.NJ, g.NK)
	}
	if g.CellSizeI <= 0 || g.CellSizeJ <= 0 || g.CellSizeK <= 0 {
		return fmt.Errorf("cell sizes must be positive, got %gx%gx%g", g.CellSizeI, g.CellSizeJ, g.CellSizeK)
	}
	return nil
}

// Cells returns the total number of cells
func (g Geometry) Cells() int {
	return g.NI * g.NJ * g.NK
}

// DiagonalLength returns the length of the diagonal of the grid's box
func (g Geometry) DiagonalLength() float64 {
	dx := float64(g.NI) * g.CellSizeI
	dy := float64(g.NJ) * g.CellSizeJ
	dz := float64(g.NK) * g.CellSizeK
	return math.Sqrt(dx*dx + dy*dy + dz*dz)
}

// CellLocation returns the centre of cell (i,j,k)
func (g Geometry) CellLocation(i, j, k int) Location {
	return Location{
		X: g.OriginX + float64(i)*g.CellSizeI,
		Y: g.OriginY + float64(j)*g.CellSizeJ,
		Z: g.OriginZ + float64(k)*g.CellSizeK,
	}
}

// CenterCell returns the topological indexes of the lag-origin cell.
// Centred correlation surfaces hold the zero-lag value there.
func (g Geometry) CenterCell() (i, j, k int) {
	return g.NI / 2, g.NJ / 2, g.NK / 2
}

// Center returns the location of the lag-origin cell
func (g Geometry) Center() Location {
	return g.CellLocation(g.CenterCell())
}

// MeanCellSize returns the mean of the three cell sizes
func (g Geometry) MeanCellSize() float64 {
	return (g.CellSizeI + g.CellSizeJ + g.CellSizeK) / 3.0
}

// MinCellSize returns the smaller of the two horizontal cell sizes
func (g Geometry) MinCellSize() float64 {
	return math.Min(g.CellSizeI, g.CellSizeJ)
}
