package fit

import (
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cwbudde/varmapfit/internal/grid"
	"github.com/cwbudde/varmapfit/internal/spectral"
)

func TestFlattenDecodeRoundTrip(t *testing.T) {
	params := []float64{12.5, 0.3, 1.1, 0.7, 40, 1, 0, 0.25, 3.3, 0.001, 3.14, 9}

	structures, err := Decode(params)
	require.NoError(t, err)
	require.Len(t, structures, 3)

	assert.Equal(t, VariogramStructure{Range: 40, RangeRatio: 1, Azimuth: 0, Contribution: 0.25}, structures[1])
	assert.Equal(t, params, Flatten(structures))
}

func TestDecodeRejectsPartialStructure(t *testing.T) {
	_, err := Decode([]float64{1, 2, 3})
	assert.Error(t, err)
}

func TestParameterAccess(t *testing.T) {
	var s VariogramStructure
	for i := 0; i < ParamsPerStructure; i++ {
		s.SetParameter(i, float64(i+1))
	}
	assert.Equal(t, VariogramStructure{Range: 1, RangeRatio: 2, Azimuth: 3, Contribution: 4}, s)
	assert.Equal(t, 3.0, s.Parameter(ParamAzimuth))

	assert.Panics(t, func() { s.Parameter(4) })
	assert.Panics(t, func() { s.SetParameter(-1, 0) })
}

func TestFormatModel(t *testing.T) {
	out := FormatModel([]VariogramStructure{{Range: 10, RangeRatio: 0.5, Azimuth: 0, Contribution: 1.5}})
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "1\t1.5\t10\t0.5\t0", lines[1])
}

func squareGrid(n int) grid.Geometry {
	return grid.Geometry{
		NI: n, NJ: n, NK: 1,
		CellSizeI: 1, CellSizeJ: 1, CellSizeK: 1,
	}
}

func TestInitializeDomain(t *testing.T) {
	geom := grid.Geometry{
		NI: 20, NJ: 10, NK: 1,
		CellSizeI: 2, CellSizeJ: 1, CellSizeK: 1,
	}
	varmap := spectral.New(20, 10, 1)
	varmap.Set(10, 5, 0, 4)

	init, err := Initialize(geom, varmap, 2)
	require.NoError(t, err)

	d := init.Domain
	assert.Equal(t, 1.0, d.Min.Range)
	assert.InDelta(t, math.Sqrt(40*40+10*10+1)/2, d.Max.Range, 1e-12)
	assert.Equal(t, 0.001, d.Min.RangeRatio)
	assert.Equal(t, 1.0, d.Max.RangeRatio)
	assert.Equal(t, 0.0, d.Min.Azimuth)
	assert.Equal(t, math.Pi, d.Max.Azimuth)
	assert.Equal(t, 0.04, d.Min.Contribution)
	assert.Equal(t, 4.0, d.Max.Contribution)

	require.Len(t, init.Params, 8)
	require.Len(t, init.Lower, 8)
	require.Len(t, init.Upper, 8)
	assert.Equal(t, init.Structures, []VariogramStructure{init.Structures[0], init.Structures[0]})
	assert.InDelta(t, 1.98, init.Structures[0].Contribution, 1e-12)
	assert.InDelta(t, math.Pi/2, init.Structures[0].Azimuth, 1e-12)

	for i := range init.Params {
		assert.GreaterOrEqual(t, init.Params[i], init.Lower[i])
		assert.LessOrEqual(t, init.Params[i], init.Upper[i])
	}

	assert.InDelta(t, 3.96, d.Delta(ParamContribution), 1e-12)
}

func TestInitializeRejectsZeroStructures(t *testing.T) {
	_, err := Initialize(squareGrid(8), spectral.New(8, 8, 1), 0)
	assert.ErrorIs(t, err, ErrInvalidStructureCount)
}

func TestClampVector(t *testing.T) {
	x := []float64{-1, 0.5, 7}
	ClampVector(x, []float64{0, 0, 0}, []float64{1, 1, 5})
	assert.Equal(t, []float64{0, 0.5, 5}, x)
}

func TestSpherical(t *testing.T) {
	assert.Equal(t, 1.0, spherical(0))
	assert.InDelta(t, 0.3125, spherical(0.5), 1e-15)
	assert.Equal(t, 0.0, spherical(1))
	assert.Equal(t, 0.0, spherical(3))
}

func TestStructureSurface(t *testing.T) {
	geom := squareGrid(32)
	ci, cj, _ := geom.CenterCell()
	s := VariogramStructure{Range: 8, RangeRatio: 0.5, Azimuth: 0, Contribution: 2}

	surface := StructureSurface(geom, s)
	assert.Equal(t, 2.0, surface.At(ci, cj, 0), "zero lag holds the full contribution")
	assert.Equal(t, surface.Max(), surface.At(ci, cj, 0))

	// Six cells along the major axis is within range, along the minor axis it is not
	assert.Greater(t, surface.At(ci, cj+6, 0), 0.0)
	assert.Equal(t, 0.0, surface.At(ci+6, cj, 0))
	assert.Equal(t, 0.0, surface.At(0, 0, 0))
}

func TestStructureSurfaceQuarterTurn(t *testing.T) {
	geom := squareGrid(16)
	s := VariogramStructure{Range: 6, RangeRatio: 0.3, Azimuth: 0, Contribution: 1}
	north := StructureSurface(geom, s)
	s.Azimuth = math.Pi / 2
	east := StructureSurface(geom, s)

	for j := 0; j < geom.NJ; j++ {
		for i := 0; i < geom.NI; i++ {
			assert.InDelta(t, north.At(j, i, 0), east.At(i, j, 0), 1e-9, "cell (%d,%d)", i, j)
		}
	}
}

func TestModelSurfaceIsSumOfStructures(t *testing.T) {
	geom := squareGrid(16)
	structures := []VariogramStructure{
		{Range: 4, RangeRatio: 1, Azimuth: 0, Contribution: 0.3},
		{Range: 10, RangeRatio: 0.4, Azimuth: 1, Contribution: 0.7},
	}

	model := ModelSurface(geom, structures)
	sum := StructureSurface(geom, structures[0]).Add(StructureSurface(geom, structures[1]))
	for i := range model.Data {
		assert.InDelta(t, sum.Data[i], model.Data[i], 1e-12)
	}
}
