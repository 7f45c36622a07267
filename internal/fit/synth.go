package fit

import (
	"log/slog"
	"math/rand"

	"github.com/cwbudde/varmapfit/internal/fourier"
	"github.com/cwbudde/varmapfit/internal/grid"
	"github.com/cwbudde/varmapfit/internal/spectral"
)

// Synthesize generates a field on geom whose experimental map follows the
// covariance of structures. The amplitude spectrum comes from the model and
// the phase from a white noise field drawn with seed, which keeps the
// spectrum Hermitian so the reconstruction is real.
func Synthesize(geom grid.Geometry, structures []VariogramStructure, mean float64, seed int64) (*spectral.Array, error) {
	if len(structures) == 0 {
		return nil, ErrInvalidStructureCount
	}
	if err := geom.Validate(); err != nil {
		return nil, err
	}

	rng := rand.New(rand.NewSource(seed))
	noise := spectral.New(geom.NI, geom.NJ, geom.NK)
	for i := range noise.Data {
		noise.Data[i] = rng.NormFloat64()
	}

	slog.Debug("Synthesizing field", "structures", len(structures), "cells", geom.Cells(), "seed", seed)

	model := ModelSurface(geom, structures)
	field := fourier.Reconstruct(model, fourier.PhaseMap(noise))
	field.AddInPlace(spectral.NewFilled(geom.NI, geom.NJ, geom.NK, mean))
	return field, nil
}
