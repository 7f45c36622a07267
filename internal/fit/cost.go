package fit

import (
	"fmt"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"

	"github.com/cwbudde/varmapfit/internal/fourier"
	"github.com/cwbudde/varmapfit/internal/grid"
	"github.com/cwbudde/varmapfit/internal/spectral"
)

// ObjectiveKind selects how a candidate model is compared with the input
type ObjectiveKind int

const (
	// SurfaceDistance compares the model surface with the experimental varmap
	SurfaceDistance ObjectiveKind = iota
	// FourierIntegral compares the FIM map of the model with the raw data
	FourierIntegral
)

func (k ObjectiveKind) String() string {
	switch k {
	case SurfaceDistance:
		return "surface-distance"
	case FourierIntegral:
		return "fourier-integral"
	}
	return fmt.Sprintf("ObjectiveKind(%d)", int(k))
}

// ParseObjectiveKind converts a name into an ObjectiveKind
func ParseObjectiveKind(name string) (ObjectiveKind, error) {
	switch name {
	case "surface-distance", "varfit", "":
		return SurfaceDistance, nil
	case "fourier-integral", "fim":
		return FourierIntegral, nil
	}
	return 0, fmt.Errorf("unknown objective %q (want surface-distance or fourier-integral)", name)
}

// originDistance is the lag distance below which a varmap cell gets zero weight
const originDistance = 0.0001

// Session owns the input of one fitting session and the quantities derived
// from it. The varmap, weight map and phase map are each computed at most once
// and shared read-only by every goroutine afterwards.
type Session struct {
	geom grid.Geometry
	raw  *spectral.Array
	kind ObjectiveKind

	mu      sync.Mutex
	varmap  atomic.Pointer[spectral.Array]
	weights atomic.Pointer[spectral.Array]
	phase   atomic.Pointer[spectral.Array]

	evaluations atomic.Int64
}

// NewSession validates the input and creates a session
func NewSession(geom grid.Geometry, raw *spectral.Array, kind ObjectiveKind) (*Session, error) {
	if err := geom.Validate(); err != nil {
		return nil, fmt.Errorf("invalid grid geometry: %w", err)
	}
	if raw.NI != geom.NI || raw.NJ != geom.NJ || raw.NK != geom.NK {
		return nil, fmt.Errorf("data dimensions %dx%dx%d do not match grid %dx%dx%d",
			raw.NI, raw.NJ, raw.NK, geom.NI, geom.NJ, geom.NK)
	}
	if kind != SurfaceDistance && kind != FourierIntegral {
		return nil, fmt.Errorf("unknown objective kind %v", kind)
	}
	return &Session{geom: geom, raw: raw, kind: kind}, nil
}

// Geometry returns the session's grid geometry
func (s *Session) Geometry() grid.Geometry { return s.geom }

// Data returns the raw input array
func (s *Session) Data() *spectral.Array { return s.raw }

// Kind returns the objective strategy of the session
func (s *Session) Kind() ObjectiveKind { return s.kind }

// Evaluations returns how many times the objective has been computed
func (s *Session) Evaluations() int64 { return s.evaluations.Load() }

// memoize returns the cached value, computing it under the session lock on
// the first miss.
func (s *Session) memoize(slot *atomic.Pointer[spectral.Array], what string, compute func() *spectral.Array) *spectral.Array {
	if v := slot.Load(); v != nil {
		return v
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if v := slot.Load(); v != nil {
		return v
	}
	slog.Info("Computing "+what, "cells", s.raw.Len())
	v := compute()
	slot.Store(v)
	return v
}

// Varmap returns the experimental varmap of the input
func (s *Session) Varmap() *spectral.Array {
	return s.memoize(&s.varmap, "varmap", func() *spectral.Array {
		return fourier.Varmap(s.raw)
	})
}

// Weights returns the inverse-distance weights of the varmap cells
func (s *Session) Weights() *spectral.Array {
	return s.memoize(&s.weights, "varmap weights", func() *spectral.Array {
		return distanceWeights(s.geom)
	})
}

// PhaseMap returns the phase of the input's spectrum
func (s *Session) PhaseMap() *spectral.Array {
	return s.memoize(&s.phase, "phase map", func() *spectral.Array {
		return fourier.PhaseMap(s.raw)
	})
}

func distanceWeights(geom grid.Geometry) *spectral.Array {
	w := spectral.New(geom.NI, geom.NJ, geom.NK)
	center := geom.Center()
	spacing := geom.MeanCellSize()

	for k := 0; k < geom.NK; k++ {
		for j := 0; j < geom.NJ; j++ {
			for i := 0; i < geom.NI; i++ {
				loc := geom.CellLocation(i, j, k)
				d := center.DistanceTo(loc.X, loc.Y, loc.Z)
				if d < originDistance {
					continue
				}
				w.Set(i, j, k, 1/d/(2*math.Pi*d/spacing))
			}
		}
	}
	return w
}

// Objective scores a parameter vector; lower is better.
// It panics if len(params) is not a multiple of ParamsPerStructure.
func (s *Session) Objective(params []float64) float64 {
	structures, err := Decode(params)
	if err != nil {
		panic(err)
	}
	s.evaluations.Add(1)

	model := ModelSurface(s.geom, structures)
	if s.kind == FourierIntegral {
		return s.fourierIntegral(model)
	}
	return s.surfaceDistance(model)
}

func (s *Session) surfaceDistance(model *spectral.Array) float64 {
	varmap := s.Varmap()
	weights := s.Weights()

	var sum float64
	for i, v := range model.Data {
		diff := v - varmap.Data[i]
		sum += weights.Data[i] * diff * diff
	}
	return sum
}

func (s *Session) fourierIntegral(model *spectral.Array) float64 {
	fim := fourier.Reconstruct(model, s.PhaseMap())

	var sum float64
	for i, v := range fim.Data {
		diff := v - s.raw.Data[i]
		sum += diff * diff
	}
	return sum
}

// ObjectiveFunction evaluates params against raw in a throwaway session
func ObjectiveFunction(geom grid.Geometry, raw *spectral.Array, params []float64, m int, kind ObjectiveKind) (float64, error) {
	if m < 1 {
		return 0, ErrInvalidStructureCount
	}
	if len(params) != m*ParamsPerStructure {
		return 0, fmt.Errorf("expected %d parameters for %d structures, got %d", m*ParamsPerStructure, m, len(params))
	}
	session, err := NewSession(geom, raw, kind)
	if err != nil {
		return 0, err
	}
	return session.Objective(params), nil
}
