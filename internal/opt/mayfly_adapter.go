package opt

import (
	"fmt"
	"log/slog"
	"math/rand"
	"sync"

	"github.com/cwbudde/mayfly"
)

// MayflyConfig configures the Mayfly metaheuristic
type MayflyConfig struct {
	MaxIterations int
	Population    int // mayfly v0.1.0 requires at least 20
	Seed          int64

	Progress *Progress
}

// DefaultMayflyConfig returns sensible defaults
func DefaultMayflyConfig() MayflyConfig {
	return MayflyConfig{
		MaxIterations: 200,
		Population:    30,
		Seed:          1,
	}
}

// Validate checks the configuration
func (c MayflyConfig) Validate() error {
	if c.MaxIterations < 1 {
		return &ConfigError{Field: "maxIterations", Reason: "must be at least 1"}
	}
	if c.Population < 20 {
		return &ConfigError{Field: "population", Reason: "must be at least 20"}
	}
	return nil
}

// MayflyAdapter wraps the external Mayfly library to conform to our Optimizer interface
type MayflyAdapter struct {
	config MayflyConfig
}

// NewMayfly creates a new Mayfly optimizer adapter
func NewMayfly(config MayflyConfig) *MayflyAdapter {
	return &MayflyAdapter{config: config}
}

// Run executes the Mayfly optimization using the external library.
// The library takes one scalar bound for every dimension, so the search runs
// in the unit cube and candidates are mapped onto [lower,upper] before eval.
func (m *MayflyAdapter) Run(eval Objective, lower, upper []float64) (*Result, error) {
	if err := checkBounds(lower, upper); err != nil {
		return nil, err
	}
	if err := m.config.Validate(); err != nil {
		return nil, err
	}

	dim := len(lower)
	toBox := func(u []float64) []float64 {
		x := make([]float64, dim)
		for i := range x {
			t := u[i]
			if t < 0 {
				t = 0
			} else if t > 1 {
				t = 1
			}
			x[i] = lower[i] + t*(upper[i]-lower[i])
		}
		return x
	}

	// One trace entry per population-sized batch of evaluations
	tracker := NewTracker(DisabledConvergenceConfig(), m.config.Progress)
	var mu sync.Mutex
	bestSeen := 0.0
	calls := 0

	config := mayfly.NewDefaultConfig()
	config.ObjectiveFunc = func(u []float64) float64 {
		f := eval(toBox(u))
		mu.Lock()
		defer mu.Unlock()
		if calls == 0 || f < bestSeen {
			bestSeen = f
		}
		calls++
		if calls%m.config.Population == 0 {
			tracker.Record(bestSeen)
		}
		return f
	}
	config.ProblemSize = dim
	config.MaxIterations = m.config.MaxIterations
	config.NPop = m.config.Population
	config.LowerBound = 0
	config.UpperBound = 1
	config.Rand = rand.New(rand.NewSource(m.config.Seed))

	result, err := mayfly.Optimize(config)
	if err != nil {
		return nil, fmt.Errorf("mayfly optimization failed: %w", err)
	}

	best := toBox(result.GlobalBest.Position)
	cost := eval(best)

	slog.Info("Mayfly complete", "evaluations", calls, "best_cost", cost)

	return &Result{
		Best:  best,
		Cost:  cost,
		Trace: tracker.History(),
	}, nil
}
