package opt

import (
	"fmt"
	"math/rand"
	"sync/atomic"
)

// Objective is a function to minimize over a bounded parameter box
type Objective func([]float64) float64

// Result is the outcome of an optimization run
type Result struct {
	Best  []float64 // Best parameter vector found
	Cost  float64   // Objective value at Best
	Trace []float64 // One objective value per iteration, step or generation
}

// Optimizer defines an optimization algorithm interface
type Optimizer interface {
	// Run executes the optimization
	// eval: objective function to minimize
	// lower, upper: parameter bounds, both of the problem's dimension
	// Returns the best parameters with their cost and the objective trace.
	// Configuration errors are reported before eval is ever called.
	Run(eval Objective, lower, upper []float64) (*Result, error)
}

// Progress is a monotonically increasing counter that observers may poll
// while an optimizer runs. It never affects the result.
type Progress struct {
	n atomic.Int64
}

// Add advances the counter
func (p *Progress) Add(delta int64) {
	if p != nil {
		p.n.Add(delta)
	}
}

// Value returns the current count
func (p *Progress) Value() int64 {
	if p == nil {
		return 0
	}
	return p.n.Load()
}

// ConfigError reports an invalid optimizer configuration
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid configuration: %s %s", e.Field, e.Reason)
}

func checkBounds(lower, upper []float64) error {
	if len(lower) == 0 {
		return &ConfigError{Field: "bounds", Reason: "must not be empty"}
	}
	if len(lower) != len(upper) {
		return &ConfigError{Field: "bounds", Reason: fmt.Sprintf("lower has %d entries, upper has %d", len(lower), len(upper))}
	}
	for i := range lower {
		if lower[i] > upper[i] {
			return &ConfigError{Field: "bounds", Reason: fmt.Sprintf("lower[%d]=%g exceeds upper[%d]=%g", i, lower[i], i, upper[i])}
		}
	}
	return nil
}

// uniformIn draws a vector uniformly inside the box
func uniformIn(rng *rand.Rand, lower, upper []float64) []float64 {
	x := make([]float64, len(lower))
	for i := range x {
		x[i] = lower[i] + rng.Float64()*(upper[i]-lower[i])
	}
	return x
}

func clampInto(x, lower, upper []float64) {
	for i := range x {
		if x[i] < lower[i] {
			x[i] = lower[i]
		}
		if x[i] > upper[i] {
			x[i] = upper[i]
		}
	}
}

func inBounds(x, lower, upper []float64) bool {
	for i := range x {
		if x[i] < lower[i] || x[i] > upper[i] {
			return false
		}
	}
	return true
}

func cloneVec(x []float64) []float64 {
	return append([]float64(nil), x...)
}
