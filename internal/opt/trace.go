package opt

import (
	"log/slog"
	"math"
)

// ConvergenceConfig defines parameters for detecting optimization stagnation
type ConvergenceConfig struct {
	// Enabled controls whether early stopping is active
	Enabled bool

	// Patience is the number of iterations with no significant improvement
	// before stopping
	Patience int

	// Threshold is the minimum relative improvement required to count as progress
	// Relative improvement = (oldCost - newCost) / oldCost
	Threshold float64
}

// DisabledConvergenceConfig returns a config that never stops early
func DisabledConvergenceConfig() ConvergenceConfig {
	return ConvergenceConfig{Enabled: false}
}

// DefaultConvergenceConfig returns sensible defaults when early stopping is wanted
func DefaultConvergenceConfig() ConvergenceConfig {
	return ConvergenceConfig{
		Enabled:   true,
		Patience:  20,
		Threshold: 1e-4,
	}
}

// Validate checks the config when it is enabled
func (c ConvergenceConfig) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.Patience < 1 {
		return &ConfigError{Field: "convergence.patience", Reason: "must be at least 1"}
	}
	if c.Threshold < 0 {
		return &ConfigError{Field: "convergence.threshold", Reason: "must not be negative"}
	}
	return nil
}

// Tracker records the objective trace of a run and detects stagnation
type Tracker struct {
	config          ConvergenceConfig
	history         []float64
	bestCost        float64
	lastSignificant float64
	staleCount      int
	progress        *Progress
}

// NewTracker creates a tracker; progress may be nil
func NewTracker(config ConvergenceConfig, progress *Progress) *Tracker {
	return &Tracker{
		config:          config,
		bestCost:        math.Inf(1),
		lastSignificant: math.Inf(1),
		progress:        progress,
	}
}

// Record appends a trace value, advances progress and returns true once the
// run has stagnated for longer than the configured patience.
func (t *Tracker) Record(cost float64) bool {
	t.history = append(t.history, cost)
	t.progress.Add(1)

	if cost < t.bestCost {
		t.bestCost = cost
	}

	if !t.config.Enabled {
		return false
	}

	if len(t.history) == 1 {
		t.lastSignificant = cost
		return false
	}

	relativeImprovement := (t.lastSignificant - cost) / math.Abs(t.lastSignificant)
	if t.lastSignificant == 0 {
		relativeImprovement = 0
	}

	if relativeImprovement >= t.config.Threshold {
		t.lastSignificant = cost
		t.staleCount = 0
		return false
	}

	t.staleCount++
	if t.staleCount >= t.config.Patience {
		slog.Info("Convergence detected - stopping early",
			"stale_count", t.staleCount,
			"patience", t.config.Patience,
			"best_cost", t.bestCost,
		)
		return true
	}
	return false
}

// BestCost returns the lowest value recorded so far
func (t *Tracker) BestCost() float64 {
	return t.bestCost
}

// History returns a copy of the recorded trace
func (t *Tracker) History() []float64 {
	return append([]float64{}, t.history...)
}

// Len returns the number of recorded values
func (t *Tracker) Len() int {
	return len(t.history)
}
