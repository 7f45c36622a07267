package opt

import (
	"fmt"
	"log/slog"

	"gonum.org/v1/gonum/optimize"
)

// SimplexConfig configures the Nelder-Mead polisher
type SimplexConfig struct {
	MaxIterations  int
	MaxEvaluations int
	Start          []float64 // Defaults to the centre of the box

	Progress *Progress
}

// DefaultSimplexConfig returns sensible defaults
func DefaultSimplexConfig() SimplexConfig {
	return SimplexConfig{
		MaxIterations:  500,
		MaxEvaluations: 5000,
	}
}

// Validate checks the configuration
func (c SimplexConfig) Validate() error {
	if c.MaxIterations < 1 {
		return &ConfigError{Field: "maxIterations", Reason: "must be at least 1"}
	}
	if c.MaxEvaluations < 1 {
		return &ConfigError{Field: "maxEvaluations", Reason: "must be at least 1"}
	}
	return nil
}

// Simplex runs gonum's Nelder-Mead on the objective, clamping every trial
// point into the box.
type Simplex struct {
	config SimplexConfig
}

// NewSimplex creates the optimizer
func NewSimplex(config SimplexConfig) *Simplex {
	return &Simplex{config: config}
}

// traceRecorder feeds gonum's major iterations into a Tracker
type traceRecorder struct {
	tracker *Tracker
}

func (r traceRecorder) Init() error { return nil }

func (r traceRecorder) Record(loc *optimize.Location, op optimize.Operation, _ *optimize.Stats) error {
	if op == optimize.MajorIteration {
		r.tracker.Record(loc.F)
	}
	return nil
}

// Run executes the simplex search
func (o *Simplex) Run(eval Objective, lower, upper []float64) (*Result, error) {
	if err := checkBounds(lower, upper); err != nil {
		return nil, err
	}
	cfg := o.config
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Start != nil && len(cfg.Start) != len(lower) {
		return nil, &ConfigError{Field: "start", Reason: "must match the problem dimension"}
	}

	x0 := make([]float64, len(lower))
	if cfg.Start != nil {
		copy(x0, cfg.Start)
	} else {
		for i := range x0 {
			x0[i] = (lower[i] + upper[i]) / 2
		}
	}
	clampInto(x0, lower, upper)

	tracker := NewTracker(DisabledConvergenceConfig(), cfg.Progress)
	trial := make([]float64, len(lower))
	problem := optimize.Problem{
		Func: func(x []float64) float64 {
			copy(trial, x)
			clampInto(trial, lower, upper)
			return eval(trial)
		},
	}
	settings := &optimize.Settings{
		MajorIterations: cfg.MaxIterations,
		FuncEvaluations: cfg.MaxEvaluations,
		Recorder:        traceRecorder{tracker},
	}

	result, err := optimize.Minimize(problem, x0, settings, &optimize.NelderMead{})
	if result == nil {
		return nil, fmt.Errorf("simplex optimization failed: %w", err)
	}
	if err != nil {
		slog.Warn("Simplex stopped early", "error", err, "status", result.Status.String())
	}

	best := cloneVec(result.X)
	clampInto(best, lower, upper)
	cost := eval(best)

	slog.Info("Simplex complete", "evaluations", result.Stats.FuncEvaluations, "best_cost", cost)

	return &Result{Best: best, Cost: cost, Trace: tracker.History()}, nil
}
