package opt

import (
	"log/slog"
	"math"
	"math/rand"
	"sync"
)

// LineSearchConfig configures the line search with restarts
type LineSearchConfig struct {
	MaxSteps       int     // Moves per restart
	Epsilon        float64 // Central-difference step for bound shrinking
	StartingPoints int     // Points walked in parallel
	Restarts       int
	Threads        int // Workers, 0 means one per CPU
	Seed           int64

	Progress *Progress
}

// DefaultLineSearchConfig returns sensible defaults
func DefaultLineSearchConfig() LineSearchConfig {
	return LineSearchConfig{
		MaxSteps:       20,
		Epsilon:        1e-6,
		StartingPoints: 100,
		Restarts:       20,
		Seed:           1,
	}
}

// Validate checks the configuration
func (c LineSearchConfig) Validate() error {
	switch {
	case c.MaxSteps < 1:
		return &ConfigError{Field: "maxSteps", Reason: "must be at least 1"}
	case c.Epsilon <= 0:
		return &ConfigError{Field: "epsilon", Reason: "must be positive"}
	case c.StartingPoints < 1:
		return &ConfigError{Field: "startingPoints", Reason: "must be at least 1"}
	case c.Restarts < 1:
		return &ConfigError{Field: "restarts", Reason: "must be at least 1"}
	}
	return nil
}

// LineSearch moves a set of points along random lines, keeps improving
// moves and narrows the search box around the best point after every restart.
type LineSearch struct {
	config LineSearchConfig
}

// NewLineSearch creates the optimizer
func NewLineSearch(config LineSearchConfig) *LineSearch {
	return &LineSearch{config: config}
}

// stepScale is the step multiplier for move k (1-based)
func stepScale(k int) float64 {
	return 2 + 3/math.Pow(2, float64(k*k+1))
}

// bestTracker holds the best point found by concurrent walkers
type bestTracker struct {
	mu    sync.Mutex
	x     []float64
	f     float64
	index int
}

// offer replaces the best point when f is lower, or equal with a lower index,
// so the outcome does not depend on the order in which workers arrive.
func (b *bestTracker) offer(x []float64, f float64, index int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if f < b.f || (f == b.f && index < b.index) {
		b.x = cloneVec(x)
		b.f = f
		b.index = index
	}
}

// Run executes the restarted line search
func (o *LineSearch) Run(eval Objective, lower, upper []float64) (*Result, error) {
	if err := checkBounds(lower, upper); err != nil {
		return nil, err
	}
	cfg := o.config
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	dim := len(lower)
	rng := rand.New(rand.NewSource(cfg.Seed))
	tracker := NewTracker(DisabledConvergenceConfig(), cfg.Progress)

	lo, hi := cloneVec(lower), cloneVec(upper)
	delta := make([]float64, dim)
	for i := range delta {
		delta[i] = upper[i] - lower[i]
	}

	best := &bestTracker{f: math.Inf(1), index: math.MaxInt}

	for t := 0; t < cfg.Restarts; t++ {
		points := make([][]float64, cfg.StartingPoints)
		for i := range points {
			points[i] = uniformIn(rng, lo, hi)
		}

		// The whole random walk is drawn up front, step by point by parameter,
		// so results do not depend on how points are split across workers.
		walk := make([][][]float64, cfg.MaxSteps)
		for k := range walk {
			walk[k] = make([][]float64, cfg.StartingPoints)
			for i := range walk[k] {
				walk[k][i] = make([]float64, dim)
				for j := range walk[k][i] {
					walk[k][i][j] = rng.Float64()
				}
			}
		}

		costs := make([]float64, cfg.StartingPoints)
		parallelRanges(cfg.StartingPoints, cfg.Threads, func(i int) {
			costs[i] = eval(points[i])
		})
		for i := range points {
			best.offer(points[i], costs[i], i)
		}

		for k := 1; k <= cfg.MaxSteps; k++ {
			alpha := stepScale(k)
			parallelRanges(cfg.StartingPoints, cfg.Threads, func(i int) {
				candidate := make([]float64, dim)
				for j := range candidate {
					p := -1 + 2*walk[k-1][i][j]
					candidate[j] = points[i][j] + p*delta[j]*alpha
				}
				clampInto(candidate, lo, hi)

				if fc := eval(candidate); fc < costs[i] {
					points[i] = candidate
					costs[i] = fc
					best.offer(candidate, fc, i)
				}
			})
			tracker.Record(best.f)
		}

		grad := Gradient(eval, best.x, cfg.Epsilon, cfg.Threads)
		for j, d := range grad {
			if d > 0 {
				hi[j] = best.x[j]
			} else if d < 0 {
				lo[j] = best.x[j]
			}
		}

		slog.Debug("Line search restart complete", "restart", t, "best_cost", best.f)
	}

	slog.Info("Line search complete", "restarts", cfg.Restarts, "best_cost", best.f)

	return &Result{Best: best.x, Cost: best.f, Trace: tracker.History()}, nil
}
