package opt

import (
	"log/slog"
	"math"
	"math/rand"
)

// SwarmConfig configures particle swarm optimization
type SwarmConfig struct {
	MaxSteps  int
	Particles int
	Inertia   float64 // w
	Cognitive float64 // c1, pull toward the particle's own best
	Social    float64 // c2, pull toward the swarm's best
	Threads   int     // Workers, 0 means one per CPU
	Seed      int64

	Convergence ConvergenceConfig
	Progress    *Progress
}

// DefaultSwarmConfig returns sensible defaults
func DefaultSwarmConfig() SwarmConfig {
	return SwarmConfig{
		MaxSteps:    100,
		Particles:   60,
		Inertia:     0.7,
		Cognitive:   1.5,
		Social:      1.5,
		Seed:        1,
		Convergence: DisabledConvergenceConfig(),
	}
}

// Validate checks the configuration
func (c SwarmConfig) Validate() error {
	switch {
	case c.MaxSteps < 1:
		return &ConfigError{Field: "maxSteps", Reason: "must be at least 1"}
	case c.Particles < 1:
		return &ConfigError{Field: "particles", Reason: "must be at least 1"}
	case c.Inertia < 0:
		return &ConfigError{Field: "inertia", Reason: "must not be negative"}
	case c.Cognitive < 0 || c.Social < 0:
		return &ConfigError{Field: "acceleration", Reason: "constants must not be negative"}
	}
	return c.Convergence.Validate()
}

// Swarm implements Optimizer with a global-best particle swarm
type Swarm struct {
	config SwarmConfig
}

// NewSwarm creates the optimizer
func NewSwarm(config SwarmConfig) *Swarm {
	return &Swarm{config: config}
}

// bounce reflects x back into [lo,hi] by the amount it overshoots
func bounce(x, lo, hi float64) float64 {
	if x >= lo && x <= hi {
		return x
	}
	r := hi - lo
	if r <= 0 || math.IsNaN(x) || math.IsInf(x, 0) {
		return math.Max(lo, math.Min(hi, x))
	}
	period := 2 * r
	d := math.Mod(x-lo, period)
	if d < 0 {
		d += period
	}
	if d > r {
		d = period - d
	}
	return lo + d
}

// Run executes the swarm
func (o *Swarm) Run(eval Objective, lower, upper []float64) (*Result, error) {
	if err := checkBounds(lower, upper); err != nil {
		return nil, err
	}
	cfg := o.config
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	dim := len(lower)
	n := cfg.Particles
	rng := rand.New(rand.NewSource(cfg.Seed))
	tracker := NewTracker(cfg.Convergence, cfg.Progress)

	positions := make([][]float64, n)
	velocities := make([][]float64, n)
	for i := 0; i < n; i++ {
		positions[i] = uniformIn(rng, lower, upper)
		velocities[i] = make([]float64, dim)
	}

	costs := make([]float64, n)
	parallelRanges(n, cfg.Threads, func(i int) {
		costs[i] = eval(positions[i])
	})

	pbest := make([][]float64, n)
	fPbest := make([]float64, n)
	gbest := &bestTracker{f: math.Inf(1), index: math.MaxInt}
	for i := 0; i < n; i++ {
		pbest[i] = cloneVec(positions[i])
		fPbest[i] = costs[i]
		gbest.offer(positions[i], costs[i], i)
	}

	r1 := make([]float64, n)
	r2 := make([]float64, n)
	for step := 0; step < cfg.MaxSteps; step++ {
		// One (r1,r2) pair per particle, shared by all of its dimensions
		for i := 0; i < n; i++ {
			r1[i] = rng.Float64()
			r2[i] = rng.Float64()
		}
		g := cloneVec(gbest.x)

		parallelRanges(n, cfg.Threads, func(i int) {
			p, v := positions[i], velocities[i]
			candidate := make([]float64, dim)
			velocity := make([]float64, dim)
			for j := 0; j < dim; j++ {
				velocity[j] = cfg.Inertia*v[j] +
					cfg.Cognitive*r1[i]*(pbest[i][j]-p[j]) +
					cfg.Social*r2[i]*(g[j]-p[j])
				candidate[j] = bounce(p[j]+velocity[j], lower[j], upper[j])
			}

			fc := eval(candidate)
			if fc < costs[i] {
				positions[i] = candidate
				velocities[i] = velocity
				costs[i] = fc
			}
			if fc < fPbest[i] {
				pbest[i] = cloneVec(candidate)
				fPbest[i] = fc
			}
			gbest.offer(candidate, fc, i)
		})

		if tracker.Record(gbest.f) {
			break
		}
	}

	slog.Info("Particle swarm complete", "steps", tracker.Len(), "best_cost", gbest.f)

	return &Result{Best: gbest.x, Cost: gbest.f, Trace: tracker.History()}, nil
}
