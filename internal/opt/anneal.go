package opt

import (
	"log/slog"
	"math"
	"math/rand"
)

// AnnealingConfig controls the global search phase of AnnealedGradientDescent
type AnnealingConfig struct {
	InitialTemperature float64 // T0
	FinalTemperature   float64 // Temperature at which worse moves are never accepted
	MaxSteps           int     // Step budget, always consumed in full
	SearchFactor       float64 // Neighbours are drawn within ±SearchFactor·(max-min)
}

// DescentConfig controls the local refinement phase
type DescentConfig struct {
	MaxIterations        int
	Epsilon              float64 // Central-difference step
	InitialStep          float64 // Step size before any halving
	MaxStepReductions    int     // How many times the step may be halved
	ConvergenceCriterion float64 // Stop when F(k)/F(k+1) < 1+criterion
}

// AnnealedGradientDescentConfig combines simulated annealing with a
// backtracking gradient descent started from the lowest-energy state found.
type AnnealedGradientDescentConfig struct {
	Annealing AnnealingConfig
	Descent   DescentConfig
	Threads   int   // Gradient workers, 0 means one per CPU
	Seed      int64 // Seed for the annealing random walk
	Start     []float64

	Progress *Progress
	// OnDescentStep is called after every descent iteration with the current
	// point and its cost. The slice must not be retained.
	OnDescentStep func(iteration int, x []float64, cost float64)
}

// DefaultAnnealedGradientDescentConfig returns sensible defaults
func DefaultAnnealedGradientDescentConfig() AnnealedGradientDescentConfig {
	return AnnealedGradientDescentConfig{
		Annealing: AnnealingConfig{
			InitialTemperature: 1000,
			FinalTemperature:   0.01,
			MaxSteps:           1000,
			SearchFactor:       0.2,
		},
		Descent: DescentConfig{
			MaxIterations:        100,
			Epsilon:              1e-6,
			InitialStep:          1,
			MaxStepReductions:    20,
			ConvergenceCriterion: 1e-5,
		},
		Seed: 1,
	}
}

// Validate checks the configuration
func (c AnnealedGradientDescentConfig) Validate() error {
	a, d := c.Annealing, c.Descent
	switch {
	case a.MaxSteps < 0:
		return &ConfigError{Field: "annealing.maxSteps", Reason: "must not be negative"}
	case a.MaxSteps > 0 && a.InitialTemperature <= 1:
		return &ConfigError{Field: "annealing.initialTemperature", Reason: "must be greater than 1"}
	case a.MaxSteps > 0 && a.FinalTemperature >= a.InitialTemperature:
		return &ConfigError{Field: "annealing.finalTemperature", Reason: "must be below the initial temperature"}
	case a.MaxSteps > 0 && a.SearchFactor <= 0:
		return &ConfigError{Field: "annealing.searchFactor", Reason: "must be positive"}
	case d.MaxIterations < 0:
		return &ConfigError{Field: "descent.maxIterations", Reason: "must not be negative"}
	case d.Epsilon <= 0:
		return &ConfigError{Field: "descent.epsilon", Reason: "must be positive"}
	case d.InitialStep <= 0:
		return &ConfigError{Field: "descent.initialStep", Reason: "must be positive"}
	case d.MaxStepReductions < 1:
		return &ConfigError{Field: "descent.maxStepReductions", Reason: "must be at least 1"}
	case d.ConvergenceCriterion < 0:
		return &ConfigError{Field: "descent.convergenceCriterion", Reason: "must not be negative"}
	}
	return nil
}

// AnnealedGradientDescent implements Optimizer
type AnnealedGradientDescent struct {
	config AnnealedGradientDescentConfig
}

// NewAnnealedGradientDescent creates the optimizer
func NewAnnealedGradientDescent(config AnnealedGradientDescentConfig) *AnnealedGradientDescent {
	return &AnnealedGradientDescent{config: config}
}

// temperature follows T(k) = T0·exp(-k/1000·1.5·log10(T0))
func (a AnnealingConfig) temperature(k int) float64 {
	t0 := a.InitialTemperature
	return t0 * math.Exp(-float64(k)/1000*1.5*math.Log10(t0))
}

// acceptance is the probability of moving to a worse state at temperature t
func (a AnnealingConfig) acceptance(t float64) float64 {
	return (t - a.FinalTemperature) / (a.InitialTemperature - a.FinalTemperature)
}

// Run executes annealing followed by gradient descent
func (o *AnnealedGradientDescent) Run(eval Objective, lower, upper []float64) (*Result, error) {
	if err := checkBounds(lower, upper); err != nil {
		return nil, err
	}
	if err := o.config.Validate(); err != nil {
		return nil, err
	}
	if o.config.Start != nil && len(o.config.Start) != len(lower) {
		return nil, &ConfigError{Field: "start", Reason: "must match the problem dimension"}
	}

	x := make([]float64, len(lower))
	if o.config.Start != nil {
		copy(x, o.config.Start)
	} else {
		for i := range x {
			x[i] = (lower[i] + upper[i]) / 2
		}
	}
	clampInto(x, lower, upper)

	tracker := NewTracker(DisabledConvergenceConfig(), o.config.Progress)

	x, fx := o.anneal(eval, x, lower, upper, tracker)
	x, fx = o.descend(eval, x, fx, lower, upper, tracker)

	return &Result{Best: x, Cost: fx, Trace: tracker.History()}, nil
}

func (o *AnnealedGradientDescent) anneal(eval Objective, start, lower, upper []float64, tracker *Tracker) ([]float64, float64) {
	cfg := o.config.Annealing
	rng := rand.New(rand.NewSource(o.config.Seed))

	current := cloneVec(start)
	fCurrent := eval(current)
	lowest := cloneVec(current)
	fLowest := fCurrent

	if cfg.MaxSteps == 0 {
		return lowest, fLowest
	}

	delta := make([]float64, len(lower))
	for i := range delta {
		delta[i] = upper[i] - lower[i]
	}

	neighbor := make([]float64, len(current))
	for k := 0; k < cfg.MaxSteps; k++ {
		t := cfg.temperature(k)
		// The whole step budget is consumed even after t drops below the
		// final temperature; the lowest state found is the phase's output.

		for i := range neighbor {
			lo := current[i] - cfg.SearchFactor*delta[i]
			hi := current[i] + cfg.SearchFactor*delta[i]
			for {
				v := lo + rng.Float64()*(hi-lo)
				if v >= lower[i] && v <= upper[i] {
					neighbor[i] = v
					break
				}
			}
		}

		fNew := eval(neighbor)
		tracker.Record(fCurrent)

		if fNew < fLowest {
			fLowest = fNew
			copy(lowest, neighbor)
		}

		accept := fNew < fCurrent
		if !accept {
			accept = rng.Float64() < cfg.acceptance(t)
		}
		if accept {
			copy(current, neighbor)
			fCurrent = fNew
		}
	}

	slog.Info("Annealing completed by number of steps",
		"steps", cfg.MaxSteps,
		"final_temperature", cfg.temperature(cfg.MaxSteps-1),
		"lowest_energy", fLowest,
	)
	return lowest, fLowest
}

func (o *AnnealedGradientDescent) descend(eval Objective, x []float64, fx float64, lower, upper []float64, tracker *Tracker) ([]float64, float64) {
	cfg := o.config.Descent
	candidate := make([]float64, len(x))

	for it := 0; it < cfg.MaxIterations; it++ {
		grad := Gradient(eval, x, cfg.Epsilon, o.config.Threads)

		alpha := cfg.InitialStep
		found := false
		nextF := fx
		for r := 0; r < cfg.MaxStepReductions; r++ {
			for i := range candidate {
				candidate[i] = x[i] - alpha*grad[i]
			}
			clampInto(candidate, lower, upper)
			if fc := eval(candidate); fc < fx {
				copy(x, candidate)
				nextF = fc
				found = true
				break
			}
			alpha /= 2
		}

		tracker.Record(fx)
		if o.config.OnDescentStep != nil {
			o.config.OnDescentStep(it, x, nextF)
		}

		if !found {
			slog.Warn("Reached maximum step reductions without descent",
				"iteration", it,
				"cost", fx,
				"reductions", cfg.MaxStepReductions,
			)
			break
		}

		ratio := fx / nextF
		fx = nextF
		if ratio < 1+cfg.ConvergenceCriterion {
			slog.Info("Gradient descent converged", "iteration", it, "cost", fx, "ratio", ratio)
			break
		}
		slog.Debug("Gradient descent step", "iteration", it, "cost", fx, "ratio", ratio)
	}

	return x, fx
}
