package fit

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/cwbudde/varmapfit/internal/grid"
	"github.com/cwbudde/varmapfit/internal/opt"
	"github.com/cwbudde/varmapfit/internal/spectral"
)

// Options are the settings shared by every fitting entry point
type Options struct {
	Threads  int // Worker count, 0 means one per CPU
	Kind     ObjectiveKind
	Progress *opt.Progress
}

// Prepare opens a session on raw and builds the parameter domain for m structures
func Prepare(geom grid.Geometry, raw *spectral.Array, m int, kind ObjectiveKind) (*Session, *Init, error) {
	if m < 1 {
		return nil, nil, ErrInvalidStructureCount
	}
	session, err := NewSession(geom, raw, kind)
	if err != nil {
		return nil, nil, err
	}
	init, err := Initialize(geom, session.Varmap(), m)
	if err != nil {
		return nil, nil, err
	}
	return session, init, nil
}

// startIn returns a copy of start moved into the domain of init; nil selects
// the centre of the domain. A start of the wrong length is left for the
// optimizer to reject.
func startIn(init *Init, start []float64) []float64 {
	if start == nil {
		return init.Params
	}
	if len(start) != len(init.Lower) {
		return start
	}
	out := make([]float64, len(start))
	copy(out, start)
	ClampVector(out, init.Lower, init.Upper)
	return out
}

// Optimize runs optimizer over the domain of init and decodes the winner
func Optimize(session *Session, init *Init, optimizer opt.Optimizer, name string) (*Result, error) {
	m := len(init.Structures)
	slog.Info("Starting variogram fit",
		"strategy", name,
		"structures", m,
		"objective", session.Kind().String(),
		"parameters", len(init.Params),
	)

	start := time.Now()
	initialCost := session.Objective(init.Params)

	res, err := optimizer.Run(session.Objective, init.Lower, init.Upper)
	if err != nil {
		return nil, fmt.Errorf("%s failed: %w", name, err)
	}

	best := make([]float64, len(res.Best))
	copy(best, res.Best)
	ClampVector(best, init.Lower, init.Upper)

	structures, err := Decode(best)
	if err != nil {
		return nil, err
	}

	slog.Info("Variogram fit complete",
		"strategy", name,
		"initial_cost", initialCost,
		"best_cost", res.Cost,
		"evaluations", session.Evaluations(),
		"elapsed", time.Since(start).String(),
	)

	return &Result{
		Structures:  structures,
		Params:      best,
		Cost:        res.Cost,
		InitialCost: initialCost,
		Trace:       res.Trace,
		Evaluations: session.Evaluations(),
		Session:     session,
	}, nil
}

// ProcessAnnealedGradientDescent fits m structures by simulated annealing
// followed by gradient descent, starting from the centre of the domain.
func ProcessAnnealedGradientDescent(geom grid.Geometry, raw *spectral.Array, m int, seed int64, config opt.AnnealedGradientDescentConfig, o Options) (*Result, error) {
	session, init, err := Prepare(geom, raw, m, o.Kind)
	if err != nil {
		return nil, err
	}
	config.Seed = seed
	config.Threads = o.Threads
	config.Progress = o.Progress
	config.Start = startIn(init, config.Start)
	return Optimize(session, init, opt.NewAnnealedGradientDescent(config), "annealed gradient descent")
}

// ProcessRestartedLineSearch fits m structures with the restarted line search
func ProcessRestartedLineSearch(geom grid.Geometry, raw *spectral.Array, m int, seed int64, config opt.LineSearchConfig, o Options) (*Result, error) {
	session, init, err := Prepare(geom, raw, m, o.Kind)
	if err != nil {
		return nil, err
	}
	config.Seed = seed
	config.Threads = o.Threads
	config.Progress = o.Progress
	return Optimize(session, init, opt.NewLineSearch(config), "restarted line search")
}

// ProcessParticleSwarm fits m structures with particle swarm optimization
func ProcessParticleSwarm(geom grid.Geometry, raw *spectral.Array, m int, seed int64, config opt.SwarmConfig, o Options) (*Result, error) {
	session, init, err := Prepare(geom, raw, m, o.Kind)
	if err != nil {
		return nil, err
	}
	config.Seed = seed
	config.Threads = o.Threads
	config.Progress = o.Progress
	return Optimize(session, init, opt.NewSwarm(config), "particle swarm")
}

// ProcessGeneticAlgorithm fits m structures with the genetic algorithm.
// The configuration is checked before the input is touched.
func ProcessGeneticAlgorithm(geom grid.Geometry, raw *spectral.Array, m int, seed int64, config opt.GeneticConfig, o Options) (*Result, error) {
	if m < 1 {
		return nil, ErrInvalidStructureCount
	}
	if err := config.Validate(m * ParamsPerStructure); err != nil {
		return nil, err
	}
	session, init, err := Prepare(geom, raw, m, o.Kind)
	if err != nil {
		return nil, err
	}
	config.Seed = seed
	config.Threads = o.Threads
	config.Progress = o.Progress
	return Optimize(session, init, opt.NewGenetic(config), "genetic algorithm")
}

// ProcessMayfly fits m structures with the Mayfly metaheuristic
func ProcessMayfly(geom grid.Geometry, raw *spectral.Array, m int, seed int64, config opt.MayflyConfig, o Options) (*Result, error) {
	session, init, err := Prepare(geom, raw, m, o.Kind)
	if err != nil {
		return nil, err
	}
	config.Seed = seed
	config.Progress = o.Progress
	return Optimize(session, init, opt.NewMayfly(config), "mayfly")
}

// ProcessSimplex polishes the centre of the domain (or config.Start) with Nelder-Mead
func ProcessSimplex(geom grid.Geometry, raw *spectral.Array, m int, config opt.SimplexConfig, o Options) (*Result, error) {
	session, init, err := Prepare(geom, raw, m, o.Kind)
	if err != nil {
		return nil, err
	}
	config.Start = startIn(init, config.Start)
	config.Progress = o.Progress
	return Optimize(session, init, opt.NewSimplex(config), "simplex")
}

// EvaluateModel scores already fitted structures against raw
func EvaluateModel(geom grid.Geometry, raw *spectral.Array, structures []VariogramStructure, kind ObjectiveKind) (float64, error) {
	if len(structures) == 0 {
		return 0, ErrInvalidStructureCount
	}
	return ObjectiveFunction(geom, raw, Flatten(structures), len(structures), kind)
}
