package config

import (
	"math"

	"github.com/cwbudde/varmapfit/internal/fit"
	"github.com/cwbudde/varmapfit/internal/grid"
	"github.com/cwbudde/varmapfit/internal/opt"
)

// Geometry converts the grid section
func (s *Session) Geometry() grid.Geometry {
	g := s.Grid
	return grid.Geometry{
		NI: g.NI, NJ: g.NJ, NK: g.NK,
		CellSizeI: g.CellSizeI, CellSizeJ: g.CellSizeJ, CellSizeK: g.CellSizeK,
		OriginX: g.OriginX, OriginY: g.OriginY, OriginZ: g.OriginZ,
	}
}

// ObjectiveKind converts the objective name; Validate has already checked it
func (s *Session) ObjectiveKind() fit.ObjectiveKind {
	kind, _ := fit.ParseObjectiveKind(s.Objective)
	return kind
}

// Zero values in the YAML sections keep the library defaults.

func setInt(dst *int, v int) {
	if v != 0 {
		*dst = v
	}
}

func setFloat(dst *float64, v float64) {
	if v != 0 {
		*dst = v
	}
}

// AnnealedGradientDescent returns the annealing configuration
func (s *Session) AnnealedGradientDescent() opt.AnnealedGradientDescentConfig {
	cfg := opt.DefaultAnnealedGradientDescentConfig()
	if a := s.Annealing; a != nil {
		setFloat(&cfg.Annealing.InitialTemperature, a.InitialTemperature)
		setFloat(&cfg.Annealing.FinalTemperature, a.FinalTemperature)
		setInt(&cfg.Annealing.MaxSteps, a.MaxSteps)
		setFloat(&cfg.Annealing.SearchFactor, a.SearchFactor)
		setInt(&cfg.Descent.MaxIterations, a.MaxIterations)
		setFloat(&cfg.Descent.Epsilon, a.Epsilon)
		setFloat(&cfg.Descent.InitialStep, a.InitialStep)
		setInt(&cfg.Descent.MaxStepReductions, a.MaxStepReductions)
		setFloat(&cfg.Descent.ConvergenceCriterion, a.ConvergenceCriterion)
	}
	return cfg
}

// RestartedLineSearch returns the line search configuration
func (s *Session) RestartedLineSearch() opt.LineSearchConfig {
	cfg := opt.DefaultLineSearchConfig()
	if l := s.LineSearch; l != nil {
		setInt(&cfg.MaxSteps, l.MaxSteps)
		setFloat(&cfg.Epsilon, l.Epsilon)
		setInt(&cfg.StartingPoints, l.StartingPoints)
		setInt(&cfg.Restarts, l.Restarts)
	}
	return cfg
}

// ParticleSwarm returns the swarm configuration. Setting a patience enables
// early stopping.
func (s *Session) ParticleSwarm() opt.SwarmConfig {
	cfg := opt.DefaultSwarmConfig()
	if p := s.Swarm; p != nil {
		setInt(&cfg.MaxSteps, p.MaxSteps)
		setInt(&cfg.Particles, p.Particles)
		setFloat(&cfg.Inertia, p.Inertia)
		setFloat(&cfg.Cognitive, p.Cognitive)
		setFloat(&cfg.Social, p.Social)
		if p.Patience > 0 {
			cfg.Convergence = opt.DefaultConvergenceConfig()
			cfg.Convergence.Patience = p.Patience
			setFloat(&cfg.Convergence.Threshold, p.Threshold)
		}
	}
	return cfg
}

// GeneticAlgorithm returns the genetic algorithm configuration
func (s *Session) GeneticAlgorithm() opt.GeneticConfig {
	cfg := opt.DefaultGeneticConfig()
	if g := s.Genetic; g != nil {
		setInt(&cfg.Generations, g.Generations)
		setInt(&cfg.Population, g.Population)
		setInt(&cfg.Selection, g.Selection)
		setFloat(&cfg.CrossoverProbability, g.CrossoverProbability)
		setInt(&cfg.CrossoverPoint, g.CrossoverPoint)
		setFloat(&cfg.MutationRate, g.MutationRate)
	}
	return cfg
}

// MayflyOptimizer returns the Mayfly configuration
func (s *Session) MayflyOptimizer() opt.MayflyConfig {
	cfg := opt.DefaultMayflyConfig()
	if m := s.Mayfly; m != nil {
		setInt(&cfg.MaxIterations, m.MaxIterations)
		setInt(&cfg.Population, m.Population)
	}
	return cfg
}

// SimplexOptimizer returns the Nelder-Mead configuration
func (s *Session) SimplexOptimizer() opt.SimplexConfig {
	cfg := opt.DefaultSimplexConfig()
	if m := s.Simplex; m != nil {
		setInt(&cfg.MaxIterations, m.MaxIterations)
		setInt(&cfg.MaxEvaluations, m.MaxEvaluations)
	}
	return cfg
}

// SynthesisModel converts the synthesis structures, azimuths to radians
func (s *Session) SynthesisModel() []fit.VariogramStructure {
	if s.Synthesis == nil {
		return nil
	}
	out := make([]fit.VariogramStructure, len(s.Synthesis.Model))
	for i, st := range s.Synthesis.Model {
		out[i] = fit.VariogramStructure{
			Range:        st.Range,
			RangeRatio:   st.RangeRatio,
			Azimuth:      st.Azimuth * math.Pi / 180,
			Contribution: st.Contribution,
		}
	}
	return out
}
