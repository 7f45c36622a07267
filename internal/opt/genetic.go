package opt

import (
	"fmt"
	"log/slog"
	"math/rand"
	"sort"
)

// GeneticConfig configures the genetic algorithm
type GeneticConfig struct {
	Generations          int
	Population           int     // Must be even
	Selection            int     // Tournament winners per generation, even and below Population
	CrossoverProbability float64 // Chance that a pair of parents produces children
	CrossoverPoint       int     // Genes before this index come from the first parent
	MutationRate         float64 // Expected mutated genes per individual
	Threads              int     // Workers, 0 means one per CPU
	Seed                 int64

	Progress *Progress
}

// DefaultGeneticConfig returns sensible defaults
func DefaultGeneticConfig() GeneticConfig {
	return GeneticConfig{
		Generations:          100,
		Population:           100,
		Selection:            50,
		CrossoverProbability: 0.7,
		CrossoverPoint:       2,
		MutationRate:         1,
		Seed:                 1,
	}
}

// Validate checks the configuration against a problem of dim genes
func (c GeneticConfig) Validate(dim int) error {
	switch {
	case c.Generations < 1:
		return &ConfigError{Field: "generations", Reason: "must be at least 1"}
	case c.Selection >= c.Population:
		return &ConfigError{Field: "selection", Reason: fmt.Sprintf("(%d) must be less than population (%d)", c.Selection, c.Population)}
	case c.Population%2 != 0 || c.Selection%2 != 0:
		return &ConfigError{Field: "population/selection", Reason: "sizes must be even"}
	case c.Selection < 2:
		return &ConfigError{Field: "selection", Reason: "must be at least 2"}
	case c.CrossoverPoint < 0 || c.CrossoverPoint >= dim:
		return &ConfigError{Field: "crossoverPoint", Reason: fmt.Sprintf("(%d) must be less than the number of parameters (%d)", c.CrossoverPoint, dim)}
	case c.CrossoverProbability < 0 || c.CrossoverProbability > 1:
		return &ConfigError{Field: "crossoverProbability", Reason: "must be within [0,1]"}
	case c.MutationRate < 0:
		return &ConfigError{Field: "mutationRate", Reason: "must not be negative"}
	}
	return nil
}

// Genetic implements Optimizer with a generational genetic algorithm
type Genetic struct {
	config GeneticConfig
}

// NewGenetic creates the optimizer
func NewGenetic(config GeneticConfig) *Genetic {
	return &Genetic{config: config}
}

type individual struct {
	genes []float64
	cost  float64
	stale bool // cost must be recomputed
}

func (ind individual) clone() individual {
	return individual{genes: cloneVec(ind.genes), cost: ind.cost, stale: ind.stale}
}

// crossover swaps the tails of two parents at point
func crossover(a, b individual, point int) (individual, individual) {
	c1 := individual{genes: make([]float64, len(a.genes)), stale: true}
	c2 := individual{genes: make([]float64, len(a.genes)), stale: true}
	for i := range a.genes {
		if i < point {
			c1.genes[i], c2.genes[i] = a.genes[i], b.genes[i]
		} else {
			c1.genes[i], c2.genes[i] = b.genes[i], a.genes[i]
		}
	}
	return c1, c2
}

// mutate redraws each gene with probability rate/len(genes)
func mutate(rng *rand.Rand, ind *individual, rate float64, lower, upper []float64) {
	p := rate / float64(len(ind.genes))
	for g := range ind.genes {
		if rng.Float64() < p {
			ind.genes[g] = lower[g] + rng.Float64()*(upper[g]-lower[g])
			ind.stale = true
		}
	}
}

func (o *Genetic) evaluate(eval Objective, population []individual) {
	var stale []int
	for i := range population {
		if population[i].stale {
			stale = append(stale, i)
		}
	}
	parallelRanges(len(stale), o.config.Threads, func(s int) {
		ind := &population[stale[s]]
		ind.cost = eval(ind.genes)
		ind.stale = false
	})
	sort.SliceStable(population, func(a, b int) bool {
		return population[a].cost < population[b].cost
	})
}

// Run executes the genetic algorithm
func (o *Genetic) Run(eval Objective, lower, upper []float64) (*Result, error) {
	if err := checkBounds(lower, upper); err != nil {
		return nil, err
	}
	cfg := o.config
	if err := cfg.Validate(len(lower)); err != nil {
		return nil, err
	}

	rng := rand.New(rand.NewSource(cfg.Seed))
	tracker := NewTracker(DisabledConvergenceConfig(), cfg.Progress)

	var population []individual
	for gen := 0; gen < cfg.Generations; gen++ {
		for len(population) < cfg.Population {
			population = append(population, individual{genes: uniformIn(rng, lower, upper), stale: true})
		}

		o.evaluate(eval, population)
		tracker.Record(population[0].cost)

		if len(population) > cfg.Population {
			population = population[:cfg.Population]
		}

		selection := make([]individual, 0, cfg.Selection)
		for s := 0; s < cfg.Selection; s++ {
			a := rng.Intn(len(population))
			b := a
			for b == a {
				b = rng.Intn(len(population))
			}
			winner := population[a]
			if population[b].cost < winner.cost {
				winner = population[b]
			}
			selection = append(selection, winner.clone())
		}

		next := make([]individual, 0, 2*cfg.Selection)
		for len(selection) > 0 {
			i1 := rng.Intn(len(selection))
			i2 := i1
			for i2 == i1 {
				i2 = rng.Intn(len(selection))
			}
			p1, p2 := selection[i1], selection[i2]
			hiIdx, loIdx := max(i1, i2), min(i1, i2)
			selection = append(selection[:hiIdx], selection[hiIdx+1:]...)
			selection = append(selection[:loIdx], selection[loIdx+1:]...)

			if rng.Float64() < cfg.CrossoverProbability {
				c1, c2 := crossover(p1, p2, cfg.CrossoverPoint)
				mutate(rng, &c1, cfg.MutationRate, lower, upper)
				mutate(rng, &c2, cfg.MutationRate, lower, upper)
				next = append(next, c1, c2)
			}
			mutate(rng, &p1, cfg.MutationRate, lower, upper)
			mutate(rng, &p2, cfg.MutationRate, lower, upper)
			next = append(next, p1, p2)
		}

		population = next
		slog.Debug("Generation complete", "generation", gen, "best_cost", tracker.BestCost())
	}

	o.evaluate(eval, population)
	best := population[0]

	slog.Info("Genetic algorithm complete", "generations", cfg.Generations, "best_cost", best.cost)

	return &Result{Best: cloneVec(best.genes), Cost: best.cost, Trace: tracker.History()}, nil
}
