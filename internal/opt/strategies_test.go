package opt

import (
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	boxLower = []float64{-10, -10, -10}
	boxUpper = []float64{10, 10, 10}
)

// shiftedSphere has its minimum 0 at (1,-2,3); its value at the origin is 14
func shiftedSphere(x []float64) float64 {
	return sphere([]float64{x[0] - 1, x[1] + 2, x[2] - 3})
}

func assertNonIncreasing(t *testing.T, trace []float64) {
	t.Helper()
	for i := 1; i < len(trace); i++ {
		assert.LessOrEqual(t, trace[i], trace[i-1], "trace regressed at %d", i)
	}
}

func smallAnnealingConfig(threads int) AnnealedGradientDescentConfig {
	cfg := DefaultAnnealedGradientDescentConfig()
	cfg.Annealing.MaxSteps = 200
	cfg.Descent.InitialStep = 0.5
	cfg.Descent.MaxIterations = 50
	cfg.Threads = threads
	cfg.Seed = 7
	return cfg
}

func TestAnnealedGradientDescentOnSphere(t *testing.T) {
	cfg := smallAnnealingConfig(2)
	result, err := NewAnnealedGradientDescent(cfg).Run(shiftedSphere, boxLower, boxUpper)
	require.NoError(t, err)

	assert.Less(t, result.Cost, 1e-8)
	assert.InDelta(t, 1, result.Best[0], 1e-4)
	assert.InDelta(t, -2, result.Best[1], 1e-4)
	assert.InDelta(t, 3, result.Best[2], 1e-4)
	assert.GreaterOrEqual(t, len(result.Trace), cfg.Annealing.MaxSteps, "annealing always consumes its full budget")
}

func TestAnnealedGradientDescentStaysInBounds(t *testing.T) {
	// Minimum outside the box pulls every descent step against the bounds
	outside := func(x []float64) float64 {
		return sphere([]float64{x[0] - 50, x[1] + 50})
	}
	lower := []float64{-1, -1}
	upper := []float64{1, 1}

	cfg := smallAnnealingConfig(1)
	cfg.Descent.InitialStep = 10
	steps := 0
	cfg.OnDescentStep = func(_ int, x []float64, _ float64) {
		steps++
		assert.True(t, inBounds(x, lower, upper), "descent left the box: %v", x)
	}

	result, err := NewAnnealedGradientDescent(cfg).Run(outside, lower, upper)
	require.NoError(t, err)
	assert.Positive(t, steps)
	assert.True(t, inBounds(result.Best, lower, upper))
	assert.InDelta(t, 1, result.Best[0], 1e-9)
	assert.InDelta(t, -1, result.Best[1], 1e-9)
}

func TestAnnealedGradientDescentDeterministic(t *testing.T) {
	r1, err := NewAnnealedGradientDescent(smallAnnealingConfig(1)).Run(shiftedSphere, boxLower, boxUpper)
	require.NoError(t, err)
	r2, err := NewAnnealedGradientDescent(smallAnnealingConfig(4)).Run(shiftedSphere, boxLower, boxUpper)
	require.NoError(t, err)

	assert.Equal(t, r1.Best, r2.Best)
	assert.Equal(t, r1.Trace, r2.Trace)
}

func TestAnnealingTemperatureSchedule(t *testing.T) {
	a := AnnealingConfig{InitialTemperature: 1000, FinalTemperature: 0.01}
	assert.Equal(t, 1000.0, a.temperature(0))
	// log10(1000) = 3, so T(1000) = 1000·e^-4.5
	assert.InDelta(t, 11.109, a.temperature(1000), 1e-3)
	assert.InDelta(t, 1, a.acceptance(1000), 1e-12)
	assert.Less(t, a.acceptance(0.001), 0.0)
}

func TestAnnealedGradientDescentValidation(t *testing.T) {
	cfg := DefaultAnnealedGradientDescentConfig()
	cfg.Descent.Epsilon = 0
	_, err := NewAnnealedGradientDescent(cfg).Run(sphere, []float64{0}, []float64{1})
	assert.Error(t, err)

	cfg = DefaultAnnealedGradientDescentConfig()
	cfg.Start = []float64{1, 2}
	_, err = NewAnnealedGradientDescent(cfg).Run(sphere, []float64{0}, []float64{1})
	assert.Error(t, err)
}

func TestStepScale(t *testing.T) {
	assert.Equal(t, 2.75, stepScale(1))
	assert.InDelta(t, 2+3.0/32, stepScale(2), 1e-15)
	assert.InDelta(t, 2, stepScale(10), 1e-12)
}

func TestLineSearchOnSphere(t *testing.T) {
	cfg := DefaultLineSearchConfig()
	cfg.StartingPoints = 200
	cfg.Restarts = 5
	cfg.MaxSteps = 10
	cfg.Threads = 4

	result, err := NewLineSearch(cfg).Run(shiftedSphere, boxLower, boxUpper)
	require.NoError(t, err)

	assert.Less(t, result.Cost, shiftedSphere([]float64{0, 0, 0}))
	assert.Equal(t, shiftedSphere(result.Best), result.Cost)
	assert.Len(t, result.Trace, cfg.Restarts*cfg.MaxSteps)
	assertNonIncreasing(t, result.Trace)
	assert.True(t, inBounds(result.Best, boxLower, boxUpper))
}

func TestLineSearchIndependentOfThreadCount(t *testing.T) {
	tests := []struct {
		name     string
		points   int
		restarts int
	}{
		{"single point single restart", 1, 1},
		{"many points", 17, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var results []*Result
			for _, threads := range []int{1, 3, 8} {
				cfg := LineSearchConfig{
					MaxSteps:       15,
					Epsilon:        1e-6,
					StartingPoints: tt.points,
					Restarts:       tt.restarts,
					Threads:        threads,
					Seed:           99,
				}
				r, err := NewLineSearch(cfg).Run(shiftedSphere, boxLower, boxUpper)
				require.NoError(t, err)
				results = append(results, r)
			}
			for _, r := range results[1:] {
				assert.Equal(t, results[0].Best, r.Best)
				assert.Equal(t, results[0].Cost, r.Cost)
				assert.Equal(t, results[0].Trace, r.Trace)
			}
		})
	}
}

func TestSwarmOnSphere(t *testing.T) {
	cfg := DefaultSwarmConfig()
	cfg.Particles = 30
	cfg.MaxSteps = 100
	cfg.Seed = 3

	result, err := NewSwarm(cfg).Run(shiftedSphere, boxLower, boxUpper)
	require.NoError(t, err)

	// Particles only move on strict improvement, so the swarm closes in slowly
	assert.Less(t, result.Cost, shiftedSphere([]float64{0, 0, 0}))
	assert.Less(t, result.Cost, 3.0)
	assert.Len(t, result.Trace, cfg.MaxSteps)
	assert.True(t, inBounds(result.Best, boxLower, boxUpper))
}

func TestSwarmTraceNeverRegresses(t *testing.T) {
	// Rugged objective with many local minima
	rugged := func(x []float64) float64 {
		var s float64
		for _, v := range x {
			s += v*v - 10*cosApprox(v)
		}
		return s + 30
	}

	for _, seed := range []int64{1, 2, 3} {
		cfg := DefaultSwarmConfig()
		cfg.Particles = 12
		cfg.MaxSteps = 60
		cfg.Seed = seed
		cfg.Threads = 3

		result, err := NewSwarm(cfg).Run(rugged, boxLower, boxUpper)
		require.NoError(t, err)
		assertNonIncreasing(t, result.Trace)
		assert.Equal(t, result.Trace[len(result.Trace)-1], result.Cost)
	}
}

// cosApprox is a cheap periodic bump used to make a multimodal surface
func cosApprox(v float64) float64 {
	r := v - 6.283185307179586*float64(int(v/6.283185307179586))
	return 1 - r*r/2 + r*r*r*r/24
}

func TestSwarmIndependentOfThreadCount(t *testing.T) {
	run := func(threads int) *Result {
		cfg := DefaultSwarmConfig()
		cfg.Particles = 10
		cfg.MaxSteps = 30
		cfg.Threads = threads
		r, err := NewSwarm(cfg).Run(shiftedSphere, boxLower, boxUpper)
		require.NoError(t, err)
		return r
	}
	r1, r4 := run(1), run(4)
	assert.Equal(t, r1.Best, r4.Best)
	assert.Equal(t, r1.Trace, r4.Trace)
}

func TestSwarmEarlyStop(t *testing.T) {
	cfg := DefaultSwarmConfig()
	cfg.MaxSteps = 1000
	cfg.Convergence = ConvergenceConfig{Enabled: true, Patience: 5, Threshold: 0.5}

	result, err := NewSwarm(cfg).Run(shiftedSphere, boxLower, boxUpper)
	require.NoError(t, err)
	assert.Less(t, len(result.Trace), 1000)
}

func TestBounce(t *testing.T) {
	tests := []struct {
		name      string
		x, lo, hi float64
		want      float64
	}{
		{"inside", 0.3, 0, 1, 0.3},
		{"overshoot", 1.25, 0, 1, 0.75},
		{"undershoot", -0.25, 0, 1, 0.25},
		{"far overshoot folds again", 2.5, 0, 1, 0.5},
		{"degenerate range", 5, 2, 2, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, bounce(tt.x, tt.lo, tt.hi), 1e-12)
		})
	}
}

func TestGeneticOnSphere(t *testing.T) {
	cfg := GeneticConfig{
		Generations:          50,
		Population:           40,
		Selection:            20,
		CrossoverProbability: 0.7,
		CrossoverPoint:       1,
		MutationRate:         1,
		Threads:              4,
		Seed:                 5,
	}

	result, err := NewGenetic(cfg).Run(shiftedSphere, boxLower, boxUpper)
	require.NoError(t, err)

	assert.Len(t, result.Trace, cfg.Generations)
	assert.Equal(t, shiftedSphere(result.Best), result.Cost)
	assert.True(t, inBounds(result.Best, boxLower, boxUpper))

	lowest := result.Trace[0]
	for _, v := range result.Trace {
		lowest = min(lowest, v)
	}
	assert.Less(t, lowest, shiftedSphere([]float64{0, 0, 0}))
}

func TestGeneticRejectsInvalidConfigWithoutEvaluating(t *testing.T) {
	tests := []struct {
		name string
		cfg  GeneticConfig
	}{
		{"selection equals population", GeneticConfig{Generations: 5, Population: 10, Selection: 10, CrossoverPoint: 1}},
		{"selection above population", GeneticConfig{Generations: 5, Population: 10, Selection: 12, CrossoverPoint: 1}},
		{"odd population", GeneticConfig{Generations: 5, Population: 11, Selection: 4, CrossoverPoint: 1}},
		{"odd selection", GeneticConfig{Generations: 5, Population: 10, Selection: 5, CrossoverPoint: 1}},
		{"crossover point too large", GeneticConfig{Generations: 5, Population: 10, Selection: 4, CrossoverPoint: 3}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int64
			counting := func(x []float64) float64 {
				calls.Add(1)
				return sphere(x)
			}
			_, err := NewGenetic(tt.cfg).Run(counting, boxLower, boxUpper)
			assert.Error(t, err)
			assert.Zero(t, calls.Load())
		})
	}
}

func TestGeneticIndependentOfThreadCount(t *testing.T) {
	run := func(threads int) *Result {
		cfg := DefaultGeneticConfig()
		cfg.Generations = 10
		cfg.Population = 20
		cfg.Selection = 10
		cfg.Threads = threads
		r, err := NewGenetic(cfg).Run(shiftedSphere, boxLower, boxUpper)
		require.NoError(t, err)
		return r
	}
	r1, r5 := run(1), run(5)
	assert.Equal(t, r1.Best, r5.Best)
	assert.Equal(t, r1.Trace, r5.Trace)
}

func TestCrossover(t *testing.T) {
	a := individual{genes: []float64{1, 2, 3, 4}}
	b := individual{genes: []float64{5, 6, 7, 8}}

	c1, c2 := crossover(a, b, 1)
	assert.Equal(t, []float64{1, 6, 7, 8}, c1.genes)
	assert.Equal(t, []float64{5, 2, 3, 4}, c2.genes)
	assert.True(t, c1.stale && c2.stale)
}

func TestSimplexOnSphere(t *testing.T) {
	result, err := NewSimplex(DefaultSimplexConfig()).Run(shiftedSphere, boxLower, boxUpper)
	require.NoError(t, err)

	assert.Less(t, result.Cost, 1e-4)
	assert.NotEmpty(t, result.Trace)
}

func TestSimplexClampsToBox(t *testing.T) {
	lower := []float64{-1, -1, -1}
	upper := []float64{1, 1, 1}

	result, err := NewSimplex(DefaultSimplexConfig()).Run(shiftedSphere, lower, upper)
	require.NoError(t, err)
	assert.True(t, inBounds(result.Best, lower, upper))
	// (1,-1,1) is the closest corner to (1,-2,3)
	assert.InDelta(t, 5, result.Cost, 1e-3)
}
