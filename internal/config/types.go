// Package config reads the YAML session files that drive the varmapfit CLI.
package config

// Strategy names accepted in session files
const (
	StrategyAnnealing  = "annealed-gradient-descent"
	StrategyLineSearch = "line-search"
	StrategySwarm      = "particle-swarm"
	StrategyGenetic    = "genetic"
	StrategyMayfly     = "mayfly"
	StrategySimplex    = "simplex"
)

// Session represents one fitting or synthesis session
type Session struct {
	Grid       GridConfig `yaml:"grid"`
	Data       DataConfig `yaml:"data"`
	Structures int        `yaml:"structures"`
	Objective  string     `yaml:"objective"`
	Strategy   string     `yaml:"strategy"`
	Seed       int64      `yaml:"seed"`
	Threads    int        `yaml:"threads,omitempty"`
	Output     string     `yaml:"output,omitempty"`

	Annealing  *AnnealingConfig  `yaml:"annealing,omitempty"`
	LineSearch *LineSearchConfig `yaml:"line_search,omitempty"`
	Swarm      *SwarmConfig      `yaml:"swarm,omitempty"`
	Genetic    *GeneticConfig    `yaml:"genetic,omitempty"`
	Mayfly     *MayflyConfig     `yaml:"mayfly,omitempty"`
	Simplex    *SimplexConfig    `yaml:"simplex,omitempty"`

	// Synthesis describes the field generated by the synth command
	Synthesis *SynthesisConfig `yaml:"synthesis,omitempty"`
}

// GridConfig is the regular grid the data lives on
type GridConfig struct {
	NI        int     `yaml:"ni"`
	NJ        int     `yaml:"nj"`
	NK        int     `yaml:"nk"`
	CellSizeI float64 `yaml:"cell_size_i"`
	CellSizeJ float64 `yaml:"cell_size_j"`
	CellSizeK float64 `yaml:"cell_size_k"`
	OriginX   float64 `yaml:"origin_x"`
	OriginY   float64 `yaml:"origin_y"`
	OriginZ   float64 `yaml:"origin_z"`
}

// DataConfig points at the GEO-EAS file and the variable to fit
type DataConfig struct {
	Path     string `yaml:"path"`
	Variable string `yaml:"variable"`
}

// AnnealingConfig holds annealed gradient descent hyperparameters
type AnnealingConfig struct {
	InitialTemperature   float64 `yaml:"initial_temperature"`
	FinalTemperature     float64 `yaml:"final_temperature"`
	MaxSteps             int     `yaml:"max_steps"`
	SearchFactor         float64 `yaml:"search_factor"`
	MaxIterations        int     `yaml:"max_iterations"`
	Epsilon              float64 `yaml:"epsilon"`
	InitialStep          float64 `yaml:"initial_step"`
	MaxStepReductions    int     `yaml:"max_step_reductions"`
	ConvergenceCriterion float64 `yaml:"convergence_criterion"`
}

// LineSearchConfig holds restarted line search hyperparameters
type LineSearchConfig struct {
	MaxSteps       int     `yaml:"max_steps"`
	Epsilon        float64 `yaml:"epsilon"`
	StartingPoints int     `yaml:"starting_points"`
	Restarts       int     `yaml:"restarts"`
}

// SwarmConfig holds particle swarm hyperparameters
type SwarmConfig struct {
	MaxSteps  int     `yaml:"max_steps"`
	Particles int     `yaml:"particles"`
	Inertia   float64 `yaml:"inertia"`
	Cognitive float64 `yaml:"cognitive"`
	Social    float64 `yaml:"social"`
	Patience  int     `yaml:"patience,omitempty"`
	Threshold float64 `yaml:"threshold,omitempty"`
}

// GeneticConfig holds genetic algorithm hyperparameters
type GeneticConfig struct {
	Generations          int     `yaml:"generations"`
	Population           int     `yaml:"population"`
	Selection            int     `yaml:"selection"`
	CrossoverProbability float64 `yaml:"crossover_probability"`
	CrossoverPoint       int     `yaml:"crossover_point"`
	MutationRate         float64 `yaml:"mutation_rate"`
}

// MayflyConfig holds Mayfly hyperparameters
type MayflyConfig struct {
	MaxIterations int `yaml:"max_iterations"`
	Population    int `yaml:"population"`
}

// SimplexConfig holds Nelder-Mead limits
type SimplexConfig struct {
	MaxIterations  int `yaml:"max_iterations"`
	MaxEvaluations int `yaml:"max_evaluations"`
}

// StructureConfig is one nested structure given by hand, azimuth in degrees
type StructureConfig struct {
	Range        float64 `yaml:"range"`
	RangeRatio   float64 `yaml:"range_ratio"`
	Azimuth      float64 `yaml:"azimuth"`
	Contribution float64 `yaml:"contribution"`
}

// SynthesisConfig describes a synthetic field
type SynthesisConfig struct {
	Model    []StructureConfig `yaml:"model"`
	Mean     float64           `yaml:"mean"`
	Seed     int64             `yaml:"seed"`
	Variable string            `yaml:"variable"`
}
