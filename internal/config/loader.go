package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/cwbudde/varmapfit/internal/fit"
)

// Load reads and parses a session file
func Load(path string) (*Session, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read session file %s: %w", path, err)
	}
	s, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse session file %s: %w", path, err)
	}
	return s, nil
}

// Parse parses a session from YAML bytes, fills defaults and validates it
func Parse(data []byte) (*Session, error) {
	var s Session
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to parse session yaml: %w", err)
	}

	s.applyDefaults()
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("invalid session: %w", err)
	}
	return &s, nil
}

func (s *Session) applyDefaults() {
	if s.Grid.NK == 0 {
		s.Grid.NK = 1
	}
	if s.Grid.CellSizeK == 0 {
		s.Grid.CellSizeK = 1
	}
	if s.Structures == 0 {
		s.Structures = 1
	}
	if s.Strategy == "" {
		s.Strategy = StrategyAnnealing
	}
	if s.Objective == "" {
		s.Objective = fit.SurfaceDistance.String()
	}
	if s.Seed == 0 {
		s.Seed = 1
	}
	if s.Output == "" {
		s.Output = "./data"
	}
}

// Validate checks the parts of the session every command needs
func (s *Session) Validate() error {
	if err := s.Geometry().Validate(); err != nil {
		return fmt.Errorf("grid: %w", err)
	}
	if s.Structures < 1 {
		return fmt.Errorf("structures must be at least 1, got %d", s.Structures)
	}
	if s.Threads < 0 {
		return fmt.Errorf("threads cannot be negative")
	}
	if _, err := fit.ParseObjectiveKind(s.Objective); err != nil {
		return err
	}

	switch s.Strategy {
	case StrategyAnnealing, StrategyLineSearch, StrategySwarm, StrategyGenetic, StrategyMayfly, StrategySimplex:
	default:
		return fmt.Errorf("unknown strategy %q", s.Strategy)
	}

	if s.Synthesis != nil {
		for i, st := range s.Synthesis.Model {
			if st.Range <= 0 || st.RangeRatio <= 0 || st.RangeRatio > 1 || st.Contribution <= 0 {
				return fmt.Errorf("synthesis model structure %d: range and contribution must be positive and range_ratio within (0,1]", i+1)
			}
		}
	}
	return nil
}

// RequireData checks that the session names an input file and variable
func (s *Session) RequireData() error {
	if s.Data.Path == "" {
		return fmt.Errorf("data.path is required")
	}
	if s.Data.Variable == "" {
		return fmt.Errorf("data.variable is required")
	}
	return nil
}

// RequireSynthesis checks that the session describes a synthetic model
func (s *Session) RequireSynthesis() error {
	if s.Synthesis == nil || len(s.Synthesis.Model) == 0 {
		return fmt.Errorf("synthesis.model needs at least one structure")
	}
	return nil
}
