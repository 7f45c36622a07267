package store

import (
	"fmt"
	"time"
)

// paramsPerStructure mirrors the structure encoding of the fit package
// without importing it.
const paramsPerStructure = 4

// RunConfig records how a fitting run was set up.
type RunConfig struct {
	DataPath   string `json:"dataPath"`
	Variable   string `json:"variable"`
	Strategy   string `json:"strategy"`
	Objective  string `json:"objective"`
	Structures int    `json:"structures"`
	Seed       int64  `json:"seed"`
	Threads    int    `json:"threads,omitempty"`
}

// StructureRecord is one fitted nested structure, azimuth in degrees
type StructureRecord struct {
	Contribution float64 `json:"contribution"`
	Range        float64 `json:"range"`
	RangeRatio   float64 `json:"rangeRatio"`
	Azimuth      float64 `json:"azimuthDegrees"`
}

// SurfaceSummary describes one surface of the result decomposition
type SurfaceSummary struct {
	Name string  `json:"name"`
	Min  float64 `json:"min"`
	Max  float64 `json:"max"`
	Sum  float64 `json:"sum"`
}

// Report is the persisted outcome of a fitting run.
// Surfaces themselves are written next to it as a GEO-EAS grid; the report
// only carries their summaries.
type Report struct {
	RunID string `json:"runId"`

	Structures []StructureRecord `json:"structures"`

	// Params is the raw parameter vector, four values per structure
	Params []float64 `json:"params"`

	Cost        float64 `json:"cost"`
	InitialCost float64 `json:"initialCost"`
	Evaluations int64   `json:"evaluations"`

	// TraceLength is the number of entries in trace.jsonl
	TraceLength int `json:"traceLength"`

	Surfaces []SurfaceSummary `json:"surfaces,omitempty"`

	Duration  time.Duration `json:"duration"`
	Timestamp time.Time     `json:"timestamp"`
	Config    RunConfig     `json:"config"`
}

// RunInfo is the listing view of a report
type RunInfo struct {
	RunID      string    `json:"runId"`
	Cost       float64   `json:"cost"`
	Structures int       `json:"structures"`
	Strategy   string    `json:"strategy"`
	Objective  string    `json:"objective"`
	DataPath   string    `json:"dataPath"`
	Timestamp  time.Time `json:"timestamp"`
}

// ToInfo converts a full Report to RunInfo
func (r *Report) ToInfo() RunInfo {
	return RunInfo{
		RunID:      r.RunID,
		Cost:       r.Cost,
		Structures: len(r.Structures),
		Strategy:   r.Config.Strategy,
		Objective:  r.Config.Objective,
		DataPath:   r.Config.DataPath,
		Timestamp:  r.Timestamp,
	}
}

// Validate checks if the report is complete and self-consistent.
func (r *Report) Validate() error {
	if r.RunID == "" {
		return &ValidationError{Field: "RunID", Reason: "cannot be empty"}
	}
	if len(r.Structures) == 0 {
		return &ValidationError{Field: "Structures", Reason: "cannot be empty"}
	}
	if len(r.Params) != len(r.Structures)*paramsPerStructure {
		return &ValidationError{
			Field:  "Params",
			Reason: fmt.Sprintf("length mismatch: expected %d params for %d structures", len(r.Structures)*paramsPerStructure, len(r.Structures)),
		}
	}
	if r.Cost < 0 {
		return &ValidationError{Field: "Cost", Reason: "cannot be negative"}
	}
	if r.Timestamp.IsZero() {
		return &ValidationError{Field: "Timestamp", Reason: "cannot be zero"}
	}
	if r.Config.Strategy == "" {
		return &ValidationError{Field: "Config.Strategy", Reason: "cannot be empty"}
	}
	if r.Config.Structures != len(r.Structures) {
		return &ValidationError{Field: "Config.Structures", Reason: "does not match the fitted structures"}
	}
	return nil
}

// ValidationError represents a report validation error.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return "validation error: " + e.Field + " " + e.Reason
}
