package store

// Store defines the interface for persisting finished runs.
// Implementations must be safe for concurrent use.
//
// Error handling conventions:
//   - Return ErrNotFound if the run doesn't exist (for Load/Delete)
//   - Wrap underlying errors with context using fmt.Errorf("context: %w", err)
type Store interface {
	// SaveReport atomically writes the report of a run, replacing any
	// earlier report with the same run ID.
	SaveReport(report *Report) error

	// LoadReport retrieves the report of a run.
	LoadReport(runID string) (*Report, error)

	// ListRuns returns metadata for all stored runs, oldest first.
	ListRuns() ([]RunInfo, error)

	// DeleteRun removes the run directory with the report, trace and surfaces.
	DeleteRun(runID string) error
}

// ErrNotFound is returned when a requested run does not exist.
// Use errors.Is(err, ErrNotFound) to check for this error.
var ErrNotFound = &NotFoundError{}

// NotFoundError represents a missing run.
type NotFoundError struct {
	RunID string
}

func (e *NotFoundError) Error() string {
	if e.RunID != "" {
		return "run not found: " + e.RunID
	}
	return "run not found"
}

func (e *NotFoundError) Is(target error) bool {
	_, ok := target.(*NotFoundError)
	return ok
}
