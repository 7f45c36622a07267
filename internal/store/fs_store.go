package store

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
)

// FSStore implements the Store interface on the filesystem.
// Every run lives in <baseDir>/runs/<runID>/.
//
// Reports are written with temp file + rename, so concurrent writers never
// leave a torn report.json behind.
type FSStore struct {
	baseDir string
}

var _ Store = (*FSStore)(nil)

// NewFSStore creates a new filesystem-based store.
// The baseDir will be created if it doesn't exist.
func NewFSStore(baseDir string) (*FSStore, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}

	return &FSStore{
		baseDir: baseDir,
	}, nil
}

// BaseDir returns the root directory of the store
func (fs *FSStore) BaseDir() string {
	return fs.baseDir
}

// RunDir returns the directory holding all artifacts of a run
func (fs *FSStore) RunDir(runID string) string {
	return runDir(fs.baseDir, runID)
}

func runDir(baseDir, runID string) string {
	return filepath.Join(baseDir, "runs", runID)
}

func (fs *FSStore) reportPath(runID string) string {
	return filepath.Join(fs.RunDir(runID), "report.json")
}

// SaveReport atomically saves the report of a run.
func (fs *FSStore) SaveReport(report *Report) error {
	if report == nil {
		return fmt.Errorf("report cannot be nil")
	}
	if err := report.Validate(); err != nil {
		return err
	}

	dir := fs.RunDir(report.RunID)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create run directory: %w", err)
	}

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize report: %w", err)
	}

	finalPath := fs.reportPath(report.RunID)
	tempPath := finalPath + ".tmp"
	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write temp report file: %w", err)
	}

	if err := os.Rename(tempPath, finalPath); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to rename report file: %w", err)
	}

	slog.Debug("Report saved", "runID", report.RunID, "path", finalPath)
	return nil
}

// LoadReport retrieves the report of a run.
func (fs *FSStore) LoadReport(runID string) (*Report, error) {
	if runID == "" {
		return nil, fmt.Errorf("runID cannot be empty")
	}

	path := fs.reportPath(runID)
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, &NotFoundError{RunID: runID}
	} else if err != nil {
		return nil, fmt.Errorf("failed to read report file: %w", err)
	}

	var report Report
	if err := json.Unmarshal(data, &report); err != nil {
		return nil, fmt.Errorf("failed to deserialize report: %w", err)
	}

	slog.Debug("Report loaded", "runID", runID, "path", path)
	return &report, nil
}

// ListRuns returns metadata for all runs with a readable report.
func (fs *FSStore) ListRuns() ([]RunInfo, error) {
	runsDir := filepath.Join(fs.baseDir, "runs")

	entries, err := os.ReadDir(runsDir)
	if os.IsNotExist(err) {
		return []RunInfo{}, nil
	} else if err != nil {
		return nil, fmt.Errorf("failed to read runs directory: %w", err)
	}

	infos := []RunInfo{}
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		runID := entry.Name()
		if _, err := os.Stat(fs.reportPath(runID)); os.IsNotExist(err) {
			continue // Run still in progress or aborted
		}

		report, err := fs.LoadReport(runID)
		if err != nil {
			slog.Warn("Failed to load report for listing", "runID", runID, "error", err)
			continue
		}
		infos = append(infos, report.ToInfo())
	}

	sort.SliceStable(infos, func(a, b int) bool {
		return infos[a].Timestamp.Before(infos[b].Timestamp)
	})

	slog.Debug("Listed runs", "count", len(infos))
	return infos, nil
}

// DeleteRun removes the run directory and all its artifacts.
func (fs *FSStore) DeleteRun(runID string) error {
	if runID == "" {
		return fmt.Errorf("runID cannot be empty")
	}

	dir := fs.RunDir(runID)
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return &NotFoundError{RunID: runID}
	} else if err != nil {
		return fmt.Errorf("failed to stat run directory: %w", err)
	}

	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("failed to remove run directory: %w", err)
	}

	slog.Debug("Run deleted", "runID", runID, "path", dir)
	return nil
}
