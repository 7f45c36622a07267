package store

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sync"
)

// TraceFile is the name of the objective trace inside a run directory
const TraceFile = "trace.jsonl"

// TraceEntry is one objective value of an optimizer trace, stored as a JSON
// line in trace.jsonl.
type TraceEntry struct {
	Step int     `json:"step"`
	Cost float64 `json:"cost"`
	// Best is the lowest cost seen up to and including Step. Annealing
	// traces record the current energy, so Cost may rise while Best cannot.
	Best float64 `json:"best"`
}

// TraceWriter streams trace entries to trace.jsonl, keeping the running best
// itself. Safe for concurrent use; entries are numbered in arrival order.
type TraceWriter struct {
	mu     sync.Mutex
	file   *os.File
	writer *bufio.Writer
	path   string
	step   int
	best   float64
}

func tracePath(baseDir, runID string) string {
	return filepath.Join(runDir(baseDir, runID), TraceFile)
}

// NewTraceWriter creates (or truncates) the trace file of a run.
func NewTraceWriter(baseDir, runID string) (*TraceWriter, error) {
	if err := os.MkdirAll(runDir(baseDir, runID), 0755); err != nil {
		return nil, fmt.Errorf("failed to create run directory: %w", err)
	}

	path := tracePath(baseDir, runID)
	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open trace file: %w", err)
	}

	return &TraceWriter{
		file:   file,
		writer: bufio.NewWriterSize(file, 64*1024),
		path:   path,
		best:   math.Inf(1),
	}, nil
}

// Record appends the next objective value and returns the entry written
func (tw *TraceWriter) Record(cost float64) (TraceEntry, error) {
	tw.mu.Lock()
	defer tw.mu.Unlock()

	tw.best = math.Min(tw.best, cost)
	entry := TraceEntry{Step: tw.step, Cost: cost, Best: tw.best}

	data, err := json.Marshal(entry)
	if err != nil {
		return entry, fmt.Errorf("failed to marshal trace entry: %w", err)
	}
	data = append(data, '\n')
	if _, err := tw.writer.Write(data); err != nil {
		return entry, fmt.Errorf("failed to write trace entry: %w", err)
	}

	tw.step++
	return entry, nil
}

// Len returns the number of entries recorded so far
func (tw *TraceWriter) Len() int {
	tw.mu.Lock()
	defer tw.mu.Unlock()
	return tw.step
}

// Close flushes buffered entries and closes the file.
func (tw *TraceWriter) Close() error {
	tw.mu.Lock()
	defer tw.mu.Unlock()

	if err := tw.writer.Flush(); err != nil {
		tw.file.Close()
		return fmt.Errorf("failed to flush trace: %w", err)
	}
	if err := tw.file.Close(); err != nil {
		return fmt.Errorf("failed to close trace file: %w", err)
	}
	return nil
}

// Path returns the filesystem path to the trace file.
func (tw *TraceWriter) Path() string {
	return tw.path
}

// WriteTrace writes a whole optimizer trace for a run, replacing any earlier
// trace file, and returns its path.
func WriteTrace(baseDir, runID string, trace []float64) (string, error) {
	tw, err := NewTraceWriter(baseDir, runID)
	if err != nil {
		return "", err
	}

	for _, cost := range trace {
		if _, err := tw.Record(cost); err != nil {
			tw.Close()
			return "", err
		}
	}

	if err := tw.Close(); err != nil {
		return "", err
	}
	return tw.Path(), nil
}

// TraceReader reads trace entries back one line at a time.
type TraceReader struct {
	file    *os.File
	scanner *bufio.Scanner
	line    int
}

// NewTraceReader opens the trace of a run. A missing trace is ErrNotFound.
func NewTraceReader(baseDir, runID string) (*TraceReader, error) {
	file, err := os.Open(tracePath(baseDir, runID))
	if os.IsNotExist(err) {
		return nil, &NotFoundError{RunID: runID}
	} else if err != nil {
		return nil, fmt.Errorf("failed to open trace file: %w", err)
	}

	return &TraceReader{
		file:    file,
		scanner: bufio.NewScanner(file),
	}, nil
}

// Read returns the next entry, or io.EOF at the end of the trace.
func (tr *TraceReader) Read() (*TraceEntry, error) {
	if !tr.scanner.Scan() {
		if err := tr.scanner.Err(); err != nil {
			return nil, fmt.Errorf("failed to scan trace line: %w", err)
		}
		return nil, io.EOF
	}
	tr.line++

	var entry TraceEntry
	if err := json.Unmarshal(tr.scanner.Bytes(), &entry); err != nil {
		return nil, fmt.Errorf("trace line %d: %w", tr.line, err)
	}
	return &entry, nil
}

// ReadAll reads the remaining entries.
func (tr *TraceReader) ReadAll() ([]TraceEntry, error) {
	var entries []TraceEntry
	for {
		entry, err := tr.Read()
		if err == io.EOF {
			return entries, nil
		}
		if err != nil {
			return nil, err
		}
		entries = append(entries, *entry)
	}
}

// Close closes the trace reader.
func (tr *TraceReader) Close() error {
	if err := tr.file.Close(); err != nil {
		return fmt.Errorf("failed to close trace file: %w", err)
	}
	return nil
}

// ReadTrace loads the whole trace of a run
func ReadTrace(baseDir, runID string) ([]TraceEntry, error) {
	tr, err := NewTraceReader(baseDir, runID)
	if err != nil {
		return nil, err
	}
	defer tr.Close()
	return tr.ReadAll()
}
