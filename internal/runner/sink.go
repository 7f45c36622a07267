package runner

import (
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/cwbudde/varmapfit/internal/fit"
	"github.com/cwbudde/varmapfit/internal/grid"
	"github.com/cwbudde/varmapfit/internal/spectral"
	"github.com/cwbudde/varmapfit/internal/store"
)

// SurfacesFile is the GEO-EAS grid holding every result surface of a run
const SurfacesFile = "surfaces.dat"

// StoreSink publishes a finished run into a filesystem store: the trace as
// JSONL, the surfaces as one GEO-EAS grid and the report as JSON.
type StoreSink struct {
	Store    *store.FSStore
	RunID    string
	Config   store.RunConfig
	Duration time.Duration
}

var _ fit.Sink = (*StoreSink)(nil)

// Publish implements fit.Sink
func (s *StoreSink) Publish(result *fit.Result, report *fit.Report) error {
	tracePath, err := store.WriteTrace(s.Store.BaseDir(), s.RunID, result.Trace)
	if err != nil {
		return fmt.Errorf("failed to write trace: %w", err)
	}

	surfaces := report.Surfaces()
	surfacePath := filepath.Join(s.Store.RunDir(s.RunID), SurfacesFile)
	if err := WriteSurfaces(surfacePath, s.RunID, surfaces); err != nil {
		return err
	}

	if err := s.Store.SaveReport(s.buildReport(result, surfaces)); err != nil {
		return fmt.Errorf("failed to save report: %w", err)
	}

	slog.Info("Run published", "run_id", s.RunID, "trace", tracePath, "surfaces", surfacePath)
	return nil
}

func (s *StoreSink) buildReport(result *fit.Result, surfaces []fit.Named) *store.Report {
	summaries := make([]store.SurfaceSummary, len(surfaces))
	for i, named := range surfaces {
		summaries[i] = store.SurfaceSummary{
			Name: named.Name,
			Min:  named.Surface.Min(),
			Max:  named.Surface.Max(),
			Sum:  named.Surface.Sum(),
		}
	}

	return &store.Report{
		RunID:       s.RunID,
		Structures:  StructureRecords(result.Structures),
		Params:      result.Params,
		Cost:        result.Cost,
		InitialCost: result.InitialCost,
		Evaluations: result.Evaluations,
		TraceLength: len(result.Trace),
		Surfaces:    summaries,
		Duration:    s.Duration,
		Timestamp:   time.Now(),
		Config:      s.Config,
	}
}

// StructureRecords converts fitted structures for storage, azimuth in degrees
func StructureRecords(structures []fit.VariogramStructure) []store.StructureRecord {
	out := make([]store.StructureRecord, len(structures))
	for i, st := range structures {
		out[i] = store.StructureRecord{
			Contribution: st.Contribution,
			Range:        st.Range,
			RangeRatio:   st.RangeRatio,
			Azimuth:      st.Azimuth * 180 / math.Pi,
		}
	}
	return out
}

// WriteSurfaces writes named surfaces as the columns of one GEO-EAS file
func WriteSurfaces(path, title string, surfaces []fit.Named) error {
	names := make([]string, len(surfaces))
	arrays := make([]*spectral.Array, len(surfaces))
	for i, named := range surfaces {
		names[i] = named.Name
		arrays[i] = named.Surface
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create surfaces file: %w", err)
	}
	if err := grid.WriteGEOEAS(f, title, names, arrays); err != nil {
		f.Close()
		return fmt.Errorf("failed to write surfaces: %w", err)
	}
	return f.Close()
}
