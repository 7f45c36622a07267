// Package runner executes a configured fitting session end to end: it loads
// the data, runs the selected strategy, builds the result decomposition and
// publishes everything into the run store. The CLI and the HTTP server share it.
package runner

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/cwbudde/varmapfit/internal/config"
	"github.com/cwbudde/varmapfit/internal/fit"
	"github.com/cwbudde/varmapfit/internal/grid"
	"github.com/cwbudde/varmapfit/internal/opt"
	"github.com/cwbudde/varmapfit/internal/spectral"
	"github.com/cwbudde/varmapfit/internal/store"
)

// Outcome is a published fitting run
type Outcome struct {
	RunID    string
	RunDir   string
	Result   *fit.Result
	Report   *fit.Report
	Duration time.Duration
}

// Fit runs the session and stores the run under session.Output/runs/<runID>.
// progress may be nil.
func Fit(session *config.Session, runID string, progress *opt.Progress) (*Outcome, error) {
	if err := session.RequireData(); err != nil {
		return nil, err
	}

	geom := session.Geometry()
	raw, err := LoadVariable(session.Data.Path, session.Data.Variable, geom)
	if err != nil {
		return nil, err
	}

	fsStore, err := store.NewFSStore(session.Output)
	if err != nil {
		return nil, fmt.Errorf("failed to open result store: %w", err)
	}

	slog.Info("Starting fit",
		"run_id", runID,
		"strategy", session.Strategy,
		"objective", session.Objective,
		"structures", session.Structures,
		"seed", session.Seed,
	)

	start := time.Now()
	result, err := Strategy(session, geom, raw, fit.Options{
		Threads:  session.Threads,
		Kind:     session.ObjectiveKind(),
		Progress: progress,
	})
	if err != nil {
		return nil, err
	}
	elapsed := time.Since(start)

	report := fit.BuildReport(result.Session, result.Structures)

	sink := &StoreSink{
		Store:    fsStore,
		RunID:    runID,
		Config:   RunConfig(session),
		Duration: elapsed,
	}
	if err := sink.Publish(result, report); err != nil {
		return nil, err
	}

	return &Outcome{
		RunID:    runID,
		RunDir:   fsStore.RunDir(runID),
		Result:   result,
		Report:   report,
		Duration: elapsed,
	}, nil
}

// Strategy dispatches to the optimization strategy named in the session
func Strategy(session *config.Session, geom grid.Geometry, raw *spectral.Array, o fit.Options) (*fit.Result, error) {
	m := session.Structures
	seed := session.Seed

	switch session.Strategy {
	case config.StrategyAnnealing:
		return fit.ProcessAnnealedGradientDescent(geom, raw, m, seed, session.AnnealedGradientDescent(), o)
	case config.StrategyLineSearch:
		return fit.ProcessRestartedLineSearch(geom, raw, m, seed, session.RestartedLineSearch(), o)
	case config.StrategySwarm:
		return fit.ProcessParticleSwarm(geom, raw, m, seed, session.ParticleSwarm(), o)
	case config.StrategyGenetic:
		return fit.ProcessGeneticAlgorithm(geom, raw, m, seed, session.GeneticAlgorithm(), o)
	case config.StrategyMayfly:
		return fit.ProcessMayfly(geom, raw, m, seed, session.MayflyOptimizer(), o)
	case config.StrategySimplex:
		return fit.ProcessSimplex(geom, raw, m, session.SimplexOptimizer(), o)
	}
	return nil, fmt.Errorf("unknown strategy: %s", session.Strategy)
}

// LoadVariable reads one variable of a GEO-EAS file onto the grid
func LoadVariable(path, variable string, geom grid.Geometry) (*spectral.Array, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open data file: %w", err)
	}
	defer f.Close()

	ds, err := grid.ReadGEOEAS(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	raw, err := ds.Array(variable, geom)
	if err != nil {
		return nil, err
	}
	slog.Info("Loaded variable", "path", path, "variable", variable, "cells", raw.Len())
	return raw, nil
}

// RunConfig records the session settings stored with a run
func RunConfig(session *config.Session) store.RunConfig {
	return store.RunConfig{
		DataPath:   session.Data.Path,
		Variable:   session.Data.Variable,
		Strategy:   session.Strategy,
		Objective:  session.Objective,
		Structures: session.Structures,
		Seed:       session.Seed,
		Threads:    session.Threads,
	}
}

// Synthesize writes the synthetic field described by the session to path
func Synthesize(session *config.Session, path string) error {
	if err := session.RequireSynthesis(); err != nil {
		return err
	}

	synth := session.Synthesis
	field, err := fit.Synthesize(session.Geometry(), session.SynthesisModel(), synth.Mean, synth.Seed)
	if err != nil {
		return err
	}

	variable := synth.Variable
	if variable == "" {
		variable = "value"
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := grid.WriteGEOEAS(f, "synthetic field", []string{variable}, []*spectral.Array{field}); err != nil {
		f.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return err
	}

	slog.Info("Synthetic field written", "path", path, "variable", variable, "structures", len(synth.Model))
	return nil
}
