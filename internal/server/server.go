// Package server exposes fitting jobs over HTTP: sessions are submitted as
// YAML, run in the background and published into the run store, with
// progress streamed as server-sent events.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/cwbudde/varmapfit/internal/config"
	"github.com/cwbudde/varmapfit/internal/grid"
	"github.com/cwbudde/varmapfit/internal/spectral"
	"github.com/cwbudde/varmapfit/internal/store"
)

// maxSessionBytes bounds the size of a submitted session file
const maxSessionBytes = 1 << 20

// Server represents the HTTP server
type Server struct {
	jobManager *JobManager
	runs       store.Store
	outputDir  string
	addr       string
	server     *http.Server
	jobs       sync.WaitGroup
}

// NewServer creates a new HTTP server. Jobs are published into runStore;
// when it is nil each job uses the output directory of its session.
func NewServer(addr string, runStore *store.FSStore) *Server {
	s := &Server{
		jobManager: NewJobManager(),
		addr:       addr,
	}
	if runStore != nil {
		s.runs = runStore
		s.outputDir = runStore.BaseDir()
	}
	return s
}

// Handler returns the routed handler with middleware applied
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/v1/jobs", s.handleJobs)
	mux.HandleFunc("/api/v1/jobs/", s.handleJobsWithID)
	mux.HandleFunc("/api/v1/runs", s.handleRuns)
	mux.HandleFunc("/api/v1/runs/", s.handleRunWithID)

	return s.loggingMiddleware(s.corsMiddleware(mux))
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:    s.addr,
		Handler: s.Handler(),
	}

	slog.Info("Starting HTTP server", "addr", s.addr)
	return s.server.ListenAndServe()
}

// Shutdown stops accepting requests and waits for running jobs until ctx ends
func (s *Server) Shutdown(ctx context.Context) error {
	slog.Info("Shutting down HTTP server")
	if s.server != nil {
		if err := s.server.Shutdown(ctx); err != nil {
			return err
		}
	}

	done := make(chan struct{})
	go func() {
		s.jobs.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		slog.Warn("Shutdown with jobs still running", "running", len(s.jobManager.GetRunningJobs()))
		return ctx.Err()
	}
}

// handleJobs handles /api/v1/jobs
func (s *Server) handleJobs(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.handleCreateJob(w, r)
	case http.MethodGet:
		s.handleListJobs(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleJobsWithID handles /api/v1/jobs/:id/*
func (s *Server) handleJobsWithID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	path := strings.TrimPrefix(r.URL.Path, "/api/v1/jobs/")
	parts := strings.Split(path, "/")
	if len(parts) == 0 || parts[0] == "" {
		http.Error(w, "Job ID required", http.StatusBadRequest)
		return
	}

	jobID := parts[0]

	switch {
	case len(parts) == 1 || parts[1] == "status":
		s.handleGetJobStatus(w, r, jobID)
	case parts[1] == "stream":
		s.handleJobStream(w, r, jobID)
	case parts[1] == "surfaces" && (len(parts) == 2 || parts[2] == ""):
		s.handleListSurfaces(w, r, jobID)
	case parts[1] == "surfaces":
		s.handleGetSurface(w, r, jobID, parts[2])
	default:
		http.Error(w, "Not found", http.StatusNotFound)
	}
}

// handleCreateJob handles POST /api/v1/jobs. The body is a YAML session.
func (s *Server) handleCreateJob(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxSessionBytes))
	if err != nil {
		http.Error(w, fmt.Sprintf("Failed to read body: %v", err), http.StatusBadRequest)
		return
	}

	session, err := config.Parse(body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := session.RequireData(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if s.outputDir != "" {
		session.Output = s.outputDir
	}

	job := s.jobManager.CreateJob(session)

	s.jobs.Add(1)
	go func() {
		defer s.jobs.Done()
		runJob(s.jobManager, job.ID)
	}()

	writeJSON(w, http.StatusCreated, job)
}

// handleListJobs handles GET /api/v1/jobs
func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.jobManager.ListJobs())
}

// handleGetJobStatus handles GET /api/v1/jobs/:id/status
func (s *Server) handleGetJobStatus(w http.ResponseWriter, r *http.Request, jobID string) {
	job, exists := s.jobManager.GetJob(jobID)
	if !exists {
		http.Error(w, "Job not found", http.StatusNotFound)
		return
	}

	var elapsed time.Duration
	if job.EndTime != nil {
		elapsed = job.EndTime.Sub(job.StartTime)
	} else {
		elapsed = time.Since(job.StartTime)
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"id":          job.ID,
		"state":       job.State,
		"config":      job.Config,
		"steps":       job.Steps,
		"cost":        job.Cost,
		"initialCost": job.InitialCost,
		"evaluations": job.Evaluations,
		"structures":  job.Structures,
		"elapsed":     elapsed.Seconds(),
		"startTime":   job.StartTime,
		"endTime":     job.EndTime,
		"error":       job.Error,
	})
}

// handleListSurfaces handles GET /api/v1/jobs/:id/surfaces
func (s *Server) handleListSurfaces(w http.ResponseWriter, r *http.Request, jobID string) {
	job, ok := s.completedJob(w, jobID)
	if !ok {
		return
	}

	named := job.report.Surfaces()
	summaries := make([]store.SurfaceSummary, len(named))
	for i, n := range named {
		summaries[i] = store.SurfaceSummary{
			Name: n.Name,
			Min:  n.Surface.Min(),
			Max:  n.Surface.Max(),
			Sum:  n.Surface.Sum(),
		}
	}
	writeJSON(w, http.StatusOK, summaries)
}

// handleGetSurface handles GET /api/v1/jobs/:id/surfaces/:name as a
// single-column GEO-EAS grid
func (s *Server) handleGetSurface(w http.ResponseWriter, r *http.Request, jobID, name string) {
	job, ok := s.completedJob(w, jobID)
	if !ok {
		return
	}

	for _, n := range job.report.Surfaces() {
		if n.Name != name {
			continue
		}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Header().Set("Cache-Control", "no-cache")
		if err := grid.WriteGEOEAS(w, jobID, []string{name}, []*spectral.Array{n.Surface}); err != nil {
			slog.Error("Failed to write surface", "job_id", jobID, "surface", name, "error", err)
		}
		return
	}
	http.Error(w, "Surface not found", http.StatusNotFound)
}

func (s *Server) completedJob(w http.ResponseWriter, jobID string) (*Job, bool) {
	job, exists := s.jobManager.GetJob(jobID)
	if !exists {
		http.Error(w, "Job not found", http.StatusNotFound)
		return nil, false
	}
	if job.report == nil {
		http.Error(w, "No results yet", http.StatusNotFound)
		return nil, false
	}
	return job, true
}

// handleRuns handles GET /api/v1/runs
func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.runs == nil {
		http.Error(w, "No run store configured", http.StatusNotFound)
		return
	}

	infos, err := s.runs.ListRuns()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, infos)
}

// handleRunWithID handles GET and DELETE /api/v1/runs/:id
func (s *Server) handleRunWithID(w http.ResponseWriter, r *http.Request) {
	if s.runs == nil {
		http.Error(w, "No run store configured", http.StatusNotFound)
		return
	}

	runID := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/v1/runs/"), "/")
	if runID == "" || strings.Contains(runID, "/") {
		http.Error(w, "Run ID required", http.StatusBadRequest)
		return
	}

	switch r.Method {
	case http.MethodGet:
		report, err := s.runs.LoadReport(runID)
		if err != nil {
			writeStoreError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, report)
	case http.MethodDelete:
		if job, exists := s.jobManager.GetJob(runID); exists && !job.State.Done() {
			http.Error(w, "Run is still in progress", http.StatusConflict)
			return
		}
		if err := s.runs.DeleteRun(runID); err != nil {
			writeStoreError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func writeStoreError(w http.ResponseWriter, err error) {
	if errors.Is(err, store.ErrNotFound) {
		http.Error(w, "Run not found", http.StatusNotFound)
		return
	}
	http.Error(w, err.Error(), http.StatusInternalServerError)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

// corsMiddleware adds CORS headers
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// loggingMiddleware logs HTTP requests
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		slog.Debug("HTTP request", "method", r.Method, "path", r.URL.Path, "duration", time.Since(start))
	})
}
