package server

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/cwbudde/varmapfit/internal/config"
	"github.com/cwbudde/varmapfit/internal/runner"
	"github.com/cwbudde/varmapfit/internal/store"
)

// writeField synthesizes a small data file and returns a session body that
// fits it with a short particle swarm run
func writeField(t *testing.T) string {
	t.Helper()
	dataPath := filepath.Join(t.TempDir(), "field.dat")

	body := fmt.Sprintf(`
grid: {ni: 16, nj: 16, cell_size_i: 1, cell_size_j: 1}
data: {path: %q, variable: value}
structures: 1
strategy: particle-swarm
seed: 3
threads: 2
swarm: {particles: 5, max_steps: 3}
synthesis:
  seed: 8
  model:
    - {range: 6, range_ratio: 0.5, azimuth: 45, contribution: 1}
`, dataPath)

	session, err := config.Parse([]byte(body))
	if err != nil {
		t.Fatalf("Failed to parse session: %v", err)
	}
	if err := runner.Synthesize(session, dataPath); err != nil {
		t.Fatalf("Failed to synthesize field: %v", err)
	}
	return body
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	runStore, err := store.NewFSStore(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	return NewServer(":0", runStore)
}

func submitJob(t *testing.T, s *Server, body string) *Job {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/jobs", strings.NewReader(body))
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("Expected status 201, got %d: %s", w.Code, w.Body.String())
	}

	var job Job
	if err := json.NewDecoder(w.Body).Decode(&job); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if job.ID == "" {
		t.Fatal("Job ID should not be empty")
	}
	return &job
}

func get(t *testing.T, s *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func TestServer_JobLifecycle(t *testing.T) {
	s := newTestServer(t)
	job := submitJob(t, s, writeField(t))
	s.jobs.Wait()

	w := get(t, s, "/api/v1/jobs/"+job.ID+"/status")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	var status map[string]interface{}
	if err := json.NewDecoder(w.Body).Decode(&status); err != nil {
		t.Fatalf("Failed to decode status: %v", err)
	}
	if status["state"] != string(StateCompleted) {
		t.Fatalf("Expected completed job, got %v (error %v)", status["state"], status["error"])
	}
	if steps, _ := status["steps"].(float64); steps <= 0 {
		t.Errorf("Expected progress steps to be recorded, got %v", status["steps"])
	}

	w = get(t, s, "/api/v1/jobs/"+job.ID+"/surfaces")
	var surfaces []store.SurfaceSummary
	if err := json.NewDecoder(w.Body).Decode(&surfaces); err != nil {
		t.Fatalf("Failed to decode surfaces: %v", err)
	}
	if len(surfaces) != 8 {
		t.Errorf("Expected 8 surfaces for one structure, got %d", len(surfaces))
	}

	w = get(t, s, "/api/v1/jobs/"+job.ID+"/surfaces/model")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200 for model surface, got %d", w.Code)
	}
	lines := strings.Split(strings.TrimSpace(w.Body.String()), "\n")
	if len(lines) != 3+256 {
		t.Errorf("Expected header plus 256 values, got %d lines", len(lines))
	}

	if w := get(t, s, "/api/v1/jobs/"+job.ID+"/surfaces/nope"); w.Code != http.StatusNotFound {
		t.Errorf("Expected 404 for unknown surface, got %d", w.Code)
	}

	// The job is published as a run under the same ID
	w = get(t, s, "/api/v1/runs/"+job.ID)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected stored run, got %d", w.Code)
	}
	var report store.Report
	if err := json.NewDecoder(w.Body).Decode(&report); err != nil {
		t.Fatalf("Failed to decode report: %v", err)
	}
	if report.Config.Strategy != config.StrategySwarm {
		t.Errorf("Expected swarm strategy, got %s", report.Config.Strategy)
	}

	w = get(t, s, "/api/v1/runs")
	var infos []store.RunInfo
	if err := json.NewDecoder(w.Body).Decode(&infos); err != nil {
		t.Fatalf("Failed to decode runs: %v", err)
	}
	if len(infos) != 1 || infos[0].RunID != job.ID {
		t.Errorf("Expected the job's run in the listing, got %+v", infos)
	}

	del := httptest.NewRecorder()
	s.Handler().ServeHTTP(del, httptest.NewRequest(http.MethodDelete, "/api/v1/runs/"+job.ID, nil))
	if del.Code != http.StatusNoContent {
		t.Errorf("Expected 204 on delete, got %d", del.Code)
	}
	if w := get(t, s, "/api/v1/runs/"+job.ID); w.Code != http.StatusNotFound {
		t.Errorf("Expected 404 after delete, got %d", w.Code)
	}
}

func TestServer_CreateJob_Invalid(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name string
		body string
	}{
		{"malformed yaml", "grid: [1"},
		{"invalid grid", "grid: {ni: 0, nj: 4, cell_size_i: 1, cell_size_j: 1}"},
		{"missing data", "grid: {ni: 4, nj: 4, cell_size_i: 1, cell_size_j: 1}"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/v1/jobs", strings.NewReader(tt.body))
			w := httptest.NewRecorder()
			s.Handler().ServeHTTP(w, req)
			if w.Code != http.StatusBadRequest {
				t.Errorf("Expected status 400, got %d", w.Code)
			}
		})
	}

	if len(s.jobManager.ListJobs()) != 0 {
		t.Error("Rejected sessions must not create jobs")
	}
}

func TestServer_FailedJob(t *testing.T) {
	s := newTestServer(t)
	body := "grid: {ni: 8, nj: 8, cell_size_i: 1, cell_size_j: 1}\ndata: {path: /nonexistent/field.dat, variable: value}\n"
	job := submitJob(t, s, body)
	s.jobs.Wait()

	updated, _ := s.jobManager.GetJob(job.ID)
	if updated.State != StateFailed {
		t.Errorf("Expected failed job, got %s", updated.State)
	}
	if updated.Error == "" {
		t.Error("Failed job should carry an error message")
	}
	if w := get(t, s, "/api/v1/jobs/"+job.ID+"/surfaces"); w.Code != http.StatusNotFound {
		t.Errorf("Expected 404 for surfaces of a failed job, got %d", w.Code)
	}
}

func TestServer_NotFound(t *testing.T) {
	s := newTestServer(t)

	for _, path := range []string{
		"/api/v1/jobs/nonexistent",
		"/api/v1/jobs/nonexistent/stream",
		"/api/v1/jobs/nonexistent/other/x",
		"/api/v1/runs/nonexistent",
	} {
		if w := get(t, s, path); w.Code != http.StatusNotFound {
			t.Errorf("%s: expected 404, got %d", path, w.Code)
		}
	}
}

func TestServer_ListJobs(t *testing.T) {
	s := newTestServer(t)
	session, err := config.Parse([]byte("grid: {ni: 4, nj: 4, cell_size_i: 1, cell_size_j: 1}"))
	if err != nil {
		t.Fatal(err)
	}

	s.jobManager.CreateJob(session)
	s.jobManager.CreateJob(session)

	var jobs []*Job
	if err := json.NewDecoder(get(t, s, "/api/v1/jobs").Body).Decode(&jobs); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if len(jobs) != 2 {
		t.Errorf("Expected 2 jobs, got %d", len(jobs))
	}
}

func TestServer_JobStream_SSE(t *testing.T) {
	s := newTestServer(t)
	job := submitJob(t, s, writeField(t))

	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	client := &http.Client{Timeout: 30 * time.Second}
	resp, err := client.Get(srv.URL + "/api/v1/jobs/" + job.ID + "/stream")
	if err != nil {
		t.Fatalf("Stream request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.Header.Get("Content-Type") != "text/event-stream" {
		t.Errorf("Expected text/event-stream content type, got %s", resp.Header.Get("Content-Type"))
	}

	// The stream ends after the final event
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("Failed to read stream: %v", err)
	}
	s.jobs.Wait()

	events := strings.Split(strings.TrimSpace(string(raw)), "\n\n")
	var last ProgressEvent
	if err := json.Unmarshal([]byte(strings.TrimPrefix(events[len(events)-1], "data: ")), &last); err != nil {
		t.Fatalf("Failed to decode last event %q: %v", events[len(events)-1], err)
	}
	if last.State != StateCompleted {
		t.Errorf("Expected final event to be completed, got %s", last.State)
	}
}

func TestServer_RunsWithoutStore(t *testing.T) {
	s := NewServer(":0", nil)
	if w := get(t, s, "/api/v1/runs"); w.Code != http.StatusNotFound {
		t.Errorf("Expected 404 without a store, got %d", w.Code)
	}
}

func TestMain(m *testing.M) {
	progressInterval = 10 * time.Millisecond
	os.Exit(m.Run())
}
