package server

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cwbudde/varmapfit/internal/config"
	"github.com/cwbudde/varmapfit/internal/fit"
	"github.com/cwbudde/varmapfit/internal/opt"
	"github.com/cwbudde/varmapfit/internal/runner"
	"github.com/cwbudde/varmapfit/internal/store"
)

// JobState represents the current state of a job
type JobState string

const (
	StatePending   JobState = "pending"
	StateRunning   JobState = "running"
	StateCompleted JobState = "completed"
	StateFailed    JobState = "failed"
)

// Done reports whether the job reached a final state
func (s JobState) Done() bool {
	return s == StateCompleted || s == StateFailed
}

// Job represents a fitting job. Its ID doubles as the run ID in the store.
type Job struct {
	ID          string                  `json:"id"`
	State       JobState                `json:"state"`
	Config      store.RunConfig         `json:"config"`
	Steps       int64                   `json:"steps"`
	Cost        float64                 `json:"cost"`
	InitialCost float64                 `json:"initialCost"`
	Evaluations int64                   `json:"evaluations"`
	Structures  []store.StructureRecord `json:"structures,omitempty"`
	StartTime   time.Time               `json:"startTime"`
	EndTime     *time.Time              `json:"endTime,omitempty"`
	Error       string                  `json:"error,omitempty"`

	session  *config.Session
	progress *opt.Progress
	report   *fit.Report
}

// JobManager manages the lifecycle of jobs
type JobManager struct {
	mu          sync.RWMutex
	jobs        map[string]*Job
	broadcaster *EventBroadcaster
}

// NewJobManager creates a new JobManager
func NewJobManager() *JobManager {
	return &JobManager{
		jobs:        make(map[string]*Job),
		broadcaster: NewEventBroadcaster(),
	}
}

// CreateJob registers a pending job for the session
func (jm *JobManager) CreateJob(session *config.Session) *Job {
	jm.mu.Lock()
	defer jm.mu.Unlock()

	job := &Job{
		ID:        uuid.New().String(),
		State:     StatePending,
		Config:    runner.RunConfig(session),
		StartTime: time.Now(),
		session:   session,
		progress:  &opt.Progress{},
	}

	jm.jobs[job.ID] = job
	return job.snapshot()
}

// snapshot copies the job and samples its progress counter
func (j *Job) snapshot() *Job {
	c := *j
	if j.progress != nil {
		c.Steps = j.progress.Value()
	}
	return &c
}

// GetJob returns a snapshot of the job
func (jm *JobManager) GetJob(id string) (*Job, bool) {
	jm.mu.RLock()
	defer jm.mu.RUnlock()

	job, exists := jm.jobs[id]
	if !exists {
		return nil, false
	}
	return job.snapshot(), true
}

// ListJobs returns snapshots of all jobs, oldest first
func (jm *JobManager) ListJobs() []*Job {
	jm.mu.RLock()
	defer jm.mu.RUnlock()

	jobs := make([]*Job, 0, len(jm.jobs))
	for _, job := range jm.jobs {
		jobs = append(jobs, job.snapshot())
	}
	sort.Slice(jobs, func(a, b int) bool {
		return jobs[a].StartTime.Before(jobs[b].StartTime)
	})
	return jobs
}

// UpdateJob atomically updates a job using the provided function
func (jm *JobManager) UpdateJob(id string, updateFn func(*Job)) error {
	jm.mu.Lock()
	defer jm.mu.Unlock()

	job, exists := jm.jobs[id]
	if !exists {
		return fmt.Errorf("job not found: %s", id)
	}

	updateFn(job)
	return nil
}

// GetRunningJobs returns all jobs currently in the running state
func (jm *JobManager) GetRunningJobs() []*Job {
	jm.mu.RLock()
	defer jm.mu.RUnlock()

	runningJobs := make([]*Job, 0)
	for _, job := range jm.jobs {
		if job.State == StateRunning {
			runningJobs = append(runningJobs, job.snapshot())
		}
	}
	return runningJobs
}
