package server

import (
	"testing"
	"time"

	"github.com/cwbudde/varmapfit/internal/config"
)

func testSession(t *testing.T) *config.Session {
	t.Helper()
	s, err := config.Parse([]byte("grid: {ni: 4, nj: 4, cell_size_i: 1, cell_size_j: 1}\ndata: {path: field.dat, variable: value}\nstrategy: genetic\n"))
	if err != nil {
		t.Fatalf("Failed to parse session: %v", err)
	}
	return s
}

func TestJobManager_CreateJob(t *testing.T) {
	jm := NewJobManager()

	job := jm.CreateJob(testSession(t))

	if job.ID == "" {
		t.Error("Job ID should not be empty")
	}
	if job.State != StatePending {
		t.Errorf("Initial state should be pending, got %s", job.State)
	}
	if job.Config.DataPath != "field.dat" || job.Config.Strategy != config.StrategyGenetic {
		t.Errorf("Config not set correctly: %+v", job.Config)
	}
}

func TestJobManager_GetJob(t *testing.T) {
	jm := NewJobManager()
	job := jm.CreateJob(testSession(t))

	retrieved, exists := jm.GetJob(job.ID)
	if !exists {
		t.Fatal("Job should exist")
	}
	if retrieved.ID != job.ID {
		t.Error("Retrieved wrong job")
	}

	if _, exists := jm.GetJob("nonexistent"); exists {
		t.Error("Should not find nonexistent job")
	}
}

func TestJobManager_SnapshotSamplesProgress(t *testing.T) {
	jm := NewJobManager()
	job := jm.CreateJob(testSession(t))

	jm.UpdateJob(job.ID, func(j *Job) {
		j.progress.Add(7)
	})

	retrieved, _ := jm.GetJob(job.ID)
	if retrieved.Steps != 7 {
		t.Errorf("Expected 7 steps, got %d", retrieved.Steps)
	}

	// Snapshots are copies
	retrieved.State = StateFailed
	again, _ := jm.GetJob(job.ID)
	if again.State != StatePending {
		t.Errorf("Mutating a snapshot must not change the job, got %s", again.State)
	}
}

func TestJobManager_ListJobs(t *testing.T) {
	jm := NewJobManager()

	if len(jm.ListJobs()) != 0 {
		t.Error("Should start with no jobs")
	}

	first := jm.CreateJob(testSession(t))
	time.Sleep(time.Millisecond)
	second := jm.CreateJob(testSession(t))

	jobs := jm.ListJobs()
	if len(jobs) != 2 {
		t.Fatalf("Expected 2 jobs, got %d", len(jobs))
	}
	if jobs[0].ID != first.ID || jobs[1].ID != second.ID {
		t.Error("Jobs should be listed oldest first")
	}
}

func TestJobManager_UpdateJob(t *testing.T) {
	jm := NewJobManager()
	job := jm.CreateJob(testSession(t))

	err := jm.UpdateJob(job.ID, func(j *Job) {
		j.State = StateRunning
		j.Cost = 1.5
	})
	if err != nil {
		t.Fatalf("UpdateJob should succeed: %v", err)
	}

	updated, _ := jm.GetJob(job.ID)
	if updated.State != StateRunning || updated.Cost != 1.5 {
		t.Errorf("Job not updated: %+v", updated)
	}
	if len(jm.GetRunningJobs()) != 1 {
		t.Error("Expected one running job")
	}

	if err := jm.UpdateJob("nonexistent", func(j *Job) {}); err == nil {
		t.Error("UpdateJob should fail for nonexistent job")
	}
}

func TestJobState_Done(t *testing.T) {
	for state, done := range map[JobState]bool{
		StatePending:   false,
		StateRunning:   false,
		StateCompleted: true,
		StateFailed:    true,
	} {
		if state.Done() != done {
			t.Errorf("%s: expected Done() = %v", state, done)
		}
	}
}

func TestEventBroadcaster(t *testing.T) {
	eb := NewEventBroadcaster()

	ch := eb.Subscribe("job1")

	eb.Broadcast(ProgressEvent{
		JobID:     "job1",
		State:     StateRunning,
		Steps:     10,
		Timestamp: time.Now(),
	})

	select {
	case received := <-ch:
		if received.JobID != "job1" {
			t.Errorf("Expected jobID job1, got %s", received.JobID)
		}
		if received.Steps != 10 {
			t.Errorf("Expected 10 steps, got %d", received.Steps)
		}
	case <-time.After(time.Second):
		t.Fatal("Timeout waiting for event")
	}

	// Late subscribers get the last event replayed
	late := eb.Subscribe("job1")
	select {
	case replayed := <-late:
		if replayed.Steps != 10 {
			t.Errorf("Expected replayed event with 10 steps, got %d", replayed.Steps)
		}
	case <-time.After(time.Second):
		t.Fatal("Timeout waiting for replayed event")
	}

	eb.Unsubscribe("job1", ch)
	eb.CleanupJob("job1")
	// Unsubscribing after cleanup must not close the channel twice
	eb.Unsubscribe("job1", late)

	if _, ok := <-late; ok {
		t.Error("Channel should be closed after cleanup")
	}
}
