package server

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/cwbudde/varmapfit/internal/runner"
)

// progressInterval throttles progress events
var progressInterval = 500 * time.Millisecond

// runJob executes a fitting job and publishes it into the job's output store.
// The optimizers cannot be interrupted, so a started job always runs to the end.
func runJob(jm *JobManager, jobID string) error {
	job, exists := jm.GetJob(jobID)
	if !exists {
		return fmt.Errorf("job not found: %s", jobID)
	}

	err := jm.UpdateJob(jobID, func(j *Job) {
		j.State = StateRunning
	})
	if err != nil {
		return err
	}

	slog.Info("Starting job", "job_id", jobID, "data", job.Config.DataPath, "strategy", job.Config.Strategy)

	progressDone := make(chan struct{})
	monitorStopped := make(chan struct{})
	go func() {
		monitorProgress(jm, jobID, progressDone)
		close(monitorStopped)
	}()

	outcome, err := runner.Fit(job.session, jobID, job.progress)
	close(progressDone)
	<-monitorStopped

	if err != nil {
		markJobFailed(jm, jobID, err)
		return err
	}

	result := outcome.Result
	endTime := time.Now()
	err = jm.UpdateJob(jobID, func(j *Job) {
		j.State = StateCompleted
		j.Cost = result.Cost
		j.InitialCost = result.InitialCost
		j.Evaluations = result.Evaluations
		j.Structures = runner.StructureRecords(result.Structures)
		j.report = outcome.Report
		j.EndTime = &endTime
	})
	if err != nil {
		return err
	}

	slog.Info("Job completed",
		"job_id", jobID,
		"elapsed", outcome.Duration,
		"initial_cost", result.InitialCost,
		"cost", result.Cost,
		"evaluations", result.Evaluations,
	)

	broadcastState(jm, jobID)
	return nil
}

// monitorProgress periodically broadcasts progress events during optimization
func monitorProgress(jm *JobManager, jobID string, done chan struct{}) {
	ticker := time.NewTicker(progressInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if !broadcastState(jm, jobID) {
				return
			}
		}
	}
}

// broadcastState sends the current job state to all subscribers
func broadcastState(jm *JobManager, jobID string) bool {
	job, exists := jm.GetJob(jobID)
	if !exists {
		return false
	}

	jm.broadcaster.Broadcast(newProgressEvent(job))
	return true
}

// markJobFailed marks a job as failed with an error message
func markJobFailed(jm *JobManager, jobID string, err error) {
	endTime := time.Now()
	jm.UpdateJob(jobID, func(j *Job) {
		j.State = StateFailed
		j.Error = err.Error()
		j.EndTime = &endTime
	})
	slog.Error("Job failed", "job_id", jobID, "error", err)
	broadcastState(jm, jobID)
}
