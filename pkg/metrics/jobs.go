package metrics

import (
	"time"
)

// JobMetrics provides methods to record background task metrics.
type JobMetrics struct {
	registry *Registry
}

// Jobs returns the job metrics interface for the registry.
func (r *Registry) Jobs() *JobMetrics {
	return &JobMetrics{registry: r}
}

// RecordTask records a processed task with its duration. Failed tasks are
// counted in both processed_total and failed_total.
func (j *JobMetrics) RecordTask(task string, duration time.Duration, err error) {
	j.registry.jobsProcessedTotal.WithLabelValues(task).Inc()
	if err != nil {
		j.registry.jobsFailedTotal.WithLabelValues(task).Inc()
	}
	j.registry.jobTaskDuration.WithLabelValues(task).Observe(duration.Seconds())
}

// TaskTimer measures the duration of a single background task.
type TaskTimer struct {
	jobs  *JobMetrics
	task  string
	start time.Time
}

// NewTaskTimer starts a timer for a background task.
func (j *JobMetrics) NewTaskTimer(task string) *TaskTimer {
	return &TaskTimer{
		jobs:  j,
		task:  task,
		start: time.Now(),
	}
}

// Done stops the timer and records the task with its outcome.
func (t *TaskTimer) Done(err error) {
	t.jobs.RecordTask(t.task, time.Since(t.start), err)
}
