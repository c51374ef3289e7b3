package queue

import (
	"errors"
	"time"

	"github.com/hibiken/asynq"
)

// Stats aggregates job counts across every delivery queue
type Stats struct {
	Waiting   int `json:"waiting"`
	Active    int `json:"active"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
	Delayed   int `json:"delayed"`
}

// Admin is the operational surface of the delivery queue: counters for
// dashboards, pause/resume, and pruning of finished jobs.
type Admin struct {
	inspector *asynq.Inspector
}

// NewAdmin creates the queue admin surface
func NewAdmin(redisOpt asynq.RedisClientOpt) *Admin {
	return &Admin{inspector: asynq.NewInspector(redisOpt)}
}

// Stats sums the per-queue counters. Queues the broker has not seen yet are
// counted as empty.
func (a *Admin) Stats() (*Stats, error) {
	stats := &Stats{}
	for _, qname := range allQueues() {
		info, err := a.inspector.GetQueueInfo(qname)
		if err != nil {
			if errors.Is(err, asynq.ErrQueueNotFound) {
				continue
			}
			return nil, err
		}
		stats.Waiting += info.Pending
		stats.Active += info.Active
		stats.Completed += info.Completed
		stats.Failed += info.Archived
		stats.Delayed += info.Scheduled + info.Retry
	}
	return stats, nil
}

// Pause stops consumption on every delivery queue; queued jobs are kept and
// in-flight jobs run to completion.
func (a *Admin) Pause() error {
	for _, qname := range allQueues() {
		if err := a.inspector.PauseQueue(qname); err != nil && !errors.Is(err, asynq.ErrQueueNotFound) {
			return err
		}
	}
	return nil
}

// Resume restarts consumption on every delivery queue
func (a *Admin) Resume() error {
	for _, qname := range allQueues() {
		if err := a.inspector.UnpauseQueue(qname); err != nil && !errors.Is(err, asynq.ErrQueueNotFound) {
			return err
		}
	}
	return nil
}

// CleanOldJobs prunes completed and failed jobs older than the grace period,
// returning the number removed.
func (a *Admin) CleanOldJobs(grace time.Duration) (int, error) {
	cutoff := time.Now().Add(-grace)
	removed := 0

	for _, qname := range allQueues() {
		archived, err := a.inspector.ListArchivedTasks(qname, asynq.PageSize(100))
		if err != nil {
			if errors.Is(err, asynq.ErrQueueNotFound) {
				continue
			}
			return removed, err
		}
		for _, task := range archived {
			if task.LastFailedAt.Before(cutoff) {
				if err := a.inspector.DeleteTask(qname, task.ID); err == nil {
					removed++
				}
			}
		}

		completed, err := a.inspector.ListCompletedTasks(qname, asynq.PageSize(100))
		if err != nil {
			if errors.Is(err, asynq.ErrQueueNotFound) {
				continue
			}
			return removed, err
		}
		for _, task := range completed {
			if task.CompletedAt.Before(cutoff) {
				if err := a.inspector.DeleteTask(qname, task.ID); err == nil {
					removed++
				}
			}
		}
	}

	return removed, nil
}
