package job

import (
	"context"
	"log/slog"
	"time"

	"github.com/postloom/postloom/internal/queue"
	"github.com/postloom/postloom/internal/repository"
)

// ReconcileJob sweeps for posts the database says are scheduled but the
// runner has no task for. That window opens when the schedule event fails
// to send after the row commits; the sweep is the monitor that closes it.
type ReconcileJob struct {
	pr        repository.PostRepository
	scheduler queue.Scheduler
}

func NewReconcileJob(pr repository.PostRepository, scheduler queue.Scheduler) *ReconcileJob {
	return &ReconcileJob{
		pr:        pr,
		scheduler: scheduler,
	}
}

// graceWindow keeps the sweep from racing posts the worker is about to
// pick up on time.
const graceWindow = 5 * time.Minute

func (j *ReconcileJob) ReconcileScheduled() {
	ctx := context.Background()

	cutoff := time.Now().Add(-graceWindow)
	posts, err := j.pr.ListScheduledBefore(ctx, cutoff)
	if err != nil {
		slog.Info(err.Error())
		return
	}

	for _, post := range posts {
		pending, err := j.scheduler.HasPendingPublish(ctx, post.ID)
		if err != nil {
			slog.Info(err.Error())
			continue
		}
		if pending {
			continue
		}

		slog.Warn("scheduled post has no publish run, re-enqueueing",
			"post_id", post.ID, "scheduled_for", post.ScheduledFor)

		if err := j.scheduler.SchedulePublish(ctx, post.ID, time.Now()); err != nil {
			slog.Error("re-enqueue failed", "post_id", post.ID, "error", err.Error())
		}
	}
}
