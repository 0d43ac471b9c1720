package job

import (
	"context"
	"testing"
	"time"

	"github.com/postloom/postloom/internal/models"
	"github.com/postloom/postloom/internal/queue"
	"github.com/postloom/postloom/internal/repository"
	"github.com/stretchr/testify/assert"
)

type sweepPostRepo struct {
	repository.PostRepository
	posts []*models.Post
}

func (f *sweepPostRepo) ListScheduledBefore(ctx context.Context, cutoff time.Time) ([]*models.Post, error) {
	return f.posts, nil
}

type sweepScheduler struct {
	queue.Scheduler
	pending   map[int64]bool
	scheduled []int64
}

func (f *sweepScheduler) HasPendingPublish(ctx context.Context, postID int64) (bool, error) {
	return f.pending[postID], nil
}

func (f *sweepScheduler) SchedulePublish(ctx context.Context, postID int64, at time.Time) error {
	f.scheduled = append(f.scheduled, postID)
	return nil
}

func TestReconcileScheduledReenqueuesOrphans(t *testing.T) {
	when := time.Now().Add(-time.Hour)
	repo := &sweepPostRepo{posts: []*models.Post{
		{ID: 1, Status: models.PostStatusScheduled, ScheduledFor: &when},
		{ID: 2, Status: models.PostStatusScheduled, ScheduledFor: &when},
	}}
	sched := &sweepScheduler{pending: map[int64]bool{1: true}}

	NewReconcileJob(repo, sched).ReconcileScheduled()

	// Post 1 still has its run; only the orphaned post 2 is re-enqueued.
	assert.Equal(t, []int64{2}, sched.scheduled)
}

func TestReconcileScheduledNothingToDo(t *testing.T) {
	sched := &sweepScheduler{}

	NewReconcileJob(&sweepPostRepo{}, sched).ReconcileScheduled()

	assert.Empty(t, sched.scheduled)
}
