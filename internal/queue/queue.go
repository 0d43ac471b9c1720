package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
)

const (
	TaskTypePublishPost   = "post:publish"
	TaskTypePublishFailed = "post:publish:failed"

	queueName = "default"
)

type PublishPostPayload struct {
	PostID       int64     `json:"post_id"`
	ScheduledFor time.Time `json:"scheduled_for"`
}

type PublishFailedPayload struct {
	PostID int64  `json:"post_id"`
	Reason string `json:"reason"`
}

// publishTaskID is the correlation key between a scheduled publish run and
// a later cancellation. It must be a pure function of the post id.
func publishTaskID(postID int64) string {
	return fmt.Sprintf("post:publish:%d", postID)
}

// Scheduler is the service layer's view of the durable runner: emit a
// schedule event, cancel a sleeping run, or probe for one.
type Scheduler interface {
	SchedulePublish(ctx context.Context, postID int64, at time.Time) error
	CancelPublish(ctx context.Context, postID int64) error
	HasPendingPublish(ctx context.Context, postID int64) (bool, error)
	EnqueueFailure(ctx context.Context, postID int64, reason string) error
}

type asynqScheduler struct {
	client          *asynq.Client
	inspector       *asynq.Inspector
	publishMaxRetry int
	notifyMaxRetry  int
}

func NewScheduler(client *asynq.Client, inspector *asynq.Inspector, publishMaxRetry, notifyMaxRetry int) Scheduler {
	return &asynqScheduler{
		client:          client,
		inspector:       inspector,
		publishMaxRetry: publishMaxRetry,
		notifyMaxRetry:  notifyMaxRetry,
	}
}

// SchedulePublish enqueues the publish task to run at the scheduled time.
// The deterministic task id lets a later delete find and abort the run. An
// id conflict means a run for this post already sleeps, necessarily with
// an older time; that run is deleted and the enqueue retried so the latest
// schedule always wins.
func (s *asynqScheduler) SchedulePublish(ctx context.Context, postID int64, at time.Time) error {
	payload, err := json.Marshal(PublishPostPayload{PostID: postID, ScheduledFor: at})
	if err != nil {
		return err
	}

	task := asynq.NewTask(TaskTypePublishPost, payload)
	opts := []asynq.Option{
		asynq.ProcessAt(at),
		asynq.TaskID(publishTaskID(postID)),
		asynq.MaxRetry(s.publishMaxRetry),
		asynq.Queue(queueName),
	}

	_, err = s.client.EnqueueContext(ctx, task, opts...)
	if errors.Is(err, asynq.ErrTaskIDConflict) {
		slog.Warn("publish task already queued, replacing", "post_id", postID, "at", at)
		if derr := s.inspector.DeleteTask(queueName, publishTaskID(postID)); derr != nil &&
			!errors.Is(derr, asynq.ErrTaskNotFound) && !errors.Is(derr, asynq.ErrQueueNotFound) {
			return derr
		}
		_, err = s.client.EnqueueContext(ctx, task, opts...)
	}
	if err != nil {
		return err
	}

	slog.Info("publish task scheduled", "post_id", postID, "at", at)
	return nil
}

// CancelPublish deletes the sleeping publish task correlated to the post.
// A task that already ran or never existed is not an error.
func (s *asynqScheduler) CancelPublish(ctx context.Context, postID int64) error {
	err := s.inspector.DeleteTask(queueName, publishTaskID(postID))
	if err != nil {
		if errors.Is(err, asynq.ErrTaskNotFound) || errors.Is(err, asynq.ErrQueueNotFound) {
			return nil
		}
		return err
	}
	slog.Info("publish task cancelled", "post_id", postID)
	return nil
}

func (s *asynqScheduler) HasPendingPublish(ctx context.Context, postID int64) (bool, error) {
	info, err := s.inspector.GetTaskInfo(queueName, publishTaskID(postID))
	if err != nil {
		if errors.Is(err, asynq.ErrTaskNotFound) || errors.Is(err, asynq.ErrQueueNotFound) {
			return false, nil
		}
		return false, err
	}

	switch info.State {
	case asynq.TaskStateScheduled, asynq.TaskStatePending, asynq.TaskStateActive, asynq.TaskStateRetry:
		return true, nil
	}
	return false, nil
}

// EnqueueFailure hands an exhausted publish attempt to the failure handler
// task, which runs with its own small retry budget.
func (s *asynqScheduler) EnqueueFailure(ctx context.Context, postID int64, reason string) error {
	payload, err := json.Marshal(PublishFailedPayload{PostID: postID, Reason: reason})
	if err != nil {
		return err
	}

	task := asynq.NewTask(TaskTypePublishFailed, payload)
	_, err = s.client.EnqueueContext(ctx, task,
		asynq.MaxRetry(s.notifyMaxRetry),
		asynq.Queue(queueName),
	)
	return err
}
