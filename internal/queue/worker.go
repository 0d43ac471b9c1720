package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	config "github.com/postloom/postloom/configs"
	"github.com/postloom/postloom/internal/models"
	"github.com/postloom/postloom/internal/repository"
	"github.com/postloom/postloom/internal/service"
)

// rescheduleSlack is how far past its run time the row's scheduled_for
// may sit before the run is treated as stale. It absorbs clock skew and
// slightly early delivery.
const rescheduleSlack = time.Minute

// Worker hosts the task handlers the asynq server runs: the publish
// workflow and the failure handler.
type Worker struct {
	cfg       config.Config
	pr        repository.PostRepository
	cp        repository.PlatformRepository
	ur        repository.UserRepository
	sr        repository.SettingsRepository
	publisher service.Publisher
	mailer    service.Mailer
	scheduler Scheduler
}

func NewWorker(
	cfg config.Config,
	pr repository.PostRepository,
	cp repository.PlatformRepository,
	ur repository.UserRepository,
	sr repository.SettingsRepository,
	publisher service.Publisher,
	mailer service.Mailer,
	scheduler Scheduler) *Worker {
	return &Worker{
		cfg:       cfg,
		pr:        pr,
		cp:        cp,
		ur:        ur,
		sr:        sr,
		publisher: publisher,
		mailer:    mailer,
		scheduler: scheduler,
	}
}

// HandlePublishPost runs when a scheduled post's time arrives. A missing
// or no-longer-scheduled row means the post was deleted or edited while
// the task slept; that run is a benign no-op, never an error.
func (w *Worker) HandlePublishPost(ctx context.Context, task *asynq.Task) error {
	var payload PublishPostPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("bad publish payload: %v: %w", err, asynq.SkipRetry)
	}

	post, err := w.pr.GetByID(ctx, payload.PostID)
	if err != nil {
		return err
	}
	if post == nil {
		slog.Info("publish task found no post, skipping", "post_id", payload.PostID)
		return nil
	}
	if post.Status != models.PostStatusScheduled {
		slog.Info("post is no longer scheduled, skipping", "post_id", post.ID, "status", post.Status)
		return nil
	}
	if post.ScheduledFor != nil && time.Until(*post.ScheduledFor) > rescheduleSlack {
		// A stale run from before a reschedule. The row holds the truth;
		// drop this run and sleep until the row's time.
		slog.Warn("publish run fired before the post's scheduled time, rescheduling",
			"post_id", post.ID, "scheduled_for", post.ScheduledFor)
		if err := w.scheduler.SchedulePublish(ctx, post.ID, *post.ScheduledFor); err != nil {
			slog.Error("reschedule of early publish run failed, leaving it to the sweep",
				"post_id", post.ID, "error", err.Error())
		}
		return nil
	}

	account, err := w.cp.GetActive(ctx, post.UserID, post.Platform)
	if err != nil {
		return err
	}
	if account == nil {
		// Nothing a retry can fix; hand straight to the failure handler.
		return w.exhaust(ctx, post.ID, fmt.Sprintf("no connected %s account", post.Platform))
	}

	result, err := w.publisher.Publish(ctx, account.ProfileID, post)
	if err != nil {
		retried, _ := asynq.GetRetryCount(ctx)
		maxRetry, _ := asynq.GetMaxRetry(ctx)
		if retried >= maxRetry {
			return w.exhaust(ctx, post.ID, err.Error())
		}
		return err
	}

	if err := w.pr.MarkPublished(ctx, post.ID, time.Now(), result.PostID, result.PublicURL); err != nil {
		// The platform accepted the post; retrying the whole task would
		// double-publish. Surface the write failure without a retry.
		slog.Error("post published but status write failed", "post_id", post.ID, "error", err.Error())
		return fmt.Errorf("status write failed: %v: %w", err, asynq.SkipRetry)
	}

	slog.Info("post published", "post_id", post.ID, "platform", post.Platform, "url", result.PublicURL)
	return nil
}

// exhaust hands the post to the failure handler and stops retrying the
// publish task. If the handoff itself fails the error propagates so asynq
// retries the handoff rather than the publish call.
func (w *Worker) exhaust(ctx context.Context, postID int64, reason string) error {
	if err := w.scheduler.EnqueueFailure(ctx, postID, reason); err != nil {
		slog.Error("failed to enqueue failure handling", "post_id", postID, "error", err.Error())
		return err
	}
	return fmt.Errorf("publish attempts exhausted for post %d: %w", postID, asynq.SkipRetry)
}

// HandlePublishFailed is the failure handler: record the terminal state
// first, then decide about notification. The status write is guarded so a
// retry for the email's sake never rewrites it.
func (w *Worker) HandlePublishFailed(ctx context.Context, task *asynq.Task) error {
	var payload PublishFailedPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("bad failure payload: %v: %w", err, asynq.SkipRetry)
	}

	post, err := w.pr.GetByID(ctx, payload.PostID)
	if err != nil {
		return err
	}
	if post == nil {
		slog.Info("failure handling found no post, skipping", "post_id", payload.PostID)
		return nil
	}

	marked, err := w.pr.MarkFailed(ctx, post.ID, payload.Reason)
	if err != nil {
		return err
	}
	if marked {
		slog.Info("post marked failed", "post_id", post.ID, "reason", payload.Reason)
	}

	settings, found, err := w.sr.GetByUserID(ctx, post.UserID)
	if err != nil {
		return err
	}
	if found && !settings.NotifyOnFailure {
		return nil
	}

	// Separate user fetch: a broken join or a deleted account must not
	// block the status write above, only the email.
	user, found, err := w.ur.GetByID(ctx, post.UserID)
	if err != nil {
		return err
	}
	if !found {
		slog.Info("post owner no longer exists, skipping notification", "post_id", post.ID, "user_id", post.UserID)
		return nil
	}

	data := map[string]string{
		"excerpt":  excerpt(post.Content, 100),
		"platform": post.Platform,
		"reason":   payload.Reason,
		"edit_url": fmt.Sprintf("%s/posts/%d/edit", w.cfg.FrontendURL, post.ID),
	}
	if err := w.mailer.SendTemplate(ctx, user.Email, w.cfg.FailureTemplateID, data); err != nil {
		slog.Error("failure notification email failed", "post_id", post.ID, "error", err.Error())
		return err
	}

	return nil
}

func excerpt(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
