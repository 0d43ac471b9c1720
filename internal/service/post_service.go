package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/postloom/postloom/internal/models"
	"github.com/postloom/postloom/internal/repository"
	"github.com/postloom/postloom/internal/rules"
	"github.com/postloom/postloom/internal/transfer"
)

// PostScheduler is the slice of the durable runner the scheduling action
// needs: emit the schedule event, cancel a sleeping run.
type PostScheduler interface {
	SchedulePublish(ctx context.Context, postID int64, at time.Time) error
	CancelPublish(ctx context.Context, postID int64) error
}

// PlatformChecker is the one platform query the scheduling action depends
// on, kept narrow so tests can substitute it.
type PlatformChecker interface {
	HasActive(ctx context.Context, userID int64, platform string) (bool, error)
}

type PostService interface {
	SchedulePost(ctx context.Context, userID int64, in *transfer.SchedulePostInput) (*models.Post, error)
	SaveDraft(ctx context.Context, userID int64, in *transfer.DraftPostInput) (*models.Post, error)
	List(ctx context.Context, userID int64) ([]*models.Post, error)
	PostInfo(ctx context.Context, postID, userID int64) (*models.Post, error)
	Remove(ctx context.Context, userID, postID int64) error
}

type postService struct {
	pr        repository.PostRepository
	cp        PlatformChecker
	scheduler PostScheduler
	validate  *validator.Validate
}

func NewPostService(pr repository.PostRepository, cp PlatformChecker, scheduler PostScheduler) PostService {
	return &postService{
		pr:        pr,
		cp:        cp,
		scheduler: scheduler,
		validate:  validator.New(),
	}
}

// SchedulePost is the single entry point that moves a post into the
// scheduled state. Preconditions run in a fixed order and fail fast; the
// row is committed before the schedule event goes out, and an event-send
// failure is logged but never unwinds the commit.
func (s *postService) SchedulePost(ctx context.Context, userID int64, in *transfer.SchedulePostInput) (*models.Post, error) {
	if userID == 0 {
		return nil, ErrNotAuthenticated
	}

	if err := s.validate.Struct(in); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrValidation, firstValidationMessage(err))
	}

	scheduledFor, err := parseScheduledFor(in.ScheduledFor)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid scheduled time format", ErrValidation)
	}
	if !scheduledFor.After(time.Now()) {
		return nil, fmt.Errorf("%w: scheduled time must be in the future", ErrValidation)
	}

	if _, known := rules.ForPlatform(in.Platform); !known {
		return nil, fmt.Errorf("%w: unknown platform %q", ErrValidation, in.Platform)
	}

	connected, err := s.cp.HasActive(ctx, userID, in.Platform)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	if !connected {
		return nil, fmt.Errorf("%w: connect %s before scheduling", ErrPlatformNotConnected, in.Platform)
	}

	post := &models.Post{
		ID:           in.PostID,
		UserID:       userID,
		Platform:     in.Platform,
		Content:      in.Content,
		MediaURLs:    in.MediaURLs,
		ScheduledFor: &scheduledFor,
		Status:       models.PostStatusScheduled,
		Version:      in.Version,
	}

	if in.PostID == 0 {
		post.ID, err = s.pr.Create(ctx, nil, post)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
		}
	} else {
		if err := s.updateExisting(ctx, post); err != nil {
			return nil, err
		}
		// A run for the old time may still sleep under this post's task
		// id. Abort it so the re-emit below carries the new time.
		if err := s.scheduler.CancelPublish(ctx, post.ID); err != nil {
			slog.Error("stale publish run not cancelled before reschedule",
				"post_id", post.ID, "error", err.Error())
		}
	}

	persisted, err := s.pr.GetByID(ctx, post.ID)
	if err != nil || persisted == nil {
		return nil, fmt.Errorf("%w: post %d not readable after write", ErrPersistence, post.ID)
	}

	// Fire-and-forget after commit: the row already says scheduled. A lost
	// event leaves a monitorable gap the reconcile sweep picks up.
	if err := s.scheduler.SchedulePublish(ctx, persisted.ID, scheduledFor); err != nil {
		slog.Error("schedule event emission failed, post remains scheduled without a run",
			"post_id", persisted.ID, "error", err.Error())
	}

	return persisted, nil
}

// updateExisting applies the guarded update and untangles a zero-row
// result into the precise refusal.
func (s *postService) updateExisting(ctx context.Context, post *models.Post) error {
	existing, err := s.pr.GetByIDForUser(ctx, post.ID, post.UserID)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	if existing == nil {
		return ErrNotFound
	}
	if existing.IsTerminal() {
		return ErrImmutableState
	}

	updated, err := s.pr.UpdateScheduled(ctx, post)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	if !updated {
		// The guarded UPDATE matched nothing after a successful read:
		// either a concurrent transition to a terminal state or a stale
		// version from another tab.
		current, err := s.pr.GetByIDForUser(ctx, post.ID, post.UserID)
		if err != nil || current == nil {
			return ErrNotFound
		}
		if current.IsTerminal() {
			return ErrImmutableState
		}
		return ErrConflict
	}
	return nil
}

func (s *postService) SaveDraft(ctx context.Context, userID int64, in *transfer.DraftPostInput) (*models.Post, error) {
	if userID == 0 {
		return nil, ErrNotAuthenticated
	}

	if err := s.validate.Struct(in); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrValidation, firstValidationMessage(err))
	}

	if _, known := rules.ForPlatform(in.Platform); !known {
		return nil, fmt.Errorf("%w: unknown platform %q", ErrValidation, in.Platform)
	}

	post := &models.Post{
		ID:        in.PostID,
		UserID:    userID,
		Platform:  in.Platform,
		Content:   in.Content,
		MediaURLs: in.MediaURLs,
		Status:    models.PostStatusDraft,
		Version:   in.Version,
	}

	var err error
	if in.PostID == 0 {
		post.ID, err = s.pr.Create(ctx, nil, post)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
		}
	} else {
		if err := s.updateExisting(ctx, post); err != nil {
			return nil, err
		}
		// Demoting a scheduled post to a draft must abort its sleeping
		// run, not just rely on the worker skipping a non-scheduled row.
		if err := s.scheduler.CancelPublish(ctx, post.ID); err != nil {
			slog.Error("publish run not cancelled after draft demotion",
				"post_id", post.ID, "error", err.Error())
		}
	}

	persisted, err := s.pr.GetByID(ctx, post.ID)
	if err != nil || persisted == nil {
		return nil, fmt.Errorf("%w: post %d not readable after write", ErrPersistence, post.ID)
	}
	return persisted, nil
}

func (s *postService) List(ctx context.Context, userID int64) ([]*models.Post, error) {
	if userID == 0 {
		return nil, ErrNotAuthenticated
	}
	posts, err := s.pr.ListByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	return posts, nil
}

func (s *postService) PostInfo(ctx context.Context, postID, userID int64) (*models.Post, error) {
	if userID == 0 {
		return nil, ErrNotAuthenticated
	}
	if postID == 0 {
		return nil, ErrNotFound
	}

	post, err := s.pr.GetByIDForUser(ctx, postID, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	if post == nil {
		return nil, ErrNotFound
	}
	return post, nil
}

// Remove deletes a pre-terminal post. When the post was scheduled, the
// sleeping publish run is cancelled best-effort after the row is gone; a
// failed cancel leaves a zombie run the worker later no-ops on.
func (s *postService) Remove(ctx context.Context, userID, postID int64) error {
	if userID == 0 {
		return ErrNotAuthenticated
	}
	if postID == 0 {
		return ErrNotFound
	}

	post, err := s.pr.GetByIDForUser(ctx, postID, userID)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	if post == nil {
		return ErrNotFound
	}
	if post.IsTerminal() {
		return ErrImmutableState
	}

	wasScheduled := post.Status == models.PostStatusScheduled

	if err := s.pr.Remove(ctx, postID); err != nil {
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	if wasScheduled {
		if err := s.scheduler.CancelPublish(ctx, postID); err != nil {
			slog.Error("cancel event emission failed, run will no-op at publish time",
				"post_id", postID, "error", err.Error())
		}
	}

	return nil
}

// parseScheduledFor accepts RFC 3339 and the datetime-local format the
// dashboard's picker submits.
func parseScheduledFor(value string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02T15:04", value)
}

func firstValidationMessage(err error) string {
	var fieldErrors validator.ValidationErrors
	if errors.As(err, &fieldErrors) && len(fieldErrors) > 0 {
		fe := fieldErrors[0]
		switch fe.Tag() {
		case "required":
			return fmt.Sprintf("%s is required", fe.Field())
		case "max":
			return fmt.Sprintf("%s exceeds the maximum length of %s", fe.Field(), fe.Param())
		case "url":
			return fmt.Sprintf("%s must be a valid URL", fe.Field())
		default:
			return fmt.Sprintf("%s is invalid", fe.Field())
		}
	}
	return err.Error()
}
