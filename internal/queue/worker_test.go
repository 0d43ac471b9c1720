package queue

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	config "github.com/postloom/postloom/configs"
	"github.com/postloom/postloom/internal/models"
	"github.com/postloom/postloom/internal/repository"
	"github.com/postloom/postloom/internal/transfer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type workerPostRepo struct {
	repository.PostRepository
	post          *models.Post
	published     bool
	publishedID   string
	publishedURL  string
	failedReason  string
	markFailedHit int
}

func (f *workerPostRepo) GetByID(ctx context.Context, id int64) (*models.Post, error) {
	if f.post == nil || f.post.ID != id {
		return nil, nil
	}
	cp := *f.post
	return &cp, nil
}

func (f *workerPostRepo) MarkPublished(ctx context.Context, id int64, publishedAt time.Time, externalPostID, publicURL string) error {
	f.published = true
	f.publishedID = externalPostID
	f.publishedURL = publicURL
	f.post.Status = models.PostStatusPublished
	return nil
}

func (f *workerPostRepo) MarkFailed(ctx context.Context, id int64, reason string) (bool, error) {
	f.markFailedHit++
	if f.post.Status == models.PostStatusFailed {
		return false, nil
	}
	f.post.Status = models.PostStatusFailed
	f.failedReason = reason
	return true, nil
}

type workerPlatformRepo struct {
	repository.PlatformRepository
	account *models.ConnectedPlatform
}

func (f *workerPlatformRepo) GetActive(ctx context.Context, userID int64, platform string) (*models.ConnectedPlatform, error) {
	return f.account, nil
}

type workerUserRepo struct {
	repository.UserRepository
	user *models.User
}

func (f *workerUserRepo) GetByID(ctx context.Context, id int64) (*models.User, bool, error) {
	if f.user == nil {
		return nil, false, nil
	}
	return f.user, true, nil
}

type workerSettingsRepo struct {
	repository.SettingsRepository
	settings *models.Settings
}

func (f *workerSettingsRepo) GetByUserID(ctx context.Context, userID int64) (*models.Settings, bool, error) {
	if f.settings == nil {
		return nil, false, nil
	}
	return f.settings, true, nil
}

type fakePublisher struct {
	result    *transfer.LatePublishResponse
	err       error
	calls     int
	profileID string
}

func (f *fakePublisher) Publish(ctx context.Context, profileID string, post *models.Post) (*transfer.LatePublishResponse, error) {
	f.calls++
	f.profileID = profileID
	return f.result, f.err
}

type fakeMailer struct {
	err   error
	sent  int
	to    string
	tmpl  string
	data  map[string]string
	calls []map[string]string
}

func (f *fakeMailer) SendTemplate(ctx context.Context, to, templateID string, data map[string]string) error {
	f.sent++
	f.to = to
	f.tmpl = templateID
	f.data = data
	f.calls = append(f.calls, data)
	return f.err
}

type captureScheduler struct {
	Scheduler
	failures    []PublishFailedPayload
	rescheduled []time.Time
	err         error
}

func (f *captureScheduler) EnqueueFailure(ctx context.Context, postID int64, reason string) error {
	f.failures = append(f.failures, PublishFailedPayload{PostID: postID, Reason: reason})
	return f.err
}

func (f *captureScheduler) SchedulePublish(ctx context.Context, postID int64, at time.Time) error {
	f.rescheduled = append(f.rescheduled, at)
	return nil
}

func scheduledPost() *models.Post {
	when := time.Now().Add(-time.Minute)
	return &models.Post{
		ID:       42,
		UserID:   7,
		Platform: "twitter",
		Content:  "launch day!",
		Status:   models.PostStatusScheduled,
		MediaURLs: []string{
			"https://cdn.example.com/a.jpg",
		},
		ScheduledFor: &when,
	}
}

func publishTask(t *testing.T, postID int64) *asynq.Task {
	t.Helper()
	payload, err := json.Marshal(PublishPostPayload{PostID: postID, ScheduledFor: time.Now()})
	require.NoError(t, err)
	return asynq.NewTask(TaskTypePublishPost, payload)
}

func failedTask(t *testing.T, postID int64, reason string) *asynq.Task {
	t.Helper()
	payload, err := json.Marshal(PublishFailedPayload{PostID: postID, Reason: reason})
	require.NoError(t, err)
	return asynq.NewTask(TaskTypePublishFailed, payload)
}

func newTestWorker(pr *workerPostRepo, cp *workerPlatformRepo, ur *workerUserRepo, sr *workerSettingsRepo, pub *fakePublisher, mailer *fakeMailer, sched *captureScheduler) *Worker {
	cfg := config.Config{FrontendURL: "https://app.example.com", FailureTemplateID: "post-failed"}
	return NewWorker(cfg, pr, cp, ur, sr, pub, mailer, sched)
}

func TestHandlePublishPost_Success(t *testing.T) {
	pr := &workerPostRepo{post: scheduledPost()}
	cp := &workerPlatformRepo{account: &models.ConnectedPlatform{ProfileID: "prof-1", Active: true}}
	pub := &fakePublisher{result: &transfer.LatePublishResponse{PostID: "ext-9", PublicURL: "https://twitter.com/x/status/9"}}
	w := newTestWorker(pr, cp, nil, nil, pub, &fakeMailer{}, &captureScheduler{})

	err := w.HandlePublishPost(context.Background(), publishTask(t, 42))

	require.NoError(t, err)
	assert.Equal(t, 1, pub.calls)
	assert.Equal(t, "prof-1", pub.profileID)
	assert.True(t, pr.published)
	assert.Equal(t, "ext-9", pr.publishedID)
	assert.Equal(t, "https://twitter.com/x/status/9", pr.publishedURL)
}

func TestHandlePublishPost_MissingPostIsNoop(t *testing.T) {
	pr := &workerPostRepo{post: nil}
	pub := &fakePublisher{}
	w := newTestWorker(pr, &workerPlatformRepo{}, nil, nil, pub, &fakeMailer{}, &captureScheduler{})

	// The zombie-run case: the post was deleted while the run slept.
	err := w.HandlePublishPost(context.Background(), publishTask(t, 42))

	require.NoError(t, err)
	assert.Zero(t, pub.calls)
}

func TestHandlePublishPost_UnscheduledPostIsNoop(t *testing.T) {
	post := scheduledPost()
	post.Status = models.PostStatusDraft
	pr := &workerPostRepo{post: post}
	pub := &fakePublisher{}
	w := newTestWorker(pr, &workerPlatformRepo{}, nil, nil, pub, &fakeMailer{}, &captureScheduler{})

	err := w.HandlePublishPost(context.Background(), publishTask(t, 42))

	require.NoError(t, err)
	assert.Zero(t, pub.calls)
}

func TestHandlePublishPost_StaleRunDefersToRowTime(t *testing.T) {
	post := scheduledPost()
	when := time.Now().Add(24 * time.Hour)
	post.ScheduledFor = &when
	pr := &workerPostRepo{post: post}
	cp := &workerPlatformRepo{account: &models.ConnectedPlatform{ProfileID: "prof-1", Active: true}}
	pub := &fakePublisher{result: &transfer.LatePublishResponse{PostID: "ext-9"}}
	sched := &captureScheduler{}
	w := newTestWorker(pr, cp, nil, nil, pub, &fakeMailer{}, sched)

	// A run enqueued before the post was rescheduled fires now, but the
	// row says the post belongs to tomorrow.
	err := w.HandlePublishPost(context.Background(), publishTask(t, 42))

	require.NoError(t, err)
	assert.Zero(t, pub.calls)
	assert.False(t, pr.published)
	require.Len(t, sched.rescheduled, 1)
	assert.WithinDuration(t, when, sched.rescheduled[0], time.Second)
}

func TestHandlePublishPost_ExhaustionHandsToFailureHandler(t *testing.T) {
	pr := &workerPostRepo{post: scheduledPost()}
	cp := &workerPlatformRepo{account: &models.ConnectedPlatform{ProfileID: "prof-1", Active: true}}
	pub := &fakePublisher{err: errors.New("api rejected the media")}
	sched := &captureScheduler{}
	w := newTestWorker(pr, cp, nil, nil, pub, &fakeMailer{}, sched)

	// A bare context carries no retry budget, so the first error is the
	// exhausted one.
	err := w.HandlePublishPost(context.Background(), publishTask(t, 42))

	require.Error(t, err)
	assert.ErrorIs(t, err, asynq.SkipRetry)
	require.Len(t, sched.failures, 1)
	assert.Equal(t, int64(42), sched.failures[0].PostID)
	assert.Contains(t, sched.failures[0].Reason, "api rejected the media")
}

func TestHandlePublishPost_DisconnectedAccountFailsImmediately(t *testing.T) {
	pr := &workerPostRepo{post: scheduledPost()}
	cp := &workerPlatformRepo{account: nil}
	pub := &fakePublisher{}
	sched := &captureScheduler{}
	w := newTestWorker(pr, cp, nil, nil, pub, &fakeMailer{}, sched)

	err := w.HandlePublishPost(context.Background(), publishTask(t, 42))

	require.Error(t, err)
	assert.ErrorIs(t, err, asynq.SkipRetry)
	assert.Zero(t, pub.calls)
	require.Len(t, sched.failures, 1)
	assert.Contains(t, sched.failures[0].Reason, "twitter")
}

func TestHandlePublishFailed_MarksAndNotifies(t *testing.T) {
	post := scheduledPost()
	post.Content = strings.Repeat("x", 150)
	pr := &workerPostRepo{post: post}
	ur := &workerUserRepo{user: &models.User{ID: 7, Email: "owner@example.com"}}
	sr := &workerSettingsRepo{settings: &models.Settings{UserID: 7, NotifyOnFailure: true}}
	mailer := &fakeMailer{}
	w := newTestWorker(pr, &workerPlatformRepo{}, ur, sr, &fakePublisher{}, mailer, &captureScheduler{})

	err := w.HandlePublishFailed(context.Background(), failedTask(t, 42, "token expired"))

	require.NoError(t, err)
	assert.Equal(t, models.PostStatusFailed, pr.post.Status)
	assert.Equal(t, "token expired", pr.failedReason)
	require.Equal(t, 1, mailer.sent)
	assert.Equal(t, "owner@example.com", mailer.to)
	assert.Equal(t, "post-failed", mailer.tmpl)
	assert.Equal(t, strings.Repeat("x", 100), mailer.data["excerpt"])
	assert.Equal(t, "token expired", mailer.data["reason"])
	assert.Equal(t, "twitter", mailer.data["platform"])
	assert.Equal(t, "https://app.example.com/posts/42/edit", mailer.data["edit_url"])
}

func TestHandlePublishFailed_NotificationsDisabled(t *testing.T) {
	pr := &workerPostRepo{post: scheduledPost()}
	ur := &workerUserRepo{user: &models.User{ID: 7, Email: "owner@example.com"}}
	sr := &workerSettingsRepo{settings: &models.Settings{UserID: 7, NotifyOnFailure: false}}
	mailer := &fakeMailer{}
	w := newTestWorker(pr, &workerPlatformRepo{}, ur, sr, &fakePublisher{}, mailer, &captureScheduler{})

	err := w.HandlePublishFailed(context.Background(), failedTask(t, 42, "token expired"))

	require.NoError(t, err)
	assert.Equal(t, models.PostStatusFailed, pr.post.Status)
	assert.Zero(t, mailer.sent)
}

func TestHandlePublishFailed_EmailRetryDoesNotRewriteStatus(t *testing.T) {
	pr := &workerPostRepo{post: scheduledPost()}
	ur := &workerUserRepo{user: &models.User{ID: 7, Email: "owner@example.com"}}
	sr := &workerSettingsRepo{settings: &models.Settings{UserID: 7, NotifyOnFailure: true}}
	mailer := &fakeMailer{err: errors.New("smtp timeout")}
	w := newTestWorker(pr, &workerPlatformRepo{}, ur, sr, &fakePublisher{}, mailer, &captureScheduler{})

	task := failedTask(t, 42, "token expired")

	err := w.HandlePublishFailed(context.Background(), task)
	require.Error(t, err)
	assert.Equal(t, models.PostStatusFailed, pr.post.Status)

	// The retried run re-checks but never rewrites the terminal state.
	mailer.err = nil
	err = w.HandlePublishFailed(context.Background(), task)
	require.NoError(t, err)
	assert.Equal(t, 2, pr.markFailedHit)
	assert.Equal(t, "token expired", pr.failedReason)
	assert.Equal(t, 2, mailer.sent)
}

func TestHandlePublishFailed_OwnerGone(t *testing.T) {
	pr := &workerPostRepo{post: scheduledPost()}
	ur := &workerUserRepo{user: nil}
	sr := &workerSettingsRepo{settings: &models.Settings{UserID: 7, NotifyOnFailure: true}}
	mailer := &fakeMailer{}
	w := newTestWorker(pr, &workerPlatformRepo{}, ur, sr, &fakePublisher{}, mailer, &captureScheduler{})

	err := w.HandlePublishFailed(context.Background(), failedTask(t, 42, "token expired"))

	require.NoError(t, err)
	assert.Equal(t, models.PostStatusFailed, pr.post.Status)
	assert.Zero(t, mailer.sent)
}

func TestHandlePublishFailed_MissingPostIsNoop(t *testing.T) {
	pr := &workerPostRepo{post: nil}
	mailer := &fakeMailer{}
	w := newTestWorker(pr, &workerPlatformRepo{}, &workerUserRepo{}, &workerSettingsRepo{}, &fakePublisher{}, mailer, &captureScheduler{})

	err := w.HandlePublishFailed(context.Background(), failedTask(t, 42, "token expired"))

	require.NoError(t, err)
	assert.Zero(t, mailer.sent)
}

func TestPublishTaskIDDeterministic(t *testing.T) {
	assert.Equal(t, publishTaskID(42), publishTaskID(42))
	assert.NotEqual(t, publishTaskID(42), publishTaskID(43))
}
