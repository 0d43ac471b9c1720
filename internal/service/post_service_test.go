package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/postloom/postloom/internal/models"
	"github.com/postloom/postloom/internal/transfer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePostRepo struct {
	posts      map[int64]*models.Post
	nextID     int64
	createErr  error
	removeErr  error
	removedIDs []int64
}

func newFakePostRepo() *fakePostRepo {
	return &fakePostRepo{posts: make(map[int64]*models.Post), nextID: 1}
}

func (f *fakePostRepo) GetByID(ctx context.Context, id int64) (*models.Post, error) {
	if p, ok := f.posts[id]; ok {
		cp := *p
		return &cp, nil
	}
	return nil, nil
}

func (f *fakePostRepo) GetByIDForUser(ctx context.Context, id, userID int64) (*models.Post, error) {
	if p, ok := f.posts[id]; ok && p.UserID == userID {
		cp := *p
		return &cp, nil
	}
	return nil, nil
}

func (f *fakePostRepo) ListByUserID(ctx context.Context, userID int64) ([]*models.Post, error) {
	var out []*models.Post
	for _, p := range f.posts {
		if p.UserID == userID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakePostRepo) ListScheduledBefore(ctx context.Context, cutoff time.Time) ([]*models.Post, error) {
	return nil, nil
}

func (f *fakePostRepo) Create(ctx context.Context, tx *sql.Tx, post *models.Post) (int64, error) {
	if f.createErr != nil {
		return 0, f.createErr
	}
	id := f.nextID
	f.nextID++
	cp := *post
	cp.ID = id
	cp.CreatedAt = time.Now()
	cp.UpdatedAt = time.Now()
	f.posts[id] = &cp
	return id, nil
}

func (f *fakePostRepo) UpdateScheduled(ctx context.Context, post *models.Post) (bool, error) {
	existing, ok := f.posts[post.ID]
	if !ok || existing.UserID != post.UserID || existing.IsTerminal() || existing.Version != post.Version {
		return false, nil
	}
	cp := *post
	cp.Version = existing.Version + 1
	cp.CreatedAt = existing.CreatedAt
	cp.UpdatedAt = time.Now()
	f.posts[post.ID] = &cp
	return true, nil
}

func (f *fakePostRepo) MarkPublished(ctx context.Context, id int64, publishedAt time.Time, externalPostID, publicURL string) error {
	return nil
}

func (f *fakePostRepo) MarkFailed(ctx context.Context, id int64, reason string) (bool, error) {
	return false, nil
}

func (f *fakePostRepo) Remove(ctx context.Context, id int64) error {
	if f.removeErr != nil {
		return f.removeErr
	}
	delete(f.posts, id)
	f.removedIDs = append(f.removedIDs, id)
	return nil
}

type fakePlatformChecker struct {
	connected map[string]bool
}

func (f *fakePlatformChecker) HasActive(ctx context.Context, userID int64, platform string) (bool, error) {
	return f.connected[platform], nil
}

type fakeScheduler struct {
	scheduled   []int64
	scheduledAt []time.Time
	cancelled   []int64
	ops         []string
	scheduleErr error
	cancelErr   error
}

func (f *fakeScheduler) SchedulePublish(ctx context.Context, postID int64, at time.Time) error {
	f.scheduled = append(f.scheduled, postID)
	f.scheduledAt = append(f.scheduledAt, at)
	f.ops = append(f.ops, "schedule")
	return f.scheduleErr
}

func (f *fakeScheduler) CancelPublish(ctx context.Context, postID int64) error {
	f.cancelled = append(f.cancelled, postID)
	f.ops = append(f.ops, "cancel")
	return f.cancelErr
}

func newTestService(repo *fakePostRepo, connected map[string]bool, sched *fakeScheduler) PostService {
	return NewPostService(repo, &fakePlatformChecker{connected: connected}, sched)
}

func validInput() *transfer.SchedulePostInput {
	return &transfer.SchedulePostInput{
		Platform:     "twitter",
		Content:      "hello from the scheduler",
		MediaURLs:    []string{"https://cdn.example.com/a.jpg"},
		ScheduledFor: time.Now().Add(24 * time.Hour).Format(time.RFC3339),
	}
}

func TestSchedulePost_Success(t *testing.T) {
	repo := newFakePostRepo()
	sched := &fakeScheduler{}
	s := newTestService(repo, map[string]bool{"twitter": true}, sched)

	post, err := s.SchedulePost(context.Background(), 7, validInput())

	require.NoError(t, err)
	assert.Equal(t, models.PostStatusScheduled, post.Status)
	assert.Equal(t, int64(7), post.UserID)
	require.NotNil(t, post.ScheduledFor)
	require.Len(t, sched.scheduled, 1)
	assert.Equal(t, post.ID, sched.scheduled[0])
	assert.WithinDuration(t, *post.ScheduledFor, sched.scheduledAt[0], time.Second)
}

func TestSchedulePost_NotAuthenticated(t *testing.T) {
	s := newTestService(newFakePostRepo(), map[string]bool{"twitter": true}, &fakeScheduler{})

	_, err := s.SchedulePost(context.Background(), 0, validInput())
	assert.ErrorIs(t, err, ErrNotAuthenticated)
}

func TestSchedulePost_PastTimeRejected(t *testing.T) {
	repo := newFakePostRepo()
	sched := &fakeScheduler{}
	s := newTestService(repo, map[string]bool{"twitter": true}, sched)

	in := validInput()
	in.ScheduledFor = time.Now().Add(-time.Hour).Format(time.RFC3339)

	_, err := s.SchedulePost(context.Background(), 7, in)

	assert.ErrorIs(t, err, ErrValidation)
	assert.Contains(t, err.Error(), "future")
	assert.Empty(t, repo.posts)
	assert.Empty(t, sched.scheduled)
}

func TestSchedulePost_MissingFields(t *testing.T) {
	s := newTestService(newFakePostRepo(), map[string]bool{"twitter": true}, &fakeScheduler{})

	in := validInput()
	in.Platform = ""
	_, err := s.SchedulePost(context.Background(), 7, in)
	assert.ErrorIs(t, err, ErrValidation)

	in = validInput()
	in.Content = strings.Repeat("a", 63207)
	_, err = s.SchedulePost(context.Background(), 7, in)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestSchedulePost_PlatformNotConnected(t *testing.T) {
	repo := newFakePostRepo()
	s := newTestService(repo, map[string]bool{}, &fakeScheduler{})

	_, err := s.SchedulePost(context.Background(), 7, validInput())

	assert.ErrorIs(t, err, ErrPlatformNotConnected)
	assert.Empty(t, repo.posts)
}

func TestSchedulePost_UpdateNotOwned(t *testing.T) {
	repo := newFakePostRepo()
	when := time.Now().Add(time.Hour)
	repo.posts[3] = &models.Post{ID: 3, UserID: 99, Status: models.PostStatusScheduled, ScheduledFor: &when}
	s := newTestService(repo, map[string]bool{"twitter": true}, &fakeScheduler{})

	in := validInput()
	in.PostID = 3

	_, err := s.SchedulePost(context.Background(), 7, in)

	// Another user's post and a missing post are indistinguishable.
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSchedulePost_TerminalImmutable(t *testing.T) {
	for _, status := range []string{models.PostStatusPublished, models.PostStatusFailed} {
		repo := newFakePostRepo()
		repo.posts[3] = &models.Post{ID: 3, UserID: 7, Status: status}
		s := newTestService(repo, map[string]bool{"twitter": true}, &fakeScheduler{})

		in := validInput()
		in.PostID = 3

		_, err := s.SchedulePost(context.Background(), 7, in)
		assert.ErrorIs(t, err, ErrImmutableState, "status %s", status)
	}
}

func TestSchedulePost_StaleVersionConflicts(t *testing.T) {
	repo := newFakePostRepo()
	when := time.Now().Add(time.Hour)
	repo.posts[3] = &models.Post{ID: 3, UserID: 7, Status: models.PostStatusScheduled, ScheduledFor: &when, Version: 2}
	s := newTestService(repo, map[string]bool{"twitter": true}, &fakeScheduler{})

	in := validInput()
	in.PostID = 3
	in.Version = 1 // another tab already bumped it

	_, err := s.SchedulePost(context.Background(), 7, in)
	assert.ErrorIs(t, err, ErrConflict)
}

func TestSchedulePost_RescheduleReplacesRun(t *testing.T) {
	repo := newFakePostRepo()
	oldTime := time.Now().Add(time.Hour)
	repo.posts[3] = &models.Post{ID: 3, UserID: 7, Platform: "twitter", Status: models.PostStatusScheduled, ScheduledFor: &oldTime, Version: 1}
	sched := &fakeScheduler{}
	s := newTestService(repo, map[string]bool{"twitter": true}, sched)

	newTime := time.Now().Add(48 * time.Hour)
	in := validInput()
	in.PostID = 3
	in.Version = 1
	in.ScheduledFor = newTime.Format(time.RFC3339)

	post, err := s.SchedulePost(context.Background(), 7, in)

	require.NoError(t, err)
	require.NotNil(t, post.ScheduledFor)
	assert.WithinDuration(t, newTime, *post.ScheduledFor, time.Second)

	// The run for the old time is aborted before the new one is emitted.
	assert.Equal(t, []string{"cancel", "schedule"}, sched.ops)
	assert.Equal(t, []int64{3}, sched.cancelled)
	require.Len(t, sched.scheduledAt, 1)
	assert.WithinDuration(t, newTime, sched.scheduledAt[0], time.Second)
}

func TestSchedulePost_RescheduleCancelThrowStillEmits(t *testing.T) {
	repo := newFakePostRepo()
	oldTime := time.Now().Add(time.Hour)
	repo.posts[3] = &models.Post{ID: 3, UserID: 7, Platform: "twitter", Status: models.PostStatusScheduled, ScheduledFor: &oldTime, Version: 1}
	sched := &fakeScheduler{cancelErr: errors.New("runner unreachable")}
	s := newTestService(repo, map[string]bool{"twitter": true}, sched)

	in := validInput()
	in.PostID = 3
	in.Version = 1

	_, err := s.SchedulePost(context.Background(), 7, in)

	require.NoError(t, err)
	assert.Equal(t, []int64{3}, sched.cancelled)
	assert.Equal(t, []int64{3}, sched.scheduled)
}

func TestSaveDraft_DemotionCancelsRun(t *testing.T) {
	repo := newFakePostRepo()
	when := time.Now().Add(time.Hour)
	repo.posts[3] = &models.Post{ID: 3, UserID: 7, Platform: "twitter", Status: models.PostStatusScheduled, ScheduledFor: &when, Version: 1}
	sched := &fakeScheduler{}
	s := newTestService(repo, map[string]bool{"twitter": true}, sched)

	post, err := s.SaveDraft(context.Background(), 7, &transfer.DraftPostInput{
		PostID:   3,
		Platform: "twitter",
		Content:  "back to the drawing board",
		Version:  1,
	})

	require.NoError(t, err)
	assert.Equal(t, models.PostStatusDraft, post.Status)
	assert.Equal(t, []int64{3}, sched.cancelled)
	assert.Empty(t, sched.scheduled)
}

func TestSchedulePost_EmitFailureDoesNotFailOperation(t *testing.T) {
	repo := newFakePostRepo()
	sched := &fakeScheduler{scheduleErr: errors.New("redis down")}
	s := newTestService(repo, map[string]bool{"twitter": true}, sched)

	post, err := s.SchedulePost(context.Background(), 7, validInput())

	// The row committed; the lost event is a logged gap, not a failure.
	require.NoError(t, err)
	assert.Equal(t, models.PostStatusScheduled, post.Status)
	assert.Len(t, sched.scheduled, 1)
}

func TestRemove_ScheduledCancelsRun(t *testing.T) {
	repo := newFakePostRepo()
	when := time.Now().Add(time.Hour)
	repo.posts[5] = &models.Post{ID: 5, UserID: 7, Status: models.PostStatusScheduled, ScheduledFor: &when}
	sched := &fakeScheduler{}
	s := newTestService(repo, nil, sched)

	err := s.Remove(context.Background(), 7, 5)

	require.NoError(t, err)
	assert.Empty(t, repo.posts)
	assert.Equal(t, []int64{5}, sched.cancelled)
}

func TestRemove_CancelThrowStillDeletes(t *testing.T) {
	repo := newFakePostRepo()
	when := time.Now().Add(time.Hour)
	repo.posts[5] = &models.Post{ID: 5, UserID: 7, Status: models.PostStatusScheduled, ScheduledFor: &when}
	sched := &fakeScheduler{cancelErr: errors.New("runner unreachable")}
	s := newTestService(repo, nil, sched)

	err := s.Remove(context.Background(), 7, 5)

	require.NoError(t, err)
	assert.Empty(t, repo.posts)
	assert.Equal(t, []int64{5}, sched.cancelled)
}

func TestRemove_DraftSendsNoCancel(t *testing.T) {
	repo := newFakePostRepo()
	repo.posts[5] = &models.Post{ID: 5, UserID: 7, Status: models.PostStatusDraft}
	sched := &fakeScheduler{}
	s := newTestService(repo, nil, sched)

	err := s.Remove(context.Background(), 7, 5)

	require.NoError(t, err)
	assert.Empty(t, sched.cancelled)
}

func TestRemove_TerminalRefused(t *testing.T) {
	repo := newFakePostRepo()
	repo.posts[5] = &models.Post{ID: 5, UserID: 7, Status: models.PostStatusPublished}
	sched := &fakeScheduler{}
	s := newTestService(repo, nil, sched)

	err := s.Remove(context.Background(), 7, 5)

	assert.ErrorIs(t, err, ErrImmutableState)
	assert.Len(t, repo.posts, 1)
	assert.Empty(t, sched.cancelled)
}
