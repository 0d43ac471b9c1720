package repository

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/lib/pq"
	"github.com/postloom/postloom/internal/models"
)

type PostRepository interface {
	GetByID(ctx context.Context, id int64) (*models.Post, error)
	GetByIDForUser(ctx context.Context, id, userID int64) (*models.Post, error)
	ListByUserID(ctx context.Context, userID int64) ([]*models.Post, error)
	ListScheduledBefore(ctx context.Context, cutoff time.Time) ([]*models.Post, error)
	Create(ctx context.Context, tx *sql.Tx, post *models.Post) (int64, error)
	UpdateScheduled(ctx context.Context, post *models.Post) (bool, error)
	MarkPublished(ctx context.Context, id int64, publishedAt time.Time, externalPostID, publicURL string) error
	MarkFailed(ctx context.Context, id int64, reason string) (bool, error)
	Remove(ctx context.Context, id int64) error
}

type postRepository struct {
	db *sql.DB
}

func NewPostRepository(db *sql.DB) PostRepository {
	return &postRepository{db: db}
}

const postColumns = `id, user_id, platform, content, media_urls, scheduled_for, published_at, status, external_post_id, public_url, failure_reason, version, created_at, updated_at`

func scanPost(row interface{ Scan(...any) error }) (*models.Post, error) {
	var post models.Post
	err := row.Scan(
		&post.ID,
		&post.UserID,
		&post.Platform,
		&post.Content,
		pq.Array(&post.MediaURLs),
		&post.ScheduledFor,
		&post.PublishedAt,
		&post.Status,
		&post.ExternalPostID,
		&post.PublicURL,
		&post.FailureReason,
		&post.Version,
		&post.CreatedAt,
		&post.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &post, nil
}

func (r *postRepository) Create(ctx context.Context, tx *sql.Tx, post *models.Post) (int64, error) {
	query := `
		INSERT INTO posts (user_id, platform, content, media_urls, scheduled_for, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`

	var id int64
	var err error

	args := []any{post.UserID, post.Platform, post.Content, pq.Array(post.MediaURLs), post.ScheduledFor, post.Status}
	if tx != nil {
		err = tx.QueryRowContext(ctx, query, args...).Scan(&id)
	} else {
		err = r.db.QueryRowContext(ctx, query, args...).Scan(&id)
	}
	if err != nil {
		slog.Info(err.Error())
		return 0, err
	}

	return id, nil
}

func (r *postRepository) GetByID(ctx context.Context, id int64) (*models.Post, error) {
	query := `SELECT ` + postColumns + ` FROM posts WHERE id = $1`
	post, err := scanPost(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		slog.Info(err.Error())
		return nil, err
	}
	return post, nil
}

func (r *postRepository) GetByIDForUser(ctx context.Context, id, userID int64) (*models.Post, error) {
	query := `SELECT ` + postColumns + ` FROM posts WHERE id = $1 AND user_id = $2`
	post, err := scanPost(r.db.QueryRowContext(ctx, query, id, userID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		slog.Info(err.Error())
		return nil, err
	}
	return post, nil
}

func (r *postRepository) ListByUserID(ctx context.Context, userID int64) ([]*models.Post, error) {
	query := `SELECT ` + postColumns + ` FROM posts WHERE user_id = $1 ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	var posts []*models.Post
	for rows.Next() {
		post, err := scanPost(rows)
		if err != nil {
			slog.Info(err.Error())
			return nil, err
		}
		posts = append(posts, post)
	}
	return posts, rows.Err()
}

func (r *postRepository) ListScheduledBefore(ctx context.Context, cutoff time.Time) ([]*models.Post, error) {
	query := `SELECT ` + postColumns + ` FROM posts WHERE status = $1 AND scheduled_for < $2`

	rows, err := r.db.QueryContext(ctx, query, models.PostStatusScheduled, cutoff)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	var posts []*models.Post
	for rows.Next() {
		post, err := scanPost(rows)
		if err != nil {
			slog.Info(err.Error())
			return nil, err
		}
		posts = append(posts, post)
	}
	return posts, rows.Err()
}

// UpdateScheduled rewrites a pre-terminal post owned by the user and bumps
// its version. The WHERE clause carries the ownership, lifecycle, and
// optimistic-lock guards at once; callers disambiguate a false return by
// re-reading the row.
func (r *postRepository) UpdateScheduled(ctx context.Context, post *models.Post) (bool, error) {
	query := `
		UPDATE posts
		SET platform = $1,
			content = $2,
			media_urls = $3,
			scheduled_for = $4,
			status = $5,
			failure_reason = '',
			version = version + 1,
			updated_at = $6
		WHERE id = $7 AND user_id = $8 AND status IN ($9, $10) AND version = $11
	`
	res, err := r.db.ExecContext(ctx, query,
		post.Platform,
		post.Content,
		pq.Array(post.MediaURLs),
		post.ScheduledFor,
		post.Status,
		time.Now(),
		post.ID,
		post.UserID,
		models.PostStatusDraft,
		models.PostStatusScheduled,
		post.Version,
	)
	if err != nil {
		slog.Info(err.Error())
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		slog.Info(err.Error())
		return false, err
	}
	return n > 0, nil
}

func (r *postRepository) MarkPublished(ctx context.Context, id int64, publishedAt time.Time, externalPostID, publicURL string) error {
	query := `
		UPDATE posts
		SET status = $1,
			published_at = $2,
			external_post_id = $3,
			public_url = $4,
			updated_at = $5
		WHERE id = $6
	`
	_, err := r.db.ExecContext(ctx, query, models.PostStatusPublished, publishedAt, externalPostID, publicURL, time.Now(), id)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}

// MarkFailed transitions a scheduled post to failed. It reports false when
// the post was not in the scheduled state, which makes retried failure
// handling a no-op on the second pass.
func (r *postRepository) MarkFailed(ctx context.Context, id int64, reason string) (bool, error) {
	query := `
		UPDATE posts
		SET status = $1,
			failure_reason = $2,
			updated_at = $3
		WHERE id = $4 AND status = $5
	`
	res, err := r.db.ExecContext(ctx, query, models.PostStatusFailed, reason, time.Now(), id, models.PostStatusScheduled)
	if err != nil {
		slog.Info(err.Error())
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		slog.Info(err.Error())
		return false, err
	}
	return n > 0, nil
}

func (r *postRepository) Remove(ctx context.Context, id int64) error {
	query := `DELETE FROM posts WHERE id = $1`
	_, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}
