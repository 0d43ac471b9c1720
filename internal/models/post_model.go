package models

import "time"

type Post struct {
	ID             int64      `db:"id" json:"id"`
	UserID         int64      `db:"user_id" json:"user_id"`
	Platform       string     `db:"platform" json:"platform"`
	Content        string     `db:"content" json:"content"`
	MediaURLs      []string   `db:"media_urls" json:"media_urls"`
	ScheduledFor   *time.Time `db:"scheduled_for" json:"scheduled_for"`
	PublishedAt    *time.Time `db:"published_at" json:"published_at"`
	Status         string     `db:"status" json:"status"` // draft, scheduled, published, failed
	ExternalPostID string     `db:"external_post_id" json:"external_post_id"`
	PublicURL      string     `db:"public_url" json:"public_url"`
	FailureReason  string     `db:"failure_reason" json:"failure_reason"`
	Version        int        `db:"version" json:"version"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time  `db:"updated_at" json:"updated_at"`
}

const (
	PostStatusDraft     = "draft"
	PostStatusScheduled = "scheduled"
	PostStatusPublished = "published"
	PostStatusFailed    = "failed"
)

// IsTerminal reports whether the post can no longer be edited or deleted.
func (p *Post) IsTerminal() bool {
	return p.Status == PostStatusPublished || p.Status == PostStatusFailed
}
