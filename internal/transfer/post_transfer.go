package transfer

// SchedulePostInput carries the candidate post fields from the request
// layer into the scheduling action. PostID is zero for a new post.
type SchedulePostInput struct {
	PostID       int64    `json:"post_id"`
	Platform     string   `json:"platform" validate:"required"`
	Content      string   `json:"content" validate:"required,max=63206"`
	MediaURLs    []string `json:"media_urls" validate:"dive,url"`
	ScheduledFor string   `json:"scheduled_for" validate:"required"`
	Version      int      `json:"version"`
}

type DraftPostInput struct {
	PostID    int64    `json:"post_id"`
	Platform  string   `json:"platform" validate:"required"`
	Content   string   `json:"content" validate:"max=63206"`
	MediaURLs []string `json:"media_urls" validate:"dive,url"`
	Version   int      `json:"version"`
}
