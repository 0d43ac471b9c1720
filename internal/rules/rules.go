// Package rules holds the static per-platform content constraints and the
// violation check the dashboard and the scheduling path both run.
package rules

import (
	"fmt"
	"path"
	"strings"
)

type ViolationKind string

const (
	TextTooLong     ViolationKind = "text_too_long"
	TooManyPhotos   ViolationKind = "too_many_photos"
	TooManyVideos   ViolationKind = "too_many_videos"
	MediaRequired   ViolationKind = "media_required"
	MixedNotAllowed ViolationKind = "mixed_not_allowed"
)

type Violation struct {
	Kind    ViolationKind `json:"kind"`
	Message string        `json:"message"`
}

type PlatformRules struct {
	MaxText       int
	MaxPhotos     int
	MaxVideos     int
	RequiresMedia bool
	AllowsMixed   bool
}

// Fixed lookup table. The numeric limits mirror what each platform's API
// enforces; keep them literal, never derive them.
var platformRules = map[string]PlatformRules{
	"twitter":   {MaxText: 280, MaxPhotos: 4, MaxVideos: 1, RequiresMedia: false, AllowsMixed: false},
	"instagram": {MaxText: 2200, MaxPhotos: 10, MaxVideos: 10, RequiresMedia: true, AllowsMixed: true},
	"tiktok":    {MaxText: 2200, MaxPhotos: 35, MaxVideos: 1, RequiresMedia: true, AllowsMixed: false},
	"facebook":  {MaxText: 63206, MaxPhotos: 10, MaxVideos: 1, RequiresMedia: false, AllowsMixed: false},
	"linkedin":  {MaxText: 3000, MaxPhotos: 9, MaxVideos: 1, RequiresMedia: false, AllowsMixed: false},
	"youtube":   {MaxText: 5000, MaxPhotos: 0, MaxVideos: 1, RequiresMedia: true, AllowsMixed: false},
	"threads":   {MaxText: 500, MaxPhotos: 20, MaxVideos: 1, RequiresMedia: false, AllowsMixed: true},
	"bluesky":   {MaxText: 300, MaxPhotos: 4, MaxVideos: 1, RequiresMedia: false, AllowsMixed: false},
	"pinterest": {MaxText: 500, MaxPhotos: 5, MaxVideos: 1, RequiresMedia: true, AllowsMixed: false},
}

var videoExtensions = map[string]struct{}{
	".mp4": {}, ".mov": {}, ".webm": {}, ".avi": {}, ".mkv": {}, ".m4v": {},
}

// ForPlatform returns the rule row for a platform; found is false for
// platforms the table does not know.
func ForPlatform(platform string) (PlatformRules, bool) {
	r, ok := platformRules[strings.ToLower(platform)]
	return r, ok
}

// Platforms lists every platform the table covers.
func Platforms() []string {
	names := make([]string, 0, len(platformRules))
	for name := range platformRules {
		names = append(names, name)
	}
	return names
}

// IsVideoURL classifies a media URL by file extension. Anything that is not
// a known video extension counts as a photo.
func IsVideoURL(mediaURL string) bool {
	ext := strings.ToLower(path.Ext(stripQuery(mediaURL)))
	_, ok := videoExtensions[ext]
	return ok
}

func stripQuery(u string) string {
	if i := strings.IndexAny(u, "?#"); i >= 0 {
		return u[:i]
	}
	return u
}

// Check returns the ordered list of rule violations for a text/media
// combination on a platform. An unknown platform produces no violations;
// the scheduling action rejects those separately.
func Check(platform, text string, mediaURLs []string) []Violation {
	r, ok := ForPlatform(platform)
	if !ok {
		return nil
	}

	var photos, videos int
	for _, u := range mediaURLs {
		if IsVideoURL(u) {
			videos++
		} else {
			photos++
		}
	}

	var violations []Violation

	if len([]rune(text)) > r.MaxText {
		violations = append(violations, Violation{
			Kind:    TextTooLong,
			Message: fmt.Sprintf("%s allows at most %d characters", platform, r.MaxText),
		})
	}
	if photos > r.MaxPhotos {
		violations = append(violations, Violation{
			Kind:    TooManyPhotos,
			Message: fmt.Sprintf("%s allows at most %d photos", platform, r.MaxPhotos),
		})
	}
	if videos > r.MaxVideos {
		violations = append(violations, Violation{
			Kind:    TooManyVideos,
			Message: fmt.Sprintf("%s allows at most %d videos", platform, r.MaxVideos),
		})
	}
	if r.RequiresMedia && len(mediaURLs) == 0 {
		violations = append(violations, Violation{
			Kind:    MediaRequired,
			Message: fmt.Sprintf("%s requires at least one photo or video", platform),
		})
	}
	if !r.AllowsMixed && photos > 0 && videos > 0 {
		violations = append(violations, Violation{
			Kind:    MixedNotAllowed,
			Message: fmt.Sprintf("%s does not allow photos and videos in the same post", platform),
		})
	}

	return violations
}
