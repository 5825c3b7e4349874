package feed

import (
	"context"
	"strings"
	"time"
)

// Candidate is a feed entry considered for admission into the store.
type Candidate struct {
	ID           string
	Source       string
	AuthorID     string
	AuthorName   string
	CreatedUTC   time.Time
	Title        string
	Body         string
	OCRText      string
	Flair        string
	URL          string
	MediaURL     string
	PostHint     string
	IsVideo      bool
	UpvoteScore  int64
	CommentCount int64
}

var imageExtensions = []string{".png", ".jpg", ".jpeg", ".gif"}

// ImageURL returns the candidate's media link when it points at a static
// image, either by the listing's own hint or by file extension. Video posts
// never qualify.
func (c Candidate) ImageURL() (string, bool) {
	if c.IsVideo {
		return "", false
	}
	media := strings.TrimSpace(c.MediaURL)
	if media == "" {
		return "", false
	}
	if c.PostHint == "image" {
		return media, true
	}
	lower := strings.ToLower(media)
	for _, ext := range imageExtensions {
		if strings.HasSuffix(lower, ext) {
			return media, true
		}
	}
	return "", false
}

// Client fetches new feed entries for a source, newest first.
type Client interface {
	FetchNew(ctx context.Context, source string, limit int) ([]Candidate, error)
}

// AuthorProfile carries the public profile attributes of a feed author.
type AuthorProfile struct {
	CreatedUTC   time.Time
	CommentKarma int64
	LinkKarma    int64
	IsVerified   bool
}

// ProfileFetcher resolves public author profiles by username.
type ProfileFetcher interface {
	FetchAuthorProfile(ctx context.Context, username string) (AuthorProfile, error)
}
