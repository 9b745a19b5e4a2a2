// Package crawl implements the concurrent crawl core: a shared rate
// limiter, a run-wide dedup set, size-capped batch flushing, a byte-budget
// stop controller, and the per-target workers coordinated across a bounded
// pool.
package crawl

import "context"

// Record is one serializable crawl item, identified by its unique id.
type Record interface {
	RecordID() string
}

// Post is a top-level content item discovered on a target's stream.
type Post struct {
	ID           string   `json:"id"`
	Title        string   `json:"title"`
	SelfText     string   `json:"selftext"`
	URL          string   `json:"url"`
	Subreddit    string   `json:"subreddit"`
	Score        int      `json:"score"`
	UpvoteRatio  float64  `json:"upvote_ratio"`
	LinkedTitles []string `json:"linked_titles,omitempty"`
}

// RecordID returns the post's unique identifier.
func (p Post) RecordID() string { return p.ID }

// Comment is a nested reply attached to a Post.
type Comment struct {
	ID     string `json:"id"`
	Body   string `json:"body"`
	Author string `json:"author"`
	Score  int    `json:"score"`
}

// RecordID returns the comment's unique identifier.
func (c Comment) RecordID() string { return c.ID }

// ListingPage is one page of a target's stream listing.
type ListingPage struct {
	Posts []Post
	After string // pagination cursor; empty means last page
}

// CommentPage holds the comments reachable from one fetch of a post's
// comment tree, plus the id batches still pending "load more" expansion.
type CommentPage struct {
	Comments []Comment
	More     [][]string
}

// Source fetches content from a remote target. Implementations classify
// their failures via Invalid, Retryable, and Fatal so workers can decide
// between retry, skip, and abandonment.
type Source interface {
	Validate(ctx context.Context, target string) error
	Listing(ctx context.Context, target, stream, after string) (ListingPage, error)
	Comments(ctx context.Context, target, postID string) (CommentPage, error)
	MoreComments(ctx context.Context, target, postID string, ids []string) ([]Comment, error)
}

// Enricher resolves hyperlinks embedded in an item's body to page titles.
type Enricher interface {
	Titles(ctx context.Context, text string) []string
}
