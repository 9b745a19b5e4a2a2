package feed

import (
	"encoding/json"

	"github.com/mfeller/redsift/internal/crawl"
)

// Thing kinds used by the listing format.
const (
	kindPost    = "t3"
	kindComment = "t1"
	kindMore    = "more"
)

// thing is the tagged union every listing element arrives as. Data is kept
// raw until the kind is known.
type thing struct {
	Kind string          `json:"kind"`
	Data json.RawMessage `json:"data"`
}

type listingEnvelope struct {
	Data struct {
		After    string  `json:"after"`
		Children []thing `json:"children"`
	} `json:"data"`
}

type moreChildrenEnvelope struct {
	JSON struct {
		Data struct {
			Things []thing `json:"things"`
		} `json:"data"`
	} `json:"json"`
}

type postData struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	SelfText    string  `json:"selftext"`
	URL         string  `json:"url"`
	Subreddit   string  `json:"subreddit"`
	Score       int     `json:"score"`
	UpvoteRatio float64 `json:"upvote_ratio"`
}

func (p postData) toPost() crawl.Post {
	return crawl.Post{
		ID:          p.ID,
		Title:       p.Title,
		SelfText:    p.SelfText,
		URL:         p.URL,
		Subreddit:   p.Subreddit,
		Score:       p.Score,
		UpvoteRatio: p.UpvoteRatio,
	}
}

type commentData struct {
	ID      string          `json:"id"`
	Body    string          `json:"body"`
	Author  string          `json:"author"`
	Score   int             `json:"score"`
	Replies json.RawMessage `json:"replies"`
}

type moreData struct {
	Children []string `json:"children"`
}

// collectThing walks one element of a comment forest, appending comments
// depth-first and recording "more" stubs as pending id batches. Elements
// that fail to decode are dropped rather than failing the whole tree.
func collectThing(th thing, page *crawl.CommentPage) {
	switch th.Kind {
	case kindComment:
		var cd commentData
		if err := json.Unmarshal(th.Data, &cd); err != nil {
			return
		}
		page.Comments = append(page.Comments, crawl.Comment{
			ID:     cd.ID,
			Body:   cd.Body,
			Author: cd.Author,
			Score:  cd.Score,
		})
		// Replies is either a nested listing or an empty string.
		if len(cd.Replies) == 0 || string(cd.Replies) == `""` {
			return
		}
		var nested listingEnvelope
		if err := json.Unmarshal(cd.Replies, &nested); err != nil {
			return
		}
		for _, child := range nested.Data.Children {
			collectThing(child, page)
		}
	case kindMore:
		var md moreData
		if err := json.Unmarshal(th.Data, &md); err != nil {
			return
		}
		if len(md.Children) > 0 {
			page.More = append(page.More, md.Children)
		}
	}
}
