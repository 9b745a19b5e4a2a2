// Package feed implements crawl.Source against a Reddit-style public JSON
// API: stream listings, nested comment trees, and batched "more children"
// expansion.
package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/mfeller/redsift/internal/crawl"
)

const defaultUserAgent = "redsift/1.0 (content crawler)"

// Client fetches listings and comment trees over HTTP. It satisfies
// crawl.Source.
type Client struct {
	base      string
	userAgent string
	http      *http.Client
}

// New builds a Client against baseURL. Redirects are not followed so a
// moved target surfaces as an invalid one rather than silently crawling
// somewhere else.
func New(baseURL, userAgent string, client *http.Client) *Client {
	if client == nil {
		client = &http.Client{}
	}
	client.CheckRedirect = func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}
	if userAgent == "" {
		userAgent = defaultUserAgent
	}
	return &Client{
		base:      strings.TrimRight(baseURL, "/"),
		userAgent: userAgent,
		http:      client,
	}
}

// Validate probes the target with a minimal listing request and classifies
// the outcome.
func (c *Client) Validate(ctx context.Context, target string) error {
	var env listingEnvelope
	path := fmt.Sprintf("/r/%s/hot.json", url.PathEscape(target))
	if err := c.getJSON(ctx, path, url.Values{"limit": {"1"}}, &env); err != nil {
		return err
	}
	return nil
}

// Listing fetches one page of the target's stream, resuming from the after
// cursor when non-empty.
func (c *Client) Listing(ctx context.Context, target, stream, after string) (crawl.ListingPage, error) {
	q := url.Values{"limit": {"100"}}
	if after != "" {
		q.Set("after", after)
	}
	path := fmt.Sprintf("/r/%s/%s.json", url.PathEscape(target), url.PathEscape(stream))
	var env listingEnvelope
	if err := c.getJSON(ctx, path, q, &env); err != nil {
		return crawl.ListingPage{}, err
	}

	page := crawl.ListingPage{After: env.Data.After}
	for _, th := range env.Data.Children {
		if th.Kind != kindPost {
			continue
		}
		var pd postData
		if err := json.Unmarshal(th.Data, &pd); err != nil {
			continue
		}
		page.Posts = append(page.Posts, pd.toPost())
	}
	return page, nil
}

// Comments fetches the full comment tree under one post. Replies are
// flattened depth-first. Batches of collapsed children are returned in
// More for later expansion via MoreComments.
func (c *Client) Comments(ctx context.Context, target, postID string) (crawl.CommentPage, error) {
	path := fmt.Sprintf("/r/%s/comments/%s.json", url.PathEscape(target), url.PathEscape(postID))
	var envs []listingEnvelope
	if err := c.getJSON(ctx, path, nil, &envs); err != nil {
		return crawl.CommentPage{}, err
	}
	// The endpoint answers with two listings: the post itself, then its
	// comment forest.
	if len(envs) < 2 {
		return crawl.CommentPage{}, nil
	}

	var page crawl.CommentPage
	for _, th := range envs[1].Data.Children {
		collectThing(th, &page)
	}
	return page, nil
}

// MoreComments expands one batch of collapsed comment ids.
func (c *Client) MoreComments(ctx context.Context, target, postID string, ids []string) ([]crawl.Comment, error) {
	q := url.Values{
		"link_id":  {"t3_" + postID},
		"children": {strings.Join(ids, ",")},
		"api_type": {"json"},
	}
	var env moreChildrenEnvelope
	if err := c.getJSON(ctx, "/api/morechildren.json", q, &env); err != nil {
		return nil, err
	}

	// Nested "more" stubs inside an expansion are dropped; the expansion
	// budget is already capped by the caller.
	var page crawl.CommentPage
	for _, th := range env.JSON.Data.Things {
		collectThing(th, &page)
	}
	return page.Comments, nil
}

func (c *Client) getJSON(ctx context.Context, path string, q url.Values, out any) error {
	if q == nil {
		q = url.Values{}
	}
	q.Set("raw_json", "1")
	u := c.base + path + "?" + q.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return crawl.Fatal(fmt.Errorf("build request: %w", err))
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return crawl.Retryable(fmt.Errorf("fetch %s: %w", path, err))
	}
	defer resp.Body.Close()

	if err := classifyStatus(resp.StatusCode, path); err != nil {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return err
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return crawl.Retryable(fmt.Errorf("decode %s: %w", path, err))
	}
	return nil
}

// classifyStatus maps HTTP status codes onto the crawl failure taxonomy.
// Redirects count as invalid targets because the client never follows them.
func classifyStatus(code int, path string) error {
	switch {
	case code == http.StatusOK:
		return nil
	case code == http.StatusNotFound, code == http.StatusForbidden:
		return crawl.Invalid(fmt.Errorf("fetch %s: status %d", path, code))
	case code >= 300 && code < 400:
		return crawl.Invalid(fmt.Errorf("fetch %s: redirected (status %d)", path, code))
	case code == http.StatusTooManyRequests || code >= 500:
		return crawl.Retryable(fmt.Errorf("fetch %s: status %d", path, code))
	default:
		return crawl.Fatal(fmt.Errorf("fetch %s: unexpected status %d", path, code))
	}
}
