package search

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mfeller/redsift/internal/index"
)

type stubSearcher struct {
	hits     []index.Hit
	err      error
	gotQuery string
	gotLimit int
}

func (s *stubSearcher) Search(_ context.Context, query string, limit int) ([]index.Hit, error) {
	s.gotQuery = query
	s.gotLimit = limit
	return s.hits, s.err
}

func newTestServer(t *testing.T, searcher Searcher, topK int) *Server {
	t.Helper()
	srv, err := NewServer(searcher, topK, zap.NewNop())
	require.NoError(t, err)
	return srv
}

func TestHomeServesSearchForm(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, &stubSearcher{}, 10)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `name="query"`)
}

func TestResultsRendersHits(t *testing.T) {
	t.Parallel()

	stub := &stubSearcher{hits: []index.Hit{
		{Score: 1.234, ID: "p1", Title: "A Post", Body: "matching body", Author: "alice"},
		{Score: 0.5, ID: "c1", Body: "a comment hit", Author: "unknown"},
	}}
	srv := newTestServer(t, stub, 7)

	form := url.Values{"query": {"matching"}}
	req := httptest.NewRequest(http.MethodPost, "/results", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "matching", stub.gotQuery)
	require.Equal(t, 7, stub.gotLimit)
	body := rec.Body.String()
	require.Contains(t, body, "A Post")
	require.Contains(t, body, "a comment hit")
	require.Contains(t, body, "alice")
}

func TestResultsNoHits(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, &stubSearcher{}, 10)
	form := url.Values{"query": {"nothing"}}
	req := httptest.NewRequest(http.MethodPost, "/results", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "No results")
}

func TestResultsSearchError(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, &stubSearcher{err: errors.New("index gone")}, 10)
	form := url.Values{"query": {"boom"}}
	req := httptest.NewRequest(http.MethodPost, "/results", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestHealthz(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, &stubSearcher{}, 10)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}
