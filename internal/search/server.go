// Package search exposes the query interface over an existing full-text
// index: a small HTML form, a results page, and the operational endpoints.
package search

import (
	"context"
	"embed"
	"html/template"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/mfeller/redsift/internal/index"
	"github.com/mfeller/redsift/internal/metrics"
)

//go:embed templates/*.html
var templateFS embed.FS

// Searcher answers full-text queries. *index.Index satisfies it.
type Searcher interface {
	Search(ctx context.Context, query string, limit int) ([]index.Hit, error)
}

// Server wires the HTTP handlers to a Searcher.
type Server struct {
	router    chi.Router
	searcher  Searcher
	templates *template.Template
	topK      int
	logger    *zap.Logger
}

// NewServer constructs a Server returning up to topK hits per query.
func NewServer(searcher Searcher, topK int, logger *zap.Logger) (*Server, error) {
	tmpl, err := template.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, err
	}
	if topK <= 0 {
		topK = 10
	}
	s := &Server{
		searcher:  searcher,
		templates: tmpl,
		topK:      topK,
		logger:    logger,
	}

	r := chi.NewRouter()
	r.Use(s.requestLogger)
	r.Get("/", s.home)
	r.Post("/results", s.results)
	r.Get("/healthz", s.healthz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())
	s.router = r
	return s, nil
}

// Handler returns the router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		elapsed := time.Since(start)
		metrics.ObserveSearchRequest(r.URL.Path, elapsed)
		s.logger.Debug("request served",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Duration("elapsed", elapsed))
	})
}

func (s *Server) home(w http.ResponseWriter, _ *http.Request) {
	s.render(w, "search.html", nil)
}

type resultsView struct {
	Query string
	Hits  []index.Hit
}

func (s *Server) results(w http.ResponseWriter, r *http.Request) {
	query := r.FormValue("query")
	hits, err := s.searcher.Search(r.Context(), query, s.topK)
	if err != nil {
		s.logger.Error("search failed", zap.String("query", query), zap.Error(err))
		http.Error(w, "search failed", http.StatusInternalServerError)
		return
	}
	s.render(w, "results.html", resultsView{Query: query, Hits: hits})
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

func (s *Server) render(w http.ResponseWriter, name string, data any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.templates.ExecuteTemplate(w, name, data); err != nil {
		s.logger.Error("template render failed", zap.String("template", name), zap.Error(err))
	}
}
