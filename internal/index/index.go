// Package index maintains a full-text index over crawled output units,
// backed by SQLite FTS5.
package index

import (
	"bufio"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite" // SQLite driver
)

// maxRecordBytes bounds a single NDJSON line when scanning units.
const maxRecordBytes = 16 << 20

// Index is a full-text index over crawl records. One writer at a time.
type Index struct {
	db     *sql.DB
	path   string
	logger *zap.Logger
}

// Stats summarizes one indexing pass.
type Stats struct {
	Files   int
	Indexed int
	Skipped int
}

// Hit is one search result, best match first.
type Hit struct {
	Score  float64
	ID     string
	Title  string
	Body   string
	Author string
}

// Open opens or creates the index database under dir.
func Open(dir string, logger *zap.Logger) (*Index, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create index directory: %w", err)
	}
	path := filepath.Join(dir, "redsift.db")

	db, err := sql.Open("sqlite", path+"?mode=rwc")
	if err != nil {
		return nil, fmt.Errorf("open index: %w", err)
	}
	// SQLite only supports one writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}

	idx := &Index{db: db, path: path, logger: logger}
	if err := idx.createSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return idx, nil
}

// Close closes the underlying database.
func (i *Index) Close() error {
	return i.db.Close()
}

func (i *Index) createSchema() error {
	schema := `
	CREATE VIRTUAL TABLE IF NOT EXISTS records USING fts5(
		body,
		title,
		id UNINDEXED,
		author UNINDEXED,
		score UNINDEXED,
		subreddit UNINDEXED,
		url UNINDEXED
	);`
	_, err := i.db.ExecContext(context.Background(), schema)
	return err
}

// record is the loose shape an output line may take. Pointers distinguish
// a post (title present) from a comment (body only).
type record struct {
	ID        string  `json:"id"`
	Title     *string `json:"title"`
	SelfText  string  `json:"selftext"`
	Body      *string `json:"body"`
	Author    string  `json:"author"`
	Score     int     `json:"score"`
	Subreddit string  `json:"subreddit"`
	URL       string  `json:"url"`
}

// IndexDir rebuilds the index from every output unit under dir. The
// previous contents are dropped first so reruns stay idempotent. Malformed
// lines are logged and skipped, never fatal.
func (i *Index) IndexDir(ctx context.Context, dir string) (Stats, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return Stats{}, fmt.Errorf("read output directory: %w", err)
	}

	tx, err := i.db.BeginTx(ctx, nil)
	if err != nil {
		return Stats{}, fmt.Errorf("begin rebuild: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM records"); err != nil {
		return Stats{}, fmt.Errorf("clear previous index: %w", err)
	}

	insert, err := tx.PrepareContext(ctx,
		`INSERT INTO records (body, title, id, author, score, subreddit, url)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return Stats{}, fmt.Errorf("prepare insert: %w", err)
	}
	defer insert.Close()

	var stats Stats
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		stats.Files++
		if err := i.indexFile(ctx, insert, filepath.Join(dir, entry.Name()), &stats); err != nil {
			return Stats{}, err
		}
	}

	if err := tx.Commit(); err != nil {
		return Stats{}, fmt.Errorf("commit rebuild: %w", err)
	}
	return stats, nil
}

func (i *Index) indexFile(ctx context.Context, insert *sql.Stmt, path string, stats *Stats) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open unit %s: %w", path, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), maxRecordBytes)
	line := 0
	for scanner.Scan() {
		line++
		if err := ctx.Err(); err != nil {
			return err
		}
		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}
		var rec record
		if err := json.Unmarshal(raw, &rec); err != nil || rec.ID == "" {
			stats.Skipped++
			i.logger.Warn("skipping malformed record",
				zap.String("file", filepath.Base(path)),
				zap.Int("line", line),
				zap.Error(err))
			continue
		}
		if err := i.insertRecord(ctx, insert, rec); err != nil {
			return fmt.Errorf("index record %s: %w", rec.ID, err)
		}
		stats.Indexed++
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("scan unit %s: %w", path, err)
	}
	return nil
}

func (i *Index) insertRecord(ctx context.Context, insert *sql.Stmt, rec record) error {
	author := rec.Author
	if author == "" {
		author = "unknown"
	}
	var title, body string
	switch {
	case rec.Title != nil:
		title = *rec.Title
		body = rec.SelfText
	case rec.Body != nil:
		body = *rec.Body
	}
	_, err := insert.ExecContext(ctx, body, title, rec.ID, author, rec.Score, rec.Subreddit, rec.URL)
	return err
}

// Search runs a full-text query against record bodies and returns up to
// limit hits, best match first.
func (i *Index) Search(ctx context.Context, query string, limit int) ([]Hit, error) {
	match := buildBodyQuery(query)
	if match == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = 10
	}

	rows, err := i.db.QueryContext(ctx,
		`SELECT bm25(records), id, title, body, author
		 FROM records WHERE records MATCH ?
		 ORDER BY bm25(records) LIMIT ?`, match, limit)
	if err != nil {
		return nil, fmt.Errorf("search %q: %w", query, err)
	}
	defer rows.Close()

	var hits []Hit
	for rows.Next() {
		var h Hit
		var rank float64
		if err := rows.Scan(&rank, &h.ID, &h.Title, &h.Body, &h.Author); err != nil {
			return nil, fmt.Errorf("scan hit: %w", err)
		}
		// bm25() ranks best matches most negative; flip it so callers see
		// higher-is-better scores.
		h.Score = -rank
		hits = append(hits, h)
	}
	return hits, rows.Err()
}

// buildBodyQuery turns free text into an FTS5 match expression restricted
// to the body column. Tokens are quoted so user input cannot inject query
// syntax.
func buildBodyQuery(query string) string {
	fields := strings.Fields(query)
	terms := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.ReplaceAll(f, `"`, "")
		if f == "" {
			continue
		}
		terms = append(terms, fmt.Sprintf(`body:"%s"`, f))
	}
	return strings.Join(terms, " ")
}
