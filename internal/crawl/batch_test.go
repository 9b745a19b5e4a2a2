package crawl

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestSink(t *testing.T) *Sink {
	t.Helper()
	sink, err := NewSink(t.TempDir(), zap.NewNop())
	require.NoError(t, err)
	return sink
}

func listUnits(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestBatchFlushEmptyIsNoop(t *testing.T) {
	t.Parallel()

	sink := newTestSink(t)
	batch := NewBatch(sink, "golang", 10)
	n, err := batch.Flush()
	require.NoError(t, err)
	require.Zero(t, n)
	require.Empty(t, listUnits(t, sink.Dir()))
}

func TestBatchThresholdFlushRoundTrips(t *testing.T) {
	t.Parallel()

	sink := newTestSink(t)
	const limit = 50
	batch := NewBatch(sink, "golang", limit)

	want := make([]Record, 0, limit)
	for i := 0; i < limit; i++ {
		if i%2 == 0 {
			post := Post{
				ID:          fmt.Sprintf("p%03d", i),
				Title:       fmt.Sprintf("title %d — unicode ✓", i),
				SelfText:    "大きな текст body",
				URL:         "https://example.org/p",
				Subreddit:   "golang",
				Score:       i,
				UpvoteRatio: 0.87,
			}
			batch.Append(post)
			want = append(want, post)
		} else {
			comment := Comment{
				ID:     fmt.Sprintf("c%03d", i),
				Body:   "reply ünïcode 🎉",
				Author: "alice",
				Score:  -i,
			}
			batch.Append(comment)
			want = append(want, comment)
		}
	}
	require.True(t, batch.Full())

	n, err := batch.Flush()
	require.NoError(t, err)
	require.Positive(t, n)
	require.Zero(t, batch.Len(), "batch is cleared after flush")

	units := listUnits(t, sink.Dir())
	require.Len(t, units, 1, "exactly one unit for one flush")

	f, err := os.Open(filepath.Join(sink.Dir(), units[0]))
	require.NoError(t, err)
	defer f.Close() //nolint:errcheck // read-only file

	var total int64
	scanner := bufio.NewScanner(f)
	line := 0
	for scanner.Scan() {
		raw := scanner.Bytes()
		total += int64(len(raw)) + 1
		switch expected := want[line].(type) {
		case Post:
			var got Post
			require.NoError(t, json.Unmarshal(raw, &got))
			require.Equal(t, expected, got, "line %d", line)
		case Comment:
			var got Comment
			require.NoError(t, json.Unmarshal(raw, &got))
			require.Equal(t, expected, got, "line %d", line)
		}
		line++
	}
	require.NoError(t, scanner.Err())
	require.Equal(t, limit, line, "unit contains exactly the flushed records")
	require.Equal(t, n, total, "reported bytes equal the unit's growth")
}

func TestSinkAllocatesUniqueUnitsConcurrently(t *testing.T) {
	t.Parallel()

	sink := newTestSink(t)
	const flushes = 12
	var wg sync.WaitGroup
	for i := 0; i < flushes; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			rec := Comment{ID: fmt.Sprintf("c%d", i), Body: "b", Author: "a", Score: 1}
			_, err := sink.WriteUnit("shared/target", []Record{rec})
			require.NoError(t, err)
		}(i)
	}
	wg.Wait()

	units := listUnits(t, sink.Dir())
	require.Len(t, units, flushes, "every flush creates its own unit")
	seen := make(map[string]struct{}, len(units))
	for _, name := range units {
		_, dup := seen[name]
		require.False(t, dup, "unit name %s allocated twice", name)
		seen[name] = struct{}{}
	}
}

func TestSinkResumesNumberingAfterExistingUnits(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(
		filepath.Join(dir, "posts_golang_000007.json"),
		[]byte(`{"id":"old","body":"b","author":"a","score":1}`+"\n"), 0o600))

	sink, err := NewSink(dir, zap.NewNop())
	require.NoError(t, err)

	_, err = sink.WriteUnit("golang", []Record{
		Comment{ID: "new", Body: "b", Author: "a", Score: 1},
	})
	require.NoError(t, err)
	require.Contains(t, listUnits(t, dir), "posts_golang_000008.json",
		"numbering continues past units from earlier runs")

	data, err := os.ReadFile(filepath.Join(dir, "posts_golang_000007.json"))
	require.NoError(t, err)
	require.Contains(t, string(data), `"old"`, "earlier output is never replaced")
}

func TestFlushFailureLeavesNoPartialUnit(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	// A directory squatting on the next unit name makes the publish
	// rename fail after the records were fully written.
	require.NoError(t, os.Mkdir(filepath.Join(dir, "posts_golang_000001.json"), 0o750))

	sink, err := NewSink(dir, zap.NewNop())
	require.NoError(t, err)
	batch := NewBatch(sink, "golang", 10)
	batch.Append(Comment{ID: "c1", Body: "first", Author: "a", Score: 1})
	batch.Append(Comment{ID: "c2", Body: "second", Author: "b", Score: 2})

	_, err = batch.Flush()
	require.Error(t, err)
	require.Equal(t, 2, batch.Len(), "records survive a failed flush for retry")

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		t.Fatalf("failed flush left %s behind", e.Name())
	}

	// The retry writes every record exactly once under a fresh index.
	n, err := batch.Flush()
	require.NoError(t, err)
	require.Positive(t, n)
	require.Zero(t, batch.Len())

	ids := make(map[string]int)
	for _, name := range listUnits(t, dir) {
		path := filepath.Join(dir, name)
		info, err := os.Stat(path)
		require.NoError(t, err)
		if info.IsDir() {
			continue
		}
		f, err := os.Open(path)
		require.NoError(t, err)
		scanner := bufio.NewScanner(f)
		for scanner.Scan() {
			var rec struct {
				ID string `json:"id"`
			}
			require.NoError(t, json.Unmarshal(scanner.Bytes(), &rec))
			ids[rec.ID]++
		}
		require.NoError(t, scanner.Err())
		require.NoError(t, f.Close())
	}
	require.Equal(t, map[string]int{"c1": 1, "c2": 1}, ids,
		"no id is ever written to the output twice")
}

func TestSanitizeTarget(t *testing.T) {
	t.Parallel()

	require.Equal(t, "r_golang", sanitizeTarget("r/golang"))
	require.Equal(t, "target", sanitizeTarget(""))
	require.Equal(t, "a_b", sanitizeTarget("a b"))
}
