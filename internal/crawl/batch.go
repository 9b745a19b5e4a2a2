package crawl

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"sync/atomic"

	"go.uber.org/zap"
)

var (
	invalidFilenameChars = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)
	unitIndexPattern     = regexp.MustCompile(`_(\d{6})\.json$`)
)

// Sink owns the output directory and the run-wide unit index. Unit index
// allocation is an atomic increment shared by all workers, so two flushes
// can never collide on a filename.
type Sink struct {
	dir    string
	next   atomic.Int64
	logger *zap.Logger
}

// NewSink returns a sink rooted at dir, creating it if needed. Unit
// numbering resumes after the highest existing unit so a rerun never
// publishes over earlier output.
func NewSink(dir string, logger *zap.Logger) (*Sink, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create output dir %s: %w", dir, err)
	}
	s := &Sink{dir: dir, logger: logger}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("scan output dir %s: %w", dir, err)
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		m := unitIndexPattern.FindStringSubmatch(entry.Name())
		if m == nil {
			continue
		}
		idx, err := strconv.ParseInt(m[1], 10, 64)
		if err != nil {
			continue
		}
		if idx > s.next.Load() {
			s.next.Store(idx)
		}
	}
	return s, nil
}

// WriteUnit persists records as one newline-delimited JSON unit and returns
// the number of bytes written. The unit is assembled in a temp file and
// renamed into place after fsync, so a failed flush leaves no partial unit
// behind and the caller can safely retry the same records later.
func (s *Sink) WriteUnit(target string, records []Record) (int64, error) {
	idx := s.next.Add(1)
	name := fmt.Sprintf("posts_%s_%06d.json", sanitizeTarget(target), idx)
	path := filepath.Join(s.dir, name)

	tmp, err := os.CreateTemp(s.dir, name+".tmp-")
	if err != nil {
		return 0, fmt.Errorf("create unit %s: %w", path, err)
	}

	written, err := writeRecords(tmp, records)
	if err == nil {
		err = tmp.Sync()
	}
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(tmp.Name()) //nolint:errcheck,gosec // already failing
		return 0, fmt.Errorf("write unit %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name()) //nolint:errcheck,gosec // already failing
		return 0, fmt.Errorf("publish unit %s: %w", path, err)
	}

	s.logger.Info("flushed unit",
		zap.String("unit", name),
		zap.Int("records", len(records)),
		zap.Int64("bytes", written),
	)
	return written, nil
}

func writeRecords(f *os.File, records []Record) (int64, error) {
	var written int64
	w := bufio.NewWriter(f)
	for _, rec := range records {
		payload, err := json.Marshal(rec)
		if err != nil {
			return written, fmt.Errorf("marshal record %s: %w", rec.RecordID(), err)
		}
		n, err := w.Write(payload)
		written += int64(n)
		if err == nil {
			err = w.WriteByte('\n')
			written++
		}
		if err != nil {
			return written, err
		}
	}
	return written, w.Flush()
}

// Dir returns the sink's output directory.
func (s *Sink) Dir() string { return s.dir }

func sanitizeTarget(target string) string {
	clean := invalidFilenameChars.ReplaceAllString(target, "_")
	if clean == "" {
		clean = "target"
	}
	return clean
}

// Batch accumulates records owned by a single worker and flushes them to
// the shared sink once the count threshold is reached.
type Batch struct {
	sink    *Sink
	target  string
	limit   int
	records []Record
}

// NewBatch returns an empty batch for target that flushes at limit records.
func NewBatch(sink *Sink, target string, limit int) *Batch {
	if limit <= 0 {
		limit = 10000
	}
	return &Batch{sink: sink, target: target, limit: limit}
}

// Append adds a record to the batch.
func (b *Batch) Append(rec Record) {
	b.records = append(b.records, rec)
}

// Len returns the number of buffered records.
func (b *Batch) Len() int { return len(b.records) }

// Full reports whether the batch has reached its flush threshold.
func (b *Batch) Full() bool { return len(b.records) >= b.limit }

// Flush writes the buffered records to a new output unit and clears the
// batch, returning the bytes written. Flushing an empty batch is a no-op
// returning 0.
func (b *Batch) Flush() (int64, error) {
	if len(b.records) == 0 {
		return 0, nil
	}
	n, err := b.sink.WriteUnit(b.target, b.records)
	if err != nil {
		return 0, err
	}
	b.records = b.records[:0]
	return n, nil
}
