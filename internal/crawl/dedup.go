package crawl

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// maxRecordBytes bounds a single output line during seeding scans.
const maxRecordBytes = 16 * 1024 * 1024

// DedupSet is a concurrent set of item ids seen during the run. It only
// grows; there is no eviction for the lifetime of a run.
type DedupSet struct {
	mu  sync.Mutex
	ids map[string]struct{}
}

// NewDedupSet returns an empty DedupSet.
func NewDedupSet() *DedupSet {
	return &DedupSet{ids: make(map[string]struct{})}
}

// Seen reports whether id has already been marked.
func (s *DedupSet) Seen(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.ids[id]
	return ok
}

// MarkSeen inserts id if it is new and reports whether this call inserted
// it. The check and insert are a single atomic test-and-set so no two
// workers can both claim the same item.
func (s *DedupSet) MarkSeen(id string) bool {
	if id == "" {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.ids[id]; ok {
		return false
	}
	s.ids[id] = struct{}{}
	return true
}

// Len returns the number of ids in the set.
func (s *DedupSet) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.ids)
}

// Seed scans the existing output units under dir and marks every record id
// found, so a rerun against a populated directory writes no duplicates.
// Malformed lines are skipped and logged, never fatal. A missing directory
// is treated as empty.
func (s *DedupSet) Seed(dir string, logger *zap.Logger) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("scan output dir %s: %w", dir, err)
	}

	seeded := 0
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		n, err := s.seedFile(filepath.Join(dir, entry.Name()), logger)
		if err != nil {
			return seeded, err
		}
		seeded += n
	}
	return seeded, nil
}

func (s *DedupSet) seedFile(path string, logger *zap.Logger) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close() //nolint:errcheck // read-only file

	seeded := 0
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), maxRecordBytes)
	for scanner.Scan() {
		var rec struct {
			ID string `json:"id"`
		}
		if err := json.Unmarshal(scanner.Bytes(), &rec); err != nil || rec.ID == "" {
			logger.Warn("skipping malformed record", zap.String("file", path))
			continue
		}
		if s.MarkSeen(rec.ID) {
			seeded++
		}
	}
	if err := scanner.Err(); err != nil {
		return seeded, fmt.Errorf("read %s: %w", path, err)
	}
	return seeded, nil
}
