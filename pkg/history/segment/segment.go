// Package segment implements the persistent history store as a directory of
// append-only segment files. Entries are JSON lines prefixed with an xxhash
// checksum so a torn tail write from a crash is detected and skipped on the
// next read. Eviction drops whole segments, oldest first, which keeps the
// store crash-safe: surviving entries are never rewritten.
package segment

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/rs/zerolog"

	"sysobs/pkg/stats"
)

const (
	segmentPrefix = "history-"
	segmentSuffix = ".seg"

	// The byte cap is split across this many segments. Dropping the oldest
	// segment frees cap/segmentsPerCap bytes at a time.
	segmentsPerCap = 4
)

// Store is a segment-file backed history store.
type Store struct {
	dir         string
	maxBytes    int64
	segMaxBytes int64
	logger      zerolog.Logger

	mu       sync.RWMutex
	sealed   []segmentFile // oldest first
	active   *os.File
	activeFi segmentFile
}

type segmentFile struct {
	seq  uint64
	path string
	size int64
}

// Open creates or reopens a store rooted at dir. Segments written before a
// crash or restart remain readable.
func Open(dir string, maxBytes int64, logger zerolog.Logger) (*Store, error) {
	if maxBytes < 1 {
		return nil, fmt.Errorf("segment store size cap must be positive, got %d", maxBytes)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create history directory %s: %w", dir, err)
	}

	segMax := maxBytes / segmentsPerCap
	if segMax < 1 {
		segMax = 1
	}

	s := &Store{
		dir:         dir,
		maxBytes:    maxBytes,
		segMaxBytes: segMax,
		logger:      logger,
	}

	existing, err := scanSegments(dir)
	if err != nil {
		return nil, err
	}

	if n := len(existing); n > 0 {
		// The newest existing segment becomes the active one again.
		s.sealed = existing[:n-1]
		s.activeFi = existing[n-1]
	} else {
		s.activeFi = segmentFile{seq: 1, path: s.segmentPath(1)}
	}

	f, err := os.OpenFile(s.activeFi.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open active segment: %w", err)
	}
	s.active = f

	return s, nil
}

// Append durably writes one entry and evicts the oldest segments if the
// total footprint exceeds the cap.
func (s *Store) Append(entry stats.Snapshot) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encode history entry: %w", err)
	}
	line := fmt.Sprintf("%016x %s\n", xxhash.Sum64(data), data)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.activeFi.size > 0 && s.activeFi.size+int64(len(line)) > s.segMaxBytes {
		if err := s.rotate(); err != nil {
			return err
		}
	}

	n, err := s.active.WriteString(line)
	s.activeFi.size += int64(n)
	if err != nil {
		return fmt.Errorf("append history entry: %w", err)
	}
	if err := s.active.Sync(); err != nil {
		return fmt.Errorf("flush history entry: %w", err)
	}

	s.evictLocked()
	return nil
}

// ReadAll returns every entry, oldest first. Lines with a bad checksum
// (typically a torn tail write from a crash) are skipped.
func (s *Store) ReadAll() ([]stats.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	paths := make([]string, 0, len(s.sealed)+1)
	for _, seg := range s.sealed {
		paths = append(paths, seg.path)
	}
	paths = append(paths, s.activeFi.path)

	var entries []stats.Snapshot
	for _, path := range paths {
		if err := s.readSegment(path, &entries); err != nil {
			return nil, err
		}
	}
	return entries, nil
}

// SizeBytes returns the total logical size of all segments.
func (s *Store) SizeBytes() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	total := s.activeFi.size
	for _, seg := range s.sealed {
		total += seg.size
	}
	return total
}

// Close flushes and closes the active segment.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.active.Sync(); err != nil {
		s.active.Close()
		return err
	}
	return s.active.Close()
}

// rotate seals the active segment and starts a new one. Caller holds the lock.
func (s *Store) rotate() error {
	if err := s.active.Sync(); err != nil {
		return fmt.Errorf("seal segment: %w", err)
	}
	if err := s.active.Close(); err != nil {
		return fmt.Errorf("seal segment: %w", err)
	}
	s.sealed = append(s.sealed, s.activeFi)

	next := segmentFile{seq: s.activeFi.seq + 1}
	next.path = s.segmentPath(next.seq)
	f, err := os.OpenFile(next.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open new segment: %w", err)
	}
	s.active = f
	s.activeFi = next
	return nil
}

// evictLocked removes sealed segments, oldest first, until the footprint is
// back under the cap. The active segment is never evicted. Caller holds the
// lock.
func (s *Store) evictLocked() {
	total := s.activeFi.size
	for _, seg := range s.sealed {
		total += seg.size
	}

	for total > s.maxBytes && len(s.sealed) > 0 {
		oldest := s.sealed[0]
		if err := os.Remove(oldest.path); err != nil {
			s.logger.Error().Err(err).Str("segment", oldest.path).Msg("failed to evict history segment")
			return
		}
		s.logger.Debug().Str("segment", oldest.path).Int64("freed_bytes", oldest.size).Msg("evicted history segment")
		total -= oldest.size
		s.sealed = s.sealed[1:]
	}
}

func (s *Store) readSegment(path string, entries *[]stats.Snapshot) error {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("open segment %s: %w", path, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}

		sum, data, ok := splitRecord(line)
		if !ok || xxhash.Sum64String(data) != sum {
			s.logger.Warn().Str("segment", path).Msg("skipping corrupt history record")
			continue
		}

		var entry stats.Snapshot
		if err := json.Unmarshal([]byte(data), &entry); err != nil {
			s.logger.Warn().Err(err).Str("segment", path).Msg("skipping undecodable history record")
			continue
		}
		*entries = append(*entries, entry)
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read segment %s: %w", path, err)
	}
	return nil
}

// splitRecord splits "checksum json" into its parts.
func splitRecord(line string) (uint64, string, bool) {
	idx := strings.IndexByte(line, ' ')
	if idx != 16 {
		return 0, "", false
	}
	sum, err := strconv.ParseUint(line[:idx], 16, 64)
	if err != nil {
		return 0, "", false
	}
	return sum, line[idx+1:], true
}

func (s *Store) segmentPath(seq uint64) string {
	return filepath.Join(s.dir, fmt.Sprintf("%s%06d%s", segmentPrefix, seq, segmentSuffix))
}

// scanSegments lists existing segment files in sequence order.
func scanSegments(dir string) ([]segmentFile, error) {
	dirents, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("scan history directory: %w", err)
	}

	var segs []segmentFile
	for _, de := range dirents {
		name := de.Name()
		if de.IsDir() || !strings.HasPrefix(name, segmentPrefix) || !strings.HasSuffix(name, segmentSuffix) {
			continue
		}
		seqStr := strings.TrimSuffix(strings.TrimPrefix(name, segmentPrefix), segmentSuffix)
		seq, err := strconv.ParseUint(seqStr, 10, 64)
		if err != nil {
			continue
		}
		info, err := de.Info()
		if err != nil {
			return nil, fmt.Errorf("stat segment %s: %w", name, err)
		}
		segs = append(segs, segmentFile{seq: seq, path: filepath.Join(dir, name), size: info.Size()})
	}

	sort.Slice(segs, func(i, j int) bool { return segs[i].seq < segs[j].seq })
	return segs, nil
}
