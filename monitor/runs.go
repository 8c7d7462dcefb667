package monitor

import (
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/gocarina/gocsv"

	"github.com/pthm-cable/hopper/telemetry"
)

// RunSummary is one row in the run listing.
type RunSummary struct {
	ID        string    `json:"id"`
	UpdatedAt time.Time `json:"updated_at"`
	Episodes  int       `json:"episodes"`
	HasConfig bool      `json:"has_config"`
}

// discoverRuns lists run directories under the results dir, newest first.
// A directory qualifies once its episodes.csv exists.
func (s *Server) discoverRuns() ([]RunSummary, error) {
	entries, err := os.ReadDir(s.ResultsDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []RunSummary{}, nil
		}
		return nil, err
	}

	runs := make([]RunSummary, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		dir := filepath.Join(s.ResultsDir, entry.Name())
		episodesPath := filepath.Join(dir, "episodes.csv")
		fi, err := os.Stat(episodesPath)
		if err != nil {
			continue
		}
		episodes, err := s.episodeRows(episodesPath)
		if err != nil {
			s.log.Warn("skipping unreadable run", "run", entry.Name(), "error", err)
			continue
		}
		_, cfgErr := os.Stat(filepath.Join(dir, "config.yaml"))
		runs = append(runs, RunSummary{
			ID:        entry.Name(),
			UpdatedAt: fi.ModTime().UTC(),
			Episodes:  len(episodes),
			HasConfig: cfgErr == nil,
		})
	}

	sort.Slice(runs, func(i, j int) bool {
		return runs[i].UpdatedAt.After(runs[j].UpdatedAt)
	})
	return runs, nil
}

func (s *Server) episodeRows(path string) ([]telemetry.EpisodeRecord, error) {
	v, err := s.cache.load(path, func(f *os.File) (any, error) {
		var rows []telemetry.EpisodeRecord
		if err := gocsv.UnmarshalFile(f, &rows); err != nil {
			return nil, err
		}
		return rows, nil
	})
	if err != nil || v == nil {
		return nil, err
	}
	return v.([]telemetry.EpisodeRecord), nil
}

func (s *Server) windowRows(path string) ([]telemetry.WindowStats, error) {
	v, err := s.cache.load(path, func(f *os.File) (any, error) {
		var rows []telemetry.WindowStats
		if err := gocsv.UnmarshalFile(f, &rows); err != nil {
			return nil, err
		}
		return rows, nil
	})
	if err != nil || v == nil {
		return nil, err
	}
	return v.([]telemetry.WindowStats), nil
}

// csvCache memoizes parsed CSV files keyed by size and mtime, so a polling
// dashboard does not re-parse runs that have not changed.
type csvCache struct {
	mu      sync.Mutex
	entries map[string]cacheEntry
}

type cacheEntry struct {
	size  int64
	mtime time.Time
	rows  any
}

func newCSVCache() *csvCache {
	return &csvCache{entries: make(map[string]cacheEntry)}
}

func (c *csvCache) load(path string, parse func(*os.File) (any, error)) (any, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	cached, ok := c.entries[path]
	c.mu.Unlock()
	if ok && cached.size == fi.Size() && cached.mtime.Equal(fi.ModTime()) {
		return cached.rows, nil
	}

	// Headers are written lazily, so a run with no finished rows is an
	// empty file rather than a CSV.
	if fi.Size() == 0 {
		c.store(path, fi, nil)
		return nil, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	rows, err := parse(f)
	if err != nil {
		return nil, err
	}
	c.store(path, fi, rows)
	return rows, nil
}

func (c *csvCache) store(path string, fi os.FileInfo, rows any) {
	c.mu.Lock()
	c.entries[path] = cacheEntry{size: fi.Size(), mtime: fi.ModTime(), rows: rows}
	c.mu.Unlock()
}
