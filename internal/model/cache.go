package model

import (
	"cmp"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"
)

// Cache persists validated coefficient files so the best table seen so far
// survives restarts without a network dependency. Filenames carry the
// table's final epoch and the fetch time (igrf_<epoch>_<unix>.txt): on load
// the newest model generation wins, and fetch time only breaks ties within
// one generation. A stale mirror serving an older-generation file can
// therefore never displace a newer table already on disk.
type Cache struct {
	dir      string
	maxFiles int
}

// NewCache creates a Cache rooted at dir keeping at most maxFiles entries.
func NewCache(dir string, maxFiles int) *Cache {
	if maxFiles <= 0 {
		maxFiles = 5
	}
	return &Cache{dir: dir, maxFiles: maxFiles}
}

// cacheEntry is one cached coefficient file, decoded from its filename.
type cacheEntry struct {
	name      string
	lastEpoch float64
	fetchedAt time.Time
}

func entryName(lastEpoch float64, ts time.Time) string {
	return fmt.Sprintf("igrf_%s_%d.txt",
		strconv.FormatFloat(lastEpoch, 'f', 1, 64), ts.Unix())
}

// parseEntryName inverts entryName. Foreign or malformed names report
// ok = false and are ignored by the cache.
func parseEntryName(name string) (cacheEntry, bool) {
	rest, ok := strings.CutPrefix(name, "igrf_")
	if !ok {
		return cacheEntry{}, false
	}
	rest, ok = strings.CutSuffix(rest, ".txt")
	if !ok {
		return cacheEntry{}, false
	}
	epochStr, unixStr, ok := strings.Cut(rest, "_")
	if !ok {
		return cacheEntry{}, false
	}
	epoch, err := strconv.ParseFloat(epochStr, 64)
	if err != nil {
		return cacheEntry{}, false
	}
	unix, err := strconv.ParseInt(unixStr, 10, 64)
	if err != nil {
		return cacheEntry{}, false
	}
	return cacheEntry{name: name, lastEpoch: epoch, fetchedAt: time.Unix(unix, 0)}, true
}

// Write persists a coefficient file tagged with its table's final epoch,
// then prunes the weakest entries beyond maxFiles. Callers must have parsed
// data successfully first; the cache never stores a file it would refuse to
// serve back.
func (c *Cache) Write(data []byte, lastEpoch float64, ts time.Time) error {
	if err := os.MkdirAll(c.dir, 0755); err != nil {
		return fmt.Errorf("creating cache dir: %w", err)
	}
	path := filepath.Join(c.dir, entryName(lastEpoch, ts))
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing cache file: %w", err)
	}
	return c.prune()
}

// LoadLatest returns the cached file of the newest model generation and its
// fetch time. Within one generation the most recently fetched copy wins.
func (c *Cache) LoadLatest() ([]byte, time.Time, error) {
	entries, err := c.entries()
	if err != nil {
		return nil, time.Time{}, err
	}
	if len(entries) == 0 {
		return nil, time.Time{}, fmt.Errorf("no cached coefficient files in %s", c.dir)
	}
	best := entries[len(entries)-1]
	data, err := os.ReadFile(filepath.Join(c.dir, best.name))
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("reading cache file: %w", err)
	}
	return data, best.fetchedAt, nil
}

// entries lists the valid cache files ordered weakest first: by model
// generation, then by fetch time.
func (c *Cache) entries() ([]cacheEntry, error) {
	dirents, err := os.ReadDir(c.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("listing cache dir: %w", err)
	}

	var entries []cacheEntry
	for _, de := range dirents {
		if de.IsDir() {
			continue
		}
		if e, ok := parseEntryName(de.Name()); ok {
			entries = append(entries, e)
		}
	}

	slices.SortFunc(entries, func(a, b cacheEntry) int {
		if a.lastEpoch != b.lastEpoch {
			return cmp.Compare(a.lastEpoch, b.lastEpoch)
		}
		return a.fetchedAt.Compare(b.fetchedAt)
	})
	return entries, nil
}

// prune drops the weakest entries until at most maxFiles remain, so the
// newest generation is always the last to go.
func (c *Cache) prune() error {
	entries, err := c.entries()
	if err != nil {
		return err
	}
	for len(entries) > c.maxFiles {
		victim := entries[0]
		if err := os.Remove(filepath.Join(c.dir, victim.name)); err != nil {
			return fmt.Errorf("pruning cache file %s: %w", victim.name, err)
		}
		entries = entries[1:]
	}
	return nil
}
