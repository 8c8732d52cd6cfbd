package archive

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"aoe4replay/analyzer/internal/logging"
)

// RetentionPolicy defines how many bundles are retained on disk.
type RetentionPolicy struct {
	MaxMatches int
	MaxAge     time.Duration
}

// StorageStats summarises the disk footprint of persisted bundles.
type StorageStats struct {
	Bundles   int
	Headers   int
	Bytes     int64
	LastSweep time.Time
}

// Cleaner periodically prunes bundles according to a retention policy.
type Cleaner struct {
	mu     sync.RWMutex
	dir    string
	policy RetentionPolicy
	log    *logging.Logger
	now    func() time.Time
	stats  StorageStats
}

// NewCleaner constructs a cleaner for the archive root.
func NewCleaner(dir string, policy RetentionPolicy, logger *logging.Logger) *Cleaner {
	if logger == nil {
		logger = logging.L()
	}
	return &Cleaner{dir: dir, policy: policy, log: logger, now: time.Now}
}

// Run executes retention sweeps until the context is cancelled.
func (c *Cleaner) Run(ctx context.Context, interval time.Duration) {
	if c == nil || ctx == nil {
		return
	}
	if interval <= 0 {
		interval = time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	//1.- Sweep eagerly so retention applies on startup.
	c.sweep()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.sweep()
		}
	}
}

// RunOnce performs a single retention sweep.
func (c *Cleaner) RunOnce() {
	if c == nil {
		return
	}
	c.sweep()
}

// Stats returns the last recorded storage statistics.
func (c *Cleaner) Stats() StorageStats {
	if c == nil {
		return StorageStats{}
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.stats
}

type artefact struct {
	name      string
	path      string
	hasHeader bool
	size      int64
	modTime   time.Time
}

func (c *Cleaner) sweep() {
	if c == nil || strings.TrimSpace(c.dir) == "" {
		return
	}
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		c.log.Warn("archive retention scan failed", logging.Error(err), logging.String("directory", c.dir))
		return
	}
	artefacts := c.collect(entries)
	now := c.now()
	kept := 0
	stats := StorageStats{LastSweep: now}
	keep := func(art *artefact) {
		kept++
		stats.Bundles++
		if art.hasHeader {
			stats.Headers++
		}
		stats.Bytes += art.size
	}
	for _, art := range artefacts {
		shouldRemove, reasons := c.shouldRemove(art, now, kept)
		if !shouldRemove {
			keep(art)
			continue
		}
		if err := os.RemoveAll(art.path); err != nil {
			c.log.Warn("archive retention removal failed", logging.Error(err), logging.String("bundle", art.name))
			keep(art)
			continue
		}
		c.log.Info("archive retention removed bundle", logging.String("bundle", art.name), logging.String("reason", reasons))
	}
	c.mu.Lock()
	c.stats = stats
	c.mu.Unlock()
}

// collect lists bundle directories newest first. Loose files and the run reports are ignored.
func (c *Cleaner) collect(entries []os.DirEntry) []*artefact {
	list := make([]*artefact, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() || entry.Name() == RunsDir {
			continue
		}
		path := filepath.Join(c.dir, entry.Name())
		info, err := entry.Info()
		if err != nil {
			c.log.Warn("archive retention stat failed", logging.Error(err), logging.String("path", path))
			continue
		}
		size, newest, err := directoryUsage(path)
		if err != nil {
			c.log.Warn("archive retention size failed", logging.Error(err), logging.String("path", path))
			continue
		}
		art := &artefact{name: entry.Name(), path: path, size: size, modTime: info.ModTime()}
		if newest.After(art.modTime) {
			art.modTime = newest
		}
		if _, err := os.Stat(filepath.Join(path, HeaderFile)); err == nil {
			art.hasHeader = true
		}
		list = append(list, art)
	}
	//1.- Newest first so retention limits favour recent bundles.
	sort.Slice(list, func(i, j int) bool { return list[i].modTime.After(list[j].modTime) })
	return list
}

func (c *Cleaner) shouldRemove(art *artefact, now time.Time, kept int) (bool, string) {
	reasons := make([]string, 0, 2)
	if c.policy.MaxAge > 0 && now.Sub(art.modTime) > c.policy.MaxAge {
		reasons = append(reasons, fmt.Sprintf("age>%s", c.policy.MaxAge))
	}
	if c.policy.MaxMatches > 0 && kept >= c.policy.MaxMatches {
		//1.- Count limit applies after age removals.
		reasons = append(reasons, fmt.Sprintf(">=%d bundles", c.policy.MaxMatches))
	}
	return len(reasons) > 0, strings.Join(reasons, ", ")
}

func directoryUsage(root string) (int64, time.Time, error) {
	var (
		total  int64
		newest time.Time
	)
	walkErr := filepath.WalkDir(root, func(_ string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		total += info.Size()
		if info.ModTime().After(newest) {
			newest = info.ModTime()
		}
		return nil
	})
	return total, newest, walkErr
}
