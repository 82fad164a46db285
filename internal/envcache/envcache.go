// Package envcache implements the Env Cache (spec.md §4.6): a two-tier
// cache mapping a manifest fingerprint to a ready-to-activate
// environment directory. The hot tier is an in-process ring buffer
// read via an atomically-swapped snapshot (no locks on the read path);
// the cold tier is one file per fingerprint under
// ~/.cache/launchpad/envs/, written with the standard
// create-tempfile-then-rename pattern.
//
// Grounded on the teacher's internal/install/state.go for the
// file-locked, atomic-rename on-disk record pattern (StateManager's
// Load/Save), generalized from a single global state file to one file
// per fingerprint, and on the teacher's go.mod use of
// golang.org/x/sync for the concurrency primitives idiom (here,
// atomic.Pointer instead of a mutex, matching spec.md §4.6's
// "lock-free read path" requirement).
package envcache

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/launchpad-dev/launchpad/internal/errs"
	"github.com/launchpad-dev/launchpad/internal/lockfile"
)

// HotTierSize bounds the in-process ring buffer (spec.md §4.6).
const HotTierSize = 8

// DefaultTTL matches spec.md §4.6's stated default.
const DefaultTTL = 3600 * time.Second

// Entry is the CacheEntry record of spec.md §3.
type Entry struct {
	Fingerprint   string    `json:"fingerprint"`
	EnvDir        string    `json:"env_dir"`
	ManifestPath  string    `json:"manifest_path"`
	ManifestMtime time.Time `json:"manifest_mtime"`
	CreatedAt     time.Time `json:"created_at"`
	LastUsedAt    time.Time `json:"last_used_at"`
	TTL           time.Duration `json:"ttl"`
}

// valid implements spec.md §3's CacheEntry validity invariant: env_dir
// exists, manifest_path still exists with an unchanged mtime, and the
// TTL has not elapsed as of now.
func (e *Entry) valid(now time.Time) bool {
	if e == nil {
		return false
	}
	if _, err := os.Stat(e.EnvDir); err != nil {
		return false
	}
	info, err := os.Stat(e.ManifestPath)
	if err != nil {
		return false
	}
	if !info.ModTime().Equal(e.ManifestMtime) {
		return false
	}
	if now.Sub(e.CreatedAt) >= e.TTL {
		return false
	}
	return true
}

// Cache is the two-tier cache. NowFunc is overridable for deterministic
// TTL tests.
type Cache struct {
	dir     string
	ttl     time.Duration
	hot     atomic.Pointer[[]Entry]
	hotMu   sync.Mutex // serializes hot-tier writers only; reads never lock
	NowFunc func() time.Time
}

// New returns a Cache whose cold tier lives under dir (typically
// config.Config.EnvCacheDir).
func New(dir string, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	c := &Cache{dir: dir, ttl: ttl, NowFunc: time.Now}
	empty := []Entry{}
	c.hot.Store(&empty)
	return c
}

func (c *Cache) now() time.Time {
	if c.NowFunc != nil {
		return c.NowFunc()
	}
	return time.Now()
}

// Lookup implements spec.md §4.6's lookup: probe the hot tier (atomic
// snapshot load, linear scan, no locks), then the cold tier. Returns
// (entry, true) only when a valid CacheEntry was found; never mutates
// anything else.
func (c *Cache) Lookup(fingerprint string) (*Entry, bool) {
	now := c.now()

	snapshot := *c.hot.Load()
	for i := range snapshot {
		if snapshot[i].Fingerprint == fingerprint && snapshot[i].valid(now) {
			e := snapshot[i]
			return &e, true
		}
	}

	entry, err := c.readCold(fingerprint)
	if err != nil || !entry.valid(now) {
		return nil, false
	}
	return entry, true
}

// Remember inserts fingerprint's entry into both tiers (spec.md
// §4.6's remember). Hot-tier writes copy-update the snapshot slice and
// atomically swap it; a full hot tier evicts the oldest entry (FIFO).
func (c *Cache) Remember(envDir, fingerprint, manifestPath string) error {
	now := c.now()
	info, err := os.Stat(manifestPath)
	if err != nil {
		return errs.New(errs.KindIoError, "envcache.Remember", manifestPath, err)
	}

	entry := Entry{
		Fingerprint:   fingerprint,
		EnvDir:        envDir,
		ManifestPath:  manifestPath,
		ManifestMtime: info.ModTime(),
		CreatedAt:     now,
		LastUsedAt:    now,
		TTL:           c.ttl,
	}

	c.hotMu.Lock()
	current := *c.hot.Load()
	next := make([]Entry, 0, len(current)+1)
	for _, e := range current {
		if e.Fingerprint != fingerprint {
			next = append(next, e)
		}
	}
	next = append(next, entry)
	if len(next) > HotTierSize {
		next = next[len(next)-HotTierSize:]
	}
	c.hot.Store(&next)
	c.hotMu.Unlock()

	return c.writeCold(&entry)
}

// Invalidate removes fingerprint from both tiers.
func (c *Cache) Invalidate(fingerprint string) error {
	c.hotMu.Lock()
	current := *c.hot.Load()
	next := make([]Entry, 0, len(current))
	for _, e := range current {
		if e.Fingerprint != fingerprint {
			next = append(next, e)
		}
	}
	c.hot.Store(&next)
	c.hotMu.Unlock()

	path := c.coldPath(fingerprint)
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return errs.New(errs.KindIoError, "envcache.Invalidate", fingerprint, err)
	}
	return nil
}

// ClearAll empties both tiers.
func (c *Cache) ClearAll() error {
	c.hotMu.Lock()
	empty := []Entry{}
	c.hot.Store(&empty)
	c.hotMu.Unlock()

	entries, err := os.ReadDir(c.dir)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return errs.New(errs.KindIoError, "envcache.ClearAll", c.dir, err)
	}
	for _, e := range entries {
		if err := os.Remove(filepath.Join(c.dir, e.Name())); err != nil {
			return errs.New(errs.KindIoError, "envcache.ClearAll", e.Name(), err)
		}
	}
	return nil
}

// GC removes cold-tier entries whose CreatedAt predates olderThan.
// Entries already expired by TTL but more recent than olderThan are
// left for the ordinary invalidation path.
func (c *Cache) GC(olderThan time.Time) error {
	entries, err := os.ReadDir(c.dir)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return errs.New(errs.KindIoError, "envcache.GC", c.dir, err)
	}
	for _, de := range entries {
		path := filepath.Join(c.dir, de.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		var e Entry
		if err := json.Unmarshal(data, &e); err != nil {
			// Partial/corrupt file: tolerate as absent, per spec.md §4.6.
			continue
		}
		if e.CreatedAt.Before(olderThan) {
			os.Remove(path)
		}
	}
	return nil
}

func (c *Cache) coldPath(fingerprint string) string {
	return filepath.Join(c.dir, fingerprint+".json")
}

// readCold loads a single cold-tier record, tolerating partial files
// by treating them as absent (spec.md §4.6).
func (c *Cache) readCold(fingerprint string) (*Entry, error) {
	path := c.coldPath(fingerprint)

	lock := lockfile.NewFileLock(path + ".lock")
	if err := lock.LockShared(); err != nil {
		return nil, err
	}
	defer lock.Unlock()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var e Entry
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, err
	}
	return &e, nil
}

// writeCold persists entry via create-tempfile-then-rename, matching
// the teacher's StateManager.Save idiom.
func (c *Cache) writeCold(entry *Entry) error {
	if err := os.MkdirAll(c.dir, 0755); err != nil {
		return errs.New(errs.KindIoError, "envcache.writeCold", c.dir, err)
	}

	path := c.coldPath(entry.Fingerprint)
	lock := lockfile.NewFileLock(path + ".lock")
	if err := lock.LockExclusive(); err != nil {
		return errs.New(errs.KindIoError, "envcache.writeCold", path, err)
	}
	defer lock.Unlock()

	data, err := json.Marshal(entry)
	if err != nil {
		return errs.New(errs.KindIoError, "envcache.writeCold", path, err)
	}

	tmp, err := os.CreateTemp(c.dir, ".envcache-*.tmp")
	if err != nil {
		return errs.New(errs.KindIoError, "envcache.writeCold", path, err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return errs.New(errs.KindIoError, "envcache.writeCold", path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return errs.New(errs.KindIoError, "envcache.writeCold", path, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return errs.New(errs.KindIoError, "envcache.writeCold", path, err)
	}
	return nil
}
