package registry

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/launchpad-dev/launchpad/internal/errs"
)

// cacheMetadata is the on-disk sidecar recorded next to each cached
// artifact, mirroring the teacher's internal/registry/cache.go
// CacheMetadata: when it was cached, when it expires, and when it was
// last read (for LRU-style eviction in a future cache:clear pass).
type cacheMetadata struct {
	CachedAt    time.Time `json:"cached_at"`
	ExpiresAt   time.Time `json:"expires_at"`
	LastAccess  time.Time `json:"last_access"`
	Size        int64     `json:"size"`
	ContentHash string    `json:"content_hash"`
}

// CachedRegistry decorates a PackageRegistry with an on-disk TTL cache
// under {cache_dir}/registry/. Package-info and version-list lookups
// are cached as JSON; fetched artifacts are cached as files with a
// metadata sidecar, so a re-fetch of an unexpired artifact never
// touches the network. Grounded on the teacher's
// internal/registry/cache.go (metadata sidecar, LastAccess/ExpiresAt)
// and internal/registry/cached_registry.go (decorator wrapping a
// lookup with transparent caching).
type CachedRegistry struct {
	inner   PackageRegistry
	dir     string
	ttl     time.Duration
	mu      sync.Mutex // guards concurrent writers to the same cache file
	nowFunc func() time.Time
}

// NewCachedRegistry wraps inner with an on-disk cache rooted at dir,
// entries expiring after ttl.
func NewCachedRegistry(inner PackageRegistry, dir string, ttl time.Duration) *CachedRegistry {
	return &CachedRegistry{inner: inner, dir: dir, ttl: ttl, nowFunc: time.Now}
}

func (c *CachedRegistry) infoPath(domain string) string {
	return filepath.Join(c.dir, safeSegment(domain), "info.json")
}

func (c *CachedRegistry) versionsPath(domain string) string {
	return filepath.Join(c.dir, safeSegment(domain), "versions.json")
}

func (c *CachedRegistry) artifactPath(domain, version, platform, arch string) string {
	name := fmt.Sprintf("%s-%s-%s", version, platform, arch)
	return filepath.Join(c.dir, safeSegment(domain), "artifacts", safeSegment(name))
}

func safeSegment(s string) string {
	h := sha256.Sum256([]byte(s))
	return hex.EncodeToString(h[:8])
}

func (c *CachedRegistry) readJSON(path string, v interface{}) (bool, error) {
	metaPath := path + ".meta.json"
	metaRaw, err := os.ReadFile(metaPath)
	if err != nil {
		return false, nil
	}
	var meta cacheMetadata
	if err := json.Unmarshal(metaRaw, &meta); err != nil {
		return false, nil
	}
	if c.nowFunc().After(meta.ExpiresAt) {
		return false, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return false, nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, nil
	}
	meta.LastAccess = c.nowFunc()
	c.writeMeta(metaPath, meta)
	return true, nil
}

func (c *CachedRegistry) writeJSON(path string, v interface{}) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if err := atomicWrite(path, data); err != nil {
		return err
	}
	now := c.nowFunc()
	meta := cacheMetadata{
		CachedAt:    now,
		ExpiresAt:   now.Add(c.ttl),
		LastAccess:  now,
		Size:        int64(len(data)),
		ContentHash: contentHash(data),
	}
	return c.writeMeta(path+".meta.json", meta)
}

func (c *CachedRegistry) writeMeta(path string, meta cacheMetadata) error {
	data, err := json.Marshal(meta)
	if err != nil {
		return err
	}
	return atomicWrite(path, data)
}

// atomicWrite writes data to a temp file in the same directory as path
// then renames it into place, matching the create-temp-then-rename
// idiom used throughout the teacher's config and install state writers.
func atomicWrite(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".cache-*.tmp")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}
	return os.Rename(tmpPath, path)
}

func contentHash(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

func (c *CachedRegistry) GetPackageInfo(ctx context.Context, domain string) (*PackageInfo, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var info PackageInfo
	path := c.infoPath(domain)
	if ok, _ := c.readJSON(path, &info); ok {
		return &info, nil
	}

	fresh, err := c.inner.GetPackageInfo(ctx, domain)
	if err != nil {
		return nil, err
	}
	_ = c.writeJSON(path, fresh)
	return fresh, nil
}

func (c *CachedRegistry) EnumerateVersions(ctx context.Context, domain string) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var versions []string
	path := c.versionsPath(domain)
	if ok, _ := c.readJSON(path, &versions); ok {
		return versions, nil
	}

	fresh, err := c.inner.EnumerateVersions(ctx, domain)
	if err != nil {
		return nil, err
	}
	_ = c.writeJSON(path, fresh)
	return fresh, nil
}

// FetchArtifact caches the artifact bytes on disk so a repeated
// install of the same (domain, version, platform, arch) within the
// TTL window never re-downloads. The returned stream is always a
// fresh *os.File handle onto the cached copy.
func (c *CachedRegistry) FetchArtifact(ctx context.Context, domain, version, platform, arch string) (*Artifact, error) {
	path := c.artifactPath(domain, version, platform, arch)
	metaPath := path + ".meta.json"

	c.mu.Lock()
	if metaRaw, err := os.ReadFile(metaPath); err == nil {
		var meta cacheMetadata
		if json.Unmarshal(metaRaw, &meta) == nil && c.nowFunc().Before(meta.ExpiresAt) {
			if f, err := os.Open(path); err == nil {
				meta.LastAccess = c.nowFunc()
				c.writeMeta(metaPath, meta)
				c.mu.Unlock()
				return &Artifact{Stream: f, ExpectedDigest: "sha256:" + meta.ContentHash, ContentLength: meta.Size}, nil
			}
		}
	}
	c.mu.Unlock()

	fresh, err := c.inner.FetchArtifact(ctx, domain, version, platform, arch)
	if err != nil {
		return nil, err
	}
	defer fresh.Stream.Close()

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, errs.New(errs.KindIoError, "registry.cached.FetchArtifact", domain, err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".artifact-*.tmp")
	if err != nil {
		return nil, errs.New(errs.KindIoError, "registry.cached.FetchArtifact", domain, err)
	}
	tmpPath := tmp.Name()
	h := sha256.New()
	size, err := io.Copy(io.MultiWriter(tmp, h), fresh.Stream)
	if err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return nil, errs.New(errs.KindFetchFailed, "registry.cached.FetchArtifact", domain, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return nil, errs.New(errs.KindIoError, "registry.cached.FetchArtifact", domain, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return nil, errs.New(errs.KindIoError, "registry.cached.FetchArtifact", domain, err)
	}

	digest := fresh.ExpectedDigest
	if digest == "" {
		digest = "sha256:" + hex.EncodeToString(h.Sum(nil))
	}

	c.mu.Lock()
	now := c.nowFunc()
	c.writeMeta(metaPath, cacheMetadata{
		CachedAt:    now,
		ExpiresAt:   now.Add(c.ttl),
		LastAccess:  now,
		Size:        size,
		ContentHash: hex.EncodeToString(h.Sum(nil)),
	})
	c.mu.Unlock()

	f, err := os.Open(path)
	if err != nil {
		return nil, errs.New(errs.KindIoError, "registry.cached.FetchArtifact", domain, err)
	}
	return &Artifact{Stream: f, ExpectedDigest: digest, ContentLength: size}, nil
}

func (c *CachedRegistry) Aliases(ctx context.Context) (map[string]string, error) {
	return c.inner.Aliases(ctx)
}

// ClearCache removes every cached entry under the registry's cache
// root, used by the `cache:clear` command.
func (c *CachedRegistry) ClearCache() error {
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return errs.New(errs.KindIoError, "registry.cached.ClearCache", c.dir, err)
	}
	for _, e := range entries {
		if err := os.RemoveAll(filepath.Join(c.dir, e.Name())); err != nil {
			return errs.New(errs.KindIoError, "registry.cached.ClearCache", e.Name(), err)
		}
	}
	return nil
}
