// Package cleanup implements spec.md §4.10's garbage collection
// surface: env:clean, cache:clear, and clean. Each operation's
// dry-run and real-run paths share one plan-computation function, so
// the two can never drift apart.
//
// Grounded on the teacher's internal/install/manager.go for the
// store/env directory traversal idiom (already adapted once for
// internal/installengine) and internal/registry/cached.go's
// ClearCache for the directory-wipe shape.
package cleanup

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/launchpad-dev/launchpad/internal/config"
	"github.com/launchpad-dev/launchpad/internal/envcache"
	"github.com/launchpad-dev/launchpad/internal/errs"
	"github.com/launchpad-dev/launchpad/internal/registry"
	"github.com/launchpad-dev/launchpad/internal/store"
)

// EnvCleanPlan is what env:clean would remove.
type EnvCleanPlan struct {
	EnvDirs    []string
	TotalBytes int64
	FileCount  int
}

// PlanEnvClean implements spec.md §4.10's env:clean selection rule:
// an EnvDir is removable when its cache entry's last_used_at predates
// cutoff AND its fingerprint is not currently installed globally (per
// isGlobal). Entries the cold tier has no record of (e.g. manually
// created env dirs) are left untouched — env:clean only acts on
// EnvDirs the cache remembers.
func PlanEnvClean(cfg *config.Config, cache *envcache.Cache, cutoff time.Time, isGlobal func(fingerprint string) bool) (*EnvCleanPlan, error) {
	entries, err := os.ReadDir(cfg.EnvCacheDir)
	if os.IsNotExist(err) {
		return &EnvCleanPlan{}, nil
	}
	if err != nil {
		return nil, errs.New(errs.KindIoError, "cleanup.PlanEnvClean", cfg.EnvCacheDir, err)
	}

	plan := &EnvCleanPlan{}
	for _, de := range entries {
		if de.IsDir() || filepath.Ext(de.Name()) != ".json" {
			continue
		}
		fp := de.Name()[:len(de.Name())-len(".json")]

		// Read the cold-tier record directly: cache.Lookup only returns
		// entries still within their TTL, which stale entries never are.
		var e envcache.Entry
		data, err := os.ReadFile(filepath.Join(cfg.EnvCacheDir, de.Name()))
		if err != nil || json.Unmarshal(data, &e) != nil {
			continue
		}
		if e.LastUsedAt.After(cutoff) {
			continue
		}
		if isGlobal != nil && isGlobal(fp) {
			continue
		}

		plan.EnvDirs = append(plan.EnvDirs, e.EnvDir)
		size, count, err := dirStats(e.EnvDir)
		if err == nil {
			plan.TotalBytes += size
			plan.FileCount += count
		}
	}
	return plan, nil
}

// ApplyEnvClean removes the EnvDirs in plan and invalidates their
// cache entries.
func ApplyEnvClean(cache *envcache.Cache, plan *EnvCleanPlan) error {
	for _, dir := range plan.EnvDirs {
		if err := os.RemoveAll(dir); err != nil {
			return errs.New(errs.KindIoError, "cleanup.ApplyEnvClean", dir, err)
		}
		// EnvDirs are {EnvsDir}/{fingerprint}, so the base name is the key.
		if cache != nil {
			if err := cache.Invalidate(filepath.Base(dir)); err != nil {
				return err
			}
		}
	}
	return nil
}

// CacheClear implements spec.md §4.10's cache:clear: wipe the
// registry's metadata/artifact cache and the env cache's cold tier
// entirely.
func CacheClear(reg *registry.CachedRegistry, envCache *envcache.Cache) error {
	if reg != nil {
		if err := reg.ClearCache(); err != nil {
			return err
		}
	}
	if envCache != nil {
		if err := envCache.ClearAll(); err != nil {
			return err
		}
	}
	return nil
}

// CleanOptions controls the clean operation.
type CleanOptions struct {
	KeepGlobal map[string]bool // package domains to leave untouched
	KeepCache  bool
	DryRun     bool
}

// CleanPlan is the exact set spec.md §4.10's clean (and its dry-run
// mode) computes.
type CleanPlan struct {
	ServiceNames  []string
	StoreEntries  []StoreEntryRef
	Binaries      []string
	EnvDirs       []string
	ClearsCache   bool
	TotalBytes    int64
	FileCount     int
}

// StoreEntryRef identifies one package store entry.
type StoreEntryRef struct {
	Domain  string
	Version string
}

// PlanClean computes what clean would remove, given every installed
// store entry (domain, version, dir) and every known service name.
// The same plan drives both dry-run reporting and real deletion
// (ApplyClean), so they cannot diverge.
func PlanClean(cfg *config.Config, installed []StoreEntryDir, serviceNames []string, opts CleanOptions) (*CleanPlan, error) {
	plan := &CleanPlan{ClearsCache: !opts.KeepCache}

	for _, e := range installed {
		if opts.KeepGlobal[e.Domain] {
			continue
		}
		plan.StoreEntries = append(plan.StoreEntries, StoreEntryRef{Domain: e.Domain, Version: e.Version})
		size, count, err := dirStats(e.Dir)
		if err == nil {
			plan.TotalBytes += size
			plan.FileCount += count
		}
	}

	for _, name := range serviceNames {
		plan.ServiceNames = append(plan.ServiceNames, name)
	}

	envEntries, err := os.ReadDir(cfg.EnvsDir)
	if err == nil {
		for _, de := range envEntries {
			dir := filepath.Join(cfg.EnvsDir, de.Name())
			plan.EnvDirs = append(plan.EnvDirs, dir)
			binDir := filepath.Join(dir, "bin")
			if entries, err := os.ReadDir(binDir); err == nil {
				for _, b := range entries {
					plan.Binaries = append(plan.Binaries, filepath.Join(binDir, b.Name()))
				}
			}
			size, count, err := dirStats(dir)
			if err == nil {
				plan.TotalBytes += size
				plan.FileCount += count
			}
		}
	} else if !os.IsNotExist(err) {
		return nil, errs.New(errs.KindIoError, "cleanup.PlanClean", cfg.EnvsDir, err)
	}

	return plan, nil
}

// StoreEntryDir is the caller-supplied inventory PlanClean consumes
// (the store package itself has no "list all entries" operation,
// since spec.md never requires one outside cleanup).
type StoreEntryDir struct {
	Domain  string
	Version string
	Dir     string
}

// ApplyClean performs the removals plan describes. stopService is
// invoked for each service name before its data is removed (callers
// typically wire this to service.Manager.Stop). st is used to remove
// store entries by domain/version.
func ApplyClean(cfg *config.Config, st *store.Store, plan *CleanPlan, stopService func(name string) error) error {
	for _, name := range plan.ServiceNames {
		if stopService != nil {
			if err := stopService(name); err != nil {
				return err
			}
		}
	}

	for _, dir := range plan.EnvDirs {
		if err := os.RemoveAll(dir); err != nil {
			return errs.New(errs.KindIoError, "cleanup.ApplyClean", dir, err)
		}
	}

	for _, e := range plan.StoreEntries {
		dir := st.EntryDir(e.Domain, e.Version)
		if err := os.RemoveAll(dir); err != nil {
			return errs.New(errs.KindIoError, "cleanup.ApplyClean", dir, err)
		}
	}

	if plan.ClearsCache {
		if err := os.RemoveAll(cfg.CacheDir); err != nil {
			return errs.New(errs.KindIoError, "cleanup.ApplyClean", cfg.CacheDir, err)
		}
	}

	return nil
}

func dirStats(dir string) (int64, int, error) {
	var size int64
	var count int
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			size += info.Size()
			count++
		}
		return nil
	})
	if err != nil {
		return 0, 0, err
	}
	return size, count, nil
}
