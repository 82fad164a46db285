// Package installengine drives the Resolver, the Registry, and the
// Package Store to realize a Resolution on disk: it fetches and inserts
// every not-yet-present package concurrently, computes the
// environment's fingerprint, and materializes env_dir/bin/ via
// symlinks (falling back to shims where a symlink cannot work), per
// spec.md §4.5.
//
// Grounded on the teacher's internal/install/manager.go for bin/
// materialization (createBinarySymlink, createBinaryWrapper,
// validateShellSafePath, generateWrapperScript) and on
// golang.org/x/sync's errgroup, a teacher go.mod dependency, for the
// bounded-parallelism fetch+insert fan-out.
package installengine

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/launchpad-dev/launchpad/internal/config"
	"github.com/launchpad-dev/launchpad/internal/errs"
	"github.com/launchpad-dev/launchpad/internal/fingerprint"
	"github.com/launchpad-dev/launchpad/internal/manifest"
	"github.com/launchpad-dev/launchpad/internal/registry"
	"github.com/launchpad-dev/launchpad/internal/resolver"
	"github.com/launchpad-dev/launchpad/internal/store"
)

// DefaultParallelism is the default bound on concurrent fetch+insert
// operations (spec.md §4.5 step 2).
const DefaultParallelism = 8

// maxFetchAttempts bounds the exponential-backoff retry loop around a
// single artifact download (spec.md §4.5's failure semantics).
const maxFetchAttempts = 5

// Options controls a single Run.
type Options struct {
	Platform string
	Arch     string

	// Parallelism bounds concurrent fetch+insert operations. Zero uses
	// DefaultParallelism.
	Parallelism int

	// ExposedDomains restricts which resolved packages get bin/ entries
	// materialized (spec.md §4.5's "Dependencies-only mode"). Nil means
	// every resolved runtime package is exposed.
	ExposedDomains map[string]bool

	ResolverOptions resolver.Options

	// BackoffBase is the initial retry delay; each attempt doubles it.
	// Zero uses a 200ms default. Exposed for fast tests.
	BackoffBase time.Duration

	// Sleep overrides time.Sleep for retry backoff, exposed for tests.
	Sleep func(time.Duration)
}

// Result is the Install Engine's output (spec.md §4.5): the realized
// environment directory and the binary names materialized into it.
type Result struct {
	EnvDir      string
	Fingerprint string
	Binaries    []string
	Resolution  *resolver.Resolution
}

// Engine bundles the collaborators Run needs.
type Engine struct {
	Config   *config.Config
	Registry registry.PackageRegistry
	Store    *store.Store
}

// New constructs an Engine from already-resolved collaborators.
func New(cfg *config.Config, reg registry.PackageRegistry, st *store.Store) *Engine {
	return &Engine{Config: cfg, Registry: reg, Store: st}
}

// Run executes spec.md §4.5 steps 1-7 against m.
func (e *Engine) Run(ctx context.Context, m *manifest.Manifest, opts Options) (*Result, error) {
	resolution, err := resolver.Resolve(ctx, m, e.Registry, opts.ResolverOptions)
	if err != nil {
		return nil, err
	}

	parallelism := opts.Parallelism
	if parallelism <= 0 {
		parallelism = DefaultParallelism
	}

	if err := e.fetchAndInsertAll(ctx, resolution, opts, parallelism); err != nil {
		return nil, err
	}

	fp, err := e.computeFingerprint(m, opts)
	if err != nil {
		return nil, err
	}
	envDir := e.Config.EnvDir(fp)

	binaries, err := e.materializeBin(envDir, resolution, opts)
	if err != nil {
		return nil, err
	}

	return &Result{EnvDir: envDir, Fingerprint: fp, Binaries: binaries, Resolution: resolution}, nil
}

// fetchAndInsertAll implements step 2: for every resolved package not
// already in the store, fetch and insert it, bounded to parallelism
// concurrent operations at a time. Insertion order is immaterial
// (spec.md §4.4), so an errgroup fan-out with a semaphore is
// sufficient — no result ordering to preserve.
func (e *Engine) fetchAndInsertAll(ctx context.Context, resolution *resolver.Resolution, opts Options, parallelism int) error {
	g, gctx := errgroup.WithContext(ctx)
	sem := make(chan struct{}, parallelism)

	for _, pkg := range resolution.Packages {
		pkg := pkg
		if pkg.Kind == resolver.KindSystem {
			continue
		}
		if e.Store.Has(pkg.Domain, pkg.Version) {
			continue
		}

		g.Go(func() error {
			select {
			case sem <- struct{}{}:
			case <-gctx.Done():
				return gctx.Err()
			}
			defer func() { <-sem }()

			return e.fetchAndInsertOne(gctx, pkg, opts)
		})
	}

	return g.Wait()
}

// fetchAndInsertOne implements one package's fetch, retried with
// exponential backoff up to maxFetchAttempts, then inserted into the
// store. A digest mismatch is not retried — it is fatal for the
// package (spec.md §4.5's failure semantics).
func (e *Engine) fetchAndInsertOne(ctx context.Context, pkg resolver.ResolvedPackage, opts Options) error {
	backoff := opts.BackoffBase
	if backoff <= 0 {
		backoff = 200 * time.Millisecond
	}
	sleep := opts.Sleep
	if sleep == nil {
		sleep = time.Sleep
	}

	var lastErr error
	for attempt := 0; attempt < maxFetchAttempts; attempt++ {
		if attempt > 0 {
			sleep(backoff)
			backoff *= 2
		}

		artifact, err := e.Registry.FetchArtifact(ctx, pkg.Domain, pkg.Version, opts.Platform, opts.Arch)
		if err != nil {
			lastErr = err
			continue
		}

		info, err := e.Registry.GetPackageInfo(ctx, pkg.Domain)
		if err != nil {
			artifact.Stream.Close()
			return errs.New(errs.KindUnknownPackage, "installengine.fetchAndInsertOne", pkg.Domain, err)
		}

		format := "tar.gz"
		if named, ok := artifact.Stream.(interface{ Name() string }); ok {
			if detected := store.DetectFormat(named.Name()); detected != "unknown" {
				format = detected
			}
		}

		insertErr := e.Store.Insert(ctx, pkg.Domain, pkg.Version, format, artifact.Stream, artifact.ExpectedDigest, store.Metadata{
			Binaries: binariesFor(info.Programs),
			Kind:     pkg.Kind.String(),
		})
		artifact.Stream.Close()

		if insertErr != nil {
			if errs.KindOf(insertErr) == errs.KindCorruptArtifact {
				return insertErr
			}
			lastErr = insertErr
			continue
		}

		return nil
	}

	return errs.New(errs.KindFetchFailed, "installengine.fetchAndInsertOne", pkg.Domain, lastErr)
}

func binariesFor(programs []string) []string {
	out := make([]string, len(programs))
	for i, p := range programs {
		out[i] = filepath.Join("bin", p)
	}
	return out
}

func (e *Engine) computeFingerprint(m *manifest.Manifest, opts Options) (string, error) {
	services := make([]fingerprint.ServiceRef, len(m.Services))
	for i, svc := range m.Services {
		services[i] = fingerprint.ServiceRef{Name: svc.Name, Port: svc.Port}
	}
	return fingerprint.Compute(fingerprint.Input{
		Dependencies: m.Dependencies,
		Services:     services,
		Global:       m.Global,
		Platform:     opts.Platform,
		Arch:         opts.Arch,
	})
}

// shellUnsafeChars matches the teacher's validateShellSafePath denylist:
// no characters that could break out of a double-quoted shell string.
var shellUnsafeChars = regexp.MustCompile(`[\n\r"'$` + "`" + `\\;]`)

func validateShellSafePath(path string) error {
	if shellUnsafeChars.MatchString(path) {
		return fmt.Errorf("path contains shell-unsafe characters: %q", path)
	}
	return nil
}

// materializeBin implements spec.md §4.5 steps 4-5: (re)create
// env_dir/bin/ empty, then for each resolved runtime package exposed
// by opts.ExposedDomains (or every runtime package, if nil), symlink
// each declared binary in. A name collision is resolved in favor of
// the later package in topological order (the dependent, not the
// dependency) with a diagnostic for the loser. Symlink failures fall
// back to a generated shim script.
func (e *Engine) materializeBin(envDir string, resolution *resolver.Resolution, opts Options) ([]string, error) {
	binDir := filepath.Join(envDir, "bin")
	if err := os.RemoveAll(binDir); err != nil {
		return nil, errs.New(errs.KindIoError, "installengine.materializeBin", binDir, err)
	}
	if err := os.MkdirAll(binDir, 0755); err != nil {
		return nil, errs.New(errs.KindIoError, "installengine.materializeBin", binDir, err)
	}

	owner := map[string]string{} // binary name -> owning domain, for collision diagnostics
	var names []string

	for _, pkg := range resolution.Packages {
		if pkg.Kind == resolver.KindBuildtime {
			continue
		}
		if opts.ExposedDomains != nil && !opts.ExposedDomains[pkg.Domain] {
			continue
		}
		if pkg.Kind == resolver.KindSystem {
			continue
		}

		meta, err := e.Store.ReadMetadata(pkg.Domain, pkg.Version)
		if err != nil {
			return nil, err
		}

		for _, rel := range meta.Binaries {
			name := filepath.Base(rel)
			target := filepath.Join(e.Store.EntryDir(pkg.Domain, pkg.Version), rel)
			linkPath := filepath.Join(binDir, name)

			if prevDomain, exists := owner[name]; exists {
				fmt.Fprintf(os.Stderr, "launchpad: binary %q provided by both %s and %s; %s wins\n",
					name, prevDomain, pkg.Domain, pkg.Domain)
				os.Remove(linkPath)
			} else {
				names = append(names, name)
			}
			owner[name] = pkg.Domain

			if err := os.Symlink(target, linkPath); err != nil {
				if shimErr := writeShim(linkPath, target, meta.LibraryPaths); shimErr != nil {
					return nil, errs.New(errs.KindLinkFailed, "installengine.materializeBin", name, shimErr)
				}
			}
		}
	}

	sort.Strings(names)
	return names, nil
}

// writeShim generates a small exec-wrapper script at linkPath that
// prepends libraryPaths to the loader search path before exec'ing
// target, for binaries that cannot be symlinked portably (spec.md
// §4.5 step 5). Grounded on the teacher's generateWrapperScript /
// createBinaryWrapper.
func writeShim(linkPath, target string, libraryPaths []string) error {
	if err := validateShellSafePath(target); err != nil {
		return err
	}
	for _, p := range libraryPaths {
		if err := validateShellSafePath(p); err != nil {
			return err
		}
	}

	var ldPath string
	for i, p := range libraryPaths {
		if i > 0 {
			ldPath += ":"
		}
		ldPath += p
	}

	script := "#!/bin/sh\n"
	if ldPath != "" {
		script += fmt.Sprintf("export LD_LIBRARY_PATH=\"%s:$LD_LIBRARY_PATH\"\n", ldPath)
	}
	script += fmt.Sprintf("exec \"%s\" \"$@\"\n", target)

	if err := os.Remove(linkPath); err != nil && !os.IsNotExist(err) {
		return err
	}
	return os.WriteFile(linkPath, []byte(script), 0755)
}
