// Package activator implements the Shell Activator (spec.md §4.7/§4.8):
// the `lookup <pwd>` and `activate <pwd>` wire-protocol operations the
// shell hook invokes on every directory change, plus the shell snippet
// (the `shellcode` command) that implements the fingerprint-independent
// fast path so that a `cd` which stays inside the already-activated
// project never spawns either subcommand.
//
// Grounded on the teacher's cmd/tsuku/shellenv.go (the export-PATH
// stdout convention) and activate.go (the activate-then-report-error
// shape), generalized from tsuku's single-tool PATH prepend to
// Launchpad's manifest-driven lookup/activate/shellcode trio.
package activator

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/launchpad-dev/launchpad/internal/config"
	"github.com/launchpad-dev/launchpad/internal/envcache"
	"github.com/launchpad-dev/launchpad/internal/errs"
	"github.com/launchpad-dev/launchpad/internal/fingerprint"
	"github.com/launchpad-dev/launchpad/internal/installengine"
	"github.com/launchpad-dev/launchpad/internal/manifest"
	"github.com/launchpad-dev/launchpad/internal/platform"
	progresspkg "github.com/launchpad-dev/launchpad/internal/progress"
	"github.com/launchpad-dev/launchpad/internal/registry"
	"github.com/launchpad-dev/launchpad/internal/resolver"
	"github.com/launchpad-dev/launchpad/internal/store"
)

// Activator composes the collaborators needed to answer lookup/activate
// requests: the manifest discovery walk, the fingerprint, the env
// cache, and (on a miss) the install engine.
type Activator struct {
	Config  *config.Config
	Cache   *envcache.Cache
	Engine  *installengine.Engine
	Platform string
	Arch     string
}

// New wires an Activator from its collaborators. reg and st are only
// consulted on a cache miss, via an installengine.Engine.
func New(cfg *config.Config, reg registry.PackageRegistry, st *store.Store, platform, arch string) *Activator {
	return &Activator{
		Config:   cfg,
		Cache:    envcache.New(cfg.EnvCacheDir, config.GetCacheTTL()),
		Engine:   installengine.New(cfg, reg, st),
		Platform: platform,
		Arch:     arch,
	}
}

// LookupResult is what `lookup <pwd>` prints on a cache hit.
type LookupResult struct {
	EnvDir     string
	ProjectDir string
}

// Lookup implements spec.md §4.7's `lookup <pwd>`: find the nearest
// manifest above pwd, compute its fingerprint, and probe the env cache.
// Returns (nil, false) whenever there is no manifest, no valid cache
// entry, or any error computing the fingerprint — the caller (the
// lookup subcommand) exits non-zero with no stdout in every such case,
// per the wire protocol's contract, so callers need not distinguish.
func (a *Activator) Lookup(pwd string) (*LookupResult, bool) {
	manifestPath, err := manifest.Find(pwd)
	if err != nil {
		return nil, false
	}
	projectDir := filepath.Dir(manifestPath)

	m, err := manifest.Load(manifestPath)
	if err != nil {
		return nil, false
	}

	fp, err := computeFingerprint(m, a.Platform, a.Arch)
	if err != nil {
		return nil, false
	}

	entry, ok := a.Cache.Lookup(fp)
	if !ok {
		return nil, false
	}

	return &LookupResult{EnvDir: entry.EnvDir, ProjectDir: projectDir}, true
}

// WriteLookupLine writes the `{env_dir}|{project_dir}` line spec.md
// §4.7 specifies for a lookup hit.
func WriteLookupLine(w io.Writer, r *LookupResult) error {
	_, err := fmt.Fprintf(w, "%s|%s\n", r.EnvDir, r.ProjectDir)
	return err
}

// ActivateResult carries everything the `activate <pwd>` shell snippet
// needs to export.
type ActivateResult struct {
	EnvDir     string
	ProjectDir string
	BinPath    string
	ServiceEnv map[string]string
}

// Activate implements spec.md §4.7's `activate <pwd>`: resolve pwd's
// manifest, reuse a valid cache entry if one exists, otherwise run the
// install engine and remember the result, then report the activated
// environment. progress receives user-facing status lines (the shell
// hook wires this to stderr).
func (a *Activator) Activate(ctx context.Context, pwd string, progress io.Writer) (*ActivateResult, error) {
	manifestPath, err := manifest.Find(pwd)
	if err != nil {
		return nil, errs.New(errs.KindBadManifest, "activator.Activate", pwd, err)
	}
	projectDir := filepath.Dir(manifestPath)

	m, err := manifest.Load(manifestPath)
	if err != nil {
		return nil, errs.New(errs.KindBadManifest, "activator.Activate", manifestPath, err)
	}

	fp, err := computeFingerprint(m, a.Platform, a.Arch)
	if err != nil {
		return nil, err
	}

	if entry, ok := a.Cache.Lookup(fp); ok {
		return &ActivateResult{
			EnvDir:     entry.EnvDir,
			ProjectDir: projectDir,
			BinPath:    filepath.Join(entry.EnvDir, "bin"),
		}, nil
	}

	spinner := progresspkg.NewSpinner(progress)
	spinner.Start(fmt.Sprintf("launchpad: installing environment for %s", projectDir))

	result, err := a.Engine.Run(ctx, m, installengine.Options{
		Platform: a.Platform,
		Arch:     a.Arch,
		ResolverOptions: resolver.Options{
			InstallBuildDeps: config.BuildDepsEnabled(),
			SystemLookup:     platform.SystemLookup,
		},
	})
	if err != nil {
		spinner.Stop()
		return nil, err
	}
	spinner.StopWithMessage(fmt.Sprintf("launchpad: environment ready for %s", projectDir))

	if err := a.Cache.Remember(result.EnvDir, result.Fingerprint, manifestPath); err != nil {
		return nil, err
	}

	return &ActivateResult{
		EnvDir:     result.EnvDir,
		ProjectDir: projectDir,
		BinPath:    filepath.Join(result.EnvDir, "bin"),
	}, nil
}

func computeFingerprint(m *manifest.Manifest, platform, arch string) (string, error) {
	services := make([]fingerprint.ServiceRef, len(m.Services))
	for i, svc := range m.Services {
		services[i] = fingerprint.ServiceRef{Name: svc.Name, Port: svc.Port}
	}
	return fingerprint.Compute(fingerprint.Input{
		Dependencies: m.Dependencies,
		Services:     services,
		Global:       m.Global,
		Platform:     platform,
		Arch:         arch,
	})
}

// WriteActivateScript writes the shell commands `activate <pwd>` emits
// to stdout per spec.md §4.7: set the three tracking variables and
// prepend bin/ to PATH exactly once.
func WriteActivateScript(w io.Writer, r *ActivateResult) error {
	var b strings.Builder
	fmt.Fprintf(&b, "export PANTRY_CURRENT_PROJECT=%q\n", r.ProjectDir)
	fmt.Fprintf(&b, "export PANTRY_ENV_DIR=%q\n", r.EnvDir)
	fmt.Fprintf(&b, "export PANTRY_ENV_BIN_PATH=%q\n", r.BinPath)
	fmt.Fprintf(&b, "export PATH=%q\n", r.BinPath+":$PATH")
	for k, v := range r.ServiceEnv {
		fmt.Fprintf(&b, "export %s=%q\n", k, v)
	}
	_, err := io.WriteString(w, b.String())
	return err
}

// Shellcode renders the POSIX shell function installed into the user's
// RC file (the `shellcode` command's entire output). It implements
// spec.md §4.8's fast path directly in shell: a `cd` that keeps PWD
// under PANTRY_CURRENT_PROJECT short-circuits without invoking
// binName at all. On a fast-path miss it always falls through to
// `lookup`, then `activate` on a `lookup` miss too — `activate`
// itself walks upward for the nearest manifest (manifest.Find) and
// silently emits nothing when none exists, matching `lookup`'s
// miss-is-silent contract, so the hook never has to duplicate
// manifest filename knowledge in shell. binName is the installed
// executable's name (argv[0] convention, matching the teacher's
// shellenv.go use of a fixed binary name rather than a resolved
// absolute path).
func Shellcode(binName string) string {
	return fmt.Sprintf(`_launchpad_hook() {
  if [ -n "$PANTRY_CURRENT_PROJECT" ]; then
    case "$PWD/" in
      "$PANTRY_CURRENT_PROJECT"/*) return 0 ;;
    esac
  fi

  if [ -n "$PANTRY_ENV_BIN_PATH" ]; then
    PATH=$(printf '%%s' "$PATH" | sed "s#$PANTRY_ENV_BIN_PATH:##" | sed "s#:$PANTRY_ENV_BIN_PATH##")
    unset PANTRY_CURRENT_PROJECT PANTRY_ENV_DIR PANTRY_ENV_BIN_PATH
  fi

  out=$(%s lookup "$PWD" 2>/dev/null)
  if [ $? -eq 0 ] && [ -n "$out" ]; then
    env_dir=${out%%%%|*}
    project_dir=${out#*|}
    export PANTRY_CURRENT_PROJECT="$project_dir"
    export PANTRY_ENV_DIR="$env_dir"
    export PANTRY_ENV_BIN_PATH="$env_dir/bin"
    export PATH="$env_dir/bin:$PATH"
    return 0
  fi

  eval "$(%s activate "$PWD" 2>/dev/null)"
}

PROMPT_COMMAND="_launchpad_hook${PROMPT_COMMAND:+;$PROMPT_COMMAND}"
`, binName, binName)
}

// RunLookup is the lookup subcommand's entry point: writes the wire
// line on a hit, returns false (no stdout, caller exits non-zero) on a
// miss. Kept free of os.Exit so cmd/launchpad controls the exit code.
func RunLookup(a *Activator, stdout io.Writer, pwd string) bool {
	result, ok := a.Lookup(pwd)
	if !ok {
		return false
	}
	return WriteLookupLine(stdout, result) == nil
}

// RunActivate is the activate subcommand's entry point.
func RunActivate(ctx context.Context, a *Activator, stdout, stderr io.Writer, pwd string) error {
	result, err := a.Activate(ctx, pwd, stderr)
	if err != nil {
		return err
	}
	return WriteActivateScript(stdout, result)
}
