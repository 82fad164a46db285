package installengine

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/launchpad-dev/launchpad/internal/config"
	"github.com/launchpad-dev/launchpad/internal/manifest"
	"github.com/launchpad-dev/launchpad/internal/registry"
	"github.com/launchpad-dev/launchpad/internal/resolver"
	"github.com/launchpad-dev/launchpad/internal/store"
)

type fakeArtifact struct {
	*bytes.Reader
}

func (f fakeArtifact) Close() error { return nil }

func buildTarGz(t *testing.T, binaryName, content string) ([]byte, string) {
	t.Helper()
	var buf bytes.Buffer
	gw := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gw)
	require.NoError(t, tw.WriteHeader(&tar.Header{Name: "bin/" + binaryName, Mode: 0755, Size: int64(len(content))}))
	_, err := tw.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, tw.Close())
	require.NoError(t, gw.Close())
	data := buf.Bytes()
	sum := sha256.Sum256(data)
	return data, "sha256:" + hex.EncodeToString(sum[:])
}

type fakePkg struct {
	archive  []byte
	digest   string
	programs []string
	deps     []string
}

type fakeRegistry struct {
	pkgs map[string]fakePkg
}

func (f *fakeRegistry) GetPackageInfo(ctx context.Context, domain string) (*registry.PackageInfo, error) {
	p := f.pkgs[domain]
	return &registry.PackageInfo{Domain: domain, LatestVersion: "1.0.0", TotalVersions: 1, Programs: p.programs, Dependencies: p.deps}, nil
}

func (f *fakeRegistry) EnumerateVersions(ctx context.Context, domain string) ([]string, error) {
	return []string{"1.0.0"}, nil
}

func (f *fakeRegistry) FetchArtifact(ctx context.Context, domain, version, platform, arch string) (*registry.Artifact, error) {
	p := f.pkgs[domain]
	return &registry.Artifact{Stream: fakeArtifact{bytes.NewReader(p.archive)}, ExpectedDigest: p.digest}, nil
}

func (f *fakeRegistry) Aliases(ctx context.Context) (map[string]string, error) {
	return map[string]string{}, nil
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	root := t.TempDir()
	return &config.Config{
		HomeDir: root,
		PkgsDir: filepath.Join(root, "pkgs"),
		EnvsDir: filepath.Join(root, "envs"),
	}
}

func TestRunFetchesInsertsAndMaterializesBin(t *testing.T) {
	archive, digest := buildTarGz(t, "bun", "#!/bin/sh\necho bun\n")
	reg := &fakeRegistry{pkgs: map[string]fakePkg{
		"sh.bun": {archive: archive, digest: digest, programs: []string{"bun"}},
	}}

	cfg := testConfig(t)
	st := store.New(cfg.PkgsDir)
	engine := New(cfg, reg, st)

	m := &manifest.Manifest{Dependencies: map[string]string{"sh.bun": "1.0.0"}}
	result, err := engine.Run(context.Background(), m, Options{Platform: "linux", Arch: "amd64"})
	require.NoError(t, err)
	require.Equal(t, []string{"bun"}, result.Binaries)
	require.True(t, st.Has("sh.bun", "1.0.0"))

	link := filepath.Join(result.EnvDir, "bin", "bun")
	info, err := os.Lstat(link)
	require.NoError(t, err)
	require.True(t, info.Mode()&os.ModeSymlink != 0)
}

func TestRunSkipsAlreadyPresentPackages(t *testing.T) {
	archive, digest := buildTarGz(t, "tool", "x")
	reg := &fakeRegistry{pkgs: map[string]fakePkg{
		"example.tool": {archive: archive, digest: digest, programs: []string{"tool"}},
	}}
	cfg := testConfig(t)
	st := store.New(cfg.PkgsDir)
	require.NoError(t, st.Insert(context.Background(), "example.tool", "1.0.0", "tar.gz", bytes.NewReader(archive), digest,
		store.Metadata{Binaries: []string{"bin/tool"}}))

	engine := New(cfg, reg, st)
	m := &manifest.Manifest{Dependencies: map[string]string{"example.tool": "1.0.0"}}
	result, err := engine.Run(context.Background(), m, Options{Platform: "linux", Arch: "amd64"})
	require.NoError(t, err)
	require.Equal(t, []string{"tool"}, result.Binaries)
}

func TestRunRetriesTransientFetchFailureThenSucceeds(t *testing.T) {
	archive, digest := buildTarGz(t, "flaky", "x")
	calls := 0
	reg := &countingRegistry{
		fakeRegistry: &fakeRegistry{pkgs: map[string]fakePkg{"example.flaky": {archive: archive, digest: digest, programs: []string{"flaky"}}}},
		failFirstN:   2,
		calls:        &calls,
	}

	cfg := testConfig(t)
	st := store.New(cfg.PkgsDir)
	engine := New(cfg, reg, st)

	m := &manifest.Manifest{Dependencies: map[string]string{"example.flaky": "1.0.0"}}
	var sleeps []time.Duration
	_, err := engine.Run(context.Background(), m, Options{
		Platform: "linux", Arch: "amd64",
		Sleep: func(d time.Duration) { sleeps = append(sleeps, d) },
	})
	require.NoError(t, err)
	require.Equal(t, 3, calls)
	require.Len(t, sleeps, 2)
}

type countingRegistry struct {
	*fakeRegistry
	failFirstN int
	calls      *int
}

func (c *countingRegistry) FetchArtifact(ctx context.Context, domain, version, platform, arch string) (*registry.Artifact, error) {
	*c.calls++
	if *c.calls <= c.failFirstN {
		return nil, errFlaky
	}
	return c.fakeRegistry.FetchArtifact(ctx, domain, version, platform, arch)
}

var errFlaky = io.ErrUnexpectedEOF

func TestRunDependenciesOnlyModeSkipsBinMaterialization(t *testing.T) {
	archive, digest := buildTarGz(t, "hidden", "x")
	reg := &fakeRegistry{pkgs: map[string]fakePkg{
		"example.hidden": {archive: archive, digest: digest, programs: []string{"hidden"}},
	}}
	cfg := testConfig(t)
	st := store.New(cfg.PkgsDir)
	engine := New(cfg, reg, st)

	m := &manifest.Manifest{Dependencies: map[string]string{"example.hidden": "1.0.0"}}
	result, err := engine.Run(context.Background(), m, Options{
		Platform:       "linux",
		Arch:           "amd64",
		ExposedDomains: map[string]bool{},
	})
	require.NoError(t, err)
	require.Empty(t, result.Binaries)
	require.True(t, st.Has("example.hidden", "1.0.0"))
}

func TestRunExcludesBuildtimeDepsFromBin(t *testing.T) {
	appArchive, appDigest := buildTarGz(t, "app", "x")
	gccArchive, gccDigest := buildTarGz(t, "gcc", "x")
	reg := &fakeRegistry{pkgs: map[string]fakePkg{
		"example.app": {archive: appArchive, digest: appDigest, programs: []string{"app"}, deps: []string{"build:example.gcc"}},
		"example.gcc": {archive: gccArchive, digest: gccDigest, programs: []string{"gcc"}},
	}}
	cfg := testConfig(t)
	st := store.New(cfg.PkgsDir)
	engine := New(cfg, reg, st)

	m := &manifest.Manifest{Dependencies: map[string]string{"example.app": "1.0.0"}}
	result, err := engine.Run(context.Background(), m, Options{
		Platform:        "linux",
		Arch:            "amd64",
		ResolverOptions: resolver.Options{InstallBuildDeps: true},
	})
	require.NoError(t, err)
	require.Equal(t, []string{"app"}, result.Binaries)
}
