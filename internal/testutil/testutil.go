// Package testutil provides shared test fixtures: temp directories, a
// config rooted in a temp tree, and file-existence assertions, mirroring
// the teacher's internal/testutil package.
package testutil

import (
	"os"
	"testing"

	"github.com/launchpad-dev/launchpad/internal/config"
)

// TempDir creates a temporary directory and returns a cleanup function.
func TempDir(t *testing.T) (string, func()) {
	t.Helper()
	dir, err := os.MkdirTemp("", "launchpad-test-*")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}
	return dir, func() { os.RemoveAll(dir) }
}

// NewTestConfig creates a Config rooted in a temporary directory, with all
// of its directories pre-created, for use by component tests.
func NewTestConfig(t *testing.T) (*config.Config, func()) {
	t.Helper()
	tmpDir, cleanup := TempDir(t)

	cacheDir := tmpDir + "/cache"
	configDir := tmpDir + "/config"

	cfg := &config.Config{
		HomeDir:     tmpDir + "/launchpad",
		GlobalDir:   tmpDir + "/launchpad/global",
		PkgsDir:     tmpDir + "/launchpad/pkgs",
		EnvsDir:     tmpDir + "/launchpad/envs",
		ServicesDir: tmpDir + "/launchpad/services",
		LogsDir:     tmpDir + "/launchpad/logs",
		CacheDir:    cacheDir,
		EnvCacheDir: cacheDir + "/envs",
		ConfigDir:   configDir,
		ConfigFile:  configDir + "/config.json",
		SystemdDir:  tmpDir + "/systemd-user",
		LaunchdDir:  tmpDir + "/LaunchAgents",
	}

	if err := cfg.EnsureDirectories(); err != nil {
		cleanup()
		t.Fatalf("failed to create config directories: %v", err)
	}

	return cfg, cleanup
}

// FileExists reports whether a file exists at path.
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// AssertFileExists fails the test if no file exists at path.
func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if !FileExists(path) {
		t.Errorf("file does not exist: %s", path)
	}
}

// AssertFileNotExists fails the test if a file exists at path.
func AssertFileNotExists(t *testing.T, path string) {
	t.Helper()
	if FileExists(path) {
		t.Errorf("file should not exist: %s", path)
	}
}
