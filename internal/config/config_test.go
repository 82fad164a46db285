package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg, err := DefaultConfig()
	if err != nil {
		t.Fatalf("DefaultConfig() failed: %v", err)
	}

	home, _ := os.UserHomeDir()
	expectedHome := filepath.Join(home, ".local", "share", "launchpad")

	if cfg.HomeDir != expectedHome {
		t.Errorf("HomeDir = %q, want %q", cfg.HomeDir, expectedHome)
	}
	if cfg.PkgsDir != filepath.Join(expectedHome, "pkgs") {
		t.Errorf("PkgsDir = %q, want %q", cfg.PkgsDir, filepath.Join(expectedHome, "pkgs"))
	}
	if cfg.EnvsDir != filepath.Join(expectedHome, "envs") {
		t.Errorf("EnvsDir = %q, want %q", cfg.EnvsDir, filepath.Join(expectedHome, "envs"))
	}
	if cfg.GlobalDir != filepath.Join(expectedHome, "global") {
		t.Errorf("GlobalDir = %q, want %q", cfg.GlobalDir, filepath.Join(expectedHome, "global"))
	}
	if cfg.EnvCacheDir != filepath.Join(home, ".cache", "launchpad", "envs") {
		t.Errorf("EnvCacheDir = %q, want %q", cfg.EnvCacheDir, filepath.Join(home, ".cache", "launchpad", "envs"))
	}
	if cfg.ConfigFile != filepath.Join(home, ".config", "launchpad", "config.json") {
		t.Errorf("ConfigFile = %q, want %q", cfg.ConfigFile, filepath.Join(home, ".config", "launchpad", "config.json"))
	}
}

func TestHomeOverride(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv(EnvHome, filepath.Join(tmpDir, "custom"))

	cfg, err := DefaultConfig()
	if err != nil {
		t.Fatalf("DefaultConfig() failed: %v", err)
	}

	if cfg.HomeDir != filepath.Join(tmpDir, "custom") {
		t.Errorf("HomeDir = %q, want override applied", cfg.HomeDir)
	}
}

func TestEnsureDirectories(t *testing.T) {
	tmpDir := t.TempDir()

	cfg := &Config{
		HomeDir:     filepath.Join(tmpDir, "launchpad"),
		GlobalDir:   filepath.Join(tmpDir, "launchpad", "global"),
		PkgsDir:     filepath.Join(tmpDir, "launchpad", "pkgs"),
		EnvsDir:     filepath.Join(tmpDir, "launchpad", "envs"),
		ServicesDir: filepath.Join(tmpDir, "launchpad", "services"),
		LogsDir:     filepath.Join(tmpDir, "launchpad", "logs"),
		CacheDir:    filepath.Join(tmpDir, "cache"),
		EnvCacheDir: filepath.Join(tmpDir, "cache", "envs"),
		ConfigDir:   filepath.Join(tmpDir, "config"),
	}

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories() failed: %v", err)
	}

	for _, dir := range []string{cfg.HomeDir, cfg.GlobalDir, cfg.PkgsDir, cfg.EnvsDir, cfg.ServicesDir, cfg.LogsDir, cfg.CacheDir, cfg.EnvCacheDir, cfg.ConfigDir} {
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			t.Errorf("expected directory %s to exist", dir)
		}
	}
}

func TestPackageDirAndEnvDir(t *testing.T) {
	cfg := &Config{PkgsDir: "/prefix/pkgs", EnvsDir: "/prefix/envs"}

	if got, want := cfg.PackageDir("sh.bun", "1.3.0"), filepath.Join("/prefix/pkgs", "sh.bun", "v1.3.0"); got != want {
		t.Errorf("PackageDir() = %q, want %q", got, want)
	}
	if got, want := cfg.EnvDir("abc123"), filepath.Join("/prefix/envs", "abc123"); got != want {
		t.Errorf("EnvDir() = %q, want %q", got, want)
	}
}

func TestGetFetchTimeoutDefault(t *testing.T) {
	t.Setenv(EnvFetchTimeout, "")
	if got := GetFetchTimeout(); got != DefaultFetchTimeout {
		t.Errorf("GetFetchTimeout() = %v, want default %v", got, DefaultFetchTimeout)
	}
}

func TestGetFetchTimeoutClamped(t *testing.T) {
	t.Setenv(EnvFetchTimeout, "1ms")
	if got := GetFetchTimeout(); got != 1*time.Second {
		t.Errorf("GetFetchTimeout() = %v, want clamped to 1s", got)
	}
}

func TestIsTruthy(t *testing.T) {
	cases := map[string]bool{
		"1": true, "true": true, "YES": true, "on": true,
		"0": false, "false": false, "": false, "nope": false,
	}
	for in, want := range cases {
		if got := IsTruthy(in); got != want {
			t.Errorf("IsTruthy(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestBuildDepsEnabledDefault(t *testing.T) {
	os.Unsetenv(EnvInstallBuildDeps)
	if !BuildDepsEnabled() {
		t.Error("BuildDepsEnabled() should default to true")
	}
}
