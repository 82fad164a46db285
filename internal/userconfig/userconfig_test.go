package userconfig

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	c := DefaultConfig()
	assert.True(t, c.InstallDependencies)
	assert.True(t, c.AutoAddToPath)
	assert.True(t, c.Services.AutoRestart)
	assert.Equal(t, 30*time.Second, c.Services.StartupTimeout)
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	dir := t.TempDir()
	c, err := loadFromPath(filepath.Join(dir, "config.json"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), c)
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")

	c := DefaultConfig()
	require.NoError(t, c.Set("verbose", "true"))
	require.NoError(t, c.Set("excludeDependencies", "foo,bar"))
	require.NoError(t, c.saveToPath(path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	loaded, err := loadFromPath(path)
	require.NoError(t, err)
	assert.True(t, loaded.Verbose)
	assert.Equal(t, []string{"foo", "bar"}, loaded.ExcludeDependencies)
}

func TestGetSetKnownKeys(t *testing.T) {
	c := DefaultConfig()

	require.NoError(t, c.Set("services.startupTimeout", "45s"))
	v, ok := c.Get("services.startupTimeout")
	require.True(t, ok)
	assert.Equal(t, "45s", v)

	require.NoError(t, c.Set("services.database.username", "admin"))
	v, ok = c.Get("services.database.username")
	require.True(t, ok)
	assert.Equal(t, "admin", v)

	require.NoError(t, c.Set("profiles.active", "dev"))
	v, ok = c.Get("profiles.active")
	require.True(t, ok)
	assert.Equal(t, "dev", v)
}

func TestSetUnknownKeyRejected(t *testing.T) {
	c := DefaultConfig()
	err := c.Set("not.a.real.key", "1")
	assert.Error(t, err)
}

func TestGetUnknownKeyReportsNotFound(t *testing.T) {
	c := DefaultConfig()
	_, ok := c.Get("not.a.real.key")
	assert.False(t, ok)
}

func TestSetInvalidBoolRejected(t *testing.T) {
	c := DefaultConfig()
	err := c.Set("verbose", "maybe")
	assert.Error(t, err)
}

func TestExcludeDependenciesAcceptsJSONArray(t *testing.T) {
	c := DefaultConfig()
	require.NoError(t, c.Set("excludeDependencies", `["a","b","c"]`))
	assert.Equal(t, []string{"a", "b", "c"}, c.ExcludeDependencies)
}

func TestAvailableKeysCoversSpecSurface(t *testing.T) {
	keys := AvailableKeys()
	for _, k := range []string{
		"installPath", "verbose", "forceReinstall", "installDependencies",
		"autoAddToPath", "shimPath", "services.logDir", "services.autoRestart",
		"services.startupTimeout", "services.shutdownTimeout",
		"services.database.username", "services.database.password", "services.database.authMethod",
		"excludeDependencies", "excludeGlobalDependencies",
		"profiles.active", "profiles.custom",
	} {
		_, ok := keys[k]
		assert.Truef(t, ok, "expected key %q to be registered", k)
	}
}

func TestSortedKeysIsSorted(t *testing.T) {
	keys := SortedKeys()
	for i := 1; i < len(keys); i++ {
		assert.LessOrEqual(t, keys[i-1], keys[i])
	}
}
