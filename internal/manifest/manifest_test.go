package manifest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadYAMLWithBareAndRecordServices(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "deps.yaml", `
dependencies:
  bun: "1.3.0"
  node: "^20"
services:
  - redis
  - name: postgres
    autoStart: true
    port: 5432
    dependsOn: [redis]
global: false
`)

	m, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "1.3.0", m.Dependencies["bun"])
	require.Len(t, m.Services, 2)
	require.Equal(t, "redis", m.Services[0].Name)
	require.True(t, m.Services[0].AutoStart)
	require.Equal(t, "postgres", m.Services[1].Name)
	require.Equal(t, 5432, m.Services[1].Port)
	require.Equal(t, []string{"redis"}, m.Services[1].DependsOn)
}

func TestLoadJSONPackageJSON(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "package.json", `{
		"dependencies": {"bun": "1.3.0"},
		"services": ["redis"],
		"global": true
	}`)

	m, err := Load(path)
	require.NoError(t, err)
	require.True(t, m.Global)
	require.Equal(t, "redis", m.Services[0].Name)
}

func TestFindWalksUpwardInPrecedenceOrder(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "dependencies.yaml", "dependencies: {}\n")
	writeFile(t, dir, "package.json", `{"dependencies":{}}`)

	sub := filepath.Join(dir, "a", "b")
	require.NoError(t, os.MkdirAll(sub, 0755))

	found, err := Find(sub)
	require.NoError(t, err)
	require.Equal(t, filepath.Join(dir, "dependencies.yaml"), found)
}

func TestFindReturnsBadManifestWhenNoneExists(t *testing.T) {
	dir := t.TempDir()
	_, err := Find(dir)
	require.Error(t, err)
}

func TestValidateRejectsDuplicateServiceNames(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "deps.yaml", `
dependencies: {}
services:
  - redis
  - redis
`)
	_, err := Load(path)
	require.Error(t, err)
}

func TestSortedDependencyKeysAndServiceNames(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "deps.yaml", `
dependencies:
  zlib: "1.0"
  bun: "1.3.0"
services:
  - postgres
  - redis
`)
	m, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, []string{"bun", "zlib"}, m.SortedDependencyKeys())
	require.Equal(t, []string{"postgres", "redis"}, m.ServiceNames())
}
