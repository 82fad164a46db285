package main

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/launchpad-dev/launchpad/internal/config"
	"github.com/launchpad-dev/launchpad/internal/manifest"
	"github.com/launchpad-dev/launchpad/internal/service"
)

func TestCloneDefinitionWithOverridesAppliesPort(t *testing.T) {
	def, ok := service.LookupBuiltin("redis")
	require.True(t, ok)

	decl := &manifest.Service{Name: "redis", Port: 7000, DependsOn: []string{"postgresql"}}
	clone := cloneDefinitionWithOverrides(def, decl)

	require.Equal(t, 7000, clone.Port)
	require.Equal(t, []string{"postgresql"}, clone.Dependencies)
	require.Equal(t, def.Name, clone.Name)
	require.NotSame(t, def, clone)
}

func TestCloneDefinitionWithOverridesKeepsCatalogPortWhenUnset(t *testing.T) {
	def, ok := service.LookupBuiltin("redis")
	require.True(t, ok)

	decl := &manifest.Service{Name: "redis"}
	clone := cloneDefinitionWithOverrides(def, decl)

	require.Equal(t, def.Port, clone.Port)
}

func TestProjectHashForIsStable(t *testing.T) {
	m := &manifest.Manifest{Dependencies: map[string]string{"sh.bun": "^1.0.0"}}

	h1, err := projectHashFor(m)
	require.NoError(t, err)
	h2, err := projectHashFor(m)
	require.NoError(t, err)
	require.Equal(t, h1, h2)
	require.Len(t, h1, 12)
}

func TestBuildServiceInstanceAppliesDeclOverrides(t *testing.T) {
	withTestConfig(t)

	m := &manifest.Manifest{Path: "/tmp/proj/deps.yaml"}
	decl := &manifest.Service{Name: "redis", Port: 7000, Env: map[string]string{"FOO": "bar"}}

	inst, _, err := buildServiceInstance(m, decl)
	require.NoError(t, err)
	require.Equal(t, 7000, inst.Definition.Port)
	require.Equal(t, map[string]string{"FOO": "bar"}, inst.ConfigOverrides)
}

func TestBuildServiceInstanceUnknownService(t *testing.T) {
	withTestConfig(t)

	m := &manifest.Manifest{Path: "/tmp/proj/deps.yaml"}
	decl := &manifest.Service{Name: "not-a-real-service"}

	_, _, err := buildServiceInstance(m, decl)
	require.Error(t, err)
}

// autoStartOrder mirrors startAutoStartServices's filter-then-sort logic
// without touching the service Manager, so dependency ordering can be
// asserted without starting anything.
func autoStartOrder(t *testing.T, m *manifest.Manifest) []string {
	t.Helper()
	withTestConfig(t)

	var defs []*service.Definition
	for i := range m.Services {
		decl := m.Services[i]
		if !decl.AutoStart {
			continue
		}
		inst, _, err := buildServiceInstance(m, &decl)
		require.NoError(t, err)
		defs = append(defs, inst.Definition)
	}

	ordered, err := service.TopologicalOrder(defs)
	require.NoError(t, err)

	names := make([]string, len(ordered))
	for i, d := range ordered {
		names[i] = d.Name
	}
	return names
}

func TestAutoStartOrderSkipsNonAutoStartServices(t *testing.T) {
	m := &manifest.Manifest{
		Path: "/tmp/proj/deps.yaml",
		Services: []manifest.Service{
			{Name: "redis", AutoStart: false},
			{Name: "postgresql", AutoStart: true},
		},
	}
	require.Equal(t, []string{"postgresql"}, autoStartOrder(t, m))
}

func TestAutoStartOrderRespectsDependsOn(t *testing.T) {
	m := &manifest.Manifest{
		Path: "/tmp/proj/deps.yaml",
		Services: []manifest.Service{
			{Name: "redis", AutoStart: true, DependsOn: []string{"postgresql"}},
			{Name: "postgresql", AutoStart: true},
		},
	}
	order := autoStartOrder(t, m)
	require.Equal(t, []string{"postgresql", "redis"}, order)
}

// withTestConfig points the package-level cfg at a scratch directory so
// buildServiceInstance's os.MkdirAll calls have somewhere writable to
// land, restoring the previous value once the test completes.
func withTestConfig(t *testing.T) {
	t.Helper()
	prev := cfg
	dir := t.TempDir()
	cfg = &config.Config{
		ServicesDir: dir + "/services",
		LogsDir:     dir + "/logs",
	}
	t.Cleanup(func() { cfg = prev })
}
