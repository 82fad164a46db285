package fingerprint

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func baseInput() Input {
	return Input{
		Dependencies: map[string]string{"node": "^20", "redis": "7.2.0"},
		Services:     []ServiceRef{{Name: "redis", Port: 6379}},
		Global:       false,
		Platform:     "linux",
		Arch:         "amd64",
	}
}

func TestComputeIsDeterministic(t *testing.T) {
	a, err := Compute(baseInput())
	require.NoError(t, err)
	b, err := Compute(baseInput())
	require.NoError(t, err)
	require.Equal(t, a, b)
	require.Len(t, a, 64) // hex-encoded sha256
}

func TestComputeIsOrderIndependentForServices(t *testing.T) {
	in1 := baseInput()
	in1.Services = []ServiceRef{{Name: "redis"}, {Name: "postgres"}}
	in2 := baseInput()
	in2.Services = []ServiceRef{{Name: "postgres"}, {Name: "redis"}}

	a, err := Compute(in1)
	require.NoError(t, err)
	b, err := Compute(in2)
	require.NoError(t, err)
	require.Equal(t, a, b)
}

func TestComputeChangesWithDependencyConstraint(t *testing.T) {
	in1 := baseInput()
	in2 := baseInput()
	in2.Dependencies["node"] = "^21"

	a, err := Compute(in1)
	require.NoError(t, err)
	b, err := Compute(in2)
	require.NoError(t, err)
	require.NotEqual(t, a, b)
}

func TestComputeChangesWithServicePort(t *testing.T) {
	in1 := baseInput()
	in2 := baseInput()
	in2.Services = []ServiceRef{{Name: "redis", Port: 6380}}

	a, err := Compute(in1)
	require.NoError(t, err)
	b, err := Compute(in2)
	require.NoError(t, err)
	require.NotEqual(t, a, b)
}

func TestComputeChangesWithGlobalFlag(t *testing.T) {
	in1 := baseInput()
	in2 := baseInput()
	in2.Global = true

	a, err := Compute(in1)
	require.NoError(t, err)
	b, err := Compute(in2)
	require.NoError(t, err)
	require.NotEqual(t, a, b)
}

func TestComputeChangesWithPlatform(t *testing.T) {
	in1 := baseInput()
	in2 := baseInput()
	in2.Platform = "darwin"

	a, err := Compute(in1)
	require.NoError(t, err)
	b, err := Compute(in2)
	require.NoError(t, err)
	require.NotEqual(t, a, b)
}

func TestCanonicalEncodingIncludesSchemaVersion(t *testing.T) {
	c := canonical{Schema: SchemaVersion, Dependencies: map[string]string{}, Services: nil, Platform: "linux", Arch: "amd64"}
	data, err := json.Marshal(c)
	require.NoError(t, err)
	require.Contains(t, string(data), `"schema":1`)
}

func TestMustComputeDoesNotPanicOnValidInput(t *testing.T) {
	require.NotPanics(t, func() {
		MustCompute(baseInput())
	})
}
