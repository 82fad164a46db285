package service

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLookupBuiltinKnownService(t *testing.T) {
	def, ok := LookupBuiltin("redis")
	require.True(t, ok)
	require.Equal(t, "redis", def.Name)
	require.NotNil(t, def.HealthCheck)
}

func TestLookupBuiltinUnknownService(t *testing.T) {
	_, ok := LookupBuiltin("not-a-real-service")
	require.False(t, ok)
}
