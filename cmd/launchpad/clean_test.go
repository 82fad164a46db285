package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDiscoverStoreEntriesWalksDomainVersionTree(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "sh.bun", "v1.0.0"), 0755))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "example.gcc", "v2.0.0"), 0755))
	// A stray non-version entry should be skipped.
	require.NoError(t, os.MkdirAll(filepath.Join(root, "example.gcc", "staging"), 0755))

	entries, err := discoverStoreEntries(root)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	byDomain := map[string]string{}
	for _, e := range entries {
		byDomain[e.Domain] = e.Version
	}
	require.Equal(t, "1.0.0", byDomain["sh.bun"])
	require.Equal(t, "2.0.0", byDomain["example.gcc"])
}

func TestDiscoverStoreEntriesMissingDirReturnsEmpty(t *testing.T) {
	entries, err := discoverStoreEntries(filepath.Join(t.TempDir(), "does-not-exist"))
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestParseOlderThanAcceptsGoDuration(t *testing.T) {
	d, err := parseOlderThan("720h")
	require.NoError(t, err)
	require.Equal(t, 720.0, d.Hours())
}

func TestParseOlderThanRejectsGarbage(t *testing.T) {
	_, err := parseOlderThan("not-a-duration")
	require.Error(t, err)
}
