package registry

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

const testCatalog = `{
  "packages": {
    "example": {
      "description": "an example tool",
      "versions": ["1.2.0", "1.10.0", "1.1.0"],
      "programs": ["example"],
      "dependencies": ["lib:libexample"],
      "artifacts": {"1.10.0/linux/amd64": "mem://example-1.10.0-linux-amd64.tar.gz"},
      "digests": {"1.10.0/linux/amd64": "sha256:deadbeef"}
    }
  },
  "aliases": {"ex": "example"}
}`

func newTestStaticRegistry(t *testing.T) *StaticCatalogRegistry {
	t.Helper()
	reg, err := NewStaticCatalogRegistry([]byte(testCatalog), func(ctx context.Context, url string) (*Artifact, error) {
		return &Artifact{Stream: io.NopCloser(strings.NewReader("payload")), ContentLength: 7}, nil
	})
	require.NoError(t, err)
	return reg
}

func TestStaticGetPackageInfo(t *testing.T) {
	reg := newTestStaticRegistry(t)
	info, err := reg.GetPackageInfo(context.Background(), "example")
	require.NoError(t, err)
	require.Equal(t, "example", info.Domain)
	require.Equal(t, 3, info.TotalVersions)
	require.Equal(t, "1.10.0", info.LatestVersion)
}

func TestStaticGetPackageInfoUnknown(t *testing.T) {
	reg := newTestStaticRegistry(t)
	_, err := reg.GetPackageInfo(context.Background(), "nope")
	require.Error(t, err)
}

func TestStaticEnumerateVersionsDescending(t *testing.T) {
	reg := newTestStaticRegistry(t)
	versions, err := reg.EnumerateVersions(context.Background(), "example")
	require.NoError(t, err)
	require.Equal(t, []string{"1.10.0", "1.2.0", "1.1.0"}, versions)
}

func TestStaticFetchArtifact(t *testing.T) {
	reg := newTestStaticRegistry(t)
	artifact, err := reg.FetchArtifact(context.Background(), "example", "1.10.0", "linux", "amd64")
	require.NoError(t, err)
	defer artifact.Stream.Close()
	require.Equal(t, "sha256:deadbeef", artifact.ExpectedDigest)
}

func TestStaticFetchArtifactMissingCombination(t *testing.T) {
	reg := newTestStaticRegistry(t)
	_, err := reg.FetchArtifact(context.Background(), "example", "1.10.0", "windows", "arm64")
	require.Error(t, err)
}

func TestStaticAliases(t *testing.T) {
	reg := newTestStaticRegistry(t)
	aliases, err := reg.Aliases(context.Background())
	require.NoError(t, err)
	require.Equal(t, "example", aliases["ex"])
}
