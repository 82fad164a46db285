// Package registry implements the Registry Capability: an abstract
// interface to query package metadata, enumerate versions, and fetch
// artifacts by (domain, version, platform, arch).
//
// Concrete providers live in github.go (GitHub Releases) and static.go
// (an in-memory/JSON-backed catalog for tests and bundled fixtures).
// CachedRegistry in cached.go wraps either with an on-disk TTL cache.
package registry

import (
	"context"
	"io"
)

// PackageInfo describes a package as reported by a registry.
type PackageInfo struct {
	Domain        string   `json:"domain"`
	Description   string   `json:"description"`
	LatestVersion string   `json:"latest_version"`
	TotalVersions int      `json:"total_versions"`
	Programs      []string `json:"programs"`
	Dependencies  []string `json:"dependencies"`
}

// Artifact is the result of FetchArtifact: a readable stream positioned
// at the start of the downloaded bytes, paired with the digest the
// caller must verify the stream against.
type Artifact struct {
	Stream         io.ReadCloser
	ExpectedDigest string // "sha256:<hex>"
	ContentLength  int64  // 0 when unknown
}

// PackageRegistry is the capability Launchpad's resolver and install
// engine depend on. Implementations must be safe for concurrent use.
type PackageRegistry interface {
	// GetPackageInfo resolves domain (already alias-resolved by the
	// caller, or a canonical domain) to its metadata. Returns an error
	// satisfying errs.KindOf(err) == errs.KindUnknownPackage on miss.
	GetPackageInfo(ctx context.Context, domain string) (*PackageInfo, error)

	// EnumerateVersions lists every known version of domain in
	// descending semver order.
	EnumerateVersions(ctx context.Context, domain string) ([]string, error)

	// FetchArtifact opens the artifact for (domain, version) built for
	// (platform, arch). Callers must close the returned stream.
	FetchArtifact(ctx context.Context, domain, version, platform, arch string) (*Artifact, error)

	// Aliases returns the full alias → canonical-domain mapping known
	// to this registry.
	Aliases(ctx context.Context) (map[string]string, error)
}
