package registry

import (
	"context"
	"encoding/json"
	"os"
	"sort"

	"github.com/launchpad-dev/launchpad/internal/errs"
)

// staticEntry is the on-disk/in-memory shape of one catalog entry,
// grounded on the teacher's internal/registry/registry.go cache-file
// shape (a flat JSON record per package, keyed by name).
type staticEntry struct {
	Description  string            `json:"description"`
	Versions     []string          `json:"versions"` // any order; sorted descending on read
	Programs     []string          `json:"programs"`
	Dependencies []string          `json:"dependencies"`
	Artifacts    map[string]string `json:"artifacts"` // "version/platform/arch" -> URL
	Digests      map[string]string `json:"digests"`   // "version/platform/arch" -> "sha256:<hex>"
}

// StaticCatalogRegistry serves package metadata from an in-memory map,
// typically loaded from a bundled JSON catalog file. It is used in
// tests and for the fixed set of packages Launchpad ships without a
// live GitHub lookup.
type StaticCatalogRegistry struct {
	entries map[string]staticEntry
	aliases map[string]string
	fetch   func(ctx context.Context, url string) (*Artifact, error)
}

// NewStaticCatalogRegistry builds a registry from raw catalog bytes
// (JSON: {"packages": {...}, "aliases": {...}}) and a fetch function
// used to open artifact URLs — tests inject an in-memory fetch; the
// CLI wires http-backed retrieval via httputil.NewSecureClient.
func NewStaticCatalogRegistry(catalogJSON []byte, fetch func(ctx context.Context, url string) (*Artifact, error)) (*StaticCatalogRegistry, error) {
	var doc struct {
		Packages map[string]staticEntry `json:"packages"`
		Aliases  map[string]string      `json:"aliases"`
	}
	if err := json.Unmarshal(catalogJSON, &doc); err != nil {
		return nil, errs.New(errs.KindBadManifest, "registry.static.load", "", err)
	}
	if doc.Aliases == nil {
		doc.Aliases = map[string]string{}
	}
	return &StaticCatalogRegistry{entries: doc.Packages, aliases: doc.Aliases, fetch: fetch}, nil
}

// LoadStaticCatalogFile reads a catalog from disk.
func LoadStaticCatalogFile(path string, fetch func(ctx context.Context, url string) (*Artifact, error)) (*StaticCatalogRegistry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errs.New(errs.KindIoError, "registry.static.load", path, err)
	}
	return NewStaticCatalogRegistry(data, fetch)
}

func (s *StaticCatalogRegistry) GetPackageInfo(ctx context.Context, domain string) (*PackageInfo, error) {
	e, ok := s.entries[domain]
	if !ok {
		return nil, errs.New(errs.KindUnknownPackage, "registry.static.GetPackageInfo", domain, nil)
	}
	latest := ""
	if len(e.Versions) > 0 {
		sorted := make([]string, len(e.Versions))
		copy(sorted, e.Versions)
		sort.Sort(sort.Reverse(byLooseSemver(sorted)))
		latest = sorted[0]
	}
	return &PackageInfo{
		Domain:        domain,
		Description:   e.Description,
		LatestVersion: latest,
		TotalVersions: len(e.Versions),
		Programs:      e.Programs,
		Dependencies:  e.Dependencies,
	}, nil
}

func (s *StaticCatalogRegistry) EnumerateVersions(ctx context.Context, domain string) ([]string, error) {
	e, ok := s.entries[domain]
	if !ok {
		return nil, errs.New(errs.KindUnknownPackage, "registry.static.EnumerateVersions", domain, nil)
	}
	out := make([]string, len(e.Versions))
	copy(out, e.Versions)
	sort.Sort(sort.Reverse(byLooseSemver(out)))
	return out, nil
}

func (s *StaticCatalogRegistry) FetchArtifact(ctx context.Context, domain, version, platform, arch string) (*Artifact, error) {
	e, ok := s.entries[domain]
	if !ok {
		return nil, errs.New(errs.KindUnknownPackage, "registry.static.FetchArtifact", domain, nil)
	}
	key := version + "/" + platform + "/" + arch
	url, ok := e.Artifacts[key]
	if !ok {
		return nil, errs.New(errs.KindUnknownPackage, "registry.static.FetchArtifact", domain, nil)
	}
	artifact, err := s.fetch(ctx, url)
	if err != nil {
		return nil, errs.New(errs.KindFetchFailed, "registry.static.FetchArtifact", domain, err)
	}
	if digest, ok := e.Digests[key]; ok {
		artifact.ExpectedDigest = digest
	}
	return artifact, nil
}

func (s *StaticCatalogRegistry) Aliases(ctx context.Context) (map[string]string, error) {
	out := make(map[string]string, len(s.aliases))
	for k, v := range s.aliases {
		out[k] = v
	}
	return out, nil
}
