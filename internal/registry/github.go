package registry

import (
	"context"
	"fmt"
	"os"
	"path"
	"sort"
	"strings"

	"github.com/google/go-github/v57/github"
	"golang.org/x/oauth2"

	"github.com/launchpad-dev/launchpad/internal/errs"
	"github.com/launchpad-dev/launchpad/internal/httputil"
)

// GitHubReleaseRegistry resolves packages to GitHub release assets. A
// domain maps to an "owner/repo" coordinate and an asset-name template
// that, once expanded, must equal the asset name for a given
// platform/arch.
//
// GITHUB_TOKEN, when set, authenticates requests the same way the
// teacher's internal/version/resolver.go New() does, raising the
// unauthenticated rate limit.
type GitHubReleaseRegistry struct {
	client        *github.Client
	packages      map[string]GitHubPackage
	aliases       map[string]string
	authenticated bool
}

// GitHubPackage is the static coordinate + naming convention for one
// domain backed by GitHub releases.
type GitHubPackage struct {
	Repo        string // "owner/repo"
	Description string
	Programs    []string
	Deps        []string
	// AssetPattern is an exact asset name with {version}, {os}, {arch}
	// placeholders, e.g. "tool-{version}-{os}-{arch}.tar.gz".
	AssetPattern string
}

// NewGitHubReleaseRegistry builds a registry over the given domain →
// package coordinate map. If GITHUB_TOKEN is set in the environment,
// requests are authenticated via golang.org/x/oauth2.
func NewGitHubReleaseRegistry(packages map[string]GitHubPackage, aliases map[string]string) *GitHubReleaseRegistry {
	var httpClient = httputil.NewSecureClient(httputil.DefaultOptions())
	authenticated := false

	if token := os.Getenv("GITHUB_TOKEN"); token != "" {
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
		httpClient = oauth2.NewClient(context.Background(), ts)
		authenticated = true
	}

	if aliases == nil {
		aliases = map[string]string{}
	}

	return &GitHubReleaseRegistry{
		client:        github.NewClient(httpClient),
		packages:      packages,
		aliases:       aliases,
		authenticated: authenticated,
	}
}

func (g *GitHubReleaseRegistry) coordinate(domain string) (GitHubPackage, string, error) {
	if pkg, ok := g.packages[domain]; ok {
		return pkg, domain, nil
	}
	return GitHubPackage{}, "", errs.New(errs.KindUnknownPackage, "registry.github", domain, nil)
}

// GetPackageInfo implements PackageRegistry.
func (g *GitHubReleaseRegistry) GetPackageInfo(ctx context.Context, domain string) (*PackageInfo, error) {
	pkg, canonical, err := g.coordinate(domain)
	if err != nil {
		return nil, err
	}

	owner, repo, err := splitOwnerRepo(pkg.Repo)
	if err != nil {
		return nil, errs.New(errs.KindUnknownPackage, "registry.github.GetPackageInfo", domain, err)
	}

	release, resp, err := g.client.Repositories.GetLatestRelease(ctx, owner, repo)
	if err != nil {
		if resp != nil && resp.StatusCode == 404 {
			return nil, errs.New(errs.KindUnknownPackage, "registry.github.GetPackageInfo", domain, err)
		}
		return nil, errs.New(errs.KindFetchFailed, "registry.github.GetPackageInfo", domain, err)
	}

	versions, err := g.EnumerateVersions(ctx, canonical)
	if err != nil {
		return nil, err
	}

	return &PackageInfo{
		Domain:        canonical,
		Description:   pkg.Description,
		LatestVersion: normalizeTag(release.GetTagName()),
		TotalVersions: len(versions),
		Programs:      pkg.Programs,
		Dependencies:  pkg.Deps,
	}, nil
}

// EnumerateVersions implements PackageRegistry, listing release tags in
// descending semver order (newest first), mirroring the teacher's
// ListGitHubVersions / ResolveGitHub tag-listing fallback.
func (g *GitHubReleaseRegistry) EnumerateVersions(ctx context.Context, domain string) ([]string, error) {
	pkg, _, err := g.coordinate(domain)
	if err != nil {
		return nil, err
	}
	owner, repo, err := splitOwnerRepo(pkg.Repo)
	if err != nil {
		return nil, errs.New(errs.KindUnknownPackage, "registry.github.EnumerateVersions", domain, err)
	}

	opts := &github.ListOptions{PerPage: 100}
	var versions []string
	for page := 1; page <= 5; page++ {
		opts.Page = page
		tags, resp, err := g.client.Repositories.ListTags(ctx, owner, repo, opts)
		if err != nil {
			return nil, errs.New(errs.KindFetchFailed, "registry.github.EnumerateVersions", domain, err)
		}
		for _, t := range tags {
			if t.Name != nil {
				versions = append(versions, normalizeTag(*t.Name))
			}
		}
		if resp == nil || resp.NextPage == 0 {
			break
		}
	}

	sort.Sort(sort.Reverse(byLooseSemver(versions)))
	return versions, nil
}

// FetchArtifact implements PackageRegistry: locates the release asset
// matching (version, platform, arch) and opens an authenticated,
// redirect-hardened download stream.
func (g *GitHubReleaseRegistry) FetchArtifact(ctx context.Context, domain, version, platform, arch string) (*Artifact, error) {
	pkg, _, err := g.coordinate(domain)
	if err != nil {
		return nil, err
	}
	owner, repo, err := splitOwnerRepo(pkg.Repo)
	if err != nil {
		return nil, errs.New(errs.KindUnknownPackage, "registry.github.FetchArtifact", domain, err)
	}

	wantName := expandAssetPattern(pkg.AssetPattern, version, platform, arch)

	release, _, err := g.client.Repositories.GetReleaseByTag(ctx, owner, repo, "v"+version)
	if err != nil {
		release, _, err = g.client.Repositories.GetReleaseByTag(ctx, owner, repo, version)
	}
	if err != nil {
		return nil, errs.New(errs.KindUnknownPackage, "registry.github.FetchArtifact", domain, fmt.Errorf("no release for version %s", version))
	}

	for _, asset := range release.Assets {
		if asset.GetName() != wantName {
			continue
		}
		rc, _, err := g.client.Repositories.DownloadReleaseAsset(ctx, owner, repo, asset.GetID(), httputil.NewSecureClient(httputil.DefaultOptions()))
		if err != nil {
			return nil, errs.New(errs.KindFetchFailed, "registry.github.FetchArtifact", domain, err)
		}
		return &Artifact{
			Stream:        rc,
			ExpectedDigest: "", // GitHub releases carry no first-party digest and no checksums asset is read, so the Store skips digest verification for these artifacts.
			ContentLength: int64(asset.GetSize()),
		}, nil
	}

	return nil, errs.New(errs.KindUnknownPackage, "registry.github.FetchArtifact", domain, fmt.Errorf("no asset %q for %s/%s", wantName, platform, arch))
}

// Aliases implements PackageRegistry.
func (g *GitHubReleaseRegistry) Aliases(ctx context.Context) (map[string]string, error) {
	out := make(map[string]string, len(g.aliases))
	for k, v := range g.aliases {
		out[k] = v
	}
	return out, nil
}

func splitOwnerRepo(repo string) (string, string, error) {
	parts := strings.SplitN(repo, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid repo coordinate %q (expected owner/repo)", repo)
	}
	return parts[0], parts[1], nil
}

func normalizeTag(tag string) string {
	v := strings.TrimPrefix(tag, "v")
	if idx := strings.LastIndex(v, "/"); idx >= 0 {
		v = strings.TrimPrefix(v[idx+1:], "v")
	}
	return v
}

func expandAssetPattern(pattern, version, platform, arch string) string {
	r := strings.NewReplacer("{version}", version, "{os}", platform, "{arch}", arch)
	return path.Clean(r.Replace(pattern))
}

// byLooseSemver sorts dotted version strings ascending by numeric parts,
// falling back to lexicographic comparison for non-numeric components.
type byLooseSemver []string

func (b byLooseSemver) Len() int      { return len(b) }
func (b byLooseSemver) Swap(i, j int) { b[i], b[j] = b[j], b[i] }
func (b byLooseSemver) Less(i, j int) bool {
	return compareLooseSemver(b[i], b[j]) < 0
}

func compareLooseSemver(a, bb string) int {
	pa := strings.Split(a, ".")
	pb := strings.Split(bb, ".")
	n := len(pa)
	if len(pb) > n {
		n = len(pb)
	}
	for i := 0; i < n; i++ {
		var na, nb int
		if i < len(pa) {
			fmt.Sscanf(pa[i], "%d", &na)
		}
		if i < len(pb) {
			fmt.Sscanf(pb[i], "%d", &nb)
		}
		if na != nb {
			if na < nb {
				return -1
			}
			return 1
		}
	}
	return 0
}
