// Package resolver implements the Resolver (spec.md §4.3, L5): from a
// manifest to a flat, deduplicated, topologically-sorted list of
// concrete (package, version) pairs, classified runtime vs. buildtime.
//
// Grounded on the teacher's internal/discover/resolver.go for the
// breadth-first dependency-graph-walk shape (visited-set + queue,
// kind-prefixed dependency strings), generalized from ecosystem package
// discovery to manifest-driven environment resolution. Version
// constraint satisfaction uses github.com/Masterminds/semver/v3 (a
// teacher go.mod dependency not wired into tsuku's own resolver, but the
// natural fit here per SPEC_FULL.md §4.3).
package resolver

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/Masterminds/semver/v3"

	"github.com/launchpad-dev/launchpad/internal/errs"
	"github.com/launchpad-dev/launchpad/internal/log"
	"github.com/launchpad-dev/launchpad/internal/manifest"
	"github.com/launchpad-dev/launchpad/internal/registry"
)

// Kind classifies a resolved package's role. KindSystem marks a runtime
// dependency that resolves to a binary already present on PATH instead
// of a fetched package — see SPEC_FULL.md §3's resolution of spec.md
// §9's php open question.
type Kind int

const (
	KindRuntime Kind = iota
	KindBuildtime
	KindSystem
)

func (k Kind) String() string {
	switch k {
	case KindBuildtime:
		return "buildtime"
	case KindSystem:
		return "system"
	default:
		return "runtime"
	}
}

// ResolvedPackage is one entry in a Resolution (spec.md §3).
type ResolvedPackage struct {
	Domain  string
	Version string
	Kind    Kind

	// DependsOn indexes other entries in the same Resolution this
	// package depends on. Always indexes earlier entries: Resolution is
	// topologically sorted (spec.md §4.3 step 8).
	DependsOn []int
}

// Resolution is the Resolver's output: a flat, deduplicated,
// dependency-ordered package list.
type Resolution struct {
	Packages []ResolvedPackage
}

// Options controls resolution behavior beyond what the manifest itself declares.
type Options struct {
	// InstallBuildDeps mirrors LAUNCHPAD_INSTALL_BUILD_DEPS (spec.md §4.3
	// step 4). Defaults to true when unset via config.BuildDepsEnabled.
	InstallBuildDeps bool

	// SystemLookup reports whether a binary is already present on PATH,
	// used to resolve spec.md §9's php open question (SPEC_FULL.md §3):
	// a runtime dependency already satisfied on the system is recorded
	// as KindSystem instead of being fetched. Nil disables the check
	// (every runtime dependency is fetched).
	SystemLookup func(domain string) bool
}

type node struct {
	domain  string
	version string
	kind    Kind
}

// Resolve runs the full algorithm of spec.md §4.3 steps 1-8 against m,
// using reg to resolve aliases, enumerate versions, and read declared
// dependencies.
func Resolve(ctx context.Context, m *manifest.Manifest, reg registry.PackageRegistry, opts Options) (*Resolution, error) {
	aliases, err := reg.Aliases(ctx)
	if err != nil {
		return nil, err
	}

	canon := func(name string) string {
		if d, ok := aliases[name]; ok {
			return d
		}
		return name
	}

	// Step 1+2: alias resolution + top-level version selection.
	type pending struct {
		domain     string
		constraint string
		kind       Kind
	}
	var queue []pending
	constraintsByDomain := map[string][]string{}

	for _, alias := range m.SortedDependencyKeys() {
		domain := canon(alias)
		constraint := m.Dependencies[alias]
		if _, err := reg.GetPackageInfo(ctx, domain); err != nil {
			return nil, errs.New(errs.KindUnknownPackage, "resolver.Resolve", alias, err)
		}
		queue = append(queue, pending{domain: domain, constraint: constraint, kind: KindRuntime})
		constraintsByDomain[domain] = append(constraintsByDomain[domain], constraint)
	}

	resolved := map[string]*node{}

	for len(queue) > 0 {
		p := queue[0]
		queue = queue[1:]

		version, err := selectVersion(ctx, reg, p.domain, p.constraint)
		if err != nil {
			return nil, err
		}

		if existing, ok := resolved[p.domain]; ok {
			if p.kind == KindRuntime && existing.kind == KindBuildtime {
				existing.kind = KindRuntime
			}
			if existing.version == version {
				continue
			}
			// Step 5: dedup by requiring a single version satisfying every
			// constraint that demanded this domain.
			winner, err := highestSatisfyingAll(ctx, reg, p.domain, constraintsByDomain[p.domain])
			if err != nil {
				return nil, errs.New(errs.KindVersionConflict, "resolver.Resolve", p.domain, err)
			}
			existing.version = winner
			continue
		}

		resolved[p.domain] = &node{domain: p.domain, version: version, kind: p.kind}

		// Step 3: transitive expansion via registry-declared dep_spec list.
		info, err := reg.GetPackageInfo(ctx, p.domain)
		if err != nil {
			return nil, errs.New(errs.KindUnknownPackage, "resolver.Resolve", p.domain, err)
		}
		for _, depSpec := range info.Dependencies {
			kind, depName, depConstraint := parseDepSpec(depSpec)
			depDomain := canon(depName)

			constraintsByDomain[depDomain] = append(constraintsByDomain[depDomain], depConstraint)

			if n, ok := resolved[depDomain]; ok {
				if kind == KindRuntime && n.kind == KindBuildtime {
					n.kind = KindRuntime
				}
				continue
			}
			queue = append(queue, pending{domain: depDomain, constraint: depConstraint, kind: kind})
		}
	}

	// Step 4 (continued): buildtime-only nodes survive only if reachable
	// by a runtime edge; since we only ever upgrade a node's kind to
	// KindRuntime when a runtime edge is found (above), any node whose
	// kind is still marked buildtime-only here had no runtime path.
	if !opts.InstallBuildDeps {
		for domain, n := range resolved {
			if n.kind == KindBuildtime {
				delete(resolved, domain)
			}
		}
	}

	// Step 7: exclusions, applied after dedup, before emission.
	excluded := map[string]bool{}
	for _, d := range m.ExcludeDependencies {
		excluded[canon(d)] = true
	}
	if m.Global {
		for _, d := range m.ExcludeGlobalDependencies {
			excluded[canon(d)] = true
		}
	}
	for _, excl := range m.ExcludeServiceDependencies {
		for _, d := range excl {
			excluded[canon(d)] = true
		}
	}
	for domain := range excluded {
		delete(resolved, domain)
	}

	// Step 2 re-check: ensure every surviving node's pinned version still
	// satisfies all constraints that named it (step 5's conflict surface).
	for domain, n := range resolved {
		cs := constraintsByDomain[domain]
		satisfiesAll, err := versionSatisfiesAll(n.version, cs)
		if err != nil {
			return nil, err
		}
		if !satisfiesAll {
			return nil, errs.New(errs.KindVersionConflict, "resolver.Resolve", domain,
				fmt.Errorf("no version satisfies constraints %v", cs))
		}
	}

	if opts.SystemLookup != nil {
		for domain, n := range resolved {
			if n.kind == KindRuntime && opts.SystemLookup(domain) {
				n.kind = KindSystem
			}
		}
	}

	// Step 8: topological emit, dependencies before dependents, stable
	// with alphabetical tie-break. Rebuild the dependency edges from the
	// registry a second time now that the surviving node set is final.
	return topologicalEmit(ctx, reg, resolved, canon)
}

// selectVersion implements step 2: pick the highest enumerated version
// satisfying constraint, or the first entry when constraint is "latest".
func selectVersion(ctx context.Context, reg registry.PackageRegistry, domain, constraint string) (string, error) {
	versions, err := reg.EnumerateVersions(ctx, domain)
	if err != nil {
		return "", errs.New(errs.KindUnknownPackage, "resolver.selectVersion", domain, err)
	}
	if len(versions) == 0 {
		return "", errs.New(errs.KindUnknownPackage, "resolver.selectVersion", domain, nil)
	}
	if constraint == "" || constraint == "latest" {
		return versions[0], nil
	}

	c, err := semver.NewConstraint(constraint)
	if err != nil {
		return "", errs.New(errs.KindBadManifest, "resolver.selectVersion", domain, err)
	}
	for _, v := range versions {
		sv, err := semver.NewVersion(v)
		if err != nil {
			continue
		}
		if c.Check(sv) {
			return v, nil
		}
	}
	return "", errs.New(errs.KindVersionConflict, "resolver.selectVersion", domain,
		fmt.Errorf("no version satisfies %q", constraint))
}

// versionSatisfiesAll reports whether version satisfies every non-empty,
// non-"latest" constraint in constraints.
func versionSatisfiesAll(version string, constraints []string) (bool, error) {
	sv, err := semver.NewVersion(version)
	if err != nil {
		return false, errs.New(errs.KindBadManifest, "resolver.versionSatisfiesAll", version, err)
	}
	for _, raw := range constraints {
		if raw == "" || raw == "latest" {
			continue
		}
		c, err := semver.NewConstraint(raw)
		if err != nil {
			return false, errs.New(errs.KindBadManifest, "resolver.versionSatisfiesAll", raw, err)
		}
		if !c.Check(sv) {
			return false, nil
		}
	}
	return true, nil
}

// highestSatisfyingAll implements step 5: the highest enumerated version
// that satisfies every constraint recorded for domain.
func highestSatisfyingAll(ctx context.Context, reg registry.PackageRegistry, domain string, constraints []string) (string, error) {
	versions, err := reg.EnumerateVersions(ctx, domain)
	if err != nil {
		return "", err
	}
	for _, v := range versions {
		ok, err := versionSatisfiesAll(v, constraints)
		if err != nil {
			return "", err
		}
		if ok {
			return v, nil
		}
	}
	return "", fmt.Errorf("constraints %v", constraints)
}

// parseDepSpec splits a registry dep_spec string ("[kind:]domain[range]")
// into its kind token, domain, and version constraint, per spec.md
// §4.1's "Dependency descriptors" convention.
func parseDepSpec(spec string) (Kind, string, string) {
	kind := KindRuntime
	rest := spec
	if idx := strings.Index(spec, ":"); idx >= 0 && spec[:idx] == "build" {
		kind = KindBuildtime
		rest = spec[idx+1:]
	}

	domain := rest
	constraint := ""
	for i, r := range rest {
		if r == '@' {
			domain = rest[:i]
			constraint = rest[i+1:]
			break
		}
	}
	return kind, domain, constraint
}

// topologicalEmit implements step 8. Cycles detected while walking
// declared dependencies (step 6) are broken at the back edge; a warning
// naming the revisited domain is logged and emission proceeds with the
// acyclic remainder, per spec.md's "resolution stays acyclic".
func topologicalEmit(ctx context.Context, reg registry.PackageRegistry, resolved map[string]*node, canon func(string) string) (*Resolution, error) {
	domains := make([]string, 0, len(resolved))
	for d := range resolved {
		domains = append(domains, d)
	}
	sort.Strings(domains)

	edges := map[string][]string{}
	for _, domain := range domains {
		info, err := reg.GetPackageInfo(ctx, domain)
		if err != nil {
			return nil, errs.New(errs.KindUnknownPackage, "resolver.topologicalEmit", domain, err)
		}
		for _, depSpec := range info.Dependencies {
			_, depName, _ := parseDepSpec(depSpec)
			depDomain := canon(depName)
			if _, ok := resolved[depDomain]; ok {
				edges[domain] = append(edges[domain], depDomain)
			}
		}
		sort.Strings(edges[domain])
	}

	var order []string
	state := map[string]int{} // 0=unvisited 1=in-progress 2=done
	var visit func(d string, stack map[string]bool)
	visit = func(d string, stack map[string]bool) {
		if state[d] == 2 {
			return
		}
		if stack[d] {
			// Step 6: cycle detected; break at this back edge.
			log.Default().Warn("dependency cycle broken at back edge", "domain", d)
			return
		}
		stack[d] = true
		for _, dep := range edges[d] {
			visit(dep, stack)
		}
		stack[d] = false
		if state[d] != 2 {
			state[d] = 2
			order = append(order, d)
		}
	}
	for _, d := range domains {
		visit(d, map[string]bool{})
	}

	index := map[string]int{}
	for i, d := range order {
		index[d] = i
	}

	packages := make([]ResolvedPackage, len(order))
	for i, d := range order {
		n := resolved[d]
		var deps []int
		for _, dep := range edges[d] {
			if idx, ok := index[dep]; ok && idx < i {
				deps = append(deps, idx)
			}
		}
		sort.Ints(deps)
		packages[i] = ResolvedPackage{
			Domain:    d,
			Version:   n.version,
			Kind:      n.kind,
			DependsOn: deps,
		}
	}

	return &Resolution{Packages: packages}, nil
}
