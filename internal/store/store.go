// Package store implements the Package Store (spec.md §4.4): a
// content-addressed on-disk layout at {prefix}/pkgs/{domain}/v{version}/,
// populated by a crash-consistent stage-verify-rename insertion protocol
// and read through a single completeness invariant — a StoreEntry is
// present iff its metadata.json exists.
//
// Grounded on the teacher's internal/actions/extract.go for archive
// extraction (tar.gz/xz/bz2/zst/lz, zip, with path-traversal and
// symlink-escape guards) and internal/install/checksum.go for digest
// computation and verification.
package store

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/launchpad-dev/launchpad/internal/errs"
)

// Metadata is the per-package record written into a StoreEntry's
// metadata.json (spec.md §3). Its presence on disk is the sole
// completeness signal for the entry.
type Metadata struct {
	Domain         string    `json:"domain"`
	Version        string    `json:"version"`
	Binaries       []string  `json:"binaries"`
	LibraryPaths   []string  `json:"library_paths"`
	InstalledAt    time.Time `json:"installed_at"`
	ArtifactDigest string    `json:"artifact_digest"`
	Kind           string    `json:"kind"`
}

// Store drives the content-addressed package tree rooted at Root
// ({prefix}/pkgs).
type Store struct {
	Root string
}

// New returns a Store rooted at pkgsDir.
func New(pkgsDir string) *Store {
	return &Store{Root: pkgsDir}
}

// EntryDir returns the on-disk path of the StoreEntry for (domain, version),
// regardless of whether it currently exists.
func (s *Store) EntryDir(domain, version string) string {
	return filepath.Join(s.Root, domain, "v"+version)
}

// Has reports whether a StoreEntry is present: metadata.json exists at
// its entry directory. A bare extraction remnant without metadata.json
// does not count (spec.md §4.4).
func (s *Store) Has(domain, version string) bool {
	_, err := os.Stat(s.metadataPath(s.EntryDir(domain, version)))
	return err == nil
}

// ReadMetadata loads the metadata record for an already-present entry.
func (s *Store) ReadMetadata(domain, version string) (*Metadata, error) {
	data, err := os.ReadFile(s.metadataPath(s.EntryDir(domain, version)))
	if err != nil {
		return nil, errs.New(errs.KindInconsistentStore, "store.ReadMetadata", domain+"@"+version, err)
	}
	var m Metadata
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, errs.New(errs.KindInconsistentStore, "store.ReadMetadata", domain+"@"+version, err)
	}
	return &m, nil
}

func (s *Store) metadataPath(entryDir string) string {
	return filepath.Join(entryDir, "metadata.json")
}

// stagingDir allocates a fresh, collision-free staging path for
// (domain, version) per spec.md §4.4 step 1.
func (s *Store) stagingDir(domain, version string) string {
	nonce := rand.Int63()
	return filepath.Join(s.Root, domain, fmt.Sprintf("v%s.partial.%d", version, nonce))
}

// Insert runs the full stage → extract → verify → rename protocol
// (spec.md §4.4). artifact is the compressed archive stream (already
// opened by the caller via registry.FetchArtifact); format is one of
// the formats recognized by extractArchive. expectedDigest is
// "sha256:<hex>"; Insert computes the digest of the raw artifact bytes
// as they are read, so extraction and digest verification happen in a
// single pass.
//
// If the target entry already exists by the time Insert is ready to
// rename (a race with a concurrent installer), the staging directory is
// discarded and Insert returns successfully: store entries are
// value-equal by digest, so the race has no observable effect.
func (s *Store) Insert(ctx context.Context, domain, version, format string, artifact io.Reader, expectedDigest string, meta Metadata) error {
	entryDir := s.EntryDir(domain, version)
	if s.Has(domain, version) {
		return nil
	}

	if err := os.MkdirAll(filepath.Join(s.Root, domain), 0755); err != nil {
		return errs.New(errs.KindIoError, "store.Insert", domain, err)
	}

	staging := s.stagingDir(domain, version)
	if err := os.MkdirAll(staging, 0755); err != nil {
		return errs.New(errs.KindIoError, "store.Insert", domain, err)
	}
	defer os.RemoveAll(staging)

	h := sha256.New()
	tee := io.TeeReader(artifact, h)

	if err := extractArchive(ctx, tee, staging, format); err != nil {
		return errs.New(errs.KindCorruptArtifact, "store.Insert", domain, err)
	}

	actualDigest := "sha256:" + hex.EncodeToString(h.Sum(nil))
	if expectedDigest != "" && actualDigest != expectedDigest {
		return errs.New(errs.KindCorruptArtifact, "store.Insert", domain,
			fmt.Errorf("digest mismatch: expected %s, got %s", expectedDigest, actualDigest))
	}

	meta.Domain = domain
	meta.Version = version
	meta.ArtifactDigest = actualDigest
	if meta.InstalledAt.IsZero() {
		meta.InstalledAt = time.Now()
	}

	data, err := json.MarshalIndent(&meta, "", "  ")
	if err != nil {
		return errs.New(errs.KindIoError, "store.Insert", domain, err)
	}
	if err := os.WriteFile(s.metadataPath(staging), data, 0644); err != nil {
		return errs.New(errs.KindIoError, "store.Insert", domain, err)
	}

	if err := os.Rename(staging, entryDir); err != nil {
		// Target may have been populated by a concurrent installer
		// between our Has() check and this rename; treat that as success.
		if s.Has(domain, version) {
			return nil
		}
		return errs.New(errs.KindIoError, "store.Insert", domain, err)
	}

	return nil
}

// DetectFormat maps a filename to the archive format token extractArchive
// understands, by suffix, matching the teacher's detectFormat.
func DetectFormat(filename string) string {
	lower := strings.ToLower(filename)
	switch {
	case strings.HasSuffix(lower, ".tar.gz"), strings.HasSuffix(lower, ".tgz"):
		return "tar.gz"
	case strings.HasSuffix(lower, ".tar.xz"), strings.HasSuffix(lower, ".txz"):
		return "tar.xz"
	case strings.HasSuffix(lower, ".tar.bz2"), strings.HasSuffix(lower, ".tbz2"), strings.HasSuffix(lower, ".tbz"):
		return "tar.bz2"
	case strings.HasSuffix(lower, ".tar.zst"), strings.HasSuffix(lower, ".tzst"):
		return "tar.zst"
	case strings.HasSuffix(lower, ".tar.lz"), strings.HasSuffix(lower, ".tlz"):
		return "tar.lz"
	case strings.HasSuffix(lower, ".tar"):
		return "tar"
	case strings.HasSuffix(lower, ".zip"):
		return "zip"
	default:
		return "unknown"
	}
}

// Prune removes staging remnants (directories without metadata.json)
// under domain's store subtree, per spec.md §4.4's "MUST be ignorable /
// may reclaim by cleanup" guidance. Used by internal/cleanup.
func (s *Store) Prune(domain string) error {
	domainDir := filepath.Join(s.Root, domain)
	entries, err := os.ReadDir(domainDir)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return errs.New(errs.KindIoError, "store.Prune", domain, err)
	}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		dir := filepath.Join(domainDir, e.Name())
		if _, statErr := os.Stat(s.metadataPath(dir)); statErr != nil {
			if rmErr := os.RemoveAll(dir); rmErr != nil {
				return errs.New(errs.KindIoError, "store.Prune", domain, rmErr)
			}
		}
	}
	return nil
}
