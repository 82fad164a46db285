package store

import (
	"archive/tar"
	"archive/zip"
	"compress/bzip2"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zstd"
	lzip "github.com/sorairolake/lzip-go"
	"github.com/ulikunitz/xz"
)

// extractArchive streams r, decompressing per format, into destDir. A
// temporary file holds the archive so zip (which needs io.ReaderAt) can
// be read uniformly with the streaming tar variants.
func extractArchive(ctx context.Context, r io.Reader, destDir, format string) error {
	if format == "zip" {
		return extractZipStream(r, destDir)
	}

	var tr *tar.Reader
	switch format {
	case "tar.gz", "tgz":
		gzr, err := gzip.NewReader(r)
		if err != nil {
			return fmt.Errorf("gzip reader: %w", err)
		}
		defer gzr.Close()
		tr = tar.NewReader(gzr)
	case "tar.xz", "txz":
		xzr, err := xz.NewReader(r)
		if err != nil {
			return fmt.Errorf("xz reader: %w", err)
		}
		tr = tar.NewReader(xzr)
	case "tar.bz2", "tbz2", "tbz":
		tr = tar.NewReader(bzip2.NewReader(r))
	case "tar.zst", "tzst":
		zr, err := zstd.NewReader(r)
		if err != nil {
			return fmt.Errorf("zstd reader: %w", err)
		}
		defer zr.Close()
		tr = tar.NewReader(zr)
	case "tar.lz", "tlz":
		lr, err := lzip.NewReader(r)
		if err != nil {
			return fmt.Errorf("lzip reader: %w", err)
		}
		tr = tar.NewReader(lr)
	case "tar":
		tr = tar.NewReader(r)
	default:
		return fmt.Errorf("unsupported archive format: %s", format)
	}

	return extractTarReader(ctx, tr, destDir)
}

func extractTarReader(ctx context.Context, tr *tar.Reader, destDir string) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		header, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("read tar header: %w", err)
		}

		cleanPath := strings.TrimPrefix(header.Name, "./")
		if cleanPath == "" || cleanPath == "." {
			continue
		}
		target := filepath.Join(destDir, cleanPath)
		if !isPathWithinDirectory(target, destDir) {
			return fmt.Errorf("archive entry escapes destination directory: %s", header.Name)
		}

		switch header.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0755); err != nil {
				return fmt.Errorf("create directory: %w", err)
			}

		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
				return fmt.Errorf("create parent directory: %w", err)
			}
			f, err := os.OpenFile(target, os.O_CREATE|os.O_RDWR|os.O_TRUNC, os.FileMode(header.Mode))
			if err != nil {
				return fmt.Errorf("create file: %w", err)
			}
			if _, err := io.Copy(f, tr); err != nil {
				f.Close()
				return fmt.Errorf("write file: %w", err)
			}
			f.Close()

		case tar.TypeSymlink:
			if err := validateSymlinkTarget(header.Linkname, target, destDir); err != nil {
				return err
			}
			if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
				return fmt.Errorf("create parent directory: %w", err)
			}
			if err := atomicSymlink(header.Linkname, target); err != nil {
				return fmt.Errorf("create symlink: %w", err)
			}
		}
	}
	return nil
}

func extractZipStream(r io.Reader, destDir string) error {
	tmp, err := os.CreateTemp("", "launchpad-zip-*")
	if err != nil {
		return fmt.Errorf("stage zip: %w", err)
	}
	defer os.Remove(tmp.Name())
	defer tmp.Close()

	if _, err := io.Copy(tmp, r); err != nil {
		return fmt.Errorf("stage zip: %w", err)
	}

	size, err := tmp.Seek(0, io.SeekCurrent)
	if err != nil {
		return fmt.Errorf("stage zip: %w", err)
	}

	zr, err := zip.NewReader(tmp, size)
	if err != nil {
		return fmt.Errorf("open zip: %w", err)
	}

	for _, f := range zr.File {
		cleanPath := strings.TrimPrefix(f.Name, "./")
		if cleanPath == "" {
			continue
		}
		target := filepath.Join(destDir, cleanPath)
		if !isPathWithinDirectory(target, destDir) {
			return fmt.Errorf("zip entry escapes destination directory: %s", f.Name)
		}

		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0755); err != nil {
				return fmt.Errorf("create directory: %w", err)
			}
			continue
		}

		if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
			return fmt.Errorf("create parent directory: %w", err)
		}

		rc, err := f.Open()
		if err != nil {
			return fmt.Errorf("open zip entry: %w", err)
		}
		outFile, err := os.OpenFile(target, os.O_CREATE|os.O_RDWR|os.O_TRUNC, f.Mode())
		if err != nil {
			rc.Close()
			return fmt.Errorf("create file: %w", err)
		}
		if _, err := io.Copy(outFile, rc); err != nil {
			outFile.Close()
			rc.Close()
			return fmt.Errorf("write file: %w", err)
		}
		outFile.Close()
		rc.Close()
	}

	return nil
}

// isPathWithinDirectory reports whether targetPath is contained within
// basePath, guarding against archive entries that try to escape the
// staging directory via ".." components.
func isPathWithinDirectory(targetPath, basePath string) bool {
	absTarget, err := filepath.Abs(targetPath)
	if err != nil {
		return false
	}
	absBase, err := filepath.Abs(basePath)
	if err != nil {
		return false
	}
	return absTarget == absBase || strings.HasPrefix(absTarget, absBase+string(os.PathSeparator))
}

// validateSymlinkTarget rejects absolute symlink targets and relative
// ones that would resolve outside destPath.
func validateSymlinkTarget(linkTarget, linkLocation, destPath string) error {
	if filepath.IsAbs(linkTarget) {
		return fmt.Errorf("absolute symlink targets are not allowed: %s -> %s", linkLocation, linkTarget)
	}
	resolvedTarget := filepath.Join(filepath.Dir(linkLocation), linkTarget)
	if !isPathWithinDirectory(resolvedTarget, destPath) {
		return fmt.Errorf("symlink target escapes destination directory: %s -> %s (resolves to %s)",
			linkLocation, linkTarget, resolvedTarget)
	}
	return nil
}

// atomicSymlink creates a symlink at linkPath via a temp-name-then-rename
// sequence, avoiding a TOCTOU window where a prior remove and the new
// symlink creation are observable as separate steps.
func atomicSymlink(target, linkPath string) error {
	tmpLink := linkPath + ".tmp"
	os.Remove(tmpLink)
	if err := os.Symlink(target, tmpLink); err != nil {
		return err
	}
	if err := os.Rename(tmpLink, linkPath); err != nil {
		os.Remove(tmpLink)
		return err
	}
	return nil
}
