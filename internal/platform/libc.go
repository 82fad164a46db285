package platform

import (
	"debug/elf"
	"path/filepath"
	"strings"
)

// ValidLibcTypes lists the recognized libc values.
// The libc affects binary compatibility and package availability:
//   - glibc: GNU C Library (most Linux distributions)
//   - musl: musl libc (Alpine Linux, Void Linux musl variant)
var ValidLibcTypes = []string{"glibc", "musl"}

// DetectLibc returns the libc implementation for the current system.
// Returns "musl" if the musl dynamic linker is present, "glibc" otherwise.
//
// Detection checks for /lib/ld-musl-*.so.1 which is the standard location
// for the musl dynamic linker across all architectures (x86_64, aarch64, etc.).
func DetectLibc() string {
	return DetectLibcWithRoot("")
}

// DetectLibcWithRoot detects libc with a custom root path for testing.
// An empty root uses the real filesystem root.
func DetectLibcWithRoot(root string) string {
	// Check for musl dynamic linker
	// Pattern matches: ld-musl-x86_64.so.1, ld-musl-aarch64.so.1, etc.
	pattern := filepath.Join(root, "lib", "ld-musl-*.so.1")
	matches, _ := filepath.Glob(pattern)
	if len(matches) > 0 {
		return "musl"
	}
	return "glibc"
}

// LibcForFamily returns the libc implementation conventionally paired
// with a linux_family. Alpine is the only family built on musl; every
// other recognized (or unrecognized) family defaults to glibc.
func LibcForFamily(family string) string {
	if family == "alpine" {
		return "musl"
	}
	return "glibc"
}

// detectLibcFromBinary inspects an ELF binary's PT_INTERP program
// header (the dynamic loader path baked in at link time) to infer
// which libc it was built against. Returns "" for missing files,
// non-ELF files, and statically-linked binaries with no interpreter.
func detectLibcFromBinary(path string) string {
	f, err := elf.Open(path)
	if err != nil {
		return ""
	}
	defer f.Close()

	for _, prog := range f.Progs {
		if prog.Type != elf.PT_INTERP {
			continue
		}
		data := make([]byte, prog.Filesz)
		if _, err := prog.ReadAt(data, 0); err != nil {
			return ""
		}
		interp := strings.TrimRight(string(data), "\x00")
		switch {
		case strings.Contains(interp, "musl"):
			return "musl"
		case strings.Contains(interp, "ld-linux") || strings.Contains(interp, "libc.so"):
			return "glibc"
		default:
			return ""
		}
	}
	return ""
}
