package platform

import (
	"os/exec"
	"strings"
)

// BinaryNameForDomain derives the conventional on-PATH executable name
// from a manifest dependency domain. Reverse-DNS-style domains (e.g.
// "sh.bun", "example.gcc") use their final segment as the binary name;
// bare domains (e.g. "php") are used as-is.
func BinaryNameForDomain(domain string) string {
	if idx := strings.LastIndex(domain, "."); idx != -1 {
		return domain[idx+1:]
	}
	return domain
}

// SystemLookup reports whether domain's conventional binary is already
// present on PATH. Its signature matches resolver.Options.SystemLookup
// directly, so it wires in without an adapter closure.
//
// Grounded on the teacher's internal/install/bootstrap.go, which checks
// exec.LookPath for a system-installed tool before falling back to
// installing one itself.
func SystemLookup(domain string) bool {
	_, err := exec.LookPath(BinaryNameForDomain(domain))
	return err == nil
}
