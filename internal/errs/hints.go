package errs

import (
	"errors"
	"fmt"
)

// Hint returns a single-line remediation suggestion for err, or "" if none
// applies. Mirrors the teacher's errmsg.Format, generalized from
// registry-specific string matching to a switch over the structured Kind
// taxonomy (spec.md §7, "Errors carry ... a remediation hint").
func Hint(err error) string {
	var e *Error
	if !errors.As(err, &e) {
		return ""
	}

	switch e.Kind {
	case KindCorruptArtifact:
		return "run with --force to re-fetch and re-verify the artifact"
	case KindFetchFailed:
		return "check your internet connection and try again"
	case KindVersionConflict:
		return fmt.Sprintf("no version of %s satisfies all constraints; relax one of the manifest's version ranges", e.Subject)
	case KindUnknownPackage:
		return fmt.Sprintf("%q is not a known package domain or alias; check spelling or the registry's alias list", e.Subject)
	case KindMissingDependency:
		return fmt.Sprintf("install %s on the host system", e.Subject)
	case KindCyclicDependency:
		return fmt.Sprintf("break the service dependency cycle: %s", e.Subject)
	case KindPermissionDenied:
		return "check ownership and permissions on the launchpad home directory"
	case KindOutOfDisk:
		return "free up disk space, then retry; run `launchpad clean --dry-run` to see reclaimable space"
	case KindServiceAlreadyRunning:
		return fmt.Sprintf("service %s is already running; use `launchpad service restart`", e.Subject)
	case KindServiceNotRunning:
		return fmt.Sprintf("service %s is not running; use `launchpad service start`", e.Subject)
	case KindUnsupportedPlatform:
		return "this operation has no driver for the current OS/architecture"
	case KindBadManifest:
		return "check the manifest's dependency and service declarations for syntax errors"
	case KindLinkFailed:
		return fmt.Sprintf("could not create a symlink or shim for %s; check filesystem permissions", e.Subject)
	default:
		return ""
	}
}
