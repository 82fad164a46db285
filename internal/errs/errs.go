// Package errs implements the error taxonomy from spec.md §7 as a single
// structured error type, replacing the teacher's exception-style
// propagation with an explicit Kind that every component declares up
// front (per spec.md §9's redesign note on exception-style propagation).
package errs

import "errors"

// Kind enumerates the error taxonomy from spec.md §7.
type Kind int

const (
	// Input errors.
	KindUnknownPackage Kind = iota
	KindVersionConflict
	KindBadManifest
	KindCyclicDependency
	KindUnknownService

	// Resource errors.
	KindFetchFailed
	KindCorruptArtifact
	KindLinkFailed
	KindIoError
	KindOutOfDisk

	// State errors.
	KindStaleCache
	KindInconsistentStore
	KindServiceAlreadyRunning
	KindServiceNotRunning

	// Environment errors.
	KindUnsupportedPlatform
	KindMissingDependency

	// User errors.
	KindCancelled
	KindPermissionDenied
)

func (k Kind) String() string {
	switch k {
	case KindUnknownPackage:
		return "UnknownPackage"
	case KindVersionConflict:
		return "VersionConflict"
	case KindBadManifest:
		return "BadManifest"
	case KindCyclicDependency:
		return "CyclicDependency"
	case KindUnknownService:
		return "UnknownService"
	case KindFetchFailed:
		return "FetchFailed"
	case KindCorruptArtifact:
		return "CorruptArtifact"
	case KindLinkFailed:
		return "LinkFailed"
	case KindIoError:
		return "IoError"
	case KindOutOfDisk:
		return "OutOfDisk"
	case KindStaleCache:
		return "StaleCache"
	case KindInconsistentStore:
		return "InconsistentStore"
	case KindServiceAlreadyRunning:
		return "ServiceAlreadyRunning"
	case KindServiceNotRunning:
		return "ServiceNotRunning"
	case KindUnsupportedPlatform:
		return "UnsupportedPlatform"
	case KindMissingDependency:
		return "MissingDependency"
	case KindCancelled:
		return "Cancelled"
	case KindPermissionDenied:
		return "PermissionDenied"
	default:
		return "Unknown"
	}
}

// Recoverable reports whether a Kind is handled locally and silently per
// spec.md §7's propagation policy (stale cache, partial store).
func (k Kind) Recoverable() bool {
	return k == KindStaleCache || k == KindInconsistentStore
}

// Error is Launchpad's structured error: a Kind, the operation that
// produced it, and the wrapped cause. Op is a short dotted path like
// "resolver.selectVersion" or "store.insert", useful in verbose output.
type Error struct {
	Kind Kind
	Op   string
	Err  error

	// Subject carries the entity the error concerns (a package domain, a
	// service name, a constraint list) for use by remediation hints.
	Subject string
}

func (e *Error) Error() string {
	msg := e.Kind.String()
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Subject != "" {
		msg += " (" + e.Subject + ")"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New constructs an Error of the given Kind.
func New(kind Kind, op string, subject string, cause error) *Error {
	return &Error{Kind: kind, Op: op, Subject: subject, Err: cause}
}

// Is reports whether err (or any error it wraps) carries the given Kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// KindOf extracts the Kind from err, or returns KindIoError as a fallback
// for errors that did not originate from this package.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindIoError
}
