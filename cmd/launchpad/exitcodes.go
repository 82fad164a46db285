package main

import "os"

// Exit codes. Scripts wrapping launchpad (shell hooks in particular)
// distinguish these instead of parsing stderr text.
const (
	ExitSuccess = 0

	// ExitGeneral is any error not otherwise classified below.
	ExitGeneral = 1

	// ExitUsage indicates invalid arguments or usage error.
	ExitUsage = 1

	// ExitLookupMiss is lookup's dedicated "no cached environment" exit
	// code, distinct from ExitGeneral so the shell fast path can tell a
	// cache miss from an actual failure.
	ExitLookupMiss = 3

	// ExitCancelled indicates the operation was interrupted (SIGINT/SIGTERM).
	ExitCancelled = 2
)

func exitWithCode(code int) {
	os.Exit(code)
}
