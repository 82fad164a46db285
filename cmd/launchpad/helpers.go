package main

import (
	"fmt"
	"os"

	"github.com/launchpad-dev/launchpad/internal/errs"
)

// printInfo prints a user-facing status line unless --quiet is set.
func printInfo(a ...interface{}) {
	if !quietFlag {
		fmt.Println(a...)
	}
}

// printError prints err to stderr, appending a remediation hint when
// errs.Hint has one for its Kind.
func printError(err error) {
	fmt.Fprintln(os.Stderr, err)
	if hint := errs.Hint(err); hint != "" {
		fmt.Fprintf(os.Stderr, "  hint: %s\n", hint)
	}
}

// exitCodeFor maps an error's errs.Kind to a process exit code. Callers
// that don't need this distinction just use ExitGeneral directly.
func exitCodeFor(err error) int {
	if errs.Is(err, errs.KindCancelled) {
		return ExitCancelled
	}
	return ExitGeneral
}
