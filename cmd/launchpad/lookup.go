package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/launchpad-dev/launchpad/internal/activator"
)

var lookupCmd = &cobra.Command{
	Use:   "lookup <pwd>",
	Short: "Print the cached environment for pwd, or fail silently on a miss",
	Long: `lookup is the shell hook's fast-path probe (spec.md §4.7): it never
installs anything and never mutates state. On a cache hit it prints
"{env_dir}|{project_dir}" to stdout and exits 0. On any miss — no
manifest above pwd, no cache entry, a stale fingerprint — it prints
nothing and exits non-zero, and the caller falls back to "activate".`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		if !activator.RunLookup(act, os.Stdout, args[0]) {
			exitWithCode(ExitLookupMiss)
		}
	},
}
