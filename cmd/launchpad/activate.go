package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/launchpad-dev/launchpad/internal/activator"
)

var activateCmd = &cobra.Command{
	Use:   "activate <pwd>",
	Short: "Install (if needed) and activate the environment for pwd",
	Long: `activate is the shell hook's slow-path fallback (spec.md §4.7): it
resolves pwd's nearest manifest, reuses a cached environment when one
is valid, otherwise installs one, then prints the shell commands
(export PANTRY_CURRENT_PROJECT, PANTRY_ENV_DIR, PANTRY_ENV_BIN_PATH,
PATH) the hook eval's into the current shell.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := activator.RunActivate(globalCtx, act, os.Stdout, os.Stderr, args[0]); err != nil {
			printError(err)
			exitWithCode(exitCodeFor(err))
		}
		return nil
	},
}
