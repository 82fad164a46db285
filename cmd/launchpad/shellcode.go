package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/launchpad-dev/launchpad/internal/activator"
)

var shellcodeCmd = &cobra.Command{
	Use:   "shellcode",
	Short: "Print the shell function implementing the activation fast path",
	Long: `shellcode prints a POSIX shell function that hooks PROMPT_COMMAND to
call "lookup"/"activate" on directory change, short-circuiting entirely
(no subprocess spawn) whenever PWD stays under the already-activated
project (spec.md §4.8). Installing the output into a shell profile is
left to the user — editing RC files is out of scope.

Usage in a shell profile:
  eval "$(launchpad shellcode)"`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Print(activator.Shellcode("launchpad"))
	},
}
