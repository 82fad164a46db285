// Package command defines a static Command registry (spec.md §9's
// redesign note: no lazy/dynamic command loading), matching the
// teacher's own static rootCmd.AddCommand(...) wiring in
// cmd/tsuku/main.go's init(). cmd/launchpad wires its cobra
// subcommands directly and does not register them here.
package command

import (
	"context"
	"io"
)

// Context carries everything a Command needs to run, independent of
// cobra. Kept separate from *cobra.Command so Commands stay testable
// without constructing a CLI tree.
type Context struct {
	Ctx    context.Context
	Args   []string
	Stdout io.Writer
	Stderr io.Writer
}

// Command is one registered subcommand's behavior.
type Command interface {
	Name() string
	Run(c *Context) int
}

var registry = map[string]Command{}

// Register adds cmd to the static registry under cmd.Name(); a later
// registration with the same name replaces the earlier one.
func Register(cmd Command) {
	registry[cmd.Name()] = cmd
}

// Lookup returns the registered Command for name, if any.
func Lookup(name string) (Command, bool) {
	cmd, ok := registry[name]
	return cmd, ok
}

// Registered returns every registered command name, for tests that
// assert the full surface is wired.
func Registered() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	return names
}
