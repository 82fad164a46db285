package main

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/launchpad-dev/launchpad/internal/cleanup"
	"github.com/launchpad-dev/launchpad/internal/registry"
)

var cacheClearCmd = &cobra.Command{
	Use:   "cache:clear",
	Short: "Wipe the registry metadata/artifact cache and the env cache's cold tier",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cached, _ := act.Engine.Registry.(*registry.CachedRegistry)
		if err := cleanup.CacheClear(cached, act.Cache); err != nil {
			printError(err)
			exitWithCode(exitCodeFor(err))
		}
		printInfo("cache cleared")
		return nil
	},
}

var (
	envCleanOlderThan string
)

var envCleanCmd = &cobra.Command{
	Use:   "env:clean",
	Short: "Remove cached environments unused since --older-than",
	Long: `env:clean implements spec.md §4.10: remove env cache entries whose
last_used_at predates the cutoff. Globally installed fingerprints are
not excluded. Defaults to 30 days.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		age, err := parseOlderThan(envCleanOlderThan)
		if err != nil {
			return err
		}
		cutoff := timeNow().Add(-age)

		plan, err := cleanup.PlanEnvClean(cfg, act.Cache, cutoff, nil)
		if err != nil {
			printError(err)
			exitWithCode(exitCodeFor(err))
			return nil
		}
		if err := cleanup.ApplyEnvClean(act.Cache, plan); err != nil {
			printError(err)
			exitWithCode(exitCodeFor(err))
			return nil
		}
		printInfo("removed", len(plan.EnvDirs), "environment(s),", plan.FileCount, "file(s),", plan.TotalBytes, "byte(s)")
		return nil
	},
}

func init() {
	envCleanCmd.Flags().StringVar(&envCleanOlderThan, "older-than", "720h", "age cutoff (Go duration syntax, e.g. 720h for 30 days)")
}

func parseOlderThan(s string) (time.Duration, error) {
	return time.ParseDuration(s)
}

// timeNow is a seam so tests could override "now"; production always
// uses the real clock.
var timeNow = time.Now
