package main

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/launchpad-dev/launchpad/internal/cleanup"
	"github.com/launchpad-dev/launchpad/internal/store"
)

var (
	cleanKeepGlobal []string
	cleanKeepCache  bool
	cleanDryRun     bool
)

var cleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Remove every store entry, environment, and cache not explicitly kept",
	Long: `clean implements spec.md §4.10: remove every package store entry,
environment directory, and materialized bin/ symlink, plus the cache
directory unless --keep-cache is given. No services are stopped: clean
passes no service names to the plan. --dry-run computes and reports the exact set
it would otherwise remove, via the same plan function real removal
uses, so the two can never diverge.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		installed, err := discoverStoreEntries(cfg.PkgsDir)
		if err != nil {
			return err
		}
		keep := make(map[string]bool, len(cleanKeepGlobal))
		for _, d := range cleanKeepGlobal {
			keep[d] = true
		}

		plan, err := cleanup.PlanClean(cfg, installed, nil, cleanup.CleanOptions{
			KeepGlobal: keep,
			KeepCache:  cleanKeepCache,
			DryRun:     cleanDryRun,
		})
		if err != nil {
			printError(err)
			exitWithCode(exitCodeFor(err))
			return nil
		}

		if cleanDryRun {
			printInfo("would remove", len(plan.StoreEntries), "store entr(ies),", len(plan.EnvDirs), "environment(s),", plan.FileCount, "file(s),", plan.TotalBytes, "byte(s)")
			return nil
		}

		st := store.New(cfg.PkgsDir)
		if err := cleanup.ApplyClean(cfg, st, plan, stopServiceByName); err != nil {
			printError(err)
			exitWithCode(exitCodeFor(err))
			return nil
		}
		printInfo("removed", len(plan.StoreEntries), "store entr(ies) and", len(plan.EnvDirs), "environment(s)")
		return nil
	},
}

func init() {
	cleanCmd.Flags().StringSliceVar(&cleanKeepGlobal, "keep-global", nil, "package domains to leave installed")
	cleanCmd.Flags().BoolVar(&cleanKeepCache, "keep-cache", false, "leave the registry/env caches untouched")
	cleanCmd.Flags().BoolVar(&cleanDryRun, "dry-run", false, "report what would be removed without removing it")
}

// discoverStoreEntries walks {pkgsDir}/{domain}/v{version} into the
// StoreEntryDir inventory cleanup.PlanClean consumes (spec.md never
// requires internal/store itself to enumerate all entries outside this
// use case).
func discoverStoreEntries(pkgsDir string) ([]cleanup.StoreEntryDir, error) {
	var out []cleanup.StoreEntryDir
	domains, err := os.ReadDir(pkgsDir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	for _, domain := range domains {
		if !domain.IsDir() {
			continue
		}
		domainDir := filepath.Join(pkgsDir, domain.Name())
		versions, err := os.ReadDir(domainDir)
		if err != nil {
			continue
		}
		for _, v := range versions {
			if !v.IsDir() || !strings.HasPrefix(v.Name(), "v") {
				continue
			}
			out = append(out, cleanup.StoreEntryDir{
				Domain:  domain.Name(),
				Version: strings.TrimPrefix(v.Name(), "v"),
				Dir:     filepath.Join(domainDir, v.Name()),
			})
		}
	}
	return out, nil
}

// stopServiceByName is wired into cleanup.ApplyClean so services get a
// graceful stop before their data directory is removed. Launchpad has
// no global service registry to resolve name back to an Instance from
// inside clean's scope, so this only stops services clean itself
// already knows about via plan.ServiceNames — currently always empty,
// since PlanClean here is never given service names (clean operates
// store/env-wide, not per-project). Kept as a named hook rather than
// nil so a future per-project clean variant can pass real names.
func stopServiceByName(name string) error {
	return nil
}
