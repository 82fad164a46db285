package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/launchpad-dev/launchpad/internal/config"
	"github.com/launchpad-dev/launchpad/internal/installengine"
	"github.com/launchpad-dev/launchpad/internal/manifest"
	"github.com/launchpad-dev/launchpad/internal/platform"
	"github.com/launchpad-dev/launchpad/internal/progress"
	"github.com/launchpad-dev/launchpad/internal/resolver"
	"github.com/launchpad-dev/launchpad/internal/store"
)

var installDependenciesOnly bool

var installCmd = &cobra.Command{
	Use:   "install",
	Short: "Resolve and install the current project's manifest into an environment",
	Long: `install runs the Install Engine directly (spec.md §4.5) against the
manifest found walking up from the current directory, without going
through the activation cache — useful for CI or for pre-warming an
environment before the shell hook first fires.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		wd, err := os.Getwd()
		if err != nil {
			return err
		}
		m, err := manifest.FindAndLoad(wd)
		if err != nil {
			printError(err)
			exitWithCode(ExitGeneral)
			return nil
		}

		reg := act.Engine.Registry
		st := store.New(cfg.PkgsDir)
		engine := installengine.New(cfg, reg, st)

		opts := installengine.Options{
			Platform: currentPlatform(),
			Arch:     currentArch(),
			ResolverOptions: resolver.Options{
				InstallBuildDeps: config.BuildDepsEnabled(),
				SystemLookup:     platform.SystemLookup,
			},
		}
		if installDependenciesOnly {
			opts.ExposedDomains = map[string]bool{}
		}

		spinner := progress.NewSpinner(os.Stderr)
		spinner.Start("launchpad: resolving and installing dependencies")
		result, err := engine.Run(globalCtx, m, opts)
		if err != nil {
			spinner.Stop()
			printError(err)
			exitWithCode(exitCodeFor(err))
			return nil
		}
		spinner.StopWithMessage("launchpad: install complete")

		printInfo("installed", len(result.Resolution.Packages), "package(s) into", result.EnvDir)
		return nil
	},
}

func init() {
	installCmd.Flags().BoolVar(&installDependenciesOnly, "dependencies-only", false, "resolve and fetch dependencies without materializing bin/ entries")
}
