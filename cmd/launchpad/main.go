package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/launchpad-dev/launchpad/internal/activator"
	"github.com/launchpad-dev/launchpad/internal/buildinfo"
	"github.com/launchpad-dev/launchpad/internal/config"
	"github.com/launchpad-dev/launchpad/internal/log"
	"github.com/launchpad-dev/launchpad/internal/platform"
	"github.com/launchpad-dev/launchpad/internal/registry"
	"github.com/launchpad-dev/launchpad/internal/service"
	"github.com/launchpad-dev/launchpad/internal/store"
)

var (
	quietFlag   bool
	verboseFlag bool
	debugFlag   bool
)

// globalCtx is canceled on SIGINT/SIGTERM; every blocking operation
// (registry fetch, health check poll, service stop) takes it.
var globalCtx context.Context
var globalCancel context.CancelFunc

// Shared collaborators, wired once in init() per the teacher's static
// init()-time wiring in cmd/tsuku/main.go.
var (
	cfg *config.Config
	act *activator.Activator
	svc *service.Manager
)

var rootCmd = &cobra.Command{
	Use:   "launchpad",
	Short: "Per-project package and service environment manager",
	Long: `launchpad installs a project's declared dependencies into an
isolated, content-addressed environment and activates that environment
automatically on cd, the way direnv or mise do, but with package
installation and service supervision built in rather than delegated to
a separate tool.`,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&quietFlag, "quiet", "q", false, "Show errors only")
	rootCmd.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", false, "Show verbose output (INFO level)")
	rootCmd.PersistentFlags().BoolVar(&debugFlag, "debug", false, "Show debug output")

	rootCmd.PersistentPreRun = initLogger
	rootCmd.Version = buildinfo.Version()

	var err error
	cfg, err = config.DefaultConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to resolve config: %v\n", err)
		exitWithCode(ExitGeneral)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		fmt.Fprintf(os.Stderr, "failed to create launchpad directories: %v\n", err)
		exitWithCode(ExitGeneral)
	}

	// No bundled catalog ships with the binary (authoring one is a
	// config/recipes surface spec.md never specifies) — the base
	// provider starts empty and callers populate package coordinates via
	// GitHubPackage entries in a future `launchpad registry add` surface.
	// It is still wrapped in the on-disk TTL cache so every lookup the
	// provider eventually serves is cached per spec.md §4.1.
	base := registry.NewGitHubReleaseRegistry(map[string]registry.GitHubPackage{}, nil)
	reg := registry.NewCachedRegistry(base, cfg.CacheDir+"/registry", config.GetCacheTTL())

	st := store.New(cfg.PkgsDir)

	t, err := platform.DetectTarget()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to detect platform target: %v\n", err)
		exitWithCode(ExitGeneral)
	}
	target = t
	act = activator.New(cfg, reg, st, target.OS(), target.Arch())

	unitDir := cfg.SystemdDir
	if target.OS() == "darwin" {
		unitDir = cfg.LaunchdDir
	}
	svc = service.NewManager(unitDir)

	rootCmd.AddCommand(lookupCmd)
	rootCmd.AddCommand(activateCmd)
	rootCmd.AddCommand(shellcodeCmd)
	rootCmd.AddCommand(installCmd)
	rootCmd.AddCommand(serviceCmd)
	rootCmd.AddCommand(cleanCmd)
	rootCmd.AddCommand(cacheClearCmd)
	rootCmd.AddCommand(envCleanCmd)
	rootCmd.AddCommand(configCmd)
}

func main() {
	globalCtx, globalCancel = context.WithCancel(context.Background())
	defer globalCancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		fmt.Fprintf(os.Stderr, "\nreceived %s, canceling...\n", sig)
		globalCancel()

		<-sigChan
		fmt.Fprintln(os.Stderr, "forced exit")
		exitWithCode(ExitCancelled)
	}()

	if err := rootCmd.Execute(); err != nil {
		if globalCtx.Err() == context.Canceled {
			exitWithCode(ExitCancelled)
		}
		fmt.Fprintln(os.Stderr, err)
		exitWithCode(ExitGeneral)
	}
}

func initLogger(cmd *cobra.Command, args []string) {
	level := determineLogLevel()
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	log.SetDefault(log.New(handler))
}

// determineLogLevel: flags take precedence over env vars, which take
// precedence over the WARN default.
func determineLogLevel() slog.Level {
	if debugFlag {
		return slog.LevelDebug
	}
	if verboseFlag {
		return slog.LevelInfo
	}
	if quietFlag {
		return slog.LevelError
	}
	if config.IsTruthy(os.Getenv(config.EnvDebug)) {
		return slog.LevelDebug
	}
	return slog.LevelWarn
}
