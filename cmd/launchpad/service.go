package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/launchpad-dev/launchpad/internal/errs"
	"github.com/launchpad-dev/launchpad/internal/fingerprint"
	"github.com/launchpad-dev/launchpad/internal/manifest"
	"github.com/launchpad-dev/launchpad/internal/service"
)

var serviceCmd = &cobra.Command{
	Use:   "service",
	Short: "Control the services declared by the current project's manifest",
}

func init() {
	serviceCmd.AddCommand(&cobra.Command{
		Use:   "start [name]",
		Short: "Start a declared service, or every autoStart service in dependency order",
		Long: `With a name, start exactly that service (spec.md §4.9's start
protocol for a single service already in topological position). With
no name, start every service the manifest marks autoStart, in
topological order (spec.md §4.9 step 1 / scenario 4: "one command
starts postgres then my-api in order").`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				inst, p, deps, err := resolveServiceInstance(args[0])
				if err != nil {
					printError(err)
					exitWithCode(exitCodeFor(err))
					return nil
				}
				if err := serviceStart(inst, p, deps); err != nil {
					printError(err)
					exitWithCode(exitCodeFor(err))
				}
				return nil
			}
			if err := startAutoStartServices(); err != nil {
				printError(err)
				exitWithCode(exitCodeFor(err))
			}
			return nil
		},
	})

	for _, sub := range []struct {
		use   string
		short string
		run   func(*service.Instance, service.Placeholders, []string) error
	}{
		{"stop <name>", "Stop a declared service", serviceStop},
		{"restart <name>", "Restart a declared service", serviceRestart},
		{"enable <name>", "Enable a declared service to start at login", serviceEnable},
		{"disable <name>", "Disable a declared service's autostart", serviceDisable},
	} {
		sub := sub
		serviceCmd.AddCommand(&cobra.Command{
			Use:   sub.use,
			Short: sub.short,
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				inst, p, deps, err := resolveServiceInstance(args[0])
				if err != nil {
					printError(err)
					exitWithCode(exitCodeFor(err))
					return nil
				}
				if err := sub.run(inst, p, deps); err != nil {
					printError(err)
					exitWithCode(exitCodeFor(err))
				}
				return nil
			},
		})
	}

	serviceCmd.AddCommand(&cobra.Command{
		Use:   "status <name>",
		Short: "Report a declared service's current state",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			inst, _, _, err := resolveServiceInstance(args[0])
			if err != nil {
				printError(err)
				exitWithCode(exitCodeFor(err))
				return nil
			}
			fmt.Println(svc.Status(globalCtx, inst))
			return nil
		},
	})
}

// startAutoStartServices starts every manifest service declared
// autoStart, in topological dependency order (spec.md §4.9 step 1),
// so a single invocation brings up e.g. postgres before my-api
// instead of requiring one `service start <name>` call per service.
func startAutoStartServices() error {
	wd, err := os.Getwd()
	if err != nil {
		return err
	}
	m, err := manifest.FindAndLoad(wd)
	if err != nil {
		return err
	}

	var defs []*service.Definition
	instances := make(map[string]*service.Instance)
	placeholders := make(map[string]service.Placeholders)
	dependsOn := make(map[string][]string)

	for i := range m.Services {
		decl := m.Services[i]
		if !decl.AutoStart {
			continue
		}
		inst, p, err := buildServiceInstance(m, &decl)
		if err != nil {
			return err
		}
		defs = append(defs, inst.Definition)
		instances[decl.Name] = inst
		placeholders[decl.Name] = p
		dependsOn[decl.Name] = decl.DependsOn
	}
	if len(defs) == 0 {
		return nil
	}

	ordered, err := service.TopologicalOrder(defs)
	if err != nil {
		return err
	}

	for _, def := range ordered {
		if err := svc.Start(globalCtx, instances[def.Name], placeholders[def.Name], dependsOn[def.Name]); err != nil {
			return err
		}
	}
	return nil
}

func serviceStart(i *service.Instance, p service.Placeholders, deps []string) error {
	return svc.Start(globalCtx, i, p, deps)
}
func serviceStop(i *service.Instance, p service.Placeholders, deps []string) error {
	return svc.Stop(globalCtx, i)
}
func serviceRestart(i *service.Instance, p service.Placeholders, deps []string) error {
	return svc.Restart(globalCtx, i, p, deps)
}
func serviceEnable(i *service.Instance, p service.Placeholders, deps []string) error {
	return svc.Enable(globalCtx, i, p, deps)
}
func serviceDisable(i *service.Instance, p service.Placeholders, deps []string) error {
	return svc.Disable(globalCtx, i, p, deps)
}

// resolveServiceInstance loads the current project's manifest, finds
// its declaration of name, expands it against the built-in catalog
// (spec.md §4.9: "from manifest or built-in catalog"), and builds the
// ServiceInstance plus its dependency name list ready for the Manager.
func resolveServiceInstance(name string) (*service.Instance, service.Placeholders, []string, error) {
	wd, err := os.Getwd()
	if err != nil {
		return nil, service.Placeholders{}, nil, err
	}
	m, err := manifest.FindAndLoad(wd)
	if err != nil {
		return nil, service.Placeholders{}, nil, err
	}
	decl := m.ServiceByName(name)
	if decl == nil {
		return nil, service.Placeholders{}, nil, errs.New(errs.KindUnknownService, "service.resolve", name, nil)
	}

	inst, p, err := buildServiceInstance(m, decl)
	if err != nil {
		return nil, service.Placeholders{}, nil, err
	}
	return inst, p, decl.DependsOn, nil
}

// buildServiceInstance expands a single manifest service declaration
// against the built-in catalog and materializes its project-scoped
// ServiceInstance, shared by resolveServiceInstance (one named service)
// and startAutoStartServices (every autoStart service at once).
func buildServiceInstance(m *manifest.Manifest, decl *manifest.Service) (*service.Instance, service.Placeholders, error) {
	def, ok := service.LookupBuiltin(decl.Name)
	if !ok {
		return nil, service.Placeholders{}, errs.New(errs.KindUnknownService, "service.resolve", decl.Name, nil)
	}
	def = cloneDefinitionWithOverrides(def, decl)

	projectHash, err := projectHashFor(m)
	if err != nil {
		return nil, service.Placeholders{}, err
	}

	scoped := service.ScopedName(projectHash, decl.Name)
	dataDir := filepath.Join(cfg.ServicesDir, scoped)
	logFile := filepath.Join(cfg.LogsDir, scoped+".log")
	pidFile := filepath.Join(cfg.ServicesDir, scoped+".pid")
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, service.Placeholders{}, err
	}

	inst := service.NewInstance(def, decl.Env, projectHash, dataDir, logFile, pidFile)
	p := inst.Placeholders(filepath.Base(filepath.Dir(m.Path)), service.DatabasePlaceholders{})
	return inst, p, nil
}

// cloneDefinitionWithOverrides applies the manifest declaration's port
// override onto a copy of the catalog definition, leaving the shared
// BuiltinCatalog entry untouched.
func cloneDefinitionWithOverrides(def *service.Definition, decl *manifest.Service) *service.Definition {
	clone := *def
	if decl.Port != 0 {
		clone.Port = decl.Port
	}
	clone.Dependencies = decl.DependsOn
	return &clone
}

func projectHashFor(m *manifest.Manifest) (string, error) {
	services := make([]fingerprint.ServiceRef, len(m.Services))
	for i, s := range m.Services {
		services[i] = fingerprint.ServiceRef{Name: s.Name, Port: s.Port}
	}
	fp, err := fingerprint.Compute(fingerprint.Input{
		Dependencies: m.Dependencies,
		Services:     services,
		Global:       m.Global,
		Platform:     currentPlatform(),
		Arch:         currentArch(),
	})
	if err != nil {
		return "", err
	}
	return fp[:12], nil
}
