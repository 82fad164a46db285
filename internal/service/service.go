// Package service implements the Service Supervisor (spec.md §4.9): it
// expands a ServiceDefinition's placeholders into a concrete
// ServiceInstance, generates the platform unit descriptor (a systemd
// user unit on Linux, a launchd plist on macOS), and drives the
// lifecycle (start/stop/restart/enable/disable/status) through the OS
// service manager.
//
// Grounded on the other_examples/ servicehelper.go reference for the
// overall shape (a CommandRunner abstraction decoupling lifecycle
// verbs from os/exec, platform dispatch by runtime.GOOS, the
// daemon-reload→enable→start sequencing on Linux and the
// bootstrap/bootout-retry idiom on macOS) — rewritten in the teacher's
// terser comment register rather than that file's own, and restructured
// around Launchpad's ServiceDefinition/ServiceInstance types and
// per-project isolation instead of a single fixed binary name.
package service

import (
	"fmt"
	"strings"
	"time"

	"github.com/launchpad-dev/launchpad/internal/errs"
)

// State is one of the ServiceInstance states of spec.md §3.
type State string

const (
	StateStopped  State = "stopped"
	StateStarting State = "starting"
	StateRunning  State = "running"
	StateStopping State = "stopping"
	StateFailed   State = "failed"
	StateUnknown  State = "unknown"
)

// HealthCheck gates a service's start protocol (spec.md §4.9 step 2).
type HealthCheck struct {
	Command  []string
	Retries  int
	Interval time.Duration
	Timeout  time.Duration
}

// Definition is the ServiceDefinition record of spec.md §3: a
// static-or-user-supplied service description. Args and Env values may
// contain the placeholders expanded by Expand.
type Definition struct {
	Name          string
	DisplayName   string
	PackageDomain string
	Executable    string
	Args          []string
	Env           map[string]string

	DataDirectory string
	ConfigFile    string
	LogFile       string
	PidFile       string
	Port          int

	Dependencies []string

	HealthCheck        *HealthCheck
	InitCommand        []string
	PostStartCommands  [][]string
	PostStartMaxRetries int

	SupportsGracefulShutdown bool
	AutoRestart              bool
	StartupTimeout           time.Duration
	ShutdownTimeout          time.Duration

	User   string
	Config map[string]string
}

// Instance is the ServiceInstance record of spec.md §3: a Definition
// expanded against a concrete activation context.
type Instance struct {
	Definition      *Definition
	ConfigOverrides map[string]string

	DataDir string
	LogFile string
	PidFile string

	State     State
	Enabled   bool
	PID       int
	StartedAt *time.Time

	// ProjectHash is the fingerprint's leading bytes when this instance
	// was started inside a project activation context; empty for
	// services started outside one (spec.md §4.9's per-project
	// isolation rule).
	ProjectHash string
}

// ScopedName is the project-scoped identity used to build data
// directories, log files, pid files, and (combined with a
// platform-specific separator) the OS unit identity.
func ScopedName(projectHash, name string) string {
	if projectHash == "" {
		return name
	}
	return projectHash + "-" + name
}

// Placeholders holds every substitution spec.md §4.9 lists, plus
// entries of the definition's own Config map.
type Placeholders struct {
	DataDir         string
	ConfigFile      string
	LogFile         string
	PidFile         string
	Port            int
	ProjectDatabase string
	DBUsername      string
	DBPassword      string
	MasterKey       string
	AuthMethod      string
	ProjectName     string
	Config          map[string]string
}

func (p Placeholders) asMap() map[string]string {
	m := map[string]string{
		"dataDir":         p.DataDir,
		"configFile":      p.ConfigFile,
		"logFile":         p.LogFile,
		"pidFile":         p.PidFile,
		"port":            fmt.Sprintf("%d", p.Port),
		"projectDatabase": p.ProjectDatabase,
		"dbUsername":      p.DBUsername,
		"dbPassword":      p.DBPassword,
		"masterKey":       p.MasterKey,
		"authMethod":      p.AuthMethod,
		"projectName":     p.ProjectName,
	}
	for k, v := range p.Config {
		m[k] = v
	}
	return m
}

// Expand substitutes every `{placeholder}` occurrence in s (spec.md
// §4.9). Unknown placeholders are left untouched.
func Expand(s string, p Placeholders) string {
	m := p.asMap()
	var b strings.Builder
	for i := 0; i < len(s); {
		if s[i] == '{' {
			if end := strings.IndexByte(s[i:], '}'); end != -1 {
				key := s[i+1 : i+end]
				if val, ok := m[key]; ok {
					b.WriteString(val)
					i += end + 1
					continue
				}
			}
		}
		b.WriteByte(s[i])
		i++
	}
	return b.String()
}

// NewInstance binds def to its isolation context (config overrides,
// project hash, and paths), producing the ServiceInstance ready for
// unit generation and lifecycle control. Placeholders are expanded
// later, by ExpandedArgs and ExpandedEnv.
func NewInstance(def *Definition, overrides map[string]string, projectHash, dataDir, logFile, pidFile string) *Instance {
	return &Instance{
		Definition:      def,
		ConfigOverrides: overrides,
		DataDir:         dataDir,
		LogFile:         logFile,
		PidFile:         pidFile,
		State:           StateStopped,
		ProjectHash:     projectHash,
	}
}

// ExpandedArgs returns def.Args with every placeholder substituted.
func (i *Instance) ExpandedArgs(p Placeholders) []string {
	out := make([]string, len(i.Definition.Args))
	for idx, a := range i.Definition.Args {
		out[idx] = Expand(a, p)
	}
	return out
}

// ExpandedEnv returns def.Env with every placeholder substituted in
// values (keys are never expanded).
func (i *Instance) ExpandedEnv(p Placeholders) map[string]string {
	out := make(map[string]string, len(i.Definition.Env))
	for k, v := range i.Definition.Env {
		out[k] = Expand(v, p)
	}
	for k, v := range i.ConfigOverrides {
		out[k] = v
	}
	return out
}

// Placeholders builds the substitution set for i from its own expanded
// paths and the Definition's Config map, merged with db for
// the database-related placeholders services.database.* config
// supplies (spec.md §6).
func (i *Instance) Placeholders(projectName string, db DatabasePlaceholders) Placeholders {
	return Placeholders{
		DataDir:         i.DataDir,
		ConfigFile:      Expand(i.Definition.ConfigFile, Placeholders{DataDir: i.DataDir}),
		LogFile:         i.LogFile,
		PidFile:         i.PidFile,
		Port:            i.Definition.Port,
		ProjectDatabase: db.ProjectDatabase,
		DBUsername:      db.Username,
		DBPassword:      db.Password,
		MasterKey:       db.MasterKey,
		AuthMethod:      db.AuthMethod,
		ProjectName:     projectName,
		Config:          i.Definition.Config,
	}
}

// DatabasePlaceholders carries the services.database.* configuration
// values (spec.md §6) that feed the {projectDatabase}/{dbUsername}/
// {dbPassword}/{masterKey}/{authMethod} placeholders.
type DatabasePlaceholders struct {
	ProjectDatabase string
	Username        string
	Password        string
	MasterKey       string
	AuthMethod      string
}

// TopologicalOrder sorts defs by Dependencies for the start protocol
// (spec.md §4.9 step 1), detecting cycles via DFS back-edges. The stop
// protocol reverses the returned slice.
func TopologicalOrder(defs []*Definition) ([]*Definition, error) {
	byName := make(map[string]*Definition, len(defs))
	for _, d := range defs {
		byName[d.Name] = d
	}

	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make(map[string]int, len(defs))
	var order []*Definition

	var visit func(name string) error
	visit = func(name string) error {
		d, ok := byName[name]
		if !ok {
			return nil // dependency outside this service set (e.g. a package, not a service)
		}
		switch color[name] {
		case black:
			return nil
		case gray:
			return errs.New(errs.KindCyclicDependency, "service.TopologicalOrder", name, nil)
		}
		color[name] = gray
		for _, dep := range d.Dependencies {
			if err := visit(dep); err != nil {
				return err
			}
		}
		color[name] = black
		order = append(order, d)
		return nil
	}

	for _, d := range defs {
		if err := visit(d.Name); err != nil {
			return nil, err
		}
	}
	return order, nil
}

// ReverseOrder returns a new slice with defs in reverse order, for the
// stop protocol (spec.md §4.9).
func ReverseOrder(defs []*Definition) []*Definition {
	out := make([]*Definition, len(defs))
	for i, d := range defs {
		out[len(defs)-1-i] = d
	}
	return out
}
