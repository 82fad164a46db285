package service

import (
	"fmt"
	"sort"
	"strings"

	"github.com/coreos/go-systemd/v22/unit"
	"howett.net/plist"
)

// LinuxUnitName is the systemd user-unit file name for a service
// scoped by projectHash (spec.md §4.9: "launchpad-{hash}-{name}.service",
// or "launchpad-{name}.service" outside a project context).
func LinuxUnitName(projectHash, name string) string {
	return "launchpad-" + ScopedName(projectHash, name) + ".service"
}

// DarwinLabel is the launchd service label for a service scoped by
// projectHash (spec.md §4.9: "com.launchpad.{hash}.{name}", or
// "com.launchpad.{name}" outside a project context).
func DarwinLabel(projectHash, name string) string {
	if projectHash == "" {
		return "com.launchpad." + name
	}
	return fmt.Sprintf("com.launchpad.%s.%s", projectHash, name)
}

// GenerateSystemdUnit renders the INI-format systemd user unit for i
// (spec.md §4.9), using the teacher's go.mod dependency
// coreos/go-systemd/v22/unit for option serialization rather than
// hand-formatting the INI text.
func GenerateSystemdUnit(i *Instance, p Placeholders, allDeps []string) (string, error) {
	def := i.Definition

	var opts []*unit.UnitOption

	after := append([]string{"network.target"}, depUnitNames(i.ProjectHash, allDeps)...)
	opts = append(opts, unit.NewUnitOption("Unit", "Description", descriptionFor(def)))
	opts = append(opts, unit.NewUnitOption("Unit", "After", strings.Join(after, " ")))
	if len(allDeps) > 0 {
		opts = append(opts, unit.NewUnitOption("Unit", "Wants", strings.Join(depUnitNames(i.ProjectHash, allDeps), " ")))
	}

	execStart := buildCommandLine(Expand(def.Executable, p), i.ExpandedArgs(p))
	opts = append(opts, unit.NewUnitOption("Service", "Type", "simple"))
	opts = append(opts, unit.NewUnitOption("Service", "ExecStart", execStart))
	opts = append(opts, unit.NewUnitOption("Service", "WorkingDirectory", i.DataDir))

	env := i.ExpandedEnv(p)
	for _, k := range sortedKeys(env) {
		opts = append(opts, unit.NewUnitOption("Service", "Environment", fmt.Sprintf("%s=%s", k, env[k])))
	}
	if def.User != "" {
		opts = append(opts, unit.NewUnitOption("Service", "User", def.User))
	}

	restart := "no"
	if def.AutoRestart {
		restart = "on-failure"
	}
	opts = append(opts, unit.NewUnitOption("Service", "Restart", restart))
	opts = append(opts, unit.NewUnitOption("Service", "RestartSec", "5"))

	if def.StartupTimeout > 0 {
		opts = append(opts, unit.NewUnitOption("Service", "TimeoutStartSec", fmt.Sprintf("%d", int(def.StartupTimeout.Seconds()))))
	}
	if def.ShutdownTimeout > 0 {
		opts = append(opts, unit.NewUnitOption("Service", "TimeoutStopSec", fmt.Sprintf("%d", int(def.ShutdownTimeout.Seconds()))))
	}
	if i.PidFile != "" {
		opts = append(opts, unit.NewUnitOption("Service", "PIDFile", i.PidFile))
	}

	opts = append(opts, unit.NewUnitOption("Install", "WantedBy", "multi-user.target"))

	reader := unit.Serialize(opts)
	var b strings.Builder
	buf := make([]byte, 4096)
	for {
		n, err := reader.Read(buf)
		if n > 0 {
			b.Write(buf[:n])
		}
		if err != nil {
			break
		}
	}
	return b.String(), nil
}

func depUnitNames(projectHash string, deps []string) []string {
	out := make([]string, len(deps))
	for i, d := range deps {
		out[i] = LinuxUnitName(projectHash, d)
	}
	return out
}

func descriptionFor(def *Definition) string {
	if def.DisplayName != "" {
		return def.DisplayName
	}
	return def.Name
}

func buildCommandLine(exe string, args []string) string {
	parts := append([]string{exe}, args...)
	quoted := make([]string, len(parts))
	for i, p := range parts {
		quoted[i] = fmt.Sprintf("%q", p)
	}
	return strings.Join(quoted, " ")
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// launchdPlist mirrors the XML keys spec.md §4.9 requires for macOS.
type launchdPlist struct {
	Label                string            `plist:"Label"`
	ProgramArguments     []string          `plist:"ProgramArguments"`
	WorkingDirectory     string            `plist:"WorkingDirectory"`
	EnvironmentVariables map[string]string `plist:"EnvironmentVariables,omitempty"`
	StandardOutPath      string            `plist:"StandardOutPath"`
	StandardErrorPath    string            `plist:"StandardErrorPath"`
	RunAtLoad            bool              `plist:"RunAtLoad"`
	KeepAlive            launchdKeepAlive  `plist:"KeepAlive"`
	UserName             string            `plist:"UserName,omitempty"`
}

type launchdKeepAlive struct {
	SuccessfulExit bool `plist:"SuccessfulExit"`
	NetworkState   bool `plist:"NetworkState,omitempty"`
}

// GenerateLaunchdPlist renders the XML property list for i (spec.md
// §4.9), using the teacher's go.mod dependency howett.net/plist for
// encoding rather than hand-formatting XML.
func GenerateLaunchdPlist(i *Instance, p Placeholders, enabled bool) ([]byte, error) {
	def := i.Definition
	label := DarwinLabel(i.ProjectHash, def.Name)

	doc := launchdPlist{
		Label:                label,
		ProgramArguments:     append([]string{Expand(def.Executable, p)}, i.ExpandedArgs(p)...),
		WorkingDirectory:     i.DataDir,
		EnvironmentVariables: i.ExpandedEnv(p),
		StandardOutPath:      i.LogFile,
		StandardErrorPath:    i.LogFile,
		RunAtLoad:            enabled,
		KeepAlive:            launchdKeepAlive{SuccessfulExit: false, NetworkState: def.Port != 0},
		UserName:             def.User,
	}

	return plist.Marshal(doc, plist.XMLFormat)
}
