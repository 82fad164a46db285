package service

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"time"

	"github.com/launchpad-dev/launchpad/internal/errs"
	"github.com/launchpad-dev/launchpad/internal/lockfile"
)

// Runner abstracts external command execution so lifecycle logic is
// testable without spawning systemctl/launchctl. Grounded on the
// CommandRunner abstraction in the servicehelper reference material.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// ExecRunner is the production Runner, backed by os/exec.
type ExecRunner struct{}

func (ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	return cmd.CombinedOutput()
}

// Manager drives the lifecycle of ServiceInstances against the host's
// service manager (systemctl --user on Linux, launchctl on macOS).
// UnitDir holds generated unit files (systemd units or launchd
// plists); GOOS selects dispatch and defaults to runtime.GOOS.
type Manager struct {
	Runner  Runner
	UnitDir string
	GOOS    string
	Sleep   func(time.Duration)
}

// NewManager constructs a production Manager.
func NewManager(unitDir string) *Manager {
	return &Manager{Runner: ExecRunner{}, UnitDir: unitDir, GOOS: runtime.GOOS, Sleep: time.Sleep}
}

func (m *Manager) goos() string {
	if m.GOOS != "" {
		return m.GOOS
	}
	return runtime.GOOS
}

func (m *Manager) sleep(d time.Duration) {
	if m.Sleep != nil {
		m.Sleep(d)
		return
	}
	time.Sleep(d)
}

// unitPath returns the path a generated unit/plist is written to.
func (m *Manager) unitPath(i *Instance) string {
	if m.goos() == "darwin" {
		return filepath.Join(m.UnitDir, DarwinLabel(i.ProjectHash, i.Definition.Name)+".plist")
	}
	return filepath.Join(m.UnitDir, LinuxUnitName(i.ProjectHash, i.Definition.Name))
}

// writeUnit (re)writes i's unit descriptor, serialized per unit path
// via exclusive file lock (spec.md §5's "Service unit files: edits are
// serialized per service name by exclusive ownership of the unit file
// path").
func (m *Manager) writeUnit(i *Instance, p Placeholders, deps []string, enabled bool) (string, error) {
	path := m.unitPath(i)

	lock := lockfile.NewFileLock(path + ".lock")
	if err := lock.LockExclusive(); err != nil {
		return "", errs.New(errs.KindIoError, "service.writeUnit", path, err)
	}
	defer lock.Unlock()

	if err := os.MkdirAll(m.UnitDir, 0755); err != nil {
		return "", errs.New(errs.KindIoError, "service.writeUnit", m.UnitDir, err)
	}

	var content []byte
	if m.goos() == "darwin" {
		data, err := GenerateLaunchdPlist(i, p, enabled)
		if err != nil {
			return "", errs.New(errs.KindIoError, "service.writeUnit", path, err)
		}
		content = data
	} else {
		text, err := GenerateSystemdUnit(i, p, deps)
		if err != nil {
			return "", errs.New(errs.KindIoError, "service.writeUnit", path, err)
		}
		content = []byte(text)
	}

	tmp, err := os.CreateTemp(m.UnitDir, ".unit-*.tmp")
	if err != nil {
		return "", errs.New(errs.KindIoError, "service.writeUnit", path, err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(content); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return "", errs.New(errs.KindIoError, "service.writeUnit", path, err)
	}
	tmp.Close()
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return "", errs.New(errs.KindIoError, "service.writeUnit", path, err)
	}
	return path, nil
}

// Start implements spec.md §4.9's start protocol for a single service
// already in topological position: run init_command if the data dir
// is empty, (re)write the unit file, load+start it, wait for the
// health check, then run post_start_commands sequentially.
func (m *Manager) Start(ctx context.Context, i *Instance, p Placeholders, deps []string) error {
	def := i.Definition
	i.State = StateStarting

	if len(def.InitCommand) > 0 {
		if empty, err := dirEmpty(i.DataDir); err == nil && empty {
			if err := os.MkdirAll(i.DataDir, 0755); err != nil {
				i.State = StateFailed
				return errs.New(errs.KindIoError, "service.Start", i.DataDir, err)
			}
			if _, err := m.Runner.Run(ctx, def.InitCommand[0], def.InitCommand[1:]...); err != nil {
				i.State = StateFailed
				return errs.New(errs.KindMissingDependency, "service.Start", def.Name, err)
			}
		}
	}

	if _, err := m.writeUnit(i, p, deps, i.Enabled); err != nil {
		i.State = StateFailed
		return err
	}

	if err := m.loadAndStart(ctx, i); err != nil {
		i.State = StateFailed
		return err
	}

	if def.HealthCheck != nil {
		if err := m.waitHealthy(ctx, def.HealthCheck); err != nil {
			i.State = StateFailed
			return err
		}
	}

	for _, cmd := range def.PostStartCommands {
		if err := m.runWithRetry(ctx, cmd, def.PostStartMaxRetries); err != nil {
			i.State = StateFailed
			return errs.New(errs.KindMissingDependency, "service.Start", def.Name, err)
		}
	}

	now := time.Now()
	i.State = StateRunning
	i.StartedAt = &now
	return nil
}

func (m *Manager) loadAndStart(ctx context.Context, i *Instance) error {
	if m.goos() == "darwin" {
		label := DarwinLabel(i.ProjectHash, i.Definition.Name)
		plistPath := m.unitPath(i)
		if _, err := m.Runner.Run(ctx, "launchctl", "print", "system/"+label); err != nil {
			if _, err := m.Runner.Run(ctx, "launchctl", "bootstrap", "system", plistPath); err != nil {
				return errs.New(errs.KindServiceNotRunning, "service.loadAndStart", label, err)
			}
		}
		if _, err := m.Runner.Run(ctx, "launchctl", "kickstart", "-k", "system/"+label); err != nil {
			return errs.New(errs.KindServiceNotRunning, "service.loadAndStart", label, err)
		}
		return nil
	}

	unitName := LinuxUnitName(i.ProjectHash, i.Definition.Name)
	if _, err := m.Runner.Run(ctx, "systemctl", "--user", "daemon-reload"); err != nil {
		return errs.New(errs.KindServiceNotRunning, "service.loadAndStart", unitName, err)
	}
	if _, err := m.Runner.Run(ctx, "systemctl", "--user", "start", unitName); err != nil {
		return errs.New(errs.KindServiceNotRunning, "service.loadAndStart", unitName, err)
	}
	return nil
}

// Stop implements spec.md §4.9's stop protocol: graceful signal (if
// supported) with a bounded wait, then force-stop.
func (m *Manager) Stop(ctx context.Context, i *Instance) error {
	i.State = StateStopping
	def := i.Definition

	if m.goos() == "darwin" {
		label := DarwinLabel(i.ProjectHash, def.Name)
		if _, err := m.Runner.Run(ctx, "launchctl", "bootout", "system", label); err != nil {
			i.State = StateFailed
			return errs.New(errs.KindServiceNotRunning, "service.Stop", label, err)
		}
		i.State = StateStopped
		return nil
	}

	unitName := LinuxUnitName(i.ProjectHash, def.Name)
	if def.SupportsGracefulShutdown {
		timeout := def.ShutdownTimeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		stopCtx, cancel := context.WithTimeout(ctx, timeout)
		_, _ = m.Runner.Run(stopCtx, "systemctl", "--user", "stop", unitName)
		cancel()
	}

	if _, err := m.Runner.Run(ctx, "systemctl", "--user", "kill", unitName); err != nil {
		// Best effort: the unit may already be stopped.
		_ = err
	}
	if _, err := m.Runner.Run(ctx, "systemctl", "--user", "stop", unitName); err != nil {
		i.State = StateFailed
		return errs.New(errs.KindServiceNotRunning, "service.Stop", unitName, err)
	}

	i.State = StateStopped
	return nil
}

// Restart stops then starts i.
func (m *Manager) Restart(ctx context.Context, i *Instance, p Placeholders, deps []string) error {
	if err := m.Stop(ctx, i); err != nil {
		return err
	}
	return m.Start(ctx, i, p, deps)
}

// Enable/Disable only flip the RunAtLoad/WantedBy field and rewrite
// the unit (spec.md §4.9): they never start or stop the service.
func (m *Manager) Enable(ctx context.Context, i *Instance, p Placeholders, deps []string) error {
	i.Enabled = true
	_, err := m.writeUnit(i, p, deps, true)
	if err != nil {
		return err
	}
	if m.goos() != "darwin" {
		_, err = m.Runner.Run(ctx, "systemctl", "--user", "enable", LinuxUnitName(i.ProjectHash, i.Definition.Name))
	}
	return err
}

func (m *Manager) Disable(ctx context.Context, i *Instance, p Placeholders, deps []string) error {
	i.Enabled = false
	_, err := m.writeUnit(i, p, deps, false)
	if err != nil {
		return err
	}
	if m.goos() != "darwin" {
		_, err = m.Runner.Run(ctx, "systemctl", "--user", "disable", LinuxUnitName(i.ProjectHash, i.Definition.Name))
	}
	return err
}

// Status queries the OS service manager and cross-references the pid
// file, returning one of the states of spec.md §3.
func (m *Manager) Status(ctx context.Context, i *Instance) State {
	if _, err := os.Stat(i.PidFile); err != nil {
		return StateStopped
	}

	if m.goos() == "darwin" {
		label := DarwinLabel(i.ProjectHash, i.Definition.Name)
		out, err := m.Runner.Run(ctx, "launchctl", "print", "system/"+label)
		if err != nil {
			return StateUnknown
		}
		if bytes.Contains(out, []byte("state = running")) {
			return StateRunning
		}
		return StateStopped
	}

	unitName := LinuxUnitName(i.ProjectHash, i.Definition.Name)
	out, err := m.Runner.Run(ctx, "systemctl", "--user", "is-active", unitName)
	if err != nil {
		return StateStopped
	}
	switch string(bytes.TrimSpace(out)) {
	case "active":
		return StateRunning
	case "activating":
		return StateStarting
	case "deactivating":
		return StateStopping
	case "failed":
		return StateFailed
	default:
		return StateUnknown
	}
}

func (m *Manager) waitHealthy(ctx context.Context, hc *HealthCheck) error {
	retries := hc.Retries
	if retries <= 0 {
		retries = 1
	}
	var lastErr error
	for attempt := 0; attempt < retries; attempt++ {
		if attempt > 0 {
			m.sleep(hc.Interval)
		}
		probeCtx := ctx
		cancel := func() {}
		if hc.Timeout > 0 {
			probeCtx, cancel = context.WithTimeout(ctx, hc.Timeout)
		}
		_, err := m.Runner.Run(probeCtx, hc.Command[0], hc.Command[1:]...)
		cancel()
		if err == nil {
			return nil
		}
		lastErr = err
	}
	return fmt.Errorf("health check failed after %d attempts: %w", retries, lastErr)
}

func (m *Manager) runWithRetry(ctx context.Context, cmd []string, maxRetries int) error {
	if maxRetries <= 0 {
		maxRetries = 3
	}
	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		if attempt > 0 {
			m.sleep(time.Second)
		}
		if _, err := m.Runner.Run(ctx, cmd[0], cmd[1:]...); err != nil {
			lastErr = err
			continue
		}
		return nil
	}
	return lastErr
}

func dirEmpty(dir string) (bool, error) {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return true, nil
	}
	if err != nil {
		return false, err
	}
	return len(entries) == 0, nil
}
