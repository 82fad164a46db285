package service

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeRunner struct {
	calls       [][]string
	failNames   map[string]int // name -> remaining failures
}

func (f *fakeRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	f.calls = append(f.calls, append([]string{name}, args...))
	if f.failNames != nil {
		if n, ok := f.failNames[name]; ok && n > 0 {
			f.failNames[name]--
			return nil, os.ErrNotExist
		}
	}
	if name == "systemctl" {
		for _, a := range args {
			if a == "is-active" {
				return []byte("active\n"), nil
			}
		}
	}
	return []byte("ok"), nil
}

func testManager(t *testing.T, runner Runner) *Manager {
	t.Helper()
	return &Manager{
		Runner:  runner,
		UnitDir: t.TempDir(),
		GOOS:    "linux",
		Sleep:   func(time.Duration) {},
	}
}

func testInstance(t *testing.T, root string) *Instance {
	t.Helper()
	def := &Definition{
		Name:                     "redis",
		Executable:               "/bin/redis-server",
		SupportsGracefulShutdown: true,
	}
	dataDir := filepath.Join(root, "data")
	require.NoError(t, os.MkdirAll(dataDir, 0755))
	pidFile := filepath.Join(root, "redis.pid")
	require.NoError(t, os.WriteFile(pidFile, []byte("123"), 0644))
	return NewInstance(def, nil, "", dataDir, filepath.Join(root, "redis.log"), pidFile)
}

func TestStartWritesUnitAndLoadsIt(t *testing.T) {
	runner := &fakeRunner{}
	mgr := testManager(t, runner)
	root := t.TempDir()
	i := testInstance(t, root)
	p := i.Placeholders("proj", DatabasePlaceholders{})

	err := mgr.Start(context.Background(), i, p, nil)
	require.NoError(t, err)
	require.Equal(t, StateRunning, i.State)
	require.NotNil(t, i.StartedAt)

	_, err = os.Stat(mgr.unitPath(i))
	require.NoError(t, err)
}

func TestStartRunsInitCommandOnlyWhenDataDirEmpty(t *testing.T) {
	runner := &fakeRunner{}
	mgr := testManager(t, runner)
	root := t.TempDir()
	i := testInstance(t, root)
	i.Definition.InitCommand = []string{"/bin/redis-init"}
	p := i.Placeholders("proj", DatabasePlaceholders{})

	require.NoError(t, mgr.Start(context.Background(), i, p, nil))

	found := false
	for _, c := range runner.calls {
		if c[0] == "/bin/redis-init" {
			found = true
		}
	}
	require.True(t, found)
}

func TestStartSkipsInitCommandWhenDataDirNotEmpty(t *testing.T) {
	runner := &fakeRunner{}
	mgr := testManager(t, runner)
	root := t.TempDir()
	i := testInstance(t, root)
	require.NoError(t, os.WriteFile(filepath.Join(i.DataDir, "existing"), []byte("x"), 0644))
	i.Definition.InitCommand = []string{"/bin/redis-init"}
	p := i.Placeholders("proj", DatabasePlaceholders{})

	require.NoError(t, mgr.Start(context.Background(), i, p, nil))

	for _, c := range runner.calls {
		require.NotEqual(t, "/bin/redis-init", c[0])
	}
}

func TestStartFailsWhenHealthCheckNeverPasses(t *testing.T) {
	runner := &fakeRunner{failNames: map[string]int{"/bin/healthcheck": 99}}
	mgr := testManager(t, runner)
	root := t.TempDir()
	i := testInstance(t, root)
	i.Definition.HealthCheck = &HealthCheck{Command: []string{"/bin/healthcheck"}, Retries: 2, Interval: time.Millisecond}
	p := i.Placeholders("proj", DatabasePlaceholders{})

	err := mgr.Start(context.Background(), i, p, nil)
	require.Error(t, err)
	require.Equal(t, StateFailed, i.State)
}

func TestStopUsesGracefulThenForce(t *testing.T) {
	runner := &fakeRunner{}
	mgr := testManager(t, runner)
	root := t.TempDir()
	i := testInstance(t, root)

	err := mgr.Stop(context.Background(), i)
	require.NoError(t, err)
	require.Equal(t, StateStopped, i.State)

	var sawStop bool
	for _, c := range runner.calls {
		if len(c) >= 3 && c[0] == "systemctl" && c[2] == "stop" {
			sawStop = true
		}
	}
	require.True(t, sawStop)
}

func TestEnableDisableNeverStartOrStop(t *testing.T) {
	runner := &fakeRunner{}
	mgr := testManager(t, runner)
	root := t.TempDir()
	i := testInstance(t, root)
	p := i.Placeholders("proj", DatabasePlaceholders{})

	require.NoError(t, mgr.Enable(context.Background(), i, p, nil))
	require.True(t, i.Enabled)
	require.NoError(t, mgr.Disable(context.Background(), i, p, nil))
	require.False(t, i.Enabled)

	for _, c := range runner.calls {
		require.NotContains(t, c, "start")
		require.NotContains(t, c, "stop")
	}
}

func TestStatusReportsStoppedWithoutPidFile(t *testing.T) {
	runner := &fakeRunner{}
	mgr := testManager(t, runner)
	root := t.TempDir()
	i := testInstance(t, root)
	require.NoError(t, os.Remove(i.PidFile))

	require.Equal(t, StateStopped, mgr.Status(context.Background(), i))
}

func TestStatusReportsRunningWhenActive(t *testing.T) {
	runner := &fakeRunner{}
	mgr := testManager(t, runner)
	root := t.TempDir()
	i := testInstance(t, root)

	require.Equal(t, StateRunning, mgr.Status(context.Background(), i))
}
