package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"handv-deploy/internal/config"
	derrors "handv-deploy/internal/errors"
	"handv-deploy/internal/models"
	"handv-deploy/internal/registry"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestStartFromUnknown(t *testing.T) {
	f := newSupervisorFixture(SupervisorOptions{})

	st, err := f.sup.Start(context.Background(), config.BackendService)
	require.NoError(t, err)
	assert.Equal(t, models.StateRunning, st.State)
	assert.Equal(t, 1001, st.Pid)
	assert.Equal(t, "/srv/app/server.log", st.LogFile)

	pid, found, err := f.store.Load(config.BackendService)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, 1001, pid)

	require.Len(t, f.launcher.specs, 1)
	spec := f.launcher.specs[0]
	assert.Equal(t, "node", spec.Command)
	assert.Equal(t, []string{"server/index.cjs"}, spec.Args)
	assert.Equal(t, map[string]string{"PORT": "6666"}, spec.Env)
	assert.Equal(t, "/srv/app", spec.Dir)
	assert.Equal(t, "/srv/app/server.log", spec.LogFile)

	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.lifecycleOps.WithLabelValues("backend", "start", ResultSuccess)))
}

func TestStartWhenRunningDoesNotRelaunch(t *testing.T) {
	f := newSupervisorFixture(SupervisorOptions{})
	require.NoError(t, f.store.Save(config.BackendService, 42))
	f.ctrl.setAlive(42, true)

	st, err := f.sup.Start(context.Background(), config.BackendService)
	require.NoError(t, err)
	assert.Equal(t, models.StateRunning, st.State)
	assert.Equal(t, 42, st.Pid)
	assert.Empty(t, f.launcher.specs)

	pid, _, _ := f.store.Load(config.BackendService)
	assert.Equal(t, 42, pid)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.lifecycleOps.WithLabelValues("backend", "start", ResultNoop)))
}

func TestStartReplacesStaleRecord(t *testing.T) {
	f := newSupervisorFixture(SupervisorOptions{})
	require.NoError(t, f.store.Save(config.BackendService, 42))

	before, err := f.sup.Status(config.BackendService)
	require.NoError(t, err)
	assert.Equal(t, models.StateStale, before.State)

	st, err := f.sup.Start(context.Background(), config.BackendService)
	require.NoError(t, err)
	assert.Equal(t, models.StateRunning, st.State)
	assert.NotEqual(t, 42, st.Pid)

	pid, _, _ := f.store.Load(config.BackendService)
	assert.Equal(t, st.Pid, pid)
}

func TestInvalidRecordIsStale(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/srv/app/server.pid", []byte("not-a-pid"), 0o644))
	cfg := config.Default("/srv/app")
	ctrl := newFakeController()
	launcher := &fakeLauncher{ctrl: ctrl}
	store := registry.NewFileStore(fs, PidFiles(cfg))
	sup := NewSupervisor(cfg, registry.New(store, ctrl), launcher, ctrl, nil, SupervisorOptions{})

	st, err := sup.Status(config.BackendService)
	require.NoError(t, err)
	assert.Equal(t, models.StateStale, st.State)
	assert.Equal(t, 0, st.Pid)

	st, err = sup.Start(context.Background(), config.BackendService)
	require.NoError(t, err)
	assert.Equal(t, models.StateRunning, st.State)
	data, err := afero.ReadFile(fs, "/srv/app/server.pid")
	require.NoError(t, err)
	assert.Equal(t, "1001\n", string(data))
}

func TestStartWarnsWhenProcessExitsEarly(t *testing.T) {
	logs := observeLogs(t)
	f := newSupervisorFixture(SupervisorOptions{StartupDelay: time.Millisecond})
	f.launcher.exitOnStart = true

	st, err := f.sup.Start(context.Background(), config.BackendService)
	require.NoError(t, err)
	assert.Equal(t, models.StateStale, st.State)
	assert.Equal(t, 1, logs.FilterMessageSnippet("exited shortly after start").FilterLevelExact(zapcore.WarnLevel).Len())
}

func TestStartLaunchFailure(t *testing.T) {
	f := newSupervisorFixture(SupervisorOptions{})
	f.launcher.err = errors.New("exec: \"node\": executable file not found in $PATH")

	_, err := f.sup.Start(context.Background(), config.BackendService)
	assert.True(t, derrors.IsExecution(err))
	_, found, _ := f.store.Load(config.BackendService)
	assert.False(t, found)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.lifecycleOps.WithLabelValues("backend", "start", ResultFailure)))
}

func TestConcurrentStartLaunchesOnce(t *testing.T) {
	f := newSupervisorFixture(SupervisorOptions{})
	f.launcher.delay = 50 * time.Millisecond

	var wg sync.WaitGroup
	pids := make([]int, 4)
	for i := range pids {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			st, err := f.sup.Start(context.Background(), config.BackendService)
			assert.NoError(t, err)
			pids[i] = st.Pid
		}(i)
	}
	wg.Wait()

	assert.Equal(t, []string{config.BackendService}, f.launcher.names())
	for _, pid := range pids {
		assert.Equal(t, 1001, pid)
	}
	pid, found, err := f.store.Load(config.BackendService)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, 1001, pid)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.lifecycleOps.WithLabelValues("backend", "start", ResultSuccess)))
	assert.Equal(t, 3.0, testutil.ToFloat64(f.metrics.lifecycleOps.WithLabelValues("backend", "start", ResultNoop)))
}

func TestStopUnknownIsNoop(t *testing.T) {
	f := newSupervisorFixture(SupervisorOptions{})

	require.NoError(t, f.sup.Stop(context.Background(), config.BackendService))
	assert.Empty(t, f.ctrl.terminated)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.lifecycleOps.WithLabelValues("backend", "stop", ResultNoop)))
}

func TestStopRunning(t *testing.T) {
	f := newSupervisorFixture(SupervisorOptions{StopTimeout: time.Second})
	require.NoError(t, f.store.Save(config.BackendService, 42))
	f.ctrl.setAlive(42, true)

	require.NoError(t, f.sup.Stop(context.Background(), config.BackendService))
	assert.Equal(t, []int{42}, f.ctrl.terminated)
	assert.Empty(t, f.ctrl.killed)
	_, found, _ := f.store.Load(config.BackendService)
	assert.False(t, found)

	st, err := f.sup.Status(config.BackendService)
	require.NoError(t, err)
	assert.Equal(t, models.StateUnknown, st.State)
}

func TestStopRemovesRecordWhenSignalFails(t *testing.T) {
	logs := observeLogs(t)
	f := newSupervisorFixture(SupervisorOptions{})
	require.NoError(t, f.store.Save(config.BackendService, 42))

	require.NoError(t, f.sup.Stop(context.Background(), config.BackendService))
	assert.Equal(t, []int{42}, f.ctrl.terminated)
	_, found, _ := f.store.Load(config.BackendService)
	assert.False(t, found)
	assert.Equal(t, 1, logs.FilterMessageSnippet("send SIGTERM").Len())
}

func TestStopForceKill(t *testing.T) {
	f := newSupervisorFixture(SupervisorOptions{StopTimeout: 150 * time.Millisecond, Force: true})
	f.ctrl.ignoreTerm = true
	require.NoError(t, f.store.Save(config.BackendService, 42))
	f.ctrl.setAlive(42, true)

	require.NoError(t, f.sup.Stop(context.Background(), config.BackendService))
	assert.Equal(t, []int{42}, f.ctrl.killed)
	assert.False(t, f.ctrl.IsAlive(42))
}

func TestStopWithoutForceLeavesProcess(t *testing.T) {
	logs := observeLogs(t)
	f := newSupervisorFixture(SupervisorOptions{StopTimeout: 150 * time.Millisecond})
	f.ctrl.ignoreTerm = true
	require.NoError(t, f.store.Save(config.BackendService, 42))
	f.ctrl.setAlive(42, true)

	require.NoError(t, f.sup.Stop(context.Background(), config.BackendService))
	assert.Empty(t, f.ctrl.killed)
	assert.Equal(t, 1, logs.FilterMessageSnippet("still alive").Len())
	_, found, _ := f.store.Load(config.BackendService)
	assert.False(t, found)
}

func TestRestartStartsAfterFailedSignal(t *testing.T) {
	f := newSupervisorFixture(SupervisorOptions{})
	f.ctrl.termErr = errors.New("operation not permitted")
	require.NoError(t, f.store.Save(config.BackendService, 42))
	f.ctrl.setAlive(42, true)

	st, err := f.sup.Restart(context.Background(), config.BackendService)
	require.NoError(t, err)
	assert.Equal(t, models.StateRunning, st.State)
	assert.Equal(t, 1001, st.Pid)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.lifecycleOps.WithLabelValues("backend", "restart", ResultSuccess)))
}

func TestExpand(t *testing.T) {
	f := newSupervisorFixture(SupervisorOptions{})

	names, err := f.sup.Expand(AllServices, false)
	require.NoError(t, err)
	assert.Equal(t, []string{"backend", "frontend"}, names)

	names, err = f.sup.Expand("", true)
	require.NoError(t, err)
	assert.Equal(t, []string{"frontend", "backend"}, names)

	_, err = f.sup.Expand("worker", false)
	assert.True(t, derrors.IsPrecondition(err))
	_, err = f.sup.Start(context.Background(), "worker")
	assert.True(t, derrors.IsPrecondition(err))
}

func TestStatusAll(t *testing.T) {
	f := newSupervisorFixture(SupervisorOptions{})
	require.NoError(t, f.store.Save(config.BackendService, 42))
	f.ctrl.setAlive(42, true)
	require.NoError(t, f.store.Save(config.FrontendService, 43))

	statuses, err := f.sup.StatusAll()
	require.NoError(t, err)
	require.Len(t, statuses, 2)
	assert.Equal(t, models.StateRunning, statuses[0].State)
	assert.Equal(t, models.StateStale, statuses[1].State)
	assert.Equal(t, "/srv/app/frontend.pid", statuses[1].PidFile)
}
