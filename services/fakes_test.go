package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"handv-deploy/internal/config"
	"handv-deploy/internal/logger"
	"handv-deploy/internal/proc"
	"handv-deploy/internal/registry"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

var errNoSuchProcess = errors.New("no such process")

// fakeController keeps a table of live PIDs
type fakeController struct {
	mu         sync.Mutex
	alive      map[int]bool
	terminated []int
	killed     []int
	termErr    error
	ignoreTerm bool
}

func newFakeController() *fakeController {
	return &fakeController{alive: make(map[int]bool)}
}

func (c *fakeController) setAlive(pid int, alive bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.alive[pid] = alive
}

func (c *fakeController) IsAlive(pid int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.alive[pid]
}

func (c *fakeController) Terminate(pid int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.terminated = append(c.terminated, pid)
	if c.termErr != nil {
		return c.termErr
	}
	if !c.alive[pid] {
		return errNoSuchProcess
	}
	if !c.ignoreTerm {
		c.alive[pid] = false
	}
	return nil
}

func (c *fakeController) Kill(pid int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.killed = append(c.killed, pid)
	c.alive[pid] = false
	return nil
}

// fakeLauncher hands out PIDs from 1001 upwards
type fakeLauncher struct {
	mu          sync.Mutex
	ctrl        *fakeController
	next        int
	specs       []proc.Spec
	err         error
	exitOnStart bool
	delay       time.Duration
}

func (l *fakeLauncher) Launch(ctx context.Context, spec proc.Spec) (int, error) {
	if l.delay > 0 {
		time.Sleep(l.delay)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return 0, l.err
	}
	l.next++
	pid := 1000 + l.next
	l.specs = append(l.specs, spec)
	l.ctrl.setAlive(pid, !l.exitOnStart)
	return pid, nil
}

func (l *fakeLauncher) names() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	var names []string
	for _, s := range l.specs {
		names = append(names, s.Name)
	}
	return names
}

type supervisorFixture struct {
	cfg      *config.AppConfig
	store    *registry.MemoryStore
	ctrl     *fakeController
	launcher *fakeLauncher
	metrics  *Metrics
	sup      *Supervisor
}

func newSupervisorFixture(opts SupervisorOptions) *supervisorFixture {
	f := &supervisorFixture{
		cfg:     config.Default("/srv/app"),
		store:   registry.NewMemoryStore(),
		ctrl:    newFakeController(),
		metrics: NewMetrics(),
	}
	f.launcher = &fakeLauncher{ctrl: f.ctrl}
	f.sup = NewSupervisor(f.cfg, registry.New(f.store, f.ctrl), f.launcher, f.ctrl, f.metrics, opts)
	return f
}

// observeLogs routes the package logger into an in-memory observer for the test
func observeLogs(t *testing.T) *observer.ObservedLogs {
	core, logs := observer.New(zapcore.InfoLevel)
	logger.SetLogger(zap.New(core))
	t.Cleanup(func() { logger.SetLogger(nil) })
	return logs
}
