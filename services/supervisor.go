package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"handv-deploy/internal/config"
	"handv-deploy/internal/env"
	derrors "handv-deploy/internal/errors"
	"handv-deploy/internal/logger"
	"handv-deploy/internal/models"
	"handv-deploy/internal/proc"
	"handv-deploy/internal/registry"
	"handv-deploy/internal/utils"

	"github.com/spf13/afero"
)

// AllServices selects every configured service
const AllServices = "all"

const stopPollInterval = 100 * time.Millisecond

/**
 * Supervisor options
 * @property {time.Duration} StartupDelay - wait after launch before checking liveness
 * @property {time.Duration} StopTimeout - how long stop waits for the process to exit, 0 to not wait
 * @property {bool} Force - send SIGKILL when the process outlives StopTimeout
 * @property {bool} CheckPort - warn when the service port is taken before launch
 */
type SupervisorOptions struct {
	StartupDelay time.Duration
	StopTimeout  time.Duration
	Force        bool
	CheckPort    bool
}

// Supervisor implements start/stop/status/restart per service on top of the PID registry
type Supervisor struct {
	cfg      *config.AppConfig
	registry *registry.Registry
	launcher proc.Launcher
	ctrl     proc.Controller
	metrics  *Metrics
	opts     SupervisorOptions

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewSupervisor(cfg *config.AppConfig, reg *registry.Registry, launcher proc.Launcher, ctrl proc.Controller, metrics *Metrics, opts SupervisorOptions) *Supervisor {
	return &Supervisor{
		cfg:      cfg,
		registry: reg,
		launcher: launcher,
		ctrl:     ctrl,
		metrics:  metrics,
		opts:     opts,
		locks:    make(map[string]*sync.Mutex),
	}
}

// lock serializes lifecycle operations on one service and returns the unlock func
func (s *Supervisor) lock(name string) func() {
	s.mu.Lock()
	l, ok := s.locks[name]
	if !ok {
		l = &sync.Mutex{}
		s.locks[name] = l
	}
	s.mu.Unlock()
	l.Lock()
	return l.Unlock
}

// PidFiles maps every configured service to its absolute PID file
func PidFiles(cfg *config.AppConfig) map[string]string {
	paths := make(map[string]string, len(cfg.Services))
	for _, svc := range cfg.Services {
		paths[svc.Name] = cfg.Path(svc.PidFile)
	}
	return paths
}

/**
 * Create a supervisor backed by real processes and PID files under the deployment root
 * @param {*config.AppConfig} cfg - application configuration
 * @param {*Metrics} metrics - metrics collectors, may be nil
 * @param {bool} force - escalate stop to SIGKILL after stop_timeout
 * @returns {*Supervisor}
 */
func NewDefaultSupervisor(cfg *config.AppConfig, metrics *Metrics, force bool) *Supervisor {
	ctrl := proc.NewOSController()
	store := registry.NewFileStore(afero.NewOsFs(), PidFiles(cfg))
	return NewSupervisor(cfg, registry.New(store, ctrl), proc.NewProcessLauncher(), ctrl, metrics, SupervisorOptions{
		StartupDelay: cfg.StartupDelay,
		StopTimeout:  cfg.StopTimeout,
		Force:        force,
		CheckPort:    true,
	})
}

// Names returns the configured service names in start order
func (s *Supervisor) Names() []string {
	names := make([]string, 0, len(s.cfg.Services))
	for _, svc := range s.cfg.Services {
		names = append(names, svc.Name)
	}
	return names
}

/**
 * Expand a service argument into service names
 * @param {string} name - service name or "all"
 * @param {bool} reverse - reverse the configured order (used by stop)
 * @returns {([]string, error)} names, precondition error for unknown services
 */
func (s *Supervisor) Expand(name string, reverse bool) ([]string, error) {
	if name == "" || name == AllServices {
		names := s.Names()
		if reverse {
			for i, j := 0, len(names)-1; i < j; i, j = i+1, j-1 {
				names[i], names[j] = names[j], names[i]
			}
		}
		return names, nil
	}
	if _, err := s.service(name); err != nil {
		return nil, err
	}
	return []string{name}, nil
}

func (s *Supervisor) service(name string) (*config.ServiceConfig, error) {
	svc, err := s.cfg.Service(name)
	if err != nil {
		return nil, derrors.NewPreconditionError("unknown service %q, expected one of %v", name, s.Names())
	}
	return svc, nil
}

func (s *Supervisor) status(svc *config.ServiceConfig) (models.ServiceStatus, error) {
	st := models.ServiceStatus{
		Name:    svc.Name,
		State:   models.StateUnknown,
		Port:    svc.Port,
		PidFile: s.cfg.Path(svc.PidFile),
		LogFile: s.cfg.Path(svc.LogFile),
	}
	pid, found, err := s.registry.Read(svc.Name)
	if err != nil {
		if errors.Is(err, registry.ErrInvalidRecord) {
			logger.Warnf("Service [%s] has an unreadable PID record: %v", svc.Name, err)
			st.State = models.StateStale
			return st, nil
		}
		return st, err
	}
	if !found {
		return st, nil
	}
	st.Pid = pid
	if s.registry.IsAlive(pid) {
		st.State = models.StateRunning
	} else {
		st.State = models.StateStale
	}
	return st, nil
}

// Status reports the state of one service; the PID is re-validated on every call
func (s *Supervisor) Status(name string) (models.ServiceStatus, error) {
	svc, err := s.service(name)
	if err != nil {
		return models.ServiceStatus{}, err
	}
	return s.status(svc)
}

func (s *Supervisor) StatusAll() ([]models.ServiceStatus, error) {
	var result []models.ServiceStatus
	for _, name := range s.Names() {
		st, err := s.Status(name)
		if err != nil {
			return result, err
		}
		result = append(result, st)
	}
	return result, nil
}

func (s *Supervisor) spec(svc *config.ServiceConfig) (proc.Spec, error) {
	data := utils.CommandArgs{
		Name: svc.Name,
		Port: svc.Port,
		Root: s.cfg.Root,
		Dist: s.cfg.OutputDir(),
	}
	command, args, cmdEnv, err := utils.GetCommandLine(svc.Command, svc.Args, svc.Env, data)
	if err != nil {
		return proc.Spec{}, derrors.NewPreconditionError("service %s command: %v", svc.Name, err)
	}
	return proc.Spec{
		Name:    svc.Name,
		Command: command,
		Args:    args,
		Dir:     s.cfg.Path(svc.WorkDir),
		Env:     cmdEnv,
		LogFile: s.cfg.Path(svc.LogFile),
	}, nil
}

func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

/**
 * Start a service
 * @param {context.Context} ctx - cancels the startup wait
 * @param {string} name - service name
 * @returns {(models.ServiceStatus, error)} status after start
 * @description
 * - running: nothing is launched and the record is left alone
 * - stale: the old record is removed before launching
 * - the new PID is recorded, then startup_delay is waited as a readiness heuristic
 * - concurrent Start/Stop/Restart calls on the same service run one at a time
 */
func (s *Supervisor) Start(ctx context.Context, name string) (models.ServiceStatus, error) {
	svc, err := s.service(name)
	if err != nil {
		return models.ServiceStatus{}, err
	}
	defer s.lock(name)()
	st, err := s.start(ctx, svc)
	switch {
	case err != nil:
		s.metrics.ObserveLifecycle(name, "start", ResultFailure)
	case st.Pid != 0 && !st.fresh:
		s.metrics.ObserveLifecycle(name, "start", ResultNoop)
	default:
		s.metrics.ObserveLifecycle(name, "start", ResultSuccess)
	}
	return st.ServiceStatus, err
}

type startStatus struct {
	models.ServiceStatus
	fresh bool
}

func (s *Supervisor) start(ctx context.Context, svc *config.ServiceConfig) (startStatus, error) {
	st, err := s.status(svc)
	if err != nil {
		return startStatus{ServiceStatus: st}, err
	}
	switch st.State {
	case models.StateRunning:
		logger.Infof("Service [%s] is already running (PID: %d)", svc.Name, st.Pid)
		return startStatus{ServiceStatus: st}, nil
	case models.StateStale:
		logger.Infof("Service [%s] has a stale PID record (PID: %d), removing it", svc.Name, st.Pid)
		if err := s.registry.Remove(svc.Name); err != nil {
			logger.Warnf("Service [%s] remove stale record failed: %v", svc.Name, err)
		}
	}

	spec, err := s.spec(svc)
	if err != nil {
		return startStatus{ServiceStatus: st}, err
	}
	if svc.Port > 0 {
		if utils.IsPrivilegedPort(svc.Port) && !env.IsElevated() {
			logger.Warnf("Service [%s] binds privileged port %d without elevated privileges, the bind may fail", svc.Name, svc.Port)
		}
		if s.opts.CheckPort && utils.IsPortInUse(svc.Port) {
			logger.Warnf("Service [%s] port %d is already in use", svc.Name, svc.Port)
		}
	}
	pid, err := s.launcher.Launch(ctx, spec)
	if err != nil {
		return startStatus{ServiceStatus: st}, derrors.New(derrors.KindExecution, fmt.Sprintf("launch %s failed", svc.Name), err)
	}
	if err := s.registry.Write(svc.Name, pid); err != nil {
		if terr := s.ctrl.Terminate(pid); terr != nil {
			logger.Warnf("Service [%s] terminate unrecorded process %d failed: %v", svc.Name, pid, terr)
		}
		return startStatus{ServiceStatus: st}, derrors.NewInternalError(fmt.Sprintf("record PID of %s failed", svc.Name), err)
	}
	logger.Infof("Service [%s] started (PID: %d, log: %s)", svc.Name, pid, spec.LogFile)

	st.Pid = pid
	st.State = models.StateRunning
	if err := wait(ctx, s.opts.StartupDelay); err != nil {
		return startStatus{ServiceStatus: st, fresh: true}, nil
	}
	if !s.registry.IsAlive(pid) {
		logger.Warnf("Service [%s] exited shortly after start, check %s", svc.Name, spec.LogFile)
		st.State = models.StateStale
	}
	return startStatus{ServiceStatus: st, fresh: true}, nil
}

/**
 * Stop a service
 * @param {context.Context} ctx - cancels the exit wait
 * @param {string} name - service name
 * @returns {error} only lookup and registry read errors, signal failures are warnings
 * @description
 * - unknown: no-op
 * - otherwise SIGTERM, optional wait and SIGKILL, then the record is removed
 */
func (s *Supervisor) Stop(ctx context.Context, name string) error {
	svc, err := s.service(name)
	if err != nil {
		return err
	}
	defer s.lock(name)()
	result, err := s.stop(ctx, svc)
	if err != nil {
		result = ResultFailure
	}
	s.metrics.ObserveLifecycle(name, "stop", result)
	return err
}

func (s *Supervisor) stop(ctx context.Context, svc *config.ServiceConfig) (string, error) {
	st, err := s.status(svc)
	if err != nil {
		return ResultFailure, err
	}
	if st.State == models.StateUnknown {
		logger.Infof("Service [%s] is not running", svc.Name)
		return ResultNoop, nil
	}

	if st.Pid > 0 {
		if err := s.ctrl.Terminate(st.Pid); err != nil {
			logger.Warnf("Service [%s] send SIGTERM to %d failed: %v", svc.Name, st.Pid, err)
		} else if st.State == models.StateRunning {
			s.waitExit(ctx, svc.Name, st.Pid)
		}
	}

	if err := s.registry.Remove(svc.Name); err != nil {
		logger.Warnf("Service [%s] remove PID record failed: %v", svc.Name, err)
	}
	logger.Infof("Service [%s] stopped (PID: %d)", svc.Name, st.Pid)
	return ResultSuccess, nil
}

func (s *Supervisor) waitExit(ctx context.Context, name string, pid int) {
	if s.opts.StopTimeout <= 0 {
		return
	}
	deadline := time.Now().Add(s.opts.StopTimeout)
	for s.registry.IsAlive(pid) {
		if time.Now().After(deadline) {
			if !s.opts.Force {
				logger.Warnf("Service [%s] (PID: %d) still alive after %s", name, pid, s.opts.StopTimeout)
				return
			}
			logger.Warnf("Service [%s] (PID: %d) did not exit in %s, sending SIGKILL", name, pid, s.opts.StopTimeout)
			if err := s.ctrl.Kill(pid); err != nil {
				logger.Warnf("Service [%s] SIGKILL %d failed: %v", name, pid, err)
			}
			return
		}
		if err := wait(ctx, stopPollInterval); err != nil {
			return
		}
	}
}

// Restart stops then starts; a failing stop never prevents the start
func (s *Supervisor) Restart(ctx context.Context, name string) (models.ServiceStatus, error) {
	svc, err := s.service(name)
	if err != nil {
		return models.ServiceStatus{}, err
	}
	defer s.lock(name)()
	if _, err := s.stop(ctx, svc); err != nil {
		logger.Warnf("Service [%s] stop before restart failed: %v", name, err)
	}
	st, err := s.start(ctx, svc)
	if err != nil {
		s.metrics.ObserveLifecycle(name, "restart", ResultFailure)
		return st.ServiceStatus, err
	}
	s.metrics.ObserveLifecycle(name, "restart", ResultSuccess)
	return st.ServiceStatus, nil
}
