package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"handv-deploy/internal/config"
	derrors "handv-deploy/internal/errors"
	"handv-deploy/internal/executor"
	"handv-deploy/internal/logger"
	"handv-deploy/internal/models"
	"handv-deploy/internal/nginx"
	"handv-deploy/internal/rpc"

	"github.com/google/uuid"
	"github.com/spf13/afero"
)

const (
	StageInstall  = "install"
	StageBuild    = "build"
	StageBackend  = "backend"
	StageFrontend = "frontend"
	StageNginx    = "nginx"
)

/**
 * Deployment parameters
 * @property {nginx.Mode} Mode - static/proxy
 * @property {int} ListenPort - public nginx port
 * @property {int} BackendPort - backend service port
 * @property {int} FrontendPort - frontend service port, proxy mode only
 * @property {string} StaticRoot - nginx document root, static mode only
 * @property {string} ServerName - nginx server_name
 * @property {string} APIBase - API base injected into the build, derived when empty
 */
type DeployOptions struct {
	Mode         nginx.Mode
	ListenPort   int
	BackendPort  int
	FrontendPort int
	StaticRoot   string
	ServerName   string
	APIBase      string

	SkipInstall      bool
	SkipBuild        bool
	SkipBackend      bool
	SkipFrontend     bool
	SkipNginxInstall bool
}

// DeployOptionsFromConfig fills the options with the configured defaults
func DeployOptionsFromConfig(cfg *config.AppConfig) DeployOptions {
	opts := DeployOptions{
		Mode:       nginx.Mode(cfg.Nginx.Mode),
		ListenPort: cfg.Nginx.ListenPort,
		StaticRoot: cfg.StaticRoot(),
		ServerName: cfg.Nginx.ServerName,
		APIBase:    cfg.Build.APIBase,
	}
	if svc, err := cfg.Service(config.BackendService); err == nil {
		opts.BackendPort = svc.Port
	}
	if svc, err := cfg.Service(config.FrontendService); err == nil {
		opts.FrontendPort = svc.Port
	}
	return opts
}

// Validate checks every parameter before the first stage runs
func (o DeployOptions) Validate() error {
	mode, err := nginx.ParseMode(string(o.Mode))
	if err != nil {
		return err
	}
	if err := config.ValidatePort("listen", o.ListenPort); err != nil {
		return err
	}
	if err := config.ValidatePort("backend", o.BackendPort); err != nil {
		return err
	}
	if mode == nginx.ModeProxy {
		if err := config.ValidatePort("frontend", o.FrontendPort); err != nil {
			return err
		}
	}
	if mode == nginx.ModeStatic && strings.TrimSpace(o.StaticRoot) == "" {
		return derrors.NewPreconditionError("static mode requires a static root")
	}
	return nil
}

// ResolvedAPIBase returns the explicit API base or http://<server>:<backend>/api
func (o DeployOptions) ResolvedAPIBase() string {
	if o.APIBase != "" {
		return o.APIBase
	}
	host := o.ServerName
	if host == "" || host == "_" {
		host = "localhost"
	}
	return fmt.Sprintf("http://%s:%d/api", host, o.BackendPort)
}

func (o DeployOptions) nginxParams(cfg *config.AppConfig) nginx.Params {
	p := nginx.Params{
		Mode:              o.Mode,
		ListenPort:        o.ListenPort,
		BackendPort:       o.BackendPort,
		ServerName:        o.ServerName,
		ClientMaxBodySize: cfg.Nginx.ClientMaxBodySize,
		ReadTimeout:       cfg.Nginx.ReadTimeout,
	}
	if o.Mode == nginx.ModeProxy {
		p.FrontendPort = o.FrontendPort
	} else {
		p.StaticRoot = o.StaticRoot
	}
	return p
}

// StageError identifies the stage that aborted a deployment
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("stage %s failed: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

type StageReport struct {
	Name     string        `json:"name" yaml:"name"`
	Skipped  bool          `json:"skipped" yaml:"skipped"`
	Duration time.Duration `json:"duration" yaml:"duration"`
	Err      error         `json:"-" yaml:"-"`
}

/**
 * Result of one deployment run
 * @property {string} ID - run id, also used as Pushgateway grouping label
 * @property {[]StageReport} Stages - stages in execution order
 * @property {[]models.ServiceStatus} Services - services started by this run
 * @property {*nginx.SetupResult} Nginx - written site and reload outcome
 */
type RunReport struct {
	ID       string                 `json:"id" yaml:"id"`
	Mode     nginx.Mode             `json:"mode" yaml:"mode"`
	APIBase  string                 `json:"apiBase" yaml:"apiBase"`
	Stages   []StageReport          `json:"stages" yaml:"stages"`
	Services []models.ServiceStatus `json:"services" yaml:"services"`
	Nginx    *nginx.SetupResult     `json:"-" yaml:"-"`
}

// Deployer runs install, build, backend, frontend and nginx stages in order
type Deployer struct {
	cfg        *config.AppConfig
	builder    *Builder
	supervisor *Supervisor
	installer  *nginx.Installer
	metrics    *Metrics
	newID      func() string
	ping       func(ctx context.Context, port int, path string) error
}

func NewDeployer(cfg *config.AppConfig, builder *Builder, supervisor *Supervisor, installer *nginx.Installer, metrics *Metrics) *Deployer {
	return &Deployer{
		cfg:        cfg,
		builder:    builder,
		supervisor: supervisor,
		installer:  installer,
		metrics:    metrics,
		newID:      func() string { return uuid.NewString() },
		ping:       rpc.Ping,
	}
}

// probe checks the liveness endpoint once; the result is informational
func (d *Deployer) probe(ctx context.Context, name string, st models.ServiceStatus) string {
	svc, err := d.cfg.Service(name)
	if err != nil || svc.HealthPath == "" || st.State != models.StateRunning || d.ping == nil {
		return ""
	}
	if err := d.ping(ctx, svc.Port, svc.HealthPath); err != nil {
		logger.Warnf("Service [%s] %s not answering yet: %v", name, svc.HealthPath, err)
		return "unreachable"
	}
	return "ok"
}

type stage struct {
	name string
	skip bool
	run  func(ctx context.Context) error
}

func (d *Deployer) applyPorts(opts DeployOptions) {
	if svc, err := d.cfg.Service(config.BackendService); err == nil {
		svc.Port = opts.BackendPort
	}
	if svc, err := d.cfg.Service(config.FrontendService); err == nil && opts.FrontendPort > 0 {
		svc.Port = opts.FrontendPort
	}
}

// proxyOnlyServices lists, in configured order, the services the frontend stage starts in proxy mode
func (d *Deployer) proxyOnlyServices() []string {
	var names []string
	for _, svc := range d.cfg.Services {
		if svc.ProxyOnly {
			names = append(names, svc.Name)
		}
	}
	return names
}

func (d *Deployer) requireService(name string) error {
	if _, err := d.cfg.Service(name); err != nil {
		return derrors.NewPreconditionError("service %s is not configured", name)
	}
	return nil
}

/**
 * Run a deployment
 * @param {context.Context} ctx - cancels the running stage
 * @param {DeployOptions} opts - deployment parameters
 * @returns {(*RunReport, error)} report of every stage that ran, *StageError on failure
 * @description
 * - options are validated before any command or file action
 * - the first failing stage stops the run, completed stages are kept
 * - nothing is retried or rolled back
 */
func (d *Deployer) Run(ctx context.Context, opts DeployOptions) (*RunReport, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	opts.Mode, _ = nginx.ParseMode(string(opts.Mode))
	proxy := opts.Mode == nginx.ModeProxy
	if !opts.SkipBackend {
		if err := d.requireService(config.BackendService); err != nil {
			return nil, err
		}
	}
	proxied := d.proxyOnlyServices()
	if proxy && !opts.SkipFrontend && len(proxied) == 0 {
		return nil, derrors.NewPreconditionError("proxy mode needs at least one service with proxy_only set")
	}
	d.applyPorts(opts)

	report := &RunReport{
		ID:      d.newID(),
		Mode:    opts.Mode,
		APIBase: opts.ResolvedAPIBase(),
	}
	logger.Infof("deploy %s: mode=%s listen=%d backend=%d api=%s", report.ID, opts.Mode, opts.ListenPort, opts.BackendPort, report.APIBase)

	toolchainChecked := false
	ensureToolchain := func(ctx context.Context) error {
		if toolchainChecked {
			return nil
		}
		toolchainChecked = true
		return d.builder.EnsureToolchain(ctx)
	}

	stages := []stage{
		{name: StageInstall, skip: opts.SkipInstall, run: func(ctx context.Context) error {
			if err := ensureToolchain(ctx); err != nil {
				return err
			}
			return d.builder.Install(ctx)
		}},
		{name: StageBuild, skip: opts.SkipBuild, run: func(ctx context.Context) error {
			if err := ensureToolchain(ctx); err != nil {
				return err
			}
			return d.builder.Build(ctx, BuildOptions{APIBase: report.APIBase, Clean: d.cfg.Build.CleanOutput})
		}},
		{name: StageBackend, skip: opts.SkipBackend, run: func(ctx context.Context) error {
			st, err := d.supervisor.Start(ctx, config.BackendService)
			if err == nil {
				st.Health = d.probe(ctx, config.BackendService, st)
			}
			report.Services = append(report.Services, st)
			return err
		}},
		{name: StageFrontend, skip: opts.SkipFrontend || !proxy, run: func(ctx context.Context) error {
			for _, name := range proxied {
				st, err := d.supervisor.Start(ctx, name)
				report.Services = append(report.Services, st)
				if err != nil {
					return err
				}
			}
			return nil
		}},
		{name: StageNginx, run: func(ctx context.Context) error {
			if !opts.SkipNginxInstall {
				if err := d.installer.EnsureInstalled(ctx); err != nil {
					return err
				}
				d.installer.EnsureRunning(ctx)
			}
			res, err := d.installer.Configure(ctx, opts.nginxParams(d.cfg))
			report.Nginx = res
			return err
		}},
	}

	var runErr error
	for _, st := range stages {
		if st.skip {
			logger.Infof("[%s] skipped", st.name)
			report.Stages = append(report.Stages, StageReport{Name: st.name, Skipped: true})
			continue
		}
		logger.Infof("[%s] running", st.name)
		start := time.Now()
		err := st.run(ctx)
		elapsed := time.Since(start)
		d.metrics.ObserveStage(st.name, elapsed, err)
		report.Stages = append(report.Stages, StageReport{Name: st.name, Duration: elapsed, Err: err})
		if err != nil {
			logger.Errorf("[%s] failed after %s: %v", st.name, elapsed.Round(time.Millisecond), err)
			runErr = &StageError{Stage: st.name, Err: err}
			break
		}
		logger.Infof("[%s] done in %s", st.name, elapsed.Round(time.Millisecond))
	}

	if err := d.metrics.Push(ctx, d.cfg.Metrics.Pushgateway, d.cfg.Metrics.Job, map[string]string{"run_id": report.ID}); err != nil {
		logger.Warnf("push metrics to %s failed: %v", d.cfg.Metrics.Pushgateway, err)
	}
	return report, runErr
}

// NewNginxInstaller builds an installer from the nginx section of the configuration
func NewNginxInstaller(cfg *config.AppConfig, exec executor.Executor, fs afero.Fs) *nginx.Installer {
	return nginx.NewInstaller(exec, fs, nginx.Options{
		Binary:  cfg.Nginx.Binary,
		Site:    cfg.Nginx.SiteName,
		UseSudo: cfg.Nginx.UseSudo,
	})
}

// NewDefaultDeployer wires the deployer to real commands, processes and files
func NewDefaultDeployer(cfg *config.AppConfig, metrics *Metrics) *Deployer {
	exec := executor.NewOSExecutor()
	fs := afero.NewOsFs()
	return NewDeployer(cfg,
		NewBuilder(exec, fs, cfg),
		NewDefaultSupervisor(cfg, metrics, false),
		NewNginxInstaller(cfg, exec, fs),
		metrics,
	)
}
