package services

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"handv-deploy/internal/config"
	derrors "handv-deploy/internal/errors"
	"handv-deploy/internal/executor"
	"handv-deploy/internal/nginx"
	"handv-deploy/internal/registry"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type deployFixture struct {
	cfg      *config.AppConfig
	fs       afero.Fs
	exec     *executor.Fake
	launcher *fakeLauncher
	metrics  *Metrics
	pings    []string
	deployer *Deployer
}

func newDeployFixture(t *testing.T) *deployFixture {
	t.Helper()
	f := &deployFixture{
		cfg:     config.Default("/srv/app"),
		fs:      afero.NewMemMapFs(),
		exec:    executor.NewFake("node", "npm", "nginx", "systemctl").On("node --version", executor.Result{Stdout: "v20.11.1\n"}),
		metrics: NewMetrics(),
	}
	require.NoError(t, f.fs.MkdirAll("/srv/app/dist", 0o755))

	ctrl := newFakeController()
	f.launcher = &fakeLauncher{ctrl: ctrl}
	sup := NewSupervisor(f.cfg, registry.New(registry.NewMemoryStore(), ctrl), f.launcher, ctrl, f.metrics, SupervisorOptions{})
	f.deployer = NewDeployer(f.cfg, NewBuilder(f.exec, f.fs, f.cfg), sup, NewNginxInstaller(f.cfg, f.exec, f.fs), f.metrics)
	n := 0
	f.deployer.newID = func() string {
		n++
		return fmt.Sprintf("run-%d", n)
	}
	f.deployer.ping = func(ctx context.Context, port int, path string) error {
		f.pings = append(f.pings, fmt.Sprintf("%d%s", port, path))
		return nil
	}
	return f
}

func stageNames(report *RunReport) (ran, skipped []string) {
	for _, s := range report.Stages {
		if s.Skipped {
			skipped = append(skipped, s.Name)
		} else {
			ran = append(ran, s.Name)
		}
	}
	return ran, skipped
}

func TestRunStaticMode(t *testing.T) {
	f := newDeployFixture(t)

	report, err := f.deployer.Run(context.Background(), DeployOptionsFromConfig(f.cfg))
	require.NoError(t, err)

	assert.Equal(t, "run-1", report.ID)
	assert.Equal(t, "http://localhost:6666/api", report.APIBase)
	ran, skipped := stageNames(report)
	assert.Equal(t, []string{StageInstall, StageBuild, StageBackend, StageNginx}, ran)
	assert.Equal(t, []string{StageFrontend}, skipped)

	assert.Equal(t, []string{
		"node --version",
		"npm install",
		"npm run build",
		"systemctl enable nginx",
		"systemctl start nginx",
		"nginx -t",
		"systemctl reload nginx",
	}, f.exec.CommandLines())
	assert.Equal(t, "http://localhost:6666/api", f.exec.Calls[2].Env["VITE_API_BASE"])
	assert.Equal(t, []string{config.BackendService}, f.launcher.names())
	assert.Equal(t, []string{"6666/api/ping"}, f.pings)

	require.Len(t, report.Services, 1)
	assert.Equal(t, "ok", report.Services[0].Health)

	require.NotNil(t, report.Nginx)
	assert.Equal(t, "/etc/nginx/conf.d/00_handv.conf", report.Nginx.Path)
	assert.True(t, report.Nginx.Activate.Reloaded)
	site, err := afero.ReadFile(f.fs, report.Nginx.Path)
	require.NoError(t, err)
	assert.Contains(t, string(site), "listen 60 default_server;")
	assert.Contains(t, string(site), "root /srv/app/dist;")
	assert.NotContains(t, string(site), "127.0.0.1:6667")
}

func TestRunProxyModeStartsFrontend(t *testing.T) {
	f := newDeployFixture(t)
	opts := DeployOptionsFromConfig(f.cfg)
	opts.Mode = nginx.ModeProxy

	report, err := f.deployer.Run(context.Background(), opts)
	require.NoError(t, err)

	ran, skipped := stageNames(report)
	assert.Equal(t, []string{StageInstall, StageBuild, StageBackend, StageFrontend, StageNginx}, ran)
	assert.Empty(t, skipped)
	assert.Equal(t, []string{config.BackendService, config.FrontendService}, f.launcher.names())
	assert.Equal(t, []string{"serve", "-s", "/srv/app/dist", "-l", "6667"}, f.launcher.specs[1].Args)

	site, err := afero.ReadFile(f.fs, report.Nginx.Path)
	require.NoError(t, err)
	assert.Contains(t, string(site), "proxy_pass http://127.0.0.1:6667;")
	assert.Contains(t, string(site), "proxy_pass http://127.0.0.1:6666/api/;")
}

func TestRunStartsEveryProxyOnlyService(t *testing.T) {
	f := newDeployFixture(t)
	f.cfg.Services = append(f.cfg.Services, config.ServiceConfig{
		Name:      "ws",
		Command:   "node",
		Args:      []string{"ws.cjs"},
		Port:      6670,
		PidFile:   "ws.pid",
		LogFile:   "ws.log",
		ProxyOnly: true,
	})

	opts := DeployOptionsFromConfig(f.cfg)
	_, err := f.deployer.Run(context.Background(), opts)
	require.NoError(t, err)
	assert.Equal(t, []string{config.BackendService}, f.launcher.names())

	opts.Mode = nginx.ModeProxy
	report, err := f.deployer.Run(context.Background(), opts)
	require.NoError(t, err)
	assert.Equal(t, []string{config.BackendService, config.FrontendService, "ws"}, f.launcher.names())
	require.Len(t, report.Services, 3)
	assert.Equal(t, "ws", report.Services[2].Name)
}

func TestRunProxyModeRequiresProxyOnlyService(t *testing.T) {
	f := newDeployFixture(t)
	frontend, err := f.cfg.Service(config.FrontendService)
	require.NoError(t, err)
	frontend.ProxyOnly = false
	opts := DeployOptionsFromConfig(f.cfg)
	opts.Mode = nginx.ModeProxy

	_, err = f.deployer.Run(context.Background(), opts)
	assert.True(t, derrors.IsPrecondition(err))
	assert.Empty(t, f.exec.Calls)
	assert.Empty(t, f.launcher.names())

	opts.SkipFrontend = true
	_, err = f.deployer.Run(context.Background(), opts)
	require.NoError(t, err)
	assert.Equal(t, []string{config.BackendService}, f.launcher.names())
}

func TestRunSkipFlags(t *testing.T) {
	f := newDeployFixture(t)
	opts := DeployOptionsFromConfig(f.cfg)
	opts.Mode = nginx.ModeProxy
	opts.SkipInstall = true
	opts.SkipBuild = true
	opts.SkipBackend = true
	opts.SkipFrontend = true
	opts.SkipNginxInstall = true

	report, err := f.deployer.Run(context.Background(), opts)
	require.NoError(t, err)

	ran, _ := stageNames(report)
	assert.Equal(t, []string{StageNginx}, ran)
	assert.Equal(t, []string{"nginx -t", "systemctl reload nginx"}, f.exec.CommandLines())
	assert.Empty(t, f.launcher.names())
	assert.Empty(t, f.pings)
}

func TestRunValidatesBeforeAnyAction(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*DeployOptions)
	}{
		{"listen port zero", func(o *DeployOptions) { o.ListenPort = 0 }},
		{"backend port out of range", func(o *DeployOptions) { o.BackendPort = 70000 }},
		{"frontend port in proxy mode", func(o *DeployOptions) { o.Mode = nginx.ModeProxy; o.FrontendPort = -1 }},
		{"unknown mode", func(o *DeployOptions) { o.Mode = "cdn" }},
		{"static without root", func(o *DeployOptions) { o.StaticRoot = " " }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newDeployFixture(t)
			opts := DeployOptionsFromConfig(f.cfg)
			tt.mutate(&opts)

			report, err := f.deployer.Run(context.Background(), opts)
			assert.Nil(t, report)
			assert.True(t, derrors.IsPrecondition(err), "%v", err)
			assert.Equal(t, 2, derrors.ExitCode(err))
			assert.Empty(t, f.exec.Calls)
			assert.Empty(t, f.launcher.names())
		})
	}
}

func TestRunStopsAtFailingStage(t *testing.T) {
	f := newDeployFixture(t)
	f.exec.On("npm run build", executor.Result{ExitCode: 1, Stderr: "vite: command not found"})

	report, err := f.deployer.Run(context.Background(), DeployOptionsFromConfig(f.cfg))
	require.Error(t, err)

	var stageErr *StageError
	require.True(t, errors.As(err, &stageErr))
	assert.Equal(t, StageBuild, stageErr.Stage)
	assert.True(t, derrors.IsExecution(err))
	assert.Equal(t, 1, derrors.ExitCode(err))
	assert.Contains(t, err.Error(), "vite: command not found")

	ran, _ := stageNames(report)
	assert.Equal(t, []string{StageInstall, StageBuild}, ran)
	assert.Empty(t, f.launcher.names())
	assert.NotContains(t, f.exec.CommandLines(), "nginx -t")
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.stageFailures.WithLabelValues(StageBuild)))
}

func TestRunNginxCheckFailure(t *testing.T) {
	f := newDeployFixture(t)
	f.exec.On("nginx -t", executor.Result{ExitCode: 1, Stderr: "nginx: [emerg] invalid port in \"0\""})

	_, err := f.deployer.Run(context.Background(), DeployOptionsFromConfig(f.cfg))
	var stageErr *StageError
	require.True(t, errors.As(err, &stageErr))
	assert.Equal(t, StageNginx, stageErr.Stage)
	assert.True(t, derrors.IsConfiguration(err))
	assert.NotContains(t, f.exec.CommandLines(), "systemctl reload nginx")
}

func TestRunPortOverrides(t *testing.T) {
	f := newDeployFixture(t)
	opts := DeployOptionsFromConfig(f.cfg)
	opts.BackendPort = 7000
	opts.ServerName = "demo.example.com"

	report, err := f.deployer.Run(context.Background(), opts)
	require.NoError(t, err)

	assert.Equal(t, "http://demo.example.com:7000/api", report.APIBase)
	assert.Equal(t, map[string]string{"PORT": "7000"}, f.launcher.specs[0].Env)
	assert.Equal(t, []string{"7000/api/ping"}, f.pings)
}

func TestRunUnreachableBackendIsNotFatal(t *testing.T) {
	f := newDeployFixture(t)
	f.deployer.ping = func(ctx context.Context, port int, path string) error {
		return errors.New("connection refused")
	}

	report, err := f.deployer.Run(context.Background(), DeployOptionsFromConfig(f.cfg))
	require.NoError(t, err)
	assert.Equal(t, "unreachable", report.Services[0].Health)
}

func TestRunRequiresBackendService(t *testing.T) {
	f := newDeployFixture(t)
	f.cfg.Services = f.cfg.Services[1:]

	_, err := f.deployer.Run(context.Background(), DeployOptionsFromConfig(f.cfg))
	assert.True(t, derrors.IsPrecondition(err))
	assert.Empty(t, f.exec.Calls)
}

func TestResolvedAPIBase(t *testing.T) {
	assert.Equal(t, "http://localhost:6666/api", DeployOptions{ServerName: "_", BackendPort: 6666}.ResolvedAPIBase())
	assert.Equal(t, "http://localhost:6666/api", DeployOptions{BackendPort: 6666}.ResolvedAPIBase())
	assert.Equal(t, "https://api.example.com", DeployOptions{APIBase: "https://api.example.com", BackendPort: 6666}.ResolvedAPIBase())
}
