package nginx

import (
	"context"
	"path/filepath"
	"strings"

	derrors "handv-deploy/internal/errors"
	"handv-deploy/internal/executor"
	"handv-deploy/internal/logger"

	"github.com/spf13/afero"
)

/**
 * Installer options
 * @property {string} Binary - nginx executable
 * @property {string} Site - base name of the site file
 * @property {bool} UseSudo - write files and run privileged commands through sudo
 * @property {[]Candidate} Candidates - directory conventions probed in order
 */
type Options struct {
	Binary     string
	Site       string
	UseSudo    bool
	Candidates []Candidate
}

// Installer writes the site file and drives the nginx binary
type Installer struct {
	exec executor.Executor
	fs   afero.Fs
	opts Options
}

// ActivateResult reports what Activate did after a successful syntax check
type ActivateResult struct {
	TestOutput    string
	ReloadCommand string
	Reloaded      bool
	ReloadError   error
}

// SetupResult is the outcome of Configure
type SetupResult struct {
	Target   Target
	Path     string
	Activate ActivateResult
}

type packageManager struct {
	name     string
	prepare  [][]string // best effort
	install  []string
	finalize [][]string // best effort
}

var packageManagers = []packageManager{
	{name: "apt", install: []string{"apt", "install", "-y", "nginx"}, prepare: [][]string{{"apt", "update", "-y"}}},
	{name: "yum", install: []string{"yum", "install", "-y", "nginx"}, prepare: [][]string{{"yum", "install", "-y", "epel-release"}},
		finalize: [][]string{{"systemctl", "enable", "nginx"}}},
	{name: "dnf", install: []string{"dnf", "install", "-y", "nginx"}, finalize: [][]string{{"systemctl", "enable", "nginx"}}},
}

func NewInstaller(exec executor.Executor, fs afero.Fs, opts Options) *Installer {
	if opts.Binary == "" {
		opts.Binary = "nginx"
	}
	if opts.Site == "" {
		opts.Site = "handv"
	}
	if opts.Candidates == nil {
		opts.Candidates = DefaultCandidates()
	}
	return &Installer{exec: exec, fs: fs, opts: opts}
}

func (i *Installer) command(name string, args ...string) executor.Command {
	if i.opts.UseSudo {
		return executor.Command{Name: "sudo", Args: append([]string{name}, args...)}
	}
	return executor.Command{Name: name, Args: args}
}

func (i *Installer) bestEffort(ctx context.Context, cmd executor.Command) {
	res, err := i.exec.Run(ctx, cmd)
	if err != nil {
		logger.Warnf("%s: %v", cmd.String(), err)
		return
	}
	if !res.Success() {
		logger.Warnf("%s exited with %d: %s", cmd.String(), res.ExitCode, strings.TrimSpace(res.Stderr))
	}
}

// EnsureInstalled installs nginx with the first available package manager when it is missing
func (i *Installer) EnsureInstalled(ctx context.Context) error {
	if executor.Has(i.exec, i.opts.Binary) {
		logger.Infof("nginx found")
		return nil
	}
	for _, pm := range packageManagers {
		if !executor.Has(i.exec, pm.name) {
			continue
		}
		logger.Infof("installing nginx with %s", pm.name)
		for _, argv := range pm.prepare {
			i.bestEffort(ctx, i.command(argv[0], argv[1:]...))
		}
		if _, err := executor.MustSucceed(ctx, i.exec, i.command(pm.install[0], pm.install[1:]...)); err != nil {
			return err
		}
		for _, argv := range pm.finalize {
			i.bestEffort(ctx, i.command(argv[0], argv[1:]...))
		}
		return nil
	}
	return derrors.NewPreconditionError("nginx is not installed and none of apt/yum/dnf is available")
}

// EnsureRunning enables and starts the nginx service; failures are only logged
func (i *Installer) EnsureRunning(ctx context.Context) {
	if executor.Has(i.exec, "systemctl") {
		i.bestEffort(ctx, i.command("systemctl", "enable", "nginx"))
		i.bestEffort(ctx, i.command("systemctl", "start", "nginx"))
		return
	}
	i.bestEffort(ctx, i.command("service", "nginx", "start"))
}

// Resolve picks the site file location for this host
func (i *Installer) Resolve() (Target, error) {
	return Resolve(i.fs, i.opts.Candidates, i.opts.Site)
}

/**
 * Install the rendered configuration, overwriting any previous file
 * @param {Target} target - resolved location
 * @param {string} text - rendered configuration
 * @returns {(string, error)} path written
 */
func (i *Installer) Install(ctx context.Context, target Target, text string) (string, error) {
	logger.Infof("writing nginx configuration: %s", target.ConfPath)
	if i.opts.UseSudo {
		cmd := i.command("tee", target.ConfPath)
		cmd.Stdin = text
		if _, err := executor.MustSucceed(ctx, i.exec, cmd); err != nil {
			return "", err
		}
	} else {
		if err := i.fs.MkdirAll(filepath.Dir(target.ConfPath), 0o755); err != nil {
			return "", derrors.NewPreconditionError("create %s: %v", filepath.Dir(target.ConfPath), err)
		}
		if err := afero.WriteFile(i.fs, target.ConfPath, []byte(text), 0o644); err != nil {
			return "", derrors.NewPreconditionError("write %s: %v", target.ConfPath, err)
		}
	}
	if target.LinkPath != "" {
		logger.Infof("linking %s -> %s", target.LinkPath, target.ConfPath)
		if _, err := executor.MustSucceed(ctx, i.exec, i.command("ln", "-sf", target.ConfPath, target.LinkPath)); err != nil {
			return target.ConfPath, err
		}
	}
	return target.ConfPath, nil
}

func combinedOutput(res *executor.Result) string {
	if res == nil {
		return ""
	}
	return res.Stdout + res.Stderr
}

/**
 * Validate the installed configuration and reload nginx
 * @returns {(ActivateResult, error)} reload outcome
 * @description
 * - "nginx -t" runs first, a failure aborts with the checker output untouched
 * - reload uses systemctl when present, otherwise "service nginx reload"
 * - a failed reload is reported in the result, the written file is left in place
 */
func (i *Installer) Activate(ctx context.Context) (ActivateResult, error) {
	var result ActivateResult

	test := i.command(i.opts.Binary, "-t")
	res, err := i.exec.Run(ctx, test)
	if err != nil {
		return result, derrors.NewConfigurationError("nginx configuration test could not run", combinedOutput(res), err)
	}
	result.TestOutput = combinedOutput(res)
	if !res.Success() {
		return result, derrors.NewConfigurationError("nginx configuration test failed", result.TestOutput, nil)
	}

	reload := i.command("service", "nginx", "reload")
	if executor.Has(i.exec, "systemctl") {
		reload = i.command("systemctl", "reload", "nginx")
	}
	result.ReloadCommand = reload.String()
	rres, err := i.exec.Run(ctx, reload)
	switch {
	case err != nil:
		result.ReloadError = derrors.NewBestEffortError("nginx reload could not run", err)
	case !rres.Success():
		result.ReloadError = derrors.NewExecutionError(reload.String(), rres.Stdout, rres.Stderr, nil)
	default:
		result.Reloaded = true
	}
	if result.ReloadError != nil {
		logger.Warnf("nginx reload failed, configuration stays in place: %v", result.ReloadError)
	}
	return result, nil
}

// Configure renders, installs and activates the site in one pass
func (i *Installer) Configure(ctx context.Context, p Params) (*SetupResult, error) {
	text, err := Render(p)
	if err != nil {
		return nil, err
	}
	target, err := i.Resolve()
	if err != nil {
		return nil, err
	}
	logger.Infof("nginx site directory: %s (%s)", filepath.Dir(target.ConfPath), target.Candidate)
	path, err := i.Install(ctx, target, text)
	if err != nil {
		return nil, err
	}
	act, err := i.Activate(ctx)
	return &SetupResult{Target: target, Path: path, Activate: act}, err
}
