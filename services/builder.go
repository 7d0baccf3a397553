package services

import (
	"context"
	"path/filepath"
	"strings"

	"handv-deploy/internal/config"
	derrors "handv-deploy/internal/errors"
	"handv-deploy/internal/executor"
	"handv-deploy/internal/logger"
	"handv-deploy/internal/utils"

	"github.com/spf13/afero"
)

// MinNodeVersion is the oldest Node.js release the frontend toolchain supports
var MinNodeVersion = utils.VersionNumber{Major: 18}

/**
 * Build parameters passed to the frontend build script
 * @property {string} APIBase - value of the API base variable, not set when empty
 * @property {map[string]string} Env - extra environment overrides
 * @property {bool} Clean - remove the output directory before building
 */
type BuildOptions struct {
	APIBase string
	Env     map[string]string
	Clean   bool
}

// Builder drives the package manager in the deployment root
type Builder struct {
	exec executor.Executor
	fs   afero.Fs
	cfg  *config.AppConfig
}

func NewBuilder(exec executor.Executor, fs afero.Fs, cfg *config.AppConfig) *Builder {
	return &Builder{exec: exec, fs: fs, cfg: cfg}
}

func (b *Builder) packageManager() string {
	if b.cfg.Build.PackageManager != "" {
		return b.cfg.Build.PackageManager
	}
	return "npm"
}

// EnsureToolchain checks node and the package manager before any build step runs
func (b *Builder) EnsureToolchain(ctx context.Context) error {
	pm := b.packageManager()
	if !executor.Has(b.exec, "node") || !executor.Has(b.exec, pm) {
		return derrors.NewPreconditionError("node/%s not found, install Node.js (>=%s) and %s first", pm, MinNodeVersion, pm)
	}
	res, err := b.exec.Run(ctx, executor.Command{Name: "node", Args: []string{"--version"}})
	if err != nil || !res.Success() {
		logger.Warnf("node --version failed, skipping version check")
		return nil
	}
	ver := utils.ParseVersionNumber(strings.TrimSpace(res.Stdout))
	if ver == nil {
		logger.Warnf("unrecognized node version %q", strings.TrimSpace(res.Stdout))
		return nil
	}
	if utils.CompareVersion(*ver, MinNodeVersion) < 0 {
		return derrors.NewPreconditionError("node %s is too old, >=%s required", ver, MinNodeVersion)
	}
	logger.Debugf("node %s", ver)
	return nil
}

// Install runs "ci" when a lockfile exists, "install" otherwise
func (b *Builder) Install(ctx context.Context) error {
	pm := b.packageManager()
	sub := "install"
	if ok, _ := afero.Exists(b.fs, filepath.Join(b.cfg.Root, "package-lock.json")); ok && pm == "npm" {
		sub = "ci"
	}
	_, err := executor.MustSucceed(ctx, b.exec, executor.Command{
		Name: pm,
		Args: []string{sub},
		Dir:  b.cfg.Root,
	})
	return err
}

/**
 * Build the frontend bundle
 * @param {context.Context} ctx - cancels the build
 * @param {BuildOptions} opts - API base, extra env, clean flag
 * @returns {error} execution error carrying the build output
 * @description
 * - the API base reaches the build only through the command's environment
 * - the output directory must exist afterwards
 */
func (b *Builder) Build(ctx context.Context, opts BuildOptions) error {
	out := b.cfg.OutputDir()
	if opts.Clean {
		if out == b.cfg.Root || out == "/" {
			return derrors.NewPreconditionError("refusing to clean output directory %s", out)
		}
		logger.Infof("removing %s", out)
		if err := b.fs.RemoveAll(out); err != nil {
			return derrors.NewPreconditionError("clean %s: %v", out, err)
		}
	}

	env := make(map[string]string, len(opts.Env)+1)
	for k, v := range opts.Env {
		env[k] = v
	}
	if opts.APIBase != "" {
		name := b.cfg.Build.APIBaseEnv
		if name == "" {
			name = "VITE_API_BASE"
		}
		env[name] = opts.APIBase
		logger.Infof("building with %s=%s", name, opts.APIBase)
	}

	script := b.cfg.Build.Script
	if script == "" {
		script = "build"
	}
	if _, err := executor.MustSucceed(ctx, b.exec, executor.Command{
		Name: b.packageManager(),
		Args: []string{"run", script},
		Dir:  b.cfg.Root,
		Env:  env,
	}); err != nil {
		return err
	}
	if ok, _ := afero.DirExists(b.fs, out); !ok {
		return derrors.NewPreconditionError("build finished but %s does not exist", out)
	}
	return nil
}
