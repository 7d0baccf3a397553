// Package executor runs external tools (npm, nginx, systemctl, sudo) behind an
// interface so lifecycle and deployment logic can be tested without real processes.
package executor

import (
	"bytes"
	"context"
	"errors"
	"os"
	"os/exec"
	"sort"
	"strings"

	derrors "handv-deploy/internal/errors"
	"handv-deploy/internal/logger"
)

// Command describes one invocation
type Command struct {
	Name  string
	Args  []string
	Dir   string
	Env   map[string]string // overrides merged on top of the caller's environment
	Stdin string
}

// String renders the command line for logs and error messages
func (c Command) String() string {
	parts := append([]string{c.Name}, c.Args...)
	return strings.Join(parts, " ")
}

// Result holds the exit code and captured streams of a finished command
type Result struct {
	ExitCode int
	Stdout   string
	Stderr   string
}

func (r *Result) Success() bool {
	return r != nil && r.ExitCode == 0
}

// Executor runs commands to completion
type Executor interface {
	// Run returns a Result for every command that started, including non-zero exits.
	// The error is non-nil only when the command could not be started.
	Run(ctx context.Context, cmd Command) (*Result, error)
	// LookPath reports the resolved location of a tool on PATH
	LookPath(name string) (string, error)
}

// MustSucceed runs cmd and converts a non-zero exit into an execution error
// carrying both output streams verbatim
func MustSucceed(ctx context.Context, e Executor, cmd Command) (*Result, error) {
	res, err := e.Run(ctx, cmd)
	if err != nil {
		return res, derrors.NewExecutionError(cmd.String(), "", "", err)
	}
	if !res.Success() {
		return res, derrors.NewExecutionError(cmd.String(), res.Stdout, res.Stderr, nil)
	}
	return res, nil
}

// Has reports whether a tool is available on PATH
func Has(e Executor, name string) bool {
	_, err := e.LookPath(name)
	return err == nil
}

// OSExecutor runs commands with os/exec
type OSExecutor struct{}

func NewOSExecutor() *OSExecutor {
	return &OSExecutor{}
}

func (o *OSExecutor) LookPath(name string) (string, error) {
	return exec.LookPath(name)
}

func (o *OSExecutor) Run(ctx context.Context, c Command) (*Result, error) {
	logger.Infof("$ %s", c.String())

	cmd := exec.CommandContext(ctx, c.Name, c.Args...)
	cmd.Dir = c.Dir
	if len(c.Env) > 0 {
		cmd.Env = MergeEnv(os.Environ(), c.Env)
	}
	if c.Stdin != "" {
		cmd.Stdin = strings.NewReader(c.Stdin)
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	res := &Result{Stdout: stdout.String(), Stderr: stderr.String()}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			res.ExitCode = exitErr.ExitCode()
			return res, nil
		}
		res.ExitCode = -1
		return res, err
	}
	return res, nil
}

// MergeEnv overlays overrides on base ("KEY=VALUE" entries); later keys win
func MergeEnv(base []string, overrides map[string]string) []string {
	out := make([]string, 0, len(base)+len(overrides))
	for _, kv := range base {
		key := kv
		if idx := strings.IndexByte(kv, '='); idx >= 0 {
			key = kv[:idx]
		}
		if _, ok := overrides[key]; ok {
			continue
		}
		out = append(out, kv)
	}
	keys := make([]string, 0, len(overrides))
	for k := range overrides {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		out = append(out, k+"="+overrides[k])
	}
	return out
}
