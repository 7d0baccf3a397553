package executor

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// Fake is an in-memory Executor. Responses are matched by command-line prefix,
// longest prefix first; unmatched commands succeed with empty output.
type Fake struct {
	mu        sync.Mutex
	responses map[string]fakeResponse
	tools     map[string]bool
	Calls     []Command
}

type fakeResponse struct {
	result Result
	err    error
}

func NewFake(tools ...string) *Fake {
	f := &Fake{
		responses: make(map[string]fakeResponse),
		tools:     make(map[string]bool),
	}
	for _, t := range tools {
		f.tools[t] = true
	}
	return f
}

// AddTool makes LookPath succeed for name
func (f *Fake) AddTool(name string) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tools[name] = true
	return f
}

// On registers the result returned for commands whose line starts with prefix
func (f *Fake) On(prefix string, res Result) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.responses[prefix] = fakeResponse{result: res}
	return f
}

// OnError makes commands starting with prefix fail to start
func (f *Fake) OnError(prefix string, err error) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.responses[prefix] = fakeResponse{err: err}
	return f
}

func (f *Fake) LookPath(name string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.tools[name] {
		return "/usr/bin/" + name, nil
	}
	return "", fmt.Errorf("exec: %q: executable file not found in $PATH", name)
}

func (f *Fake) Run(ctx context.Context, cmd Command) (*Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls = append(f.Calls, cmd)

	line := cmd.String()
	best := ""
	for prefix := range f.responses {
		if strings.HasPrefix(line, prefix) && len(prefix) > len(best) {
			best = prefix
		}
	}
	if best == "" {
		return &Result{}, nil
	}
	resp := f.responses[best]
	if resp.err != nil {
		return &Result{ExitCode: -1}, resp.err
	}
	res := resp.result
	return &res, nil
}

// CommandLines returns every executed command line in order
func (f *Fake) CommandLines() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	lines := make([]string, 0, len(f.Calls))
	for _, c := range f.Calls {
		lines = append(lines, c.String())
	}
	return lines
}
