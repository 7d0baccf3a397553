package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies a deployment error by how the caller must react to it
type Kind string

const (
	// 执行前检测到的问题：缺少工具、端口非法、目录不存在
	KindPrecondition Kind = "precondition"
	// 外部命令非零退出
	KindExecution Kind = "execution"
	// 代理配置渲染或校验失败，禁止重载
	KindConfiguration Kind = "configuration"
	// 只记录告警，不影响整体结果
	KindBestEffort Kind = "best_effort"
	KindInternal   Kind = "internal"
)

/**
 * DeployError carries the kind, a message, the underlying cause and,
 * for execution/configuration errors, the captured command output.
 */
type DeployError struct {
	Kind    Kind
	Message string
	Cause   error
	Output  string
}

func (e *DeployError) Error() string {
	var sb strings.Builder
	sb.WriteString(string(e.Kind))
	sb.WriteString(": ")
	sb.WriteString(e.Message)
	if e.Cause != nil {
		sb.WriteString(": ")
		sb.WriteString(e.Cause.Error())
	}
	if out := strings.TrimRight(e.Output, "\n"); out != "" {
		sb.WriteString("\n")
		sb.WriteString(out)
	}
	return sb.String()
}

func (e *DeployError) Unwrap() error {
	return e.Cause
}

// Is matches any DeployError of the same kind
func (e *DeployError) Is(target error) bool {
	if other, ok := target.(*DeployError); ok {
		return e.Kind == other.Kind
	}
	return false
}

func New(kind Kind, message string, cause error) *DeployError {
	return &DeployError{Kind: kind, Message: message, Cause: cause}
}

func NewPreconditionError(format string, args ...interface{}) *DeployError {
	return New(KindPrecondition, fmt.Sprintf(format, args...), nil)
}

// NewExecutionError records a failed command together with both of its output streams
func NewExecutionError(command string, stdout, stderr string, cause error) *DeployError {
	e := New(KindExecution, fmt.Sprintf("command failed: %s", command), cause)
	var sb strings.Builder
	if stdout != "" {
		sb.WriteString("STDOUT:\n")
		sb.WriteString(stdout)
		if !strings.HasSuffix(stdout, "\n") {
			sb.WriteString("\n")
		}
	}
	if stderr != "" {
		sb.WriteString("STDERR:\n")
		sb.WriteString(stderr)
	}
	e.Output = sb.String()
	return e
}

func NewConfigurationError(message string, output string, cause error) *DeployError {
	e := New(KindConfiguration, message, cause)
	e.Output = output
	return e
}

func NewBestEffortError(message string, cause error) *DeployError {
	return New(KindBestEffort, message, cause)
}

func NewInternalError(message string, cause error) *DeployError {
	return New(KindInternal, message, cause)
}

func kindOf(err error) (Kind, bool) {
	var de *DeployError
	if errors.As(err, &de) {
		return de.Kind, true
	}
	return "", false
}

func IsPrecondition(err error) bool {
	k, ok := kindOf(err)
	return ok && k == KindPrecondition
}

func IsExecution(err error) bool {
	k, ok := kindOf(err)
	return ok && k == KindExecution
}

func IsConfiguration(err error) bool {
	k, ok := kindOf(err)
	return ok && k == KindConfiguration
}

func IsBestEffort(err error) bool {
	k, ok := kindOf(err)
	return ok && k == KindBestEffort
}

// ExitCode maps an error to the process exit status of the CLI
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	if IsPrecondition(err) {
		return 2
	}
	return 1
}
