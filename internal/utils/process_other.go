//go:build !windows && !unix

package utils

import (
	"os/exec"
)

// SetNewPG 默认实现，用于不支持的构建目标
func SetNewPG(cmd *exec.Cmd) {
}

func IsProcessRunning(pid int) (bool, error) {
	return false, ErrUnsupported
}

func TerminateProcess(pid int) error {
	return ErrUnsupported
}

func KillProcessByPID(pid int) error {
	return ErrUnsupported
}
