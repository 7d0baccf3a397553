//go:build unix

package utils

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"syscall"
)

// SetNewPG 设置进程属性，使子进程在父进程退出后继续运行
// 新建会话，脱离控制终端（相当于 nohup ... &）
func SetNewPG(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setsid: true,
	}
}

// IsProcessRunning 发送 signal 0 检查进程是否存在
// ESRCH 表示进程不存在；EPERM 表示进程存在但属于其他用户
func IsProcessRunning(pid int) (bool, error) {
	if err := checkPid(pid); err != nil {
		return false, err
	}
	process, err := os.FindProcess(pid)
	if err != nil {
		return false, fmt.Errorf("failed to find process with PID %d: %v", pid, err)
	}
	err = process.Signal(syscall.Signal(0))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, syscall.EPERM) {
		return true, nil
	}
	if errors.Is(err, syscall.ESRCH) || errors.Is(err, os.ErrProcessDone) {
		return false, nil
	}
	return false, fmt.Errorf("signal 0 to PID %d failed: %w", pid, err)
}

// TerminateProcess 发送 SIGTERM，请求进程优雅退出
func TerminateProcess(pid int) error {
	return sendSignal(pid, syscall.SIGTERM)
}

// KillProcessByPID 发送 SIGKILL 强制结束进程
func KillProcessByPID(pid int) error {
	return sendSignal(pid, syscall.SIGKILL)
}

func sendSignal(pid int, sig syscall.Signal) error {
	if err := checkPid(pid); err != nil {
		return err
	}
	process, err := os.FindProcess(pid)
	if err != nil {
		return fmt.Errorf("failed to find process with PID %d: %v", pid, err)
	}
	if err := process.Signal(sig); err != nil {
		return fmt.Errorf("failed to send %v to process with PID %d: %w", sig, pid, err)
	}
	return nil
}
