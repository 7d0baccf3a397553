//go:build windows

package utils

import (
	"errors"
	"fmt"
	"os/exec"
	"syscall"

	"golang.org/x/sys/windows"
)

// exit code GetExitCodeProcess reports for a process that has not exited
const stillActive = 259

// SetNewPG puts the child in its own process group so console Ctrl+C stays with the CLI
func SetNewPG(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{CreationFlags: windows.CREATE_NEW_PROCESS_GROUP}
}

func openProcess(pid int, access uint32) (windows.Handle, error) {
	if err := checkPid(pid); err != nil {
		return 0, err
	}
	return windows.OpenProcess(access, false, uint32(pid))
}

// IsProcessRunning reads the exit code. A pid that cannot be opened because it is
// gone is not running; one we may not query belongs to someone else and is.
func IsProcessRunning(pid int) (bool, error) {
	h, err := openProcess(pid, windows.PROCESS_QUERY_LIMITED_INFORMATION)
	switch {
	case errors.Is(err, windows.ERROR_INVALID_PARAMETER):
		return false, nil
	case errors.Is(err, windows.ERROR_ACCESS_DENIED):
		return true, nil
	case err != nil:
		return false, fmt.Errorf("open process %d: %w", pid, err)
	}
	defer windows.CloseHandle(h)

	var code uint32
	if err := windows.GetExitCodeProcess(h, &code); err != nil {
		return false, fmt.Errorf("exit code of process %d: %w", pid, err)
	}
	return code == stillActive, nil
}

// TerminateProcess has no graceful variant here, it is the same as KillProcessByPID
func TerminateProcess(pid int) error {
	return KillProcessByPID(pid)
}

func KillProcessByPID(pid int) error {
	h, err := openProcess(pid, windows.PROCESS_TERMINATE)
	if err != nil {
		return fmt.Errorf("open process %d: %w", pid, err)
	}
	defer windows.CloseHandle(h)
	if err := windows.TerminateProcess(h, 1); err != nil {
		return fmt.Errorf("terminate process %d: %w", pid, err)
	}
	return nil
}
