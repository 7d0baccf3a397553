package utils

import (
	"errors"
	"fmt"
)

// ErrUnsupported is returned by process helpers on build targets without an implementation
var ErrUnsupported = errors.New("operation not supported on this platform")

/**
 * Probe whether pid refers to a live process
 * @param {int} pid - process identifier
 * @returns {bool} true when the process exists
 * @description
 * - Non-positive PIDs are never alive
 * - A process owned by another user (EPERM) is alive
 * - Any probe failure is reported as not alive
 */
func IsAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	running, err := IsProcessRunning(pid)
	if err != nil {
		return false
	}
	return running
}

func checkPid(pid int) error {
	if pid <= 0 {
		return fmt.Errorf("invalid PID %d", pid)
	}
	return nil
}
