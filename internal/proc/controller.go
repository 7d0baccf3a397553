package proc

import (
	"handv-deploy/internal/utils"
)

// Controller probes and signals processes by PID
type Controller interface {
	// IsAlive performs a signal-0 style liveness probe
	IsAlive(pid int) bool
	// Terminate asks the process to exit (SIGTERM)
	Terminate(pid int) error
	// Kill forces the process to exit (SIGKILL)
	Kill(pid int) error
}

type OSController struct{}

func NewOSController() *OSController {
	return &OSController{}
}

func (OSController) IsAlive(pid int) bool {
	return utils.IsAlive(pid)
}

func (OSController) Terminate(pid int) error {
	return utils.TerminateProcess(pid)
}

func (OSController) Kill(pid int) error {
	return utils.KillProcessByPID(pid)
}
