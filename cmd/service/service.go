package service

import (
	"handv-deploy/cmd/root"
	"handv-deploy/internal/config"
	"handv-deploy/services"

	"github.com/spf13/cobra"
)

var serviceCmd = &cobra.Command{
	Use:   "service",
	Short: "Service operations (start/stop/restart/status)",
	Long: `Service operations (start/stop/restart/status).

Services are tracked by PID files under the deployment root. A service is
"running" when its PID file points at a live process, "stale" when the
process is gone, and "unknown" when there is no PID file.`,
}

const serviceExample = `  # start backend and frontend
  handv service start all

  # stop the backend, SIGKILL it if it does not exit within stop_timeout
  handv service stop backend --force`

func newSupervisor(force bool) *services.Supervisor {
	return services.NewDefaultSupervisor(config.App(), root.Metrics(), force)
}

func target(args []string) string {
	if len(args) == 0 {
		return services.AllServices
	}
	return args[0]
}

func init() {
	root.RootCmd.AddCommand(serviceCmd)

	serviceCmd.Example = serviceExample
	serviceCmd.AddCommand(newStartCmd(), newStopCmd(), newRestartCmd(), newStatusCmd())
	// 兼容独立的 start/stop/status 脚本
	root.RootCmd.AddCommand(newStartCmd(), newStopCmd(), newStatusCmd())
}
