package service

import (
	"errors"
	"fmt"

	"handv-deploy/cmd/root"
	"handv-deploy/internal/ui"

	"github.com/spf13/cobra"
)

func newRestartCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "restart [service|all]",
		Short: "Stop then start services",
		Long:  "Stop then start services. A failed stop is reported as a warning and the start still runs.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := ui.New()
			sup := newSupervisor(force)
			names, err := sup.Expand(target(args), false)
			if err != nil {
				return err
			}
			var errs []error
			for _, n := range names {
				st, err := sup.Restart(cmd.Context(), n)
				if err != nil {
					out.Error(fmt.Sprintf("%s: %v", n, err))
					errs = append(errs, err)
					continue
				}
				out.Success(fmt.Sprintf("%s %s (PID %d)", n, st.State, st.Pid))
			}
			root.PushMetrics(cmd.Context())
			return errors.Join(errs...)
		},
	}
	cmd.Flags().BoolVarP(&force, "force", "f", false, "send SIGKILL when the process outlives stop_timeout")
	return cmd
}
