package service

import (
	"context"
	"errors"
	"fmt"

	"handv-deploy/cmd/root"
	"handv-deploy/internal/ui"

	"github.com/spf13/cobra"
)

func newStopCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "stop [service|all]",
		Short: "Stop services and remove their PID files",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			err := stopServices(cmd.Context(), ui.New(), target(args), force)
			root.PushMetrics(cmd.Context())
			return err
		},
	}
	cmd.Flags().BoolVarP(&force, "force", "f", false, "send SIGKILL when the process outlives stop_timeout")
	return cmd
}

// stopServices stops in reverse configuration order so the frontend goes before the backend
func stopServices(ctx context.Context, out *ui.UI, name string, force bool) error {
	sup := newSupervisor(force)
	names, err := sup.Expand(name, true)
	if err != nil {
		return err
	}
	var errs []error
	for _, n := range names {
		if err := sup.Stop(ctx, n); err != nil {
			out.Error(fmt.Sprintf("%s: %v", n, err))
			errs = append(errs, err)
			continue
		}
		out.Success(fmt.Sprintf("%s stopped", n))
	}
	return errors.Join(errs...)
}
