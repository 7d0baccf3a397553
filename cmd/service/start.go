package service

import (
	"context"
	"errors"
	"fmt"

	"handv-deploy/cmd/root"
	"handv-deploy/internal/models"
	"handv-deploy/internal/ui"

	"github.com/spf13/cobra"
)

func newStartCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "start [service|all]",
		Short: "Start services that are not running",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			err := startServices(cmd.Context(), ui.New(), target(args))
			root.PushMetrics(cmd.Context())
			return err
		},
	}
}

/**
 * Start one service or all of them
 * @param {context.Context} ctx - cancels the startup wait
 * @param {*ui.UI} out - output
 * @param {string} name - service name or "all"
 * @returns {error} joined errors of every service that failed to start
 * @description
 * - services already running are left alone
 * - with "all" a failing service does not prevent the next one
 */
func startServices(ctx context.Context, out *ui.UI, name string) error {
	sup := newSupervisor(false)
	names, err := sup.Expand(name, false)
	if err != nil {
		return err
	}
	var errs []error
	for _, n := range names {
		st, err := sup.Start(ctx, n)
		if err != nil {
			out.Error(fmt.Sprintf("%s: %v", n, err))
			errs = append(errs, err)
			continue
		}
		switch st.State {
		case models.StateRunning:
			out.Success(fmt.Sprintf("%s running (PID %d, log %s)", n, st.Pid, st.LogFile))
		default:
			out.Warning(fmt.Sprintf("%s exited right after start, see %s", n, st.LogFile))
		}
	}
	return errors.Join(errs...)
}
