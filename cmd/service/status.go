package service

import (
	"context"
	"encoding/json"
	"io"
	"strconv"

	"handv-deploy/internal/config"
	derrors "handv-deploy/internal/errors"
	"handv-deploy/internal/logger"
	"handv-deploy/internal/models"
	"handv-deploy/internal/rpc"
	"handv-deploy/internal/ui"
	"handv-deploy/internal/utils"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func newStatusCmd() *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "status [service|all]",
		Short: "Show service state (unknown/stale/running)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sup := newSupervisor(false)
			names, err := sup.Expand(target(args), false)
			if err != nil {
				return err
			}
			var statuses []models.ServiceStatus
			for _, n := range names {
				st, err := sup.Status(n)
				if err != nil {
					return err
				}
				if st.State == models.StateRunning && st.Port > 0 {
					st.Listening = utils.CheckPortConnectable(st.Port)
					st.Health = probe(cmd.Context(), n, st.Port)
				}
				statuses = append(statuses, st)
			}
			return printStatuses(ui.New(), statuses, output)
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "table", "output format: table/json/yaml")
	return cmd
}

func probe(ctx context.Context, name string, port int) string {
	svc, err := config.App().Service(name)
	if err != nil || svc.HealthPath == "" {
		return ""
	}
	if err := rpc.Ping(ctx, port, svc.HealthPath); err != nil {
		logger.Debugf("%s %s: %v", name, svc.HealthPath, err)
		return "unreachable"
	}
	return "ok"
}

/**
 * Print service statuses
 * @param {*ui.UI} out - output
 * @param {[]models.ServiceStatus} statuses - statuses to print
 * @param {string} format - table/json/yaml
 * @returns {error} unknown format or encoding error
 */
func printStatuses(out *ui.UI, statuses []models.ServiceStatus, format string) error {
	switch format {
	case "json":
		enc := json.NewEncoder(out.Out())
		enc.SetIndent("", "  ")
		return enc.Encode(statuses)
	case "yaml":
		return writeYAML(out.Out(), statuses)
	case "table", "":
		table := out.NewTable("NAME", "STATE", "PID", "PORT", "LISTENING", "HEALTH", "LOG")
		for _, st := range statuses {
			pid := "-"
			if st.Pid > 0 {
				pid = strconv.Itoa(st.Pid)
			}
			listening := "-"
			if st.State == models.StateRunning && st.Port > 0 {
				listening = strconv.FormatBool(st.Listening)
			}
			health := st.Health
			if health == "" {
				health = "-"
			}
			table.AddRow(st.Name, ui.State(st.State), pid, strconv.Itoa(st.Port), listening, health, st.LogFile)
		}
		table.Render()
		return nil
	}
	return derrors.NewPreconditionError("unknown output format %q, expected table/json/yaml", format)
}

func writeYAML(w io.Writer, v interface{}) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	defer enc.Close()
	return enc.Encode(v)
}
