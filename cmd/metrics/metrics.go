package metrics

import (
	"os"

	"handv-deploy/cmd/root"
	"handv-deploy/internal/config"
	derrors "handv-deploy/internal/errors"
	"handv-deploy/services"

	"github.com/prometheus/common/expfmt"
	"github.com/spf13/cobra"
)

var (
	pushGatewayAddr string
)

func init() {
	root.RootCmd.AddCommand(Cmd)
	Cmd.Flags().SortFlags = false
	Cmd.Flags().StringVarP(&pushGatewayAddr, "addr", "a", "", "Pushgateway address (default: metrics.pushgateway)")
}

var Cmd = &cobra.Command{
	Use:   "metrics",
	Short: "Collect service state and push it to a Pushgateway",
	Long: `Collect the state of every supervised service as handv_service_up and push it to
the Pushgateway. Without a Pushgateway address the metrics are printed to stdout.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.App()
		m := root.Metrics()
		statuses, err := services.NewDefaultSupervisor(cfg, m, false).StatusAll()
		if err != nil {
			return err
		}
		m.ObserveServices(statuses)

		addr := pushGatewayAddr
		if addr == "" {
			addr = cfg.Metrics.Pushgateway
		}
		if addr == "" {
			return writeText(m)
		}
		if err := m.Push(cmd.Context(), addr, cfg.Metrics.Job, nil); err != nil {
			return derrors.NewBestEffortError("push metrics to "+addr, err)
		}
		return nil
	},
}

func writeText(m *services.Metrics) error {
	families, err := m.Registry().Gather()
	if err != nil {
		return err
	}
	enc := expfmt.NewEncoder(os.Stdout, expfmt.NewFormat(expfmt.TypeTextPlain))
	for _, mf := range families {
		if err := enc.Encode(mf); err != nil {
			return err
		}
	}
	return nil
}
