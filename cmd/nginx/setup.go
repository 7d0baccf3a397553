package nginx

import (
	"fmt"

	"handv-deploy/internal/config"
	"handv-deploy/internal/executor"
	"handv-deploy/internal/nginx"
	"handv-deploy/internal/ui"
	"handv-deploy/services"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

var skipInstall bool

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Install nginx if needed, write the site, test and reload",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.App()
		p := params(cmd, cfg)
		if err := p.Validate(); err != nil {
			return err
		}

		installer := services.NewNginxInstaller(cfg, executor.NewOSExecutor(), afero.NewOsFs())
		if !skipInstall {
			if err := installer.EnsureInstalled(cmd.Context()); err != nil {
				return err
			}
			installer.EnsureRunning(cmd.Context())
		}
		res, err := installer.Configure(cmd.Context(), p)
		if err != nil {
			return err
		}
		printSetup(ui.New(), res, p)
		return nil
	},
}

func printSetup(out *ui.UI, res *nginx.SetupResult, p nginx.Params) {
	out.Success(fmt.Sprintf("nginx site written to %s", res.Path))
	if res.Target.LinkPath != "" {
		out.KeyValue("link", res.Target.LinkPath)
	}
	if res.Activate.ReloadError != nil {
		out.Warning(fmt.Sprintf("reload failed, the configuration is written but not active: %v", res.Activate.ReloadError))
		return
	}
	out.Success(fmt.Sprintf("nginx reloaded (%s)", res.Activate.ReloadCommand))
	out.Info(fmt.Sprintf("open http://<server>:%d/", p.ListenPort))
}
