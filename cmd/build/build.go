package build

import (
	"fmt"

	"handv-deploy/cmd/root"
	"handv-deploy/internal/config"
	"handv-deploy/internal/executor"
	"handv-deploy/internal/ui"
	"handv-deploy/services"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

var (
	apiBase string
	clean   bool
	env     map[string]string
)

func newBuilder(cfg *config.AppConfig) *services.Builder {
	return services.NewBuilder(executor.NewOSExecutor(), afero.NewOsFs(), cfg)
}

var installCmd = &cobra.Command{
	Use:   "install",
	Short: "Install frontend and backend dependencies (npm ci / npm install)",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		b := newBuilder(config.App())
		if err := b.EnsureToolchain(cmd.Context()); err != nil {
			return err
		}
		if err := b.Install(cmd.Context()); err != nil {
			return err
		}
		ui.New().Success("dependencies installed")
		return nil
	},
}

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Build the frontend bundle with the API base injected",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.App()
		opts := services.BuildOptions{
			APIBase: services.DeployOptionsFromConfig(cfg).ResolvedAPIBase(),
			Env:     env,
			Clean:   cfg.Build.CleanOutput,
		}
		if cmd.Flags().Changed("api-base") {
			opts.APIBase = apiBase
		}
		if cmd.Flags().Changed("clean") {
			opts.Clean = clean
		}

		b := newBuilder(cfg)
		if err := b.EnsureToolchain(cmd.Context()); err != nil {
			return err
		}
		if err := b.Build(cmd.Context(), opts); err != nil {
			return err
		}
		ui.New().Success(fmt.Sprintf("bundle written to %s", cfg.OutputDir()))
		return nil
	},
}

func init() {
	root.RootCmd.AddCommand(installCmd, buildCmd)
	buildCmd.Flags().StringVar(&apiBase, "api-base", "", "API base URL, empty string to leave it unset (default: derived from nginx settings)")
	buildCmd.Flags().BoolVar(&clean, "clean", false, "remove the output directory before building")
	buildCmd.Flags().StringToStringVarP(&env, "env", "e", nil, "extra build environment, KEY=VALUE")
}
