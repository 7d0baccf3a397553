package deploy

import (
	"fmt"
	"time"

	"handv-deploy/cmd/root"
	"handv-deploy/internal/config"
	"handv-deploy/internal/nginx"
	"handv-deploy/internal/ui"
	"handv-deploy/services"

	"github.com/spf13/cobra"
)

var (
	mode         string
	listenPort   int
	backPort     int
	frontPort    int
	staticRoot   string
	serverName   string
	apiBase      string
	skipInstall  bool
	skipBuild    bool
	skipBackend  bool
	skipFrontend bool
	skipNginxPkg bool
)

var deployCmd = &cobra.Command{
	Use:   "deploy",
	Short: "Install, build, start services and configure nginx",
	Long: `Run the whole deployment: dependency install -> frontend build -> backend start
-> frontend start (proxy mode only) -> nginx configure and reload.

The first failing stage stops the run; stages that completed are not rolled back.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.App()
		opts := options(cmd, cfg)
		out := ui.New()

		report, err := services.NewDefaultDeployer(cfg, root.Metrics()).Run(cmd.Context(), opts)
		if report != nil {
			printReport(out, report)
		}
		if err != nil {
			return err
		}
		out.Success(fmt.Sprintf("deploy %s finished", report.ID))
		return nil
	},
}

// options starts from the configuration and applies only the flags given on the command line
func options(cmd *cobra.Command, cfg *config.AppConfig) services.DeployOptions {
	opts := services.DeployOptionsFromConfig(cfg)
	flags := cmd.Flags()
	if flags.Changed("mode") {
		opts.Mode = nginx.Mode(mode)
	}
	if flags.Changed("listen-port") {
		opts.ListenPort = listenPort
	}
	if flags.Changed("back-port") {
		opts.BackendPort = backPort
	}
	if flags.Changed("front-port") {
		opts.FrontendPort = frontPort
	}
	if flags.Changed("static-root") {
		opts.StaticRoot = cfg.Path(staticRoot)
	}
	if flags.Changed("server-name") {
		opts.ServerName = serverName
	}
	if flags.Changed("api-base") {
		opts.APIBase = apiBase
	}
	opts.SkipInstall = skipInstall
	opts.SkipBuild = skipBuild
	opts.SkipBackend = skipBackend
	opts.SkipFrontend = skipFrontend
	opts.SkipNginxInstall = skipNginxPkg
	return opts
}

func printReport(out *ui.UI, report *services.RunReport) {
	out.Header(fmt.Sprintf("deploy %s (%s)", report.ID, report.Mode))
	for _, st := range report.Stages {
		switch {
		case st.Skipped:
			out.Subtle(fmt.Sprintf("- %-9s skipped", st.Name))
		case st.Err != nil:
			out.Error(fmt.Sprintf("%-9s failed after %s", st.Name, st.Duration.Round(time.Millisecond)))
		default:
			out.Success(fmt.Sprintf("%-9s %s", st.Name, st.Duration.Round(time.Millisecond)))
		}
	}
	for _, svc := range report.Services {
		if svc.Pid > 0 {
			out.KeyValue(svc.Name, fmt.Sprintf("%s (PID %d, log %s)", svc.State, svc.Pid, svc.LogFile))
		}
	}
	out.KeyValue("api base", report.APIBase)
	if report.Nginx != nil && report.Nginx.Path != "" {
		out.KeyValue("nginx", report.Nginx.Path)
		if report.Nginx.Activate.ReloadError != nil {
			out.Warning(fmt.Sprintf("nginx reload failed, the configuration is written but not active: %v", report.Nginx.Activate.ReloadError))
		}
	}
}

func init() {
	root.RootCmd.AddCommand(deployCmd)
	flags := deployCmd.Flags()
	flags.SortFlags = false
	flags.StringVar(&mode, "mode", "static", "nginx mode: static serves the build output, proxy forwards to the frontend process")
	flags.IntVar(&listenPort, "listen-port", 60, "public nginx port")
	flags.IntVar(&backPort, "back-port", 6666, "backend port")
	flags.IntVar(&frontPort, "front-port", 6667, "frontend port (proxy mode)")
	flags.StringVar(&staticRoot, "static-root", "", "nginx document root (static mode, default: build output)")
	flags.StringVar(&serverName, "server-name", "_", "nginx server_name, also used for the default API base")
	flags.StringVar(&apiBase, "api-base", "", "API base injected into the build (default: http://<server-name>:<back-port>/api)")
	flags.BoolVar(&skipInstall, "skip-install", false, "skip dependency install")
	flags.BoolVar(&skipBuild, "skip-build", false, "skip frontend build")
	flags.BoolVar(&skipBackend, "skip-backend", false, "skip backend start")
	flags.BoolVar(&skipFrontend, "skip-frontend", false, "skip frontend start (proxy mode)")
	flags.BoolVar(&skipNginxPkg, "skip-nginx-install", false, "do not install or start the nginx package")

	deployCmd.Example = `  # static hosting on port 60
  handv deploy --server-name 8.163.7.207

  # proxy mode, reuse an existing build
  handv deploy --mode proxy --front-port 8080 --skip-install --skip-build`
}
