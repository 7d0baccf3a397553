package nginx

import (
	"handv-deploy/cmd/root"
	"handv-deploy/internal/config"
	"handv-deploy/internal/nginx"
	"handv-deploy/services"

	"github.com/spf13/cobra"
)

var nginxCmd = &cobra.Command{
	Use:   "nginx",
	Short: "Render and install the nginx site",
}

var (
	mode       string
	listenPort int
	backPort   int
	frontPort  int
	staticRoot string
	serverName string
)

func addParamFlags(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.SortFlags = false
	flags.StringVar(&mode, "mode", "static", "static/proxy")
	flags.IntVar(&listenPort, "listen-port", 60, "public nginx port")
	flags.IntVar(&backPort, "back-port", 6666, "backend port")
	flags.IntVar(&frontPort, "front-port", 6667, "frontend port (proxy mode)")
	flags.StringVar(&staticRoot, "static-root", "", "document root (static mode, default: build output)")
	flags.StringVar(&serverName, "server-name", "_", "server_name")
}

// params merges changed flags over the configured deployment options
func params(cmd *cobra.Command, cfg *config.AppConfig) nginx.Params {
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
	p := nginx.Params{
		Mode:              opts.Mode,
		ListenPort:        opts.ListenPort,
		BackendPort:       opts.BackendPort,
		ServerName:        opts.ServerName,
		ClientMaxBodySize: cfg.Nginx.ClientMaxBodySize,
		ReadTimeout:       cfg.Nginx.ReadTimeout,
	}
	if m, err := nginx.ParseMode(string(opts.Mode)); err == nil {
		p.Mode = m
	}
	if p.Mode == nginx.ModeProxy {
		p.FrontendPort = opts.FrontendPort
	} else {
		p.StaticRoot = opts.StaticRoot
	}
	return p
}

func init() {
	root.RootCmd.AddCommand(nginxCmd)
	nginxCmd.AddCommand(setupCmd, renderCmd)
	addParamFlags(setupCmd)
	addParamFlags(renderCmd)
	setupCmd.Flags().BoolVar(&skipInstall, "skip-install", false, "do not install or start the nginx package")
}
