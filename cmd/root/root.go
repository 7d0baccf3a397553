package root

import (
	"context"

	"handv-deploy/internal/config"
	derrors "handv-deploy/internal/errors"
	"handv-deploy/internal/logger"
	"handv-deploy/services"

	"github.com/spf13/cobra"
)

var (
	configFile string
	rootDir    string
	logLevel   string

	metrics = services.NewMetrics()
)

var RootCmd = &cobra.Command{
	Use:   "handv",
	Short: "Deploy and supervise the handv web application",
	Long: `handv installs dependencies, builds the frontend, starts the backend and frontend
processes (tracked by PID files) and configures nginx in front of them.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: initConfig,
}

/**
 * Load configuration and initialize logging before every command
 * @description
 * - --config selects the file, otherwise handv.yaml is searched in the root and "."
 * - --log-level overrides log.level
 */
func initConfig(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig(configFile, rootDir)
	if err != nil {
		return derrors.NewPreconditionError("load configuration: %v", err)
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	if err := logger.InitLogger(cfg.Log.Path, cfg.Log.Level); err != nil {
		return derrors.NewPreconditionError("init logger: %v", err)
	}
	if err := cfg.ValidateServices(); err != nil {
		return err
	}
	config.SetApp(cfg)
	logger.Debugf("deployment root: %s", cfg.Root)
	return nil
}

// Metrics returns the collectors shared by every command of this invocation
func Metrics() *services.Metrics {
	return metrics
}

// PushMetrics pushes to the configured Pushgateway; failures are only logged
func PushMetrics(ctx context.Context) {
	cfg := config.App()
	if err := metrics.Push(ctx, cfg.Metrics.Pushgateway, cfg.Metrics.Job, nil); err != nil {
		logger.Warnf("push metrics to %s failed: %v", cfg.Metrics.Pushgateway, err)
	}
}

func init() {
	RootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "configuration file (default: handv.yaml in the deployment root)")
	RootCmd.PersistentFlags().StringVar(&rootDir, "root", "", "deployment root (default: $HANDV_ROOT or the working directory)")
	RootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug/info/warn/error")
}
