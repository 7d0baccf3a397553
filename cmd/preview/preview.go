package preview

import (
	"context"
	"errors"
	"net/http"
	"time"

	"handv-deploy/cmd/root"
	"handv-deploy/controllers"
	"handv-deploy/internal/config"
	"handv-deploy/internal/logger"
	"handv-deploy/internal/middleware"
	"handv-deploy/internal/ui"
	"handv-deploy/services"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
)

var (
	address      string
	startBackend bool
	admin        bool
)

var previewCmd = &cobra.Command{
	Use:   "preview",
	Short: "Serve the built bundle with SPA fallback, proxying /api and /uploads to the backend",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.App()
		if cmd.Flags().Changed("addr") {
			cfg.Preview.Address = address
		}
		if cmd.Flags().Changed("admin") {
			cfg.Preview.Admin = admin
		}
		return runPreview(cmd.Context(), cfg)
	},
}

// NewEngine builds the preview router; the service API is registered only when admin is enabled
func NewEngine(preview *services.Preview, admin bool) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), middleware.MetricsMiddleware(preview.Metrics()))
	if admin && preview.Supervisor() != nil {
		controllers.NewServiceController(preview.Supervisor()).RegisterRoutes(router)
	}
	controllers.NewPreviewController(preview).RegisterRoutes(router)
	return router
}

/**
 * Run the preview server until ctx is cancelled
 * @param {context.Context} ctx - cancelled on SIGINT/SIGTERM
 * @param {*config.AppConfig} cfg - configuration
 * @returns {error} listen errors
 */
func runPreview(ctx context.Context, cfg *config.AppConfig) error {
	gin.SetMode(gin.ReleaseMode)
	sup := services.NewDefaultSupervisor(cfg, root.Metrics(), false)
	preview, err := services.NewPreview(cfg, sup, root.Metrics())
	if err != nil {
		return err
	}
	if err := preview.CheckDist(); err != nil {
		logger.Warnf("%v", err)
	}
	out := ui.New()
	if startBackend {
		st, err := sup.Start(ctx, config.BackendService)
		if err != nil {
			return err
		}
		out.Success("backend " + st.State.String())
	}

	srv := &http.Server{
		Addr:              cfg.Preview.Address,
		Handler:           NewEngine(preview, cfg.Preview.Admin),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	out.Info("preview serving " + preview.Dist() + " on http://" + cfg.Preview.Address + "/")

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	logger.Infof("preview server shutting down")
	return srv.Shutdown(shutdownCtx)
}

func init() {
	root.RootCmd.AddCommand(previewCmd)
	previewCmd.Flags().StringVar(&address, "addr", "0.0.0.0:8080", "listen address")
	previewCmd.Flags().BoolVar(&startBackend, "start-backend", false, "start the backend service before serving")
	previewCmd.Flags().BoolVar(&admin, "admin", false, "expose /handv/api/v1/services start/stop endpoints")
}
