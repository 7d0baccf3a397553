package controllers

import (
	"net"
	"net/http"
	"net/http/httputil"
	"os"
	"path"
	"path/filepath"

	"handv-deploy/internal/logger"
	"handv-deploy/internal/models"
	"handv-deploy/services"

	"github.com/gin-gonic/gin"
)

type PreviewController struct {
	preview *services.Preview
	proxy   *httputil.ReverseProxy
}

/**
 * Create preview controller
 * @param {*services.Preview} preview - preview state (bundle directory, backend address, metrics)
 * @returns {*PreviewController}
 * @description
 * - /api/ and /uploads/ are forwarded to the backend with the original path
 * - an unreachable backend answers 502 with an ErrorResponse body
 */
func NewPreviewController(preview *services.Preview) *PreviewController {
	proxy := httputil.NewSingleHostReverseProxy(preview.BackendURL())
	director := proxy.Director
	proxy.Director = func(r *http.Request) {
		director(r)
		r.Header.Set("X-Forwarded-Proto", scheme(r))
		if r.Header.Get("X-Real-IP") == "" {
			if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
				r.Header.Set("X-Real-IP", host)
			}
		}
	}
	proxy.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		logger.Warnf("proxy %s %s: %v", r.Method, r.URL.Path, err)
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(`{"code":"preview.backend_unavailable","error":"backend unavailable"}`))
	}
	return &PreviewController{preview: preview, proxy: proxy}
}

func scheme(r *http.Request) string {
	if r.TLS != nil {
		return "https"
	}
	return "http"
}

func (p *PreviewController) RegisterRoutes(r *gin.Engine) {
	r.GET("/healthz", p.Healthz)
	r.GET("/metrics", gin.WrapH(p.preview.Metrics().Handler()))
	r.Any("/api/*path", p.Proxy)
	r.Any("/uploads/*path", p.Proxy)
	r.NoRoute(p.Static)
}

// @Summary 预览服务健康检查
// @Tags System
// @Produce json
// @Success 200 {object} models.HealthResponse
// @Router /healthz [get]
func (p *PreviewController) Healthz(c *gin.Context) {
	c.JSON(http.StatusOK, p.preview.Health())
}

func (p *PreviewController) Proxy(c *gin.Context) {
	p.proxy.ServeHTTP(c.Writer, c.Request)
}

/**
 * Serve the bundle with history API fallback
 * @description
 * - existing files are served as is
 * - directories serve their index.html
 * - anything else falls back to the root index.html
 */
func (p *PreviewController) Static(c *gin.Context) {
	if c.Request.Method != http.MethodGet && c.Request.Method != http.MethodHead {
		c.JSON(http.StatusMethodNotAllowed, models.ErrorResponse{Code: "preview.method_not_allowed", Error: c.Request.Method})
		return
	}
	dist := p.preview.Dist()
	// path.Clean 以 "/" 开头，不会越出 dist
	rel := path.Clean("/" + c.Request.URL.Path)
	file := filepath.Join(dist, filepath.FromSlash(rel))

	if info, err := os.Stat(file); err == nil {
		if !info.IsDir() {
			c.File(file)
			return
		}
		index := filepath.Join(file, "index.html")
		if _, err := os.Stat(index); err == nil {
			c.File(index)
			return
		}
	}
	index := filepath.Join(dist, "index.html")
	if _, err := os.Stat(index); err != nil {
		c.JSON(http.StatusNotFound, models.ErrorResponse{Code: "preview.not_built", Error: "index.html not found in " + dist})
		return
	}
	c.File(index)
}
