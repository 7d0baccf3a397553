package services

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"handv-deploy/internal/config"
	"handv-deploy/internal/logger"
	"handv-deploy/internal/models"
	"handv-deploy/internal/utils"
)

// Preview serves the built bundle locally without nginx
type Preview struct {
	cfg        *config.AppConfig
	supervisor *Supervisor
	metrics    *Metrics
	startTime  time.Time
	dist       string
	backend    *url.URL
}

/**
 * Create preview state
 * @param {*config.AppConfig} cfg - configuration, backend port and output dir are read from it
 * @param {*Supervisor} supervisor - reports service state in /healthz, may be nil
 * @param {*Metrics} metrics - request metrics
 * @returns {(*Preview, error)}
 */
func NewPreview(cfg *config.AppConfig, supervisor *Supervisor, metrics *Metrics) (*Preview, error) {
	backend, err := cfg.Service(config.BackendService)
	if err != nil {
		return nil, fmt.Errorf("preview requires the %s service: %w", config.BackendService, err)
	}
	if err := config.ValidatePort(backend.Name, backend.Port); err != nil {
		return nil, err
	}
	u, err := url.Parse(fmt.Sprintf("http://127.0.0.1:%d", backend.Port))
	if err != nil {
		return nil, err
	}
	return &Preview{
		cfg:        cfg,
		supervisor: supervisor,
		metrics:    metrics,
		startTime:  time.Now(),
		dist:       cfg.OutputDir(),
		backend:    u,
	}, nil
}

func (p *Preview) Dist() string {
	return p.dist
}

func (p *Preview) BackendURL() *url.URL {
	return p.backend
}

func (p *Preview) Metrics() *Metrics {
	return p.metrics
}

func (p *Preview) Supervisor() *Supervisor {
	return p.supervisor
}

// CheckDist fails when the bundle has not been built
func (p *Preview) CheckDist() error {
	if _, err := os.Stat(filepath.Join(p.dist, "index.html")); err != nil {
		return fmt.Errorf("%s has no index.html, run build first: %w", p.dist, err)
	}
	return nil
}

// Health reports preview uptime and the state of every supervised service
func (p *Preview) Health() models.HealthResponse {
	resp := models.HealthResponse{
		Status:    "UP",
		StartTime: p.startTime.Format(time.RFC3339),
		Uptime:    time.Since(p.startTime).Round(time.Second).String(),
		Dist:      p.dist,
		Services:  []models.ServiceStatus{},
	}
	if p.supervisor == nil {
		return resp
	}
	statuses, err := p.supervisor.StatusAll()
	if err != nil {
		logger.Warnf("collect service status failed: %v", err)
		resp.Status = "DEGRADED"
	}
	for _, st := range statuses {
		if st.State == models.StateRunning && st.Port > 0 {
			st.Listening = utils.CheckPortConnectable(st.Port)
		}
		resp.Services = append(resp.Services, st)
	}
	p.metrics.ObserveServices(resp.Services)
	return resp
}
