package services

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"handv-deploy/internal/logger"
	"handv-deploy/internal/models"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/client_golang/prometheus/push"
)

const (
	ResultSuccess = "success"
	ResultFailure = "failure"
	ResultSkipped = "skipped"
	ResultNoop    = "noop"
)

/**
 * Metrics groups the collectors of one handv invocation
 * @description
 * - lifecycle operations per service/op/result
 * - deploy stage durations and failures
 * - preview server requests
 * - every collector lives in a private registry so tests do not share state
 */
type Metrics struct {
	registry        *prometheus.Registry
	lifecycleOps    *prometheus.CounterVec
	stageDuration   *prometheus.HistogramVec
	stageFailures   *prometheus.CounterVec
	serviceUp       *prometheus.GaugeVec
	requestCount    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
}

func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		lifecycleOps: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "handv_lifecycle_operations_total",
				Help: "Lifecycle operations by service, operation and result",
			},
			[]string{"service", "op", "result"},
		),
		stageDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "handv_stage_duration_seconds",
				Help:    "Duration of deploy stages",
				Buckets: []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300, 600},
			},
			[]string{"stage"},
		),
		stageFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "handv_stage_failures_total",
				Help: "Failed deploy stages",
			},
			[]string{"stage"},
		),
		serviceUp: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "handv_service_up",
				Help: "1 when the service PID record points at a live process",
			},
			[]string{"service", "state"},
		),
		requestCount: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "handv_preview_requests_total",
				Help: "Requests served by the preview server",
			},
			[]string{"route", "code"},
		),
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "handv_preview_request_duration_seconds",
				Help:    "Duration of preview server requests",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"route"},
		),
	}
	m.registry.MustRegister(
		m.lifecycleOps,
		m.stageDuration,
		m.stageFailures,
		m.serviceUp,
		m.requestCount,
		m.requestDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) ObserveLifecycle(service, op, result string) {
	if m == nil {
		return
	}
	m.lifecycleOps.WithLabelValues(service, op, result).Inc()
}

func (m *Metrics) ObserveStage(stage string, d time.Duration, err error) {
	if m == nil {
		return
	}
	m.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
	if err != nil {
		m.stageFailures.WithLabelValues(stage).Inc()
	}
}

// ObserveServices records one gauge per service, labelled with its current state
func (m *Metrics) ObserveServices(statuses []models.ServiceStatus) {
	if m == nil {
		return
	}
	m.serviceUp.Reset()
	for _, st := range statuses {
		up := 0.0
		if st.State == models.StateRunning {
			up = 1
		}
		m.serviceUp.WithLabelValues(st.Name, st.State.String()).Set(up)
	}
}

func (m *Metrics) ObserveRequest(route string, code int, d time.Duration) {
	if m == nil {
		return
	}
	if route == "" {
		route = "unknown"
	}
	m.requestCount.WithLabelValues(route, strconv.Itoa(code)).Inc()
	m.requestDuration.WithLabelValues(route).Observe(d.Seconds())
}

// Handler exposes the registry in the Prometheus text format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

/**
 * Push the registry to a Pushgateway
 * @param {context.Context} ctx - request context
 * @param {string} addr - Pushgateway URL, nothing is pushed when empty
 * @param {string} job - job label
 * @param {map[string]string} grouping - extra grouping labels (run id)
 * @returns {error} push error
 */
func (m *Metrics) Push(ctx context.Context, addr, job string, grouping map[string]string) error {
	if m == nil || addr == "" {
		return nil
	}
	pusher := push.New(addr, job).Gatherer(m.registry)
	for k, v := range grouping {
		pusher = pusher.Grouping(k, v)
	}
	if err := pusher.PushContext(ctx); err != nil {
		return err
	}
	logger.Infof("metrics pushed to %s (job %s)", addr, job)
	return nil
}
