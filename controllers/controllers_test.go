package controllers

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"handv-deploy/internal/config"
	"handv-deploy/internal/models"
	"handv-deploy/internal/proc"
	"handv-deploy/internal/registry"
	"handv-deploy/services"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubProcs struct {
	alive map[int]bool
	next  int
}

func (s *stubProcs) IsAlive(pid int) bool { return s.alive[pid] }
func (s *stubProcs) Terminate(pid int) error {
	s.alive[pid] = false
	return nil
}
func (s *stubProcs) Kill(pid int) error { return s.Terminate(pid) }
func (s *stubProcs) Launch(ctx context.Context, spec proc.Spec) (int, error) {
	s.next++
	pid := 2000 + s.next
	s.alive[pid] = true
	return pid, nil
}

func serverPort(t *testing.T, rawURL string) int {
	t.Helper()
	_, port, err := net.SplitHostPort(rawURL[len("http://"):])
	require.NoError(t, err)
	p, err := strconv.Atoi(port)
	require.NoError(t, err)
	return p
}

// newTestRouter serves a bundle from a temp dir and proxies to backendPort
func newTestRouter(t *testing.T, backendPort int, withIndex bool) (*gin.Engine, string) {
	t.Helper()
	root := t.TempDir()
	dist := filepath.Join(root, "dist")
	require.NoError(t, os.MkdirAll(filepath.Join(dist, "assets"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dist, "assets", "app.js"), []byte("console.log(1)"), 0o644))
	if withIndex {
		require.NoError(t, os.WriteFile(filepath.Join(dist, "index.html"), []byte("<div id=app></div>"), 0o644))
	}

	cfg := config.Default(root)
	backend, err := cfg.Service(config.BackendService)
	require.NoError(t, err)
	backend.Port = backendPort

	stub := &stubProcs{alive: map[int]bool{}}
	sup := services.NewSupervisor(cfg, registry.New(registry.NewMemoryStore(), stub), stub, stub, nil, services.SupervisorOptions{})
	preview, err := services.NewPreview(cfg, sup, services.NewMetrics())
	require.NoError(t, err)

	r := gin.New()
	NewServiceController(sup).RegisterRoutes(r)
	NewPreviewController(preview).RegisterRoutes(r)
	return r, dist
}

func get(r http.Handler, method, target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(method, target, nil))
	return rec
}

func TestStaticServesFilesAndFallsBack(t *testing.T) {
	r, _ := newTestRouter(t, 6666, true)

	rec := get(r, http.MethodGet, "/assets/app.js")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "console.log(1)", rec.Body.String())

	for _, route := range []string{"/", "/dashboard/settings", "/assets/missing.js"} {
		rec = get(r, http.MethodGet, route)
		assert.Equal(t, http.StatusOK, rec.Code, route)
		assert.Equal(t, "<div id=app></div>", rec.Body.String(), route)
	}

	rec = get(r, http.MethodPost, "/dashboard")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestStaticWithoutBuild(t *testing.T) {
	r, _ := newTestRouter(t, 6666, false)

	rec := get(r, http.MethodGet, "/dashboard")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	var body models.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "preview.not_built", body.Code)
}

func TestProxyForwardsAPIAndUploads(t *testing.T) {
	var seen []string
	var forwardedProto string
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = append(seen, r.Method+" "+r.URL.RequestURI())
		forwardedProto = r.Header.Get("X-Forwarded-Proto")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer backend.Close()
	r, _ := newTestRouter(t, serverPort(t, backend.URL), true)

	rec := get(r, http.MethodGet, "/api/users?page=2")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"ok":true}`, rec.Body.String())

	rec = get(r, http.MethodPost, "/uploads/avatar.png")
	assert.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, []string{"GET /api/users?page=2", "POST /uploads/avatar.png"}, seen)
	assert.Equal(t, "http", forwardedProto)
}

func TestProxyBackendDown(t *testing.T) {
	backend := httptest.NewServer(http.NotFoundHandler())
	port := serverPort(t, backend.URL)
	backend.Close()
	r, _ := newTestRouter(t, port, true)

	rec := get(r, http.MethodGet, "/api/ping")
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	var body models.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "preview.backend_unavailable", body.Code)
}

func TestHealthz(t *testing.T) {
	r, dist := newTestRouter(t, 6666, true)

	rec := get(r, http.MethodGet, "/healthz")
	require.Equal(t, http.StatusOK, rec.Code)
	var health models.HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &health))
	assert.Equal(t, "UP", health.Status)
	assert.Equal(t, dist, health.Dist)
	require.Len(t, health.Services, 2)
	assert.Equal(t, models.StateUnknown, health.Services[0].State)

	rec = get(r, http.MethodGet, "/metrics")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "handv_service_up")
}

func TestServiceAPI(t *testing.T) {
	r, _ := newTestRouter(t, 6666, true)

	rec := get(r, http.MethodPost, "/handv/api/v1/services/backend/start")
	require.Equal(t, http.StatusOK, rec.Code)
	var st models.ServiceStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &st))
	assert.Equal(t, models.StateRunning, st.State)
	assert.Equal(t, 2001, st.Pid)

	rec = get(r, http.MethodGet, "/handv/api/v1/services")
	require.Equal(t, http.StatusOK, rec.Code)
	var list []models.ServiceStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list, 2)
	assert.Equal(t, models.StateRunning, list[0].State)

	rec = get(r, http.MethodPost, "/handv/api/v1/services/backend/stop")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &st))
	assert.Equal(t, models.StateUnknown, st.State)

	rec = get(r, http.MethodGet, "/handv/api/v1/services/worker")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
