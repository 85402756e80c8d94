package health

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voxhall/voxhall/internal/v1/bus"
)

func performRequest(r *gin.Engine, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func newRouter(h *Handler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/health", h.Health)
	r.GET("/health/ready", h.Readiness)
	return r
}

func TestHealth(t *testing.T) {
	h := NewHandler("Voice Room Server", "development", nil)
	w := performRequest(newRouter(h), "/health")

	require.Equal(t, http.StatusOK, w.Code)

	var resp HealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "Voice Room Server", resp.App)
	assert.Equal(t, "development", resp.Env)
}

func TestReadiness_NoRedis(t *testing.T) {
	h := NewHandler("app", "production", nil)
	w := performRequest(newRouter(h), "/health/ready")

	require.Equal(t, http.StatusOK, w.Code)

	var resp ReadinessResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "ready", resp.Status)
	assert.Equal(t, "healthy", resp.Checks["redis"])
}

func TestReadiness_WithRedis(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	svc, err := bus.NewService("redis://" + mr.Addr())
	require.NoError(t, err)
	defer func() { _ = svc.Close() }()

	h := NewHandler("app", "production", svc)
	w := performRequest(newRouter(h), "/health/ready")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestReadiness_RedisDown(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)

	svc, err := bus.NewService("redis://" + mr.Addr())
	require.NoError(t, err)
	defer func() { _ = svc.Close() }()

	mr.Close()

	h := NewHandler("app", "production", svc)
	w := performRequest(newRouter(h), "/health/ready")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}
