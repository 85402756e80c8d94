package health

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/voxhall/voxhall/internal/v1/bus"
	"github.com/voxhall/voxhall/internal/v1/logging"
)

// Handler manages health check endpoints.
type Handler struct {
	appName  string
	appEnv   string
	presence *bus.Service
}

// NewHandler creates a new health check handler. presence may be nil when
// Redis is disabled.
func NewHandler(appName, appEnv string, presence *bus.Service) *Handler {
	return &Handler{
		appName:  appName,
		appEnv:   appEnv,
		presence: presence,
	}
}

// HealthResponse is the GET /health body.
type HealthResponse struct {
	Status string `json:"status"`
	App    string `json:"app"`
	Env    string `json:"env"`
}

// Health handles GET /health. Returns 200 whenever the process is alive.
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status: "ok",
		App:    h.appName,
		Env:    h.appEnv,
	})
}

// ReadinessResponse is the GET /health/ready body.
type ReadinessResponse struct {
	Status    string            `json:"status"`
	Checks    map[string]string `json:"checks"`
	Timestamp string            `json:"timestamp"`
}

// Readiness handles GET /health/ready. Returns 503 when a critical
// dependency is unhealthy.
func (h *Handler) Readiness(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	checks := map[string]string{
		"redis": h.checkRedis(ctx),
	}

	status := "ready"
	statusCode := http.StatusOK
	for _, v := range checks {
		if v != "healthy" {
			status = "unavailable"
			statusCode = http.StatusServiceUnavailable
		}
	}

	c.JSON(statusCode, ReadinessResponse{
		Status:    status,
		Checks:    checks,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// checkRedis verifies Redis connectivity using PING.
func (h *Handler) checkRedis(ctx context.Context) string {
	// Single-instance mode without Redis is healthy by definition.
	if h.presence == nil {
		return "healthy"
	}
	if err := h.presence.Ping(ctx); err != nil {
		logging.Error(ctx, "Redis health check failed", zap.Error(err))
		return "unhealthy"
	}
	return "healthy"
}
