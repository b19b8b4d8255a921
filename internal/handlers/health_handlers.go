package handlers

import (
	"net/http"
	"runtime"
	"time"

	"shopsuite/internal/caching"
	"shopsuite/internal/repositories"

	"github.com/labstack/echo/v4"
)

// HealthHandlers handles liveness and readiness probes.
type HealthHandlers struct {
	db       repositories.Database
	cacheSvc caching.CacheService
	version  string
}

func NewHealthHandlers(db repositories.Database, cacheSvc caching.CacheService, version string) *HealthHandlers {
	return &HealthHandlers{
		db:       db,
		cacheSvc: cacheSvc,
		version:  version,
	}
}

// HealthStatus reports overall and per-dependency health.
type HealthStatus struct {
	Status    string            `json:"status"`
	Timestamp string            `json:"timestamp"`
	Services  map[string]string `json:"services"`
	Version   string            `json:"version"`
}

// LivenessCheck handles GET /health. It answers as long as the process is up.
func (h *HealthHandlers) LivenessCheck(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status":    "alive",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// ReadinessCheck handles GET /health/ready. Only the database gates
// readiness; a Redis outage degrades caching and lockout but the core
// surface still serves.
func (h *HealthHandlers) ReadinessCheck(c echo.Context) error {
	ctx := c.Request().Context()

	if err := h.db.Ping(ctx); err != nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{
			"status":  "not_ready",
			"message": "database unavailable",
		})
	}
	return c.JSON(http.StatusOK, map[string]string{
		"status": "ready",
	})
}

// DetailedHealthCheck handles GET /health/detailed.
func (h *HealthHandlers) DetailedHealthCheck(c echo.Context) error {
	ctx := c.Request().Context()

	health := &HealthStatus{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Services:  make(map[string]string),
		Version:   h.version,
	}

	if err := h.db.Ping(ctx); err != nil {
		health.Services["database"] = "unhealthy: " + err.Error()
		health.Status = "degraded"
	} else {
		health.Services["database"] = "healthy"
	}

	if err := h.cacheSvc.Ping(ctx); err != nil {
		health.Services["redis"] = "unhealthy: " + err.Error()
		health.Status = "degraded"
	} else {
		health.Services["redis"] = "healthy"
	}

	statusCode := http.StatusOK
	if health.Status == "degraded" {
		statusCode = http.StatusServiceUnavailable
	}

	return c.JSON(statusCode, map[string]interface{}{
		"health":     health,
		"goroutines": runtime.NumGoroutine(),
	})
}
