package handlers

import (
	"context"
	"net/http"
	"time"

	"vendora/internal/caching"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
)

// JobStatusReporter exposes the background scheduler's job inventory for
// monitoring.
type JobStatusReporter interface {
	GetJobStatus() map[string]interface{}
}

// HealthHandlers handles health check and monitoring endpoints
type HealthHandlers struct {
	db        *pgxpool.Pool
	cacheSvc  caching.CacheService
	scheduler JobStatusReporter
}

// NewHealthHandlers creates a new health handlers instance
func NewHealthHandlers(db *pgxpool.Pool, cacheSvc caching.CacheService, scheduler JobStatusReporter) *HealthHandlers {
	return &HealthHandlers{
		db:        db,
		cacheSvc:  cacheSvc,
		scheduler: scheduler,
	}
}

// HealthStatus represents the overall health status
type HealthStatus struct {
	Status    string                 `json:"status"`
	Timestamp string                 `json:"timestamp"`
	Services  map[string]string      `json:"services"`
	Jobs      map[string]interface{} `json:"jobs,omitempty"`
}

// HealthCheck performs health checks on the database and cache
func (h *HealthHandlers) HealthCheck(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	health := &HealthStatus{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Services:  make(map[string]string),
	}

	if err := h.checkDatabase(ctx); err != nil {
		health.Services["database"] = "unhealthy"
		health.Status = "degraded"
	} else {
		health.Services["database"] = "healthy"
	}

	if err := h.cacheSvc.Ping(ctx); err != nil {
		health.Services["redis"] = "unhealthy"
		health.Status = "degraded"
	} else {
		health.Services["redis"] = "healthy"
	}

	if h.scheduler != nil {
		health.Jobs = h.scheduler.GetJobStatus()
	}

	statusCode := http.StatusOK
	if health.Status == "degraded" {
		statusCode = http.StatusServiceUnavailable
	}

	return c.JSON(statusCode, health)
}

// checkDatabase verifies database connectivity
func (h *HealthHandlers) checkDatabase(ctx context.Context) error {
	_, err := h.db.Exec(ctx, "SELECT 1")
	return err
}

// LivenessCheck determines if the application is running (basic liveness probe)
func (h *HealthHandlers) LivenessCheck(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status":    "alive",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}
