package api

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/graphtext/graph2seq/internal/dbpool"
)

// HealthHandler serves health check endpoints.
type HealthHandler struct {
	pool       *dbpool.Pool
	log        *logrus.Logger
	httpClient *http.Client
	version    string
	startTime  time.Time
	parserURL  string
}

// NewHealthHandler creates a HealthHandler. pool may be nil when the service
// runs without vocabulary persistence; parserURL may be empty when no
// parse-based construction strategy is configured.
func NewHealthHandler(pool *dbpool.Pool, log *logrus.Logger, version, parserURL string) *HealthHandler {
	return &HealthHandler{
		pool:       pool,
		log:        log,
		httpClient: &http.Client{Timeout: 2 * time.Second},
		version:    version,
		startTime:  time.Now(),
		parserURL:  parserURL,
	}
}

// healthResponse is the JSON payload returned by the liveness endpoint.
type healthResponse struct {
	Status        string  `json:"status"`
	Version       string  `json:"version"`
	Database      string  `json:"database"`
	UptimeSeconds float64 `json:"uptime_seconds"`
}

// readinessResponse is the JSON payload returned by the readiness endpoint.
type readinessResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// Liveness handles GET /health.
func (h *HealthHandler) Liveness(c *gin.Context) {
	resp := healthResponse{
		Status:        "ok",
		Version:       h.version,
		Database:      "connected",
		UptimeSeconds: time.Since(h.startTime).Seconds(),
	}

	// Best-effort database ping (non-fatal for liveness).
	if h.pool != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		if err := h.pool.HealthCheck(ctx); err != nil {
			resp.Database = "disconnected"
		}
	} else {
		resp.Database = "not_configured"
	}

	c.JSON(http.StatusOK, resp)
}

// Readiness handles GET /ready — checks the database and the
// linguistic-analysis service.
func (h *HealthHandler) Readiness(c *gin.Context) {
	checks := map[string]string{
		"database": "ok",
		"parser":   "ok",
	}
	status := "ready"
	statusCode := http.StatusOK

	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	if h.pool != nil {
		if err := h.pool.HealthCheck(ctx); err != nil {
			h.log.WithError(err).Error("readiness: database health check failed")
			checks["database"] = "error"
			status = "not_ready"
			statusCode = http.StatusServiceUnavailable
		}
	} else {
		checks["database"] = "not_configured"
	}

	// Parser check is best-effort; translation degrades to the learned
	// construction strategies without it.
	if err := h.checkParser(); err != nil {
		h.log.WithError(err).Warn("readiness: parser check failed")
		checks["parser"] = "degraded"
	}

	c.JSON(statusCode, readinessResponse{Status: status, Checks: checks})
}

// checkParser does a best-effort connectivity check to the
// linguistic-analysis service.
func (h *HealthHandler) checkParser() error {
	if h.parserURL == "" {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.parserURL, http.NoBody)
	if err != nil {
		return fmt.Errorf("parser request: %w", err)
	}

	resp, err := h.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("parser unreachable: %w", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}()

	if resp.StatusCode >= http.StatusInternalServerError {
		return fmt.Errorf("parser returned status %d", resp.StatusCode)
	}

	return nil
}
