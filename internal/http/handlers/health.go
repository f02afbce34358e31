package handlers

import (
	"context"
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
)

// Pinger is a dependency the readiness probe checks.
type Pinger func(ctx context.Context) error

// HealthHandler handles health check endpoints
type HealthHandler struct {
	checks    map[string]Pinger
	stats     func() map[string]int
	startTime time.Time
	version   string
}

// NewHealthHandler creates a health handler. checks maps a dependency name
// (database, redis) to its ping; stats reports live counters such as
// connections and matches.
func NewHealthHandler(version string, checks map[string]Pinger, stats func() map[string]int) *HealthHandler {
	if checks == nil {
		checks = map[string]Pinger{}
	}
	return &HealthHandler{
		checks:    checks,
		stats:     stats,
		startTime: time.Now(),
		version:   version,
	}
}

// HealthResponse represents health check response
type HealthResponse struct {
	Status    string            `json:"status"`
	Version   string            `json:"version,omitempty"`
	Uptime    string            `json:"uptime,omitempty"`
	Timestamp string            `json:"timestamp"`
	Checks    map[string]string `json:"checks,omitempty"`
	Stats     map[string]int    `json:"stats,omitempty"`
}

// Liveness returns simple alive status (for k8s liveness probe)
func (h *HealthHandler) Liveness(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Readiness returns detailed health status (for k8s readiness probe)
func (h *HealthHandler) Readiness(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	checks, healthy := h.run(ctx)

	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	checks["memory_alloc_mb"] = formatMB(m.Alloc)

	status, code := "healthy", http.StatusOK
	if !healthy {
		status, code = "unhealthy", http.StatusServiceUnavailable
	}

	resp := HealthResponse{
		Status:    status,
		Version:   h.version,
		Uptime:    time.Since(h.startTime).Round(time.Second).String(),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Checks:    checks,
	}
	if h.stats != nil {
		resp.Stats = h.stats()
	}
	c.JSON(code, resp)
}

// Health is a combined endpoint for basic health checks
func (h *HealthHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	if _, healthy := h.run(ctx); !healthy {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "unhealthy",
			"error":  "dependency unavailable",
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"version": h.version,
	})
}

func (h *HealthHandler) run(ctx context.Context) (map[string]string, bool) {
	checks := make(map[string]string, len(h.checks)+1)
	healthy := true
	for name, ping := range h.checks {
		if err := ping(ctx); err != nil {
			checks[name] = "unhealthy: " + err.Error()
			healthy = false
			continue
		}
		checks[name] = "healthy"
	}
	return checks, healthy
}

func formatMB(bytes uint64) string {
	mb := float64(bytes) / 1024 / 1024
	return fmt.Sprintf("%.2f", mb)
}
