package handlers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
)

// ReadinessChecker reports whether a dependency is usable.
type ReadinessChecker interface {
	Ready(ctx context.Context) error
	CacheBackend() string
}

type HealthHandler struct {
	startTime time.Time
	checker   ReadinessChecker
	version   string
}

func NewHealthHandler(checker ReadinessChecker, version string) *HealthHandler {
	return &HealthHandler{
		startTime: time.Now(),
		checker:   checker,
		version:   version,
	}
}

// Health handles GET /health
func (h *HealthHandler) Health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":  "healthy",
		"service": "stock-analyzer-api",
		"version": h.version,
		"uptime":  time.Since(h.startTime).String(),
		"time":    time.Now(),
	})
}

// Ready handles GET /health/ready
func (h *HealthHandler) Ready(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.Context(), 3*time.Second)
	defer cancel()

	backend := h.checker.CacheBackend()
	if err := h.checker.Ready(ctx); err != nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"status": "not ready",
			"checks": fiber.Map{
				"api":   "ok",
				backend: err.Error(),
			},
		})
	}

	return c.JSON(fiber.Map{
		"status": "ready",
		"checks": fiber.Map{
			"api":   "ok",
			backend: "ok",
		},
	})
}
