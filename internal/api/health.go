package api

import (
	"context"

	"github.com/gofiber/fiber/v2"
)

// HealthChecker reports whether the backing store is reachable.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

func (h *Handler) Healthy(c *fiber.Ctx) error {
	if err := h.health.Ping(c.Context()); err != nil {
		h.logger.ErrorContext(c.Context(), "Database connection failed", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"status":  "unhealthy",
			"message": "Database connection failed",
		})
	}

	return c.JSON(fiber.Map{
		"status":  "healthy",
		"message": "Service is healthy",
	})
}
