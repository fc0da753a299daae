package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/plotfit/plotfit/internal/models"
	"github.com/plotfit/plotfit/internal/services"
)

// Health handles health check requests
func (h *Handler) Health(c *fiber.Ctx) error {
	return c.JSON(models.HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().Format(time.RFC3339),
		Version:   Version,
		Storage:   h.backend,
	})
}

// NotFound handles 404 errors
func (h *Handler) NotFound(c *fiber.Ctx) error {
	return c.Status(fiber.StatusNotFound).JSON(models.ErrorResponse{
		Error: "Route not found",
		Code:  services.CodeRouteNotFound,
		Path:  c.Path(),
	})
}
