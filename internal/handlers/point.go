package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/plotfit/plotfit/internal/models"
)

// AddPoint handles POST /api/datasets/:name/points
func (h *Handler) AddPoint(c *fiber.Ctx) error {
	var req models.AddPointRequest
	if err := decodeBody(c, &req); err != nil {
		return sendError(c, err)
	}

	ctx, cancel := h.requestContext(c)
	defer cancel()

	p, err := h.datasets.AddPoint(ctx, datasetName(c), &req)
	if err != nil {
		return sendError(c, err)
	}

	id := p.ID
	return c.Status(fiber.StatusCreated).JSON(models.MessageResponse{
		Message: "Point added successfully",
		ID:      &id,
	})
}

// UpdatePoint handles PUT /api/datasets/:name/points/:id
func (h *Handler) UpdatePoint(c *fiber.Ctx) error {
	id, err := pointID(c)
	if err != nil {
		return sendError(c, err)
	}

	var req models.UpdatePointRequest
	if err := decodeBody(c, &req); err != nil {
		return sendError(c, err)
	}

	ctx, cancel := h.requestContext(c)
	defer cancel()

	if _, err := h.datasets.UpdatePoint(ctx, datasetName(c), id, &req); err != nil {
		return sendError(c, err)
	}
	return c.JSON(models.MessageResponse{Message: "Point updated successfully"})
}

// DeletePoint handles DELETE /api/datasets/:name/points/:id
func (h *Handler) DeletePoint(c *fiber.Ctx) error {
	id, err := pointID(c)
	if err != nil {
		return sendError(c, err)
	}

	ctx, cancel := h.requestContext(c)
	defer cancel()

	if err := h.datasets.DeletePoint(ctx, datasetName(c), id); err != nil {
		return sendError(c, err)
	}
	return c.JSON(models.MessageResponse{Message: "Point deleted"})
}
