package handlers

import (
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/plotfit/plotfit/internal/models"
	"github.com/plotfit/plotfit/internal/services"
	"github.com/plotfit/plotfit/internal/store"
)

// ListDatasets handles GET /api/datasets and returns dataset names
func (h *Handler) ListDatasets(c *fiber.Ctx) error {
	ctx, cancel := h.requestContext(c)
	defer cancel()

	names, err := h.datasets.Names(ctx)
	if err != nil {
		return sendError(c, err)
	}
	return c.JSON(names)
}

// CreateDataset handles POST /api/datasets
func (h *Handler) CreateDataset(c *fiber.Ctx) error {
	var req models.CreateDatasetRequest
	if err := decodeBody(c, &req); err != nil {
		return sendError(c, err)
	}

	ctx, cancel := h.requestContext(c)
	defer cancel()

	ds, err := h.datasets.Create(ctx, &req)
	if err != nil {
		return sendError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(models.MessageResponse{
		Message: fmt.Sprintf("Dataset '%s' created successfully", ds.Name),
	})
}

// GetDataset handles GET /api/datasets/:name and returns the dataset's points.
// With ?max_points=N the points are downsampled for plotting (?downsample=
// lttb|minmax|m4|none) and ordered by x.
func (h *Handler) GetDataset(c *fiber.Ctx) error {
	ctx, cancel := h.requestContext(c)
	defer cancel()

	var (
		points []store.Point
		err    error
	)
	if c.Query("max_points") != "" {
		points, err = h.datasets.PlotPoints(ctx, datasetName(c), c.QueryInt("max_points"), c.Query("downsample"))
	} else {
		points, err = h.datasets.Points(ctx, datasetName(c))
	}
	if err != nil {
		return sendError(c, err)
	}

	views := make([]models.PointView, len(points))
	for i, p := range points {
		views[i] = models.PointView{ID: p.ID, X: p.X, Y: p.Y}
	}
	return c.JSON(views)
}

// GetDatasetInfo handles GET /api/datasets/:name/info
func (h *Handler) GetDatasetInfo(c *fiber.Ctx) error {
	ctx, cancel := h.requestContext(c)
	defer cancel()

	details, err := h.datasets.Get(ctx, datasetName(c))
	if err != nil {
		return sendError(c, err)
	}
	return c.JSON(datasetInfo(details))
}

// UpdateDataset handles PUT /api/datasets/:name
func (h *Handler) UpdateDataset(c *fiber.Ctx) error {
	var req models.UpdateDatasetRequest
	if err := decodeBody(c, &req); err != nil {
		return sendError(c, err)
	}

	ctx, cancel := h.requestContext(c)
	defer cancel()

	ds, err := h.datasets.Update(ctx, datasetName(c), &req)
	if err != nil {
		return sendError(c, err)
	}

	details, err := h.datasets.Get(ctx, ds.Name)
	if err != nil {
		return sendError(c, err)
	}
	return c.JSON(datasetInfo(details))
}

// DeleteDataset handles DELETE /api/datasets/:name
func (h *Handler) DeleteDataset(c *fiber.Ctx) error {
	ctx, cancel := h.requestContext(c)
	defer cancel()

	name := datasetName(c)
	if err := h.datasets.Delete(ctx, name); err != nil {
		return sendError(c, err)
	}

	return c.JSON(models.MessageResponse{
		Message: fmt.Sprintf("Dataset '%s' deleted", name),
	})
}

func datasetInfo(d *services.DatasetDetails) models.DatasetInfo {
	return models.DatasetInfo{
		ID:         d.Dataset.ID,
		Name:       d.Dataset.Name,
		Date:       d.Dataset.Date,
		SerialID:   d.Dataset.SerialID,
		PointCount: d.PointCount,
		CreatedAt:  d.Dataset.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:  d.Dataset.UpdatedAt.UTC().Format(time.RFC3339),
	}
}
