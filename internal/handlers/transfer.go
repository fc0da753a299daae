package handlers

import (
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/plotfit/plotfit/internal/models"
	"github.com/plotfit/plotfit/internal/services"
)

// compressionHeader names the compression of an export or import body
const compressionHeader = "X-Compression"

// ExportDataset handles GET /api/datasets/:name/export?format=csv|json&compression=...
func (h *Handler) ExportDataset(c *fiber.Ctx) error {
	format, err := services.ParseExportFormat(c.Query("format"))
	if err != nil {
		return sendError(c, err)
	}
	algo, err := services.ParseCompression(c.Query("compression"))
	if err != nil {
		return sendError(c, err)
	}

	ctx, cancel := h.requestContext(c)
	defer cancel()

	export, err := h.transfer.Export(ctx, datasetName(c), format, algo)
	if err != nil {
		return sendError(c, err)
	}

	contentType := export.ContentType
	if export.ContentEncoding != "" {
		contentType = fiber.MIMEOctetStream
		c.Set(compressionHeader, export.ContentEncoding)
	}
	c.Set(fiber.HeaderContentType, contentType)
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf(`attachment; filename="%s"`, export.Filename))
	return c.Send(export.Data)
}

// ImportDataset handles POST /api/datasets/:name/import with a CSV body.
// Compression is taken from the query or the X-Compression header.
func (h *Handler) ImportDataset(c *fiber.Ctx) error {
	name := c.Query("compression")
	if name == "" {
		name = c.Get(compressionHeader)
	}
	algo, err := services.ParseCompression(name)
	if err != nil {
		return sendError(c, err)
	}

	ctx, cancel := h.requestContext(c)
	defer cancel()

	dataset := datasetName(c)
	n, err := h.transfer.Import(ctx, dataset, c.Body(), algo)
	if err != nil {
		return sendError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(models.ImportResponse{
		Message:  "Points imported successfully",
		Dataset:  dataset,
		Imported: n,
	})
}
