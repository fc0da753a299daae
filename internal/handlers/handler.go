package handlers

import (
	"context"
	"net/url"

	"github.com/gofiber/fiber/v2"
	"github.com/goccy/go-json"
	"github.com/plotfit/plotfit/internal/logging"
	"github.com/plotfit/plotfit/internal/middleware"
	"github.com/plotfit/plotfit/internal/services"
	"github.com/plotfit/plotfit/internal/utils"
)

// Version is reported by the health endpoint; overridden at build time
var Version = "1.0.0"

// Services groups the business services the handlers call
type Services struct {
	Datasets   *services.DatasetService
	Regression *services.RegressionService
	Transfer   *services.TransferService
}

// Handler contains all HTTP handlers
type Handler struct {
	logger     *logging.Logger
	backend    string
	datasets   *services.DatasetService
	regression *services.RegressionService
	transfer   *services.TransferService
}

// New creates a new handler instance. backend names the storage backend
// reported by the health endpoint.
func New(logger *logging.Logger, svc Services, backend string) *Handler {
	return &Handler{
		logger:     logger,
		backend:    backend,
		datasets:   svc.Datasets,
		regression: svc.Regression,
		transfer:   svc.Transfer,
	}
}

// requestContext bounds store work for one request and carries a logger
// tagged with the request's dataset
func (h *Handler) requestContext(c *fiber.Ctx) (context.Context, context.CancelFunc) {
	ctx := c.UserContext()
	logger := logging.FromContext(ctx, h.logger)
	if c.Params("name") != "" {
		logger = logger.ForDataset(datasetName(c))
	}
	ctx = logging.WithLogger(ctx, logger)
	return context.WithTimeout(ctx, utils.DefaultRequestTimeout)
}

// sendError writes err as a JSON error response
func sendError(c *fiber.Ctx, err error) error {
	status, resp := middleware.Describe(err)
	resp.Path = c.Path()
	return c.Status(status).JSON(resp)
}

// datasetName returns the unescaped :name route parameter
func datasetName(c *fiber.Ctx) string {
	raw := c.Params("name")
	if name, err := url.PathUnescape(raw); err == nil {
		return name
	}
	return raw
}

// pointID returns the :id route parameter. A non-integer id addresses no point.
func pointID(c *fiber.Ctx) (int64, error) {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return 0, services.NewServiceError(services.CodePointNotFound, "Point not found in this dataset")
	}
	return int64(id), nil
}

// decodeBody unmarshals a JSON body into v. An empty body leaves v untouched
// so the service reports what is missing.
func decodeBody(c *fiber.Ctx, v interface{}) error {
	body := c.Body()
	if len(body) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, v); err != nil {
		return services.NewServiceErrorWithDetails(services.CodeInvalidRequest, "Invalid request body",
			map[string]interface{}{"error": err.Error()})
	}
	return nil
}
