package router

import (
	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/plotfit/plotfit/internal/config"
	"github.com/plotfit/plotfit/internal/handlers"
	"github.com/plotfit/plotfit/internal/logging"
	"github.com/plotfit/plotfit/internal/metrics"
	"github.com/plotfit/plotfit/internal/middleware"
)

// Setup configures all routes and middlewares
func Setup(app *fiber.App, logger *logging.Logger, cfg config.Config, svc handlers.Services, m *metrics.Metrics) *handlers.Handler {
	h := handlers.New(logger, svc, cfg.Storage.Backend)

	// Global middlewares
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:  "*",
		AllowMethods:  "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders:  "Origin,Content-Type,Accept,Authorization,X-API-Key,X-Request-ID,X-Compression",
		ExposeHeaders: "Content-Disposition,X-Compression,X-Request-ID",
	}))
	app.Use(logging.FiberMiddleware(logger))
	app.Use(m.FiberMiddleware())

	// Probes (no auth required)
	app.Get("/health", h.Health)
	if m != nil {
		app.Get("/metrics", adaptor.HTTPHandler(m.Handler()))
	}

	api := app.Group("/api", middleware.APIKeyAuth(logger, cfg.Auth))

	// Dataset routes
	api.Get("/datasets", h.ListDatasets)
	api.Post("/datasets", h.CreateDataset)
	api.Get("/datasets/:name", h.GetDataset)
	api.Put("/datasets/:name", h.UpdateDataset)
	api.Delete("/datasets/:name", h.DeleteDataset)
	api.Get("/datasets/:name/info", h.GetDatasetInfo)

	// Point routes
	api.Post("/datasets/:name/points", h.AddPoint)
	api.Put("/datasets/:name/points/:id", h.UpdatePoint)
	api.Delete("/datasets/:name/points/:id", h.DeletePoint)

	// Regression routes
	api.Get("/datasets/:name/regression", h.LinearRegression)
	api.Get("/datasets/:name/power-regression", h.PowerRegression)
	api.Get("/datasets/:name/fit", h.Fit)

	// Transfer routes
	api.Get("/datasets/:name/export", h.ExportDataset)
	api.Post("/datasets/:name/import", h.ImportDataset)

	// Frontend bundle
	if cfg.Server.StaticDir != "" {
		app.Static("/", cfg.Server.StaticDir, fiber.Static{Index: "index.html"})
	}

	// 404 handler
	app.Use(h.NotFound)

	return h
}

// New creates a new Fiber app with configuration
func New(logger *logging.Logger, cfg config.Config, svc handlers.Services, m *metrics.Metrics) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               "plotfit",
		DisableStartupMessage: true,
		ErrorHandler:          middleware.ErrorHandler(logger),
		JSONEncoder:           json.Marshal,
		JSONDecoder:           json.Unmarshal,
		BodyLimit:             cfg.Server.BodyLimit,
	})

	Setup(app, logger, cfg, svc, m)

	return app
}
