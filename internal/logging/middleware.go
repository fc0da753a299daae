package logging

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// RequestIDHeader carries the request ID in both directions
const RequestIDHeader = "X-Request-ID"

// MiddlewareConfig defines configuration for logging middleware
type MiddlewareConfig struct {
	// SkipPaths defines paths to skip logging
	SkipPaths []string

	// AdditionalFields adds custom fields to log entries
	AdditionalFields func(c *fiber.Ctx) []interface{}
}

// DefaultMiddlewareConfig skips the probe and scrape endpoints and tags
// entries with the dataset being addressed
func DefaultMiddlewareConfig() MiddlewareConfig {
	return MiddlewareConfig{
		SkipPaths:        []string{"/health", "/metrics"},
		AdditionalFields: datasetField,
	}
}

// FiberMiddleware returns a Fiber middleware for request logging
func FiberMiddleware(logger *Logger) fiber.Handler {
	return FiberMiddlewareWithConfig(logger, DefaultMiddlewareConfig())
}

// FiberMiddlewareWithConfig returns a Fiber middleware with custom config.
// Every request gets an ID (taken from X-Request-ID or generated) stored in
// the user context together with the logger.
func FiberMiddlewareWithConfig(logger *Logger, cfg MiddlewareConfig) fiber.Handler {
	skip := make(map[string]bool, len(cfg.SkipPaths))
	for _, p := range cfg.SkipPaths {
		skip[p] = true
	}

	return func(c *fiber.Ctx) error {
		requestID := c.Get(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.New().String()
		}
		c.Set(RequestIDHeader, requestID)

		ctx := WithRequestID(c.UserContext(), requestID)
		ctx = WithLogger(ctx, logger.With(RequestIDKey, requestID))
		c.SetUserContext(ctx)

		if skip[c.Path()] {
			return c.Next()
		}

		start := time.Now()
		err := c.Next()
		duration := time.Since(start)

		status := c.Response().StatusCode()
		var fiberErr *fiber.Error
		if errors.As(err, &fiberErr) {
			status = fiberErr.Code
		} else if err != nil {
			status = fiber.StatusInternalServerError
		}

		fields := []interface{}{
			"method", c.Method(),
			"path", c.Path(),
			"ip", c.IP(),
			"status", status,
			"duration_ms", duration.Milliseconds(),
			RequestIDKey, requestID,
		}
		if cfg.AdditionalFields != nil {
			fields = append(fields, cfg.AdditionalFields(c)...)
		}
		if err != nil {
			fields = append(fields, "error", err)
		}

		switch {
		case status >= 500:
			logger.Error("Server error", fields...)
		case status >= 400:
			logger.Warn("Client error", fields...)
		default:
			logger.Info("Request completed", fields...)
		}
		return err
	}
}

func datasetField(c *fiber.Ctx) []interface{} {
	if name := c.Params("name"); name != "" {
		return []interface{}{DatasetKey, name}
	}
	return nil
}
