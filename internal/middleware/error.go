package middleware

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	fiberutils "github.com/gofiber/fiber/v2/utils"
	"github.com/plotfit/plotfit/internal/logging"
	"github.com/plotfit/plotfit/internal/models"
	"github.com/plotfit/plotfit/internal/services"
)

// ErrorHandler returns a custom error handler middleware. Service errors keep
// their code, message and status; any other error is reported as a 500
// without its detail.
func ErrorHandler(logger *logging.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		status, resp := Describe(err)
		resp.Path = c.Path()

		if status >= fiber.StatusInternalServerError {
			logger.Error("Request error",
				"path", c.Path(),
				"method", c.Method(),
				"status", status,
				"error", err,
			)
		} else {
			logger.Debug("Request rejected",
				"path", c.Path(),
				"method", c.Method(),
				"status", status,
				"code", resp.Code,
				"error", err,
			)
		}

		return c.Status(status).JSON(resp)
	}
}

// Describe maps err to a response status and body
func Describe(err error) (int, models.ErrorResponse) {
	var svcErr *services.ServiceError
	if errors.As(err, &svcErr) {
		return svcErr.HTTPStatus(), models.ErrorResponse{
			Error:   svcErr.Message,
			Code:    svcErr.Code,
			Details: svcErr.Details,
		}
	}

	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		return fiberErr.Code, models.ErrorResponse{
			Error: fiberErr.Message,
			Code:  statusCode(fiberErr.Code),
		}
	}

	return fiber.StatusInternalServerError, models.ErrorResponse{
		Error: "Internal Server Error",
		Code:  services.CodeInternal,
	}
}

// WriteError sends an error response directly, for middleware that stops the chain
func WriteError(c *fiber.Ctx, status int, code, message string) error {
	return c.Status(status).JSON(models.ErrorResponse{
		Error: message,
		Code:  code,
		Path:  c.Path(),
	})
}

// statusCode derives an error code from an HTTP status, e.g. 404 -> NOT_FOUND
func statusCode(status int) string {
	msg := fiberutils.StatusMessage(status)
	if msg == "" {
		return "ERROR"
	}
	msg = strings.ReplaceAll(msg, "'", "")
	return strings.ToUpper(strings.ReplaceAll(msg, " ", "_"))
}
