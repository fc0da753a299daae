package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/plotfit/plotfit/internal/analytics/regression"
	"github.com/plotfit/plotfit/internal/models"
	"github.com/plotfit/plotfit/internal/services"
)

// LinearRegression handles GET /api/datasets/:name/regression
func (h *Handler) LinearRegression(c *fiber.Ctx) error {
	return h.fit(c, regression.Linear)
}

// PowerRegression handles GET /api/datasets/:name/power-regression
func (h *Handler) PowerRegression(c *fiber.Ctx) error {
	return h.fit(c, regression.PowerLaw)
}

// Fit handles GET /api/datasets/:name/fit?model=linear|power
func (h *Handler) Fit(c *fiber.Ctx) error {
	model, err := services.ParseModel(c.Query("model"))
	if err != nil {
		return sendError(c, err)
	}
	return h.fit(c, model)
}

func (h *Handler) fit(c *fiber.Ctx, model regression.Model) error {
	result, err := h.regression.Execute(c.UserContext(), datasetName(c), model)
	if err != nil {
		return sendError(c, err)
	}
	return c.JSON(fitResponse(result))
}

// fitResponse shapes a result into the payload of its model
func fitResponse(r *regression.Result) interface{} {
	curve := make([]models.CurvePoint, len(r.Curve))
	for i, s := range r.Curve {
		curve[i] = models.CurvePoint{X: s.X, Y: s.Y}
	}

	if r.Model == regression.PowerLaw {
		return models.PowerRegressionResponse{
			RegressionPoints: curve,
			RSquared:         r.RSquared,
			A:                r.A,
			B:                r.B,
		}
	}
	return models.LinearRegressionResponse{
		RegressionPoints: curve,
		RSquared:         r.RSquared,
		Slope:            r.Slope,
		Intercept:        r.Intercept,
	}
}
