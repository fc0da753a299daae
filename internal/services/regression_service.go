package services

import (
	"context"
	"errors"
	"time"

	"github.com/plotfit/plotfit/internal/analytics/regression"
	"github.com/plotfit/plotfit/internal/cache"
	"github.com/plotfit/plotfit/internal/config"
	"github.com/plotfit/plotfit/internal/logging"
	"github.com/plotfit/plotfit/internal/metrics"
	"github.com/plotfit/plotfit/internal/store"
	"github.com/plotfit/plotfit/internal/utils"
)

// RegressionService fits models to stored datasets
type RegressionService struct {
	logger    *logging.Logger
	store     store.Store
	cache     *cache.ResultCache
	metrics   *metrics.Metrics
	fitConfig regression.FitConfig
}

// NewRegressionService creates a new RegressionService. resultCache and m may be nil.
func NewRegressionService(
	logger *logging.Logger,
	st store.Store,
	resultCache *cache.ResultCache,
	m *metrics.Metrics,
	cfg config.RegressionConfig,
) *RegressionService {
	return &RegressionService{
		logger:    logger,
		store:     st,
		cache:     resultCache,
		metrics:   m,
		fitConfig: regression.FitConfig{MaxSamples: cfg.MaxSamples},
	}
}

func (s *RegressionService) log(ctx context.Context) *logging.Logger {
	return logging.FromContext(ctx, s.logger)
}

// ParseModel resolves a model name from a request
func ParseModel(name string) (regression.Model, error) {
	if name == "" {
		return regression.Linear, nil
	}
	model, err := regression.ParseModel(name)
	if err != nil {
		return 0, NewServiceErrorWithDetails(CodeInvalidModel, "Unknown regression model",
			map[string]interface{}{"model": name, "supported": regression.Models()})
	}
	return model, nil
}

// Execute loads the dataset's points and fits model to them. Results are
// served from the cache while the point set is unchanged.
func (s *RegressionService) Execute(ctx context.Context, name string, model regression.Model) (*regression.Result, error) {
	ctx, cancel := context.WithTimeout(ctx, utils.FitTimeout)
	defer cancel()

	name = lookupName(name)
	points, err := s.store.ListPoints(ctx, name)
	if err != nil {
		return nil, storeError(s.log(ctx), "list_points", err)
	}

	samples := store.Samples(points)
	fingerprint := cache.Fingerprint(samples)
	if result, ok := s.cache.Get(name, model, fingerprint); ok {
		s.metrics.ObserveCache(true)
		return result, nil
	}
	if s.cache != nil {
		s.metrics.ObserveCache(false)
	}

	start := time.Now()
	result, err := regression.Fit(model, samples, s.fitConfig)
	elapsed := time.Since(start)
	s.metrics.ObserveFit(model.String(), err, elapsed)
	if err != nil {
		return nil, s.fitError(ctx, name, model, len(samples), err)
	}

	s.cache.Put(name, model, fingerprint, result)
	s.log(ctx).ForFit(name, model.String()).Debug("Fitted dataset",
		"samples", result.SampleCount,
		"r_squared", result.RSquared,
		"latency_us", elapsed.Microseconds())
	return result, nil
}

// fitError converts an engine failure to a client-facing error
func (s *RegressionService) fitError(ctx context.Context, name string, model regression.Model, n int, err error) error {
	details := map[string]interface{}{"dataset": name, "model": model.String(), "points": n}

	switch {
	case errors.Is(err, regression.ErrInsufficientData):
		if model == regression.PowerLaw {
			return NewServiceErrorWithDetails(CodeNotEnoughData,
				"Not enough positive data points for power law regression", details)
		}
		return NewServiceErrorWithDetails(CodeNotEnoughData,
			"Not enough data points to calculate regression", details)
	case errors.Is(err, regression.ErrInvalidSample):
		return NewServiceErrorWithDetails(CodeInvalidSample, "Dataset contains a non-finite point", details)
	case errors.Is(err, regression.ErrDegenerateFit):
		details["reason"] = err.Error()
		return NewServiceErrorWithDetails(CodeDegenerateFit, "Regression is undefined for this dataset", details)
	case errors.Is(err, regression.ErrTooManySamples):
		details["max_samples"] = s.fitConfig.MaxSamples
		return NewServiceErrorWithDetails(CodeTooManySamples, "Dataset has too many points to fit", details)
	case errors.Is(err, regression.ErrUnknownModel):
		return NewServiceError(CodeInvalidModel, "Unknown regression model")
	default:
		s.log(ctx).ForFit(name, model.String()).Error("Fit failed", "error", err)
		return internalError("Failed to fit dataset")
	}
}
