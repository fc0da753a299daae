package services

import (
	"context"
	"errors"

	"github.com/plotfit/plotfit/internal/cache"
	"github.com/plotfit/plotfit/internal/events"
	"github.com/plotfit/plotfit/internal/logging"
	"github.com/plotfit/plotfit/internal/store"
)

// changeNotifier runs after every committed write: it drops cached fits for
// the touched datasets and tells peer instances about the change
type changeNotifier struct {
	logger *logging.Logger
	bus    *events.Bus
	cache  *cache.ResultCache
}

func (n changeNotifier) notify(ctx context.Context, e events.Event) {
	for _, name := range e.Datasets() {
		n.cache.InvalidateDataset(name)
	}
	// Publish failures are logged by the bus; the write has already committed
	_ = n.bus.Publish(ctx, e)
}

// storeError converts a store failure to a client-facing error
func storeError(logger *logging.Logger, op string, err error) error {
	var svcErr *ServiceError
	switch {
	case err == nil:
		return nil
	case errors.As(err, &svcErr):
		return svcErr
	case errors.Is(err, store.ErrDatasetNotFound):
		return NewServiceError(CodeDatasetNotFound, "Dataset not found")
	case errors.Is(err, store.ErrDatasetExists):
		return NewServiceError(CodeDatasetExists, "Dataset with this name already exists")
	case errors.Is(err, store.ErrPointNotFound):
		return NewServiceError(CodePointNotFound, "Point not found in this dataset")
	case errors.Is(err, context.DeadlineExceeded):
		logger.Warn("Store operation timed out", "operation", op, "error", err)
		return NewServiceError(CodeTimeout, "Storage operation timed out")
	default:
		logger.Error("Store operation failed", "operation", op, "error", err)
		return internalError("Failed to access dataset storage")
	}
}
