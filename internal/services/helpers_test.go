package services

import (
	"context"
	"errors"
	"testing"

	"github.com/plotfit/plotfit/internal/cache"
	"github.com/plotfit/plotfit/internal/config"
	"github.com/plotfit/plotfit/internal/events"
	"github.com/plotfit/plotfit/internal/logging"
	"github.com/plotfit/plotfit/internal/metrics"
	"github.com/plotfit/plotfit/internal/models"
	"github.com/plotfit/plotfit/internal/queue"
	"github.com/plotfit/plotfit/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fixture wires every service against one in-memory store
type fixture struct {
	store      store.Store
	cache      *cache.ResultCache
	published  *recordingQueue
	datasets   *DatasetService
	regression *RegressionService
	transfer   *TransferService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := logging.NewDevelopment()
	st := store.NewMemoryStore()
	t.Cleanup(func() { _ = st.Close() })

	resultCache, err := cache.New(16)
	require.NoError(t, err)

	q := &recordingQueue{}
	bus := events.NewBus(q, nil, logger)
	m := metrics.New()

	return &fixture{
		store:      st,
		cache:      resultCache,
		published:  q,
		datasets:   NewDatasetService(logger, st, bus, resultCache),
		regression: NewRegressionService(logger, st, resultCache, m, config.RegressionConfig{MaxSamples: 1000}),
		transfer:   NewTransferService(logger, st, bus, resultCache),
	}
}

// mustDataset creates a dataset holding the given (x, y) pairs
func (f *fixture) mustDataset(t *testing.T, name string, xy ...float64) {
	t.Helper()
	ctx := context.Background()
	_, err := f.datasets.Create(ctx, &models.CreateDatasetRequest{Name: &name})
	require.NoError(t, err)
	for i := 0; i+1 < len(xy); i += 2 {
		_, err := f.store.AddPoint(ctx, name, xy[i], xy[i+1])
		require.NoError(t, err)
	}
}

// recordingQueue captures published event payloads
type recordingQueue struct {
	queue.NoopQueue
	payloads [][]byte
}

func (q *recordingQueue) Publish(ctx context.Context, subject string, data []byte) error {
	q.payloads = append(q.payloads, data)
	return nil
}

// failingStore returns err from every point read
type failingStore struct {
	store.Store
	err error
}

func (s failingStore) ListPoints(ctx context.Context, dataset string) ([]store.Point, error) {
	return nil, s.err
}

// countingStore records how many point writes reach the backend
type countingStore struct {
	store.Store
	updates int
}

func (s *countingStore) UpdatePoint(ctx context.Context, dataset string, id int64, u store.PointUpdate) (*store.Point, error) {
	s.updates++
	return s.Store.UpdatePoint(ctx, dataset, id, u)
}

// assertServiceError checks code, HTTP status and message of err
func assertServiceError(t *testing.T, err error, code string, status int, message string) {
	t.Helper()
	var svcErr *ServiceError
	require.True(t, errors.As(err, &svcErr), "expected *ServiceError, got %T: %v", err, err)
	assert.Equal(t, code, svcErr.Code)
	assert.Equal(t, status, svcErr.HTTPStatus())
	if message != "" {
		assert.Equal(t, message, svcErr.Message)
	}
}

func strPtr(s string) *string { return &s }

func flex(v float64) models.FlexFloat {
	return models.FlexFloat{Value: v, Present: true, Valid: true}
}
