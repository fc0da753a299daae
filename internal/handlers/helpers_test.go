package handlers

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/goccy/go-json"
	"github.com/plotfit/plotfit/internal/cache"
	"github.com/plotfit/plotfit/internal/config"
	"github.com/plotfit/plotfit/internal/logging"
	"github.com/plotfit/plotfit/internal/middleware"
	"github.com/plotfit/plotfit/internal/services"
	"github.com/plotfit/plotfit/internal/store"
	"github.com/stretchr/testify/require"
)

type testServer struct {
	app   *fiber.App
	store store.Store
}

// newTestServer mounts the dataset routes on a fresh in-memory store
func newTestServer(t *testing.T) *testServer {
	t.Helper()
	return newLoggedTestServer(t, logging.NewDevelopment())
}

// newLoggedTestServer is newTestServer with request logging through logger
func newLoggedTestServer(t *testing.T, logger *logging.Logger) *testServer {
	t.Helper()
	st := store.NewMemoryStore()
	t.Cleanup(func() { _ = st.Close() })

	resultCache, err := cache.New(8)
	require.NoError(t, err)

	h := New(logger, Services{
		Datasets:   services.NewDatasetService(logger, st, nil, resultCache),
		Regression: services.NewRegressionService(logger, st, resultCache, nil, config.RegressionConfig{MaxSamples: 10000}),
		Transfer:   services.NewTransferService(logger, st, nil, resultCache),
	}, "memory")

	app := fiber.New(fiber.Config{
		ErrorHandler: middleware.ErrorHandler(logger),
		JSONEncoder:  json.Marshal,
		JSONDecoder:  json.Unmarshal,
	})
	app.Use(logging.FiberMiddleware(logger))
	app.Get("/health", h.Health)
	api := app.Group("/api")
	api.Get("/datasets", h.ListDatasets)
	api.Post("/datasets", h.CreateDataset)
	api.Get("/datasets/:name", h.GetDataset)
	api.Put("/datasets/:name", h.UpdateDataset)
	api.Delete("/datasets/:name", h.DeleteDataset)
	api.Get("/datasets/:name/info", h.GetDatasetInfo)
	api.Post("/datasets/:name/points", h.AddPoint)
	api.Put("/datasets/:name/points/:id", h.UpdatePoint)
	api.Delete("/datasets/:name/points/:id", h.DeletePoint)
	api.Get("/datasets/:name/regression", h.LinearRegression)
	api.Get("/datasets/:name/power-regression", h.PowerRegression)
	api.Get("/datasets/:name/fit", h.Fit)
	api.Get("/datasets/:name/export", h.ExportDataset)
	api.Post("/datasets/:name/import", h.ImportDataset)
	app.Use(h.NotFound)

	return &testServer{app: app, store: st}
}

// do sends a request with an optional JSON body and returns status and body
func (s *testServer) do(t *testing.T, method, path string, body interface{}) (int, []byte) {
	t.Helper()
	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = bytes.NewBufferString(b)
	case []byte:
		reader = bytes.NewReader(b)
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, data
}

// doRaw sends a request and returns the full response
func (s *testServer) doRaw(t *testing.T, req *http.Request) *http.Response {
	t.Helper()
	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

// decode unmarshals a response body
func decode[T any](t *testing.T, data []byte) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(data, &v), "body: %s", data)
	return v
}

// seed creates a dataset holding the given (x, y) pairs
func (s *testServer) seed(t *testing.T, name string, xy ...float64) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, s.store.CreateDataset(ctx, &store.Dataset{Name: name}))
	for i := 0; i+1 < len(xy); i += 2 {
		_, err := s.store.AddPoint(ctx, name, xy[i], xy[i+1])
		require.NoError(t, err)
	}
}
