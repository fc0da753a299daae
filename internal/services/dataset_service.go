package services

import (
	"context"

	"github.com/plotfit/plotfit/internal/cache"
	"github.com/plotfit/plotfit/internal/downsampling"
	"github.com/plotfit/plotfit/internal/events"
	"github.com/plotfit/plotfit/internal/logging"
	"github.com/plotfit/plotfit/internal/models"
	"github.com/plotfit/plotfit/internal/store"
)

// DatasetService handles dataset and point CRUD
type DatasetService struct {
	logger   *logging.Logger
	store    store.Store
	notifier changeNotifier
}

// NewDatasetService creates a new DatasetService. bus and resultCache may be nil.
func NewDatasetService(
	logger *logging.Logger,
	st store.Store,
	bus *events.Bus,
	resultCache *cache.ResultCache,
) *DatasetService {
	return &DatasetService{
		logger:   logger,
		store:    st,
		notifier: changeNotifier{logger: logger, bus: bus, cache: resultCache},
	}
}

func (s *DatasetService) log(ctx context.Context) *logging.Logger {
	return logging.FromContext(ctx, s.logger)
}

// DatasetDetails is a dataset with its point count
type DatasetDetails struct {
	Dataset    *store.Dataset
	PointCount int
}

// List returns all datasets ordered by name
func (s *DatasetService) List(ctx context.Context) ([]*store.Dataset, error) {
	list, err := s.store.ListDatasets(ctx)
	if err != nil {
		return nil, storeError(s.log(ctx), "list_datasets", err)
	}
	return list, nil
}

// Names returns all dataset names ordered by name
func (s *DatasetService) Names(ctx context.Context) ([]string, error) {
	list, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	names := make([]string, len(list))
	for i, ds := range list {
		names[i] = ds.Name
	}
	return names, nil
}

// Create validates the request and creates an empty dataset
func (s *DatasetService) Create(ctx context.Context, req *models.CreateDatasetRequest) (*store.Dataset, error) {
	if req == nil || req.Name == nil {
		return nil, NewServiceError(CodeInvalidName, "Dataset name must be a non-empty string")
	}
	name, err := NormalizeDatasetName(*req.Name)
	if err != nil {
		return nil, err
	}

	ds := &store.Dataset{Name: name, Date: req.Date, SerialID: req.SerialID}
	if err := s.store.CreateDataset(ctx, ds); err != nil {
		return nil, storeError(s.log(ctx), "create_dataset", err)
	}

	s.log(ctx).ForDataset(name).Info("Created dataset")
	s.notifier.notify(ctx, events.Event{Type: events.DatasetCreated, Dataset: name})
	return ds, nil
}

// Get returns a dataset's metadata and point count
func (s *DatasetService) Get(ctx context.Context, name string) (*DatasetDetails, error) {
	name = lookupName(name)
	ds, err := s.store.GetDataset(ctx, name)
	if err != nil {
		return nil, storeError(s.log(ctx), "get_dataset", err)
	}
	points, err := s.store.ListPoints(ctx, name)
	if err != nil {
		return nil, storeError(s.log(ctx), "list_points", err)
	}
	return &DatasetDetails{Dataset: ds, PointCount: len(points)}, nil
}

// Points returns a dataset's points in insertion order
func (s *DatasetService) Points(ctx context.Context, name string) ([]store.Point, error) {
	points, err := s.store.ListPoints(ctx, lookupName(name))
	if err != nil {
		return nil, storeError(s.log(ctx), "list_points", err)
	}
	return points, nil
}

// PlotPoints returns at most maxPoints of a dataset's points chosen by the
// named downsampling mode, ordered by x
func (s *DatasetService) PlotPoints(ctx context.Context, name string, maxPoints int, mode string) ([]store.Point, error) {
	points, err := s.Points(ctx, name)
	if err != nil {
		return nil, err
	}

	m, err := downsampling.ParseMode(mode)
	if err != nil {
		return nil, NewServiceErrorWithDetails(CodeInvalidRequest, "Unsupported downsampling mode",
			map[string]interface{}{"downsample": mode, "supported": downsampling.ValidModes()})
	}
	if maxPoints < downsampling.MinThreshold {
		return nil, NewServiceErrorWithDetails(CodeInvalidRequest, "max_points is too small",
			map[string]interface{}{"max_points": maxPoints, "min": downsampling.MinThreshold})
	}

	picked, err := downsampling.Select(store.Samples(points), m, maxPoints)
	if err != nil {
		return nil, NewServiceError(CodeInvalidRequest, err.Error())
	}

	out := make([]store.Point, len(picked))
	for i, idx := range picked {
		out[i] = points[idx]
	}
	return out, nil
}

// Update renames a dataset or changes its date or serial ID
func (s *DatasetService) Update(ctx context.Context, name string, req *models.UpdateDatasetRequest) (*store.Dataset, error) {
	name = lookupName(name)
	if req == nil || req.IsEmpty() {
		return nil, NewServiceError(CodeInvalidRequest, "No data provided")
	}

	update := store.DatasetUpdate{Date: req.Date, SerialID: req.SerialID}
	if req.Name != nil {
		newName, err := NormalizeDatasetName(*req.Name)
		if err != nil {
			return nil, err
		}
		update.Name = &newName
	}

	ds, err := s.store.UpdateDataset(ctx, name, update)
	if err != nil {
		return nil, storeError(s.log(ctx), "update_dataset", err)
	}

	e := events.Event{Type: events.DatasetUpdated, Dataset: ds.Name}
	if ds.Name != name {
		e.Type = events.DatasetRenamed
		e.PreviousName = name
		s.log(ctx).Info("Renamed dataset", "from", name, "to", ds.Name)
	}
	s.notifier.notify(ctx, e)
	return ds, nil
}

// Delete removes a dataset and all of its points
func (s *DatasetService) Delete(ctx context.Context, name string) error {
	name = lookupName(name)
	if err := s.store.DeleteDataset(ctx, name); err != nil {
		return storeError(s.log(ctx), "delete_dataset", err)
	}

	s.log(ctx).ForDataset(name).Info("Deleted dataset")
	s.notifier.notify(ctx, events.Event{Type: events.DatasetDeleted, Dataset: name})
	return nil
}

// AddPoint validates the request and appends a point to a dataset. The
// dataset is resolved before the body is inspected.
func (s *DatasetService) AddPoint(ctx context.Context, name string, req *models.AddPointRequest) (*store.Point, error) {
	name = lookupName(name)
	exists, err := s.store.DatasetExists(ctx, name)
	if err != nil {
		return nil, storeError(s.log(ctx), "dataset_exists", err)
	}
	if !exists {
		return nil, NewServiceError(CodeDatasetNotFound, "Dataset not found")
	}

	if req == nil || !req.X.Present || !req.Y.Present {
		return nil, NewServiceError(CodeInvalidPoint, "Request must include x and y values")
	}
	if !req.X.Valid || !req.Y.Valid {
		return nil, NewServiceError(CodeInvalidPoint, "x and y must be valid numbers")
	}

	p, err := s.store.AddPoint(ctx, name, req.X.Value, req.Y.Value)
	if err != nil {
		return nil, storeError(s.log(ctx), "add_point", err)
	}

	s.log(ctx).ForDataset(name).Debug("Added point", "id", p.ID, "x", p.X, "y", p.Y)
	s.notifier.notify(ctx, events.Event{Type: events.PointAdded, Dataset: name, PointID: p.ID})
	return p, nil
}

// UpdatePoint changes one or both coordinates of a point. The point is
// resolved before the body is inspected.
func (s *DatasetService) UpdatePoint(ctx context.Context, name string, id int64, req *models.UpdatePointRequest) (*store.Point, error) {
	name = lookupName(name)
	if _, err := s.store.GetPoint(ctx, name, id); err != nil {
		return nil, storeError(s.log(ctx), "get_point", err)
	}

	if req == nil || (!req.X.Present && !req.Y.Present) {
		return nil, NewServiceError(CodeInvalidRequest, "No data provided")
	}
	if req.X.Present && !req.X.Valid {
		return nil, NewServiceError(CodeInvalidPoint, "x must be a valid number")
	}
	if req.Y.Present && !req.Y.Valid {
		return nil, NewServiceError(CodeInvalidPoint, "y must be a valid number")
	}

	p, err := s.store.UpdatePoint(ctx, name, id, store.PointUpdate{X: req.X.Ptr(), Y: req.Y.Ptr()})
	if err != nil {
		return nil, storeError(s.log(ctx), "update_point", err)
	}

	s.notifier.notify(ctx, events.Event{Type: events.PointUpdated, Dataset: name, PointID: id})
	return p, nil
}

// DeletePoint removes a point from a dataset
func (s *DatasetService) DeletePoint(ctx context.Context, name string, id int64) error {
	name = lookupName(name)
	if err := s.store.DeletePoint(ctx, name, id); err != nil {
		return storeError(s.log(ctx), "delete_point", err)
	}

	s.log(ctx).ForDataset(name).Debug("Deleted point", "id", id)
	s.notifier.notify(ctx, events.Event{Type: events.PointDeleted, Dataset: name, PointID: id})
	return nil
}
