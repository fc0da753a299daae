package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/plotfit/plotfit/internal/analytics"
)

type memoryDataset struct {
	meta   Dataset
	points []Point // ascending by ID
}

// MemoryStore keeps everything in process memory
type MemoryStore struct {
	mu       sync.RWMutex
	datasets map[string]*memoryDataset
	lastID   int64 // shared sequence for dataset and point IDs
	now      func() time.Time
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		datasets: make(map[string]*memoryDataset),
		now:      time.Now,
	}
}

func (s *MemoryStore) nextID() int64 {
	s.lastID++
	return s.lastID
}

func (s *MemoryStore) CreateDataset(ctx context.Context, ds *Dataset) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.datasets[ds.Name]; exists {
		return fmt.Errorf("%w: %s", ErrDatasetExists, ds.Name)
	}

	now := s.now()
	ds.ID = s.nextID()
	if ds.CreatedAt.IsZero() {
		ds.CreatedAt = now
	}
	ds.UpdatedAt = now

	s.datasets[ds.Name] = &memoryDataset{meta: *ds}
	return nil
}

func (s *MemoryStore) GetDataset(ctx context.Context, name string) (*Dataset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	d, ok := s.datasets[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrDatasetNotFound, name)
	}
	meta := d.meta
	return &meta, nil
}

func (s *MemoryStore) ListDatasets(ctx context.Context) ([]*Dataset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	datasets := make([]*Dataset, 0, len(s.datasets))
	for _, d := range s.datasets {
		meta := d.meta
		datasets = append(datasets, &meta)
	}
	sortDatasets(datasets)
	return datasets, nil
}

func (s *MemoryStore) UpdateDataset(ctx context.Context, name string, update DatasetUpdate) (*Dataset, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, ok := s.datasets[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrDatasetNotFound, name)
	}
	if update.renames(name) {
		if _, taken := s.datasets[*update.Name]; taken {
			return nil, fmt.Errorf("%w: %s", ErrDatasetExists, *update.Name)
		}
		delete(s.datasets, name)
		s.datasets[*update.Name] = d
	}

	update.apply(&d.meta, s.now())
	meta := d.meta
	return &meta, nil
}

func (s *MemoryStore) DeleteDataset(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.datasets[name]; !ok {
		return fmt.Errorf("%w: %s", ErrDatasetNotFound, name)
	}
	delete(s.datasets, name)
	return nil
}

func (s *MemoryStore) DatasetExists(ctx context.Context, name string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.datasets[name]
	return ok, nil
}

func (s *MemoryStore) AddPoint(ctx context.Context, dataset string, x, y float64) (*Point, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, ok := s.datasets[dataset]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrDatasetNotFound, dataset)
	}

	p := Point{ID: s.nextID(), X: x, Y: y}
	d.points = append(d.points, p)
	return &p, nil
}

func (s *MemoryStore) AddPoints(ctx context.Context, dataset string, samples []analytics.Sample) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, ok := s.datasets[dataset]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrDatasetNotFound, dataset)
	}

	for _, sample := range samples {
		d.points = append(d.points, Point{ID: s.nextID(), X: sample.X, Y: sample.Y})
	}
	return len(samples), nil
}

func (s *MemoryStore) ListPoints(ctx context.Context, dataset string) ([]Point, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	d, ok := s.datasets[dataset]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrDatasetNotFound, dataset)
	}

	points := make([]Point, len(d.points))
	copy(points, d.points)
	return points, nil
}

func (s *MemoryStore) GetPoint(ctx context.Context, dataset string, id int64) (*Point, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	d, ok := s.datasets[dataset]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrDatasetNotFound, dataset)
	}

	i, found := d.indexOf(id)
	if !found {
		return nil, fmt.Errorf("%w: %d", ErrPointNotFound, id)
	}
	p := d.points[i]
	return &p, nil
}

func (s *MemoryStore) UpdatePoint(ctx context.Context, dataset string, id int64, update PointUpdate) (*Point, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, ok := s.datasets[dataset]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrDatasetNotFound, dataset)
	}

	i, found := d.indexOf(id)
	if !found {
		return nil, fmt.Errorf("%w: %d", ErrPointNotFound, id)
	}
	update.apply(&d.points[i])
	p := d.points[i]
	return &p, nil
}

func (s *MemoryStore) DeletePoint(ctx context.Context, dataset string, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, ok := s.datasets[dataset]
	if !ok {
		return fmt.Errorf("%w: %s", ErrDatasetNotFound, dataset)
	}

	i, found := d.indexOf(id)
	if !found {
		return fmt.Errorf("%w: %d", ErrPointNotFound, id)
	}
	d.points = append(d.points[:i], d.points[i+1:]...)
	return nil
}

func (s *MemoryStore) Close() error {
	return nil
}

// indexOf binary-searches the ID-ordered point slice
func (d *memoryDataset) indexOf(id int64) (int, bool) {
	i := sort.Search(len(d.points), func(i int) bool { return d.points[i].ID >= id })
	return i, i < len(d.points) && d.points[i].ID == id
}

func sortDatasets(datasets []*Dataset) {
	sort.Slice(datasets, func(i, j int) bool {
		return datasets[i].Name < datasets[j].Name
	})
}
