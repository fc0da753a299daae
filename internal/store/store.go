// Package store persists datasets and their points.
//
// Every backend implements Store with the same semantics: dataset names are
// unique, a point belongs to exactly one dataset, point IDs are unique and
// increase monotonically within a store, and deleting a dataset removes its
// points.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/plotfit/plotfit/internal/analytics"
)

var (
	// ErrDatasetNotFound is returned when no dataset has the requested name
	ErrDatasetNotFound = errors.New("dataset not found")
	// ErrDatasetExists is returned when creating or renaming onto a taken name
	ErrDatasetExists = errors.New("dataset already exists")
	// ErrPointNotFound is returned when a point does not exist in the dataset
	ErrPointNotFound = errors.New("point not found in this dataset")
)

// Store manages datasets and points
type Store interface {
	// Dataset operations
	CreateDataset(ctx context.Context, ds *Dataset) error
	GetDataset(ctx context.Context, name string) (*Dataset, error)
	ListDatasets(ctx context.Context) ([]*Dataset, error)
	UpdateDataset(ctx context.Context, name string, update DatasetUpdate) (*Dataset, error)
	DeleteDataset(ctx context.Context, name string) error
	DatasetExists(ctx context.Context, name string) (bool, error)

	// Point operations
	AddPoint(ctx context.Context, dataset string, x, y float64) (*Point, error)
	AddPoints(ctx context.Context, dataset string, samples []analytics.Sample) (int, error)
	ListPoints(ctx context.Context, dataset string) ([]Point, error)
	GetPoint(ctx context.Context, dataset string, id int64) (*Point, error)
	UpdatePoint(ctx context.Context, dataset string, id int64, update PointUpdate) (*Point, error)
	DeletePoint(ctx context.Context, dataset string, id int64) error

	// Lifecycle
	Close() error
}

// Dataset is a named collection of points
type Dataset struct {
	ID        int64     `json:"id" msgpack:"id"`
	Name      string    `json:"name" msgpack:"name"`
	Date      string    `json:"date,omitempty" msgpack:"date"`
	SerialID  string    `json:"serial_id,omitempty" msgpack:"serial_id"`
	CreatedAt time.Time `json:"created_at" msgpack:"created_at"`
	UpdatedAt time.Time `json:"updated_at" msgpack:"updated_at"`
}

// Point is a single stored observation
type Point struct {
	ID int64   `json:"id" msgpack:"id"`
	X  float64 `json:"x" msgpack:"x"`
	Y  float64 `json:"y" msgpack:"y"`
}

// Sample converts the point to an engine sample
func (p Point) Sample() analytics.Sample {
	return analytics.Sample{X: p.X, Y: p.Y}
}

// Samples converts points to engine samples, preserving order
func Samples(points []Point) []analytics.Sample {
	samples := make([]analytics.Sample, len(points))
	for i, p := range points {
		samples[i] = p.Sample()
	}
	return samples
}

// DatasetUpdate lists the dataset fields to change; nil fields are kept
type DatasetUpdate struct {
	Name     *string
	Date     *string
	SerialID *string
}

// IsEmpty reports whether the update changes nothing
func (u DatasetUpdate) IsEmpty() bool {
	return u.Name == nil && u.Date == nil && u.SerialID == nil
}

// apply copies the set fields onto ds
func (u DatasetUpdate) apply(ds *Dataset, now time.Time) {
	if u.Name != nil {
		ds.Name = *u.Name
	}
	if u.Date != nil {
		ds.Date = *u.Date
	}
	if u.SerialID != nil {
		ds.SerialID = *u.SerialID
	}
	ds.UpdatedAt = now
}

// renames reports whether the update moves the dataset to a different name
func (u DatasetUpdate) renames(current string) bool {
	return u.Name != nil && *u.Name != current
}

// PointUpdate lists the coordinates to change; nil fields are kept
type PointUpdate struct {
	X *float64
	Y *float64
}

func (u PointUpdate) apply(p *Point) {
	if u.X != nil {
		p.X = *u.X
	}
	if u.Y != nil {
		p.Y = *u.Y
	}
}
