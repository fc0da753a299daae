// Package seed loads initial datasets from YAML into an empty store.
package seed

import (
	"context"
	_ "embed"
	"fmt"
	"os"
	"strings"

	"github.com/plotfit/plotfit/internal/analytics"
	"github.com/plotfit/plotfit/internal/logging"
	"github.com/plotfit/plotfit/internal/store"
	"github.com/plotfit/plotfit/internal/utils"
	"gopkg.in/yaml.v3"
)

// Builtin selects the embedded sample datasets instead of a file
const Builtin = "builtin"

//go:embed default.yaml
var defaultSeed []byte

// File is the YAML document layout
type File struct {
	Datasets []Dataset `yaml:"datasets"`
}

// Dataset is one seeded dataset
type Dataset struct {
	Name     string  `yaml:"name"`
	Date     string  `yaml:"date,omitempty"`
	SerialID string  `yaml:"serial_id,omitempty"`
	Points   []Point `yaml:"points"`
}

// Point is one seeded observation
type Point struct {
	X float64 `yaml:"x"`
	Y float64 `yaml:"y"`
}

// Parse decodes and validates a seed document
func Parse(data []byte) (*File, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse seed file: %w", err)
	}

	seen := make(map[string]bool, len(f.Datasets))
	for i, ds := range f.Datasets {
		name := strings.TrimSpace(ds.Name)
		if name == "" {
			return nil, fmt.Errorf("seed dataset %d: name is required", i)
		}
		if seen[name] {
			return nil, fmt.Errorf("seed dataset %q: duplicate name", name)
		}
		seen[name] = true
		f.Datasets[i].Name = name

		for j, p := range ds.Points {
			if !utils.IsFinite(p.X) || !utils.IsFinite(p.Y) {
				return nil, fmt.Errorf("seed dataset %q point %d: coordinates must be finite", name, j)
			}
		}
	}
	return &f, nil
}

// Load reads a seed document from path, or the embedded samples for Builtin
func Load(path string) (*File, error) {
	if path == Builtin {
		return Parse(defaultSeed)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read seed file: %w", err)
	}
	return Parse(data)
}

// Apply writes the seed into s when s holds no datasets yet. Returns the
// number of datasets created.
func Apply(ctx context.Context, s store.Store, f *File, logger *logging.Logger) (int, error) {
	existing, err := s.ListDatasets(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to inspect store: %w", err)
	}
	if len(existing) > 0 {
		logger.Debug("Store not empty, skipping seed", "datasets", len(existing))
		return 0, nil
	}

	created := 0
	for _, ds := range f.Datasets {
		meta := &store.Dataset{Name: ds.Name, Date: ds.Date, SerialID: ds.SerialID}
		if err := s.CreateDataset(ctx, meta); err != nil {
			return created, fmt.Errorf("failed to seed dataset %q: %w", ds.Name, err)
		}

		samples := make([]analytics.Sample, len(ds.Points))
		for i, p := range ds.Points {
			samples[i] = analytics.Sample{X: p.X, Y: p.Y}
		}
		if _, err := s.AddPoints(ctx, ds.Name, samples); err != nil {
			return created, fmt.Errorf("failed to seed points for %q: %w", ds.Name, err)
		}

		created++
		logger.Info("Seeded dataset", "dataset", ds.Name, "points", len(samples))
	}
	return created, nil
}
