package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/plotfit/plotfit/internal/analytics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string     { return &s }
func floatPtr(f float64) *float64 { return &f }

// runStoreSuite checks the behaviour every backend must share
func runStoreSuite(t *testing.T, newStore func(t *testing.T) Store) {
	ctx := context.Background()

	t.Run("CreateAndGetDataset", func(t *testing.T) {
		s := newStore(t)

		ds := &Dataset{Name: "calibration", Date: "2024-03-01", SerialID: "SN-1"}
		require.NoError(t, s.CreateDataset(ctx, ds))
		assert.NotZero(t, ds.ID)
		assert.False(t, ds.CreatedAt.IsZero())

		got, err := s.GetDataset(ctx, "calibration")
		require.NoError(t, err)
		assert.Equal(t, ds.ID, got.ID)
		assert.Equal(t, "2024-03-01", got.Date)
		assert.Equal(t, "SN-1", got.SerialID)

		exists, err := s.DatasetExists(ctx, "calibration")
		require.NoError(t, err)
		assert.True(t, exists)

		exists, err = s.DatasetExists(ctx, "missing")
		require.NoError(t, err)
		assert.False(t, exists)
	})

	t.Run("DuplicateNameRejected", func(t *testing.T) {
		s := newStore(t)

		require.NoError(t, s.CreateDataset(ctx, &Dataset{Name: "dup"}))
		err := s.CreateDataset(ctx, &Dataset{Name: "dup"})
		assert.ErrorIs(t, err, ErrDatasetExists)
	})

	t.Run("GetMissingDataset", func(t *testing.T) {
		s := newStore(t)

		_, err := s.GetDataset(ctx, "nope")
		assert.ErrorIs(t, err, ErrDatasetNotFound)
	})

	t.Run("ListDatasetsSortedByName", func(t *testing.T) {
		s := newStore(t)

		list, err := s.ListDatasets(ctx)
		require.NoError(t, err)
		assert.Empty(t, list)

		for _, name := range []string{"gamma", "Alpha", "beta"} {
			require.NoError(t, s.CreateDataset(ctx, &Dataset{Name: name}))
		}

		list, err = s.ListDatasets(ctx)
		require.NoError(t, err)
		names := make([]string, len(list))
		for i, ds := range list {
			names[i] = ds.Name
		}
		assert.Equal(t, []string{"Alpha", "beta", "gamma"}, names)
	})

	t.Run("NamesWithSpecialCharacters", func(t *testing.T) {
		s := newStore(t)

		name := "run #1: 50% load?"
		require.NoError(t, s.CreateDataset(ctx, &Dataset{Name: name}))
		_, err := s.AddPoint(ctx, name, 1, 2)
		require.NoError(t, err)

		got, err := s.GetDataset(ctx, name)
		require.NoError(t, err)
		assert.Equal(t, name, got.Name)

		points, err := s.ListPoints(ctx, name)
		require.NoError(t, err)
		assert.Len(t, points, 1)
	})

	t.Run("UpdateDatasetFields", func(t *testing.T) {
		s := newStore(t)

		require.NoError(t, s.CreateDataset(ctx, &Dataset{Name: "meta", Date: "old"}))
		updated, err := s.UpdateDataset(ctx, "meta", DatasetUpdate{SerialID: strPtr("SN-9")})
		require.NoError(t, err)
		assert.Equal(t, "old", updated.Date)
		assert.Equal(t, "SN-9", updated.SerialID)

		got, err := s.GetDataset(ctx, "meta")
		require.NoError(t, err)
		assert.Equal(t, "SN-9", got.SerialID)
	})

	t.Run("RenameKeepsPoints", func(t *testing.T) {
		s := newStore(t)

		require.NoError(t, s.CreateDataset(ctx, &Dataset{Name: "before"}))
		_, err := s.AddPoints(ctx, "before", []analytics.Sample{{X: 1, Y: 2}, {X: 3, Y: 4}})
		require.NoError(t, err)

		renamed, err := s.UpdateDataset(ctx, "before", DatasetUpdate{Name: strPtr("after")})
		require.NoError(t, err)
		assert.Equal(t, "after", renamed.Name)

		_, err = s.GetDataset(ctx, "before")
		assert.ErrorIs(t, err, ErrDatasetNotFound)

		points, err := s.ListPoints(ctx, "after")
		require.NoError(t, err)
		assert.Len(t, points, 2)

		list, err := s.ListDatasets(ctx)
		require.NoError(t, err)
		require.Len(t, list, 1)
		assert.Equal(t, "after", list[0].Name)
	})

	t.Run("RenameOntoTakenName", func(t *testing.T) {
		s := newStore(t)

		require.NoError(t, s.CreateDataset(ctx, &Dataset{Name: "a"}))
		require.NoError(t, s.CreateDataset(ctx, &Dataset{Name: "b"}))

		_, err := s.UpdateDataset(ctx, "a", DatasetUpdate{Name: strPtr("b")})
		assert.ErrorIs(t, err, ErrDatasetExists)

		// Renaming to the current name is a no-op rename
		_, err = s.UpdateDataset(ctx, "a", DatasetUpdate{Name: strPtr("a")})
		assert.NoError(t, err)
	})

	t.Run("UpdateMissingDataset", func(t *testing.T) {
		s := newStore(t)

		_, err := s.UpdateDataset(ctx, "ghost", DatasetUpdate{Date: strPtr("x")})
		assert.ErrorIs(t, err, ErrDatasetNotFound)
	})

	t.Run("DeleteDatasetRemovesPoints", func(t *testing.T) {
		s := newStore(t)

		require.NoError(t, s.CreateDataset(ctx, &Dataset{Name: "gone"}))
		_, err := s.AddPoint(ctx, "gone", 1, 1)
		require.NoError(t, err)

		require.NoError(t, s.DeleteDataset(ctx, "gone"))
		assert.ErrorIs(t, s.DeleteDataset(ctx, "gone"), ErrDatasetNotFound)

		// A new dataset with the same name starts empty
		require.NoError(t, s.CreateDataset(ctx, &Dataset{Name: "gone"}))
		points, err := s.ListPoints(ctx, "gone")
		require.NoError(t, err)
		assert.Empty(t, points)
	})

	t.Run("PointsKeepInsertionOrder", func(t *testing.T) {
		s := newStore(t)

		require.NoError(t, s.CreateDataset(ctx, &Dataset{Name: "series"}))
		p1, err := s.AddPoint(ctx, "series", 5, 50)
		require.NoError(t, err)
		p2, err := s.AddPoint(ctx, "series", 1, 10)
		require.NoError(t, err)
		assert.Greater(t, p2.ID, p1.ID)

		n, err := s.AddPoints(ctx, "series", []analytics.Sample{{X: 2, Y: 20}, {X: 3, Y: 30}})
		require.NoError(t, err)
		assert.Equal(t, 2, n)

		points, err := s.ListPoints(ctx, "series")
		require.NoError(t, err)
		require.Len(t, points, 4)
		assert.Equal(t, []analytics.Sample{{X: 5, Y: 50}, {X: 1, Y: 10}, {X: 2, Y: 20}, {X: 3, Y: 30}}, Samples(points))
		for i := 1; i < len(points); i++ {
			assert.Greater(t, points[i].ID, points[i-1].ID)
		}
	})

	t.Run("AddPointsToMissingDataset", func(t *testing.T) {
		s := newStore(t)

		_, err := s.AddPoint(ctx, "missing", 1, 1)
		assert.ErrorIs(t, err, ErrDatasetNotFound)

		_, err = s.AddPoints(ctx, "missing", nil)
		assert.ErrorIs(t, err, ErrDatasetNotFound)

		_, err = s.ListPoints(ctx, "missing")
		assert.ErrorIs(t, err, ErrDatasetNotFound)
	})

	t.Run("LargeBatch", func(t *testing.T) {
		s := newStore(t)

		require.NoError(t, s.CreateDataset(ctx, &Dataset{Name: "bulk"}))
		samples := make([]analytics.Sample, 250)
		for i := range samples {
			samples[i] = analytics.Sample{X: float64(i), Y: float64(i * 2)}
		}
		n, err := s.AddPoints(ctx, "bulk", samples)
		require.NoError(t, err)
		assert.Equal(t, 250, n)

		points, err := s.ListPoints(ctx, "bulk")
		require.NoError(t, err)
		assert.Equal(t, samples, Samples(points))
	})

	t.Run("UpdatePoint", func(t *testing.T) {
		s := newStore(t)

		require.NoError(t, s.CreateDataset(ctx, &Dataset{Name: "edit"}))
		p, err := s.AddPoint(ctx, "edit", 1, 2)
		require.NoError(t, err)

		updated, err := s.UpdatePoint(ctx, "edit", p.ID, PointUpdate{Y: floatPtr(7.5)})
		require.NoError(t, err)
		assert.Equal(t, Point{ID: p.ID, X: 1, Y: 7.5}, *updated)

		points, err := s.ListPoints(ctx, "edit")
		require.NoError(t, err)
		assert.Equal(t, []Point{{ID: p.ID, X: 1, Y: 7.5}}, points)
	})

	t.Run("GetPoint", func(t *testing.T) {
		s := newStore(t)

		require.NoError(t, s.CreateDataset(ctx, &Dataset{Name: "read"}))
		require.NoError(t, s.CreateDataset(ctx, &Dataset{Name: "elsewhere"}))
		p, err := s.AddPoint(ctx, "read", 4, 9)
		require.NoError(t, err)

		got, err := s.GetPoint(ctx, "read", p.ID)
		require.NoError(t, err)
		assert.Equal(t, *p, *got)

		_, err = s.GetPoint(ctx, "read", p.ID+1000)
		assert.ErrorIs(t, err, ErrPointNotFound)
		_, err = s.GetPoint(ctx, "elsewhere", p.ID)
		assert.ErrorIs(t, err, ErrPointNotFound)
		_, err = s.GetPoint(ctx, "none", p.ID)
		assert.ErrorIs(t, err, ErrDatasetNotFound)

		// Reads leave the stored point untouched
		points, err := s.ListPoints(ctx, "read")
		require.NoError(t, err)
		assert.Equal(t, []Point{*p}, points)
	})

	t.Run("PointScopedToDataset", func(t *testing.T) {
		s := newStore(t)

		require.NoError(t, s.CreateDataset(ctx, &Dataset{Name: "one"}))
		require.NoError(t, s.CreateDataset(ctx, &Dataset{Name: "two"}))
		p, err := s.AddPoint(ctx, "one", 1, 1)
		require.NoError(t, err)

		_, err = s.UpdatePoint(ctx, "two", p.ID, PointUpdate{X: floatPtr(3)})
		assert.ErrorIs(t, err, ErrPointNotFound)
		assert.ErrorIs(t, s.DeletePoint(ctx, "two", p.ID), ErrPointNotFound)

		_, err = s.UpdatePoint(ctx, "none", p.ID, PointUpdate{X: floatPtr(3)})
		assert.ErrorIs(t, err, ErrDatasetNotFound)
	})

	t.Run("DeletePoint", func(t *testing.T) {
		s := newStore(t)

		require.NoError(t, s.CreateDataset(ctx, &Dataset{Name: "del"}))
		p1, err := s.AddPoint(ctx, "del", 1, 1)
		require.NoError(t, err)
		p2, err := s.AddPoint(ctx, "del", 2, 2)
		require.NoError(t, err)

		require.NoError(t, s.DeletePoint(ctx, "del", p1.ID))
		assert.ErrorIs(t, s.DeletePoint(ctx, "del", p1.ID), ErrPointNotFound)

		points, err := s.ListPoints(ctx, "del")
		require.NoError(t, err)
		assert.Equal(t, []Point{*p2}, points)

		// IDs are never reused
		p3, err := s.AddPoint(ctx, "del", 3, 3)
		require.NoError(t, err)
		assert.Greater(t, p3.ID, p2.ID)
	})

	t.Run("ConcurrentAdds", func(t *testing.T) {
		s := newStore(t)

		require.NoError(t, s.CreateDataset(ctx, &Dataset{Name: "race"}))

		var wg sync.WaitGroup
		errs := make(chan error, 20)
		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				if _, err := s.AddPoint(ctx, "race", float64(i), float64(i)); err != nil {
					errs <- fmt.Errorf("add %d: %w", i, err)
				}
			}(i)
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			t.Error(err)
		}

		points, err := s.ListPoints(ctx, "race")
		require.NoError(t, err)
		assert.Len(t, points, 20)

		seen := make(map[int64]bool)
		for _, p := range points {
			assert.False(t, seen[p.ID], "duplicate id %d", p.ID)
			seen[p.ID] = true
		}
	})
}

func TestMemoryStore(t *testing.T) {
	runStoreSuite(t, func(t *testing.T) Store {
		return NewMemoryStore()
	})
}

func TestDatasetUpdate(t *testing.T) {
	assert.True(t, DatasetUpdate{}.IsEmpty())
	assert.False(t, DatasetUpdate{Date: strPtr("")}.IsEmpty())

	u := DatasetUpdate{Name: strPtr("x")}
	assert.True(t, u.renames("y"))
	assert.False(t, u.renames("x"))
	assert.False(t, DatasetUpdate{Date: strPtr("d")}.renames("x"))
}

func TestSentinelErrorsWrap(t *testing.T) {
	s := NewMemoryStore()
	_, err := s.GetDataset(context.Background(), "abc")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDatasetNotFound))
	assert.Contains(t, err.Error(), "abc")
}
