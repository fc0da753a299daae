// Package analytics provides common types and utilities for sample-set analytics
// shared by the regression engine and its callers.
package analytics

import (
	"cmp"
	"math"
	"slices"
)

// Sample is a single observed (x, y) pair.
// This is the common type passed across the analytics packages.
type Sample struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// IsFinite reports whether both coordinates are finite
func (s Sample) IsFinite() bool {
	return !math.IsNaN(s.X) && !math.IsInf(s.X, 0) && !math.IsNaN(s.Y) && !math.IsInf(s.Y, 0)
}

// SampleSet represents a collection of samples drawn from one dataset
type SampleSet []Sample

// Xs extracts just the x values
func (ss SampleSet) Xs() []float64 {
	xs := make([]float64, len(ss))
	for i, s := range ss {
		xs[i] = s.X
	}
	return xs
}

// Ys extracts just the y values
func (ss SampleSet) Ys() []float64 {
	ys := make([]float64, len(ss))
	for i, s := range ss {
		ys[i] = s.Y
	}
	return ys
}

// Len returns the number of samples
func (ss SampleSet) Len() int {
	return len(ss)
}

// Clone returns an independent copy of the set
func (ss SampleSet) Clone() SampleSet {
	if ss == nil {
		return nil
	}
	out := make(SampleSet, len(ss))
	copy(out, ss)
	return out
}

// Canonical returns a copy sorted by (x, y). Two sets that are equal as
// multisets have identical canonical forms.
func (ss SampleSet) Canonical() SampleSet {
	out := ss.Clone()
	slices.SortFunc(out, func(a, b Sample) int {
		if c := cmp.Compare(a.X, b.X); c != 0 {
			return c
		}
		return cmp.Compare(a.Y, b.Y)
	})
	return out
}

// Filter returns the samples for which keep returns true
func (ss SampleSet) Filter(keep func(Sample) bool) SampleSet {
	out := make(SampleSet, 0, len(ss))
	for _, s := range ss {
		if keep(s) {
			out = append(out, s)
		}
	}
	return out
}

// XRange returns the minimum and maximum x value. Returns zeros for an empty set.
func (ss SampleSet) XRange() (minX, maxX float64) {
	if len(ss) == 0 {
		return 0, 0
	}
	minX, maxX = ss[0].X, ss[0].X
	for _, s := range ss[1:] {
		if s.X < minX {
			minX = s.X
		}
		if s.X > maxX {
			maxX = s.X
		}
	}
	return minX, maxX
}

// MeanY calculates the mean of the y values
func (ss SampleSet) MeanY() float64 {
	if len(ss) == 0 {
		return 0
	}
	sum := 0.0
	for _, s := range ss {
		sum += s.Y
	}
	return sum / float64(len(ss))
}
