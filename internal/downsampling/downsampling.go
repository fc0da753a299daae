// Package downsampling reduces a scatter of points to a plotting limit while
// keeping its visual shape.
package downsampling

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/plotfit/plotfit/internal/analytics"
)

// Mode represents the downsampling mode
type Mode string

const (
	// ModeNone means no downsampling
	ModeNone Mode = "none"
	// ModeLTTB uses Largest-Triangle-Three-Buckets over the real x coordinates
	ModeLTTB Mode = "lttb"
	// ModeMinMax keeps min and max y per bucket (preserves peaks/spikes)
	ModeMinMax Mode = "minmax"
	// ModeM4 keeps first, min, max, last per bucket
	ModeM4 Mode = "m4"
)

// MinThreshold is the smallest accepted point limit
const MinThreshold = 3

// ValidModes returns all valid downsampling modes
func ValidModes() []Mode {
	return []Mode{ModeNone, ModeLTTB, ModeMinMax, ModeM4}
}

// ParseMode resolves a mode name; empty means LTTB
func ParseMode(name string) (Mode, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return ModeLTTB, nil
	}
	for _, m := range ValidModes() {
		if string(m) == name {
			return m, nil
		}
	}
	return "", fmt.Errorf("unsupported downsampling mode: %q", name)
}

// Order returns the indices of samples sorted by x, ties kept in input order
func Order(samples []analytics.Sample) []int {
	idx := make([]int, len(samples))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return samples[idx[a]].X < samples[idx[b]].X
	})
	return idx
}

// Select picks at most threshold samples and returns their indices in
// ascending x order. Input order does not matter.
func Select(samples []analytics.Sample, mode Mode, threshold int) ([]int, error) {
	if threshold < MinThreshold {
		return nil, fmt.Errorf("threshold must be at least %d, got %d", MinThreshold, threshold)
	}

	order := Order(samples)
	if mode == ModeNone || len(samples) <= threshold {
		return order, nil
	}

	sorted := make([]analytics.Sample, len(order))
	for i, j := range order {
		sorted[i] = samples[j]
	}

	var picked []int
	switch mode {
	case ModeLTTB:
		picked = lttb(sorted, threshold)
	case ModeMinMax:
		picked = minmax(sorted, threshold)
	case ModeM4:
		picked = m4(sorted, threshold)
	default:
		return nil, fmt.Errorf("unsupported downsampling mode: %q", mode)
	}

	for i, p := range picked {
		picked[i] = order[p]
	}
	return picked, nil
}

// lttb implements the Largest-Triangle-Three-Buckets algorithm on data
// sorted by x. Returns positions in data.
func lttb(data []analytics.Sample, threshold int) []int {
	sampled := make([]int, 0, threshold)
	sampled = append(sampled, 0)

	// Bucket size (excluding first and last points)
	bucketSize := float64(len(data)-2) / float64(threshold-2)
	a := 0

	for i := 0; i < threshold-2; i++ {
		// Average of the next bucket
		avgStart := int(math.Floor(float64(i+1)*bucketSize)) + 1
		avgEnd := min(int(math.Floor(float64(i+2)*bucketSize))+1, len(data))

		var avgX, avgY float64
		for j := avgStart; j < avgEnd; j++ {
			avgX += data[j].X
			avgY += data[j].Y
		}
		n := float64(avgEnd - avgStart)
		avgX /= n
		avgY /= n

		rangeOffs := int(math.Floor(float64(i)*bucketSize)) + 1
		rangeTo := int(math.Floor(float64(i+1)*bucketSize)) + 1

		ax, ay := data[a].X, data[a].Y
		maxArea := -1.0
		maxAreaPoint := rangeOffs
		for j := rangeOffs; j < rangeTo; j++ {
			area := math.Abs((ax-avgX)*(data[j].Y-ay)-(ax-data[j].X)*(avgY-ay)) * 0.5
			if area > maxArea {
				maxArea = area
				maxAreaPoint = j
			}
		}

		sampled = append(sampled, maxAreaPoint)
		a = maxAreaPoint
	}

	return append(sampled, len(data)-1)
}

// minmax keeps the lowest and highest y of each bucket, in x order.
// Output size is at most threshold.
func minmax(data []analytics.Sample, threshold int) []int {
	numBuckets := max(threshold/2, 1)
	sampled := make([]int, 0, numBuckets*2)

	for _, b := range buckets(len(data), numBuckets) {
		lo, hi := extremes(data, b[0], b[1])
		sampled = appendOrdered(sampled, lo, hi)
	}
	return sampled
}

// m4 keeps the first, last, lowest and highest point of each bucket.
// Output size is at most threshold.
func m4(data []analytics.Sample, threshold int) []int {
	numBuckets := max(threshold/4, 1)
	sampled := make([]int, 0, numBuckets*4)

	for _, b := range buckets(len(data), numBuckets) {
		lo, hi := extremes(data, b[0], b[1])
		sampled = appendOrdered(sampled, b[0], lo, hi, b[1]-1)
	}
	return sampled
}

// buckets splits [0, n) into count contiguous non-empty ranges
func buckets(n, count int) [][2]int {
	size := float64(n) / float64(count)
	out := make([][2]int, 0, count)
	for i := 0; i < count; i++ {
		start := int(float64(i) * size)
		end := min(int(float64(i+1)*size), n)
		if start < end {
			out = append(out, [2]int{start, end})
		}
	}
	return out
}

func extremes(data []analytics.Sample, start, end int) (lo, hi int) {
	lo, hi = start, start
	for j := start + 1; j < end; j++ {
		if data[j].Y < data[lo].Y {
			lo = j
		}
		if data[j].Y > data[hi].Y {
			hi = j
		}
	}
	return lo, hi
}

// appendOrdered appends the distinct positions in ascending order
func appendOrdered(dst []int, positions ...int) []int {
	sort.Ints(positions)
	for i, p := range positions {
		if i > 0 && p == positions[i-1] {
			continue
		}
		dst = append(dst, p)
	}
	return dst
}
