package regression

import (
	"math"
	"math/rand"
	"testing"
)

// Common test data and helpers for all regression tests

const tolerance = 1e-9

// generateLinearSamples creates n samples on y = slope*x + intercept with
// uniform noise in [-noise, noise], from a fixed seed.
func generateLinearSamples(n int, slope, intercept, noise float64) []Sample {
	rng := rand.New(rand.NewSource(42))
	samples := make([]Sample, n)
	for i := 0; i < n; i++ {
		x := float64(i) * 0.5
		samples[i] = Sample{
			X: x,
			Y: slope*x + intercept + (rng.Float64()*2-1)*noise,
		}
	}
	return samples
}

// generatePowerSamples creates n samples on y = a*x^b for x in [1, n]
func generatePowerSamples(n int, a, b float64) []Sample {
	samples := make([]Sample, n)
	for i := 0; i < n; i++ {
		x := float64(i + 1)
		samples[i] = Sample{X: x, Y: a * math.Pow(x, b)}
	}
	return samples
}

// sumSquaredResiduals evaluates a candidate line against samples
func sumSquaredResiduals(samples []Sample, slope, intercept float64) float64 {
	sum := 0.0
	for _, s := range samples {
		r := s.Y - (slope*s.X + intercept)
		sum += r * r
	}
	return sum
}

// referenceLine is the textbook closed-form least-squares solution
func referenceLine(samples []Sample) (slope, intercept float64) {
	n := float64(len(samples))
	sumX, sumY, sumXY, sumX2 := 0.0, 0.0, 0.0, 0.0
	for _, s := range samples {
		sumX += s.X
		sumY += s.Y
		sumXY += s.X * s.Y
		sumX2 += s.X * s.X
	}
	slope = (n*sumXY - sumX*sumY) / (n*sumX2 - sumX*sumX)
	intercept = (sumY - slope*sumX) / n
	return slope, intercept
}

func assertClose(t *testing.T, name string, got, want, tol float64) {
	t.Helper()
	if math.Abs(got-want) > tol {
		t.Errorf("%s = %v, want %v (±%v)", name, got, want, tol)
	}
}

func assertCurveSpans(t *testing.T, curve []Sample, minX, maxX float64) {
	t.Helper()
	if len(curve) != CurvePoints {
		t.Fatalf("Expected %d curve points, got %d", CurvePoints, len(curve))
	}
	if curve[0].X != minX {
		t.Errorf("First curve x = %v, want %v", curve[0].X, minX)
	}
	if curve[len(curve)-1].X != maxX {
		t.Errorf("Last curve x = %v, want %v", curve[len(curve)-1].X, maxX)
	}
	for i := 1; i < len(curve); i++ {
		if curve[i].X < curve[i-1].X {
			t.Fatalf("Curve not ascending at %d: %v < %v", i, curve[i].X, curve[i-1].X)
		}
	}
}
