package regression

import (
	"fmt"
	"math"

	"github.com/plotfit/plotfit/internal/analytics"
)

// isPositive keeps samples usable in log space
func isPositive(s Sample) bool {
	return s.X > 0 && s.Y > 0
}

// fitPowerLaw fits y = a·x^b. Samples with x <= 0 or y <= 0 are dropped; the
// remaining ones are fitted as ln(y) = ln(a) + b·ln(x). R² is reported for the
// log-log fit, while the curve is evaluated in linear space over the x-range of
// the positive samples.
func fitPowerLaw(data analytics.SampleSet) (*Result, error) {
	positive := data.Filter(isPositive)
	if err := requireSamples(len(positive), len(data)); err != nil {
		return nil, err
	}

	logs := make(analytics.SampleSet, len(positive))
	for i, s := range positive {
		logs[i] = Sample{X: math.Log(s.X), Y: math.Log(s.Y)}
	}

	fit, err := leastSquares(logs)
	if err != nil {
		return nil, err
	}

	a := math.Exp(fit.intercept)
	b := fit.slope
	if !(a > 0) || math.IsInf(a, 0) {
		return nil, fmt.Errorf("%w: coefficient exp(%v) is out of range", ErrDegenerateFit, fit.intercept)
	}

	minX, maxX := positive.XRange()
	curve, err := sampleCurve(minX, maxX, func(x float64) float64 {
		return powerLawAt(a, b, x)
	})
	if err != nil {
		return nil, err
	}

	return &Result{
		Model:       PowerLaw,
		A:           a,
		B:           b,
		RSquared:    fit.rSquared,
		Curve:       curve,
		SampleCount: len(positive),
	}, nil
}

func powerLawAt(a, b, x float64) float64 {
	return a * math.Pow(x, b)
}
