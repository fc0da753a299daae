package regression

import (
	"fmt"
	"math"

	"github.com/plotfit/plotfit/internal/analytics"
)

// olsFit is the outcome of an ordinary least-squares line fit
type olsFit struct {
	slope     float64
	intercept float64
	rSquared  float64
}

// leastSquares fits y = slope·x + intercept by ordinary least squares.
// Sums are taken around the means, in the order of data.
func leastSquares(data analytics.SampleSet) (olsFit, error) {
	if len(data) < 2 {
		return olsFit{}, requireSamples(len(data), len(data))
	}

	sameX, sameY := true, true
	for _, s := range data[1:] {
		if s.X != data[0].X {
			sameX = false
		}
		if s.Y != data[0].Y {
			sameY = false
		}
	}
	if sameX {
		return olsFit{}, fmt.Errorf("%w: all x values are the same (%v)", ErrDegenerateFit, data[0].X)
	}
	if sameY {
		// Horizontal line through every sample; residuals are exactly zero.
		return olsFit{slope: 0, intercept: data[0].Y, rSquared: 1}, nil
	}

	n := float64(len(data))
	meanX, meanY := mean(data, n)

	// Deviations are divided by their largest magnitude before squaring so
	// the sums stay finite for large inputs
	scaleX, scaleY := 0.0, 0.0
	for _, s := range data {
		scaleX = math.Max(scaleX, math.Abs(s.X-meanX))
		scaleY = math.Max(scaleY, math.Abs(s.Y-meanY))
	}
	if scaleX == 0 || math.IsInf(scaleX, 0) {
		return olsFit{}, fmt.Errorf("%w: x spread is %v", ErrDegenerateFit, scaleX)
	}
	if scaleY == 0 || math.IsInf(scaleY, 0) {
		// y deviations vanished in rounding; measure residuals in y units
		scaleY = 1
	}

	sxx, sxy, syy := 0.0, 0.0, 0.0
	for _, s := range data {
		dx := (s.X - meanX) / scaleX
		dy := (s.Y - meanY) / scaleY
		sxx += dx * dx
		sxy += dx * dy
		syy += dy * dy
	}

	slope := sxy / sxx * (scaleY / scaleX)
	intercept := meanY - slope*meanX

	ssRes := 0.0
	for _, s := range data {
		r := (s.Y - (slope*s.X + intercept)) / scaleY
		ssRes += r * r
	}

	fit := olsFit{
		slope:     slope,
		intercept: intercept,
		rSquared:  coefficientOfDetermination(ssRes, syy),
	}
	if !isFinite(fit.slope) || !isFinite(fit.intercept) || !isFinite(fit.rSquared) {
		return olsFit{}, fmt.Errorf("%w: parameters overflowed (slope=%v, intercept=%v)",
			ErrDegenerateFit, fit.slope, fit.intercept)
	}
	return fit, nil
}

// mean returns the means of x and y. Sums that overflow are redone on
// pre-divided values.
func mean(data analytics.SampleSet, n float64) (float64, float64) {
	sumX, sumY := 0.0, 0.0
	for _, s := range data {
		sumX += s.X
		sumY += s.Y
	}
	meanX, meanY := sumX/n, sumY/n
	if math.IsInf(meanX, 0) || math.IsInf(meanY, 0) {
		meanX, meanY = 0, 0
		for _, s := range data {
			meanX += s.X / n
			meanY += s.Y / n
		}
	}
	return meanX, meanY
}

// coefficientOfDetermination computes R² = 1 - SS_res/SS_tot.
// With zero total variance the fit is perfect when residuals are zero too,
// and scored 0 otherwise.
func coefficientOfDetermination(ssRes, ssTot float64) float64 {
	if ssTot == 0 {
		if ssRes == 0 {
			return 1
		}
		return 0
	}
	return 1 - ssRes/ssTot
}

// fitLinear runs the linear model on a validated, canonically ordered set
func fitLinear(data analytics.SampleSet) (*Result, error) {
	if err := requireSamples(len(data), len(data)); err != nil {
		return nil, err
	}

	fit, err := leastSquares(data)
	if err != nil {
		return nil, err
	}

	minX, maxX := data.XRange()
	curve, err := sampleCurve(minX, maxX, func(x float64) float64 {
		return fit.slope*x + fit.intercept
	})
	if err != nil {
		return nil, err
	}

	return &Result{
		Model:       Linear,
		Slope:       fit.slope,
		Intercept:   fit.intercept,
		RSquared:    fit.rSquared,
		Curve:       curve,
		SampleCount: len(data),
	}, nil
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
