package regression

import (
	"fmt"
)

// sampleCurve evaluates f at CurvePoints evenly spaced x values from minX to
// maxX inclusive, in ascending order. The last x is exactly maxX.
func sampleCurve(minX, maxX float64, f func(float64) float64) ([]Sample, error) {
	curve := make([]Sample, CurvePoints)
	step := (maxX - minX) / float64(CurvePoints-1)

	for i := range curve {
		x := minX + float64(i)*step
		if i == CurvePoints-1 {
			x = maxX
		}
		y := f(x)
		if !isFinite(x) || !isFinite(y) {
			return nil, fmt.Errorf("%w: curve value at x=%v is not finite", ErrDegenerateFit, x)
		}
		curve[i] = Sample{X: x, Y: y}
	}

	return curve, nil
}
