// Package regression fits straight-line and power-law models to sample sets
// and samples the fitted curve for plotting.
//
// The package is a pure computation layer: it performs no I/O, does not log and
// keeps no state between calls, so every function is safe for concurrent use.
package regression

import (
	"errors"
	"fmt"
	"strings"

	"github.com/plotfit/plotfit/internal/analytics"
)

// Sample is an alias to the shared analytics.Sample type.
type Sample = analytics.Sample

// CurvePoints is the number of points in every sampled curve
const CurvePoints = 100

// DefaultMaxSamples bounds the size of a single fit request
const DefaultMaxSamples = 1_000_000

var (
	// ErrInsufficientData is returned when fewer than two usable samples remain
	ErrInsufficientData = errors.New("insufficient data")
	// ErrInvalidSample is returned when a sample holds NaN or an infinity
	ErrInvalidSample = errors.New("invalid sample")
	// ErrDegenerateFit is returned when the model is undefined for the data,
	// e.g. all x values are identical
	ErrDegenerateFit = errors.New("degenerate fit")
	// ErrTooManySamples is returned when the input exceeds FitConfig.MaxSamples
	ErrTooManySamples = errors.New("too many samples")
	// ErrUnknownModel is returned by ParseModel for unrecognised names
	ErrUnknownModel = errors.New("unknown regression model")
)

// Model selects the regression family
type Model int

const (
	// Linear fits y = slope·x + intercept
	Linear Model = iota
	// PowerLaw fits y = a·x^b on the strictly positive samples
	PowerLaw
)

// String returns the canonical model name
func (m Model) String() string {
	switch m {
	case Linear:
		return "linear"
	case PowerLaw:
		return "power_law"
	default:
		return fmt.Sprintf("model(%d)", int(m))
	}
}

// ParseModel converts a model name to a Model
func ParseModel(name string) (Model, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "linear", "line":
		return Linear, nil
	case "power", "power_law", "power-law", "powerlaw":
		return PowerLaw, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownModel, name)
	}
}

// MarshalText implements encoding.TextMarshaler
func (m Model) MarshalText() ([]byte, error) {
	if m != Linear && m != PowerLaw {
		return nil, fmt.Errorf("%w: %d", ErrUnknownModel, int(m))
	}
	return []byte(m.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (m *Model) UnmarshalText(text []byte) error {
	parsed, err := ParseModel(string(text))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// Models returns the supported model names
func Models() []string {
	return []string{Linear.String(), PowerLaw.String()}
}

// Result holds a fitted model and its plotting curve.
// Slope/Intercept are set for Linear, A/B for PowerLaw.
type Result struct {
	Model       Model
	Slope       float64
	Intercept   float64
	A           float64
	B           float64
	RSquared    float64
	Curve       []Sample
	SampleCount int // Samples that entered the fit
}

// Predict evaluates the fitted model at x
func (r *Result) Predict(x float64) float64 {
	if r.Model == PowerLaw {
		return powerLawAt(r.A, r.B, x)
	}
	return r.Slope*x + r.Intercept
}

// Equation renders the fitted model for display
func (r *Result) Equation() string {
	if r.Model == PowerLaw {
		return fmt.Sprintf("y = %.4g·x^%.4g", r.A, r.B)
	}
	return fmt.Sprintf("y = %.4g·x %+.4g", r.Slope, r.Intercept)
}

// Parameters returns the model parameters keyed by name
func (r *Result) Parameters() map[string]float64 {
	if r.Model == PowerLaw {
		return map[string]float64{"a": r.A, "b": r.B}
	}
	return map[string]float64{"slope": r.Slope, "intercept": r.Intercept}
}

// FitConfig holds limits for a fit
type FitConfig struct {
	MaxSamples int // Maximum accepted input size; <= 0 means DefaultMaxSamples
}

// DefaultFitConfig returns the default fit configuration
func DefaultFitConfig() FitConfig {
	return FitConfig{MaxSamples: DefaultMaxSamples}
}

func (c FitConfig) maxSamples() int {
	if c.MaxSamples <= 0 {
		return DefaultMaxSamples
	}
	return c.MaxSamples
}

// Fit fits the requested model to samples. The input slice is never modified.
// Either a complete Result or an error is returned, never both.
func Fit(model Model, samples []Sample, config FitConfig) (*Result, error) {
	if err := validate(samples, config); err != nil {
		return nil, err
	}

	switch model {
	case Linear:
		return fitLinear(analytics.SampleSet(samples).Canonical())
	case PowerLaw:
		return fitPowerLaw(analytics.SampleSet(samples).Canonical())
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownModel, model)
	}
}

// FitLinear fits a least-squares straight line using the default configuration
func FitLinear(samples []Sample) (*Result, error) {
	return Fit(Linear, samples, DefaultFitConfig())
}

// FitPowerLaw fits y = a·x^b in log-log space using the default configuration
func FitPowerLaw(samples []Sample) (*Result, error) {
	return Fit(PowerLaw, samples, DefaultFitConfig())
}

// validate enforces the checks shared by every model: the size bound and
// finiteness of every sample.
func validate(samples []Sample, config FitConfig) error {
	if limit := config.maxSamples(); len(samples) > limit {
		return fmt.Errorf("%w: %d samples exceeds limit of %d", ErrTooManySamples, len(samples), limit)
	}
	for i, s := range samples {
		if !s.IsFinite() {
			return fmt.Errorf("%w: sample %d (%v, %v) is not finite", ErrInvalidSample, i, s.X, s.Y)
		}
	}
	return nil
}

// requireSamples checks the minimum cardinality of a (possibly filtered) set
func requireSamples(n, total int) error {
	if n >= 2 {
		return nil
	}
	if n == total {
		return fmt.Errorf("%w: need at least 2 samples, have %d", ErrInsufficientData, n)
	}
	return fmt.Errorf("%w: need at least 2 usable samples, %d of %d remain after filtering",
		ErrInsufficientData, n, total)
}
