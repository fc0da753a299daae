package models

// HealthResponse represents health check response
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Version   string `json:"version"`
	Storage   string `json:"storage,omitempty"`
}

// ErrorResponse represents error response. Error carries the human readable
// message so existing clients reading response.error keep working.
type ErrorResponse struct {
	Error   string                 `json:"error"`
	Code    string                 `json:"code"`
	Path    string                 `json:"path,omitempty"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// MessageResponse acknowledges a mutation
type MessageResponse struct {
	Message string `json:"message"`
	ID      *int64 `json:"id,omitempty"`
}

// PointView is one stored point
type PointView struct {
	ID int64   `json:"id"`
	X  float64 `json:"x"`
	Y  float64 `json:"y"`
}

// CurvePoint is one sample of a fitted curve
type CurvePoint struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// LinearRegressionResponse represents a straight-line fit
type LinearRegressionResponse struct {
	RegressionPoints []CurvePoint `json:"regression_points"`
	RSquared         float64      `json:"r_squared"`
	Slope            float64      `json:"slope"`
	Intercept        float64      `json:"intercept"`
}

// PowerRegressionResponse represents a power-law fit
type PowerRegressionResponse struct {
	RegressionPoints []CurvePoint `json:"regression_points"`
	RSquared         float64      `json:"r_squared"`
	A                float64      `json:"a"`
	B                float64      `json:"b"`
}

// DatasetInfo represents dataset metadata
type DatasetInfo struct {
	ID         int64  `json:"id"`
	Name       string `json:"name"`
	Date       string `json:"date,omitempty"`
	SerialID   string `json:"serial_id,omitempty"`
	PointCount int    `json:"point_count"`
	CreatedAt  string `json:"created_at"`
	UpdatedAt  string `json:"updated_at"`
}

// ImportResponse summarises a bulk import
type ImportResponse struct {
	Message  string `json:"message"`
	Dataset  string `json:"dataset"`
	Imported int    `json:"imported"`
}
