package models

// CreateDatasetRequest represents create dataset request
type CreateDatasetRequest struct {
	Name     *string `json:"name"`
	Date     string  `json:"date,omitempty"`
	SerialID string  `json:"serial_id,omitempty"`
}

// UpdateDatasetRequest represents a partial dataset update; omitted fields are kept
type UpdateDatasetRequest struct {
	Name     *string `json:"name,omitempty"`
	Date     *string `json:"date,omitempty"`
	SerialID *string `json:"serial_id,omitempty"`
}

// IsEmpty reports whether the request changes nothing
func (r UpdateDatasetRequest) IsEmpty() bool {
	return r.Name == nil && r.Date == nil && r.SerialID == nil
}

// AddPointRequest represents add point request. Both coordinates are required.
type AddPointRequest struct {
	X FlexFloat `json:"x"`
	Y FlexFloat `json:"y"`
}

// UpdatePointRequest represents update point request. At least one coordinate
// must be present.
type UpdatePointRequest struct {
	X FlexFloat `json:"x"`
	Y FlexFloat `json:"y"`
}
