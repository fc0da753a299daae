package models

import (
	"bytes"

	"github.com/goccy/go-json"
	"github.com/plotfit/plotfit/internal/utils"
)

// FlexFloat is a coordinate sent either as a JSON number or a numeric string.
// Decoding never fails: Present records that the key was sent and Valid that
// it held a finite number.
type FlexFloat struct {
	Value   float64
	Present bool
	Valid   bool
}

// UnmarshalJSON implements json.Unmarshaler
func (f *FlexFloat) UnmarshalJSON(data []byte) error {
	f.Present = true
	f.Valid = false
	f.Value = 0

	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}

	var raw interface{}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return nil
	}

	v, ok := utils.ToFloat64(raw)
	if !ok || !utils.IsFinite(v) {
		return nil
	}
	f.Value = v
	f.Valid = true
	return nil
}

// MarshalJSON implements json.Marshaler
func (f FlexFloat) MarshalJSON() ([]byte, error) {
	if !f.Present || !f.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(f.Value)
}

// Ptr returns a pointer to the value when present and valid, nil otherwise
func (f FlexFloat) Ptr() *float64 {
	if !f.Present || !f.Valid {
		return nil
	}
	v := f.Value
	return &v
}
