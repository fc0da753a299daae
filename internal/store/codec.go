package store

import (
	"fmt"

	"github.com/shamaton/msgpack/v2"
)

// encodeRecord serialises a dataset or point for key-value backends
func encodeRecord(v any) ([]byte, error) {
	data, err := msgpack.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode record: %w", err)
	}
	return data, nil
}

// decodeRecord is the inverse of encodeRecord
func decodeRecord(data []byte, v any) error {
	if err := msgpack.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to decode record: %w", err)
	}
	return nil
}
