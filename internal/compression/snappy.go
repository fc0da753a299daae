package compression

import (
	"fmt"

	"github.com/golang/snappy"
)

// maxDecodedSize bounds a single decoded block
const maxDecodedSize = 256 << 20

// SnappyCompressor implements Compressor using the Snappy block format
type SnappyCompressor struct{}

// NewSnappyCompressor creates a new Snappy compressor
func NewSnappyCompressor() *SnappyCompressor {
	return &SnappyCompressor{}
}

// Compress compresses data using Snappy
func (s *SnappyCompressor) Compress(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return data, nil
	}
	return snappy.Encode(nil, data), nil
}

// Decompress decompresses Snappy compressed data
func (s *SnappyCompressor) Decompress(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return data, nil
	}

	n, err := snappy.DecodedLen(data)
	if err != nil {
		return nil, fmt.Errorf("snappy decompress failed: %w", err)
	}
	if n > maxDecodedSize {
		return nil, fmt.Errorf("snappy decompress failed: decoded size %d exceeds limit %d", n, maxDecodedSize)
	}

	decompressed, err := snappy.Decode(nil, data)
	if err != nil {
		return nil, fmt.Errorf("snappy decompress failed: %w", err)
	}
	return decompressed, nil
}

// Algorithm returns Snappy
func (s *SnappyCompressor) Algorithm() Algorithm {
	return Snappy
}
