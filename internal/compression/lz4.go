package compression

import (
	"bytes"
	"fmt"
	"io"

	"github.com/pierrec/lz4/v4"
)

// LZ4Compressor implements Compressor using the LZ4 frame format, so output
// is readable by the lz4 command line tool
type LZ4Compressor struct{}

// NewLZ4Compressor creates a new LZ4 compressor
func NewLZ4Compressor() *LZ4Compressor {
	return &LZ4Compressor{}
}

// Compress compresses data into a single LZ4 frame
func (c *LZ4Compressor) Compress(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return data, nil
	}

	var buf bytes.Buffer
	w := lz4.NewWriter(&buf)
	if _, err := w.Write(data); err != nil {
		return nil, fmt.Errorf("lz4 compress failed: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("lz4 compress failed: %w", err)
	}
	return buf.Bytes(), nil
}

// Decompress decompresses an LZ4 frame
func (c *LZ4Compressor) Decompress(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return data, nil
	}

	out, err := io.ReadAll(lz4.NewReader(bytes.NewReader(data)))
	if err != nil {
		return nil, fmt.Errorf("lz4 decompress failed: %w", err)
	}
	return out, nil
}

// Algorithm returns LZ4
func (c *LZ4Compressor) Algorithm() Algorithm {
	return LZ4
}
