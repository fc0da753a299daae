package compression

import (
	"fmt"

	"github.com/klauspost/compress/zstd"
)

// ZstdCompressor implements Compressor using Zstandard.
// The encoder and decoder are safe for concurrent EncodeAll/DecodeAll calls.
type ZstdCompressor struct {
	encoder *zstd.Encoder
	decoder *zstd.Decoder
}

// NewZstdCompressor creates a new Zstd compressor
func NewZstdCompressor() (*ZstdCompressor, error) {
	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd encoder: %w", err)
	}
	decoder, err := zstd.NewReader(nil, zstd.WithDecoderMaxMemory(maxDecodedSize))
	if err != nil {
		_ = encoder.Close()
		return nil, fmt.Errorf("failed to create zstd decoder: %w", err)
	}
	return &ZstdCompressor{encoder: encoder, decoder: decoder}, nil
}

// Compress compresses data using Zstd
func (c *ZstdCompressor) Compress(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return data, nil
	}
	return c.encoder.EncodeAll(data, nil), nil
}

// Decompress decompresses Zstd compressed data
func (c *ZstdCompressor) Decompress(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return data, nil
	}

	out, err := c.decoder.DecodeAll(data, nil)
	if err != nil {
		return nil, fmt.Errorf("zstd decompress failed: %w", err)
	}
	return out, nil
}

// Algorithm returns Zstd
func (c *ZstdCompressor) Algorithm() Algorithm {
	return Zstd
}
