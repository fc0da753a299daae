// Package compression wraps the block codecs used for dataset export and
// import bodies.
package compression

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Algorithm defines compression types
type Algorithm uint8

const (
	None   Algorithm = 0
	Snappy Algorithm = 1
	LZ4    Algorithm = 2
	Zstd   Algorithm = 3
)

var algorithmNames = map[Algorithm]string{
	None:   "none",
	Snappy: "snappy",
	LZ4:    "lz4",
	Zstd:   "zstd",
}

var algorithmExtensions = map[Algorithm]string{
	None:   "",
	Snappy: ".sz",
	LZ4:    ".lz4",
	Zstd:   ".zst",
}

func (a Algorithm) String() string {
	if name, ok := algorithmNames[a]; ok {
		return name
	}
	return fmt.Sprintf("Algorithm(%d)", uint8(a))
}

// Extension returns the file suffix for the algorithm, empty for None
func (a Algorithm) Extension() string {
	return algorithmExtensions[a]
}

// ContentEncoding returns the HTTP Content-Encoding token, empty for None
func (a Algorithm) ContentEncoding() string {
	if a == None {
		return ""
	}
	return a.String()
}

// ParseAlgorithm accepts an algorithm name; the empty string means None
func ParseAlgorithm(name string) (Algorithm, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return None, nil
	}
	for algo, n := range algorithmNames {
		if n == name {
			return algo, nil
		}
	}
	switch name {
	case "zst":
		return Zstd, nil
	case "sz":
		return Snappy, nil
	}
	return None, fmt.Errorf("unsupported compression algorithm: %q (supported: none, snappy, lz4, zstd)", name)
}

// DetectFromPath infers the algorithm from a file extension
func DetectFromPath(path string) Algorithm {
	ext := strings.ToLower(filepath.Ext(path))
	for algo, e := range algorithmExtensions {
		if e != "" && e == ext {
			return algo
		}
	}
	return None
}

// Names returns the accepted algorithm names
func Names() []string {
	return []string{None.String(), Snappy.String(), LZ4.String(), Zstd.String()}
}

// Compressor interface for compression algorithms
type Compressor interface {
	// Compress compresses data
	Compress(data []byte) ([]byte, error)

	// Decompress decompresses data
	Decompress(data []byte) ([]byte, error)

	// Algorithm returns the compression algorithm type
	Algorithm() Algorithm
}

// GetCompressor returns a compressor for the given algorithm
func GetCompressor(algo Algorithm) (Compressor, error) {
	switch algo {
	case None:
		return &NoneCompressor{}, nil
	case Snappy:
		return NewSnappyCompressor(), nil
	case LZ4:
		return NewLZ4Compressor(), nil
	case Zstd:
		return NewZstdCompressor()
	default:
		return nil, fmt.Errorf("unsupported compression algorithm: %d", algo)
	}
}

// NoneCompressor is a no-op compressor
type NoneCompressor struct{}

func (n *NoneCompressor) Compress(data []byte) ([]byte, error) {
	return data, nil
}

func (n *NoneCompressor) Decompress(data []byte) ([]byte, error) {
	return data, nil
}

func (n *NoneCompressor) Algorithm() Algorithm {
	return None
}
