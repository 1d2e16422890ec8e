package utils

import (
	"bytes"
	"compress/gzip"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"
)

// CompressionAlgorithm defines supported compression methods
type CompressionAlgorithm byte

const (
	CompressionNone CompressionAlgorithm = 'n'
	CompressionGzip CompressionAlgorithm = 'g'
	CompressionZstd CompressionAlgorithm = 'z'
)

// Texts shorter than this are stored as is; the frame overhead is not worth it.
const minCompressSize = 512

var (
	zstdEncoder, _ = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	zstdDecoder, _ = zstd.NewReader(nil)
)

func (a CompressionAlgorithm) String() string {
	switch a {
	case CompressionNone:
		return "none"
	case CompressionGzip:
		return "gzip"
	case CompressionZstd:
		return "zstd"
	}
	return fmt.Sprintf("unknown(%d)", byte(a))
}

// CompressData compresses data using the specified algorithm
func CompressData(data []byte, algorithm CompressionAlgorithm) ([]byte, error) {
	switch algorithm {
	case CompressionNone:
		return data, nil

	case CompressionGzip:
		var buf bytes.Buffer
		writer := gzip.NewWriter(&buf)
		if _, err := writer.Write(data); err != nil {
			return nil, fmt.Errorf("failed to write to gzip writer: %w", err)
		}
		if err := writer.Close(); err != nil {
			return nil, fmt.Errorf("failed to close gzip writer: %w", err)
		}
		return buf.Bytes(), nil

	case CompressionZstd:
		return zstdEncoder.EncodeAll(data, make([]byte, 0, len(data)/3)), nil

	default:
		return nil, fmt.Errorf("unsupported compression algorithm: %s", algorithm)
	}
}

// DecompressData decompresses data using the specified algorithm
func DecompressData(compressed []byte, algorithm CompressionAlgorithm) ([]byte, error) {
	switch algorithm {
	case CompressionNone:
		return compressed, nil

	case CompressionGzip:
		reader, err := gzip.NewReader(bytes.NewReader(compressed))
		if err != nil {
			return nil, fmt.Errorf("failed to create gzip reader: %w", err)
		}
		defer reader.Close()

		data, err := io.ReadAll(reader)
		if err != nil {
			return nil, fmt.Errorf("failed to read from gzip reader: %w", err)
		}
		return data, nil

	case CompressionZstd:
		data, err := zstdDecoder.DecodeAll(compressed, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to decode zstd frame: %w", err)
		}
		return data, nil

	default:
		return nil, fmt.Errorf("unsupported compression algorithm: %s", algorithm)
	}
}

// PackText compresses text and prefixes the result with one algorithm byte,
// so the value is self-describing when read back from a cache.
func PackText(text string) ([]byte, error) {
	algorithm := CompressionZstd
	if len(text) < minCompressSize {
		algorithm = CompressionNone
	}

	compressed, err := CompressData([]byte(text), algorithm)
	if err != nil {
		return nil, err
	}

	out := make([]byte, 0, len(compressed)+1)
	out = append(out, byte(algorithm))
	return append(out, compressed...), nil
}

// UnpackText reverses PackText.
func UnpackText(packed []byte) (string, error) {
	if len(packed) == 0 {
		return "", fmt.Errorf("empty packed value")
	}
	data, err := DecompressData(packed[1:], CompressionAlgorithm(packed[0]))
	if err != nil {
		return "", err
	}
	return string(data), nil
}
