// Package codec compresses artifact serializations for BLOB storage.
package codec

import (
	"bytes"
	"fmt"
	"io"

	"github.com/klauspost/compress/gzip"
)

// Compress gzips b at maximum compression.
func Compress(b []byte) ([]byte, error) {
	var buf bytes.Buffer
	zw, err := gzip.NewWriterLevel(&buf, gzip.BestCompression)
	if err != nil {
		return nil, fmt.Errorf("failed to create gzip writer: %w", err)
	}
	if _, err := zw.Write(b); err != nil {
		zw.Close()
		return nil, fmt.Errorf("failed to compress content: %w", err)
	}
	// Close flushes the trailer; the stream is invalid without it
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("failed to finish gzip stream: %w", err)
	}
	return buf.Bytes(), nil
}

// Decompress reverses Compress.
func Decompress(b []byte) ([]byte, error) {
	zr, err := gzip.NewReader(bytes.NewReader(b))
	if err != nil {
		return nil, fmt.Errorf("invalid gzip content: %w", err)
	}
	defer zr.Close()

	out, err := io.ReadAll(zr)
	if err != nil {
		return nil, fmt.Errorf("failed to decompress content: %w", err)
	}
	return out, nil
}
