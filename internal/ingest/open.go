package ingest

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

// Compression identifies a file codec chosen by extension.
type Compression int

const (
	CompressionNone Compression = iota
	CompressionGzip
	CompressionZstd
)

// CompressionFor picks the codec from the file extension.
func CompressionFor(path string) Compression {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".gz", ".gzip":
		return CompressionGzip
	case ".zst", ".zstd":
		return CompressionZstd
	default:
		return CompressionNone
	}
}

type readCloser struct {
	io.Reader
	closers []func() error
}

func (r *readCloser) Close() error {
	var first error
	for _, c := range r.closers {
		if err := c(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Open returns a reader over the decompressed contents of path.
func Open(path string) (io.ReadCloser, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	buffered := bufio.NewReaderSize(file, 1<<16)

	switch CompressionFor(path) {
	case CompressionGzip:
		gz, err := gzip.NewReader(buffered)
		if err != nil {
			file.Close()
			return nil, fmt.Errorf("open gzip stream: %w", err)
		}
		return &readCloser{Reader: gz, closers: []func() error{gz.Close, file.Close}}, nil
	case CompressionZstd:
		dec, err := zstd.NewReader(buffered)
		if err != nil {
			file.Close()
			return nil, fmt.Errorf("open zstd stream: %w", err)
		}
		return &readCloser{Reader: dec, closers: []func() error{
			func() error { dec.Close(); return nil },
			file.Close,
		}}, nil
	default:
		return &readCloser{Reader: buffered, closers: []func() error{file.Close}}, nil
	}
}

type writeCloser struct {
	io.Writer
	closers []func() error
}

func (w *writeCloser) Close() error {
	var first error
	for _, c := range w.closers {
		if err := c(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Create truncates path and returns a writer that compresses according to the
// file extension. Close flushes every layer.
func Create(path string) (io.WriteCloser, error) {
	file, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	buffered := bufio.NewWriterSize(file, 1<<16)
	flush := buffered.Flush

	switch CompressionFor(path) {
	case CompressionGzip:
		gz := gzip.NewWriter(buffered)
		return &writeCloser{Writer: gz, closers: []func() error{gz.Close, flush, file.Close}}, nil
	case CompressionZstd:
		enc, err := zstd.NewWriter(buffered, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if err != nil {
			file.Close()
			return nil, fmt.Errorf("open zstd encoder: %w", err)
		}
		return &writeCloser{Writer: enc, closers: []func() error{enc.Close, flush, file.Close}}, nil
	default:
		return &writeCloser{Writer: buffered, closers: []func() error{flush, file.Close}}, nil
	}
}
