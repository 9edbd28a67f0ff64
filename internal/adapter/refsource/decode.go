package refsource

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"

	"visearch/internal/port"
)

type decompressing struct {
	inner port.Source
}

// Decompressing wraps src so that keys ending in .gz, .zst, or .lz4 are
// decompressed on read. Other keys pass through unchanged.
func Decompressing(src port.Source) port.Source {
	if _, ok := src.(decompressing); ok {
		return src
	}
	return decompressing{inner: src}
}

func (d decompressing) Fetch(ctx context.Context, key string) (io.ReadCloser, error) {
	rc, err := d.inner.Fetch(ctx, key)
	if err != nil {
		return nil, err
	}

	out, err := decompress(key, rc)
	if err != nil {
		rc.Close()
		return nil, fmt.Errorf("%s: %w", d.inner.Describe(key), err)
	}
	return out, nil
}

func (d decompressing) Describe(key string) string {
	return d.inner.Describe(key)
}

func decompress(key string, rc io.ReadCloser) (io.ReadCloser, error) {
	switch strings.ToLower(path.Ext(key)) {
	case ".gz", ".gzip":
		zr, err := gzip.NewReader(rc)
		if err != nil {
			return nil, fmt.Errorf("gzip: %w", err)
		}
		return &stackedReader{Reader: zr, closers: []func() error{zr.Close, rc.Close}}, nil
	case ".zst", ".zstd":
		zr, err := zstd.NewReader(rc)
		if err != nil {
			return nil, fmt.Errorf("zstd: %w", err)
		}
		return &stackedReader{Reader: zr, closers: []func() error{
			func() error { zr.Close(); return nil },
			rc.Close,
		}}, nil
	case ".lz4":
		return &stackedReader{Reader: lz4.NewReader(rc), closers: []func() error{rc.Close}}, nil
	}
	return rc, nil
}

// stackedReader reads from the outermost decoder and closes every layer.
type stackedReader struct {
	io.Reader
	closers []func() error
}

func (s *stackedReader) Close() error {
	var errs []error
	for _, c := range s.closers {
		if err := c(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
