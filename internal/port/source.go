package port

import (
	"context"
	"io"
)

// Source fetches read-only data blobs by key.
type Source interface {
	// Fetch opens the blob stored under key. Callers must close the reader.
	Fetch(ctx context.Context, key string) (io.ReadCloser, error)

	// Describe returns a human-readable location for logs and errors.
	Describe(key string) string
}
