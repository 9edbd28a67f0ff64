package refsource

import (
	"context"
	"io"
	"os"
	"path/filepath"
)

// FileSource reads blobs from a local directory.
type FileSource struct {
	root string
}

func NewFileSource(root string) *FileSource {
	return &FileSource{root: root}
}

func (s *FileSource) Fetch(ctx context.Context, key string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return os.Open(filepath.Join(s.root, filepath.FromSlash(key)))
}

func (s *FileSource) Describe(key string) string {
	return filepath.Join(s.root, filepath.FromSlash(key))
}
