package refsource

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"visearch/config"
)

// MinIOSource reads blobs from a MinIO or other S3-compatible endpoint.
type MinIOSource struct {
	client   *minio.Client
	endpoint string
	bucket   string
}

// NewMinIOSource connects to endpoint with keys read from the configured
// environment variables. Missing keys give anonymous access.
func NewMinIOSource(endpoint, bucket string, cfg config.MinIOConfig) (*MinIOSource, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(os.Getenv(cfg.AccessKeyEnv), os.Getenv(cfg.SecretKeyEnv), ""),
		Secure: cfg.Secure,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}
	return &MinIOSource{client: client, endpoint: endpoint, bucket: bucket}, nil
}

func (s *MinIOSource) Fetch(ctx context.Context, key string) (io.ReadCloser, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, err
	}

	// GetObject is lazy; Stat surfaces a missing key before the first read.
	if _, err := obj.Stat(); err != nil {
		obj.Close()
		errResp := minio.ToErrorResponse(err)
		if errResp.Code == "NoSuchKey" || errResp.Code == "NotFound" {
			return nil, fmt.Errorf("%s: %w", s.Describe(key), ErrNotFound)
		}
		return nil, err
	}
	return obj, nil
}

func (s *MinIOSource) Describe(key string) string {
	return "minio://" + s.endpoint + "/" + s.bucket + "/" + key
}
