package refsource

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"go.etcd.io/bbolt"
)

// DefaultBoltBucket holds the dataset when a bolt URI names no bucket.
const DefaultBoltBucket = "references"

// BoltSource reads blobs from a bucket of a bbolt database.
// The database is opened read-only for the duration of each fetch.
type BoltSource struct {
	path   string
	bucket []byte
}

func NewBoltSource(path, bucket string) *BoltSource {
	return &BoltSource{path: path, bucket: []byte(bucket)}
}

func (s *BoltSource) Fetch(ctx context.Context, key string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	db, err := bbolt.Open(s.path, 0600, &bbolt.Options{ReadOnly: true, Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt db: %w", err)
	}
	defer db.Close()

	var data []byte
	err = db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(s.bucket)
		if b == nil {
			return fmt.Errorf("bucket %s: %w", s.bucket, ErrNotFound)
		}
		v := b.Get([]byte(key))
		if v == nil {
			return fmt.Errorf("%s: %w", s.Describe(key), ErrNotFound)
		}
		// v is only valid inside the transaction
		data = append([]byte(nil), v...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (s *BoltSource) Describe(key string) string {
	return "bolt://" + s.path + "?bucket=" + string(s.bucket) + "&key=" + key
}
