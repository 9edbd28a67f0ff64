// Package refsource fetches the reference dataset blob by a well-known key
// from local files, HTTP, S3, MinIO, or a read-only bbolt database.
package refsource

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"visearch/config"
	"visearch/internal/port"
)

// ErrNotFound is returned when a blob does not exist.
// The default maps to os.ErrNotExist.
var ErrNotFound = os.ErrNotExist

// Location is a parsed reference source URI.
type Location struct {
	Scheme string // "file", "http", "https", "s3", "minio", "bolt"
	Host   string // http host, minio endpoint
	Bucket string // s3/minio bucket, bolt bucket
	Root   string // file directory, http base path, bolt database path
	Key    string // well-known key of the blob
}

// ParseLocation parses a source URI. Plain paths are local files.
func ParseLocation(uri string) (Location, error) {
	if !strings.Contains(uri, "://") {
		if uri == "" {
			return Location{}, fmt.Errorf("empty reference source")
		}
		return Location{Scheme: "file", Root: filepath.Dir(uri), Key: filepath.Base(uri)}, nil
	}

	u, err := url.Parse(uri)
	if err != nil {
		return Location{}, fmt.Errorf("invalid reference source %q: %w", uri, err)
	}

	loc := Location{Scheme: strings.ToLower(u.Scheme)}
	p := strings.TrimPrefix(u.Path, "/")

	switch loc.Scheme {
	case "file":
		full := filepath.FromSlash(u.Path)
		loc.Root, loc.Key = filepath.Dir(full), filepath.Base(full)
	case "http", "https":
		loc.Host = u.Host
		loc.Root, loc.Key = path.Split(u.Path)
	case "s3":
		loc.Bucket, loc.Key = u.Host, p
	case "minio":
		loc.Host = u.Host
		bucket, key, ok := strings.Cut(p, "/")
		if !ok {
			return Location{}, fmt.Errorf("minio source %q needs bucket and key", uri)
		}
		loc.Bucket, loc.Key = bucket, key
	case "bolt":
		q := u.Query()
		loc.Root = filepath.FromSlash(u.Path)
		loc.Bucket = q.Get("bucket")
		if loc.Bucket == "" {
			loc.Bucket = DefaultBoltBucket
		}
		loc.Key = q.Get("key")
		if loc.Key == "" {
			loc.Key = DefaultKey
		}
	default:
		return Location{}, fmt.Errorf("unsupported reference source scheme: %s", u.Scheme)
	}

	if loc.Key == "" {
		return Location{}, fmt.Errorf("reference source %q has no key", uri)
	}
	return loc, nil
}

// DefaultKey is the well-known key of the reference dataset.
const DefaultKey = "embeddings.json"

// Open builds the source for cfg.Source and returns it with the dataset key.
// Compressed keys (.gz, .zst, .lz4) are decompressed transparently.
func Open(ctx context.Context, cfg config.ReferenceConfig) (port.Source, string, error) {
	loc, err := ParseLocation(cfg.Source)
	if err != nil {
		return nil, "", err
	}

	var src port.Source
	switch loc.Scheme {
	case "file":
		src = NewFileSource(loc.Root)
	case "http", "https":
		base := url.URL{Scheme: loc.Scheme, Host: loc.Host, Path: loc.Root}
		src = NewHTTPSource(base.String(), cfg.HTTP.Timeout)
	case "s3":
		src, err = NewS3Source(ctx, loc.Bucket, cfg.S3)
	case "minio":
		src, err = NewMinIOSource(loc.Host, loc.Bucket, cfg.MinIO)
	case "bolt":
		src = NewBoltSource(loc.Root, loc.Bucket)
	}
	if err != nil {
		return nil, "", err
	}

	return Decompressing(src), loc.Key, nil
}
