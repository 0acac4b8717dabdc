package storage

import (
	"context"
	"errors"
	"io"
	"time"
)

var ErrObjectNotFound = errors.New("object not found")

type ObjectInfo struct {
	Key          string
	Size         int64
	ETag         string
	LastModified time.Time
}

type PutOptions struct {
	ContentType string
	// Metadata is stored next to the object, e.g. the driver and seed used.
	Metadata map[string]string
}

// ObjectStore holds published store files so API replicas can start from the
// same snapshot the seeder produced.
type ObjectStore interface {
	Put(ctx context.Context, key string, body io.Reader, size int64, opts PutOptions) (ObjectInfo, error)
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Copy(ctx context.Context, src, dst string) (ObjectInfo, error)
}
