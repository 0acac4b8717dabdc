package sqlstore

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/sqlassist/sqlassist/internal/storage"
)

// Fetch downloads the store file at key and atomically replaces path with it.
func Fetch(ctx context.Context, store storage.ObjectStore, key, path string) (int64, error) {
	reader, err := store.Get(ctx, key)
	if err != nil {
		return 0, fmt.Errorf("get store object %q: %w", key, err)
	}
	defer func() { _ = reader.Close() }()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return 0, fmt.Errorf("create store dir %q: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, ".sqlassist-fetch-")
	if err != nil {
		return 0, fmt.Errorf("create temp store file: %w", err)
	}
	tmpPath := tmp.Name()
	_ = tmp.Close()
	defer func() { _ = os.Remove(tmpPath) }()

	written, err := writeFile(tmpPath, reader)
	if err != nil {
		return 0, fmt.Errorf("write store file %q: %w", tmpPath, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return 0, fmt.Errorf("move store file into %q: %w", path, err)
	}
	return written, nil
}

// Publish uploads the store file at path once under the immutable snapshot
// key and then repoints latestKey at it with a server-side copy. Replicas that
// fetch latestKey never see a partially written object.
func Publish(ctx context.Context, store storage.ObjectStore, path, snapshotKey, latestKey string, metadata map[string]string) (snapshot, latest storage.ObjectInfo, err error) {
	snapshot, err = Upload(ctx, store, path, snapshotKey, metadata)
	if err != nil {
		return storage.ObjectInfo{}, storage.ObjectInfo{}, err
	}
	latest, err = store.Copy(ctx, snapshotKey, latestKey)
	if err != nil {
		return snapshot, storage.ObjectInfo{}, fmt.Errorf("point %q at %q: %w", latestKey, snapshotKey, err)
	}
	return snapshot, latest, nil
}

// Upload publishes the store file at path under key.
func Upload(ctx context.Context, store storage.ObjectStore, path, key string, metadata map[string]string) (storage.ObjectInfo, error) {
	file, err := os.Open(path)
	if err != nil {
		return storage.ObjectInfo{}, fmt.Errorf("open store file %q: %w", path, err)
	}
	defer func() { _ = file.Close() }()

	info, err := file.Stat()
	if err != nil {
		return storage.ObjectInfo{}, fmt.Errorf("stat store file %q: %w", path, err)
	}
	object, err := store.Put(ctx, key, file, info.Size(), storage.PutOptions{
		ContentType: "application/octet-stream",
		Metadata:    metadata,
	})
	if err != nil {
		return storage.ObjectInfo{}, fmt.Errorf("put store object %q: %w", key, err)
	}
	return object, nil
}

func writeFile(path string, reader io.Reader) (int64, error) {
	file, err := os.Create(path)
	if err != nil {
		return 0, err
	}
	defer func() { _ = file.Close() }()

	written, err := io.Copy(file, reader)
	if err != nil {
		return written, err
	}
	return written, file.Sync()
}
