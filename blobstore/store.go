package blobstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
)

// ErrNotFound is returned when a blob does not exist.
//
// Implementations should return an error that satisfies `errors.Is(err, ErrNotFound)`.
var ErrNotFound = os.ErrNotExist

// CurrentName is the pointer blob naming the published generation in stores
// that cannot replace several blobs atomically.
const CurrentName = "CURRENT"

// BlobStore is an abstraction for reading and writing named blobs.
type BlobStore interface {
	// Open opens a blob for reading.
	Open(ctx context.Context, name string) (Blob, error)
	// Create creates a blob for streaming writes. The blob becomes visible on Close.
	Create(ctx context.Context, name string) (WritableBlob, error)
	// Put writes a blob atomically.
	Put(ctx context.Context, name string, data []byte) error
	// Delete removes a blob. Deleting a missing blob is not an error.
	Delete(ctx context.Context, name string) error
	// List returns the names of all blobs starting with prefix, sorted.
	List(ctx context.Context, prefix string) ([]string, error)
}

// Blob is a read-only handle to a data blob.
type Blob interface {
	ReadAt(ctx context.Context, p []byte, off int64) (int, error)
	Close() error
	// Size returns the size of the blob in bytes.
	Size() int64
}

// WritableBlob is a blob being written. Close publishes it; Abort discards it.
type WritableBlob interface {
	io.WriteCloser
	Abort() error
}

// Mappable is an optional interface for Blobs that expose their bytes
// without copying. The slice is valid until the Blob is closed.
type Mappable interface {
	Bytes() ([]byte, error)
}

// Committer is implemented by stores that can replace several blobs as one
// unit: after Commit returns either every blob holds its new content or, on
// error, every blob holds its previous content.
type Committer interface {
	Commit(ctx context.Context, blobs map[string][]byte) error
}

// ReadAll returns the full content of blob. For Mappable blobs the returned
// slice aliases the mapping and is only valid until the blob is closed.
func ReadAll(ctx context.Context, blob Blob) ([]byte, error) {
	if m, ok := blob.(Mappable); ok {
		return m.Bytes()
	}

	size := blob.Size()
	buf := make([]byte, size)
	if size == 0 {
		return buf, nil
	}
	n, err := blob.ReadAt(ctx, buf, 0)
	if err != nil && !(errors.Is(err, io.EOF) && int64(n) == size) {
		return nil, err
	}
	if int64(n) != size {
		return nil, fmt.Errorf("blobstore: short read: %d of %d bytes", n, size)
	}
	return buf, nil
}

// Get opens name and returns a copy of its content.
func Get(ctx context.Context, store BlobStore, name string) ([]byte, error) {
	blob, err := store.Open(ctx, name)
	if err != nil {
		return nil, err
	}
	defer blob.Close()

	data, err := ReadAll(ctx, blob)
	if err != nil {
		return nil, err
	}
	if _, ok := blob.(Mappable); ok {
		data = append([]byte(nil), data...)
	}
	return data, nil
}
