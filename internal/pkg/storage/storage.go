package storage

import (
	"context"
	"io"
)

// Storage is the artifact store backend. Generated media and thumbnails go
// through it; keys are logical paths like artifacts/<identity>/<job>.png.
type Storage interface {
	// Put stores an object under key.
	Put(ctx context.Context, key string, reader io.Reader, contentType string) error

	// Get opens an object for reading.
	Get(ctx context.Context, key string) (io.ReadCloser, error)

	// Delete removes an object. Deleting a missing object is not an error.
	Delete(ctx context.Context, key string) error

	// GetURL returns the public URL for a stored object.
	GetURL(key string) string
}
