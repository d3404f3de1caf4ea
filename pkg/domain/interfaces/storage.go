package interfaces

import (
	"context"
	"io"
	"time"
)

// StoredObject describes an object in file storage
type StoredObject struct {
	Key       string
	Size      int64
	UpdatedAt time.Time
}

// Storage stores raw audio bytes under a key
type Storage interface {
	// Put stores the content of r under key
	Put(ctx context.Context, key string, r io.Reader) (int64, error)

	// Path returns a readable local path for key. The returned release function must be
	// called when the caller is done with the file.
	Path(ctx context.Context, key string) (string, func(), error)

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// List returns objects whose key starts with prefix
	List(ctx context.Context, prefix string) ([]*StoredObject, error)
}
