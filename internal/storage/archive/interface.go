// internal/storage/archive/interface.go
package archive

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned by Read and ModTime when nothing is stored at a path.
var ErrNotFound = errors.New("archive: object not found")

// Storage defines the interface for flat-file cache backends
type Storage interface {
	// Write stores data at the given path, replacing any previous object
	Write(ctx context.Context, path string, data []byte) error

	// Read retrieves data from the given path
	Read(ctx context.Context, path string) ([]byte, error)

	// ModTime returns when the object at path was last written
	ModTime(ctx context.Context, path string) (time.Time, error)

	// List returns all paths matching the prefix
	List(ctx context.Context, prefix string) ([]string, error)

	// Delete removes the data at the given path
	Delete(ctx context.Context, path string) error

	// Exists checks if data exists at the given path
	Exists(ctx context.Context, path string) (bool, error)
}

// Options selects and configures a backend.
type Options struct {
	Type string // "localfs" or "s3"
	Path string
	S3   S3Config
}

// New builds the backend named by opts.Type.
func New(opts Options) (Storage, error) {
	switch opts.Type {
	case "", "localfs":
		return NewLocalFS(opts.Path)
	case "s3":
		return NewS3(opts.S3)
	default:
		return nil, fmt.Errorf("unknown archive type %q", opts.Type)
	}
}
