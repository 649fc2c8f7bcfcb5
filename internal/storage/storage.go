package storage

import (
	"context"
	"errors"
	"io"
)

// ErrForeignURL is returned when a URL was not issued by the storage it is handed to.
var ErrForeignURL = errors.New("file URL does not belong to this storage")

// FileStorage defines the interface for file storage operations
type FileStorage interface {
	// SaveFile saves an image of a sniffed contentType and returns its public URL.
	// The stored name and extension are derived from contentType alone.
	SaveFile(ctx context.Context, file io.Reader, contentType string) (string, error)
	// DeleteFile deletes a file by its URL
	DeleteFile(ctx context.Context, fileURL string) error
}
