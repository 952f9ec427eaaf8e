// Package storage holds the contract for archiving text dumps in an object
// store and the key layout they are archived under.
package storage

import (
	"context"
	"errors"
	"io"
)

var (
	ErrObjectNotFound = errors.New("object not found")
	ErrSizeMismatch   = errors.New("stored object size differs from upload")
)

// Upload is one dump handed to an Archive.
type Upload struct {
	Key         string
	Body        io.Reader
	Size        int64
	ContentType string
	// Metadata is stored with the object as user metadata.
	Metadata map[string]string
}

// Receipt identifies an object after it was stored and verified.
type Receipt struct {
	// Key is the full object key, including any configured prefix.
	Key      string
	URI      string
	Size     int64
	ETag     string
	Metadata map[string]string
}

// Archive stores dumps. Store returns only once the object has been read
// back with exactly Upload.Size bytes; a short object yields ErrSizeMismatch.
type Archive interface {
	Store(ctx context.Context, upload Upload) (Receipt, error)
}
