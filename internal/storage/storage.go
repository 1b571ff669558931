// Package storage defines the single-slot store contract and its backing adapters.
// Swap implementations by changing the concrete type injected at startup; every
// adapter is a thin translation layer over a key-value service and performs no
// validation of the content it stores.
package storage

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned when the requested object does not exist.
var ErrNotFound = errors.New("object not found")

// Metadata is the record persisted alongside every stored object.
type Metadata struct {
	OriginalName string    `json:"originalName"`
	MimeType     string    `json:"mimeType"`
	SizeBytes    int64     `json:"sizeBytes"`
	UploadedAt   time.Time `json:"uploadedAt"`
}

// Store is the interface for the key-value collaborator holding uploaded images.
// Nothing here enforces the single-object rule; callers do.
type Store interface {
	// List enumerates the keys of every object currently present.
	List(ctx context.Context) ([]string, error)
	// Delete removes the object named key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
	// Put writes or overwrites the payload and its metadata as one logical unit.
	Put(ctx context.Context, key string, data []byte, meta Metadata) error
	// Get returns the payload stored under key, or ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)
	// GetMetadata returns the last written metadata for key, or ErrNotFound.
	GetMetadata(ctx context.Context, key string) (Metadata, error)
}

// WriteError reports a backend failure while mutating the store.
type WriteError struct {
	Op  string
	Key string
	Err error
}

func (e *WriteError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("store %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("store %s %q: %v", e.Op, e.Key, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }

// ReadError reports a backend failure while reading from the store.
type ReadError struct {
	Op  string
	Key string
	Err error
}

func (e *ReadError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("store %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("store %s %q: %v", e.Op, e.Key, e.Err)
}

func (e *ReadError) Unwrap() error { return e.Err }

func writeErr(op, key string, err error) error {
	return &WriteError{Op: op, Key: key, Err: err}
}

func readErr(op, key string, err error) error {
	return &ReadError{Op: op, Key: key, Err: err}
}
