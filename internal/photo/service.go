// Package photo implements the single-slot image flow: an upload replaces
// whatever is stored, and retrieval serves the one stored image.
package photo

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/photoslot/service/internal/config"
	"github.com/photoslot/service/internal/storage"
)

// CanonicalKey is the name every upload is written under.
const CanonicalKey = "current-image"

// FallbackMimeType is served when the stored metadata carries no MIME type.
const FallbackMimeType = "image/jpeg"

var allowedTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
	"image/webp": true,
}

var (
	// ErrUnauthorized is returned when the upload credential is missing or wrong.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrNoFile is returned when the submission carries no photo.
	ErrNoFile = errors.New("no file uploaded")
	// ErrUnsupportedMediaType is returned for a photo outside the allow-list.
	ErrUnsupportedMediaType = errors.New("unsupported media type")
	// ErrNotFound is returned when no image is stored.
	ErrNotFound = errors.New("no image found")
	// ErrImageGone is returned when a listed image vanished before it could be read.
	ErrImageGone = fmt.Errorf("%w: image disappeared after listing", ErrNotFound)
)

// File is an uploaded photo as declared by the client.
type File struct {
	Name     string
	MimeType string
	Size     int64
	Content  io.Reader
}

// UploadInput is the validated-by-Upload form submission.
type UploadInput struct {
	Key  string
	File *File
}

// UploadResult describes a completed upload.
type UploadResult struct {
	Filename string
	Metadata storage.Metadata
}

// Image is the currently stored image.
type Image struct {
	Key      string
	Data     []byte
	MimeType string
}

// Service contains the upload and retrieval logic over a single-slot store.
type Service struct {
	store     storage.Store
	uploadKey string
	logger    *slog.Logger
	now       func() time.Time
}

// NewService creates a new photo Service. The upload credential is read from
// cfg once and never changes afterwards.
func NewService(store storage.Store, cfg *config.Config, logger *slog.Logger) *Service {
	return &Service{
		store:     store,
		uploadKey: cfg.UploadKey,
		logger:    logger,
		now:       time.Now,
	}
}

// Upload validates the submission, clears the store and writes the new image
// under CanonicalKey.
//
// Clearing and writing are separate store calls. Concurrent uploads may
// interleave between them, and a concurrent reader may see an empty store.
func (s *Service) Upload(ctx context.Context, in UploadInput) (*UploadResult, error) {
	if in.Key == "" || subtle.ConstantTimeCompare([]byte(in.Key), []byte(s.uploadKey)) != 1 {
		return nil, ErrUnauthorized
	}
	if in.File == nil || in.File.Content == nil || in.File.Size == 0 {
		return nil, ErrNoFile
	}
	if !allowedTypes[in.File.MimeType] {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedMediaType, in.File.MimeType)
	}

	if err := s.clear(ctx); err != nil {
		return nil, err
	}

	data, err := io.ReadAll(in.File.Content)
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}

	meta := storage.Metadata{
		OriginalName: in.File.Name,
		MimeType:     in.File.MimeType,
		SizeBytes:    int64(len(data)),
		UploadedAt:   s.now().UTC(),
	}
	if err := s.store.Put(ctx, CanonicalKey, data, meta); err != nil {
		return nil, fmt.Errorf("write image: %w", err)
	}

	s.logger.Info("image replaced",
		"key", CanonicalKey,
		"original_name", meta.OriginalName,
		"mime_type", meta.MimeType,
		"size_bytes", meta.SizeBytes,
	)
	return &UploadResult{Filename: CanonicalKey, Metadata: meta}, nil
}

// clear deletes every stored object, not just CanonicalKey, so objects left
// under other names never outlive an upload.
func (s *Service) clear(ctx context.Context) error {
	keys, err := s.store.List(ctx)
	if err != nil {
		return fmt.Errorf("list existing images: %w", err)
	}
	for _, k := range keys {
		if err := s.store.Delete(ctx, k); err != nil {
			return fmt.Errorf("delete existing image: %w", err)
		}
		if k != CanonicalKey {
			s.logger.Warn("removed unexpected stored object", "key", k)
		}
	}
	return nil
}

// Current returns the stored image. It reads whichever key the store lists
// first and falls back to FallbackMimeType when metadata is missing.
func (s *Service) Current(ctx context.Context) (*Image, error) {
	keys, err := s.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list images: %w", err)
	}
	if len(keys) == 0 {
		return nil, ErrNotFound
	}
	key := keys[0]

	data, err := s.store.Get(ctx, key)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrImageGone
	}
	if err != nil {
		return nil, fmt.Errorf("read image: %w", err)
	}

	mimeType := FallbackMimeType
	meta, err := s.store.GetMetadata(ctx, key)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		s.logger.Warn("image metadata missing, serving fallback type", "key", key)
	case err != nil:
		return nil, fmt.Errorf("read image metadata: %w", err)
	case meta.MimeType != "":
		mimeType = meta.MimeType
	}

	return &Image{Key: key, Data: data, MimeType: mimeType}, nil
}
