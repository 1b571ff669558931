package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// User metadata keys; MinIO sends them as X-Amz-Meta-* headers.
const (
	metaOriginalName = "Original-Name"
	metaSize         = "Size-Bytes"
	metaUploadedAt   = "Uploaded-At"
)

// MinioStorage implements Store using a MinIO (or any S3-compatible) bucket.
// The payload is the object body, the MIME type is the object's Content-Type,
// and the remaining metadata travels as user metadata on the same PUT.
type MinioStorage struct {
	client *minio.Client
	bucket string
}

// NewMinioStorage creates a MinIO client, ensures the bucket exists, and returns
// a ready-to-use MinioStorage. The bucket stays private; images are served by
// the retrieval endpoint.
func NewMinioStorage(ctx context.Context, logger *slog.Logger, endpoint, accessKey, secretKey, bucket string, useSSL bool) (*MinioStorage, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	exists, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket existence: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create bucket %q: %w", bucket, err)
		}
		logger.Info("storage: created bucket", "bucket", bucket)
	}

	return &MinioStorage{client: client, bucket: bucket}, nil
}

// List returns every object key in the bucket, in S3's lexical order.
func (s *MinioStorage) List(ctx context.Context) ([]string, error) {
	// Cancelling stops the listing goroutine when we return before the channel drains.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var keys []string
	for obj := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{Recursive: true}) {
		if obj.Err != nil {
			return nil, readErr("list", "", obj.Err)
		}
		keys = append(keys, obj.Key)
	}
	return keys, nil
}

// Delete removes the object at key. S3 treats removal of a missing key as success.
func (s *MinioStorage) Delete(ctx context.Context, key string) error {
	if err := s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return writeErr("delete", key, err)
	}
	return nil
}

// Put uploads data as the object body with meta on the same request.
func (s *MinioStorage) Put(ctx context.Context, key string, data []byte, meta Metadata) error {
	_, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: meta.MimeType,
		UserMetadata: map[string]string{
			metaOriginalName: url.QueryEscape(meta.OriginalName),
			metaSize:         strconv.FormatInt(meta.SizeBytes, 10),
			metaUploadedAt:   meta.UploadedAt.UTC().Format(time.RFC3339Nano),
		},
	})
	if err != nil {
		return writeErr("put", key, err)
	}
	return nil
}

// Get downloads the object body.
func (s *MinioStorage) Get(ctx context.Context, key string) ([]byte, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, s.translateRead("get", key, err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, s.translateRead("get", key, err)
	}
	return data, nil
}

// GetMetadata reads metadata from the object's headers without fetching the body.
func (s *MinioStorage) GetMetadata(ctx context.Context, key string) (Metadata, error) {
	info, err := s.client.StatObject(ctx, s.bucket, key, minio.StatObjectOptions{})
	if err != nil {
		return Metadata{}, s.translateRead("get metadata", key, err)
	}

	meta := Metadata{
		MimeType:  info.ContentType,
		SizeBytes: info.Size,
	}
	if v, ok := lookupFold(info.UserMetadata, metaOriginalName); ok {
		if name, err := url.QueryUnescape(v); err == nil {
			meta.OriginalName = name
		}
	}
	if v, ok := lookupFold(info.UserMetadata, metaSize); ok {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			meta.SizeBytes = n
		}
	}
	if v, ok := lookupFold(info.UserMetadata, metaUploadedAt); ok {
		if ts, err := time.Parse(time.RFC3339Nano, v); err == nil {
			meta.UploadedAt = ts
		}
	}
	return meta, nil
}

func (s *MinioStorage) translateRead(op, key string, err error) error {
	switch minio.ToErrorResponse(err).Code {
	case "NoSuchKey", "NotFound":
		return ErrNotFound
	}
	return readErr(op, key, err)
}

// lookupFold finds a user metadata value regardless of header canonicalisation.
func lookupFold(m map[string]string, key string) (string, bool) {
	for k, v := range m {
		if strings.EqualFold(k, key) {
			return v, true
		}
	}
	return "", false
}
