package storage_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/photoslot/service/internal/db"
	"github.com/photoslot/service/internal/storage"
)

// testStoreContract exercises the behaviour every Store adapter must share.
func testStoreContract(t *testing.T, s storage.Store) {
	t.Helper()
	ctx := context.Background()

	keys, err := s.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, keys, "fresh store must be empty")

	_, err = s.Get(ctx, "current-image")
	assert.ErrorIs(t, err, storage.ErrNotFound)
	_, err = s.GetMetadata(ctx, "current-image")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	require.NoError(t, s.Delete(ctx, "missing"), "delete of a missing key is idempotent")

	first := storage.Metadata{
		OriginalName: "holiday photo.png",
		MimeType:     "image/png",
		SizeBytes:    4,
		UploadedAt:   time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC),
	}
	require.NoError(t, s.Put(ctx, "current-image", []byte{0x89, 'P', 'N', 'G'}, first))

	keys, err = s.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"current-image"}, keys)

	data, err := s.Get(ctx, "current-image")
	require.NoError(t, err)
	assert.Equal(t, []byte{0x89, 'P', 'N', 'G'}, data)

	meta, err := s.GetMetadata(ctx, "current-image")
	require.NoError(t, err)
	assertMetadata(t, first, meta)

	second := storage.Metadata{
		OriginalName: "image.jpg",
		MimeType:     "image/jpeg",
		SizeBytes:    3,
		UploadedAt:   first.UploadedAt.Add(time.Hour),
	}
	require.NoError(t, s.Put(ctx, "current-image", []byte{0xff, 0xd8, 0xff}, second))

	data, err = s.Get(ctx, "current-image")
	require.NoError(t, err)
	assert.Equal(t, []byte{0xff, 0xd8, 0xff}, data, "put overwrites the payload")
	meta, err = s.GetMetadata(ctx, "current-image")
	require.NoError(t, err)
	assertMetadata(t, second, meta)

	require.NoError(t, s.Put(ctx, "legacy", []byte("old"), first))
	keys, err = s.List(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"current-image", "legacy"}, keys)

	for _, k := range keys {
		require.NoError(t, s.Delete(ctx, k))
	}
	keys, err = s.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, keys)
	_, err = s.Get(ctx, "current-image")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func assertMetadata(t *testing.T, want, got storage.Metadata) {
	t.Helper()
	assert.Equal(t, want.OriginalName, got.OriginalName)
	assert.Equal(t, want.MimeType, got.MimeType)
	assert.Equal(t, want.SizeBytes, got.SizeBytes)
	assert.True(t, want.UploadedAt.Equal(got.UploadedAt), "uploadedAt: want %s, got %s", want.UploadedAt, got.UploadedAt)
}

func TestMemoryStorage(t *testing.T) {
	testStoreContract(t, storage.NewMemoryStorage())
}

func TestMemoryStorageCopiesPayload(t *testing.T) {
	ctx := context.Background()
	s := storage.NewMemoryStorage()

	payload := []byte("abc")
	require.NoError(t, s.Put(ctx, "k", payload, storage.Metadata{}))
	payload[0] = 'z'

	data, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), data)
}

func TestBadgerStorage(t *testing.T) {
	s, err := storage.NewBadgerStorage("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	testStoreContract(t, s)
}

func TestBadgerStoragePersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	s, err := storage.NewBadgerStorage(dir)
	require.NoError(t, err)
	require.NoError(t, s.Put(ctx, "current-image", []byte("gif89a"), storage.Metadata{MimeType: "image/gif"}))
	require.NoError(t, s.Close())

	s, err = storage.NewBadgerStorage(dir)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	data, err := s.Get(ctx, "current-image")
	require.NoError(t, err)
	assert.Equal(t, []byte("gif89a"), data)
}

func TestBadgerStorageWriteErrorAfterClose(t *testing.T) {
	s, err := storage.NewBadgerStorage("")
	require.NoError(t, err)
	require.NoError(t, s.Close())

	err = s.Put(context.Background(), "current-image", []byte("x"), storage.Metadata{})
	var writeErr *storage.WriteError
	require.True(t, errors.As(err, &writeErr), "expected WriteError, got %v", err)
	assert.Equal(t, "put", writeErr.Op)
	assert.Equal(t, "current-image", writeErr.Key)
}

func TestRedisStorage(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	s := storage.NewRedisStorageFromClient(client, "test")
	t.Cleanup(func() { _ = s.Close() })

	testStoreContract(t, s)
}

func TestRedisStorageKeyLayout(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	s := storage.NewRedisStorageFromClient(client, "slot")
	t.Cleanup(func() { _ = s.Close() })

	require.NoError(t, s.Put(context.Background(), "current-image", []byte("x"), storage.Metadata{MimeType: "image/webp"}))

	members, err := mr.Members("slot:keys")
	require.NoError(t, err)
	assert.Equal(t, []string{"current-image"}, members)
	assert.Equal(t, "x", mr.HGet("slot:obj:current-image", "data"))
}

func TestSQLiteStorage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "photoslot.db")
	require.NoError(t, db.MigrateSQLite(path))

	conn, err := db.OpenSQLite(context.Background(), path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	testStoreContract(t, storage.NewSQLiteStorage(conn))
}

func TestPostgresStorage(t *testing.T) {
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	ctx := context.Background()

	require.NoError(t, db.Migrate(url))
	pool, err := db.Connect(ctx, url)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	_, err = pool.Exec(ctx, `DELETE FROM images`)
	require.NoError(t, err)

	testStoreContract(t, storage.NewPostgresStorage(pool))
}

func TestMinioStorage(t *testing.T) {
	endpoint := os.Getenv("TEST_MINIO_ENDPOINT")
	if endpoint == "" {
		t.Skip("TEST_MINIO_ENDPOINT not set")
	}
	ctx := context.Background()

	bucket := "photoslot-test-" + time.Now().UTC().Format("20060102150405")
	s, err := storage.NewMinioStorage(ctx, discardLogger(), endpoint, "minioadmin", "minioadmin", bucket, false)
	require.NoError(t, err)

	testStoreContract(t, s)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
