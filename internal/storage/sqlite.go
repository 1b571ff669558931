package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// SQLiteStorage implements Store on the images table of a SQLite database
// opened with the modernc.org/sqlite driver.
type SQLiteStorage struct {
	db *sql.DB
}

// NewSQLiteStorage wraps an open, migrated SQLite handle.
func NewSQLiteStorage(db *sql.DB) *SQLiteStorage {
	return &SQLiteStorage{db: db}
}

// List returns every key in the images table, ordered by key.
func (s *SQLiteStorage) List(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key FROM images ORDER BY key`)
	if err != nil {
		return nil, readErr("list", "", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, readErr("list", "", err)
		}
		keys = append(keys, k)
	}
	if err := rows.Err(); err != nil {
		return nil, readErr("list", "", err)
	}
	return keys, nil
}

// Delete removes the row for key. Removing a missing key is not an error.
func (s *SQLiteStorage) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM images WHERE key = ?`, key); err != nil {
		return writeErr("delete", key, err)
	}
	return nil
}

// Put upserts payload and metadata of key as one row.
func (s *SQLiteStorage) Put(ctx context.Context, key string, data []byte, meta Metadata) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO images (key, data, original_name, mime_type, size_bytes, uploaded_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT (key) DO UPDATE SET
		   data = excluded.data,
		   original_name = excluded.original_name,
		   mime_type = excluded.mime_type,
		   size_bytes = excluded.size_bytes,
		   uploaded_at = excluded.uploaded_at`,
		key, data, meta.OriginalName, meta.MimeType, meta.SizeBytes,
		meta.UploadedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return writeErr("put", key, err)
	}
	return nil
}

// Get returns the payload stored under key.
func (s *SQLiteStorage) Get(ctx context.Context, key string) ([]byte, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx, `SELECT data FROM images WHERE key = ?`, key).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, readErr("get", key, err)
	}
	return data, nil
}

// GetMetadata returns the metadata columns of key.
func (s *SQLiteStorage) GetMetadata(ctx context.Context, key string) (Metadata, error) {
	var (
		meta       Metadata
		uploadedAt string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT original_name, mime_type, size_bytes, uploaded_at
		 FROM images WHERE key = ?`,
		key,
	).Scan(&meta.OriginalName, &meta.MimeType, &meta.SizeBytes, &uploadedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Metadata{}, ErrNotFound
	}
	if err != nil {
		return Metadata{}, readErr("get metadata", key, err)
	}

	meta.UploadedAt, err = time.Parse(time.RFC3339Nano, uploadedAt)
	if err != nil {
		return Metadata{}, readErr("get metadata", key, fmt.Errorf("parse uploaded_at: %w", err))
	}
	return meta, nil
}
