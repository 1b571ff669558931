package storage

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStorage implements Store on the images table (see db migrations).
// One row carries both payload and metadata, so Put is a single upsert.
type PostgresStorage struct {
	db *pgxpool.Pool
}

// NewPostgresStorage creates a PostgresStorage with the given connection pool.
func NewPostgresStorage(db *pgxpool.Pool) *PostgresStorage {
	return &PostgresStorage{db: db}
}

// List returns every key in the images table, ordered by key.
func (s *PostgresStorage) List(ctx context.Context) ([]string, error) {
	rows, err := s.db.Query(ctx, `SELECT key FROM images ORDER BY key`)
	if err != nil {
		return nil, readErr("list", "", err)
	}
	keys, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, readErr("list", "", err)
	}
	return keys, nil
}

// Delete removes the row for key. Removing a missing key is not an error.
func (s *PostgresStorage) Delete(ctx context.Context, key string) error {
	if _, err := s.db.Exec(ctx, `DELETE FROM images WHERE key = $1`, key); err != nil {
		return writeErr("delete", key, err)
	}
	return nil
}

// Put upserts payload and metadata of key as one row.
func (s *PostgresStorage) Put(ctx context.Context, key string, data []byte, meta Metadata) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO images (key, data, original_name, mime_type, size_bytes, uploaded_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (key) DO UPDATE SET
		   data = EXCLUDED.data,
		   original_name = EXCLUDED.original_name,
		   mime_type = EXCLUDED.mime_type,
		   size_bytes = EXCLUDED.size_bytes,
		   uploaded_at = EXCLUDED.uploaded_at`,
		key, data, meta.OriginalName, meta.MimeType, meta.SizeBytes, meta.UploadedAt,
	)
	if err != nil {
		return writeErr("put", key, err)
	}
	return nil
}

// Get returns the payload stored under key.
func (s *PostgresStorage) Get(ctx context.Context, key string) ([]byte, error) {
	var data []byte
	err := s.db.QueryRow(ctx, `SELECT data FROM images WHERE key = $1`, key).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, readErr("get", key, err)
	}
	return data, nil
}

// GetMetadata returns the metadata columns of key.
func (s *PostgresStorage) GetMetadata(ctx context.Context, key string) (Metadata, error) {
	var meta Metadata
	err := s.db.QueryRow(ctx,
		`SELECT original_name, mime_type, size_bytes, uploaded_at
		 FROM images WHERE key = $1`,
		key,
	).Scan(&meta.OriginalName, &meta.MimeType, &meta.SizeBytes, &meta.UploadedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Metadata{}, ErrNotFound
	}
	if err != nil {
		return Metadata{}, readErr("get metadata", key, err)
	}
	return meta, nil
}
