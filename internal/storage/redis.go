package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/redis/go-redis/v9"
)

// RedisStorage implements Store on Redis. Each object is a hash holding the
// payload and the JSON metadata; a set indexes the live keys so List does not
// need to SCAN the keyspace.
type RedisStorage struct {
	client *redis.Client
	prefix string
}

// NewRedisStorage creates a client for addr and verifies the connection.
func NewRedisStorage(ctx context.Context, addr, password string, db int, prefix string) (*RedisStorage, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return NewRedisStorageFromClient(rdb, prefix), nil
}

// NewRedisStorageFromClient wraps an existing client.
func NewRedisStorageFromClient(client *redis.Client, prefix string) *RedisStorage {
	return &RedisStorage{client: client, prefix: prefix}
}

func (s *RedisStorage) indexKey() string {
	return s.prefix + ":keys"
}

func (s *RedisStorage) objectKey(key string) string {
	return s.prefix + ":obj:" + key
}

// List returns the members of the key index, sorted.
func (s *RedisStorage) List(ctx context.Context) ([]string, error) {
	keys, err := s.client.SMembers(ctx, s.indexKey()).Result()
	if err != nil {
		return nil, readErr("list", "", err)
	}
	sort.Strings(keys)
	return keys, nil
}

// Delete drops the object hash and its index entry in one MULTI/EXEC.
// Removing a missing key is not an error.
func (s *RedisStorage) Delete(ctx context.Context, key string) error {
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, s.objectKey(key))
		pipe.SRem(ctx, s.indexKey(), key)
		return nil
	})
	if err != nil {
		return writeErr("delete", key, err)
	}
	return nil
}

// Put writes the object hash and indexes key in one MULTI/EXEC.
func (s *RedisStorage) Put(ctx context.Context, key string, data []byte, meta Metadata) error {
	raw, err := json.Marshal(meta)
	if err != nil {
		return writeErr("put", key, fmt.Errorf("marshal metadata: %w", err))
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, s.objectKey(key), "data", data, "meta", raw)
		pipe.SAdd(ctx, s.indexKey(), key)
		return nil
	})
	if err != nil {
		return writeErr("put", key, err)
	}
	return nil
}

// Get returns the payload field of the object hash.
func (s *RedisStorage) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := s.client.HGet(ctx, s.objectKey(key), "data").Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, readErr("get", key, err)
	}
	return data, nil
}

// GetMetadata decodes the meta field of the object hash.
func (s *RedisStorage) GetMetadata(ctx context.Context, key string) (Metadata, error) {
	raw, err := s.client.HGet(ctx, s.objectKey(key), "meta").Bytes()
	if errors.Is(err, redis.Nil) {
		return Metadata{}, ErrNotFound
	}
	if err != nil {
		return Metadata{}, readErr("get metadata", key, err)
	}

	var meta Metadata
	if err := json.Unmarshal(raw, &meta); err != nil {
		return Metadata{}, readErr("get metadata", key, fmt.Errorf("decode metadata: %w", err))
	}
	return meta, nil
}

// Close closes the Redis client.
func (s *RedisStorage) Close() error {
	return s.client.Close()
}
