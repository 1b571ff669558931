package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/dgraph-io/badger/v4"
)

const (
	badgerObjectPrefix = "obj/"
	badgerMetaPrefix   = "meta/"
)

// BadgerStorage implements Store on an embedded Badger database. Payload and
// metadata live under separate keys but are always written in one transaction.
type BadgerStorage struct {
	db *badger.DB
}

// NewBadgerStorage opens (or creates) a Badger database under dir.
// An empty dir opens an in-memory database.
func NewBadgerStorage(dir string) (*BadgerStorage, error) {
	var opts badger.Options
	if dir == "" {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create badger directory: %w", err)
		}
		opts = badger.DefaultOptions(dir)
	}
	opts = opts.WithLogger(nil)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}
	return &BadgerStorage{db: db}, nil
}

// List returns the stored keys in Badger's sorted key order.
func (s *BadgerStorage) List(_ context.Context) ([]string, error) {
	var keys []string
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(badgerObjectPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			k := it.Item().Key()
			keys = append(keys, string(k[len(badgerObjectPrefix):]))
		}
		return nil
	})
	if err != nil {
		return nil, readErr("list", "", err)
	}
	return keys, nil
}

// Delete removes payload and metadata of key in one transaction.
// Removing a missing key is not an error.
func (s *BadgerStorage) Delete(_ context.Context, key string) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Delete([]byte(badgerObjectPrefix + key)); err != nil {
			return err
		}
		return txn.Delete([]byte(badgerMetaPrefix + key))
	})
	if err != nil {
		return writeErr("delete", key, err)
	}
	return nil
}

// Put writes payload and metadata of key in one transaction.
func (s *BadgerStorage) Put(_ context.Context, key string, data []byte, meta Metadata) error {
	raw, err := json.Marshal(meta)
	if err != nil {
		return writeErr("put", key, fmt.Errorf("marshal metadata: %w", err))
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set([]byte(badgerObjectPrefix+key), data); err != nil {
			return err
		}
		return txn.Set([]byte(badgerMetaPrefix+key), raw)
	})
	if err != nil {
		return writeErr("put", key, err)
	}
	return nil
}

// Get returns the payload stored under key.
func (s *BadgerStorage) Get(_ context.Context, key string) ([]byte, error) {
	data, err := s.value(badgerObjectPrefix + key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, readErr("get", key, err)
	}
	return data, nil
}

// GetMetadata decodes the metadata stored under key.
func (s *BadgerStorage) GetMetadata(_ context.Context, key string) (Metadata, error) {
	raw, err := s.value(badgerMetaPrefix + key)
	if errors.Is(err, badger.ErrKeyNotFound) {
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

// Close closes the underlying database.
func (s *BadgerStorage) Close() error {
	return s.db.Close()
}

func (s *BadgerStorage) value(key string) ([]byte, error) {
	var out []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		out, err = item.ValueCopy(nil)
		return err
	})
	return out, err
}
