package client

import (
	"context"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/GabrielLeandroBS/locationd/internal/dto"
)

// storeBucket is the single bucket holding every persisted key.
var storeBucket = []byte("cache")

type boltStore struct {
	db *bolt.DB
}

// NewBoltStore opens (or creates) the durable store file at path.
func NewBoltStore(path string) (KeyValueStore, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("%w: open store %s: %v", dto.ErrInternalFailure, path, err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(storeBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: init store bucket: %v", dto.ErrInternalFailure, err)
	}

	return &boltStore{db: db}, nil
}

func (s *boltStore) Get(_ context.Context, key string) (string, bool, error) {
	var value string
	var found bool

	err := s.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(storeBucket).Get([]byte(key))
		if raw == nil {
			return nil
		}
		value = string(raw)
		found = true
		return nil
	})
	if err != nil {
		return "", false, fmt.Errorf("%w: store get %s: %v", dto.ErrInternalFailure, key, err)
	}
	return value, found, nil
}

func (s *boltStore) Set(_ context.Context, key, value string) error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(storeBucket).Put([]byte(key), []byte(value))
	})
	if err != nil {
		return fmt.Errorf("%w: store set %s: %v", dto.ErrInternalFailure, key, err)
	}
	return nil
}

func (s *boltStore) Delete(_ context.Context, key string) error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(storeBucket).Delete([]byte(key))
	})
	if err != nil {
		return fmt.Errorf("%w: store delete %s: %v", dto.ErrInternalFailure, key, err)
	}
	return nil
}

func (s *boltStore) Close() error {
	return s.db.Close()
}
