package kvstore

import (
	"bytes"
	"context"
	"crypto/rand"
	"fmt"

	"go.etcd.io/bbolt"
)

const (
	reservedPrefix = "_"
	systemBucket   = "_system"
)

// Secret returns the random secret stored under name, generating size bytes
// on first use. The secret survives restarts and is not visible through the
// namespace API.
func (s *Store) Secret(ctx context.Context, name string, size int) ([]byte, error) {
	if name == "" {
		return nil, ErrInvalidKey
	}

	var secret []byte
	err := s.db.Update(func(tx *bbolt.Tx) error {
		bucket, err := tx.CreateBucketIfNotExists([]byte(systemBucket))
		if err != nil {
			return fmt.Errorf("failed to create system bucket: %w", err)
		}

		if existing := bucket.Get([]byte(name)); existing != nil {
			secret = bytes.Clone(existing)
			return nil
		}

		secret = make([]byte, size)
		if _, err := rand.Read(secret); err != nil {
			return fmt.Errorf("failed to generate secret: %w", err)
		}

		return bucket.Put([]byte(name), secret)
	})
	if err != nil {
		return nil, err
	}

	return secret, nil
}
