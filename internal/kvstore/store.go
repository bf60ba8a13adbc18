package kvstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"go.etcd.io/bbolt"
)

// DefaultNamespace используется, если namespace не указан
const DefaultNamespace = "default"

var (
	// ErrKeyNotFound is returned when the key does not exist in the namespace
	ErrKeyNotFound = errors.New("key not found")
	// ErrInvalidKey is returned for an empty key
	ErrInvalidKey = errors.New("key cannot be empty")
	// ErrInvalidValue is returned when the value is not valid JSON
	ErrInvalidValue = errors.New("value must be valid JSON")
	// ErrReservedNamespace is returned for namespaces used by the application itself
	ErrReservedNamespace = errors.New("namespace is reserved")
)

// Store хранит настройки приложения в BoltDB: один bucket на namespace, значения в JSON
type Store struct {
	db *bbolt.DB
}

// New opens (or creates) the BoltDB file at dbPath
func New(ctx context.Context, dbPath string) (*Store, error) {
	// Открываем BoltDB
	db, err := bbolt.Open(dbPath, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open boltdb: %w", err)
	}

	store := &Store{db: db}

	// Bucket по умолчанию создаем сразу
	if err := db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(DefaultNamespace))
		return err
	}); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize buckets: %w", err)
	}

	return store, nil
}

// Close closes the database file
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Get returns the raw JSON value stored under key
func (s *Store) Get(ctx context.Context, namespace, key string) (json.RawMessage, error) {
	if key == "" {
		return nil, ErrInvalidKey
	}
	name, err := bucketName(namespace)
	if err != nil {
		return nil, err
	}

	var value json.RawMessage
	err = s.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(name)
		if bucket == nil {
			return ErrKeyNotFound
		}

		data := bucket.Get([]byte(key))
		if data == nil {
			return ErrKeyNotFound
		}

		// Данные валидны только внутри транзакции
		value = bytes.Clone(data)
		return nil
	})
	if err != nil {
		return nil, err
	}

	return value, nil
}

// Set сохраняет значение под ключом, перезаписывая предыдущее
func (s *Store) Set(ctx context.Context, namespace, key string, value json.RawMessage) error {
	if err := validateEntry(key, value); err != nil {
		return err
	}
	name, err := bucketName(namespace)
	if err != nil {
		return err
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		bucket, err := tx.CreateBucketIfNotExists(name)
		if err != nil {
			return fmt.Errorf("failed to create bucket: %w", err)
		}

		if err := bucket.Put([]byte(key), value); err != nil {
			return fmt.Errorf("failed to save value: %w", err)
		}

		return nil
	})
}

// Delete удаляет ключ. Отсутствующий ключ не является ошибкой.
func (s *Store) Delete(ctx context.Context, namespace, key string) error {
	if key == "" {
		return ErrInvalidKey
	}
	name, err := bucketName(namespace)
	if err != nil {
		return err
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(name)
		if bucket == nil {
			return nil
		}

		if err := bucket.Delete([]byte(key)); err != nil {
			return fmt.Errorf("failed to delete value: %w", err)
		}

		return nil
	})
}

// Keys returns all keys of the namespace in byte order
func (s *Store) Keys(ctx context.Context, namespace string) ([]string, error) {
	name, err := bucketName(namespace)
	if err != nil {
		return nil, err
	}

	keys := make([]string, 0)
	err = s.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(name)
		if bucket == nil {
			return nil
		}

		return bucket.ForEach(func(k, _ []byte) error {
			keys = append(keys, string(k))
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list keys: %w", err)
	}

	return keys, nil
}

// Import записывает все значения одной транзакцией: либо все, либо ничего
func (s *Store) Import(ctx context.Context, namespace string, values map[string]json.RawMessage) error {
	name, err := bucketName(namespace)
	if err != nil {
		return err
	}

	// Проверяем все записи до начала транзакции
	for key, value := range values {
		if err := validateEntry(key, value); err != nil {
			return fmt.Errorf("key %q: %w", key, err)
		}
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		bucket, err := tx.CreateBucketIfNotExists(name)
		if err != nil {
			return fmt.Errorf("failed to create bucket: %w", err)
		}

		for key, value := range values {
			if err := bucket.Put([]byte(key), value); err != nil {
				return fmt.Errorf("failed to import key %q: %w", key, err)
			}
		}

		return nil
	})
}

// Export returns a copy of every entry in the namespace
func (s *Store) Export(ctx context.Context, namespace string) (map[string]json.RawMessage, error) {
	name, err := bucketName(namespace)
	if err != nil {
		return nil, err
	}

	values := make(map[string]json.RawMessage)
	err = s.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(name)
		if bucket == nil {
			return nil
		}

		return bucket.ForEach(func(k, v []byte) error {
			values[string(k)] = bytes.Clone(v)
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to export values: %w", err)
	}

	return values, nil
}

// bucketName отображает namespace в bucket; служебный bucket недоступен снаружи
func bucketName(namespace string) ([]byte, error) {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	if strings.HasPrefix(namespace, reservedPrefix) {
		return nil, ErrReservedNamespace
	}
	return []byte(namespace), nil
}

func validateEntry(key string, value json.RawMessage) error {
	if key == "" {
		return ErrInvalidKey
	}
	if !json.Valid(value) {
		return ErrInvalidValue
	}
	return nil
}
