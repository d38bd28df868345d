// Package boltdb реализует storage.Storage во встраиваемой базе BoltDB.
// Подходит для однопроцессного развертывания без внешней СУБД.
package boltdb

import (
	"context"
	"fmt"
	"time"

	"go.etcd.io/bbolt"
)

var (
	// BoltDB bucket names
	bucketUsers       = []byte("users")
	bucketUserByEmail = []byte("users_by_email")
	bucketTokens      = []byte("refresh_tokens")
	bucketUserTokens  = []byte("user_tokens")
)

// Storage represents BoltDB storage implementation
// Все записи идут через db.Update, BoltDB сериализует пишущие транзакции,
// поэтому проверка уникальности и ротация токена атомарны
type Storage struct {
	db *bbolt.DB
}

// New creates a new BoltDB storage instance
// dbPath is the path to the BoltDB database file
func New(ctx context.Context, dbPath string) (*Storage, error) {
	// Открываем BoltDB, не ждем бесконечно если файл занят другим процессом
	db, err := bbolt.Open(dbPath, 0600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open boltdb: %w", err)
	}

	storage := &Storage{db: db}

	// Инициализируем buckets
	if err := storage.initBuckets(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize buckets: %w", err)
	}

	return storage, nil
}

// Close closes the database
func (s *Storage) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Ping проверяет, что база открыта
func (s *Storage) Ping(ctx context.Context) error {
	return s.db.View(func(tx *bbolt.Tx) error {
		if tx.Bucket(bucketUsers) == nil {
			return fmt.Errorf("users bucket not found")
		}
		return nil
	})
}

// initBuckets создает необходимые buckets если они не существуют
func (s *Storage) initBuckets() error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{bucketUsers, bucketUserByEmail, bucketTokens, bucketUserTokens} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return fmt.Errorf("failed to create %s bucket: %w", name, err)
			}
		}
		return nil
	})
}

// userTokenKey ключ индекса токенов пользователя: userID + 0x00 + token
func userTokenKey(userID, token string) []byte {
	key := make([]byte, 0, len(userID)+1+len(token))
	key = append(key, userID...)
	key = append(key, 0)
	key = append(key, token...)
	return key
}

func userTokenPrefix(userID string) []byte {
	return append([]byte(userID), 0)
}
