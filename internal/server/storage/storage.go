// Package storage описывает хранилище учетных данных: пользователей и refresh токенов.
// Реализации лежат в подпакетах sqlite, postgres и boltdb.
package storage

import (
	"context"
	"io"
)

// Storage объединяет хранилища, нужные сервису аутентификации
type Storage interface {
	UserStorage
	TokenStorage
	io.Closer

	// Ping проверяет доступность хранилища
	Ping(ctx context.Context) error
}
