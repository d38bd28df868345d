// Package ratelimit ограничивает частоту запросов по ключу (обычно IP клиента)
// фиксированным окном. Есть две реализации: в памяти процесса и в Redis,
// вторая нужна, когда сервер запущен в нескольких экземплярах.
package ratelimit

import (
	"context"
	"time"
)

const (
	// DefaultLimit количество попыток входа в окне
	DefaultLimit = 5
	// DefaultWindow длительность окна
	DefaultWindow = 15 * time.Minute
)

// Decision результат проверки лимита
type Decision struct {
	// RetryAfter время до начала следующего окна
	RetryAfter time.Duration
	Limit      int
	Remaining  int
	Allowed    bool
}

// Limiter считает запрос и решает, пропускать ли его
type Limiter interface {
	Allow(ctx context.Context, key string) (Decision, error)
}

func decide(limit, count int, retryAfter time.Duration) Decision {
	remaining := limit - count
	if remaining < 0 {
		remaining = 0
	}
	if retryAfter < 0 {
		retryAfter = 0
	}
	return Decision{
		Allowed:    count <= limit,
		Limit:      limit,
		Remaining:  remaining,
		RetryAfter: retryAfter,
	}
}
