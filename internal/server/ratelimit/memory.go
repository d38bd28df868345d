package ratelimit

import (
	"context"
	"sync"
	"time"
)

// MemoryLimiter хранит счетчики окон в памяти процесса
type MemoryLimiter struct {
	windows  map[string]*window
	now      func() time.Time
	stopC    chan struct{}
	limit    int
	period   time.Duration
	mu       sync.Mutex
	stopOnce sync.Once
}

// window счетчик запросов конкретного ключа
type window struct {
	start time.Time
	count int
}

// MemoryOption настраивает MemoryLimiter
type MemoryOption func(*MemoryLimiter)

// WithClock подменяет источник времени
func WithClock(now func() time.Time) MemoryOption {
	return func(l *MemoryLimiter) {
		l.now = now
	}
}

// NewMemory создает limiter в памяти и запускает очистку устаревших окон.
// После использования нужно вызвать Stop.
func NewMemory(limit int, period time.Duration, opts ...MemoryOption) *MemoryLimiter {
	l := &MemoryLimiter{
		windows: make(map[string]*window),
		now:     time.Now,
		stopC:   make(chan struct{}),
		limit:   limit,
		period:  period,
	}
	for _, opt := range opts {
		opt(l)
	}

	go l.janitor()

	return l
}

// Allow учитывает запрос по ключу
func (l *MemoryLimiter) Allow(_ context.Context, key string) (Decision, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	w, ok := l.windows[key]
	if !ok || now.Sub(w.start) >= l.period {
		w = &window{start: now}
		l.windows[key] = w
	}
	w.count++

	return decide(l.limit, w.count, w.start.Add(l.period).Sub(now)), nil
}

// janitor периодически удаляет окна, которые уже закончились
func (l *MemoryLimiter) janitor() {
	ticker := time.NewTicker(l.period)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			l.removeExpired()
		case <-l.stopC:
			return
		}
	}
}

func (l *MemoryLimiter) removeExpired() {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	for key, w := range l.windows {
		if now.Sub(w.start) >= l.period {
			delete(l.windows, key)
		}
	}
}

// Len количество отслеживаемых ключей
func (l *MemoryLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.windows)
}

// Stop останавливает фоновую очистку. Повторный вызов безопасен.
func (l *MemoryLimiter) Stop() {
	l.stopOnce.Do(func() {
		close(l.stopC)
	})
}
