package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultRedisPrefix префикс ключей счетчиков входа
const DefaultRedisPrefix = "linaform:login:"

// incrWindowScript увеличивает счетчик и при первом обращении ставит TTL окна.
// Возвращает {count, pttl}.
var incrWindowScript = redis.NewScript(`
local count = redis.call("INCR", KEYS[1])
if count == 1 then
	redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
local ttl = redis.call("PTTL", KEYS[1])
if ttl < 0 then
	redis.call("PEXPIRE", KEYS[1], ARGV[1])
	ttl = tonumber(ARGV[1])
end
return {count, ttl}
`)

// RedisLimiter хранит счетчики окон в Redis, лимит общий для всех экземпляров сервера
type RedisLimiter struct {
	redis  redis.UniversalClient
	prefix string
	limit  int
	period time.Duration
}

// NewRedis создает limiter поверх Redis клиента
func NewRedis(client redis.UniversalClient, prefix string, limit int, period time.Duration) *RedisLimiter {
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}
	return &RedisLimiter{
		redis:  client,
		prefix: prefix,
		limit:  limit,
		period: period,
	}
}

// Allow учитывает запрос по ключу
func (l *RedisLimiter) Allow(ctx context.Context, key string) (Decision, error) {
	res, err := incrWindowScript.Run(ctx, l.redis, []string{l.prefix + key}, l.period.Milliseconds()).Int64Slice()
	if err != nil {
		return Decision{}, fmt.Errorf("failed to increment rate limit counter: %w", err)
	}
	if len(res) != 2 {
		return Decision{}, fmt.Errorf("unexpected rate limit script result: %v", res)
	}

	return decide(l.limit, int(res[0]), time.Duration(res[1])*time.Millisecond), nil
}
