package api

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// redisRateCounter 是 *redis.Client 的子集，便于在测试中替换。
type redisRateCounter interface {
	Incr(ctx context.Context, key string) *redis.IntCmd
	Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd
}

// incrWithTTL 对 key 计数，首次计数时设置过期时间，形成固定窗口。
func incrWithTTL(ctx context.Context, client redisRateCounter, key string, window time.Duration) (int64, error) {
	count, err := client.Incr(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	if count == 1 {
		if err := client.Expire(ctx, key, window).Err(); err != nil {
			return count, err
		}
	}
	return count, nil
}
