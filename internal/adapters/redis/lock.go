package redisad

import (
	"context"
	"time"
)

// TryLock acquires a best-effort run lock via SETNX with a TTL so a
// crashed holder cannot wedge future runs.
func (r *Cache) TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return r.c.SetNX(ctx, key, "1", ttl).Result()
}

func (r *Cache) Unlock(ctx context.Context, key string) error {
	return r.c.Del(ctx, key).Err()
}
