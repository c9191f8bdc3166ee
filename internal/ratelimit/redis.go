package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "jobnotify:sms:rate:"

// Redis shares counters between processes. Keys expire after two hours, so a
// bucket outlives its hour only briefly.
type Redis struct {
	rdb redis.Cmdable
	max int
}

func NewRedis(rdb redis.Cmdable, maxPerHour int) *Redis {
	if maxPerHour <= 0 {
		maxPerHour = DefaultMaxPerHour
	}
	return &Redis{rdb: rdb, max: maxPerHour}
}

func counterRedisKey(phone string, now time.Time) string {
	return keyPrefix + phone + ":" + Bucket(now)
}

func (r *Redis) Allow(ctx context.Context, phone string, now time.Time) (bool, error) {
	n, err := r.rdb.Get(ctx, counterRedisKey(phone, now)).Int()
	if errors.Is(err, redis.Nil) {
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("rate limit GET: %w", err)
	}
	return n < r.max, nil
}

func (r *Redis) Consume(ctx context.Context, phone string, now time.Time) error {
	key := counterRedisKey(phone, now)
	_, err := r.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Incr(ctx, key)
		p.Expire(ctx, key, 2*time.Hour)
		return nil
	})
	if err != nil {
		return fmt.Errorf("rate limit INCR: %w", err)
	}
	return nil
}
