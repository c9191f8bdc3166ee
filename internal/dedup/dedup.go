// Package dedup remembers which job completions were already notified, so a
// repeated upstream webhook for the same job does not message the customer
// twice.
package dedup

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	DefaultTTL = 24 * time.Hour

	keyPrefix = "jobnotify:completed:"
)

// setNX is the slice of redis.Cmdable the filter needs.
type setNX interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
}

type Filter struct {
	rdb setNX
	ttl time.Duration
}

func NewFilter(rdb setNX, ttl time.Duration) *Filter {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Filter{rdb: rdb, ttl: ttl}
}

// FirstSeen reports whether jobID has not been marked within the TTL, marking
// it atomically when so.
func (f *Filter) FirstSeen(ctx context.Context, jobID string) (bool, error) {
	set, err := f.rdb.SetNX(ctx, keyPrefix+jobID, 1, f.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("dedup SETNX: %w", err)
	}
	return set, nil
}
