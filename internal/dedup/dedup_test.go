package dedup

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

type fakeRedis struct {
	keys map[string]time.Duration
	err  error
}

func (f *fakeRedis) SetNX(ctx context.Context, key string, value interface{}, exp time.Duration) *redis.BoolCmd {
	if f.err != nil {
		return redis.NewBoolResult(false, f.err)
	}
	if _, ok := f.keys[key]; ok {
		return redis.NewBoolResult(false, nil)
	}
	f.keys[key] = exp
	return redis.NewBoolResult(true, nil)
}

func TestFirstSeenOnlyOnce(t *testing.T) {
	rdb := &fakeRedis{keys: map[string]time.Duration{}}
	f := NewFilter(rdb, time.Hour)
	ctx := context.Background()

	first, err := f.FirstSeen(ctx, "J1")
	if err != nil || !first {
		t.Fatalf("first completion must pass: %v %v", first, err)
	}
	again, _ := f.FirstSeen(ctx, "J1")
	if again {
		t.Fatalf("repeat completion must be filtered")
	}
	if other, _ := f.FirstSeen(ctx, "J2"); !other {
		t.Fatalf("other jobs are independent")
	}
	if rdb.keys["jobnotify:completed:J1"] != time.Hour {
		t.Fatalf("unexpected keys %v", rdb.keys)
	}
}

func TestFirstSeenDefaultsTTLAndWrapsErrors(t *testing.T) {
	if NewFilter(&fakeRedis{}, 0).ttl != DefaultTTL {
		t.Fatalf("expected default ttl")
	}
	boom := errors.New("connection refused")
	f := NewFilter(&fakeRedis{err: boom}, time.Minute)
	if _, err := f.FirstSeen(context.Background(), "J1"); !errors.Is(err, boom) {
		t.Fatalf("expected wrapped redis error, got %v", err)
	}
}
