package ratelimit

import (
	"context"
	"testing"
	"time"
)

func TestMemoryFourthSendInSameHourDenied(t *testing.T) {
	ctx := context.Background()
	l := NewMemory(3)
	phone := "+61412345678"
	now := time.Date(2026, 3, 10, 9, 5, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		ok, err := l.Allow(ctx, phone, now)
		if err != nil || !ok {
			t.Fatalf("send %d should be allowed: %v %v", i+1, ok, err)
		}
		_ = l.Consume(ctx, phone, now.Add(time.Duration(i)*time.Minute))
	}

	if ok, _ := l.Allow(ctx, phone, now.Add(50*time.Minute)); ok {
		t.Fatalf("4th send within the hour must be denied")
	}
	if ok, _ := l.Allow(ctx, "+61400000000", now); !ok {
		t.Fatalf("other recipients are independent")
	}

	next := time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC)
	if ok, _ := l.Allow(ctx, phone, next); !ok {
		t.Fatalf("next hour bucket must allow")
	}
}

func TestMemoryAllowDoesNotConsume(t *testing.T) {
	ctx := context.Background()
	l := NewMemory(1)
	now := time.Now()

	for i := 0; i < 5; i++ {
		if ok, _ := l.Allow(ctx, "+61412345678", now); !ok {
			t.Fatalf("check alone must not count toward the ceiling")
		}
	}
}

func TestMemoryConsumeDropsOldBuckets(t *testing.T) {
	ctx := context.Background()
	l := NewMemory(3)
	t0 := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

	_ = l.Consume(ctx, "+61412345678", t0)
	_ = l.Consume(ctx, "+61400000000", t0.Add(time.Hour))

	if len(l.counts) != 1 {
		t.Fatalf("expected stale bucket pruned, have %d counters", len(l.counts))
	}
}

func TestBucketIsUTCHour(t *testing.T) {
	brisbane := time.FixedZone("AEST", 10*60*60)
	got := Bucket(time.Date(2026, 3, 10, 19, 30, 0, 0, brisbane))
	if got != "2026-03-10T09" {
		t.Fatalf("bucket = %q", got)
	}
	if k := counterRedisKey("+61412345678", time.Date(2026, 3, 10, 9, 1, 0, 0, time.UTC)); k != "jobnotify:sms:rate:+61412345678:2026-03-10T09" {
		t.Fatalf("redis key = %q", k)
	}
}
