// Package ratelimit bounds outbound SMS per recipient per calendar hour (UTC).
//
// Allow is a read-only check and Consume records a send that actually went
// out. Two callers that both pass Allow before either calls Consume can exceed
// the ceiling; that is accepted for this single-writer workload.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

const DefaultMaxPerHour = 3

type Limiter interface {
	Allow(ctx context.Context, phone string, now time.Time) (bool, error)
	Consume(ctx context.Context, phone string, now time.Time) error
}

// Bucket is the hour bucket key, e.g. "2026-03-10T09".
func Bucket(now time.Time) string {
	return now.UTC().Format("2006-01-02T15")
}

type counterKey struct {
	phone  string
	bucket string
}

// Memory keeps counters in process memory; they reset on restart.
type Memory struct {
	max int

	mu     sync.Mutex
	counts map[counterKey]int
}

func NewMemory(maxPerHour int) *Memory {
	if maxPerHour <= 0 {
		maxPerHour = DefaultMaxPerHour
	}
	return &Memory{max: maxPerHour, counts: map[counterKey]int{}}
}

func (m *Memory) Allow(ctx context.Context, phone string, now time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counts[counterKey{phone, Bucket(now)}] < m.max, nil
}

func (m *Memory) Consume(ctx context.Context, phone string, now time.Time) error {
	bucket := Bucket(now)

	m.mu.Lock()
	defer m.mu.Unlock()

	// drop counters from earlier hours
	for k := range m.counts {
		if k.bucket != bucket {
			delete(m.counts, k)
		}
	}
	m.counts[counterKey{phone, bucket}]++
	return nil
}
