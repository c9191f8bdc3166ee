package dispatch

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"jobnotify/internal/domain"
	"jobnotify/internal/oauth"
	"jobnotify/internal/observability"
	"jobnotify/internal/providers/servicem8"
)

type countingClient struct {
	calls int
	err   error
}

func (c *countingClient) SendSMS(ctx context.Context, msg domain.SMSMessage) error {
	c.calls++
	return c.err
}

func noSleep(ctx context.Context, d time.Duration) error { return nil }

func TestSenderOpenBreakerFailsFast(t *testing.T) {
	client := &countingClient{err: &servicem8.APIError{StatusCode: 503}}
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "test",
		ReadyToTrip: func(c gobreaker.Counts) bool { return c.ConsecutiveFailures >= 2 },
		Timeout:     time.Minute,
	})
	s := &SMSSender{Client: client, Breaker: cb, MaxAttempts: 5, Sleep: noSleep}

	err := s.Send(context.Background(), domain.SMSMessage{To: "+61412345678", Body: "hi"})
	if !errors.Is(err, gobreaker.ErrOpenState) {
		t.Fatalf("expected open breaker error, got %v", err)
	}
	if client.calls != 2 {
		t.Fatalf("expected breaker to stop calls after tripping, got %d", client.calls)
	}
}

func TestSenderStopsWhenContextCancelled(t *testing.T) {
	client := &countingClient{err: &servicem8.APIError{StatusCode: 500}}
	ctx, cancel := context.WithCancel(context.Background())
	s := &SMSSender{
		Client: client,
		Sleep: func(ctx context.Context, d time.Duration) error {
			cancel()
			return ctx.Err()
		},
	}
	if err := s.Send(ctx, domain.SMSMessage{To: "+61412345678"}); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context cancellation, got %v", err)
	}
	if client.calls != 1 {
		t.Fatalf("expected a single attempt, got %d", client.calls)
	}
}

func TestSenderDefaultsToThreeAttempts(t *testing.T) {
	client := &countingClient{err: errors.New("connection reset")}
	s := &SMSSender{Client: client, Sleep: noSleep}
	if err := s.Send(context.Background(), domain.SMSMessage{}); err == nil {
		t.Fatalf("expected error")
	}
	if client.calls != DefaultMaxAttempts {
		t.Fatalf("expected %d attempts, got %d", DefaultMaxAttempts, client.calls)
	}
}

func TestSenderCountsOneErrorPerMessage(t *testing.T) {
	failures := observability.ChannelSend.WithLabelValues("sms", "error")
	before := testutil.ToFloat64(failures)

	client := &countingClient{err: &servicem8.APIError{StatusCode: 500}}
	s := &SMSSender{Client: client, Sleep: noSleep}
	if err := s.Send(context.Background(), domain.SMSMessage{To: "+61412345678"}); err == nil {
		t.Fatalf("expected error")
	}
	if client.calls != DefaultMaxAttempts {
		t.Fatalf("expected %d attempts, got %d", DefaultMaxAttempts, client.calls)
	}
	if got := testutil.ToFloat64(failures) - before; got != 1 {
		t.Fatalf("expected one failed message counted, got %v", got)
	}
}

func TestSenderSkipsBackoffAfterLastLimiterWait(t *testing.T) {
	var sleeps []time.Duration
	client := &countingClient{}
	// zero burst: every Wait fails immediately
	s := &SMSSender{
		Client:  client,
		Limiter: rate.NewLimiter(rate.Limit(1), 0),
		Sleep: func(ctx context.Context, d time.Duration) error {
			sleeps = append(sleeps, d)
			return nil
		},
	}
	if err := s.Send(context.Background(), domain.SMSMessage{To: "+61412345678"}); err == nil {
		t.Fatalf("expected limiter error")
	}
	if client.calls != 0 {
		t.Fatalf("provider must not be called without a limiter token, got %d calls", client.calls)
	}
	if len(sleeps) != 2 || sleeps[0] != 2*time.Second || sleeps[1] != 4*time.Second {
		t.Fatalf("expected backoff only between attempts, got %v", sleeps)
	}
}

func TestSenderDoesNotRetryMissingAuthorization(t *testing.T) {
	client := &countingClient{err: fmt.Errorf("servicem8 send sms: %w", oauth.ErrUnauthenticated)}
	cb := NewBreaker("auth-test")
	var sleeps int
	s := &SMSSender{
		Client:  client,
		Breaker: cb,
		Sleep: func(ctx context.Context, d time.Duration) error {
			sleeps++
			return nil
		},
	}

	for i := 0; i < 12; i++ {
		err := s.Send(context.Background(), domain.SMSMessage{To: "+61412345678"})
		if !errors.Is(err, oauth.ErrUnauthenticated) {
			t.Fatalf("expected unauthenticated error, got %v", err)
		}
	}
	if client.calls != 12 || sleeps != 0 {
		t.Fatalf("expected one attempt per message and no backoff, got %d calls %d sleeps", client.calls, sleeps)
	}
	if cb.State() != gobreaker.StateClosed {
		t.Fatalf("missing authorization must not trip the breaker, state %s", cb.State())
	}
}
