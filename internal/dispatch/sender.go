package dispatch

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"jobnotify/internal/domain"
	"jobnotify/internal/oauth"
	"jobnotify/internal/observability"
	"jobnotify/internal/providers/servicem8"
)

const DefaultMaxAttempts = 3

type SMSClient interface {
	SendSMS(ctx context.Context, msg domain.SMSMessage) error
}

// SMSSender delivers one SMS through the upstream platform. Each attempt waits
// on the outbound limiter and runs inside the circuit breaker; transient
// failures are retried with 2^attempt second backoff.
type SMSSender struct {
	Client      SMSClient
	Limiter     *rate.Limiter
	Breaker     *gobreaker.CircuitBreaker
	MaxAttempts int

	// Sleep waits between attempts; tests replace it.
	Sleep func(ctx context.Context, d time.Duration) error
}

// NewBreaker trips after ten consecutive failed provider calls. A missing
// OAuth authorization does not count as a provider failure.
func NewBreaker(name string) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:         name,
		MaxRequests:  3,
		Timeout:      20 * time.Second,
		ReadyToTrip:  func(c gobreaker.Counts) bool { return c.ConsecutiveFailures >= 10 },
		IsSuccessful: func(err error) bool { return err == nil || errors.Is(err, oauth.ErrUnauthenticated) },
		OnStateChange: func(name string, from, to gobreaker.State) {
			slog.Warn("circuit breaker state change", "breaker", name, "from", from.String(), "to", to.String())
		},
	})
}

func (s *SMSSender) Send(ctx context.Context, msg domain.SMSMessage) error {
	attempts := s.MaxAttempts
	if attempts <= 0 {
		attempts = DefaultMaxAttempts
	}
	start := time.Now()
	defer func() {
		observability.SendLatency.WithLabelValues(string(domain.ChannelSMS)).Observe(time.Since(start).Seconds())
	}()

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if s.Limiter != nil {
			waitCtx, cancelWait := context.WithTimeout(ctx, 2*time.Second)
			err := s.Limiter.Wait(waitCtx)
			cancelWait()
			if err != nil {
				observability.ChannelSend.WithLabelValues("sms", "rate_limited_local").Inc()
				lastErr = err
				if attempt < attempts {
					if err := s.sleep(ctx, servicem8.Backoff(attempt)); err != nil {
						return failed(err)
					}
				}
				continue
			}
		}

		err := s.executeWithBreaker(ctx, msg)
		if err == nil {
			observability.ChannelSend.WithLabelValues("sms", "ok").Inc()
			return nil
		}

		// breaker open: fail fast, the provider is already known to be down
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			observability.ChannelSend.WithLabelValues("sms", "cb_open").Inc()
			return err
		}

		lastErr = err
		slog.Warn("sms send attempt failed", "job_id", msg.RegardingJobID, "attempt", attempt, "err", err)

		if !servicem8.ShouldRetry(err) {
			break
		}
		if attempt < attempts {
			if err := s.sleep(ctx, servicem8.Backoff(attempt)); err != nil {
				return failed(err)
			}
		}
	}
	return failed(lastErr)
}

// failed counts one failed message, however many attempts it took.
func failed(err error) error {
	observability.ChannelSend.WithLabelValues("sms", "error").Inc()
	return err
}

func (s *SMSSender) executeWithBreaker(ctx context.Context, msg domain.SMSMessage) error {
	call := func() (any, error) {
		reqCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		return nil, s.Client.SendSMS(reqCtx, msg)
	}
	if s.Breaker == nil {
		_, err := call()
		return err
	}
	_, err := s.Breaker.Execute(call)
	return err
}

func (s *SMSSender) sleep(ctx context.Context, d time.Duration) error {
	if s.Sleep != nil {
		return s.Sleep(ctx, d)
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
