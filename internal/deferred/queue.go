// Package deferred holds SMS sends postponed by quiet hours and replays them
// once the window opens.
package deferred

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"jobnotify/internal/domain"
	"jobnotify/internal/observability"
	"jobnotify/internal/ratelimit"
	"jobnotify/internal/store"
	"jobnotify/internal/util"
)

// Sender delivers one SMS, retrying transient failures itself.
type Sender interface {
	Send(ctx context.Context, msg domain.SMSMessage) error
}

type QuietHours interface {
	IsQuietHours(now time.Time) bool
}

type SuppressionChecker interface {
	IsSuppressed(ctx context.Context, identity string) (bool, error)
}

type Queue struct {
	Store       store.QueueStore
	Gate        QuietHours
	Suppression SuppressionChecker
	RateLimit   ratelimit.Limiter
	Sender      Sender

	Now func() time.Time
}

// ReplayResult summarises one replay run.
type ReplayResult struct {
	QuietHours bool `json:"quietHours"`
	Taken      int  `json:"taken"`
	Sent       int  `json:"sent"`
	Suppressed int  `json:"suppressed"`
	Dropped    int  `json:"dropped"`
	Requeued   int  `json:"requeued"`
}

func (q *Queue) now() time.Time {
	if q.Now != nil {
		return q.Now()
	}
	return util.NowUTC()
}

// Enqueue stores a fully rendered SMS for a later replay.
func (q *Queue) Enqueue(ctx context.Context, to, message, jobID string) (domain.QueuedSMS, error) {
	item := domain.QueuedSMS{
		ID:             util.NewID("sms"),
		To:             to,
		Message:        message,
		RegardingJobID: jobID,
		EnqueuedAt:     q.now().UTC(),
	}
	if err := q.Store.AppendSMS(ctx, item); err != nil {
		observability.Deferred.WithLabelValues("enqueue_error").Inc()
		return domain.QueuedSMS{}, fmt.Errorf("enqueue sms: %w", err)
	}
	observability.Deferred.WithLabelValues("enqueued").Inc()
	return item, nil
}

func (q *Queue) Len(ctx context.Context) (int, error) {
	return q.Store.CountSMS(ctx)
}

// ReplayAll sends every queued SMS in insertion order. It does nothing during
// quiet hours, and a run that reaches quiet hours puts the unsent rest back.
// Items that still fail after the sender's retries are logged and dropped, not
// re-queued. If the store fails partway through a drain, the items it already
// handed over are replayed before the error is returned.
func (q *Queue) ReplayAll(ctx context.Context) (ReplayResult, error) {
	if q.Gate.IsQuietHours(q.now()) {
		slog.Debug("sms queue replay skipped, quiet hours")
		return ReplayResult{QuietHours: true}, nil
	}

	items, takeErr := q.Store.TakeAllSMS(ctx)
	if takeErr != nil {
		if len(items) == 0 {
			return ReplayResult{}, fmt.Errorf("take queued sms: %w", takeErr)
		}
		slog.Error("sms queue drain interrupted, replaying taken items", "items", len(items), "err", takeErr)
	}
	res := ReplayResult{Taken: len(items)}
	if len(items) == 0 {
		return res, nil
	}
	slog.Info("replaying sms queue", "items", len(items))

	for i, item := range items {
		if q.Gate.IsQuietHours(q.now()) {
			res.QuietHours = true
			q.requeue(ctx, items[i:], &res)
			break
		}
		q.replayOne(ctx, item, &res)
	}

	slog.Info("sms queue replay done", "sent", res.Sent, "suppressed", res.Suppressed, "dropped", res.Dropped, "requeued", res.Requeued)
	if takeErr != nil {
		return res, fmt.Errorf("take queued sms: %w", takeErr)
	}
	return res, nil
}

func (q *Queue) replayOne(ctx context.Context, item domain.QueuedSMS, res *ReplayResult) {
	log := slog.With("sms_id", item.ID, "job_id", item.RegardingJobID)

	if q.Suppression != nil {
		suppressed, err := q.Suppression.IsSuppressed(ctx, item.To)
		if err != nil {
			log.Error("suppression check failed, dropping queued sms", "err", err)
			observability.Deferred.WithLabelValues("dropped").Inc()
			res.Dropped++
			return
		}
		if suppressed {
			log.Info("recipient opted out while queued, skipping")
			observability.Deferred.WithLabelValues("suppressed").Inc()
			res.Suppressed++
			return
		}
	}

	err := q.Sender.Send(ctx, domain.SMSMessage{To: item.To, Body: item.Message, RegardingJobID: item.RegardingJobID})
	if err != nil {
		log.Error("queued sms failed, dropping", "enqueued_at", item.EnqueuedAt, "err", err)
		observability.Deferred.WithLabelValues("dropped").Inc()
		res.Dropped++
		return
	}
	if q.RateLimit != nil {
		if err := q.RateLimit.Consume(ctx, item.To, q.now()); err != nil {
			log.Warn("rate limit consume failed", "err", err)
		}
	}
	observability.Deferred.WithLabelValues("sent").Inc()
	res.Sent++
}

// requeue appends unsent items back in their original order.
func (q *Queue) requeue(ctx context.Context, items []domain.QueuedSMS, res *ReplayResult) {
	slog.Info("quiet hours began during replay, requeueing rest", "items", len(items))
	for _, item := range items {
		if err := q.Store.AppendSMS(ctx, item); err != nil {
			slog.Error("requeue sms failed, dropping", "sms_id", item.ID, "job_id", item.RegardingJobID, "err", err)
			observability.Deferred.WithLabelValues("dropped").Inc()
			res.Dropped++
			continue
		}
		observability.Deferred.WithLabelValues("requeued").Inc()
		res.Requeued++
	}
}
