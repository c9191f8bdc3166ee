package store

import (
	"context"

	"jobnotify/internal/domain"
)

// TokenStore persists the upstream OAuth token pair.
// LoadToken returns a zero pair (and no error) when nothing has been saved yet.
type TokenStore interface {
	LoadToken(ctx context.Context) (domain.TokenPair, error)
	SaveToken(ctx context.Context, pair domain.TokenPair) error
}

// SuppressionStore holds one opt-out set per channel.
type SuppressionStore interface {
	IsSuppressed(ctx context.Context, ch domain.Channel, identity string) (bool, error)
	AddSuppression(ctx context.Context, ch domain.Channel, identity string) error
	RemoveSuppression(ctx context.Context, ch domain.Channel, identity string) error
}

// QueueStore is the durable FIFO behind the deferred SMS queue.
// TakeAllSMS returns every queued item in insertion order and empties the queue
// in one step, so no reader observes a partially drained queue.
type QueueStore interface {
	AppendSMS(ctx context.Context, item domain.QueuedSMS) error
	TakeAllSMS(ctx context.Context) ([]domain.QueuedSMS, error)
	CountSMS(ctx context.Context) (int, error)
}
