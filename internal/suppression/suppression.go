// Package suppression holds the email and SMS opt-out registries.
package suppression

import (
	"context"
	"strings"

	"jobnotify/internal/domain"
	"jobnotify/internal/store"
	"jobnotify/internal/util"
)

type registry struct {
	store     store.SuppressionStore
	channel   domain.Channel
	normalize func(string) string
}

func (r registry) IsSuppressed(ctx context.Context, identity string) (bool, error) {
	id := r.normalize(identity)
	if id == "" {
		return false, nil
	}
	return r.store.IsSuppressed(ctx, r.channel, id)
}

func (r registry) Suppress(ctx context.Context, identity string) error {
	id := r.normalize(identity)
	if id == "" {
		return domain.ErrMissingFields
	}
	return r.store.AddSuppression(ctx, r.channel, id)
}

// EmailRegistry is append-only: there is no path back in once unsubscribed.
type EmailRegistry struct{ registry }

func NewEmail(s store.SuppressionStore) *EmailRegistry {
	return &EmailRegistry{registry{store: s, channel: domain.ChannelEmail, normalize: util.NormalizeEmail}}
}

type SMSRegistry struct{ registry }

func NewSMS(s store.SuppressionStore) *SMSRegistry {
	return &SMSRegistry{registry{store: s, channel: domain.ChannelSMS, normalize: strings.TrimSpace}}
}

func (r *SMSRegistry) Unsuppress(ctx context.Context, identity string) error {
	id := r.normalize(identity)
	if id == "" {
		return domain.ErrMissingFields
	}
	return r.store.RemoveSuppression(ctx, r.channel, id)
}
