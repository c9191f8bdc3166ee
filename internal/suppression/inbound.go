package suppression

import (
	"context"
	"strings"

	"jobnotify/internal/domain"
)

type Command int

const (
	CommandNone Command = iota
	CommandStop
	CommandUnstop
)

const (
	ReplyUnsubscribed = "You have been unsubscribed from SMS."
	ReplyResubscribed = "You have been resubscribed to SMS."
	ReplyNoAction     = "No action taken."
)

// ParseCommand matches STOP / UNSTOP, trimmed and case-insensitive.
func ParseCommand(body string) Command {
	switch strings.ToUpper(strings.TrimSpace(body)) {
	case "STOP":
		return CommandStop
	case "UNSTOP":
		return CommandUnstop
	default:
		return CommandNone
	}
}

// HandleInbound applies an inbound SMS to the registry and returns the reply text.
func (r *SMSRegistry) HandleInbound(ctx context.Context, from, body string) (string, error) {
	if strings.TrimSpace(from) == "" || strings.TrimSpace(body) == "" {
		return "", domain.ErrMissingFields
	}
	switch ParseCommand(body) {
	case CommandStop:
		if err := r.Suppress(ctx, from); err != nil {
			return "", err
		}
		return ReplyUnsubscribed, nil
	case CommandUnstop:
		if err := r.Unsuppress(ctx, from); err != nil {
			return "", err
		}
		return ReplyResubscribed, nil
	default:
		return ReplyNoAction, nil
	}
}
