// Command replay-queue sends every deferred SMS once, outside quiet hours,
// and exits. It is meant for an external scheduler.
package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"jobnotify/internal/app"
	"jobnotify/internal/config"
	"jobnotify/internal/deferred"
	"jobnotify/internal/logging"
	"jobnotify/internal/suppression"
)

func main() {
	cfg := config.LoadReplay()
	logging.Init("replay-queue", cfg.LogFormat, cfg.LogLevel)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	backends, err := app.OpenBackends(ctx, cfg.StoreConfig, cfg.MaxPerHour)
	if err != nil {
		slog.Error("backends init failed", "err", err)
		os.Exit(1)
	}
	defer backends.Close()

	gate, err := app.QuietHours(cfg.SMSPolicyConfig)
	if err != nil {
		slog.Error("quiet hours config invalid", "err", err)
		os.Exit(1)
	}
	upstream, _ := app.Upstream(cfg.ServiceM8Config, backends.Tokens)

	queue := &deferred.Queue{
		Store:       backends.Queue,
		Gate:        gate,
		Suppression: suppression.NewSMS(backends.Suppression),
		RateLimit:   backends.Limiter,
		Sender:      app.SMSSender(upstream, cfg.SMSPolicyConfig),
	}

	res, err := queue.ReplayAll(ctx)
	slog.Info("replay finished",
		"quiet_hours", res.QuietHours,
		"taken", res.Taken,
		"sent", res.Sent,
		"suppressed", res.Suppressed,
		"dropped", res.Dropped,
		"requeued", res.Requeued,
	)
	if err != nil {
		slog.Error("replay failed", "err", err)
		backends.Close()
		os.Exit(1)
	}
}
