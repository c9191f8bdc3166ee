package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"jobnotify/internal/app"
	"jobnotify/internal/config"
	"jobnotify/internal/dedup"
	"jobnotify/internal/deferred"
	"jobnotify/internal/dispatch"
	"jobnotify/internal/httpserver"
	"jobnotify/internal/logging"
	"jobnotify/internal/observability"
	"jobnotify/internal/providers/bitly"
	"jobnotify/internal/providers/brevo"
	"jobnotify/internal/render"
	"jobnotify/internal/suppression"
)

func main() {
	cfg := config.LoadServer()
	logging.Init("server", cfg.LogFormat, cfg.LogLevel)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	observability.Register(prometheus.DefaultRegisterer)

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

	upstream, tokens := app.Upstream(cfg.ServiceM8Config, backends.Tokens)
	smsSender := app.SMSSender(upstream, cfg.SMSPolicyConfig)

	emailSuppression := suppression.NewEmail(backends.Suppression)
	smsSuppression := suppression.NewSMS(backends.Suppression)

	shortener := &bitly.Client{
		Token:   cfg.BitlyToken,
		Domain:  cfg.BitlyCustomDomain,
		BaseURL: cfg.BitlyBaseURL,
		HTTP:    &http.Client{Timeout: 5 * time.Second},
	}
	email := &brevo.Client{
		APIKey:  cfg.BrevoAPIKey,
		BaseURL: cfg.BrevoBaseURL,
		Sender:  brevo.Address{Email: cfg.BrevoSenderEmail, Name: cfg.BrevoSenderName},
		ReplyTo: brevo.Address{Email: cfg.BrevoReplyTo},
		HTTP:    &http.Client{Timeout: 10 * time.Second},
	}

	queue := &deferred.Queue{
		Store:       backends.Queue,
		Gate:        gate,
		Suppression: smsSuppression,
		RateLimit:   backends.Limiter,
		Sender:      smsSender,
	}

	dispatcher := &dispatch.Dispatcher{
		Upstream:         upstream,
		EmailSuppression: emailSuppression,
		SMSSuppression:   smsSuppression,
		RateLimit:        backends.Limiter,
		QuietHours:       gate,
		Queue:            queue,
		SMS:              smsSender,
		Shortener:        shortener,
		SMSTemplate:      render.DefaultSMSTemplate(),
		TrackingURL:      cfg.TrackingURL,
		PublicBaseURL:    cfg.PublicBaseURL,
		Location:         gate.Location,
	}
	if backends.Redis != nil {
		dispatcher.Seen = dedup.NewFilter(backends.Redis, cfg.DedupTTL)
	}

	scheduler := deferred.NewScheduler(queue, gate.Location, cfg.ReplaySchedule)
	if err := scheduler.Start(ctx); err != nil {
		slog.Error("replay scheduler start failed", "err", err)
		os.Exit(1)
	}
	defer scheduler.Stop()

	checks := make([]httpserver.ReadyzCheck, 0, len(backends.Checks))
	for _, c := range backends.Checks {
		checks = append(checks, httpserver.ReadyzCheck(c))
	}

	srv := httpserver.New()
	srv.Mux.HandleFunc("/healthz", httpserver.Healthz()).Methods(http.MethodGet)
	srv.Mux.HandleFunc("/readyz", httpserver.Readyz(2*time.Second, checks...)).Methods(http.MethodGet)
	(&httpserver.API{
		Dispatcher:       dispatcher,
		Email:            email,
		EmailSuppression: emailSuppression,
		InboundSMS:       smsSuppression,
		Shortener:        shortener,
		Queue:            queue,
	}).Register(srv.Mux)
	(&httpserver.OAuth{Manager: tokens, Customers: upstream}).Register(srv.Mux)

	httpSrv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	metricsSrv := &http.Server{
		Addr:    ":" + cfg.MetricsPort,
		Handler: httpserver.MetricsHandler(),
	}

	errCh := make(chan error, 2)
	go func() {
		slog.Info("server listening", "port", cfg.Port)
		errCh <- httpSrv.ListenAndServe()
	}()
	go func() {
		slog.Info("metrics listening", "port", cfg.MetricsPort)
		errCh <- metricsSrv.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("http server failed", "err", err)
		}
	case sig := <-sigCh:
		slog.Info("server shutdown", "signal", sig.String())
	}

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	_ = httpSrv.Shutdown(shutdownCtx)
	_ = metricsSrv.Shutdown(shutdownCtx)
}
