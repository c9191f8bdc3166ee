// Package app assembles the backends and clients shared by the binaries.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"

	"jobnotify/internal/awsutil"
	"jobnotify/internal/config"
	"jobnotify/internal/dispatch"
	"jobnotify/internal/oauth"
	"jobnotify/internal/providers/servicem8"
	sqsqueue "jobnotify/internal/queue/sqs"
	"jobnotify/internal/quiethours"
	"jobnotify/internal/ratelimit"
	"jobnotify/internal/store"
	"jobnotify/internal/store/file"
	"jobnotify/internal/store/pg"
)

type ReadyCheck func(ctx context.Context) error

// Backends holds the persistence selected by configuration.
type Backends struct {
	Tokens      store.TokenStore
	Suppression store.SuppressionStore
	Queue       store.QueueStore
	Limiter     ratelimit.Limiter
	// Redis is nil unless REDIS_URL is set.
	Redis *redis.Client

	Checks []ReadyCheck

	closers []func()
}

type pinger interface {
	Ping(ctx context.Context) error
}

func OpenBackends(ctx context.Context, cfg config.StoreConfig, maxPerHour int) (*Backends, error) {
	b := &Backends{}

	var docs interface {
		store.TokenStore
		store.SuppressionStore
		store.QueueStore
		pinger
	}
	switch strings.ToLower(cfg.Driver) {
	case "", "file":
		fs, err := file.New(cfg.DataDir)
		if err != nil {
			return nil, err
		}
		docs = fs
		slog.Info("using file store", "dir", cfg.DataDir)
	case "postgres", "pg":
		ps, err := pg.Open(ctx, cfg.DBDSN, pg.PoolOptions{
			MaxConns:          cfg.DBPoolMaxConns,
			MinConns:          cfg.DBPoolMinConns,
			MaxConnLifetime:   cfg.DBPoolMaxConnLifetime,
			MaxConnIdleTime:   cfg.DBPoolMaxConnIdleTime,
			HealthCheckPeriod: cfg.DBPoolHealthCheckPeriod,
		})
		if err != nil {
			return nil, err
		}
		b.closers = append(b.closers, ps.DB.Close)
		docs = ps
		slog.Info("using postgres store")
	default:
		return nil, fmt.Errorf("unknown STORE_DRIVER %q", cfg.Driver)
	}
	b.Tokens, b.Suppression, b.Queue = docs, docs, docs
	b.Checks = append(b.Checks, docs.Ping)

	switch strings.ToLower(cfg.DeferredQueueDriver) {
	case "", "store":
	case "sqs":
		if cfg.SQSDeferredQueueURL == "" {
			b.Close()
			return nil, fmt.Errorf("SQS_DEFERRED_QUEUE_URL is required for the sqs deferred queue")
		}
		client, err := awsutil.NewSQSClient(ctx, cfg.AWSRegion, cfg.LocalstackEndpoint)
		if err != nil {
			b.Close()
			return nil, fmt.Errorf("sqs client: %w", err)
		}
		q := &sqsqueue.DeferredQueue{SQS: client, QueueURL: cfg.SQSDeferredQueueURL}
		b.Queue = q
		b.Checks = append(b.Checks, q.Ping)
		slog.Info("using sqs deferred queue", "queue_url", cfg.SQSDeferredQueueURL)
	default:
		b.Close()
		return nil, fmt.Errorf("unknown DEFERRED_QUEUE_DRIVER %q", cfg.DeferredQueueDriver)
	}

	if cfg.RedisURL == "" {
		b.Limiter = ratelimit.NewMemory(maxPerHour)
		return b, nil
	}
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		b.Close()
		return nil, fmt.Errorf("parse REDIS_URL: %w", err)
	}
	rdb := redis.NewClient(opts)
	b.closers = append(b.closers, func() { _ = rdb.Close() })
	b.Redis = rdb
	b.Limiter = ratelimit.NewRedis(rdb, maxPerHour)
	b.Checks = append(b.Checks, func(ctx context.Context) error { return rdb.Ping(ctx).Err() })
	slog.Info("using redis for rate limits and dedup")
	return b, nil
}

func (b *Backends) Close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		b.closers[i]()
	}
	b.closers = nil
}

// Upstream builds the ServiceM8 client. A static API key wins over OAuth;
// the OAuth manager is returned either way so /auth and /callback work.
func Upstream(cfg config.ServiceM8Config, tokens store.TokenStore) (*servicem8.Client, *oauth.Manager) {
	httpClient := &http.Client{Timeout: 15 * time.Second}
	prober := &servicem8.Client{BaseURL: cfg.BaseURL, HTTP: httpClient}

	mgr := oauth.NewManager(
		oauth.Config(cfg.ClientID, cfg.ClientSecret, cfg.RedirectURI, cfg.AuthURL, cfg.TokenURL, strings.Fields(cfg.Scopes())),
		tokens,
		prober,
	)
	mgr.HTTPClient = httpClient

	client := &servicem8.Client{BaseURL: cfg.BaseURL, HTTP: httpClient, Auth: mgr}
	if cfg.APIKey != "" {
		client.Auth = servicem8.APIKey(cfg.APIKey)
		slog.Info("servicem8 using api key auth")
	}
	return client, mgr
}

// QuietHours builds the gate in the configured zone.
func QuietHours(cfg config.SMSPolicyConfig) (quiethours.Gate, error) {
	loc, err := time.LoadLocation(cfg.QuietHoursTZ)
	if err != nil {
		return quiethours.Gate{}, fmt.Errorf("load QUIET_HOURS_TZ: %w", err)
	}
	return quiethours.New(cfg.QuietHoursStart, cfg.QuietHoursEnd, loc)
}

func SMSSender(client dispatch.SMSClient, cfg config.SMSPolicyConfig) *dispatch.SMSSender {
	return &dispatch.SMSSender{
		Client:      client,
		Limiter:     rate.NewLimiter(rate.Limit(cfg.ProviderRPS), cfg.ProviderBurst),
		Breaker:     dispatch.NewBreaker("servicem8-sms"),
		MaxAttempts: cfg.MaxAttempts,
	}
}
