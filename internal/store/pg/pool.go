package pg

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

type PoolOptions struct {
	MaxConns          int32
	MinConns          int32
	MaxConnLifetime   string
	MaxConnIdleTime   string
	HealthCheckPeriod string
}

// Open builds a pool, verifies connectivity and makes sure the schema exists.
func Open(ctx context.Context, dsn string, opts PoolOptions) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("postgres store: DB_DSN is required")
	}
	pool, err := NewPool(ctx, dsn, opts)
	if err != nil {
		return nil, err
	}
	s := New(pool)

	startupCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := s.Ping(startupCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres store: ping: %w", err)
	}
	if err := s.EnsureSchema(startupCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres store: schema: %w", err)
	}
	return s, nil
}

func NewPool(ctx context.Context, dsn string, opts PoolOptions) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}

	if opts.MaxConns > 0 {
		cfg.MaxConns = opts.MaxConns
	}
	if opts.MinConns >= 0 {
		cfg.MinConns = opts.MinConns
	}
	if err := setDuration(&cfg.MaxConnLifetime, opts.MaxConnLifetime, "DB_POOL_MAX_CONN_LIFETIME"); err != nil {
		return nil, err
	}
	if err := setDuration(&cfg.MaxConnIdleTime, opts.MaxConnIdleTime, "DB_POOL_MAX_CONN_IDLE_TIME"); err != nil {
		return nil, err
	}
	if err := setDuration(&cfg.HealthCheckPeriod, opts.HealthCheckPeriod, "DB_POOL_HEALTH_CHECK_PERIOD"); err != nil {
		return nil, err
	}

	return pgxpool.NewWithConfig(ctx, cfg)
}

func setDuration(dst *time.Duration, raw, name string) error {
	if raw == "" {
		return nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", name, err)
	}
	*dst = d
	return nil
}
