package db

import (
	"context"
	"database/sql"
	"time"

	"github.com/avast/retry-go"
	"github.com/jackc/pgx/v5"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/rishansujesh/job-registry/internal/configuration"
)

const (
	defaultConnectAttempts = 10
	defaultConnectDelay    = 500 * time.Millisecond
	maxConnectDelay        = 10 * time.Second
)

// OpenWithRetry opens a database/sql pool on the pgx driver and waits until
// Postgres answers a ping.
func OpenWithRetry(ctx context.Context, cfg configuration.PostgresConfig) (*sql.DB, error) {
	db, err := sql.Open("pgx", cfg.Dsn)
	if err != nil {
		return nil, errors.Wrap(err, "opening postgres")
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if err := withRetry(ctx, cfg, func() error { return db.PingContext(ctx) }); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "connecting to postgres")
	}
	return db, nil
}

// ConnectWithRetry opens a single pgx connection, as used for migrations.
func ConnectWithRetry(ctx context.Context, cfg configuration.PostgresConfig) (*pgx.Conn, error) {
	var conn *pgx.Conn
	err := withRetry(ctx, cfg, func() error {
		c, err := pgx.Connect(ctx, cfg.Dsn)
		if err != nil {
			return err
		}
		conn = c
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "connecting to postgres")
	}
	return conn, nil
}

func withRetry(ctx context.Context, cfg configuration.PostgresConfig, fn func() error) error {
	attempts := cfg.ConnectAttempts
	if attempts == 0 {
		attempts = defaultConnectAttempts
	}
	delay := cfg.ConnectDelay
	if delay <= 0 {
		delay = defaultConnectDelay
	}
	return retry.Do(
		fn,
		retry.Context(ctx),
		retry.Attempts(attempts),
		retry.Delay(delay),
		retry.MaxDelay(maxConnectDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			log.WithError(err).Warnf("postgres not ready (attempt %d)", n+1)
		}),
	)
}
