package redisx

import (
	"context"
	"time"

	"github.com/avast/retry-go"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"github.com/rishansujesh/job-registry/internal/configuration"
)

const (
	defaultConnectAttempts = 10
	defaultConnectDelay    = 200 * time.Millisecond
	maxConnectDelay        = 5 * time.Second
)

// NewClientWithBackoff connects to Redis, retrying the initial ping with
// exponential backoff until it succeeds, attempts run out or ctx ends.
func NewClientWithBackoff(ctx context.Context, cfg configuration.RedisConfig) (*redis.Client, error) {
	attempts := cfg.ConnectAttempts
	if attempts == 0 {
		attempts = defaultConnectAttempts
	}
	delay := cfg.ConnectDelay
	if delay <= 0 {
		delay = defaultConnectDelay
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})
	err := retry.Do(
		func() error { return rdb.Ping(ctx).Err() },
		retry.Context(ctx),
		retry.Attempts(attempts),
		retry.Delay(delay),
		retry.MaxDelay(maxConnectDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			log.WithError(err).Warnf("redis at %s not ready (attempt %d)", cfg.Addr, n+1)
		}),
	)
	if err != nil {
		_ = rdb.Close()
		return nil, errors.Wrapf(err, "connecting to redis at %s", cfg.Addr)
	}
	return rdb, nil
}

// Ping returns a readiness check for rdb.
func Ping(rdb *redis.Client) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		return rdb.Ping(ctx).Err()
	}
}
