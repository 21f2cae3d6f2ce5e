// Package configuration holds the config structs of the job registry
// services. Values are loaded by internal/common/config from
// config/<service>/config.yaml and JOBREG_* environment variables.
package configuration

import (
	"time"

	"github.com/rishansujesh/job-registry/internal/common/logging"
)

type MasterConfig struct {
	Logging  logging.Config
	Grpc     GrpcConfig
	Http     HttpConfig
	Store    StoreConfig
	Postgres PostgresConfig
	Redis    RedisConfig
	Events   EventsConfig
}

type WatcherConfig struct {
	Logging logging.Config
	Http    HttpConfig
	Redis   RedisConfig
	Events  EventsConfig
	// Number of verified descriptors kept in memory
	CacheSize int `validate:"gt=0"`
}

type AuditorConfig struct {
	Logging  logging.Config
	Http     HttpConfig
	Postgres PostgresConfig
	Redis    RedisConfig
	Audit    AuditConfig
}

type GrpcConfig struct {
	Port int `validate:"gte=1,lte=65535"`
	// Interval between server keepalive pings
	KeepaliveTime    time.Duration
	KeepaliveTimeout time.Duration
}

type HttpConfig struct {
	Port int `validate:"gte=1,lte=65535"`
	// Bounds how long a graceful shutdown waits for in-flight requests
	ShutdownTimeout time.Duration
}

type StoreConfig struct {
	// Either postgres or memory
	Backend string `validate:"oneof=postgres memory"`
}

type PostgresConfig struct {
	Dsn             string
	MaxOpenConns    int
	ConnectAttempts uint
	ConnectDelay    time.Duration
}

type RedisConfig struct {
	Addr            string `validate:"required"`
	Password        string
	DB              int `validate:"gte=0,lte=16"`
	PoolSize        int
	ConnectAttempts uint
	ConnectDelay    time.Duration
}

type EventsConfig struct {
	// Master only publishes when enabled
	Enabled       bool
	Stream        string `validate:"required"`
	DeadLetter    string `validate:"required"`
	ConsumerGroup string `validate:"required"`
	ConsumerName  string
	MaxLen        int64
	BatchSize     int64
	Block         time.Duration
	// Pending messages idle for longer than this are reclaimed
	ClaimIdle time.Duration
}

type AuditConfig struct {
	// Cron expression, e.g. "*/10 * * * *"
	Schedule  string `validate:"required"`
	LeaderKey string `validate:"required"`
	LeaderTTL time.Duration
	PageSize  int `validate:"gt=0"`
	// Starts an audit immediately instead of waiting for the first tick
	RunOnStart bool
	// IANA zone the schedule is evaluated in; empty means UTC
	Timezone string
}
