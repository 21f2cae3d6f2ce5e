package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"github.com/rishansujesh/job-registry/internal/common/config"
	"github.com/rishansujesh/job-registry/internal/common/health"
	"github.com/rishansujesh/job-registry/internal/common/logging"
	"github.com/rishansujesh/job-registry/internal/configuration"
	redisx "github.com/rishansujesh/job-registry/internal/redis"
	"github.com/rishansujesh/job-registry/internal/watcher"
)

func init() {
	pflag.StringSlice(
		config.CustomConfigLocation,
		[]string{},
		"Fully qualified path to application configuration file (for multiple config files repeat this arg or separate paths with commas)",
	)
	pflag.Parse()
}

func main() {
	logging.ConfigureDefault()
	config.BindCommandlineArguments()

	var cfg configuration.WatcherConfig
	if err := config.LoadConfig(&cfg, "./config/watcher", viper.GetStringSlice(config.CustomConfigLocation)); err != nil {
		log.WithError(err).Fatal("loading config")
	}
	if err := config.Validate(&cfg); err != nil {
		config.LogValidationErrors(err)
		os.Exit(1)
	}
	logging.MustConfigure(cfg.Logging)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		log.WithError(err).Fatal("watcher exited")
	}
	log.Info("watcher stopped")
}

func run(ctx context.Context, cfg configuration.WatcherConfig) error {
	rdb, err := redisx.NewClientWithBackoff(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	defer rdb.Close()

	runner, err := watcher.NewRunner(rdb, cfg.CacheSize)
	if err != nil {
		return err
	}
	runner.Stream = cfg.Events.Stream
	runner.DeadLetter = cfg.Events.DeadLetter
	runner.Group = cfg.Events.ConsumerGroup
	runner.ConsumerName = consumerName(cfg.Events.ConsumerName)
	runner.ClaimIdle = cfg.Events.ClaimIdle
	if cfg.Events.BatchSize > 0 {
		runner.BatchSize = cfg.Events.BatchSize
	}
	if cfg.Events.Block > 0 {
		runner.Block = cfg.Events.Block
	}

	log.Infof("watching %s (group=%s consumer=%s)", runner.Stream, runner.Group, runner.ConsumerName)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return runner.Run(gctx)
	})
	g.Go(func() error {
		return health.Serve(gctx, cfg.Http.Port, health.NewMux("watcher", redisx.Ping(rdb)), cfg.Http.ShutdownTimeout)
	})
	return g.Wait()
}

func consumerName(configured string) string {
	if configured != "" {
		return configured
	}
	h, _ := os.Hostname()
	if h == "" {
		h = "watcher"
	}
	return h
}
