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

	"github.com/rishansujesh/job-registry/internal/audit"
	"github.com/rishansujesh/job-registry/internal/common/config"
	"github.com/rishansujesh/job-registry/internal/common/health"
	"github.com/rishansujesh/job-registry/internal/common/logging"
	"github.com/rishansujesh/job-registry/internal/configuration"
	"github.com/rishansujesh/job-registry/internal/db"
	"github.com/rishansujesh/job-registry/internal/jobs"
	redisx "github.com/rishansujesh/job-registry/internal/redis"
	"github.com/rishansujesh/job-registry/internal/schedule"
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

	var cfg configuration.AuditorConfig
	if err := config.LoadConfig(&cfg, "./config/auditor", viper.GetStringSlice(config.CustomConfigLocation)); err != nil {
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
		log.WithError(err).Fatal("auditor exited")
	}
	log.Info("auditor stopped")
}

func run(ctx context.Context, cfg configuration.AuditorConfig) error {
	sqlDB, err := db.OpenWithRetry(ctx, cfg.Postgres)
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	rdb, err := redisx.NewClientWithBackoff(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	defer rdb.Close()

	elector := redisx.NewLeaderElector(rdb, cfg.Audit.LeaderKey, cfg.Audit.LeaderTTL, "")
	// One synchronous round so a run-on-start audit sees the outcome.
	elector.Tick(ctx)
	elector.Start(ctx)
	defer elector.Stop()

	loc, err := schedule.Location(cfg.Audit.Timezone)
	if err != nil {
		return err
	}
	auditor := audit.NewAuditor(jobs.NewStore(sqlDB), elector, cfg.Audit.PageSize)
	ready := health.All(sqlDB.PingContext, redisx.Ping(rdb))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return auditor.Run(gctx, cfg.Audit.Schedule, loc, cfg.Audit.RunOnStart)
	})
	g.Go(func() error {
		return health.Serve(gctx, cfg.Http.Port, health.NewMux("auditor", ready), cfg.Http.ShutdownTimeout)
	})
	return g.Wait()
}

