package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"github.com/rishansujesh/job-registry/internal/api/server"
	"github.com/rishansujesh/job-registry/internal/common/config"
	"github.com/rishansujesh/job-registry/internal/common/health"
	"github.com/rishansujesh/job-registry/internal/common/logging"
	"github.com/rishansujesh/job-registry/internal/configuration"
	"github.com/rishansujesh/job-registry/internal/db"
	"github.com/rishansujesh/job-registry/internal/events"
	"github.com/rishansujesh/job-registry/internal/jobs"
	"github.com/rishansujesh/job-registry/internal/master"
	redisx "github.com/rishansujesh/job-registry/internal/redis"
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

	var cfg configuration.MasterConfig
	if err := config.LoadConfig(&cfg, "./config/master", viper.GetStringSlice(config.CustomConfigLocation)); err != nil {
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
		log.WithError(err).Fatal("master exited")
	}
	log.Info("master stopped")
}

func run(ctx context.Context, cfg configuration.MasterConfig) error {
	var checks []health.Checker

	repo, check, closeRepo, err := openRepository(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeRepo()
	checks = append(checks, check)

	var publisher events.Publisher = events.NoopPublisher{}
	if cfg.Events.Enabled {
		rdb, err := redisx.NewClientWithBackoff(ctx, cfg.Redis)
		if err != nil {
			return err
		}
		defer rdb.Close()
		publisher = events.NewStreamPublisher(rdb, cfg.Events.Stream, cfg.Events.MaxLen)
		checks = append(checks, redisx.Ping(rdb))
		log.Infof("publishing job events to %s", cfg.Events.Stream)
	}

	srv := server.New(master.NewService(repo, publisher))
	grpcServer := server.CreateGrpcServer(cfg.Grpc, srv)
	handler, err := server.NewHTTPHandler(srv, health.All(checks...))
	if err != nil {
		return err
	}

	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.Grpc.Port))
	if err != nil {
		return errors.Wrap(err, "grpc listen")
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Infof("gRPC listening on %s", lis.Addr())
		return errors.Wrap(grpcServer.Serve(lis), "grpc serve")
	})
	g.Go(func() error {
		<-gctx.Done()
		grpcServer.GracefulStop()
		return nil
	})
	g.Go(func() error {
		return health.Serve(gctx, cfg.Http.Port, handler, cfg.Http.ShutdownTimeout)
	})
	return g.Wait()
}

func openRepository(ctx context.Context, cfg configuration.MasterConfig) (jobs.Repository, health.Checker, func(), error) {
	if cfg.Store.Backend == "memory" {
		log.Warn("using in-memory job store; jobs are lost on restart")
		store, err := jobs.NewMemoryStore()
		if err != nil {
			return nil, nil, nil, err
		}
		return store, nil, func() {}, nil
	}

	sqlDB, err := db.OpenWithRetry(ctx, cfg.Postgres)
	if err != nil {
		return nil, nil, nil, err
	}
	closeDB := func() {
		if err := sqlDB.Close(); err != nil {
			log.WithError(err).Warn("closing postgres")
		}
	}
	return jobs.NewStore(sqlDB), sqlDB.PingContext, closeDB, nil
}

