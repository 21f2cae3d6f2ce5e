package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/rishansujesh/job-registry/internal/common/config"
	"github.com/rishansujesh/job-registry/internal/common/logging"
	"github.com/rishansujesh/job-registry/internal/configuration"
	"github.com/rishansujesh/job-registry/internal/db"
)

func init() {
	pflag.StringSlice(
		config.CustomConfigLocation,
		[]string{},
		"Fully qualified path to application configuration file (for multiple config files repeat this arg or separate paths with commas)",
	)
	pflag.Parse()
}

// Applies the embedded schema migrations to the database configured for the
// master.
func main() {
	logging.ConfigureDefault()
	config.BindCommandlineArguments()

	var cfg configuration.MasterConfig
	if err := config.LoadConfig(&cfg, "./config/master", viper.GetStringSlice(config.CustomConfigLocation)); err != nil {
		log.WithError(err).Fatal("loading config")
	}
	logging.MustConfigure(cfg.Logging)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	conn, err := db.ConnectWithRetry(ctx, cfg.Postgres)
	if err != nil {
		log.WithError(err).Fatal("migrations: connect")
	}
	defer conn.Close(context.Background())

	if err := db.Migrate(ctx, conn); err != nil {
		log.WithError(err).Error("migrations: failed")
		os.Exit(1)
	}
	log.Info("migrations: done")
}
