package logging

import (
	"fmt"
	"io"
	"os"

	log "github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Configure applies c to the global logrus logger.
func Configure(c Config) error {
	level, err := c.validate()
	if err != nil {
		return err
	}
	log.SetLevel(level)
	log.SetFormatter(formatter(c.Format))

	var out io.Writer = os.Stdout
	if c.File.Enabled {
		out = io.MultiWriter(os.Stdout, &lumberjack.Logger{
			Filename:   c.File.Path,
			MaxSize:    c.File.MaxSizeMb,
			MaxBackups: c.File.MaxBackups,
			MaxAge:     c.File.MaxAgeDays,
			Compress:   c.File.Compress,
		})
	}
	log.SetOutput(out)
	return nil
}

// MustConfigure is Configure for service startup; it exits on failure.
func MustConfigure(c Config) {
	if err := Configure(c); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, "Error initializing logging: "+err.Error())
		os.Exit(1)
	}
}

// ConfigureDefault sets up text logging to stdout before any config is read.
func ConfigureDefault() {
	log.SetFormatter(formatter("text"))
	log.SetOutput(os.Stdout)
}

// ConfigureCommandLine sets up bare message logging for the CLI.
func ConfigureCommandLine(verbose bool) {
	log.SetFormatter(&CommandLineFormatter{})
	log.SetOutput(os.Stderr)
	if verbose {
		log.SetLevel(log.DebugLevel)
	}
}

func formatter(format string) log.Formatter {
	if format == "json" {
		return &log.JSONFormatter{}
	}
	return &log.TextFormatter{ForceColors: true, FullTimestamp: true}
}

type CommandLineFormatter struct{}

func (f *CommandLineFormatter) Format(entry *log.Entry) ([]byte, error) {
	return []byte(fmt.Sprintf("%s\n", entry.Message)), nil
}
