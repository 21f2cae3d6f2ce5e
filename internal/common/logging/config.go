package logging

import (
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// Config controls where and how services log.
type Config struct {
	// Log level, e.g. info, debug
	Level string
	// Either text or json
	Format string
	File   FileConfig
}

// FileConfig enables an additional rotated log file.
type FileConfig struct {
	Enabled    bool
	Path       string
	MaxSizeMb  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

var validFormats = map[string]bool{
	"":     true,
	"text": true,
	"json": true,
}

func (c Config) validate() (log.Level, error) {
	if !validFormats[c.Format] {
		return 0, errors.Errorf("unknown log format %q, expected text or json", c.Format)
	}
	if c.File.Enabled && c.File.Path == "" {
		return 0, errors.New("file logging enabled but no path given")
	}
	if c.Level == "" {
		return log.InfoLevel, nil
	}
	level, err := log.ParseLevel(c.Level)
	if err != nil {
		return 0, errors.WithStack(err)
	}
	return level, nil
}
