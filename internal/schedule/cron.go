package schedule

import (
	"time"

	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"
)

// Standard 5-field cron (minute hour dom month dow) plus descriptors such as
// "@hourly" and "@every 30s".
var parser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// Parse parses a cron expression.
func Parse(expr string) (cron.Schedule, error) {
	if expr == "" {
		return nil, errors.New("no schedule provided")
	}
	sched, err := parser.Parse(expr)
	if err != nil {
		return nil, errors.Wrap(err, "invalid cron")
	}
	return sched, nil
}

// Location resolves timezone, defaulting to UTC.
func Location(timezone string) (*time.Location, error) {
	if timezone == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, errors.Wrap(err, "invalid timezone")
	}
	return loc, nil
}

// NextRun computes the next run time of expr after from, evaluated in
// timezone.
func NextRun(expr string, from time.Time, timezone string) (time.Time, error) {
	loc, err := Location(timezone)
	if err != nil {
		return time.Time{}, err
	}
	sched, err := Parse(expr)
	if err != nil {
		return time.Time{}, err
	}
	return sched.Next(from.In(loc)), nil
}

// NewCron returns a cron runner that uses the same parser and skips a tick
// while the previous run is still going.
func NewCron(loc *time.Location, logger cron.Logger) *cron.Cron {
	return cron.New(
		cron.WithParser(parser),
		cron.WithLocation(loc),
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)
}
