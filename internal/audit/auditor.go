// Package audit periodically re-verifies the identity of every stored job.
package audit

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"

	"github.com/rishansujesh/job-registry/internal/common/errs"
	"github.com/rishansujesh/job-registry/internal/jobs"
	"github.com/rishansujesh/job-registry/internal/schedule"
)

var auditedJobs = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "jobreg_audit_jobs_total",
		Help: "Jobs checked by the auditor, by result",
	},
	[]string{"result"},
)

var lastAuditTime = promauto.NewGauge(
	prometheus.GaugeOpts{
		Name: "jobreg_audit_last_run_timestamp_seconds",
		Help: "Unix time at which the last audit finished",
	},
)

// Leadership reports whether this instance may do singleton work.
type Leadership interface {
	IsLeader() bool
}

// Report summarises one audit pass.
type Report struct {
	Checked    int
	Mismatched []string
}

type Auditor struct {
	repo     jobs.Repository
	leader   Leadership
	pageSize int
	now      func() time.Time
}

func NewAuditor(repo jobs.Repository, leader Leadership, pageSize int) *Auditor {
	if pageSize <= 0 {
		pageSize = 200
	}
	return &Auditor{repo: repo, leader: leader, pageSize: pageSize, now: time.Now}
}

// RunOnce checks every stored job, recording the outcome on each. Pages are
// keyed on the last id seen, so deletes during a pass do not skip jobs.
func (a *Auditor) RunOnce(ctx context.Context) (Report, error) {
	var report Report
	after := ""
	for {
		page, err := a.repo.ListJobs(ctx, jobs.ListJobsParams{Limit: a.pageSize, AfterID: after})
		if err != nil {
			return report, errors.WithMessage(err, "listing jobs for audit")
		}
		if len(page) == 0 {
			break
		}
		for _, stored := range page {
			id := stored.Job.ID()
			ok := stored.Job.ComputedID() == id
			if err := a.repo.MarkAudited(ctx, id, ok, a.now()); err != nil {
				if errs.IsNotFound(err) {
					// deleted since the page was read
					continue
				}
				return report, errors.WithMessagef(err, "recording audit of %s", id)
			}
			report.Checked++
			if ok {
				auditedJobs.WithLabelValues("ok").Inc()
				continue
			}
			auditedJobs.WithLabelValues("mismatch").Inc()
			report.Mismatched = append(report.Mismatched, id.String())
			log.WithField("jobId", id.String()).
				Warnf("stored job no longer matches its id, content hashes to %s", stored.Job.ComputedID().Hash())
		}
		after = page[len(page)-1].Job.ID().String()
	}
	lastAuditTime.Set(float64(a.now().Unix()))
	return report, nil
}

// tick runs one audit if this instance is the leader.
func (a *Auditor) tick(ctx context.Context) {
	if !a.leader.IsLeader() {
		log.Debug("skipping audit, not leader")
		return
	}
	start := a.now()
	report, err := a.RunOnce(ctx)
	if err != nil {
		log.WithError(err).Error("audit failed")
		return
	}
	log.Infof("audited %d jobs in %s, %d mismatched", report.Checked, a.now().Sub(start).Round(time.Millisecond), len(report.Mismatched))
}

// Run audits on the given cron schedule until ctx is cancelled.
func (a *Auditor) Run(ctx context.Context, expr string, loc *time.Location, runOnStart bool) error {
	sched, err := schedule.Parse(expr)
	if err != nil {
		return err
	}
	logger := cron.VerbosePrintfLogger(log.StandardLogger())
	c := schedule.NewCron(loc, logger)
	c.Schedule(sched, cron.FuncJob(func() { a.tick(ctx) }))

	// Runs before the cron starts so it cannot overlap a scheduled tick.
	if runOnStart {
		a.tick(ctx)
	}
	c.Start()
	log.Infof("auditor scheduled with %q, next run at %s", expr, sched.Next(a.now().In(loc)).Format(time.RFC3339))
	<-ctx.Done()
	<-c.Stop().Done()
	return nil
}
