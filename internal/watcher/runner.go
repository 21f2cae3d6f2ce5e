// Package watcher follows the job event stream, verifies every created job
// against its id and keeps verified descriptors in memory.
package watcher

import (
	"context"
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"github.com/rishansujesh/job-registry/internal/descriptors"
	"github.com/rishansujesh/job-registry/internal/events"
	redisx "github.com/rishansujesh/job-registry/internal/redis"
)

var processedEvents = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "jobreg_watcher_events_total",
		Help: "Job events handled by the watcher, by event type and result",
	},
	[]string{"type", "result"},
)

var cachedJobs = promauto.NewGauge(
	prometheus.GaugeOpts{
		Name: "jobreg_watcher_cached_jobs",
		Help: "Verified job descriptors held in the watcher cache",
	},
)

const (
	defaultBatchSize = 16
	defaultBlock     = 5 * time.Second
)

type Runner struct {
	RDB          *redis.Client
	Stream       string
	DeadLetter   string
	Group        string
	ConsumerName string
	BatchSize    int64
	Block        time.Duration
	// Pending entries idle this long are claimed from dead consumers; zero disables
	ClaimIdle time.Duration

	cache *lru.Cache
}

func NewRunner(rdb *redis.Client, cacheSize int) (*Runner, error) {
	cache, err := lru.New(cacheSize)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return &Runner{
		RDB:       rdb,
		BatchSize: defaultBatchSize,
		Block:     defaultBlock,
		cache:     cache,
	}, nil
}

// Lookup returns a verified descriptor seen on the stream.
func (r *Runner) Lookup(id descriptors.JobID) (*descriptors.Job, bool) {
	v, ok := r.cache.Get(id)
	if !ok {
		return nil, false
	}
	return v.(*descriptors.Job), true
}

func (r *Runner) CachedCount() int {
	return r.cache.Len()
}

// Run consumes the stream until ctx is cancelled.
func (r *Runner) Run(ctx context.Context) error {
	if err := redisx.EnsureGroup(ctx, r.RDB, r.Stream, r.Group); err != nil {
		return err
	}
	lastClaim := time.Time{}
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		if r.ClaimIdle > 0 && time.Since(lastClaim) >= r.ClaimIdle {
			r.reclaim(ctx)
			lastClaim = time.Now()
		}

		msgs, err := redisx.XReadGroup(ctx, r.RDB, redisx.ReadOptions{
			Streams:       []string{r.Stream, ">"},
			ConsumerGroup: r.Group,
			ConsumerName:  r.ConsumerName,
			Count:         r.BatchSize,
			Block:         r.Block,
		})
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			log.WithError(err).Warnf("read error stream=%s", r.Stream)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(500 * time.Millisecond):
			}
			continue
		}
		r.handle(ctx, msgs)
	}
}

func (r *Runner) reclaim(ctx context.Context) {
	msgs, err := redisx.ClaimPending(ctx, r.RDB, r.Stream, r.Group, r.ConsumerName, r.ClaimIdle, r.BatchSize)
	if err != nil {
		log.WithError(err).Warnf("claim error stream=%s", r.Stream)
		return
	}
	if len(msgs) > 0 {
		log.Infof("claimed %d idle events", len(msgs))
	}
	r.handle(ctx, msgs)
}

func (r *Runner) handle(ctx context.Context, msgs []redisx.Message) {
	for _, m := range msgs {
		if err := r.processMessage(ctx, m); err != nil {
			log.WithError(err).Errorf("process error stream=%s id=%s", m.Stream, m.ID)
		}
	}
	cachedJobs.Set(float64(r.cache.Len()))
}

// processMessage applies one event. Events that cannot be applied are moved
// to the dead letter stream; either way the entry is acknowledged.
func (r *Runner) processMessage(ctx context.Context, m redisx.Message) error {
	var event events.JobEvent
	if err := m.Decode(&event); err != nil {
		processedEvents.WithLabelValues("unknown", "dead_letter").Inc()
		return r.deadLetter(ctx, m, errors.Wrap(err, "decoding event"))
	}

	logger := log.WithField("jobId", event.JobID.String())
	switch event.Type {
	case events.JobCreated:
		if err := verify(event); err != nil {
			processedEvents.WithLabelValues(string(event.Type), "dead_letter").Inc()
			logger.WithError(err).Warn("rejecting unverifiable job")
			return r.deadLetter(ctx, m, err)
		}
		r.cache.Add(event.JobID, event.Job)
		logger.Debug("verified job")
	case events.JobDeleted:
		r.cache.Remove(event.JobID)
		logger.Debug("evicted job")
	default:
		processedEvents.WithLabelValues("unknown", "dead_letter").Inc()
		return r.deadLetter(ctx, m, fmt.Errorf("unknown event type %q", event.Type))
	}

	processedEvents.WithLabelValues(string(event.Type), "ok").Inc()
	_, err := redisx.Ack(ctx, r.RDB, m.Stream, r.Group, m.ID)
	return err
}

// verify checks a created event carries a job whose content hashes to the
// event's id.
func verify(event events.JobEvent) error {
	if event.Job == nil {
		return errors.New("created event without job")
	}
	if event.Job.ID() != event.JobID {
		return errors.Errorf("event id %s does not match job id %s", event.JobID, event.Job.ID())
	}
	if computed := event.Job.ComputedID(); computed != event.JobID {
		return errors.Errorf("job content hashes to %s, not %s", computed, event.JobID)
	}
	return nil
}

func (r *Runner) deadLetter(ctx context.Context, m redisx.Message, reason error) error {
	if _, err := redisx.XAddDeadLetter(ctx, r.RDB, r.DeadLetter, m.Data, m.ID, reason); err != nil {
		// leave the entry pending so it is retried or claimed later
		return err
	}
	_, err := redisx.Ack(ctx, r.RDB, m.Stream, r.Group, m.ID)
	return err
}
