// Package events defines the job lifecycle events the master appends to a
// Redis stream and the watcher consumes.
package events

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"github.com/rishansujesh/job-registry/internal/descriptors"
	redisx "github.com/rishansujesh/job-registry/internal/redis"
)

type EventType string

const (
	JobCreated EventType = "created"
	JobDeleted EventType = "deleted"
)

type JobEvent struct {
	EventID string            `json:"event_id"`
	Type    EventType         `json:"type"`
	JobID   descriptors.JobID `json:"job_id"`
	// Set for created events only
	Job        *descriptors.Job `json:"job,omitempty"`
	OccurredAt time.Time        `json:"occurred_at"`
}

func NewCreated(job *descriptors.Job) JobEvent {
	return JobEvent{
		EventID:    uuid.NewString(),
		Type:       JobCreated,
		JobID:      job.ID(),
		Job:        job,
		OccurredAt: time.Now().UTC(),
	}
}

func NewDeleted(id descriptors.JobID) JobEvent {
	return JobEvent{
		EventID:    uuid.NewString(),
		Type:       JobDeleted,
		JobID:      id,
		OccurredAt: time.Now().UTC(),
	}
}

type Publisher interface {
	Publish(ctx context.Context, event JobEvent) error
}

// StreamPublisher appends events to a Redis stream.
type StreamPublisher struct {
	rdb    *redis.Client
	stream string
	maxLen int64
}

func NewStreamPublisher(rdb *redis.Client, stream string, maxLen int64) *StreamPublisher {
	return &StreamPublisher{rdb: rdb, stream: stream, maxLen: maxLen}
}

func (p *StreamPublisher) Publish(ctx context.Context, event JobEvent) error {
	id, err := redisx.XAddJSON(ctx, p.rdb, p.stream, p.maxLen, event)
	if err != nil {
		return errors.WithMessagef(err, "publishing %s event for %s", event.Type, event.JobID)
	}
	log.WithField("jobId", event.JobID.String()).
		WithField("streamId", id).
		Debugf("published %s event", event.Type)
	return nil
}

// NoopPublisher drops every event; used when events are disabled.
type NoopPublisher struct{}

func (NoopPublisher) Publish(context.Context, JobEvent) error { return nil }
