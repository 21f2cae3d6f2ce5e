package watcher

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rishansujesh/job-registry/internal/descriptors"
	"github.com/rishansujesh/job-registry/internal/events"
	redisx "github.com/rishansujesh/job-registry/internal/redis"
)

const (
	stream = "jobs:events"
	dlq    = "jobs:events:dlq"
	group  = "cg:watchers"
)

func newTestRunner(t *testing.T) (*Runner, *redis.Client) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	runner, err := NewRunner(rdb, 8)
	require.NoError(t, err)
	runner.Stream = stream
	runner.DeadLetter = dlq
	runner.Group = group
	runner.ConsumerName = "test"
	runner.Block = 20 * time.Millisecond
	return runner, rdb
}

func testJob(version string) *descriptors.Job {
	return descriptors.NewBuilder().
		SetName("foozbarz").
		SetVersion(version).
		SetImage("foobar:4711").
		SetCommand([]string{"foo", "bar"}).
		Build()
}

func startRunner(t *testing.T, runner *Runner) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- runner.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Error("runner did not stop")
		}
	})
}

func streamLen(t *testing.T, rdb *redis.Client, name string) int64 {
	n, err := rdb.XLen(context.Background(), name).Result()
	assert.NoError(t, err)
	return n
}

func TestRunner_CachesVerifiedJobs(t *testing.T) {
	runner, rdb := newTestRunner(t)
	ctx := context.Background()
	publisher := events.NewStreamPublisher(rdb, stream, 0)

	first, second := testJob("1"), testJob("2")
	require.NoError(t, publisher.Publish(ctx, events.NewCreated(first)))
	require.NoError(t, publisher.Publish(ctx, events.NewCreated(second)))
	startRunner(t, runner)

	require.Eventually(t, func() bool { return runner.CachedCount() == 2 }, 5*time.Second, 10*time.Millisecond)
	cached, ok := runner.Lookup(first.ID())
	require.True(t, ok)
	assert.True(t, first.Equal(cached))

	require.NoError(t, publisher.Publish(ctx, events.NewDeleted(first.ID())))
	require.Eventually(t, func() bool { return runner.CachedCount() == 1 }, 5*time.Second, 10*time.Millisecond)
	_, ok = runner.Lookup(first.ID())
	assert.False(t, ok)

	assert.Equal(t, int64(0), streamLen(t, rdb, dlq))
	stats, err := redisx.Stats(ctx, rdb, stream, group)
	require.NoError(t, err)
	assert.Equal(t, int64(0), stats.Pending)
}

func TestRunner_DeadLettersUnverifiableEvents(t *testing.T) {
	runner, rdb := newTestRunner(t)
	ctx := context.Background()

	forgedID := descriptors.NewJobID("foozbarz", "1", strings.Repeat("0", descriptors.HashLength))
	forged := events.JobEvent{
		EventID: "forged",
		Type:    events.JobCreated,
		JobID:   forgedID,
		Job:     descriptors.NewJob(forgedID, "foobar:4711", []string{"foo", "bar"}, nil, nil, nil, nil),
	}
	_, err := redisx.XAddJSON(ctx, rdb, stream, 0, forged)
	require.NoError(t, err)

	// short hash fails strict id decoding
	_, err = redisx.XAddRaw(ctx, rdb, stream, 0, []byte(`{"event_id":"x","type":"created","job_id":"bad:job:deadbeef"}`))
	require.NoError(t, err)

	_, err = redisx.XAddRaw(ctx, rdb, stream, 0, []byte(`not json`))
	require.NoError(t, err)

	unknown := events.NewDeleted(testJob("1").ID())
	unknown.Type = "renamed"
	_, err = redisx.XAddJSON(ctx, rdb, stream, 0, unknown)
	require.NoError(t, err)

	noJob := events.NewCreated(testJob("3"))
	noJob.Job = nil
	_, err = redisx.XAddJSON(ctx, rdb, stream, 0, noJob)
	require.NoError(t, err)

	startRunner(t, runner)

	require.Eventually(t, func() bool { return streamLen(t, rdb, dlq) == 5 }, 5*time.Second, 10*time.Millisecond)
	assert.Equal(t, 0, runner.CachedCount())

	parked, err := rdb.XRange(ctx, dlq, "-", "+").Result()
	require.NoError(t, err)
	assert.Contains(t, parked[0].Values["error"], "job content hashes to")
	assert.Equal(t, "not json", parked[2].Values["data"])
}

func TestVerify(t *testing.T) {
	job := testJob("1")
	assert.NoError(t, verify(events.NewCreated(job)))

	mismatched := events.NewCreated(job)
	mismatched.JobID = testJob("2").ID()
	assert.Error(t, verify(mismatched))
}
