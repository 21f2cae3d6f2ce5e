package redisx

import (
	"context"
	"os"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

const defaultLeaderTTL = 15 * time.Second

// releaseScript deletes the key only while it is still held by this instance.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// renewScript extends the lease only while it is still held by this instance.
var renewScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

// LeaderElector holds a Redis lease so only one instance of a service does
// singleton work at a time.
type LeaderElector struct {
	rdb      *redis.Client
	key      string
	ttl      time.Duration
	instance string
	isLeader atomic.Bool
	cancel   context.CancelFunc
	done     chan struct{}
}

func NewLeaderElector(rdb *redis.Client, key string, ttl time.Duration, instanceID string) *LeaderElector {
	if instanceID == "" {
		instanceID = hostname()
	}
	if ttl <= 0 {
		ttl = defaultLeaderTTL
	}
	return &LeaderElector{
		rdb:      rdb,
		key:      key,
		ttl:      ttl,
		instance: instanceID,
	}
}

// Start campaigns in the background until ctx ends or Stop is called.
func (l *LeaderElector) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	l.cancel = cancel
	l.done = make(chan struct{})

	go func() {
		defer close(l.done)
		ticker := time.NewTicker(l.ttl / 3)
		defer ticker.Stop()

		for {
			l.Tick(ctx)
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()
}

// Tick runs one acquire-or-renew round.
func (l *LeaderElector) Tick(ctx context.Context) {
	if !l.isLeader.Load() {
		ok, err := l.rdb.SetNX(ctx, l.key, l.instance, l.ttl).Result()
		if err != nil {
			log.WithError(err).Warn("leader election: acquire failed")
			return
		}
		if ok {
			log.Infof("leader election: %s became leader for %s", l.instance, l.key)
			l.isLeader.Store(true)
		}
		return
	}

	renewed, err := renewScript.Run(ctx, l.rdb, []string{l.key}, l.instance, l.ttl.Milliseconds()).Int64()
	if err != nil || renewed == 0 {
		log.WithError(err).Warnf("leader election: %s lost leadership for %s", l.instance, l.key)
		l.isLeader.Store(false)
	}
}

// Stop ends the campaign and releases the lease if held.
func (l *LeaderElector) Stop() {
	if l.cancel == nil {
		return
	}
	l.cancel()
	<-l.done
	if l.isLeader.Swap(false) {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		if err := releaseScript.Run(ctx, l.rdb, []string{l.key}, l.instance).Err(); err != nil {
			log.WithError(err).Warn("leader election: release failed")
		}
	}
}

func (l *LeaderElector) IsLeader() bool { return l.isLeader.Load() }

func hostname() string {
	if h, err := os.Hostname(); err == nil && h != "" {
		return h
	}
	return "instance"
}
