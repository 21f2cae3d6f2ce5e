package redisx

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// dataField is the stream entry field carrying the JSON payload.
const dataField = "data"

func EnsureGroup(ctx context.Context, rdb *redis.Client, stream, group string) error {
	err := rdb.XGroupCreateMkStream(ctx, stream, group, "0").Err()
	if err != nil && !isBusyGroup(err) {
		return errors.Wrapf(err, "creating group %s on %s", group, stream)
	}
	return nil
}

func isBusyGroup(err error) bool {
	if err == nil {
		return false
	}
	// v9 doesn't export ErrGroupExists; detect BUSYGROUP manually
	return strings.Contains(err.Error(), "BUSYGROUP")
}

// XAddJSON appends v to stream as JSON. A positive maxLen trims the stream
// approximately to that length.
func XAddJSON(ctx context.Context, rdb *redis.Client, stream string, maxLen int64, v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", errors.WithStack(err)
	}
	return XAddRaw(ctx, rdb, stream, maxLen, b)
}

// XAddRaw appends an already encoded payload to stream.
func XAddRaw(ctx context.Context, rdb *redis.Client, stream string, maxLen int64, data []byte) (string, error) {
	args := &redis.XAddArgs{
		Stream: stream,
		ID:     "*",
		Values: map[string]any{dataField: string(data)},
	}
	if maxLen > 0 {
		args.MaxLen = maxLen
		args.Approx = true
	}
	id, err := rdb.XAdd(ctx, args).Result()
	return id, errors.Wrapf(err, "appending to %s", stream)
}

type ReadOptions struct {
	Streams       []string
	ConsumerGroup string
	ConsumerName  string
	Count         int64
	Block         time.Duration
}

// Message is a stream entry with its payload extracted.
type Message struct {
	Stream string
	ID     string
	Data   []byte
	Raw    redis.XMessage
}

// Decode unmarshals the payload into v.
func (m Message) Decode(v any) error {
	if len(m.Data) == 0 {
		return fmt.Errorf("message %s on %s has no %q field", m.ID, m.Stream, dataField)
	}
	return json.Unmarshal(m.Data, v)
}

func XReadGroup(ctx context.Context, rdb *redis.Client, opt ReadOptions) ([]Message, error) {
	if len(opt.Streams) == 0 || len(opt.Streams)%2 != 0 {
		return nil, fmt.Errorf("Streams must be pairs of stream and id ('>' or '0')")
	}
	res, err := rdb.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    opt.ConsumerGroup,
		Consumer: opt.ConsumerName,
		Streams:  opt.Streams,
		Count:    opt.Count,
		Block:    opt.Block,
	}).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, err
	}

	var out []Message
	for _, s := range res {
		out = append(out, toMessages(s.Stream, s.Messages)...)
	}
	return out, nil
}

func toMessages(stream string, msgs []redis.XMessage) []Message {
	out := make([]Message, 0, len(msgs))
	for _, m := range msgs {
		var data []byte
		if raw, ok := m.Values[dataField].(string); ok {
			data = []byte(raw)
		}
		out = append(out, Message{Stream: stream, ID: m.ID, Data: data, Raw: m})
	}
	return out
}

func Ack(ctx context.Context, rdb *redis.Client, stream, group string, ids ...string) (int64, error) {
	return rdb.XAck(ctx, stream, group, ids...).Result()
}

// ClaimPending moves entries idle for at least idleFor to consumer.
func ClaimPending(ctx context.Context, rdb *redis.Client, stream, group, consumer string, idleFor time.Duration, count int64) ([]Message, error) {
	pending, err := rdb.XPendingExt(ctx, &redis.XPendingExtArgs{
		Stream: stream, Group: group, Start: "-", End: "+", Count: count,
	}).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, err
	}
	var ids []string
	for _, p := range pending {
		if p.Idle >= idleFor {
			ids = append(ids, p.ID)
		}
	}
	if len(ids) == 0 {
		return nil, nil
	}
	claimed, err := rdb.XClaim(ctx, &redis.XClaimArgs{
		Stream:   stream,
		Group:    group,
		Consumer: consumer,
		MinIdle:  idleFor,
		Messages: ids,
	}).Result()
	if err != nil {
		return nil, err
	}
	return toMessages(stream, claimed), nil
}

// StreamStats summarises a stream for a consumer group.
type StreamStats struct {
	Length  int64
	Pending int64
}

func Stats(ctx context.Context, rdb *redis.Client, stream, group string) (StreamStats, error) {
	length, err := rdb.XLen(ctx, stream).Result()
	if err != nil {
		return StreamStats{}, errors.Wrapf(err, "reading length of %s", stream)
	}
	stats := StreamStats{Length: length}
	if group == "" {
		return stats, nil
	}
	pending, err := rdb.XPending(ctx, stream, group).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return StreamStats{}, errors.Wrapf(err, "reading pending entries of %s", stream)
	}
	if pending != nil {
		stats.Pending = pending.Count
	}
	return stats, nil
}

// Requeue moves up to count entries from the head of from onto to and
// returns how many were moved.
func Requeue(ctx context.Context, rdb *redis.Client, from, to string, count int64) (int, error) {
	msgs, err := rdb.XRangeN(ctx, from, "-", "+", count).Result()
	if err != nil {
		return 0, errors.Wrapf(err, "reading %s", from)
	}
	moved := 0
	for _, m := range toMessages(from, msgs) {
		if _, err := XAddRaw(ctx, rdb, to, 0, m.Data); err != nil {
			return moved, err
		}
		if err := rdb.XDel(ctx, from, m.ID).Err(); err != nil {
			return moved, errors.Wrapf(err, "deleting %s from %s", m.ID, from)
		}
		moved++
	}
	return moved, nil
}

// XAddDeadLetter parks a payload that could not be processed. The payload
// stays in the data field so Requeue can move it back unchanged.
func XAddDeadLetter(ctx context.Context, rdb *redis.Client, stream string, data []byte, sourceID string, reason error) (string, error) {
	id, err := rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: stream,
		ID:     "*",
		Values: map[string]any{
			dataField:   string(data),
			"source_id": sourceID,
			"error":     reason.Error(),
			"failed_at": time.Now().UTC().Format(time.RFC3339Nano),
		},
	}).Result()
	return id, errors.Wrapf(err, "appending to %s", stream)
}

// DeadLetter is an entry parked by XAddDeadLetter.
type DeadLetter struct {
	ID       string
	SourceID string
	Error    string
	FailedAt string
	Data     []byte
}

// DeadLetters returns up to count entries from the head of stream.
func DeadLetters(ctx context.Context, rdb *redis.Client, stream string, count int64) ([]DeadLetter, error) {
	msgs, err := rdb.XRangeN(ctx, stream, "-", "+", count).Result()
	if err != nil {
		return nil, errors.Wrapf(err, "reading %s", stream)
	}
	out := make([]DeadLetter, 0, len(msgs))
	for _, m := range toMessages(stream, msgs) {
		out = append(out, DeadLetter{
			ID:       m.ID,
			SourceID: fieldString(m.Raw.Values, "source_id"),
			Error:    fieldString(m.Raw.Values, "error"),
			FailedAt: fieldString(m.Raw.Values, "failed_at"),
			Data:     m.Data,
		})
	}
	return out, nil
}

func fieldString(values map[string]any, key string) string {
	if s, ok := values[key].(string); ok {
		return s
	}
	return ""
}
