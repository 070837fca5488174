// Package events publishes aggregator notifications to Redis pub/sub.
// Publishing is always best effort: failures are logged, never returned to
// the caller's control flow.
package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// Channel names double as the event "type" field.
const (
	CycleCompleted = "EVENT_CYCLE_COMPLETED"
	JobApplied     = "EVENT_JOB_APPLIED"
	JobUnapplied   = "EVENT_JOB_UNAPPLIED"
)

// Publisher sends one event. Implementations must not block for long.
type Publisher interface {
	Publish(ctx context.Context, channel string, fields map[string]any)
}

// RedisPublisher publishes JSON payloads with PUBLISH.
type RedisPublisher struct {
	rdb *redis.Client
}

func NewRedisPublisher(rdb *redis.Client) *RedisPublisher {
	return &RedisPublisher{rdb: rdb}
}

func (p *RedisPublisher) Publish(ctx context.Context, channel string, fields map[string]any) {
	payload := make(map[string]any, len(fields)+2)
	for k, v := range fields {
		payload[k] = v
	}
	payload["type"] = channel
	payload["at"] = time.Now().UTC().Format(time.RFC3339)

	event, err := json.Marshal(payload)
	if err != nil {
		slog.Warn("encode event failed", "channel", channel, "err", err)
		return
	}
	if err := p.rdb.Publish(ctx, channel, event).Err(); err != nil {
		slog.Warn("publish "+channel+" failed", "err", err)
	}
}

// Nop discards every event. Used when REDIS_URL is unset.
type Nop struct{}

func (Nop) Publish(context.Context, string, map[string]any) {}
