package tutor

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"tutorgo/internal/redis"
)

const redisInvalidateChannel = "tutor:invalidate"

const (
	ScopeHistory = "history"
	ScopeSession = "session"
)

type Invalidation struct {
	UserID string `json:"user_id"`
	Scope  string `json:"scope"`
}

// Broadcaster carries invalidations between service instances.
type Broadcaster interface {
	Publish(ctx context.Context, inv Invalidation) error
	Listen(ctx context.Context, fn func(Invalidation)) error
}

// RedisBroadcaster fans invalidations out over redis pub/sub.
type RedisBroadcaster struct {
	client *redis.Client
}

// NewRedisBroadcaster returns nil when client is nil so callers can pass it
// straight into ManagerConfig.
func NewRedisBroadcaster(client *redis.Client) Broadcaster {
	if client == nil {
		return nil
	}
	return &RedisBroadcaster{client: client}
}

func (r *RedisBroadcaster) Publish(ctx context.Context, inv Invalidation) error {
	payload, err := json.Marshal(inv)
	if err != nil {
		return fmt.Errorf("marshal invalidation: %w", err)
	}
	return r.client.Publish(ctx, redisInvalidateChannel, payload)
}

func (r *RedisBroadcaster) Listen(ctx context.Context, fn func(Invalidation)) error {
	return r.client.Subscribe(ctx, redisInvalidateChannel, func(payload string) {
		var inv Invalidation
		if err := json.Unmarshal([]byte(payload), &inv); err != nil {
			slog.Warn("decode invalidation", "error", err)
			return
		}
		fn(inv)
	})
}
