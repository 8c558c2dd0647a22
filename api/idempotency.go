package api

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// HeaderIdempotencyKey lets clients retry a move without running it twice.
const HeaderIdempotencyKey = "Idempotency-Key"

// MoveDeduper records idempotency keys of accepted moves in Redis so every
// instance skips a retried request.
type MoveDeduper struct {
	client    *redis.Client
	workspace string
	ttl       time.Duration
}

func NewMoveDeduper(client *redis.Client, workspace string, ttl time.Duration) *MoveDeduper {
	return &MoveDeduper{client: client, workspace: workspace, ttl: ttl}
}

func (d *MoveDeduper) key(key string) string {
	return "board:" + d.workspace + ":move:" + key
}

// Add records key and reports whether it was new. Without Redis every key
// is new.
func (d *MoveDeduper) Add(ctx context.Context, key string) (bool, error) {
	if d == nil || d.client == nil || key == "" {
		return true, nil
	}
	return d.client.SetNX(ctx, d.key(key), 1, d.ttl).Result()
}

// Remove forgets key so that a failed move may be retried.
func (d *MoveDeduper) Remove(ctx context.Context, key string) error {
	if d == nil || d.client == nil || key == "" {
		return nil
	}
	return d.client.Del(ctx, d.key(key)).Err()
}
