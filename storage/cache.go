// Package storage keeps board state that outlives a single request in Redis.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/bytedance/sonic"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"github.com/thinkocapo/board/domain"
)

// MetricsCache holds the last computed metrics snapshot of a workspace.
// A nil client turns every call into a miss.
type MetricsCache struct {
	redis     *redis.Client
	workspace string
	ttl       time.Duration
	now       func() time.Time
}

type cachedMetrics struct {
	Version  int                    `json:"version"`
	CachedAt time.Time              `json:"cachedAt"`
	Snapshot domain.MetricsSnapshot `json:"snapshot"`
}

func NewMetricsCache(client *redis.Client, workspace string, ttl time.Duration) *MetricsCache {
	if ttl < 0 {
		ttl = 0
	}
	return &MetricsCache{
		redis:     client,
		workspace: workspace,
		ttl:       ttl,
		now:       time.Now,
	}
}

// Store saves snap. Failures are logged and otherwise ignored.
func (c *MetricsCache) Store(ctx context.Context, snap domain.MetricsSnapshot) {
	if c == nil || c.redis == nil {
		return
	}
	payload := cachedMetrics{Version: 1, CachedAt: c.now().UTC(), Snapshot: snap}
	data, err := sonic.Marshal(payload)
	if err != nil {
		log.WithError(err).WithField("workspace", c.workspace).Error("failed to marshal metrics cache payload")
		return
	}
	if err := c.redis.Set(ctx, MetricsKey(c.workspace), data, c.ttl).Err(); err != nil {
		log.WithError(err).WithField("workspace", c.workspace).Error("failed to store metrics cache entry")
	}
}

// Load returns the cached snapshot if one is present and readable.
func (c *MetricsCache) Load(ctx context.Context) (domain.MetricsSnapshot, bool) {
	if c == nil || c.redis == nil {
		return domain.MetricsSnapshot{}, false
	}
	key := MetricsKey(c.workspace)
	data, err := c.redis.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			log.WithError(err).WithField("workspace", c.workspace).Warn("metrics cache read failed")
		}
		return domain.MetricsSnapshot{}, false
	}
	var payload cachedMetrics
	if err := sonic.Unmarshal(data, &payload); err != nil {
		_ = c.redis.Del(ctx, key).Err()
		return domain.MetricsSnapshot{}, false
	}
	return payload.Snapshot, true
}

// Evict drops the cached snapshot.
func (c *MetricsCache) Evict(ctx context.Context) {
	if c == nil || c.redis == nil {
		return
	}
	_ = c.redis.Del(ctx, MetricsKey(c.workspace)).Err()
}

func MetricsKey(workspace string) string {
	return "board:" + workspace + ":metrics"
}

func UpdatesChannel(workspace string) string {
	return "board:" + workspace + ":updates"
}
