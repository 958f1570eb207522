package redis

import (
	"context"
	"time"

	"jobsee-orchestrator/internal/domain/ports/adapter"

	"github.com/go-redis/redis/v8"
)

var _ adapter.OnceMarker = (*OnceMarker)(nil)

// OnceMarker keeps "already handled" keys in Redis so every replica sees them.
type OnceMarker struct {
	cli *redis.Client
}

func NewOnceMarker(c *Client) *OnceMarker {
	return &OnceMarker{cli: c.cli}
}

func (m *OnceMarker) MarkOnce(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return m.cli.SetNX(ctx, key, time.Now().UTC().Format(time.RFC3339), ttl).Result()
}
