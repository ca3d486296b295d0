//go:build integration

package containers

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"

	"invitegate/internal/events"
)

// RedisContainer is the shared Redis instance used by event stream tests.
type RedisContainer struct {
	Container testcontainers.Container
	URL       string
	Client    *redis.Client
}

// NewRedisContainer starts redis:7 and returns a connected client. The
// Manager owns its lifetime; Ryuk reaps it after the run.
func NewRedisContainer(t *testing.T) *RedisContainer {
	t.Helper()
	ctx := context.Background()

	container, err := tcredis.Run(ctx, "redis:7-alpine")
	if err != nil {
		t.Fatalf("start redis container: %v", err)
	}
	rc, err := connectRedis(ctx, container)
	if err != nil {
		_ = container.Terminate(ctx)
		t.Fatal(err)
	}
	return rc
}

func connectRedis(ctx context.Context, container *tcredis.RedisContainer) (*RedisContainer, error) {
	url, err := container.ConnectionString(ctx)
	if err != nil {
		return nil, fmt.Errorf("redis connection string: %w", err)
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url %s: %w", url, err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return &RedisContainer{Container: container, URL: url, Client: client}, nil
}

// FlushAll drops every key so each test starts from empty streams.
func (r *RedisContainer) FlushAll(ctx context.Context) error {
	return r.Client.FlushAll(ctx).Err()
}

func (r *RedisContainer) StreamLen(ctx context.Context, stream string) (int64, error) {
	return r.Client.XLen(ctx, stream).Result()
}

// StreamEvents decodes the payload field of every entry in stream, oldest first.
func (r *RedisContainer) StreamEvents(ctx context.Context, stream string) ([]events.Event, error) {
	entries, err := r.Client.XRange(ctx, stream, "-", "+").Result()
	if err != nil {
		return nil, fmt.Errorf("xrange %s: %w", stream, err)
	}
	out := make([]events.Event, 0, len(entries))
	for _, entry := range entries {
		raw, ok := entry.Values["payload"].(string)
		if !ok {
			return nil, fmt.Errorf("entry %s has no payload", entry.ID)
		}
		var e events.Event
		if err := json.Unmarshal([]byte(raw), &e); err != nil {
			return nil, fmt.Errorf("decode entry %s: %w", entry.ID, err)
		}
		out = append(out, e)
	}
	return out, nil
}
