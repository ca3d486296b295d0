// Package redisstream publishes ledger events to a Redis stream.
package redisstream

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"invitegate/internal/events"
)

const DefaultStream = "invitegate:ledger:events"

type Publisher struct {
	client *redis.Client
	stream string
	maxLen int64
}

type Option func(*Publisher)

// WithMaxLen caps the stream length (approximate trimming).
func WithMaxLen(n int64) Option {
	return func(p *Publisher) {
		p.maxLen = n
	}
}

func New(client *redis.Client, stream string, opts ...Option) *Publisher {
	if stream == "" {
		stream = DefaultStream
	}
	p := &Publisher{client: client, stream: stream, maxLen: 100_000}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Publish appends the batch in one MULTI/EXEC so a partial batch is never visible.
func (p *Publisher) Publish(ctx context.Context, batch []events.Event) error {
	pipe := p.client.TxPipeline()
	for _, e := range batch {
		payload, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("marshal event %s: %w", e.ID, err)
		}
		pipe.XAdd(ctx, &redis.XAddArgs{
			Stream: p.stream,
			MaxLen: p.maxLen,
			Approx: true,
			Values: map[string]any{
				"event_id":   e.ID.String(),
				"event_type": string(e.Type),
				"subject":    e.Subject(),
				"payload":    string(payload),
			},
		})
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("xadd to %s: %w", p.stream, err)
	}
	return nil
}
