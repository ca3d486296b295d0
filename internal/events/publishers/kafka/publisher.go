// Package kafka publishes ledger events to a Kafka topic.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/twmb/franz-go/pkg/kgo"

	"invitegate/internal/events"
)

// DefaultTopic receives every ledger event; consumers filter on the event_type header.
const DefaultTopic = "invitegate.ledger.events"

type Publisher struct {
	client *kgo.Client
	topic  string
}

func New(client *kgo.Client, topic string) *Publisher {
	if topic == "" {
		topic = DefaultTopic
	}
	return &Publisher{client: client, topic: topic}
}

// Publish produces the batch synchronously. Records are keyed by event subject
// so events about one address or code stay ordered within a partition.
func (p *Publisher) Publish(ctx context.Context, batch []events.Event) error {
	records := make([]*kgo.Record, 0, len(batch))
	for _, e := range batch {
		value, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("marshal event %s: %w", e.ID, err)
		}
		records = append(records, &kgo.Record{
			Topic: p.topic,
			Key:   []byte(e.Subject()),
			Value: value,
			Headers: []kgo.RecordHeader{
				{Key: "event_id", Value: []byte(e.ID.String())},
				{Key: "event_type", Value: []byte(e.Type)},
			},
			Timestamp: e.OccurredAt,
		})
	}
	if err := p.client.ProduceSync(ctx, records...).FirstErr(); err != nil {
		return fmt.Errorf("produce to %s: %w", p.topic, err)
	}
	return nil
}
