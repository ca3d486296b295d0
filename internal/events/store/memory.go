package store

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"invitegate/internal/events"
)

type entry struct {
	event       events.Event
	publishedAt *time.Time
}

// InMemoryOutbox keeps events in append order.
type InMemoryOutbox struct {
	mu      sync.RWMutex
	entries []entry
}

func NewInMemoryOutbox() *InMemoryOutbox {
	return &InMemoryOutbox{}
}

func (o *InMemoryOutbox) Record(_ context.Context, event events.Event) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.entries = append(o.entries, entry{event: event})
	return nil
}

func (o *InMemoryOutbox) Pending(_ context.Context, limit int) ([]events.Event, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	var out []events.Event
	for _, e := range o.entries {
		if e.publishedAt != nil {
			continue
		}
		out = append(out, e.event)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (o *InMemoryOutbox) MarkPublished(_ context.Context, ids []uuid.UUID, at time.Time) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	for i := range o.entries {
		if o.entries[i].publishedAt == nil && slices.Contains(ids, o.entries[i].event.ID) {
			ts := at
			o.entries[i].publishedAt = &ts
		}
	}
	return nil
}

// All returns every recorded event, published or not.
func (o *InMemoryOutbox) All() []events.Event {
	o.mu.RLock()
	defer o.mu.RUnlock()
	out := make([]events.Event, len(o.entries))
	for i, e := range o.entries {
		out[i] = e.event
	}
	return out
}

// Snapshot captures the outbox and returns a func that restores it.
func (o *InMemoryOutbox) Snapshot() func() {
	o.mu.RLock()
	saved := slices.Clone(o.entries)
	o.mu.RUnlock()
	return func() {
		o.mu.Lock()
		o.entries = saved
		o.mu.Unlock()
	}
}
