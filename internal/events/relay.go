package events

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"invitegate/pkg/platform/circuit"
)

// Publisher delivers a batch of committed events to a broker.
type Publisher interface {
	Publish(ctx context.Context, batch []Event) error
}

// Outbox is the read side of the transactional outbox.
type Outbox interface {
	Pending(ctx context.Context, limit int) ([]Event, error)
	MarkPublished(ctx context.Context, ids []uuid.UUID, at time.Time) error
}

// Relay polls the outbox and publishes pending events in append order.
// An event is marked published only after the publisher acknowledges it, so a
// crash between the two republishes it.
type Relay struct {
	outbox    Outbox
	publisher Publisher
	breaker   *circuit.Breaker
	interval  time.Duration
	batchSize int
	logger    *slog.Logger
	metrics   *Metrics
	now       func() time.Time
}

type RelayOption func(*Relay)

func WithInterval(d time.Duration) RelayOption {
	return func(r *Relay) {
		if d > 0 {
			r.interval = d
		}
	}
}

func WithBatchSize(n int) RelayOption {
	return func(r *Relay) {
		if n > 0 {
			r.batchSize = n
		}
	}
}

func WithLogger(logger *slog.Logger) RelayOption {
	return func(r *Relay) {
		r.logger = logger
	}
}

func WithMetrics(m *Metrics) RelayOption {
	return func(r *Relay) {
		r.metrics = m
	}
}

func WithBreaker(b *circuit.Breaker) RelayOption {
	return func(r *Relay) {
		r.breaker = b
	}
}

func WithClock(now func() time.Time) RelayOption {
	return func(r *Relay) {
		r.now = now
	}
}

func NewRelay(outbox Outbox, publisher Publisher, opts ...RelayOption) *Relay {
	r := &Relay{
		outbox:    outbox,
		publisher: publisher,
		interval:  time.Second,
		batchSize: 100,
		logger:    slog.Default(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.breaker == nil {
		r.breaker = circuit.New("event-publisher", circuit.WithCooldown(10*r.interval))
	}
	return r
}

// Run flushes on every tick until ctx is cancelled.
func (r *Relay) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := r.Flush(ctx); err != nil && !errors.Is(err, context.Canceled) {
				r.logger.WarnContext(ctx, "event relay flush failed", "error", err)
			}
		}
	}
}

// Flush publishes one batch and returns how many events were delivered.
func (r *Relay) Flush(ctx context.Context) (int, error) {
	if !r.breaker.Allow() {
		return 0, nil
	}

	pending, err := r.outbox.Pending(ctx, r.batchSize)
	if err != nil {
		return 0, err
	}
	if len(pending) == 0 {
		return 0, nil
	}

	if err := r.publisher.Publish(ctx, pending); err != nil {
		r.metrics.incPublishFailures()
		if _, change := r.breaker.RecordFailure(); change.Opened {
			r.metrics.setCircuitOpen(true)
			r.logger.ErrorContext(ctx, "event publisher circuit opened", "error", err)
		}
		return 0, err
	}
	if _, change := r.breaker.RecordSuccess(); change.Closed {
		r.metrics.setCircuitOpen(false)
		r.logger.InfoContext(ctx, "event publisher circuit closed")
	}

	ids := make([]uuid.UUID, len(pending))
	for i, e := range pending {
		ids[i] = e.ID
	}
	if err := r.outbox.MarkPublished(ctx, ids, r.now()); err != nil {
		return 0, err
	}
	r.metrics.addPublished(len(pending))
	return len(pending), nil
}

// LogPublisher writes events as structured log records. It is the fallback
// when no broker is configured.
type LogPublisher struct {
	logger *slog.Logger
}

func NewLogPublisher(logger *slog.Logger) *LogPublisher {
	return &LogPublisher{logger: logger}
}

func (p *LogPublisher) Publish(ctx context.Context, batch []Event) error {
	for _, e := range batch {
		p.logger.InfoContext(ctx, string(e.Type),
			"event_id", e.ID.String(),
			"event", string(e.Type),
			"log_type", "event",
			"subject", e.Subject(),
			"token_id", uint64(e.TokenID),
			"request_id", e.RequestID,
		)
	}
	return nil
}
