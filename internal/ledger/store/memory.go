// Package store provides the ledger transaction runners: a coarse-locked
// in-memory runner and a serializable postgres runner.
package store

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	credstore "invitegate/internal/credential/store"
	"invitegate/internal/events"
	eventstore "invitegate/internal/events/store"
	"invitegate/internal/ledger"
	walletstore "invitegate/internal/wallet/store"
	dErrors "invitegate/pkg/domain-errors"
)

// DefaultTxTimeout bounds a transaction whose context carries no deadline.
const DefaultTxTimeout = 5 * time.Second

// snapshotter captures state and returns a func that restores it.
type snapshotter interface {
	Snapshot() func()
}

// MemoryTx serializes ledger transactions behind one lock. A failed or
// panicking transaction restores every store to its state before fn ran.
type MemoryTx struct {
	mu      sync.RWMutex
	stores  ledger.Stores
	outbox  *eventstore.InMemoryOutbox
	timeout time.Duration
}

type MemoryOption func(*MemoryTx)

func WithMemoryTimeout(d time.Duration) MemoryOption {
	return func(t *MemoryTx) {
		if d > 0 {
			t.timeout = d
		}
	}
}

// NewMemory builds a runner over fresh in-memory stores.
func NewMemory(opts ...MemoryOption) *MemoryTx {
	outbox := eventstore.NewInMemoryOutbox()
	return NewMemoryWith(ledger.Stores{
		Credentials: credstore.NewInMemory(),
		Wallets:     walletstore.NewInMemory(),
		Outbox:      outbox,
	}, outbox, opts...)
}

// NewMemoryWith wraps caller supplied stores. Stores that implement
// Snapshot() func() are rolled back on failure; others are not.
func NewMemoryWith(stores ledger.Stores, outbox *eventstore.InMemoryOutbox, opts ...MemoryOption) *MemoryTx {
	t := &MemoryTx{stores: stores, outbox: outbox, timeout: DefaultTxTimeout}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func (t *MemoryTx) RunInTx(ctx context.Context, fn func(ctx context.Context, stores ledger.Stores) error) (err error) {
	ctx, cancel, err := t.begin(ctx)
	if err != nil {
		return err
	}
	defer cancel()

	t.mu.Lock()
	defer t.mu.Unlock()

	// Check again after acquiring lock
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}

	restore := t.snapshot()
	defer func() {
		if r := recover(); r != nil {
			restore()
			panic(r)
		}
		if err != nil {
			restore()
		}
	}()

	if err := fn(ctx, t.stores); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: deadline exceeded")
	}
	return nil
}

func (t *MemoryTx) View(ctx context.Context, fn func(ctx context.Context, stores ledger.Stores) error) error {
	ctx, cancel, err := t.begin(ctx)
	if err != nil {
		return err
	}
	defer cancel()

	t.mu.RLock()
	defer t.mu.RUnlock()
	return fn(ctx, t.stores)
}

// Outbox exposes the committed outbox to the relay. Reads and acknowledgements
// take the ledger lock so an in-flight transaction's events are never relayed.
func (t *MemoryTx) Outbox() events.Outbox {
	return &lockedOutbox{tx: t}
}

func (t *MemoryTx) begin(ctx context.Context) (context.Context, context.CancelFunc, error) {
	if err := ctx.Err(); err != nil {
		return ctx, func() {}, dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}
	if _, hasDeadline := ctx.Deadline(); hasDeadline {
		return ctx, func() {}, nil
	}
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	return ctx, cancel, nil
}

func (t *MemoryTx) snapshot() func() {
	var restores []func()
	for _, s := range []any{t.stores.Credentials, t.stores.Wallets, t.stores.Outbox} {
		if snap, ok := s.(snapshotter); ok {
			restores = append(restores, snap.Snapshot())
		}
	}
	return func() {
		for _, restore := range restores {
			restore()
		}
	}
}

type lockedOutbox struct {
	tx *MemoryTx
}

func (o *lockedOutbox) Pending(ctx context.Context, limit int) ([]events.Event, error) {
	o.tx.mu.RLock()
	defer o.tx.mu.RUnlock()
	return o.tx.outbox.Pending(ctx, limit)
}

func (o *lockedOutbox) MarkPublished(ctx context.Context, ids []uuid.UUID, at time.Time) error {
	o.tx.mu.Lock()
	defer o.tx.mu.Unlock()
	return o.tx.outbox.MarkPublished(ctx, ids, at)
}
