package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	credstore "invitegate/internal/credential/store"
	eventstore "invitegate/internal/events/store"
	"invitegate/internal/ledger"
	walletstore "invitegate/internal/wallet/store"
	dErrors "invitegate/pkg/domain-errors"
	txcontext "invitegate/pkg/platform/tx"
)

// ledgerLockKey is the advisory lock every mutating transaction takes.
const ledgerLockKey int64 = 0x696e7669746567

// serializationFailure is SQLSTATE 40001.
const serializationFailure = "40001"

// PostgresTx runs ledger transactions as SERIALIZABLE postgres transactions
// serialized further by a ledger-wide advisory lock.
type PostgresTx struct {
	db      *sql.DB
	stores  ledger.Stores
	outbox  *eventstore.PostgresOutbox
	timeout time.Duration
}

type PostgresOption func(*PostgresTx)

func WithPostgresTimeout(d time.Duration) PostgresOption {
	return func(t *PostgresTx) {
		if d > 0 {
			t.timeout = d
		}
	}
}

func NewPostgres(db *sql.DB, opts ...PostgresOption) *PostgresTx {
	outbox := eventstore.NewPostgresOutbox(db)
	t := &PostgresTx{
		db: db,
		stores: ledger.Stores{
			Credentials: credstore.NewPostgres(db),
			Wallets:     walletstore.NewPostgres(db),
			Outbox:      outbox,
		},
		outbox:  outbox,
		timeout: DefaultTxTimeout,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Outbox is the relay side of the transactional outbox.
func (t *PostgresTx) Outbox() *eventstore.PostgresOutbox {
	return t.outbox
}

func (t *PostgresTx) RunInTx(ctx context.Context, fn func(ctx context.Context, stores ledger.Stores) error) error {
	return t.run(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable}, true, fn)
}

func (t *PostgresTx) View(ctx context.Context, fn func(ctx context.Context, stores ledger.Stores) error) error {
	return t.run(ctx, &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true}, false, fn)
}

func (t *PostgresTx) run(ctx context.Context, opts *sql.TxOptions, lock bool, fn func(ctx context.Context, stores ledger.Stores) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.timeout)
		defer cancel()
	}

	tx, err := t.db.BeginTx(ctx, opts)
	if err != nil {
		return translate(err, "failed to begin transaction")
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if lock {
		if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, ledgerLockKey); err != nil {
			return translate(err, "failed to acquire ledger lock")
		}
	}

	if err := fn(txcontext.WithTx(ctx, tx), t.stores); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return translate(err, "failed to commit transaction")
	}
	return nil
}

func translate(err error, msg string) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == serializationFailure {
		return dErrors.Wrap(err, dErrors.CodeConflict, "concurrent ledger update, retry")
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return dErrors.Wrap(err, dErrors.CodeTimeout, msg)
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, msg)
}
