package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"invitegate/internal/identity"
	"invitegate/internal/wallet/models"
	"invitegate/pkg/domain"
	"invitegate/pkg/platform/sentinel"
	txcontext "invitegate/pkg/platform/tx"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Find(ctx context.Context, addr domain.Address) (*models.Wallet, error) {
	row := txcontext.ExecutorFrom(ctx, s.db).QueryRowContext(ctx, `
		SELECT address, verified, linked_identity, verified_at, linked_at
		FROM wallets WHERE address = $1
	`, addr.Hex())
	w, err := scanWallet(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("wallet %s: %w", addr, sentinel.ErrNotFound)
	}
	return w, err
}

func (s *PostgresStore) FindByIdentity(ctx context.Context, commitment identity.Commitment) (*models.Wallet, error) {
	row := txcontext.ExecutorFrom(ctx, s.db).QueryRowContext(ctx, `
		SELECT address, verified, linked_identity, verified_at, linked_at
		FROM wallets WHERE linked_identity = $1
	`, commitment[:])
	w, err := scanWallet(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("identity %s: %w", commitment.Hex(), sentinel.ErrNotFound)
	}
	return w, err
}

func scanWallet(row *sql.Row) (*models.Wallet, error) {
	var (
		w          models.Wallet
		address    string
		linked     []byte
		verifiedAt sql.NullTime
		linkedAt   sql.NullTime
	)
	if err := row.Scan(&address, &w.Verified, &linked, &verifiedAt, &linkedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("load wallet: %w", err)
	}
	addr, err := domain.ParseAddress(address)
	if err != nil {
		return nil, fmt.Errorf("stored wallet address: %w", err)
	}
	w.Address = addr
	if linked != nil {
		c, err := identity.FromBytes(linked)
		if err != nil {
			return nil, fmt.Errorf("stored linked identity: %w", err)
		}
		w.LinkedIdentity = &c
	}
	if verifiedAt.Valid {
		at := verifiedAt.Time
		w.VerifiedAt = &at
	}
	if linkedAt.Valid {
		at := linkedAt.Time
		w.LinkedAt = &at
	}
	return &w, nil
}

func (s *PostgresStore) MarkVerified(ctx context.Context, addr domain.Address, at time.Time) error {
	res, err := txcontext.ExecutorFrom(ctx, s.db).ExecContext(ctx, `
		INSERT INTO wallets (address, verified, verified_at) VALUES ($1, TRUE, $2)
		ON CONFLICT (address) DO UPDATE SET verified = TRUE, verified_at = EXCLUDED.verified_at
		WHERE wallets.verified = FALSE
	`, addr.Hex(), at)
	if err != nil {
		return fmt.Errorf("mark wallet verified: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("wallet %s: %w", addr, sentinel.ErrAlreadyUsed)
	}
	return nil
}

func (s *PostgresStore) Link(ctx context.Context, addr domain.Address, commitment identity.Commitment, at time.Time) error {
	res, err := txcontext.ExecutorFrom(ctx, s.db).ExecContext(ctx, `
		UPDATE wallets SET linked_identity = $2, linked_at = $3
		WHERE address = $1 AND verified = TRUE AND linked_identity IS NULL
	`, addr.Hex(), commitment[:], at)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return fmt.Errorf("identity %s: %w", commitment.Hex(), sentinel.ErrAlreadyUsed)
		}
		return fmt.Errorf("link wallet: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("wallet %s: %w", addr, sentinel.ErrInvalidState)
	}
	return nil
}
