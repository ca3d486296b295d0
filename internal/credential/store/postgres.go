package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"

	"invitegate/internal/credential/models"
	"invitegate/internal/identity"
	"invitegate/pkg/domain"
	"invitegate/pkg/platform/sentinel"
	txcontext "invitegate/pkg/platform/tx"
)

const uniqueViolation = "23505"

// PostgresStore persists credentials and custody. Writes go through the
// transaction bound to ctx when there is one.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) exec(ctx context.Context) txcontext.Executor {
	return txcontext.ExecutorFrom(ctx, s.db)
}

func (s *PostgresStore) NextTokenID(ctx context.Context) (domain.TokenID, error) {
	var next int64
	err := s.exec(ctx).QueryRowContext(ctx, `SELECT COALESCE(MAX(token_id), 0) + 1 FROM credentials`).Scan(&next)
	if err != nil {
		return 0, fmt.Errorf("allocate token id: %w", err)
	}
	return domain.TokenID(next), nil
}

func (s *PostgresStore) Insert(ctx context.Context, c *models.Credential) error {
	query := `
		INSERT INTO credentials (token_id, code, artifact_locator, recipient, issued_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	if _, err := s.exec(ctx).ExecContext(ctx, query,
		int64(c.TokenID), c.Code, c.ArtifactLocator, c.Recipient.Hex(), c.IssuedAt,
	); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("code %s: %w", c.Code, sentinel.ErrAlreadyUsed)
		}
		return fmt.Errorf("insert credential: %w", err)
	}
	if _, err := s.exec(ctx).ExecContext(ctx,
		`INSERT INTO custody (token_id, owner, updated_at) VALUES ($1, $2, $3)`,
		int64(c.TokenID), c.Recipient.Hex(), c.IssuedAt,
	); err != nil {
		return fmt.Errorf("insert custody: %w", err)
	}
	return nil
}

const selectCredential = `
	SELECT c.token_id, c.code, c.artifact_locator, c.recipient, c.activated,
	       c.identity_commitment, c.issued_at, c.activated_at, k.owner
	FROM credentials c
	JOIN custody k ON k.token_id = c.token_id
`

func (s *PostgresStore) FindByCode(ctx context.Context, code string) (*models.Credential, error) {
	c, err := scanCredential(s.exec(ctx).QueryRowContext(ctx, selectCredential+` WHERE c.code = $1`, code))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("code %s: %w", code, sentinel.ErrNotFound)
	}
	return c, err
}

func (s *PostgresStore) FindByToken(ctx context.Context, tokenID domain.TokenID) (*models.Credential, error) {
	c, err := scanCredential(s.exec(ctx).QueryRowContext(ctx, selectCredential+` WHERE c.token_id = $1`, int64(tokenID)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("token %s: %w", tokenID, sentinel.ErrNotFound)
	}
	return c, err
}

func scanCredential(row *sql.Row) (*models.Credential, error) {
	var (
		tokenID     int64
		c           models.Credential
		recipient   string
		owner       string
		commitment  []byte
		activatedAt sql.NullTime
	)
	if err := row.Scan(&tokenID, &c.Code, &c.ArtifactLocator, &recipient, &c.Activated,
		&commitment, &c.IssuedAt, &activatedAt, &owner); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan credential: %w", err)
	}
	c.TokenID = domain.TokenID(tokenID)
	var err error
	if c.Recipient, err = domain.ParseAddress(recipient); err != nil {
		return nil, fmt.Errorf("stored recipient: %w", err)
	}
	if c.Owner, err = domain.ParseAddress(owner); err != nil {
		return nil, fmt.Errorf("stored owner: %w", err)
	}
	if commitment != nil {
		parsed, err := identity.FromBytes(commitment)
		if err != nil {
			return nil, fmt.Errorf("stored commitment: %w", err)
		}
		c.Commitment = &parsed
	}
	if activatedAt.Valid {
		at := activatedAt.Time
		c.ActivatedAt = &at
	}
	return &c, nil
}

func (s *PostgresStore) ExistingCodes(ctx context.Context, codes []string) ([]string, error) {
	rows, err := s.exec(ctx).QueryContext(ctx, `SELECT code FROM credentials WHERE code = ANY($1::text[])`, pq.Array(codes))
	if err != nil {
		return nil, fmt.Errorf("query existing codes: %w", err)
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var code string
		if err := rows.Scan(&code); err != nil {
			return nil, fmt.Errorf("scan code: %w", err)
		}
		out = append(out, code)
	}
	return out, rows.Err()
}

func (s *PostgresStore) SaveActivation(ctx context.Context, code string, commitment identity.Commitment, at time.Time) error {
	res, err := s.exec(ctx).ExecContext(ctx, `
		UPDATE credentials
		SET activated = TRUE, identity_commitment = $2, activated_at = $3
		WHERE code = $1 AND activated = FALSE
	`, code, commitment[:], at)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("commitment %s: %w", commitment, sentinel.ErrAlreadyUsed)
		}
		return fmt.Errorf("activate credential: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 1 {
		return nil
	}
	if _, err := s.FindByCode(ctx, code); err != nil {
		return err
	}
	return fmt.Errorf("code %s: %w", code, sentinel.ErrInvalidState)
}

func (s *PostgresStore) CodeForCommitment(ctx context.Context, commitment identity.Commitment) (string, error) {
	var code string
	err := s.exec(ctx).QueryRowContext(ctx,
		`SELECT code FROM credentials WHERE identity_commitment = $1`, commitment[:],
	).Scan(&code)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("commitment %s: %w", commitment, sentinel.ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("resolve commitment: %w", err)
	}
	return code, nil
}

func (s *PostgresStore) SetOwner(ctx context.Context, tokenID domain.TokenID, owner domain.Address, at time.Time) error {
	res, err := s.exec(ctx).ExecContext(ctx,
		`UPDATE custody SET owner = $2, updated_at = $3 WHERE token_id = $1`,
		int64(tokenID), owner.Hex(), at,
	)
	if err != nil {
		return fmt.Errorf("transfer custody: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("token %s: %w", tokenID, sentinel.ErrNotFound)
	}
	return nil
}

func (s *PostgresStore) TokensOf(ctx context.Context, owner domain.Address) ([]domain.TokenID, error) {
	rows, err := s.exec(ctx).QueryContext(ctx,
		`SELECT token_id FROM custody WHERE owner = $1 ORDER BY token_id`, owner.Hex())
	if err != nil {
		return nil, fmt.Errorf("query tokens: %w", err)
	}
	defer rows.Close()
	var out []domain.TokenID
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan token id: %w", err)
		}
		out = append(out, domain.TokenID(id))
	}
	return out, rows.Err()
}

func (s *PostgresStore) SetArtifact(ctx context.Context, code, locator string) error {
	res, err := s.exec(ctx).ExecContext(ctx,
		`UPDATE credentials SET artifact_locator = $2 WHERE code = $1`, code, locator)
	if err != nil {
		return fmt.Errorf("set artifact: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("code %s: %w", code, sentinel.ErrNotFound)
	}
	return nil
}

func (s *PostgresStore) HasBatchIssued(ctx context.Context, addr domain.Address) (bool, error) {
	var exists bool
	err := s.exec(ctx).QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM issuance_quotas WHERE address = $1)`, addr.Hex(),
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("query issuance quota: %w", err)
	}
	return exists, nil
}

func (s *PostgresStore) MarkBatchIssued(ctx context.Context, addr domain.Address, at time.Time) error {
	res, err := s.exec(ctx).ExecContext(ctx, `
		INSERT INTO issuance_quotas (address, batch_issued_at) VALUES ($1, $2)
		ON CONFLICT (address) DO NOTHING
	`, addr.Hex(), at)
	if err != nil {
		return fmt.Errorf("mark batch issued: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("address %s: %w", addr, sentinel.ErrAlreadyUsed)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
