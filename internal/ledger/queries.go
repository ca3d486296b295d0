package ledger

import (
	"context"

	"invitegate/internal/credential/models"
	"invitegate/internal/signature"
	walletmodels "invitegate/internal/wallet/models"
	"invitegate/pkg/domain"
	dErrors "invitegate/pkg/domain-errors"
)

// Challenge is the payload a wallet must sign to prove ownership.
type Challenge struct {
	Scheme  signature.Scheme
	Message string
	Digest  []byte
}

// ValidateCode reports whether code exists and can still be activated.
func (s *Service) ValidateCode(ctx context.Context, code string) (bool, error) {
	var available bool
	err := s.view(ctx, "validate_code", func(ctx context.Context, c components) error {
		var err error
		available, err = c.credentials.Validate(ctx, code)
		return err
	})
	return available, err
}

func (s *Service) Credential(ctx context.Context, code string) (*models.Credential, error) {
	var cred *models.Credential
	err := s.view(ctx, "credential", func(ctx context.Context, c components) error {
		var err error
		cred, err = c.credentials.Credential(ctx, code)
		return err
	})
	return cred, err
}

func (s *Service) CredentialByToken(ctx context.Context, tokenID domain.TokenID) (*models.Credential, error) {
	var cred *models.Credential
	err := s.view(ctx, "credential_by_token", func(ctx context.Context, c components) error {
		var err error
		cred, err = c.credentials.CredentialByToken(ctx, tokenID)
		return err
	})
	return cred, err
}

func (s *Service) OwnerOf(ctx context.Context, tokenID domain.TokenID) (domain.Address, error) {
	var owner domain.Address
	err := s.view(ctx, "owner_of", func(ctx context.Context, c components) error {
		var err error
		owner, err = c.credentials.OwnerOf(ctx, tokenID)
		return err
	})
	return owner, err
}

func (s *Service) TokenIDForCode(ctx context.Context, code string) (domain.TokenID, error) {
	var tokenID domain.TokenID
	err := s.view(ctx, "token_id_for_code", func(ctx context.Context, c components) error {
		var err error
		tokenID, err = c.credentials.TokenIDForCode(ctx, code)
		return err
	})
	return tokenID, err
}

// TokensOf lists the tokens held by owner in ascending order.
func (s *Service) TokensOf(ctx context.Context, owner domain.Address) ([]domain.TokenID, error) {
	var ids []domain.TokenID
	err := s.view(ctx, "tokens_of", func(ctx context.Context, c components) error {
		var err error
		ids, err = c.credentials.TokensOf(ctx, owner)
		return err
	})
	return ids, err
}

func (s *Service) Wallet(ctx context.Context, addr domain.Address) (*walletmodels.Wallet, error) {
	var w *walletmodels.Wallet
	err := s.view(ctx, "wallet", func(ctx context.Context, c components) error {
		var err error
		w, err = c.wallets.Wallet(ctx, addr)
		return err
	})
	return w, err
}

func (s *Service) HasBatchIssued(ctx context.Context, addr domain.Address) (bool, error) {
	var issued bool
	err := s.view(ctx, "has_batch_issued", func(ctx context.Context, c components) error {
		var err error
		issued, err = c.credentials.HasBatchIssued(ctx, addr)
		return err
	})
	return issued, err
}

// Challenge returns the digest addr must sign. An empty scheme selects the
// preferred accepted scheme.
func (s *Service) Challenge(scheme signature.Scheme, addr domain.Address) (Challenge, error) {
	if addr.IsZero() {
		return Challenge{}, dErrors.New(dErrors.CodeValidation, "address cannot be the zero address")
	}
	if scheme == "" {
		scheme = s.verifier.Schemes()[0]
	}
	if !s.verifier.Accepts(scheme) {
		return Challenge{}, dErrors.New(dErrors.CodeValidation, "challenge scheme not accepted: "+string(scheme))
	}
	digest, err := s.verifier.Challenge(scheme, addr)
	if err != nil {
		return Challenge{}, err
	}
	return Challenge{Scheme: scheme, Message: s.verifier.Message(), Digest: digest}, nil
}
