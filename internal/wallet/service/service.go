package service

import (
	"context"
	"errors"
	"time"

	"invitegate/internal/events"
	"invitegate/internal/identity"
	"invitegate/internal/signature"
	"invitegate/internal/wallet/models"
	"invitegate/pkg/domain"
	dErrors "invitegate/pkg/domain-errors"
	"invitegate/pkg/platform/sentinel"
	"invitegate/pkg/requestcontext"
)

// Store persists wallet verification records.
type Store interface {
	// Find returns sentinel.ErrNotFound for an address never seen.
	Find(ctx context.Context, addr domain.Address) (*models.Wallet, error)
	// MarkVerified fails with sentinel.ErrAlreadyUsed when already verified.
	MarkVerified(ctx context.Context, addr domain.Address, at time.Time) error
	// FindByIdentity returns sentinel.ErrNotFound when no wallet holds commitment.
	FindByIdentity(ctx context.Context, commitment identity.Commitment) (*models.Wallet, error)
	// Link fails with sentinel.ErrInvalidState when the wallet is unverified or
	// already linked, and with sentinel.ErrAlreadyUsed when another wallet
	// holds commitment.
	Link(ctx context.Context, addr domain.Address, commitment identity.Commitment, at time.Time) error
}

// SignatureVerifier proves that a signature over the address challenge was
// produced by that address.
type SignatureVerifier interface {
	Verify(addr domain.Address, sig []byte) (signature.Scheme, error)
}

// IdentityResolver answers whether an activated credential holds a commitment.
type IdentityResolver interface {
	CodeForIdentity(ctx context.Context, commitment identity.Commitment) (string, error)
}

// Service is the wallet registry: ownership proofs and identity links.
type Service struct {
	store      Store
	verifier   SignatureVerifier
	identities IdentityResolver
	events     events.Recorder
}

func New(store Store, verifier SignatureVerifier, identities IdentityResolver, recorder events.Recorder) *Service {
	return &Service{store: store, verifier: verifier, identities: identities, events: recorder}
}

// Wallet returns the record for addr, or the zero record if it was never seen.
func (s *Service) Wallet(ctx context.Context, addr domain.Address) (*models.Wallet, error) {
	w, err := s.store.Find(ctx, addr)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return &models.Wallet{Address: addr}, nil
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load wallet")
	}
	return w, nil
}

// Verify marks addr verified after checking sig against its challenge.
// It returns the scheme the signature matched.
func (s *Service) Verify(ctx context.Context, addr domain.Address, sig []byte) (signature.Scheme, error) {
	if addr.IsZero() {
		return "", dErrors.New(dErrors.CodeValidation, "address cannot be the zero address")
	}
	w, err := s.Wallet(ctx, addr)
	if err != nil {
		return "", err
	}
	if err := w.CanVerify(); err != nil {
		return "", err
	}
	scheme, err := s.verifier.Verify(addr, sig)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeInvalidSignature) {
			return "", err
		}
		return "", dErrors.Wrap(err, dErrors.CodeInvalidSignature, "signature verification failed")
	}
	if err := s.store.MarkVerified(ctx, addr, requestcontext.Now(ctx)); err != nil {
		if errors.Is(err, sentinel.ErrAlreadyUsed) {
			return "", dErrors.Wrap(err, dErrors.CodeAlreadyVerified, "wallet already verified")
		}
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to store verification")
	}
	if err := s.events.Record(ctx, events.WalletVerified(ctx, addr)); err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to record verification event")
	}
	return scheme, nil
}

// Link binds an activated identity to a verified address. Linking the identity
// the wallet already holds is a no-op and reports linked=false. An identity is
// linked to at most one wallet.
func (s *Service) Link(ctx context.Context, commitment identity.Commitment, addr domain.Address) (bool, error) {
	w, err := s.Wallet(ctx, addr)
	if err != nil {
		return false, err
	}
	if err := w.CanLink(commitment); err != nil {
		return false, err
	}
	if _, err := s.identities.CodeForIdentity(ctx, commitment); err != nil {
		return false, err
	}
	if w.IsLinked() {
		return false, nil
	}
	holder, err := s.store.FindByIdentity(ctx, commitment)
	switch {
	case err == nil && holder.Address != addr:
		return false, dErrors.New(dErrors.CodeAlreadyLinked, "identity already linked to another wallet")
	case err != nil && !errors.Is(err, sentinel.ErrNotFound):
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load identity link")
	}
	if err := s.store.Link(ctx, addr, commitment, requestcontext.Now(ctx)); err != nil {
		if errors.Is(err, sentinel.ErrInvalidState) || errors.Is(err, sentinel.ErrAlreadyUsed) {
			return false, dErrors.Wrap(err, dErrors.CodeAlreadyLinked, "wallet already linked")
		}
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to store link")
	}
	if err := s.events.Record(ctx, events.WalletLinked(ctx, commitment, addr)); err != nil {
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to record link event")
	}
	return true, nil
}

func (s *Service) IsVerified(ctx context.Context, addr domain.Address) (bool, error) {
	w, err := s.Wallet(ctx, addr)
	if err != nil {
		return false, err
	}
	return w.Verified, nil
}

// IdentityOf returns the linked commitment, or nil when none is linked.
func (s *Service) IdentityOf(ctx context.Context, addr domain.Address) (*identity.Commitment, error) {
	w, err := s.Wallet(ctx, addr)
	if err != nil {
		return nil, err
	}
	return w.LinkedIdentity, nil
}
