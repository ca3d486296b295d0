package models

import (
	"time"

	"invitegate/internal/identity"
	"invitegate/pkg/domain"
	dErrors "invitegate/pkg/domain-errors"
)

// Wallet is the verification record of one address. The zero value (not
// verified, not linked) describes an address the ledger has never seen.
//
// Invariants:
//   - Verified is one-way; it never expires and is never revoked
//   - LinkedIdentity is set at most once and only on a verified wallet
type Wallet struct {
	Address        domain.Address       `json:"address"`
	Verified       bool                 `json:"verified"`
	LinkedIdentity *identity.Commitment `json:"linked_identity,omitempty"`
	VerifiedAt     *time.Time           `json:"verified_at,omitempty"`
	LinkedAt       *time.Time           `json:"linked_at,omitempty"`
}

func (w *Wallet) IsLinked() bool {
	return w.LinkedIdentity != nil
}

func (w *Wallet) CanVerify() error {
	if w.Verified {
		return dErrors.New(dErrors.CodeAlreadyVerified, "wallet already verified")
	}
	return nil
}

// CanLink reports whether commitment may be linked. Re-linking the same identity
// is allowed and is a no-op for the caller.
func (w *Wallet) CanLink(commitment identity.Commitment) error {
	if !w.Verified {
		return dErrors.New(dErrors.CodeNotVerified, "wallet is not verified")
	}
	if w.LinkedIdentity != nil && *w.LinkedIdentity != commitment {
		return dErrors.New(dErrors.CodeAlreadyLinked, "wallet already linked to another identity")
	}
	return nil
}
