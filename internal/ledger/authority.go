package ledger

import (
	"invitegate/pkg/domain"
	dErrors "invitegate/pkg/domain-errors"
)

type Role string

const (
	RoleIssuer Role = "issuer"
	RoleMember Role = "member"
)

// Authority is the capability a caller presents to a mutating operation.
// The zero value is anonymous and authorizes nothing.
type Authority struct {
	Subject string
	Role    Role
	// Wallet is the address a member authority acts for.
	Wallet domain.Address
}

func Issuer(subject string) Authority {
	return Authority{Subject: subject, Role: RoleIssuer}
}

func Member(wallet domain.Address) Authority {
	return Authority{Subject: wallet.Hex(), Role: RoleMember, Wallet: wallet}
}

func (a Authority) IsIssuer() bool {
	return a.Role == RoleIssuer
}

// ActsFor reports whether a is a member authority bound to addr.
func (a Authority) ActsFor(addr domain.Address) bool {
	return a.Role == RoleMember && !a.Wallet.IsZero() && a.Wallet == addr
}

func (a Authority) requireIssuer() error {
	if !a.IsIssuer() {
		return dErrors.New(dErrors.CodeUnauthorized, "issuer authority required")
	}
	return nil
}

func (a Authority) requireBatchIssuer(addr domain.Address) error {
	if a.IsIssuer() || a.ActsFor(addr) {
		return nil
	}
	return dErrors.New(dErrors.CodeUnauthorized, "only an issuer or the address itself may batch issue")
}
