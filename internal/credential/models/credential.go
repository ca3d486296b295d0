package models

import (
	"strings"
	"time"

	"invitegate/internal/identity"
	"invitegate/pkg/domain"
	dErrors "invitegate/pkg/domain-errors"
)

// State is derived from activation and custody; it is never stored.
type State string

const (
	StateIssued    State = "issued"
	StateActivated State = "activated"
	StateBound     State = "bound"
)

// Credential is an invite and the token bound to it.
//
// Invariants:
//   - Code and TokenID are immutable and each keys at most one credential
//   - Recipient is the original custody owner and never changes
//   - Activated is one-way; Commitment is set exactly once, at activation
//   - Owner mirrors the custody record and moves only through binding
type Credential struct {
	Code            string               `json:"code"`
	TokenID         domain.TokenID       `json:"token_id"`
	ArtifactLocator string               `json:"artifact_locator"`
	Recipient       domain.Address       `json:"recipient"`
	Owner           domain.Address       `json:"owner"`
	Activated       bool                 `json:"activated"`
	Commitment      *identity.Commitment `json:"identity_commitment,omitempty"`
	IssuedAt        time.Time            `json:"issued_at"`
	ActivatedAt     *time.Time           `json:"activated_at,omitempty"`
}

// NewCredential validates issuance inputs. Custody starts with the recipient.
func NewCredential(tokenID domain.TokenID, recipient domain.Address, code, locator string, now time.Time) (*Credential, error) {
	if tokenID.IsZero() {
		return nil, dErrors.New(dErrors.CodeValidation, "token id must be positive")
	}
	if err := ValidateCode(code); err != nil {
		return nil, err
	}
	if strings.TrimSpace(locator) == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "artifact locator cannot be empty")
	}
	if recipient.IsZero() {
		return nil, dErrors.New(dErrors.CodeValidation, "recipient cannot be the zero address")
	}
	return &Credential{
		Code:            code,
		TokenID:         tokenID,
		ArtifactLocator: locator,
		Recipient:       recipient,
		Owner:           recipient,
		IssuedAt:        now,
	}, nil
}

// ValidateCode rejects empty or padded codes. Codes are otherwise opaque.
func ValidateCode(code string) error {
	if code == "" {
		return dErrors.New(dErrors.CodeValidation, "credential code cannot be empty")
	}
	if strings.TrimSpace(code) != code {
		return dErrors.New(dErrors.CodeValidation, "credential code cannot have surrounding whitespace")
	}
	return nil
}

func (c *Credential) State() State {
	switch {
	case !c.Activated:
		return StateIssued
	case c.Owner != c.Recipient:
		return StateBound
	default:
		return StateActivated
	}
}

// IsAvailable reports whether the code can still be activated.
func (c *Credential) IsAvailable() bool {
	return !c.Activated
}

// CanActivate checks the one-way activation transition.
func (c *Credential) CanActivate() error {
	if c.Activated {
		return dErrors.New(dErrors.CodeAlreadyActivated, "credential already activated")
	}
	return nil
}

// ApplyActivation must only be called after CanActivate returns nil.
func (c *Credential) ApplyActivation(commitment identity.Commitment, now time.Time) {
	c.Activated = true
	c.Commitment = &commitment
	c.ActivatedAt = &now
}

// BatchItem is one credential of a batch issuance.
type BatchItem struct {
	Code    string
	Locator string
}
