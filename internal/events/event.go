// Package events defines the ledger's domain events and relays them from the
// transactional outbox to a broker after commit.
package events

import (
	"context"
	"time"

	"github.com/google/uuid"

	"invitegate/internal/identity"
	"invitegate/pkg/domain"
	"invitegate/pkg/requestcontext"
)

type Type string

const (
	TypeInviteIssued       Type = "invite_issued"
	TypeInviteActivated    Type = "invite_activated"
	TypeWalletVerified     Type = "wallet_verified"
	TypeWalletLinked       Type = "wallet_linked"
	TypeInvitesBatchIssued Type = "invites_batch_issued"
	TypeArtifactAttached   Type = "artifact_attached"
)

// Event is the wire form written to the outbox and published to brokers.
// Consumers dedupe by ID; delivery is at-least-once.
type Event struct {
	ID         uuid.UUID        `json:"id"`
	Type       Type             `json:"type"`
	OccurredAt time.Time        `json:"occurred_at"`
	RequestID  string           `json:"request_id,omitempty"`
	TokenID    domain.TokenID   `json:"token_id,omitempty"`
	TokenIDs   []domain.TokenID `json:"token_ids,omitempty"`
	Code       string           `json:"code,omitempty"`
	Address    string           `json:"address,omitempty"`
	Commitment string           `json:"commitment,omitempty"`
	Locator    string           `json:"locator,omitempty"`
}

// Subject is the partition key: the address an event concerns, else the invite code.
func (e Event) Subject() string {
	if e.Address != "" {
		return e.Address
	}
	return e.Code
}

// Recorder appends events inside the caller's transaction.
type Recorder interface {
	Record(ctx context.Context, event Event) error
}

func newEvent(ctx context.Context, t Type) Event {
	return Event{
		ID:         uuid.New(),
		Type:       t,
		OccurredAt: requestcontext.Now(ctx).UTC(),
		RequestID:  requestcontext.RequestID(ctx),
	}
}

func InviteIssued(ctx context.Context, tokenID domain.TokenID, recipient domain.Address, code string) Event {
	e := newEvent(ctx, TypeInviteIssued)
	e.TokenID = tokenID
	e.Address = recipient.Hex()
	e.Code = code
	return e
}

func InviteActivated(ctx context.Context, code string, commitment identity.Commitment) Event {
	e := newEvent(ctx, TypeInviteActivated)
	e.Code = code
	e.Commitment = commitment.Hex()
	return e
}

func WalletVerified(ctx context.Context, addr domain.Address) Event {
	e := newEvent(ctx, TypeWalletVerified)
	e.Address = addr.Hex()
	return e
}

func WalletLinked(ctx context.Context, commitment identity.Commitment, addr domain.Address) Event {
	e := newEvent(ctx, TypeWalletLinked)
	e.Commitment = commitment.Hex()
	e.Address = addr.Hex()
	return e
}

func InvitesBatchIssued(ctx context.Context, addr domain.Address, tokenIDs []domain.TokenID) Event {
	e := newEvent(ctx, TypeInvitesBatchIssued)
	e.Address = addr.Hex()
	e.TokenIDs = append([]domain.TokenID(nil), tokenIDs...)
	return e
}

func ArtifactAttached(ctx context.Context, tokenID domain.TokenID, code, locator string) Event {
	e := newEvent(ctx, TypeArtifactAttached)
	e.TokenID = tokenID
	e.Code = code
	e.Locator = locator
	return e
}
