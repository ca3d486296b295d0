package handler

import (
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"

	"invitegate/internal/credential/models"
	"invitegate/internal/ledger"
	walletmodels "invitegate/internal/wallet/models"
	"invitegate/pkg/domain"
)

// CredentialResponse is the issuer view of an invite.
type CredentialResponse struct {
	Code            string         `json:"code"`
	TokenID         domain.TokenID `json:"token_id"`
	ArtifactLocator string         `json:"artifact_locator"`
	Recipient       string         `json:"recipient"`
	Owner           string         `json:"owner"`
	State           string         `json:"state"`
	Activated       bool           `json:"activated"`
	Commitment      string         `json:"identity_commitment,omitempty"`
	IssuedAt        time.Time      `json:"issued_at"`
	ActivatedAt     *time.Time     `json:"activated_at,omitempty"`
}

func FromCredential(c *models.Credential) *CredentialResponse {
	resp := &CredentialResponse{
		Code:            c.Code,
		TokenID:         c.TokenID,
		ArtifactLocator: c.ArtifactLocator,
		Recipient:       c.Recipient.Hex(),
		Owner:           c.Owner.Hex(),
		State:           string(c.State()),
		Activated:       c.Activated,
		IssuedAt:        c.IssuedAt,
		ActivatedAt:     c.ActivatedAt,
	}
	if c.Commitment != nil {
		resp.Commitment = c.Commitment.Hex()
	}
	return resp
}

// TokenResponse is the public view of a token; it omits the invite code.
type TokenResponse struct {
	TokenID   domain.TokenID `json:"token_id"`
	Owner     string         `json:"owner"`
	Recipient string         `json:"recipient"`
	State     string         `json:"state"`
}

func FromToken(c *models.Credential) *TokenResponse {
	return &TokenResponse{
		TokenID:   c.TokenID,
		Owner:     c.Owner.Hex(),
		Recipient: c.Recipient.Hex(),
		State:     string(c.State()),
	}
}

type AvailabilityResponse struct {
	Available bool `json:"available"`
}

type ActivateResponse struct {
	Activated  bool   `json:"activated"`
	Commitment string `json:"identity_commitment"`
}

type WalletResponse struct {
	Address        string     `json:"address"`
	Verified       bool       `json:"verified"`
	LinkedIdentity string     `json:"linked_identity,omitempty"`
	BatchIssued    bool       `json:"batch_issued"`
	VerifiedAt     *time.Time `json:"verified_at,omitempty"`
	LinkedAt       *time.Time `json:"linked_at,omitempty"`
}

func FromWallet(w *walletmodels.Wallet, batchIssued bool) *WalletResponse {
	resp := &WalletResponse{
		Address:     w.Address.Hex(),
		Verified:    w.Verified,
		BatchIssued: batchIssued,
		VerifiedAt:  w.VerifiedAt,
		LinkedAt:    w.LinkedAt,
	}
	if w.LinkedIdentity != nil {
		resp.LinkedIdentity = w.LinkedIdentity.Hex()
	}
	return resp
}

// ChallengeResponse tells a wallet what to personal_sign: the raw 32-byte digest.
type ChallengeResponse struct {
	Address string `json:"address"`
	Scheme  string `json:"scheme"`
	Message string `json:"message"`
	Digest  string `json:"digest"`
}

func FromChallenge(addr domain.Address, ch ledger.Challenge) *ChallengeResponse {
	return &ChallengeResponse{
		Address: addr.Hex(),
		Scheme:  string(ch.Scheme),
		Message: ch.Message,
		Digest:  hexutil.Encode(ch.Digest),
	}
}

type VerifyResponse struct {
	Address  string `json:"address"`
	Verified bool   `json:"verified"`
}

type ConnectResponse struct {
	Address string         `json:"address"`
	TokenID domain.TokenID `json:"token_id"`
}

type BatchIssueResponse struct {
	Address string               `json:"address"`
	Invites []CredentialResponse `json:"invites"`
}

type TokensResponse struct {
	Owner    string           `json:"owner"`
	Balance  int              `json:"balance"`
	TokenIDs []domain.TokenID `json:"token_ids"`
}
