package handler

import (
	"net/http"
	"strings"

	"invitegate/internal/signature"
	"invitegate/pkg/domain"
	dErrors "invitegate/pkg/domain-errors"
	"invitegate/pkg/platform/httputil"
	platformstrings "invitegate/pkg/platform/strings"
)

// validatable requests normalize and check themselves after decoding.
type validatable interface {
	Validate() error
}

func decode(r *http.Request, req validatable) error {
	if err := httputil.DecodeJSON(r, req); err != nil {
		return err
	}
	return req.Validate()
}

// MintInviteRequest is the body of POST /invites.
type MintInviteRequest struct {
	Recipient       string `json:"recipient"`
	Code            string `json:"code"`
	ArtifactLocator string `json:"artifact_locator"`

	recipient domain.Address
}

func (r *MintInviteRequest) Validate() error {
	addr, err := domain.ParseAddress(strings.TrimSpace(r.Recipient))
	if err != nil {
		return err
	}
	r.recipient = addr
	if r.Code == "" {
		return dErrors.New(dErrors.CodeValidation, "code is required")
	}
	if strings.TrimSpace(r.ArtifactLocator) == "" {
		return dErrors.New(dErrors.CodeValidation, "artifact_locator is required")
	}
	return nil
}

// ActivateRequest is the body of POST /invites/{code}/activate. Identity is the
// raw identity string; only its commitment is kept.
type ActivateRequest struct {
	Identity string `json:"identity"`
}

func (r *ActivateRequest) Validate() error {
	if r.Identity == "" {
		return dErrors.New(dErrors.CodeValidation, "identity is required")
	}
	return nil
}

type AttachArtifactRequest struct {
	ArtifactLocator string `json:"artifact_locator"`
}

func (r *AttachArtifactRequest) Validate() error {
	r.ArtifactLocator = strings.TrimSpace(r.ArtifactLocator)
	if r.ArtifactLocator == "" {
		return dErrors.New(dErrors.CodeValidation, "artifact_locator is required")
	}
	return nil
}

// VerifyRequest carries a 65-byte 0x-hex personal_sign signature.
type VerifyRequest struct {
	Signature string `json:"signature"`

	signature []byte
}

func (r *VerifyRequest) Validate() error {
	sig, err := signature.Decode(r.Signature)
	if err != nil {
		return err
	}
	r.signature = sig
	return nil
}

type ConnectRequest struct {
	Identity string `json:"identity"`
}

func (r *ConnectRequest) Validate() error {
	if r.Identity == "" {
		return dErrors.New(dErrors.CodeValidation, "identity is required")
	}
	return nil
}

// BatchIssueRequest is the body of POST /wallets/{address}/invites.
// ArtifactLocators is optional and positional.
type BatchIssueRequest struct {
	Codes            []string `json:"codes"`
	ArtifactLocators []string `json:"artifact_locators,omitempty"`
}

func (r *BatchIssueRequest) Validate() error {
	if len(r.Codes) == 0 {
		return dErrors.New(dErrors.CodeValidation, "codes are required")
	}
	if len(r.ArtifactLocators) > 0 && len(r.ArtifactLocators) != len(r.Codes) {
		return dErrors.New(dErrors.CodeValidation, "artifact_locators must match codes one to one")
	}
	if len(r.ArtifactLocators) > 0 {
		r.ArtifactLocators = platformstrings.TrimAll(r.ArtifactLocators)
	}
	return nil
}
