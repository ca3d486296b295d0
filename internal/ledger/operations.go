package ledger

import (
	"context"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"invitegate/internal/credential/models"
	"invitegate/internal/events"
	"invitegate/internal/identity"
	"invitegate/pkg/domain"
	dErrors "invitegate/pkg/domain-errors"
)

// MintInvite issues one credential to recipient. Issuer only.
func (s *Service) MintInvite(ctx context.Context, auth Authority, recipient domain.Address, code, locator string) (*models.Credential, error) {
	if err := auth.requireIssuer(); err != nil {
		return nil, err
	}
	if recipient.IsZero() {
		return nil, dErrors.New(dErrors.CodeValidation, "recipient cannot be the zero address")
	}
	if strings.TrimSpace(locator) == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "artifact locator is required")
	}

	var minted *models.Credential
	err := s.transition(ctx, "mint_invite", func(ctx context.Context, c components) error {
		cred, err := c.credentials.Issue(ctx, recipient, code, locator)
		if err != nil {
			return err
		}
		minted = cred
		return nil
	}, attribute.String("recipient", recipient.Hex()))
	if err != nil {
		return nil, err
	}

	s.metrics.IncInvitesIssued(1)
	s.logAudit(ctx, string(events.TypeInviteIssued),
		"token_id", minted.TokenID.String(),
		"recipient", recipient.Hex(),
	)
	return minted, nil
}

// ActivateInvite consumes code for the holder of rawIdentity. Only the
// commitment of rawIdentity is persisted. Issuer only.
func (s *Service) ActivateInvite(ctx context.Context, auth Authority, code, rawIdentity string) (identity.Commitment, error) {
	if err := auth.requireIssuer(); err != nil {
		return identity.Commitment{}, err
	}
	if rawIdentity == "" {
		return identity.Commitment{}, dErrors.New(dErrors.CodeValidation, "identity is required")
	}
	commitment := identity.Commit(rawIdentity)

	err := s.transition(ctx, "activate_invite", func(ctx context.Context, c components) error {
		available, err := c.credentials.Validate(ctx, code)
		if err != nil {
			return err
		}
		if !available {
			return dErrors.New(dErrors.CodeCodeNotAvailable, "invite code is not available")
		}
		return c.credentials.Activate(ctx, code, commitment)
	})
	if err != nil {
		return identity.Commitment{}, err
	}

	s.metrics.IncInvitesActivated()
	s.logAudit(ctx, string(events.TypeInviteActivated), "commitment", commitment.Hex())
	return commitment, nil
}

// VerifyWallet records a proof of ownership for addr. The signature is the
// authority; no role is required.
func (s *Service) VerifyWallet(ctx context.Context, addr domain.Address, sig []byte) error {
	var scheme string
	err := s.transition(ctx, "verify_wallet", func(ctx context.Context, c components) error {
		matched, err := c.wallets.Verify(ctx, addr, sig)
		if err != nil {
			return err
		}
		scheme = string(matched)
		return nil
	}, attribute.String("address", addr.Hex()))
	if err != nil {
		return err
	}

	s.metrics.IncWalletsVerified()
	s.logAudit(ctx, string(events.TypeWalletVerified), "address", addr.Hex(), "scheme", scheme)
	return nil
}

// ConnectWallet links the identity behind an activated invite to a verified
// wallet and moves the invite's token into that wallet. Issuer only.
func (s *Service) ConnectWallet(ctx context.Context, auth Authority, rawIdentity string, addr domain.Address) (domain.TokenID, error) {
	if err := auth.requireIssuer(); err != nil {
		return 0, err
	}
	if rawIdentity == "" {
		return 0, dErrors.New(dErrors.CodeValidation, "identity is required")
	}
	if addr.IsZero() {
		return 0, dErrors.New(dErrors.CodeValidation, "address cannot be the zero address")
	}
	commitment := identity.Commit(rawIdentity)

	var tokenID domain.TokenID
	err := s.transition(ctx, "connect_wallet", func(ctx context.Context, c components) error {
		verified, err := c.wallets.IsVerified(ctx, addr)
		if err != nil {
			return err
		}
		if !verified {
			return dErrors.New(dErrors.CodeNotVerified, "wallet is not verified")
		}
		code, err := c.credentials.CodeForIdentity(ctx, commitment)
		if err != nil {
			return err
		}
		cred, err := c.credentials.Credential(ctx, code)
		if err != nil {
			return err
		}
		if cred.State() == models.StateBound {
			return dErrors.New(dErrors.CodeAlreadyLinked, "invite already bound to a wallet")
		}
		if _, err := c.wallets.Link(ctx, commitment, addr); err != nil {
			return err
		}
		if err := c.credentials.TransferCustody(ctx, cred.TokenID, addr); err != nil {
			return err
		}
		tokenID = cred.TokenID
		return nil
	}, attribute.String("address", addr.Hex()))
	if err != nil {
		return 0, err
	}

	s.metrics.IncWalletsConnected()
	s.logAudit(ctx, string(events.TypeWalletLinked),
		"address", addr.Hex(),
		"commitment", commitment.Hex(),
		"token_id", tokenID.String(),
	)
	return tokenID, nil
}

// BatchIssue mints the one-time batch of invites owned by addr. locators is
// optional; when given it must match codes one to one and empty entries get
// a deferred placeholder.
func (s *Service) BatchIssue(ctx context.Context, auth Authority, addr domain.Address, codes, locators []string) ([]*models.Credential, error) {
	if err := auth.requireBatchIssuer(addr); err != nil {
		return nil, err
	}
	if addr.IsZero() {
		return nil, dErrors.New(dErrors.CodeValidation, "address cannot be the zero address")
	}
	if len(codes) != s.invitesPerMember {
		return nil, dErrors.New(dErrors.CodeValidation,
			fmt.Sprintf("batch must contain exactly %d codes, got %d", s.invitesPerMember, len(codes)))
	}
	if len(locators) > 0 && len(locators) != len(codes) {
		return nil, dErrors.New(dErrors.CodeValidation, "locators must match codes one to one")
	}
	items := make([]models.BatchItem, len(codes))
	for i, code := range codes {
		items[i] = models.BatchItem{Code: code}
		if len(locators) > 0 {
			items[i].Locator = locators[i]
		}
	}

	var batch []*models.Credential
	err := s.transition(ctx, "batch_issue", func(ctx context.Context, c components) error {
		issued, err := c.credentials.HasBatchIssued(ctx, addr)
		if err != nil {
			return err
		}
		if issued {
			return dErrors.New(dErrors.CodeQuotaExhausted, "address already issued its batch")
		}
		batch, err = c.credentials.IssueBatch(ctx, addr, items)
		if err != nil {
			return err
		}
		if err := c.credentials.MarkBatchIssued(ctx, addr); err != nil {
			return err
		}
		tokenIDs := make([]domain.TokenID, len(batch))
		for i, cred := range batch {
			tokenIDs[i] = cred.TokenID
		}
		if err := c.outbox.Record(ctx, events.InvitesBatchIssued(ctx, addr, tokenIDs)); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to record batch event")
		}
		return nil
	}, attribute.String("address", addr.Hex()), attribute.Int("size", len(codes)))
	if err != nil {
		return nil, err
	}

	s.metrics.IncInvitesIssued(len(batch))
	s.metrics.IncBatchesIssued()
	s.logAudit(ctx, string(events.TypeInvitesBatchIssued),
		"address", addr.Hex(),
		"count", len(batch),
		"first_token_id", batch[0].TokenID.String(),
	)
	return batch, nil
}

// AttachArtifact swaps a deferred placeholder for a real locator. Issuer only.
func (s *Service) AttachArtifact(ctx context.Context, auth Authority, code, locator string) error {
	if err := auth.requireIssuer(); err != nil {
		return err
	}
	err := s.transition(ctx, "attach_artifact", func(ctx context.Context, c components) error {
		return c.credentials.AttachArtifact(ctx, code, locator)
	}, attribute.String("code", code))
	if err != nil {
		return err
	}
	s.logAudit(ctx, string(events.TypeArtifactAttached), "code", code, "locator", locator)
	return nil
}
