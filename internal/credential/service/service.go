package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"invitegate/internal/artifact"
	"invitegate/internal/credential/models"
	"invitegate/internal/events"
	"invitegate/internal/identity"
	"invitegate/pkg/domain"
	dErrors "invitegate/pkg/domain-errors"
	"invitegate/pkg/platform/sentinel"
	platformstrings "invitegate/pkg/platform/strings"
	"invitegate/pkg/requestcontext"
)

// Store persists credentials, custody, the identity index and issuance quotas.
// Implementations return sentinel errors; the service translates them.
type Store interface {
	NextTokenID(ctx context.Context) (domain.TokenID, error)
	// Insert fails with sentinel.ErrAlreadyUsed when the code or token ID exists.
	Insert(ctx context.Context, c *models.Credential) error
	FindByCode(ctx context.Context, code string) (*models.Credential, error)
	FindByToken(ctx context.Context, tokenID domain.TokenID) (*models.Credential, error)
	ExistingCodes(ctx context.Context, codes []string) ([]string, error)
	// SaveActivation fails with sentinel.ErrInvalidState when already activated and
	// sentinel.ErrAlreadyUsed when the commitment is indexed to another code.
	SaveActivation(ctx context.Context, code string, commitment identity.Commitment, at time.Time) error
	CodeForCommitment(ctx context.Context, commitment identity.Commitment) (string, error)
	SetOwner(ctx context.Context, tokenID domain.TokenID, owner domain.Address, at time.Time) error
	TokensOf(ctx context.Context, owner domain.Address) ([]domain.TokenID, error)
	SetArtifact(ctx context.Context, code, locator string) error
	HasBatchIssued(ctx context.Context, addr domain.Address) (bool, error)
	// MarkBatchIssued fails with sentinel.ErrAlreadyUsed when the flag is already set.
	MarkBatchIssued(ctx context.Context, addr domain.Address, at time.Time) error
}

// Service owns the credential registry: issuance, one-time activation and custody.
type Service struct {
	store  Store
	events events.Recorder
}

// New binds the registry to a store and the outbox of the current transaction.
func New(store Store, recorder events.Recorder) *Service {
	return &Service{store: store, events: recorder}
}

// Issue mints one credential to recipient and records custody.
func (s *Service) Issue(ctx context.Context, recipient domain.Address, code, locator string) (*models.Credential, error) {
	if err := models.ValidateCode(code); err != nil {
		return nil, err
	}
	existing, err := s.store.ExistingCodes(ctx, []string{code})
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to check code uniqueness")
	}
	if len(existing) > 0 {
		return nil, dErrors.New(dErrors.CodeDuplicateCode, fmt.Sprintf("code %q already issued", code))
	}

	tokenID, err := s.store.NextTokenID(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to allocate token id")
	}
	c, err := models.NewCredential(tokenID, recipient, code, locator, requestcontext.Now(ctx))
	if err != nil {
		return nil, err
	}
	if err := s.insert(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// IssueBatch validates every item before writing any of them. The first
// duplicate, inside the batch or against existing codes, aborts the whole batch.
func (s *Service) IssueBatch(ctx context.Context, recipient domain.Address, items []models.BatchItem) ([]*models.Credential, error) {
	if len(items) == 0 {
		return nil, dErrors.New(dErrors.CodeValidation, "batch cannot be empty")
	}
	codes := make([]string, len(items))
	for i, item := range items {
		if err := models.ValidateCode(item.Code); err != nil {
			return nil, err
		}
		codes[i] = item.Code
	}
	if dup, ok := platformstrings.FirstDuplicate(codes); ok {
		return nil, dErrors.New(dErrors.CodeDuplicateCode, fmt.Sprintf("code %q appears twice in batch", dup))
	}
	existing, err := s.store.ExistingCodes(ctx, codes)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to check code uniqueness")
	}
	if len(existing) > 0 {
		return nil, dErrors.New(dErrors.CodeDuplicateCode, fmt.Sprintf("code %q already issued", firstIn(codes, existing)))
	}

	first, err := s.store.NextTokenID(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to allocate token id")
	}
	now := requestcontext.Now(ctx)
	batch := make([]*models.Credential, len(items))
	for i, item := range items {
		locator := item.Locator
		if strings.TrimSpace(locator) == "" {
			locator = artifact.Placeholder(item.Code)
		}
		c, err := models.NewCredential(first+domain.TokenID(i), recipient, item.Code, locator, now)
		if err != nil {
			return nil, err
		}
		batch[i] = c
	}
	for _, c := range batch {
		if err := s.insert(ctx, c); err != nil {
			return nil, err
		}
	}
	return batch, nil
}

func (s *Service) insert(ctx context.Context, c *models.Credential) error {
	if err := s.store.Insert(ctx, c); err != nil {
		if errors.Is(err, sentinel.ErrAlreadyUsed) {
			return dErrors.Wrap(err, dErrors.CodeDuplicateCode, fmt.Sprintf("code %q already issued", c.Code))
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to store credential")
	}
	if err := s.events.Record(ctx, events.InviteIssued(ctx, c.TokenID, c.Recipient, c.Code)); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to record issuance event")
	}
	return nil
}

// Activate consumes the code and binds it to an identity commitment. Irreversible.
func (s *Service) Activate(ctx context.Context, code string, commitment identity.Commitment) error {
	c, err := s.Credential(ctx, code)
	if err != nil {
		return err
	}
	if err := c.CanActivate(); err != nil {
		return err
	}
	if err := s.store.SaveActivation(ctx, code, commitment, requestcontext.Now(ctx)); err != nil {
		switch {
		case errors.Is(err, sentinel.ErrNotFound):
			return dErrors.Wrap(err, dErrors.CodeUnknownCode, "credential code not found")
		case errors.Is(err, sentinel.ErrInvalidState):
			return dErrors.Wrap(err, dErrors.CodeAlreadyActivated, "credential already activated")
		case errors.Is(err, sentinel.ErrAlreadyUsed):
			return dErrors.Wrap(err, dErrors.CodeAlreadyActivated, "identity already holds an invite")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to store activation")
	}
	if err := s.events.Record(ctx, events.InviteActivated(ctx, code, commitment)); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to record activation event")
	}
	return nil
}

// Validate reports whether code exists and has not been activated.
func (s *Service) Validate(ctx context.Context, code string) (bool, error) {
	c, err := s.store.FindByCode(ctx, code)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return false, nil
		}
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load credential")
	}
	return c.IsAvailable(), nil
}

// TransferCustody overwrites the owner of tokenID. Authorization is the caller's concern.
func (s *Service) TransferCustody(ctx context.Context, tokenID domain.TokenID, newOwner domain.Address) error {
	if newOwner.IsZero() {
		return dErrors.New(dErrors.CodeValidation, "custody cannot move to the zero address")
	}
	if err := s.store.SetOwner(ctx, tokenID, newOwner, requestcontext.Now(ctx)); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.Wrap(err, dErrors.CodeUnknownToken, "token not found")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to transfer custody")
	}
	return nil
}

func (s *Service) TokenIDForCode(ctx context.Context, code string) (domain.TokenID, error) {
	c, err := s.Credential(ctx, code)
	if err != nil {
		return 0, err
	}
	return c.TokenID, nil
}

func (s *Service) OwnerOf(ctx context.Context, tokenID domain.TokenID) (domain.Address, error) {
	c, err := s.CredentialByToken(ctx, tokenID)
	if err != nil {
		return domain.Address{}, err
	}
	return c.Owner, nil
}

// CodeForIdentity resolves the code activated with commitment.
func (s *Service) CodeForIdentity(ctx context.Context, commitment identity.Commitment) (string, error) {
	code, err := s.store.CodeForCommitment(ctx, commitment)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return "", dErrors.Wrap(err, dErrors.CodeUnknownIdentity, "no activated invite holds this identity")
		}
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to resolve identity")
	}
	return code, nil
}

func (s *Service) Credential(ctx context.Context, code string) (*models.Credential, error) {
	c, err := s.store.FindByCode(ctx, code)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.Wrap(err, dErrors.CodeUnknownCode, "credential code not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load credential")
	}
	return c, nil
}

func (s *Service) CredentialByToken(ctx context.Context, tokenID domain.TokenID) (*models.Credential, error) {
	c, err := s.store.FindByToken(ctx, tokenID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.Wrap(err, dErrors.CodeUnknownToken, "token not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load credential")
	}
	return c, nil
}

// TokensOf lists the tokens currently held by owner, ascending.
func (s *Service) TokensOf(ctx context.Context, owner domain.Address) ([]domain.TokenID, error) {
	ids, err := s.store.TokensOf(ctx, owner)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list tokens")
	}
	return ids, nil
}

// AttachArtifact replaces a deferred placeholder locator and emits
// artifact_attached.
func (s *Service) AttachArtifact(ctx context.Context, code, locator string) error {
	if strings.TrimSpace(locator) == "" || artifact.IsPlaceholder(locator) {
		return dErrors.New(dErrors.CodeValidation, "artifact locator must be a real locator")
	}
	c, err := s.Credential(ctx, code)
	if err != nil {
		return err
	}
	if !artifact.IsPlaceholder(c.ArtifactLocator) {
		return dErrors.New(dErrors.CodeConflict, "artifact already attached")
	}
	if err := s.store.SetArtifact(ctx, code, locator); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.Wrap(err, dErrors.CodeUnknownCode, "credential code not found")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to attach artifact")
	}
	if err := s.events.Record(ctx, events.ArtifactAttached(ctx, c.TokenID, code, locator)); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to record artifact event")
	}
	return nil
}

func (s *Service) HasBatchIssued(ctx context.Context, addr domain.Address) (bool, error) {
	issued, err := s.store.HasBatchIssued(ctx, addr)
	if err != nil {
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load issuance quota")
	}
	return issued, nil
}

// MarkBatchIssued consumes addr's one-time batch quota.
func (s *Service) MarkBatchIssued(ctx context.Context, addr domain.Address) error {
	if err := s.store.MarkBatchIssued(ctx, addr, requestcontext.Now(ctx)); err != nil {
		if errors.Is(err, sentinel.ErrAlreadyUsed) {
			return dErrors.Wrap(err, dErrors.CodeQuotaExhausted, "address already issued its batch")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to record issuance quota")
	}
	return nil
}

func firstIn(ordered, set []string) string {
	for _, c := range ordered {
		if slices.Contains(set, c) {
			return c
		}
	}
	return set[0]
}
