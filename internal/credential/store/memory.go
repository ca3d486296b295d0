package store

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"

	"invitegate/internal/credential/models"
	"invitegate/internal/identity"
	"invitegate/pkg/domain"
	"invitegate/pkg/platform/sentinel"
)

type record struct {
	credential models.Credential
}

// InMemory keeps the credential registry in maps guarded by one mutex.
type InMemory struct {
	mu       sync.RWMutex
	byToken  map[domain.TokenID]*record
	byCode   map[string]domain.TokenID
	identity map[identity.Commitment]string
	quotas   map[domain.Address]time.Time
	lastID   domain.TokenID
}

func NewInMemory() *InMemory {
	return &InMemory{
		byToken:  make(map[domain.TokenID]*record),
		byCode:   make(map[string]domain.TokenID),
		identity: make(map[identity.Commitment]string),
		quotas:   make(map[domain.Address]time.Time),
	}
}

func (s *InMemory) NextTokenID(_ context.Context) (domain.TokenID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastID + 1, nil
}

func (s *InMemory) Insert(_ context.Context, c *models.Credential) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byCode[c.Code]; ok {
		return fmt.Errorf("code %s: %w", c.Code, sentinel.ErrAlreadyUsed)
	}
	if _, ok := s.byToken[c.TokenID]; ok {
		return fmt.Errorf("token %s: %w", c.TokenID, sentinel.ErrAlreadyUsed)
	}
	stored := *c
	stored.Owner = c.Recipient
	s.byToken[c.TokenID] = &record{credential: stored}
	s.byCode[c.Code] = c.TokenID
	if c.TokenID > s.lastID {
		s.lastID = c.TokenID
	}
	return nil
}

func (s *InMemory) FindByCode(_ context.Context, code string) (*models.Credential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	tokenID, ok := s.byCode[code]
	if !ok {
		return nil, fmt.Errorf("code %s: %w", code, sentinel.ErrNotFound)
	}
	return s.copyOf(tokenID), nil
}

func (s *InMemory) FindByToken(_ context.Context, tokenID domain.TokenID) (*models.Credential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.byToken[tokenID]; !ok {
		return nil, fmt.Errorf("token %s: %w", tokenID, sentinel.ErrNotFound)
	}
	return s.copyOf(tokenID), nil
}

// copyOf must be called with the lock held.
func (s *InMemory) copyOf(tokenID domain.TokenID) *models.Credential {
	c := s.byToken[tokenID].credential
	if c.Commitment != nil {
		commitment := *c.Commitment
		c.Commitment = &commitment
	}
	if c.ActivatedAt != nil {
		at := *c.ActivatedAt
		c.ActivatedAt = &at
	}
	return &c
}

func (s *InMemory) ExistingCodes(_ context.Context, codes []string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []string
	for _, code := range codes {
		if _, ok := s.byCode[code]; ok {
			out = append(out, code)
		}
	}
	return out, nil
}

func (s *InMemory) SaveActivation(_ context.Context, code string, commitment identity.Commitment, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	tokenID, ok := s.byCode[code]
	if !ok {
		return fmt.Errorf("code %s: %w", code, sentinel.ErrNotFound)
	}
	rec := s.byToken[tokenID]
	if rec.credential.Activated {
		return fmt.Errorf("code %s: %w", code, sentinel.ErrInvalidState)
	}
	if _, taken := s.identity[commitment]; taken {
		return fmt.Errorf("commitment %s: %w", commitment, sentinel.ErrAlreadyUsed)
	}
	rec.credential.ApplyActivation(commitment, at)
	s.identity[commitment] = code
	return nil
}

func (s *InMemory) CodeForCommitment(_ context.Context, commitment identity.Commitment) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	code, ok := s.identity[commitment]
	if !ok {
		return "", fmt.Errorf("commitment %s: %w", commitment, sentinel.ErrNotFound)
	}
	return code, nil
}

func (s *InMemory) SetOwner(_ context.Context, tokenID domain.TokenID, owner domain.Address, _ time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.byToken[tokenID]
	if !ok {
		return fmt.Errorf("token %s: %w", tokenID, sentinel.ErrNotFound)
	}
	rec.credential.Owner = owner
	return nil
}

func (s *InMemory) TokensOf(_ context.Context, owner domain.Address) ([]domain.TokenID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.TokenID
	for id, rec := range s.byToken {
		if rec.credential.Owner == owner {
			out = append(out, id)
		}
	}
	slices.Sort(out)
	return out, nil
}

func (s *InMemory) SetArtifact(_ context.Context, code, locator string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	tokenID, ok := s.byCode[code]
	if !ok {
		return fmt.Errorf("code %s: %w", code, sentinel.ErrNotFound)
	}
	s.byToken[tokenID].credential.ArtifactLocator = locator
	return nil
}

func (s *InMemory) HasBatchIssued(_ context.Context, addr domain.Address) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.quotas[addr]
	return ok, nil
}

func (s *InMemory) MarkBatchIssued(_ context.Context, addr domain.Address, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.quotas[addr]; ok {
		return fmt.Errorf("address %s: %w", addr, sentinel.ErrAlreadyUsed)
	}
	s.quotas[addr] = at
	return nil
}

// Snapshot captures the registry and returns a func that restores it.
func (s *InMemory) Snapshot() func() {
	s.mu.RLock()
	byToken := make(map[domain.TokenID]*record, len(s.byToken))
	for id, rec := range s.byToken {
		cp := *rec
		byToken[id] = &cp
	}
	byCode := maps.Clone(s.byCode)
	idx := maps.Clone(s.identity)
	quotas := maps.Clone(s.quotas)
	lastID := s.lastID
	s.mu.RUnlock()

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.byToken = byToken
		s.byCode = byCode
		s.identity = idx
		s.quotas = quotas
		s.lastID = lastID
	}
}
